// Package dicomhdr extracts the demographic DICOM fields used for age and sex.
package dicomhdr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"synthgear/internal/age"
)

// Field names as they appear in platform file info and DICOM dictionaries.
const (
	FieldPatientAge       = "PatientAge"
	FieldPatientBirthDate = "PatientBirthDate"
	FieldSeriesDate       = "SeriesDate"
	FieldPatientSex       = "PatientSex"
)

// SexUnknown is written when no header carries PatientSex.
const SexUnknown = "NA"

// Header holds trimmed demographic fields. Empty means absent.
type Header struct {
	PatientAge       string
	PatientBirthDate string
	SeriesDate       string
	PatientSex       string
}

// Empty reports whether no field was found.
func (h Header) Empty() bool {
	return h == Header{}
}

// HasSex reports whether PatientSex was present.
func (h Header) HasSex() bool {
	return h.PatientSex != ""
}

// Bundle combines the header with a custom age value from the session info.
func (h Header) Bundle(customAge any) age.Bundle {
	return age.Bundle{
		CustomAgeMonths:  customAge,
		PatientAge:       h.PatientAge,
		PatientBirthDate: h.PatientBirthDate,
		SeriesDate:       h.SeriesDate,
		PatientSex:       h.PatientSex,
	}
}

// FromInfo reads the header fields from a platform file info map.
func FromInfo(info map[string]any) Header {
	return Header{
		PatientAge:       infoString(info, FieldPatientAge),
		PatientBirthDate: infoString(info, FieldPatientBirthDate),
		SeriesDate:       infoString(info, FieldSeriesDate),
		PatientSex:       infoString(info, FieldPatientSex),
	}
}

func infoString(info map[string]any, key string) string {
	raw, ok := info[key]
	if !ok || raw == nil {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case []any:
		if len(v) == 0 {
			return ""
		}
		return infoString(map[string]any{key: v[0]}, key)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// ReadFile parses a local DICOM file, skipping pixel data, and extracts the
// header fields. Tags missing from the dataset are left empty.
func ReadFile(path string) (Header, error) {
	dataset, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return Header{}, fmt.Errorf("parse dicom %s: %w", path, err)
	}
	return FromDataset(dataset), nil
}

// FromDataset extracts the header fields from a parsed dataset.
func FromDataset(dataset dicom.Dataset) Header {
	return Header{
		PatientAge:       datasetString(dataset, tag.PatientAge),
		PatientBirthDate: datasetString(dataset, tag.PatientBirthDate),
		SeriesDate:       datasetString(dataset, tag.SeriesDate),
		PatientSex:       datasetString(dataset, tag.PatientSex),
	}
}

func datasetString(dataset dicom.Dataset, t tag.Tag) string {
	element, err := dataset.FindElementByTag(t)
	if err != nil {
		return ""
	}
	if element.Value == nil || element.Value.ValueType() != dicom.Strings {
		return ""
	}
	values := dicom.MustGetStrings(element.Value)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(values[0], "\x00"))
}
