package textutil

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// UnknownLabel is returned when nothing usable survives cleaning.
const UnknownLabel = "unknown"

var unsafeLabelChars = regexp.MustCompile(`[^a-zA-Z0-9-]`)

// AcquisitionLabel cleans an input file name into the label used for output
// files: the text before the first '.', without spaces, with every character
// outside [A-Za-z0-9-] replaced by '_' and trailing underscores trimmed.
func AcquisitionLabel(fileName string) string {
	base := filepath.Base(strings.TrimSpace(fileName))
	if base == "." || base == string(filepath.Separator) {
		return UnknownLabel
	}
	stem, _, _ := strings.Cut(base, ".")
	stem = strings.ReplaceAll(stem, " ", "")
	stem = FoldAccents(stem)
	cleaned := strings.TrimRight(unsafeLabelChars.ReplaceAllString(stem, "_"), "_")
	if cleaned == "" {
		return UnknownLabel
	}
	return cleaned
}

// FoldAccents strips combining marks so "é" becomes "e".
func FoldAccents(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return folded
}
