package demographics_test

import (
	"context"
	"errors"
	"testing"

	"synthgear/internal/age"
	"synthgear/internal/config"
	"synthgear/internal/demographics"
	"synthgear/internal/dicomhdr"
	"synthgear/internal/services/flywheel"
)

type fakePlatform struct {
	session      flywheel.Session
	sessionErr   error
	acquisitions []flywheel.Acquisition
	listErr      error
	infos        map[string]map[string]any
	infoCalls    []string
}

func (f *fakePlatform) GetSession(ctx context.Context, id string) (flywheel.Session, error) {
	return f.session, f.sessionErr
}

func (f *fakePlatform) ListAcquisitions(ctx context.Context, sessionID string) ([]flywheel.Acquisition, error) {
	return f.acquisitions, f.listErr
}

func (f *fakePlatform) GetFileInfo(ctx context.Context, acquisitionID, fileName string) (map[string]any, error) {
	key := acquisitionID + "/" + fileName
	f.infoCalls = append(f.infoCalls, key)
	info, ok := f.infos[key]
	if !ok {
		return nil, errors.New("file info unavailable")
	}
	return info, nil
}

func settings() config.Demographics {
	cfg := config.Default()
	return cfg.Demographics
}

func dicomAcq(id, label string, files ...string) flywheel.Acquisition {
	acq := flywheel.Acquisition{ID: id, Label: label}
	for _, name := range files {
		acq.Files = append(acq.Files, flywheel.File{Name: name, Type: flywheel.FileTypeDICOM})
	}
	acq.Files = append(acq.Files, flywheel.File{Name: label + ".nii.gz", Type: "nifti"})
	return acq
}

var target = demographics.Target{
	SubjectLabel:     "P001",
	SessionLabel:     "V1",
	SessionID:        "ses-1",
	AcquisitionLabel: "T2_AXI",
}

func TestCollectUsesMatchingAcquisitionHeader(t *testing.T) {
	platform := &fakePlatform{
		session: flywheel.Session{Label: "V1", Info: map[string]any{}},
		acquisitions: []flywheel.Acquisition{
			dicomAcq("a1", "T1 SAG", "t1.zip"),
			dicomAcq("a2", "T2 AXI Segmentation", "seg.zip"),
			dicomAcq("a3", "T2 AXI", "t2.zip"),
			dicomAcq("a4", "T2 AXI Align", "align.zip"),
		},
		infos: map[string]map[string]any{
			"a1/t1.zip":    {"PatientAge": "10Y", "PatientSex": "M"},
			"a2/seg.zip":   {"PatientAge": "10Y", "PatientSex": "M"},
			"a3/t2.zip":    {"PatientAge": "018M", "PatientSex": "F"},
			"a4/align.zip": {"PatientAge": "10Y", "PatientSex": "M"},
		},
	}
	collector := demographics.NewCollector(platform, settings(), nil)
	record, err := collector.Collect(context.Background(), target)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if len(platform.infoCalls) != 1 || platform.infoCalls[0] != "a3/t2.zip" {
		t.Fatalf("unexpected file info calls: %v", platform.infoCalls)
	}
	if record.Age.Months != 18 || record.Age.Source != age.SourceDICOMAge {
		t.Fatalf("unexpected age: %+v", record.Age)
	}
	if record.Sex != "F" {
		t.Fatalf("unexpected sex %q", record.Sex)
	}
	want := []string{"P001", "V1", "18", "dicom_age", "F", "T2_AXI"}
	got := record.Values()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Values() = %v, want %v", got, want)
		}
	}
}

func TestCollectCustomAgeWins(t *testing.T) {
	platform := &fakePlatform{
		session:      flywheel.Session{Info: map[string]any{"age_months": float64(7)}},
		acquisitions: []flywheel.Acquisition{dicomAcq("a1", "T2 AXI", "t2.zip")},
		infos:        map[string]map[string]any{"a1/t2.zip": {"PatientAge": "2Y"}},
	}
	record, err := demographics.NewCollector(platform, settings(), nil).Collect(context.Background(), target)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if record.Age.Months != 7 || record.Age.Source != age.SourceCustomInfo {
		t.Fatalf("expected custom age, got %+v", record.Age)
	}
	if record.Sex != dicomhdr.SexUnknown {
		t.Fatalf("expected NA sex, got %q", record.Sex)
	}
}

func TestCollectSexFromLastHeaderCarryingIt(t *testing.T) {
	platform := &fakePlatform{
		session:      flywheel.Session{Info: map[string]any{}},
		acquisitions: []flywheel.Acquisition{dicomAcq("a1", "T2 AXI", "one.zip", "two.zip")},
		infos: map[string]map[string]any{
			"a1/one.zip": {"PatientSex": "F", "PatientAge": "1Y"},
			"a1/two.zip": {"PatientBirthDate": "20200101", "SeriesDate": "20210115"},
		},
	}
	record, err := demographics.NewCollector(platform, settings(), nil).Collect(context.Background(), target)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if record.Sex != "F" {
		t.Fatalf("expected sex from first header, got %q", record.Sex)
	}
	if record.Age.Months != 12 || record.Age.Source != age.SourceDICOMDOB {
		t.Fatalf("expected age from last header, got %+v", record.Age)
	}
}

func TestCollectDegradesOnPlatformErrors(t *testing.T) {
	platform := &fakePlatform{
		sessionErr: errors.New("session down"),
		listErr:    errors.New("listing down"),
	}
	record, err := demographics.NewCollector(platform, settings(), nil).Collect(context.Background(), target)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if record.Age.Known || record.Age.Source != age.SourceUnknown || record.Sex != "NA" {
		t.Fatalf("expected unknown demographics, got %+v", record)
	}
	if record.Values()[2] != "NA" {
		t.Fatalf("expected NA age column, got %v", record.Values())
	}
}

func TestCollectFallsBackToLocalDICOM(t *testing.T) {
	platform := &fakePlatform{session: flywheel.Session{Info: map[string]any{}}}
	var readPath string
	reader := func(path string) (dicomhdr.Header, error) {
		readPath = path
		return dicomhdr.Header{PatientAge: "52W", PatientSex: "M"}, nil
	}
	tgt := target
	tgt.InputPath = "/flywheel/v0/input/input/t2.dcm"
	record, err := demographics.NewCollector(platform, settings(), nil, demographics.WithHeaderReader(reader)).Collect(context.Background(), tgt)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if readPath != tgt.InputPath {
		t.Fatalf("expected local read of %q, got %q", tgt.InputPath, readPath)
	}
	if record.Age.Months != 13 || record.Sex != "M" {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestCollectSkipsLocalFallbackWhenDisabled(t *testing.T) {
	cfg := settings()
	cfg.LocalDICOMFallback = false
	called := false
	reader := func(string) (dicomhdr.Header, error) {
		called = true
		return dicomhdr.Header{}, nil
	}
	tgt := target
	tgt.InputPath = "/in/file.dcm"
	if _, err := demographics.NewCollector(nil, cfg, nil, demographics.WithHeaderReader(reader)).Collect(context.Background(), tgt); err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if called {
		t.Fatal("local reader should not run when fallback is disabled")
	}
}

func TestCollectReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	platform := &fakePlatform{sessionErr: context.Canceled}
	if _, err := demographics.NewCollector(platform, settings(), nil).Collect(ctx, target); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMatchAcquisition(t *testing.T) {
	include := []string{"T2", "AXI"}
	exclude := []string{"Segmentation", "Align"}
	cases := map[string]bool{
		"T2 AXI":              true,
		"AXI_T2_FSE":          true,
		"t2 axi":              false,
		"T2 COR":              false,
		"T2 AXI Segmentation": false,
		"Align T2 AXI":        false,
	}
	for label, want := range cases {
		if got := demographics.MatchAcquisition(label, include, exclude); got != want {
			t.Fatalf("MatchAcquisition(%q) = %v, want %v", label, got, want)
		}
	}
	if demographics.MatchAcquisition("T2 AXI", nil, nil) {
		t.Fatal("empty include list should match nothing")
	}
}
