package gear_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"synthgear/internal/config"
	"synthgear/internal/dicomhdr"
	"synthgear/internal/gear"
	"synthgear/internal/ledger"
	"synthgear/internal/pipeline"
	"synthgear/internal/services"
	"synthgear/internal/services/flywheel"
	"synthgear/internal/testsupport"
)

const pipelineOutputs = `
printf '%s %s %s\n' "$1" "$2" "$3" > args.txt
printf 'lh.aparc.thickness\tlh_bankssts_thickness\n%s\t2.51\n' "$1" > aparc_lh.csv
printf 'rh.aparc.thickness\trh_bankssts_thickness\n%s\t2.47\n' "$1" > aparc_rh.csv
printf 'lh.aparc.area\tlh_bankssts_area\n%s\t1021\n' "$1" > aparc_area_lh.csv
printf 'rh.aparc.area\trh_bankssts_area\n%s\t998\n' "$1" > aparc_area_rh.csv
printf 'subject,total intracranial\n%s,1412.5\n' "$1" > synthseg.vol.csv
printf 'subject,general white matter\n%s,0.91\n' "$1" > synthseg.qc.csv
printf 'synth' > synthSR.nii.gz
printf 'parc' > aparc+aseg.nii.gz
echo "pipeline done"
`

type fakePlatform struct {
	analysis     flywheel.Analysis
	analysisErr  error
	subject      flywheel.Subject
	session      flywheel.Session
	acquisitions []flywheel.Acquisition
	infos        map[string]map[string]any
}

func (f *fakePlatform) GetAnalysis(ctx context.Context, id string) (flywheel.Analysis, error) {
	return f.analysis, f.analysisErr
}

func (f *fakePlatform) GetSubject(ctx context.Context, id string) (flywheel.Subject, error) {
	return f.subject, nil
}

func (f *fakePlatform) GetSession(ctx context.Context, id string) (flywheel.Session, error) {
	return f.session, nil
}

func (f *fakePlatform) ListAcquisitions(ctx context.Context, sessionID string) ([]flywheel.Acquisition, error) {
	return f.acquisitions, nil
}

func (f *fakePlatform) GetFileInfo(ctx context.Context, acquisitionID, fileName string) (map[string]any, error) {
	info, ok := f.infos[acquisitionID+"/"+fileName]
	if !ok {
		return nil, errors.New("no info")
	}
	return info, nil
}

func newPlatform() *fakePlatform {
	return &fakePlatform{
		analysis: flywheel.Analysis{ID: "ana-1", Parents: flywheel.Parents{Subject: "sub-1", Session: "ses-1"}},
		subject:  flywheel.Subject{ID: "sub-1", Label: "P001"},
		session:  flywheel.Session{ID: "ses-1", Label: "V1", Info: map[string]any{}},
		acquisitions: []flywheel.Acquisition{{
			ID:    "acq-1",
			Label: "T2 AXI",
			Files: []flywheel.File{{Name: "t2.dicom.zip", Type: flywheel.FileTypeDICOM}},
		}},
		infos: map[string]map[string]any{
			"acq-1/t2.dicom.zip": {"PatientAge": "002Y", "PatientSex": "F"},
		},
	}
}

type stubRunner struct {
	labels pipeline.Labels
	err    error
}

func (s *stubRunner) Run(ctx context.Context, labels pipeline.Labels) error {
	s.labels = labels
	return s.err
}

func writeManifest(t *testing.T, cfg *config.Config, gearConfig map[string]any) {
	t.Helper()
	inputPath := filepath.Join(cfg.InputPath("input"), "T2 AXI.nii.gz")
	testsupport.WriteFile(t, inputPath, 16)
	doc := map[string]any{
		"config": gearConfig,
		"inputs": map[string]any{
			"input": map[string]any{
				"base":     "file",
				"location": map[string]any{"path": inputPath, "name": "T2 AXI.nii.gz"},
			},
		},
		"destination": map[string]any{"id": "ana-1", "type": "analysis"},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}
	if err := os.WriteFile(cfg.Paths.GearConfig, data, 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}

func notDICOM(string) (dicomhdr.Header, error) {
	return dicomhdr.Header{}, errors.New("not dicom")
}

func TestRunPublishesOutputsAndRecordsLedger(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPipelineScript(pipelineOutputs))
	writeManifest(t, cfg, map[string]any{"debug": false})

	result, err := gear.Run(context.Background(), gear.Options{
		Config:       cfg,
		Platform:     newPlatform(),
		HeaderReader: notDICOM,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Labels != (pipeline.Labels{Subject: "P001", Session: "V1", Input: "T2 AXI.nii.gz"}) {
		t.Fatalf("unexpected labels %+v", result.Labels)
	}
	args, err := os.ReadFile(filepath.Join(cfg.Paths.WorkDir, "args.txt"))
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	if got := strings.TrimSpace(string(args)); got != "P001 V1 T2 AXI.nii.gz" {
		t.Fatalf("pipeline saw args %q", got)
	}

	if result.Record.Age.Months != 24 || result.Record.Sex != "F" || result.Record.Acquisition != "T2AXI" {
		t.Fatalf("unexpected record %+v", result.Record)
	}
	if len(result.Artifacts) != 6 {
		t.Fatalf("expected 6 artifacts, got %d", len(result.Artifacts))
	}
	for _, name := range []string{
		"T2AXI_thickness.csv", "T2AXI_area.csv", "T2AXI_volume.csv", "T2AXI_qc.csv",
		"T2AXI_synthSR.nii.gz", "T2AXI_aparc+aseg.nii.gz",
	} {
		if _, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, name)); err != nil {
			t.Fatalf("expected output %s: %v", name, err)
		}
	}
	volume, err := os.ReadFile(filepath.Join(cfg.Paths.OutputDir, "T2AXI_volume.csv"))
	if err != nil {
		t.Fatalf("read volume: %v", err)
	}
	if !strings.Contains(string(volume), "0,P001,V1,24,dicom_age,F,T2AXI,1412.5") {
		t.Fatalf("unexpected volume table:\n%s", volume)
	}

	store := testsupport.MustOpenLedger(t, cfg)
	run, err := store.Get(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("ledger Get: %v", err)
	}
	if run.Status != ledger.StatusSucceeded || run.AgeMonths == nil || *run.AgeMonths != 24 {
		t.Fatalf("unexpected ledger run %+v", run)
	}
	if len(run.Outputs) != 6 {
		t.Fatalf("expected 6 ledger outputs, got %d", len(run.Outputs))
	}
}

func TestRunUsesLabelOverridesWithoutPlatform(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPipelineScript(pipelineOutputs), testsupport.WithLedgerDisabled())
	cfg.Platform.APIKey = ""
	writeManifest(t, cfg, map[string]any{"subject_label": "P009", "session_label": "V3"})

	result, err := gear.Run(context.Background(), gear.Options{Config: cfg, HeaderReader: notDICOM})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Labels.Subject != "P009" || result.Labels.Session != "V3" {
		t.Fatalf("overrides ignored: %+v", result.Labels)
	}
	if result.Record.Age.Known || result.Record.Age.AgeString() != "NA" || result.Record.Sex != dicomhdr.SexUnknown {
		t.Fatalf("expected unknown demographics, got %+v", result.Record)
	}
	if _, err := os.Stat(cfg.Ledger.Path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("ledger should not be created when disabled, stat err=%v", err)
	}
}

func TestRunRecordsPipelineFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeManifest(t, cfg, map[string]any{})
	runner := &stubRunner{err: services.Wrap(services.ErrExternalTool, "pipeline", "run", "exited with status 2", nil)}

	_, err := gear.Run(context.Background(), gear.Options{
		Config:       cfg,
		Platform:     newPlatform(),
		Pipeline:     runner,
		HeaderReader: notDICOM,
	})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if runner.labels.Subject != "P001" {
		t.Fatalf("runner not invoked with labels: %+v", runner.labels)
	}

	entries, err := os.ReadDir(cfg.Paths.OutputDir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no outputs after pipeline failure, got %d", len(entries))
	}

	store := testsupport.MustOpenLedger(t, cfg)
	runs, err := store.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("ledger List: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected one run, got %d", len(runs))
	}
	if runs[0].Status != ledger.StatusFailed || runs[0].ErrorKind != "external_tool" {
		t.Fatalf("unexpected failed run %+v", runs[0])
	}
	if runs[0].Acquisition != "T2AXI" || runs[0].AgeMonths != nil {
		t.Fatalf("unexpected demographics on failed run %+v", runs[0])
	}
}

func TestRunRequiresLabelSource(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLedgerDisabled())
	cfg.Platform.APIKey = ""
	writeManifest(t, cfg, map[string]any{"subject_label": "P001"})

	_, err := gear.Run(context.Background(), gear.Options{Config: cfg, Pipeline: &stubRunner{}})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRunFailsFastWhenLocked(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLedgerDisabled())
	writeManifest(t, cfg, map[string]any{})
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	held := flock.New(cfg.LockPath())
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("hold lock: ok=%v err=%v", ok, err)
	}
	defer held.Unlock()

	runner := &stubRunner{}
	_, err = gear.Run(context.Background(), gear.Options{Config: cfg, Platform: newPlatform(), Pipeline: runner})
	if !errors.Is(err, gear.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if runner.labels != (pipeline.Labels{}) {
		t.Fatal("pipeline should not run while locked")
	}
}

func TestRunMissingPipelineOutputs(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLedgerDisabled())
	writeManifest(t, cfg, map[string]any{})

	_, err := gear.Run(context.Background(), gear.Options{
		Config:       cfg,
		Platform:     newPlatform(),
		Pipeline:     &stubRunner{},
		HeaderReader: notDICOM,
	})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "synthseg.vol.csv") {
		t.Fatalf("error should name missing files: %v", err)
	}
}

func TestRunSessionDestination(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPipelineScript(pipelineOutputs), testsupport.WithLedgerDisabled())
	writeManifest(t, cfg, map[string]any{})
	manifestPath := cfg.Paths.GearConfig
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	data = []byte(strings.Replace(string(data), `"type":"analysis"`, `"type":"session"`, 1))
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	platform := newPlatform()
	platform.analysisErr = errors.New("analysis lookup must not be used")
	platform.session.Parents = flywheel.Parents{Subject: "sub-1"}
	platform.session.Info["age_months"] = 7.0

	result, err := gear.Run(context.Background(), gear.Options{Config: cfg, Platform: platform, HeaderReader: notDICOM})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Labels.Subject != "P001" || result.Labels.Session != "V1" {
		t.Fatalf("unexpected labels %+v", result.Labels)
	}
	if result.Record.Age.Months != 7 || result.Record.Age.Source.String() != "custom_info" {
		t.Fatalf("expected custom age, got %+v", result.Record.Age)
	}
}

func TestRunMissingDestination(t *testing.T) {
	missing := services.Wrap(services.ErrNotFound, "platform", "analysis", "container not found", nil)

	t.Run("without overrides", func(t *testing.T) {
		cfg := testsupport.NewConfig(t, testsupport.WithLedgerDisabled())
		writeManifest(t, cfg, map[string]any{})
		platform := newPlatform()
		platform.analysisErr = missing
		runner := &stubRunner{}

		_, err := gear.Run(context.Background(), gear.Options{Config: cfg, Platform: platform, Pipeline: runner})
		if !errors.Is(err, services.ErrNotFound) || !strings.Contains(err.Error(), "subject_label") {
			t.Fatalf("expected not found error naming the overrides, got %v", err)
		}
		if runner.labels.Subject != "" {
			t.Fatal("pipeline should not run without labels")
		}
	})

	t.Run("with overrides", func(t *testing.T) {
		cfg := testsupport.NewConfig(t, testsupport.WithLedgerDisabled())
		writeManifest(t, cfg, map[string]any{"subject_label": "P009", "session_label": "V3"})
		platform := newPlatform()
		platform.analysisErr = missing
		runner := &stubRunner{err: services.Wrap(services.ErrExternalTool, "pipeline", "run", "exited with status 1", nil)}

		_, err := gear.Run(context.Background(), gear.Options{Config: cfg, Platform: platform, Pipeline: runner})
		if !errors.Is(err, services.ErrExternalTool) {
			t.Fatalf("expected the run to reach the pipeline, got %v", err)
		}
		if runner.labels.Subject != "P009" || runner.labels.Session != "V3" {
			t.Fatalf("unexpected labels %+v", runner.labels)
		}
	})
}
