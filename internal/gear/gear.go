package gear

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"synthgear/internal/config"
	"synthgear/internal/curate"
	"synthgear/internal/demographics"
	"synthgear/internal/gearcontext"
	"synthgear/internal/ledger"
	"synthgear/internal/logging"
	"synthgear/internal/pipeline"
	"synthgear/internal/services"
	"synthgear/internal/services/flywheel"
	"synthgear/internal/textutil"
)

// ErrAlreadyRunning is returned when another run holds the work directory lock.
var ErrAlreadyRunning = errors.New("another synthgear run is already in progress")

// Stage names stamped on the context and recorded with failures.
const (
	StageLabels       = "labels"
	StagePipeline     = "pipeline"
	StageDemographics = "demographics"
	StageCurate       = "curate"
)

// Platform is the subset of the platform client a run needs.
type Platform interface {
	demographics.Platform
	GetAnalysis(ctx context.Context, id string) (flywheel.Analysis, error)
	GetSubject(ctx context.Context, id string) (flywheel.Subject, error)
}

// PipelineRunner runs the external segmentation pipeline.
type PipelineRunner interface {
	Run(ctx context.Context, labels pipeline.Labels) error
}

// Options wires a run. Config is required; nil collaborators are built from it.
type Options struct {
	Config       *config.Config
	Logger       *slog.Logger
	Manifest     *gearcontext.Manifest
	Platform     Platform
	Pipeline     PipelineRunner
	Ledger       *ledger.Store
	HeaderReader demographics.HeaderReader
	Now          func() time.Time
}

// Result summarizes a successful run.
type Result struct {
	RunID     string
	Labels    pipeline.Labels
	Record    demographics.Record
	Artifacts []curate.Artifact
	Elapsed   time.Duration
}

type run struct {
	opts     Options
	cfg      *config.Config
	logger   *slog.Logger
	manifest *gearcontext.Manifest
	platform Platform
	store    *ledger.Store
	now      func() time.Time
}

// Run executes one gear invocation.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("gear config is required")
	}
	cfg := opts.Config
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "gear", "directories", "prepare work and output directories", err)
	}

	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	defer func() {
		_ = lock.Unlock()
	}()

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)

	r := &run{
		opts:   opts,
		cfg:    cfg,
		logger: logging.WithContext(ctx, logging.NewComponentLogger(opts.Logger, "gear")),
		now:    opts.Now,
	}
	if r.now == nil {
		r.now = time.Now
	}

	if r.manifest = opts.Manifest; r.manifest == nil {
		r.manifest, err = gearcontext.Load(cfg.Paths.GearConfig)
		if err != nil {
			return nil, err
		}
	}

	if r.platform = opts.Platform; r.platform == nil {
		r.platform, err = r.buildPlatform()
		if err != nil {
			return nil, err
		}
	}

	if cfg.Ledger.Enabled {
		if r.store = opts.Ledger; r.store == nil {
			store, err := ledger.Open(cfg.Ledger.Path)
			if err != nil {
				logging.WarnWithContext(r.logger, "run ledger unavailable", "ledger_unavailable",
					logging.String("path", cfg.Ledger.Path),
					logging.String(logging.FieldImpact, "this run will not appear in history"),
					logging.Error(err),
				)
			} else {
				r.store = store
				defer store.Close()
			}
		}
	}

	return r.execute(ctx, runID)
}

func (r *run) execute(ctx context.Context, runID string) (*Result, error) {
	started := r.now()
	result := &Result{RunID: runID}
	r.logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("gear_config", r.manifest.Path()),
	)

	input, err := r.manifest.InputFile(r.cfg.Pipeline.InputName)
	if err != nil {
		return nil, err
	}
	inputPath := input.Path
	if !filepath.IsAbs(inputPath) {
		inputPath = filepath.Join(r.cfg.InputPath(r.cfg.Pipeline.InputName), input.Name)
	}
	acquisition := textutil.AcquisitionLabel(input.Name)

	var id identity
	err = r.stage(ctx, StageLabels, func(ctx context.Context, logger *slog.Logger) error {
		var err error
		id, err = resolveIdentity(ctx, logger, r.manifest, r.platform)
		if err != nil {
			return err
		}
		logger.Info("labels resolved",
			logging.String("subject", id.SubjectLabel),
			logging.String("session", id.SessionLabel),
			logging.String("input", input.Name),
			logging.String("acquisition", acquisition),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Labels = pipeline.Labels{Subject: id.SubjectLabel, Session: id.SessionLabel, Input: input.Name}

	r.begin(ctx, ledger.Run{
		ID:          runID,
		Subject:     id.SubjectLabel,
		Session:     id.SessionLabel,
		Acquisition: acquisition,
		InputFile:   input.Name,
		StartedAt:   started,
	})

	err = r.stages(ctx, id, inputPath, acquisition, result)
	result.Elapsed = r.now().Sub(started)
	r.finish(ctx, runID, result, err)
	if err != nil {
		return nil, err
	}

	r.logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("subject", result.Record.Subject),
		logging.String("session", result.Record.Session),
		logging.String("acquisition", result.Record.Acquisition),
		logging.String("age", result.Record.Age.AgeString()),
		logging.String("age_source", result.Record.Age.Source.String()),
		logging.String("sex", result.Record.Sex),
		logging.Int("outputs", len(result.Artifacts)),
		logging.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

func (r *run) stages(ctx context.Context, id identity, inputPath, acquisition string, result *Result) error {
	err := r.stage(ctx, StagePipeline, func(ctx context.Context, logger *slog.Logger) error {
		runner, err := r.pipelineRunner(logger)
		if err != nil {
			return err
		}
		return runner.Run(ctx, result.Labels)
	})
	if err != nil {
		return err
	}

	err = r.stage(ctx, StageDemographics, func(ctx context.Context, logger *slog.Logger) error {
		var opts []demographics.Option
		if r.opts.HeaderReader != nil {
			opts = append(opts, demographics.WithHeaderReader(r.opts.HeaderReader))
		}
		var platform demographics.Platform
		if r.platform != nil {
			platform = r.platform
		}
		collector := demographics.NewCollector(platform, r.cfg.Demographics, logger, opts...)
		record, err := collector.Collect(ctx, demographics.Target{
			SubjectLabel:     id.SubjectLabel,
			SessionLabel:     id.SessionLabel,
			SessionID:        id.SessionID,
			AcquisitionLabel: acquisition,
			InputPath:        inputPath,
		})
		if err != nil {
			return err
		}
		result.Record = record
		return nil
	})
	if err != nil {
		return err
	}

	return r.stage(ctx, StageCurate, func(ctx context.Context, logger *slog.Logger) error {
		curator := curate.New(r.cfg.Paths.WorkDir, r.cfg.Paths.OutputDir, logger)
		artifacts, err := curator.Curate(ctx, result.Record)
		result.Artifacts = artifacts
		return err
	})
}

// stage runs fn with the stage name on the context and logs its lifecycle.
func (r *run) stage(ctx context.Context, name string, fn func(context.Context, *slog.Logger) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stageCtx := services.WithStage(ctx, name)
	logger := logging.WithContext(stageCtx, r.opts.Logger)
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	started := r.now()
	if err := fn(stageCtx, logger); err != nil {
		logger.Error("stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.String("failure_kind", services.FailureKind(err)),
			logging.Error(err),
		)
		return err
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", r.now().Sub(started)),
	)
	return nil
}

func (r *run) pipelineRunner(logger *slog.Logger) (PipelineRunner, error) {
	if r.opts.Pipeline != nil {
		return r.opts.Pipeline, nil
	}
	return pipeline.New(r.cfg.Pipeline, r.cfg.Paths.WorkDir, logger)
}

// buildPlatform returns nil when no api key is available; label overrides
// and the local DICOM fallback still allow the run to proceed.
func (r *run) buildPlatform() (Platform, error) {
	key := r.manifest.APIKey(r.cfg.Platform.APIKeyInput)
	if key == "" {
		key = strings.TrimSpace(r.cfg.Platform.APIKey)
	}
	if key == "" {
		logging.WarnWithContext(r.logger, "no platform api key", "platform_disabled",
			logging.String(logging.FieldImpact, "labels and demographics come from local data only"),
			logging.String(logging.FieldErrorHint, "provide the api-key input or platform.api_key"),
		)
		return nil, nil
	}
	client, err := flywheel.New(flywheel.Config{
		BaseURL:    r.cfg.Platform.BaseURL,
		APIKey:     key,
		Timeout:    time.Duration(r.cfg.Platform.TimeoutSeconds) * time.Second,
		RetryCount: r.cfg.Platform.RetryCount,
	}, r.logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (r *run) begin(ctx context.Context, entry ledger.Run) {
	if r.store == nil {
		return
	}
	if err := r.store.Begin(ctx, entry); err != nil {
		logging.WarnWithContext(r.logger, "failed to record run start", "ledger_write_failed",
			logging.String(logging.FieldImpact, "this run will not appear in history"),
			logging.Error(err),
		)
		r.store = nil
	}
}

func (r *run) finish(ctx context.Context, runID string, result *Result, runErr error) {
	if r.store == nil {
		return
	}
	outcome := ledger.Outcome{Status: ledger.StatusSucceeded}
	// Demographics are only known once that stage has produced a record.
	if record := result.Record; record.Subject != "" {
		outcome.Acquisition = record.Acquisition
		outcome.AgeSource = record.Age.Source.String()
		outcome.Sex = record.Sex
		if record.Age.Known {
			months := record.Age.Months
			outcome.AgeMonths = &months
		}
	}
	if runErr != nil {
		outcome.Status = ledger.StatusFailed
		outcome.ErrorKind = services.FailureKind(runErr)
		if errors.Is(runErr, context.Canceled) {
			outcome.ErrorKind = "canceled"
		}
		outcome.ErrorMessage = runErr.Error()
	}
	for _, artifact := range result.Artifacts {
		outcome.Outputs = append(outcome.Outputs, ledger.Output{
			Kind:   artifact.Kind,
			Path:   artifact.Path,
			SHA256: artifact.SHA256,
		})
	}
	if err := r.store.Finish(context.WithoutCancel(ctx), runID, outcome); err != nil {
		logging.WarnWithContext(r.logger, "failed to record run outcome", "ledger_write_failed",
			logging.Error(err),
		)
	}
}
