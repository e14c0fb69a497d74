package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"synthgear/internal/config"
	"synthgear/internal/logging"
	"synthgear/internal/services"
)

const tailLines = 5

// Labels are the positional arguments handed to the script.
type Labels struct {
	Subject string
	Session string
	Input   string
}

// Validate rejects empty labels; the script cannot run without them.
func (l Labels) Validate() error {
	switch {
	case strings.TrimSpace(l.Subject) == "":
		return services.Wrap(services.ErrValidation, "pipeline", "labels", "subject label is empty", nil)
	case strings.TrimSpace(l.Session) == "":
		return services.Wrap(services.ErrValidation, "pipeline", "labels", "session label is empty", nil)
	case strings.TrimSpace(l.Input) == "":
		return services.Wrap(services.ErrValidation, "pipeline", "labels", "input label is empty", nil)
	}
	return nil
}

// Option configures the runner.
type Option func(*Runner)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// Runner executes the pipeline script through a shell.
type Runner struct {
	shell   string
	command string
	workDir string
	timeout time.Duration
	exec    Executor
	logger  *slog.Logger
}

// New constructs a runner from the pipeline config.
func New(cfg config.Pipeline, workDir string, logger *slog.Logger, opts ...Option) (*Runner, error) {
	command := strings.TrimSpace(cfg.Command)
	if command == "" {
		return nil, errors.New("pipeline command required")
	}
	shell := strings.TrimSpace(cfg.Shell)
	if shell == "" {
		shell = "/bin/sh"
	}
	runner := &Runner{
		shell:   shell,
		command: command,
		workDir: workDir,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		exec:    commandExecutor{},
		logger:  logging.NewComponentLogger(logger, "pipeline"),
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

// CommandLine returns the shell command line for labels. Each label is quoted
// so spaces and metacharacters reach the script unchanged.
func (r *Runner) CommandLine(labels Labels) string {
	return strings.Join([]string{
		r.command,
		shellQuote(labels.Subject),
		shellQuote(labels.Session),
		shellQuote(labels.Input),
	}, " ")
}

// Run executes the script and blocks until it exits. A non-zero exit aborts
// the run with an ErrExternalTool error.
func (r *Runner) Run(ctx context.Context, labels Labels) error {
	if err := labels.Validate(); err != nil {
		return err
	}
	logger := logging.WithContext(ctx, r.logger)

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	line := r.CommandLine(labels)
	logger.Info("pipeline starting",
		logging.String(logging.FieldEventType, "pipeline_start"),
		logging.String("command", line),
		logging.String("work_dir", r.workDir),
	)

	tail := newLineTail(tailLines)
	started := time.Now()
	err := r.exec.Run(runCtx, r.shell, []string{"-c", line}, r.workDir, func(stream Stream, text string) {
		tail.add(text)
		if stream == Stderr {
			logger.Info(text, logging.String("stream", string(stream)))
			return
		}
		logger.Info(text)
	})
	elapsed := time.Since(started)

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "pipeline", "run", fmt.Sprintf("exceeded %s", r.timeout), err)
		}
		message := "pipeline failed"
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			message = fmt.Sprintf("pipeline exited with status %d", exitErr.ExitCode())
		}
		if lines := tail.lines(); len(lines) > 0 {
			message += "; last output: " + strings.Join(lines, " | ")
		}
		logger.Error("pipeline failed",
			logging.String(logging.FieldEventType, "pipeline_failure"),
			logging.String(logging.FieldErrorHint, "inspect the pipeline output above"),
			logging.Duration("elapsed", elapsed),
			logging.Error(err),
		)
		return services.Wrap(services.ErrExternalTool, "pipeline", "run", message, err)
	}

	logger.Info("pipeline completed",
		logging.String(logging.FieldEventType, "pipeline_complete"),
		logging.Duration("elapsed", elapsed),
	)
	return nil
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

type lineTail struct {
	mu    sync.Mutex
	limit int
	buf   []string
}

func newLineTail(limit int) *lineTail {
	return &lineTail{limit: limit}
}

func (t *lineTail) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, line)
	if len(t.buf) > t.limit {
		t.buf = t.buf[len(t.buf)-t.limit:]
	}
}

func (t *lineTail) lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.buf...)
}
