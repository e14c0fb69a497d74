package curate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"synthgear/internal/demographics"
	"synthgear/internal/fileutil"
	"synthgear/internal/logging"
	"synthgear/internal/services"
)

// Artifact is one file written to the output directory.
type Artifact struct {
	Kind   string
	Path   string
	SHA256 string
}

// Curator publishes pipeline outputs for one run.
type Curator struct {
	workDir   string
	outputDir string
	logger    *slog.Logger
}

// New builds a curator reading from workDir and writing to outputDir.
func New(workDir, outputDir string, logger *slog.Logger) *Curator {
	return &Curator{
		workDir:   workDir,
		outputDir: outputDir,
		logger:    logging.NewComponentLogger(logger, "curate"),
	}
}

// Curate writes the four tables and copies the two images. Every input is
// checked and every table parsed before anything is written, so a missing or
// unreadable pipeline output leaves no partial output behind.
func (c *Curator) Curate(ctx context.Context, record demographics.Record) ([]Artifact, error) {
	logger := logging.WithContext(ctx, c.logger)
	label := strings.TrimSpace(record.Acquisition)
	if label == "" {
		return nil, services.Wrap(services.ErrValidation, "curate", "label", "acquisition label is empty", nil)
	}
	if err := c.checkInputs(); err != nil {
		return nil, err
	}
	merged, err := c.mergeTables(record)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(c.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	artifacts := make([]Artifact, 0, len(Outputs)+len(Images))
	for i, out := range Outputs {
		if err := ctx.Err(); err != nil {
			return artifacts, err
		}
		table := merged[i]
		target := filepath.Join(c.outputDir, fmt.Sprintf("%s_%s.csv", label, out.Kind))
		if err := fileutil.WriteFileAtomic(target, 0o644, func(w io.Writer) error {
			return table.Write(w)
		}); err != nil {
			return artifacts, fmt.Errorf("write %s: %w", target, err)
		}
		logger.Info("table written",
			logging.String("kind", out.Kind),
			logging.String("path", target),
			logging.Int("columns", len(table.Header)),
			logging.Int("rows", len(table.Rows)),
		)
		artifacts = append(artifacts, Artifact{Kind: out.Kind, Path: target})
	}

	for _, img := range Images {
		if err := ctx.Err(); err != nil {
			return artifacts, err
		}
		src := filepath.Join(c.workDir, img.Name)
		target := filepath.Join(c.outputDir, fmt.Sprintf("%s_%s", label, img.Name))
		sum, err := fileutil.CopyFileVerified(src, target)
		if err != nil {
			return artifacts, services.Wrap(services.ErrExternalTool, "curate", "image", fmt.Sprintf("copy %s", img.Name), err)
		}
		logger.Info("image copied",
			logging.String("path", target),
			logging.String("sha256", sum),
		)
		artifacts = append(artifacts, Artifact{Kind: "image", Path: target, SHA256: sum})
	}
	return artifacts, nil
}

// mergeTables reads every pipeline table and prepends the demographics row,
// returning one merged table per entry in Outputs.
func (c *Curator) mergeTables(record demographics.Record) ([]Table, error) {
	demo := Table{Header: demographics.Columns, Rows: [][]string{record.Values()}}
	merged := make([]Table, 0, len(Outputs))
	for _, out := range Outputs {
		tables := []Table{demo}
		for _, src := range out.Sources {
			table, err := ReadTable(filepath.Join(c.workDir, src.File), src.Comma)
			if err != nil {
				return nil, services.Wrap(services.ErrExternalTool, "curate", out.Kind, "unreadable pipeline table", err)
			}
			tables = append(tables, table.Drop(src.Drop...))
		}
		merged = append(merged, Concat(tables...))
	}
	return merged, nil
}

func (c *Curator) checkInputs() error {
	var missing []string
	for _, name := range RequiredFiles() {
		info, err := os.Stat(filepath.Join(c.workDir, name))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			missing = append(missing, name)
		case err != nil:
			return fmt.Errorf("stat %s: %w", name, err)
		case info.IsDir():
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrExternalTool, "curate", "inputs",
			fmt.Sprintf("pipeline outputs missing from %s: %s", c.workDir, strings.Join(missing, ", ")), nil)
	}
	return nil
}
