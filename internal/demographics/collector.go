package demographics

import (
	"context"
	"log/slog"
	"strings"

	"synthgear/internal/age"
	"synthgear/internal/config"
	"synthgear/internal/dicomhdr"
	"synthgear/internal/logging"
	"synthgear/internal/services/flywheel"
)

// Platform is the subset of the platform client the collector needs.
type Platform interface {
	GetSession(ctx context.Context, id string) (flywheel.Session, error)
	ListAcquisitions(ctx context.Context, sessionID string) ([]flywheel.Acquisition, error)
	GetFileInfo(ctx context.Context, acquisitionID, fileName string) (map[string]any, error)
}

// HeaderReader reads a header from a local file.
type HeaderReader func(path string) (dicomhdr.Header, error)

// Target identifies the session to collect demographics for.
type Target struct {
	SubjectLabel     string
	SessionLabel     string
	SessionID        string
	AcquisitionLabel string
	// InputPath is the local input file, read as DICOM when the platform
	// yields no header.
	InputPath string
}

// Collector gathers demographics from the platform.
type Collector struct {
	platform   Platform
	settings   config.Demographics
	readHeader HeaderReader
	resolver   *age.Resolver
	logger     *slog.Logger
}

// Option configures a Collector.
type Option func(*Collector)

// WithHeaderReader overrides local DICOM parsing (primarily for tests).
func WithHeaderReader(reader HeaderReader) Option {
	return func(c *Collector) {
		if reader != nil {
			c.readHeader = reader
		}
	}
}

// NewCollector builds a collector. platform may be nil, in which case only
// the local fallback is used.
func NewCollector(platform Platform, settings config.Demographics, logger *slog.Logger, opts ...Option) *Collector {
	logger = logging.NewComponentLogger(logger, "demographics")
	c := &Collector{
		platform:   platform,
		settings:   settings,
		readHeader: dicomhdr.ReadFile,
		resolver:   age.NewResolver(logger),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect builds the demographics record. It only fails when ctx is done.
func (c *Collector) Collect(ctx context.Context, target Target) (Record, error) {
	logger := logging.WithContext(ctx, c.logger)
	record := Record{
		Subject:     target.SubjectLabel,
		Session:     target.SessionLabel,
		Sex:         dicomhdr.SexUnknown,
		Acquisition: target.AcquisitionLabel,
	}

	var custom any
	var header dicomhdr.Header
	found := false

	if c.platform != nil && strings.TrimSpace(target.SessionID) != "" {
		session, err := c.platform.GetSession(ctx, target.SessionID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Record{}, ctxErr
			}
			logging.WarnWithContext(logger, "session lookup failed", "session_lookup_failed",
				logging.String("session_id", target.SessionID),
				logging.Error(err),
			)
		} else {
			if session.Label != "" && record.Session == "" {
				record.Session = session.Label
			}
			custom = session.Info[c.settings.CustomAgeKey]
		}

		var sex string
		header, sex, found, err = c.collectHeaders(ctx, logger, target.SessionID)
		if err != nil {
			return Record{}, err
		}
		if sex != "" {
			record.Sex = sex
		}
	}

	if !found && c.settings.LocalDICOMFallback && strings.TrimSpace(target.InputPath) != "" {
		local, err := c.readHeader(target.InputPath)
		switch {
		case err != nil:
			logger.Debug("input is not readable as dicom", logging.String("path", target.InputPath), logging.Error(err))
		case local.Empty():
			logger.Debug("input dicom carries no demographic tags", logging.String("path", target.InputPath))
		default:
			header = local
			found = true
			if local.HasSex() {
				record.Sex = local.PatientSex
			}
			logger.Info("using local dicom header", logging.String("path", target.InputPath))
		}
	}

	if !found && custom == nil {
		logging.WarnWithContext(logger, "no demographic source found", "demographics_missing",
			logging.String(logging.FieldErrorHint, "check the session has a T2 axial DICOM acquisition"),
			logging.String(logging.FieldImpact, "age and sex written as NA"),
		)
	}

	record.Age = c.resolver.Resolve(header.Bundle(custom))
	logger.Info("demographics collected",
		logging.String(logging.FieldEventType, "demographics_collected"),
		logging.String("age", record.Age.AgeString()),
		logging.String("age_source", record.Age.Source.String()),
		logging.String("sex", record.Sex),
		logging.String("acquisition", record.Acquisition),
	)
	return record, nil
}

// collectHeaders fetches the DICOM headers of every matching acquisition.
// The last fetched header is returned for age; sex comes from the last header
// that carries it.
func (c *Collector) collectHeaders(ctx context.Context, logger *slog.Logger, sessionID string) (dicomhdr.Header, string, bool, error) {
	acquisitions, err := c.platform.ListAcquisitions(ctx, sessionID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return dicomhdr.Header{}, "", false, ctxErr
		}
		logging.WarnWithContext(logger, "acquisition listing failed", "acquisition_list_failed",
			logging.String("session_id", sessionID),
			logging.Error(err),
		)
		return dicomhdr.Header{}, "", false, nil
	}

	var (
		last  dicomhdr.Header
		sex   string
		found bool
	)
	for _, acq := range acquisitions {
		if !MatchAcquisition(acq.Label, c.settings.AcquisitionInclude, c.settings.AcquisitionExclude) {
			continue
		}
		logger.Debug("acquisition matched", logging.String("acquisition", acq.Label))
		for _, file := range acq.DICOMFiles() {
			info, err := c.platform.GetFileInfo(ctx, acq.ID, file.Name)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return dicomhdr.Header{}, "", false, ctxErr
				}
				logging.WarnWithContext(logger, "file info lookup failed", "file_info_failed",
					logging.String("acquisition", acq.Label),
					logging.String("file", file.Name),
					logging.Error(err),
				)
				continue
			}
			header := dicomhdr.FromInfo(info)
			last = header
			found = true
			if header.HasSex() {
				sex = header.PatientSex
			}
		}
	}
	if !found {
		logger.Info("no matching dicom acquisition",
			logging.String("include", strings.Join(c.settings.AcquisitionInclude, ",")),
			logging.String("exclude", strings.Join(c.settings.AcquisitionExclude, ",")),
		)
	}
	return last, sex, found, nil
}

// MatchAcquisition reports whether label contains every include token and no
// exclude token. Matching is case-sensitive.
func MatchAcquisition(label string, include, exclude []string) bool {
	if len(include) == 0 {
		return false
	}
	for _, token := range include {
		if !strings.Contains(label, token) {
			return false
		}
	}
	for _, token := range exclude {
		if strings.Contains(label, token) {
			return false
		}
	}
	return true
}
