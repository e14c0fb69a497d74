package gear

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"synthgear/internal/gearcontext"
	"synthgear/internal/logging"
	"synthgear/internal/services"
	"synthgear/internal/services/flywheel"
)

// Manifest config keys that override platform label lookup.
const (
	configSubjectLabel = "subject_label"
	configSessionLabel = "session_label"
)

const destinationSession = "session"

// identity is what label resolution learns about the run's session.
type identity struct {
	SubjectLabel string
	SessionLabel string
	SessionID    string
}

// resolveIdentity returns the subject and session labels. Manifest overrides
// win; the platform is consulted through the destination container for
// whatever is still missing, and for the session id used by demographics.
func resolveIdentity(ctx context.Context, logger *slog.Logger, manifest *gearcontext.Manifest, platform Platform) (identity, error) {
	id := identity{
		SubjectLabel: manifest.ConfigString(configSubjectLabel),
		SessionLabel: manifest.ConfigString(configSessionLabel),
	}
	overridden := id.SubjectLabel != "" && id.SessionLabel != ""

	destID := manifest.DestinationID()
	if platform == nil || destID == "" {
		if overridden {
			return id, nil
		}
		return identity{}, services.Wrap(services.ErrConfiguration, "labels", "resolve",
			"labels not configured and no platform destination available", nil)
	}

	parents, err := destinationParents(ctx, platform, manifest.Destination)
	if err != nil {
		if ctx.Err() != nil {
			return identity{}, ctx.Err()
		}
		missing := flywheel.IsNotFound(err)
		if overridden {
			hint := "check platform connectivity"
			if missing {
				hint = "destination is not visible to this api key"
			}
			logging.WarnWithContext(logger, "destination lookup failed", "destination_lookup_failed",
				logging.String("destination_id", destID),
				logging.String(logging.FieldImpact, "demographics limited to local input"),
				logging.String(logging.FieldErrorHint, hint),
				logging.Error(err),
			)
			return id, nil
		}
		if missing {
			return identity{}, services.Wrap(services.ErrNotFound, "labels", "destination",
				fmt.Sprintf("destination %s not found; set subject_label and session_label to run without it", destID), err)
		}
		return identity{}, err
	}
	id.SessionID = parents.Session

	if id.SubjectLabel == "" {
		if parents.Subject == "" {
			return identity{}, services.Wrap(services.ErrNotFound, "labels", "subject", "destination has no parent subject", nil)
		}
		subject, err := platform.GetSubject(ctx, parents.Subject)
		if err != nil {
			return identity{}, err
		}
		id.SubjectLabel = firstNonEmpty(subject.Label, subject.Code)
	}
	if id.SessionLabel == "" {
		if parents.Session == "" {
			return identity{}, services.Wrap(services.ErrNotFound, "labels", "session", "destination has no parent session", nil)
		}
		session, err := platform.GetSession(ctx, parents.Session)
		if err != nil {
			return identity{}, err
		}
		id.SessionLabel = strings.TrimSpace(session.Label)
	}
	if id.SubjectLabel == "" || id.SessionLabel == "" {
		return identity{}, services.Wrap(services.ErrValidation, "labels", "resolve", "platform returned an empty label", nil)
	}
	return id, nil
}

// destinationParents maps the destination container to its parent ids. Gear
// runs usually write into an analysis; a session destination is its own
// session parent.
func destinationParents(ctx context.Context, platform Platform, dest gearcontext.Destination) (flywheel.Parents, error) {
	if strings.EqualFold(dest.Type, destinationSession) {
		session, err := platform.GetSession(ctx, dest.ID)
		if err != nil {
			return flywheel.Parents{}, err
		}
		parents := session.Parents
		parents.Session = session.ID
		if parents.Session == "" {
			parents.Session = dest.ID
		}
		return parents, nil
	}
	analysis, err := platform.GetAnalysis(ctx, dest.ID)
	if err != nil {
		return flywheel.Parents{}, err
	}
	return analysis.Parents, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
