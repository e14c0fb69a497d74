package age

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"synthgear/internal/logging"
)

const dicomDateLayout = "20060102"

var nonDigits = regexp.MustCompile(`\D`)

// Resolver applies the age priority rules and logs why a source was skipped.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver builds a resolver that reports skipped or failed sources on logger.
func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{logger: logging.NewComponentLogger(logger, "age")}
}

// Resolve determines the age of a bundle without logging.
func Resolve(bundle Bundle) Result {
	return NewResolver(nil).Resolve(bundle)
}

// Resolve returns the first satisfied source: custom info, PatientAge, then
// birth date against series date. It never fails; unknown results carry a reason.
func (r *Resolver) Resolve(bundle Bundle) Result {
	result := r.resolve(bundle)
	if result.Known {
		r.logger.Debug("age resolved",
			logging.Int("age_months", result.Months),
			logging.String("age_source", result.Source.String()),
		)
	} else {
		logging.WarnWithContext(r.logger, "age unknown", "age_unknown",
			logging.Error(result.Reason),
			logging.String(logging.FieldErrorHint, "upload age_months to the session info or check the DICOM header"),
			logging.String(logging.FieldImpact, "age written as NA"),
		)
	}
	return result
}

func (r *Resolver) resolve(bundle Bundle) Result {
	if bundle.Empty() {
		return Unknown(fmt.Errorf("%w: no age metadata", ErrMissingField))
	}
	custom, present, err := customMonths(bundle.CustomAgeMonths)
	if err != nil {
		r.logger.Info("custom age ignored", logging.Error(err))
	}
	if present && custom != 0 {
		months := truncateMonths(custom)
		if err := checkBounds(months); err != nil {
			return Unknown(fmt.Errorf("custom info: %w", err))
		}
		return Result{Months: months, Known: true, Source: SourceCustomInfo}
	}

	if raw := strings.TrimSpace(bundle.PatientAge); raw != "" {
		months, err := parsePatientAge(raw)
		if err != nil {
			return Unknown(fmt.Errorf("patient age %q: %w", raw, err))
		}
		if months != 0 {
			if err := checkBounds(months); err != nil {
				return Unknown(fmt.Errorf("patient age %q: %w", raw, err))
			}
			return Result{Months: months, Known: true, Source: SourceDICOMAge}
		}
		r.logger.Debug("patient age converts to zero months; trying birth date", logging.String("patient_age", raw))
	}

	birth := strings.TrimSpace(bundle.PatientBirthDate)
	series := strings.TrimSpace(bundle.SeriesDate)
	if birth == "" || series == "" {
		return Unknown(fmt.Errorf("%w: no custom age, PatientAge, or PatientBirthDate with SeriesDate", ErrMissingField))
	}
	months, err := MonthsBetween(birth, series)
	if err != nil {
		return Unknown(err)
	}
	if err := checkBounds(months); err != nil {
		return Unknown(fmt.Errorf("birth date %s to series date %s: %w", birth, series, err))
	}
	return Result{Months: months, Known: true, Source: SourceDICOMDOB}
}

// parsePatientAge converts a DICOM AS value such as "045D" or "2Y" to months
// using integer division. Values too large for any unit are out of range.
func parsePatientAge(raw string) (int, error) {
	unit := strings.ToUpper(raw[len(raw)-1:])
	var divisor, factor int
	switch unit {
	case "D":
		divisor, factor = 30, 1
	case "W":
		divisor, factor = 4, 1
	case "M":
		divisor, factor = 1, 1
	case "Y":
		divisor, factor = 1, 12
	default:
		return 0, fmt.Errorf("%w %q", ErrUnknownUnit, unit)
	}
	digits := nonDigits.ReplaceAllString(raw, "")
	if digits == "" {
		return 0, ErrMalformedAge
	}
	value, err := strconv.Atoi(digits)
	if errors.Is(err, strconv.ErrRange) || value > (MaxMonths+1)*divisor/factor {
		return 0, fmt.Errorf("%w: %s%s", ErrOutOfRange, digits, unit)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedAge, err)
	}
	return value * factor / divisor, nil
}

// MonthsBetween returns the whole months from birth to series, both YYYYMMDD.
// The count drops by one when the series day-of-month precedes the birth day.
func MonthsBetween(birth, series string) (int, error) {
	birthDate, err := time.Parse(dicomDateLayout, birth)
	if err != nil {
		return 0, fmt.Errorf("%w: PatientBirthDate %q", ErrUnparseableDate, birth)
	}
	seriesDate, err := time.Parse(dicomDateLayout, series)
	if err != nil {
		return 0, fmt.Errorf("%w: SeriesDate %q", ErrUnparseableDate, series)
	}
	months := (seriesDate.Year()-birthDate.Year())*12 + int(seriesDate.Month()-birthDate.Month())
	if seriesDate.Day() < birthDate.Day() {
		months--
	}
	return months, nil
}
