package age

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxMonths is the largest plausible age. Larger values are treated as unknown.
const MaxMonths = 1200

// Source records which metadata field produced an age.
type Source string

const (
	SourceCustomInfo Source = "custom_info"
	SourceDICOMAge   Source = "dicom_age"
	SourceDICOMDOB   Source = "dicom_dob"
	SourceUnknown    Source = "unknown"
)

func (s Source) String() string {
	if s == "" {
		return string(SourceUnknown)
	}
	return string(s)
}

// Bundle is the read-only metadata supplied for one session/acquisition.
// Empty strings mean the field was absent.
type Bundle struct {
	// CustomAgeMonths is the raw session info value (JSON number or numeric
	// string). Nil means absent.
	CustomAgeMonths  any
	PatientAge       string
	PatientBirthDate string
	SeriesDate       string
	PatientSex       string
}

// Empty reports whether no age-bearing field is present.
func (b Bundle) Empty() bool {
	return b.CustomAgeMonths == nil &&
		strings.TrimSpace(b.PatientAge) == "" &&
		strings.TrimSpace(b.PatientBirthDate) == "" &&
		strings.TrimSpace(b.SeriesDate) == ""
}

// Result is the outcome of Resolve.
type Result struct {
	Months int
	Known  bool
	Source Source
	// Reason explains an unknown result. Nil when Known.
	Reason error
}

// Unknown builds the unknown sentinel result.
func Unknown(reason error) Result {
	return Result{Source: SourceUnknown, Reason: reason}
}

// AgeString renders the age for tabular output; NA when unknown.
func (r Result) AgeString() string {
	if !r.Known {
		return "NA"
	}
	return strconv.Itoa(r.Months)
}

func (r Result) String() string {
	return fmt.Sprintf("%s (%s)", r.AgeString(), r.Source)
}

// customMonths interprets a custom age value. ok is false when the value is
// absent or not numeric.
func customMonths(value any) (float64, bool, error) {
	switch v := value.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return v, true, nil
	case float32:
		return float64(v), true, nil
	case int:
		return float64(v), true, nil
	case int64:
		return float64(v), true, nil
	case int32:
		return float64(v), true, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false, nil
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false, fmt.Errorf("custom age %q is not numeric", v)
		}
		return parsed, true, nil
	case fmt.Stringer:
		return customMonths(v.String())
	default:
		return 0, false, fmt.Errorf("custom age has unsupported type %T", value)
	}
}

func checkBounds(months int) error {
	if months <= 0 || months > MaxMonths {
		return fmt.Errorf("%w: %d months", ErrOutOfRange, months)
	}
	return nil
}

func truncateMonths(value float64) int {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return -1
	}
	if value > math.MaxInt32 {
		return math.MaxInt32
	}
	if value < math.MinInt32 {
		return math.MinInt32
	}
	return int(value)
}
