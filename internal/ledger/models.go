package ledger

import "time"

// Status is the lifecycle state of a recorded run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Output is a file published by a run.
type Output struct {
	Kind   string
	Path   string
	SHA256 string
}

// Run is one recorded gear invocation.
type Run struct {
	ID           string
	Subject      string
	Session      string
	Acquisition  string
	InputFile    string
	Status       Status
	AgeMonths    *int
	AgeSource    string
	Sex          string
	ErrorKind    string
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Outputs      []Output
}

// Duration returns the run's elapsed time, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Outcome is what a finished run reports back.
type Outcome struct {
	Status       Status
	Acquisition  string
	AgeMonths    *int
	AgeSource    string
	Sex          string
	ErrorKind    string
	ErrorMessage string
	Outputs      []Output
}
