package demographics

import (
	"synthgear/internal/age"
)

// Columns is the header of the one-row demographics table.
var Columns = []string{"subject", "session", "age", "age_source", "sex", "acquisition"}

// Record is the demographics row joined onto every output table.
type Record struct {
	Subject     string
	Session     string
	Age         age.Result
	Sex         string
	Acquisition string
}

// Values returns the row in Columns order.
func (r Record) Values() []string {
	return []string{
		r.Subject,
		r.Session,
		r.Age.AgeString(),
		r.Age.Source.String(),
		r.Sex,
		r.Acquisition,
	}
}
