package age

import "errors"

var (
	// ErrMissingField indicates none of the age sources were present.
	ErrMissingField = errors.New("age source missing")
	// ErrUnparseableDate indicates a birth or series date was not YYYYMMDD.
	ErrUnparseableDate = errors.New("unparseable date")
	// ErrUnknownUnit indicates a PatientAge suffix other than D, W, M or Y.
	ErrUnknownUnit = errors.New("unknown age unit")
	// ErrMalformedAge indicates a PatientAge string without a numeric part.
	ErrMalformedAge = errors.New("malformed age value")
	// ErrOutOfRange indicates a resolved age outside (0, MaxMonths].
	ErrOutOfRange = errors.New("age out of range")
)
