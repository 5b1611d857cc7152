package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrFileNotFound is returned when the input file does not exist.
	ErrFileNotFound = errors.New("input file not found")
	// ErrUnsupportedFormat is returned for an input whose format cannot be determined.
	ErrUnsupportedFormat = errors.New("unsupported input format")
	// ErrMalformedRecord is returned when a record is missing fields or holds unparsable values.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrInvalidScale is returned when the cost scale is smaller than one.
	ErrInvalidScale = errors.New("cost scale must be at least 1")
)

// RecordError points at the record and field that failed to parse.
type RecordError struct {
	Line  int
	Field string
	Value string
	Err   error
}

func (e *RecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("line %d: %s: %v", e.Line, ErrMalformedRecord, e.Err)
	}
	return fmt.Sprintf("line %d: %s: field %s=%q: %v", e.Line, ErrMalformedRecord, e.Field, e.Value, e.Err)
}

func (e *RecordError) Unwrap() []error {
	return []error{ErrMalformedRecord, e.Err}
}
