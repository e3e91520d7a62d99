package engine

import "fmt"

// AcquisitionError reports that a snapshot could not be sampled.
// The tick is skipped and detector state is left untouched.
type AcquisitionError struct {
	Err error
}

func (e *AcquisitionError) Error() string { return "acquire snapshot: " + e.Err.Error() }
func (e *AcquisitionError) Unwrap() error { return e.Err }

// PersistenceError reports that the event log could not be opened or
// appended to.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("event log %s: %v", e.Path, e.Err)
}
func (e *PersistenceError) Unwrap() error { return e.Err }

// ParseError reports a malformed line in the event log.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}
func (e *ParseError) Unwrap() error { return e.Err }
