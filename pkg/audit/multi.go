package audit

import (
	"context"
	"errors"
	"fmt"
)

// Named attaches a name to a sink for error reporting.
type Named struct {
	Name string
	Sink Sink
}

// Multi writes every record to all sinks. A failing sink does not stop the
// others; the returned error joins every failure.
type Multi []Named

// Append implements Sink.
func (m Multi) Append(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Sink.Append(ctx, rec); err != nil {
			errs = append(errs, &SinkError{Sink: s.Name, Err: err})
		}
	}
	return errors.Join(errs...)
}

// SinkError identifies which sink failed.
type SinkError struct {
	Sink string
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("audit sink %s: %v", e.Sink, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// FailedSinks lists the names of the sinks that contributed to err.
func FailedSinks(err error) []string {
	if err == nil {
		return nil
	}
	var names []string
	var walk func(error)
	walk = func(e error) {
		if se, ok := e.(*SinkError); ok {
			names = append(names, se.Sink)
			return
		}
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		if inner := errors.Unwrap(e); inner != nil {
			walk(inner)
		}
	}
	walk(err)
	if len(names) == 0 {
		names = []string{"unknown"}
	}
	return names
}
