package topology

import (
	"errors"
	"fmt"
)

// Resolution failure kinds. Match with errors.Is.
var (
	ErrNodeNotFound      = errors.New("node not found")
	ErrTypeNotFound      = errors.New("node type not found")
	ErrOperationNotFound = errors.New("operation not found")
)

// ParseError reports a topology document that could not be turned into a Model.
type ParseError struct {
	// Path is the document path, empty when parsed from memory.
	Path string

	// Reason describes what was wrong with the document.
	Reason string

	// Err is the underlying decode error, if any.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	where := e.Path
	if where == "" {
		where = "topology document"
	}
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", where, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", where, e.Reason)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ResolutionError reports why a (node, interface, operation) triple could not
// be resolved. Kind is one of ErrNodeNotFound, ErrTypeNotFound or
// ErrOperationNotFound.
type ResolutionError struct {
	Kind      error
	Node      string
	Type      string
	Interface string
	Operation string
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	switch e.Kind {
	case ErrNodeNotFound:
		return fmt.Sprintf("node %q not found", e.Node)
	case ErrTypeNotFound:
		return fmt.Sprintf("node %q references undeclared type %q", e.Node, e.Type)
	default:
		return fmt.Sprintf("operation %s.%s not defined for node %q (type %q)",
			e.Interface, e.Operation, e.Node, e.Type)
	}
}

// Unwrap exposes Kind to errors.Is.
func (e *ResolutionError) Unwrap() error {
	return e.Kind
}
