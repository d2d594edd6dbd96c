package engine

import (
	"errors"
	"fmt"

	"github.com/openfroyo/modelops/pkg/topology"
)

// ErrorClass represents the classification of an error for retry and recovery logic.
type ErrorClass string

const (
	// ErrorClassTransient indicates a failure of the environment rather than
	// the document, such as an unreadable policy bundle.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent indicates an error in the request or the topology
	// document. Retrying without changing either fails the same way.
	ErrorClassPermanent ErrorClass = "permanent"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification for retry logic.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Resource is the node name that caused the error, if applicable.
	Resource string `json:"resource,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Resource != "" && e.Operation != "" {
		return fmt.Sprintf("[%s] %s (resource=%s, operation=%s): %s",
			e.Class, e.Message, e.Resource, e.Operation, e.unwrapMessage())
	}
	if e.Resource != "" {
		return fmt.Sprintf("[%s] %s (resource=%s): %s",
			e.Class, e.Message, e.Resource, e.unwrapMessage())
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.unwrapMessage())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// unwrapMessage returns the error message from the underlying error chain.
func (e *EngineError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassTransient,
		Message: message,
		Err:     err,
	}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassPermanent,
		Message: message,
		Err:     err,
	}
}

// WithResource adds resource context to an error.
func (e *EngineError) WithResource(resourceID string) *EngineError {
	e.Resource = resourceID
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Common error codes.
const (
	ErrCodeInternal            = "INTERNAL_ERROR"
	ErrCodeParse               = "PARSE_ERROR"
	ErrCodeNodeNotFound        = "NODE_NOT_FOUND"
	ErrCodeTypeNotFound        = "TYPE_NOT_FOUND"
	ErrCodeOperationNotFound   = "OPERATION_NOT_FOUND"
	ErrCodeUnsupportedArtifact = "UNSUPPORTED_ARTIFACT"
	ErrCodePolicyDenied        = "POLICY_DENIED"
)

// ErrPolicyDenied is matched by errors.Is for attempts rejected by a policy gate.
var ErrPolicyDenied = errors.New("denied by policy")

// UnsupportedArtifactError reports an implementation artifact whose
// classification has no runner.
type UnsupportedArtifactError struct {
	// Kind is the unrecognized classification, the lower-cased file extension.
	Kind string

	// Implementation is the implementation path as written in the document.
	Implementation string
}

// Error implements the error interface.
func (e *UnsupportedArtifactError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "(none)"
	}
	return fmt.Sprintf("unsupported artifact type %s for implementation %q", kind, e.Implementation)
}

// classify wraps err into an EngineError carrying the matching code. Errors
// that are already classified are returned unchanged.
func classify(err error) *EngineError {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee
	}

	var (
		pe *topology.ParseError
		re *topology.ResolutionError
		ue *UnsupportedArtifactError
	)
	switch {
	case errors.As(err, &pe):
		return NewPermanentError("invalid topology document", err).WithCode(ErrCodeParse)
	case errors.As(err, &re):
		e := NewPermanentError("operation resolution failed", err).
			WithResource(re.Node).
			WithOperation(re.Operation)
		switch {
		case errors.Is(err, topology.ErrNodeNotFound):
			e.Code = ErrCodeNodeNotFound
		case errors.Is(err, topology.ErrTypeNotFound):
			e.Code = ErrCodeTypeNotFound
			e.WithDetail("type", re.Type)
		default:
			e.Code = ErrCodeOperationNotFound
			e.WithDetail("interface", re.Interface)
		}
		return e
	case errors.As(err, &ue):
		return NewPermanentError("cannot build invocation", err).
			WithCode(ErrCodeUnsupportedArtifact).
			WithDetail("kind", ue.Kind)
	case errors.Is(err, ErrPolicyDenied):
		return NewPermanentError("operation rejected", err).WithCode(ErrCodePolicyDenied)
	default:
		return NewPermanentError("operation rejected", err).WithCode(ErrCodeInternal)
	}
}

// ErrorCode returns the code of the first EngineError in err's chain. Errors
// that carry none are classified first, so resolution and parse errors from
// the topology package report their specific codes.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	return classify(err).Code
}
