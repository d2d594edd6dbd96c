package policy

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/openfroyo/modelops/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is logged but does not block the attempt.
	SeverityWarning Severity = "warning"

	// SeverityError blocks the attempt.
	SeverityError Severity = "error"

	// SeverityCritical blocks the attempt.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether a violation of this severity denies an attempt.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy represents a policy rule with its Rego code. The Rego module must
// define a deny set in its package.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Builtin marks policies shipped with modelops.
	Builtin bool `json:"builtin,omitempty"`

	// Source is the file the policy was loaded from, if any.
	Source string `json:"source,omitempty"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Node is the node the attempt targeted.
	Node string `json:"node,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// Decision is the outcome of evaluating every enabled policy for one request.
type Decision struct {
	// Allowed is false when any violation is blocking.
	Allowed bool `json:"allowed"`

	// Violations lists blocking violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists non-blocking violations.
	Warnings []Violation `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the policy was evaluated.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Artifact describes the built invocation in policy input.
type Artifact struct {
	Path    string   `json:"path"`
	Kind    string   `json:"kind"`
	Program string   `json:"program"`
	Args    []string `json:"args"`
}

// Request is the input document policies are evaluated against, exposed to
// Rego as input.
type Request struct {
	Node       string         `json:"node"`
	Type       string         `json:"type"`
	Interface  string         `json:"interface"`
	Operation  string         `json:"operation"`
	BaseDir    string         `json:"base_dir"`
	Root       string         `json:"root"`
	Artifact   Artifact       `json:"artifact"`
	Properties map[string]any `json:"properties"`
	Inputs     map[string]any `json:"inputs"`
}

// input converts the request to the generic form handed to the evaluator.
// Paths use forward slashes so policies are portable.
func (r Request) input() map[string]any {
	args := make([]any, len(r.Artifact.Args))
	for i, a := range r.Artifact.Args {
		args[i] = a
	}
	return map[string]any{
		"node":      r.Node,
		"type":      r.Type,
		"interface": r.Interface,
		"operation": r.Operation,
		"base_dir":  toSlash(r.BaseDir),
		"root":      toSlash(r.Root),
		"artifact": map[string]any{
			"path":    toSlash(r.Artifact.Path),
			"kind":    r.Artifact.Kind,
			"program": r.Artifact.Program,
			"args":    args,
		},
		"properties": orEmpty(r.Properties),
		"inputs":     orEmpty(r.Inputs),
	}
}

// RequestFromOperation builds a policy request from an engine request.
func RequestFromOperation(req engine.OperationRequest, root string) Request {
	return Request{
		Node:      req.Node,
		Type:      req.Type,
		Interface: req.Interface,
		Operation: req.Operation,
		BaseDir:   req.BaseDir,
		Root:      root,
		Artifact: Artifact{
			Path:    req.Invocation.ArtifactPath,
			Kind:    string(req.Invocation.Kind),
			Program: req.Invocation.Program,
			Args:    req.Invocation.Args,
		},
		Properties: req.Properties,
		Inputs:     req.Inputs,
	}
}

// DeniedError is returned by Check when a blocking violation is found. It
// matches engine.ErrPolicyDenied.
type DeniedError struct {
	Violations []Violation
}

// Error implements the error interface.
func (e *DeniedError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, fmt.Sprintf("%s: %s", v.Policy, v.Message))
	}
	return fmt.Sprintf("%s: %s", engine.ErrPolicyDenied, strings.Join(msgs, "; "))
}

// Unwrap exposes engine.ErrPolicyDenied to errors.Is.
func (e *DeniedError) Unwrap() error {
	return engine.ErrPolicyDenied
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func toSlash(p string) string {
	if p == "" {
		return ""
	}
	return filepath.ToSlash(p)
}
