package engine

import "context"

// OperationRequest describes a resolved and built attempt for policy
// evaluation. It is assembled before anything is launched or audited.
type OperationRequest struct {
	Node       string         `json:"node"`
	Type       string         `json:"type"`
	Interface  string         `json:"interface"`
	Operation  string         `json:"operation"`
	BaseDir    string         `json:"base_dir"`
	Properties map[string]any `json:"properties"`
	Inputs     map[string]any `json:"inputs"`
	Invocation Invocation     `json:"invocation"`
}

// PolicyGate decides whether an attempt may run. A denial is an error that
// matches ErrPolicyDenied; any other error means the gate could not decide.
type PolicyGate interface {
	Check(ctx context.Context, req OperationRequest) error
}

// PolicyGateFunc adapts a function to the PolicyGate interface.
type PolicyGateFunc func(ctx context.Context, req OperationRequest) error

// Check calls f.
func (f PolicyGateFunc) Check(ctx context.Context, req OperationRequest) error {
	return f(ctx, req)
}
