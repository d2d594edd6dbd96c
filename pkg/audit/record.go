package audit

import (
	"context"
	"strings"
	"time"
)

// Status is the lifecycle marker of an audit record.
type Status string

const (
	StatusStarted Status = "STARTED"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Terminal reports whether the status closes an attempt.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Record is one immutable audit line describing the start or outcome of an
// operation attempt.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	AttemptID string    `json:"attempt_id,omitempty"`
	Node      string    `json:"node"`
	Interface string    `json:"interface,omitempty"`
	Operation string    `json:"operation"`
	Status    Status    `json:"status"`
	Details   string    `json:"details"`
}

// NewRecord stamps a record with the current UTC time. Details are trimmed.
func NewRecord(attemptID, node, iface, operation string, status Status, details string) Record {
	return Record{
		Timestamp: time.Now().UTC(),
		AttemptID: attemptID,
		Node:      node,
		Interface: iface,
		Operation: operation,
		Status:    status,
		Details:   strings.TrimSpace(details),
	}
}

// Sink appends audit records to durable storage. Append is the only
// operation; sinks never rewrite or delete records.
type Sink interface {
	Append(ctx context.Context, rec Record) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, rec Record) error

// Append calls f.
func (f SinkFunc) Append(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}
