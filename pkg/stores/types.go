package stores

import (
	"context"
	"time"

	"github.com/openfroyo/modelops/pkg/audit"
)

// AuditRecord is an audit record as stored in the mirror.
type AuditRecord struct {
	ID int64 `json:"id"`
	audit.Record
}

// AuditFilter narrows ListAuditRecords. Empty fields match everything.
type AuditFilter struct {
	Node      string
	Operation string
	Status    audit.Status
	AttemptID string
	Since     time.Time
	Limit     int
	Offset    int
}

// AttemptSummary collapses the records of one attempt into a single row.
type AttemptSummary struct {
	AttemptID  string       `json:"attempt_id"`
	Node       string       `json:"node"`
	Interface  string       `json:"interface"`
	Operation  string       `json:"operation"`
	Status     audit.Status `json:"status"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// Store defines the interface for the audit mirror.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Audit operations
	Append(ctx context.Context, rec audit.Record) error
	AppendAuditRecord(ctx context.Context, rec *AuditRecord) error
	ListAuditRecords(ctx context.Context, filter AuditFilter) ([]*AuditRecord, error)
	ListAttempts(ctx context.Context, limit int) ([]*AttemptSummary, error)

	// Utility
	HealthCheck(ctx context.Context) error
}

var _ Store = (*SQLiteStore)(nil)
var _ audit.Sink = (*SQLiteStore)(nil)
