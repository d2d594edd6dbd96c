package stores

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/openfroyo/modelops/pkg/audit"
)

// setupTestStore creates a migrated SQLite store in a temporary directory.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "audit.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	return store
}

func record(attempt, node, op string, status audit.Status, details string) audit.Record {
	return audit.NewRecord(attempt, node, "Standard", op, status, details)
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "nested", "dir", "audit.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestNewSQLiteStoreRequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestUninitializedStore(t *testing.T) {
	store, _ := NewSQLiteStore(Config{Path: filepath.Join(t.TempDir(), "audit.db")})
	ctx := context.Background()
	if err := store.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck should fail before Init")
	}
	if err := store.Migrate(ctx); err == nil {
		t.Error("Migrate should fail before Init")
	}
	if err := store.Append(ctx, record("a", "n", "op", audit.StatusStarted, "")); err == nil {
		t.Error("Append should fail before Init")
	}
}

// TestStoreMigrations tests that migrations are idempotent
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}

	var count int
	if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_records").Scan(&count); err != nil {
		t.Fatalf("audit_records table is not accessible: %v", err)
	}
}

func TestAppendAndList(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	recs := []audit.Record{
		record("a-1", "OpsVM", "start", audit.StatusStarted, "Command: pwsh start.ps1"),
		record("a-1", "OpsVM", "start", audit.StatusSuccess, "ok"),
		record("a-2", "WebVM", "stop", audit.StatusStarted, "Command: pwsh stop.ps1"),
		record("a-2", "WebVM", "stop", audit.StatusFailed, "permission denied"),
	}
	for _, r := range recs {
		if err := store.Append(ctx, r); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	all, err := store.ListAuditRecords(ctx, AuditFilter{})
	if err != nil {
		t.Fatalf("ListAuditRecords() error = %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("got %d records, want 4", len(all))
	}
	if all[0].Status != audit.StatusFailed || all[0].Details != "permission denied" {
		t.Errorf("newest record = %+v", all[0])
	}
	if !all[3].Timestamp.Equal(recs[0].Timestamp) {
		t.Errorf("timestamp = %v, want %v", all[3].Timestamp, recs[0].Timestamp)
	}

	tests := []struct {
		name   string
		filter AuditFilter
		want   int
	}{
		{name: "by node", filter: AuditFilter{Node: "OpsVM"}, want: 2},
		{name: "by status", filter: AuditFilter{Status: audit.StatusFailed}, want: 1},
		{name: "by operation", filter: AuditFilter{Operation: "stop"}, want: 2},
		{name: "by attempt", filter: AuditFilter{AttemptID: "a-1"}, want: 2},
		{name: "combined", filter: AuditFilter{Node: "WebVM", Status: audit.StatusStarted}, want: 1},
		{name: "limit", filter: AuditFilter{Limit: 3}, want: 3},
		{name: "offset", filter: AuditFilter{Limit: 10, Offset: 3}, want: 1},
		{name: "since future", filter: AuditFilter{Since: time.Now().Add(time.Hour)}, want: 0},
		{name: "no match", filter: AuditFilter{Node: "Missing"}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListAuditRecords(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListAuditRecords() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d records, want %d", len(got), tt.want)
			}
		})
	}
}

func TestAuditRecordsAreAppendOnly(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec := &AuditRecord{Record: record("a-1", "OpsVM", "start", audit.StatusStarted, "x")}
	if err := store.AppendAuditRecord(ctx, rec); err != nil {
		t.Fatalf("AppendAuditRecord() error = %v", err)
	}
	if rec.ID == 0 {
		t.Error("ID not set")
	}

	if _, err := store.db.ExecContext(ctx, "UPDATE audit_records SET details = 'tampered' WHERE id = ?", rec.ID); err == nil {
		t.Error("UPDATE succeeded on audit_records")
	}
	if _, err := store.db.ExecContext(ctx, "DELETE FROM audit_records WHERE id = ?", rec.ID); err == nil {
		t.Error("DELETE succeeded on audit_records")
	}

	got, _ := store.ListAuditRecords(ctx, AuditFilter{})
	if len(got) != 1 || got[0].Details != "x" {
		t.Errorf("records after tampering = %+v", got)
	}
}

func TestStatusConstraint(t *testing.T) {
	store := setupTestStore(t)
	err := store.Append(context.Background(), record("a-1", "OpsVM", "start", audit.Status("RUNNING"), ""))
	if err == nil {
		t.Error("unknown status accepted")
	}
}

func TestListAttempts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, r := range []audit.Record{
		record("a-1", "OpsVM", "start", audit.StatusStarted, ""),
		record("a-1", "OpsVM", "start", audit.StatusSuccess, "ok"),
		record("a-2", "WebVM", "stop", audit.StatusStarted, ""),
		record("a-2", "WebVM", "stop", audit.StatusFailed, "boom"),
		record("a-3", "OpsVM", "deploy", audit.StatusStarted, ""),
		record("", "legacy", "start", audit.StatusStarted, ""),
	} {
		if err := store.Append(ctx, r); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	attempts, err := store.ListAttempts(ctx, 0)
	if err != nil {
		t.Fatalf("ListAttempts() error = %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("got %d attempts, want 3", len(attempts))
	}

	want := []struct {
		id       string
		status   audit.Status
		finished bool
	}{
		{"a-3", audit.StatusStarted, false},
		{"a-2", audit.StatusFailed, true},
		{"a-1", audit.StatusSuccess, true},
	}
	for i, w := range want {
		a := attempts[i]
		if a.AttemptID != w.id || a.Status != w.status || (a.FinishedAt != nil) != w.finished {
			t.Errorf("attempt %d = %+v, want %s %s finished=%v", i, a, w.id, w.status, w.finished)
		}
	}

	limited, _ := store.ListAttempts(ctx, 1)
	if len(limited) != 1 || limited[0].AttemptID != "a-3" {
		t.Errorf("ListAttempts(1) = %+v", limited)
	}
}

func TestStoreAsAuditSink(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	dir := t.TempDir()
	sink := audit.Multi{
		{Name: "file", Sink: audit.NewFileLogger(filepath.Join(dir, "audit.log"))},
		{Name: "sqlite", Sink: store},
	}
	if err := sink.Append(ctx, record("a-1", "OpsVM", "start", audit.StatusStarted, "")); err != nil {
		t.Fatalf("Multi.Append() error = %v", err)
	}

	fromFile, err := audit.ReadFile(filepath.Join(dir, "audit.log"))
	if err != nil || len(fromFile) != 1 {
		t.Fatalf("file records = %v (err %v)", fromFile, err)
	}
	fromDB, _ := store.ListAuditRecords(ctx, AuditFilter{})
	if len(fromDB) != 1 || fromDB[0].AttemptID != "a-1" {
		t.Errorf("db records = %+v", fromDB)
	}
}
