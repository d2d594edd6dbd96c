package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/openfroyo/modelops/pkg/audit"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout stores timestamps as sortable UTC text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.cfg.Path
}

// Init opens the database, creating its directory if needed, and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	if dir := filepath.Dir(s.cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Create migration instance
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Append implements audit.Sink.
func (s *SQLiteStore) Append(ctx context.Context, rec audit.Record) error {
	return s.AppendAuditRecord(ctx, &AuditRecord{Record: rec})
}

// AppendAuditRecord inserts rec and sets its ID.
func (s *SQLiteStore) AppendAuditRecord(ctx context.Context, rec *AuditRecord) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO audit_records (timestamp, attempt_id, node, interface, operation, status, details)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		rec.Timestamp.UTC().Format(timeLayout),
		rec.AttemptID,
		rec.Node,
		rec.Interface,
		rec.Operation,
		string(rec.Status),
		rec.Details,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}

	// Get the auto-generated ID
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get audit record ID: %w", err)
	}

	rec.ID = id
	return nil
}

// ListAuditRecords lists audit records matching filter, newest first.
func (s *SQLiteStore) ListAuditRecords(ctx context.Context, filter AuditFilter) ([]*AuditRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT id, timestamp, attempt_id, node, interface, operation, status, details
		FROM audit_records
		WHERE (? IS NULL OR node = ?)
		  AND (? IS NULL OR operation = ?)
		  AND (? IS NULL OR status = ?)
		  AND (? IS NULL OR attempt_id = ?)
		  AND (? IS NULL OR timestamp >= ?)
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`

	node := nullable(filter.Node)
	op := nullable(filter.Operation)
	status := nullable(string(filter.Status))
	attempt := nullable(filter.AttemptID)
	var since any
	if !filter.Since.IsZero() {
		since = filter.Since.UTC().Format(timeLayout)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, query,
		node, node, op, op, status, status, attempt, attempt, since, since,
		limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer rows.Close()

	records := []*AuditRecord{}
	for rows.Next() {
		rec := &AuditRecord{}
		var ts, status string
		err := rows.Scan(
			&rec.ID,
			&ts,
			&rec.AttemptID,
			&rec.Node,
			&rec.Interface,
			&rec.Operation,
			&status,
			&rec.Details,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		if rec.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("audit record %d has invalid timestamp %q: %w", rec.ID, ts, err)
		}
		rec.Status = audit.Status(status)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}

	return records, nil
}

// ListAttempts summarizes the most recent attempts, newest first. An attempt
// without a terminal record is reported with status STARTED.
func (s *SQLiteStore) ListAttempts(ctx context.Context, limit int) ([]*AttemptSummary, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = -1
	}

	query := `
		SELECT attempt_id, node, interface, operation,
		       MIN(timestamp) AS started_at,
		       MAX(CASE WHEN status <> 'STARTED' THEN timestamp END) AS finished_at,
		       COALESCE(MAX(CASE WHEN status <> 'STARTED' THEN status END), 'STARTED') AS final_status
		FROM audit_records
		WHERE attempt_id <> ''
		GROUP BY attempt_id, node, interface, operation
		ORDER BY MIN(id) DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	attempts := []*AttemptSummary{}
	for rows.Next() {
		a := &AttemptSummary{}
		var started, status string
		var finished sql.NullString
		if err := rows.Scan(&a.AttemptID, &a.Node, &a.Interface, &a.Operation, &started, &finished, &status); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		if a.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("attempt %s has invalid start time: %w", a.AttemptID, err)
		}
		if finished.Valid {
			t, err := time.Parse(timeLayout, finished.String)
			if err != nil {
				return nil, fmt.Errorf("attempt %s has invalid finish time: %w", a.AttemptID, err)
			}
			a.FinishedAt = &t
		}
		a.Status = audit.Status(status)
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempts: %w", err)
	}

	return attempts, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
