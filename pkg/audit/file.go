package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultPath returns the audit log location for a topology document living
// in topologyDir: a logs/ directory next to the document's directory.
func DefaultPath(topologyDir string) string {
	return filepath.Clean(filepath.Join(topologyDir, "..", "logs", "audit.log"))
}

// FileLogger appends records as newline-delimited JSON.
//
// Each record is written with a single write on a file opened with O_APPEND,
// so lines from concurrent writers never interleave. The in-process mutex
// serializes writers sharing one FileLogger.
type FileLogger struct {
	path string
	mu   sync.Mutex
}

// NewFileLogger creates a logger writing to path. Nothing is touched on disk
// until the first Append.
func NewFileLogger(path string) *FileLogger {
	return &FileLogger{path: path}
}

// Path returns the log file path.
func (l *FileLogger) Path() string {
	return l.path
}

// Append writes rec as one JSON line, creating the containing directory if
// it does not exist.
func (l *FileLogger) Append(_ context.Context, rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}

	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close audit log: %w", err)
	}
	return nil
}

// ReadFile parses every record in a JSONL audit log.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
