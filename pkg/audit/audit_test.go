package audit

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
)

func TestDefaultPath(t *testing.T) {
	got := DefaultPath(filepath.Join("/srv", "platform", "modeling"))
	want := filepath.Join("/srv", "platform", "logs", "audit.log")
	if got != want {
		t.Errorf("DefaultPath() = %q, want %q", got, want)
	}
}

func TestNewRecordTrimsDetails(t *testing.T) {
	rec := NewRecord("a-1", "OpsVM", "Standard", "start", StatusSuccess, "\n  started ok \n")
	if rec.Details != "started ok" {
		t.Errorf("Details = %q", rec.Details)
	}
	if rec.Timestamp.IsZero() || rec.Timestamp.Location().String() != "UTC" {
		t.Errorf("Timestamp = %v, want UTC now", rec.Timestamp)
	}
}

func TestFileLoggerAppend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "logs", "audit.log")
	logger := NewFileLogger(path)
	ctx := context.Background()

	first := NewRecord("a-1", "OpsVM", "Standard", "start", StatusStarted, "Command: pwsh start.ps1")
	second := NewRecord("a-1", "OpsVM", "Standard", "start", StatusFailed, "permission denied\n")

	if err := logger.Append(ctx, first); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := logger.Append(ctx, second); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), data)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &raw); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	for _, field := range []string{"timestamp", "node", "operation", "status", "details"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("record is missing field %q: %s", field, lines[1])
		}
	}
	if raw["status"] != "FAILED" || raw["details"] != "permission denied" {
		t.Errorf("unexpected record: %s", lines[1])
	}

	records, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(records) != 2 || records[0].Status != StatusStarted || records[1].Status != StatusFailed {
		t.Errorf("ReadFile() = %+v", records)
	}
	if !records[0].Timestamp.Equal(first.Timestamp) {
		t.Errorf("timestamp round trip: %v vs %v", records[0].Timestamp, first.Timestamp)
	}
}

func TestFileLoggerConcurrentAppendsStayLineAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger := NewFileLogger(path)
	details := strings.Repeat("x", 8192)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := NewRecord("a", "N", "Standard", "op", StatusSuccess, details)
			if err := logger.Append(context.Background(), rec); err != nil {
				t.Errorf("Append() error = %v", err)
			}
		}()
	}
	wg.Wait()

	records, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(records) != 20 {
		t.Errorf("got %d records, want 20", len(records))
	}
}

func TestFileLoggerUnwritableLocation(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "logs")
	if err := os.WriteFile(blocker, []byte("not a directory"), 0o644); err != nil {
		t.Fatal(err)
	}

	logger := NewFileLogger(filepath.Join(blocker, "audit.log"))
	err := logger.Append(context.Background(), NewRecord("a", "N", "", "op", StatusStarted, ""))
	if err == nil {
		t.Fatal("Append() succeeded, want error")
	}
}

func TestMulti(t *testing.T) {
	var got []Record
	ok := SinkFunc(func(_ context.Context, rec Record) error {
		got = append(got, rec)
		return nil
	})
	failing := SinkFunc(func(context.Context, Record) error {
		return errors.New("disk full")
	})

	m := Multi{{Name: "broken", Sink: failing}, {Name: "memory", Sink: ok}}
	err := m.Append(context.Background(), NewRecord("a", "N", "", "op", StatusStarted, ""))
	if err == nil {
		t.Fatal("Multi.Append() error = nil, want failure from broken sink")
	}
	if len(got) != 1 {
		t.Errorf("healthy sink received %d records, want 1", len(got))
	}
	if names := FailedSinks(err); !reflect.DeepEqual(names, []string{"broken"}) {
		t.Errorf("FailedSinks() = %v", names)
	}
	if FailedSinks(nil) != nil {
		t.Error("FailedSinks(nil) should be nil")
	}
}
