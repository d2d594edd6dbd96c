package engine

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/openfroyo/modelops/pkg/audit"
	"github.com/openfroyo/modelops/pkg/telemetry"
)

func TestExecutor_Run(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus ResultStatus
		wantOutput string
		wantError  string
		wantExit   int
	}{
		{
			name:       "success",
			body:       `echo "  started $1 $2  "; echo "noise" >&2`,
			wantStatus: StatusSuccess,
			wantOutput: "started -region eastus",
		},
		{
			name:       "non-zero exit with stderr",
			body:       `echo "permission denied" >&2; exit 1`,
			wantStatus: StatusFailed,
			wantError:  "permission denied",
			wantExit:   1,
		},
		{
			name:       "non-zero exit without stderr",
			body:       `echo "partial output"; exit 3`,
			wantStatus: StatusFailed,
			wantError:  "exit status 3",
			wantExit:   3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			runner := writeScript(t, dir, "runner", tt.body)
			logPath := filepath.Join(dir, "logs", "audit.log")
			exec := NewExecutor(audit.NewFileLogger(logPath))

			inv := Invocation{Program: runner, Args: []string{"-region", "eastus"}, Kind: ArtifactPowerShell}
			res := exec.Run(context.Background(), Attempt{ID: "a-1", Node: "OpsVM", Interface: "Standard", Operation: "start"}, inv)

			if res.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", res.Status, tt.wantStatus)
			}
			if res.Output != tt.wantOutput {
				t.Errorf("Output = %q, want %q", res.Output, tt.wantOutput)
			}
			if res.Error != tt.wantError {
				t.Errorf("Error = %q, want %q", res.Error, tt.wantError)
			}
			if res.ExitCode != tt.wantExit {
				t.Errorf("ExitCode = %d, want %d", res.ExitCode, tt.wantExit)
			}

			recs := readAudit(t, logPath)
			if len(recs) != 2 {
				t.Fatalf("audit records = %d, want 2", len(recs))
			}
			if recs[0].Status != audit.StatusStarted {
				t.Errorf("first status = %q, want STARTED", recs[0].Status)
			}
			if recs[0].Details != "Command: "+inv.String() {
				t.Errorf("STARTED details = %q", recs[0].Details)
			}
			wantTerminal, wantDetails := audit.StatusSuccess, tt.wantOutput
			if tt.wantStatus == StatusFailed {
				wantTerminal, wantDetails = audit.StatusFailed, tt.wantError
			}
			if recs[1].Status != wantTerminal {
				t.Errorf("terminal status = %q, want %q", recs[1].Status, wantTerminal)
			}
			if recs[1].Details != wantDetails {
				t.Errorf("terminal details = %q, want %q", recs[1].Details, wantDetails)
			}
			for _, r := range recs {
				if r.AttemptID != "a-1" || r.Node != "OpsVM" || r.Operation != "start" {
					t.Errorf("record identity = %+v", r)
				}
			}
			if recs[1].Timestamp.Before(recs[0].Timestamp) {
				t.Error("terminal record is older than STARTED")
			}
		})
	}
}

func TestExecutor_LaunchFailure(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "audit.log")
	exec := NewExecutor(audit.NewFileLogger(logPath))

	res := exec.Run(context.Background(), Attempt{ID: "a-1", Node: "OpsVM", Operation: "start"},
		Invocation{Program: filepath.Join(dir, "missing-runner")})

	if res.Succeeded() {
		t.Fatal("missing binary reported success")
	}
	if res.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", res.ExitCode)
	}
	if res.Error == "" {
		t.Error("launch failure has no error text")
	}

	recs := readAudit(t, logPath)
	if len(recs) != 2 || recs[1].Status != audit.StatusFailed {
		t.Fatalf("records = %+v, want STARTED then FAILED", recs)
	}
	if recs[1].Details != res.Error {
		t.Errorf("FAILED details = %q, want %q", recs[1].Details, res.Error)
	}
}

func TestExecutor_Timeout(t *testing.T) {
	dir := t.TempDir()
	runner := writeScript(t, dir, "slow", "exec sleep 10")
	logPath := filepath.Join(dir, "audit.log")
	exec := NewExecutor(audit.NewFileLogger(logPath), WithTimeout(100*time.Millisecond))

	start := time.Now()
	res := exec.Run(context.Background(), Attempt{ID: "a-1", Node: "OpsVM", Operation: "start"},
		Invocation{Program: runner})

	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Run took %v, timeout not applied", elapsed)
	}
	if res.Succeeded() {
		t.Fatal("timed out process reported success")
	}
	if !strings.Contains(res.Error, "process terminated") {
		t.Errorf("Error = %q, want termination message", res.Error)
	}
	if recs := readAudit(t, logPath); len(recs) != 2 {
		t.Errorf("audit records = %d, want 2", len(recs))
	}
}

func TestExecutor_AuditFailureDoesNotAlterResult(t *testing.T) {
	dir := t.TempDir()
	runner := writeScript(t, dir, "runner", `echo ok`)

	var logs bytes.Buffer
	metrics, err := telemetry.NewMetrics(telemetry.DefaultConfig().Metrics)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	failing := audit.Multi{{Name: "file", Sink: audit.SinkFunc(func(context.Context, audit.Record) error {
		return errors.New("read-only file system")
	})}}
	exec := NewExecutor(failing,
		WithExecutorLogger(zerolog.New(&logs)),
		WithExecutorMetrics(metrics),
	)

	res := exec.Run(context.Background(), Attempt{ID: "a-1", Node: "OpsVM", Operation: "start"},
		Invocation{Program: runner, Kind: ArtifactPowerShell})

	if !res.Succeeded() || res.Output != "ok" {
		t.Errorf("result = %+v, want success with output ok", res)
	}
	if n := strings.Count(logs.String(), "failed to write audit record"); n != 2 {
		t.Errorf("audit failure log lines = %d, want 2", n)
	}
	if n, err := testutil.GatherAndCount(metrics.Registry(), "modelops_audit_write_failures_total"); err != nil || n != 1 {
		t.Errorf("audit failure series = %d (err %v), want 1", n, err)
	}
}

func TestExecutor_Cancellation(t *testing.T) {
	dir := t.TempDir()
	runner := writeScript(t, dir, "slow", "exec sleep 10")
	exec := NewExecutor(audit.SinkFunc(func(context.Context, audit.Record) error { return nil }))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	res := exec.Run(ctx, Attempt{ID: "a-1"}, Invocation{Program: runner})
	if res.Succeeded() {
		t.Fatal("cancelled process reported success")
	}
}
