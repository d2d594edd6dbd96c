package engine

import (
	"errors"
	"strings"
	"time"
)

// ArtifactKind classifies an implementation artifact by the runner it needs.
type ArtifactKind string

const (
	// ArtifactTerraform is a declarative provisioning file (.tf).
	ArtifactTerraform ArtifactKind = "terraform"

	// ArtifactPowerShell is a PowerShell script (.ps1).
	ArtifactPowerShell ArtifactKind = "powershell"

	// ArtifactShell is a POSIX shell script (.sh).
	ArtifactShell ArtifactKind = "shell"

	// ArtifactPython is a Python script (.py).
	ArtifactPython ArtifactKind = "python"
)

// Invocation is a fully resolved external process call. It is built by the
// Builder and consumed immediately by the Executor.
type Invocation struct {
	// Program is the executable name or path.
	Program string `json:"program"`

	// Args are the ordered arguments passed to Program.
	Args []string `json:"args"`

	// Dir is the working directory; empty means inherit.
	Dir string `json:"dir,omitempty"`

	// Kind is the artifact classification that selected Program.
	Kind ArtifactKind `json:"kind"`

	// ArtifactPath is the absolute path of the implementation artifact.
	ArtifactPath string `json:"artifact_path"`
}

// Argv returns Program followed by Args.
func (i Invocation) Argv() []string {
	argv := make([]string, 0, len(i.Args)+1)
	argv = append(argv, i.Program)
	return append(argv, i.Args...)
}

// String renders the invocation as a space-joined command line for logs.
func (i Invocation) String() string {
	return strings.Join(i.Argv(), " ")
}

// ResultStatus is the caller-facing outcome of an attempt.
type ResultStatus string

const (
	// StatusSuccess means the process exited with code zero.
	StatusSuccess ResultStatus = "success"

	// StatusFailed means the process was launched or attempted and did not
	// succeed: non-zero exit, launch error, timeout or cancellation.
	StatusFailed ResultStatus = "failed"

	// StatusError means the attempt never reached the executor.
	StatusError ResultStatus = "error"
)

// ExecutionResult is the classified outcome of running one invocation.
// Status is either StatusSuccess or StatusFailed.
type ExecutionResult struct {
	// Status is the classification of the process outcome.
	Status ResultStatus `json:"status"`

	// Output is the trimmed standard output on success.
	Output string `json:"output,omitempty"`

	// Error is the trimmed standard error, or the launch error text, on failure.
	Error string `json:"error,omitempty"`

	// ExitCode is the process exit code, -1 when the process did not exit normally.
	ExitCode int `json:"exit_code"`

	// Duration is the wall time from launch to termination.
	Duration time.Duration `json:"duration"`
}

// Succeeded reports whether the process exited with code zero.
func (r ExecutionResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Attempt identifies one operation attempt across its audit records.
type Attempt struct {
	ID        string
	Node      string
	Interface string
	Operation string
}

// Response is returned to callers of the orchestrator. Exactly one of Output,
// Error or Message is set, depending on Status.
type Response struct {
	Status    ResultStatus `json:"status"`
	Output    string       `json:"output,omitempty"`
	Error     string       `json:"error,omitempty"`
	Message   string       `json:"message,omitempty"`
	Code      string       `json:"code,omitempty"`
	AttemptID string       `json:"attempt_id,omitempty"`
}

// responseFromResult maps an execution result to a caller response.
func responseFromResult(attemptID string, res ExecutionResult) Response {
	if res.Succeeded() {
		return Response{Status: StatusSuccess, Output: res.Output, AttemptID: attemptID}
	}
	return Response{Status: StatusFailed, Error: res.Error, AttemptID: attemptID}
}

// errorResponse maps a pre-execution failure to a caller response.
func errorResponse(err error) Response {
	msg := err.Error()
	var ee *EngineError
	if errors.As(err, &ee) && ee.Err != nil {
		msg = ee.Message + ": " + ee.unwrapMessage()
	}
	return Response{
		Status:  StatusError,
		Message: msg,
		Code:    ErrorCode(err),
	}
}
