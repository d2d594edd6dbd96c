package policy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openfroyo/modelops/pkg/audit"
	"github.com/openfroyo/modelops/pkg/engine"
	"github.com/openfroyo/modelops/pkg/topology"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger, opts...)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func request(artifact string, props map[string]any) engine.OperationRequest {
	return engine.OperationRequest{
		Node:       "OpsVM",
		Type:       "ComputeNode",
		Interface:  "Standard",
		Operation:  "start",
		BaseDir:    "/srv/platform/modeling",
		Properties: props,
		Invocation: engine.Invocation{
			Program:      "pwsh",
			Args:         []string{artifact},
			Kind:         engine.ArtifactPowerShell,
			ArtifactPath: artifact,
		},
	}
}

func TestNewEngine(t *testing.T) {
	eng := newTestEngine(t)

	policies := eng.ListPolicies()
	expected := []string{ContainmentPolicyName, "flag-names"}
	for _, name := range expected {
		p, err := eng.GetPolicy(name)
		if err != nil {
			t.Errorf("Expected built-in policy not found: %s", name)
			continue
		}
		if !p.Builtin || !p.Enabled {
			t.Errorf("policy %s = %+v, want enabled builtin", name, p)
		}
	}
	if len(policies) != len(expected) {
		t.Errorf("got %d policies, want %d", len(policies), len(expected))
	}
}

func TestCheck_Containment(t *testing.T) {
	tests := []struct {
		name     string
		root     string
		artifact string
		allowed  bool
	}{
		{name: "inside default root", artifact: "/srv/platform/scripts/start.ps1", allowed: true},
		{name: "inside model dir", artifact: "/srv/platform/modeling/start.ps1", allowed: true},
		{name: "outside default root", artifact: "/etc/start.ps1", allowed: false},
		{name: "sibling prefix", artifact: "/srv/platform-other/start.ps1", allowed: false},
		{name: "explicit root", root: "/srv/platform/modeling", artifact: "/srv/platform/scripts/start.ps1", allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newTestEngine(t, WithRoot(tt.root))
			err := eng.Check(context.Background(), request(tt.artifact, nil))
			if tt.allowed && err != nil {
				t.Errorf("Check() error = %v, want allowed", err)
			}
			if !tt.allowed {
				if !errors.Is(err, engine.ErrPolicyDenied) {
					t.Fatalf("Check() error = %v, want policy denial", err)
				}
				var denied *DeniedError
				if !errors.As(err, &denied) || denied.Violations[0].Policy != ContainmentPolicyName {
					t.Errorf("violations = %+v", denied)
				}
			}
		})
	}
}

func TestCheck_FlagNames(t *testing.T) {
	eng := newTestEngine(t)

	err := eng.Check(context.Background(), request("/srv/platform/scripts/start.ps1", map[string]any{"region": "eastus"}))
	if err != nil {
		t.Errorf("Check() error = %v, want allowed", err)
	}

	err = eng.Check(context.Background(), request("/srv/platform/scripts/start.ps1", map[string]any{"bad key": "x"}))
	if !errors.Is(err, engine.ErrPolicyDenied) {
		t.Errorf("Check() error = %v, want denial for invalid flag name", err)
	}

	tf := request("/srv/platform/infra/main.tf", map[string]any{"bad key": "x"})
	tf.Inputs = map[string]any{"also bad": 1}
	tf.Invocation = engine.Invocation{
		Program:      "terraform",
		Args:         []string{"-chdir=/srv/platform/infra", "apply", "-auto-approve"},
		Kind:         engine.ArtifactTerraform,
		ArtifactPath: "/srv/platform/infra/main.tf",
	}
	if err := eng.Check(context.Background(), tf); err != nil {
		t.Errorf("Check() error = %v, want terraform exempt from flag names", err)
	}
}

func TestDisablePolicy(t *testing.T) {
	eng := newTestEngine(t)
	if err := eng.DisablePolicy(ContainmentPolicyName); err != nil {
		t.Fatalf("DisablePolicy() error = %v", err)
	}
	if err := eng.Check(context.Background(), request("/etc/start.ps1", nil)); err != nil {
		t.Errorf("Check() error = %v with containment disabled", err)
	}
	if err := eng.EnablePolicy(ContainmentPolicyName); err != nil {
		t.Fatalf("EnablePolicy() error = %v", err)
	}
	if err := eng.Check(context.Background(), request("/etc/start.ps1", nil)); err == nil {
		t.Error("Check() allowed after re-enabling containment")
	}
	if err := eng.DisablePolicy("missing"); err == nil {
		t.Error("DisablePolicy(missing) should fail")
	}
}

func TestReplacePolicies(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	custom := []Policy{
		{
			Name:     "no-destroy",
			Severity: SeverityError,
			Enabled:  true,
			Rego: `package custom.nodestroy

import rego.v1

deny contains msg if {
	input.operation == "destroy"
	msg := sprintf("destroy is not allowed on %s", [input.node])
}`,
		},
		{
			Name:     "prod-warning",
			Severity: SeverityWarning,
			Enabled:  true,
			Rego: `package custom.prodwarning

import rego.v1

deny contains msg if {
	input.properties.env == "prod"
	msg := "operation targets production"
}`,
		},
	}
	if err := eng.ReplacePolicies(ctx, custom); err != nil {
		t.Fatalf("ReplacePolicies() error = %v", err)
	}

	req := request("/srv/platform/scripts/destroy.ps1", map[string]any{"env": "prod"})
	req.Operation = "destroy"
	decision, err := eng.Evaluate(ctx, RequestFromOperation(req, "/srv/platform"))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if decision.Allowed {
		t.Error("destroy should be denied")
	}
	if len(decision.Violations) != 1 || decision.Violations[0].Message != "destroy is not allowed on OpsVM" {
		t.Errorf("violations = %+v", decision.Violations)
	}
	if len(decision.Warnings) != 1 || decision.Warnings[0].Policy != "prod-warning" {
		t.Errorf("warnings = %+v", decision.Warnings)
	}
	if len(decision.EvaluatedPolicies) != 4 {
		t.Errorf("evaluated = %v, want 4 policies", decision.EvaluatedPolicies)
	}

	// Warnings alone do not block.
	req.Operation = "start"
	if err := eng.Check(ctx, req); err != nil {
		t.Errorf("Check() error = %v, want allowed with warning", err)
	}

	// A replacement drops the previous custom set.
	if err := eng.ReplacePolicies(ctx, nil); err != nil {
		t.Fatalf("ReplacePolicies(nil) error = %v", err)
	}
	if _, err := eng.GetPolicy("no-destroy"); err == nil {
		t.Error("custom policy survived replacement")
	}
}

func TestReplacePolicies_Invalid(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	bad := []Policy{{Name: "broken", Enabled: true, Severity: SeverityError, Rego: "package x\n\ndeny contains if {"}}
	if err := eng.ReplacePolicies(ctx, bad); err == nil {
		t.Error("invalid rego accepted")
	}

	shadow := []Policy{{Name: ContainmentPolicyName, Enabled: true, Rego: "package x\n"}}
	if err := eng.ReplacePolicies(ctx, shadow); err == nil {
		t.Error("policy shadowing a builtin accepted")
	}
	if p, _ := eng.GetPolicy(ContainmentPolicyName); p == nil || !p.Builtin {
		t.Error("builtin policy replaced")
	}
}

func TestOrchestratorDeniesEscapingArtifact(t *testing.T) {
	root := t.TempDir()
	modelDir := filepath.Join(root, "modeling")
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		t.Fatal(err)
	}
	doc := `
node_types:
  ComputeNode:
    interfaces:
      Standard:
        start: ../../outside/start.ps1
topology_template:
  node_templates:
    OpsVM:
      type: ComputeNode
`
	path := filepath.Join(modelDir, "topology.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	model, err := topology.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	logPath := audit.DefaultPath(modelDir)
	o := engine.NewOrchestrator(model,
		engine.NewBuilder(model.BaseDir(), engine.DefaultRunners()),
		engine.NewExecutor(audit.NewFileLogger(logPath)),
		engine.WithPolicyGate(newTestEngine(t)),
	)

	resp := o.ExecuteOperation(context.Background(), "OpsVM", "start")
	if resp.Status != engine.StatusError || resp.Code != engine.ErrCodePolicyDenied {
		t.Errorf("response = %+v, want policy denial", resp)
	}
	if _, err := os.Stat(logPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("audit log written for a denied attempt (stat err %v)", err)
	}
}
