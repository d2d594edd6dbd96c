package intent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRegexRouter_Lifecycle(t *testing.T) {
	r := NewRegexRouter(nil)

	tests := []struct {
		text string
		op   string
		node string
	}{
		{"Start the Operations VM", "start", "MyOperationsVM"},
		{"restart MyOperationsVM", "restart", "MyOperationsVM"},
		{"please stop vm prodweb", "stop", "MyProdApp"},
		{"stop WebVM", "stop", "WebVM"},
		{"START the ops", "start", "MyOperationsVM"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			in, ok := r.Route(tt.text)
			if !ok {
				t.Fatalf("Route(%q) did not match", tt.text)
			}
			if in.Operation != tt.op || in.Node() != tt.node {
				t.Errorf("Route(%q) = %s on %s, want %s on %s", tt.text, in.Operation, in.Node(), tt.op, tt.node)
			}
			if !in.IsTopologyOperation() {
				t.Errorf("intent %+v should target a topology node", in)
			}
		})
	}
}

func TestRegexRouter_Metrics(t *testing.T) {
	r := NewRegexRouter(nil)

	in, ok := r.Route("Check CPU for the ops vm")
	if !ok {
		t.Fatal("metric request did not match")
	}
	if in.Operation != OperationGetMetric {
		t.Errorf("Operation = %q", in.Operation)
	}
	if in.Params[ParamMetricName] != "Percentage CPU" {
		t.Errorf("metricName = %q", in.Params[ParamMetricName])
	}
	if in.IsTopologyOperation() {
		t.Error("metric intent should not be a topology operation")
	}

	in, ok = r.Route("show memory for opsvm")
	if !ok || in.Params[ParamMetricName] != "Available Memory Bytes" || in.Node() != "MyOperationsVM" {
		t.Errorf("Route(show memory) = %+v, %v", in, ok)
	}
}

func TestRegexRouter_NoMatch(t *testing.T) {
	r := NewRegexRouter(nil)
	for _, text := range []string{"", "hello there", "show activity logs"} {
		if in, ok := r.Route(text); ok {
			t.Errorf("Route(%q) = %+v, want no match", text, in)
		}
	}
}

func TestRegexRouter_CustomAliases(t *testing.T) {
	r := NewRegexRouter(map[string]string{
		"web":    "WebVM",
		"webapi": "ApiVM",
	})

	in, _ := r.Route("restart webapi")
	if in.Node() != "ApiVM" {
		t.Errorf("longest alias should win, got %q", in.Node())
	}
	in, _ = r.Route("restart ops")
	if in.Node() != "ops" {
		t.Errorf("custom aliases replace defaults, got %q", in.Node())
	}
}

const testScript = `
def route(text):
    words = text.split(" ")
    if len(words) == 2 and words[0] == "bounce":
        return {"operation": "restart", "node": words[1], "force": True}
    if text == "ping":
        return struct(operation = "ping", node = "OpsVM")
    if text == "bad":
        return {"node": "OpsVM"}
    if text == "list":
        return ["start"]
    if text == "spin":
        n = 0
        for i in range(1000000000):
            n += i
        return None
    return None
`

func TestStarlarkRouter(t *testing.T) {
	r, err := NewStarlarkRouter("router.star", testScript, WithScriptTimeout(200*time.Millisecond))
	if err != nil {
		t.Fatalf("NewStarlarkRouter() error = %v", err)
	}

	in, ok := r.Route("bounce WebVM")
	if !ok || in.Operation != "restart" || in.Node() != "WebVM" || in.Params["force"] != "true" {
		t.Errorf("Route(bounce) = %+v, %v", in, ok)
	}

	in, ok = r.Route("ping")
	if !ok || in.Operation != "ping" || in.Node() != "OpsVM" {
		t.Errorf("Route(ping) = %+v, %v", in, ok)
	}

	if _, ok := r.Route("nothing here"); ok {
		t.Error("None should not match")
	}

	for _, text := range []string{"bad", "list"} {
		if _, _, err := r.Eval(context.Background(), text); err == nil {
			t.Errorf("Eval(%q) should fail", text)
		}
		if _, ok := r.Route(text); ok {
			t.Errorf("Route(%q) should not match", text)
		}
	}
}

func TestStarlarkRouter_Timeout(t *testing.T) {
	r, err := NewStarlarkRouter("router.star", testScript, WithScriptTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewStarlarkRouter() error = %v", err)
	}

	start := time.Now()
	_, _, err = r.Eval(context.Background(), "spin")
	if err == nil || !strings.Contains(err.Error(), "exceeded") {
		t.Errorf("Eval(spin) error = %v, want timeout", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout did not interrupt the script")
	}
}

func TestStarlarkRouter_Invalid(t *testing.T) {
	if _, err := NewStarlarkRouter("x.star", "x = 1\n"); err == nil {
		t.Error("script without route() accepted")
	}
	if _, err := NewStarlarkRouter("x.star", "def route(:\n"); err == nil {
		t.Error("syntax error accepted")
	}
	if _, err := LoadStarlarkRouter(filepath.Join(t.TempDir(), "missing.star")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestLoadStarlarkRouter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "router.star")
	if err := os.WriteFile(path, []byte(testScript), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := LoadStarlarkRouter(path)
	if err != nil {
		t.Fatalf("LoadStarlarkRouter() error = %v", err)
	}
	if _, ok := r.Route("bounce OpsVM"); !ok {
		t.Error("loaded router did not match")
	}
}

func TestChain(t *testing.T) {
	script, err := NewStarlarkRouter("router.star", testScript)
	if err != nil {
		t.Fatal(err)
	}
	chain := Chain{script, nil, NewRegexRouter(nil)}

	in, ok := chain.Route("bounce OpsVM")
	if !ok || in.Operation != "restart" {
		t.Errorf("script router should win, got %+v", in)
	}

	in, ok = chain.Route("start the ops vm")
	if !ok || in.Node() != "MyOperationsVM" {
		t.Errorf("regex router should be the fallback, got %+v", in)
	}

	if _, ok := chain.Route("   "); ok {
		t.Error("blank input should not match")
	}

	called := false
	fallback := RouterFunc(func(string) (Intent, bool) {
		called = true
		return Intent{}, false
	})
	if _, ok := (Chain{fallback}).Route("anything"); ok || !called {
		t.Error("RouterFunc not consulted")
	}
}
