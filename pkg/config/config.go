package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/modelops/pkg/audit"
	"github.com/openfroyo/modelops/pkg/engine"
	"github.com/openfroyo/modelops/pkg/telemetry"
)

// DefaultFile is the config file name looked up when none is given.
const DefaultFile = "modelops.yaml"

var validate = validator.New()

// Config is the platform configuration.
type Config struct {
	// Topology is the path of the topology document.
	Topology string `yaml:"topology" toml:"topology" validate:"required"`

	Audit    AuditConfig    `yaml:"audit" toml:"audit"`
	Runners  engine.Runners `yaml:"runners" toml:"runners"`
	Executor ExecutorConfig `yaml:"executor" toml:"executor"`
	Policy   PolicyConfig   `yaml:"policy" toml:"policy"`
	Intent   IntentConfig   `yaml:"intent" toml:"intent"`
	Platform PlatformConfig `yaml:"platform,omitempty" toml:"platform,omitempty"`
	Tools    ToolsConfig    `yaml:"tools,omitempty" toml:"tools,omitempty"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing" toml:"tracing"`

	// path is the file the config was loaded from.
	path string
}

// AuditConfig configures the audit sinks.
type AuditConfig struct {
	// Path is the JSONL audit log. Defaults to logs/audit.log next to the
	// topology document's directory.
	Path string `yaml:"path" toml:"path"`

	// SQLite is an optional database mirroring the audit log.
	SQLite string `yaml:"sqlite,omitempty" toml:"sqlite,omitempty"`
}

// ExecutorConfig configures process execution.
type ExecutorConfig struct {
	// Timeout bounds a single runner process. Zero means no limit.
	Timeout time.Duration `yaml:"timeout" toml:"timeout" validate:"gte=0"`
}

// PolicyConfig configures the policy gate.
type PolicyConfig struct {
	// Paths are .rego/.json files or directories.
	Paths []string `yaml:"paths,omitempty" toml:"paths,omitempty"`

	// Disabled lists policy names to turn off, built-ins included.
	Disabled []string `yaml:"disabled,omitempty" toml:"disabled,omitempty"`

	// Root is the directory artifacts must stay within. Defaults to the
	// parent of the topology document's directory.
	Root string `yaml:"root,omitempty" toml:"root,omitempty"`
}

// IntentConfig configures the shell's intent routers.
type IntentConfig struct {
	// Aliases maps target nicknames to node names.
	Aliases map[string]string `yaml:"aliases,omitempty" toml:"aliases,omitempty"`

	// Script is an optional Starlark router tried before the regex router.
	Script string `yaml:"script,omitempty" toml:"script,omitempty"`

	// ScriptTimeout bounds one route() call.
	ScriptTimeout time.Duration `yaml:"script_timeout,omitempty" toml:"script_timeout,omitempty" validate:"gte=0"`
}

// PlatformConfig identifies the cloud scope that monitored resources live in.
type PlatformConfig struct {
	SubscriptionID string `yaml:"subscription_id,omitempty" toml:"subscription_id,omitempty"`
	ResourceGroup  string `yaml:"resource_group,omitempty" toml:"resource_group,omitempty"`
}

// ResourceID returns the compute resource ID of the virtual machine vm.
func (p PlatformConfig) ResourceID(vm string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Compute/virtualMachines/%s",
		p.SubscriptionID, p.ResourceGroup, vm)
}

// ToolsConfig names the artifacts behind shell requests that are not
// topology operations.
type ToolsConfig struct {
	// GetMetric queries a monitoring metric. It receives -resourceId,
	// -metricName, -aggregation and -timeRangeHours.
	GetMetric string `yaml:"get_metric,omitempty" toml:"get_metric,omitempty"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `yaml:"format" toml:"format" validate:"oneof=console json"`
	Output string `yaml:"output" toml:"output"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Listen  string `yaml:"listen,omitempty" toml:"listen,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" toml:"enabled"`
	Exporter     string  `yaml:"exporter" toml:"exporter" validate:"oneof=otlp stdout none"`
	Endpoint     string  `yaml:"endpoint,omitempty" toml:"endpoint,omitempty" validate:"required_if=Exporter otlp"`
	SamplingRate float64 `yaml:"sampling_rate" toml:"sampling_rate" validate:"gte=0,lte=1"`
}

// Default returns a configuration for the topology document at topology.
func Default(topology string) *Config {
	return &Config{
		Topology: topology,
		Runners:  engine.DefaultRunners(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Metrics: MetricsConfig{Enabled: true},
		Tracing: TracingConfig{
			Exporter:     "none",
			SamplingRate: 1.0,
		},
	}
}

// Load reads a YAML (.yaml, .yml) or TOML (.toml) file, applies defaults,
// resolves relative paths against the file's directory and validates the
// result. LOG_LEVEL overrides logging.level.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default("")
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	cfg.path = abs
	cfg.resolvePaths(filepath.Dir(abs))
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromTopology builds a config for a topology document without a config
// file. Defaults apply and LOG_LEVEL is honoured.
func FromTopology(topology string) (*Config, error) {
	abs, err := filepath.Abs(topology)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve topology path: %w", err)
	}
	cfg := Default(abs)
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the file the config was loaded from, if any.
func (c *Config) Path() string {
	return c.path
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// AuditPath returns the JSONL audit log path, applying the default.
func (c *Config) AuditPath() string {
	if c.Audit.Path != "" {
		return c.Audit.Path
	}
	return audit.DefaultPath(filepath.Dir(c.Topology))
}

// MetricTool returns the configured get_metric tool.
func (c *Config) MetricTool() (engine.Tool, bool) {
	if c.Tools.GetMetric == "" {
		return engine.Tool{}, false
	}
	return engine.Tool{Name: "get_metric", Implementation: c.Tools.GetMetric}, true
}

// Telemetry converts the logging, metrics and tracing sections.
func (c *Config) Telemetry(version string) *telemetry.Config {
	t := telemetry.DefaultConfig()
	if version != "" {
		t.ServiceVersion = version
	}
	t.Logging.Level = c.Logging.Level
	t.Logging.Format = c.Logging.Format
	if c.Logging.Output != "" {
		t.Logging.Output = c.Logging.Output
	}
	t.Metrics.Enabled = c.Metrics.Enabled
	t.Metrics.ListenAddress = c.Metrics.Listen
	t.Tracing.Enabled = c.Tracing.Enabled
	t.Tracing.Exporter = c.Tracing.Exporter
	t.Tracing.Endpoint = c.Tracing.Endpoint
	t.Tracing.SamplingRate = c.Tracing.SamplingRate
	return t
}

// Write encodes the config as YAML or TOML depending on the extension of
// path. An existing file is not overwritten.
func (c *Config) Write(path string) error {
	var buf bytes.Buffer
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
	case ".toml":
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	return f.Close()
}

func (c *Config) resolvePaths(dir string) {
	c.Topology = absFrom(dir, c.Topology)
	c.Audit.Path = absFrom(dir, c.Audit.Path)
	c.Audit.SQLite = absFrom(dir, c.Audit.SQLite)
	c.Policy.Root = absFrom(dir, c.Policy.Root)
	c.Intent.Script = absFrom(dir, c.Intent.Script)
	c.Tools.GetMetric = absFrom(dir, c.Tools.GetMetric)
	for i, p := range c.Policy.Paths {
		c.Policy.Paths[i] = absFrom(dir, p)
	}
}

func (c *Config) applyEnv() {
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}
}

func absFrom(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
