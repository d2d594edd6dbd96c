package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/openfroyo/modelops/pkg/audit"
	"github.com/openfroyo/modelops/pkg/config"
	"github.com/openfroyo/modelops/pkg/engine"
	"github.com/openfroyo/modelops/pkg/policy"
	"github.com/openfroyo/modelops/pkg/stores"
	"github.com/openfroyo/modelops/pkg/telemetry"
	"github.com/openfroyo/modelops/pkg/topology"
)

// loadConfig resolves the configuration from --config, ./modelops.yaml or
// --topology, in that order. --topology always overrides the document path.
func loadConfig(opts *options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)

	path := opts.configPath
	if path == "" {
		if _, statErr := os.Stat(config.DefaultFile); statErr == nil {
			path = config.DefaultFile
		}
	}

	switch {
	case path != "":
		cfg, err = config.Load(path)
	case opts.topologyPath != "":
		cfg, err = config.FromTopology(opts.topologyPath)
	default:
		return nil, errors.New("no configuration: pass --config or --topology, or run 'modelops init'")
	}
	if err != nil {
		return nil, err
	}

	if path != "" && opts.topologyPath != "" {
		override, err := config.FromTopology(opts.topologyPath)
		if err != nil {
			return nil, err
		}
		cfg.Topology = override.Topology
	}
	if opts.verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// app is the wired application for one command invocation.
type app struct {
	cfg       *config.Config
	telemetry *telemetry.Telemetry
	logger    zerolog.Logger
	model     *topology.Model
	store     *stores.SQLiteStore
	policies  *policy.Engine
	orch      *engine.Orchestrator
}

// newApp loads the model and wires sinks, the policy gate and the
// orchestrator.
func newApp(ctx context.Context, opts *options) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.NewTelemetry(cfg.Telemetry(opts.version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	rt := &app{
		cfg:       cfg,
		telemetry: tel,
		logger:    tel.Logger.Zerolog(),
	}

	if err := rt.load(ctx); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	return rt, nil
}

func (rt *app) load(ctx context.Context) error {
	cfg := rt.cfg

	model, err := topology.Load(cfg.Topology)
	if err != nil {
		return err
	}
	rt.model = model

	sinks := audit.Multi{{Name: "file", Sink: audit.NewFileLogger(cfg.AuditPath())}}
	if cfg.Audit.SQLite != "" {
		store, err := openStore(ctx, cfg.Audit.SQLite)
		if err != nil {
			return err
		}
		rt.store = store
		sinks = append(sinks, audit.Named{Name: "sqlite", Sink: store})
	}

	gate, err := newPolicyEngine(ctx, cfg, rt.logger)
	if err != nil {
		return err
	}
	rt.policies = gate

	metrics := rt.telemetry.Metrics
	executor := engine.NewExecutor(sinks,
		engine.WithExecutorLogger(rt.logger),
		engine.WithExecutorMetrics(metrics),
		engine.WithTimeout(cfg.Executor.Timeout),
	)
	rt.orch = engine.NewOrchestrator(model,
		engine.NewBuilder(model.BaseDir(), cfg.Runners),
		executor,
		engine.WithPolicyGate(gate),
		engine.WithLogger(rt.logger),
		engine.WithMetrics(metrics),
	)

	rt.logger.Debug().
		Str("topology", model.Path()).
		Int("nodes", len(model.NodeNames())).
		Str("audit", cfg.AuditPath()).
		Str("sqlite", cfg.Audit.SQLite).
		Msg("runtime ready")
	return nil
}

// Close releases the store and flushes telemetry.
func (rt *app) Close(ctx context.Context) error {
	var errs []error
	if rt.store != nil {
		errs = append(errs, rt.store.Close())
	}
	if rt.telemetry != nil {
		errs = append(errs, rt.telemetry.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// openStore opens and migrates the SQLite audit mirror.
func openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// newPolicyEngine builds the policy gate from the policy section.
func newPolicyEngine(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*policy.Engine, error) {
	eng, err := policy.NewEngine(logger, policy.WithRoot(cfg.Policy.Root))
	if err != nil {
		return nil, err
	}
	if len(cfg.Policy.Paths) > 0 {
		if err := eng.LoadPolicies(ctx, cfg.Policy.Paths); err != nil {
			return nil, err
		}
	}
	for _, name := range cfg.Policy.Disabled {
		if err := eng.DisablePolicy(name); err != nil {
			return nil, err
		}
	}
	return eng, nil
}

// withDisabled switches off the policies named in disabled.
func withDisabled(policies []policy.Policy, disabled []string) []policy.Policy {
	for i := range policies {
		for _, name := range disabled {
			if policies[i].Name == name {
				policies[i].Enabled = false
			}
		}
	}
	return policies
}
