package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openfroyo/modelops/pkg/config"
	"github.com/openfroyo/modelops/pkg/engine"
	"github.com/openfroyo/modelops/pkg/intent"
	"github.com/openfroyo/modelops/pkg/topology"
)

const shellHelp = `Available commands (natural language examples):
 - Start the Operations VM
 - Restart MyOperationsVM
 - stop vm WebVM
 - Check CPU for the ops vm
 - help
 - exit | quit`

// executor is the part of the orchestrator the shell needs.
type executor interface {
	ExecuteOperation(ctx context.Context, node, op string) engine.Response
	ExecuteTool(ctx context.Context, target string, tool engine.Tool, params topology.Params) engine.Response
}

// shell is the interactive command loop.
type shell struct {
	router   intent.Router
	exec     executor
	platform config.PlatformConfig
	metrics  engine.Tool
	logger   zerolog.Logger
	in       io.Reader
	out      io.Writer
	json     bool
}

func newShellCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive natural-language operations shell",
		Long: `Read requests line by line, route them to an intent and execute the
matching topology operation. Requests are matched by an optional Starlark
router script first, then by the built-in patterns:

  start|stop|restart [the] [vm] <target>
  check|get|show cpu|memory [for] <target>

Targets are mapped to node names through intent.aliases. Metric requests
run the tools.get_metric artifact against the resource ID built from the
platform section.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			if err := rt.telemetry.StartMetricsServer(); err != nil {
				return err
			}

			router, err := newRouter(rt.cfg, rt.logger)
			if err != nil {
				return err
			}

			sh := &shell{
				router:   router,
				exec:     rt.orch,
				platform: rt.cfg.Platform,
				logger:   rt.logger.With().Str("component", "shell").Logger(),
				in:       cmd.InOrStdin(),
				out:      cmd.OutOrStdout(),
				json:     opts.jsonOutput,
			}
			if tool, ok := rt.cfg.MetricTool(); ok {
				sh.metrics = tool
			}
			return sh.run(ctx)
		},
	}

	return cmd
}

// newRouter chains the configured Starlark script, if any, before the regex
// router.
func newRouter(cfg *config.Config, logger zerolog.Logger) (intent.Router, error) {
	var chain intent.Chain
	if cfg.Intent.Script != "" {
		script, err := intent.LoadStarlarkRouter(cfg.Intent.Script,
			intent.WithScriptTimeout(cfg.Intent.ScriptTimeout),
			intent.WithRouterLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		chain = append(chain, script)
	}
	return append(chain, intent.NewRegexRouter(cfg.Intent.Aliases)), nil
}

// run reads lines until exit, EOF or cancellation.
func (s *shell) run(ctx context.Context) error {
	fmt.Fprintln(s.out, "modelops shell. Type 'help' for examples, 'exit' to leave.")

	lines := make(chan string)
	errc := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		fmt.Fprint(s.out, "\nUser: > ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out, "\nGoodbye.")
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(s.out, "\nGoodbye.")
				return <-errc
			}
			if !s.handle(ctx, line) {
				fmt.Fprintln(s.out, "Goodbye.")
				return nil
			}
		}
	}
}

// handle processes one line. It returns false when the shell should exit.
func (s *shell) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	switch strings.ToLower(line) {
	case "exit", "quit":
		return false
	case "help":
		fmt.Fprintln(s.out, shellHelp)
		return true
	}

	in, ok := s.router.Route(line)
	if !ok {
		fmt.Fprintln(s.out, "I didn't understand that request. Try 'help'.")
		return true
	}

	s.logger.Debug().
		Str("operation", in.Operation).
		Interface("params", in.Params).
		Msg("routed intent")

	var resp engine.Response
	switch {
	case in.Operation == intent.OperationGetMetric && s.metrics.Implementation != "":
		vm := in.Node()
		if vm == "" {
			vm = in.Params[intent.ParamTarget]
		}
		fmt.Fprintf(s.out, "Mapped intent 'Metric Check' on '%s' -> %s\n", vm, in.Params[intent.ParamMetricName])
		resp = s.exec.ExecuteTool(ctx, vm, s.metrics, metricParams(s.platform.ResourceID(vm), in))
	case in.IsTopologyOperation():
		fmt.Fprintf(s.out, "Mapped intent '%s' on '%s' -> node '%s'\n",
			in.Operation, targetOf(in), in.Node())
		resp = s.exec.ExecuteOperation(ctx, in.Node(), in.Operation)
	default:
		fmt.Fprintf(s.out, "Mapped intent %q, but no operation or tool handles it.\n", in.Operation)
		return true
	}

	if s.json {
		_ = printJSON(s.out, resp)
	} else {
		printResponse(s.out, resp)
	}
	return true
}

func targetOf(in intent.Intent) string {
	if t := in.Params[intent.ParamTarget]; t != "" {
		return t
	}
	return in.Node()
}

// metricParams orders the metric tool's flags.
func metricParams(resourceID string, in intent.Intent) topology.Params {
	return topology.Params{
		{Key: "resourceId", Value: resourceID},
		{Key: intent.ParamMetricName, Value: in.Params[intent.ParamMetricName]},
		{Key: intent.ParamAggregation, Value: in.Params[intent.ParamAggregation]},
		{Key: intent.ParamTimeRangeHours, Value: in.Params[intent.ParamTimeRangeHours]},
	}
}
