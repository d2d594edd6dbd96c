package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openfroyo/modelops/pkg/config"
	"github.com/openfroyo/modelops/pkg/engine"
	"github.com/openfroyo/modelops/pkg/policy"
	"github.com/openfroyo/modelops/pkg/telemetry"
	"github.com/openfroyo/modelops/pkg/topology"
)

// validationIssue is one operation that cannot be planned.
type validationIssue struct {
	Node      string `json:"node"`
	Interface string `json:"interface,omitempty"`
	Operation string `json:"operation,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// validationReport summarises a validation run.
type validationReport struct {
	Topology   string            `json:"topology"`
	Nodes      int               `json:"nodes"`
	Operations int               `json:"operations"`
	Issues     []validationIssue `json:"issues"`
}

func newValidateCommand(opts *options) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the topology document",
		Long: `Load the topology document, then resolve, build and policy-check every
operation declared on every node. Nothing is executed.

With --watch the topology directory and policy paths are watched. Policies
are reloaded and the document is re-validated whenever a file changes.`,
		Example: `  modelops validate
  modelops validate --topology modeling/topology.yaml --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger, err := telemetry.NewLogger(cfg.Telemetry(opts.version).Logging)
			if err != nil {
				return err
			}
			zl := logger.NewComponentLogger("validate").Zerolog()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			gate, err := newPolicyEngine(ctx, cfg, zl)
			if err != nil {
				return err
			}

			ok := runValidation(ctx, cfg, gate, zl, out, opts.jsonOutput)
			if !watch {
				if !ok {
					return &exitError{code: 1}
				}
				return nil
			}

			loader := policy.NewLoader(zl)
			onReload := func(policies []policy.Policy) error {
				err := gate.ReplacePolicies(ctx, withDisabled(policies, cfg.Policy.Disabled))
				runValidation(ctx, cfg, gate, zl, out, opts.jsonOutput)
				return err
			}
			if err := loader.Watch(ctx, cfg.Policy.Paths, onReload, filepath.Dir(cfg.Topology)); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-validate when files change")

	return cmd
}

// runValidation validates and prints the report. It returns false when the
// document failed to load or any operation has an issue.
func runValidation(ctx context.Context, cfg *config.Config, gate engine.PolicyGate, logger zerolog.Logger, out io.Writer, asJSON bool) bool {
	report, err := validateTopology(ctx, cfg, gate, logger)
	if err != nil {
		if asJSON {
			_ = printJSON(out, map[string]string{"topology": cfg.Topology, "error": err.Error()})
		} else {
			fmt.Fprintf(out, "✗ %s: %v\n", cfg.Topology, err)
		}
		return false
	}

	if asJSON {
		_ = printJSON(out, report)
		return len(report.Issues) == 0
	}

	for _, issue := range report.Issues {
		target := issue.Node
		if issue.Operation != "" {
			target = fmt.Sprintf("%s %s.%s", issue.Node, issue.Interface, issue.Operation)
		}
		fmt.Fprintf(out, "✗ %s: %s (%s)\n", target, issue.Message, issue.Code)
	}
	mark := "✓"
	if len(report.Issues) > 0 {
		mark = "✗"
	}
	fmt.Fprintf(out, "%s %s: %d nodes, %d operations, %d issues\n",
		mark, report.Topology, report.Nodes, report.Operations, len(report.Issues))
	return len(report.Issues) == 0
}

// validateTopology loads the document and plans every declared operation.
func validateTopology(ctx context.Context, cfg *config.Config, gate engine.PolicyGate, logger zerolog.Logger) (*validationReport, error) {
	model, err := topology.Load(cfg.Topology)
	if err != nil {
		return nil, err
	}
	orch := engine.NewOrchestrator(model,
		engine.NewBuilder(model.BaseDir(), cfg.Runners),
		nil,
		engine.WithPolicyGate(gate),
		engine.WithLogger(logger),
	)

	report := &validationReport{Topology: model.Path(), Issues: []validationIssue{}}
	for _, node := range model.NodeNames() {
		report.Nodes++
		refs, err := model.Operations(node)
		if err != nil {
			report.Issues = append(report.Issues, validationIssue{
				Node:    node,
				Code:    engine.ErrorCode(err),
				Message: err.Error(),
			})
			continue
		}
		for _, ref := range refs {
			report.Operations++
			if _, err := orch.Plan(ctx, node, ref.Interface, ref.Operation); err != nil {
				report.Issues = append(report.Issues, validationIssue{
					Node:      node,
					Interface: ref.Interface,
					Operation: ref.Operation,
					Code:      engine.ErrorCode(err),
					Message:   err.Error(),
				})
			}
		}
	}
	return report, nil
}
