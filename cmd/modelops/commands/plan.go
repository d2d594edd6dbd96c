package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/modelops/pkg/topology"
)

func newPlanCommand(opts *options) *cobra.Command {
	var iface string

	cmd := &cobra.Command{
		Use:   "plan <node> <operation>",
		Short: "Show the command an operation would run",
		Long: `Resolve, build and policy-check an operation without running it. Nothing
is written to the audit log.`,
		Example: `  modelops plan MyOperationsVM start
  modelops plan MyOperationsVM start --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			inv, err := rt.orch.Plan(ctx, args[0], iface, args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, inv)
			}
			fmt.Fprintf(out, "Node:      %s\n", args[0])
			fmt.Fprintf(out, "Operation: %s.%s\n", iface, args[1])
			fmt.Fprintf(out, "Artifact:  %s (%s)\n", inv.ArtifactPath, inv.Kind)
			fmt.Fprintf(out, "Command:   %s\n", inv.String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&iface, "interface", "i", topology.DefaultInterface, "interface the operation is declared on")

	return cmd
}
