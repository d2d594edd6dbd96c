package commands

import (
	"github.com/spf13/cobra"

	"github.com/openfroyo/modelops/pkg/engine"
	"github.com/openfroyo/modelops/pkg/topology"
)

func newExecCommand(opts *options) *cobra.Command {
	var iface string

	cmd := &cobra.Command{
		Use:   "exec <node> <operation>",
		Short: "Execute an operation on a node",
		Long: `Resolve the operation on the node's type, build the runner invocation,
check it against policy and run it. Attempts that reach the runner are
written to the audit log as a STARTED record followed by SUCCESS or FAILED.

The response is printed as JSON. The exit status is 1 unless the operation
succeeded.`,
		Example: `  # Start a VM through its Standard interface
  modelops exec MyOperationsVM start

  # Run an operation from another interface
  modelops exec MyOperationsVM backup --interface Maintenance`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			resp := rt.orch.ExecuteInterfaceOperation(ctx, args[0], iface, args[1])
			if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if resp.Status != engine.StatusSuccess {
				return &exitError{code: 1}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&iface, "interface", "i", topology.DefaultInterface, "interface the operation is declared on")

	return cmd
}
