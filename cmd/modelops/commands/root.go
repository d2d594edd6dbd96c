package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// options holds the global flags.
type options struct {
	configPath   string
	topologyPath string
	verbose      bool
	jsonOutput   bool
	version      string
}

// exitError carries a process exit status without an error message, for
// commands whose output already explains the failure.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// ExitCode reports the status a command asked to exit with.
func ExitCode(err error) (int, bool) {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code, true
	}
	return 0, false
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	opts := &options{version: version}

	rootCmd := &cobra.Command{
		Use:   "modelops",
		Short: "Model-driven operation resolver and executor",
		Long: `modelops executes lifecycle operations declared in a TOSCA-style topology
document. Each operation's implementation artifact selects its runner
(.tf files run through terraform, .ps1 scripts through pwsh) and every
attempt is recorded in an append-only audit log.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path (default ./modelops.yaml when present)")
	rootCmd.PersistentFlags().StringVarP(&opts.topologyPath, "topology", "t", "", "topology document, overrides the config")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newExecCommand(opts))
	rootCmd.AddCommand(newPlanCommand(opts))
	rootCmd.AddCommand(newValidateCommand(opts))
	rootCmd.AddCommand(newShellCommand(opts))
	rootCmd.AddCommand(newAuditCommand(opts))
	rootCmd.AddCommand(newInitCommand(opts))

	return rootCmd
}
