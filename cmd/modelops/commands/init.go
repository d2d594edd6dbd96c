package commands

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/modelops/pkg/config"
)

func newInitCommand(opts *options) *cobra.Command {
	var noSQLite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration",
		Long: `Write a default configuration file and create the SQLite audit mirror.

The topology path defaults to modeling/topology.yaml. Relative paths in the
written file are relative to the file itself. An existing config file is
never overwritten.`,
		Example: `  # Initialize in the current directory
  modelops init

  # Custom locations
  modelops init --config ops/modelops.toml --topology ../modeling/topology.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if path == "" {
				path = config.DefaultFile
			}
			topologyPath := opts.topologyPath
			if topologyPath == "" {
				topologyPath = filepath.Join("modeling", "topology.yaml")
			}

			cfg := config.Default(filepath.ToSlash(topologyPath))
			cfg.Audit.Path = "logs/audit.log"
			if !noSQLite {
				cfg.Audit.SQLite = "logs/audit.db"
			}

			log.Info().Str("config", path).Str("topology", cfg.Topology).Msg("Initializing workspace")

			if err := cfg.Write(path); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Created config file: %s\n", path)

			loaded, err := config.Load(path)
			if err != nil {
				return err
			}
			if loaded.Audit.SQLite != "" {
				ctx := cmd.Context()
				store, err := openStore(ctx, loaded.Audit.SQLite)
				if err != nil {
					return err
				}
				if err := store.Close(); err != nil {
					return err
				}
				fmt.Fprintf(out, "✓ Initialized SQLite audit mirror: %s\n", loaded.Audit.SQLite)
			}

			fmt.Fprintf(out, "\nNext steps:\n")
			fmt.Fprintf(out, "  modelops validate\n")
			fmt.Fprintf(out, "  modelops plan <node> <operation>\n")
			return nil
		},
	}

	cmd.Flags().BoolVar(&noSQLite, "no-sqlite", false, "do not configure the SQLite audit mirror")

	return cmd
}
