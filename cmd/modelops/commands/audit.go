package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/modelops/pkg/audit"
	"github.com/openfroyo/modelops/pkg/config"
	"github.com/openfroyo/modelops/pkg/stores"
)

func newAuditCommand(opts *options) *cobra.Command {
	var filter stores.AuditFilter
	var status string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List audit records",
		Long: `List audit records, newest first. Records are read from the SQLite mirror
when audit.sqlite is configured and from the JSONL audit log otherwise.`,
		Example: `  modelops audit
  modelops audit --node MyOperationsVM --status FAILED --limit 10
  modelops audit attempts`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			filter.Status = audit.Status(strings.ToUpper(status))

			records, err := listRecords(cmd.Context(), cfg, filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, records)
			}
			return printRecords(out, records)
		},
	}

	cmd.Flags().StringVar(&filter.Node, "node", "", "only records for this node")
	cmd.Flags().StringVar(&filter.Operation, "operation", "", "only records for this operation")
	cmd.Flags().StringVar(&filter.AttemptID, "attempt", "", "only records for this attempt")
	cmd.Flags().StringVar(&status, "status", "", "only records with this status (STARTED, SUCCESS, FAILED)")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 50, "maximum records to show (0 for all)")

	cmd.AddCommand(newAuditAttemptsCommand(opts))

	return cmd
}

func newAuditAttemptsCommand(opts *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "List attempts with their final status",
		Long:  `List attempts recorded in the SQLite mirror, one row per attempt.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cfg.Audit.SQLite == "" {
				return errors.New("attempt summaries need audit.sqlite to be configured")
			}

			ctx := cmd.Context()
			store, err := openStore(ctx, cfg.Audit.SQLite)
			if err != nil {
				return err
			}
			defer store.Close()

			attempts, err := store.ListAttempts(ctx, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, attempts)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ATTEMPT\tNODE\tOPERATION\tSTATUS\tSTARTED\tDURATION")
			for _, a := range attempts {
				duration := "-"
				if a.FinishedAt != nil {
					duration = a.FinishedAt.Sub(a.StartedAt).Round(time.Millisecond).String()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s.%s\t%s\t%s\t%s\n",
					a.AttemptID, a.Node, a.Interface, a.Operation, a.Status,
					a.StartedAt.Local().Format(time.RFC3339), duration)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum attempts to show")

	return cmd
}

// listRecords reads from the SQLite mirror when configured, else from the
// JSONL log.
func listRecords(ctx context.Context, cfg *config.Config, filter stores.AuditFilter) ([]*stores.AuditRecord, error) {
	if filter.Limit == 0 {
		filter.Limit = -1
	}

	if cfg.Audit.SQLite != "" {
		store, err := openStore(ctx, cfg.Audit.SQLite)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.ListAuditRecords(ctx, filter)
	}

	recs, err := audit.ReadFile(cfg.AuditPath())
	if errors.Is(err, os.ErrNotExist) {
		return []*stores.AuditRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	return filterRecords(recs, filter), nil
}

// filterRecords applies filter to file records and orders them newest first.
func filterRecords(recs []audit.Record, filter stores.AuditFilter) []*stores.AuditRecord {
	out := []*stores.AuditRecord{}
	for i := len(recs) - 1; i >= 0; i-- {
		r := recs[i]
		switch {
		case filter.Node != "" && r.Node != filter.Node,
			filter.Operation != "" && r.Operation != filter.Operation,
			filter.Status != "" && r.Status != filter.Status,
			filter.AttemptID != "" && r.AttemptID != filter.AttemptID,
			!filter.Since.IsZero() && r.Timestamp.Before(filter.Since):
			continue
		}
		out = append(out, &stores.AuditRecord{ID: int64(i + 1), Record: r})
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*stores.AuditRecord{}
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

func printRecords(w io.Writer, records []*stores.AuditRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tATTEMPT\tNODE\tOPERATION\tSTATUS\tDETAILS")
	for _, r := range records {
		details := strings.ReplaceAll(r.Details, "\n", " ")
		if len(details) > 80 {
			details = details[:77] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Timestamp.Local().Format(time.RFC3339), r.AttemptID, r.Node, r.Operation, r.Status, details)
	}
	return tw.Flush()
}
