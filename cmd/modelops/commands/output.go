package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/openfroyo/modelops/pkg/engine"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResponse writes a human-readable summary of an attempt.
func printResponse(w io.Writer, resp engine.Response) {
	switch resp.Status {
	case engine.StatusSuccess:
		fmt.Fprintf(w, "✓ success (attempt %s)\n", resp.AttemptID)
		if resp.Output != "" {
			fmt.Fprintln(w, indent(resp.Output))
		}
	case engine.StatusFailed:
		fmt.Fprintf(w, "✗ failed (attempt %s)\n", resp.AttemptID)
		if resp.Error != "" {
			fmt.Fprintln(w, indent(resp.Error))
		}
	default:
		fmt.Fprintf(w, "✗ %s: %s\n", resp.Code, resp.Message)
	}
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
