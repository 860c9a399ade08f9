package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/respfilter/runtime/pkg/chain"
)

// OutputOptions configures CLI output behavior.
type OutputOptions struct {
	Verbose bool
	Quiet   bool
	DryRun  bool
}

// PrintExecutionResult displays the outcome of a chain run.
func PrintExecutionResult(w io.Writer, result *chain.ExecutionResult, err error, opts OutputOptions) {
	if result == nil {
		fmt.Fprintln(w, "✗ No execution result available")
		return
	}

	if err != nil {
		fmt.Fprintln(w, "✗ Chain execution failed")
		if result.Error != nil {
			if result.Error.Module != "" {
				fmt.Fprintf(w, "  Module: %s\n", result.Error.Module)
			}
			fmt.Fprintf(w, "  Code: %s\n", result.Error.Code)
			fmt.Fprintf(w, "  Error: %s\n", result.Error.Message)
			if opts.Verbose {
				printDetails(w, result.Error.Details)
			}
		}
		return
	}

	if opts.Quiet {
		return
	}

	fmt.Fprintln(w, "✓ Chain executed successfully")
	fmt.Fprintf(w, "  Status: %s\n", result.Status)
	fmt.Fprintf(w, "  Documents processed: %d\n", result.DocumentsProcessed)
	fmt.Fprintf(w, "  Responses processed: %d\n", result.ResponsesProcessed)
	if !opts.DryRun {
		fmt.Fprintf(w, "  Documents written: %d\n", result.DocumentsWritten)
	}
	if opts.Verbose {
		fmt.Fprintf(w, "  Run ID: %s\n", result.RunID)
		fmt.Fprintf(w, "  Duration: %v\n", result.CompletedAt.Sub(result.StartedAt))
	}

	if opts.DryRun {
		PrintDryRunPreview(w, result.DryRunPreview)
	}
}

func printDetails(w io.Writer, details map[string]interface{}) {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %v\n", k, details[k])
	}
}

// PrintDryRunPreview shows the responses of the previewed documents before
// and after filtering.
func PrintDryRunPreview(w io.Writer, previews []chain.DocumentPreview) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Dry-run preview (nothing was written):")

	for _, preview := range previews {
		fmt.Fprintf(w, "  Document %d\n", preview.Index)
		for i := range preview.After {
			var before any
			if i < len(preview.Before) {
				before = preview.Before[i]
			}
			fmt.Fprintf(w, "    %s -> %s\n", formatValue(before), formatValue(preview.After[i]))
		}
	}
}

// formatValue renders a response as JSON so strings show their quotes and escapes.
func formatValue(v any) string {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(encoded)
}

// PrintConfigSummary prints the chain name, version, and filter count.
func PrintConfigSummary(w io.Writer, ch *chain.Chain) {
	if ch == nil {
		return
	}
	fmt.Fprintf(w, "  Chain: %s\n", ch.Name)
	fmt.Fprintf(w, "  Version: %s\n", ch.Version)
	fmt.Fprintf(w, "  Filters: %d\n", len(ch.Filters))
}

// PrintFilterTypes lists registered filter type names, one per line.
func PrintFilterTypes(w io.Writer, types []string) {
	for _, t := range types {
		fmt.Fprintln(w, t)
	}
}
