package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/calidris/movetrack/internal/app"
	"github.com/calidris/movetrack/internal/frame"
	"github.com/calidris/movetrack/internal/model"
	"github.com/calidris/movetrack/internal/pipeline"
	"github.com/calidris/movetrack/internal/process"
	"github.com/calidris/movetrack/internal/render"
	"github.com/calidris/movetrack/internal/report"
	"github.com/calidris/movetrack/internal/store"
)

// resolveFormat returns the effective format string, falling back to "table".
func resolveFormat(cfgFormat string) string {
	if globalFlags.Format != "" {
		return globalFlags.Format
	}
	if cfgFormat != "" {
		return cfgFormat
	}
	return render.FormatTable
}

// loadFrame reads tabular input for analysis. A path of "-" reads JSONL
// records from stdin (the pipe format written by `process`); anything else
// is read as a CSV file. Column types are coerced leniently, with failures
// reported as warnings rather than errors.
func loadFrame(deps *app.Deps, path string) (*frame.Frame, []string, error) {
	if path == "-" {
		recs, err := pipeline.ReadRecords(os.Stdin)
		if err != nil {
			return nil, nil, err
		}
		f, err := process.FrameFromRecords(recs)
		if err != nil {
			return nil, nil, err
		}
		return f, nil, nil
	}

	f, err := frame.ReadCSVFile(path, deps.Config.ChunkSize)
	if err != nil {
		return nil, nil, err
	}
	warnings := process.ValidateTypes(f, process.DefaultTypes)
	return f, warnings, nil
}

// resolveCol maps a user-supplied column name to the name actually present
// in the frame, accepting either raw Movebank headers or standardized names.
func resolveCol(f *frame.Frame, name string) (string, error) {
	if got := process.ColumnOrStandardized(f, name); got != "" {
		return got, nil
	}
	return "", fmt.Errorf("column %q not found (have: %s)", name, strings.Join(f.Columns(), ", "))
}

// splitCols splits a comma-separated --columns value, dropping empties.
func splitCols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// newResult wraps a payload in the standard Result envelope.
func newResult(kind, command string, data interface{}, warnings []string, start time.Time, rows, items int) *model.Result {
	return &model.Result{
		Kind:        kind,
		GeneratedAt: time.Now(),
		Command:     command,
		Data:        data,
		Warnings:    warnings,
		Stats: model.ResultStats{
			DurationMs: time.Since(start).Milliseconds(),
			Rows:       rows,
			Items:      items,
		},
	}
}

// emitResult renders the result to --out (or stdout) and prints the footer.
func emitResult(cmd *cobra.Command, deps *app.Deps, result *model.Result, format string) error {
	if err := render.RenderTo(globalFlags.Out, result, format); err != nil {
		return err
	}
	if !deps.Config.Quiet {
		render.PrintFooter(cmd.OutOrStdout(), result, deps.Config.Verbose)
	}
	return nil
}

// saveReport writes the payload as a timestamped JSON report (plus YAML if
// asked) and registers it in the local catalog. Returns the JSON path.
func saveReport(deps *app.Deps, stage, dataset string, payload interface{}, withYAML bool) (string, []string, error) {
	w := report.NewWriter(deps.Config.ReportsDir)
	var warnings []string

	path, err := w.WriteJSON(stage, payload)
	if err != nil {
		return "", nil, err
	}
	if withYAML {
		if _, err := w.WriteYAML(stage, payload); err != nil {
			warnings = append(warnings, fmt.Sprintf("writing YAML report: %v", err))
		}
	}

	if err := deps.RequireStore(); err != nil {
		warnings = append(warnings, fmt.Sprintf("catalog unavailable: %v", err))
		return path, warnings, nil
	}
	meta := store.ReportMeta{
		ID:        uuid.New().String(),
		Kind:      stage,
		Dataset:   dataset,
		Path:      path,
		CreatedAt: time.Now(),
	}
	if err := deps.Store.PutReport(meta); err != nil {
		warnings = append(warnings, fmt.Sprintf("registering report: %v", err))
	}
	return path, warnings, nil
}

// printKVTable renders key/value pairs as an aligned two-column listing.
func printKVTable(w io.Writer, pairs [][2]string) {
	width := 0
	for _, p := range pairs {
		if len(p[0]) > width {
			width = len(p[0])
		}
	}
	for _, p := range pairs {
		fmt.Fprintf(w, "  %-*s  %s\n", width, p[0], p[1])
	}
}

// printSimpleTable renders a simple table with headers using tablewriter.
// The add callback is called with row values as variadic strings.
func printSimpleTable(w io.Writer, headers []string, fill func(add func(...string))) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)

	fill(func(cols ...string) {
		tw.Append(cols)
	})
	tw.Render()
}
