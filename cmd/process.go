package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/calidris/movetrack/internal/frame"
	"github.com/calidris/movetrack/internal/model"
	"github.com/calidris/movetrack/internal/pipeline"
	"github.com/calidris/movetrack/internal/process"
)

var (
	processOut       string
	processKeepNames bool
	processNoDedupe  bool
	processCalendar  bool
	processOptimize  bool
)

// processed is the summary payload of the process command.
type processed struct {
	Input             string                `json:"input"`
	Output            string                `json:"output,omitempty"`
	RowsIn            int                   `json:"rows_in"`
	RowsOut           int                   `json:"rows_out"`
	DuplicatesRemoved int                   `json:"duplicates_removed"`
	TypeWarnings      []string              `json:"type_warnings,omitempty"`
	CalendarFeatures  bool                  `json:"calendar_features"`
	Memory            *process.MemoryReport `json:"memory,omitempty"`
}

var processCmd = &cobra.Command{
	Use:   "process <file>",
	Short: "Clean and standardize a tracking CSV",
	Long: `Clean a tracking CSV for analysis: standardize column names, remove exact
duplicate rows, coerce column types (bad cells become missing), and sort by
timestamp.

With --out the cleaned table is written as CSV; otherwise records are
emitted as JSONL on stdout for piping into analyze commands. Pass "-" as
the file to read JSONL records from stdin.`,
	Example: `  movetrack process data/movebank/terns.csv --out terns_clean.csv
  movetrack process terns.csv --calendar --out terns_features.csv
  movetrack process terns.csv | movetrack analyze route -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.Config.Validate(); err != nil {
			return err
		}

		start := time.Now()
		format := resolveFormat(deps.Config.Format)

		var f *frame.Frame
		if args[0] == "-" {
			recs, err := pipeline.ReadRecords(os.Stdin)
			if err != nil {
				return err
			}
			if f, err = process.FrameFromRecords(recs); err != nil {
				return err
			}
		} else {
			if f, err = frame.ReadCSVFile(args[0], deps.Config.ChunkSize); err != nil {
				return err
			}
		}

		sum := processed{Input: args[0], RowsIn: f.NumRows(), CalendarFeatures: processCalendar}

		if !processKeepNames {
			if f, err = process.StandardizeNames(f); err != nil {
				return err
			}
		}
		if !processNoDedupe {
			f, sum.DuplicatesRemoved = process.Dedupe(f)
		}
		sum.TypeWarnings = process.ValidateTypes(f, process.DefaultTypes)

		if ts := process.ColumnOrStandardized(f, model.ColTimestamp); ts != "" {
			if sorted, err := f.SortByTime(ts); err == nil {
				f = sorted
			}
			if processCalendar {
				if err := process.CalendarFeatures(f, ts); err != nil {
					return err
				}
			}
		} else if processCalendar {
			return fmt.Errorf("--calendar requires a timestamp column")
		}

		if processOptimize {
			rep := process.Optimize(f)
			sum.Memory = &rep
		}
		sum.RowsOut = f.NumRows()

		if processOut != "" {
			if err := f.WriteCSVFile(processOut); err != nil {
				return err
			}
			sum.Output = processOut
			result := newResult(model.KindProcessed,
				fmt.Sprintf("process %s", args[0]), &sum, sum.TypeWarnings, start, sum.RowsOut, 1)
			return emitResult(cmd, deps, result, format)
		}

		// No output file: emit records for piping.
		recs, err := process.Records(f)
		if err != nil {
			return err
		}
		if err := pipeline.WriteRecords(os.Stdout, recs); err != nil {
			return err
		}
		if !deps.Config.Quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ %d rows in, %d out (%d duplicates removed, %d type warnings)\n",
				sum.RowsIn, sum.RowsOut, sum.DuplicatesRemoved, len(sum.TypeWarnings))
		}
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVar(&processOut, "out", "",
		"write the cleaned table to this CSV file")
	processCmd.Flags().BoolVar(&processKeepNames, "keep-names", false,
		"keep original column names instead of standardizing them")
	processCmd.Flags().BoolVar(&processNoDedupe, "no-dedupe", false,
		"skip exact duplicate row removal")
	processCmd.Flags().BoolVar(&processCalendar, "calendar", false,
		"add calendar feature columns derived from the timestamp")
	processCmd.Flags().BoolVar(&processOptimize, "optimize", false,
		"intern repeated text values and report memory usage")
}
