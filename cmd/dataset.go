package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/calidris/movetrack/internal/fetch"
	"github.com/calidris/movetrack/internal/frame"
	"github.com/calidris/movetrack/internal/model"
	"github.com/calidris/movetrack/internal/pipeline"
	"github.com/calidris/movetrack/internal/process"
	"github.com/calidris/movetrack/internal/render"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Inspect local tracking datasets",
	Long: `Inspect tracking CSV files on disk and the local dataset catalog.

dataset info     — load a file and print its summary
dataset validate — check structure, required columns, and cell types
dataset records  — emit records as JSONL for piping into analyze
dataset list     — list datasets registered in the local catalog`,
}

// ─── dataset info ─────────────────────────────────────────────────────────────

var datasetInfoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Load a tracking CSV and print its summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		start := time.Now()
		format := resolveFormat(deps.Config.Format)

		f, err := frame.ReadCSVFile(args[0], deps.Config.ChunkSize)
		if err != nil {
			return err
		}
		sum := fetch.Summarize(filepath.Base(args[0]), "", args[0], f)

		result := newResult(model.KindDatasetSummary,
			fmt.Sprintf("dataset info %s", args[0]), &sum, nil, start, f.NumRows(), 1)
		return emitResult(cmd, deps, result, format)
	},
}

// ─── dataset validate ─────────────────────────────────────────────────────────

// validation is the payload of `dataset validate`.
type validation struct {
	File            string   `json:"file"`
	Rows            int      `json:"rows"`
	Columns         int      `json:"columns"`
	MissingRequired []string `json:"missing_required,omitempty"`
	DuplicateRows   int      `json:"duplicate_rows"`
	TypeWarnings    []string `json:"type_warnings,omitempty"`
	OK              bool     `json:"ok"`
}

var datasetValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a tracking CSV for structural and type problems",
	Long: `Validate a tracking CSV without modifying it: verifies the required
columns exist, counts exact duplicate rows, and reports cells that fail to
parse as their declared type. Exits non-zero when required columns are
missing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		start := time.Now()
		format := resolveFormat(deps.Config.Format)

		f, err := frame.ReadCSVFile(args[0], deps.Config.ChunkSize)
		if err != nil {
			return err
		}

		v := validation{
			File:    args[0],
			Rows:    f.NumRows(),
			Columns: f.NumCols(),
		}
		v.MissingRequired = process.MissingRequired(f)
		_, v.DuplicateRows = process.Dedupe(f)
		v.TypeWarnings = process.ValidateTypes(f.Clone(), process.DefaultTypes)
		v.OK = len(v.MissingRequired) == 0

		if format == render.FormatTable {
			status := "ok"
			if !v.OK {
				status = "missing required columns: " + strings.Join(v.MissingRequired, ", ")
			}
			printKVTable(cmd.OutOrStdout(), [][2]string{
				{"File", v.File},
				{"Rows", fmt.Sprintf("%d", v.Rows)},
				{"Columns", fmt.Sprintf("%d", v.Columns)},
				{"Duplicate rows", fmt.Sprintf("%d", v.DuplicateRows)},
				{"Type warnings", fmt.Sprintf("%d", len(v.TypeWarnings))},
				{"Status", status},
			})
			for _, w := range v.TypeWarnings {
				fmt.Fprintf(cmd.OutOrStdout(), "  ⚠  %s\n", w)
			}
		} else {
			result := newResult(model.KindTable,
				fmt.Sprintf("dataset validate %s", args[0]), &v, nil, start, v.Rows, 1)
			if err := emitResult(cmd, deps, result, format); err != nil {
				return err
			}
		}

		if !v.OK {
			return fmt.Errorf("missing required columns: %s", strings.Join(v.MissingRequired, ", "))
		}
		return nil
	},
}

// ─── dataset records ──────────────────────────────────────────────────────────

var (
	recordsLimit      int
	recordsIndividual string
)

var datasetRecordsCmd = &cobra.Command{
	Use:   "records <file>",
	Short: "Emit records as JSONL for piping into analyze",
	Example: `  movetrack dataset records data/movebank/terns.csv | movetrack analyze route -
  movetrack dataset records terns.csv --individual T042 --limit 100`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}

		f, err := process.Load(args[0], deps.Config.ChunkSize)
		if err != nil {
			return err
		}
		recs, err := process.Records(f)
		if err != nil {
			return err
		}

		if recordsIndividual != "" {
			kept := recs[:0]
			for _, r := range recs {
				if r.Individual == recordsIndividual {
					kept = append(kept, r)
				}
			}
			recs = kept
		}
		if recordsLimit > 0 && len(recs) > recordsLimit {
			recs = recs[:recordsLimit]
		}

		out := os.Stdout
		if globalFlags.Out != "" {
			file, err := os.Create(globalFlags.Out)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer file.Close()
			out = file
		}
		return pipeline.WriteRecords(out, recs)
	},
}

// ─── dataset list ─────────────────────────────────────────────────────────────

var datasetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List datasets registered in the local catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		format := resolveFormat(deps.Config.Format)

		sums, err := deps.Store.ListDatasets()
		if err != nil {
			return err
		}

		if format == render.FormatTable {
			if len(sums) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No datasets in catalog. Use `movetrack fetch --store` to add one.")
				return nil
			}
			printSimpleTable(cmd.OutOrStdout(),
				[]string{"NAME", "RECORDS", "INDIVIDUALS", "SPECIES", "SIZE (MB)", "FETCHED"},
				func(add func(...string)) {
					for _, s := range sums {
						add(s.Name,
							fmt.Sprintf("%d", s.TotalRecords),
							fmt.Sprintf("%d", s.UniqueIndividuals),
							fmt.Sprintf("%d", s.UniqueSpecies),
							fmt.Sprintf("%.2f", s.FileSizeMB),
							s.FetchedAt.Format("2006-01-02 15:04"))
					}
				})
			return nil
		}

		result := newResult(model.KindTable, "dataset list", sums, nil, start, 0, len(sums))
		return emitResult(cmd, deps, result, format)
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(datasetCmd)
	datasetCmd.AddCommand(datasetInfoCmd)
	datasetCmd.AddCommand(datasetValidateCmd)
	datasetCmd.AddCommand(datasetRecordsCmd)
	datasetCmd.AddCommand(datasetListCmd)

	datasetRecordsCmd.Flags().IntVar(&recordsLimit, "limit", 0,
		"emit at most N records (0 = all)")
	datasetRecordsCmd.Flags().StringVar(&recordsIndividual, "individual", "",
		"only emit records for this individual")
}
