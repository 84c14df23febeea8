package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/calidris/movetrack/internal/model"
	"github.com/calidris/movetrack/internal/render"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect and manage the local catalog database",
	Long: `Inspect and manage the local bbolt catalog that tracks fetched datasets,
written reports, and saved snapshots.

store stats — per-bucket entry counts and database size
store clear — delete entries from one bucket, or everything`,
}

// ─── store stats ──────────────────────────────────────────────────────────────

var storeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Per-bucket entry counts and database size",
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

		stats, err := deps.Store.Stats()
		if err != nil {
			return err
		}

		if format == render.FormatTable {
			fmt.Fprintf(cmd.OutOrStdout(), "Catalog: %s\n\n", deps.Store.Path())
			printSimpleTable(cmd.OutOrStdout(),
				[]string{"BUCKET", "ENTRIES", "BYTES"},
				func(add func(...string)) {
					for _, b := range stats {
						add(b.Name, fmt.Sprintf("%d", b.Count), fmt.Sprintf("%d", b.Bytes))
					}
				})
			return nil
		}
		result := newResult(model.KindTable, "store stats", stats, nil, start, 0, len(stats))
		return emitResult(cmd, deps, result, format)
	},
}

// ─── store clear ──────────────────────────────────────────────────────────────

var storeClearAll bool

var storeClearCmd = &cobra.Command{
	Use:   "clear [bucket]",
	Short: "Delete entries from one bucket, or everything with --all",
	Example: `  movetrack store clear datasets
  movetrack store clear --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		switch {
		case storeClearAll:
			if err := deps.Store.ClearAll(); err != nil {
				return err
			}
			if !deps.Config.Quiet {
				fmt.Fprintln(cmd.OutOrStdout(), "✓ Cleared all buckets")
			}
		case len(args) == 1:
			if err := deps.Store.ClearBucket(args[0]); err != nil {
				return err
			}
			if !deps.Config.Quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared bucket %s\n", args[0])
			}
		default:
			return fmt.Errorf("specify a bucket name or --all")
		}
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeStatsCmd)
	storeCmd.AddCommand(storeClearCmd)

	storeClearCmd.Flags().BoolVar(&storeClearAll, "all", false,
		"clear every bucket")
}
