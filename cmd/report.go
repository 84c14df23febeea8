package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/calidris/movetrack/internal/model"
	"github.com/calidris/movetrack/internal/render"
	"github.com/calidris/movetrack/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "List and show written analysis reports",
	Long: `Work with report files under the reports directory.

report list — list report files, newest first
report show — print one report file`,
}

// ─── report list ──────────────────────────────────────────────────────────────

var reportCatalog bool

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List report files, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		start := time.Now()
		format := resolveFormat(deps.Config.Format)

		if reportCatalog {
			if err := deps.RequireStore(); err != nil {
				return err
			}
			defer deps.Close()

			metas, err := deps.Store.ListReports()
			if err != nil {
				return err
			}
			if format == render.FormatTable {
				if len(metas) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No reports in catalog.")
					return nil
				}
				printSimpleTable(cmd.OutOrStdout(),
					[]string{"ID", "KIND", "DATASET", "PATH", "CREATED"},
					func(add func(...string)) {
						for _, m := range metas {
							add(m.ID, m.Kind, m.Dataset, m.Path,
								m.CreatedAt.Format("2006-01-02 15:04"))
						}
					})
				return nil
			}
			result := newResult(model.KindReports, "report list", metas, nil, start, 0, len(metas))
			return emitResult(cmd, deps, result, format)
		}

		entries, err := report.List(deps.Config.ReportsDir)
		if err != nil {
			return err
		}
		if format == render.FormatTable {
			if len(entries) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No reports under %s.\n", deps.Config.ReportsDir)
				return nil
			}
			printSimpleTable(cmd.OutOrStdout(),
				[]string{"NAME", "SIZE (B)", "MODIFIED"},
				func(add func(...string)) {
					for _, e := range entries {
						add(e.Name, fmt.Sprintf("%d", e.Bytes),
							e.Modified.Format("2006-01-02 15:04:05"))
					}
				})
			return nil
		}
		result := newResult(model.KindReports, "report list", entries, nil, start, 0, len(entries))
		return emitResult(cmd, deps, result, format)
	},
}

// ─── report show ──────────────────────────────────────────────────────────────

var reportShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print one report file",
	Long: `Print a report file to stdout. The name is resolved relative to the
reports directory unless it is an absolute path.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}

		path := args[0]
		if !filepath.IsAbs(path) {
			if _, err := os.Stat(path); err != nil {
				path = filepath.Join(deps.Config.ReportsDir, args[0])
			}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading report: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportListCmd)
	reportCmd.AddCommand(reportShowCmd)

	reportListCmd.Flags().BoolVar(&reportCatalog, "catalog", false,
		"list reports registered in the local catalog instead of files on disk")
}
