package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/calidris/movetrack/internal/analyze"
	"github.com/calidris/movetrack/internal/app"
	"github.com/calidris/movetrack/internal/frame"
	"github.com/calidris/movetrack/internal/geo"
	"github.com/calidris/movetrack/internal/model"
	"github.com/calidris/movetrack/internal/process"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Statistical analysis of tracking data",
	Long: `Run statistical analyses over a cleaned tracking CSV (or JSONL records
piped from process via "-").

analyze describe  — per-column summary statistics
analyze trends    — yearly sum/mean/count, optionally grouped
analyze correlate — correlation of numeric columns against a target
analyze seasonal  — monthly, quarterly, and yearly patterns
analyze metrics   — migration flow totals and top corridors
analyze outliers  — IQR or z-score outlier detection
analyze cluster   — k-means clustering of numeric features
analyze pca       — principal component analysis
analyze route     — per-individual route distance and speed

Use --report to also write the result as a timestamped JSON file under the
reports directory (--yaml adds a YAML copy).`,
}

// Flags shared by every analyze subcommand.
var (
	analyzeReport bool
	analyzeYAML   bool
)

// finishAnalysis optionally writes the report files, then renders the result.
func finishAnalysis(cmd *cobra.Command, deps *app.Deps, result *model.Result, stage, dataset string) error {
	if analyzeReport || analyzeYAML {
		path, warnings, err := saveReport(deps, stage, dataset, result.Data, analyzeYAML)
		if err != nil {
			return err
		}
		result.Warnings = append(result.Warnings, warnings...)
		if !deps.Config.Quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Report written to %s\n", path)
		}
		defer deps.Close()
	}
	return emitResult(cmd, deps, result, resolveFormat(deps.Config.Format))
}

// pickTimeCol returns the explicit flag value if set, otherwise the first
// time-like column the frame carries.
func pickTimeCol(f *frame.Frame, flagVal string) (string, error) {
	if flagVal != "" {
		return resolveCol(f, flagVal)
	}
	for _, cand := range []string{model.ColTimestamp, "date"} {
		if col := process.ColumnOrStandardized(f, cand); col != "" {
			return col, nil
		}
	}
	return "", fmt.Errorf("no timestamp or date column found; pass one with --date")
}

// numericCols returns the numeric-looking columns, minus any excluded names.
func numericCols(f *frame.Frame, exclude ...string) []string {
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[e] = true
	}
	var cols []string
	for _, name := range f.Columns() {
		if !skip[name] && f.LooksNumeric(name) {
			cols = append(cols, name)
		}
	}
	return cols
}

// ─── analyze describe ─────────────────────────────────────────────────────────

var describeTop int

var analyzeDescribeCmd = &cobra.Command{
	Use:   "describe <file>",
	Short: "Per-column summary statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		start := time.Now()

		f, warnings, err := loadFrame(deps, args[0])
		if err != nil {
			return err
		}
		desc, err := analyze.Describe(f, describeTop)
		if err != nil {
			return err
		}

		result := newResult(model.KindDescription,
			fmt.Sprintf("analyze describe %s", args[0]), desc, warnings,
			start, f.NumRows(), len(desc.Numeric)+len(desc.Categorical))
		return finishAnalysis(cmd, deps, result, "describe", args[0])
	},
}

// ─── analyze trends ───────────────────────────────────────────────────────────

var (
	trendsDate  string
	trendsValue string
	trendsGroup string
)

var analyzeTrendsCmd = &cobra.Command{
	Use:   "trends <file>",
	Short: "Yearly sum/mean/count of a value column, optionally grouped",
	Example: `  movetrack analyze trends migrations.csv --value migration_count --group origin
  movetrack analyze trends terns_clean.csv --value location_lat`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		start := time.Now()

		f, warnings, err := loadFrame(deps, args[0])
		if err != nil {
			return err
		}
		dateCol, err := pickTimeCol(f, trendsDate)
		if err != nil {
			return err
		}
		valueCol, err := resolveCol(f, trendsValue)
		if err != nil {
			return err
		}
		groupCol := ""
		if trendsGroup != "" {
			if groupCol, err = resolveCol(f, trendsGroup); err != nil {
				return err
			}
		}

		rows, err := analyze.Trends(f, dateCol, valueCol, groupCol)
		if err != nil {
			return err
		}

		result := newResult(model.KindTrends,
			fmt.Sprintf("analyze trends %s", args[0]), rows, warnings,
			start, f.NumRows(), len(rows))
		return finishAnalysis(cmd, deps, result, "trends", args[0])
	},
}

// ─── analyze correlate ────────────────────────────────────────────────────────

var (
	correlateTarget  string
	correlateColumns string
)

var analyzeCorrelateCmd = &cobra.Command{
	Use:   "correlate <file>",
	Short: "Correlate numeric columns against a target column",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		start := time.Now()

		f, warnings, err := loadFrame(deps, args[0])
		if err != nil {
			return err
		}
		target, err := resolveCol(f, correlateTarget)
		if err != nil {
			return err
		}

		features := splitCols(correlateColumns)
		if len(features) == 0 {
			features = numericCols(f, target)
		} else {
			for i, name := range features {
				if features[i], err = resolveCol(f, name); err != nil {
					return err
				}
			}
		}

		rows, err := analyze.Correlate(f, target, features)
		if err != nil {
			return err
		}

		result := newResult(model.KindCorrelation,
			fmt.Sprintf("analyze correlate %s", args[0]), rows, warnings,
			start, f.NumRows(), len(rows))
		return finishAnalysis(cmd, deps, result, "correlation", args[0])
	},
}

// ─── analyze seasonal ─────────────────────────────────────────────────────────

var (
	seasonalDate  string
	seasonalValue string
)

var analyzeSeasonalCmd = &cobra.Command{
	Use:   "seasonal <file>",
	Short: "Monthly, quarterly, and yearly patterns of a value column",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		start := time.Now()

		f, warnings, err := loadFrame(deps, args[0])
		if err != nil {
			return err
		}
		dateCol, err := pickTimeCol(f, seasonalDate)
		if err != nil {
			return err
		}
		valueCol, err := resolveCol(f, seasonalValue)
		if err != nil {
			return err
		}

		stats, err := analyze.Seasonal(f, dateCol, valueCol)
		if err != nil {
			return err
		}

		result := newResult(model.KindSeasonal,
			fmt.Sprintf("analyze seasonal %s", args[0]), stats, warnings,
			start, f.NumRows(), len(stats.Monthly))
		return finishAnalysis(cmd, deps, result, "seasonal", args[0])
	},
}

// ─── analyze metrics ──────────────────────────────────────────────────────────

var (
	metricsOrigin string
	metricsDest   string
	metricsValue  string
	metricsTop    int
)

var analyzeMetricsCmd = &cobra.Command{
	Use:   "metrics <file>",
	Short: "Migration flow totals, top corridors, and net flows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		start := time.Now()

		f, warnings, err := loadFrame(deps, args[0])
		if err != nil {
			return err
		}
		origin, err := resolveCol(f, metricsOrigin)
		if err != nil {
			return err
		}
		dest, err := resolveCol(f, metricsDest)
		if err != nil {
			return err
		}
		value, err := resolveCol(f, metricsValue)
		if err != nil {
			return err
		}

		m, err := analyze.MigrationMetrics(f, origin, dest, value, metricsTop)
		if err != nil {
			return err
		}

		result := newResult(model.KindMetrics,
			fmt.Sprintf("analyze metrics %s", args[0]), m, warnings,
			start, f.NumRows(), len(m.TopFlows))
		return finishAnalysis(cmd, deps, result, "metrics", args[0])
	},
}

// ─── analyze outliers ─────────────────────────────────────────────────────────

var (
	outliersColumns   string
	outliersMethod    string
	outliersThreshold float64
)

var analyzeOutliersCmd = &cobra.Command{
	Use:   "outliers <file>",
	Short: "Detect outliers in numeric columns (IQR or z-score)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		start := time.Now()

		f, warnings, err := loadFrame(deps, args[0])
		if err != nil {
			return err
		}

		cols := splitCols(outliersColumns)
		if len(cols) == 0 {
			cols = numericCols(f)
		} else {
			for i, name := range cols {
				if cols[i], err = resolveCol(f, name); err != nil {
					return err
				}
			}
		}

		threshold := outliersThreshold
		if threshold <= 0 {
			if outliersMethod == "zscore" {
				threshold = 3.0
			} else {
				threshold = 1.5
			}
		}

		rows, err := analyze.Outliers(f, cols, outliersMethod, threshold)
		if err != nil {
			return err
		}

		result := newResult(model.KindOutliers,
			fmt.Sprintf("analyze outliers %s", args[0]), rows, warnings,
			start, f.NumRows(), len(rows))
		return finishAnalysis(cmd, deps, result, "outliers", args[0])
	},
}

// ─── analyze cluster ──────────────────────────────────────────────────────────

var (
	clusterColumns string
	clusterK       int
	clusterSeed    int64
)

var analyzeClusterCmd = &cobra.Command{
	Use:   "cluster <file>",
	Short: "K-means clustering of numeric features",
	Long: `Cluster rows with k-means over standardized numeric features. The default
features are the coordinate columns; the seed makes runs reproducible.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		start := time.Now()

		f, warnings, err := loadFrame(deps, args[0])
		if err != nil {
			return err
		}

		features := splitCols(clusterColumns)
		if len(features) == 0 {
			for _, cand := range []string{model.ColLatitude, model.ColLongitude} {
				if col := process.ColumnOrStandardized(f, cand); col != "" {
					features = append(features, col)
				}
			}
			if len(features) == 0 {
				features = numericCols(f)
			}
		} else {
			for i, name := range features {
				if features[i], err = resolveCol(f, name); err != nil {
					return err
				}
			}
		}

		k := clusterK
		if k <= 0 {
			k = deps.Config.Clusters
		}
		seed := clusterSeed
		if !cmd.Flags().Changed("seed") {
			seed = deps.Config.Seed
		}

		res, err := analyze.KMeans(f, features, k, seed)
		if err != nil {
			return err
		}

		result := newResult(model.KindClusters,
			fmt.Sprintf("analyze cluster %s", args[0]), res, warnings,
			start, f.NumRows(), k)
		return finishAnalysis(cmd, deps, result, "clusters", args[0])
	},
}

// ─── analyze pca ──────────────────────────────────────────────────────────────

var (
	pcaColumns    string
	pcaComponents int
)

var analyzePCACmd = &cobra.Command{
	Use:   "pca <file>",
	Short: "Principal component analysis of numeric features",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		start := time.Now()

		f, warnings, err := loadFrame(deps, args[0])
		if err != nil {
			return err
		}

		features := splitCols(pcaColumns)
		if len(features) == 0 {
			features = numericCols(f)
		} else {
			for i, name := range features {
				if features[i], err = resolveCol(f, name); err != nil {
					return err
				}
			}
		}

		res, err := analyze.PCA(f, features, pcaComponents)
		if err != nil {
			return err
		}

		result := newResult(model.KindPCA,
			fmt.Sprintf("analyze pca %s", args[0]), res, warnings,
			start, f.NumRows(), len(res.ExplainedVariance))
		return finishAnalysis(cmd, deps, result, "pca", args[0])
	},
}

// ─── analyze route ────────────────────────────────────────────────────────────

var routeIndividual string

var analyzeRouteCmd = &cobra.Command{
	Use:   "route <file>",
	Short: "Per-individual route distance, displacement, and speed",
	Example: `  movetrack analyze route terns_clean.csv
  movetrack process terns.csv | movetrack analyze route -
  movetrack analyze route terns_clean.csv --individual T042`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		start := time.Now()

		f, warnings, err := loadFrame(deps, args[0])
		if err != nil {
			return err
		}
		recs, err := process.Records(f)
		if err != nil {
			return err
		}

		routes := geo.Routes(recs)
		if routeIndividual != "" {
			kept := routes[:0]
			for _, r := range routes {
				if r.Individual == routeIndividual {
					kept = append(kept, r)
				}
			}
			routes = kept
			if len(routes) == 0 {
				return fmt.Errorf("no records for individual %q", routeIndividual)
			}
		}

		result := newResult(model.KindRoutes,
			fmt.Sprintf("analyze route %s", args[0]), routes, warnings,
			start, len(recs), len(routes))
		return finishAnalysis(cmd, deps, result, "routes", args[0])
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.AddCommand(analyzeDescribeCmd)
	analyzeCmd.AddCommand(analyzeTrendsCmd)
	analyzeCmd.AddCommand(analyzeCorrelateCmd)
	analyzeCmd.AddCommand(analyzeSeasonalCmd)
	analyzeCmd.AddCommand(analyzeMetricsCmd)
	analyzeCmd.AddCommand(analyzeOutliersCmd)
	analyzeCmd.AddCommand(analyzeClusterCmd)
	analyzeCmd.AddCommand(analyzePCACmd)
	analyzeCmd.AddCommand(analyzeRouteCmd)

	pf := analyzeCmd.PersistentFlags()
	pf.BoolVar(&analyzeReport, "report", false,
		"write the result as a timestamped JSON report")
	pf.BoolVar(&analyzeYAML, "yaml", false,
		"also write a YAML copy of the report (implies --report)")

	analyzeDescribeCmd.Flags().IntVar(&describeTop, "top", 10,
		"number of most frequent values to report per text column")

	analyzeTrendsCmd.Flags().StringVar(&trendsDate, "date", "",
		"time column (default: timestamp or date)")
	analyzeTrendsCmd.Flags().StringVar(&trendsValue, "value", "migration_count",
		"numeric column to aggregate")
	analyzeTrendsCmd.Flags().StringVar(&trendsGroup, "group", "",
		"optional column to group by")

	analyzeCorrelateCmd.Flags().StringVar(&correlateTarget, "target", "migration_count",
		"target column to correlate against")
	analyzeCorrelateCmd.Flags().StringVar(&correlateColumns, "columns", "",
		"comma-separated feature columns (default: all numeric)")

	analyzeSeasonalCmd.Flags().StringVar(&seasonalDate, "date", "",
		"time column (default: timestamp or date)")
	analyzeSeasonalCmd.Flags().StringVar(&seasonalValue, "value", "migration_count",
		"numeric column to aggregate")

	analyzeMetricsCmd.Flags().StringVar(&metricsOrigin, "origin", "origin",
		"origin column")
	analyzeMetricsCmd.Flags().StringVar(&metricsDest, "dest", "destination",
		"destination column")
	analyzeMetricsCmd.Flags().StringVar(&metricsValue, "value", "migration_count",
		"numeric flow column")
	analyzeMetricsCmd.Flags().IntVar(&metricsTop, "top", 10,
		"number of top corridors to report")

	analyzeOutliersCmd.Flags().StringVar(&outliersColumns, "columns", "",
		"comma-separated columns to scan (default: all numeric)")
	analyzeOutliersCmd.Flags().StringVar(&outliersMethod, "method", "iqr",
		"detection method: iqr|zscore")
	analyzeOutliersCmd.Flags().Float64Var(&outliersThreshold, "threshold", 0,
		"detection threshold (default: 1.5 for iqr, 3.0 for zscore)")

	analyzeClusterCmd.Flags().StringVar(&clusterColumns, "columns", "",
		"comma-separated feature columns (default: coordinates)")
	analyzeClusterCmd.Flags().IntVar(&clusterK, "k", 0,
		"number of clusters (default from config)")
	analyzeClusterCmd.Flags().Int64Var(&clusterSeed, "seed", 0,
		"random seed for reproducible runs (default from config)")

	analyzePCACmd.Flags().StringVar(&pcaColumns, "columns", "",
		"comma-separated feature columns (default: all numeric)")
	analyzePCACmd.Flags().IntVar(&pcaComponents, "components", 2,
		"number of principal components to keep")

	analyzeRouteCmd.Flags().StringVar(&routeIndividual, "individual", "",
		"only report this individual's route")
}
