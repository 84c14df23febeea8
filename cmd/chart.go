package cmd

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot"

	"github.com/calidris/movetrack/internal/analyze"
	"github.com/calidris/movetrack/internal/app"
	"github.com/calidris/movetrack/internal/chart"
	"github.com/calidris/movetrack/internal/frame"
	"github.com/calidris/movetrack/internal/geo"
	"github.com/calidris/movetrack/internal/model"
	"github.com/calidris/movetrack/internal/process"
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render analysis charts as PNG files",
	Long: `Render charts from a cleaned tracking CSV (or JSONL records piped from
process via "-") into the figures directory.

chart map        — route map of GPS fixes on a lon/lat plane
chart histogram  — distribution of one numeric column
chart bars       — per-group totals of a value column
chart timeseries — a value column over time
chart heatmap    — correlation heat map of numeric columns
chart dashboard  — 2x2 panel overview on one canvas`,
}

var (
	chartOut         string
	chartIndividual  string
	chartHistColumn  string
	chartHeatColumns string
	chartBarsValue   string
	chartTSValue     string
	chartGroup       string
	chartBins        int
	chartTop         int
)

// chartResult is the payload listing written figure files.
type chartResult struct {
	Files []string `json:"files"`
}

// figurePath picks --out when given, otherwise a timestamped name under the
// figures directory.
func figurePath(deps *app.Deps, stage string) string {
	if chartOut != "" {
		return chartOut
	}
	return chart.Filename(deps.Config.FiguresDir, stage)
}

// emitCharts reports the written files.
func emitCharts(cmd *cobra.Command, deps *app.Deps, command string, files, warnings []string, start time.Time, rows int) error {
	if !deps.Config.Quiet {
		for _, f := range files {
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Figure written to %s\n", f)
		}
	}
	result := newResult(model.KindCharts, command, &chartResult{Files: files},
		warnings, start, rows, len(files))
	format := resolveFormat(deps.Config.Format)
	if format == "table" && !deps.Config.Verbose {
		return nil
	}
	return emitResult(cmd, deps, result, format)
}

// trackPoints extracts the lat/lon series for the map and dashboard panels,
// optionally filtered to one individual.
func trackPoints(f *frame.Frame, individual string) (lats, lons []float64, title string, err error) {
	recs, err := process.Records(f)
	if err != nil {
		return nil, nil, "", err
	}
	title = "Migration route"
	for _, r := range recs {
		if individual != "" && r.Individual != individual {
			continue
		}
		lats = append(lats, r.Lat)
		lons = append(lons, r.Lon)
	}
	if individual != "" {
		title = fmt.Sprintf("Migration route — %s", individual)
	}
	if len(lats) == 0 {
		return nil, nil, "", fmt.Errorf("no records to map")
	}
	return lats, lons, title, nil
}

// ─── chart map ────────────────────────────────────────────────────────────────

var chartMapCmd = &cobra.Command{
	Use:   "map <file>",
	Short: "Route map of GPS fixes",
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
		lats, lons, title, err := trackPoints(f, chartIndividual)
		if err != nil {
			return err
		}
		p, err := chart.NewRouteMap(lats, lons, title)
		if err != nil {
			return err
		}
		path := figurePath(deps, "route_map")
		if err := chart.Save(p, path, 0, 0); err != nil {
			return err
		}
		return emitCharts(cmd, deps, fmt.Sprintf("chart map %s", args[0]),
			[]string{path}, warnings, start, f.NumRows())
	},
}

// ─── chart histogram ──────────────────────────────────────────────────────────

var chartHistogramCmd = &cobra.Command{
	Use:   "histogram <file>",
	Short: "Distribution of one numeric column",
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
		col, err := resolveCol(f, chartHistColumn)
		if err != nil {
			return err
		}
		vals, err := f.Numeric(col)
		if err != nil {
			return err
		}

		bins := chartBins
		if bins <= 0 {
			bins = deps.Config.Bins
		}
		p, err := chart.NewHistogram(vals, bins, fmt.Sprintf("Distribution of %s", col), col)
		if err != nil {
			return err
		}
		path := figurePath(deps, "histogram_"+col)
		if err := chart.Save(p, path, 0, 0); err != nil {
			return err
		}
		return emitCharts(cmd, deps, fmt.Sprintf("chart histogram %s", args[0]),
			[]string{path}, warnings, start, f.NumRows())
	},
}

// ─── chart bars ───────────────────────────────────────────────────────────────

// groupTotals sums value by group, descending, keeping the top n.
func groupTotals(f *frame.Frame, groupCol, valueCol string, n int) ([]string, []float64, error) {
	groups, err := f.StringColumn(groupCol)
	if err != nil {
		return nil, nil, err
	}
	vals, err := f.Numeric(valueCol)
	if err != nil {
		return nil, nil, err
	}
	totals := make(map[string]float64)
	for i, g := range groups {
		if g == "" || math.IsNaN(vals[i]) {
			continue
		}
		totals[g] += vals[i]
	}
	if len(totals) == 0 {
		return nil, nil, fmt.Errorf("no usable (%s, %s) pairs", groupCol, valueCol)
	}

	labels := make([]string, 0, len(totals))
	for g := range totals {
		labels = append(labels, g)
	}
	// Sort by total descending, ties by name for stable output.
	for i := 0; i < len(labels); i++ {
		for j := i + 1; j < len(labels); j++ {
			ti, tj := totals[labels[i]], totals[labels[j]]
			if tj > ti || (tj == ti && labels[j] < labels[i]) {
				labels[i], labels[j] = labels[j], labels[i]
			}
		}
	}
	if n > 0 && len(labels) > n {
		labels = labels[:n]
	}
	out := make([]float64, len(labels))
	for i, g := range labels {
		out[i] = totals[g]
	}
	return labels, out, nil
}

var chartBarsCmd = &cobra.Command{
	Use:   "bars <file>",
	Short: "Per-group totals of a value column",
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
		groupCol, err := resolveCol(f, chartGroup)
		if err != nil {
			return err
		}
		valueCol, err := resolveCol(f, chartBarsValue)
		if err != nil {
			return err
		}
		labels, totals, err := groupTotals(f, groupCol, valueCol, chartTop)
		if err != nil {
			return err
		}

		p, err := chart.NewBars(labels, totals,
			fmt.Sprintf("Total %s by %s", valueCol, groupCol), valueCol)
		if err != nil {
			return err
		}
		path := figurePath(deps, "bars_"+groupCol)
		if err := chart.Save(p, path, 0, 0); err != nil {
			return err
		}
		return emitCharts(cmd, deps, fmt.Sprintf("chart bars %s", args[0]),
			[]string{path}, warnings, start, f.NumRows())
	},
}

// ─── chart timeseries ─────────────────────────────────────────────────────────

var chartTimeseriesCmd = &cobra.Command{
	Use:   "timeseries <file>",
	Short: "A value column over time",
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
		timeCol, err := pickTimeCol(f, "")
		if err != nil {
			return err
		}
		valueCol, err := resolveCol(f, chartTSValue)
		if err != nil {
			return err
		}
		times, err := f.TimeColumn(timeCol)
		if err != nil {
			return err
		}
		vals, err := f.Numeric(valueCol)
		if err != nil {
			return err
		}

		p, err := chart.NewTimeSeries(times, vals,
			fmt.Sprintf("%s over time", valueCol), valueCol)
		if err != nil {
			return err
		}
		path := figurePath(deps, "timeseries_"+valueCol)
		if err := chart.Save(p, path, 0, 0); err != nil {
			return err
		}
		return emitCharts(cmd, deps, fmt.Sprintf("chart timeseries %s", args[0]),
			[]string{path}, warnings, start, f.NumRows())
	},
}

// ─── chart heatmap ────────────────────────────────────────────────────────────

var chartHeatmapCmd = &cobra.Command{
	Use:   "heatmap <file>",
	Short: "Correlation heat map of numeric columns",
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
		cols := splitCols(chartHeatColumns)
		if len(cols) == 0 {
			cols = numericCols(f)
		} else {
			for i, name := range cols {
				if cols[i], err = resolveCol(f, name); err != nil {
					return err
				}
			}
		}

		m, err := analyze.CorrelationMatrix(f, cols)
		if err != nil {
			return err
		}
		// Undefined pairs render as zero correlation.
		for i := range m {
			for j := range m[i] {
				if math.IsNaN(m[i][j]) {
					m[i][j] = 0
				}
			}
		}

		p, err := chart.NewHeatmap(cols, m, "Correlation matrix")
		if err != nil {
			return err
		}
		path := figurePath(deps, "heatmap")
		if err := chart.Save(p, path, 0, 0); err != nil {
			return err
		}
		return emitCharts(cmd, deps, fmt.Sprintf("chart heatmap %s", args[0]),
			[]string{path}, warnings, start, f.NumRows())
	},
}

// ─── chart dashboard ──────────────────────────────────────────────────────────

var chartDashboardCmd = &cobra.Command{
	Use:   "dashboard <file>",
	Short: "2x2 panel overview: route map, latitude histogram, fixes per individual, latitude over time",
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
		recs, err := process.Records(f)
		if err != nil {
			return err
		}

		lats := make([]float64, len(recs))
		lons := make([]float64, len(recs))
		times := make([]time.Time, len(recs))
		for i, r := range recs {
			lats[i], lons[i], times[i] = r.Lat, r.Lon, r.Timestamp
		}

		panels := [][]*plot.Plot{{nil, nil}, {nil, nil}}

		if p, err := chart.NewRouteMap(lats, lons, "Migration routes"); err == nil {
			panels[0][0] = p
		} else {
			warnings = append(warnings, fmt.Sprintf("route map: %v", err))
		}
		if p, err := chart.NewHistogram(lats, deps.Config.Bins, "Latitude distribution", "latitude"); err == nil {
			panels[0][1] = p
		} else {
			warnings = append(warnings, fmt.Sprintf("histogram: %v", err))
		}

		routes := geo.Routes(recs)
		labels := make([]string, 0, len(routes))
		fixes := make([]float64, 0, len(routes))
		for _, r := range routes {
			labels = append(labels, r.Individual)
			fixes = append(fixes, float64(r.Fixes))
		}
		if len(labels) > 12 {
			labels, fixes = labels[:12], fixes[:12]
		}
		if p, err := chart.NewBars(labels, fixes, "Fixes per individual", "fixes"); err == nil {
			panels[1][0] = p
		} else {
			warnings = append(warnings, fmt.Sprintf("bars: %v", err))
		}
		if p, err := chart.NewTimeSeries(times, lats, "Latitude over time", "latitude"); err == nil {
			panels[1][1] = p
		} else {
			warnings = append(warnings, fmt.Sprintf("timeseries: %v", err))
		}

		path := figurePath(deps, "dashboard")
		if err := chart.SaveDashboard(path, panels, 0, 0); err != nil {
			return err
		}
		return emitCharts(cmd, deps, fmt.Sprintf("chart dashboard %s", args[0]),
			[]string{path}, warnings, start, f.NumRows())
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(chartCmd)
	chartCmd.AddCommand(chartMapCmd)
	chartCmd.AddCommand(chartHistogramCmd)
	chartCmd.AddCommand(chartBarsCmd)
	chartCmd.AddCommand(chartTimeseriesCmd)
	chartCmd.AddCommand(chartHeatmapCmd)
	chartCmd.AddCommand(chartDashboardCmd)

	chartCmd.PersistentFlags().StringVar(&chartOut, "figure", "",
		"write the figure to this path instead of the figures directory")

	chartMapCmd.Flags().StringVar(&chartIndividual, "individual", "",
		"only map this individual's fixes")
	chartHistogramCmd.Flags().StringVar(&chartHistColumn, "column", "location-lat",
		"numeric column to bin")
	chartHistogramCmd.Flags().IntVar(&chartBins, "bins", 0,
		"number of bins (default from config)")
	chartBarsCmd.Flags().StringVar(&chartGroup, "group", "individual-local-identifier",
		"column to group by")
	chartBarsCmd.Flags().StringVar(&chartBarsValue, "value", "migration_count",
		"numeric column to total per group")
	chartBarsCmd.Flags().IntVar(&chartTop, "top", 15,
		"number of largest groups to chart")
	chartTimeseriesCmd.Flags().StringVar(&chartTSValue, "value", "location-lat",
		"numeric column to plot over time")
	chartHeatmapCmd.Flags().StringVar(&chartHeatColumns, "columns", "",
		"comma-separated columns (default: all numeric)")
}
