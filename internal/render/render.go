// Package render converts Result values into human-readable or machine-parseable
// output. Each format is a separate function; the top-level Render dispatcher
// selects based on the format string.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/calidris/movetrack/internal/analyze"
	"github.com/calidris/movetrack/internal/geo"
	"github.com/calidris/movetrack/internal/model"
)

// Format constants matching --format flag values.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatMD    = "md"
)

// Render writes result to w in the specified format.
func Render(w io.Writer, result *model.Result, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatJSONL:
		return renderJSONL(w, result)
	case FormatCSV:
		return renderDelimited(w, result, ',')
	case FormatTSV:
		return renderDelimited(w, result, '\t')
	case FormatMD:
		return renderMarkdown(w, result)
	default:
		return renderTable(w, result)
	}
}

// RenderTo writes to stdout by default; if path is non-empty, writes to file.
func RenderTo(path string, result *model.Result, format string) error {
	if path == "" {
		return Render(os.Stdout, result, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	return Render(f, result, format)
}

// ─── JSON / JSONL ─────────────────────────────────────────────────────────────

func renderJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func renderJSONL(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	switch data := result.Data.(type) {
	case []analyze.TrendRow:
		for _, row := range data {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
		return nil
	case []analyze.Correlation:
		for _, row := range data {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
		return nil
	case []geo.Route:
		for _, row := range data {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
		return nil
	default:
		return enc.Encode(result.Data)
	}
}

// ─── Table ────────────────────────────────────────────────────────────────────

func renderTable(w io.Writer, result *model.Result) error {
	switch result.Kind {
	case model.KindDatasetSummary:
		if sum, ok := result.Data.(*model.DatasetSummary); ok {
			return renderSummaryTable(w, sum)
		}
	case model.KindDescription:
		if d, ok := result.Data.(*analyze.Description); ok {
			return renderDescriptionTable(w, d)
		}
	case model.KindTrends:
		if rows, ok := result.Data.([]analyze.TrendRow); ok {
			return renderTrendsTable(w, rows)
		}
	case model.KindCorrelation:
		if rows, ok := result.Data.([]analyze.Correlation); ok {
			return renderCorrelationTable(w, rows)
		}
	case model.KindSeasonal:
		if s, ok := result.Data.(*analyze.SeasonalStats); ok {
			return renderSeasonalTable(w, s)
		}
	case model.KindMetrics:
		if m, ok := result.Data.(*analyze.Metrics); ok {
			return renderMetricsTable(w, m)
		}
	case model.KindOutliers:
		if rows, ok := result.Data.([]analyze.OutlierReport); ok {
			return renderOutliersTable(w, rows)
		}
	case model.KindClusters:
		if c, ok := result.Data.(*analyze.ClusterResult); ok {
			return renderClustersTable(w, c)
		}
	case model.KindPCA:
		if p, ok := result.Data.(*analyze.PCAResult); ok {
			return renderPCATable(w, p)
		}
	case model.KindRoutes:
		if routes, ok := result.Data.([]geo.Route); ok {
			return renderRoutesTable(w, routes)
		}
	}
	// Fallback: JSON
	return renderJSON(w, result)
}

func newTable(w io.Writer, headers []string) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)
	return tw
}

func renderSummaryTable(w io.Writer, sum *model.DatasetSummary) error {
	tw := newTable(w, []string{"FIELD", "VALUE"})
	rows := [][]string{
		{"Name", sum.Name},
		{"Local File", sum.LocalFile},
		{"Records", fmt.Sprintf("%d", sum.TotalRecords)},
		{"Columns", fmt.Sprintf("%d", sum.TotalColumns)},
		{"File Size", fmt.Sprintf("%.2f MB", sum.FileSizeMB)},
		{"Individuals", fmt.Sprintf("%d", sum.UniqueIndividuals)},
		{"Species", fmt.Sprintf("%d", sum.UniqueSpecies)},
		{"Studies", fmt.Sprintf("%d", sum.Studies)},
	}
	if sum.SourceURL != "" {
		rows = append(rows, []string{"Source", sum.SourceURL})
	}
	if sum.DateRange.Start != "" {
		rows = append(rows, []string{"Date Range", sum.DateRange.Start + " → " + sum.DateRange.End})
	}
	rows = append(rows,
		[]string{"Lat Range", formatValue(float64(sum.LocationRange.LatMin)) + " → " + formatValue(float64(sum.LocationRange.LatMax))},
		[]string{"Lon Range", formatValue(float64(sum.LocationRange.LonMin)) + " → " + formatValue(float64(sum.LocationRange.LonMax))},
	)
	for _, r := range rows {
		tw.Append(r)
	}
	tw.Render()
	return nil
}

func renderDescriptionTable(w io.Writer, d *analyze.Description) error {
	fmt.Fprintf(w, "Shape: %d rows × %d columns\n\n", d.Rows, d.Cols)

	if len(d.Numeric) > 0 {
		tw := newTable(w, []string{"COLUMN", "COUNT", "MISSING", "MEAN", "STD", "MIN", "P25", "MEDIAN", "P75", "MAX"})
		for _, s := range d.Numeric {
			tw.Append([]string{
				s.Column,
				fmt.Sprintf("%d", s.Count),
				fmt.Sprintf("%d", s.Missing),
				formatValue(float64(s.Mean)),
				formatValue(float64(s.Std)),
				formatValue(float64(s.Min)),
				formatValue(float64(s.P25)),
				formatValue(float64(s.Median)),
				formatValue(float64(s.P75)),
				formatValue(float64(s.Max)),
			})
		}
		tw.Render()
	}

	for _, c := range d.Categorical {
		fmt.Fprintf(w, "\n%s (%d distinct):\n", c.Column, c.Distinct)
		tw := newTable(w, []string{"VALUE", "COUNT"})
		for _, vc := range c.Top {
			tw.Append([]string{vc.Value, fmt.Sprintf("%d", vc.Count)})
		}
		tw.Render()
	}

	missing := make([]string, 0, len(d.Missing))
	for col, n := range d.Missing {
		if n > 0 {
			missing = append(missing, fmt.Sprintf("%s=%d", col, n))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		fmt.Fprintf(w, "\nMissing: %s\n", strings.Join(missing, ", "))
	}
	return nil
}

func renderTrendsTable(w io.Writer, rows []analyze.TrendRow) error {
	headers := []string{"YEAR", "SUM", "MEAN", "COUNT"}
	grouped := len(rows) > 0 && rows[0].Group != ""
	if grouped {
		headers = append([]string{"GROUP"}, headers...)
	}
	tw := newTable(w, headers)
	for _, r := range rows {
		cols := []string{
			fmt.Sprintf("%d", r.Year),
			formatValue(float64(r.Sum)),
			formatValue(float64(r.Mean)),
			fmt.Sprintf("%d", r.Count),
		}
		if grouped {
			cols = append([]string{r.Group}, cols...)
		}
		tw.Append(cols)
	}
	tw.Render()
	return nil
}

func renderCorrelationTable(w io.Writer, rows []analyze.Correlation) error {
	tw := newTable(w, []string{"FEATURE", "R", "P", "N", "SIGNIFICANT"})
	for _, r := range rows {
		sig := ""
		if r.Significant {
			sig = "yes"
		}
		tw.Append([]string{
			r.Feature,
			formatValue(float64(r.R)),
			formatValue(float64(r.P)),
			fmt.Sprintf("%d", r.N),
			sig,
		})
	}
	tw.Render()
	return nil
}

func renderSeasonalTable(w io.Writer, s *analyze.SeasonalStats) error {
	sections := []struct {
		label   string
		buckets []analyze.PeriodStat
	}{
		{"MONTH", s.Monthly},
		{"QUARTER", s.Quarterly},
		{"YEAR", s.Yearly},
	}
	for _, sec := range sections {
		if len(sec.buckets) == 0 {
			continue
		}
		tw := newTable(w, []string{sec.label, "MEAN", "STD", "COUNT"})
		for _, b := range sec.buckets {
			tw.Append([]string{
				fmt.Sprintf("%d", b.Period),
				formatValue(float64(b.Mean)),
				formatValue(float64(b.Std)),
				fmt.Sprintf("%d", b.Count),
			})
		}
		tw.Render()
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Peak month: %d (%s)   Low month: %d (%s)\n",
		s.PeakMonth, formatValue(float64(s.PeakMean)),
		s.LowMonth, formatValue(float64(s.LowMean)))
	return nil
}

func renderMetricsTable(w io.Writer, m *analyze.Metrics) error {
	fmt.Fprintf(w, "Total migration: %s over %d records (mean %s, median %s, std %s)\n\n",
		formatValue(m.TotalMigration), m.Records,
		formatValue(float64(m.MeanCount)),
		formatValue(float64(m.MedianCount)),
		formatValue(float64(m.StdCount)))

	flowTables := []struct {
		label string
		flows []analyze.Flow
	}{
		{"TOP ORIGINS", m.TopOrigins},
		{"TOP DESTINATIONS", m.TopDestinations},
		{"TOP FLOWS", m.TopFlows},
	}
	for _, ft := range flowTables {
		if len(ft.flows) == 0 {
			continue
		}
		tw := newTable(w, []string{ft.label, "TOTAL", "COUNT"})
		for _, fl := range ft.flows {
			label := fl.Origin
			if fl.Origin != "" && fl.Destination != "" {
				label = fl.Origin + " → " + fl.Destination
			} else if fl.Destination != "" {
				label = fl.Destination
			}
			tw.Append([]string{label, formatValue(fl.Total), fmt.Sprintf("%d", fl.Count)})
		}
		tw.Render()
		fmt.Fprintln(w)
	}

	if len(m.NetFlows) > 0 {
		tw := newTable(w, []string{"LOCATION", "INBOUND", "OUTBOUND", "NET"})
		for _, nf := range m.NetFlows {
			tw.Append([]string{
				nf.Location,
				formatValue(nf.Inbound),
				formatValue(nf.Outbound),
				formatValue(nf.Net),
			})
		}
		tw.Render()
	}
	return nil
}

func renderOutliersTable(w io.Writer, rows []analyze.OutlierReport) error {
	tw := newTable(w, []string{"COLUMN", "METHOD", "OUTLIERS", "LOWER", "UPPER"})
	for _, r := range rows {
		tw.Append([]string{
			r.Column,
			fmt.Sprintf("%s (%.1f)", r.Method, r.Threshold),
			fmt.Sprintf("%d", r.Count),
			formatValue(float64(r.Lower)),
			formatValue(float64(r.Upper)),
		})
	}
	tw.Render()
	return nil
}

func renderClustersTable(w io.Writer, c *analyze.ClusterResult) error {
	fmt.Fprintf(w, "k=%d seed=%d inertia=%s rows=%d dropped=%d iterations=%d\n\n",
		c.K, c.Seed, formatValue(c.Inertia), c.Rows, c.Dropped, c.Iterations)

	headers := append([]string{"CLUSTER", "SIZE"}, c.Features...)
	tw := newTable(w, headers)
	for i, center := range c.Centers {
		row := []string{fmt.Sprintf("%d", i), fmt.Sprintf("%d", c.Sizes[i])}
		for _, v := range center {
			row = append(row, formatValue(float64(v)))
		}
		tw.Append(row)
	}
	tw.Render()
	return nil
}

func renderPCATable(w io.Writer, p *analyze.PCAResult) error {
	tw := newTable(w, []string{"COMPONENT", "EXPLAINED VAR", "CUMULATIVE"})
	for i := range p.ExplainedVariance {
		tw.Append([]string{
			fmt.Sprintf("PC%d", i+1),
			formatValue(float64(p.ExplainedVariance[i])),
			formatValue(float64(p.Cumulative[i])),
		})
	}
	tw.Render()
	return nil
}

func renderRoutesTable(w io.Writer, routes []geo.Route) error {
	tw := newTable(w, []string{"INDIVIDUAL", "FIXES", "TOTAL KM", "DISPLACEMENT KM", "DAYS", "AVG KM/H", "MAX KM/H"})
	for _, r := range routes {
		tw.Append([]string{
			r.Individual,
			fmt.Sprintf("%d", r.Fixes),
			formatValue(float64(r.TotalKm)),
			formatValue(float64(r.DisplacementKm)),
			formatValue(float64(r.DurationDays)),
			formatValue(float64(r.AvgSpeedKmh)),
			formatValue(float64(r.MaxSpeedKmh)),
		})
	}
	tw.Render()
	return nil
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func renderDelimited(w io.Writer, result *model.Result, sep rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep

	switch data := result.Data.(type) {
	case []analyze.TrendRow:
		_ = cw.Write([]string{"group", "year", "sum", "mean", "count"})
		for _, r := range data {
			_ = cw.Write([]string{
				r.Group,
				fmt.Sprintf("%d", r.Year),
				formatValue(float64(r.Sum)),
				formatValue(float64(r.Mean)),
				fmt.Sprintf("%d", r.Count),
			})
		}
	case []analyze.Correlation:
		_ = cw.Write([]string{"feature", "r", "p", "n", "significant"})
		for _, r := range data {
			_ = cw.Write([]string{
				r.Feature,
				formatValue(float64(r.R)),
				formatValue(float64(r.P)),
				fmt.Sprintf("%d", r.N),
				fmt.Sprintf("%t", r.Significant),
			})
		}
	case []geo.Route:
		_ = cw.Write([]string{"individual", "fixes", "total_km", "displacement_km", "days", "avg_kmh", "max_kmh"})
		for _, r := range data {
			_ = cw.Write([]string{
				r.Individual,
				fmt.Sprintf("%d", r.Fixes),
				formatValue(float64(r.TotalKm)),
				formatValue(float64(r.DisplacementKm)),
				formatValue(float64(r.DurationDays)),
				formatValue(float64(r.AvgSpeedKmh)),
				formatValue(float64(r.MaxSpeedKmh)),
			})
		}
	case []analyze.OutlierReport:
		_ = cw.Write([]string{"column", "method", "threshold", "count", "lower", "upper"})
		for _, r := range data {
			_ = cw.Write([]string{
				r.Column, r.Method,
				formatValue(r.Threshold),
				fmt.Sprintf("%d", r.Count),
				formatValue(float64(r.Lower)),
				formatValue(float64(r.Upper)),
			})
		}
	default:
		// Fallback: serialize as JSON on a single line
		b, _ := json.Marshal(result.Data)
		_ = cw.Write([]string{string(b)})
	}

	cw.Flush()
	return cw.Error()
}

// ─── Markdown ─────────────────────────────────────────────────────────────────

func renderMarkdown(w io.Writer, result *model.Result) error {
	switch data := result.Data.(type) {
	case []analyze.TrendRow:
		fmt.Fprintf(w, "| GROUP | YEAR | SUM | MEAN | COUNT |\n|----|----|----|----|----|\n")
		for _, r := range data {
			fmt.Fprintf(w, "| %s | %d | %s | %s | %d |\n",
				mdEscape(r.Group), r.Year,
				formatValue(float64(r.Sum)), formatValue(float64(r.Mean)), r.Count)
		}
		return nil
	case []analyze.Correlation:
		fmt.Fprintf(w, "| FEATURE | R | P | N | SIGNIFICANT |\n|----|----|----|----|----|\n")
		for _, r := range data {
			fmt.Fprintf(w, "| %s | %s | %s | %d | %t |\n",
				mdEscape(r.Feature),
				formatValue(float64(r.R)), formatValue(float64(r.P)), r.N, r.Significant)
		}
		return nil
	default:
		return renderJSON(w, result)
	}
}

// ─── Warnings / Stats Footer ─────────────────────────────────────────────────

// PrintFooter writes warnings and stats to w when verbose mode is on.
func PrintFooter(w io.Writer, result *model.Result, verbose bool) {
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "⚠  %s\n", warn)
	}
	if verbose {
		fmt.Fprintf(w, "\n[%s • %d rows • %d items • %dms]\n",
			result.GeneratedAt.Format(time.RFC3339),
			result.Stats.Rows,
			result.Stats.Items,
			result.Stats.DurationMs,
		)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// formatValue formats a statistic for display.
// Always shows at least one decimal place (e.g. 4.0, not 4).
// Trims unnecessary trailing zeros beyond the first (e.g. 3.400000 → 3.4).
// Missing values (NaN) render as ".".
func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "."
	}
	// Trim trailing zeros but keep at least one digit after the decimal point.
	s := strings.TrimRight(fmt.Sprintf("%.6f", v), "0")
	if strings.HasSuffix(s, ".") {
		s += "0" // "4." → "4.0"
	}
	return s
}

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
