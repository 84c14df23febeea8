// Package analyze computes statistics over frames: descriptive summaries,
// year-bucketed trends, correlation with significance tests, seasonal
// breakdowns, migration metrics, outlier detection, k-means clustering,
// and PCA. All functions are pure; no I/O.
package analyze

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/calidris/movetrack/internal/frame"
	"github.com/calidris/movetrack/internal/model"
)

// ─── Descriptive Statistics ───────────────────────────────────────────────────

// NumericSummary is the per-column numeric profile.
type NumericSummary struct {
	Column  string      `json:"column"`
	Count   int         `json:"count"`   // non-missing cells
	Missing int         `json:"missing"` // missing cells
	Mean    model.Float `json:"mean"`
	Std     model.Float `json:"std"`
	Min     model.Float `json:"min"`
	P25     model.Float `json:"p25"`
	Median  model.Float `json:"median"`
	P75     model.Float `json:"p75"`
	Max     model.Float `json:"max"`
}

// ValueCount is one categorical value and its frequency.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// CategoricalSummary holds the top value counts for one text column.
type CategoricalSummary struct {
	Column   string       `json:"column"`
	Distinct int          `json:"distinct"`
	Top      []ValueCount `json:"top"`
}

// Description is the full descriptive profile of a frame.
type Description struct {
	Rows        int                  `json:"rows"`
	Cols        int                  `json:"cols"`
	Numeric     []NumericSummary     `json:"numeric"`
	Missing     map[string]int       `json:"missing"`
	Categorical []CategoricalSummary `json:"categorical"`
}

// Describe profiles every column: numeric summaries for numeric-looking
// columns, top-N value counts for the remaining text columns, and missing
// counts for all.
func Describe(f *frame.Frame, topN int) (*Description, error) {
	if topN <= 0 {
		topN = 10
	}
	d := &Description{
		Rows:    f.NumRows(),
		Cols:    f.NumCols(),
		Missing: make(map[string]int, f.NumCols()),
	}
	for _, name := range f.Columns() {
		col := f.Col(name)
		d.Missing[name] = col.MissingCount()

		if col.Kind == frame.KindTime {
			continue
		}
		if f.LooksNumeric(name) {
			vals, err := f.Numeric(name)
			if err != nil {
				return nil, err
			}
			d.Numeric = append(d.Numeric, summarize(name, vals))
			continue
		}
		d.Categorical = append(d.Categorical, topValues(name, col, topN))
	}
	return d, nil
}

// summarize computes the numeric profile of one column.
// NaN values are excluded from all numeric computations but counted.
func summarize(name string, vals []float64) NumericSummary {
	present := dropNaN(vals)
	s := NumericSummary{
		Column:  name,
		Count:   len(present),
		Missing: len(vals) - len(present),
	}
	if len(present) == 0 {
		nan := model.Float(math.NaN())
		s.Mean, s.Std, s.Min, s.P25, s.Median, s.P75, s.Max = nan, nan, nan, nan, nan, nan, nan
		return s
	}
	sort.Float64s(present)
	s.Mean = model.Float(stat.Mean(present, nil))
	s.Std = model.Float(stdOrNaN(present))
	s.Min = model.Float(present[0])
	s.P25 = model.Float(quantileSorted(0.25, present))
	s.Median = model.Float(quantileSorted(0.5, present))
	s.P75 = model.Float(quantileSorted(0.75, present))
	s.Max = model.Float(present[len(present)-1])
	return s
}

func topValues(name string, col *frame.Series, topN int) CategoricalSummary {
	counts := make(map[string]int)
	for i := 0; i < col.Len(); i++ {
		if col.Missing(i) {
			continue
		}
		counts[col.Cell(i)]++
	}
	vcs := make([]ValueCount, 0, len(counts))
	for v, c := range counts {
		vcs = append(vcs, ValueCount{Value: v, Count: c})
	}
	sort.Slice(vcs, func(i, j int) bool {
		if vcs[i].Count != vcs[j].Count {
			return vcs[i].Count > vcs[j].Count
		}
		return vcs[i].Value < vcs[j].Value
	})
	out := CategoricalSummary{Column: name, Distinct: len(vcs)}
	if len(vcs) > topN {
		vcs = vcs[:topN]
	}
	out.Top = vcs
	return out
}

// ─── Trend Analysis ───────────────────────────────────────────────────────────

// TrendRow is one (group, year) aggregate.
type TrendRow struct {
	Group string      `json:"group,omitempty"`
	Year  int         `json:"year"`
	Sum   model.Float `json:"sum"`
	Mean  model.Float `json:"mean"`
	Count int         `json:"count"`
}

// Trends groups rows by year of timeCol (and optionally by groupCol) and
// aggregates valueCol as sum, mean, and non-missing count. The result has
// one row per distinct (group, year) pair present, sorted by group then
// year. Rows with a missing timestamp are skipped.
func Trends(f *frame.Frame, timeCol, valueCol, groupCol string) ([]TrendRow, error) {
	times, err := f.TimeColumn(timeCol)
	if err != nil {
		return nil, err
	}
	vals, err := f.Numeric(valueCol)
	if err != nil {
		return nil, err
	}
	var groups []string
	if groupCol != "" {
		groups, err = f.StringColumn(groupCol)
		if err != nil {
			return nil, err
		}
	}

	type key struct {
		group string
		year  int
	}
	agg := make(map[key]*TrendRow)
	for i, t := range times {
		if t.IsZero() {
			continue
		}
		k := key{year: t.Year()}
		if groups != nil {
			k.group = groups[i]
		}
		row, ok := agg[k]
		if !ok {
			row = &TrendRow{Group: k.group, Year: k.year}
			agg[k] = row
		}
		if !math.IsNaN(vals[i]) {
			row.Sum += model.Float(vals[i])
			row.Count++
		}
	}

	out := make([]TrendRow, 0, len(agg))
	for _, row := range agg {
		if row.Count > 0 {
			row.Mean = row.Sum / model.Float(row.Count)
		} else {
			row.Mean = model.Float(math.NaN())
		}
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].Year < out[j].Year
	})
	return out, nil
}

// ─── Correlation ──────────────────────────────────────────────────────────────

// Correlation is one feature's Pearson correlation against the target.
type Correlation struct {
	Feature     string      `json:"feature"`
	R           model.Float `json:"r"`
	P           model.Float `json:"p"`
	N           int         `json:"n"`
	Significant bool        `json:"significant"`
}

// Correlate computes the Pearson correlation and two-sided t-test p-value
// of each feature against the target over pairwise-complete rows, sorted by
// |r| descending. Features default to every numeric-looking column except
// the target. Significance threshold is p < 0.05.
func Correlate(f *frame.Frame, target string, features []string) ([]Correlation, error) {
	tv, err := f.Numeric(target)
	if err != nil {
		return nil, err
	}
	if features == nil {
		for _, name := range f.Columns() {
			if name != target && f.LooksNumeric(name) {
				features = append(features, name)
			}
		}
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("no numeric features to correlate against %q", target)
	}

	out := make([]Correlation, 0, len(features))
	for _, feat := range features {
		fv, err := f.Numeric(feat)
		if err != nil {
			return nil, err
		}
		var xs, ys []float64
		for i := range fv {
			if math.IsNaN(fv[i]) || math.IsNaN(tv[i]) {
				continue
			}
			xs = append(xs, fv[i])
			ys = append(ys, tv[i])
		}
		c := Correlation{Feature: feat, N: len(xs)}
		if len(xs) < 3 {
			c.R = model.Float(math.NaN())
			c.P = model.Float(math.NaN())
			out = append(out, c)
			continue
		}
		r := stat.Correlation(xs, ys, nil)
		r = math.Max(-1, math.Min(1, r))
		p := pearsonPValue(r, len(xs))
		c.R = model.Float(r)
		c.P = model.Float(p)
		c.Significant = !math.IsNaN(p) && p < 0.05
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := math.Abs(float64(out[i].R)), math.Abs(float64(out[j].R))
		if math.IsNaN(b) {
			return true
		}
		if math.IsNaN(a) {
			return false
		}
		return a > b
	})
	return out, nil
}

// CorrelationMatrix computes the pairwise Pearson correlation of the given
// columns over pairwise-complete rows. The diagonal is 1; pairs with fewer
// than 3 complete rows are NaN.
func CorrelationMatrix(f *frame.Frame, cols []string) ([][]float64, error) {
	if len(cols) < 2 {
		return nil, fmt.Errorf("need at least 2 columns for a correlation matrix, have %d", len(cols))
	}
	vals := make([][]float64, len(cols))
	for i, name := range cols {
		v, err := f.Numeric(name)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	m := make([][]float64, len(cols))
	for i := range m {
		m[i] = make([]float64, len(cols))
		m[i][i] = 1
	}
	for i := 0; i < len(cols); i++ {
		for j := i + 1; j < len(cols); j++ {
			var xs, ys []float64
			for k := range vals[i] {
				if math.IsNaN(vals[i][k]) || math.IsNaN(vals[j][k]) {
					continue
				}
				xs = append(xs, vals[i][k])
				ys = append(ys, vals[j][k])
			}
			r := math.NaN()
			if len(xs) >= 3 {
				r = stat.Correlation(xs, ys, nil)
				r = math.Max(-1, math.Min(1, r))
			}
			m[i][j], m[j][i] = r, r
		}
	}
	return m, nil
}

// pearsonPValue is the two-sided p-value of r under the null hypothesis of
// zero correlation, via the t distribution with n-2 degrees of freedom.
func pearsonPValue(r float64, n int) float64 {
	if n < 3 || math.IsNaN(r) {
		return math.NaN()
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	t := r * math.Sqrt(float64(n-2)/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	p := 2 * dist.CDF(-math.Abs(t))
	return math.Max(0, math.Min(1, p))
}

// ─── Seasonal Analysis ────────────────────────────────────────────────────────

// PeriodStat is one calendar bucket's aggregate.
type PeriodStat struct {
	Period int         `json:"period"`
	Mean   model.Float `json:"mean"`
	Std    model.Float `json:"std"`
	Count  int         `json:"count"`
}

// SeasonalStats holds calendar-bucketed aggregates of one value column.
type SeasonalStats struct {
	Monthly   []PeriodStat `json:"monthly"`
	Quarterly []PeriodStat `json:"quarterly"`
	Yearly    []PeriodStat `json:"yearly"`
	PeakMonth int          `json:"peak_month"`
	PeakMean  model.Float  `json:"peak_mean"`
	LowMonth  int          `json:"low_month"`
	LowMean   model.Float  `json:"low_mean"`
}

// Seasonal buckets valueCol by month, quarter, and year of dateCol,
// reporting each bucket's mean, standard deviation, and count, plus the
// months of maximum and minimum mean.
func Seasonal(f *frame.Frame, dateCol, valueCol string) (*SeasonalStats, error) {
	times, err := f.TimeColumn(dateCol)
	if err != nil {
		return nil, err
	}
	vals, err := f.Numeric(valueCol)
	if err != nil {
		return nil, err
	}

	monthly := make(map[int][]float64)
	quarterly := make(map[int][]float64)
	yearly := make(map[int][]float64)
	for i, t := range times {
		if t.IsZero() || math.IsNaN(vals[i]) {
			continue
		}
		m := int(t.Month())
		monthly[m] = append(monthly[m], vals[i])
		q := (m-1)/3 + 1
		quarterly[q] = append(quarterly[q], vals[i])
		yearly[t.Year()] = append(yearly[t.Year()], vals[i])
	}

	out := &SeasonalStats{
		Monthly:   bucketStats(monthly),
		Quarterly: bucketStats(quarterly),
		Yearly:    bucketStats(yearly),
		PeakMean:  model.Float(math.NaN()),
		LowMean:   model.Float(math.NaN()),
	}
	for _, b := range out.Monthly {
		if out.PeakMonth == 0 || float64(b.Mean) > float64(out.PeakMean) {
			out.PeakMonth, out.PeakMean = b.Period, b.Mean
		}
		if out.LowMonth == 0 || float64(b.Mean) < float64(out.LowMean) {
			out.LowMonth, out.LowMean = b.Period, b.Mean
		}
	}
	return out, nil
}

func bucketStats(buckets map[int][]float64) []PeriodStat {
	out := make([]PeriodStat, 0, len(buckets))
	for period, vals := range buckets {
		out = append(out, PeriodStat{
			Period: period,
			Mean:   model.Float(stat.Mean(vals, nil)),
			Std:    model.Float(stdOrNaN(vals)),
			Count:  len(vals),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}

// ─── Migration Metrics ────────────────────────────────────────────────────────

// Flow is one aggregated origin, destination, or origin→destination edge.
type Flow struct {
	Origin      string  `json:"origin,omitempty"`
	Destination string  `json:"destination,omitempty"`
	Total       float64 `json:"total"`
	Count       int     `json:"count"`
}

// NetFlow is the inbound/outbound balance of one location.
type NetFlow struct {
	Location string  `json:"location"`
	Inbound  float64 `json:"inbound"`
	Outbound float64 `json:"outbound"`
	Net      float64 `json:"net"`
}

// Metrics summarises origin→destination migration volumes.
type Metrics struct {
	TotalMigration  float64     `json:"total_migration"`
	Records         int         `json:"records"`
	MeanCount       model.Float `json:"mean_count"`
	MedianCount     model.Float `json:"median_count"`
	StdCount        model.Float `json:"std_count"`
	TopOrigins      []Flow      `json:"top_origins"`
	TopDestinations []Flow      `json:"top_destinations"`
	TopFlows        []Flow      `json:"top_flows"`
	NetFlows        []NetFlow   `json:"net_flows"`
}

// MigrationMetrics aggregates valueCol over origin and destination columns.
// TotalMigration is the exact sum of the value column's non-missing cells.
func MigrationMetrics(f *frame.Frame, originCol, destCol, valueCol string, topN int) (*Metrics, error) {
	if topN <= 0 {
		topN = 5
	}
	origins, err := f.StringColumn(originCol)
	if err != nil {
		return nil, err
	}
	dests, err := f.StringColumn(destCol)
	if err != nil {
		return nil, err
	}
	vals, err := f.Numeric(valueCol)
	if err != nil {
		return nil, err
	}

	byOrigin := make(map[string]*Flow)
	byDest := make(map[string]*Flow)
	byEdge := make(map[string]*Flow)
	inbound := make(map[string]float64)
	outbound := make(map[string]float64)

	m := &Metrics{}
	var present []float64
	for i, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		m.TotalMigration += v
		m.Records++
		present = append(present, v)

		o, d := origins[i], dests[i]
		addFlow(byOrigin, o, Flow{Origin: o}, v)
		addFlow(byDest, d, Flow{Destination: d}, v)
		addFlow(byEdge, o+"\x1f"+d, Flow{Origin: o, Destination: d}, v)
		outbound[o] += v
		inbound[d] += v
	}

	if len(present) > 0 {
		sort.Float64s(present)
		m.MeanCount = model.Float(stat.Mean(present, nil))
		m.MedianCount = model.Float(quantileSorted(0.5, present))
		m.StdCount = model.Float(stdOrNaN(present))
	} else {
		nan := model.Float(math.NaN())
		m.MeanCount, m.MedianCount, m.StdCount = nan, nan, nan
	}

	m.TopOrigins = topFlows(byOrigin, topN)
	m.TopDestinations = topFlows(byDest, topN)
	m.TopFlows = topFlows(byEdge, topN)

	locations := make(map[string]bool)
	for loc := range inbound {
		locations[loc] = true
	}
	for loc := range outbound {
		locations[loc] = true
	}
	for loc := range locations {
		m.NetFlows = append(m.NetFlows, NetFlow{
			Location: loc,
			Inbound:  inbound[loc],
			Outbound: outbound[loc],
			Net:      inbound[loc] - outbound[loc],
		})
	}
	sort.Slice(m.NetFlows, func(i, j int) bool {
		if m.NetFlows[i].Net != m.NetFlows[j].Net {
			return m.NetFlows[i].Net > m.NetFlows[j].Net
		}
		return m.NetFlows[i].Location < m.NetFlows[j].Location
	})
	return m, nil
}

func addFlow(m map[string]*Flow, key string, proto Flow, v float64) {
	if fl, ok := m[key]; ok {
		fl.Total += v
		fl.Count++
		return
	}
	proto.Total = v
	proto.Count = 1
	m[key] = &proto
}

func topFlows(m map[string]*Flow, n int) []Flow {
	out := make([]Flow, 0, len(m))
	for _, fl := range m {
		out = append(out, *fl)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		if out[i].Origin != out[j].Origin {
			return out[i].Origin < out[j].Origin
		}
		return out[i].Destination < out[j].Destination
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// ─── Outlier Detection ────────────────────────────────────────────────────────

// OutlierReport is one column's outlier summary under one detection method.
type OutlierReport struct {
	Column    string      `json:"column"`
	Method    string      `json:"method"`
	Threshold float64     `json:"threshold"`
	Count     int         `json:"count"`
	Lower     model.Float `json:"lower"`
	Upper     model.Float `json:"upper"`
}

// Outliers counts values outside method-specific bounds. Method "iqr"
// bounds at Q1/Q3 ∓ threshold·IQR (default threshold 1.5); "zscore" bounds
// at mean ± threshold·std (default 3).
func Outliers(f *frame.Frame, cols []string, method string, threshold float64) ([]OutlierReport, error) {
	switch method {
	case "iqr":
		if threshold <= 0 {
			threshold = 1.5
		}
	case "zscore":
		if threshold <= 0 {
			threshold = 3
		}
	default:
		return nil, fmt.Errorf("unknown outlier method %q (want iqr or zscore)", method)
	}

	out := make([]OutlierReport, 0, len(cols))
	for _, col := range cols {
		vals, err := f.Numeric(col)
		if err != nil {
			return nil, err
		}
		present := dropNaN(vals)
		rep := OutlierReport{Column: col, Method: method, Threshold: threshold}
		if len(present) == 0 {
			rep.Lower = model.Float(math.NaN())
			rep.Upper = model.Float(math.NaN())
			out = append(out, rep)
			continue
		}
		sort.Float64s(present)
		var lower, upper float64
		if method == "iqr" {
			q1 := quantileSorted(0.25, present)
			q3 := quantileSorted(0.75, present)
			iqr := q3 - q1
			lower, upper = q1-threshold*iqr, q3+threshold*iqr
		} else {
			mean := stat.Mean(present, nil)
			std := stdOrNaN(present)
			lower, upper = mean-threshold*std, mean+threshold*std
		}
		for _, v := range present {
			if v < lower || v > upper {
				rep.Count++
			}
		}
		rep.Lower = model.Float(lower)
		rep.Upper = model.Float(upper)
		out = append(out, rep)
	}
	return out, nil
}

// ─── Shared Helpers ───────────────────────────────────────────────────────────

func dropNaN(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// stdOrNaN is the sample standard deviation, NaN for fewer than two values.
func stdOrNaN(vals []float64) float64 {
	if len(vals) < 2 {
		return math.NaN()
	}
	return stat.StdDev(vals, nil)
}

// quantileSorted is a linearly interpolated quantile over an already-sorted
// slice.
func quantileSorted(p float64, sorted []float64) float64 {
	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}

// completeRows extracts the rows where every feature is non-missing,
// returning the feature matrix row-major plus the original row indices.
func completeRows(f *frame.Frame, features []string) ([][]float64, []int, error) {
	if len(features) == 0 {
		return nil, nil, fmt.Errorf("no features given")
	}
	cols := make([][]float64, len(features))
	for j, feat := range features {
		vals, err := f.Numeric(feat)
		if err != nil {
			return nil, nil, err
		}
		cols[j] = vals
	}
	var rows [][]float64
	var idx []int
	for i := 0; i < f.NumRows(); i++ {
		row := make([]float64, len(features))
		ok := true
		for j := range features {
			v := cols[j][i]
			if math.IsNaN(v) {
				ok = false
				break
			}
			row[j] = v
		}
		if ok {
			rows = append(rows, row)
			idx = append(idx, i)
		}
	}
	return rows, idx, nil
}

// standardizeRows rescales each column of rows to zero mean and unit
// variance in place, returning the original means and stddevs.
// Zero-variance columns are centered only.
func standardizeRows(rows [][]float64, nFeatures int) (means, stds []float64) {
	means = make([]float64, nFeatures)
	stds = make([]float64, nFeatures)
	col := make([]float64, len(rows))
	for j := 0; j < nFeatures; j++ {
		for i := range rows {
			col[i] = rows[i][j]
		}
		means[j] = stat.Mean(col, nil)
		stds[j] = stat.StdDev(col, nil)
		if stds[j] == 0 || math.IsNaN(stds[j]) {
			stds[j] = 1
		}
		for i := range rows {
			rows[i][j] = (rows[i][j] - means[j]) / stds[j]
		}
	}
	return means, stds
}
