// Package process implements the cleaning stage: duplicate removal,
// column-name standardization, declared-type coercion, calendar feature
// derivation, and memory optimization. Functions take a frame and return a
// new frame (or mutate column types in place where the operation is a pure
// retyping), reporting recoverable problems as warning strings rather than
// errors.
package process

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/calidris/movetrack/internal/frame"
	"github.com/calidris/movetrack/internal/model"
)

// ─── Deduplication ────────────────────────────────────────────────────────────

// Dedupe removes exact full-row duplicates, keeping the first occurrence.
// The removed count is reported, not failed on. Idempotent.
func Dedupe(f *frame.Frame) (*frame.Frame, int) {
	n := f.NumRows()
	seen := make(map[string]bool, n)
	keep := make([]int, 0, n)
	for i := 0; i < n; i++ {
		key := f.RowKey(i)
		if seen[key] {
			continue
		}
		seen[key] = true
		keep = append(keep, i)
	}
	return f.Take(keep), n - len(keep)
}

// ─── Column-Name Standardization ──────────────────────────────────────────────

// StandardizeName lower-cases a column name and replaces spaces and hyphens
// with underscores. Pure and idempotent.
func StandardizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

// StandardizeNames returns a copy of the frame with standardized column
// names. Two source columns mapping to the same standardized name is an
// error naming both offenders; silently overwriting one with the other
// would corrupt every downstream analysis.
func StandardizeNames(f *frame.Frame) (*frame.Frame, error) {
	out := f.Clone()
	first := make(map[string]string, out.NumCols())
	for _, name := range out.Columns() {
		std := StandardizeName(name)
		if prev, ok := first[std]; ok {
			return nil, fmt.Errorf("columns %q and %q both standardize to %q", prev, name, std)
		}
		first[std] = name
		out.Col(name).Name = std
	}
	return out, nil
}

// ─── Required Columns ─────────────────────────────────────────────────────────

// MissingRequired returns the required analysis columns absent from the
// frame. Both the raw Movebank names and their standardized forms are
// accepted.
func MissingRequired(f *frame.Frame) []string {
	var missing []string
	for _, name := range model.RequiredColumns {
		if !f.Has(name) && !f.Has(StandardizeName(name)) {
			missing = append(missing, name)
		}
	}
	return missing
}

// ColumnOrStandardized resolves a column by its raw or standardized name,
// returning the name actually present ("" if neither is).
func ColumnOrStandardized(f *frame.Frame, name string) string {
	if f.Has(name) {
		return name
	}
	if std := StandardizeName(name); f.Has(std) {
		return std
	}
	return ""
}

// ─── Declared Type Validation ─────────────────────────────────────────────────

// DefaultTypes declares the target type of each known Movebank column,
// keyed by standardized name.
var DefaultTypes = map[string]string{
	StandardizeName(model.ColEventID):    "numeric",
	StandardizeName(model.ColTimestamp):  "time",
	StandardizeName(model.ColLatitude):   "numeric",
	StandardizeName(model.ColLongitude):  "numeric",
	StandardizeName(model.ColIndividual): "text",
	StandardizeName(model.ColTaxon):      "text",
	StandardizeName(model.ColStudy):      "text",
	StandardizeName(model.ColSensor):     "text",
}

// ValidateTypes coerces each declared (column, type) pair in place. Cells
// that fail to convert become missing and produce a warning; the run
// continues. Columns absent from the frame are skipped silently.
func ValidateTypes(f *frame.Frame, types map[string]string) []string {
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)

	var warnings []string
	for _, name := range names {
		col := ColumnOrStandardized(f, name)
		if col == "" {
			continue
		}
		switch types[name] {
		case "numeric":
			failed, err := f.CoerceFloat(col)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("%s: %v", col, err))
			} else if failed > 0 {
				warnings = append(warnings, fmt.Sprintf("%s: %d cells could not be converted to numeric", col, failed))
			}
		case "time":
			failed, err := f.CoerceTime(col)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("%s: %v", col, err))
			} else if failed > 0 {
				warnings = append(warnings, fmt.Sprintf("%s: %d cells could not be converted to time", col, failed))
			}
		case "text":
			// already the loaded representation
		default:
			warnings = append(warnings, fmt.Sprintf("%s: unknown declared type %q", name, types[name]))
		}
	}
	return warnings
}

// ─── Calendar Features ────────────────────────────────────────────────────────

// CalendarFeatures derives calendar columns from a timestamp column:
// <col>_year, _month, _day, _quarter, _dayofweek, _dayofyear, _week, and
// sin/cos cyclical encodings of month and day-of-week. Missing timestamps
// yield missing features.
func CalendarFeatures(f *frame.Frame, timeCol string) error {
	times, err := f.TimeColumn(timeCol)
	if err != nil {
		return err
	}
	n := len(times)

	year := make([]float64, n)
	month := make([]float64, n)
	day := make([]float64, n)
	quarter := make([]float64, n)
	dayofweek := make([]float64, n)
	dayofyear := make([]float64, n)
	week := make([]float64, n)
	monthSin := make([]float64, n)
	monthCos := make([]float64, n)
	dowSin := make([]float64, n)
	dowCos := make([]float64, n)

	for i, t := range times {
		if t.IsZero() {
			nan := math.NaN()
			year[i], month[i], day[i], quarter[i] = nan, nan, nan, nan
			dayofweek[i], dayofyear[i], week[i] = nan, nan, nan
			monthSin[i], monthCos[i], dowSin[i], dowCos[i] = nan, nan, nan, nan
			continue
		}
		m := float64(t.Month())
		dow := float64((int(t.Weekday()) + 6) % 7) // Monday = 0
		_, isoWeek := t.ISOWeek()

		year[i] = float64(t.Year())
		month[i] = m
		day[i] = float64(t.Day())
		quarter[i] = math.Ceil(m / 3)
		dayofweek[i] = dow
		dayofyear[i] = float64(t.YearDay())
		week[i] = float64(isoWeek)
		monthSin[i] = math.Sin(2 * math.Pi * m / 12)
		monthCos[i] = math.Cos(2 * math.Pi * m / 12)
		dowSin[i] = math.Sin(2 * math.Pi * dow / 7)
		dowCos[i] = math.Cos(2 * math.Pi * dow / 7)
	}

	features := []struct {
		suffix string
		vals   []float64
	}{
		{"year", year}, {"month", month}, {"day", day}, {"quarter", quarter},
		{"dayofweek", dayofweek}, {"dayofyear", dayofyear}, {"week", week},
		{"month_sin", monthSin}, {"month_cos", monthCos},
		{"dayofweek_sin", dowSin}, {"dayofweek_cos", dowCos},
	}
	for _, feat := range features {
		name := timeCol + "_" + feat.suffix
		if f.Has(name) {
			continue
		}
		if err := f.AddColumn(frame.NewFloatSeries(name, feat.vals)); err != nil {
			return err
		}
	}
	return nil
}

// ─── Memory Optimization ──────────────────────────────────────────────────────

// MemoryReport summarises the effect of Optimize.
type MemoryReport struct {
	BeforeBytes  int64    `json:"before_bytes"`
	AfterBytes   int64    `json:"after_bytes"`
	SavedPercent float64  `json:"saved_percent"`
	Interned     []string `json:"interned_columns,omitempty"`
}

// EstimateMemory returns a rough in-memory footprint of the frame. Shared
// string backings are counted once per distinct value.
func EstimateMemory(f *frame.Frame) int64 {
	var total int64
	for _, name := range f.Columns() {
		c := f.Col(name)
		switch c.Kind {
		case frame.KindFloat:
			total += int64(len(c.Floats)) * 8
		case frame.KindTime:
			total += int64(len(c.Times)) * 24
		default:
			distinct := make(map[string]bool)
			for _, s := range c.Strs {
				total += 16 // string header
				if !distinct[s] {
					distinct[s] = true
					total += int64(len(s))
				}
			}
		}
	}
	return total
}

// Optimize interns low-cardinality text columns so repeated values share
// one backing string, the closest float64-Go analogue of a categorical
// dtype downcast. A column qualifies when distinct values are under half
// the row count.
func Optimize(f *frame.Frame) MemoryReport {
	before := EstimateMemory(f)
	var interned []string
	for _, name := range f.Columns() {
		c := f.Col(name)
		if c.Kind != frame.KindString || len(c.Strs) == 0 {
			continue
		}
		pool := make(map[string]string)
		for _, s := range c.Strs {
			if _, ok := pool[s]; !ok {
				pool[s] = s
			}
		}
		if len(pool)*2 >= len(c.Strs) {
			continue
		}
		for i, s := range c.Strs {
			c.Strs[i] = pool[s]
		}
		interned = append(interned, name)
	}
	after := EstimateMemory(f)
	saved := 0.0
	if before > 0 {
		saved = 100 * float64(before-after) / float64(before)
	}
	return MemoryReport{BeforeBytes: before, AfterBytes: after, SavedPercent: saved, Interned: interned}
}

// ─── Loader ───────────────────────────────────────────────────────────────────

// Load reads a CSV and strictly prepares it for analysis: required columns
// must exist, the timestamp column must fully parse, coordinates must fully
// parse, and rows come back sorted by time. Optional columns are left as
// text for ValidateTypes to coerce leniently later.
func Load(path string, chunkSize int) (*frame.Frame, error) {
	f, err := frame.ReadCSVFile(path, chunkSize)
	if err != nil {
		return nil, err
	}
	if missing := MissingRequired(f); len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	tsCol := ColumnOrStandardized(f, model.ColTimestamp)
	if err := f.ConvertTimeStrict(tsCol); err != nil {
		return nil, err
	}
	for _, name := range []string{model.ColLatitude, model.ColLongitude} {
		if err := f.ConvertFloatStrict(ColumnOrStandardized(f, name)); err != nil {
			return nil, err
		}
	}
	return f.SortByTime(tsCol)
}

// Records converts a prepared frame into migration records. Columns are
// resolved by raw or standardized name; absent optional columns yield zero
// values.
func Records(f *frame.Frame) ([]model.Record, error) {
	tsCol := ColumnOrStandardized(f, model.ColTimestamp)
	latCol := ColumnOrStandardized(f, model.ColLatitude)
	lonCol := ColumnOrStandardized(f, model.ColLongitude)
	indCol := ColumnOrStandardized(f, model.ColIndividual)
	if tsCol == "" || latCol == "" || lonCol == "" || indCol == "" {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(MissingRequired(f), ", "))
	}

	times, err := f.TimeColumn(tsCol)
	if err != nil {
		return nil, err
	}
	lats, err := f.Numeric(latCol)
	if err != nil {
		return nil, err
	}
	lons, err := f.Numeric(lonCol)
	if err != nil {
		return nil, err
	}
	inds, err := f.StringColumn(indCol)
	if err != nil {
		return nil, err
	}

	optional := func(name string) []string {
		col := ColumnOrStandardized(f, name)
		if col == "" {
			return nil
		}
		vals, _ := f.StringColumn(col)
		return vals
	}
	taxa := optional(model.ColTaxon)
	studies := optional(model.ColStudy)
	sensors := optional(model.ColSensor)

	var eventIDs []float64
	if col := ColumnOrStandardized(f, model.ColEventID); col != "" {
		eventIDs, _ = f.Numeric(col)
	}

	recs := make([]model.Record, f.NumRows())
	for i := range recs {
		recs[i] = model.Record{
			Timestamp:  times[i],
			Lat:        lats[i],
			Lon:        lons[i],
			Individual: inds[i],
		}
		if eventIDs != nil && !math.IsNaN(eventIDs[i]) {
			recs[i].EventID = int64(eventIDs[i])
		}
		if taxa != nil {
			recs[i].Taxon = taxa[i]
		}
		if studies != nil {
			recs[i].Study = studies[i]
		}
		if sensors != nil {
			recs[i].Sensor = sensors[i]
		}
	}
	return recs, nil
}

// FrameFromRecords rebuilds a standard-named frame from migration records,
// used when an analysis command reads JSONL from a pipe instead of a CSV.
func FrameFromRecords(recs []model.Record) (*frame.Frame, error) {
	n := len(recs)
	events := make([]float64, n)
	times := make([]time.Time, n)
	lats := make([]float64, n)
	lons := make([]float64, n)
	inds := make([]string, n)
	taxa := make([]string, n)
	studies := make([]string, n)
	sensors := make([]string, n)
	for i, r := range recs {
		events[i] = float64(r.EventID)
		times[i] = r.Timestamp
		lats[i] = r.Lat
		lons[i] = r.Lon
		inds[i] = r.Individual
		taxa[i] = r.Taxon
		studies[i] = r.Study
		sensors[i] = r.Sensor
	}
	return frame.New(
		frame.NewFloatSeries(StandardizeName(model.ColEventID), events),
		frame.NewTimeSeries(StandardizeName(model.ColTimestamp), times),
		frame.NewFloatSeries(StandardizeName(model.ColLongitude), lons),
		frame.NewFloatSeries(StandardizeName(model.ColLatitude), lats),
		frame.NewStringSeries(StandardizeName(model.ColIndividual), inds),
		frame.NewStringSeries(StandardizeName(model.ColTaxon), taxa),
		frame.NewStringSeries(StandardizeName(model.ColStudy), studies),
		frame.NewStringSeries(StandardizeName(model.ColSensor), sensors),
	)
}
