// Package frame implements the columnar in-memory table that every pipeline
// stage operates on. A Frame is a set of equal-length named Series; cells are
// text, numeric (NaN = missing), or timestamps (zero = missing). Operations
// return new frames and never mutate their receiver's row data in place,
// so stages can hand values to one another without defensive copies.
package frame

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/calidris/movetrack/internal/util"
)

// ─── Series ───────────────────────────────────────────────────────────────────

// Kind identifies the storage type of a Series.
type Kind int

const (
	KindString Kind = iota
	KindFloat
	KindTime
)

// String returns the dtype label used in dataset info output.
func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "numeric"
	case KindTime:
		return "time"
	default:
		return "text"
	}
}

// Series is one named column. Exactly one of Strs, Floats, Times is
// populated, selected by Kind.
type Series struct {
	Name   string
	Kind   Kind
	Strs   []string
	Floats []float64
	Times  []time.Time
}

// NewStringSeries builds a text column.
func NewStringSeries(name string, vals []string) *Series {
	return &Series{Name: name, Kind: KindString, Strs: vals}
}

// NewFloatSeries builds a numeric column (NaN = missing).
func NewFloatSeries(name string, vals []float64) *Series {
	return &Series{Name: name, Kind: KindFloat, Floats: vals}
}

// NewTimeSeries builds a timestamp column (zero time = missing).
func NewTimeSeries(name string, vals []time.Time) *Series {
	return &Series{Name: name, Kind: KindTime, Times: vals}
}

// Len returns the number of rows in the column.
func (s *Series) Len() int {
	switch s.Kind {
	case KindFloat:
		return len(s.Floats)
	case KindTime:
		return len(s.Times)
	default:
		return len(s.Strs)
	}
}

// Missing reports whether row i holds a missing value.
func (s *Series) Missing(i int) bool {
	switch s.Kind {
	case KindFloat:
		return math.IsNaN(s.Floats[i])
	case KindTime:
		return s.Times[i].IsZero()
	default:
		return strings.TrimSpace(s.Strs[i]) == ""
	}
}

// MissingCount returns the number of missing cells in the column.
func (s *Series) MissingCount() int {
	n := 0
	for i := 0; i < s.Len(); i++ {
		if s.Missing(i) {
			n++
		}
	}
	return n
}

// Cell returns the display/CSV form of row i. Missing numeric cells render
// as empty strings so a written CSV round-trips.
func (s *Series) Cell(i int) string {
	switch s.Kind {
	case KindFloat:
		if math.IsNaN(s.Floats[i]) {
			return ""
		}
		return util.FormatValue(s.Floats[i])
	case KindTime:
		if s.Times[i].IsZero() {
			return ""
		}
		return s.Times[i].UTC().Format("2006-01-02 15:04:05.000")
	default:
		return s.Strs[i]
	}
}

// clone returns a deep copy of the column.
func (s *Series) clone() *Series {
	out := &Series{Name: s.Name, Kind: s.Kind}
	switch s.Kind {
	case KindFloat:
		out.Floats = append([]float64(nil), s.Floats...)
	case KindTime:
		out.Times = append([]time.Time(nil), s.Times...)
	default:
		out.Strs = append([]string(nil), s.Strs...)
	}
	return out
}

// take returns a new column holding the rows at idx, in order.
func (s *Series) take(idx []int) *Series {
	out := &Series{Name: s.Name, Kind: s.Kind}
	switch s.Kind {
	case KindFloat:
		out.Floats = make([]float64, len(idx))
		for j, i := range idx {
			out.Floats[j] = s.Floats[i]
		}
	case KindTime:
		out.Times = make([]time.Time, len(idx))
		for j, i := range idx {
			out.Times[j] = s.Times[i]
		}
	default:
		out.Strs = make([]string, len(idx))
		for j, i := range idx {
			out.Strs[j] = s.Strs[i]
		}
	}
	return out
}

// ─── Frame ────────────────────────────────────────────────────────────────────

// Frame is an ordered collection of equal-length columns.
type Frame struct {
	cols []*Series
}

// New builds a Frame from columns, rejecting duplicate names and ragged
// lengths.
func New(cols ...*Series) (*Frame, error) {
	seen := make(map[string]bool, len(cols))
	n := -1
	for _, c := range cols {
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = true
		if n == -1 {
			n = c.Len()
		} else if c.Len() != n {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, c.Len(), n)
		}
	}
	return &Frame{cols: cols}, nil
}

// NumRows returns the row count (0 for an empty frame).
func (f *Frame) NumRows() int {
	if len(f.cols) == 0 {
		return 0
	}
	return f.cols[0].Len()
}

// NumCols returns the column count.
func (f *Frame) NumCols() int { return len(f.cols) }

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.cols))
	for i, c := range f.cols {
		out[i] = c.Name
	}
	return out
}

// Col returns the named column, or nil if absent.
func (f *Frame) Col(name string) *Series {
	for _, c := range f.cols {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Has reports whether the named column exists.
func (f *Frame) Has(name string) bool { return f.Col(name) != nil }

// AddColumn appends a column, rejecting name clashes and length mismatches.
func (f *Frame) AddColumn(s *Series) error {
	if f.Has(s.Name) {
		return fmt.Errorf("column %q already exists", s.Name)
	}
	if len(f.cols) > 0 && s.Len() != f.NumRows() {
		return fmt.Errorf("column %q has %d rows, want %d", s.Name, s.Len(), f.NumRows())
	}
	f.cols = append(f.cols, s)
	return nil
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	cols := make([]*Series, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.clone()
	}
	return &Frame{cols: cols}
}

// Take returns a new frame holding the rows at idx, in order.
func (f *Frame) Take(idx []int) *Frame {
	cols := make([]*Series, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.take(idx)
	}
	return &Frame{cols: cols}
}

// RowKey returns a fingerprint of row i built from the display form of
// every cell, used for exact-duplicate detection. \x1f separates cells so
// adjacent values cannot alias.
func (f *Frame) RowKey(i int) string {
	var b strings.Builder
	for j, c := range f.cols {
		if j > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(c.Cell(i))
	}
	return b.String()
}

// ─── Typed Column Access ──────────────────────────────────────────────────────

// Numeric returns the named column as []float64, coercing text cells
// (unparseable text becomes NaN). Time columns are not coercible.
func (f *Frame) Numeric(name string) ([]float64, error) {
	c := f.Col(name)
	if c == nil {
		return nil, fmt.Errorf("no column %q", name)
	}
	switch c.Kind {
	case KindFloat:
		return append([]float64(nil), c.Floats...), nil
	case KindString:
		out := make([]float64, len(c.Strs))
		for i, s := range c.Strs {
			out[i] = util.CoerceFloat(s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("column %q holds timestamps, not numbers", name)
	}
}

// TimeColumn returns the named column as []time.Time, coercing text cells
// (unparseable text becomes the zero time).
func (f *Frame) TimeColumn(name string) ([]time.Time, error) {
	c := f.Col(name)
	if c == nil {
		return nil, fmt.Errorf("no column %q", name)
	}
	switch c.Kind {
	case KindTime:
		return append([]time.Time(nil), c.Times...), nil
	case KindString:
		out := make([]time.Time, len(c.Strs))
		for i, s := range c.Strs {
			if t, err := util.ParseTimestamp(s); err == nil {
				out[i] = t
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("column %q holds numbers, not timestamps", name)
	}
}

// StringColumn returns the display form of every cell in the named column.
func (f *Frame) StringColumn(name string) ([]string, error) {
	c := f.Col(name)
	if c == nil {
		return nil, fmt.Errorf("no column %q", name)
	}
	out := make([]string, c.Len())
	for i := range out {
		out[i] = c.Cell(i)
	}
	return out, nil
}

// LooksNumeric reports whether a column is numeric or is text whose
// non-missing cells all parse as numbers (and at least one does).
func (f *Frame) LooksNumeric(name string) bool {
	c := f.Col(name)
	if c == nil {
		return false
	}
	if c.Kind == KindFloat {
		return true
	}
	if c.Kind != KindString {
		return false
	}
	parsed := 0
	for i, s := range c.Strs {
		if c.Missing(i) {
			continue
		}
		if _, err := util.ParseFloatStrict(s); err != nil {
			return false
		}
		parsed++
	}
	return parsed > 0
}

// ─── Type Conversion ──────────────────────────────────────────────────────────

// ConvertTimeStrict replaces a text column with timestamps, failing on the
// first unparseable non-empty cell.
func (f *Frame) ConvertTimeStrict(name string) error {
	c := f.Col(name)
	if c == nil {
		return fmt.Errorf("no column %q", name)
	}
	if c.Kind == KindTime {
		return nil
	}
	if c.Kind != KindString {
		return fmt.Errorf("column %q is not text", name)
	}
	times := make([]time.Time, len(c.Strs))
	for i, s := range c.Strs {
		if strings.TrimSpace(s) == "" {
			continue
		}
		t, err := util.ParseTimestamp(s)
		if err != nil {
			return fmt.Errorf("column %q row %d: %w", name, i+1, err)
		}
		times[i] = t
	}
	c.Kind = KindTime
	c.Times = times
	c.Strs = nil
	return nil
}

// CoerceTime replaces a text column with timestamps, turning unparseable
// cells into missing values. Returns the number of cells that failed.
func (f *Frame) CoerceTime(name string) (int, error) {
	c := f.Col(name)
	if c == nil {
		return 0, fmt.Errorf("no column %q", name)
	}
	if c.Kind == KindTime {
		return 0, nil
	}
	if c.Kind != KindString {
		return 0, fmt.Errorf("column %q is not text", name)
	}
	times := make([]time.Time, len(c.Strs))
	failed := 0
	for i, s := range c.Strs {
		if strings.TrimSpace(s) == "" {
			continue
		}
		t, err := util.ParseTimestamp(s)
		if err != nil {
			failed++
			continue
		}
		times[i] = t
	}
	c.Kind = KindTime
	c.Times = times
	c.Strs = nil
	return failed, nil
}

// ConvertFloatStrict replaces a text column with numbers, failing on the
// first unparseable non-empty cell.
func (f *Frame) ConvertFloatStrict(name string) error {
	c := f.Col(name)
	if c == nil {
		return fmt.Errorf("no column %q", name)
	}
	if c.Kind == KindFloat {
		return nil
	}
	if c.Kind != KindString {
		return fmt.Errorf("column %q is not text", name)
	}
	vals := make([]float64, len(c.Strs))
	for i, s := range c.Strs {
		v, err := util.ParseFloatStrict(s)
		if err != nil {
			return fmt.Errorf("column %q row %d: %w", name, i+1, err)
		}
		vals[i] = v
	}
	c.Kind = KindFloat
	c.Floats = vals
	c.Strs = nil
	return nil
}

// CoerceFloat replaces a text column with numbers, turning unparseable
// cells into NaN. Returns the number of cells that failed.
func (f *Frame) CoerceFloat(name string) (int, error) {
	c := f.Col(name)
	if c == nil {
		return 0, fmt.Errorf("no column %q", name)
	}
	if c.Kind == KindFloat {
		return 0, nil
	}
	if c.Kind != KindString {
		return 0, fmt.Errorf("column %q is not text", name)
	}
	vals := make([]float64, len(c.Strs))
	failed := 0
	for i, s := range c.Strs {
		if strings.TrimSpace(s) == "" || s == "." {
			vals[i] = math.NaN()
			continue
		}
		v, err := util.ParseFloatStrict(s)
		if err != nil {
			vals[i] = math.NaN()
			failed++
			continue
		}
		vals[i] = v
	}
	c.Kind = KindFloat
	c.Floats = vals
	c.Strs = nil
	return failed, nil
}

// SortByTime stably reorders all rows by the named timestamp column,
// missing timestamps last.
func (f *Frame) SortByTime(name string) (*Frame, error) {
	times, err := f.TimeColumn(name)
	if err != nil {
		return nil, err
	}
	idx := make([]int, len(times))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ta, tb := times[idx[a]], times[idx[b]]
		if ta.IsZero() {
			return false
		}
		if tb.IsZero() {
			return true
		}
		return ta.Before(tb)
	})
	return f.Take(idx), nil
}

// ─── CSV I/O ──────────────────────────────────────────────────────────────────

// DefaultChunkSize is the row-batch size for streaming CSV reads.
const DefaultChunkSize = 10000

// ReadCSV reads a headered CSV into a frame of text columns. Column names
// are preserved verbatim. Rows are appended in batches of chunkSize so very
// large files never need a second in-memory copy of the raw rows.
func ReadCSV(r io.Reader, chunkSize int) (*Frame, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty CSV: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	cols := make([]*Series, len(header))
	seen := make(map[string]bool, len(header))
	for i, name := range header {
		if seen[name] {
			return nil, fmt.Errorf("duplicate column %q in header", name)
		}
		seen[name] = true
		cols[i] = NewStringSeries(name, make([]string, 0, chunkSize))
	}

	row := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row %d: %w", row+1, err)
		}
		for i := range cols {
			cell := ""
			if i < len(rec) {
				cell = rec[i]
			}
			if len(cols[i].Strs) == cap(cols[i].Strs) {
				grown := make([]string, len(cols[i].Strs), len(cols[i].Strs)+chunkSize)
				copy(grown, cols[i].Strs)
				cols[i].Strs = grown
			}
			cols[i].Strs = append(cols[i].Strs, cell)
		}
		row++
	}
	return &Frame{cols: cols}, nil
}

// ReadCSVFile reads a CSV file from disk.
func ReadCSVFile(path string, chunkSize int) (*Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer fh.Close()
	f, err := ReadCSV(fh, chunkSize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// WriteCSV writes the frame as a headered CSV.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Columns()); err != nil {
		return err
	}
	row := make([]string, len(f.cols))
	for i := 0; i < f.NumRows(); i++ {
		for j, c := range f.cols {
			row[j] = c.Cell(i)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the frame to a CSV file.
func (f *Frame) WriteCSVFile(path string) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer fh.Close()
	if err := f.WriteCSV(fh); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
