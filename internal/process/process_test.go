package process_test

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/calidris/movetrack/internal/frame"
	"github.com/calidris/movetrack/internal/process"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

func isNaN(v float64) bool { return math.IsNaN(v) }

// makeFrame parses CSV text into a frame, failing the test on error.
func makeFrame(t *testing.T, lines ...string) *frame.Frame {
	t.Helper()
	f, err := frame.ReadCSV(strings.NewReader(strings.Join(lines, "\n")+"\n"), frame.DefaultChunkSize)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	return f
}

// writeTempCSV writes CSV text to a file in t.TempDir() and returns the path.
func writeTempCSV(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

// ─── Dedupe ───────────────────────────────────────────────────────────────────

func TestDedupeRemovesExactDuplicates(t *testing.T) {
	f := makeFrame(t,
		"a,b",
		"1,x",
		"2,y",
		"1,x",
		"1,z",
	)
	out, removed := process.Dedupe(f)
	if removed != 1 {
		t.Errorf("removed: expected 1, got %d", removed)
	}
	if out.NumRows() != 3 {
		t.Errorf("rows: expected 3, got %d", out.NumRows())
	}
	// first occurrence survives
	bs, _ := out.StringColumn("b")
	if !reflect.DeepEqual(bs, []string{"x", "y", "z"}) {
		t.Errorf("kept rows: expected [x y z], got %v", bs)
	}
}

func TestDedupeIdempotent(t *testing.T) {
	f := makeFrame(t, "a", "1", "1", "2")
	once, _ := process.Dedupe(f)
	twice, removed := process.Dedupe(once)
	if removed != 0 {
		t.Errorf("second pass removed %d rows, expected 0", removed)
	}
	if twice.NumRows() != once.NumRows() {
		t.Errorf("second pass changed row count: %d -> %d", once.NumRows(), twice.NumRows())
	}
}

// ─── Column-name standardization ──────────────────────────────────────────────

func TestStandardizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"location-lat", "location_lat"},
		{"Individual Local Identifier", "individual_local_identifier"},
		{"  Study-Name ", "study_name"},
		{"already_clean", "already_clean"},
	}
	for _, tt := range tests {
		if got := process.StandardizeName(tt.in); got != tt.want {
			t.Errorf("StandardizeName(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestStandardizeNameIdempotent(t *testing.T) {
	for _, name := range []string{"location-lat", "Study Name", "event-id"} {
		once := process.StandardizeName(name)
		if twice := process.StandardizeName(once); twice != once {
			t.Errorf("not idempotent for %q: %q -> %q", name, once, twice)
		}
	}
}

func TestStandardizeNamesCollision(t *testing.T) {
	f := makeFrame(t, "location-lat,location lat", "1,2")
	_, err := process.StandardizeNames(f)
	if err == nil {
		t.Fatal("expected collision error")
	}
	for _, want := range []string{"location-lat", "location lat", "location_lat"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should name %q: %v", want, err)
		}
	}
}

func TestStandardizeNamesLeavesOriginal(t *testing.T) {
	f := makeFrame(t, "location-lat", "1")
	out, err := process.StandardizeNames(f)
	if err != nil {
		t.Fatalf("StandardizeNames: %v", err)
	}
	if !out.Has("location_lat") {
		t.Errorf("renamed frame missing location_lat: %v", out.Columns())
	}
	if !f.Has("location-lat") {
		t.Errorf("original frame was renamed: %v", f.Columns())
	}
}

// ─── Required columns / type validation ───────────────────────────────────────

func TestMissingRequired(t *testing.T) {
	f := makeFrame(t, "timestamp,location_lat", "2021-01-01,1")
	missing := process.MissingRequired(f)
	want := []string{"location-long", "individual-local-identifier"}
	if !reflect.DeepEqual(missing, want) {
		t.Errorf("missing: expected %v, got %v", want, missing)
	}
}

func TestValidateTypesWarnsAndCoerces(t *testing.T) {
	f := makeFrame(t,
		"timestamp,location-lat,location-long,individual-local-identifier",
		"2021-01-01 00:00:00.000,52.52,13.405,T1",
		"not-a-time,oops,2.35,T2",
	)
	warnings := process.ValidateTypes(f, process.DefaultTypes)
	if len(warnings) == 0 {
		t.Fatal("expected warnings for unparseable cells")
	}
	lats, err := f.Numeric("location-lat")
	if err != nil {
		t.Fatalf("Numeric: %v", err)
	}
	if lats[0] != 52.52 || !isNaN(lats[1]) {
		t.Errorf("coerced lat column wrong: %v", lats)
	}
}

// ─── Calendar features ────────────────────────────────────────────────────────

func TestCalendarFeatures(t *testing.T) {
	f := makeFrame(t,
		"timestamp,v",
		"2021-03-15 06:00:00.000,1", // a Monday
		",2",
	)
	if err := f.ConvertTimeStrict("timestamp"); err != nil {
		t.Fatalf("ConvertTimeStrict: %v", err)
	}
	if err := process.CalendarFeatures(f, "timestamp"); err != nil {
		t.Fatalf("CalendarFeatures: %v", err)
	}

	get := func(name string) []float64 {
		t.Helper()
		vals, err := f.Numeric(name)
		if err != nil {
			t.Fatalf("Numeric(%s): %v", name, err)
		}
		return vals
	}
	if got := get("timestamp_year"); got[0] != 2021 {
		t.Errorf("year: expected 2021, got %g", got[0])
	}
	if got := get("timestamp_month"); got[0] != 3 {
		t.Errorf("month: expected 3, got %g", got[0])
	}
	if got := get("timestamp_quarter"); got[0] != 1 {
		t.Errorf("quarter: expected 1, got %g", got[0])
	}
	if got := get("timestamp_dayofweek"); got[0] != 0 {
		t.Errorf("dayofweek: expected 0 for Monday, got %g", got[0])
	}
	if got := get("timestamp_month_sin"); math.Abs(got[0]-1) > 1e-12 {
		t.Errorf("month_sin for March: expected 1, got %g", got[0])
	}
	// missing timestamp yields missing features
	if got := get("timestamp_year"); !isNaN(got[1]) {
		t.Errorf("year for missing timestamp: expected NaN, got %g", got[1])
	}
}

func TestCalendarFeaturesSkipsExisting(t *testing.T) {
	f := makeFrame(t, "timestamp,timestamp_year", "2021-03-15,1999")
	if err := f.ConvertTimeStrict("timestamp"); err != nil {
		t.Fatalf("ConvertTimeStrict: %v", err)
	}
	if err := process.CalendarFeatures(f, "timestamp"); err != nil {
		t.Fatalf("CalendarFeatures: %v", err)
	}
	if got := f.Col("timestamp_year").Cell(0); got != "1999" {
		t.Errorf("existing column overwritten: got %q", got)
	}
}

// ─── Optimize ─────────────────────────────────────────────────────────────────

func TestOptimizeInternsLowCardinality(t *testing.T) {
	lines := []string{"species,id"}
	for i := 0; i < 20; i++ {
		lines = append(lines, "Sterna paradisaea,row"+string(rune('a'+i)))
	}
	f := makeFrame(t, lines...)
	rep := process.Optimize(f)
	if len(rep.Interned) != 1 || rep.Interned[0] != "species" {
		t.Errorf("interned: expected [species], got %v", rep.Interned)
	}
	if rep.AfterBytes > rep.BeforeBytes {
		t.Errorf("after (%d) should not exceed before (%d)", rep.AfterBytes, rep.BeforeBytes)
	}
}

// ─── Load / Records round-trip ────────────────────────────────────────────────

func TestLoadSortsAndConverts(t *testing.T) {
	path := writeTempCSV(t,
		"event-id,timestamp,location-long,location-lat,individual-local-identifier",
		"2,2021-03-02 00:00:00.000,2.3522,48.8566,T1",
		"1,2021-03-01 00:00:00.000,13.405,52.52,T1",
	)
	f, err := process.Load(path, 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	recs, err := process.Records(f)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records: expected 2, got %d", len(recs))
	}
	if recs[0].EventID != 1 || recs[1].EventID != 2 {
		t.Errorf("rows not sorted by time: %v, %v", recs[0], recs[1])
	}
	if recs[0].Lat != 52.52 || recs[0].Lon != 13.405 {
		t.Errorf("coordinates wrong: %+v", recs[0])
	}
	if recs[0].Individual != "T1" {
		t.Errorf("individual: expected T1, got %q", recs[0].Individual)
	}
}

func TestLoadMissingRequiredColumn(t *testing.T) {
	path := writeTempCSV(t,
		"timestamp,location-lat",
		"2021-03-01,52.52",
	)
	if _, err := process.Load(path, 0); err == nil {
		t.Fatal("expected error for missing required columns")
	}
}

func TestFrameFromRecordsRoundTrip(t *testing.T) {
	path := writeTempCSV(t,
		"event-id,timestamp,location-long,location-lat,individual-local-identifier",
		"1,2021-03-01 00:00:00.000,13.405,52.52,T1",
	)
	f, err := process.Load(path, 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	recs, err := process.Records(f)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	back, err := process.FrameFromRecords(recs)
	if err != nil {
		t.Fatalf("FrameFromRecords: %v", err)
	}
	if back.NumRows() != 1 {
		t.Fatalf("rows: expected 1, got %d", back.NumRows())
	}
	lats, _ := back.Numeric("location_lat")
	if lats[0] != 52.52 {
		t.Errorf("lat: expected 52.52, got %g", lats[0])
	}
}
