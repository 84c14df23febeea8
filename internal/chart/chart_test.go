package chart_test

import (
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"gonum.org/v1/plot"

	"github.com/calidris/movetrack/internal/chart"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// pngHeader is the 8-byte PNG file signature.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// assertPNG fails unless path holds a non-trivial PNG file.
func assertPNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) < len(pngHeader) {
		t.Fatalf("file too small to be a PNG: %d bytes", len(data))
	}
	for i, b := range pngHeader {
		if data[i] != b {
			t.Fatalf("not a PNG: header byte %d is %#x", i, data[i])
		}
	}
}

func routePlot(t *testing.T) *plot.Plot {
	t.Helper()
	p, err := chart.NewRouteMap(
		[]float64{52.52, 50.85, 48.8566},
		[]float64{13.405, 4.35, 2.3522},
		"T1",
	)
	if err != nil {
		t.Fatalf("NewRouteMap: %v", err)
	}
	return p
}

// ─── Save / Filename ──────────────────────────────────────────────────────────

func TestSaveWritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "figures", "map.png")
	if err := chart.Save(routePlot(t), path, 0, 0); err != nil {
		t.Fatalf("Save: %v", err)
	}
	assertPNG(t, path)
}

func TestSaveRejectsNonPNG(t *testing.T) {
	err := chart.Save(routePlot(t), filepath.Join(t.TempDir(), "map.svg"), 0, 0)
	if err == nil {
		t.Fatal("expected error for .svg output")
	}
	if !strings.Contains(err.Error(), "unsupported figure format") {
		t.Errorf("error: %v", err)
	}
}

func TestFilenamePattern(t *testing.T) {
	path := chart.Filename("/tmp/figures", "map")
	if filepath.Dir(path) != "/tmp/figures" {
		t.Errorf("dir: got %s", path)
	}
	if ok, _ := regexp.MatchString(`^map_\d{8}_\d{6}\.png$`, filepath.Base(path)); !ok {
		t.Errorf("filename: expected map_YYYYMMDD_HHMMSS.png, got %s", filepath.Base(path))
	}
}

// ─── Builders ─────────────────────────────────────────────────────────────────

func TestNewRouteMapSkipsMissingCoordinates(t *testing.T) {
	p, err := chart.NewRouteMap(
		[]float64{52.52, math.NaN(), 48.8566},
		[]float64{13.405, 4.35, 2.3522},
		"T1",
	)
	if err != nil {
		t.Fatalf("NewRouteMap: %v", err)
	}
	if p == nil {
		t.Fatal("nil plot")
	}
}

func TestNewRouteMapAllMissing(t *testing.T) {
	_, err := chart.NewRouteMap([]float64{math.NaN()}, []float64{math.NaN()}, "T1")
	if err == nil {
		t.Error("expected error when every coordinate is missing")
	}
}

func TestNewHistogram(t *testing.T) {
	vals := []float64{1, 2, 2, 3, math.NaN(), 3, 3, 4}
	p, err := chart.NewHistogram(vals, 4, "Latitude", "location-lat")
	if err != nil {
		t.Fatalf("NewHistogram: %v", err)
	}
	path := filepath.Join(t.TempDir(), "hist.png")
	if err := chart.Save(p, path, 8, 6); err != nil {
		t.Fatalf("Save: %v", err)
	}
	assertPNG(t, path)
}

func TestNewHistogramEmpty(t *testing.T) {
	if _, err := chart.NewHistogram([]float64{math.NaN()}, 10, "t", "x"); err == nil {
		t.Error("expected error for no values")
	}
}

func TestNewBars(t *testing.T) {
	p, err := chart.NewBars([]string{"T1", "T2"}, []float64{120, 80}, "Fixes", "count")
	if err != nil {
		t.Fatalf("NewBars: %v", err)
	}
	path := filepath.Join(t.TempDir(), "bars.png")
	if err := chart.Save(p, path, 8, 6); err != nil {
		t.Fatalf("Save: %v", err)
	}
	assertPNG(t, path)
}

func TestNewBarsMismatch(t *testing.T) {
	if _, err := chart.NewBars([]string{"a"}, []float64{1, 2}, "t", "y"); err == nil {
		t.Error("expected error for label/value mismatch")
	}
	if _, err := chart.NewBars(nil, nil, "t", "y"); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestNewTimeSeries(t *testing.T) {
	base := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	times := []time.Time{base, {}, base.AddDate(0, 0, 2)}
	vals := []float64{52.52, 50.0, 48.85}
	p, err := chart.NewTimeSeries(times, vals, "Latitude over time", "location-lat")
	if err != nil {
		t.Fatalf("NewTimeSeries: %v", err)
	}
	path := filepath.Join(t.TempDir(), "ts.png")
	if err := chart.Save(p, path, 8, 6); err != nil {
		t.Fatalf("Save: %v", err)
	}
	assertPNG(t, path)
}

func TestNewTimeSeriesNoUsablePoints(t *testing.T) {
	if _, err := chart.NewTimeSeries([]time.Time{{}}, []float64{1}, "t", "y"); err == nil {
		t.Error("expected error when no point has a timestamp")
	}
}

func TestNewHeatmap(t *testing.T) {
	labels := []string{"lat", "lon", "count"}
	matrix := [][]float64{
		{1, 0.5, -0.2},
		{0.5, 1, 0.1},
		{-0.2, 0.1, 1},
	}
	p, err := chart.NewHeatmap(labels, matrix, "Correlations")
	if err != nil {
		t.Fatalf("NewHeatmap: %v", err)
	}
	path := filepath.Join(t.TempDir(), "heat.png")
	if err := chart.Save(p, path, 8, 6); err != nil {
		t.Fatalf("Save: %v", err)
	}
	assertPNG(t, path)
}

func TestNewHeatmapSizeMismatch(t *testing.T) {
	if _, err := chart.NewHeatmap([]string{"a", "b"}, [][]float64{{1}}, "t"); err == nil {
		t.Error("expected error for matrix/label mismatch")
	}
}

// ─── Dashboard ────────────────────────────────────────────────────────────────

func TestSaveDashboard(t *testing.T) {
	hist, err := chart.NewHistogram([]float64{1, 2, 3, 4}, 4, "h", "x")
	if err != nil {
		t.Fatalf("NewHistogram: %v", err)
	}
	panels := [][]*plot.Plot{
		{routePlot(t), hist},
		{nil, routePlot(t)}, // one failed panel left blank
	}
	path := filepath.Join(t.TempDir(), "dashboard.png")
	if err := chart.SaveDashboard(path, panels, 16, 12); err != nil {
		t.Fatalf("SaveDashboard: %v", err)
	}
	assertPNG(t, path)
}

func TestSaveDashboardErrors(t *testing.T) {
	if err := chart.SaveDashboard(filepath.Join(t.TempDir(), "d.png"), nil, 0, 0); err == nil {
		t.Error("expected error for no panels")
	}
	panels := [][]*plot.Plot{{routePlot(t)}}
	if err := chart.SaveDashboard(filepath.Join(t.TempDir(), "d.jpg"), panels, 0, 0); err == nil {
		t.Error("expected error for .jpg output")
	}
}
