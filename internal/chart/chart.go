// Package chart renders analysis results to PNG files: route maps,
// histograms, bar charts, time series, correlation heat maps, and a
// multi-panel dashboard. Builders return *plot.Plot so panels can be saved
// standalone or composed into a dashboard; Save and SaveDashboard do the
// file I/O.
package chart

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Default panel size in inches.
const (
	DefaultWidth  = 8.0
	DefaultHeight = 6.0
)

var (
	colorTrack = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	colorStart = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	colorEnd   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	colorBars  = color.RGBA{R: 255, G: 127, B: 14, A: 160}
)

// Filename builds the canonical figure path: <dir>/<stage>_<YYYYMMDD_HHMMSS>.png.
func Filename(dir, stage string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.png", stage, time.Now().Format("20060102_150405")))
}

// ensurePNG rejects output paths with an unsupported extension.
func ensurePNG(path string) error {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".png" {
		return fmt.Errorf("unsupported figure format %q: only .png output is supported", ext)
	}
	return nil
}

// Save writes a single plot as a PNG of the given size in inches.
func Save(p *plot.Plot, path string, widthIn, heightIn float64) error {
	if err := ensurePNG(path); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if widthIn <= 0 {
		widthIn = DefaultWidth
	}
	if heightIn <= 0 {
		heightIn = DefaultHeight
	}
	if err := p.Save(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch, path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

// ─── Route Map ────────────────────────────────────────────────────────────────

// NewRouteMap plots a track as a connected line over a lon/lat plane, with
// the start and end fixes marked. Rows with a missing coordinate are
// skipped.
func NewRouteMap(lats, lons []float64, title string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"
	p.Add(plotter.NewGrid())

	var pts plotter.XYs
	for i := range lats {
		if math.IsNaN(lats[i]) || math.IsNaN(lons[i]) {
			continue
		}
		pts = append(pts, plotter.XY{X: lons[i], Y: lats[i]})
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("no usable coordinates to map")
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = colorTrack
	p.Add(line)

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	scatter.GlyphStyle.Color = colorTrack
	scatter.GlyphStyle.Radius = vg.Points(1.5)
	p.Add(scatter)

	endpoints := []struct {
		pt    plotter.XY
		c     color.RGBA
		label string
	}{
		{pts[0], colorStart, "start"},
		{pts[len(pts)-1], colorEnd, "end"},
	}
	for _, ep := range endpoints {
		s, err := plotter.NewScatter(plotter.XYs{ep.pt})
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Color = ep.c
		s.GlyphStyle.Radius = vg.Points(4)
		s.GlyphStyle.Shape = draw.PyramidGlyph{}
		p.Add(s)
		p.Legend.Add(ep.label, s)
	}
	p.Legend.Top = true
	return p, nil
}

// ─── Histogram ────────────────────────────────────────────────────────────────

// NewHistogram bins the non-missing values into bins buckets.
func NewHistogram(vals []float64, bins int, title, xlabel string) (*plot.Plot, error) {
	if bins <= 0 {
		bins = 30
	}
	var present plotter.Values
	for _, v := range vals {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return nil, fmt.Errorf("no values to bin")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = "Count"

	h, err := plotter.NewHist(present, bins)
	if err != nil {
		return nil, err
	}
	h.FillColor = colorBars
	p.Add(h)
	return p, nil
}

// ─── Bar Chart ────────────────────────────────────────────────────────────────

// NewBars draws one bar per label.
func NewBars(labels []string, values []float64, title, ylabel string) (*plot.Plot, error) {
	if len(labels) != len(values) {
		return nil, fmt.Errorf("have %d labels for %d values", len(labels), len(values))
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no values to chart")
	}

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = ylabel

	bars, err := plotter.NewBarChart(plotter.Values(values), vg.Points(20))
	if err != nil {
		return nil, err
	}
	bars.Color = colorBars
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(labels...)
	if len(labels) > 8 {
		p.X.Tick.Label.Rotation = math.Pi / 4
		p.X.Tick.Label.XAlign = draw.XRight
		p.X.Tick.Label.YAlign = draw.YCenter
	}
	return p, nil
}

// ─── Time Series ──────────────────────────────────────────────────────────────

// NewTimeSeries plots values against timestamps; rows with a missing
// timestamp or value are skipped.
func NewTimeSeries(times []time.Time, vals []float64, title, ylabel string) (*plot.Plot, error) {
	var pts plotter.XYs
	for i := range times {
		if times[i].IsZero() || math.IsNaN(vals[i]) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(times[i].Unix()), Y: vals[i]})
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("no usable points to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = ylabel
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = colorTrack
	p.Add(line)
	return p, nil
}

// ─── Correlation Heat Map ─────────────────────────────────────────────────────

// corrGrid adapts a square matrix to plotter.GridXYZ.
type corrGrid struct {
	m [][]float64
}

func (g corrGrid) Dims() (int, int)   { return len(g.m), len(g.m) }
func (g corrGrid) X(c int) float64    { return float64(c) }
func (g corrGrid) Y(r int) float64    { return float64(r) }
func (g corrGrid) Z(c, r int) float64 { return g.m[r][c] }

// NewHeatmap renders a labelled square matrix (correlation values in
// [-1, 1]) as a heat map.
func NewHeatmap(labels []string, matrix [][]float64, title string) (*plot.Plot, error) {
	if len(matrix) == 0 || len(matrix) != len(labels) {
		return nil, fmt.Errorf("matrix size %d does not match %d labels", len(matrix), len(labels))
	}

	p := plot.New()
	p.Title.Text = title

	pal := palette.Heat(12, 1)
	hm := plotter.NewHeatMap(corrGrid{m: matrix}, pal)
	hm.Min, hm.Max = -1, 1
	p.Add(hm)

	ticks := make([]plot.Tick, len(labels))
	for i, l := range labels {
		ticks[i] = plot.Tick{Value: float64(i), Label: l}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	p.Y.Tick.Marker = plot.ConstantTicks(ticks)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
	return p, nil
}

// ─── Dashboard ────────────────────────────────────────────────────────────────

// SaveDashboard composes panels into a grid on a single PNG canvas.
// Nil panels leave their tile blank.
func SaveDashboard(path string, panels [][]*plot.Plot, widthIn, heightIn float64) error {
	if err := ensurePNG(path); err != nil {
		return err
	}
	if len(panels) == 0 || len(panels[0]) == 0 {
		return fmt.Errorf("no panels to draw")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if widthIn <= 0 {
		widthIn = 2 * DefaultWidth
	}
	if heightIn <= 0 {
		heightIn = 2 * DefaultHeight
	}

	img := vgimg.New(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: len(panels),
		Cols: len(panels[0]),
		PadX: vg.Millimeter * 4,
		PadY: vg.Millimeter * 4,
	}
	canvases := plot.Align(panels, tiles, dc)
	for r := range panels {
		for c := range panels[r] {
			if panels[r][c] != nil {
				panels[r][c].Draw(canvases[r][c])
			}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
