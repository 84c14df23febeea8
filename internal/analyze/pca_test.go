package analyze_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/calidris/movetrack/internal/analyze"
)

func TestPCAExplainedVariance(t *testing.T) {
	lines := []string{"a,b,c"}
	for i := 0; i < 30; i++ {
		x := float64(i)
		wiggle := math.Sin(x * 0.7)
		lines = append(lines, fmt.Sprintf("%g,%g,%g", x, 2*x+wiggle, -x+0.5*wiggle))
	}
	f := makeFrame(t, lines...)

	res, err := analyze.PCA(f, []string{"a", "b", "c"}, 3)
	if err != nil {
		t.Fatalf("PCA: %v", err)
	}
	if len(res.ExplainedVariance) != 3 {
		t.Fatalf("components: expected 3, got %d", len(res.ExplainedVariance))
	}

	sum := 0.0
	prev := math.Inf(1)
	for i, r := range res.ExplainedVariance {
		v := float64(r)
		if v < 0 || v > 1 {
			t.Errorf("ratio %d out of [0,1]: %g", i, v)
		}
		if v > prev+1e-12 {
			t.Errorf("ratios not descending at %d: %g > %g", i, v, prev)
		}
		prev = v
		sum += v

		cum := float64(res.Cumulative[i])
		if !approxEqual(cum, sum, 1e-9) {
			t.Errorf("cumulative[%d]: expected %g, got %g", i, sum, cum)
		}
	}
	if !approxEqual(sum, 1, 1e-9) {
		t.Errorf("ratios should sum to 1, got %g", sum)
	}
	// near-collinear data: first component dominates
	if float64(res.ExplainedVariance[0]) < 0.9 {
		t.Errorf("first component should dominate, got %g", float64(res.ExplainedVariance[0]))
	}
}

func TestPCADropsIncompleteRows(t *testing.T) {
	f := makeFrame(t,
		"a,b",
		"1,2",
		"2,4",
		"3,",
		"4,8",
	)
	res, err := analyze.PCA(f, []string{"a", "b"}, 2)
	if err != nil {
		t.Fatalf("PCA: %v", err)
	}
	if res.Rows != 3 || res.Dropped != 1 {
		t.Errorf("rows/dropped: expected 3/1, got %d/%d", res.Rows, res.Dropped)
	}
}

func TestPCAErrors(t *testing.T) {
	f := makeFrame(t, "a,b", "1,2")
	if _, err := analyze.PCA(f, []string{"a", "b"}, 2); err == nil {
		t.Error("expected error for a single row")
	}
	flat := makeFrame(t, "a,b", "1,1", "1,1", "1,1")
	if _, err := analyze.PCA(flat, []string{"a", "b"}, 2); err == nil {
		t.Error("expected error for zero variance")
	}
}
