package analyze_test

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/calidris/movetrack/internal/analyze"
	"github.com/calidris/movetrack/internal/frame"
)

// clusterFrame builds two well-separated point clouds plus one row with a
// missing coordinate.
func clusterFrame(t *testing.T) *frame.Frame {
	t.Helper()
	lines := []string{"x,y"}
	for i := 0; i < 10; i++ {
		lines = append(lines, fmt.Sprintf("%g,%g", 0.1*float64(i), 0.2*float64(i)))
	}
	for i := 0; i < 10; i++ {
		lines = append(lines, fmt.Sprintf("%g,%g", 100+0.1*float64(i), 200+0.2*float64(i)))
	}
	lines = append(lines, "5,")
	return makeFrame(t, lines...)
}

func TestKMeansSeparatesClouds(t *testing.T) {
	f := clusterFrame(t)
	res, err := analyze.KMeans(f, []string{"x", "y"}, 2, 42)
	if err != nil {
		t.Fatalf("KMeans: %v", err)
	}
	if res.Rows != 20 {
		t.Errorf("rows clustered: expected 20, got %d", res.Rows)
	}
	if res.Dropped != 1 {
		t.Errorf("dropped: expected 1, got %d", res.Dropped)
	}
	if len(res.Sizes) != 2 {
		t.Fatalf("sizes: expected 2 clusters, got %v", res.Sizes)
	}
	total := 0
	for _, s := range res.Sizes {
		total += s
	}
	if total != res.Rows {
		t.Errorf("sizes sum to %d, expected %d", total, res.Rows)
	}
	// Two clouds of 10 points each must split evenly.
	if res.Sizes[0] != 10 || res.Sizes[1] != 10 {
		t.Errorf("expected even 10/10 split, got %v", res.Sizes)
	}
	// Each cloud's members share one assignment.
	first := res.Assignments[0]
	for i := 1; i < 10; i++ {
		if res.Assignments[i] != first {
			t.Errorf("point %d split from its cloud", i)
		}
	}
	if res.Assignments[10] == first {
		t.Error("clouds were merged into one cluster")
	}
}

func TestKMeansDeterministicWithSeed(t *testing.T) {
	f := clusterFrame(t)
	a, err := analyze.KMeans(f, []string{"x", "y"}, 2, 42)
	if err != nil {
		t.Fatalf("KMeans: %v", err)
	}
	b, err := analyze.KMeans(f, []string{"x", "y"}, 2, 42)
	if err != nil {
		t.Fatalf("KMeans: %v", err)
	}
	if !reflect.DeepEqual(a.Assignments, b.Assignments) {
		t.Error("same seed and input should give identical assignments")
	}
	if a.Inertia != b.Inertia {
		t.Errorf("inertia differs across runs: %g vs %g", a.Inertia, b.Inertia)
	}
	if !reflect.DeepEqual(a.Centers, b.Centers) {
		t.Error("centers differ across runs")
	}
}

func TestKMeansCentersInOriginalUnits(t *testing.T) {
	f := clusterFrame(t)
	res, err := analyze.KMeans(f, []string{"x", "y"}, 2, 42)
	if err != nil {
		t.Fatalf("KMeans: %v", err)
	}
	// One center near each cloud, in the data's own units.
	var nearOrigin, nearFar bool
	for _, c := range res.Centers {
		x := float64(c[0])
		if x > -5 && x < 5 {
			nearOrigin = true
		}
		if x > 95 && x < 105 {
			nearFar = true
		}
	}
	if !nearOrigin || !nearFar {
		t.Errorf("centers not in original units: %v", res.Centers)
	}
}

func TestKMeansErrors(t *testing.T) {
	f := makeFrame(t, "x,y", "1,2", "3,4")
	if _, err := analyze.KMeans(f, []string{"x", "y"}, 0, 42); err == nil {
		t.Error("expected error for k < 1")
	}
	if _, err := analyze.KMeans(f, []string{"x", "y"}, 5, 42); err == nil {
		t.Error("expected error when rows < k")
	}
}
