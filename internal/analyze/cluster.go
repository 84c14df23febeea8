package analyze

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/calidris/movetrack/internal/frame"
	"github.com/calidris/movetrack/internal/model"
)

// ClusterResult holds the outcome of one k-means run. Centers are reported
// in the original feature units; Inertia is the within-cluster sum of
// squared distances in standardized space.
type ClusterResult struct {
	K           int             `json:"k"`
	Seed        int64           `json:"seed"`
	Features    []string        `json:"features"`
	Rows        int             `json:"rows"` // complete rows clustered
	Dropped     int             `json:"dropped"`
	Iterations  int             `json:"iterations"`
	Inertia     float64         `json:"inertia"`
	Sizes       []int           `json:"sizes"`
	Centers     [][]model.Float `json:"centers"`
	Assignments []int           `json:"-"`
	RowIndex    []int           `json:"-"` // frame row of each clustered point
}

const maxKMeansIterations = 300

// KMeans standardizes the selected features (zero mean, unit variance),
// drops rows with any missing feature, and runs seeded k-means++ followed
// by Lloyd iterations. A fixed seed and fixed input produce identical
// assignments across runs.
func KMeans(f *frame.Frame, features []string, k int, seed int64) (*ClusterResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("cluster count must be at least 1, got %d", k)
	}
	rows, idx, err := completeRows(f, features)
	if err != nil {
		return nil, err
	}
	if len(rows) < k {
		return nil, fmt.Errorf("need at least %d complete rows for %d clusters, have %d", k, k, len(rows))
	}
	means, stds := standardizeRows(rows, len(features))

	rng := rand.New(rand.NewSource(seed))
	centers := seedCenters(rows, k, rng)

	assign := make([]int, len(rows))
	sizes := make([]int, k)
	iterations := 0
	for iter := 0; iter < maxKMeansIterations; iter++ {
		iterations = iter + 1
		changed := 0
		for i := range sizes {
			sizes[i] = 0
		}
		for i, row := range rows {
			best, bestDist := 0, math.Inf(1)
			for c := range centers {
				if d := sqDist(row, centers[c]); d < bestDist {
					best, bestDist = c, d
				}
			}
			if assign[i] != best || iter == 0 {
				changed++
			}
			assign[i] = best
			sizes[best]++
		}

		// Recompute centers; an emptied cluster takes the point farthest
		// from its current center.
		for c := range centers {
			if sizes[c] == 0 {
				far, farDist := 0, -1.0
				for i, row := range rows {
					if d := sqDist(row, centers[assign[i]]); d > farDist {
						far, farDist = i, d
					}
				}
				sizes[assign[far]]--
				assign[far] = c
				sizes[c] = 1
			}
			for j := range centers[c] {
				centers[c][j] = 0
			}
		}
		for i, row := range rows {
			floats.Add(centers[assign[i]], row)
		}
		for c := range centers {
			floats.Scale(1/float64(sizes[c]), centers[c])
		}
		if changed == 0 {
			break
		}
	}

	inertia := 0.0
	for i, row := range rows {
		inertia += sqDist(row, centers[assign[i]])
	}

	res := &ClusterResult{
		K:           k,
		Seed:        seed,
		Features:    append([]string(nil), features...),
		Rows:        len(rows),
		Dropped:     f.NumRows() - len(rows),
		Iterations:  iterations,
		Inertia:     inertia,
		Sizes:       sizes,
		Assignments: assign,
		RowIndex:    idx,
	}
	res.Centers = make([][]model.Float, k)
	for c := range centers {
		res.Centers[c] = make([]model.Float, len(features))
		for j := range features {
			res.Centers[c][j] = model.Float(centers[c][j]*stds[j] + means[j])
		}
	}
	return res, nil
}

// seedCenters picks initial centers with the k-means++ scheme: the first
// uniformly, each subsequent one proportional to squared distance from the
// nearest chosen center.
func seedCenters(rows [][]float64, k int, rng *rand.Rand) [][]float64 {
	centers := make([][]float64, 0, k)
	first := append([]float64(nil), rows[rng.Intn(len(rows))]...)
	centers = append(centers, first)

	dist := make([]float64, len(rows))
	for len(centers) < k {
		total := 0.0
		for i, row := range rows {
			d := math.Inf(1)
			for _, c := range centers {
				if v := sqDist(row, c); v < d {
					d = v
				}
			}
			dist[i] = d
			total += d
		}
		var next int
		if total == 0 {
			next = rng.Intn(len(rows))
		} else {
			target := rng.Float64() * total
			cum := 0.0
			for i, d := range dist {
				cum += d
				if cum >= target {
					next = i
					break
				}
			}
		}
		centers = append(centers, append([]float64(nil), rows[next]...))
	}
	return centers
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
