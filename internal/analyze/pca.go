package analyze

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/calidris/movetrack/internal/frame"
	"github.com/calidris/movetrack/internal/model"
)

// PCAResult reports explained variance of a principal-component reduction
// over standardized features.
type PCAResult struct {
	Features          []string        `json:"features"`
	Components        int             `json:"components"`
	Rows              int             `json:"rows"`
	Dropped           int             `json:"dropped"`
	ExplainedVariance []model.Float   `json:"explained_variance_ratio"`
	Cumulative        []model.Float   `json:"cumulative_variance"`
	Loadings          [][]model.Float `json:"loadings"`
}

// PCA standardizes the selected features, drops rows with any missing
// feature, and computes principal components, reporting per-component and
// cumulative explained-variance ratios plus the component loadings.
func PCA(f *frame.Frame, features []string, components int) (*PCAResult, error) {
	rows, _, err := completeRows(f, features)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("need at least 2 complete rows for PCA, have %d", len(rows))
	}
	if components <= 0 || components > len(features) {
		components = len(features)
	}
	standardizeRows(rows, len(features))

	m := mat.NewDense(len(rows), len(features), nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(m, nil); !ok {
		return nil, fmt.Errorf("principal component decomposition failed")
	}
	vars := pc.VarsTo(nil)
	total := floats.Sum(vars)
	if total == 0 {
		return nil, fmt.Errorf("features have zero total variance")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	res := &PCAResult{
		Features:   append([]string(nil), features...),
		Components: components,
		Rows:       len(rows),
		Dropped:    f.NumRows() - len(rows),
	}
	cum := 0.0
	for c := 0; c < components && c < len(vars); c++ {
		ratio := vars[c] / total
		cum += ratio
		res.ExplainedVariance = append(res.ExplainedVariance, model.Float(ratio))
		res.Cumulative = append(res.Cumulative, model.Float(cum))

		loading := make([]model.Float, len(features))
		for j := range features {
			loading[j] = model.Float(vecs.At(j, c))
		}
		res.Loadings = append(res.Loadings, loading)
	}
	return res, nil
}
