package factors

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/factorlens/internal/modules/returns"
)

// Reconstruction is the split of the preprocessed returns into the part explained by the
// first K components and the residual. Preprocessed == Fitted + Residuals.
type Reconstruction struct {
	K            int
	Scores       *FactorScores
	Preprocessed *mat.Dense
	Fitted       *mat.Dense
	Residuals    *ResidualMatrix // preprocessed units
	scales       []float64
}

// Reconstruct projects the preprocessed returns onto the first k loading vectors of cs,
// maps the scores back through the same loadings and subtracts the result. m must have
// the same columns, in the same order, as the matrix cs was computed from.
func Reconstruct(m *returns.Matrix, cs *ComponentSet, k int) (*Reconstruction, error) {
	if m == nil || cs == nil || cs.Len() == 0 {
		return nil, ErrEmptyMatrix
	}
	if k < 1 || k > cs.Len() {
		return nil, fmt.Errorf("component count %d outside [1, %d]", k, cs.Len())
	}
	assets := m.Assets()
	if len(assets) != len(cs.Assets) {
		return nil, fmt.Errorf("return matrix has %d assets, components were computed for %d", len(assets), len(cs.Assets))
	}
	for j := range assets {
		if assets[j] != cs.Assets[j] {
			return nil, fmt.Errorf("asset %d is %s in the return matrix but %s in the components", j, assets[j], cs.Assets[j])
		}
	}

	z := cs.Preprocessing.Apply(m)
	loadings := cs.LoadingMatrix(k)

	var scores mat.Dense
	scores.Mul(z, loadings)

	var fitted mat.Dense
	fitted.Mul(&scores, loadings.T())

	var residual mat.Dense
	residual.Sub(z, &fitted)

	labels := make([]string, k)
	for c := 0; c < k; c++ {
		labels[c] = cs.Components[c].Label()
	}

	dates := m.Dates()
	return &Reconstruction{
		K: k,
		Scores: &FactorScores{
			Dates:      dates,
			Components: labels,
			values:     &scores,
		},
		Preprocessed: z,
		Fitted:       &fitted,
		Residuals: &ResidualMatrix{
			Dates:  dates,
			Assets: assets,
			Units:  UnitsPreprocessed,
			values: &residual,
		},
		scales: append([]float64(nil), cs.Preprocessing.Scales...),
	}, nil
}

// ResidualsInReturnUnits undoes the standardization so that residuals are expressed in
// log-return units. In demeaned mode the residuals are returned unchanged.
func (r *Reconstruction) ResidualsInReturnUnits() *ResidualMatrix {
	values := r.Residuals.Dense()
	rows, cols := values.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			values.Set(i, j, values.At(i, j)*r.scales[j])
		}
	}
	return &ResidualMatrix{
		Dates:  append([]time.Time(nil), r.Residuals.Dates...),
		Assets: append([]string(nil), r.Residuals.Assets...),
		Units:  UnitsReturns,
		values: values,
	}
}

// ResidualsIn returns the residuals in the requested units.
func (r *Reconstruction) ResidualsIn(units ResidualUnits) (*ResidualMatrix, error) {
	switch units {
	case UnitsPreprocessed:
		return r.Residuals, nil
	case UnitsReturns:
		return r.ResidualsInReturnUnits(), nil
	}
	return nil, fmt.Errorf("unknown residual units %q", units)
}
