// Package factors implements the covariance PCA factor model: decomposition of a return
// matrix, variance-threshold component selection, reconstruction with residuals, and a
// rolling z-score screen over the residuals.
//
// Loading vectors are eigenvectors and therefore sign-ambiguous. Decompose flips every
// vector so that its largest-magnitude loading is positive, which makes repeated runs on
// the same input identical, but signs carry no meaning across universes or column orders.
package factors

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Mode selects how returns are preprocessed before the decomposition.
type Mode string

const (
	// ModeDemeaned subtracts each asset's mean; the decomposition follows the covariance matrix.
	ModeDemeaned Mode = "demeaned"
	// ModeStandardized also divides by each asset's standard deviation; the decomposition
	// follows the correlation structure.
	ModeStandardized Mode = "standardized"
)

// ParseMode validates a preprocessing mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDemeaned, ModeStandardized:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown preprocessing mode %q (want %q or %q)", s, ModeDemeaned, ModeStandardized)
}

// Preprocessing records the per-asset transform applied before the decomposition.
// Scales are all 1 in demeaned mode.
type Preprocessing struct {
	Mode   Mode      `json:"mode" msgpack:"mode"`
	Means  []float64 `json:"means" msgpack:"means"`
	Scales []float64 `json:"scales" msgpack:"scales"`
}

// Component is one principal component.
type Component struct {
	Number        int       `json:"number" msgpack:"number"` // 1-based, PC1 explains the most variance
	Eigenvalue    float64   `json:"eigenvalue" msgpack:"eigenvalue"`
	VarianceRatio float64   `json:"variance_ratio" msgpack:"variance_ratio"`
	Loadings      []float64 `json:"loadings" msgpack:"loadings"` // one weight per asset, unit norm
}

// Label returns "PC<n>".
func (c Component) Label() string { return fmt.Sprintf("PC%d", c.Number) }

// ComponentSet holds every component of one decomposition, ordered by descending variance.
type ComponentSet struct {
	Assets        []string      `json:"assets" msgpack:"assets"`
	Preprocessing Preprocessing `json:"preprocessing" msgpack:"preprocessing"`
	Components    []Component   `json:"components" msgpack:"components"`
	TotalVariance float64       `json:"total_variance" msgpack:"total_variance"`
}

// Len returns the number of components.
func (cs *ComponentSet) Len() int { return len(cs.Components) }

// Ratios returns the explained variance ratio of each component.
func (cs *ComponentSet) Ratios() []float64 {
	out := make([]float64, len(cs.Components))
	for i, c := range cs.Components {
		out[i] = c.VarianceRatio
	}
	return out
}

// Cumulative returns the running sum of the explained variance ratios.
func (cs *ComponentSet) Cumulative() []float64 {
	out := make([]float64, len(cs.Components))
	sum := 0.0
	for i, c := range cs.Components {
		sum += c.VarianceRatio
		out[i] = sum
	}
	return out
}

// Loading returns the weight of asset in the given 1-based component.
func (cs *ComponentSet) Loading(asset string, number int) (float64, bool) {
	if number < 1 || number > len(cs.Components) {
		return 0, false
	}
	for j, a := range cs.Assets {
		if a == asset {
			return cs.Components[number-1].Loadings[j], true
		}
	}
	return 0, false
}

// LoadingMatrix returns the assets x k matrix of the first k loading vectors.
func (cs *ComponentSet) LoadingMatrix(k int) *mat.Dense {
	l := mat.NewDense(len(cs.Assets), k, nil)
	for c := 0; c < k; c++ {
		l.SetCol(c, cs.Components[c].Loadings)
	}
	return l
}

// FactorScores is the return matrix projected onto the retained components.
type FactorScores struct {
	Dates      []time.Time `json:"dates"`
	Components []string    `json:"components"`
	values     *mat.Dense
}

// At returns the score of component c on row i.
func (f *FactorScores) At(i, c int) float64 { return f.values.At(i, c) }

// Dense returns a copy of the scores.
func (f *FactorScores) Dense() *mat.Dense { return mat.DenseCopyOf(f.values) }

// ResidualUnits names the units a ResidualMatrix is expressed in.
type ResidualUnits string

const (
	// UnitsPreprocessed are the units of the preprocessed matrix fed to the decomposition.
	UnitsPreprocessed ResidualUnits = "preprocessed"
	// UnitsReturns are log-return units (demeaned).
	UnitsReturns ResidualUnits = "returns"
)

// ParseResidualUnits validates a residual unit name.
func ParseResidualUnits(s string) (ResidualUnits, error) {
	switch ResidualUnits(s) {
	case UnitsPreprocessed, UnitsReturns:
		return ResidualUnits(s), nil
	}
	return "", fmt.Errorf("unknown residual units %q (want %q or %q)", s, UnitsPreprocessed, UnitsReturns)
}

// ResidualMatrix is the part of each return the retained components do not explain.
type ResidualMatrix struct {
	Dates  []time.Time   `json:"dates"`
	Assets []string      `json:"assets"`
	Units  ResidualUnits `json:"units"`
	values *mat.Dense
}

// NewResidualMatrix wraps row-major residual values.
func NewResidualMatrix(dates []time.Time, assets []string, units ResidualUnits, values [][]float64) *ResidualMatrix {
	data := mat.NewDense(len(dates), len(assets), nil)
	for i := range values {
		data.SetRow(i, values[i])
	}
	return &ResidualMatrix{Dates: dates, Assets: assets, Units: units, values: data}
}

// Rows returns the number of periods.
func (r *ResidualMatrix) Rows() int { return len(r.Dates) }

// Cols returns the number of assets.
func (r *ResidualMatrix) Cols() int { return len(r.Assets) }

// At returns the residual of asset j on row i.
func (r *ResidualMatrix) At(i, j int) float64 { return r.values.At(i, j) }

// Column returns a copy of one asset's residual series.
func (r *ResidualMatrix) Column(j int) []float64 { return mat.Col(nil, j, r.values) }

// Dense returns a copy of the residual values.
func (r *ResidualMatrix) Dense() *mat.Dense { return mat.DenseCopyOf(r.values) }

// Row returns a copy of the residuals on row i.
func (r *ResidualMatrix) Row(i int) []float64 { return mat.Row(nil, i, r.values) }
