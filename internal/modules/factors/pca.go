package factors

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/factorlens/internal/modules/returns"
	"github.com/aristath/factorlens/pkg/formulas"
)

// ErrEmptyMatrix is returned when there is nothing to decompose.
var ErrEmptyMatrix = errors.New("return matrix is empty")

// tieTolerance is the relative eigenvalue gap under which two components count as tied.
const tieTolerance = 1e-12

// Decompose runs an eigendecomposition of the covariance matrix of the preprocessed
// returns and returns every component, ordered by descending eigenvalue. A return matrix
// with fewer periods than assets is rank deficient; the trailing components then carry a
// variance ratio of (numerically) zero.
func Decompose(m *returns.Matrix, mode Mode) (*ComponentSet, error) {
	if m == nil || m.Cols() == 0 {
		return nil, ErrEmptyMatrix
	}
	if m.Rows() < 2 {
		return nil, &returns.InsufficientHistoryError{Rows: m.Rows(), Required: 2, Start: m.Start(), End: m.End()}
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}

	pre, err := NewPreprocessing(m, mode)
	if err != nil {
		return nil, err
	}
	z := pre.Apply(m)

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, z, nil)

	var eig mat.EigenSym
	if ok := eig.Factorize(&cov, true); !ok {
		return nil, fmt.Errorf("eigendecomposition of %dx%d covariance matrix did not converge", m.Cols(), m.Cols())
	}

	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	n := len(values)
	total := 0.0
	for i, v := range values {
		if v < 0 {
			values[i] = 0
		}
		total += values[i]
	}
	if total <= 0 || !formulas.IsFinite(total) {
		return nil, fmt.Errorf("total variance %v is not positive", total)
	}

	loadings := make([][]float64, n)
	pivots := make([]int, n)
	for i := 0; i < n; i++ {
		loadings[i] = mat.Col(nil, i, &vectors)
		pivots[i] = orientLoadings(loadings[i])
	}

	maxValue := 0.0
	for _, v := range values {
		maxValue = math.Max(maxValue, v)
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		va, vb := values[order[a]], values[order[b]]
		if math.Abs(va-vb) > tieTolerance*maxValue {
			return va > vb
		}
		return pivots[order[a]] < pivots[order[b]]
	})

	components := make([]Component, n)
	for rank, idx := range order {
		components[rank] = Component{
			Number:        rank + 1,
			Eigenvalue:    values[idx],
			VarianceRatio: values[idx] / total,
			Loadings:      loadings[idx],
		}
	}

	return &ComponentSet{
		Assets:        m.Assets(),
		Preprocessing: *pre,
		Components:    components,
		TotalVariance: total,
	}, nil
}

// orientLoadings flips v in place so that its largest-magnitude entry is positive and
// returns the index of that entry. Near-equal magnitudes resolve to the first column.
func orientLoadings(v []float64) int {
	maxAbs := 0.0
	for _, x := range v {
		maxAbs = math.Max(maxAbs, math.Abs(x))
	}
	pivot := 0
	for i, x := range v {
		if math.Abs(x) >= maxAbs-1e-12 {
			pivot = i
			break
		}
	}
	if v[pivot] < 0 {
		for i := range v {
			v[i] = -v[i]
		}
	}
	return pivot
}

// NewPreprocessing computes the per-asset means (and, in standardized mode, population
// standard deviations) of m.
func NewPreprocessing(m *returns.Matrix, mode Mode) (*Preprocessing, error) {
	p := &Preprocessing{
		Mode:   mode,
		Means:  make([]float64, m.Cols()),
		Scales: make([]float64, m.Cols()),
	}
	assets := m.Assets()
	for j := 0; j < m.Cols(); j++ {
		col := m.Column(j)
		p.Means[j] = formulas.Mean(col)
		p.Scales[j] = 1
		if mode == ModeStandardized {
			sd := formulas.PopulationStdDev(col)
			if sd == 0 || !formulas.IsFinite(sd) {
				return nil, fmt.Errorf("cannot standardize asset %s: zero variance", assets[j])
			}
			p.Scales[j] = sd
		}
	}
	return p, nil
}

// Apply returns the preprocessed copy of m.
func (p *Preprocessing) Apply(m *returns.Matrix) *mat.Dense {
	z := m.Dense()
	rows, cols := z.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			z.Set(i, j, (z.At(i, j)-p.Means[j])/p.Scales[j])
		}
	}
	return z
}
