package correlation

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/factorlens/internal/modules/returns"
)

// Matrix is the full-sample Pearson correlation of every column pair of a return matrix.
type Matrix struct {
	Assets []string
	values *mat.SymDense
}

// PairValue is one off-diagonal entry of a correlation matrix.
type PairValue struct {
	A           string  `json:"a"`
	B           string  `json:"b"`
	Correlation float64 `json:"correlation"`
}

// NewMatrix computes the correlation matrix of m.
func NewMatrix(m *returns.Matrix) *Matrix {
	var corr mat.SymDense
	stat.CorrelationMatrix(&corr, m.Dense(), nil)
	return &Matrix{Assets: m.Assets(), values: &corr}
}

// At returns the correlation between columns i and j.
func (c *Matrix) At(i, j int) float64 { return c.values.At(i, j) }

// Get returns the correlation between two assets.
func (c *Matrix) Get(a, b string) (float64, bool) {
	i, j := c.index(a), c.index(b)
	if i < 0 || j < 0 {
		return 0, false
	}
	return c.values.At(i, j), true
}

func (c *Matrix) index(symbol string) int {
	for i, a := range c.Assets {
		if a == symbol {
			return i
		}
	}
	return -1
}

// Rows returns the matrix as nested slices, row i for Assets[i].
func (c *Matrix) Rows() [][]float64 {
	n := len(c.Assets)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		for j := range out[i] {
			out[i][j] = c.values.At(i, j)
		}
	}
	return out
}

// TopPairs returns the n most positively correlated distinct pairs, ties in column order.
// n < 0 returns every pair.
func (c *Matrix) TopPairs(n int) []PairValue {
	var pairs []PairValue
	for i := range c.Assets {
		for j := i + 1; j < len(c.Assets); j++ {
			v := c.values.At(i, j)
			if math.IsNaN(v) {
				continue
			}
			pairs = append(pairs, PairValue{A: c.Assets[i], B: c.Assets[j], Correlation: v})
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].Correlation > pairs[b].Correlation })
	if n >= 0 && n < len(pairs) {
		pairs = pairs[:n]
	}
	return pairs
}
