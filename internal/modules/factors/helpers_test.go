package factors

import (
	"math/rand"
	"time"

	"github.com/aristath/factorlens/internal/modules/returns"
)

var baseDate = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

func dates(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = baseDate.AddDate(0, 0, i)
	}
	return out
}

// factorReturns simulates two common factors driving four assets plus idiosyncratic noise.
func factorReturns(rows int, seed int64) *returns.Matrix {
	rng := rand.New(rand.NewSource(seed))
	assets := []string{"CEG", "VST", "CCJ", "XLU"}
	betas := [][]float64{{1.0, 0.2}, {0.9, 0.4}, {0.8, -0.5}, {0.5, 0.1}}

	values := make([][]float64, rows)
	for i := range values {
		f1 := rng.NormFloat64() * 0.012
		f2 := rng.NormFloat64() * 0.006
		row := make([]float64, len(assets))
		for j := range assets {
			row[j] = betas[j][0]*f1 + betas[j][1]*f2 + rng.NormFloat64()*0.004*(1+0.3*float64(j))
		}
		values[i] = row
	}
	return returns.NewMatrix(dates(rows), assets, values)
}

// permuted returns m with its columns in the given order.
func permuted(m *returns.Matrix, order []int) *returns.Matrix {
	assets := m.Assets()
	newAssets := make([]string, len(order))
	for c, j := range order {
		newAssets[c] = assets[j]
	}
	values := make([][]float64, m.Rows())
	for i := range values {
		values[i] = make([]float64, len(order))
		for c, j := range order {
			values[i][c] = m.At(i, j)
		}
	}
	return returns.NewMatrix(m.Dates(), newAssets, values)
}
