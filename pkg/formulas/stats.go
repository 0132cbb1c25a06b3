// Package formulas holds small statistical helpers shared by the analysis modules.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation (n-1 denominator)
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// PopulationStdDev calculates the population standard deviation (n denominator)
func PopulationStdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	_, variance := stat.PopMeanVariance(data, nil)
	return math.Sqrt(variance)
}

// MeanStdDev returns the mean and the sample standard deviation of data.
// The standard deviation is NaN when fewer than two values are given.
func MeanStdDev(data []float64) (float64, float64) {
	if len(data) == 0 {
		return math.NaN(), math.NaN()
	}
	if len(data) == 1 {
		return data[0], math.NaN()
	}
	return stat.MeanStdDev(data, nil)
}

// Correlation calculates the Pearson correlation coefficient between two datasets.
// Returns NaN when the inputs are empty, of different length, or either has zero variance.
func Correlation(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}

// Covariance calculates the covariance between two datasets
func Covariance(x, y []float64) float64 {
	if len(x) == 0 || len(y) == 0 || len(x) != len(y) {
		return 0
	}
	return stat.Covariance(x, y, nil)
}

// LogReturn is ln(current) - ln(previous). Non-positive prices yield a non-finite value.
func LogReturn(previous, current float64) float64 {
	return math.Log(current) - math.Log(previous)
}

// IsFinite reports whether v is neither NaN nor ±Inf.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
