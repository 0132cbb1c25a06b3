package correlation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/factorlens/internal/modules/returns"
	"github.com/aristath/factorlens/pkg/formulas"
)

// minVariance is the variance below which a series counts as flat.
const minVariance = 1e-24

// aligned is the overlap of two series: dates where both values are finite.
type aligned struct {
	dates []time.Time
	a, b  []float64
}

func align(a, b Series) aligned {
	other := make(map[int64]float64, len(b.Dates))
	for i, d := range b.Dates {
		if i < len(b.Values) && formulas.IsFinite(b.Values[i]) {
			other[d.Unix()] = b.Values[i]
		}
	}

	var out aligned
	for i, d := range a.Dates {
		if i >= len(a.Values) || !formulas.IsFinite(a.Values[i]) {
			continue
		}
		v, ok := other[d.Unix()]
		if !ok {
			continue
		}
		out.dates = append(out.dates, d)
		out.a = append(out.a, a.Values[i])
		out.b = append(out.b, v)
	}

	if !sort.SliceIsSorted(out.dates, func(i, j int) bool { return out.dates[i].Before(out.dates[j]) }) {
		idx := make([]int, len(out.dates))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(i, j int) bool { return out.dates[idx[i]].Before(out.dates[idx[j]]) })
		sorted := aligned{
			dates: make([]time.Time, len(idx)),
			a:     make([]float64, len(idx)),
			b:     make([]float64, len(idx)),
		}
		for k, i := range idx {
			sorted.dates[k], sorted.a[k], sorted.b[k] = out.dates[i], out.a[i], out.b[i]
		}
		out = sorted
	}
	return out
}

// pearson returns the correlation of x and y, or false if either is flat.
func pearson(x, y []float64) (float64, bool) {
	if variance(x) < minVariance || variance(y) < minVariance {
		return 0, false
	}
	c := formulas.Correlation(x, y)
	if !formulas.IsFinite(c) {
		return 0, false
	}
	return math.Max(-1, math.Min(1, c)), true
}

func variance(x []float64) float64 {
	sd := formulas.StdDev(x)
	return sd * sd
}

// Static returns the full-sample Pearson correlation of a and b over their overlapping
// finite observations.
func Static(a, b Series) (float64, error) {
	al := align(a, b)
	if len(al.dates) < 2 {
		return 0, &InsufficientOverlapError{A: a.Symbol, B: b.Symbol, Overlap: len(al.dates), Required: 2}
	}
	c, ok := pearson(al.a, al.b)
	if !ok {
		return 0, fmt.Errorf("%s/%s: %w", a.Symbol, b.Symbol, ErrUndefinedCorrelation)
	}
	return c, nil
}

// Rolling returns the correlation of each trailing window of the overlap of a and b.
// Windows that are not yet full are omitted, so an overlap shorter than window gives an
// empty series.
func Rolling(a, b Series, window int) (*RollingSeries, error) {
	if window < 2 {
		return nil, fmt.Errorf("rolling correlation window %d must be at least 2", window)
	}
	al := align(a, b)

	n := len(al.dates) - window + 1
	if n < 0 {
		n = 0
	}
	out := &RollingSeries{
		A:      a.Symbol,
		B:      b.Symbol,
		Window: window,
		Dates:  make([]time.Time, n),
		Values: make([]*float64, n),
	}
	for i := 0; i < n; i++ {
		out.Dates[i] = al.dates[i+window-1]
		if c, ok := pearson(al.a[i:i+window], al.b[i:i+window]); ok {
			out.Values[i] = &c
		}
	}
	return out, nil
}

// ComputePairs evaluates every pair against m. Pairs naming an asset that is not in m, or
// whose correlation cannot be computed, carry the error and an empty value.
func ComputePairs(m *returns.Matrix, pairs []Pair, window int) []PairCorrelation {
	out := make([]PairCorrelation, 0, len(pairs))
	for _, p := range pairs {
		pc := PairCorrelation{Pair: p}
		a, okA := SeriesFromMatrix(m, p.A)
		b, okB := SeriesFromMatrix(m, p.B)
		switch {
		case !okA:
			pc.Err = fmt.Errorf("%s: asset %s not in return matrix", p, p.A)
		case !okB:
			pc.Err = fmt.Errorf("%s: asset %s not in return matrix", p, p.B)
		default:
			if c, err := Static(a, b); err != nil {
				pc.Err = err
			} else {
				pc.Static = &c
			}
			if pc.Err == nil {
				rolling, err := Rolling(a, b, window)
				if err != nil {
					pc.Err = err
				} else {
					pc.Rolling = rolling
				}
			}
		}
		if pc.Err != nil {
			pc.Error = pc.Err.Error()
		}
		out = append(out, pc)
	}
	return out
}
