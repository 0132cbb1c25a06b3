// Package correlation computes static and rolling Pearson correlations between return
// series. It works directly on returns and is independent of the factor decomposition.
package correlation

import (
	"errors"
	"fmt"
	"time"

	"github.com/aristath/factorlens/internal/modules/returns"
)

// ErrUndefinedCorrelation is returned when one of the series has no variance over the overlap.
var ErrUndefinedCorrelation = errors.New("correlation undefined: zero variance")

// InsufficientOverlapError is returned when two series share too few observations.
type InsufficientOverlapError struct {
	A, B     string
	Overlap  int
	Required int
}

func (e *InsufficientOverlapError) Error() string {
	return fmt.Sprintf("%s/%s: %d overlapping observations, need at least %d", e.A, e.B, e.Overlap, e.Required)
}

// Series is one asset's return series. Dates are expected in ascending order; NaN and ±Inf
// values are treated as missing.
type Series struct {
	Symbol string
	Dates  []time.Time
	Values []float64
}

// SeriesFromMatrix extracts the column of symbol from m.
func SeriesFromMatrix(m *returns.Matrix, symbol string) (Series, bool) {
	values, ok := m.ColumnBySymbol(symbol)
	if !ok {
		return Series{}, false
	}
	return Series{Symbol: symbol, Dates: m.Dates(), Values: values}, true
}

// Pair names two assets whose correlation is tracked.
type Pair struct {
	A string `json:"a" yaml:"a" validate:"required"`
	B string `json:"b" yaml:"b" validate:"required,nefield=A"`
}

func (p Pair) String() string { return p.A + "/" + p.B }

// RollingSeries holds one correlation per full trailing window. Values[i] is nil when
// either series is flat over the window ending at Dates[i].
type RollingSeries struct {
	A      string      `json:"a"`
	B      string      `json:"b"`
	Window int         `json:"window"`
	Dates  []time.Time `json:"dates"`
	Values []*float64  `json:"values"`
}

// Len returns the number of windows.
func (r *RollingSeries) Len() int { return len(r.Dates) }

// Last returns the most recent defined correlation.
func (r *RollingSeries) Last() (time.Time, float64, bool) {
	for i := len(r.Values) - 1; i >= 0; i-- {
		if r.Values[i] != nil {
			return r.Dates[i], *r.Values[i], true
		}
	}
	return time.Time{}, 0, false
}

// PairCorrelation is the static and rolling correlation of one pair. A failure on one pair
// is recorded in Error and does not affect the others.
type PairCorrelation struct {
	Pair    Pair           `json:"pair"`
	Static  *float64       `json:"static"`
	Rolling *RollingSeries `json:"rolling,omitempty"`
	Error   string         `json:"error,omitempty"`
	Err     error          `json:"-" msgpack:"-"`
}
