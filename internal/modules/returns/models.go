// Package returns converts aligned price histories into a clean log-return matrix.
package returns

import (
	"time"

	"gonum.org/v1/gonum/mat"
)

// PricePoint is one daily closing price.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// AssetPrices is the price history of a single asset, dates strictly increasing.
type AssetPrices struct {
	Symbol string       `json:"symbol"`
	Prices []PricePoint `json:"prices"`
}

// Options controls gap handling while building returns.
type Options struct {
	// ForwardFill carries the last valid price over interior gaps. Gaps before the first
	// and after the last observation are never filled.
	ForwardFill bool `yaml:"forward_fill" json:"forward_fill"`
	// MaxFillGap caps how many consecutive missing days are filled (0 = unlimited).
	MaxFillGap int `yaml:"max_fill_gap" json:"max_fill_gap" validate:"gte=0"`
	// MaxMissingFraction is the share of non-finite returns above which a whole
	// asset is dropped instead of dropping the affected rows.
	MaxMissingFraction float64 `yaml:"max_missing_fraction" json:"max_missing_fraction" validate:"gte=0,lte=1"`
}

// DefaultOptions forward fills interior gaps of up to a trading week and drops assets
// missing more than a quarter of the dates.
func DefaultOptions() Options {
	return Options{
		ForwardFill:        true,
		MaxFillGap:         5,
		MaxMissingFraction: 0.25,
	}
}

// Drop reasons recorded on DroppedAsset.
const (
	DropNoPrices     = "no_valid_prices"
	DropTooFewPrices = "fewer_than_two_prices"
	DropTooSparse    = "too_many_missing_returns"
	DropZeroVariance = "zero_variance"
)

// DroppedAsset records an asset excluded while building the matrix.
type DroppedAsset struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// Matrix is a dates x assets table of finite log returns. It is read-only once built.
type Matrix struct {
	dates       []time.Time
	assets      []string
	data        *mat.Dense
	dropped     []DroppedAsset
	droppedRows int
}

// NewMatrix builds a Matrix from row-major values (rows = dates, columns = assets).
// It is used by tests and by callers that already hold clean returns.
func NewMatrix(dates []time.Time, assets []string, values [][]float64) *Matrix {
	data := mat.NewDense(len(dates), len(assets), nil)
	for i := range values {
		data.SetRow(i, values[i])
	}
	return &Matrix{
		dates:  append([]time.Time(nil), dates...),
		assets: append([]string(nil), assets...),
		data:   data,
	}
}

// Rows returns the number of periods.
func (m *Matrix) Rows() int { return len(m.dates) }

// Cols returns the number of assets.
func (m *Matrix) Cols() int { return len(m.assets) }

// Dates returns a copy of the row dates.
func (m *Matrix) Dates() []time.Time { return append([]time.Time(nil), m.dates...) }

// Assets returns a copy of the column identifiers.
func (m *Matrix) Assets() []string { return append([]string(nil), m.assets...) }

// At returns the return of asset j on row i.
func (m *Matrix) At(i, j int) float64 { return m.data.At(i, j) }

// Column returns a copy of one asset's return series.
func (m *Matrix) Column(j int) []float64 {
	return mat.Col(nil, j, m.data)
}

// ColumnBySymbol returns a copy of the named asset's series.
func (m *Matrix) ColumnBySymbol(symbol string) ([]float64, bool) {
	j := m.Index(symbol)
	if j < 0 {
		return nil, false
	}
	return m.Column(j), true
}

// Index returns the column of symbol or -1.
func (m *Matrix) Index(symbol string) int {
	for j, a := range m.assets {
		if a == symbol {
			return j
		}
	}
	return -1
}

// Dense returns a copy of the underlying values.
func (m *Matrix) Dense() *mat.Dense {
	return mat.DenseCopyOf(m.data)
}

// Dropped lists the assets excluded during construction.
func (m *Matrix) Dropped() []DroppedAsset { return append([]DroppedAsset(nil), m.dropped...) }

// DroppedRows is the number of return rows removed because of non-finite cells.
func (m *Matrix) DroppedRows() int { return m.droppedRows }

// Start returns the first date, or the zero time for an empty matrix.
func (m *Matrix) Start() time.Time {
	if len(m.dates) == 0 {
		return time.Time{}
	}
	return m.dates[0]
}

// End returns the last date, or the zero time for an empty matrix.
func (m *Matrix) End() time.Time {
	if len(m.dates) == 0 {
		return time.Time{}
	}
	return m.dates[len(m.dates)-1]
}
