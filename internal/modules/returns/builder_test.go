package returns

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseDate = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func day(i int) time.Time { return baseDate.AddDate(0, 0, i) }

func randomWalk(symbol string, n int, seed int64) AssetPrices {
	rng := rand.New(rand.NewSource(seed))
	price := 100.0
	out := AssetPrices{Symbol: symbol, Prices: make([]PricePoint, n)}
	for i := 0; i < n; i++ {
		out.Prices[i] = PricePoint{Date: day(i), Close: price}
		price *= math.Exp(rng.NormFloat64() * 0.01)
	}
	return out
}

func constant(symbol string, n int, value float64) AssetPrices {
	out := AssetPrices{Symbol: symbol, Prices: make([]PricePoint, n)}
	for i := 0; i < n; i++ {
		out.Prices[i] = PricePoint{Date: day(i), Close: value}
	}
	return out
}

func TestBuild_LogReturns(t *testing.T) {
	assets := []AssetPrices{
		{Symbol: "CEG", Prices: []PricePoint{{day(0), 100}, {day(1), 110}, {day(2), 99}}},
		{Symbol: "VST", Prices: []PricePoint{{day(0), 50}, {day(1), 50.5}, {day(2), 51}}},
		{Symbol: "XLU", Prices: []PricePoint{{day(0), 70}, {day(1), 69}, {day(2), 71}}},
	}

	m, err := Build(assets, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 2, m.Rows())
	assert.Equal(t, []string{"CEG", "VST", "XLU"}, m.Assets())
	assert.Equal(t, []time.Time{day(1), day(2)}, m.Dates())
	assert.InDelta(t, math.Log(110.0/100.0), m.At(0, 0), 1e-12)
	assert.InDelta(t, math.Log(99.0/110.0), m.At(1, 0), 1e-12)
	assert.InDelta(t, math.Log(71.0/69.0), m.At(1, 2), 1e-12)
	assert.Empty(t, m.Dropped())
}

func TestBuild_ConstantPriceAssetIsDropped(t *testing.T) {
	assets := []AssetPrices{
		randomWalk("CEG", 50, 1),
		randomWalk("VST", 50, 2),
		constant("FLAT", 50, 42),
		randomWalk("CCJ", 50, 3),
	}

	m, err := Build(assets, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"CEG", "VST", "CCJ"}, m.Assets())
	assert.Equal(t, []DroppedAsset{{Symbol: "FLAT", Reason: DropZeroVariance}}, m.Dropped())
	for i := 0; i < m.Rows(); i++ {
		for j := 0; j < m.Cols(); j++ {
			assert.False(t, math.IsNaN(m.At(i, j)) || math.IsInf(m.At(i, j), 0))
		}
	}
}

func TestBuild_AssetsWithoutPricesAreDropped(t *testing.T) {
	assets := []AssetPrices{
		randomWalk("CEG", 30, 1),
		{Symbol: "EMPTY"},
		{Symbol: "NAN", Prices: []PricePoint{{day(0), math.NaN()}, {day(1), math.NaN()}}},
		{Symbol: "ONE", Prices: []PricePoint{{day(3), 10}}},
		randomWalk("VST", 30, 2),
		randomWalk("CCJ", 30, 3),
	}

	m, err := Build(assets, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"CEG", "VST", "CCJ"}, m.Assets())
	assert.Equal(t, []DroppedAsset{
		{Symbol: "EMPTY", Reason: DropNoPrices},
		{Symbol: "NAN", Reason: DropNoPrices},
		{Symbol: "ONE", Reason: DropTooFewPrices},
	}, m.Dropped())
	assert.Equal(t, 29, m.Rows())
}

func TestBuild_NonPositivePriceRowsAreRemoved(t *testing.T) {
	ceg := randomWalk("CEG", 20, 1)
	ceg.Prices[10].Close = 0

	m, err := Build([]AssetPrices{ceg, randomWalk("VST", 20, 2), randomWalk("CCJ", 20, 3)}, DefaultOptions())
	require.NoError(t, err)

	// The zero price breaks the returns into and out of day 10.
	assert.Equal(t, 17, m.Rows())
	assert.Equal(t, 2, m.DroppedRows())
	assert.NotContains(t, m.Dates(), day(10))
	assert.NotContains(t, m.Dates(), day(11))
}

func TestBuild_ForwardFill(t *testing.T) {
	ceg := randomWalk("CEG", 20, 1)
	ceg.Prices = append(ceg.Prices[:5], ceg.Prices[7:]...) // days 5 and 6 missing

	filled, err := Build([]AssetPrices{ceg, randomWalk("VST", 20, 2), randomWalk("CCJ", 20, 3)}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 19, filled.Rows())
	assert.Equal(t, 0.0, filled.At(4, 0), "filled day carries a zero return")

	opts := DefaultOptions()
	opts.ForwardFill = false
	unfilled, err := Build([]AssetPrices{ceg, randomWalk("VST", 20, 2), randomWalk("CCJ", 20, 3)}, opts)
	require.NoError(t, err)
	assert.Equal(t, 16, unfilled.Rows())
	assert.Equal(t, 3, unfilled.DroppedRows())

	opts = DefaultOptions()
	opts.MaxFillGap = 1
	limited, err := Build([]AssetPrices{ceg, randomWalk("VST", 20, 2), randomWalk("CCJ", 20, 3)}, opts)
	require.NoError(t, err)
	assert.Equal(t, 17, limited.Rows())
}

func TestBuild_SparseAssetDroppedNotRows(t *testing.T) {
	late := randomWalk("LATE", 40, 4)
	late.Prices = late.Prices[30:] // listed late, 75% of history missing

	m, err := Build([]AssetPrices{
		randomWalk("CEG", 40, 1), randomWalk("VST", 40, 2), randomWalk("CCJ", 40, 3), late,
	}, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"CEG", "VST", "CCJ"}, m.Assets())
	assert.Equal(t, 39, m.Rows())
	assert.Equal(t, []DroppedAsset{{Symbol: "LATE", Reason: DropTooSparse}}, m.Dropped())
}

func TestBuild_HistoryEndingEarlyIsNotPadded(t *testing.T) {
	stopped := randomWalk("D", 300, 4)
	stopped.Prices = stopped.Prices[:101] // stops reporting after day 100

	m, err := Build([]AssetPrices{
		randomWalk("A", 300, 1), randomWalk("B", 300, 2), randomWalk("C", 300, 3), stopped,
	}, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, m.Assets())
	assert.Equal(t, 299, m.Rows())
	assert.Equal(t, []DroppedAsset{{Symbol: "D", Reason: DropTooSparse}}, m.Dropped())
}

func TestBuild_PartialHistoryDropsRowsNotFilledZeros(t *testing.T) {
	cases := []struct {
		name   string
		trim   func([]PricePoint) []PricePoint
		rows   int
		absent []time.Time
	}{
		{
			name:   "ends early",
			trim:   func(p []PricePoint) []PricePoint { return p[:297] },
			rows:   296,
			absent: []time.Time{day(297), day(298), day(299)},
		},
		{
			name:   "starts late",
			trim:   func(p []PricePoint) []PricePoint { return p[5:] },
			rows:   294,
			absent: []time.Time{day(1), day(5)},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			partial := randomWalk("D", 300, 4)
			partial.Prices = tc.trim(partial.Prices)

			m, err := Build([]AssetPrices{
				randomWalk("A", 300, 1), randomWalk("B", 300, 2), randomWalk("C", 300, 3), partial,
			}, DefaultOptions())
			require.NoError(t, err)

			assert.Equal(t, []string{"A", "B", "C", "D"}, m.Assets())
			assert.Empty(t, m.Dropped())
			assert.Equal(t, tc.rows, m.Rows())
			for _, d := range tc.absent {
				assert.NotContains(t, m.Dates(), d)
			}
			for _, r := range m.Column(3) {
				assert.NotEqual(t, 0.0, r)
			}
		})
	}
}

func TestBuild_LongInteriorGapIsOnlyFilledUpToLimit(t *testing.T) {
	gappy := randomWalk("D", 100, 4)
	gappy.Prices = append(gappy.Prices[:40], gappy.Prices[50:]...) // days 40..49 missing

	m, err := Build([]AssetPrices{
		randomWalk("A", 100, 1), randomWalk("B", 100, 2), randomWalk("C", 100, 3), gappy,
	}, DefaultOptions())
	require.NoError(t, err)

	// Days 40..44 are filled, days 45..49 and the return into day 50 stay missing.
	assert.Equal(t, 93, m.Rows())
	assert.Equal(t, 6, m.DroppedRows())
	zeros := 0
	for _, r := range m.Column(3) {
		if r == 0 {
			zeros++
		}
	}
	assert.Equal(t, 5, zeros)
}

func TestForwardFill(t *testing.T) {
	nan := math.NaN()
	col := []float64{nan, 1, nan, nan, 2, nan, nan}
	forwardFill(col, 0)

	assert.True(t, math.IsNaN(col[0]), "leading gap stays missing")
	assert.Equal(t, []float64{1, 1, 1, 2}, col[1:5])
	assert.True(t, math.IsNaN(col[5]), "trailing gap stays missing")
	assert.True(t, math.IsNaN(col[6]))
}

func TestBuild_InsufficientUniverse(t *testing.T) {
	_, err := Build([]AssetPrices{
		randomWalk("CEG", 30, 1),
		constant("FLAT", 30, 10),
		randomWalk("VST", 30, 2),
	}, DefaultOptions())

	var universeErr *InsufficientUniverseError
	require.True(t, errors.As(err, &universeErr))
	assert.Equal(t, []string{"CEG", "VST"}, universeErr.Usable)
	assert.Equal(t, day(0), universeErr.Start)
	assert.Equal(t, day(29), universeErr.End)
	assert.Contains(t, err.Error(), "FLAT(zero_variance)")
}

func TestBuild_InsufficientUniverseWhenNothingUsable(t *testing.T) {
	_, err := Build([]AssetPrices{{Symbol: "A"}, {Symbol: "B"}}, DefaultOptions())

	var universeErr *InsufficientUniverseError
	require.True(t, errors.As(err, &universeErr))
	assert.Empty(t, universeErr.Usable)
	assert.Len(t, universeErr.Dropped, 2)
}

func TestBuild_InsufficientHistory(t *testing.T) {
	_, err := Build([]AssetPrices{
		randomWalk("CEG", 2, 1), randomWalk("VST", 2, 2), randomWalk("CCJ", 2, 3),
	}, DefaultOptions())

	var historyErr *InsufficientHistoryError
	require.True(t, errors.As(err, &historyErr))
	assert.Equal(t, 1, historyErr.Rows)
}

func TestMatrix_Accessors(t *testing.T) {
	m := NewMatrix([]time.Time{day(1), day(2)}, []string{"A", "B"}, [][]float64{{1, 2}, {3, 4}})

	col, ok := m.ColumnBySymbol("B")
	require.True(t, ok)
	assert.Equal(t, []float64{2, 4}, col)

	_, ok = m.ColumnBySymbol("Z")
	assert.False(t, ok)

	dense := m.Dense()
	dense.Set(0, 0, 99)
	assert.Equal(t, 1.0, m.At(0, 0), "Dense returns a copy")
	assert.Equal(t, day(1), m.Start())
	assert.Equal(t, day(2), m.End())
}
