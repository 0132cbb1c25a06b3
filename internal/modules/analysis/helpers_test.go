package analysis

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aristath/factorlens/internal/config"
	"github.com/aristath/factorlens/internal/database"
	"github.com/aristath/factorlens/internal/modules/correlation"
	"github.com/aristath/factorlens/internal/modules/returns"
)

var firstDay = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

// syntheticPrices simulates a market factor and a sector factor driving every symbol.
func syntheticPrices(symbols []string, days int, seed int64) []returns.AssetPrices {
	rng := rand.New(rand.NewSource(seed))
	out := make([]returns.AssetPrices, len(symbols))
	levels := make([]float64, len(symbols))
	for j, s := range symbols {
		out[j].Symbol = s
		levels[j] = 50 + float64(j)*10
	}
	for i := 0; i < days; i++ {
		market := rng.NormFloat64() * 0.01
		sector := rng.NormFloat64() * 0.008
		for j := range symbols {
			beta := 0.6 + 0.1*float64(j%4)
			gamma := 0.2 * float64(j%3)
			r := beta*market + gamma*sector + rng.NormFloat64()*0.006
			if i > 0 {
				levels[j] *= math.Exp(r)
			}
			out[j].Prices = append(out[j].Prices, returns.PricePoint{Date: firstDay.AddDate(0, 0, i), Close: levels[j]})
		}
	}
	return out
}

// fakePrices serves fixed series and counts calls.
type fakePrices struct {
	mu     sync.Mutex
	series map[string][]returns.PricePoint
	calls  int
	err    error
}

func newFakePrices(assets []returns.AssetPrices) *fakePrices {
	f := &fakePrices{series: make(map[string][]returns.PricePoint)}
	for _, a := range assets {
		f.series[a.Symbol] = a.Prices
	}
	return f
}

func (f *fakePrices) LoadPrices(_ context.Context, symbols []string, from, _ time.Time) ([]returns.AssetPrices, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]returns.AssetPrices, 0, len(symbols))
	for _, s := range symbols {
		var prices []returns.PricePoint
		for _, p := range f.series[s] {
			if from.IsZero() || !p.Date.Before(from) {
				prices = append(prices, p)
			}
		}
		out = append(out, returns.AssetPrices{Symbol: s, Prices: prices})
	}
	return out, nil
}

func nuclearUniverse() *config.Universe {
	window := 30
	lookback := 0
	return &config.Universe{
		Name: "nuclear",
		Groups: []config.Group{
			{Name: "nuclear", Symbols: []string{"CEG", "VST", "CCJ", "SMR"}},
			{Name: "benchmark", Symbols: []string{"XLU", "XLE"}},
		},
		Pairs: []correlation.Pair{{A: "CEG", B: "XLU"}, {A: "CCJ", B: "XLE"}},
		Analysis: config.AnalysisSettings{
			RollingWindow: &window,
			LookbackDays:  &lookback,
		},
	}
}

func openDB(t *testing.T, name string, profile database.DatabaseProfile) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, strings.ReplaceAll(t.Name(), "/", "_")),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}
