package returns

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/factorlens/pkg/formulas"
)

// zeroVarianceTol is the standard deviation below which a return column is treated as constant.
const zeroVarianceTol = 1e-12

// Build aligns the price histories on the union of their dates and converts them to
// log returns. Assets are dropped, never zero-filled, when they have fewer than two
// valid prices, too many unrecoverable gaps, or constant prices. Rows that still hold a
// non-finite return after that are removed. The column order follows the input order.
func Build(assets []AssetPrices, opts Options) (*Matrix, error) {
	var dropped []DroppedAsset

	type candidate struct {
		symbol string
		prices map[int64]float64
	}

	candidates := make([]candidate, 0, len(assets))
	symbolsAt := func(idx []int) []string {
		out := make([]string, len(idx))
		for i, j := range idx {
			out[i] = candidates[j].symbol
		}
		return out
	}
	dateSet := make(map[int64]time.Time)

	for _, a := range assets {
		valid := 0
		for _, p := range a.Prices {
			if formulas.IsFinite(p.Close) {
				valid++
			}
		}
		switch {
		case valid == 0:
			dropped = append(dropped, DroppedAsset{Symbol: a.Symbol, Reason: DropNoPrices})
			continue
		case valid < 2:
			dropped = append(dropped, DroppedAsset{Symbol: a.Symbol, Reason: DropTooFewPrices})
			continue
		}

		c := candidate{symbol: a.Symbol, prices: make(map[int64]float64, len(a.Prices))}
		for _, p := range a.Prices {
			if !formulas.IsFinite(p.Close) {
				continue
			}
			key := p.Date.Unix()
			c.prices[key] = p.Close
			dateSet[key] = p.Date
		}
		candidates = append(candidates, c)
	}

	keys := make([]int64, 0, len(dateSet))
	for k := range dateSet {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	dates := make([]time.Time, len(keys))
	for i, k := range keys {
		dates[i] = dateSet[k]
	}

	start, end := time.Time{}, time.Time{}
	if len(dates) > 0 {
		start, end = dates[0], dates[len(dates)-1]
	}

	// Aligned price grid, NaN where an asset has no observation. Sparsity is measured on
	// the raw grid so that filled prices never hide a missing history.
	grid := make([][]float64, len(candidates))
	kept := make([]int, 0, len(candidates))
	for j, c := range candidates {
		col := make([]float64, len(keys))
		missing := 0
		for i, k := range keys {
			if p, ok := c.prices[k]; ok {
				col[i] = p
			} else {
				col[i] = math.NaN()
				missing++
			}
		}
		if float64(missing)/float64(len(keys)) > opts.MaxMissingFraction {
			dropped = append(dropped, DroppedAsset{Symbol: c.symbol, Reason: DropTooSparse})
			continue
		}
		if opts.ForwardFill {
			forwardFill(col, opts.MaxFillGap)
		}
		grid[j] = col
		kept = append(kept, j)
	}

	if len(kept) < MinAssets {
		return nil, &InsufficientUniverseError{Usable: symbolsAt(kept), Dropped: dropped, Start: start, End: end}
	}

	periods := len(keys) - 1
	if periods < 1 {
		return nil, &InsufficientHistoryError{Rows: 0, Required: 2, Start: start, End: end}
	}

	// Log returns per kept asset; the first date has no predecessor and is dropped.
	rets := make([][]float64, len(candidates))
	for _, j := range kept {
		col := grid[j]
		r := make([]float64, periods)
		for t := 1; t < len(col); t++ {
			r[t-1] = formulas.LogReturn(col[t-1], col[t])
		}
		rets[j] = r
	}

	rows := make([]int, 0, periods)
	for t := 0; t < periods; t++ {
		ok := true
		for _, j := range kept {
			if !formulas.IsFinite(rets[j][t]) {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, t)
		}
	}
	droppedRows := periods - len(rows)

	if len(rows) < 2 {
		return nil, &InsufficientHistoryError{Rows: len(rows), Required: 2, Start: start, End: end}
	}

	final := make([]int, 0, len(kept))
	for _, j := range kept {
		col := make([]float64, len(rows))
		for i, t := range rows {
			col[i] = rets[j][t]
		}
		if formulas.StdDev(col) < zeroVarianceTol {
			dropped = append(dropped, DroppedAsset{Symbol: candidates[j].symbol, Reason: DropZeroVariance})
			continue
		}
		final = append(final, j)
	}

	if len(final) < MinAssets {
		return nil, &InsufficientUniverseError{Usable: symbolsAt(final), Dropped: dropped, Start: start, End: end}
	}

	data := mat.NewDense(len(rows), len(final), nil)
	symbols := make([]string, len(final))
	for c, j := range final {
		symbols[c] = candidates[j].symbol
		for i, t := range rows {
			data.Set(i, c, rets[j][t])
		}
	}

	rowDates := make([]time.Time, len(rows))
	for i, t := range rows {
		rowDates[i] = dates[t+1]
	}

	return &Matrix{
		dates:       rowDates,
		assets:      symbols,
		data:        data,
		dropped:     dropped,
		droppedRows: droppedRows,
	}, nil
}

// forwardFill carries the last finite value forward over interior gaps of at most maxGap
// consecutive missing values (0 = unlimited). Leading gaps and gaps after the last
// observation stay missing, so a series that starts late or stops early is never padded.
func forwardFill(col []float64, maxGap int) {
	end := len(col) - 1
	for end >= 0 && math.IsNaN(col[end]) {
		end--
	}
	last := -1
	for i := 0; i < end; i++ {
		if !math.IsNaN(col[i]) {
			last = i
			continue
		}
		if last < 0 {
			continue
		}
		if maxGap > 0 && i-last > maxGap {
			continue
		}
		col[i] = col[last]
	}
}
