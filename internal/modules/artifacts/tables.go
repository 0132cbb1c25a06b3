// Package artifacts exports analysis results as CSV files and an XLSX workbook, and
// optionally uploads them to S3-compatible object storage.
package artifacts

import (
	"sort"
	"time"

	"github.com/aristath/factorlens/internal/modules/analysis"
)

const dateLayout = "2006-01-02"

// Table is one exported table. Cells are string, float64, time.Time or nil (blank).
type Table struct {
	Name   string // file base name and sheet name
	Header []string
	Rows   [][]interface{}
}

// Tables builds every exported table of res in a fixed order.
func Tables(res *analysis.Result) []Table {
	return []Table{
		logReturnsTable(res),
		correlationTable(res),
		explainedVarianceTable(res),
		loadingsTable(res),
		latestZScoresTable(res),
		rollingCorrelationTable(res),
	}
}

func logReturnsTable(res *analysis.Result) Table {
	t := Table{Name: "log_returns", Header: append([]string{"Date"}, res.LogReturns.Columns...)}
	for i, date := range res.LogReturns.Dates {
		row := []interface{}{date}
		for _, v := range res.LogReturns.Values[i] {
			row = append(row, v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func correlationTable(res *analysis.Result) Table {
	t := Table{Name: "correlation_matrix", Header: append([]string{""}, res.Correlation.Assets...)}
	for i, asset := range res.Correlation.Assets {
		row := []interface{}{asset}
		for _, v := range res.Correlation.Values[i] {
			row = append(row, v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func explainedVarianceTable(res *analysis.Result) Table {
	t := Table{Name: "explained_variance", Header: []string{"PC", "ExplainedVarianceRatio", "CumulativeVariance"}}
	cum := res.Components.Cumulative()
	for i, c := range res.ReportedComponents() {
		t.Rows = append(t.Rows, []interface{}{c.Label(), c.VarianceRatio, cum[i]})
	}
	return t
}

// loadingsTable holds the loadings of the k retained components only.
func loadingsTable(res *analysis.Result) Table {
	comps := res.Components.Components
	if res.K < len(comps) {
		comps = comps[:res.K]
	}
	t := Table{Name: "loadings", Header: []string{"Ticker"}}
	for _, c := range comps {
		t.Header = append(t.Header, c.Label())
	}
	for j, asset := range res.Components.Assets {
		row := []interface{}{asset}
		for _, c := range comps {
			row = append(row, c.Loadings[j])
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func latestZScoresTable(res *analysis.Result) Table {
	t := Table{Name: "residual_latest_zscores", Header: []string{"Ticker", "ResidualZ"}}
	for _, e := range res.Latest.Descending() {
		if e.ZScore == nil {
			t.Rows = append(t.Rows, []interface{}{e.Asset, nil})
			continue
		}
		t.Rows = append(t.Rows, []interface{}{e.Asset, *e.ZScore})
	}
	return t
}

// rollingCorrelationTable aligns every pair's rolling series on the union of their dates.
// Pairs that failed get no column.
func rollingCorrelationTable(res *analysis.Result) Table {
	t := Table{Name: "rolling_corr", Header: []string{"Date"}}

	type column map[time.Time]*float64
	var columns []column
	seen := make(map[time.Time]bool)
	var dates []time.Time
	for _, pc := range res.Pairs {
		if pc.Rolling == nil {
			continue
		}
		t.Header = append(t.Header, pc.Pair.A+"~"+pc.Pair.B)
		col := make(column, pc.Rolling.Len())
		for i, d := range pc.Rolling.Dates {
			col[d] = pc.Rolling.Values[i]
			if !seen[d] {
				seen[d] = true
				dates = append(dates, d)
			}
		}
		columns = append(columns, col)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	for _, d := range dates {
		row := []interface{}{d}
		for _, col := range columns {
			if v := col[d]; v != nil {
				row = append(row, *v)
			} else {
				row = append(row, nil)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
