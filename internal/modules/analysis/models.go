// Package analysis runs the factor pipeline for a universe: return construction,
// decomposition, component selection, residual screening and correlations.
package analysis

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/factorlens/internal/modules/correlation"
	"github.com/aristath/factorlens/internal/modules/factors"
	"github.com/aristath/factorlens/internal/modules/returns"
)

// Table is a dense date × column table.
type Table struct {
	Dates   []time.Time `json:"dates"`
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

func tableFromDense(dates []time.Time, columns []string, m *mat.Dense) Table {
	rows, cols := m.Dims()
	t := Table{Dates: dates, Columns: columns, Values: make([][]float64, rows)}
	for i := 0; i < rows; i++ {
		t.Values[i] = make([]float64, cols)
		mat.Row(t.Values[i], i, m)
	}
	return t
}

// Column returns the values of the named column.
func (t Table) Column(name string) ([]float64, bool) {
	for j, c := range t.Columns {
		if c != name {
			continue
		}
		out := make([]float64, len(t.Values))
		for i, row := range t.Values {
			out[i] = row[j]
		}
		return out, true
	}
	return nil, false
}

// ReturnsSummary describes the cleaned return matrix.
type ReturnsSummary struct {
	Start       time.Time              `json:"start"`
	End         time.Time              `json:"end"`
	Periods     int                    `json:"periods"`
	Assets      []string               `json:"assets"`
	Dropped     []returns.DroppedAsset `json:"dropped,omitempty"`
	DroppedRows int                    `json:"dropped_rows"`
}

// CorrelationTable is the full-sample correlation matrix with its strongest pairs.
type CorrelationTable struct {
	Assets []string                `json:"assets"`
	Values [][]float64             `json:"values"`
	Top    []correlation.PairValue `json:"top"`
}

// Result is the complete output of one run. It holds plain data only so that it can be
// cached, served and exported as is.
type Result struct {
	RunID     string             `json:"run_id"`
	Universe  string             `json:"universe"`
	Config    Config             `json:"config"`
	StartedAt time.Time          `json:"started_at"`
	Timings   map[string]float64 `json:"timings_ms"`

	Returns    ReturnsSummary    `json:"returns"`
	LogReturns Table             `json:"log_returns"`
	Groups     map[string]string `json:"groups,omitempty"` // symbol -> group name

	Components         *factors.ComponentSet `json:"components"`
	K                  int                   `json:"k"`
	CumulativeVariance float64               `json:"cumulative_variance"`
	Scores             Table                 `json:"scores"`
	Residuals          Table                 `json:"residuals"`
	ResidualUnits      factors.ResidualUnits `json:"residual_units"`

	Screen *factors.ScreenSeries `json:"screen"`
	Latest *factors.ScreenResult `json:"latest"`

	Correlation CorrelationTable              `json:"correlation"`
	Pairs       []correlation.PairCorrelation `json:"pairs"`

	Warnings []string `json:"warnings,omitempty"`
}

// ReportedComponents returns the components shown in tables and exports, capped by
// Config.MaxComponents.
func (r *Result) ReportedComponents() []factors.Component {
	comps := r.Components.Components
	if n := r.Config.MaxComponents; n > 0 && n < len(comps) {
		comps = comps[:n]
	}
	return comps
}

// RunStatus is the outcome of a run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunRecord is the persisted summary of one run.
type RunRecord struct {
	ID                 string        `json:"id"`
	Universe           string        `json:"universe"`
	Status             RunStatus     `json:"status"`
	Mode               factors.Mode  `json:"mode"`
	VarianceTarget     float64       `json:"variance_target"`
	RollingWindow      int           `json:"rolling_window"`
	Assets             int           `json:"assets"`
	Periods            int           `json:"periods"`
	Components         int           `json:"components"`
	CumulativeVariance float64       `json:"cumulative_variance"`
	Start              *time.Time    `json:"start,omitempty"`
	End                *time.Time    `json:"end,omitempty"`
	Error              string        `json:"error,omitempty"`
	StartedAt          time.Time     `json:"started_at"`
	Duration           time.Duration `json:"duration_ns"`
}
