package factors

import (
	"fmt"
	"sort"
	"time"

	"github.com/aristath/factorlens/internal/modules/returns"
	"github.com/aristath/factorlens/pkg/formulas"
)

// minScreenStdDev is the rolling standard deviation below which a z-score is undefined.
const minScreenStdDev = 1e-12

// UndefinedScoreWarning marks a z-score left empty because the rolling window had no variance.
type UndefinedScoreWarning struct {
	Asset string    `json:"asset"`
	Date  time.Time `json:"date"`
}

func (w UndefinedScoreWarning) String() string {
	return fmt.Sprintf("undefined z-score for %s on %s: zero rolling variance", w.Asset, w.Date.Format("2006-01-02"))
}

// ScreenSeries holds the rolling residual z-scores after warm-up.
// Scores[i][j] is nil when the score of asset j on Dates[i] is undefined.
type ScreenSeries struct {
	Window   int                     `json:"window"`
	Dates    []time.Time             `json:"dates"`
	Assets   []string                `json:"assets"`
	Scores   [][]*float64            `json:"scores"`
	Warnings []UndefinedScoreWarning `json:"warnings,omitempty"`
}

// RollingScreen computes, for every asset and every row with a full trailing window,
// (r[t] - mean) / sd over the last window residuals, using the sample standard deviation.
// The first window-1 rows are not part of the output.
func RollingScreen(r *ResidualMatrix, window int) (*ScreenSeries, error) {
	if r == nil || r.Cols() == 0 {
		return nil, ErrEmptyMatrix
	}
	if window < 1 {
		return nil, fmt.Errorf("rolling window %d must be positive", window)
	}
	if r.Rows() < window {
		err := &returns.InsufficientHistoryError{Rows: r.Rows(), Required: window}
		if r.Rows() > 0 {
			err.Start, err.End = r.Dates[0], r.Dates[r.Rows()-1]
		}
		return nil, err
	}

	out := r.Rows() - window + 1
	s := &ScreenSeries{
		Window: window,
		Dates:  append([]time.Time(nil), r.Dates[window-1:]...),
		Assets: append([]string(nil), r.Assets...),
		Scores: make([][]*float64, out),
	}
	for i := range s.Scores {
		s.Scores[i] = make([]*float64, r.Cols())
	}

	for j := 0; j < r.Cols(); j++ {
		col := r.Column(j)
		for t := window - 1; t < len(col); t++ {
			mean, sd := formulas.MeanStdDev(col[t-window+1 : t+1])
			row := t - window + 1
			if !formulas.IsFinite(sd) || sd < minScreenStdDev {
				s.Warnings = append(s.Warnings, UndefinedScoreWarning{Asset: r.Assets[j], Date: r.Dates[t]})
				continue
			}
			z := (col[t] - mean) / sd
			s.Scores[row][j] = &z
		}
	}

	sort.SliceStable(s.Warnings, func(a, b int) bool {
		return s.Warnings[a].Date.Before(s.Warnings[b].Date)
	})

	return s, nil
}

// Rows returns the number of scored periods.
func (s *ScreenSeries) Rows() int { return len(s.Dates) }

// Column returns the z-score series of asset, or nil if it is not part of the screen.
func (s *ScreenSeries) Column(asset string) []*float64 {
	for j, a := range s.Assets {
		if a != asset {
			continue
		}
		out := make([]*float64, len(s.Scores))
		for i := range s.Scores {
			out[i] = s.Scores[i][j]
		}
		return out
	}
	return nil
}

// Latest ranks the assets on the most recent row where every score is defined. If no row
// is complete, the last row is used and undefined entries are ranked last.
func (s *ScreenSeries) Latest() (*ScreenResult, error) {
	if len(s.Scores) == 0 {
		return nil, fmt.Errorf("screen has no scored rows")
	}

	row := len(s.Scores) - 1
	for i := len(s.Scores) - 1; i >= 0; i-- {
		if complete(s.Scores[i]) {
			row = i
			break
		}
	}

	entries := make([]ScreenEntry, len(s.Assets))
	for j, a := range s.Assets {
		entries[j] = ScreenEntry{Asset: a, ZScore: s.Scores[row][j]}
	}
	sort.SliceStable(entries, func(a, b int) bool {
		za, zb := entries[a].ZScore, entries[b].ZScore
		if za == nil || zb == nil {
			return za != nil && zb == nil
		}
		return *za > *zb
	})

	return &ScreenResult{Date: s.Dates[row], Window: s.Window, Entries: entries}, nil
}

func complete(row []*float64) bool {
	for _, v := range row {
		if v == nil {
			return false
		}
	}
	return true
}

// ScreenEntry is one asset's latest residual z-score; ZScore is nil when undefined.
type ScreenEntry struct {
	Asset  string   `json:"asset"`
	ZScore *float64 `json:"z_score"`
}

// ScreenResult is the cross-sectional ranking at Date, sorted by descending z-score with
// undefined scores last. A high score means the asset is rich relative to the factor
// model, a low score that it is cheap.
type ScreenResult struct {
	Date    time.Time     `json:"date"`
	Window  int           `json:"window"`
	Entries []ScreenEntry `json:"entries"`
}

// Descending returns the ranking from highest to lowest z-score.
func (r *ScreenResult) Descending() []ScreenEntry {
	return append([]ScreenEntry(nil), r.Entries...)
}

// Ascending returns the ranking from lowest to highest z-score, undefined scores still last.
func (r *ScreenResult) Ascending() []ScreenEntry {
	out := make([]ScreenEntry, 0, len(r.Entries))
	defined := r.Defined()
	for i := defined - 1; i >= 0; i-- {
		out = append(out, r.Entries[i])
	}
	return append(out, r.Entries[defined:]...)
}

// Top returns the n highest defined scores.
func (r *ScreenResult) Top(n int) []ScreenEntry {
	return head(r.Entries[:r.Defined()], n)
}

// Bottom returns the n lowest defined scores, lowest first.
func (r *ScreenResult) Bottom(n int) []ScreenEntry {
	return head(r.Ascending()[:r.Defined()], n)
}

// Defined counts the entries with a score.
func (r *ScreenResult) Defined() int {
	n := 0
	for _, e := range r.Entries {
		if e.ZScore != nil {
			n++
		}
	}
	return n
}

func head(entries []ScreenEntry, n int) []ScreenEntry {
	if n < 0 || n > len(entries) {
		n = len(entries)
	}
	return append([]ScreenEntry(nil), entries[:n]...)
}
