package factors

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/factorlens/internal/modules/returns"
)

func residuals(assets []string, cols ...[]float64) *ResidualMatrix {
	values := make([][]float64, len(cols[0]))
	for i := range values {
		values[i] = make([]float64, len(cols))
		for j := range cols {
			values[i][j] = cols[j][i]
		}
	}
	return NewResidualMatrix(dates(len(values)), assets, UnitsPreprocessed, values)
}

func TestRollingScreen_WarmUp(t *testing.T) {
	m := factorReturns(61, 31)
	cs, err := Decompose(m, ModeDemeaned)
	require.NoError(t, err)
	rec, err := Reconstruct(m, cs, 1)
	require.NoError(t, err)

	s, err := RollingScreen(rec.Residuals, 60)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Rows())
	assert.Equal(t, m.Dates()[59:], s.Dates)
	assert.Empty(t, s.Warnings)

	for _, w := range []int{1, 5, 30, 61} {
		s, err := RollingScreen(rec.Residuals, w)
		require.NoError(t, err)
		assert.Equal(t, 61-w+1, s.Rows(), "window %d", w)
	}
}

func TestRollingScreen_Values(t *testing.T) {
	a := []float64{1, 2, 3, 4, 10}
	b := []float64{5, 4, 3, 2, 1}
	c := []float64{0.5, -0.5, 0.5, -0.5, 0.5}
	r := residuals([]string{"A", "B", "C"}, a, b, c)

	s, err := RollingScreen(r, 3)
	require.NoError(t, err)
	require.Equal(t, 3, s.Rows())

	// Last window of A is {3, 4, 10}.
	mean := 17.0 / 3.0
	sd := math.Sqrt((math.Pow(3-mean, 2) + math.Pow(4-mean, 2) + math.Pow(10-mean, 2)) / 2)
	colA := s.Column("A")
	require.NotNil(t, colA[2])
	assert.InDelta(t, (10-mean)/sd, *colA[2], 1e-12)

	// A strictly decreasing series sits one sd below its window mean.
	for _, z := range s.Column("B") {
		require.NotNil(t, z)
		assert.InDelta(t, -1.0, *z, 1e-12)
	}

	assert.Nil(t, s.Column("D"))
}

func TestRollingScreen_ScaleInvariant(t *testing.T) {
	a := []float64{0.1, -0.3, 0.2, 0.5, -0.1, 0.05}
	scaled := make([]float64, len(a))
	for i, v := range a {
		scaled[i] = v * 250
	}
	s1, err := RollingScreen(residuals([]string{"A"}, a), 4)
	require.NoError(t, err)
	s2, err := RollingScreen(residuals([]string{"A"}, scaled), 4)
	require.NoError(t, err)

	for i := range s1.Scores {
		assert.InDelta(t, *s1.Scores[i][0], *s2.Scores[i][0], 1e-12)
	}
}

func TestRollingScreen_UndefinedScores(t *testing.T) {
	flat := []float64{0.2, 0.2, 0.2, 0.2, 0.2}
	moving := []float64{0.1, 0.3, -0.2, 0.4, 0.0}
	other := []float64{-0.1, 0.2, 0.1, -0.3, 0.5}
	r := residuals([]string{"FLAT", "MOVE", "OTHER"}, flat, moving, other)

	s, err := RollingScreen(r, 3)
	require.NoError(t, err)

	for _, z := range s.Column("FLAT") {
		assert.Nil(t, z)
	}
	for _, z := range s.Column("MOVE") {
		assert.NotNil(t, z)
	}
	require.Len(t, s.Warnings, 3)
	assert.Equal(t, "FLAT", s.Warnings[0].Asset)
	assert.Equal(t, r.Dates[2], s.Warnings[0].Date)
	assert.Contains(t, s.Warnings[0].String(), "undefined z-score for FLAT")

	latest, err := s.Latest()
	require.NoError(t, err)
	assert.Equal(t, r.Dates[4], latest.Date)
	assert.Equal(t, 2, latest.Defined())
	assert.Equal(t, "FLAT", latest.Entries[2].Asset)
	assert.Nil(t, latest.Entries[2].ZScore)

	asc := latest.Ascending()
	assert.Equal(t, "FLAT", asc[2].Asset)
	assert.Len(t, latest.Top(5), 2)
	assert.Len(t, latest.Bottom(5), 2)
}

func TestRollingScreen_WindowOfOneIsUndefined(t *testing.T) {
	s, err := RollingScreen(residuals([]string{"A", "B", "C"}, []float64{1, 2}, []float64{3, 1}, []float64{0, 1}), 1)
	require.NoError(t, err)
	assert.Len(t, s.Warnings, 6)
	for _, row := range s.Scores {
		for _, z := range row {
			assert.Nil(t, z)
		}
	}
}

func TestScreenSeries_LatestUsesLastCompleteRow(t *testing.T) {
	// C goes flat in the last window.
	c := []float64{0.1, -0.2, 0.3, 0.3, 0.3}
	d := []float64{0.4, -0.1, 0.2, 0.6, -0.5}
	e := []float64{0.0, 0.1, 0.2, 0.3, 0.9}
	r := residuals([]string{"C", "D", "E"}, c, d, e)

	s, err := RollingScreen(r, 3)
	require.NoError(t, err)

	latest, err := s.Latest()
	require.NoError(t, err)
	assert.Equal(t, r.Dates[3], latest.Date)
	assert.Equal(t, 3, latest.Defined())
}

func TestScreenResult_Ordering(t *testing.T) {
	z := func(v float64) *float64 { return &v }
	res := &ScreenResult{Entries: []ScreenEntry{
		{Asset: "CEG", ZScore: z(2.1)},
		{Asset: "VST", ZScore: z(0.4)},
		{Asset: "CCJ", ZScore: z(-1.3)},
		{Asset: "SMR", ZScore: nil},
	}}

	assert.Equal(t, []string{"CEG", "VST", "CCJ", "SMR"}, symbols(res.Descending()))
	assert.Equal(t, []string{"CCJ", "VST", "CEG", "SMR"}, symbols(res.Ascending()))
	assert.Equal(t, []string{"CEG", "VST"}, symbols(res.Top(2)))
	assert.Equal(t, []string{"CCJ"}, symbols(res.Bottom(1)))
	assert.Equal(t, []string{"CCJ", "VST", "CEG"}, symbols(res.Bottom(-1)))
}

func TestRollingScreen_Errors(t *testing.T) {
	r := residuals([]string{"A", "B", "C"}, []float64{1, 2}, []float64{3, 1}, []float64{0, 1})

	_, err := RollingScreen(r, 0)
	assert.ErrorContains(t, err, "must be positive")

	_, err = RollingScreen(r, 3)
	var historyErr *returns.InsufficientHistoryError
	require.True(t, errors.As(err, &historyErr))
	assert.Equal(t, 2, historyErr.Rows)
	assert.Equal(t, 3, historyErr.Required)

	_, err = RollingScreen(nil, 3)
	assert.ErrorIs(t, err, ErrEmptyMatrix)
}

func symbols(entries []ScreenEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Asset
	}
	return out
}
