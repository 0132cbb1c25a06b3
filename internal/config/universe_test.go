package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/factorlens/internal/modules/correlation"
)

const nuclearYAML = `
description: Nuclear power and fuel names against sector benchmarks
groups:
  - name: nuclear
    symbols: [ceg, VST, CCJ, SMR, OKLO]
  - name: benchmark
    symbols: [XLU, XLE, SPY]
pairs:
  - {a: CEG, b: XLU}
  - {a: ccj, b: XLE}
analysis:
  mode: standardized
  variance_target: 0.8
  rolling_window: 60
  forward_fill: false
`

func TestParseUniverse(t *testing.T) {
	u, err := ParseUniverse([]byte(nuclearYAML), "nuclear")
	require.NoError(t, err)

	assert.Equal(t, "nuclear", u.Name)
	assert.Equal(t, []string{"CEG", "VST", "CCJ", "SMR", "OKLO", "XLU", "XLE", "SPY"}, u.Symbols())
	assert.Equal(t, "nuclear", u.GroupOf("CEG"))
	assert.Equal(t, "benchmark", u.GroupOf("SPY"))
	assert.Equal(t, "", u.GroupOf("AAPL"))
	assert.Equal(t, []correlation.Pair{{A: "CEG", B: "XLU"}, {A: "CCJ", B: "XLE"}}, u.Pairs)

	require.NotNil(t, u.Analysis.VarianceTarget)
	assert.Equal(t, 0.8, *u.Analysis.VarianceTarget)
	assert.Equal(t, 60, *u.Analysis.RollingWindow)
	assert.False(t, *u.Analysis.ForwardFill)
	assert.Equal(t, "standardized", u.Analysis.Mode)
	assert.Nil(t, u.Analysis.LookbackDays)
}

func TestParseUniverse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no symbols", "name: empty\ngroups: []\n", "has no symbols"},
		{"unknown pair symbol", "name: u\ngroups:\n  - name: g\n    symbols: [A, B, C]\npairs:\n  - {a: A, b: Z}\n", `unknown symbol "Z"`},
		{"unnamed group", "name: u\ngroups:\n  - symbols: [A]\n", "group without a name"},
		{"malformed", "groups: [", "failed to parse universe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseUniverse([]byte(tt.yaml), "fallback")
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadUniverses(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nuclear.yaml"), []byte(nuclearYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "utilities.yml"), []byte("groups:\n  - name: utilities\n    symbols: [NEE, DUK, SO]\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0644))

	reg, err := LoadUniverses(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"nuclear", "utilities"}, reg.Names())
	assert.Len(t, reg.All(), 2)

	u, err := reg.Get("utilities")
	require.NoError(t, err)
	assert.Equal(t, []string{"NEE", "DUK", "SO"}, u.Symbols())

	_, err = reg.Get("crypto")
	assert.True(t, errors.Is(err, ErrUnknownUniverse))
}

func TestNewUniverses_Duplicate(t *testing.T) {
	a := &Universe{Name: "x"}
	_, err := NewUniverses(a, a)
	assert.ErrorContains(t, err, "duplicate universe")
}
