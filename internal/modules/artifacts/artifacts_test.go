package artifacts

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/aristath/factorlens/internal/modules/analysis"
	"github.com/aristath/factorlens/internal/modules/correlation"
	"github.com/aristath/factorlens/internal/modules/returns"
)

var tickers = []string{"CEG", "VST", "CCJ", "XLU", "XLE"}

func testResult(t *testing.T) *analysis.Result {
	t.Helper()
	rng := rand.New(rand.NewSource(3))
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assets := make([]returns.AssetPrices, len(tickers))
	for j, s := range tickers {
		assets[j].Symbol = s
		level := 40.0 + float64(j)
		for i := 0; i < 100; i++ {
			if i > 0 {
				level *= math.Exp(rng.NormFloat64() * 0.01)
			}
			assets[j].Prices = append(assets[j].Prices, returns.PricePoint{Date: start.AddDate(0, 0, i), Close: level})
		}
	}

	cfg := analysis.DefaultConfig()
	cfg.RollingWindow = 20
	cfg.CorrelationWindow = 30
	cfg.MaxComponents = 3
	cfg.CorrelationPairs = []correlation.Pair{{A: "CEG", B: "XLU"}, {A: "CCJ", B: "XLE"}, {A: "CEG", B: "TSLA"}}

	res, err := analysis.Analyze("nuclear", assets, cfg, nil)
	require.NoError(t, err)
	res.RunID = "run-42"
	return res
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestTables(t *testing.T) {
	res := testResult(t)
	tables := Tables(res)

	names := make([]string, len(tables))
	for i, tb := range tables {
		names[i] = tb.Name
	}
	assert.Equal(t, []string{
		"log_returns", "correlation_matrix", "explained_variance",
		"loadings", "residual_latest_zscores", "rolling_corr",
	}, names)

	ev := tables[2]
	assert.Equal(t, []string{"PC", "ExplainedVarianceRatio", "CumulativeVariance"}, ev.Header)
	assert.Len(t, ev.Rows, 3, "capped by max_components")

	loadings := tables[3]
	require.Len(t, loadings.Header, 1+res.K, "retained components only")
	assert.Equal(t, "Ticker", loadings.Header[0])
	assert.Equal(t, "PC1", loadings.Header[1])
	assert.Len(t, loadings.Rows, len(tickers))

	rolling := tables[5]
	assert.Equal(t, []string{"Date", "CEG~XLU", "CCJ~XLE"}, rolling.Header)
	assert.Len(t, rolling.Rows, 99-30+1)
}

func TestLoadingsTable_RetainedComponentsOnly(t *testing.T) {
	res := testResult(t)
	res.K = 2

	loadings := loadingsTable(res)
	assert.Equal(t, []string{"Ticker", "PC1", "PC2"}, loadings.Header)
	require.Len(t, loadings.Rows, len(tickers))
	for j, row := range loadings.Rows {
		assert.Equal(t, res.Components.Assets[j], row[0])
		assert.Equal(t, res.Components.Components[1].Loadings[j], row[2])
	}

	assert.Len(t, explainedVarianceTable(res).Rows, 3, "variance table keeps max_components rows")
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()
	res := testResult(t)

	path, err := WriteCSV(dir, latestZScoresTable(res))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "residual_latest_zscores.csv"), path)

	records := readCSV(t, path)
	require.Len(t, records, len(tickers)+1)
	assert.Equal(t, []string{"Ticker", "ResidualZ"}, records[0])
	assert.Equal(t, res.Latest.Entries[0].Asset, records[1][0])
	assert.NotEmpty(t, records[1][1])
}

func TestWriteCSV_BlankCells(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	table := Table{
		Name:   "sample",
		Header: []string{"Date", "A~B"},
		Rows:   [][]interface{}{{day, 0.5}, {day.AddDate(0, 0, 1), nil}},
	}

	path, err := WriteCSV(dir, table)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Date", "A~B"},
		{"2024-05-01", "0.5"},
		{"2024-05-02", ""},
	}, readCSV(t, path))
}

func TestWriteWorkbook(t *testing.T) {
	dir := t.TempDir()
	res := testResult(t)

	path, err := WriteWorkbook(dir, Tables(res))
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{
		"log_returns", "correlation_matrix", "explained_variance",
		"loadings", "residual_latest_zscores", "rolling_corr",
	}, f.GetSheetList())

	rows, err := f.GetRows("explained_variance")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "PC1", rows[1][0])

	value, err := f.GetCellValue("log_returns", "A2")
	require.NoError(t, err)
	assert.Equal(t, res.LogReturns.Dates[0].Format("2006-01-02"), value)
}

type memoryUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (m *memoryUploader) Upload(_ context.Context, key string, body io.Reader) error {
	if m.err != nil {
		return m.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = buf.Bytes()
	return nil
}

func TestPublisher_Export(t *testing.T) {
	dir := t.TempDir()
	res := testResult(t)
	up := &memoryUploader{}

	p := NewPublisher(dir, zerolog.Nop())
	p.SetUploader(up, "exports")

	files, err := p.Export(context.Background(), res)
	require.NoError(t, err)
	require.Len(t, files, 7)

	runDir := filepath.Join(dir, "nuclear", "run-42")
	assert.Equal(t, runDir, p.RunDir(res))
	for _, f := range files {
		assert.Equal(t, runDir, filepath.Dir(f))
		assert.FileExists(t, f)
	}

	keys := make([]string, 0, len(up.objects))
	for k := range up.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{
		"exports/nuclear/run-42/correlation_matrix.csv",
		"exports/nuclear/run-42/explained_variance.csv",
		"exports/nuclear/run-42/factor_analysis.xlsx",
		"exports/nuclear/run-42/loadings.csv",
		"exports/nuclear/run-42/log_returns.csv",
		"exports/nuclear/run-42/residual_latest_zscores.csv",
		"exports/nuclear/run-42/rolling_corr.csv",
	}, keys)

	onDisk, err := os.ReadFile(filepath.Join(runDir, "loadings.csv"))
	require.NoError(t, err)
	assert.Equal(t, onDisk, up.objects["exports/nuclear/run-42/loadings.csv"])
}

func TestPublisher_WithoutWorkbook(t *testing.T) {
	p := NewPublisher(t.TempDir(), zerolog.Nop())
	p.SetWorkbook(false)

	files, err := p.Export(context.Background(), testResult(t))
	require.NoError(t, err)
	assert.Len(t, files, 6)
}

func TestPublisher_UploadError(t *testing.T) {
	p := NewPublisher(t.TempDir(), zerolog.Nop())
	p.SetUploader(&memoryUploader{err: errors.New("access denied")}, "")

	err := p.Publish(context.Background(), testResult(t))
	assert.ErrorContains(t, err, "access denied")
}
