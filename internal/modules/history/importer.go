package history

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/factorlens/internal/modules/returns"
)

// ErrNoDateColumn is returned when the first CSV column is not a date column.
var ErrNoDateColumn = errors.New("first column must be Date")

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339,
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func isMissing(cell string) bool {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "", "nan", "null", "na", "n/a":
		return true
	}
	return false
}

// ParseWideCSV reads a price table with a Date column followed by one column of closing
// prices per symbol. Empty and NaN cells are skipped.
func ParseWideCSV(r io.Reader) ([]returns.AssetPrices, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) < 2 || !strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(header[0], "\ufeff")), "date") {
		return nil, ErrNoDateColumn
	}

	assets := make([]returns.AssetPrices, len(header)-1)
	for i, name := range header[1:] {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("column %d has no symbol", i+2)
		}
		assets[i].Symbol = name
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		date, err := parseDate(record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		for i, cell := range record[1:] {
			if isMissing(cell) {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d, %s: invalid price %q", line, assets[i].Symbol, cell)
			}
			assets[i].Prices = append(assets[i].Prices, returns.PricePoint{Date: date, Close: v})
		}
	}
	return assets, nil
}

// ImportSummary describes one CSV import.
type ImportSummary struct {
	Symbols []string `json:"symbols"`
	Prices  int      `json:"prices"`
}

// Importer loads wide price CSV files into the repository.
type Importer struct {
	repo *Repository
	log  zerolog.Logger
}

// NewImporter creates a new CSV importer
func NewImporter(repo *Repository, log zerolog.Logger) *Importer {
	return &Importer{
		repo: repo,
		log:  log.With().Str("component", "price_importer").Logger(),
	}
}

// Import parses r and stores every symbol's prices under source.
func (i *Importer) Import(ctx context.Context, r io.Reader, source string) (*ImportSummary, error) {
	assets, err := ParseWideCSV(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price CSV: %w", err)
	}

	summary := &ImportSummary{}
	for _, a := range assets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := i.repo.UpsertPrices(ctx, a.Symbol, a.Prices, source); err != nil {
			return nil, fmt.Errorf("failed to store %s: %w", a.Symbol, err)
		}
		summary.Symbols = append(summary.Symbols, a.Symbol)
		summary.Prices += len(a.Prices)
	}

	i.log.Info().
		Strs("symbols", summary.Symbols).
		Int("prices", summary.Prices).
		Str("source", source).
		Msg("Imported price history")
	return summary, nil
}
