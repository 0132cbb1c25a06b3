// Package history stores daily closing prices and serves them to the analysis pipeline.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/factorlens/internal/database"
	"github.com/aristath/factorlens/internal/modules/returns"
)

// Repository provides access to the daily_prices table
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new price history repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "history_repository").Logger(),
	}
}

// SymbolRange summarizes the stored history of one symbol.
type SymbolRange struct {
	Symbol string    `json:"symbol"`
	First  time.Time `json:"first"`
	Last   time.Time `json:"last"`
	Count  int       `json:"count"`
}

// dayUnix truncates t to midnight UTC.
func dayUnix(t time.Time) int64 {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix()
}

// UpsertPrices inserts or replaces the closing prices of symbol in a single transaction.
func (r *Repository) UpsertPrices(ctx context.Context, symbol string, prices []returns.PricePoint, source string) error {
	if len(prices) == 0 {
		return nil
	}
	now := time.Now().Unix()

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO daily_prices (symbol, date, close, source, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, p := range prices {
			if _, err := stmt.ExecContext(ctx, symbol, dayUnix(p.Date), p.Close, source, now); err != nil {
				return fmt.Errorf("failed to insert price for %s on %s: %w", symbol, p.Date.Format("2006-01-02"), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().
		Str("symbol", symbol).
		Int("count", len(prices)).
		Msg("Stored daily prices")
	return nil
}

// GetPrices returns the prices of symbol in [from, to], oldest first. Zero bounds are open.
func (r *Repository) GetPrices(ctx context.Context, symbol string, from, to time.Time) ([]returns.PricePoint, error) {
	query := `SELECT date, close FROM daily_prices WHERE symbol = ?`
	args := []interface{}{symbol}
	if !from.IsZero() {
		query += ` AND date >= ?`
		args = append(args, dayUnix(from))
	}
	if !to.IsZero() {
		query += ` AND date <= ?`
		args = append(args, dayUnix(to))
	}
	query += ` ORDER BY date ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var prices []returns.PricePoint
	for rows.Next() {
		var dateUnix int64
		var p returns.PricePoint
		if err := rows.Scan(&dateUnix, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		p.Date = time.Unix(dateUnix, 0).UTC()
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}
	return prices, nil
}

// LoadPrices returns the price series of every requested symbol in [from, to]. Symbols
// without stored prices are returned with an empty series so that the return builder can
// report them as dropped.
func (r *Repository) LoadPrices(ctx context.Context, symbols []string, from, to time.Time) ([]returns.AssetPrices, error) {
	out := make([]returns.AssetPrices, 0, len(symbols))
	for _, symbol := range symbols {
		prices, err := r.GetPrices(ctx, symbol, from, to)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", symbol, err)
		}
		out = append(out, returns.AssetPrices{Symbol: symbol, Prices: prices})
	}
	return out, nil
}

// Symbols lists every stored symbol with its date range.
func (r *Repository) Symbols(ctx context.Context) ([]SymbolRange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT symbol, MIN(date), MAX(date), COUNT(*)
		FROM daily_prices
		GROUP BY symbol
		ORDER BY symbol
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var out []SymbolRange
	for rows.Next() {
		var s SymbolRange
		var first, last int64
		if err := rows.Scan(&s.Symbol, &first, &last, &s.Count); err != nil {
			return nil, fmt.Errorf("failed to scan symbol range: %w", err)
		}
		s.First = time.Unix(first, 0).UTC()
		s.Last = time.Unix(last, 0).UTC()
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// DeleteSymbol removes all stored prices of symbol and returns the number of rows removed.
func (r *Repository) DeleteSymbol(ctx context.Context, symbol string) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM daily_prices WHERE symbol = ?", symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to delete prices for %s: %w", symbol, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %w", err)
	}
	r.log.Info().Str("symbol", symbol).Int64("rows", n).Msg("Deleted price history")
	return n, nil
}
