package store

import (
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"spot-exchange/internal/models"
)

// InsertTrade appends one executed trade. Trades are immutable once
// written.
func InsertTrade(tx *sqlx.Tx, t *models.Trade) error {
	_, err := tx.Exec(
		`INSERT INTO trades (id, ticker, amount, price, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Ticker, t.Amount, t.Price, t.CreatedAt)
	return errors.Wrap(err, "insert trade")
}

// RecentTrades returns the most recent trades for a ticker, newest
// first. limit <= 0 falls back to 10.
func RecentTrades(q sqlx.Queryer, ticker string, limit int) ([]models.Trade, error) {
	if limit <= 0 {
		limit = 10
	}

	var out []models.Trade
	err := sqlx.Select(q, &out,
		`SELECT id, ticker, amount, price, created_at FROM trades
		 WHERE ticker = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`, ticker, limit)
	return out, errors.Wrap(err, "list trades")
}
