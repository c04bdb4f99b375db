package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"spot-exchange/internal/models"
)

// BookLevels aggregates open limit orders into the top-K price levels
// per side: bids descending, asks ascending, each level summing the
// unfilled quantity. Plain snapshot reads, no locks — the view is
// advisory and must never block matching.
func BookLevels(q sqlx.Queryer, ticker string, depth int) (*models.L2OrderBook, error) {
	if depth <= 0 {
		depth = 10
	}

	const levelQuery = `SELECT price, SUM(qty - filled) AS qty FROM orders
		WHERE ticker = ? AND direction = ?
		  AND status IN ('NEW', 'PARTIALLY_EXECUTED')
		  AND price IS NOT NULL
		  AND filled < qty
		GROUP BY price
		ORDER BY price %s
		LIMIT ?`

	book := &models.L2OrderBook{
		BidLevels: []models.Level{},
		AskLevels: []models.Level{},
	}

	if err := sqlx.Select(q, &book.BidLevels,
		fmt.Sprintf(levelQuery, "DESC"), ticker, models.DirectionBuy, depth); err != nil {
		return nil, errors.Wrap(err, "aggregate bids")
	}
	if err := sqlx.Select(q, &book.AskLevels,
		fmt.Sprintf(levelQuery, "ASC"), ticker, models.DirectionSell, depth); err != nil {
		return nil, errors.Wrap(err, "aggregate asks")
	}
	return book, nil
}
