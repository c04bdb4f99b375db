// Package store persists the exchange's records: orders, trades, users
// and instruments. Functions take a sqlx.Ext so they run either on the
// pool or inside a transaction; anything that feeds matching requires a
// *sqlx.Tx because it takes row locks.
package store

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"spot-exchange/internal/apperr"
	"spot-exchange/internal/models"
)

const orderColumns = `id, user_id, type, direction, ticker, qty, price, status, filled, created_at`

// InsertOrder persists a freshly admitted order.
func InsertOrder(tx *sqlx.Tx, o *models.Order) error {
	_, err := tx.Exec(
		`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.Type, o.Direction, o.Ticker, o.Qty, o.Price, o.Status, o.Filled, o.CreatedAt)
	return errors.Wrap(err, "insert order")
}

// OrderForUser loads one order owned by the given user.
func OrderForUser(q sqlx.Queryer, orderID, userID string) (*models.Order, error) {
	var o models.Order
	err := sqlx.Get(q, &o,
		`SELECT `+orderColumns+` FROM orders WHERE id = ? AND user_id = ?`, orderID, userID)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.OrderNotFound, "order %s not found", orderID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	return &o, nil
}

// OrderForUserLocked is OrderForUser under an exclusive row lock, used
// by the cancel path so a concurrent fill cannot race the refund.
func OrderForUserLocked(tx *sqlx.Tx, orderID, userID string) (*models.Order, error) {
	var o models.Order
	err := tx.Get(&o,
		`SELECT `+orderColumns+` FROM orders WHERE id = ? AND user_id = ? FOR UPDATE`,
		orderID, userID)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.OrderNotFound, "order %s not found", orderID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "lock order")
	}
	return &o, nil
}

// OrdersByUser lists a user's orders, oldest first.
func OrdersByUser(q sqlx.Queryer, userID string) ([]models.Order, error) {
	var out []models.Order
	err := sqlx.Select(q, &out,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY created_at, id`, userID)
	return out, errors.Wrap(err, "list orders")
}

// NextMaker returns the best opposing open maker for a taker on the
// given side, locked FOR UPDATE, or nil when the book side is empty.
//
// Best means price-time priority: lowest price first for SELL makers,
// highest first for BUY makers, ties broken by created_at then id.
// priceBound, when non-nil, is the taker's limit (a cap against SELL
// makers, a floor against BUY makers). excludeUser, when non-empty,
// skips makers owned by that user.
//
// Every matching transaction walks makers in this same canonical order,
// which keeps cross-transaction lock acquisition on the book cycle-free.
func NextMaker(tx *sqlx.Tx, ticker string, side models.Direction, priceBound *int64, excludeUser string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE ticker = ? AND direction = ?
		  AND status IN ('NEW', 'PARTIALLY_EXECUTED')
		  AND filled < qty`
	args := []interface{}{ticker, side}

	if priceBound != nil {
		if side == models.DirectionSell {
			query += ` AND price <= ?`
		} else {
			query += ` AND price >= ?`
		}
		args = append(args, *priceBound)
	}
	if excludeUser != "" {
		query += ` AND user_id <> ?`
		args = append(args, excludeUser)
	}

	if side == models.DirectionSell {
		query += ` ORDER BY price ASC, created_at ASC, id ASC`
	} else {
		query += ` ORDER BY price DESC, created_at ASC, id ASC`
	}
	query += ` LIMIT 1 FOR UPDATE`

	var o models.Order
	err := tx.Get(&o, query, args...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query maker")
	}
	return &o, nil
}

// ApplyFill bumps the order's filled quantity by delta and derives the
// status: EXECUTED when fully filled, PARTIALLY_EXECUTED otherwise. The
// passed order is updated in place. Cancelled orders are never passed
// here; the matcher only sees open rows.
func ApplyFill(tx *sqlx.Tx, o *models.Order, delta int64) error {
	if delta <= 0 || delta > o.Remaining() {
		return apperr.Newf(apperr.Validation, "fill of %d outside remaining %d", delta, o.Remaining())
	}

	o.Filled += delta
	if o.Filled == o.Qty {
		o.Status = models.OrderStatusExecuted
	} else {
		o.Status = models.OrderStatusPartiallyExecuted
	}

	_, err := tx.Exec(`UPDATE orders SET filled = ?, status = ? WHERE id = ?`,
		o.Filled, o.Status, o.ID)
	return errors.Wrap(err, "update fill")
}

// MarkCancelled freezes the order. Filled stays untouched.
func MarkCancelled(tx *sqlx.Tx, o *models.Order) error {
	o.Status = models.OrderStatusCancelled
	_, err := tx.Exec(`UPDATE orders SET status = ? WHERE id = ?`,
		models.OrderStatusCancelled, o.ID)
	return errors.Wrap(err, "cancel order")
}
