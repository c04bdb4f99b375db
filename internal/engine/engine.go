// Package engine is the exchange core: the order controller and the
// matching engine. All writes run in single database transactions; the
// database is the only book state.
package engine

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"spot-exchange/internal/apperr"
	"spot-exchange/internal/db"
	"spot-exchange/internal/ledger"
	"spot-exchange/internal/models"
	"spot-exchange/internal/store"
)

// maxAttempts bounds the retry loop for transactions that lose a
// deadlock or lock-wait race.
const maxAttempts = 3

// Options tune the engine's policy knobs.
type Options struct {
	// AllowSelfTrade permits matching a user against their own makers.
	AllowSelfTrade bool
	// InitialCash is seeded to every newly registered user.
	InitialCash int64
}

// Engine orchestrates the order lifecycle: validate, reserve, persist,
// match, refund, commit.
type Engine struct {
	db          *sqlx.DB
	ledger      *ledger.Ledger
	matcher     *Matcher
	initialCash int64
	log         *zap.Logger
}

// New wires an Engine onto the given database.
func New(conn *sqlx.DB, opts Options, log *zap.Logger) *Engine {
	l := ledger.New(log)
	return &Engine{
		db:          conn,
		ledger:      l,
		matcher:     NewMatcher(l, opts.AllowSelfTrade, log),
		initialCash: opts.InitialCash,
		log:         log,
	}
}

// withTx runs fn inside a transaction, retrying a bounded number of
// times with jitter when the store reports contention. Any other error
// rolls back and surfaces unchanged.
func (e *Engine) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(10+rand.Intn(40)) * time.Millisecond
			e.log.Warn("retrying transaction after conflict",
				zap.Int("attempt", attempt+1), zap.Duration("backoff", backoff))
			time.Sleep(backoff)
		}

		tx, err := e.db.BeginTxx(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "begin transaction")
		}

		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			if db.IsConflict(err) {
				lastErr = err
				continue
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			if db.IsConflict(err) {
				lastErr = err
				continue
			}
			return errors.Wrap(err, "commit transaction")
		}
		return nil
	}
	return apperr.Wrap(apperr.Conflict, lastErr, "transaction retries exhausted")
}

// PlaceOrder admits an order: reserves the entry balance, persists the
// order as NEW, matches it against the book and handles market-order
// leftover. The whole flow commits atomically or not at all.
func (e *Engine) PlaceOrder(ctx context.Context, cmd PlaceCommand) (*models.Order, []models.Trade, error) {
	// Validation runs before the transaction opens.
	listed, err := store.InstrumentExists(e.db, cmd.Ticker)
	if err != nil {
		return nil, nil, err
	}
	if !listed {
		return nil, nil, apperr.Newf(apperr.UnknownTicker, "unknown ticker %s", cmd.Ticker)
	}

	var (
		order  *models.Order
		trades []models.Trade
	)
	err = e.withTx(ctx, func(tx *sqlx.Tx) error {
		o := &models.Order{
			ID:        uuid.NewString(),
			UserID:    cmd.UserID,
			Type:      cmd.Type,
			Direction: cmd.Direction,
			Ticker:    cmd.Ticker,
			Qty:       cmd.Qty,
			Status:    models.OrderStatusNew,
			CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		}
		if cmd.Type == models.OrderTypeLimit {
			price := cmd.Price
			o.Price = &price
		}

		// Entry reservations. A market buy reserves nothing: its fills
		// are paid from the live balance inside the matcher.
		switch {
		case cmd.Direction == models.DirectionBuy && cmd.Type == models.OrderTypeLimit:
			if err := e.ledger.Reserve(tx, cmd.UserID, models.CashTicker, cmd.Qty*cmd.Price); err != nil {
				return err
			}
		case cmd.Direction == models.DirectionSell:
			if err := e.ledger.Reserve(tx, cmd.UserID, cmd.Ticker, cmd.Qty); err != nil {
				return err
			}
		}

		if err := store.InsertOrder(tx, o); err != nil {
			return err
		}

		executed, err := e.matcher.Match(tx, o, cmd.MaxNotional)
		if err != nil {
			return err
		}

		// Market leftover never rests: close the order and hand back the
		// unspent reservation. Limit leftover stays on the book with its
		// reservation attached.
		if o.Remaining() > 0 && o.Type == models.OrderTypeMarket {
			if o.Direction == models.DirectionSell {
				if err := e.ledger.Refund(tx, o.UserID, o.Ticker, o.Remaining()); err != nil {
					return err
				}
			}
			if err := store.MarkCancelled(tx, o); err != nil {
				return err
			}
		}

		order = o
		trades = executed
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	e.log.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.String("ticker", order.Ticker),
		zap.String("type", string(order.Type)),
		zap.String("direction", string(order.Direction)),
		zap.Int64("qty", order.Qty),
		zap.String("status", string(order.Status)),
		zap.Int("trades", len(trades)))
	return order, trades, nil
}

// CancelOrder cancels a user's open order and refunds the unfilled
// reservation. Cancelling a terminal order is a client error and changes
// nothing.
func (e *Engine) CancelOrder(ctx context.Context, orderID, userID string) (*models.Order, error) {
	var cancelled *models.Order
	err := e.withTx(ctx, func(tx *sqlx.Tx) error {
		o, err := store.OrderForUserLocked(tx, orderID, userID)
		if err != nil {
			return err
		}
		if o.Status.Terminal() {
			return apperr.Newf(apperr.CannotCancel, "order %s is already %s", o.ID, o.Status)
		}

		if unfilled := o.Remaining(); unfilled > 0 {
			if o.Direction == models.DirectionBuy {
				if o.Price != nil {
					if err := e.ledger.Refund(tx, userID, models.CashTicker, unfilled*(*o.Price)); err != nil {
						return err
					}
				}
			} else {
				if err := e.ledger.Refund(tx, userID, o.Ticker, unfilled); err != nil {
					return err
				}
			}
		}

		if err := store.MarkCancelled(tx, o); err != nil {
			return err
		}
		cancelled = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("order cancelled",
		zap.String("order_id", cancelled.ID), zap.String("user_id", userID))
	return cancelled, nil
}

// Order returns one order owned by the user.
func (e *Engine) Order(ctx context.Context, orderID, userID string) (*models.Order, error) {
	return store.OrderForUser(e.db, orderID, userID)
}

// Orders lists the user's orders.
func (e *Engine) Orders(ctx context.Context, userID string) ([]models.Order, error) {
	return store.OrdersByUser(e.db, userID)
}

// Book returns the aggregated top-K levels for a listed ticker.
func (e *Engine) Book(ctx context.Context, ticker string, depth int) (*models.L2OrderBook, error) {
	listed, err := store.InstrumentExists(e.db, ticker)
	if err != nil {
		return nil, err
	}
	if !listed {
		return nil, apperr.Newf(apperr.UnknownTicker, "unknown ticker %s", ticker)
	}
	return store.BookLevels(e.db, ticker, depth)
}

// Trades returns the most recent trades for a listed ticker.
func (e *Engine) Trades(ctx context.Context, ticker string, limit int) ([]models.Trade, error) {
	listed, err := store.InstrumentExists(e.db, ticker)
	if err != nil {
		return nil, err
	}
	if !listed {
		return nil, apperr.Newf(apperr.UnknownTicker, "unknown ticker %s", ticker)
	}
	return store.RecentTrades(e.db, ticker, limit)
}

// Balances returns the user's balances as a ticker -> amount map.
func (e *Engine) Balances(ctx context.Context, userID string) (map[string]int64, error) {
	return e.ledger.All(e.db, userID)
}

// UserByAPIKey resolves a credential to its user.
func (e *Engine) UserByAPIKey(ctx context.Context, apiKey string) (*models.User, error) {
	return store.UserByAPIKey(e.db, apiKey)
}
