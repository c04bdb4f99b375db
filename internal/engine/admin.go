package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"spot-exchange/internal/apperr"
	"spot-exchange/internal/db"
	"spot-exchange/internal/ledger"
	"spot-exchange/internal/models"
	"spot-exchange/internal/store"
)

// Registration and the admin surface. These share the engine's
// transaction discipline but never touch the book.

// Register creates a USER account with a fresh api key and seeds its
// initial cash balance.
func (e *Engine) Register(ctx context.Context, name string) (*models.User, error) {
	if len(strings.TrimSpace(name)) < 3 {
		return nil, apperr.New(apperr.Validation, "name must be at least 3 characters")
	}

	user := &models.User{
		ID:     uuid.NewString(),
		Name:   name,
		Role:   models.RoleUser,
		APIKey: "key-" + uuid.NewString(),
	}

	err := e.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := store.InsertUser(tx, user); err != nil {
			return err
		}
		return e.ledger.Credit(tx, user.ID, models.CashTicker, e.initialCash)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Deposit credits a user's balance. Admin only; does not interact with
// the book.
func (e *Engine) Deposit(ctx context.Context, userID, ticker string, amount int64) error {
	return e.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := store.UserByID(tx, userID); err != nil {
			return err
		}
		return e.ledger.Deposit(tx, userID, ticker, amount)
	})
}

// Withdraw debits a user's balance, failing when the available amount is
// short. Funds reserved against open orders are already debited, so they
// cannot be withdrawn.
func (e *Engine) Withdraw(ctx context.Context, userID, ticker string, amount int64) error {
	return e.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := store.UserByID(tx, userID); err != nil {
			return err
		}
		return e.ledger.Withdraw(tx, userID, ticker, amount)
	})
}

// CreateInstrument lists a new instrument.
func (e *Engine) CreateInstrument(ctx context.Context, inst *models.Instrument) error {
	err := store.InsertInstrument(e.db, inst)
	if db.IsDuplicate(err) {
		return apperr.Newf(apperr.Validation, "instrument %s already listed", inst.Ticker)
	}
	return err
}

// DeleteInstrument delists an instrument. Open orders on the ticker are
// left untouched; they can still be cancelled.
func (e *Engine) DeleteInstrument(ctx context.Context, ticker string) error {
	return store.DeleteInstrument(e.db, ticker)
}

// Instruments lists all tradable instruments.
func (e *Engine) Instruments(ctx context.Context) ([]models.Instrument, error) {
	return store.ListInstruments(e.db)
}

// DeleteUser removes a user and returns a snapshot of the deleted row.
func (e *Engine) DeleteUser(ctx context.Context, userID string) (*models.User, error) {
	var snapshot *models.User
	err := e.withTx(ctx, func(tx *sqlx.Tx) error {
		u, err := store.UserByID(tx, userID)
		if err != nil {
			return err
		}
		if err := store.DeleteUser(tx, userID); err != nil {
			return err
		}
		snapshot = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// BootstrapAdmin creates an ADMIN user carrying the given api key when
// no user has it yet. Runs once at startup, before the server accepts
// traffic.
func (e *Engine) BootstrapAdmin(ctx context.Context, name, apiKey string) (*models.User, error) {
	if apiKey == "" {
		return nil, nil
	}

	existing, err := store.UserByAPIKey(e.db, apiKey)
	if err == nil {
		return existing, nil
	}
	if !apperr.Is(err, apperr.Unauthenticated) {
		return nil, err
	}

	admin := &models.User{
		ID:     uuid.NewString(),
		Name:   name,
		Role:   models.RoleAdmin,
		APIKey: apiKey,
	}
	if err := store.InsertUser(e.db, admin); err != nil {
		return nil, err
	}
	return admin, nil
}

// Ledger exposes the ledger for startup wiring and tests.
func (e *Engine) Ledger() *ledger.Ledger {
	return e.ledger
}
