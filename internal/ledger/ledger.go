// Package ledger is the balance store. All mutations run inside the
// caller's transaction and take a row lock on the touched (user, ticker)
// row, so balances can never go negative under concurrent fills.
package ledger

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"spot-exchange/internal/apperr"
	"spot-exchange/internal/models"
)

// Ledger mutates balances under row locks.
type Ledger struct {
	log *zap.Logger
}

// New returns a Ledger that logs balance movements.
func New(log *zap.Logger) *Ledger {
	return &Ledger{log: log}
}

// Get returns the current amount, or 0 when no row exists. It does not
// materialize the row and takes no lock.
func (l *Ledger) Get(q sqlx.Queryer, userID, ticker string) (int64, error) {
	var amount int64
	err := sqlx.Get(q, &amount,
		`SELECT amount FROM balances WHERE user_id = ? AND ticker = ?`, userID, ticker)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "get balance")
	}
	return amount, nil
}

// Locked returns the current amount under an exclusive row lock held for
// the rest of the transaction. Absent rows read as 0 without
// materializing.
func (l *Ledger) Locked(tx *sqlx.Tx, userID, ticker string) (int64, error) {
	var amount int64
	err := tx.Get(&amount,
		`SELECT amount FROM balances WHERE user_id = ? AND ticker = ? FOR UPDATE`, userID, ticker)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "lock balance")
	}
	return amount, nil
}

// Reserve debits n from the balance, failing with INSUFFICIENT_FUNDS
// when the current amount is below n. The row stays locked until the
// transaction ends.
func (l *Ledger) Reserve(tx *sqlx.Tx, userID, ticker string, n int64) error {
	if n < 0 {
		return apperr.Newf(apperr.Validation, "reserve amount must not be negative: %d", n)
	}
	if n == 0 {
		return nil
	}

	current, err := l.Locked(tx, userID, ticker)
	if err != nil {
		return err
	}
	if current < n {
		return apperr.Newf(apperr.InsufficientFunds,
			"insufficient %s balance: have %d, need %d", ticker, current, n)
	}

	if _, err := tx.Exec(
		`UPDATE balances SET amount = amount - ? WHERE user_id = ? AND ticker = ?`,
		n, userID, ticker); err != nil {
		return errors.Wrap(err, "reserve balance")
	}

	l.log.Debug("reserved balance",
		zap.String("user_id", userID), zap.String("ticker", ticker), zap.Int64("amount", n))
	return nil
}

// Credit increments the balance, creating the row when absent. The
// upsert locks the row for the rest of the transaction.
func (l *Ledger) Credit(tx *sqlx.Tx, userID, ticker string, n int64) error {
	if n < 0 {
		return apperr.Newf(apperr.Validation, "credit amount must not be negative: %d", n)
	}
	if n == 0 {
		return nil
	}

	if _, err := tx.Exec(
		`INSERT INTO balances (user_id, ticker, amount) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE amount = amount + VALUES(amount)`,
		userID, ticker, n); err != nil {
		return errors.Wrap(err, "credit balance")
	}
	return nil
}

// Refund is a credit issued for a cancelled or unmatched reservation.
// Kept separate from Credit so the movement is visible in the logs.
func (l *Ledger) Refund(tx *sqlx.Tx, userID, ticker string, n int64) error {
	if err := l.Credit(tx, userID, ticker, n); err != nil {
		return err
	}
	if n > 0 {
		l.log.Info("refunded reservation",
			zap.String("user_id", userID), zap.String("ticker", ticker), zap.Int64("amount", n))
	}
	return nil
}

// Deposit is the admin credit. It never touches reserved funds:
// reservations are already debited out of the row.
func (l *Ledger) Deposit(tx *sqlx.Tx, userID, ticker string, n int64) error {
	if n <= 0 {
		return apperr.Newf(apperr.Validation, "deposit amount must be positive: %d", n)
	}
	if err := l.Credit(tx, userID, ticker, n); err != nil {
		return err
	}
	l.log.Info("deposit",
		zap.String("user_id", userID), zap.String("ticker", ticker), zap.Int64("amount", n))
	return nil
}

// Withdraw is the admin debit. Funds reserved against open orders are
// not part of the row, so they cannot be withdrawn.
func (l *Ledger) Withdraw(tx *sqlx.Tx, userID, ticker string, n int64) error {
	if n <= 0 {
		return apperr.Newf(apperr.Validation, "withdraw amount must be positive: %d", n)
	}
	if err := l.Reserve(tx, userID, ticker, n); err != nil {
		return err
	}
	l.log.Info("withdraw",
		zap.String("user_id", userID), zap.String("ticker", ticker), zap.Int64("amount", n))
	return nil
}

// All returns every balance of one user as a ticker -> amount map.
func (l *Ledger) All(q sqlx.Queryer, userID string) (map[string]int64, error) {
	var rows []models.Balance
	if err := sqlx.Select(q, &rows,
		`SELECT user_id, ticker, amount FROM balances WHERE user_id = ? ORDER BY ticker`,
		userID); err != nil {
		return nil, errors.Wrap(err, "list balances")
	}

	out := make(map[string]int64, len(rows))
	for _, b := range rows {
		out[b.Ticker] = b.Amount
	}
	return out, nil
}
