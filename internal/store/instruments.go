package store

import (
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"spot-exchange/internal/apperr"
	"spot-exchange/internal/models"
)

// InsertInstrument lists a new instrument. The cash ticker is reserved
// and can never be listed.
func InsertInstrument(e sqlx.Ext, inst *models.Instrument) error {
	if inst.Ticker == models.CashTicker {
		return apperr.Newf(apperr.Validation, "%s is the reserved cash ticker", models.CashTicker)
	}
	_, err := e.Exec(
		`INSERT INTO instruments (ticker, name) VALUES (?, ?)`, inst.Ticker, inst.Name)
	return errors.Wrap(err, "insert instrument")
}

// DeleteInstrument delists an instrument.
func DeleteInstrument(e sqlx.Ext, ticker string) error {
	res, err := e.Exec(`DELETE FROM instruments WHERE ticker = ?`, ticker)
	if err != nil {
		return errors.Wrap(err, "delete instrument")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.Newf(apperr.UnknownTicker, "instrument %s not found", ticker)
	}
	return nil
}

// ListInstruments returns all listed instruments.
func ListInstruments(q sqlx.Queryer) ([]models.Instrument, error) {
	var out []models.Instrument
	err := sqlx.Select(q, &out, `SELECT ticker, name FROM instruments ORDER BY ticker`)
	return out, errors.Wrap(err, "list instruments")
}

// InstrumentExists reports whether the ticker is listed.
func InstrumentExists(q sqlx.Queryer, ticker string) (bool, error) {
	var n int
	if err := sqlx.Get(q, &n,
		`SELECT COUNT(*) FROM instruments WHERE ticker = ?`, ticker); err != nil {
		return false, errors.Wrap(err, "check instrument")
	}
	return n > 0, nil
}
