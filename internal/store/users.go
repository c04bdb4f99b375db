package store

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"spot-exchange/internal/apperr"
	"spot-exchange/internal/models"
)

// InsertUser persists a new user.
func InsertUser(e sqlx.Ext, u *models.User) error {
	_, err := e.Exec(
		`INSERT INTO users (id, name, role, api_key) VALUES (?, ?, ?, ?)`,
		u.ID, u.Name, u.Role, u.APIKey)
	return errors.Wrap(err, "insert user")
}

// UserByAPIKey resolves the caller's credential. A miss is an
// authentication failure, not a lookup error.
func UserByAPIKey(q sqlx.Queryer, apiKey string) (*models.User, error) {
	var u models.User
	err := sqlx.Get(q, &u,
		`SELECT id, name, role, api_key FROM users WHERE api_key = ?`, apiKey)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.Unauthenticated, "invalid API key")
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user by api key")
	}
	return &u, nil
}

// UserByID loads one user.
func UserByID(q sqlx.Queryer, id string) (*models.User, error) {
	var u models.User
	err := sqlx.Get(q, &u,
		`SELECT id, name, role, api_key FROM users WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.NotFound, "user %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	return &u, nil
}

// DeleteUser removes a user row.
func DeleteUser(e sqlx.Ext, id string) error {
	res, err := e.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.Newf(apperr.NotFound, "user %s not found", id)
	}
	return nil
}
