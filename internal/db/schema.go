package db

import (
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// schema is applied at startup. Statements are idempotent so restarts
// are safe. Money columns are BIGINT: the exchange deals in integer
// units only.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id      CHAR(36)     NOT NULL,
		name    VARCHAR(255) NOT NULL,
		role    VARCHAR(16)  NOT NULL DEFAULT 'USER',
		api_key VARCHAR(64)  NOT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uq_users_api_key (api_key)
	)`,
	`CREATE TABLE IF NOT EXISTS instruments (
		ticker VARCHAR(16)  NOT NULL,
		name   VARCHAR(255) NOT NULL,
		PRIMARY KEY (ticker)
	)`,
	`CREATE TABLE IF NOT EXISTS balances (
		user_id CHAR(36)    NOT NULL,
		ticker  VARCHAR(16) NOT NULL,
		amount  BIGINT      NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, ticker),
		CONSTRAINT chk_balances_non_negative CHECK (amount >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id         CHAR(36)    NOT NULL,
		user_id    CHAR(36)    NOT NULL,
		type       VARCHAR(8)  NOT NULL,
		direction  VARCHAR(4)  NOT NULL,
		ticker     VARCHAR(16) NOT NULL,
		qty        BIGINT      NOT NULL,
		price      BIGINT      NULL,
		status     VARCHAR(24) NOT NULL DEFAULT 'NEW',
		filled     BIGINT      NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		PRIMARY KEY (id),
		KEY idx_orders_book (ticker, direction, status, price, created_at),
		KEY idx_orders_user (user_id, created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS trades (
		id         CHAR(36)    NOT NULL,
		ticker     VARCHAR(16) NOT NULL,
		amount     BIGINT      NOT NULL,
		price      BIGINT      NOT NULL,
		created_at DATETIME(6) NOT NULL,
		PRIMARY KEY (id),
		KEY idx_trades_ticker_time (ticker, created_at)
	)`,
}

// Migrate creates the five exchange tables if they do not exist.
func Migrate(conn *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := conn.Exec(stmt); err != nil {
			return errors.Wrap(err, "apply schema")
		}
	}
	return nil
}
