// Package db owns the MySQL connection and the schema.
package db

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// convertURIToDSN accepts either a driver DSN or a mysql:// URI and
// returns a driver DSN. parseTime is forced on so DATETIME columns scan
// into time.Time.
func convertURIToDSN(connectionString string) (string, error) {
	if !strings.HasPrefix(connectionString, "mysql://") {
		return connectionString, nil
	}

	u, err := url.Parse(connectionString)
	if err != nil {
		return "", errors.Wrap(err, "parse database URI")
	}
	if u.Host == "" {
		return "", errors.New("database URI is missing a host")
	}

	var userInfo string
	if u.User != nil {
		username := u.User.Username()
		if password, ok := u.User.Password(); ok && password != "" {
			userInfo = username + ":" + password
		} else {
			userInfo = username
		}
	}

	database := strings.TrimPrefix(u.Path, "/")
	if database == "" {
		database = "exchange"
	}

	dsn := fmt.Sprintf("%s@tcp(%s)/%s", userInfo, u.Host, database)

	params := u.Query()
	defaults := url.Values{
		"parseTime": []string{"true"},
		"charset":   []string{"utf8mb4"},
	}
	for key, values := range defaults {
		if !params.Has(key) {
			params[key] = values
		}
	}
	if len(params) > 0 {
		dsn += "?" + params.Encode()
	}
	return dsn, nil
}

// Connect opens and pings a MySQL connection from a DSN or mysql:// URI.
func Connect(databaseURL string) (*sqlx.DB, error) {
	if databaseURL == "" {
		return nil, errors.New("database URL is empty")
	}

	dsn, err := convertURIToDSN(databaseURL)
	if err != nil {
		return nil, err
	}

	conn, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(10)
	return conn, nil
}

// IsConflict reports whether err is a MySQL deadlock (1213) or lock wait
// timeout (1205), both of which are safe to retry on a fresh transaction.
func IsConflict(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1213 || myErr.Number == 1205
	}
	return false
}

// IsDuplicate reports whether err is a MySQL duplicate-key violation.
func IsDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return false
}
