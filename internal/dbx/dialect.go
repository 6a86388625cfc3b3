package dbx

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect captures the differences between the SQL backends. Repository
// queries are written with '?' placeholders and rebound per dialect.
type Dialect interface {
	// Name is both the goose dialect and the migrations directory.
	Name() string
	// Rebind converts '?' placeholders to the backend's bind style.
	Rebind(query string) string
	// ForUpdate is appended to a SELECT that must lock the rows it reads
	// until the surrounding transaction ends. The Postgres lock leaves key
	// columns alone, so inserts referencing the row are not blocked.
	ForUpdate() string
	// StrictTxOptions are used for transactions whose reads must not be
	// invalidated by concurrent writers before commit.
	StrictTxOptions() *sql.TxOptions
	// IsUniqueViolation reports whether err is a primary key or unique
	// constraint failure.
	IsUniqueViolation(err error) bool
}

var (
	Postgres Dialect = postgresDialect{}
	SQLite   Dialect = sqliteDialect{}
)

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Rebind(query string) string { return sqlx.Rebind(sqlx.DOLLAR, query) }

func (postgresDialect) ForUpdate() string { return " FOR NO KEY UPDATE" }

func (postgresDialect) StrictTxOptions() *sql.TxOptions {
	return &sql.TxOptions{Isolation: sql.LevelSerializable}
}

func (postgresDialect) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// sqliteDialect relies on SQLite's single writer: the server opens SQLite
// with one connection, so transactions are already serialized.
type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite3" }

func (sqliteDialect) Rebind(query string) string { return sqlx.Rebind(sqlx.QUESTION, query) }

func (sqliteDialect) ForUpdate() string { return "" }

func (sqliteDialect) StrictTxOptions() *sql.TxOptions { return nil }

func (sqliteDialect) IsUniqueViolation(err error) bool {
	var sqErr *sqlite.Error
	if !errors.As(err, &sqErr) {
		return false
	}
	switch sqErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(sqErr.Error(), "UNIQUE constraint failed")
	}
	return false
}
