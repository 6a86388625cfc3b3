// Package settings stores runtime key/value settings changed by admins.
package settings

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nsendoda/suggestion-box/internal/common"
	"github.com/nsendoda/suggestion-box/internal/dbx"
)

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

func NewPostgresRepository(db dbx.DBTX) *SQLRepository {
	return NewRepository(db, dbx.Postgres)
}

func NewSQLiteRepository(db dbx.DBTX) *SQLRepository {
	return NewRepository(db, dbx.SQLite)
}

func (r *SQLRepository) Get(ctx context.Context, key string) (string, bool, error) {
	query := r.dialect.Rebind(`SELECT value FROM settings WHERE name = ?`)

	var v string
	if err := r.db.QueryRowContext(ctx, query, key).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, common.Unavailable("get setting", err)
	}
	return v, true, nil
}

func (r *SQLRepository) Set(ctx context.Context, key, value string) error {
	query := r.dialect.Rebind(
		`INSERT INTO settings (name, value) VALUES (?, ?)
		 ON CONFLICT (name) DO UPDATE SET value = excluded.value`)

	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return common.Unavailable("set setting", err)
	}
	return nil
}
