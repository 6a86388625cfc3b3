// Package sessions stores login sessions. Expiry is kept as unix seconds.
package sessions

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/nsendoda/suggestion-box/internal/common"
	"github.com/nsendoda/suggestion-box/internal/dbx"
	"github.com/nsendoda/suggestion-box/internal/server/models"
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

func (r *SQLRepository) Create(ctx context.Context, s *models.Session) error {
	query := r.dialect.Rebind(`INSERT INTO sessions (token, owner_id, expires_at) VALUES (?, ?, ?)`)

	if _, err := r.db.ExecContext(ctx, query, s.Token, s.OwnerID, s.ExpiresAt.Unix()); err != nil {
		return common.Unavailable("create session", err)
	}
	return nil
}

func (r *SQLRepository) Find(ctx context.Context, token string) (*models.Session, error) {
	query := r.dialect.Rebind(`SELECT owner_id, expires_at FROM sessions WHERE token = ?`)

	s := &models.Session{Token: token}
	var expires int64
	if err := r.db.QueryRowContext(ctx, query, token).Scan(&s.OwnerID, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, common.Unavailable("find session", err)
	}
	s.ExpiresAt = time.Unix(expires, 0)
	return s, nil
}

func (r *SQLRepository) Delete(ctx context.Context, token string) error {
	query := r.dialect.Rebind(`DELETE FROM sessions WHERE token = ?`)

	if _, err := r.db.ExecContext(ctx, query, token); err != nil {
		return common.Unavailable("delete session", err)
	}
	return nil
}

func (r *SQLRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := r.dialect.Rebind(`DELETE FROM sessions WHERE expires_at <= ?`)

	res, err := r.db.ExecContext(ctx, query, now.Unix())
	if err != nil {
		return 0, common.Unavailable("purge sessions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, common.Unavailable("purge sessions", err)
	}
	return n, nil
}
