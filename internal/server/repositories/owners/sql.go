// Package owners stores owner accounts.
package owners

import (
	"context"
	"database/sql"
	"errors"

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

func (r *SQLRepository) Create(ctx context.Context, o *models.Owner) error {
	query := r.dialect.Rebind(
		`INSERT INTO owners (id, display_name, password_salt, password_hash, keep_limit, is_admin, created_at)
		 VALUES (?, ?, ?, ?, ?, (SELECT COUNT(*) = 0 FROM owners), ?)
		 RETURNING is_admin`)

	err := r.db.QueryRowContext(ctx, query,
		o.ID, o.DisplayName, o.PasswordSalt, o.PasswordHash, o.KeepLimit, o.CreatedAt).Scan(&o.IsAdmin)
	if err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return common.ErrOwnerExists
		}
		return common.Unavailable("create owner", err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, id string) (*models.Owner, error) {
	query := r.dialect.Rebind(
		`SELECT id, display_name, password_salt, password_hash, keep_limit, is_admin, created_at
		 FROM owners
		 WHERE id = ?`)

	o := &models.Owner{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&o.ID, &o.DisplayName, &o.PasswordSalt, &o.PasswordHash, &o.KeepLimit, &o.IsAdmin, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrOwnerNotFound
		}
		return nil, common.Unavailable("get owner", err)
	}
	return o, nil
}

func (r *SQLRepository) Exists(ctx context.Context, id string) (bool, error) {
	query := r.dialect.Rebind(`SELECT 1 FROM owners WHERE id = ?`)

	var one int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, common.Unavailable("owner exists", err)
	}
	return true, nil
}

func (r *SQLRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM owners`).Scan(&n); err != nil {
		return 0, common.Unavailable("count owners", err)
	}
	return n, nil
}

func (r *SQLRepository) LockKeepLimit(ctx context.Context, id string) (int, error) {
	query := r.dialect.Rebind(`SELECT keep_limit FROM owners WHERE id = ?` + r.dialect.ForUpdate())

	var limit int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&limit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrOwnerNotFound
		}
		return 0, common.Unavailable("lock owner", err)
	}
	return limit, nil
}

func (r *SQLRepository) SetKeepLimit(ctx context.Context, id string, limit int) error {
	query := r.dialect.Rebind(`UPDATE owners SET keep_limit = ? WHERE id = ?`)

	return r.updateOne(ctx, "set keep limit", query, limit, id)
}

func (r *SQLRepository) SetPassword(ctx context.Context, id, salt, hash string) error {
	query := r.dialect.Rebind(`UPDATE owners SET password_salt = ?, password_hash = ? WHERE id = ?`)

	return r.updateOne(ctx, "set password", query, salt, hash, id)
}

func (r *SQLRepository) updateOne(ctx context.Context, op, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return common.Unavailable(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.Unavailable(op, err)
	}
	if n == 0 {
		return common.ErrOwnerNotFound
	}
	return nil
}
