// Package letters stores letters and performs their guarded status writes.
// Every mutating statement carries its precondition in the WHERE clause and
// reports whether a row matched.
package letters

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nsendoda/suggestion-box/internal/common"
	"github.com/nsendoda/suggestion-box/internal/dbx"
	"github.com/nsendoda/suggestion-box/internal/server/models"
)

var activeStatuses = []models.Status{models.StatusHeld, models.StatusInProgress}

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

const letterColumns = `id, owner_id, content, status, progress, created_at, updated_at`

func scanLetter(row interface{ Scan(...any) error }, l *models.Letter) error {
	return row.Scan(&l.ID, &l.OwnerID, &l.Content, &l.Status, &l.Progress, &l.CreatedAt, &l.UpdatedAt)
}

// expand rewrites slice arguments into IN lists and rebinds placeholders.
func (r *SQLRepository) expand(query string, args ...any) (string, []any, error) {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return r.dialect.Rebind(q), a, nil
}

func (r *SQLRepository) Create(ctx context.Context, l *models.Letter) error {
	query := r.dialect.Rebind(
		`INSERT INTO letters (owner_id, content, status, progress, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 RETURNING id`)

	err := r.db.QueryRowContext(ctx, query,
		l.OwnerID, l.Content, l.Status, l.Progress, l.CreatedAt, l.UpdatedAt).Scan(&l.ID)
	if err != nil {
		return common.Unavailable("create letter", err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, id int64) (*models.Letter, error) {
	query := r.dialect.Rebind(`SELECT ` + letterColumns + ` FROM letters WHERE id = ?`)

	l := &models.Letter{}
	if err := scanLetter(r.db.QueryRowContext(ctx, query, id), l); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrLetterNotFound
		}
		return nil, common.Unavailable("get letter", err)
	}
	return l, nil
}

func (r *SQLRepository) ListByOwner(ctx context.Context, ownerID string, includeInbox bool) ([]models.Letter, error) {
	query := `SELECT ` + letterColumns + ` FROM letters WHERE owner_id = ?`
	if !includeInbox {
		query += ` AND status <> 'inbox'`
	}
	query = r.dialect.Rebind(query + ` ORDER BY updated_at DESC, id DESC`)

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, common.Unavailable("list letters", err)
	}
	defer rows.Close()

	out := make([]models.Letter, 0)
	for rows.Next() {
		var l models.Letter
		if err := scanLetter(rows, &l); err != nil {
			return nil, common.Unavailable("list letters", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, common.Unavailable("list letters", err)
	}
	return out, nil
}

func (r *SQLRepository) CountActive(ctx context.Context, ownerID string) (int, error) {
	query, args, err := r.expand(
		`SELECT COUNT(*) FROM letters WHERE owner_id = ? AND status IN (?)`, ownerID, activeStatuses)
	if err != nil {
		return 0, err
	}

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, common.Unavailable("count active letters", err)
	}
	return n, nil
}

func (r *SQLRepository) PickRandomInbox(ctx context.Context, ownerID string) (int64, error) {
	query := r.dialect.Rebind(
		`SELECT id FROM letters
		 WHERE owner_id = ? AND status = 'inbox'
		 ORDER BY random()
		 LIMIT 1`)

	var id int64
	if err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrInboxEmpty
		}
		return 0, common.Unavailable("pick letter", err)
	}
	return id, nil
}

// statusSet is the SET clause of a status write. Progress only means
// something while a letter is in progress, so any other target clears it.
func statusSet(to models.Status) string {
	if to == models.StatusInProgress {
		return `status = ?, updated_at = ?`
	}
	return `status = ?, updated_at = ?, progress = 0`
}

func (r *SQLRepository) Admit(ctx context.Context, ownerID string, id int64, from []models.Status, to models.Status, now time.Time) (bool, error) {
	query, args, err := r.expand(
		`UPDATE letters SET `+statusSet(to)+`
		 WHERE id = ? AND owner_id = ? AND status IN (?)
		   AND (SELECT COUNT(*) FROM letters
		        WHERE owner_id = ? AND status IN (?) AND id <> ?)
		     < (SELECT keep_limit FROM owners WHERE id = ?)`,
		to, now, id, ownerID, from, ownerID, activeStatuses, id, ownerID)
	if err != nil {
		return false, err
	}
	return r.exec(ctx, "admit letter", query, args...)
}

func (r *SQLRepository) Transition(ctx context.Context, ownerID string, id int64, from []models.Status, to models.Status, now time.Time) (bool, error) {
	query, args, err := r.expand(
		`UPDATE letters SET `+statusSet(to)+`
		 WHERE id = ? AND owner_id = ? AND status IN (?)`,
		to, now, id, ownerID, from)
	if err != nil {
		return false, err
	}
	return r.exec(ctx, "transition letter", query, args...)
}

func (r *SQLRepository) SetProgress(ctx context.Context, ownerID string, id int64, progress int, now time.Time) (bool, error) {
	query := r.dialect.Rebind(
		`UPDATE letters SET progress = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ? AND status = 'in_progress'`)

	return r.exec(ctx, "set progress", query, progress, now, id, ownerID)
}

func (r *SQLRepository) exec(ctx context.Context, op, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, common.Unavailable(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, common.Unavailable(op, err)
	}
	return n == 1, nil
}
