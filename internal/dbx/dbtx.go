// Package dbx holds the small database abstractions shared by repositories:
// DBTX (satisfied by *sql.DB and *sql.Tx), WithTx, and the SQL dialects the
// server can run against.
package dbx

import (
	"context"
	"database/sql"

	"github.com/nsendoda/suggestion-box/internal/common"
)

// DBTX is the subset of database/sql used by the repositories.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back when fn returns an error or panics; panics are
// re-raised after the rollback. A context cancelled before commit leaves no
// partial state behind. Begin and commit failures are classified as
// common.ErrorUnavailable; errors from fn are returned unchanged.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    return repos.Letters(tx).Create(ctx, letter)
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return common.Unavailable("begin tx", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = common.Unavailable("commit tx", cerr)
		}
	}()

	err = fn(ctx, tx)
	return err
}
