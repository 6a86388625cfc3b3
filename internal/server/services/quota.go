package services

import (
	"context"
	"database/sql"
	"slices"

	"github.com/nsendoda/suggestion-box/internal/common"
	"github.com/nsendoda/suggestion-box/internal/dbx"
	"github.com/nsendoda/suggestion-box/internal/server/models"
	"github.com/nsendoda/suggestion-box/internal/server/repositories/repomanager"
)

// QuotaEngine enforces that an owner never has more than keep_limit
// letters held or in progress.
//
// Every admission runs in one transaction that first locks the owner row
// (a no-op on SQLite, whose single connection already serializes writers)
// and then issues one conditional UPDATE whose WHERE clause recounts the
// owner's other active letters. Concurrent admissions for the same owner
// therefore queue on the lock, and each sees the previous one's commit.
type QuotaEngine struct {
	db          *sql.DB
	repos       repomanager.RepositoryManager
	now         Clock
	allowReopen bool
}

func NewQuotaEngine(db *sql.DB, m repomanager.RepositoryManager, now Clock, allowReopen bool) *QuotaEngine {
	return &QuotaEngine{db: db, repos: m, now: utc(now), allowReopen: allowReopen}
}

func (q *QuotaEngine) ActiveCount(ctx context.Context, ownerID string) (int, error) {
	return q.repos.Letters(q.db).CountActive(ctx, ownerID)
}

// Admit moves an inbox letter to held if the owner has room.
func (q *QuotaEngine) Admit(ctx context.Context, ownerID string, letterID int64) error {
	return dbx.WithTx(ctx, q.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return q.admit(ctx, tx, ownerID, letterID, []models.Status{models.StatusInbox}, models.StatusHeld)
	})
}

// AdmitForReturn moves a letter that already left the inbox back into an
// active status, rechecking the quota with the letter itself excluded.
// Terminal letters qualify only when reopening is allowed.
func (q *QuotaEngine) AdmitForReturn(ctx context.Context, ownerID string, letterID int64, target models.Status) error {
	if !target.IsActive() {
		return common.ErrInvalidStatus
	}
	from := []models.Status{models.StatusHeld, models.StatusInProgress}
	if q.allowReopen {
		from = append(from, models.StatusDone, models.StatusRejected)
	}
	return dbx.WithTx(ctx, q.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return q.admit(ctx, tx, ownerID, letterID, from, target)
	})
}

// admit runs inside the caller's transaction.
func (q *QuotaEngine) admit(ctx context.Context, tx dbx.DBTX, ownerID string, letterID int64, from []models.Status, to models.Status) error {
	limit, err := q.repos.Owners(tx).LockKeepLimit(ctx, ownerID)
	if err != nil {
		return err
	}
	ok, err := q.repos.Letters(tx).Admit(ctx, ownerID, letterID, from, to, q.now())
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return q.diagnose(ctx, tx, ownerID, letterID, from, limit)
}

// diagnose explains why a conditional admission matched no row.
func (q *QuotaEngine) diagnose(ctx context.Context, tx dbx.DBTX, ownerID string, letterID int64, from []models.Status, limit int) error {
	letter, err := q.repos.Letters(tx).Get(ctx, letterID)
	if err != nil {
		return err
	}
	if letter.OwnerID != ownerID {
		return common.ErrNotOwner
	}
	if !slices.Contains(from, letter.Status) {
		return common.ErrTransitionNotAllowed
	}
	return common.QuotaExceeded(limit)
}
