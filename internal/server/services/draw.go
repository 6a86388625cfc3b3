package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nsendoda/suggestion-box/internal/common"
	"github.com/nsendoda/suggestion-box/internal/dbx"
	"github.com/nsendoda/suggestion-box/internal/server/models"
	"github.com/nsendoda/suggestion-box/internal/server/repositories/repomanager"
)

const maxDrawAttempts = 3

var errPickLost = errors.New("picked letter changed before admission")

// DrawSelector admits one random inbox letter into the owner's working set.
type DrawSelector struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	now   Clock
}

func NewDrawSelector(db *sql.DB, m repomanager.RepositoryManager, now Clock) *DrawSelector {
	return &DrawSelector{db: db, repos: m, now: utc(now)}
}

// Draw picks a uniformly random inbox letter and moves it to held. The
// pick and the transition commit together, so a letter is never left
// picked but untransitioned. A saturated owner gets common.QuotaExceeded
// and no letter is consumed; an empty inbox gives common.ErrInboxEmpty.
func (d *DrawSelector) Draw(ctx context.Context, ownerID string) (*models.Letter, error) {
	for attempt := 0; attempt < maxDrawAttempts; attempt++ {
		letter, err := d.drawOnce(ctx, ownerID)
		if errors.Is(err, errPickLost) {
			continue
		}
		return letter, err
	}
	return nil, common.ErrDrawContention
}

func (d *DrawSelector) drawOnce(ctx context.Context, ownerID string) (*models.Letter, error) {
	var letter *models.Letter
	err := dbx.WithTx(ctx, d.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		limit, err := d.repos.Owners(tx).LockKeepLimit(ctx, ownerID)
		if err != nil {
			return err
		}
		letters := d.repos.Letters(tx)

		active, err := letters.CountActive(ctx, ownerID)
		if err != nil {
			return err
		}
		if active >= limit {
			return common.QuotaExceeded(limit)
		}

		id, err := letters.PickRandomInbox(ctx, ownerID)
		if err != nil {
			return err
		}
		ok, err := letters.Admit(ctx, ownerID, id, []models.Status{models.StatusInbox}, models.StatusHeld, d.now())
		if err != nil {
			return err
		}
		if !ok {
			return errPickLost
		}

		letter, err = letters.Get(ctx, id)
		return err
	})
	return letter, err
}
