package letters

import (
	"context"
	"time"

	"github.com/nsendoda/suggestion-box/internal/server/models"
)

type Repository interface {
	// Create inserts letter and fills its ID.
	Create(ctx context.Context, letter *models.Letter) error
	Get(ctx context.Context, id int64) (*models.Letter, error)
	// ListByOwner returns the owner's letters, most recently updated first.
	ListByOwner(ctx context.Context, ownerID string, includeInbox bool) ([]models.Letter, error)
	CountActive(ctx context.Context, ownerID string) (int, error)
	// PickRandomInbox returns the id of a uniformly random inbox letter or
	// common.ErrInboxEmpty.
	PickRandomInbox(ctx context.Context, ownerID string) (int64, error)

	// Admit moves the letter from one of the from statuses to an active
	// status only while the owner's other active letters number fewer than
	// the owner's keep limit. The check and the write are one statement.
	Admit(ctx context.Context, ownerID string, id int64, from []models.Status, to models.Status, now time.Time) (bool, error)
	// Transition moves the letter from one of the from statuses to to
	// without any quota check.
	Transition(ctx context.Context, ownerID string, id int64, from []models.Status, to models.Status, now time.Time) (bool, error)
	// SetProgress updates progress only while the letter is in progress.
	SetProgress(ctx context.Context, ownerID string, id int64, progress int, now time.Time) (bool, error)
}
