package owners

import (
	"context"

	"github.com/nsendoda/suggestion-box/internal/server/models"
)

type Repository interface {
	// Create inserts owner and fills owner.IsAdmin, which is true only when
	// the table was empty. A taken id yields common.ErrOwnerExists.
	Create(ctx context.Context, owner *models.Owner) error
	Get(ctx context.Context, id string) (*models.Owner, error)
	Exists(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int, error)
	// LockKeepLimit reads the owner's keep limit and, where the backend
	// supports it, holds a row lock until the transaction ends.
	LockKeepLimit(ctx context.Context, id string) (int, error)
	SetKeepLimit(ctx context.Context, id string, limit int) error
	SetPassword(ctx context.Context, id, salt, hash string) error
}
