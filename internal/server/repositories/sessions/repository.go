package sessions

import (
	"context"
	"time"

	"github.com/nsendoda/suggestion-box/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, session *models.Session) error
	// Find returns the session row for token or common.ErrorNotFound. The
	// row may already be expired.
	Find(ctx context.Context, token string) (*models.Session, error)
	Delete(ctx context.Context, token string) error
	// DeleteExpired removes sessions that expired at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
