package services

import (
	"context"
	"database/sql"

	"github.com/nsendoda/suggestion-box/internal/common"
	"github.com/nsendoda/suggestion-box/internal/server/models"
	"github.com/nsendoda/suggestion-box/internal/server/repositories/repomanager"
)

// OwnerDirectory reads owner records and changes the settings admins
// control. Callers check admin rights before the setters.
type OwnerDirectory struct {
	db             *sql.DB
	repos          repomanager.RepositoryManager
	signupsEnabled bool
}

// NewOwnerDirectory builds a directory. signupsEnabled is the configured
// master switch; the stored setting can only narrow it.
func NewOwnerDirectory(db *sql.DB, m repomanager.RepositoryManager, signupsEnabled bool) *OwnerDirectory {
	return &OwnerDirectory{db: db, repos: m, signupsEnabled: signupsEnabled}
}

func (d *OwnerDirectory) Get(ctx context.Context, ownerID string) (*models.Owner, error) {
	return d.repos.Owners(d.db).Get(ctx, NormalizeOwnerID(ownerID))
}

// Profile returns the public view of an owner.
func (d *OwnerDirectory) Profile(ctx context.Context, ownerID string) (models.Profile, error) {
	owner, err := d.Get(ctx, ownerID)
	if err != nil {
		return models.Profile{}, err
	}
	return owner.Profile(), nil
}

// SetKeepLimit changes an owner's keep limit. Lowering it below the
// owner's current active count is allowed; no letter is demoted, but no
// new letter is admitted until the count drops under the limit.
func (d *OwnerDirectory) SetKeepLimit(ctx context.Context, ownerID string, limit int) error {
	if limit < 1 {
		return common.ErrInvalidKeepLimit
	}
	return d.repos.Owners(d.db).SetKeepLimit(ctx, NormalizeOwnerID(ownerID), limit)
}

func (d *OwnerDirectory) SetSignupsEnabled(ctx context.Context, enabled bool) error {
	v := "0"
	if enabled {
		v = "1"
	}
	return d.repos.Settings(d.db).Set(ctx, common.SignupsEnabledSetting, v)
}

// SignupsEnabled reports whether signups are open by configuration and by
// the stored setting. The owner cap is not considered.
func (d *OwnerDirectory) SignupsEnabled(ctx context.Context) (bool, error) {
	if !d.signupsEnabled {
		return false, nil
	}
	v, ok, err := d.repos.Settings(d.db).Get(ctx, common.SignupsEnabledSetting)
	if err != nil {
		return false, err
	}
	return !ok || v != "0", nil
}
