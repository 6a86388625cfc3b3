package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nsendoda/suggestion-box/internal/common"
	"github.com/nsendoda/suggestion-box/internal/cryptox"
	"github.com/nsendoda/suggestion-box/internal/dbx"
	"github.com/nsendoda/suggestion-box/internal/logging"
	"github.com/nsendoda/suggestion-box/internal/server/config"
	"github.com/nsendoda/suggestion-box/internal/server/models"
	"github.com/nsendoda/suggestion-box/internal/server/repositories/repomanager"
)

// AuthService implements signup, login, logout and the identity checks
// that gate owner-scoped operations.
type AuthService struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	vault    *cryptox.Vault
	sessions *SessionStore
	logger   logging.Logger
	now      Clock

	sessionTTL       time.Duration
	defaultKeepLimit int
	signupsEnabled   bool
	maxOwners        int
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, vault *cryptox.Vault, sessions *SessionStore,
	cfg *config.Config, logger logging.Logger, now Clock) *AuthService {
	return &AuthService{
		db:               db,
		repos:            m,
		vault:            vault,
		sessions:         sessions,
		logger:           logger.With("module", "auth"),
		now:              utc(now),
		sessionTTL:       cfg.SessionTTL,
		defaultKeepLimit: cfg.DefaultKeepLimit,
		signupsEnabled:   cfg.SignupsEnabled,
		maxOwners:        cfg.MaxOwners,
	}
}

// SessionTTL is the lifetime of sessions issued by this service.
func (s *AuthService) SessionTTL() time.Duration { return s.sessionTTL }

// Signup creates an owner and logs them in. It fails with
// common.ErrSignupsDisabled before writing anything when signups are closed
// by configuration, by the admin setting or by the owner cap.
func (s *AuthService) Signup(ctx context.Context, ownerID, password, displayName string) (*models.Session, error) {
	owner, err := s.newOwner(ownerID, password, displayName)
	if err != nil {
		return nil, err
	}
	if !s.signupsEnabled {
		return nil, common.ErrSignupsDisabled
	}
	if err := s.checkSignupsOpen(ctx, s.db); err != nil {
		return nil, err
	}
	exists, err := s.repos.Owners(s.db).Exists(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, common.ErrOwnerExists
	}

	if owner.PasswordSalt, owner.PasswordHash, err = s.vault.Derive(password, ""); err != nil {
		return nil, err
	}

	var session *models.Session
	err = dbx.WithTx(ctx, s.db, s.repos.Dialect().StrictTxOptions(), func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.checkSignupsOpen(ctx, tx); err != nil {
			return err
		}
		owner.CreatedAt = s.now()
		if err := s.repos.Owners(tx).Create(ctx, owner); err != nil {
			return err
		}
		var err error
		session, err = s.sessions.issue(ctx, tx, owner.ID, s.sessionTTL)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "owner signed up", "owner", owner.ID, "admin", owner.IsAdmin)
	return session, nil
}

// CreateOwner creates an owner without the signup gates and without
// issuing a session. It is meant for operators.
func (s *AuthService) CreateOwner(ctx context.Context, ownerID, password, displayName string) (*models.Owner, error) {
	owner, err := s.newOwner(ownerID, password, displayName)
	if err != nil {
		return nil, err
	}
	if owner.PasswordSalt, owner.PasswordHash, err = s.vault.Derive(password, ""); err != nil {
		return nil, err
	}
	owner.CreatedAt = s.now()
	if err := s.repos.Owners(s.db).Create(ctx, owner); err != nil {
		return nil, err
	}
	return owner, nil
}

func (s *AuthService) newOwner(ownerID, password, displayName string) (*models.Owner, error) {
	id := NormalizeOwnerID(ownerID)
	if !validOwnerID(id) {
		return nil, common.ErrInvalidOwnerID
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		return nil, common.ErrInvalidPassword
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = id
	}
	if utf8.RuneCountInString(displayName) > maxDisplayNameLen {
		return nil, common.ErrInvalidDisplayName
	}
	return &models.Owner{ID: id, DisplayName: displayName, KeepLimit: s.defaultKeepLimit}, nil
}

func (s *AuthService) checkSignupsOpen(ctx context.Context, db dbx.DBTX) error {
	v, ok, err := s.repos.Settings(db).Get(ctx, common.SignupsEnabledSetting)
	if err != nil {
		return err
	}
	if ok && v == "0" {
		return common.ErrSignupsDisabled
	}
	if s.maxOwners > 0 {
		n, err := s.repos.Owners(db).Count(ctx)
		if err != nil {
			return err
		}
		if n >= s.maxOwners {
			return common.ErrSignupsDisabled
		}
	}
	return nil
}

// Login verifies the password and issues a session. Hashes made with an
// older scheme or work factor are replaced on success.
func (s *AuthService) Login(ctx context.Context, ownerID, password string) (*models.Session, error) {
	id := NormalizeOwnerID(ownerID)
	if !validOwnerID(id) {
		return nil, common.ErrInvalidOwnerID
	}
	owner, err := s.repos.Owners(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.vault.Verify(password, owner.PasswordSalt, owner.PasswordHash) {
		s.logger.Info(ctx, "login failed", "owner", id)
		return nil, common.ErrorUnauthorized
	}

	if s.vault.NeedsRehash(owner.PasswordHash) {
		if salt, hash, err := s.vault.Derive(password, ""); err == nil {
			if err := s.repos.Owners(s.db).SetPassword(ctx, id, salt, hash); err != nil {
				s.logger.Warn(ctx, "password rehash failed", "owner", id, "err", err)
			}
		}
	}

	return s.sessions.Issue(ctx, id, s.sessionTTL)
}

// Logout revokes the session. Empty, unknown and already revoked tokens
// succeed; only storage failures are returned.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// ResolveRequestIdentity returns the owner a session token belongs to.
func (s *AuthService) ResolveRequestIdentity(ctx context.Context, token string) (string, error) {
	return s.sessions.Resolve(ctx, token)
}

// Authorize resolves token and requires it to belong to pathOwnerID.
func (s *AuthService) Authorize(ctx context.Context, token, pathOwnerID string) (string, error) {
	id, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return "", err
	}
	if id != NormalizeOwnerID(pathOwnerID) {
		return "", common.ErrNotOwner
	}
	return id, nil
}

// RequireAdmin fails with common.ErrNotAdmin unless ownerID is an admin.
func (s *AuthService) RequireAdmin(ctx context.Context, ownerID string) error {
	owner, err := s.repos.Owners(s.db).Get(ctx, ownerID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrNotAdmin
		}
		return err
	}
	if !owner.IsAdmin {
		return common.ErrNotAdmin
	}
	return nil
}
