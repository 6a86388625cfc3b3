package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/nsendoda/suggestion-box/internal/common"
	"github.com/nsendoda/suggestion-box/internal/dbx"
	"github.com/nsendoda/suggestion-box/internal/server/models"
	"github.com/nsendoda/suggestion-box/internal/server/repositories/repomanager"
)

const sessionTokenBytes = 32

// SessionStore issues and checks opaque session tokens.
type SessionStore struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	now   Clock
}

func NewSessionStore(db *sql.DB, m repomanager.RepositoryManager, now Clock) *SessionStore {
	return &SessionStore{db: db, repos: m, now: now}
}

// Issue creates a session for ownerID valid for ttl.
func (s *SessionStore) Issue(ctx context.Context, ownerID string, ttl time.Duration) (*models.Session, error) {
	return s.issue(ctx, s.db, ownerID, ttl)
}

func (s *SessionStore) issue(ctx context.Context, db dbx.DBTX, ownerID string, ttl time.Duration) (*models.Session, error) {
	token, err := common.MakeRandHexString(sessionTokenBytes)
	if err != nil {
		return nil, err
	}
	session := &models.Session{Token: token, OwnerID: ownerID, ExpiresAt: s.now().Add(ttl)}
	if err := s.repos.Sessions(db).Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Resolve returns the owner of a live session. Unknown tokens fail with
// common.ErrorUnauthorized and expired ones with common.ErrSessionExpired,
// even while the row still exists.
func (s *SessionStore) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", common.ErrorUnauthorized
	}
	session, err := s.repos.Sessions(s.db).Find(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorUnauthorized
		}
		return "", err
	}
	if session.Expired(s.now()) {
		return "", common.ErrSessionExpired
	}
	return session.OwnerID, nil
}

// Revoke deletes the session. Unknown tokens are not an error.
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.repos.Sessions(s.db).Delete(ctx, token)
}

// PurgeExpired deletes expired sessions and returns how many were removed.
func (s *SessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repos.Sessions(s.db).DeleteExpired(ctx, s.now())
}
