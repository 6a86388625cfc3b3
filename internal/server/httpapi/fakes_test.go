package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nsendoda/suggestion-box/internal/common"
	"github.com/nsendoda/suggestion-box/internal/logging"
	"github.com/nsendoda/suggestion-box/internal/server/metrics"
	"github.com/nsendoda/suggestion-box/internal/server/models"
	"github.com/stretchr/testify/require"
)

// fakeAuth knows one token per owner: "tok-<owner>". Owner "root" is the
// only admin.
type fakeAuth struct {
	signupErr  error
	loginErr   error
	logoutErr  error
	loggedOut  []string
	signupArgs []string
}

func (f *fakeAuth) session(owner string) *models.Session {
	return &models.Session{Token: "tok-" + owner, OwnerID: owner, ExpiresAt: time.Date(2026, 4, 8, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeAuth) Signup(_ context.Context, id, pw, name string) (*models.Session, error) {
	f.signupArgs = []string{id, pw, name}
	if f.signupErr != nil {
		return nil, f.signupErr
	}
	return f.session(strings.ToLower(id)), nil
}

func (f *fakeAuth) Login(_ context.Context, id, _ string) (*models.Session, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.session(id), nil
}

func (f *fakeAuth) Logout(_ context.Context, token string) error {
	f.loggedOut = append(f.loggedOut, token)
	return f.logoutErr
}

func (f *fakeAuth) ResolveRequestIdentity(_ context.Context, token string) (string, error) {
	switch {
	case token == "":
		return "", common.ErrorUnauthorized
	case token == "expired":
		return "", common.ErrSessionExpired
	case strings.HasPrefix(token, "tok-"):
		return strings.TrimPrefix(token, "tok-"), nil
	}
	return "", common.ErrorUnauthorized
}

func (f *fakeAuth) Authorize(ctx context.Context, token, pathOwnerID string) (string, error) {
	id, err := f.ResolveRequestIdentity(ctx, token)
	if err != nil {
		return "", err
	}
	if id != strings.ToLower(pathOwnerID) {
		return "", common.ErrNotOwner
	}
	return id, nil
}

func (f *fakeAuth) RequireAdmin(_ context.Context, ownerID string) error {
	if ownerID != "root" {
		return common.ErrNotAdmin
	}
	return nil
}

func (f *fakeAuth) SessionTTL() time.Duration { return 7 * 24 * time.Hour }

type fakeLetters struct {
	err        error
	letter     *models.Letter
	list       []models.Letter
	gotOwner   string
	gotID      int64
	gotStatus  string
	gotInbox   bool
	gotContent string
	gotProg    int
}

func (f *fakeLetters) result() (*models.Letter, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.letter, nil
}

func (f *fakeLetters) Submit(_ context.Context, ownerID, content string) (*models.Letter, error) {
	f.gotOwner, f.gotContent = ownerID, content
	return f.result()
}

func (f *fakeLetters) Draw(_ context.Context, ownerID string) (*models.Letter, error) {
	f.gotOwner = ownerID
	return f.result()
}

func (f *fakeLetters) SetStatus(_ context.Context, ownerID string, id int64, status string) (*models.Letter, error) {
	f.gotOwner, f.gotID, f.gotStatus = ownerID, id, status
	return f.result()
}

func (f *fakeLetters) SetProgress(_ context.Context, ownerID string, id int64, p int) (*models.Letter, error) {
	f.gotOwner, f.gotID, f.gotProg = ownerID, id, p
	return f.result()
}

func (f *fakeLetters) List(_ context.Context, ownerID string, inbox bool) ([]models.Letter, error) {
	f.gotOwner, f.gotInbox = ownerID, inbox
	return f.list, f.err
}

func (f *fakeLetters) IssueReceipt(l *models.Letter) (string, error) {
	return "receipt-" + l.OwnerID, nil
}

func (f *fakeLetters) Track(_ context.Context, receipt string) (*models.Letter, error) {
	if receipt != "receipt-alice" {
		return nil, common.ErrInvalidReceipt
	}
	return f.result()
}

type fakeOwners struct {
	err       error
	signups   bool
	keepLimit int
}

func (f *fakeOwners) Profile(_ context.Context, ownerID string) (models.Profile, error) {
	if f.err != nil {
		return models.Profile{}, f.err
	}
	if ownerID != "alice" {
		return models.Profile{}, common.ErrOwnerNotFound
	}
	return models.Profile{ID: "alice", DisplayName: "Alice", KeepLimit: f.keepLimit}, nil
}

func (f *fakeOwners) SetKeepLimit(_ context.Context, _ string, limit int) error {
	if limit < 1 {
		return common.ErrInvalidKeepLimit
	}
	f.keepLimit = limit
	return f.err
}

func (f *fakeOwners) SetSignupsEnabled(_ context.Context, enabled bool) error {
	f.signups = enabled
	return f.err
}

func (f *fakeOwners) SignupsEnabled(context.Context) (bool, error) { return f.signups, f.err }

type testAPI struct {
	auth    *fakeAuth
	letters *fakeLetters
	owners  *fakeOwners
	metrics *metrics.Metrics
	handler http.Handler
}

func newTestAPI(t *testing.T, opts Options) *testAPI {
	t.Helper()
	api := &testAPI{
		auth: &fakeAuth{},
		letters: &fakeLetters{letter: &models.Letter{
			ID: 7, OwnerID: "alice", Content: "hi", Status: models.StatusHeld,
			CreatedAt: time.Date(2026, 4, 1, 21, 0, 0, 0, time.FixedZone("JST", 9*3600)),
			UpdatedAt: time.Date(2026, 4, 1, 21, 0, 0, 0, time.FixedZone("JST", 9*3600)),
		}},
		owners:  &fakeOwners{signups: true, keepLimit: 3},
		metrics: metrics.New(false),
	}
	api.handler = NewRouter(api.auth, api.letters, api.owners, logging.Nop(), api.metrics, opts)
	return api
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: common.SessionCookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}
