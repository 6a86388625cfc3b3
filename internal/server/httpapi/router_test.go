package httpapi

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nsendoda/suggestion-box/internal/common"
	"github.com/nsendoda/suggestion-box/internal/logging"
	"github.com/nsendoda/suggestion-box/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignup_SetsSessionCookie(t *testing.T) {
	api := newTestAPI(t, Options{CookieSecure: true})

	rec := api.do(t, http.MethodPost, "/api/signup", "", map[string]string{
		"ownerId": "Alice", "password": "password1", "displayName": "Alice",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"Alice", "password1", "Alice"}, api.auth.signupArgs)

	body := decodeBody[sessionResponse](t, rec)
	assert.Equal(t, "alice", body.OwnerID)
	assert.Equal(t, "tok-alice", body.Token)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "sb_session", c.Name)
	assert.Equal(t, "tok-alice", c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 7*24*3600, c.MaxAge)
}

func TestSignup_Errors(t *testing.T) {
	api := newTestAPI(t, Options{})

	rec := api.do(t, http.MethodPost, "/api/signup", "", `{"ownerId":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid body", decodeBody[ApiError](t, rec).Message)

	rec = api.do(t, http.MethodPost, "/api/signup", "", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	api.auth.signupErr = common.ErrSignupsDisabled
	rec = api.do(t, http.MethodPost, "/api/signup", "", map[string]string{"ownerId": "alice", "password": "password1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "signups are closed", decodeBody[ApiError](t, rec).Message)
	assert.Empty(t, rec.Result().Cookies())

	api.auth.signupErr = common.ErrOwnerExists
	rec = api.do(t, http.MethodPost, "/api/signup", "", map[string]string{"ownerId": "alice", "password": "password1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogin(t *testing.T) {
	api := newTestAPI(t, Options{})

	rec := api.do(t, http.MethodPost, "/api/login", "", map[string]string{"ownerId": "alice", "password": "password1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-alice", decodeBody[sessionResponse](t, rec).Token)

	api.auth.loginErr = common.ErrorUnauthorized
	rec = api.do(t, http.MethodPost, "/api/login", "", map[string]string{"ownerId": "alice", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	api.auth.loginErr = common.ErrOwnerNotFound
	rec = api.do(t, http.MethodPost, "/api/login", "", map[string]string{"ownerId": "ghost", "password": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogout_ClearsCookie(t *testing.T) {
	api := newTestAPI(t, Options{})

	rec := api.do(t, http.MethodPost, "/api/logout", "tok-alice", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"tok-alice"}, api.auth.loggedOut)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.Equal(t, -1, cookies[0].MaxAge)

	rec = api.do(t, http.MethodPost, "/api/logout", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMe(t *testing.T) {
	api := newTestAPI(t, Options{})

	rec := api.do(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/me", "expired", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "session expired", decodeBody[ApiError](t, rec).Message)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer tok-alice")
	rr := httptest.NewRecorder()
	api.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alice", decodeBody[meResponse](t, rr).OwnerID)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestOwnerRoutes_RequireMatchingSession(t *testing.T) {
	api := newTestAPI(t, Options{})

	rec := api.do(t, http.MethodGet, "/api/owners/bob/letters", "tok-alice", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/owners/alice/draw", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/owners/alice/draw", "tok-alice", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", api.letters.gotOwner)
	assert.Equal(t, int64(7), decodeBody[models.Letter](t, rec).ID)
}

func TestList(t *testing.T) {
	api := newTestAPI(t, Options{})
	api.letters.list = []models.Letter{}

	rec := api.do(t, http.MethodGet, "/api/owners/alice/letters", "tok-alice", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.False(t, api.letters.gotInbox)

	rec = api.do(t, http.MethodGet, "/api/owners/alice/letters?inbox=1", "tok-alice", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, api.letters.gotInbox)
}

func TestDraw_QuotaBody(t *testing.T) {
	api := newTestAPI(t, Options{})
	api.letters.err = common.QuotaExceeded(3)

	rec := api.do(t, http.MethodPost, "/api/owners/alice/draw", "tok-alice", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"limit 3"}`, rec.Body.String())
}

func TestSetStatus(t *testing.T) {
	api := newTestAPI(t, Options{})

	rec := api.do(t, http.MethodPost, "/api/owners/alice/letters/abc/status", "tok-alice", map[string]string{"status": "done"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid id", decodeBody[ApiError](t, rec).Message)

	rec = api.do(t, http.MethodPost, "/api/owners/alice/letters/7/status", "tok-alice", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/owners/alice/letters/7/status", "tok-alice", map[string]string{"status": "done"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), api.letters.gotID)
	assert.Equal(t, "done", api.letters.gotStatus)

	api.letters.err = common.ErrTransitionNotAllowed
	rec = api.do(t, http.MethodPost, "/api/owners/alice/letters/7/status", "tok-alice", map[string]string{"status": "inbox"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSetProgress(t *testing.T) {
	api := newTestAPI(t, Options{})

	rec := api.do(t, http.MethodPut, "/api/owners/alice/letters/7/progress", "tok-alice", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPut, "/api/owners/alice/letters/7/progress", "tok-alice", map[string]int{"progress": 0})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, api.letters.gotProg)

	api.letters.err = common.ErrNotInProgress
	rec = api.do(t, http.MethodPut, "/api/owners/alice/letters/7/progress", "tok-alice", map[string]int{"progress": 40})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSubmit_PublicWithReceipt(t *testing.T) {
	api := newTestAPI(t, Options{})
	api.letters.letter.Status = models.StatusInbox

	rec := api.do(t, http.MethodPost, "/api/owners/alice/letters", "", map[string]string{"content": "more benches"})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody[submitResponse](t, rec)
	assert.Equal(t, int64(7), body.ID)
	assert.Equal(t, models.StatusInbox, body.Status)
	assert.Equal(t, "receipt-alice", body.Receipt)
	assert.Equal(t, "alice", api.letters.gotOwner)
	assert.Equal(t, "more benches", api.letters.gotContent)

	api.letters.err = common.ErrOwnerNotFound
	rec = api.do(t, http.MethodPost, "/api/owners/ghost/letters", "", map[string]string{"content": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmit_RateLimited(t *testing.T) {
	api := newTestAPI(t, Options{SubmitRatePerMinute: 2})

	for i := 0; i < 2; i++ {
		rec := api.do(t, http.MethodPost, "/api/owners/alice/letters", "", map[string]string{"content": "x"})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := api.do(t, http.MethodPost, "/api/owners/alice/letters", "", map[string]string{"content": "x"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Owner routes are not throttled.
	rec = api.do(t, http.MethodGet, "/api/owners/alice/profile", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func submitFrom(api *testAPI, remoteAddr, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodPost, "/api/owners/alice/letters", strings.NewReader(`{"content":"x"}`))
	req.RemoteAddr = remoteAddr
	req.Header.Set("X-Forwarded-For", forwardedFor)
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestSubmit_RateLimitIgnoresForwardedForByDefault(t *testing.T) {
	api := newTestAPI(t, Options{SubmitRatePerMinute: 1})

	var codes []int
	for _, xff := range []string{"10.0.0.0", "10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		codes = append(codes, submitFrom(api, "203.0.113.9:4000", xff))
	}
	assert.Equal(t, []int{
		http.StatusCreated,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
	}, codes)
}

func TestSubmit_RateLimitTrustsProxyWhenEnabled(t *testing.T) {
	api := newTestAPI(t, Options{SubmitRatePerMinute: 1, TrustProxyHeaders: true})

	assert.Equal(t, http.StatusCreated, submitFrom(api, "10.1.1.1:4000", "198.51.100.1"))
	assert.Equal(t, http.StatusCreated, submitFrom(api, "10.1.1.1:4000", "198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, submitFrom(api, "10.1.1.1:4000", "198.51.100.1"))
}

func TestTrack(t *testing.T) {
	api := newTestAPI(t, Options{})

	rec := api.do(t, http.MethodGet, "/api/receipts/receipt-alice", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[trackResponse](t, rec)
	assert.Equal(t, models.StatusHeld, body.Status)
	assert.NotContains(t, rec.Body.String(), "ownerId")

	rec = api.do(t, http.MethodGet, "/api/receipts/forged", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfile(t *testing.T) {
	api := newTestAPI(t, Options{})

	rec := api.do(t, http.MethodGet, "/api/owners/alice/profile", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"alice","displayName":"Alice","keepLimit":3}`, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/owners/ghost/profile", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	api := newTestAPI(t, Options{})

	rec := api.do(t, http.MethodPost, "/api/admin/signups", "", map[string]bool{"enabled": false})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/admin/signups", "tok-alice", map[string]bool{"enabled": false})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.True(t, api.owners.signups)

	rec = api.do(t, http.MethodPost, "/api/admin/signups", "tok-root", map[string]bool{"enabled": false})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, api.owners.signups)

	rec = api.do(t, http.MethodGet, "/api/signups", "", nil)
	assert.JSONEq(t, `{"enabled":false}`, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/api/admin/signups", "tok-root", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPut, "/api/admin/owners/alice/keep-limit", "tok-root", map[string]int{"keepLimit": 5})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, decodeBody[models.Profile](t, rec).KeepLimit)

	rec = api.do(t, http.MethodPut, "/api/admin/owners/alice/keep-limit", "tok-root", map[string]int{"keepLimit": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccessLog_CarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New("slog", "text", &buf)
	require.NoError(t, err)
	h := NewRouter(&fakeAuth{}, &fakeLetters{}, &fakeOwners{keepLimit: 3}, logger, nil, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/owners/alice/profile", nil)
	req.Header.Set(requestIDHeader, "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, buf.String(), "request_id=req-42")
	assert.Contains(t, buf.String(), "path=/api/owners/alice/profile")
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t, Options{})
	rec := api.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	failing := newTestAPI(t, Options{Ping: func(context.Context) error { return errors.New("down") }})
	rec = failing.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDAndMetrics(t *testing.T) {
	api := newTestAPI(t, Options{})

	rec := api.do(t, http.MethodGet, "/api/owners/alice/profile", "", nil)
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc")
	rr := httptest.NewRecorder()
	api.handler.ServeHTTP(rr, req)
	assert.Equal(t, "abc", rr.Header().Get("X-Request-ID"))

	api.letters.err = common.QuotaExceeded(3)
	api.do(t, http.MethodPost, "/api/owners/alice/draw", "tok-alice", nil)

	rec = api.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/owners/{ownerId}/profile"`)
	assert.Contains(t, rec.Body.String(), `suggestion_box_letters_draws_total{result="quota_exceeded"} 1`)
}

func TestCORS(t *testing.T) {
	api := newTestAPI(t, Options{AllowedOrigins: []string{"https://box.example"}})

	req := httptest.NewRequest(http.MethodGet, "/api/owners/alice/profile", nil)
	req.Header.Set("Origin", "https://box.example")
	rr := httptest.NewRecorder()
	api.handler.ServeHTTP(rr, req)
	assert.Equal(t, "https://box.example", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/owners/alice/profile", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	api.handler.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoverer(t *testing.T) {
	api := newTestAPI(t, Options{})
	api.letters.letter = nil

	// The fake returns a nil letter, which the submit handler dereferences
	// while issuing a receipt.
	rec := api.do(t, http.MethodPost, "/api/owners/alice/letters", "", map[string]string{"content": "x"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
