// Package httpapi is the JSON-over-HTTP request layer. It extracts the
// session token, checks who may call what, and maps service errors onto
// status codes; all decisions about letters live in the services.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/nsendoda/suggestion-box/internal/logging"
	"github.com/nsendoda/suggestion-box/internal/server/metrics"
	"github.com/nsendoda/suggestion-box/internal/server/models"
)

type Auth interface {
	Signup(ctx context.Context, ownerID, password, displayName string) (*models.Session, error)
	Login(ctx context.Context, ownerID, password string) (*models.Session, error)
	Logout(ctx context.Context, token string) error
	ResolveRequestIdentity(ctx context.Context, token string) (string, error)
	Authorize(ctx context.Context, token, pathOwnerID string) (string, error)
	RequireAdmin(ctx context.Context, ownerID string) error
	SessionTTL() time.Duration
}

type Letters interface {
	Submit(ctx context.Context, ownerID, content string) (*models.Letter, error)
	Draw(ctx context.Context, ownerID string) (*models.Letter, error)
	SetStatus(ctx context.Context, ownerID string, letterID int64, status string) (*models.Letter, error)
	SetProgress(ctx context.Context, ownerID string, letterID int64, progress int) (*models.Letter, error)
	List(ctx context.Context, ownerID string, includeInbox bool) ([]models.Letter, error)
	IssueReceipt(letter *models.Letter) (string, error)
	Track(ctx context.Context, receipt string) (*models.Letter, error)
}

type Owners interface {
	Profile(ctx context.Context, ownerID string) (models.Profile, error)
	SetKeepLimit(ctx context.Context, ownerID string, limit int) error
	SetSignupsEnabled(ctx context.Context, enabled bool) error
	SignupsEnabled(ctx context.Context) (bool, error)
}

// Options configures the router.
type Options struct {
	CookieSecure        bool
	AllowedOrigins      []string
	SubmitRatePerMinute int
	// TrustProxyHeaders rewrites RemoteAddr from X-Forwarded-For/X-Real-IP.
	// Left off, rate limiting keys on the TCP peer address.
	TrustProxyHeaders bool
	Ping              func(ctx context.Context) error
}

type handler struct {
	auth     Auth
	letters  Letters
	owners   Owners
	logger   logging.Logger
	metrics  *metrics.Metrics
	validate *validator.Validate
	limiter  *RateLimiter
	opts     Options
}

// NewRouter wires every route onto a chi router. m may be nil, in which
// case no metrics are recorded and /metrics is not served.
func NewRouter(a Auth, l Letters, o Owners, logger logging.Logger, m *metrics.Metrics, opts Options) http.Handler {
	h := &handler{
		auth:     a,
		letters:  l,
		owners:   o,
		logger:   logger.With("module", "http"),
		metrics:  m,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		limiter:  NewRateLimiter(opts.SubmitRatePerMinute, logger),
		opts:     opts,
	}

	r := chi.NewRouter()
	if opts.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(h.requestID)
	if m != nil {
		r.Use(m.Instrument)
	}
	r.Use(h.accessLog)
	r.Use(h.recoverer)

	r.Get("/healthz", h.healthz)
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/signup", h.signup)
		r.Post("/login", h.login)
		r.Post("/logout", h.logout)
		r.With(h.authenticate).Get("/me", h.me)
		r.Get("/signups", h.signupsStatus)
		r.Get("/receipts/{token}", h.track)

		r.Route("/owners/{ownerId}", func(r chi.Router) {
			r.Get("/profile", h.profile)
			r.With(h.limiter.Handler).Post("/letters", h.submit)

			r.Group(func(r chi.Router) {
				r.Use(h.authorizeOwner)
				r.Get("/letters", h.list)
				r.Post("/draw", h.draw)
				r.Post("/letters/{letterId}/status", h.setStatus)
				r.Put("/letters/{letterId}/progress", h.setProgress)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.authenticate, h.requireAdmin)
			r.Post("/signups", h.setSignups)
			r.Put("/owners/{ownerId}/keep-limit", h.setKeepLimit)
		})
	})

	if len(opts.AllowedOrigins) == 0 {
		return r
	}
	return handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(opts.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(r)
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.opts.Ping != nil {
		if err := h.opts.Ping(r.Context()); err != nil {
			h.logger.Warn(r.Context(), "health check failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, &ApiError{Message: "storage unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
