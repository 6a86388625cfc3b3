package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/nsendoda/suggestion-box/internal/common"
	"github.com/nsendoda/suggestion-box/internal/logging"
)

type ctxKey string

const (
	ownerIDKey ctxKey = "ownerID"

	requestIDHeader = "X-Request-ID"
)

func ownerFrom(ctx context.Context) string {
	id, _ := ctx.Value(ownerIDKey).(string)
	return id
}

// sessionToken reads the session from the cookie, falling back to a
// bearer Authorization header.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(common.SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if v := r.Header.Get("Authorization"); len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}

func (h *handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWith(r.Context(), "request_id", id)))
	})
}

func (h *handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

func (h *handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				h.logger.Error(r.Context(), "panic", "err", fmt.Sprint(p))
				w.Header().Set("Connection", "close")
				writeJSON(w, http.StatusInternalServerError, &ApiError{Message: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authenticate resolves the session and stores the owner id in the
// request context.
func (h *handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := h.auth.ResolveRequestIdentity(r.Context(), sessionToken(r))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerIDKey, ownerID)))
	})
}

// authorizeOwner requires the session to belong to the {ownerId} in the
// path.
func (h *handler) authorizeOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := h.auth.Authorize(r.Context(), sessionToken(r), chi.URLParam(r, "ownerId"))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerIDKey, ownerID)))
	})
}

// requireAdmin must run after authenticate.
func (h *handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID := ownerFrom(r.Context())
		if ownerID == "" {
			h.writeError(w, r, common.ErrorUnauthorized)
			return
		}
		if err := h.auth.RequireAdmin(r.Context(), ownerID); err != nil {
			h.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
