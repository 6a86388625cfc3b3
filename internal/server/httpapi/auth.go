package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nsendoda/suggestion-box/internal/common"
	"github.com/nsendoda/suggestion-box/internal/server/models"
)

func (h *handler) sessionCookie(s *models.Session) *http.Cookie {
	return &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    s.Token,
		Path:     "/",
		MaxAge:   int(h.auth.SessionTTL() / time.Second),
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *handler) writeSession(w http.ResponseWriter, code int, s *models.Session) {
	http.SetCookie(w, h.sessionCookie(s))
	writeJSON(w, code, sessionResponse{OwnerID: s.OwnerID, Token: s.Token, ExpiresAt: s.ExpiresAt})
}

func (h *handler) signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	s, err := h.auth.Signup(r.Context(), req.OwnerID, req.Password, req.DisplayName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSession(w, http.StatusCreated, s)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	s, err := h.auth.Login(r.Context(), req.OwnerID, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSession(w, http.StatusOK, s)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), sessionToken(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, meResponse{OwnerID: ownerFrom(r.Context())})
}

func (h *handler) profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.owners.Profile(r.Context(), chi.URLParam(r, "ownerId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) signupsStatus(w http.ResponseWriter, r *http.Request) {
	on, err := h.owners.SignupsEnabled(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, signupsResponse{Enabled: on})
}

func (h *handler) setSignups(w http.ResponseWriter, r *http.Request) {
	var req signupsRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.owners.SetSignupsEnabled(r.Context(), *req.Enabled); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info(r.Context(), "signups toggled", "admin", ownerFrom(r.Context()), "enabled", *req.Enabled)
	writeJSON(w, http.StatusOK, signupsResponse{Enabled: *req.Enabled})
}

func (h *handler) setKeepLimit(w http.ResponseWriter, r *http.Request) {
	var req keepLimitRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	ownerID := chi.URLParam(r, "ownerId")
	if err := h.owners.SetKeepLimit(r.Context(), ownerID, *req.KeepLimit); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.owners.Profile(r.Context(), ownerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
