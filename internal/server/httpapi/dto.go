package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/nsendoda/suggestion-box/internal/server/models"
)

const maxBodyBytes = 16 << 10

type credentialsRequest struct {
	OwnerID     string `json:"ownerId" validate:"required"`
	Password    string `json:"password" validate:"required"`
	DisplayName string `json:"displayName"`
}

type sessionResponse struct {
	OwnerID   string    `json:"ownerId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type meResponse struct {
	OwnerID string `json:"ownerId"`
}

type submitRequest struct {
	Content string `json:"content" validate:"required"`
}

type submitResponse struct {
	ID      int64         `json:"id"`
	Status  models.Status `json:"status"`
	Receipt string        `json:"receipt"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type progressRequest struct {
	Progress *int `json:"progress" validate:"required"`
}

type signupsRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type signupsResponse struct {
	Enabled bool `json:"enabled"`
}

type keepLimitRequest struct {
	KeepLimit *int `json:"keepLimit" validate:"required"`
}

type trackResponse struct {
	ID        int64         `json:"id"`
	Status    models.Status `json:"status"`
	Progress  int           `json:"progress"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// decode reads a JSON body into v and validates its struct tags.
func (h *handler) decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errBadBody
	}
	return h.validate.Struct(v)
}
