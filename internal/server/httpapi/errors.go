package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/nsendoda/suggestion-box/internal/common"
)

// ApiError is the JSON body of every failed request.
type ApiError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
}

var errBadBody = &common.KindError{Kind: common.ErrorInvalidInput, Msg: "invalid body"}

var statusByKind = map[error]int{
	common.ErrorInvalidInput:    http.StatusBadRequest,
	common.ErrorNotFound:        http.StatusNotFound,
	common.ErrorUnauthenticated: http.StatusUnauthorized,
	common.ErrorForbidden:       http.StatusForbidden,
	common.ErrorConflict:        http.StatusConflict,
	common.ErrorQuotaExceeded:   http.StatusConflict,
	common.ErrorUnavailable:     http.StatusServiceUnavailable,
}

// toApiError maps err onto a status code by its kind. Errors of no known
// kind become a 500 without leaking their text.
func toApiError(err error) *ApiError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return &ApiError{StatusCode: http.StatusBadRequest, Message: errBadBody.Msg}
	}

	kind := common.KindOf(err)
	code, ok := statusByKind[kind]
	if !ok {
		return &ApiError{StatusCode: http.StatusInternalServerError, Message: "internal error"}
	}
	if kind == common.ErrorUnavailable {
		return &ApiError{StatusCode: code, Message: kind.Error()}
	}

	var ke *common.KindError
	if errors.As(err, &ke) {
		return &ApiError{StatusCode: code, Message: ke.Msg}
	}
	return &ApiError{StatusCode: code, Message: kind.Error()}
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := toApiError(err)
	if e.StatusCode >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, e.StatusCode, e)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type okResponse struct {
	OK bool `json:"ok"`
}
