package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/nsendoda/suggestion-box/internal/common"
	"github.com/nsendoda/suggestion-box/internal/server/metrics"
	"github.com/nsendoda/suggestion-box/internal/server/models"
)

var errBadLetterID = &common.KindError{Kind: common.ErrorInvalidInput, Msg: "invalid id"}

func letterID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "letterId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadLetterID
	}
	return id, nil
}

func (h *handler) observe(fn func(*metrics.Metrics)) {
	if h.metrics != nil {
		fn(h.metrics)
	}
}

func (h *handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	letter, err := h.letters.Submit(r.Context(), chi.URLParam(r, "ownerId"), req.Content)
	h.observe(func(m *metrics.Metrics) { m.ObserveSubmit(metrics.Result(err, common.KindOf)) })
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	receipt, err := h.letters.IssueReceipt(letter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{ID: letter.ID, Status: letter.Status, Receipt: receipt})
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	inbox := r.URL.Query().Get("inbox")
	letters, err := h.letters.List(r.Context(), ownerFrom(r.Context()), inbox == "1" || inbox == "true")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, letters)
}

func (h *handler) draw(w http.ResponseWriter, r *http.Request) {
	letter, err := h.letters.Draw(r.Context(), ownerFrom(r.Context()))
	h.observe(func(m *metrics.Metrics) { m.ObserveDraw(metrics.Result(err, common.KindOf)) })
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, letter)
}

func (h *handler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, err := letterID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	letter, err := h.letters.SetStatus(r.Context(), ownerFrom(r.Context()), id, req.Status)
	h.observe(func(m *metrics.Metrics) {
		m.ObserveTransition(statusLabel(req.Status), metrics.Result(err, common.KindOf))
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, letter)
}

func (h *handler) setProgress(w http.ResponseWriter, r *http.Request) {
	id, err := letterID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req progressRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	letter, err := h.letters.SetProgress(r.Context(), ownerFrom(r.Context()), id, *req.Progress)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, letter)
}

func (h *handler) track(w http.ResponseWriter, r *http.Request) {
	letter, err := h.letters.Track(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trackResponse{
		ID:        letter.ID,
		Status:    letter.Status,
		Progress:  letter.Progress,
		CreatedAt: letter.CreatedAt,
		UpdatedAt: letter.UpdatedAt,
	})
}

// statusLabel keeps arbitrary client input out of metric labels.
func statusLabel(s string) string {
	if st, ok := models.ParseStatus(s); ok {
		return string(st)
	}
	return "invalid"
}
