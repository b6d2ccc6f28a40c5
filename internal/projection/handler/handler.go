// Package handler exposes the due-date projections: snapshot reads, the
// explicit refresh, and the live per-instrument rollup.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"metrology/internal/projection"
	"metrology/internal/transport/http/shared"
)

type Handler struct {
	refresher *projection.Refresher
	log       *slog.Logger
}

func New(refresher *projection.Refresher, log *slog.Logger) *Handler {
	return &Handler{refresher: refresher, log: log}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/projections", func(r chi.Router) {
		r.Post("/refresh", h.refresh)
		r.Get("/{name}", h.snapshot)
	})
	r.Get("/instruments-due", h.rollup)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.refresher.Refresh(r.Context()); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.refresher.Snapshot(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) rollup(w http.ResponseWriter, r *http.Request) {
	rows, err := h.refresher.InstrumentRollup(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, rows)
}
