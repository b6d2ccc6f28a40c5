// Package handler exposes the reference code sets read-only.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"metrology/internal/lookup"
	"metrology/internal/transport/http/shared"
)

type Handler struct {
	store lookup.Store
	log   *slog.Logger
}

func New(store lookup.Store, log *slog.Logger) *Handler {
	return &Handler{store: store, log: log}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/lookups", func(r chi.Router) {
		r.Get("/"+lookup.SetCheckResults, h.results)
		r.Get("/{set}", h.set)
	})
}

func (h *Handler) set(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.Set(r.Context(), chi.URLParam(r, "set"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, rows)
}

func (h *Handler) results(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.Results(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, rows)
}
