// Package handler exposes the read-only audit trail endpoint.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"metrology/internal/audit"
	"metrology/internal/transport/http/shared"
)

type Handler struct {
	store audit.Store
	log   *slog.Logger
}

func New(store audit.Store, log *slog.Logger) *Handler {
	return &Handler{store: store, log: log}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/audit", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	rowID, err := shared.OptionalID(r, "row_id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	limit, offset := shared.Page(r)
	entries, err := h.store.List(r.Context(), audit.Filter{
		TableName: r.URL.Query().Get("table"),
		RowID:     rowID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, entries)
}
