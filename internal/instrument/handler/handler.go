// Package handler exposes the instrument registry endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"metrology/internal/domain"
	"metrology/internal/instrument"
	"metrology/internal/transport/http/shared"
)

// Service is the instrument operation surface the handler delegates to.
type Service interface {
	CreateType(ctx context.Context, t domain.InstrumentType) (domain.InstrumentType, error)
	ListTypes(ctx context.Context, limit, offset int) ([]domain.InstrumentType, error)
	CreateModel(ctx context.Context, m domain.InstrumentModel) (domain.InstrumentModel, error)
	GetModel(ctx context.Context, id domain.ID) (domain.InstrumentModel, error)
	ListModels(ctx context.Context, limit, offset int) ([]domain.InstrumentModel, error)
	Create(ctx context.Context, inst domain.Instrument) (domain.Instrument, error)
	Get(ctx context.Context, id domain.ID) (domain.Instrument, error)
	List(ctx context.Context, filter instrument.Filter) ([]domain.Instrument, error)
	Update(ctx context.Context, inst domain.Instrument) (domain.Instrument, error)
	History(ctx context.Context, id domain.ID) ([]domain.StatusHistoryEntry, error)
	Decommission(ctx context.Context, id domain.ID, reason string, replacedBy *domain.ID) (domain.Instrument, error)
}

type Handler struct {
	service Service
	log     *slog.Logger
}

func New(service Service, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/instrument-types", func(r chi.Router) {
		r.Post("/", h.createType)
		r.Get("/", h.listTypes)
	})
	r.Route("/instrument-models", func(r chi.Router) {
		r.Post("/", h.createModel)
		r.Get("/", h.listModels)
		r.Get("/{id}", h.getModel)
	})
	r.Route("/instruments", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Get("/{id}/history", h.history)
		r.Post("/{id}/decommission", h.decommission)
	})
}

type typeRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (h *Handler) createType(w http.ResponseWriter, r *http.Request) {
	var req typeRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	t, err := h.service.CreateType(r.Context(), domain.InstrumentType{Code: req.Code, Name: req.Name})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) listTypes(w http.ResponseWriter, r *http.Request) {
	limit, offset := shared.Page(r)
	types, err := h.service.ListTypes(r.Context(), limit, offset)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, types)
}

type modelRequest struct {
	InstrumentTypeID domain.ID `json:"instrument_type_id"`
	Manufacturer     string    `json:"manufacturer"`
	ModelName        string    `json:"model_name"`
	Description      *string   `json:"description,omitempty"`
}

func (h *Handler) createModel(w http.ResponseWriter, r *http.Request) {
	var req modelRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	m, err := h.service.CreateModel(r.Context(), domain.InstrumentModel{
		InstrumentTypeID: req.InstrumentTypeID,
		Manufacturer:     req.Manufacturer,
		ModelName:        req.ModelName,
		Description:      req.Description,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) getModel(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	m, err := h.service.GetModel(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) listModels(w http.ResponseWriter, r *http.Request) {
	limit, offset := shared.Page(r)
	models, err := h.service.ListModels(r.Context(), limit, offset)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, models)
}

type instrumentRequest struct {
	ModelID       domain.ID  `json:"model_id"`
	InventoryNo   string     `json:"inventory_no"`
	SerialNo      *string    `json:"serial_no,omitempty"`
	RangeMin      *float64   `json:"range_min,omitempty"`
	RangeMax      *float64   `json:"range_max,omitempty"`
	RangeUnit     *string    `json:"range_unit,omitempty"`
	ErrorLimit    *float64   `json:"error_limit,omitempty"`
	ErrorUnit     *string    `json:"error_unit,omitempty"`
	AccuracyClass *string    `json:"accuracy_class,omitempty"`
	OrgUnitID     domain.ID  `json:"org_unit_id"`
	LocationID    domain.ID  `json:"location_id"`
	InstalledAt   *time.Time `json:"installed_at,omitempty"`
}

func (req instrumentRequest) toDomain() domain.Instrument {
	return domain.Instrument{
		ModelID:       req.ModelID,
		InventoryNo:   req.InventoryNo,
		SerialNo:      req.SerialNo,
		RangeMin:      req.RangeMin,
		RangeMax:      req.RangeMax,
		RangeUnit:     req.RangeUnit,
		ErrorLimit:    req.ErrorLimit,
		ErrorUnit:     req.ErrorUnit,
		AccuracyClass: req.AccuracyClass,
		OrgUnitID:     req.OrgUnitID,
		LocationID:    req.LocationID,
		InstalledAt:   req.InstalledAt,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req instrumentRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	inst, err := h.service.Create(r.Context(), req.toDomain())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, inst)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	inst, err := h.service.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, inst)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var filter instrument.Filter
	var err error
	if filter.OrgUnitID, err = shared.OptionalID(r, "org_unit_id"); err != nil {
		shared.WriteError(w, err)
		return
	}
	if filter.LocationID, err = shared.OptionalID(r, "location_id"); err != nil {
		shared.WriteError(w, err)
		return
	}
	if filter.ModelID, err = shared.OptionalID(r, "model_id"); err != nil {
		shared.WriteError(w, err)
		return
	}
	filter.Limit, filter.Offset = shared.Page(r)

	insts, err := h.service.List(r.Context(), filter)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, insts)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req instrumentRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	inst := req.toDomain()
	inst.ID = id
	updated, err := h.service.Update(r.Context(), inst)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	entries, err := h.service.History(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, entries)
}

type decommissionRequest struct {
	Reason     string     `json:"reason"`
	ReplacedBy *domain.ID `json:"replaced_by_instrument_id,omitempty"`
}

func (h *Handler) decommission(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req decommissionRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	inst, err := h.service.Decommission(r.Context(), id, req.Reason, req.ReplacedBy)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, inst)
}
