// Package handler exposes the checks lifecycle endpoints: requirements,
// plans, events, and documents.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"metrology/internal/checks"
	checkservice "metrology/internal/checks/service"
	"metrology/internal/domain"
	"metrology/internal/transport/http/shared"
	domainerrors "metrology/pkg/domain-errors"
)

// Service is the checks operation surface the handler delegates to.
type Service interface {
	CreateCheckType(ctx context.Context, code, name, kindCode string) (domain.CheckType, error)
	ListCheckTypes(ctx context.Context, limit, offset int) ([]domain.CheckType, error)
	CreateRequirement(ctx context.Context, req domain.CheckRequirement) (domain.CheckRequirement, error)
	GetRequirement(ctx context.Context, id domain.ID) (domain.CheckRequirement, error)
	ListRequirements(ctx context.Context, modelID *domain.ID, limit, offset int) ([]domain.CheckRequirement, error)
	UpdateRequirement(ctx context.Context, req domain.CheckRequirement) (domain.CheckRequirement, error)
	DeleteRequirement(ctx context.Context, id domain.ID) error
	CreateDocument(ctx context.Context, typeCode, title, storageRef string, sha256 *string) (domain.Document, error)
	GetDocument(ctx context.Context, id domain.ID) (domain.Document, error)
	CreatePlan(ctx context.Context, plan domain.CheckPlan) (domain.CheckPlan, error)
	GetPlan(ctx context.Context, id domain.ID) (domain.CheckPlan, error)
	ListPlans(ctx context.Context, filter checks.PlanFilter) ([]domain.CheckPlan, error)
	CancelPlan(ctx context.Context, id domain.ID) (domain.CheckPlan, error)
	GeneratePlans(ctx context.Context, from, to time.Time) (int, error)
	RegisterEvent(ctx context.Context, input checkservice.RegisterEventInput) (domain.CheckEvent, error)
	GetEvent(ctx context.Context, id domain.ID) (domain.CheckEvent, []domain.Document, error)
	ListEvents(ctx context.Context, instrumentID domain.ID, limit, offset int) ([]domain.CheckEvent, error)
}

type Handler struct {
	service Service
	log     *slog.Logger
}

func New(service Service, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/check-types", func(r chi.Router) {
		r.Post("/", h.createCheckType)
		r.Get("/", h.listCheckTypes)
	})
	r.Route("/check-requirements", func(r chi.Router) {
		r.Post("/", h.createRequirement)
		r.Get("/", h.listRequirements)
		r.Get("/{id}", h.getRequirement)
		r.Put("/{id}", h.updateRequirement)
		r.Delete("/{id}", h.deleteRequirement)
	})
	r.Route("/check-plans", func(r chi.Router) {
		r.Post("/", h.createPlan)
		r.Get("/", h.listPlans)
		r.Post("/generate", h.generatePlans)
		r.Get("/{id}", h.getPlan)
		r.Post("/{id}/cancel", h.cancelPlan)
	})
	r.Route("/check-events", func(r chi.Router) {
		r.Post("/", h.registerEvent)
		r.Get("/", h.listEvents)
		r.Get("/{id}", h.getEvent)
	})
	r.Route("/documents", func(r chi.Router) {
		r.Post("/", h.createDocument)
		r.Get("/{id}", h.getDocument)
	})
}

type checkTypeRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

func (h *Handler) createCheckType(w http.ResponseWriter, r *http.Request) {
	var req checkTypeRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	ct, err := h.service.CreateCheckType(r.Context(), req.Code, req.Name, req.Kind)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, ct)
}

func (h *Handler) listCheckTypes(w http.ResponseWriter, r *http.Request) {
	limit, offset := shared.Page(r)
	types, err := h.service.ListCheckTypes(r.Context(), limit, offset)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, types)
}

type requirementRequest struct {
	ModelID        domain.ID `json:"model_id"`
	CheckTypeID    domain.ID `json:"check_type_id"`
	IntervalMonths int       `json:"interval_months"`
	GraceDays      int       `json:"grace_days"`
	Mandatory      *bool     `json:"is_mandatory,omitempty"`
	Notes          *string   `json:"notes,omitempty"`
}

func (h *Handler) createRequirement(w http.ResponseWriter, r *http.Request) {
	var req requirementRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	mandatory := true
	if req.Mandatory != nil {
		mandatory = *req.Mandatory
	}
	created, err := h.service.CreateRequirement(r.Context(), domain.CheckRequirement{
		ModelID:        req.ModelID,
		CheckTypeID:    req.CheckTypeID,
		IntervalMonths: req.IntervalMonths,
		GraceDays:      req.GraceDays,
		Mandatory:      mandatory,
		Notes:          req.Notes,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) getRequirement(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	req, err := h.service.GetRequirement(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) listRequirements(w http.ResponseWriter, r *http.Request) {
	modelID, err := shared.OptionalID(r, "model_id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	limit, offset := shared.Page(r)
	reqs, err := h.service.ListRequirements(r.Context(), modelID, limit, offset)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, reqs)
}

func (h *Handler) updateRequirement(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req requirementRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	mandatory := true
	if req.Mandatory != nil {
		mandatory = *req.Mandatory
	}
	updated, err := h.service.UpdateRequirement(r.Context(), domain.CheckRequirement{
		ID:             id,
		IntervalMonths: req.IntervalMonths,
		GraceDays:      req.GraceDays,
		Mandatory:      mandatory,
		Notes:          req.Notes,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteRequirement(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.service.DeleteRequirement(r.Context(), id); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type planRequest struct {
	InstrumentID        domain.ID   `json:"instrument_id"`
	CheckTypeID         domain.ID   `json:"check_type_id"`
	DueDate             shared.Date `json:"due_date"`
	PlannedLabID        *domain.ID  `json:"planned_lab_id,omitempty"`
	PlannedSpecialistID *domain.ID  `json:"planned_specialist_id,omitempty"`
	Notes               *string     `json:"notes,omitempty"`
}

func (h *Handler) createPlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	plan, err := h.service.CreatePlan(r.Context(), domain.CheckPlan{
		InstrumentID:        req.InstrumentID,
		CheckTypeID:         req.CheckTypeID,
		DueDate:             req.DueDate.Time,
		PlannedLabID:        req.PlannedLabID,
		PlannedSpecialistID: req.PlannedSpecialistID,
		Notes:               req.Notes,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, plan)
}

func (h *Handler) getPlan(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	plan, err := h.service.GetPlan(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, plan)
}

func (h *Handler) listPlans(w http.ResponseWriter, r *http.Request) {
	var filter checks.PlanFilter
	var err error
	if filter.InstrumentID, err = shared.OptionalID(r, "instrument_id"); err != nil {
		shared.WriteError(w, err)
		return
	}
	filter.Limit, filter.Offset = shared.Page(r)
	plans, err := h.service.ListPlans(r.Context(), filter)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, plans)
}

func (h *Handler) cancelPlan(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	plan, err := h.service.CancelPlan(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, plan)
}

type generateRequest struct {
	From shared.Date `json:"from"`
	To   shared.Date `json:"to"`
}

type generateResponse struct {
	Inserted int `json:"inserted"`
}

func (h *Handler) generatePlans(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	inserted, err := h.service.GeneratePlans(r.Context(), req.From.Time, req.To.Time)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, generateResponse{Inserted: inserted})
}

type eventRequest struct {
	InstrumentID domain.ID   `json:"instrument_id"`
	CheckTypeID  domain.ID   `json:"check_type_id"`
	CheckDate    shared.Date `json:"check_date"`
	Result       string      `json:"result"`
	LabID        domain.ID   `json:"lab_id"`
	SpecialistID *domain.ID  `json:"specialist_id,omitempty"`
	PlanID       *domain.ID  `json:"check_plan_id,omitempty"`
	ProtocolNo   *string     `json:"protocol_no,omitempty"`
	Notes        *string     `json:"notes,omitempty"`
	DocumentIDs  []domain.ID `json:"document_ids,omitempty"`
}

func (h *Handler) registerEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	event, err := h.service.RegisterEvent(r.Context(), checkservice.RegisterEventInput{
		InstrumentID: req.InstrumentID,
		CheckTypeID:  req.CheckTypeID,
		CheckDate:    req.CheckDate.Time,
		ResultCode:   req.Result,
		LabID:        req.LabID,
		SpecialistID: req.SpecialistID,
		PlanID:       req.PlanID,
		ProtocolNo:   req.ProtocolNo,
		Notes:        req.Notes,
		DocumentIDs:  req.DocumentIDs,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, event)
}

type eventResponse struct {
	Event     domain.CheckEvent `json:"event"`
	Documents []domain.Document `json:"documents,omitempty"`
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	event, docs, err := h.service.GetEvent(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, eventResponse{Event: event, Documents: docs})
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	instrumentID, err := shared.OptionalID(r, "instrument_id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if instrumentID == nil {
		shared.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "instrument_id is required"))
		return
	}
	limit, offset := shared.Page(r)
	events, err := h.service.ListEvents(r.Context(), *instrumentID, limit, offset)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, events)
}

type documentRequest struct {
	Type       string  `json:"type"`
	Title      string  `json:"title"`
	StorageRef string  `json:"storage_ref"`
	SHA256     *string `json:"sha256,omitempty"`
}

func (h *Handler) createDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	doc, err := h.service.CreateDocument(r.Context(), req.Type, req.Title, req.StorageRef, req.SHA256)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, doc)
}

func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	doc, err := h.service.GetDocument(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, doc)
}
