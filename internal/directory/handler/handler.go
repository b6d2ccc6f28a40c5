// Package handler exposes the directory CRUD endpoints.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"metrology/internal/directory"
	"metrology/internal/domain"
	"metrology/internal/transport/http/shared"
	domainerrors "metrology/pkg/domain-errors"
)

type Handler struct {
	store directory.Store
	log   *slog.Logger
}

func New(store directory.Store, log *slog.Logger) *Handler {
	return &Handler{store: store, log: log}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/org-units", func(r chi.Router) {
		r.Post("/", h.createOrgUnit)
		r.Get("/", h.listOrgUnits)
		r.Get("/{id}", h.getOrgUnit)
		r.Delete("/{id}", h.deleteOrgUnit)
	})
	r.Route("/locations", func(r chi.Router) {
		r.Post("/", h.createLocation)
		r.Get("/", h.listLocations)
		r.Get("/{id}", h.getLocation)
	})
	r.Route("/labs", func(r chi.Router) {
		r.Post("/", h.createLab)
		r.Get("/", h.listLabs)
		r.Get("/{id}", h.getLab)
	})
	r.Route("/specialists", func(r chi.Router) {
		r.Post("/", h.createSpecialist)
		r.Get("/", h.listSpecialists)
		r.Get("/{id}", h.getSpecialist)
	})
}

type orgUnitRequest struct {
	Code     string     `json:"code"`
	Name     string     `json:"name"`
	ParentID *domain.ID `json:"parent_id,omitempty"`
}

func (h *Handler) createOrgUnit(w http.ResponseWriter, r *http.Request) {
	var req orgUnitRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if req.Code == "" || req.Name == "" {
		shared.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "code and name are required"))
		return
	}
	unit := domain.OrgUnit{ID: domain.NewID(), Code: req.Code, Name: req.Name, ParentID: req.ParentID}
	if err := h.store.CreateOrgUnit(r.Context(), unit); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, unit)
}

func (h *Handler) listOrgUnits(w http.ResponseWriter, r *http.Request) {
	limit, offset := shared.Page(r)
	if limit <= 0 {
		limit = 100
	}
	units, err := h.store.ListOrgUnits(r.Context(), limit, offset)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, units)
}

func (h *Handler) getOrgUnit(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	unit, err := h.store.GetOrgUnit(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, unit)
}

func (h *Handler) deleteOrgUnit(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.store.DeleteOrgUnit(r.Context(), id); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type locationRequest struct {
	OrgUnitID domain.ID `json:"org_unit_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
}

func (h *Handler) createLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if req.Code == "" || req.Name == "" {
		shared.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "code and name are required"))
		return
	}
	loc := domain.Location{ID: domain.NewID(), OrgUnitID: req.OrgUnitID, Code: req.Code, Name: req.Name}
	if err := h.store.CreateLocation(r.Context(), loc); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, loc)
}

func (h *Handler) listLocations(w http.ResponseWriter, r *http.Request) {
	limit, offset := shared.Page(r)
	if limit <= 0 {
		limit = 100
	}
	locs, err := h.store.ListLocations(r.Context(), limit, offset)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, locs)
}

func (h *Handler) getLocation(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	loc, err := h.store.GetLocation(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, loc)
}

type labRequest struct {
	Code            string            `json:"code"`
	Name            string            `json:"name"`
	AccreditationNo *string           `json:"accreditation_no,omitempty"`
	Contacts        map[string]string `json:"contacts,omitempty"`
}

func (h *Handler) createLab(w http.ResponseWriter, r *http.Request) {
	var req labRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if req.Code == "" || req.Name == "" {
		shared.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "code and name are required"))
		return
	}
	lab := domain.Lab{
		ID:              domain.NewID(),
		Code:            req.Code,
		Name:            req.Name,
		AccreditationNo: req.AccreditationNo,
		Contacts:        req.Contacts,
	}
	if err := h.store.CreateLab(r.Context(), lab); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, lab)
}

func (h *Handler) listLabs(w http.ResponseWriter, r *http.Request) {
	limit, offset := shared.Page(r)
	if limit <= 0 {
		limit = 100
	}
	labs, err := h.store.ListLabs(r.Context(), limit, offset)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, labs)
}

func (h *Handler) getLab(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	lab, err := h.store.GetLab(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, lab)
}

type specialistRequest struct {
	LabID    *domain.ID `json:"lab_id,omitempty"`
	FullName string     `json:"full_name"`
	Position *string    `json:"position,omitempty"`
	Email    *string    `json:"email,omitempty"`
	Phone    *string    `json:"phone,omitempty"`
}

func (h *Handler) createSpecialist(w http.ResponseWriter, r *http.Request) {
	var req specialistRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if req.FullName == "" {
		shared.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "full_name is required"))
		return
	}
	sp := domain.Specialist{
		ID:       domain.NewID(),
		LabID:    req.LabID,
		FullName: req.FullName,
		Position: req.Position,
		Email:    req.Email,
		Phone:    req.Phone,
	}
	if err := h.store.CreateSpecialist(r.Context(), sp); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, sp)
}

func (h *Handler) listSpecialists(w http.ResponseWriter, r *http.Request) {
	limit, offset := shared.Page(r)
	if limit <= 0 {
		limit = 100
	}
	sps, err := h.store.ListSpecialists(r.Context(), limit, offset)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, sps)
}

func (h *Handler) getSpecialist(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	sp, err := h.store.GetSpecialist(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, sp)
}
