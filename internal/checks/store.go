// Package checks owns the verification and calibration lifecycle: cadence
// requirements, plans, performed events, their documents, and the derived
// due dates everything downstream schedules against.
package checks

import (
	"context"
	"time"

	"metrology/internal/domain"
)

// PlanFilter narrows plan listings. Nil fields match everything.
type PlanFilter struct {
	InstrumentID *domain.ID
	StatusID     *domain.ID
	DueFrom      *time.Time
	DueTo        *time.Time
	Limit        int
	Offset       int
}

// PlanCandidate is one (instrument, check type) pair whose stored due date
// falls inside a generation window.
type PlanCandidate struct {
	InstrumentID domain.ID
	CheckTypeID  domain.ID
	DueDate      time.Time
}

// Store is the checks persistence port.
type Store interface {
	CreateCheckType(ctx context.Context, ct domain.CheckType) error
	GetCheckType(ctx context.Context, id domain.ID) (domain.CheckType, error)
	ListCheckTypes(ctx context.Context, limit, offset int) ([]domain.CheckType, error)

	CreateRequirement(ctx context.Context, req domain.CheckRequirement) error
	GetRequirement(ctx context.Context, id domain.ID) (domain.CheckRequirement, error)
	// RequirementFor resolves the cadence of one check type for one model.
	// Absence is reported as not-found; callers decide whether that is an
	// error or just "no due date".
	RequirementFor(ctx context.Context, modelID, checkTypeID domain.ID) (domain.CheckRequirement, error)
	ListRequirements(ctx context.Context, modelID *domain.ID, limit, offset int) ([]domain.CheckRequirement, error)
	UpdateRequirement(ctx context.Context, req domain.CheckRequirement) error
	DeleteRequirement(ctx context.Context, id domain.ID) error

	CreatePlan(ctx context.Context, plan domain.CheckPlan) error
	// CreatePlanSkipConflict inserts unless a plan with the same
	// (instrument, check type, due date) exists; reports whether a row was
	// written. This is what keeps plan generation idempotent.
	CreatePlanSkipConflict(ctx context.Context, plan domain.CheckPlan) (bool, error)
	GetPlan(ctx context.Context, id domain.ID) (domain.CheckPlan, error)
	ListPlans(ctx context.Context, filter PlanFilter) ([]domain.CheckPlan, error)
	SetPlanStatus(ctx context.Context, planID, statusID domain.ID) error

	CreateEvent(ctx context.Context, event domain.CheckEvent) error
	GetEvent(ctx context.Context, id domain.ID) (domain.CheckEvent, error)
	ListEvents(ctx context.Context, instrumentID domain.ID, limit, offset int) ([]domain.CheckEvent, error)

	CreateDocument(ctx context.Context, doc domain.Document) error
	GetDocument(ctx context.Context, id domain.ID) (domain.Document, error)
	LinkEventDocument(ctx context.Context, eventID, documentID domain.ID) error
	EventDocuments(ctx context.Context, eventID domain.ID) ([]domain.Document, error)

	// InstrumentModel resolves an instrument to its model for cadence
	// lookups.
	InstrumentModel(ctx context.Context, instrumentID domain.ID) (domain.ID, error)

	// DueRows is the projection source: for every (instrument, check type)
	// pair, the latest successful event and the due date it produced.
	// DaysToDue is left zero; the reader fills it against its own clock.
	DueRows(ctx context.Context) ([]domain.CheckDueRow, error)
	// DueCandidates lists pairs of ACTIVE instruments whose stored due date
	// falls in [from, to].
	DueCandidates(ctx context.Context, from, to time.Time) ([]PlanCandidate, error)

	ResolveResult(ctx context.Context, code string) (domain.ResultStatusRow, error)
	ResolvePlanStatus(ctx context.Context, code string) (domain.LookupRow, error)
	ResolveCheckKind(ctx context.Context, code string) (domain.LookupRow, error)
	ResolveDocumentType(ctx context.Context, code string) (domain.LookupRow, error)
}
