// Package instrument owns the instrument registry: the type/model taxonomy,
// the instruments themselves, and the gap-free status history timeline.
package instrument

import (
	"context"
	"time"

	"metrology/internal/domain"
)

// Filter narrows instrument listings. Nil fields match everything.
type Filter struct {
	OrgUnitID  *domain.ID
	LocationID *domain.ID
	StatusID   *domain.ID
	ModelID    *domain.ID
	Limit      int
	Offset     int
}

// Store is the instrument persistence port. Status history writes go through
// it so the timeline and the instrument row share one transaction.
type Store interface {
	CreateType(ctx context.Context, t domain.InstrumentType) error
	GetType(ctx context.Context, id domain.ID) (domain.InstrumentType, error)
	ListTypes(ctx context.Context, limit, offset int) ([]domain.InstrumentType, error)

	CreateModel(ctx context.Context, m domain.InstrumentModel) error
	GetModel(ctx context.Context, id domain.ID) (domain.InstrumentModel, error)
	ListModels(ctx context.Context, limit, offset int) ([]domain.InstrumentModel, error)

	Create(ctx context.Context, inst domain.Instrument) error
	Get(ctx context.Context, id domain.ID) (domain.Instrument, error)
	List(ctx context.Context, filter Filter) ([]domain.Instrument, error)
	Update(ctx context.Context, inst domain.Instrument) error

	// AppendHistory opens a new interval; the partial unique index
	// uq_ish_one_open rejects a second open interval per instrument.
	AppendHistory(ctx context.Context, entry domain.StatusHistoryEntry) error
	// CloseOpenHistory stamps valid_to on the open interval, if any.
	CloseOpenHistory(ctx context.Context, instrumentID domain.ID, at time.Time) error
	ListHistory(ctx context.Context, instrumentID domain.ID) ([]domain.StatusHistoryEntry, error)

	// ResolveStatus maps a status code to its lookup row. A missing row is a
	// deployment defect, reported as a configuration error.
	ResolveStatus(ctx context.Context, code string) (domain.LookupRow, error)
	// LocationOrgUnit returns the org unit owning a location, for the
	// location consistency guard.
	LocationOrgUnit(ctx context.Context, locationID domain.ID) (domain.ID, error)
}
