package lookup

import (
	"context"

	"metrology/internal/domain"
	"metrology/internal/store/memdb"
	domainerrors "metrology/pkg/domain-errors"
)

// MemoryStore reads the seeded sets from the in-memory database.
type MemoryStore struct {
	db *memdb.DB
}

func NewMemoryStore(db *memdb.DB) *MemoryStore {
	return &MemoryStore{db: db}
}

func (s *MemoryStore) Set(ctx context.Context, set string) ([]domain.LookupRow, error) {
	var out []domain.LookupRow
	err := s.db.View(ctx, func(st *memdb.State) error {
		switch set {
		case SetInstrumentStatuses:
			out = append(out, st.InstrumentStatuses...)
		case SetCheckKinds:
			out = append(out, st.CheckKinds...)
		case SetPlanStatuses:
			out = append(out, st.PlanStatuses...)
		case SetDocumentTypes:
			out = append(out, st.DocumentTypes...)
		default:
			return domainerrors.Newf(domainerrors.CodeNotFound, "unknown lookup set %s", set)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MemoryStore) Results(ctx context.Context) ([]domain.ResultStatusRow, error) {
	var out []domain.ResultStatusRow
	err := s.db.View(ctx, func(st *memdb.State) error {
		out = append(out, st.ResultStatuses...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
