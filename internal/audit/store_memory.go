package audit

import (
	"context"
	"time"

	"metrology/internal/domain"
	"metrology/internal/store/memdb"
)

// MemoryStore keeps the trail in the shared in-memory database.
type MemoryStore struct {
	db *memdb.DB
}

func NewMemoryStore(db *memdb.DB) *MemoryStore {
	return &MemoryStore{db: db}
}

func (s *MemoryStore) Append(ctx context.Context, entry domain.AuditEntry) error {
	return s.db.Update(ctx, func(st *memdb.State) error {
		st.Audit = append(st.Audit, entry)
		return nil
	})
}

func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	err := s.db.View(ctx, func(st *memdb.State) error {
		for _, entry := range st.Audit {
			if filter.TableName != "" && entry.TableName != filter.TableName {
				continue
			}
			if filter.RowID != nil && entry.RowID != *filter.RowID {
				continue
			}
			out = append(out, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	limit, offset := filter.Limit, filter.Offset
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Unshipped(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	err := s.db.View(ctx, func(st *memdb.State) error {
		for _, entry := range st.Audit {
			if entry.ShippedAt != nil {
				continue
			}
			out = append(out, entry)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MemoryStore) MarkShipped(ctx context.Context, ids []domain.ID, at time.Time) error {
	marked := make(map[domain.ID]bool, len(ids))
	for _, id := range ids {
		marked[id] = true
	}
	return s.db.Update(ctx, func(st *memdb.State) error {
		for i := range st.Audit {
			if marked[st.Audit[i].ID] && st.Audit[i].ShippedAt == nil {
				shipped := at
				st.Audit[i].ShippedAt = &shipped
			}
		}
		return nil
	})
}
