package instrument

import (
	"context"
	"sort"
	"time"

	"metrology/internal/domain"
	"metrology/internal/store/memdb"
	domainerrors "metrology/pkg/domain-errors"
)

// MemoryStore implements Store against the shared in-memory database. It
// keeps the same constraint names as the SQL schema so error assertions
// hold on both backends.
type MemoryStore struct {
	db *memdb.DB
}

func NewMemoryStore(db *memdb.DB) *MemoryStore {
	return &MemoryStore{db: db}
}

func (s *MemoryStore) CreateType(ctx context.Context, t domain.InstrumentType) error {
	return s.db.Update(ctx, func(st *memdb.State) error {
		for _, existing := range st.InstrumentTypes {
			if existing.Code == t.Code {
				return domainerrors.New(domainerrors.CodeConflict, "duplicate instrument type code").
					WithConstraint("uq_instrument_type_code")
			}
		}
		st.InstrumentTypes[t.ID] = t
		return nil
	})
}

func (s *MemoryStore) GetType(ctx context.Context, id domain.ID) (domain.InstrumentType, error) {
	var t domain.InstrumentType
	err := s.db.View(ctx, func(st *memdb.State) error {
		var ok bool
		if t, ok = st.InstrumentTypes[id]; !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "instrument type not found")
		}
		return nil
	})
	return t, err
}

func (s *MemoryStore) ListTypes(ctx context.Context, limit, offset int) ([]domain.InstrumentType, error) {
	var types []domain.InstrumentType
	err := s.db.View(ctx, func(st *memdb.State) error {
		for _, t := range st.InstrumentTypes {
			types = append(types, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(types, func(i, j int) bool { return types[i].Code < types[j].Code })
	return page(types, limit, offset), nil
}

func (s *MemoryStore) CreateModel(ctx context.Context, m domain.InstrumentModel) error {
	return s.db.Update(ctx, func(st *memdb.State) error {
		if _, ok := st.InstrumentTypes[m.InstrumentTypeID]; !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "instrument type not found")
		}
		for _, existing := range st.InstrumentModels {
			if existing.InstrumentTypeID == m.InstrumentTypeID &&
				existing.Manufacturer == m.Manufacturer &&
				existing.ModelName == m.ModelName {
				return domainerrors.New(domainerrors.CodeConflict, "duplicate instrument model").
					WithConstraint("uq_model")
			}
		}
		st.InstrumentModels[m.ID] = m
		return nil
	})
}

func (s *MemoryStore) GetModel(ctx context.Context, id domain.ID) (domain.InstrumentModel, error) {
	var m domain.InstrumentModel
	err := s.db.View(ctx, func(st *memdb.State) error {
		var ok bool
		if m, ok = st.InstrumentModels[id]; !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "instrument model not found")
		}
		return nil
	})
	return m, err
}

func (s *MemoryStore) ListModels(ctx context.Context, limit, offset int) ([]domain.InstrumentModel, error) {
	var models []domain.InstrumentModel
	err := s.db.View(ctx, func(st *memdb.State) error {
		for _, m := range st.InstrumentModels {
			models = append(models, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(models, func(i, j int) bool {
		if models[i].Manufacturer != models[j].Manufacturer {
			return models[i].Manufacturer < models[j].Manufacturer
		}
		return models[i].ModelName < models[j].ModelName
	})
	return page(models, limit, offset), nil
}

func (s *MemoryStore) Create(ctx context.Context, inst domain.Instrument) error {
	return s.db.Update(ctx, func(st *memdb.State) error {
		if _, ok := st.InstrumentModels[inst.ModelID]; !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "instrument model not found")
		}
		if _, ok := st.OrgUnits[inst.OrgUnitID]; !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "org unit not found")
		}
		if _, ok := st.Locations[inst.LocationID]; !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "location not found")
		}
		for _, existing := range st.Instruments {
			if existing.InventoryNo == inst.InventoryNo {
				return domainerrors.New(domainerrors.CodeConflict, "duplicate inventory number").
					WithConstraint("uq_instrument_inventory")
			}
		}
		st.Instruments[inst.ID] = inst
		return nil
	})
}

func (s *MemoryStore) Get(ctx context.Context, id domain.ID) (domain.Instrument, error) {
	var inst domain.Instrument
	err := s.db.View(ctx, func(st *memdb.State) error {
		var ok bool
		if inst, ok = st.Instruments[id]; !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "instrument not found")
		}
		return nil
	})
	return inst, err
}

func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]domain.Instrument, error) {
	var insts []domain.Instrument
	err := s.db.View(ctx, func(st *memdb.State) error {
		for _, inst := range st.Instruments {
			if filter.OrgUnitID != nil && inst.OrgUnitID != *filter.OrgUnitID {
				continue
			}
			if filter.LocationID != nil && inst.LocationID != *filter.LocationID {
				continue
			}
			if filter.StatusID != nil && inst.StatusID != *filter.StatusID {
				continue
			}
			if filter.ModelID != nil && inst.ModelID != *filter.ModelID {
				continue
			}
			insts = append(insts, inst)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(insts, func(i, j int) bool { return insts[i].InventoryNo < insts[j].InventoryNo })
	return page(insts, filter.Limit, filter.Offset), nil
}

func (s *MemoryStore) Update(ctx context.Context, inst domain.Instrument) error {
	return s.db.Update(ctx, func(st *memdb.State) error {
		if _, ok := st.Instruments[inst.ID]; !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "instrument not found")
		}
		if _, ok := st.Locations[inst.LocationID]; !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "location not found")
		}
		for _, existing := range st.Instruments {
			if existing.ID != inst.ID && existing.InventoryNo == inst.InventoryNo {
				return domainerrors.New(domainerrors.CodeConflict, "duplicate inventory number").
					WithConstraint("uq_instrument_inventory")
			}
		}
		st.Instruments[inst.ID] = inst
		return nil
	})
}

func (s *MemoryStore) AppendHistory(ctx context.Context, entry domain.StatusHistoryEntry) error {
	return s.db.Update(ctx, func(st *memdb.State) error {
		for _, existing := range st.History[entry.InstrumentID] {
			if existing.ValidTo == nil {
				return domainerrors.New(domainerrors.CodeConflict, "instrument already has an open status interval").
					WithConstraint("uq_ish_one_open")
			}
		}
		st.History[entry.InstrumentID] = append(st.History[entry.InstrumentID], entry)
		return nil
	})
}

func (s *MemoryStore) CloseOpenHistory(ctx context.Context, instrumentID domain.ID, at time.Time) error {
	return s.db.Update(ctx, func(st *memdb.State) error {
		entries := st.History[instrumentID]
		for i := range entries {
			if entries[i].ValidTo == nil {
				closed := at
				entries[i].ValidTo = &closed
				return nil
			}
		}
		return nil
	})
}

func (s *MemoryStore) ListHistory(ctx context.Context, instrumentID domain.ID) ([]domain.StatusHistoryEntry, error) {
	var entries []domain.StatusHistoryEntry
	err := s.db.View(ctx, func(st *memdb.State) error {
		entries = append(entries, st.History[instrumentID]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ValidFrom.Before(entries[j].ValidFrom) })
	return entries, nil
}

func (s *MemoryStore) ResolveStatus(ctx context.Context, code string) (domain.LookupRow, error) {
	var row domain.LookupRow
	err := s.db.View(ctx, func(st *memdb.State) error {
		var ok bool
		if row, ok = st.InstrumentStatus(code); !ok {
			return domainerrors.Newf(domainerrors.CodeConfiguration, "instrument status %s not seeded", code)
		}
		return nil
	})
	return row, err
}

func (s *MemoryStore) LocationOrgUnit(ctx context.Context, locationID domain.ID) (domain.ID, error) {
	var owner domain.ID
	err := s.db.View(ctx, func(st *memdb.State) error {
		loc, ok := st.Locations[locationID]
		if !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "location not found")
		}
		owner = loc.OrgUnitID
		return nil
	})
	return owner, err
}

func page[T any](items []T, limit, offset int) []T {
	if offset > len(items) {
		offset = len(items)
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
