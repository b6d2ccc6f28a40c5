package directory

import (
	"context"
	"sort"

	"metrology/internal/domain"
	"metrology/internal/store/memdb"
	domainerrors "metrology/pkg/domain-errors"
)

// MemoryStore keeps directory rows in the shared in-memory database.
type MemoryStore struct {
	db *memdb.DB
}

func NewMemoryStore(db *memdb.DB) *MemoryStore {
	return &MemoryStore{db: db}
}

func (s *MemoryStore) CreateOrgUnit(ctx context.Context, unit domain.OrgUnit) error {
	return s.db.Update(ctx, func(st *memdb.State) error {
		for _, existing := range st.OrgUnits {
			if existing.Code == unit.Code {
				return domainerrors.New(domainerrors.CodeConflict, "duplicate org unit code").
					WithConstraint("uq_org_unit_code")
			}
		}
		if unit.ParentID != nil {
			if _, ok := st.OrgUnits[*unit.ParentID]; !ok {
				return domainerrors.New(domainerrors.CodeNotFound, "parent org unit not found")
			}
		}
		st.OrgUnits[unit.ID] = unit
		return nil
	})
}

func (s *MemoryStore) GetOrgUnit(ctx context.Context, id domain.ID) (domain.OrgUnit, error) {
	var unit domain.OrgUnit
	err := s.db.View(ctx, func(st *memdb.State) error {
		found, ok := st.OrgUnits[id]
		if !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "org unit not found")
		}
		unit = found
		return nil
	})
	return unit, err
}

func (s *MemoryStore) ListOrgUnits(ctx context.Context, limit, offset int) ([]domain.OrgUnit, error) {
	var units []domain.OrgUnit
	err := s.db.View(ctx, func(st *memdb.State) error {
		for _, unit := range st.OrgUnits {
			units = append(units, unit)
		}
		sort.Slice(units, func(i, j int) bool { return units[i].Code < units[j].Code })
		units = page(units, limit, offset)
		return nil
	})
	return units, err
}

func (s *MemoryStore) DeleteOrgUnit(ctx context.Context, id domain.ID) error {
	return s.db.Update(ctx, func(st *memdb.State) error {
		if _, ok := st.OrgUnits[id]; !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "org unit not found")
		}
		for _, loc := range st.Locations {
			if loc.OrgUnitID == id {
				return domainerrors.New(domainerrors.CodeConflict, "org unit is referenced").
					WithConstraint("fk_location_org_unit")
			}
		}
		for _, inst := range st.Instruments {
			if inst.OrgUnitID == id {
				return domainerrors.New(domainerrors.CodeConflict, "org unit is referenced").
					WithConstraint("fk_instrument_org_unit")
			}
		}
		for _, unit := range st.OrgUnits {
			if unit.ParentID != nil && *unit.ParentID == id {
				return domainerrors.New(domainerrors.CodeConflict, "org unit is referenced").
					WithConstraint("fk_org_unit_parent")
			}
		}
		delete(st.OrgUnits, id)
		return nil
	})
}

func (s *MemoryStore) CreateLocation(ctx context.Context, loc domain.Location) error {
	return s.db.Update(ctx, func(st *memdb.State) error {
		if _, ok := st.OrgUnits[loc.OrgUnitID]; !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "org unit not found")
		}
		for _, existing := range st.Locations {
			if existing.OrgUnitID == loc.OrgUnitID && existing.Code == loc.Code {
				return domainerrors.New(domainerrors.CodeConflict, "duplicate location code").
					WithConstraint("uq_location_org_unit_code")
			}
		}
		st.Locations[loc.ID] = loc
		return nil
	})
}

func (s *MemoryStore) GetLocation(ctx context.Context, id domain.ID) (domain.Location, error) {
	var loc domain.Location
	err := s.db.View(ctx, func(st *memdb.State) error {
		found, ok := st.Locations[id]
		if !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "location not found")
		}
		loc = found
		return nil
	})
	return loc, err
}

func (s *MemoryStore) ListLocations(ctx context.Context, limit, offset int) ([]domain.Location, error) {
	var locs []domain.Location
	err := s.db.View(ctx, func(st *memdb.State) error {
		for _, loc := range st.Locations {
			locs = append(locs, loc)
		}
		sort.Slice(locs, func(i, j int) bool { return locs[i].Code < locs[j].Code })
		locs = page(locs, limit, offset)
		return nil
	})
	return locs, err
}

func (s *MemoryStore) CreateLab(ctx context.Context, lab domain.Lab) error {
	return s.db.Update(ctx, func(st *memdb.State) error {
		for _, existing := range st.Labs {
			if existing.Code == lab.Code {
				return domainerrors.New(domainerrors.CodeConflict, "duplicate lab code").
					WithConstraint("uq_lab_code")
			}
		}
		st.Labs[lab.ID] = lab
		return nil
	})
}

func (s *MemoryStore) GetLab(ctx context.Context, id domain.ID) (domain.Lab, error) {
	var lab domain.Lab
	err := s.db.View(ctx, func(st *memdb.State) error {
		found, ok := st.Labs[id]
		if !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "lab not found")
		}
		lab = found
		return nil
	})
	return lab, err
}

func (s *MemoryStore) ListLabs(ctx context.Context, limit, offset int) ([]domain.Lab, error) {
	var labs []domain.Lab
	err := s.db.View(ctx, func(st *memdb.State) error {
		for _, lab := range st.Labs {
			labs = append(labs, lab)
		}
		sort.Slice(labs, func(i, j int) bool { return labs[i].Code < labs[j].Code })
		labs = page(labs, limit, offset)
		return nil
	})
	return labs, err
}

func (s *MemoryStore) CreateSpecialist(ctx context.Context, sp domain.Specialist) error {
	return s.db.Update(ctx, func(st *memdb.State) error {
		if sp.LabID != nil {
			if _, ok := st.Labs[*sp.LabID]; !ok {
				return domainerrors.New(domainerrors.CodeNotFound, "lab not found")
			}
		}
		st.Specialists[sp.ID] = sp
		return nil
	})
}

func (s *MemoryStore) GetSpecialist(ctx context.Context, id domain.ID) (domain.Specialist, error) {
	var sp domain.Specialist
	err := s.db.View(ctx, func(st *memdb.State) error {
		found, ok := st.Specialists[id]
		if !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "specialist not found")
		}
		sp = found
		return nil
	})
	return sp, err
}

func (s *MemoryStore) ListSpecialists(ctx context.Context, limit, offset int) ([]domain.Specialist, error) {
	var sps []domain.Specialist
	err := s.db.View(ctx, func(st *memdb.State) error {
		for _, sp := range st.Specialists {
			sps = append(sps, sp)
		}
		sort.Slice(sps, func(i, j int) bool { return sps[i].FullName < sps[j].FullName })
		sps = page(sps, limit, offset)
		return nil
	})
	return sps, err
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
