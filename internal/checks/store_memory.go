package checks

import (
	"context"
	"sort"
	"time"

	"metrology/internal/domain"
	"metrology/internal/store/memdb"
	domainerrors "metrology/pkg/domain-errors"
)

// MemoryStore implements Store against the shared in-memory database with
// the same constraint names as the SQL schema.
type MemoryStore struct {
	db *memdb.DB
}

func NewMemoryStore(db *memdb.DB) *MemoryStore {
	return &MemoryStore{db: db}
}

func (s *MemoryStore) CreateCheckType(ctx context.Context, ct domain.CheckType) error {
	return s.db.Update(ctx, func(st *memdb.State) error {
		for _, existing := range st.CheckTypes {
			if existing.Code == ct.Code {
				return domainerrors.New(domainerrors.CodeConflict, "duplicate check type code").
					WithConstraint("uq_check_type_code")
			}
		}
		st.CheckTypes[ct.ID] = ct
		return nil
	})
}

func (s *MemoryStore) GetCheckType(ctx context.Context, id domain.ID) (domain.CheckType, error) {
	var ct domain.CheckType
	err := s.db.View(ctx, func(st *memdb.State) error {
		var ok bool
		if ct, ok = st.CheckTypes[id]; !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "check type not found")
		}
		return nil
	})
	return ct, err
}

func (s *MemoryStore) ListCheckTypes(ctx context.Context, limit, offset int) ([]domain.CheckType, error) {
	var types []domain.CheckType
	err := s.db.View(ctx, func(st *memdb.State) error {
		for _, ct := range st.CheckTypes {
			types = append(types, ct)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(types, func(i, j int) bool { return types[i].Code < types[j].Code })
	return page(types, limit, offset), nil
}

func (s *MemoryStore) CreateRequirement(ctx context.Context, req domain.CheckRequirement) error {
	return s.db.Update(ctx, func(st *memdb.State) error {
		if _, ok := st.InstrumentModels[req.ModelID]; !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "instrument model not found")
		}
		if _, ok := st.CheckTypes[req.CheckTypeID]; !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "check type not found")
		}
		for _, existing := range st.Requirements {
			if existing.ModelID == req.ModelID && existing.CheckTypeID == req.CheckTypeID {
				return domainerrors.New(domainerrors.CodeConflict, "model already has a requirement for this check type").
					WithConstraint("uq_req")
			}
		}
		st.Requirements[req.ID] = req
		return nil
	})
}

func (s *MemoryStore) GetRequirement(ctx context.Context, id domain.ID) (domain.CheckRequirement, error) {
	var req domain.CheckRequirement
	err := s.db.View(ctx, func(st *memdb.State) error {
		var ok bool
		if req, ok = st.Requirements[id]; !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "check requirement not found")
		}
		return nil
	})
	return req, err
}

func (s *MemoryStore) RequirementFor(ctx context.Context, modelID, checkTypeID domain.ID) (domain.CheckRequirement, error) {
	var req domain.CheckRequirement
	err := s.db.View(ctx, func(st *memdb.State) error {
		for _, existing := range st.Requirements {
			if existing.ModelID == modelID && existing.CheckTypeID == checkTypeID {
				req = existing
				return nil
			}
		}
		return domainerrors.New(domainerrors.CodeNotFound, "check requirement not found")
	})
	return req, err
}

func (s *MemoryStore) ListRequirements(ctx context.Context, modelID *domain.ID, limit, offset int) ([]domain.CheckRequirement, error) {
	var reqs []domain.CheckRequirement
	err := s.db.View(ctx, func(st *memdb.State) error {
		for _, req := range st.Requirements {
			if modelID != nil && req.ModelID != *modelID {
				continue
			}
			reqs = append(reqs, req)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].ID.String() < reqs[j].ID.String() })
	return page(reqs, limit, offset), nil
}

func (s *MemoryStore) UpdateRequirement(ctx context.Context, req domain.CheckRequirement) error {
	return s.db.Update(ctx, func(st *memdb.State) error {
		if _, ok := st.Requirements[req.ID]; !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "check requirement not found")
		}
		st.Requirements[req.ID] = req
		return nil
	})
}

func (s *MemoryStore) DeleteRequirement(ctx context.Context, id domain.ID) error {
	return s.db.Update(ctx, func(st *memdb.State) error {
		if _, ok := st.Requirements[id]; !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "check requirement not found")
		}
		delete(st.Requirements, id)
		return nil
	})
}

func (s *MemoryStore) CreatePlan(ctx context.Context, plan domain.CheckPlan) error {
	return s.db.Update(ctx, func(st *memdb.State) error {
		return insertPlan(st, plan)
	})
}

func (s *MemoryStore) CreatePlanSkipConflict(ctx context.Context, plan domain.CheckPlan) (bool, error) {
	inserted := false
	err := s.db.Update(ctx, func(st *memdb.State) error {
		if err := insertPlan(st, plan); err != nil {
			if domainerrors.Is(err, domainerrors.CodeConflict) &&
				domainerrors.ConstraintOf(err) == "uq_check_plan" {
				return nil
			}
			return err
		}
		inserted = true
		return nil
	})
	return inserted, err
}

func insertPlan(st *memdb.State, plan domain.CheckPlan) error {
	if _, ok := st.Instruments[plan.InstrumentID]; !ok {
		return domainerrors.New(domainerrors.CodeNotFound, "instrument not found")
	}
	if _, ok := st.CheckTypes[plan.CheckTypeID]; !ok {
		return domainerrors.New(domainerrors.CodeNotFound, "check type not found")
	}
	for _, existing := range st.Plans {
		if existing.InstrumentID == plan.InstrumentID &&
			existing.CheckTypeID == plan.CheckTypeID &&
			existing.DueDate.Equal(plan.DueDate) {
			return domainerrors.New(domainerrors.CodeConflict, "plan already exists for this instrument, check type, and due date").
				WithConstraint("uq_check_plan")
		}
	}
	st.Plans[plan.ID] = plan
	return nil
}

func (s *MemoryStore) GetPlan(ctx context.Context, id domain.ID) (domain.CheckPlan, error) {
	var plan domain.CheckPlan
	err := s.db.View(ctx, func(st *memdb.State) error {
		var ok bool
		if plan, ok = st.Plans[id]; !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "check plan not found")
		}
		return nil
	})
	return plan, err
}

func (s *MemoryStore) ListPlans(ctx context.Context, filter PlanFilter) ([]domain.CheckPlan, error) {
	var plans []domain.CheckPlan
	err := s.db.View(ctx, func(st *memdb.State) error {
		for _, plan := range st.Plans {
			if filter.InstrumentID != nil && plan.InstrumentID != *filter.InstrumentID {
				continue
			}
			if filter.StatusID != nil && plan.StatusID != *filter.StatusID {
				continue
			}
			if filter.DueFrom != nil && plan.DueDate.Before(*filter.DueFrom) {
				continue
			}
			if filter.DueTo != nil && plan.DueDate.After(*filter.DueTo) {
				continue
			}
			plans = append(plans, plan)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(plans, func(i, j int) bool {
		if !plans[i].DueDate.Equal(plans[j].DueDate) {
			return plans[i].DueDate.Before(plans[j].DueDate)
		}
		return plans[i].ID.String() < plans[j].ID.String()
	})
	return page(plans, filter.Limit, filter.Offset), nil
}

func (s *MemoryStore) SetPlanStatus(ctx context.Context, planID, statusID domain.ID) error {
	return s.db.Update(ctx, func(st *memdb.State) error {
		plan, ok := st.Plans[planID]
		if !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "check plan not found")
		}
		plan.StatusID = statusID
		st.Plans[planID] = plan
		return nil
	})
}

func (s *MemoryStore) CreateEvent(ctx context.Context, event domain.CheckEvent) error {
	return s.db.Update(ctx, func(st *memdb.State) error {
		if _, ok := st.Instruments[event.InstrumentID]; !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "instrument not found")
		}
		if _, ok := st.Labs[event.LabID]; !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "lab not found")
		}
		if event.PlanID != nil {
			for _, existing := range st.Events {
				if existing.PlanID != nil && *existing.PlanID == *event.PlanID {
					return domainerrors.New(domainerrors.CodeConflict, "plan is already consumed by another event").
						WithConstraint("uq_event_plan")
				}
			}
		}
		st.Events[event.ID] = event
		return nil
	})
}

func (s *MemoryStore) GetEvent(ctx context.Context, id domain.ID) (domain.CheckEvent, error) {
	var event domain.CheckEvent
	err := s.db.View(ctx, func(st *memdb.State) error {
		var ok bool
		if event, ok = st.Events[id]; !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "check event not found")
		}
		return nil
	})
	return event, err
}

func (s *MemoryStore) ListEvents(ctx context.Context, instrumentID domain.ID, limit, offset int) ([]domain.CheckEvent, error) {
	var events []domain.CheckEvent
	err := s.db.View(ctx, func(st *memdb.State) error {
		for _, event := range st.Events {
			if event.InstrumentID == instrumentID {
				events = append(events, event)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].CheckDate.Equal(events[j].CheckDate) {
			return events[i].CheckDate.Before(events[j].CheckDate)
		}
		return events[i].ID.String() < events[j].ID.String()
	})
	return page(events, limit, offset), nil
}

func (s *MemoryStore) CreateDocument(ctx context.Context, doc domain.Document) error {
	return s.db.Update(ctx, func(st *memdb.State) error {
		st.Documents[doc.ID] = doc
		return nil
	})
}

func (s *MemoryStore) GetDocument(ctx context.Context, id domain.ID) (domain.Document, error) {
	var doc domain.Document
	err := s.db.View(ctx, func(st *memdb.State) error {
		var ok bool
		if doc, ok = st.Documents[id]; !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "document not found")
		}
		return nil
	})
	return doc, err
}

func (s *MemoryStore) LinkEventDocument(ctx context.Context, eventID, documentID domain.ID) error {
	return s.db.Update(ctx, func(st *memdb.State) error {
		if _, ok := st.Events[eventID]; !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "check event not found")
		}
		if _, ok := st.Documents[documentID]; !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "document not found")
		}
		st.EventDocs[eventID] = append(st.EventDocs[eventID], documentID)
		return nil
	})
}

func (s *MemoryStore) EventDocuments(ctx context.Context, eventID domain.ID) ([]domain.Document, error) {
	var docs []domain.Document
	err := s.db.View(ctx, func(st *memdb.State) error {
		for _, docID := range st.EventDocs[eventID] {
			if doc, ok := st.Documents[docID]; ok {
				docs = append(docs, doc)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID.String() < docs[j].ID.String() })
	return docs, nil
}

func (s *MemoryStore) InstrumentModel(ctx context.Context, instrumentID domain.ID) (domain.ID, error) {
	var modelID domain.ID
	err := s.db.View(ctx, func(st *memdb.State) error {
		inst, ok := st.Instruments[instrumentID]
		if !ok {
			return domainerrors.New(domainerrors.CodeNotFound, "instrument not found")
		}
		modelID = inst.ModelID
		return nil
	})
	return modelID, err
}

func (s *MemoryStore) DueRows(ctx context.Context) ([]domain.CheckDueRow, error) {
	var out []domain.CheckDueRow
	err := s.db.View(ctx, func(st *memdb.State) error {
		out = dueRows(st)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// dueRows reproduces the last-success rollup: for every (instrument, check
// type) pair, the latest successful event and its stored due date.
func dueRows(st *memdb.State) []domain.CheckDueRow {
	type pair struct{ inst, ct domain.ID }
	latest := make(map[pair]domain.CheckEvent)
	for _, event := range st.Events {
		result, ok := st.ResultStatusByID(event.ResultID)
		if !ok || !result.IsSuccess {
			continue
		}
		key := pair{event.InstrumentID, event.CheckTypeID}
		if prev, ok := latest[key]; !ok || event.CheckDate.After(prev.CheckDate) {
			latest[key] = event
		}
	}

	var out []domain.CheckDueRow
	for key, event := range latest {
		if event.NextDueDate == nil {
			continue
		}
		inst, ok := st.Instruments[key.inst]
		if !ok {
			continue
		}
		ct, ok := st.CheckTypes[key.ct]
		if !ok {
			continue
		}
		out = append(out, domain.CheckDueRow{
			InstrumentID:  inst.ID,
			InventoryNo:   inst.InventoryNo,
			SerialNo:      inst.SerialNo,
			OrgUnitID:     inst.OrgUnitID,
			LocationID:    inst.LocationID,
			CheckTypeID:   ct.ID,
			CheckTypeCode: ct.Code,
			LastCheckDate: event.CheckDate,
			NextDueDate:   *event.NextDueDate,
			ProtocolNo:    event.ProtocolNo,
			LabID:         event.LabID,
			SpecialistID:  event.SpecialistID,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].NextDueDate.Equal(out[j].NextDueDate) {
			return out[i].NextDueDate.Before(out[j].NextDueDate)
		}
		return out[i].InventoryNo < out[j].InventoryNo
	})
	return out
}

func (s *MemoryStore) DueCandidates(ctx context.Context, from, to time.Time) ([]PlanCandidate, error) {
	var out []PlanCandidate
	err := s.db.View(ctx, func(st *memdb.State) error {
		active, ok := st.InstrumentStatus(domain.StatusActive)
		if !ok {
			return domainerrors.New(domainerrors.CodeConfiguration, "instrument status ACTIVE not seeded")
		}
		for _, row := range dueRows(st) {
			if row.NextDueDate.Before(from) || row.NextDueDate.After(to) {
				continue
			}
			inst := st.Instruments[row.InstrumentID]
			if inst.StatusID != active.ID {
				continue
			}
			out = append(out, PlanCandidate{
				InstrumentID: row.InstrumentID,
				CheckTypeID:  row.CheckTypeID,
				DueDate:      row.NextDueDate,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MemoryStore) ResolveResult(ctx context.Context, code string) (domain.ResultStatusRow, error) {
	var row domain.ResultStatusRow
	err := s.db.View(ctx, func(st *memdb.State) error {
		var ok bool
		if row, ok = st.ResultStatus(code); !ok {
			return domainerrors.Newf(domainerrors.CodeValidation, "unknown result code %s", code)
		}
		return nil
	})
	return row, err
}

func (s *MemoryStore) ResolvePlanStatus(ctx context.Context, code string) (domain.LookupRow, error) {
	var row domain.LookupRow
	err := s.db.View(ctx, func(st *memdb.State) error {
		var ok bool
		if row, ok = st.PlanStatus(code); !ok {
			return domainerrors.Newf(domainerrors.CodeConfiguration, "plan status %s not seeded", code)
		}
		return nil
	})
	return row, err
}

func (s *MemoryStore) ResolveCheckKind(ctx context.Context, code string) (domain.LookupRow, error) {
	var row domain.LookupRow
	err := s.db.View(ctx, func(st *memdb.State) error {
		var ok bool
		if row, ok = st.CheckKind(code); !ok {
			return domainerrors.Newf(domainerrors.CodeValidation, "unknown check kind %s", code)
		}
		return nil
	})
	return row, err
}

func (s *MemoryStore) ResolveDocumentType(ctx context.Context, code string) (domain.LookupRow, error) {
	var row domain.LookupRow
	err := s.db.View(ctx, func(st *memdb.State) error {
		var ok bool
		if row, ok = st.DocumentType(code); !ok {
			return domainerrors.Newf(domainerrors.CodeValidation, "unknown document type %s", code)
		}
		return nil
	})
	return row, err
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
