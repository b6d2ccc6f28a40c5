// Package service implements the checks lifecycle operations: cadence
// requirement management, atomic check event registration, and idempotent
// plan generation. Every mutation runs in one transaction with its derived
// writes and audit entries.
package service

import (
	"context"
	"log/slog"
	"time"

	"metrology/internal/audit"
	"metrology/internal/checks"
	"metrology/internal/domain"
	"metrology/internal/platform/metrics"
	domainerrors "metrology/pkg/domain-errors"
	"metrology/pkg/tx"
)

type Service struct {
	store   checks.Store
	audit   *audit.Recorder
	runner  tx.Runner
	metrics *metrics.Metrics
	log     *slog.Logger
	clock   domain.Clock
}

func New(store checks.Store, recorder *audit.Recorder, runner tx.Runner, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		store:   store,
		audit:   recorder,
		runner:  runner,
		metrics: m,
		log:     log,
		clock:   time.Now,
	}
}

// WithClock overrides the timestamp source. For tests.
func (s *Service) WithClock(clock domain.Clock) *Service {
	s.clock = clock
	return s
}

func (s *Service) CreateCheckType(ctx context.Context, code, name, kindCode string) (domain.CheckType, error) {
	if code == "" || name == "" {
		return domain.CheckType{}, domainerrors.New(domainerrors.CodeValidation, "check type code and name are required")
	}
	kind, err := s.store.ResolveCheckKind(ctx, kindCode)
	if err != nil {
		return domain.CheckType{}, err
	}
	ct := domain.CheckType{ID: domain.NewID(), Code: code, Name: name, KindID: kind.ID}
	if err := s.store.CreateCheckType(ctx, ct); err != nil {
		return domain.CheckType{}, err
	}
	return ct, nil
}

func (s *Service) ListCheckTypes(ctx context.Context, limit, offset int) ([]domain.CheckType, error) {
	return s.store.ListCheckTypes(ctx, normalizeLimit(limit), offset)
}

// CreateRequirement attaches a check cadence to an instrument model.
func (s *Service) CreateRequirement(ctx context.Context, req domain.CheckRequirement) (domain.CheckRequirement, error) {
	if req.ID == (domain.ID{}) {
		req.ID = domain.NewID()
	}
	if req.IntervalMonths <= 0 {
		return domain.CheckRequirement{}, domainerrors.New(domainerrors.CodeValidation, "interval_months must be positive").
			WithConstraint("ck_interval_months")
	}
	if req.GraceDays < 0 {
		return domain.CheckRequirement{}, domainerrors.New(domainerrors.CodeValidation, "grace_days must not be negative").
			WithConstraint("ck_grace_days")
	}
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreateRequirement(ctx, req); err != nil {
			return err
		}
		return s.audit.Record(ctx, domain.AuditInsert, domain.TableCheckRequirement, req.ID, nil, req)
	})
	if err != nil {
		return domain.CheckRequirement{}, err
	}
	return req, nil
}

func (s *Service) GetRequirement(ctx context.Context, id domain.ID) (domain.CheckRequirement, error) {
	return s.store.GetRequirement(ctx, id)
}

func (s *Service) ListRequirements(ctx context.Context, modelID *domain.ID, limit, offset int) ([]domain.CheckRequirement, error) {
	return s.store.ListRequirements(ctx, modelID, normalizeLimit(limit), offset)
}

func (s *Service) UpdateRequirement(ctx context.Context, req domain.CheckRequirement) (domain.CheckRequirement, error) {
	if req.IntervalMonths <= 0 {
		return domain.CheckRequirement{}, domainerrors.New(domainerrors.CodeValidation, "interval_months must be positive").
			WithConstraint("ck_interval_months")
	}
	if req.GraceDays < 0 {
		return domain.CheckRequirement{}, domainerrors.New(domainerrors.CodeValidation, "grace_days must not be negative").
			WithConstraint("ck_grace_days")
	}
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		old, err := s.store.GetRequirement(ctx, req.ID)
		if err != nil {
			return err
		}
		req.ModelID = old.ModelID
		req.CheckTypeID = old.CheckTypeID
		if err := s.store.UpdateRequirement(ctx, req); err != nil {
			return err
		}
		return s.audit.Record(ctx, domain.AuditUpdate, domain.TableCheckRequirement, req.ID, old, req)
	})
	if err != nil {
		return domain.CheckRequirement{}, err
	}
	return req, nil
}

func (s *Service) DeleteRequirement(ctx context.Context, id domain.ID) error {
	return s.runner.RunInTx(ctx, func(ctx context.Context) error {
		old, err := s.store.GetRequirement(ctx, id)
		if err != nil {
			return err
		}
		if err := s.store.DeleteRequirement(ctx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, domain.AuditDelete, domain.TableCheckRequirement, id, old, nil)
	})
}

// CreateDocument registers an externally stored file reference.
func (s *Service) CreateDocument(ctx context.Context, typeCode, title, storageRef string, sha256 *string) (domain.Document, error) {
	if title == "" || storageRef == "" {
		return domain.Document{}, domainerrors.New(domainerrors.CodeValidation, "document title and storage_ref are required")
	}
	docType, err := s.store.ResolveDocumentType(ctx, typeCode)
	if err != nil {
		return domain.Document{}, err
	}
	doc := domain.Document{
		ID:         domain.NewID(),
		TypeID:     docType.ID,
		Title:      title,
		StorageRef: storageRef,
		SHA256:     sha256,
		CreatedAt:  s.clock().UTC(),
	}
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreateDocument(ctx, doc); err != nil {
			return err
		}
		return s.audit.Record(ctx, domain.AuditInsert, domain.TableDocument, doc.ID, nil, doc)
	})
	if err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

func (s *Service) GetDocument(ctx context.Context, id domain.ID) (domain.Document, error) {
	return s.store.GetDocument(ctx, id)
}

// CreatePlan schedules a check manually. Generated plans go through
// GeneratePlans instead.
func (s *Service) CreatePlan(ctx context.Context, plan domain.CheckPlan) (domain.CheckPlan, error) {
	if plan.ID == (domain.ID{}) {
		plan.ID = domain.NewID()
	}
	if plan.DueDate.IsZero() {
		return domain.CheckPlan{}, domainerrors.New(domainerrors.CodeValidation, "due_date is required")
	}
	plan.DueDate = domain.Date(plan.DueDate)
	plan.CreatedAt = s.clock().UTC()

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if plan.StatusID == (domain.ID{}) {
			status, err := s.store.ResolvePlanStatus(ctx, domain.PlanPlanned)
			if err != nil {
				return err
			}
			plan.StatusID = status.ID
		}
		if err := s.store.CreatePlan(ctx, plan); err != nil {
			return err
		}
		return s.audit.Record(ctx, domain.AuditInsert, domain.TableCheckPlan, plan.ID, nil, plan)
	})
	if err != nil {
		return domain.CheckPlan{}, err
	}
	return plan, nil
}

func (s *Service) GetPlan(ctx context.Context, id domain.ID) (domain.CheckPlan, error) {
	return s.store.GetPlan(ctx, id)
}

func (s *Service) ListPlans(ctx context.Context, filter checks.PlanFilter) ([]domain.CheckPlan, error) {
	filter.Limit = normalizeLimit(filter.Limit)
	return s.store.ListPlans(ctx, filter)
}

// CancelPlan marks a plan CANCELED. Consumed plans stay DONE.
func (s *Service) CancelPlan(ctx context.Context, id domain.ID) (domain.CheckPlan, error) {
	var plan domain.CheckPlan
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		old, err := s.store.GetPlan(ctx, id)
		if err != nil {
			return err
		}
		planned, err := s.store.ResolvePlanStatus(ctx, domain.PlanPlanned)
		if err != nil {
			return err
		}
		if old.StatusID != planned.ID {
			return domainerrors.New(domainerrors.CodeConsistency, "only planned checks can be canceled")
		}
		canceled, err := s.store.ResolvePlanStatus(ctx, domain.PlanCanceled)
		if err != nil {
			return err
		}
		if err := s.store.SetPlanStatus(ctx, id, canceled.ID); err != nil {
			return err
		}
		plan = old
		plan.StatusID = canceled.ID
		return s.audit.Record(ctx, domain.AuditUpdate, domain.TableCheckPlan, id, old, plan)
	})
	if err != nil {
		return domain.CheckPlan{}, err
	}
	return plan, nil
}

// RegisterEventInput carries everything a performed check reports. The due
// date is never part of it; the service derives it.
type RegisterEventInput struct {
	InstrumentID domain.ID
	CheckTypeID  domain.ID
	CheckDate    time.Time
	ResultCode   string
	LabID        domain.ID
	SpecialistID *domain.ID
	PlanID       *domain.ID
	ProtocolNo   *string
	Notes        *string
	DocumentIDs  []domain.ID
}

// RegisterEvent records a performed check atomically: the event row, its
// document links, the plan consumption, and the audit entries all commit
// together or not at all. A successful result derives the next due date from
// the model's cadence requirement; a failed or canceled one leaves it empty.
func (s *Service) RegisterEvent(ctx context.Context, input RegisterEventInput) (domain.CheckEvent, error) {
	start := s.clock()
	if input.CheckDate.IsZero() {
		return domain.CheckEvent{}, domainerrors.New(domainerrors.CodeValidation, "check_date is required")
	}

	event := domain.CheckEvent{
		ID:           domain.NewID(),
		InstrumentID: input.InstrumentID,
		PlanID:       input.PlanID,
		CheckTypeID:  input.CheckTypeID,
		LabID:        input.LabID,
		SpecialistID: input.SpecialistID,
		CheckDate:    domain.Date(input.CheckDate),
		ProtocolNo:   input.ProtocolNo,
		Notes:        input.Notes,
		CreatedAt:    start.UTC(),
	}

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		result, err := s.store.ResolveResult(ctx, input.ResultCode)
		if err != nil {
			return err
		}
		event.ResultID = result.ID

		modelID, err := s.store.InstrumentModel(ctx, input.InstrumentID)
		if err != nil {
			return err
		}
		if _, err := s.store.GetCheckType(ctx, input.CheckTypeID); err != nil {
			return err
		}

		var plan domain.CheckPlan
		if input.PlanID != nil {
			if plan, err = s.store.GetPlan(ctx, *input.PlanID); err != nil {
				return err
			}
			if err := checks.CheckPlanMatch(plan, input.InstrumentID, input.CheckTypeID); err != nil {
				return err
			}
		}

		if result.IsSuccess {
			req, err := s.store.RequirementFor(ctx, modelID, input.CheckTypeID)
			switch {
			case err == nil:
				event.NextDueDate = checks.NextDue(event.CheckDate, req.IntervalMonths, true)
			case domainerrors.Is(err, domainerrors.CodeNotFound):
				// no cadence requirement, no due date
			default:
				return err
			}
		}

		if err := s.store.CreateEvent(ctx, event); err != nil {
			return err
		}
		for _, docID := range input.DocumentIDs {
			if _, err := s.store.GetDocument(ctx, docID); err != nil {
				return err
			}
			if err := s.store.LinkEventDocument(ctx, event.ID, docID); err != nil {
				return err
			}
		}

		if input.PlanID != nil {
			done, err := s.store.ResolvePlanStatus(ctx, domain.PlanDone)
			if err != nil {
				return err
			}
			if err := s.store.SetPlanStatus(ctx, *input.PlanID, done.ID); err != nil {
				return err
			}
			updated := plan
			updated.StatusID = done.ID
			if err := s.audit.Record(ctx, domain.AuditUpdate, domain.TableCheckPlan, plan.ID, plan, updated); err != nil {
				return err
			}
		}
		return s.audit.Record(ctx, domain.AuditInsert, domain.TableCheckEvent, event.ID, nil, event)
	})
	if err != nil {
		return domain.CheckEvent{}, err
	}

	if s.metrics != nil {
		s.metrics.EventsRegistered.Inc()
		s.metrics.OperationDuration.WithLabelValues("check_event_register").Observe(s.clock().Sub(start).Seconds())
	}
	s.log.Info("check event registered",
		"event_id", event.ID,
		"instrument_id", event.InstrumentID,
		"result", input.ResultCode,
		"next_due", event.NextDueDate)
	return event, nil
}

func (s *Service) GetEvent(ctx context.Context, id domain.ID) (domain.CheckEvent, []domain.Document, error) {
	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return domain.CheckEvent{}, nil, err
	}
	docs, err := s.store.EventDocuments(ctx, id)
	if err != nil {
		return domain.CheckEvent{}, nil, err
	}
	return event, docs, nil
}

func (s *Service) ListEvents(ctx context.Context, instrumentID domain.ID, limit, offset int) ([]domain.CheckEvent, error) {
	return s.store.ListEvents(ctx, instrumentID, normalizeLimit(limit), offset)
}

// GeneratePlans schedules PLANNED checks for every ACTIVE instrument whose
// stored due date falls inside [from, to]. Pairs already holding a plan for
// that due date are skipped, so re-running the same window inserts nothing.
// Returns the number of plans inserted.
func (s *Service) GeneratePlans(ctx context.Context, from, to time.Time) (int, error) {
	start := s.clock()
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return 0, domainerrors.New(domainerrors.CodeValidation, "invalid generation range")
	}
	from, to = domain.Date(from), domain.Date(to)

	inserted := 0
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		planned, err := s.store.ResolvePlanStatus(ctx, domain.PlanPlanned)
		if err != nil {
			return err
		}
		candidates, err := s.store.DueCandidates(ctx, from, to)
		if err != nil {
			return err
		}
		for _, c := range candidates {
			plan := domain.CheckPlan{
				ID:           domain.NewID(),
				InstrumentID: c.InstrumentID,
				CheckTypeID:  c.CheckTypeID,
				DueDate:      c.DueDate,
				StatusID:     planned.ID,
				CreatedAt:    start.UTC(),
			}
			ok, err := s.store.CreatePlanSkipConflict(ctx, plan)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := s.audit.Record(ctx, domain.AuditInsert, domain.TableCheckPlan, plan.ID, nil, plan); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if s.metrics != nil {
		s.metrics.PlansGenerated.Add(float64(inserted))
		s.metrics.OperationDuration.WithLabelValues("check_plan_generate").Observe(s.clock().Sub(start).Seconds())
	}
	s.log.Info("check plans generated", "from", from, "to", to, "inserted", inserted)
	return inserted, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
