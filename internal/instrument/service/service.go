// Package service implements instrument operations: registration, updates
// guarded for location consistency, and decommissioning. Every mutation runs
// in one transaction together with its status history and audit writes.
package service

import (
	"context"
	"log/slog"
	"time"

	"metrology/internal/audit"
	"metrology/internal/domain"
	"metrology/internal/instrument"
	"metrology/internal/platform/metrics"
	domainerrors "metrology/pkg/domain-errors"
	"metrology/pkg/tx"
)

const (
	reasonInitial      = "initial"
	reasonStatusChange = "status change"
)

type Service struct {
	store   instrument.Store
	audit   *audit.Recorder
	runner  tx.Runner
	metrics *metrics.Metrics
	log     *slog.Logger
	clock   domain.Clock
}

func New(store instrument.Store, recorder *audit.Recorder, runner tx.Runner, m *metrics.Metrics, log *slog.Logger) *Service {
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

func (s *Service) CreateType(ctx context.Context, t domain.InstrumentType) (domain.InstrumentType, error) {
	if t.ID == (domain.ID{}) {
		t.ID = domain.NewID()
	}
	if t.Code == "" || t.Name == "" {
		return domain.InstrumentType{}, domainerrors.New(domainerrors.CodeValidation, "type code and name are required")
	}
	if err := s.store.CreateType(ctx, t); err != nil {
		return domain.InstrumentType{}, err
	}
	return t, nil
}

func (s *Service) ListTypes(ctx context.Context, limit, offset int) ([]domain.InstrumentType, error) {
	return s.store.ListTypes(ctx, normalizeLimit(limit), offset)
}

func (s *Service) CreateModel(ctx context.Context, m domain.InstrumentModel) (domain.InstrumentModel, error) {
	if m.ID == (domain.ID{}) {
		m.ID = domain.NewID()
	}
	if m.Manufacturer == "" || m.ModelName == "" {
		return domain.InstrumentModel{}, domainerrors.New(domainerrors.CodeValidation, "manufacturer and model name are required")
	}
	if err := s.store.CreateModel(ctx, m); err != nil {
		return domain.InstrumentModel{}, err
	}
	return m, nil
}

func (s *Service) GetModel(ctx context.Context, id domain.ID) (domain.InstrumentModel, error) {
	return s.store.GetModel(ctx, id)
}

func (s *Service) ListModels(ctx context.Context, limit, offset int) ([]domain.InstrumentModel, error) {
	return s.store.ListModels(ctx, normalizeLimit(limit), offset)
}

// Create registers an instrument. The status defaults to ACTIVE, the first
// status history interval opens at the same instant, and the audit entry
// commits with the row or not at all.
func (s *Service) Create(ctx context.Context, inst domain.Instrument) (domain.Instrument, error) {
	start := s.clock()
	if inst.ID == (domain.ID{}) {
		inst.ID = domain.NewID()
	}
	if inst.InventoryNo == "" {
		return domain.Instrument{}, domainerrors.New(domainerrors.CodeValidation, "inventory_no is required")
	}
	if err := checkRange(inst); err != nil {
		return domain.Instrument{}, err
	}

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := checkLocation(ctx, s.store, inst); err != nil {
			return err
		}
		if inst.StatusID == (domain.ID{}) {
			status, err := s.store.ResolveStatus(ctx, domain.StatusActive)
			if err != nil {
				return err
			}
			inst.StatusID = status.ID
		}
		if err := s.store.Create(ctx, inst); err != nil {
			return err
		}
		if err := s.store.AppendHistory(ctx, domain.StatusHistoryEntry{
			ID:           domain.NewID(),
			InstrumentID: inst.ID,
			StatusID:     inst.StatusID,
			ValidFrom:    start.UTC(),
			Reason:       reasonInitial,
		}); err != nil {
			return err
		}
		return s.audit.Record(ctx, domain.AuditInsert, domain.TableInstrument, inst.ID, nil, inst)
	})
	if err != nil {
		return domain.Instrument{}, err
	}
	s.observe("instrument_create", start)
	s.log.Info("instrument registered", "instrument_id", inst.ID, "inventory_no", inst.InventoryNo)
	return inst, nil
}

func (s *Service) Get(ctx context.Context, id domain.ID) (domain.Instrument, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter instrument.Filter) ([]domain.Instrument, error) {
	filter.Limit = normalizeLimit(filter.Limit)
	return s.store.List(ctx, filter)
}

func (s *Service) History(ctx context.Context, id domain.ID) ([]domain.StatusHistoryEntry, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListHistory(ctx, id)
}

// Update rewrites an instrument row. A status change closes the open history
// interval and opens a new one at the same instant, so the timeline stays
// gap-free.
func (s *Service) Update(ctx context.Context, inst domain.Instrument) (domain.Instrument, error) {
	start := s.clock()
	if err := checkRange(inst); err != nil {
		return domain.Instrument{}, err
	}

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		old, err := s.store.Get(ctx, inst.ID)
		if err != nil {
			return err
		}
		if err := checkLocation(ctx, s.store, inst); err != nil {
			return err
		}
		if inst.StatusID == (domain.ID{}) {
			inst.StatusID = old.StatusID
		}
		if err := s.store.Update(ctx, inst); err != nil {
			return err
		}
		if old.StatusID != inst.StatusID {
			if err := s.switchStatus(ctx, inst, start.UTC(), reasonStatusChange); err != nil {
				return err
			}
		}
		return s.audit.Record(ctx, domain.AuditUpdate, domain.TableInstrument, inst.ID, old, inst)
	})
	if err != nil {
		return domain.Instrument{}, err
	}
	s.observe("instrument_update", start)
	return inst, nil
}

// Decommission takes an instrument out of service. With a replacement it
// moves to REPLACED and records the successor; without one it moves to
// DECOMMISSIONED. The operation refuses instruments already out of service.
func (s *Service) Decommission(ctx context.Context, id domain.ID, reason string, replacedBy *domain.ID) (domain.Instrument, error) {
	start := s.clock()
	if reason == "" {
		return domain.Instrument{}, domainerrors.New(domainerrors.CodeValidation, "decommission reason is required")
	}

	var inst domain.Instrument
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		old, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if old.DecommissionedAt != nil {
			return domainerrors.New(domainerrors.CodeConsistency, "instrument is already out of service")
		}
		statusCode := domain.StatusDecommissioned
		if replacedBy != nil {
			if _, err := s.store.Get(ctx, *replacedBy); err != nil {
				return err
			}
			statusCode = domain.StatusReplaced
		}
		status, err := s.store.ResolveStatus(ctx, statusCode)
		if err != nil {
			return err
		}

		inst = old
		now := start.UTC()
		inst.StatusID = status.ID
		inst.DecommissionedAt = &now
		inst.DecommissionReason = &reason
		inst.ReplacedByID = replacedBy
		if err := s.store.Update(ctx, inst); err != nil {
			return err
		}
		if err := s.switchStatus(ctx, inst, now, reason); err != nil {
			return err
		}
		return s.audit.Record(ctx, domain.AuditUpdate, domain.TableInstrument, inst.ID, old, inst)
	})
	if err != nil {
		return domain.Instrument{}, err
	}
	if s.metrics != nil {
		s.metrics.Decommissions.Inc()
	}
	s.observe("instrument_decommission", start)
	s.log.Info("instrument decommissioned", "instrument_id", id, "replaced", replacedBy != nil)
	return inst, nil
}

func (s *Service) switchStatus(ctx context.Context, inst domain.Instrument, at time.Time, reason string) error {
	if err := s.store.CloseOpenHistory(ctx, inst.ID, at); err != nil {
		return err
	}
	return s.store.AppendHistory(ctx, domain.StatusHistoryEntry{
		ID:           domain.NewID(),
		InstrumentID: inst.ID,
		StatusID:     inst.StatusID,
		ValidFrom:    at,
		Reason:       reason,
	})
}

func (s *Service) observe(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.OperationDuration.WithLabelValues(operation).Observe(s.clock().Sub(start).Seconds())
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}

func checkRange(inst domain.Instrument) error {
	return instrument.CheckRange(inst)
}

func checkLocation(ctx context.Context, st instrument.Store, inst domain.Instrument) error {
	return instrument.CheckLocation(ctx, st, inst)
}
