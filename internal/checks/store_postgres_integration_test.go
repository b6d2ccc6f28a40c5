//go:build integration

package checks_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"metrology/internal/checks"
	"metrology/internal/directory"
	"metrology/internal/domain"
	"metrology/internal/instrument"
	domainerrors "metrology/pkg/domain-errors"
	"metrology/pkg/testutil/containers"
)

type ChecksPostgresSuite struct {
	suite.Suite

	ctx       context.Context
	container *containers.PostgresContainer
	store     *checks.PostgresStore
	instr     *instrument.PostgresStore
	dir       *directory.PostgresStore

	instrumentID domain.ID
	modelID      domain.ID
	labID        domain.ID
	checkTypeID  domain.ID
	plannedID    domain.ID
}

func (s *ChecksPostgresSuite) SetupSuite() {
	s.ctx = context.Background()
	s.container = containers.NewPostgresContainer(s.T())
	s.store = checks.NewPostgresStore(s.container.DB)
	s.instr = instrument.NewPostgresStore(s.container.DB)
	s.dir = directory.NewPostgresStore(s.container.DB)
}

func (s *ChecksPostgresSuite) SetupTest() {
	require.NoError(s.T(), s.container.Truncate(s.ctx))
	s.seed()
}

func (s *ChecksPostgresSuite) seed() {
	t := s.T()

	unit := domain.OrgUnit{ID: domain.NewID(), Code: "TSEKH-1", Name: "Assembly shop"}
	require.NoError(t, s.dir.CreateOrgUnit(s.ctx, unit))
	loc := domain.Location{ID: domain.NewID(), OrgUnitID: unit.ID, Code: "A-101", Name: "Line A"}
	require.NoError(t, s.dir.CreateLocation(s.ctx, loc))
	lab := domain.Lab{ID: domain.NewID(), Code: "LAB-1", Name: "Metrology lab"}
	require.NoError(t, s.dir.CreateLab(s.ctx, lab))
	s.labID = lab.ID

	instType := domain.InstrumentType{ID: domain.NewID(), Code: "MANOMETER", Name: "Pressure gauge"}
	require.NoError(t, s.instr.CreateType(s.ctx, instType))
	model := domain.InstrumentModel{
		ID:               domain.NewID(),
		InstrumentTypeID: instType.ID,
		Manufacturer:     "Metran",
		ModelName:        "MP3-U",
	}
	require.NoError(t, s.instr.CreateModel(s.ctx, model))
	s.modelID = model.ID

	active, err := s.instr.ResolveStatus(s.ctx, domain.StatusActive)
	require.NoError(t, err)
	inst := domain.Instrument{
		ID:          domain.NewID(),
		ModelID:     model.ID,
		InventoryNo: "INV-001",
		OrgUnitID:   unit.ID,
		LocationID:  loc.ID,
		StatusID:    active.ID,
	}
	require.NoError(t, s.instr.Create(s.ctx, inst))
	s.instrumentID = inst.ID

	kind, err := s.store.ResolveCheckKind(s.ctx, domain.KindVerification)
	require.NoError(t, err)
	ct := domain.CheckType{ID: domain.NewID(), Code: "VERIF-ANNUAL", Name: "Annual verification", KindID: kind.ID}
	require.NoError(t, s.store.CreateCheckType(s.ctx, ct))
	s.checkTypeID = ct.ID

	planned, err := s.store.ResolvePlanStatus(s.ctx, domain.PlanPlanned)
	require.NoError(t, err)
	s.plannedID = planned.ID
}

func (s *ChecksPostgresSuite) plan(due time.Time) domain.CheckPlan {
	return domain.CheckPlan{
		ID:           domain.NewID(),
		InstrumentID: s.instrumentID,
		CheckTypeID:  s.checkTypeID,
		DueDate:      due,
		StatusID:     s.plannedID,
		CreatedAt:    time.Now().UTC(),
	}
}

func (s *ChecksPostgresSuite) event(checkDate time.Time, planID *domain.ID, nextDue *time.Time) domain.CheckEvent {
	t := s.T()
	passed, err := s.store.ResolveResult(s.ctx, domain.ResultPassed)
	require.NoError(t, err)
	return domain.CheckEvent{
		ID:           domain.NewID(),
		InstrumentID: s.instrumentID,
		PlanID:       planID,
		CheckTypeID:  s.checkTypeID,
		LabID:        s.labID,
		CheckDate:    checkDate,
		ResultID:     passed.ID,
		NextDueDate:  nextDue,
		CreatedAt:    time.Now().UTC(),
	}
}

func (s *ChecksPostgresSuite) TestDuplicatePlanConstraint() {
	t := s.T()
	due := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.store.CreatePlan(s.ctx, s.plan(due)))

	err := s.store.CreatePlan(s.ctx, s.plan(due))
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeConflict))
	assert.Equal(t, "uq_check_plan", domainerrors.ConstraintOf(err))

	inserted, err := s.store.CreatePlanSkipConflict(s.ctx, s.plan(due))
	require.NoError(t, err)
	assert.False(t, inserted, "skip-conflict insert must swallow the duplicate silently")

	inserted, err = s.store.CreatePlanSkipConflict(s.ctx, s.plan(due.AddDate(0, 1, 0)))
	require.NoError(t, err)
	assert.True(t, inserted)
}

func (s *ChecksPostgresSuite) TestPlanConsumedOnce() {
	t := s.T()
	due := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	plan := s.plan(due)
	require.NoError(t, s.store.CreatePlan(s.ctx, plan))

	require.NoError(t, s.store.CreateEvent(s.ctx, s.event(due, &plan.ID, nil)))

	err := s.store.CreateEvent(s.ctx, s.event(due.AddDate(0, 0, 1), &plan.ID, nil))
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeConflict))
	assert.Equal(t, "uq_event_plan", domainerrors.ConstraintOf(err))
}

func (s *ChecksPostgresSuite) TestDueRowsPickLatestSuccess() {
	t := s.T()

	older := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	olderDue := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.store.CreateEvent(s.ctx, s.event(older, nil, &olderDue)))

	newer := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	newerDue := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.store.CreateEvent(s.ctx, s.event(newer, nil, &newerDue)))

	rows, err := s.store.DueRows(s.ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1, "one row per (instrument, check type)")
	assert.Equal(t, s.instrumentID, rows[0].InstrumentID)
	assert.Equal(t, "INV-001", rows[0].InventoryNo)
	assert.True(t, newerDue.Equal(rows[0].NextDueDate))
	assert.True(t, newer.Equal(rows[0].LastCheckDate))
}

func (s *ChecksPostgresSuite) TestDueCandidatesWindowAndStatus() {
	t := s.T()

	checkDate := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	due := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.store.CreateEvent(s.ctx, s.event(checkDate, nil, &due)))

	from := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)
	candidates, err := s.store.DueCandidates(s.ctx, from, to)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, s.instrumentID, candidates[0].InstrumentID)
	assert.Equal(t, s.checkTypeID, candidates[0].CheckTypeID)
	assert.True(t, due.Equal(candidates[0].DueDate))

	candidates, err = s.store.DueCandidates(s.ctx, to.AddDate(0, 0, 1), to.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Empty(t, candidates, "due date outside the window")

	decommissioned, err := s.instr.ResolveStatus(s.ctx, domain.StatusDecommissioned)
	require.NoError(t, err)
	inst, err := s.instr.Get(s.ctx, s.instrumentID)
	require.NoError(t, err)
	inst.StatusID = decommissioned.ID
	require.NoError(t, s.instr.Update(s.ctx, inst))

	candidates, err = s.store.DueCandidates(s.ctx, from, to)
	require.NoError(t, err)
	assert.Empty(t, candidates, "only ACTIVE instruments are scheduled")
}

func (s *ChecksPostgresSuite) TestRequirementForAbsence() {
	t := s.T()

	_, err := s.store.RequirementFor(s.ctx, s.modelID, s.checkTypeID)
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeNotFound))

	req := domain.CheckRequirement{
		ID:             domain.NewID(),
		ModelID:        s.modelID,
		CheckTypeID:    s.checkTypeID,
		IntervalMonths: 12,
		Mandatory:      true,
	}
	require.NoError(t, s.store.CreateRequirement(s.ctx, req))

	got, err := s.store.RequirementFor(s.ctx, s.modelID, s.checkTypeID)
	require.NoError(t, err)
	assert.Equal(t, 12, got.IntervalMonths)

	err = s.store.CreateRequirement(s.ctx, domain.CheckRequirement{
		ID:             domain.NewID(),
		ModelID:        s.modelID,
		CheckTypeID:    s.checkTypeID,
		IntervalMonths: 6,
	})
	require.Error(t, err)
	assert.Equal(t, "uq_req", domainerrors.ConstraintOf(err))
}

func TestChecksPostgresSuite(t *testing.T) {
	suite.Run(t, new(ChecksPostgresSuite))
}
