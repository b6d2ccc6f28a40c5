package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"metrology/internal/audit"
	"metrology/internal/checks"
	"metrology/internal/directory"
	"metrology/internal/domain"
	"metrology/internal/instrument"
	"metrology/internal/store/memdb"
	domainerrors "metrology/pkg/domain-errors"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type ChecksServiceSuite struct {
	suite.Suite

	ctx        context.Context
	db         *memdb.DB
	store      *checks.MemoryStore
	instrStore *instrument.MemoryStore
	auditStore *audit.MemoryStore
	svc        *Service
	now        time.Time

	orgUnitID    domain.ID
	locationID   domain.ID
	labID        domain.ID
	modelID      domain.ID
	instrumentID domain.ID
	checkTypeID  domain.ID
}

func (s *ChecksServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }

	s.db = memdb.New()
	s.store = checks.NewMemoryStore(s.db)
	s.instrStore = instrument.NewMemoryStore(s.db)
	s.auditStore = audit.NewMemoryStore(s.db)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := audit.NewRecorder(s.auditStore, nil).WithClock(clock)
	s.svc = New(s.store, recorder, s.db, nil, log).WithClock(clock)

	s.seed()
}

// seed builds one org unit, location, lab, model, ACTIVE instrument, and a
// VERIFICATION check type with a 12-month cadence requirement.
func (s *ChecksServiceSuite) seed() {
	t := s.T()
	dir := directory.NewMemoryStore(s.db)

	unit := domain.OrgUnit{ID: domain.NewID(), Code: "TSEKH-1", Name: "Assembly shop"}
	require.NoError(t, dir.CreateOrgUnit(s.ctx, unit))
	s.orgUnitID = unit.ID

	loc := domain.Location{ID: domain.NewID(), OrgUnitID: unit.ID, Code: "A-101", Name: "Line A"}
	require.NoError(t, dir.CreateLocation(s.ctx, loc))
	s.locationID = loc.ID

	lab := domain.Lab{ID: domain.NewID(), Code: "LAB-1", Name: "Metrology lab"}
	require.NoError(t, dir.CreateLab(s.ctx, lab))
	s.labID = lab.ID

	instType := domain.InstrumentType{ID: domain.NewID(), Code: "MANOMETER", Name: "Pressure gauge"}
	require.NoError(t, s.instrStore.CreateType(s.ctx, instType))

	model := domain.InstrumentModel{
		ID:               domain.NewID(),
		InstrumentTypeID: instType.ID,
		Manufacturer:     "Metran",
		ModelName:        "MP3-U",
	}
	require.NoError(t, s.instrStore.CreateModel(s.ctx, model))
	s.modelID = model.ID

	active, err := s.instrStore.ResolveStatus(s.ctx, domain.StatusActive)
	require.NoError(t, err)
	inst := domain.Instrument{
		ID:          domain.NewID(),
		ModelID:     model.ID,
		InventoryNo: "INV-001",
		OrgUnitID:   unit.ID,
		LocationID:  loc.ID,
		StatusID:    active.ID,
	}
	require.NoError(t, s.instrStore.Create(s.ctx, inst))
	s.instrumentID = inst.ID

	ct, err := s.svc.CreateCheckType(s.ctx, "VERIF-ANNUAL", "Annual verification", domain.KindVerification)
	require.NoError(t, err)
	s.checkTypeID = ct.ID

	_, err = s.svc.CreateRequirement(s.ctx, domain.CheckRequirement{
		ModelID:        model.ID,
		CheckTypeID:    ct.ID,
		IntervalMonths: 12,
		Mandatory:      true,
	})
	require.NoError(t, err)
}

func (s *ChecksServiceSuite) register(input RegisterEventInput) (domain.CheckEvent, error) {
	if input.InstrumentID == (domain.ID{}) {
		input.InstrumentID = s.instrumentID
	}
	if input.CheckTypeID == (domain.ID{}) {
		input.CheckTypeID = s.checkTypeID
	}
	if input.LabID == (domain.ID{}) {
		input.LabID = s.labID
	}
	if input.CheckDate.IsZero() {
		input.CheckDate = day(2025, time.March, 10)
	}
	if input.ResultCode == "" {
		input.ResultCode = domain.ResultPassed
	}
	return s.svc.RegisterEvent(s.ctx, input)
}

func (s *ChecksServiceSuite) TestRegisterEventPassedDerivesNextDue() {
	t := s.T()

	event, err := s.register(RegisterEventInput{CheckDate: day(2025, time.March, 10)})
	require.NoError(t, err)

	require.NotNil(t, event.NextDueDate)
	assert.Equal(t, day(2026, time.March, 10), *event.NextDueDate)

	entries, err := s.auditStore.List(s.ctx, audit.Filter{TableName: domain.TableCheckEvent})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.AuditInsert, entries[0].Action)
	assert.Equal(t, event.ID, entries[0].RowID)
	assert.Nil(t, entries[0].OldRow)
	assert.NotNil(t, entries[0].NewRow)
}

func (s *ChecksServiceSuite) TestRegisterEventFailedHasNoNextDue() {
	t := s.T()

	event, err := s.register(RegisterEventInput{ResultCode: domain.ResultFailed})
	require.NoError(t, err)
	assert.Nil(t, event.NextDueDate)
}

func (s *ChecksServiceSuite) TestRegisterEventWithoutRequirementHasNoNextDue() {
	t := s.T()

	ct, err := s.svc.CreateCheckType(s.ctx, "CALIB-SPOT", "Spot calibration", domain.KindCalibration)
	require.NoError(t, err)

	event, err := s.register(RegisterEventInput{CheckTypeID: ct.ID})
	require.NoError(t, err)
	assert.Nil(t, event.NextDueDate, "no cadence requirement for this check type")
}

func (s *ChecksServiceSuite) TestRegisterEventUnknownResultCode() {
	t := s.T()

	_, err := s.register(RegisterEventInput{ResultCode: "MAYBE"})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeValidation))
}

func (s *ChecksServiceSuite) TestRegisterEventConsumesPlanOnce() {
	t := s.T()

	plan, err := s.svc.CreatePlan(s.ctx, domain.CheckPlan{
		InstrumentID: s.instrumentID,
		CheckTypeID:  s.checkTypeID,
		DueDate:      day(2025, time.April, 1),
	})
	require.NoError(t, err)

	_, err = s.register(RegisterEventInput{PlanID: &plan.ID})
	require.NoError(t, err)

	done, err := s.store.ResolvePlanStatus(s.ctx, domain.PlanDone)
	require.NoError(t, err)
	consumed, err := s.svc.GetPlan(s.ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, done.ID, consumed.StatusID)

	_, err = s.register(RegisterEventInput{PlanID: &plan.ID, CheckDate: day(2025, time.March, 11)})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeConflict))
	assert.Equal(t, "uq_event_plan", domainerrors.ConstraintOf(err))

	events, err := s.svc.ListEvents(s.ctx, s.instrumentID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1, "the losing registration must leave nothing behind")
}

func (s *ChecksServiceSuite) TestRegisterEventRejectsMismatchedPlan() {
	t := s.T()

	other, err := s.svc.CreateCheckType(s.ctx, "CALIB-ANNUAL", "Annual calibration", domain.KindCalibration)
	require.NoError(t, err)
	plan, err := s.svc.CreatePlan(s.ctx, domain.CheckPlan{
		InstrumentID: s.instrumentID,
		CheckTypeID:  other.ID,
		DueDate:      day(2025, time.April, 1),
	})
	require.NoError(t, err)

	_, err = s.register(RegisterEventInput{PlanID: &plan.ID})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeConsistency))
}

func (s *ChecksServiceSuite) TestRegisterEventMissingDocumentRollsBackEverything() {
	t := s.T()

	plan, err := s.svc.CreatePlan(s.ctx, domain.CheckPlan{
		InstrumentID: s.instrumentID,
		CheckTypeID:  s.checkTypeID,
		DueDate:      day(2025, time.April, 1),
	})
	require.NoError(t, err)
	auditBefore, err := s.auditStore.List(s.ctx, audit.Filter{})
	require.NoError(t, err)

	missing := domain.NewID()
	_, err = s.register(RegisterEventInput{PlanID: &plan.ID, DocumentIDs: []domain.ID{missing}})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeNotFound))

	events, err := s.svc.ListEvents(s.ctx, s.instrumentID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, events, "event insert must not survive the failed link")

	planned, err := s.store.ResolvePlanStatus(s.ctx, domain.PlanPlanned)
	require.NoError(t, err)
	got, err := s.svc.GetPlan(s.ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, planned.ID, got.StatusID, "plan must stay consumable")

	auditAfter, err := s.auditStore.List(s.ctx, audit.Filter{})
	require.NoError(t, err)
	assert.Len(t, auditAfter, len(auditBefore), "no audit entries from the aborted transaction")
}

func (s *ChecksServiceSuite) TestRegisterEventLinksDocuments() {
	t := s.T()

	doc, err := s.svc.CreateDocument(s.ctx, domain.DocProtocol, "Verification protocol", "s3://docs/p-7741.pdf", nil)
	require.NoError(t, err)

	event, err := s.register(RegisterEventInput{DocumentIDs: []domain.ID{doc.ID}})
	require.NoError(t, err)

	_, docs, err := s.svc.GetEvent(s.ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID, docs[0].ID)
}

func (s *ChecksServiceSuite) TestGeneratePlansIsIdempotent() {
	t := s.T()

	_, err := s.register(RegisterEventInput{CheckDate: day(2025, time.March, 10)})
	require.NoError(t, err)

	from, to := day(2026, time.March, 1), day(2026, time.March, 31)
	inserted, err := s.svc.GeneratePlans(s.ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	inserted, err = s.svc.GeneratePlans(s.ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted, "second run over the same window inserts nothing")

	plans, err := s.svc.ListPlans(s.ctx, checks.PlanFilter{InstrumentID: &s.instrumentID})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, day(2026, time.March, 10), plans[0].DueDate)
}

func (s *ChecksServiceSuite) TestGeneratePlansRejectsInvalidRange() {
	t := s.T()

	_, err := s.svc.GeneratePlans(s.ctx, day(2026, time.March, 31), day(2026, time.March, 1))
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeValidation))

	_, err = s.svc.GeneratePlans(s.ctx, time.Time{}, day(2026, time.March, 1))
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeValidation))
}

func (s *ChecksServiceSuite) TestGeneratePlansSkipsInactiveInstruments() {
	t := s.T()

	_, err := s.register(RegisterEventInput{CheckDate: day(2025, time.March, 10)})
	require.NoError(t, err)

	decommissioned, err := s.instrStore.ResolveStatus(s.ctx, domain.StatusDecommissioned)
	require.NoError(t, err)
	inst, err := s.instrStore.Get(s.ctx, s.instrumentID)
	require.NoError(t, err)
	inst.StatusID = decommissioned.ID
	require.NoError(t, s.instrStore.Update(s.ctx, inst))

	inserted, err := s.svc.GeneratePlans(s.ctx, day(2026, time.March, 1), day(2026, time.March, 31))
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
}

func (s *ChecksServiceSuite) TestCancelPlan() {
	t := s.T()

	plan, err := s.svc.CreatePlan(s.ctx, domain.CheckPlan{
		InstrumentID: s.instrumentID,
		CheckTypeID:  s.checkTypeID,
		DueDate:      day(2025, time.April, 1),
	})
	require.NoError(t, err)

	canceled, err := s.svc.CancelPlan(s.ctx, plan.ID)
	require.NoError(t, err)
	status, err := s.store.ResolvePlanStatus(s.ctx, domain.PlanCanceled)
	require.NoError(t, err)
	assert.Equal(t, status.ID, canceled.StatusID)

	_, err = s.svc.CancelPlan(s.ctx, plan.ID)
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeConsistency), "only planned checks can be canceled")
}

func (s *ChecksServiceSuite) TestCreateRequirementValidation() {
	t := s.T()

	_, err := s.svc.CreateRequirement(s.ctx, domain.CheckRequirement{
		ModelID:        s.modelID,
		CheckTypeID:    s.checkTypeID,
		IntervalMonths: 0,
	})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeValidation))
	assert.Equal(t, "ck_interval_months", domainerrors.ConstraintOf(err))

	_, err = s.svc.CreateRequirement(s.ctx, domain.CheckRequirement{
		ModelID:        s.modelID,
		CheckTypeID:    s.checkTypeID,
		IntervalMonths: 12,
	})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeConflict), "one requirement per model and check type")
	assert.Equal(t, "uq_req", domainerrors.ConstraintOf(err))
}

// TestComplianceLifecycle walks the full cadence loop: a passed check derives
// a due date, plan generation schedules it, registering against the plan
// consumes it and derives the next one, and re-generation stays quiet.
func (s *ChecksServiceSuite) TestComplianceLifecycle() {
	t := s.T()

	_, err := s.register(RegisterEventInput{CheckDate: day(2025, time.March, 10)})
	require.NoError(t, err)

	from, to := day(2026, time.March, 1), day(2026, time.March, 31)
	inserted, err := s.svc.GeneratePlans(s.ctx, from, to)
	require.NoError(t, err)
	require.Equal(t, 1, inserted)

	plans, err := s.svc.ListPlans(s.ctx, checks.PlanFilter{InstrumentID: &s.instrumentID})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	plan := plans[0]
	assert.Equal(t, day(2026, time.March, 10), plan.DueDate)

	event, err := s.register(RegisterEventInput{
		PlanID:    &plan.ID,
		CheckDate: day(2026, time.March, 5),
	})
	require.NoError(t, err)
	require.NotNil(t, event.NextDueDate)
	assert.Equal(t, day(2027, time.March, 5), *event.NextDueDate)

	done, err := s.store.ResolvePlanStatus(s.ctx, domain.PlanDone)
	require.NoError(t, err)
	consumed, err := s.svc.GetPlan(s.ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, done.ID, consumed.StatusID)

	inserted, err = s.svc.GeneratePlans(s.ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted, "window is already planned and consumed")
}

func TestChecksServiceSuite(t *testing.T) {
	suite.Run(t, new(ChecksServiceSuite))
}
