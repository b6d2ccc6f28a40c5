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
	"metrology/internal/directory"
	"metrology/internal/domain"
	"metrology/internal/instrument"
	"metrology/internal/store/memdb"
	domainerrors "metrology/pkg/domain-errors"
)

type InstrumentServiceSuite struct {
	suite.Suite

	ctx        context.Context
	db         *memdb.DB
	store      *instrument.MemoryStore
	auditStore *audit.MemoryStore
	svc        *Service
	now        time.Time

	orgUnitID     domain.ID
	locationID    domain.ID
	otherLocation domain.ID
	modelID       domain.ID
}

func (s *InstrumentServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }

	s.db = memdb.New()
	s.store = instrument.NewMemoryStore(s.db)
	s.auditStore = audit.NewMemoryStore(s.db)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := audit.NewRecorder(s.auditStore, nil).WithClock(clock)
	s.svc = New(s.store, recorder, s.db, nil, log).WithClock(clock)

	dir := directory.NewMemoryStore(s.db)
	unit := domain.OrgUnit{ID: domain.NewID(), Code: "TSEKH-1", Name: "Assembly shop"}
	require.NoError(s.T(), dir.CreateOrgUnit(s.ctx, unit))
	s.orgUnitID = unit.ID

	loc := domain.Location{ID: domain.NewID(), OrgUnitID: unit.ID, Code: "A-101", Name: "Line A"}
	require.NoError(s.T(), dir.CreateLocation(s.ctx, loc))
	s.locationID = loc.ID

	other := domain.OrgUnit{ID: domain.NewID(), Code: "TSEKH-2", Name: "Paint shop"}
	require.NoError(s.T(), dir.CreateOrgUnit(s.ctx, other))
	otherLoc := domain.Location{ID: domain.NewID(), OrgUnitID: other.ID, Code: "B-201", Name: "Booth B"}
	require.NoError(s.T(), dir.CreateLocation(s.ctx, otherLoc))
	s.otherLocation = otherLoc.ID

	instType, err := s.svc.CreateType(s.ctx, domain.InstrumentType{Code: "MANOMETER", Name: "Pressure gauge"})
	require.NoError(s.T(), err)
	model, err := s.svc.CreateModel(s.ctx, domain.InstrumentModel{
		InstrumentTypeID: instType.ID,
		Manufacturer:     "Metran",
		ModelName:        "MP3-U",
	})
	require.NoError(s.T(), err)
	s.modelID = model.ID
}

func (s *InstrumentServiceSuite) create(inventoryNo string) domain.Instrument {
	inst, err := s.svc.Create(s.ctx, domain.Instrument{
		ModelID:     s.modelID,
		InventoryNo: inventoryNo,
		OrgUnitID:   s.orgUnitID,
		LocationID:  s.locationID,
	})
	require.NoError(s.T(), err)
	return inst
}

func (s *InstrumentServiceSuite) TestCreateOpensInitialHistory() {
	t := s.T()

	inst := s.create("INV-001")

	active, err := s.store.ResolveStatus(s.ctx, domain.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, active.ID, inst.StatusID, "new instruments default to ACTIVE")

	history, err := s.svc.History(s.ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, active.ID, history[0].StatusID)
	assert.Equal(t, "initial", history[0].Reason)
	assert.Nil(t, history[0].ValidTo, "the current interval stays open")

	entries, err := s.auditStore.List(s.ctx, audit.Filter{TableName: domain.TableInstrument, RowID: &inst.ID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.AuditInsert, entries[0].Action)
}

func (s *InstrumentServiceSuite) TestCreateRejectsDuplicateInventoryNo() {
	t := s.T()

	s.create("INV-001")
	_, err := s.svc.Create(s.ctx, domain.Instrument{
		ModelID:     s.modelID,
		InventoryNo: "INV-001",
		OrgUnitID:   s.orgUnitID,
		LocationID:  s.locationID,
	})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeConflict))
	assert.Equal(t, "uq_instrument_inventory", domainerrors.ConstraintOf(err))
}

func (s *InstrumentServiceSuite) TestCreateRejectsForeignLocation() {
	t := s.T()

	_, err := s.svc.Create(s.ctx, domain.Instrument{
		ModelID:     s.modelID,
		InventoryNo: "INV-001",
		OrgUnitID:   s.orgUnitID,
		LocationID:  s.otherLocation,
	})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeConsistency))
}

func (s *InstrumentServiceSuite) TestCreateRejectsInvertedRange() {
	t := s.T()

	lo, hi := 100.0, 1.0
	_, err := s.svc.Create(s.ctx, domain.Instrument{
		ModelID:     s.modelID,
		InventoryNo: "INV-001",
		OrgUnitID:   s.orgUnitID,
		LocationID:  s.locationID,
		RangeMin:    &lo,
		RangeMax:    &hi,
	})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeValidation))
	assert.Equal(t, "ck_range_order", domainerrors.ConstraintOf(err))
}

func (s *InstrumentServiceSuite) TestStatusChangeKeepsHistoryGapFree() {
	t := s.T()

	inst := s.create("INV-001")

	s.now = s.now.Add(48 * time.Hour)
	inRepair, err := s.store.ResolveStatus(s.ctx, domain.StatusInRepair)
	require.NoError(t, err)
	inst.StatusID = inRepair.ID
	_, err = s.svc.Update(s.ctx, inst)
	require.NoError(t, err)

	history, err := s.svc.History(s.ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	first, second := history[0], history[1]
	require.NotNil(t, first.ValidTo)
	assert.Equal(t, *first.ValidTo, second.ValidFrom, "intervals must abut with no gap")
	assert.Nil(t, second.ValidTo)
	assert.Equal(t, inRepair.ID, second.StatusID)
	assert.Equal(t, "status change", second.Reason)
}

func (s *InstrumentServiceSuite) TestDecommission() {
	t := s.T()

	inst := s.create("INV-001")
	got, err := s.svc.Decommission(s.ctx, inst.ID, "beyond economical repair", nil)
	require.NoError(t, err)

	decommissioned, err := s.store.ResolveStatus(s.ctx, domain.StatusDecommissioned)
	require.NoError(t, err)
	assert.Equal(t, decommissioned.ID, got.StatusID)
	require.NotNil(t, got.DecommissionedAt)
	require.NotNil(t, got.DecommissionReason)
	assert.Equal(t, "beyond economical repair", *got.DecommissionReason)
	assert.Nil(t, got.ReplacedByID)

	history, err := s.svc.History(s.ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "beyond economical repair", history[1].Reason)
}

func (s *InstrumentServiceSuite) TestDecommissionWithReplacement() {
	t := s.T()

	old := s.create("INV-001")
	successor := s.create("INV-002")

	got, err := s.svc.Decommission(s.ctx, old.ID, "replaced by newer unit", &successor.ID)
	require.NoError(t, err)

	replaced, err := s.store.ResolveStatus(s.ctx, domain.StatusReplaced)
	require.NoError(t, err)
	assert.Equal(t, replaced.ID, got.StatusID)
	require.NotNil(t, got.ReplacedByID)
	assert.Equal(t, successor.ID, *got.ReplacedByID)
}

func (s *InstrumentServiceSuite) TestDecommissionTwiceFails() {
	t := s.T()

	inst := s.create("INV-001")
	_, err := s.svc.Decommission(s.ctx, inst.ID, "worn out", nil)
	require.NoError(t, err)

	_, err = s.svc.Decommission(s.ctx, inst.ID, "worn out again", nil)
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeConsistency))
}

func (s *InstrumentServiceSuite) TestDecommissionRequiresReason() {
	t := s.T()

	inst := s.create("INV-001")
	_, err := s.svc.Decommission(s.ctx, inst.ID, "", nil)
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeValidation))
}

func (s *InstrumentServiceSuite) TestDecommissionUnknownReplacementRollsBack() {
	t := s.T()

	inst := s.create("INV-001")
	ghost := domain.NewID()
	_, err := s.svc.Decommission(s.ctx, inst.ID, "replaced", &ghost)
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeNotFound))

	got, err := s.svc.Get(s.ctx, inst.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DecommissionedAt, "failed decommission must leave the instrument untouched")
	assert.Equal(t, inst.StatusID, got.StatusID)
}

func TestInstrumentServiceSuite(t *testing.T) {
	suite.Run(t, new(InstrumentServiceSuite))
}
