// Package memdb is the in-memory entity store shared by the memory store
// implementations. One DB instance backs all domains so a transaction can
// snapshot and restore the whole state, giving the same all-or-nothing
// semantics as the SQL runner.
package memdb

import (
	"context"
	"sync"

	"metrology/internal/domain"
)

// State holds every table. Memory stores read and mutate it only through
// DB.View and DB.Update, or inside DB.RunInTx.
type State struct {
	InstrumentStatuses []domain.LookupRow
	ResultStatuses     []domain.ResultStatusRow
	CheckKinds         []domain.LookupRow
	PlanStatuses       []domain.LookupRow
	DocumentTypes      []domain.LookupRow

	OrgUnits    map[domain.ID]domain.OrgUnit
	Locations   map[domain.ID]domain.Location
	Labs        map[domain.ID]domain.Lab
	Specialists map[domain.ID]domain.Specialist

	InstrumentTypes  map[domain.ID]domain.InstrumentType
	InstrumentModels map[domain.ID]domain.InstrumentModel
	Instruments      map[domain.ID]domain.Instrument

	CheckTypes   map[domain.ID]domain.CheckType
	Requirements map[domain.ID]domain.CheckRequirement
	Plans        map[domain.ID]domain.CheckPlan
	Events       map[domain.ID]domain.CheckEvent
	Documents    map[domain.ID]domain.Document
	EventDocs    map[domain.ID][]domain.ID

	History map[domain.ID][]domain.StatusHistoryEntry

	Audit []domain.AuditEntry
}

// DB wraps State behind a coarse lock with transactional snapshot/restore.
type DB struct {
	mu    sync.Mutex
	state *State
}

type txMarker struct{}

var inTxKey = txMarker{}

// New builds an empty database with the five lookup sets seeded, matching
// the SQL migrations.
func New() *DB {
	s := &State{
		OrgUnits:         make(map[domain.ID]domain.OrgUnit),
		Locations:        make(map[domain.ID]domain.Location),
		Labs:             make(map[domain.ID]domain.Lab),
		Specialists:      make(map[domain.ID]domain.Specialist),
		InstrumentTypes:  make(map[domain.ID]domain.InstrumentType),
		InstrumentModels: make(map[domain.ID]domain.InstrumentModel),
		Instruments:      make(map[domain.ID]domain.Instrument),
		CheckTypes:       make(map[domain.ID]domain.CheckType),
		Requirements:     make(map[domain.ID]domain.CheckRequirement),
		Plans:            make(map[domain.ID]domain.CheckPlan),
		Events:           make(map[domain.ID]domain.CheckEvent),
		Documents:        make(map[domain.ID]domain.Document),
		EventDocs:        make(map[domain.ID][]domain.ID),
		History:          make(map[domain.ID][]domain.StatusHistoryEntry),
	}
	seed(s)
	return &DB{state: s}
}

func seed(s *State) {
	s.InstrumentStatuses = []domain.LookupRow{
		{ID: domain.NewID(), Code: domain.StatusActive, Name: "In service"},
		{ID: domain.NewID(), Code: domain.StatusInRepair, Name: "Under repair"},
		{ID: domain.NewID(), Code: domain.StatusDecommissioned, Name: "Decommissioned"},
		{ID: domain.NewID(), Code: domain.StatusReplaced, Name: "Replaced"},
	}
	s.ResultStatuses = []domain.ResultStatusRow{
		{ID: domain.NewID(), Code: domain.ResultPassed, Name: "Passed", IsSuccess: true},
		{ID: domain.NewID(), Code: domain.ResultFailed, Name: "Failed", IsSuccess: false},
		{ID: domain.NewID(), Code: domain.ResultCanceled, Name: "Canceled", IsSuccess: false},
	}
	s.CheckKinds = []domain.LookupRow{
		{ID: domain.NewID(), Code: domain.KindVerification, Name: "Verification"},
		{ID: domain.NewID(), Code: domain.KindCalibration, Name: "Calibration"},
	}
	s.PlanStatuses = []domain.LookupRow{
		{ID: domain.NewID(), Code: domain.PlanPlanned, Name: "Planned"},
		{ID: domain.NewID(), Code: domain.PlanDone, Name: "Done"},
		{ID: domain.NewID(), Code: domain.PlanCanceled, Name: "Canceled"},
	}
	s.DocumentTypes = []domain.LookupRow{
		{ID: domain.NewID(), Code: domain.DocProtocol, Name: "Protocol"},
		{ID: domain.NewID(), Code: domain.DocCertificate, Name: "Certificate"},
		{ID: domain.NewID(), Code: domain.DocOther, Name: "Other"},
	}
}

// RunInTx takes the big lock, snapshots state, and restores it if fn fails.
// Nested store calls must pass the returned context so they skip re-locking.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	snapshot := db.state.clone()
	if err := fn(context.WithValue(ctx, inTxKey, true)); err != nil {
		db.state = snapshot
		return err
	}
	return nil
}

// View runs a read-only function against the state.
func (db *DB) View(ctx context.Context, fn func(s *State) error) error {
	if !inTx(ctx) {
		db.mu.Lock()
		defer db.mu.Unlock()
	}
	return fn(db.state)
}

// Update runs a mutating function. Outside a transaction it is its own
// atomic unit: failures restore the pre-call state.
func (db *DB) Update(ctx context.Context, fn func(s *State) error) error {
	if inTx(ctx) {
		return fn(db.state)
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	snapshot := db.state.clone()
	if err := fn(db.state); err != nil {
		db.state = snapshot
		return err
	}
	return nil
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(inTxKey).(bool)
	return v
}

func (s *State) clone() *State {
	c := &State{
		InstrumentStatuses: append([]domain.LookupRow(nil), s.InstrumentStatuses...),
		ResultStatuses:     append([]domain.ResultStatusRow(nil), s.ResultStatuses...),
		CheckKinds:         append([]domain.LookupRow(nil), s.CheckKinds...),
		PlanStatuses:       append([]domain.LookupRow(nil), s.PlanStatuses...),
		DocumentTypes:      append([]domain.LookupRow(nil), s.DocumentTypes...),
		OrgUnits:           cloneMap(s.OrgUnits),
		Locations:          cloneMap(s.Locations),
		Labs:               cloneMap(s.Labs),
		Specialists:        cloneMap(s.Specialists),
		InstrumentTypes:    cloneMap(s.InstrumentTypes),
		InstrumentModels:   cloneMap(s.InstrumentModels),
		Instruments:        cloneMap(s.Instruments),
		CheckTypes:         cloneMap(s.CheckTypes),
		Requirements:       cloneMap(s.Requirements),
		Plans:              cloneMap(s.Plans),
		Events:             cloneMap(s.Events),
		Documents:          cloneMap(s.Documents),
		EventDocs:          make(map[domain.ID][]domain.ID, len(s.EventDocs)),
		History:            make(map[domain.ID][]domain.StatusHistoryEntry, len(s.History)),
		Audit:              append([]domain.AuditEntry(nil), s.Audit...),
	}
	for k, v := range s.EventDocs {
		c.EventDocs[k] = append([]domain.ID(nil), v...)
	}
	for k, v := range s.History {
		c.History[k] = append([]domain.StatusHistoryEntry(nil), v...)
	}
	return c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Lookup helpers; all return the zero row and false for unknown codes.

func (s *State) InstrumentStatus(code string) (domain.LookupRow, bool) {
	return findLookup(s.InstrumentStatuses, code)
}

func (s *State) InstrumentStatusByID(id domain.ID) (domain.LookupRow, bool) {
	for _, row := range s.InstrumentStatuses {
		if row.ID == id {
			return row, true
		}
	}
	return domain.LookupRow{}, false
}

func (s *State) ResultStatus(code string) (domain.ResultStatusRow, bool) {
	for _, row := range s.ResultStatuses {
		if row.Code == code {
			return row, true
		}
	}
	return domain.ResultStatusRow{}, false
}

func (s *State) ResultStatusByID(id domain.ID) (domain.ResultStatusRow, bool) {
	for _, row := range s.ResultStatuses {
		if row.ID == id {
			return row, true
		}
	}
	return domain.ResultStatusRow{}, false
}

func (s *State) CheckKind(code string) (domain.LookupRow, bool) {
	return findLookup(s.CheckKinds, code)
}

func (s *State) PlanStatus(code string) (domain.LookupRow, bool) {
	return findLookup(s.PlanStatuses, code)
}

func (s *State) DocumentType(code string) (domain.LookupRow, bool) {
	return findLookup(s.DocumentTypes, code)
}

func findLookup(rows []domain.LookupRow, code string) (domain.LookupRow, bool) {
	for _, row := range rows {
		if row.Code == code {
			return row, true
		}
	}
	return domain.LookupRow{}, false
}
