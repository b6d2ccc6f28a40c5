package domain

import "time"

// Projection names accepted by the read endpoint.
const (
	ProjectionDue30d  = "due_30d"
	ProjectionOverdue = "overdue"
)

// CheckDueRow is the per-(instrument, check type) due projection row: the
// last successful check of that type and the due date it produced.
type CheckDueRow struct {
	InstrumentID  ID        `json:"instrument_id"`
	InventoryNo   string    `json:"inventory_no"`
	SerialNo      *string   `json:"serial_no,omitempty"`
	OrgUnitID     ID        `json:"org_unit_id"`
	LocationID    ID        `json:"location_id"`
	CheckTypeID   ID        `json:"check_type_id"`
	CheckTypeCode string    `json:"check_type_code"`
	LastCheckDate time.Time `json:"last_check_date"`
	NextDueDate   time.Time `json:"next_due_date"`
	DaysToDue     int       `json:"days_to_due"`
	ProtocolNo    *string   `json:"protocol_no,omitempty"`
	LabID         ID        `json:"lab_id"`
	SpecialistID  *ID       `json:"specialist_id,omitempty"`
}

// DueSnapshot is a materialized projection: rows frozen at RefreshedAt.
// Readers always see the last refreshed snapshot; staleness is expected
// until the next explicit refresh.
type DueSnapshot struct {
	Name        string        `json:"name"`
	RefreshedAt time.Time     `json:"refreshed_at"`
	Rows        []CheckDueRow `json:"rows"`
}

// InstrumentDueRow is the per-instrument rollup: the nearest due date across
// all check types.
type InstrumentDueRow struct {
	InstrumentID ID        `json:"instrument_id"`
	InventoryNo  string    `json:"inventory_no"`
	SerialNo     *string   `json:"serial_no,omitempty"`
	OrgUnitID    ID        `json:"org_unit_id"`
	LocationID   ID        `json:"location_id"`
	NextDueDate  time.Time `json:"next_due_date"`
	DaysToDue    int       `json:"days_to_due"`
}
