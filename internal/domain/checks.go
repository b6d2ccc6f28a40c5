package domain

import "time"

// CheckType is a concrete kind of check (belongs to a check kind such as
// VERIFICATION or CALIBRATION).
type CheckType struct {
	ID     ID     `json:"id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	KindID ID     `json:"kind_id"`
}

// CheckRequirement defines the cadence of one check type for one instrument
// model. At most one requirement exists per (model, check type) pair.
type CheckRequirement struct {
	ID             ID      `json:"id"`
	ModelID        ID      `json:"model_id"`
	CheckTypeID    ID      `json:"check_type_id"`
	IntervalMonths int     `json:"interval_months"`
	GraceDays      int     `json:"grace_days"`
	Mandatory      bool    `json:"is_mandatory"`
	Notes          *string `json:"notes,omitempty"`
}

// CheckPlan is a scheduled, not yet performed check. Plans are unique per
// (instrument, check type, due date).
type CheckPlan struct {
	ID                  ID        `json:"id"`
	InstrumentID        ID        `json:"instrument_id"`
	CheckTypeID         ID        `json:"check_type_id"`
	DueDate             time.Time `json:"due_date"`
	PlannedLabID        *ID       `json:"planned_lab_id,omitempty"`
	PlannedSpecialistID *ID       `json:"planned_specialist_id,omitempty"`
	StatusID            ID        `json:"status_id"`
	CreatedAt           time.Time `json:"created_at"`
	Notes               *string   `json:"notes,omitempty"`
}

// CheckEvent is a performed check with a result. At most one event may
// consume a plan; NextDueDate is derived, never client-supplied.
type CheckEvent struct {
	ID           ID         `json:"id"`
	InstrumentID ID         `json:"instrument_id"`
	PlanID       *ID        `json:"check_plan_id,omitempty"`
	CheckTypeID  ID         `json:"check_type_id"`
	LabID        ID         `json:"lab_id"`
	SpecialistID *ID        `json:"specialist_id,omitempty"`
	CheckDate    time.Time  `json:"check_date"`
	ResultID     ID         `json:"result_status_id"`
	ProtocolNo   *string    `json:"protocol_no,omitempty"`
	NextDueDate  *time.Time `json:"next_due_date,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Document is a reference to an externally stored file (protocol,
// certificate). Only the reference is tracked, never the bytes.
type Document struct {
	ID         ID        `json:"id"`
	TypeID     ID        `json:"type_id"`
	Title      string    `json:"title"`
	StorageRef string    `json:"storage_ref"`
	SHA256     *string   `json:"sha256,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
