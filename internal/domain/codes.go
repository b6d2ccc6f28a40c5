package domain

// Lookup codes are the fixed external vocabulary of the service. Integrations
// depend on the exact strings, so they are never renamed.

// Instrument status codes.
const (
	StatusActive         = "ACTIVE"
	StatusInRepair       = "IN_REPAIR"
	StatusDecommissioned = "DECOMMISSIONED"
	StatusReplaced       = "REPLACED"
)

// Check result codes.
const (
	ResultPassed   = "PASSED"
	ResultFailed   = "FAILED"
	ResultCanceled = "CANCELED"
)

// Check kind codes.
const (
	KindVerification = "VERIFICATION"
	KindCalibration  = "CALIBRATION"
)

// Check plan status codes.
const (
	PlanPlanned  = "PLANNED"
	PlanDone     = "DONE"
	PlanCanceled = "CANCELED"
)

// Document type codes.
const (
	DocProtocol    = "PROTOCOL"
	DocCertificate = "CERTIFICATE"
	DocOther       = "OTHER"
)

// LookupRow is one row of a reference table: a stable code resolved to an id
// at write time.
type LookupRow struct {
	ID   ID     `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// ResultStatusRow extends LookupRow with the success flag that decides
// whether a check event produces a next due date.
type ResultStatusRow struct {
	ID        ID     `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	IsSuccess bool   `json:"is_success"`
}
