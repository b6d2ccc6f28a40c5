package domain

import (
	"encoding/json"
	"time"
)

// Audit actions.
const (
	AuditInsert = "INSERT"
	AuditUpdate = "UPDATE"
	AuditDelete = "DELETE"
)

// Tracked table names recorded in audit entries.
const (
	TableInstrument       = "instrument"
	TableCheckPlan        = "check_plan"
	TableCheckEvent       = "check_event"
	TableCheckRequirement = "check_requirement"
	TableDocument         = "document"
)

// AuditEntry is one immutable record of a tracked-table mutation. OldRow and
// NewRow are full row images: inserts have no OldRow, deletes no NewRow.
// ShippedAt marks relay delivery to the audit topic and is the only field
// ever updated after append.
type AuditEntry struct {
	ID        ID              `json:"id"`
	At        time.Time       `json:"at"`
	Principal string          `json:"principal"`
	Action    string          `json:"action"`
	TableName string          `json:"table_name"`
	RowID     ID              `json:"row_id"`
	OldRow    json.RawMessage `json:"old_row,omitempty"`
	NewRow    json.RawMessage `json:"new_row,omitempty"`
	ShippedAt *time.Time      `json:"shipped_at,omitempty"`
}
