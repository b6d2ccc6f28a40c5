// Package lookup serves the fixed reference code sets. Integrations fetch
// these once to resolve codes to ids; the sets only change via migrations.
package lookup

import (
	"context"

	"metrology/internal/domain"
)

// Store reads the seeded lookup tables.
type Store interface {
	// Set lists one plain code set: instrument statuses, check kinds, plan
	// statuses, or document types.
	Set(ctx context.Context, set string) ([]domain.LookupRow, error)
	// Results lists the check result set, which carries the success flag.
	Results(ctx context.Context) ([]domain.ResultStatusRow, error)
}

// Set names accepted by the read endpoint.
const (
	SetInstrumentStatuses = "instrument-statuses"
	SetCheckKinds         = "check-kinds"
	SetPlanStatuses       = "plan-statuses"
	SetDocumentTypes      = "document-types"
	SetCheckResults       = "check-results"
)
