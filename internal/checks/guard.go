package checks

import (
	"metrology/internal/domain"
	domainerrors "metrology/pkg/domain-errors"
)

// CheckPlanMatch verifies an event references a plan for the same instrument
// and check type. Runs before the event row is written.
func CheckPlanMatch(plan domain.CheckPlan, instrumentID, checkTypeID domain.ID) error {
	if plan.InstrumentID != instrumentID || plan.CheckTypeID != checkTypeID {
		return domainerrors.New(domainerrors.CodeConsistency,
			"event instrument and check type must match the referenced plan")
	}
	return nil
}
