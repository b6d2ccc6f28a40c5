package instrument

import (
	"context"

	"metrology/internal/domain"
	domainerrors "metrology/pkg/domain-errors"
)

// CheckLocation verifies the instrument's location belongs to its org unit.
// Runs on every create and update, before the row is written.
func CheckLocation(ctx context.Context, store Store, inst domain.Instrument) error {
	owner, err := store.LocationOrgUnit(ctx, inst.LocationID)
	if err != nil {
		return err
	}
	if owner != inst.OrgUnitID {
		return domainerrors.New(domainerrors.CodeConsistency,
			"location belongs to a different org unit")
	}
	return nil
}

// CheckRange rejects inverted measurement ranges before they reach the
// ck_range_order check constraint.
func CheckRange(inst domain.Instrument) error {
	if inst.RangeMin != nil && inst.RangeMax != nil && *inst.RangeMin > *inst.RangeMax {
		return domainerrors.New(domainerrors.CodeValidation,
			"range_min must not exceed range_max").
			WithConstraint("ck_range_order")
	}
	return nil
}
