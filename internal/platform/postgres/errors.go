package postgres

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"

	domainerrors "metrology/pkg/domain-errors"
)

// pq error classes relevant to the engine's contract.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

// MapError translates driver errors into coded errors without leaking
// storage details: uniqueness violations become conflicts carrying the
// constraint name, missing rows become not-found, everything else stays an
// internal fault.
func MapError(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domainerrors.New(domainerrors.CodeNotFound, notFoundMsg)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return domainerrors.Wrap(err, domainerrors.CodeConflict, "duplicate row").
				WithConstraint(pqErr.Constraint)
		case pqForeignKeyViolation:
			return domainerrors.Wrap(err, domainerrors.CodeConflict, "row is referenced").
				WithConstraint(pqErr.Constraint)
		case pqCheckViolation:
			return domainerrors.Wrap(err, domainerrors.CodeConsistency, "check constraint violated").
				WithConstraint(pqErr.Constraint)
		}
	}
	return domainerrors.Wrap(err, domainerrors.CodeInternal, "store failure")
}
