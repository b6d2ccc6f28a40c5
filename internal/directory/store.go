// Package directory holds the reference data the engine resolves against:
// org units, locations, labs, and specialists. Its write surface is plain
// CRUD glue; the engine only ever reads from it.
package directory

import (
	"context"

	"metrology/internal/domain"
)

// Store is the directory persistence port.
type Store interface {
	CreateOrgUnit(ctx context.Context, unit domain.OrgUnit) error
	GetOrgUnit(ctx context.Context, id domain.ID) (domain.OrgUnit, error)
	ListOrgUnits(ctx context.Context, limit, offset int) ([]domain.OrgUnit, error)
	DeleteOrgUnit(ctx context.Context, id domain.ID) error

	CreateLocation(ctx context.Context, loc domain.Location) error
	GetLocation(ctx context.Context, id domain.ID) (domain.Location, error)
	ListLocations(ctx context.Context, limit, offset int) ([]domain.Location, error)

	CreateLab(ctx context.Context, lab domain.Lab) error
	GetLab(ctx context.Context, id domain.ID) (domain.Lab, error)
	ListLabs(ctx context.Context, limit, offset int) ([]domain.Lab, error)

	CreateSpecialist(ctx context.Context, sp domain.Specialist) error
	GetSpecialist(ctx context.Context, id domain.ID) (domain.Specialist, error)
	ListSpecialists(ctx context.Context, limit, offset int) ([]domain.Specialist, error)
}
