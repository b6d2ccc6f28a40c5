package directory

import (
	"context"
	"database/sql"
	"encoding/json"

	"metrology/internal/domain"
	"metrology/internal/platform/postgres"
	domainerrors "metrology/pkg/domain-errors"
)

// PostgresStore persists directory rows in PostgreSQL. It joins any
// transaction carried in context.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateOrgUnit(ctx context.Context, unit domain.OrgUnit) error {
	_, err := postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO org_unit(id, code, name, parent_id)
		VALUES ($1, $2, $3, $4)`,
		unit.ID, unit.Code, unit.Name, unit.ParentID)
	return postgres.MapError(err, "org unit not found")
}

func (s *PostgresStore) GetOrgUnit(ctx context.Context, id domain.ID) (domain.OrgUnit, error) {
	var unit domain.OrgUnit
	err := postgres.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, code, name, parent_id FROM org_unit WHERE id = $1`, id).
		Scan(&unit.ID, &unit.Code, &unit.Name, &unit.ParentID)
	if err != nil {
		return domain.OrgUnit{}, postgres.MapError(err, "org unit not found")
	}
	return unit, nil
}

func (s *PostgresStore) ListOrgUnits(ctx context.Context, limit, offset int) ([]domain.OrgUnit, error) {
	rows, err := postgres.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT id, code, name, parent_id FROM org_unit
		ORDER BY code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, postgres.MapError(err, "org units")
	}
	defer rows.Close()

	var units []domain.OrgUnit
	for rows.Next() {
		var unit domain.OrgUnit
		if err := rows.Scan(&unit.ID, &unit.Code, &unit.Name, &unit.ParentID); err != nil {
			return nil, postgres.MapError(err, "org units")
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

func (s *PostgresStore) DeleteOrgUnit(ctx context.Context, id domain.ID) error {
	res, err := postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		DELETE FROM org_unit WHERE id = $1`, id)
	if err != nil {
		return postgres.MapError(err, "org unit not found")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return postgres.MapError(err, "org unit not found")
	}
	if affected == 0 {
		return domainerrors.New(domainerrors.CodeNotFound, "org unit not found")
	}
	return nil
}

func (s *PostgresStore) CreateLocation(ctx context.Context, loc domain.Location) error {
	_, err := postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO location(id, org_unit_id, code, name)
		VALUES ($1, $2, $3, $4)`,
		loc.ID, loc.OrgUnitID, loc.Code, loc.Name)
	return postgres.MapError(err, "location not found")
}

func (s *PostgresStore) GetLocation(ctx context.Context, id domain.ID) (domain.Location, error) {
	var loc domain.Location
	err := postgres.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, org_unit_id, code, name FROM location WHERE id = $1`, id).
		Scan(&loc.ID, &loc.OrgUnitID, &loc.Code, &loc.Name)
	if err != nil {
		return domain.Location{}, postgres.MapError(err, "location not found")
	}
	return loc, nil
}

func (s *PostgresStore) ListLocations(ctx context.Context, limit, offset int) ([]domain.Location, error) {
	rows, err := postgres.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT id, org_unit_id, code, name FROM location
		ORDER BY code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, postgres.MapError(err, "locations")
	}
	defer rows.Close()

	var locs []domain.Location
	for rows.Next() {
		var loc domain.Location
		if err := rows.Scan(&loc.ID, &loc.OrgUnitID, &loc.Code, &loc.Name); err != nil {
			return nil, postgres.MapError(err, "locations")
		}
		locs = append(locs, loc)
	}
	return locs, rows.Err()
}

func (s *PostgresStore) CreateLab(ctx context.Context, lab domain.Lab) error {
	contacts, err := marshalContacts(lab.Contacts)
	if err != nil {
		return err
	}
	_, err = postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO lab(id, code, name, accreditation_no, contacts)
		VALUES ($1, $2, $3, $4, $5)`,
		lab.ID, lab.Code, lab.Name, lab.AccreditationNo, contacts)
	return postgres.MapError(err, "lab not found")
}

func (s *PostgresStore) GetLab(ctx context.Context, id domain.ID) (domain.Lab, error) {
	var lab domain.Lab
	var contacts []byte
	err := postgres.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, code, name, accreditation_no, contacts FROM lab WHERE id = $1`, id).
		Scan(&lab.ID, &lab.Code, &lab.Name, &lab.AccreditationNo, &contacts)
	if err != nil {
		return domain.Lab{}, postgres.MapError(err, "lab not found")
	}
	if len(contacts) > 0 {
		if err := json.Unmarshal(contacts, &lab.Contacts); err != nil {
			return domain.Lab{}, domainerrors.Wrap(err, domainerrors.CodeInternal, "decode lab contacts")
		}
	}
	return lab, nil
}

func (s *PostgresStore) ListLabs(ctx context.Context, limit, offset int) ([]domain.Lab, error) {
	rows, err := postgres.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT id, code, name, accreditation_no, contacts FROM lab
		ORDER BY code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, postgres.MapError(err, "labs")
	}
	defer rows.Close()

	var labs []domain.Lab
	for rows.Next() {
		var lab domain.Lab
		var contacts []byte
		if err := rows.Scan(&lab.ID, &lab.Code, &lab.Name, &lab.AccreditationNo, &contacts); err != nil {
			return nil, postgres.MapError(err, "labs")
		}
		if len(contacts) > 0 {
			if err := json.Unmarshal(contacts, &lab.Contacts); err != nil {
				return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "decode lab contacts")
			}
		}
		labs = append(labs, lab)
	}
	return labs, rows.Err()
}

func (s *PostgresStore) CreateSpecialist(ctx context.Context, sp domain.Specialist) error {
	_, err := postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO specialist(id, lab_id, full_name, position, email, phone)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		sp.ID, sp.LabID, sp.FullName, sp.Position, sp.Email, sp.Phone)
	return postgres.MapError(err, "specialist not found")
}

func (s *PostgresStore) GetSpecialist(ctx context.Context, id domain.ID) (domain.Specialist, error) {
	var sp domain.Specialist
	err := postgres.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, lab_id, full_name, position, email, phone FROM specialist WHERE id = $1`, id).
		Scan(&sp.ID, &sp.LabID, &sp.FullName, &sp.Position, &sp.Email, &sp.Phone)
	if err != nil {
		return domain.Specialist{}, postgres.MapError(err, "specialist not found")
	}
	return sp, nil
}

func (s *PostgresStore) ListSpecialists(ctx context.Context, limit, offset int) ([]domain.Specialist, error) {
	rows, err := postgres.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT id, lab_id, full_name, position, email, phone FROM specialist
		ORDER BY full_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, postgres.MapError(err, "specialists")
	}
	defer rows.Close()

	var sps []domain.Specialist
	for rows.Next() {
		var sp domain.Specialist
		if err := rows.Scan(&sp.ID, &sp.LabID, &sp.FullName, &sp.Position, &sp.Email, &sp.Phone); err != nil {
			return nil, postgres.MapError(err, "specialists")
		}
		sps = append(sps, sp)
	}
	return sps, rows.Err()
}

func marshalContacts(contacts map[string]string) (any, error) {
	if contacts == nil {
		return nil, nil
	}
	raw, err := json.Marshal(contacts)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "encode lab contacts")
	}
	return raw, nil
}
