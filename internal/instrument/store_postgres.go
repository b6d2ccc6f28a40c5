package instrument

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"metrology/internal/domain"
	"metrology/internal/platform/postgres"
	domainerrors "metrology/pkg/domain-errors"
)

const instrumentColumns = `id, instrument_model_id, inventory_no, serial_no,
	range_min, range_max, range_unit, error_limit, error_unit, accuracy_class,
	org_unit_id, location_id, installed_at, status_id,
	replaced_by_instrument_id, decommissioned_at, decommission_reason`

// PostgresStore persists instruments in PostgreSQL, joining any transaction
// carried in context.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateType(ctx context.Context, t domain.InstrumentType) error {
	_, err := postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO instrument_type(id, code, name) VALUES ($1, $2, $3)`,
		t.ID, t.Code, t.Name)
	return postgres.MapError(err, "instrument type not found")
}

func (s *PostgresStore) GetType(ctx context.Context, id domain.ID) (domain.InstrumentType, error) {
	var t domain.InstrumentType
	err := postgres.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, code, name FROM instrument_type WHERE id = $1`, id).
		Scan(&t.ID, &t.Code, &t.Name)
	if err != nil {
		return domain.InstrumentType{}, postgres.MapError(err, "instrument type not found")
	}
	return t, nil
}

func (s *PostgresStore) ListTypes(ctx context.Context, limit, offset int) ([]domain.InstrumentType, error) {
	rows, err := postgres.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT id, code, name FROM instrument_type
		ORDER BY code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, postgres.MapError(err, "instrument types")
	}
	defer rows.Close()

	var types []domain.InstrumentType
	for rows.Next() {
		var t domain.InstrumentType
		if err := rows.Scan(&t.ID, &t.Code, &t.Name); err != nil {
			return nil, postgres.MapError(err, "instrument types")
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (s *PostgresStore) CreateModel(ctx context.Context, m domain.InstrumentModel) error {
	_, err := postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO instrument_model(id, instrument_type_id, manufacturer, model_name, description)
		VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.InstrumentTypeID, m.Manufacturer, m.ModelName, m.Description)
	return postgres.MapError(err, "instrument model not found")
}

func (s *PostgresStore) GetModel(ctx context.Context, id domain.ID) (domain.InstrumentModel, error) {
	var m domain.InstrumentModel
	err := postgres.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, instrument_type_id, manufacturer, model_name, description
		FROM instrument_model WHERE id = $1`, id).
		Scan(&m.ID, &m.InstrumentTypeID, &m.Manufacturer, &m.ModelName, &m.Description)
	if err != nil {
		return domain.InstrumentModel{}, postgres.MapError(err, "instrument model not found")
	}
	return m, nil
}

func (s *PostgresStore) ListModels(ctx context.Context, limit, offset int) ([]domain.InstrumentModel, error) {
	rows, err := postgres.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT id, instrument_type_id, manufacturer, model_name, description
		FROM instrument_model
		ORDER BY manufacturer, model_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, postgres.MapError(err, "instrument models")
	}
	defer rows.Close()

	var models []domain.InstrumentModel
	for rows.Next() {
		var m domain.InstrumentModel
		if err := rows.Scan(&m.ID, &m.InstrumentTypeID, &m.Manufacturer, &m.ModelName, &m.Description); err != nil {
			return nil, postgres.MapError(err, "instrument models")
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, inst domain.Instrument) error {
	_, err := postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO instrument(`+instrumentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		inst.ID, inst.ModelID, inst.InventoryNo, inst.SerialNo,
		inst.RangeMin, inst.RangeMax, inst.RangeUnit, inst.ErrorLimit, inst.ErrorUnit, inst.AccuracyClass,
		inst.OrgUnitID, inst.LocationID, inst.InstalledAt, inst.StatusID,
		inst.ReplacedByID, inst.DecommissionedAt, inst.DecommissionReason)
	return postgres.MapError(err, "instrument not found")
}

func (s *PostgresStore) Get(ctx context.Context, id domain.ID) (domain.Instrument, error) {
	row := postgres.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+instrumentColumns+` FROM instrument WHERE id = $1`, id)
	return scanInstrument(row)
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]domain.Instrument, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT ` + instrumentColumns + ` FROM instrument`)
	var args []any
	var conds []string
	add := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, column+" = $"+strconv.Itoa(len(args)))
	}
	if filter.OrgUnitID != nil {
		add("org_unit_id", *filter.OrgUnitID)
	}
	if filter.LocationID != nil {
		add("location_id", *filter.LocationID)
	}
	if filter.StatusID != nil {
		add("status_id", *filter.StatusID)
	}
	if filter.ModelID != nil {
		add("instrument_model_id", *filter.ModelID)
	}
	if len(conds) > 0 {
		query.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	query.WriteString(" ORDER BY inventory_no")
	args = append(args, filter.Limit)
	query.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	args = append(args, filter.Offset)
	query.WriteString(" OFFSET $" + strconv.Itoa(len(args)))

	rows, err := postgres.ExecutorFrom(ctx, s.db).QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, postgres.MapError(err, "instruments")
	}
	defer rows.Close()

	var insts []domain.Instrument
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		insts = append(insts, inst)
	}
	return insts, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, inst domain.Instrument) error {
	res, err := postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		UPDATE instrument SET
			instrument_model_id = $2, inventory_no = $3, serial_no = $4,
			range_min = $5, range_max = $6, range_unit = $7,
			error_limit = $8, error_unit = $9, accuracy_class = $10,
			org_unit_id = $11, location_id = $12, installed_at = $13,
			status_id = $14, replaced_by_instrument_id = $15,
			decommissioned_at = $16, decommission_reason = $17
		WHERE id = $1`,
		inst.ID, inst.ModelID, inst.InventoryNo, inst.SerialNo,
		inst.RangeMin, inst.RangeMax, inst.RangeUnit, inst.ErrorLimit, inst.ErrorUnit, inst.AccuracyClass,
		inst.OrgUnitID, inst.LocationID, inst.InstalledAt, inst.StatusID,
		inst.ReplacedByID, inst.DecommissionedAt, inst.DecommissionReason)
	if err != nil {
		return postgres.MapError(err, "instrument not found")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return postgres.MapError(err, "instrument not found")
	}
	if affected == 0 {
		return domainerrors.New(domainerrors.CodeNotFound, "instrument not found")
	}
	return nil
}

func (s *PostgresStore) AppendHistory(ctx context.Context, entry domain.StatusHistoryEntry) error {
	_, err := postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO instrument_status_history(id, instrument_id, status_id, valid_from, valid_to, reason)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.InstrumentID, entry.StatusID, entry.ValidFrom, entry.ValidTo, entry.Reason)
	return postgres.MapError(err, "status history")
}

func (s *PostgresStore) CloseOpenHistory(ctx context.Context, instrumentID domain.ID, at time.Time) error {
	_, err := postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		UPDATE instrument_status_history SET valid_to = $2
		WHERE instrument_id = $1 AND valid_to IS NULL`,
		instrumentID, at)
	return postgres.MapError(err, "status history")
}

func (s *PostgresStore) ListHistory(ctx context.Context, instrumentID domain.ID) ([]domain.StatusHistoryEntry, error) {
	rows, err := postgres.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT id, instrument_id, status_id, valid_from, valid_to, reason
		FROM instrument_status_history
		WHERE instrument_id = $1
		ORDER BY valid_from`, instrumentID)
	if err != nil {
		return nil, postgres.MapError(err, "status history")
	}
	defer rows.Close()

	var entries []domain.StatusHistoryEntry
	for rows.Next() {
		var entry domain.StatusHistoryEntry
		var reason sql.NullString
		if err := rows.Scan(&entry.ID, &entry.InstrumentID, &entry.StatusID,
			&entry.ValidFrom, &entry.ValidTo, &reason); err != nil {
			return nil, postgres.MapError(err, "status history")
		}
		entry.Reason = reason.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) ResolveStatus(ctx context.Context, code string) (domain.LookupRow, error) {
	var row domain.LookupRow
	err := postgres.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, code, name FROM instrument_status WHERE code = $1`, code).
		Scan(&row.ID, &row.Code, &row.Name)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.LookupRow{}, domainerrors.Newf(domainerrors.CodeConfiguration,
				"instrument status %s not seeded", code)
		}
		return domain.LookupRow{}, postgres.MapError(err, "instrument status")
	}
	return row, nil
}

func (s *PostgresStore) LocationOrgUnit(ctx context.Context, locationID domain.ID) (domain.ID, error) {
	var owner domain.ID
	err := postgres.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT org_unit_id FROM location WHERE id = $1`, locationID).
		Scan(&owner)
	if err != nil {
		return domain.ID{}, postgres.MapError(err, "location not found")
	}
	return owner, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstrument(row rowScanner) (domain.Instrument, error) {
	var inst domain.Instrument
	err := row.Scan(
		&inst.ID, &inst.ModelID, &inst.InventoryNo, &inst.SerialNo,
		&inst.RangeMin, &inst.RangeMax, &inst.RangeUnit,
		&inst.ErrorLimit, &inst.ErrorUnit, &inst.AccuracyClass,
		&inst.OrgUnitID, &inst.LocationID, &inst.InstalledAt, &inst.StatusID,
		&inst.ReplacedByID, &inst.DecommissionedAt, &inst.DecommissionReason)
	if err != nil {
		return domain.Instrument{}, postgres.MapError(err, "instrument not found")
	}
	return inst, nil
}
