package lookup

import (
	"context"
	"database/sql"

	"metrology/internal/domain"
	"metrology/internal/platform/postgres"
	domainerrors "metrology/pkg/domain-errors"
)

// PostgresStore reads the seeded sets from their SQL tables.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var setTables = map[string]string{
	SetInstrumentStatuses: "instrument_status",
	SetCheckKinds:         "check_kind",
	SetPlanStatuses:       "check_plan_status",
	SetDocumentTypes:      "document_type",
}

func (s *PostgresStore) Set(ctx context.Context, set string) ([]domain.LookupRow, error) {
	table, ok := setTables[set]
	if !ok {
		return nil, domainerrors.Newf(domainerrors.CodeNotFound, "unknown lookup set %s", set)
	}
	rows, err := postgres.ExecutorFrom(ctx, s.db).QueryContext(ctx,
		`SELECT id, code, name FROM `+table+` ORDER BY code`)
	if err != nil {
		return nil, postgres.MapError(err, "lookup set not found")
	}
	defer rows.Close()

	var out []domain.LookupRow
	for rows.Next() {
		var row domain.LookupRow
		if err := rows.Scan(&row.ID, &row.Code, &row.Name); err != nil {
			return nil, postgres.MapError(err, "lookup set not found")
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Results(ctx context.Context) ([]domain.ResultStatusRow, error) {
	rows, err := postgres.ExecutorFrom(ctx, s.db).QueryContext(ctx,
		`SELECT id, code, name, is_success FROM check_result_status ORDER BY code`)
	if err != nil {
		return nil, postgres.MapError(err, "lookup set not found")
	}
	defer rows.Close()

	var out []domain.ResultStatusRow
	for rows.Next() {
		var row domain.ResultStatusRow
		if err := rows.Scan(&row.ID, &row.Code, &row.Name, &row.IsSuccess); err != nil {
			return nil, postgres.MapError(err, "lookup set not found")
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
