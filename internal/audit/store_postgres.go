package audit

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"metrology/internal/domain"
	"metrology/internal/platform/postgres"
)

// PostgresStore persists the trail in the audit_log table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry domain.AuditEntry) error {
	_, err := postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO audit_log(id, at, principal, action, table_name, row_id, old_row, new_row)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.At, entry.Principal, entry.Action, entry.TableName, entry.RowID,
		nullableJSON(entry.OldRow), nullableJSON(entry.NewRow))
	return postgres.MapError(err, "audit entry")
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]domain.AuditEntry, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, at, principal, action, table_name, row_id, old_row, new_row, shipped_at
		FROM audit_log`)
	var args []any
	var conds []string
	if filter.TableName != "" {
		args = append(args, filter.TableName)
		conds = append(conds, "table_name = $"+itoa(len(args)))
	}
	if filter.RowID != nil {
		args = append(args, *filter.RowID)
		conds = append(conds, "row_id = $"+itoa(len(args)))
	}
	if len(conds) > 0 {
		query.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	query.WriteString(" ORDER BY at, id")
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query.WriteString(" LIMIT $" + itoa(len(args)))
	args = append(args, filter.Offset)
	query.WriteString(" OFFSET $" + itoa(len(args)))

	rows, err := postgres.ExecutorFrom(ctx, s.db).QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, postgres.MapError(err, "audit entries")
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) Unshipped(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := postgres.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT id, at, principal, action, table_name, row_id, old_row, new_row, shipped_at
		FROM audit_log
		WHERE shipped_at IS NULL
		ORDER BY at, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, postgres.MapError(err, "audit entries")
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) MarkShipped(ctx context.Context, ids []domain.ID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		UPDATE audit_log SET shipped_at = $1
		WHERE id = ANY($2) AND shipped_at IS NULL`,
		at, pq.Array(ids))
	return postgres.MapError(err, "audit entries")
}

func scanEntries(rows *sql.Rows) ([]domain.AuditEntry, error) {
	var entries []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		var oldRow, newRow []byte
		if err := rows.Scan(&entry.ID, &entry.At, &entry.Principal, &entry.Action,
			&entry.TableName, &entry.RowID, &oldRow, &newRow, &entry.ShippedAt); err != nil {
			return nil, postgres.MapError(err, "audit entries")
		}
		entry.OldRow = oldRow
		entry.NewRow = newRow
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func itoa(n int) string { return strconv.Itoa(n) }
