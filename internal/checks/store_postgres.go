package checks

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

// PostgresStore persists the checks lifecycle in PostgreSQL, joining any
// transaction carried in context.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateCheckType(ctx context.Context, ct domain.CheckType) error {
	_, err := postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO check_type(id, code, name, check_kind_id)
		VALUES ($1, $2, $3, $4)`,
		ct.ID, ct.Code, ct.Name, ct.KindID)
	return postgres.MapError(err, "check type not found")
}

func (s *PostgresStore) GetCheckType(ctx context.Context, id domain.ID) (domain.CheckType, error) {
	var ct domain.CheckType
	err := postgres.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, code, name, check_kind_id FROM check_type WHERE id = $1`, id).
		Scan(&ct.ID, &ct.Code, &ct.Name, &ct.KindID)
	if err != nil {
		return domain.CheckType{}, postgres.MapError(err, "check type not found")
	}
	return ct, nil
}

func (s *PostgresStore) ListCheckTypes(ctx context.Context, limit, offset int) ([]domain.CheckType, error) {
	rows, err := postgres.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT id, code, name, check_kind_id FROM check_type
		ORDER BY code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, postgres.MapError(err, "check types")
	}
	defer rows.Close()

	var types []domain.CheckType
	for rows.Next() {
		var ct domain.CheckType
		if err := rows.Scan(&ct.ID, &ct.Code, &ct.Name, &ct.KindID); err != nil {
			return nil, postgres.MapError(err, "check types")
		}
		types = append(types, ct)
	}
	return types, rows.Err()
}

func (s *PostgresStore) CreateRequirement(ctx context.Context, req domain.CheckRequirement) error {
	_, err := postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO check_requirement(id, instrument_model_id, check_type_id, interval_months, grace_days, is_mandatory, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		req.ID, req.ModelID, req.CheckTypeID, req.IntervalMonths, req.GraceDays, req.Mandatory, req.Notes)
	return postgres.MapError(err, "check requirement not found")
}

func (s *PostgresStore) GetRequirement(ctx context.Context, id domain.ID) (domain.CheckRequirement, error) {
	var req domain.CheckRequirement
	err := postgres.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, instrument_model_id, check_type_id, interval_months, grace_days, is_mandatory, notes
		FROM check_requirement WHERE id = $1`, id).
		Scan(&req.ID, &req.ModelID, &req.CheckTypeID, &req.IntervalMonths, &req.GraceDays, &req.Mandatory, &req.Notes)
	if err != nil {
		return domain.CheckRequirement{}, postgres.MapError(err, "check requirement not found")
	}
	return req, nil
}

func (s *PostgresStore) RequirementFor(ctx context.Context, modelID, checkTypeID domain.ID) (domain.CheckRequirement, error) {
	var req domain.CheckRequirement
	err := postgres.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, instrument_model_id, check_type_id, interval_months, grace_days, is_mandatory, notes
		FROM check_requirement
		WHERE instrument_model_id = $1 AND check_type_id = $2`, modelID, checkTypeID).
		Scan(&req.ID, &req.ModelID, &req.CheckTypeID, &req.IntervalMonths, &req.GraceDays, &req.Mandatory, &req.Notes)
	if err != nil {
		return domain.CheckRequirement{}, postgres.MapError(err, "check requirement not found")
	}
	return req, nil
}

func (s *PostgresStore) ListRequirements(ctx context.Context, modelID *domain.ID, limit, offset int) ([]domain.CheckRequirement, error) {
	query := `
		SELECT id, instrument_model_id, check_type_id, interval_months, grace_days, is_mandatory, notes
		FROM check_requirement`
	var args []any
	if modelID != nil {
		args = append(args, *modelID)
		query += " WHERE instrument_model_id = $1"
	}
	args = append(args, limit)
	query += " ORDER BY id LIMIT $" + strconv.Itoa(len(args))
	args = append(args, offset)
	query += " OFFSET $" + strconv.Itoa(len(args))

	rows, err := postgres.ExecutorFrom(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, postgres.MapError(err, "check requirements")
	}
	defer rows.Close()

	var reqs []domain.CheckRequirement
	for rows.Next() {
		var req domain.CheckRequirement
		if err := rows.Scan(&req.ID, &req.ModelID, &req.CheckTypeID, &req.IntervalMonths, &req.GraceDays, &req.Mandatory, &req.Notes); err != nil {
			return nil, postgres.MapError(err, "check requirements")
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

func (s *PostgresStore) UpdateRequirement(ctx context.Context, req domain.CheckRequirement) error {
	res, err := postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		UPDATE check_requirement SET
			interval_months = $2, grace_days = $3, is_mandatory = $4, notes = $5
		WHERE id = $1`,
		req.ID, req.IntervalMonths, req.GraceDays, req.Mandatory, req.Notes)
	if err != nil {
		return postgres.MapError(err, "check requirement not found")
	}
	return requireAffected(res, "check requirement not found")
}

func (s *PostgresStore) DeleteRequirement(ctx context.Context, id domain.ID) error {
	res, err := postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		DELETE FROM check_requirement WHERE id = $1`, id)
	if err != nil {
		return postgres.MapError(err, "check requirement not found")
	}
	return requireAffected(res, "check requirement not found")
}

func (s *PostgresStore) CreatePlan(ctx context.Context, plan domain.CheckPlan) error {
	_, err := postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO check_plan(id, instrument_id, check_type_id, due_date, planned_lab_id, planned_specialist_id, status_id, created_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		plan.ID, plan.InstrumentID, plan.CheckTypeID, plan.DueDate,
		plan.PlannedLabID, plan.PlannedSpecialistID, plan.StatusID, plan.CreatedAt, plan.Notes)
	return postgres.MapError(err, "check plan not found")
}

func (s *PostgresStore) CreatePlanSkipConflict(ctx context.Context, plan domain.CheckPlan) (bool, error) {
	res, err := postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO check_plan(id, instrument_id, check_type_id, due_date, planned_lab_id, planned_specialist_id, status_id, created_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT ON CONSTRAINT uq_check_plan DO NOTHING`,
		plan.ID, plan.InstrumentID, plan.CheckTypeID, plan.DueDate,
		plan.PlannedLabID, plan.PlannedSpecialistID, plan.StatusID, plan.CreatedAt, plan.Notes)
	if err != nil {
		return false, postgres.MapError(err, "check plan")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, postgres.MapError(err, "check plan")
	}
	return affected > 0, nil
}

func (s *PostgresStore) GetPlan(ctx context.Context, id domain.ID) (domain.CheckPlan, error) {
	var plan domain.CheckPlan
	err := postgres.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, instrument_id, check_type_id, due_date, planned_lab_id, planned_specialist_id, status_id, created_at, notes
		FROM check_plan WHERE id = $1`, id).
		Scan(&plan.ID, &plan.InstrumentID, &plan.CheckTypeID, &plan.DueDate,
			&plan.PlannedLabID, &plan.PlannedSpecialistID, &plan.StatusID, &plan.CreatedAt, &plan.Notes)
	if err != nil {
		return domain.CheckPlan{}, postgres.MapError(err, "check plan not found")
	}
	return plan, nil
}

func (s *PostgresStore) ListPlans(ctx context.Context, filter PlanFilter) ([]domain.CheckPlan, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, instrument_id, check_type_id, due_date, planned_lab_id, planned_specialist_id, status_id, created_at, notes
		FROM check_plan`)
	var args []any
	var conds []string
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, cond+" $"+strconv.Itoa(len(args)))
	}
	if filter.InstrumentID != nil {
		add("instrument_id =", *filter.InstrumentID)
	}
	if filter.StatusID != nil {
		add("status_id =", *filter.StatusID)
	}
	if filter.DueFrom != nil {
		add("due_date >=", *filter.DueFrom)
	}
	if filter.DueTo != nil {
		add("due_date <=", *filter.DueTo)
	}
	if len(conds) > 0 {
		query.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	query.WriteString(" ORDER BY due_date, id")
	args = append(args, filter.Limit)
	query.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	args = append(args, filter.Offset)
	query.WriteString(" OFFSET $" + strconv.Itoa(len(args)))

	rows, err := postgres.ExecutorFrom(ctx, s.db).QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, postgres.MapError(err, "check plans")
	}
	defer rows.Close()

	var plans []domain.CheckPlan
	for rows.Next() {
		var plan domain.CheckPlan
		if err := rows.Scan(&plan.ID, &plan.InstrumentID, &plan.CheckTypeID, &plan.DueDate,
			&plan.PlannedLabID, &plan.PlannedSpecialistID, &plan.StatusID, &plan.CreatedAt, &plan.Notes); err != nil {
			return nil, postgres.MapError(err, "check plans")
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (s *PostgresStore) SetPlanStatus(ctx context.Context, planID, statusID domain.ID) error {
	res, err := postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		UPDATE check_plan SET status_id = $2 WHERE id = $1`, planID, statusID)
	if err != nil {
		return postgres.MapError(err, "check plan not found")
	}
	return requireAffected(res, "check plan not found")
}

func (s *PostgresStore) CreateEvent(ctx context.Context, event domain.CheckEvent) error {
	_, err := postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO check_event(id, instrument_id, check_plan_id, check_type_id, lab_id, specialist_id,
			check_date, result_status_id, protocol_no, next_due_date, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		event.ID, event.InstrumentID, event.PlanID, event.CheckTypeID, event.LabID, event.SpecialistID,
		event.CheckDate, event.ResultID, event.ProtocolNo, event.NextDueDate, event.Notes, event.CreatedAt)
	return postgres.MapError(err, "check event not found")
}

func (s *PostgresStore) GetEvent(ctx context.Context, id domain.ID) (domain.CheckEvent, error) {
	var event domain.CheckEvent
	err := postgres.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, instrument_id, check_plan_id, check_type_id, lab_id, specialist_id,
			check_date, result_status_id, protocol_no, next_due_date, notes, created_at
		FROM check_event WHERE id = $1`, id).
		Scan(&event.ID, &event.InstrumentID, &event.PlanID, &event.CheckTypeID, &event.LabID, &event.SpecialistID,
			&event.CheckDate, &event.ResultID, &event.ProtocolNo, &event.NextDueDate, &event.Notes, &event.CreatedAt)
	if err != nil {
		return domain.CheckEvent{}, postgres.MapError(err, "check event not found")
	}
	return event, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, instrumentID domain.ID, limit, offset int) ([]domain.CheckEvent, error) {
	rows, err := postgres.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT id, instrument_id, check_plan_id, check_type_id, lab_id, specialist_id,
			check_date, result_status_id, protocol_no, next_due_date, notes, created_at
		FROM check_event
		WHERE instrument_id = $1
		ORDER BY check_date, id LIMIT $2 OFFSET $3`, instrumentID, limit, offset)
	if err != nil {
		return nil, postgres.MapError(err, "check events")
	}
	defer rows.Close()

	var events []domain.CheckEvent
	for rows.Next() {
		var event domain.CheckEvent
		if err := rows.Scan(&event.ID, &event.InstrumentID, &event.PlanID, &event.CheckTypeID, &event.LabID, &event.SpecialistID,
			&event.CheckDate, &event.ResultID, &event.ProtocolNo, &event.NextDueDate, &event.Notes, &event.CreatedAt); err != nil {
			return nil, postgres.MapError(err, "check events")
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *PostgresStore) CreateDocument(ctx context.Context, doc domain.Document) error {
	_, err := postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO document(id, document_type_id, title, storage_ref, sha256, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.ID, doc.TypeID, doc.Title, doc.StorageRef, doc.SHA256, doc.CreatedAt)
	return postgres.MapError(err, "document not found")
}

func (s *PostgresStore) GetDocument(ctx context.Context, id domain.ID) (domain.Document, error) {
	var doc domain.Document
	err := postgres.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, document_type_id, title, storage_ref, sha256, created_at
		FROM document WHERE id = $1`, id).
		Scan(&doc.ID, &doc.TypeID, &doc.Title, &doc.StorageRef, &doc.SHA256, &doc.CreatedAt)
	if err != nil {
		return domain.Document{}, postgres.MapError(err, "document not found")
	}
	return doc, nil
}

func (s *PostgresStore) LinkEventDocument(ctx context.Context, eventID, documentID domain.ID) error {
	_, err := postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO check_event_document(check_event_id, document_id)
		VALUES ($1, $2)`, eventID, documentID)
	return postgres.MapError(err, "check event document")
}

func (s *PostgresStore) EventDocuments(ctx context.Context, eventID domain.ID) ([]domain.Document, error) {
	rows, err := postgres.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT d.id, d.document_type_id, d.title, d.storage_ref, d.sha256, d.created_at
		FROM check_event_document ced
		JOIN document d ON d.id = ced.document_id
		WHERE ced.check_event_id = $1
		ORDER BY d.id`, eventID)
	if err != nil {
		return nil, postgres.MapError(err, "documents")
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var doc domain.Document
		if err := rows.Scan(&doc.ID, &doc.TypeID, &doc.Title, &doc.StorageRef, &doc.SHA256, &doc.CreatedAt); err != nil {
			return nil, postgres.MapError(err, "documents")
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) InstrumentModel(ctx context.Context, instrumentID domain.ID) (domain.ID, error) {
	var modelID domain.ID
	err := postgres.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT instrument_model_id FROM instrument WHERE id = $1`, instrumentID).
		Scan(&modelID)
	if err != nil {
		return domain.ID{}, postgres.MapError(err, "instrument not found")
	}
	return modelID, nil
}

// dueRowsQuery is the last-success rollup: for every (instrument, check
// type) pair, the latest successful event and the due date it produced.
const dueRowsQuery = `
	WITH last_success AS (
		SELECT ce.instrument_id, ce.check_type_id, max(ce.check_date) AS last_check_date
		FROM check_event ce
		JOIN check_result_status rs ON rs.id = ce.result_status_id
		WHERE rs.is_success = true
		GROUP BY ce.instrument_id, ce.check_type_id
	)
	SELECT
		i.id, i.inventory_no, i.serial_no, i.org_unit_id, i.location_id, i.status_id,
		ct.id, ct.code,
		ls.last_check_date, ce.next_due_date, ce.protocol_no, ce.lab_id, ce.specialist_id
	FROM last_success ls
	JOIN instrument i ON i.id = ls.instrument_id
	JOIN check_type ct ON ct.id = ls.check_type_id
	JOIN LATERAL (
		SELECT e.next_due_date, e.protocol_no, e.lab_id, e.specialist_id
		FROM check_event e
		JOIN check_result_status ers ON ers.id = e.result_status_id
		WHERE e.instrument_id = ls.instrument_id
			AND e.check_type_id = ls.check_type_id
			AND e.check_date = ls.last_check_date
			AND ers.is_success = true
		ORDER BY e.created_at DESC
		LIMIT 1
	) ce ON true
	WHERE ce.next_due_date IS NOT NULL`

func (s *PostgresStore) DueRows(ctx context.Context) ([]domain.CheckDueRow, error) {
	rows, err := postgres.ExecutorFrom(ctx, s.db).QueryContext(ctx,
		dueRowsQuery+` ORDER BY ce.next_due_date, i.inventory_no`)
	if err != nil {
		return nil, postgres.MapError(err, "due rows")
	}
	defer rows.Close()

	var out []domain.CheckDueRow
	for rows.Next() {
		var row domain.CheckDueRow
		var statusID domain.ID
		if err := rows.Scan(&row.InstrumentID, &row.InventoryNo, &row.SerialNo, &row.OrgUnitID, &row.LocationID, &statusID,
			&row.CheckTypeID, &row.CheckTypeCode,
			&row.LastCheckDate, &row.NextDueDate, &row.ProtocolNo, &row.LabID, &row.SpecialistID); err != nil {
			return nil, postgres.MapError(err, "due rows")
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DueCandidates(ctx context.Context, from, to time.Time) ([]PlanCandidate, error) {
	rows, err := postgres.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT due.instrument_id, due.check_type_id, due.next_due_date
		FROM (`+dueRowsQuery+`) AS due(instrument_id, inventory_no, serial_no, org_unit_id, location_id, status_id,
			check_type_id, check_type_code, last_check_date, next_due_date, protocol_no, lab_id, specialist_id)
		JOIN instrument_status st ON st.id = due.status_id
		WHERE st.code = $1 AND due.next_due_date BETWEEN $2 AND $3`,
		domain.StatusActive, from, to)
	if err != nil {
		return nil, postgres.MapError(err, "plan candidates")
	}
	defer rows.Close()

	var out []PlanCandidate
	for rows.Next() {
		var c PlanCandidate
		if err := rows.Scan(&c.InstrumentID, &c.CheckTypeID, &c.DueDate); err != nil {
			return nil, postgres.MapError(err, "plan candidates")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ResolveResult(ctx context.Context, code string) (domain.ResultStatusRow, error) {
	var row domain.ResultStatusRow
	err := postgres.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, code, name, is_success FROM check_result_status WHERE code = $1`, code).
		Scan(&row.ID, &row.Code, &row.Name, &row.IsSuccess)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.ResultStatusRow{}, domainerrors.Newf(domainerrors.CodeValidation, "unknown result code %s", code)
		}
		return domain.ResultStatusRow{}, postgres.MapError(err, "result status")
	}
	return row, nil
}

func (s *PostgresStore) ResolvePlanStatus(ctx context.Context, code string) (domain.LookupRow, error) {
	return s.resolveLookup(ctx, "check_plan_status", code,
		domainerrors.Newf(domainerrors.CodeConfiguration, "plan status %s not seeded", code))
}

func (s *PostgresStore) ResolveCheckKind(ctx context.Context, code string) (domain.LookupRow, error) {
	return s.resolveLookup(ctx, "check_kind", code,
		domainerrors.Newf(domainerrors.CodeValidation, "unknown check kind %s", code))
}

func (s *PostgresStore) ResolveDocumentType(ctx context.Context, code string) (domain.LookupRow, error) {
	return s.resolveLookup(ctx, "document_type", code,
		domainerrors.Newf(domainerrors.CodeValidation, "unknown document type %s", code))
}

func (s *PostgresStore) resolveLookup(ctx context.Context, table, code string, missing error) (domain.LookupRow, error) {
	var row domain.LookupRow
	err := postgres.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, code, name FROM `+table+` WHERE code = $1`, code).
		Scan(&row.ID, &row.Code, &row.Name)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.LookupRow{}, missing
		}
		return domain.LookupRow{}, postgres.MapError(err, table)
	}
	return row, nil
}

func requireAffected(res sql.Result, notFoundMsg string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return postgres.MapError(err, notFoundMsg)
	}
	if affected == 0 {
		return domainerrors.New(domainerrors.CodeNotFound, notFoundMsg)
	}
	return nil
}
