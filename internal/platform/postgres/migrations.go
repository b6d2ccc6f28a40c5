package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are applied in order exactly once each; schema_migrations
// records the applied count. Requires PostgreSQL 13+ for gen_random_uuid in
// the lookup seeds. Consistency rules that the legacy deployment enforced
// with triggers live in application hooks; the schema keeps only structural
// constraints (uniqueness, checks, foreign keys).
var migrations = []string{
	// Lookup tables.
	`CREATE TABLE IF NOT EXISTS instrument_status (
		id uuid PRIMARY KEY,
		code text NOT NULL UNIQUE,
		name text NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS check_result_status (
		id uuid PRIMARY KEY,
		code text NOT NULL UNIQUE,
		name text NOT NULL,
		is_success boolean NOT NULL DEFAULT false
	);`,
	`CREATE TABLE IF NOT EXISTS check_kind (
		id uuid PRIMARY KEY,
		code text NOT NULL UNIQUE,
		name text NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS check_plan_status (
		id uuid PRIMARY KEY,
		code text NOT NULL UNIQUE,
		name text NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS document_type (
		id uuid PRIMARY KEY,
		code text NOT NULL UNIQUE,
		name text NOT NULL
	);`,

	// Directory.
	`CREATE TABLE IF NOT EXISTS org_unit (
		id uuid PRIMARY KEY,
		code text NOT NULL UNIQUE,
		name text NOT NULL,
		parent_id uuid NULL,
		CONSTRAINT fk_org_unit_parent
			FOREIGN KEY (parent_id) REFERENCES org_unit(id) ON DELETE RESTRICT
	);`,
	`CREATE TABLE IF NOT EXISTS location (
		id uuid PRIMARY KEY,
		org_unit_id uuid NOT NULL,
		code text NOT NULL,
		name text NOT NULL,
		CONSTRAINT fk_location_org_unit
			FOREIGN KEY (org_unit_id) REFERENCES org_unit(id) ON DELETE RESTRICT,
		CONSTRAINT uq_location_org_unit_code UNIQUE (org_unit_id, code)
	);`,
	`CREATE TABLE IF NOT EXISTS lab (
		id uuid PRIMARY KEY,
		code text NOT NULL UNIQUE,
		name text NOT NULL,
		accreditation_no text NULL,
		contacts jsonb NULL
	);`,
	`CREATE TABLE IF NOT EXISTS specialist (
		id uuid PRIMARY KEY,
		lab_id uuid NULL,
		full_name text NOT NULL,
		position text NULL,
		email text NULL,
		phone text NULL,
		CONSTRAINT fk_specialist_lab
			FOREIGN KEY (lab_id) REFERENCES lab(id) ON DELETE RESTRICT
	);`,

	// Nomenclature.
	`CREATE TABLE IF NOT EXISTS instrument_type (
		id uuid PRIMARY KEY,
		code text NOT NULL UNIQUE,
		name text NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS instrument_model (
		id uuid PRIMARY KEY,
		instrument_type_id uuid NOT NULL,
		manufacturer text NOT NULL,
		model_name text NOT NULL,
		description text NULL,
		CONSTRAINT fk_instrument_model_type
			FOREIGN KEY (instrument_type_id) REFERENCES instrument_type(id) ON DELETE RESTRICT,
		CONSTRAINT uq_model UNIQUE (instrument_type_id, manufacturer, model_name)
	);`,
	`CREATE TABLE IF NOT EXISTS instrument (
		id uuid PRIMARY KEY,
		instrument_model_id uuid NOT NULL,
		inventory_no text NOT NULL,
		serial_no text NULL,
		range_min numeric NULL,
		range_max numeric NULL,
		range_unit text NULL,
		error_limit numeric NULL,
		error_unit text NULL,
		accuracy_class text NULL,
		org_unit_id uuid NOT NULL,
		location_id uuid NOT NULL,
		installed_at timestamptz NULL,
		status_id uuid NOT NULL,
		replaced_by_instrument_id uuid NULL,
		decommissioned_at timestamptz NULL,
		decommission_reason text NULL,
		CONSTRAINT fk_instrument_model
			FOREIGN KEY (instrument_model_id) REFERENCES instrument_model(id) ON DELETE RESTRICT,
		CONSTRAINT fk_instrument_org_unit
			FOREIGN KEY (org_unit_id) REFERENCES org_unit(id) ON DELETE RESTRICT,
		CONSTRAINT fk_instrument_location
			FOREIGN KEY (location_id) REFERENCES location(id) ON DELETE RESTRICT,
		CONSTRAINT fk_instrument_status
			FOREIGN KEY (status_id) REFERENCES instrument_status(id) ON DELETE RESTRICT,
		CONSTRAINT fk_instrument_replaced_by
			FOREIGN KEY (replaced_by_instrument_id) REFERENCES instrument(id) ON DELETE RESTRICT,
		CONSTRAINT uq_instrument_inventory UNIQUE (inventory_no),
		CONSTRAINT ck_range_order CHECK (
			range_min IS NULL OR range_max IS NULL OR range_min <= range_max
		)
	);`,

	// Checks.
	`CREATE TABLE IF NOT EXISTS check_type (
		id uuid PRIMARY KEY,
		code text NOT NULL UNIQUE,
		name text NOT NULL,
		check_kind_id uuid NOT NULL,
		CONSTRAINT fk_check_type_kind
			FOREIGN KEY (check_kind_id) REFERENCES check_kind(id) ON DELETE RESTRICT
	);`,
	`CREATE TABLE IF NOT EXISTS check_requirement (
		id uuid PRIMARY KEY,
		instrument_model_id uuid NOT NULL,
		check_type_id uuid NOT NULL,
		interval_months integer NOT NULL,
		grace_days integer NOT NULL DEFAULT 0,
		is_mandatory boolean NOT NULL DEFAULT true,
		notes text NULL,
		CONSTRAINT fk_req_model
			FOREIGN KEY (instrument_model_id) REFERENCES instrument_model(id) ON DELETE RESTRICT,
		CONSTRAINT fk_req_check_type
			FOREIGN KEY (check_type_id) REFERENCES check_type(id) ON DELETE RESTRICT,
		CONSTRAINT uq_req UNIQUE (instrument_model_id, check_type_id),
		CONSTRAINT ck_interval_months CHECK (interval_months > 0),
		CONSTRAINT ck_grace_days CHECK (grace_days >= 0)
	);`,
	`CREATE TABLE IF NOT EXISTS check_plan (
		id uuid PRIMARY KEY,
		instrument_id uuid NOT NULL,
		check_type_id uuid NOT NULL,
		due_date date NOT NULL,
		planned_lab_id uuid NULL,
		planned_specialist_id uuid NULL,
		status_id uuid NOT NULL,
		created_at timestamptz NOT NULL DEFAULT now(),
		notes text NULL,
		CONSTRAINT fk_plan_instrument
			FOREIGN KEY (instrument_id) REFERENCES instrument(id) ON DELETE RESTRICT,
		CONSTRAINT fk_plan_check_type
			FOREIGN KEY (check_type_id) REFERENCES check_type(id) ON DELETE RESTRICT,
		CONSTRAINT fk_plan_lab
			FOREIGN KEY (planned_lab_id) REFERENCES lab(id) ON DELETE RESTRICT,
		CONSTRAINT fk_plan_specialist
			FOREIGN KEY (planned_specialist_id) REFERENCES specialist(id) ON DELETE RESTRICT,
		CONSTRAINT fk_plan_status
			FOREIGN KEY (status_id) REFERENCES check_plan_status(id) ON DELETE RESTRICT,
		CONSTRAINT uq_check_plan UNIQUE (instrument_id, check_type_id, due_date)
	);`,
	`CREATE TABLE IF NOT EXISTS check_event (
		id uuid PRIMARY KEY,
		instrument_id uuid NOT NULL,
		check_plan_id uuid NULL,
		check_type_id uuid NOT NULL,
		lab_id uuid NOT NULL,
		specialist_id uuid NULL,
		check_date date NOT NULL,
		result_status_id uuid NOT NULL,
		protocol_no text NULL,
		next_due_date date NULL,
		notes text NULL,
		created_at timestamptz NOT NULL DEFAULT now(),
		CONSTRAINT fk_event_instrument
			FOREIGN KEY (instrument_id) REFERENCES instrument(id) ON DELETE RESTRICT,
		CONSTRAINT fk_event_plan
			FOREIGN KEY (check_plan_id) REFERENCES check_plan(id) ON DELETE RESTRICT,
		CONSTRAINT fk_event_check_type
			FOREIGN KEY (check_type_id) REFERENCES check_type(id) ON DELETE RESTRICT,
		CONSTRAINT fk_event_lab
			FOREIGN KEY (lab_id) REFERENCES lab(id) ON DELETE RESTRICT,
		CONSTRAINT fk_event_specialist
			FOREIGN KEY (specialist_id) REFERENCES specialist(id) ON DELETE RESTRICT,
		CONSTRAINT fk_event_result
			FOREIGN KEY (result_status_id) REFERENCES check_result_status(id) ON DELETE RESTRICT,
		CONSTRAINT uq_event_plan UNIQUE (check_plan_id),
		CONSTRAINT ck_next_due CHECK (next_due_date IS NULL OR next_due_date >= check_date)
	);`,

	// Documents.
	`CREATE TABLE IF NOT EXISTS document (
		id uuid PRIMARY KEY,
		document_type_id uuid NOT NULL,
		title text NOT NULL,
		storage_ref text NOT NULL,
		sha256 text NULL,
		created_at timestamptz NOT NULL DEFAULT now(),
		CONSTRAINT fk_document_type
			FOREIGN KEY (document_type_id) REFERENCES document_type(id) ON DELETE RESTRICT
	);`,
	`CREATE TABLE IF NOT EXISTS check_event_document (
		check_event_id uuid NOT NULL,
		document_id uuid NOT NULL,
		PRIMARY KEY (check_event_id, document_id),
		CONSTRAINT fk_ced_event
			FOREIGN KEY (check_event_id) REFERENCES check_event(id) ON DELETE RESTRICT,
		CONSTRAINT fk_ced_document
			FOREIGN KEY (document_id) REFERENCES document(id) ON DELETE RESTRICT
	);`,

	// Status history. The partial unique index is the structural guarantee
	// that an instrument has exactly one open interval.
	`CREATE TABLE IF NOT EXISTS instrument_status_history (
		id uuid PRIMARY KEY,
		instrument_id uuid NOT NULL,
		status_id uuid NOT NULL,
		valid_from timestamptz NOT NULL,
		valid_to timestamptz NULL,
		reason text NULL,
		CONSTRAINT fk_ish_instrument
			FOREIGN KEY (instrument_id) REFERENCES instrument(id) ON DELETE RESTRICT,
		CONSTRAINT fk_ish_status
			FOREIGN KEY (status_id) REFERENCES instrument_status(id) ON DELETE RESTRICT,
		CONSTRAINT ck_ish_period CHECK (valid_to IS NULL OR valid_to >= valid_from)
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_ish_one_open
		ON instrument_status_history(instrument_id)
		WHERE valid_to IS NULL;`,

	// Audit log. shipped_at supports the Kafka relay; rows are otherwise
	// append-only.
	`CREATE TABLE IF NOT EXISTS audit_log (
		id uuid PRIMARY KEY,
		at timestamptz NOT NULL,
		principal text NOT NULL,
		action text NOT NULL,
		table_name text NOT NULL,
		row_id uuid NULL,
		old_row jsonb NULL,
		new_row jsonb NULL,
		shipped_at timestamptz NULL
	);`,

	// Performance indexes.
	`CREATE INDEX IF NOT EXISTS ix_instrument_org_unit_id ON instrument(org_unit_id);`,
	`CREATE INDEX IF NOT EXISTS ix_instrument_location_id ON instrument(location_id);`,
	`CREATE INDEX IF NOT EXISTS ix_instrument_model_id ON instrument(instrument_model_id);`,
	`CREATE INDEX IF NOT EXISTS ix_check_plan_due_date ON check_plan(due_date);`,
	`CREATE INDEX IF NOT EXISTS ix_check_event_instrument_date ON check_event(instrument_id, check_date DESC);`,
	`CREATE INDEX IF NOT EXISTS ix_check_event_next_due_date ON check_event(next_due_date) WHERE next_due_date IS NOT NULL;`,
	`CREATE INDEX IF NOT EXISTS ix_audit_log_at ON audit_log(at DESC);`,
	`CREATE INDEX IF NOT EXISTS ix_audit_log_table_at ON audit_log(table_name, at DESC);`,
	`CREATE INDEX IF NOT EXISTS ix_audit_log_unshipped ON audit_log(at) WHERE shipped_at IS NULL;`,

	// Lookup seeds; codes are fixed external vocabulary.
	`INSERT INTO instrument_status(id, code, name) VALUES
		(gen_random_uuid(), 'ACTIVE', 'In service'),
		(gen_random_uuid(), 'IN_REPAIR', 'Under repair'),
		(gen_random_uuid(), 'DECOMMISSIONED', 'Decommissioned'),
		(gen_random_uuid(), 'REPLACED', 'Replaced')
	ON CONFLICT (code) DO NOTHING;`,
	`INSERT INTO check_result_status(id, code, name, is_success) VALUES
		(gen_random_uuid(), 'PASSED', 'Passed', true),
		(gen_random_uuid(), 'FAILED', 'Failed', false),
		(gen_random_uuid(), 'CANCELED', 'Canceled', false)
	ON CONFLICT (code) DO NOTHING;`,
	`INSERT INTO check_kind(id, code, name) VALUES
		(gen_random_uuid(), 'VERIFICATION', 'Verification'),
		(gen_random_uuid(), 'CALIBRATION', 'Calibration')
	ON CONFLICT (code) DO NOTHING;`,
	`INSERT INTO check_plan_status(id, code, name) VALUES
		(gen_random_uuid(), 'PLANNED', 'Planned'),
		(gen_random_uuid(), 'DONE', 'Done'),
		(gen_random_uuid(), 'CANCELED', 'Canceled')
	ON CONFLICT (code) DO NOTHING;`,
	`INSERT INTO document_type(id, code, name) VALUES
		(gen_random_uuid(), 'PROTOCOL', 'Protocol'),
		(gen_random_uuid(), 'CERTIFICATE', 'Certificate'),
		(gen_random_uuid(), 'OTHER', 'Other')
	ON CONFLICT (code) DO NOTHING;`,
}

// Migrate applies pending migrations in order, recording progress in
// schema_migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version integer PRIMARY KEY,
		applied_at timestamptz NOT NULL DEFAULT now()
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied int
	err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&applied)
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}

	for i := applied; i < len(migrations); i++ {
		sqlTx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}
		if _, err := sqlTx.ExecContext(ctx, migrations[i]); err != nil {
			sqlTx.Rollback()
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := sqlTx.ExecContext(ctx, `INSERT INTO schema_migrations(version) VALUES ($1)`, i+1); err != nil {
			sqlTx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}
		if err := sqlTx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}
	return nil
}
