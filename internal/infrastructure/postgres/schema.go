package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the full relational layout. Applied by cmd/seed for local
// development; production environments run the same statements through
// their own migration pipeline.
const Schema = `
CREATE EXTENSION IF NOT EXISTS pgcrypto;

CREATE TABLE IF NOT EXISTS departments (
	id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	name       TEXT NOT NULL UNIQUE,
	parent_id  UUID REFERENCES departments(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS employees (
	id                    UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	email                 TEXT NOT NULL UNIQUE,
	password_hash         TEXT NOT NULL,
	role                  TEXT NOT NULL DEFAULT 'employee',
	department_id         UUID REFERENCES departments(id),
	first_name            TEXT NOT NULL,
	last_name             TEXT NOT NULL,
	phone                 TEXT,
	hire_date             DATE,
	hourly_rate           NUMERIC(6,2) NOT NULL DEFAULT 0,
	max_hours_per_week    INT NOT NULL DEFAULT 40,
	qualifications        TEXT[] NOT NULL DEFAULT '{}',
	availability          JSONB NOT NULL DEFAULT '{}',
	is_active             BOOLEAN NOT NULL DEFAULT TRUE,
	email_verified        BOOLEAN NOT NULL DEFAULT FALSE,
	account_locked        BOOLEAN NOT NULL DEFAULT FALSE,
	failed_login_attempts INT NOT NULL DEFAULT 0,
	password_must_change  BOOLEAN NOT NULL DEFAULT FALSE,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS employees_email_idx ON employees (email);
CREATE INDEX IF NOT EXISTS employees_department_idx ON employees (department_id);

CREATE TABLE IF NOT EXISTS password_history (
	id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	employee_id   UUID NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS password_history_employee_idx
	ON password_history (employee_id, created_at DESC);

CREATE TABLE IF NOT EXISTS employee_history (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	employee_id UUID NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
	field       TEXT NOT NULL,
	old_value   TEXT NOT NULL,
	new_value   TEXT NOT NULL,
	changed_by  UUID NOT NULL,
	reason      TEXT,
	changed_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS employee_history_idx
	ON employee_history (employee_id, field, changed_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS shifts (
	id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	date           DATE NOT NULL,
	start_min      SMALLINT NOT NULL,
	end_min        SMALLINT NOT NULL CHECK (end_min > start_min),
	shift_type     TEXT NOT NULL,
	department_id  UUID REFERENCES departments(id),
	required_staff INT NOT NULL DEFAULT 1 CHECK (required_staff >= 1),
	priority       INT NOT NULL DEFAULT 5 CHECK (priority BETWEEN 1 AND 10),
	requirements   TEXT[] NOT NULL DEFAULT '{}',
	overnight      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS shifts_date_department_idx ON shifts (date, department_id);

CREATE TABLE IF NOT EXISTS schedules (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	title       TEXT NOT NULL,
	week_start  DATE NOT NULL,
	week_end    DATE NOT NULL,
	status      TEXT NOT NULL DEFAULT 'draft',
	created_by  UUID NOT NULL REFERENCES employees(id),
	approved_by UUID REFERENCES employees(id),
	version     INT NOT NULL DEFAULT 1,
	parent_id   UUID REFERENCES schedules(id),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CHECK (week_end >= week_start AND week_end - week_start <= 7)
);

CREATE INDEX IF NOT EXISTS schedules_week_idx ON schedules (week_start, week_end);

CREATE TABLE IF NOT EXISTS schedule_assignments (
	id                 UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	schedule_id        UUID NOT NULL REFERENCES schedules(id) ON DELETE CASCADE,
	employee_id        UUID NOT NULL REFERENCES employees(id) ON DELETE RESTRICT,
	shift_id           UUID NOT NULL REFERENCES shifts(id) ON DELETE RESTRICT,
	status             TEXT NOT NULL DEFAULT 'assigned',
	priority           INT NOT NULL DEFAULT 5,
	notes              TEXT,
	assigned_by        UUID NOT NULL,
	assigned_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	confirmed_at       TIMESTAMPTZ,
	decline_reason     TEXT,
	conflicts_resolved BOOLEAN NOT NULL DEFAULT FALSE,
	auto_assigned      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (schedule_id, employee_id, shift_id)
);

CREATE INDEX IF NOT EXISTS assignments_employee_idx
	ON schedule_assignments (employee_id, schedule_id, shift_id);
CREATE INDEX IF NOT EXISTS assignments_cursor_idx
	ON schedule_assignments (created_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS rules (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	rule_type   TEXT NOT NULL,
	employee_id UUID REFERENCES employees(id) ON DELETE CASCADE,
	priority    INT NOT NULL DEFAULT 5,
	active      BOOLEAN NOT NULL DEFAULT TRUE,
	source_text TEXT NOT NULL,
	payload     JSONB NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL DEFAULT 1,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS notifications (
	id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	recipient_id UUID NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
	category     TEXT NOT NULL,
	priority     TEXT NOT NULL DEFAULT 'medium',
	title        TEXT NOT NULL,
	body         TEXT NOT NULL,
	is_read      BOOLEAN NOT NULL DEFAULT FALSE,
	action_url   TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	expires_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS notifications_recipient_idx
	ON notifications (recipient_id, is_read, created_at DESC);

CREATE TABLE IF NOT EXISTS refresh_tokens (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	employee_id UUID NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
	token_hash  TEXT NOT NULL UNIQUE,
	expires_at  TIMESTAMPTZ NOT NULL,
	used_at     TIMESTAMPTZ,
	revoked     BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS refresh_tokens_employee_idx ON refresh_tokens (employee_id);
`

// EnsureSchema applies the schema idempotently.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
