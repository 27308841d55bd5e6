package postgres

// GetMigrations returns all embedded migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_periods_and_settings",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_thesis_and_sessions",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_exams_and_audit",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

const migration001Up = `
CREATE TABLE academic_periods (
	id              BIGSERIAL PRIMARY KEY,
	academic_year   TEXT NOT NULL UNIQUE,
	label           TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'PREPARING'
		CHECK (status IN ('PREPARING', 'ACTIVE', 'CLOSED')),
	start_date      DATE NOT NULL,
	end_date        DATE,
	opens_at        TIMESTAMPTZ,
	opened_at       TIMESTAMPTZ,
	opened_by       BIGINT,
	closed_at       TIMESTAMPTZ,
	closed_by       BIGINT,
	settings        JSONB NOT NULL DEFAULT '{}'::jsonb,
	remarks         TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- The state machine allows at most one ACTIVE period.
CREATE UNIQUE INDEX idx_periods_single_active
	ON academic_periods (status) WHERE status = 'ACTIVE';

CREATE INDEX idx_periods_due
	ON academic_periods (opens_at) WHERE status = 'PREPARING' AND opens_at IS NOT NULL;

CREATE TABLE system_settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const migration001Down = `
DROP TABLE IF EXISTS system_settings;
DROP TABLE IF EXISTS academic_periods;
`

const migration002Up = `
CREATE TABLE thesis_projects (
	id         BIGSERIAL PRIMARY KEY,
	period_id  BIGINT NOT NULL REFERENCES academic_periods(id),
	student_id BIGINT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'open'
		CHECK (status IN ('open', 'defended', 'withdrawn')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX idx_projects_period ON thesis_projects (period_id, status);

CREATE TABLE supervisory_assignments (
	id         BIGSERIAL PRIMARY KEY,
	project_id BIGINT NOT NULL REFERENCES thesis_projects(id) ON DELETE CASCADE,
	advisor_id BIGINT NOT NULL,
	role       TEXT NOT NULL CHECK (role IN ('first', 'second')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (project_id, role)
);

CREATE INDEX idx_assignments_advisor ON supervisory_assignments (advisor_id);

CREATE TABLE mentoring_sessions (
	id           BIGSERIAL PRIMARY KEY,
	project_id   BIGINT NOT NULL REFERENCES thesis_projects(id),
	advisor_id   BIGINT NOT NULL,
	sequence_no  INTEGER NOT NULL,
	session_date DATE,
	start_time   TEXT NOT NULL DEFAULT '',
	end_time     TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'scheduled'
		CHECK (status IN ('scheduled', 'cancelled', 'completed')),
	confirmed    BOOLEAN NOT NULL DEFAULT FALSE,
	confirmed_at TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (project_id, sequence_no)
);

CREATE INDEX idx_sessions_advisor_date
	ON mentoring_sessions (advisor_id, session_date) WHERE status = 'scheduled';

CREATE TABLE session_reschedules (
	id           BIGSERIAL PRIMARY KEY,
	session_id   BIGINT NOT NULL REFERENCES mentoring_sessions(id) ON DELETE CASCADE,
	requested_by BIGINT NOT NULL,
	old_date     DATE,
	old_start    TEXT NOT NULL DEFAULT '',
	old_end      TEXT NOT NULL DEFAULT '',
	new_date     DATE NOT NULL,
	new_start    TEXT NOT NULL,
	new_end      TEXT NOT NULL DEFAULT '',
	reason       TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX idx_reschedules_session ON session_reschedules (session_id);

CREATE TABLE document_revisions (
	id               BIGSERIAL PRIMARY KEY,
	project_id       BIGINT NOT NULL REFERENCES thesis_projects(id) ON DELETE CASCADE,
	session_id       BIGINT REFERENCES mentoring_sessions(id),
	version          INTEGER NOT NULL,
	file_name        TEXT NOT NULL DEFAULT '',
	note             TEXT NOT NULL DEFAULT '',
	first_signed_by  BIGINT,
	first_signed_at  TIMESTAMPTZ,
	second_signed_by BIGINT,
	second_signed_at TIMESTAMPTZ,
	approved_at      TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (project_id, version)
);

CREATE INDEX idx_revisions_session ON document_revisions (session_id);
`

const migration002Down = `
DROP TABLE IF EXISTS document_revisions;
DROP TABLE IF EXISTS session_reschedules;
DROP TABLE IF EXISTS mentoring_sessions;
DROP TABLE IF EXISTS supervisory_assignments;
DROP TABLE IF EXISTS thesis_projects;
`

const migration003Up = `
CREATE TABLE exam_committees (
	id         BIGSERIAL PRIMARY KEY,
	period_id  BIGINT NOT NULL REFERENCES academic_periods(id),
	name       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE exam_commitments (
	id           BIGSERIAL PRIMARY KEY,
	committee_id BIGINT NOT NULL REFERENCES exam_committees(id) ON DELETE CASCADE,
	advisor_id   BIGINT NOT NULL,
	exam_date    DATE NOT NULL,
	start_time   TEXT NOT NULL,
	end_time     TEXT NOT NULL,
	room         TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX idx_commitments_advisor_date ON exam_commitments (advisor_id, exam_date);

CREATE TABLE audit_log (
	id          BIGSERIAL PRIMARY KEY,
	actor_id    BIGINT NOT NULL,
	action      TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   BIGINT NOT NULL,
	detail      JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX idx_audit_entity ON audit_log (entity_type, entity_id);
`

const migration003Down = `
DROP TABLE IF EXISTS audit_log;
DROP TABLE IF EXISTS exam_commitments;
DROP TABLE IF EXISTS exam_committees;
`
