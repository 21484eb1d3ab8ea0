package store

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS calendar_integrations (
	id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	provider TEXT NOT NULL CHECK(provider IN ('google', 'outlook')),
	calendar_id TEXT NOT NULL DEFAULT '',
	access_token TEXT NOT NULL,
	refresh_token TEXT,
	token_expiry DATETIME NOT NULL,
	active BOOLEAN NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_calendar_integrations_active
	ON calendar_integrations(account_id) WHERE active;

CREATE TABLE IF NOT EXISTS calendar_sync_log (
	id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	integration_id TEXT NOT NULL DEFAULT '',
	source_event_id TEXT NOT NULL DEFAULT '',
	operation TEXT NOT NULL CHECK(operation IN ('create', 'update', 'delete')),
	requested_operation TEXT NOT NULL CHECK(requested_operation IN ('create', 'update', 'delete')),
	status TEXT NOT NULL CHECK(status IN ('success', 'error')),
	error_message TEXT,
	external_event_id TEXT,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calendar_sync_log_account ON calendar_sync_log(account_id, id);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS calendar_integrations (
	id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	provider TEXT NOT NULL CHECK(provider IN ('google', 'outlook')),
	calendar_id TEXT NOT NULL DEFAULT '',
	access_token TEXT NOT NULL,
	refresh_token TEXT,
	token_expiry TIMESTAMPTZ NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_calendar_integrations_active
	ON calendar_integrations(account_id) WHERE active;

CREATE TABLE IF NOT EXISTS calendar_sync_log (
	id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	integration_id TEXT NOT NULL DEFAULT '',
	source_event_id TEXT NOT NULL DEFAULT '',
	operation TEXT NOT NULL CHECK(operation IN ('create', 'update', 'delete')),
	requested_operation TEXT NOT NULL CHECK(requested_operation IN ('create', 'update', 'delete')),
	status TEXT NOT NULL CHECK(status IN ('success', 'error')),
	error_message TEXT,
	external_event_id TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calendar_sync_log_account ON calendar_sync_log(account_id, id);
`
