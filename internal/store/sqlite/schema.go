package sqlite

import (
	"context"
	"database/sql"
)

// schema is applied on open. SQLite is the local/dev driver, so it
// migrates itself instead of going through goose.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	full_name     TEXT,
	is_active     INTEGER NOT NULL DEFAULT 1,
	is_superuser  INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metric_records (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id),
	kind       TEXT NOT NULL,
	ts         TIMESTAMP NOT NULL,
	source     TEXT NOT NULL,
	fields     TEXT NOT NULL,
	labels     TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS metric_records_natural_key
	ON metric_records(user_id, kind, ts, source);
CREATE INDEX IF NOT EXISTS metric_records_user_kind_ts
	ON metric_records(user_id, kind, ts);

CREATE TABLE IF NOT EXISTS goals (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL REFERENCES users(id),
	kind        TEXT NOT NULL,
	target_time TIMESTAMP,
	target_hour TIMESTAMP,
	fields      TEXT NOT NULL,
	description TEXT,
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP
);
CREATE INDEX IF NOT EXISTS goals_user_kind ON goals(user_id, kind);
CREATE UNIQUE INDEX IF NOT EXISTS goals_user_kind_singleton
	ON goals(user_id, kind) WHERE kind != 'weight';
CREATE UNIQUE INDEX IF NOT EXISTS goals_user_kind_hour
	ON goals(user_id, kind, target_hour) WHERE kind = 'weight';

CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id),
	title      TEXT NOT NULL,
	status     TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS conversations_user_status
	ON conversations(user_id, status, created_at);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	user_id         TEXT NOT NULL REFERENCES users(id),
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_conversation
	ON messages(conversation_id, created_at);
`

func applySchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
