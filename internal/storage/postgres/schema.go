package postgres

const (
	usersTable  = "users"
	eventsTable = "events"
)

// schema is applied idempotently when Config.Migrate is set
const schema = `
CREATE TABLE IF NOT EXISTS users (
	username     TEXT PRIMARY KEY,
	password     TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	online       BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS events (
	event_id   BIGSERIAL PRIMARY KEY,
	sender     TEXT NOT NULL REFERENCES users(username),
	opponent   TEXT NOT NULL REFERENCES users(username),
	status     TEXT NOT NULL,
	turn       TEXT NOT NULL DEFAULT '',
	move       INTEGER NOT NULL DEFAULT -1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS events_sender_idx ON events (sender);
CREATE INDEX IF NOT EXISTS events_opponent_idx ON events (opponent);
`
