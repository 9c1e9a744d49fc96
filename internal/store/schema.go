package store

const schemaVersion = 1

// schema matches the data model of spec.md §3/§6 one-to-one: three
// persistent entities (nameplates, mailboxes, messages) plus two
// append-only usage logs, and a version table.
const schema = `
CREATE TABLE version (
	version INTEGER NOT NULL
);

CREATE TABLE nameplates (
	app_id VARCHAR NOT NULL,
	id VARCHAR NOT NULL,
	mailbox_id VARCHAR NOT NULL,
	side1 VARCHAR NOT NULL DEFAULT '',
	side2 VARCHAR NOT NULL DEFAULT '',
	crowded BOOLEAN NOT NULL DEFAULT 0,
	started INTEGER NOT NULL,
	second INTEGER,
	updated INTEGER NOT NULL,
	PRIMARY KEY (app_id, id)
);
CREATE INDEX idx_nameplates_updated ON nameplates (updated);

CREATE TABLE mailboxes (
	app_id VARCHAR NOT NULL,
	id VARCHAR NOT NULL,
	side1 VARCHAR NOT NULL DEFAULT '',
	side2 VARCHAR NOT NULL DEFAULT '',
	crowded BOOLEAN NOT NULL DEFAULT 0,
	started INTEGER NOT NULL,
	second INTEGER,
	first_mood VARCHAR NOT NULL DEFAULT '',
	PRIMARY KEY (app_id, id)
);

CREATE TABLE messages (
	msg_id VARCHAR NOT NULL,
	app_id VARCHAR NOT NULL,
	mailbox_id VARCHAR NOT NULL,
	side VARCHAR NOT NULL,
	phase VARCHAR NOT NULL,
	body BLOB NOT NULL,
	server_rx INTEGER NOT NULL
);
CREATE INDEX idx_messages_mailbox ON messages (app_id, mailbox_id, server_rx);

CREATE TABLE nameplate_usage (
	app_id VARCHAR NOT NULL,
	started INTEGER NOT NULL,
	total_time INTEGER NOT NULL,
	waiting_time INTEGER,
	result VARCHAR NOT NULL
);

CREATE TABLE mailbox_usage (
	app_id VARCHAR NOT NULL,
	started INTEGER NOT NULL,
	total_time INTEGER NOT NULL,
	waiting_time INTEGER,
	result VARCHAR NOT NULL
);
`
