package store

// Schema is applied on every Open.
const Schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id          TEXT PRIMARY KEY,
	fetched_at  INTEGER NOT NULL,
	routes      INTEGER NOT NULL,
	served      INTEGER NOT NULL DEFAULT 0,
	payload     BLOB NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_fetched ON snapshots(fetched_at DESC);
`
