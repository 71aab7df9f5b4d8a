package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS connected_accounts (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL DEFAULT '',
	external_id  TEXT NOT NULL,
	app_slug     TEXT NOT NULL DEFAULT '',
	app_name     TEXT NOT NULL DEFAULT '',
	app_icon_url TEXT NOT NULL DEFAULT '',
	healthy      INTEGER NOT NULL DEFAULT 1,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_connected_accounts_external_id
	ON connected_accounts(external_id);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_connected_accounts_app
	ON connected_accounts(external_id, app_slug, created_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
