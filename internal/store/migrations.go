package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create chat turns",
		SQL: `
			CREATE TABLE chat_turns (
				id             TEXT PRIMARY KEY,
				user           TEXT NOT NULL,
				sent           TEXT NOT NULL,
				answer         TEXT,
				function_name  TEXT,
				function_args  TEXT,
				created_at     INTEGER NOT NULL
			);

			CREATE INDEX idx_chat_turns_user_created ON chat_turns (user, created_at DESC);
		`,
	},
	{
		Version: 2,
		Name:    "create search results",
		SQL: `
			CREATE TABLE search_results (
				id          TEXT PRIMARY KEY,
				user        TEXT NOT NULL,
				query       TEXT NOT NULL,
				result_type TEXT NOT NULL,
				items       TEXT NOT NULL,
				created_at  INTEGER NOT NULL
			);

			CREATE INDEX idx_search_results_user ON search_results (user, created_at DESC);
		`,
	},
}
