// Package sqlite provides the persistence layer for the revision and
// execution stores over database/sql + github.com/mattn/go-sqlite3.
// Step and parameter payloads are stored as JSON text columns, queryable
// through SQLite's json_extract.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS revisions (
	namespace    TEXT NOT NULL,
	workflow_id  TEXT NOT NULL,
	version      INTEGER NOT NULL,
	created_at   TEXT NOT NULL,
	name         TEXT NOT NULL,
	description  TEXT NOT NULL,
	parameters   TEXT NOT NULL,
	steps        TEXT NOT NULL,
	active       INTEGER NOT NULL DEFAULT 0,
	updated_at   TEXT NOT NULL,
	source       TEXT NOT NULL,
	format       TEXT NOT NULL,
	PRIMARY KEY (namespace, workflow_id, version)
);

CREATE TABLE IF NOT EXISTS executions (
	execution_id      TEXT PRIMARY KEY,
	revision_namespace TEXT NOT NULL,
	revision_workflow_id TEXT NOT NULL,
	revision_version  INTEGER NOT NULL,
	input_parameters  TEXT NOT NULL,
	status            TEXT NOT NULL,
	error_message     TEXT NOT NULL DEFAULT '',
	started_at        TEXT NOT NULL,
	completed_at       TEXT NOT NULL DEFAULT '',
	last_updated_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_executions_by_workflow
	ON executions (revision_namespace, revision_workflow_id, started_at DESC);

CREATE TABLE IF NOT EXISTS step_results (
	result_id       TEXT PRIMARY KEY,
	execution_id    TEXT NOT NULL,
	step_index      INTEGER NOT NULL,
	step_id         TEXT NOT NULL,
	step_type       TEXT NOT NULL,
	status          TEXT NOT NULL,
	input_data      TEXT NOT NULL DEFAULT '',
	output_data     TEXT NOT NULL DEFAULT '',
	error_message   TEXT NOT NULL DEFAULT '',
	error_details   TEXT NOT NULL DEFAULT '',
	started_at      TEXT NOT NULL,
	completed_at    TEXT NOT NULL,
	UNIQUE (execution_id, step_index)
);
`

// Open opens (creating if absent) the SQLite database at path and applies
// the schema. A single *sql.DB is shared by both the revision and execution
// stores; each business operation holds exactly one transaction on it.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1) // go-sqlite3 serializes writers; one conn avoids SQLITE_BUSY under our own test suite
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
