// Package index provides the default SQLite-backed secondary index: a
// queryable denormalization of the record-layer view of the working
// tree, kept in sync by record.Facade's live update/delete hooks and its
// batched abandon/pull replay. See SPEC_FULL.md §4.5.1.
package index

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/basalt-run/almanac/pkg/errs"
)

const schema = `
CREATE TABLE IF NOT EXISTS entity (
	kind TEXT NOT NULL,
	id   TEXT NOT NULL,
	name TEXT NOT NULL,
	PRIMARY KEY (kind, id)
);
CREATE TABLE IF NOT EXISTS entity_photo (
	kind        TEXT NOT NULL,
	id          TEXT NOT NULL,
	url         TEXT NOT NULL,
	attribution TEXT NOT NULL,
	PRIMARY KEY (kind, id)
);
CREATE TABLE IF NOT EXISTS entity_contact (
	kind         TEXT NOT NULL,
	id           TEXT NOT NULL,
	contact_type TEXT NOT NULL,
	value        TEXT NOT NULL,
	PRIMARY KEY (kind, id, contact_type)
);
CREATE TABLE IF NOT EXISTS office_supervisor (
	office_id            TEXT NOT NULL,
	relation             TEXT NOT NULL,
	supervisor_office_id TEXT NOT NULL,
	PRIMARY KEY (office_id, relation)
);
CREATE TABLE IF NOT EXISTS person_office_tenure (
	person_id TEXT NOT NULL,
	office_id TEXT NOT NULL,
	end_date  TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (person_id, office_id)
);
`

// SQLiteIndex is the default record.Index implementation. It opens its
// own connection to the same physical database file the blob backend
// uses, in a separate set of tables, so a GC vacuum pass over
// node/ref/secret never touches index rows.
type SQLiteIndex struct {
	db *sql.DB
}

// Open opens or creates the index tables at path. A single writer
// connection matches the single-writer non-goal the blob backend also
// assumes.
func Open(path string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open index %s: %v", errs.ErrIO, path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create index schema: %v", errs.ErrIO, err)
	}

	return &SQLiteIndex{db: db}, nil
}

// Close closes the underlying database handle.
func (idx *SQLiteIndex) Close() error {
	return idx.db.Close()
}
