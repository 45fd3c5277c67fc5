// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package pack implements the packed storage class: append-only pack files
// under packs/, indexed by an embedded SQLite database (packs.idx) mapping
// digest to its location within a pack.
package pack

import (
	"database/sql"
	"net/url"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/unkcpz/rsdos/modules/digest"
	"github.com/unkcpz/rsdos/modules/rsdoserr"
)

const schema = `
CREATE TABLE IF NOT EXISTS db_object (
	hashkey    TEXT PRIMARY KEY,
	compressed INTEGER NOT NULL,
	size       INTEGER NOT NULL,
	offset     INTEGER NOT NULL,
	length     INTEGER NOT NULL,
	pack_id    INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_db_object_hashkey ON db_object(hashkey);
CREATE TABLE IF NOT EXISTS db_settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Entry is one row of db_object: the location of a packed object.
type Entry struct {
	Hash       digest.Hash
	Compressed bool
	Size       int64 // bytes occupied in the pack (compressed length, or raw if not compressed)
	Offset     int64
	RawSize    int64 // original uncompressed length
	PackID     int64
}

// Index wraps the packs.idx SQLite database: a many-readers/one-writer
// store for db_object and db_settings, enforced by SQLite's own locking.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (creating if absent) the index database at path and
// ensures its schema exists.
func OpenIndex(path string) (*Index, error) {
	u := url.URL{
		Scheme: "file",
		Opaque: path,
		RawQuery: url.Values{
			"_pragma": {"journal_mode(WAL)", "foreign_keys(1)"},
		}.Encode(),
	}
	db, err := sql.Open("sqlite", u.String())
	if err != nil {
		return nil, rsdoserr.DB(err, "opening index %s", path)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, rsdoserr.DB(err, "pinging index %s", path)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, rsdoserr.DB(err, "creating schema in %s", path)
	}
	return &Index{db: db}, nil
}

func (idx *Index) Close() error {
	if err := idx.db.Close(); err != nil {
		return rsdoserr.DB(err, "closing index")
	}
	return nil
}

// Setting reads a db_settings value; ok is false if the key is absent.
func (idx *Index) Setting(key string) (value string, ok bool, err error) {
	row := idx.db.QueryRow(`SELECT value FROM db_settings WHERE key = ?`, key)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, rsdoserr.DB(err, "reading setting %q", key)
	}
	return value, true, nil
}

// SetSetting upserts a db_settings row. Used at init time to record the
// container UUID and compression tag.
func (idx *Index) SetSetting(key, value string) error {
	_, err := idx.db.Exec(
		`INSERT INTO db_settings(key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return rsdoserr.DB(err, "writing setting %q", key)
	}
	return nil
}

// Lookup returns the Entry for h, or ok=false if h is not in the index.
func (idx *Index) Lookup(h digest.Hash) (Entry, bool, error) {
	row := idx.db.QueryRow(
		`SELECT hashkey, compressed, size, offset, length, pack_id FROM db_object WHERE hashkey = ?`,
		h.String(),
	)
	e, err := scanEntry(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, false, nil
		}
		return Entry{}, false, rsdoserr.DB(err, "looking up %s", h)
	}
	return e, true, nil
}

// Has reports whether h has an index entry.
func (idx *Index) Has(h digest.Hash) (bool, error) {
	_, ok, err := idx.Lookup(h)
	return ok, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	var hashkey string
	var compressed int
	if err := row.Scan(&hashkey, &compressed, &e.Size, &e.Offset, &e.RawSize, &e.PackID); err != nil {
		return Entry{}, err
	}
	e.Hash = digest.NewHash(hashkey)
	e.Compressed = compressed != 0
	return e, nil
}

// MaxPackID returns the greatest pack_id referenced by any row, and false
// if the index has no rows at all (a freshly initialized container).
func (idx *Index) MaxPackID() (int64, bool, error) {
	row := idx.db.QueryRow(`SELECT MAX(pack_id) FROM db_object`)
	var id sql.NullInt64
	if err := row.Scan(&id); err != nil {
		return 0, false, rsdoserr.DB(err, "reading max pack id")
	}
	if !id.Valid {
		return 0, false, nil
	}
	return id.Int64, true, nil
}

// PackLength returns the sum of Size over every entry in packID, which is
// exactly that pack file's current length if no foreign bytes were ever
// appended to it.
func (idx *Index) PackLength(packID int64) (int64, error) {
	row := idx.db.QueryRow(`SELECT COALESCE(SUM(size), 0) FROM db_object WHERE pack_id = ?`, packID)
	var total int64
	if err := row.Scan(&total); err != nil {
		return 0, rsdoserr.DB(err, "summing pack %d length", packID)
	}
	return total, nil
}

// Tx begins a write transaction used by pack-all-loose: every index row
// written during a single pack-all-loose call commits atomically with the
// bytes it describes having already reached the pack file.
type Tx struct {
	tx *sql.Tx
}

func (idx *Index) Begin() (*Tx, error) {
	tx, err := idx.db.Begin()
	if err != nil {
		return nil, rsdoserr.DB(err, "beginning transaction")
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) Insert(e Entry) error {
	_, err := t.tx.Exec(
		`INSERT INTO db_object(hashkey, compressed, size, offset, length, pack_id) VALUES (?, ?, ?, ?, ?, ?)`,
		e.Hash.String(), boolToInt(e.Compressed), e.Size, e.Offset, e.RawSize, e.PackID,
	)
	if err != nil {
		return rsdoserr.DB(err, "inserting entry for %s", e.Hash)
	}
	return nil
}

func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return rsdoserr.DB(err, "committing transaction")
	}
	return nil
}

func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		return rsdoserr.DB(err, "rolling back transaction")
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// AllEntries returns every db_object row, ordered by pack_id then offset —
// used by status() and list_all() to enumerate packed digests.
func (idx *Index) AllEntries() ([]Entry, error) {
	rows, err := idx.db.Query(`SELECT hashkey, compressed, size, offset, length, pack_id FROM db_object ORDER BY pack_id, offset`)
	if err != nil {
		return nil, rsdoserr.DB(err, "listing entries")
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, rsdoserr.DB(err, "scanning entry")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, rsdoserr.DB(err, "iterating entries")
	}
	return out, nil
}

// SumSizes returns Σ size over every db_object row — the testable property
// compared against the sum of pack file lengths.
func (idx *Index) SumSizes() (int64, error) {
	row := idx.db.QueryRow(`SELECT COALESCE(SUM(size), 0) FROM db_object`)
	var total int64
	if err := row.Scan(&total); err != nil {
		return 0, rsdoserr.DB(err, "summing sizes")
	}
	return total, nil
}
