// Copyright © 2025 The cinder authors

package compile

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// PersistentCache stores emitted unit source and metadata across process
// restarts, keyed by the 16-hex-digit structural hash.  It is opt-in and
// off by default: replaying previously emitted units into a backend that
// has already compiled symbols in this session causes redefinition
// conflicts, so Replay is only legal against a freshly started backend
// instance and callers own that guarantee.
type PersistentCache struct {
	db *sql.DB
	// binaryVersion partitions entries between incompatible backend
	// builds.  Units stored under another version are invisible.
	binaryVersion string
}

// StoredUnit is one persisted compilation unit.
type StoredUnit struct {
	Hash          string
	QualifiedName string
	UniqueName    string
	Source        string
	CreatedAt     time.Time
}

const persistSchema = `
CREATE TABLE IF NOT EXISTS units (
	hash           TEXT NOT NULL,
	binary_version TEXT NOT NULL,
	qualified_name TEXT NOT NULL,
	unique_name    TEXT NOT NULL,
	source         TEXT NOT NULL,
	created_at     INTEGER NOT NULL,
	PRIMARY KEY (hash, binary_version)
);`

// OpenPersistent opens (creating if needed) a persistent cache database at
// path.  binaryVersion identifies the backend build; entries written by a
// different build never hit.
func OpenPersistent(path, binaryVersion string) (*PersistentCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open persistent cache: %w", err)
	}
	if _, err := db.Exec(persistSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init persistent cache schema: %w", err)
	}
	return &PersistentCache{db: db, binaryVersion: binaryVersion}, nil
}

// Close releases the underlying database.
func (p *PersistentCache) Close() error {
	return p.db.Close()
}

// HashKey renders a structural hash in the fixed 16-hex-digit form used as
// the storage key.
func HashKey(hash uint64) string {
	return fmt.Sprintf("%016x", hash)
}

// Put stores a unit under its structural hash, replacing any previous unit
// with the same hash for this binary version.
func (p *PersistentCache) Put(hash uint64, qualifiedName string, unit *EmittedUnit) error {
	_, err := p.db.Exec(`
		INSERT OR REPLACE INTO units
			(hash, binary_version, qualified_name, unique_name, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		HashKey(hash), p.binaryVersion, qualifiedName, unit.Name, unit.Source,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("store unit %s: %w", unit.Name, err)
	}
	return nil
}

// Get returns the stored unit for a structural hash, if one exists for this
// binary version.
func (p *PersistentCache) Get(hash uint64) (*StoredUnit, bool, error) {
	row := p.db.QueryRow(`
		SELECT hash, qualified_name, unique_name, source, created_at
		FROM units WHERE hash = ? AND binary_version = ?`,
		HashKey(hash), p.binaryVersion,
	)
	var u StoredUnit
	var created int64
	err := row.Scan(&u.Hash, &u.QualifiedName, &u.UniqueName, &u.Source, &created)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load unit %s: %w", HashKey(hash), err)
	}
	u.CreatedAt = time.Unix(created, 0)
	return &u, true, nil
}

// Units returns every stored unit for this binary version in creation
// order.
func (p *PersistentCache) Units() ([]*StoredUnit, error) {
	rows, err := p.db.Query(`
		SELECT hash, qualified_name, unique_name, source, created_at
		FROM units WHERE binary_version = ? ORDER BY created_at, hash`,
		p.binaryVersion,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var units []*StoredUnit
	for rows.Next() {
		var u StoredUnit
		var created int64
		if err := rows.Scan(&u.Hash, &u.QualifiedName, &u.UniqueName, &u.Source, &created); err != nil {
			return nil, err
		}
		u.CreatedAt = time.Unix(created, 0)
		units = append(units, &u)
	}
	return units, rows.Err()
}

// Replay feeds every stored unit to fn in creation order.  The caller must
// guarantee the receiving backend instance is freshly started and has
// compiled nothing in this session; replaying into a warm backend causes
// symbol redefinition conflicts.  Replay stops at the first error.
func (p *PersistentCache) Replay(fn func(*StoredUnit) error) error {
	units, err := p.Units()
	if err != nil {
		return err
	}
	for _, u := range units {
		if err := fn(u); err != nil {
			return fmt.Errorf("replay unit %s: %w", u.UniqueName, err)
		}
	}
	return nil
}

// Prune removes entries created before cutoff, returning the number
// removed.
func (p *PersistentCache) Prune(cutoff time.Time) (int64, error) {
	res, err := p.db.Exec(`DELETE FROM units WHERE binary_version = ? AND created_at < ?`,
		p.binaryVersion, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
