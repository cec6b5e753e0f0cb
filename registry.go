package main

import (
	"database/sql"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"
)

// idRegistry maps (table name, source row id) to the destination row id
// assigned by Baserow on creation. An entry exists if and only if the
// destination record was successfully created; entries are never removed
// during a run. Mutated only by the single orchestrating goroutine.
type idRegistry struct {
	mappings map[string]map[int]int
}

func newIDRegistry() *idRegistry {
	return &idRegistry{mappings: make(map[string]map[int]int)}
}

// Register records that sourceID in table now exists as destID.
func (r *idRegistry) Register(table string, sourceID, destID int) {
	m, ok := r.mappings[table]
	if !ok {
		m = make(map[int]int)
		r.mappings[table] = m
	}
	m[sourceID] = destID
}

// Lookup returns the destination id for (table, sourceID), if registered.
func (r *idRegistry) Lookup(table string, sourceID int) (int, bool) {
	destID, ok := r.mappings[table][sourceID]
	return destID, ok
}

// CountByTable returns per-table mapping counts with table names sorted for
// deterministic summary output.
func (r *idRegistry) CountByTable() []struct {
	Table string
	Count int
} {
	names := make([]string, 0, len(r.mappings))
	for name := range r.mappings {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]struct {
		Table string
		Count int
	}, 0, len(names))
	for _, name := range names {
		out = append(out, struct {
			Table string
			Count int
		}{name, len(r.mappings[name])})
	}
	return out
}

// registryStore persists identifier mappings in a SQLite file so a later
// invocation can resolve relationships against rows created by an earlier
// one. Without a snapshot the registry lives only for one run.
type registryStore struct {
	db *sql.DB
}

func openRegistryStore(path string) (*registryStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open registry store: %w", err)
	}
	const schema = `CREATE TABLE IF NOT EXISTS id_mappings (
		table_name TEXT NOT NULL,
		source_id  INTEGER NOT NULL,
		dest_id    INTEGER NOT NULL,
		PRIMARY KEY (table_name, source_id)
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create registry store schema: %w", err)
	}
	return &registryStore{db: db}, nil
}

// Preload copies every persisted mapping into the in-memory registry and
// returns how many entries were loaded.
func (s *registryStore) Preload(registry *idRegistry) (int, error) {
	rows, err := s.db.Query("SELECT table_name, source_id, dest_id FROM id_mappings")
	if err != nil {
		return 0, fmt.Errorf("read registry store: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var table string
		var sourceID, destID int
		if err := rows.Scan(&table, &sourceID, &destID); err != nil {
			return count, fmt.Errorf("scan registry store row: %w", err)
		}
		registry.Register(table, sourceID, destID)
		count++
	}
	return count, rows.Err()
}

// Record persists one mapping, replacing any stale entry for the same
// source row.
func (s *registryStore) Record(table string, sourceID, destID int) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO id_mappings (table_name, source_id, dest_id) VALUES (?, ?, ?)",
		table, sourceID, destID,
	)
	if err != nil {
		return fmt.Errorf("persist mapping %s/%d: %w", table, sourceID, err)
	}
	return nil
}

func (s *registryStore) Close() error {
	return s.db.Close()
}
