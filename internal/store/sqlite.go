/**
 * SQLite Implementation.
 *
 * Implements Store using SQLite3, the teacher's persistence stack
 * (internal/storage/sqlite.go), narrowed to the server/client
 * find-or-create contract spec.md §4.4 and §6 require. Find-or-create
 * is expressed as a single INSERT ... ON CONFLICT DO UPDATE ... RETURNING
 * statement, generalizing the teacher's upsert idiom (used there for
 * devices) into an atomic read-or-insert: SQLite's own write-lock
 * serializes concurrent callers keyed on the same IP, so no
 * application-level locking is needed on top.
 *
 * Author: raventrace
 */

package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Implements Store for SQLite.
type SQLiteStore struct {
	db      *sql.DB
	servers EndpointSet
	clients EndpointSet
}

// Opens (creating if necessary) the SQLite database at path.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging store: %w", err)
	}
	s := &SQLiteStore{db: db}
	s.servers = &sqliteEndpointSet{db: db, table: "servers"}
	s.clients = &sqliteEndpointSet{db: db, table: "clients"}
	return s, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Migrate() error {
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Servers() EndpointSet { return s.servers }
func (s *SQLiteStore) Clients() EndpointSet { return s.clients }

type sqliteEndpointSet struct {
	db    *sql.DB
	table string
}

func (e *sqliteEndpointSet) FindOrCreate(ctx context.Context, ip string) (*Endpoint, error) {
	query := fmt.Sprintf(`
	INSERT INTO %s (ip_address) VALUES (?)
	ON CONFLICT(ip_address) DO UPDATE SET ip_address = excluded.ip_address
	RETURNING id, ip_address`, e.table)

	row := e.db.QueryRowContext(ctx, query, ip)
	var ep Endpoint
	if err := row.Scan(&ep.ID, &ep.IP); err != nil {
		return nil, fmt.Errorf("find-or-create %s(%s): %w", e.table, ip, err)
	}
	return &ep, nil
}
