// Package store is the persistent durable state component (spec.md §4.1):
// nodes, per-node bounded packet history, topology edges, traceroute
// records, and the two probe-attempt tables, behind a typed command and
// query surface backed by a single SQLite file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps sql.DB with the mesh watcher's command and query surface.
// A *sql.DB is already a safe connection pool; handles are borrowed per
// operation rather than held, matching spec.md §9's "thread-local
// connection reuse ... realize it as a pool whose handles are borrowed
// per operation" design note.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if absent) a SQLite database at path and runs
// Migrate. Grounded on backend/database/database.go's Open: WAL +
// synchronous=NORMAL pragmas for write-burst tolerance, since packet
// ingestion here is the write-heavy path the way link-tx events were there.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous=NORMAL;"); err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return errors.New("store is nil")
	}
	return s.db.Close()
}

const attemptTableSchema = `(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	target_node_id TEXT NOT NULL,
	target_name TEXT NOT NULL DEFAULT '',
	requested_at_utc TIMESTAMP NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	completed_at_utc TIMESTAMP NULL,
	rx_snr REAL NULL,
	rx_rssi INTEGER NULL,
	relay_node_id TEXT NOT NULL DEFAULT '',
	relay_name TEXT NOT NULL DEFAULT '',
	hops_away INTEGER NULL
)`

// Migrate creates all tables idempotently and probes for columns added by
// later schema revisions, swallowing "duplicate column" errors exactly as
// backend/database/database.go's Migrate does. Schema resolved against
// original_source/plugins/libnode_db.py where spec.md names columns only
// at the data-model level.
func (s *Store) Migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			node_id TEXT PRIMARY KEY,
			num INTEGER NOT NULL UNIQUE,
			short_name TEXT NOT NULL DEFAULT '',
			long_name TEXT NOT NULL DEFAULT '',
			hardware_model TEXT NOT NULL DEFAULT '',
			firmware_version TEXT NOT NULL DEFAULT '',
			latitude REAL NULL,
			longitude REAL NULL,
			altitude_m INTEGER NULL,
			battery_level INTEGER NULL,
			voltage REAL NULL,
			is_charging INTEGER NOT NULL DEFAULT 0,
			is_powered INTEGER NOT NULL DEFAULT 0,
			first_seen_utc TIMESTAMP NOT NULL,
			last_seen_utc TIMESTAMP NOT NULL,
			total_packets INTEGER NOT NULL DEFAULT 0,
			is_mqtt INTEGER NOT NULL DEFAULT 0,
			is_ignored INTEGER NOT NULL DEFAULT 0,
			is_airplane INTEGER NOT NULL DEFAULT 0,
			last_name_update_utc TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS packet_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			node_id TEXT NOT NULL,
			received_at_utc TIMESTAMP NOT NULL,
			port TEXT NOT NULL,
			channel INTEGER NOT NULL DEFAULT 0,
			hop_start INTEGER NOT NULL DEFAULT 0,
			hop_limit INTEGER NOT NULL DEFAULT 0,
			hops_away INTEGER NOT NULL DEFAULT 0,
			via_mqtt INTEGER NOT NULL DEFAULT 0,
			relay_node_id TEXT NOT NULL DEFAULT '',
			rx_snr REAL NULL,
			rx_rssi INTEGER NULL,
			latitude REAL NULL,
			longitude REAL NULL,
			altitude_m INTEGER NULL,
			battery_level INTEGER NULL,
			voltage REAL NULL,
			channel_util REAL NULL,
			air_util_tx REAL NULL,
			temperature REAL NULL,
			humidity REAL NULL,
			pressure REAL NULL,
			message_text TEXT NOT NULL DEFAULT '',
			raw_json TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_packet_history_node ON packet_history(node_id);`,
		`CREATE INDEX IF NOT EXISTS idx_packet_history_received ON packet_history(received_at_utc);`,
		`CREATE TABLE IF NOT EXISTS network_topology (
			source TEXT NOT NULL,
			neighbor TEXT NOT NULL,
			first_heard_utc TIMESTAMP NOT NULL,
			last_heard_utc TIMESTAMP NOT NULL,
			total_packets INTEGER NOT NULL DEFAULT 0,
			avg_snr REAL NULL,
			min_snr REAL NULL,
			max_snr REAL NULL,
			avg_rssi REAL NULL,
			min_rssi REAL NULL,
			max_rssi REAL NULL,
			link_quality REAL NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1,
			last_hop_count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (source, neighbor)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_topology_active ON network_topology(source, neighbor, is_active);`,
		`CREATE TABLE IF NOT EXISTS traceroutes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			from_node_id TEXT NOT NULL,
			to_node_id TEXT NOT NULL DEFAULT '',
			route_json TEXT NOT NULL,
			hop_count INTEGER NOT NULL DEFAULT 0,
			received_at_utc TIMESTAMP NOT NULL,
			snr_json TEXT NOT NULL DEFAULT '',
			packet_id INTEGER NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_traceroutes_from_time ON traceroutes(from_node_id, received_at_utc);`,
		`CREATE TABLE IF NOT EXISTS traceroute_attempts ` + attemptTableSchema + `;`,
		`CREATE TABLE IF NOT EXISTS telemetry_attempts ` + attemptTableSchema + `;`,
		`CREATE INDEX IF NOT EXISTS idx_traceroute_attempts_status ON traceroute_attempts(status, requested_at_utc);`,
		`CREATE INDEX IF NOT EXISTS idx_telemetry_attempts_status ON telemetry_attempts(status, requested_at_utc);`,
		`CREATE TABLE IF NOT EXISTS operators (
			username TEXT PRIMARY KEY,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}

	// Schema-evolution columns named explicitly in spec.md §4.1.
	alterations := []struct{ table, ddl string }{
		{"nodes", "ALTER TABLE nodes ADD COLUMN is_ignored INTEGER NOT NULL DEFAULT 0"},
		{"nodes", "ALTER TABLE nodes ADD COLUMN is_airplane INTEGER NOT NULL DEFAULT 0"},
		{"nodes", "ALTER TABLE nodes ADD COLUMN last_name_update_utc TIMESTAMP"},
		{"packet_history", "ALTER TABLE packet_history ADD COLUMN message_text TEXT NOT NULL DEFAULT ''"},
	}
	for _, a := range alterations {
		if _, err := s.db.Exec(a.ddl); err != nil {
			if !strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
				log.Printf("migration: %s skipped: %v", a.ddl, err)
			}
		}
	}
	return nil
}
