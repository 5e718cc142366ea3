/**
 * Database Schema.
 *
 * Narrowed from internal/storage/schema.go's multi-table DDL (devices,
 * flows, DNS queries, TLS handshakes, WiFi) down to the two tables the
 * core's find-or-create contract needs. Schema installation is out of
 * band per spec.md §1; Migrate exists for tests and first-run
 * bootstrap only.
 *
 * Author: raventrace
 */

package store

const schema = `
CREATE TABLE IF NOT EXISTS servers (
	id INTEGER PRIMARY KEY,
	ip_address TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS clients (
	id INTEGER PRIMARY KEY,
	ip_address TEXT UNIQUE NOT NULL
);
`
