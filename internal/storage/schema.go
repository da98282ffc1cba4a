package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// SchemaVersion is the version written to the metadata table.
const SchemaVersion = "1"

// CreateSchema creates all tables and indexes for exported call graphs.
// Safe to call on an existing database.
func CreateSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tables := []struct {
		name string
		ddl  string
	}{
		{"metadata", createMetadataTable},
		{"runs", createRunsTable},
		{"nodes", createNodesTable},
		{"edges", createEdgesTable},
		{"edge_args", createEdgeArgsTable},
	}

	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.name, err)
		}
	}

	for _, idx := range getAllIndexes() {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(
		`INSERT OR IGNORE INTO metadata (key, value, updated_at) VALUES ('schema_version', ?, ?)`,
		SchemaVersion, now,
	); err != nil {
		return fmt.Errorf("failed to bootstrap metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}
	return nil
}

// GetSchemaVersion returns the stored schema version, or "0" for a database
// without schema.
func GetSchemaVersion(db *sql.DB) (string, error) {
	var tableExists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='metadata'").Scan(&tableExists)
	if err != nil {
		return "", fmt.Errorf("failed to check metadata existence: %w", err)
	}
	if tableExists == 0 {
		return "0", nil
	}

	var version string
	err = db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&version)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("schema_version key not found in metadata")
	}
	if err != nil {
		return "", fmt.Errorf("failed to query schema version: %w", err)
	}
	return version, nil
}

const createMetadataTable = `
CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// runs holds one row per exported graph.
const createRunsTable = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	unit TEXT NOT NULL,
	node_count INTEGER NOT NULL,
	edge_count INTEGER NOT NULL,
	created_at TEXT NOT NULL
)`

// nodes are keyed by their index in the exported graph.
const createNodesTable = `
CREATE TABLE IF NOT EXISTS nodes (
	run_id TEXT NOT NULL,
	node_idx INTEGER NOT NULL,
	symbol_unit INTEGER NOT NULL,
	symbol_index INTEGER NOT NULL,
	promoted INTEGER NOT NULL,
	ident TEXT NOT NULL,
	name TEXT NOT NULL,
	PRIMARY KEY (run_id, node_idx),
	FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
)`

const createEdgesTable = `
CREATE TABLE IF NOT EXISTS edges (
	run_id TEXT NOT NULL,
	edge_idx INTEGER NOT NULL,
	from_idx INTEGER NOT NULL,
	to_idx INTEGER NOT NULL,
	kind TEXT NOT NULL,
	multiplier REAL NOT NULL,
	total_weight REAL NOT NULL,
	PRIMARY KEY (run_id, edge_idx),
	FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE,
	FOREIGN KEY (run_id, from_idx) REFERENCES nodes(run_id, node_idx),
	FOREIGN KEY (run_id, to_idx) REFERENCES nodes(run_id, node_idx)
)`

// edge_args position -1 is the method receiver.
const createEdgeArgsTable = `
CREATE TABLE IF NOT EXISTS edge_args (
	run_id TEXT NOT NULL,
	edge_idx INTEGER NOT NULL,
	position INTEGER NOT NULL,
	operand TEXT NOT NULL,
	mutability TEXT NOT NULL,
	ty TEXT NOT NULL,
	weight REAL NOT NULL,
	PRIMARY KEY (run_id, edge_idx, position),
	FOREIGN KEY (run_id, edge_idx) REFERENCES edges(run_id, edge_idx) ON DELETE CASCADE
)`

func getAllIndexes() []string {
	return []string{
		"CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)",
		"CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(run_id, name)",
		"CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(run_id, from_idx)",
		"CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(run_id, to_idx)",
	}
}
