package storage

import (
	"database/sql"
	"fmt"
	"strconv"
)

const currentSchemaVersion = 1

const (
	metaKeySchemaVersion = "schema_version"
	metaKeyGeneration    = "generation"
	// MetaKeyEmbeddingDim records the embedding dimension fixed at first upsert.
	MetaKeyEmbeddingDim = "embedding_dim"
)

// initializeSchema creates all tables for a new database.
func (db *DB) initializeSchema() error {
	return db.WithTx(func(tx *sql.Tx) error {
		stmts := []string{
			`CREATE TABLE IF NOT EXISTS meta (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS files (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				path        TEXT NOT NULL UNIQUE,
				language    TEXT NOT NULL,
				fingerprint TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS symbols (
				id         TEXT PRIMARY KEY,
				file_id    INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
				name       TEXT NOT NULL,
				kind       TEXT NOT NULL,
				start_line INTEGER NOT NULL,
				end_line   INTEGER NOT NULL,
				preview    BLOB,
				UNIQUE(file_id, name, kind)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind)`,
			`CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_id)`,
			`CREATE TABLE IF NOT EXISTS edges (
				from_id TEXT NOT NULL REFERENCES symbols(id) ON DELETE CASCADE,
				to_id   TEXT NOT NULL REFERENCES symbols(id) ON DELETE CASCADE,
				kind    TEXT NOT NULL,
				PRIMARY KEY (from_id, to_id, kind)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_id)`,
			`CREATE TABLE IF NOT EXISTS embeddings (
				id      TEXT PRIMARY KEY,
				file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
				vector  BLOB NOT NULL,
				payload TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_embeddings_file ON embeddings(file_id)`,
			`CREATE TABLE IF NOT EXISTS signatures (
				path        TEXT PRIMARY KEY,
				fingerprint TEXT NOT NULL,
				payload     TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS parse_failures (
				path    TEXT PRIMARY KEY,
				message TEXT NOT NULL
			)`,
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("schema init: %w", err)
			}
		}
		if _, err := tx.Exec(
			`INSERT INTO meta (key, value) VALUES (?, ?)`,
			metaKeySchemaVersion, strconv.Itoa(currentSchemaVersion)); err != nil {
			return err
		}
		return nil
	})
}

// runMigrations brings an existing database up to the current schema version.
func (db *DB) runMigrations() error {
	val, err := db.GetMeta(metaKeySchemaVersion)
	if err != nil {
		return err
	}
	version := 0
	if val != "" {
		version, err = strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("corrupt schema version %q: %w", val, err)
		}
	}

	if version == currentSchemaVersion {
		return nil
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, currentSchemaVersion)
	}

	db.logger.Info("running database migrations",
		"from_version", version, "to_version", currentSchemaVersion)

	// Migrations run sequentially as the schema evolves.
	return db.SetMeta(metaKeySchemaVersion, strconv.Itoa(currentSchemaVersion))
}
