// Package storage owns the sqlite database backing the knowledge graph,
// the vector index, and the signature cache. One database per codebase,
// living at <root>/.miow/index.db.
package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DB is a database handle with transaction helpers.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
	dbPath string
}

// Open opens or creates the miow database under root. A new database gets
// the full schema; an existing one is migrated forward.
func Open(root string, logger *slog.Logger) (*DB, error) {
	miowDir := filepath.Join(root, ".miow")
	if err := os.MkdirAll(miowDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .miow directory: %w", err)
	}

	dbPath := filepath.Join(miowDir, "index.db")
	dbExists := fileExists(dbPath)

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",    // concurrent readers with a single writer
		"PRAGMA synchronous=NORMAL",  // balance between safety and performance
		"PRAGMA foreign_keys=ON",     // enforce endpoint integrity
		"PRAGMA busy_timeout=5000",   // wait up to 5 seconds on lock
		"PRAGMA cache_size=-64000",   // 64MB cache
		"PRAGMA temp_store=MEMORY",   // use memory for temp tables
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	db := &DB{
		conn:   conn,
		logger: logger,
		dbPath: dbPath,
	}

	if !dbExists {
		logger.Info("creating new database", "path", dbPath)
		if err := db.initializeSchema(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	} else {
		if err := db.runMigrations(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Conn returns the underlying sql.DB connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// WithTx executes fn within a transaction. An error from fn rolls the
// transaction back; otherwise it commits.
func (db *DB) WithTx(fn func(*sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("failed to rollback transaction",
				"error", err.Error(), "rollback_error", rbErr.Error())
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Exec executes a query without returning rows.
func (db *DB) Exec(query string, args ...any) (sql.Result, error) {
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows.
func (db *DB) Query(query string, args ...any) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row.
func (db *DB) QueryRow(query string, args ...any) *sql.Row {
	return db.conn.QueryRow(query, args...)
}

// Generation returns the current committed index generation. A database
// that has never been indexed reports generation 0.
func (db *DB) Generation() (int64, error) {
	val, err := db.GetMeta(metaKeyGeneration)
	if err != nil {
		return 0, err
	}
	if val == "" {
		return 0, nil
	}
	gen, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt generation value %q: %w", val, err)
	}
	return gen, nil
}

// BumpGeneration increments the index generation and returns the new value.
// Called once per completed index pass, after all file commits.
func (db *DB) BumpGeneration() (int64, error) {
	gen, err := db.Generation()
	if err != nil {
		return 0, err
	}
	gen++
	if err := db.SetMeta(metaKeyGeneration, strconv.FormatInt(gen, 10)); err != nil {
		return 0, err
	}
	return gen, nil
}

// GetMeta reads a value from the meta table. Missing keys yield "".
func (db *DB) GetMeta(key string) (string, error) {
	var val string
	err := db.conn.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// SetMeta writes a value into the meta table.
func (db *DB) SetMeta(key, value string) error {
	_, err := db.conn.Exec(
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
