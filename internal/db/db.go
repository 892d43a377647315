package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	dbFile = ".prior/backend.db"
)

// ErrNotFound is returned when a project or record does not exist
var ErrNotFound = errors.New("not found")

// DB wraps the local backend database
type DB struct {
	conn    *sql.DB
	baseDir string
}

// Path returns the database file for baseDir
func Path(baseDir string) string {
	return filepath.Join(baseDir, dbFile)
}

// Open opens an existing database
func Open(baseDir string) (*DB, error) {
	dbPath := Path(baseDir)

	// Check if db exists
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: run 'prior import' first")
	}

	return open(baseDir, dbPath)
}

// Initialize creates the database if needed and opens it
func Initialize(baseDir string) (*DB, error) {
	dbPath := Path(baseDir)

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	return open(baseDir, dbPath)
}

func open(baseDir, dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads while writes are serialized
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout as fallback protection
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// Slightly faster writes, still safe with WAL
	conn.Exec("PRAGMA synchronous=NORMAL")

	db, err := New(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	db.baseDir = baseDir
	return db, nil
}

// New wraps an open connection and creates the schema. Used by tests with an
// in-memory database.
func New(conn *sql.DB) (*DB, error) {
	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the database
func (db *DB) Close() error {
	return db.conn.Close()
}

// SetMaxOpenConns sets the maximum number of open connections to the database.
// For SQLite with single-writer semantics, this should typically be set to 1
// to prevent connection pool growth in long-running applications.
func (db *DB) SetMaxOpenConns(n int) {
	db.conn.SetMaxOpenConns(n)
}

// BaseDir returns the base directory for the database
func (db *DB) BaseDir() string {
	return db.baseDir
}

// Ping checks the connection
func (db *DB) Ping() error {
	return db.conn.Ping()
}
