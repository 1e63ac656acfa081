// Package store implements TURTLES' staged persistence pipeline: an
// ephemeral in-memory relational buffer (the "main" namespace) fronting a
// durable on-disk store (the "stage1" namespace), a single-writer Recorder
// actor that serializes all mutations, and a periodic Finalizer that moves
// newly-settled records from main to stage1.
//
// A single embedded SQLite database, opened through database/sql and
// github.com/mattn/go-sqlite3, backs both namespaces via SQLite's ATTACH
// DATABASE — there is no pluggable storage engine.
package store

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"

	_ "github.com/mattn/go-sqlite3"
)

// CommitMode selects how the store is backed.
type CommitMode string

const (
	// Staged keeps "main" in memory and periodically finalizes settled rows
	// into a file-backed "stage1".
	Staged CommitMode = "staged"
	// Direct backs "main" directly by file; the finalizer is inert.
	Direct CommitMode = "direct"
)

// Valid reports whether m is a recognized commit mode. An invalid commit
// mode is a configuration error, fatal at startup.
func (m CommitMode) Valid() bool {
	return m == Staged || m == Direct
}

// Config describes how to open a Store.
type Config struct {
	Mode     CommitMode
	DBPath   string // directory for the durable file, default "./"
	DBPrefix string // filename stem, default "turtles"
	PID      int    // process id, mandatory suffix of the durable filename
}

// DurableFilePath returns the deterministic path of the durable file for
// this configuration: <dbPath>/<dbPrefix>-<pid>.db.
func (c Config) DurableFilePath() string {
	return filepath.Join(c.DBPath, fmt.Sprintf("%s-%d.db", c.DBPrefix, c.PID))
}

// Store is the single embedded relational store for one OS process, holding
// the "main" (ephemeral or direct) and, in staged mode, "stage1" (durable)
// namespaces behind one *sql.DB handle.
type Store struct {
	cfg Config
	db  *sql.DB
}

// Open validates cfg, opens the underlying SQLite connection(s), attaches
// stage1 in staged mode, and ensures the schema exists in every namespace
// this mode uses. Store-open failures (bad permissions, a corrupt file) are
// fatal at init and are returned wrapped for the caller to log and exit
// on.
func Open(cfg Config) (*Store, error) {
	if !cfg.Mode.Valid() {
		return nil, errors.Errorf("store: invalid commit mode %q", cfg.Mode)
	}
	if cfg.DBPrefix == "" {
		cfg.DBPrefix = "turtles"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./"
	}

	var dsn string
	switch cfg.Mode {
	case Direct:
		dsn = cfg.DurableFilePath() + "?_journal_mode=WAL&_busy_timeout=5000"
	case Staged:
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite connection")
	}
	// SQLite's own concurrency model, plus the single-writer recorder
	// discipline, makes one connection the correct choice: a second
	// connection to an in-memory database wouldn't even see the first's
	// tables.
	db.SetMaxOpenConns(1)

	if err := ensureSchema(db, nsMain); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.Mode == Staged {
		attach := fmt.Sprintf("ATTACH DATABASE %s AS stage1", quoteLiteral(cfg.DurableFilePath()))
		if _, err := db.Exec(attach); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "attaching durable stage1 database")
		}
		if err := ensureSchema(db, nsStage1); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Store{cfg: cfg, db: db}, nil
}

// Close detaches stage1 (if attached) and closes the underlying connection.
// Callers are expected to have already stopped the Finalizer and quiesced
// the Recorder; Close does not do that itself, since fork lifecycle and
// ordinary process shutdown need different orderings around the final
// flush.
func (s *Store) Close() error {
	if s.cfg.Mode == Staged {
		if _, err := s.db.Exec("DETACH DATABASE stage1"); err != nil {
			// Not fatal: closing the connection releases the file handle
			// regardless. Still worth surfacing to the caller's logger.
			s.db.Close()
			return errors.Wrap(err, "detaching stage1")
		}
	}
	return errors.Wrap(s.db.Close(), "closing store")
}

// DB exposes the underlying handle for callers (the Recorder, the MST
// engine's read-only loader) that need to issue statements directly.
func (s *Store) DB() *sql.DB { return s.db }

// Config returns the configuration the Store was opened with.
func (s *Store) Config() Config { return s.cfg }

// quoteLiteral quotes a filesystem path for embedding in a SQL statement
// where database/sql parameter binding isn't accepted by SQLite (ATTACH
// DATABASE's filename position). The path is our own deterministic
// dbPath/dbPrefix-pid construction, never untrusted input, but still
// applies SQLite's backslash-then-quote escaping rather than assume it
// can't contain a quote.
func quoteLiteral(s string) string {
	var out []byte
	out = append(out, '\'')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			out = append(out, '\\', '\\')
		case '\'':
			out = append(out, '\'', '\'')
		default:
			out = append(out, s[i])
		}
	}
	out = append(out, '\'')
	return string(out)
}
