// Package store provides the durable, transactional persistence layer
// the rendezvous engine is built on: parametrized execute, row fetch,
// and explicit commit over the six tables in spec.md §6, backed by
// SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	//sqlite3 driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/chris-pikul/wormhole-rendezvous/internal/log"
)

//ErrNotOpen is returned by any operation attempted on a Store whose
//underlying connection has already been closed.
var ErrNotOpen = errors.New("store: database connection is not open")

//Store wraps a SQLite connection with the schema described in
//spec.md §3/§6. It is passed down explicitly to the collaborators that
//need it (Rendezvous -> AppNamespace -> Mailbox), never held as an
//ambient singleton.
type Store struct {
	db *sql.DB
}

//Open opens (creating if necessary) the SQLite database at path and
//ensures its schema is current. path may be ":memory:" for a private,
//ephemeral in-memory database, which is how the rendezvous engine's
//own tests exercise this package.
func Open(path string) (*Store, error) {
	createSchema := path == ":memory:"
	if !createSchema {
		if _, err := os.Stat(path); err != nil {
			createSchema = true
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening sqlite3 database: %w", err)
	}
	// the rendezvous engine relies on all mutation happening through a
	// single logical writer (spec.md §5); a single pooled connection
	// keeps SQLite from serializing writers behind lock-retry errors.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}

	if createSchema {
		log.Info("store: initializing new schema")
		if err := s.createSchema(); err != nil {
			db.Close()
			return nil, err
		}
	} else if err := s.checkMigration(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

//Close releases the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) createSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("store: creating schema: %w", err)
	}
	if _, err := s.db.Exec(`INSERT INTO version (version) VALUES ($1)`, schemaVersion); err != nil {
		return fmt.Errorf("store: stamping schema version: %w", err)
	}
	return nil
}

func (s *Store) checkMigration() error {
	var cur int
	row := s.db.QueryRow(`SELECT version FROM version`)
	if err := row.Scan(&cur); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errors.New("store: schema version table is empty, database may be corrupt")
		}
		return fmt.Errorf("store: reading schema version: %w", err)
	}

	if cur > schemaVersion {
		return fmt.Errorf("store: database schema version %d is newer than this binary's %d", cur, schemaVersion)
	}
	// cur < schemaVersion: no migrations defined yet at schemaVersion 1.
	return nil
}
