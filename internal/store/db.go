package store

import (
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
)

// DB wraps the BadgerDB instance that holds partition batch data.
type DB struct {
	db *badger.DB
}

// Open opens or creates the batch store under dataDir.
func Open(dataDir string) (*DB, error) {
	dbPath := filepath.Join(dataDir, "log")
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // badger's own logger is too chatty

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Badger returns the underlying BadgerDB instance.
func (d *DB) Badger() *badger.DB {
	return d.db
}

// RunGC runs value log garbage collection.
func (d *DB) RunGC() error {
	return d.db.RunValueLogGC(0.5)
}
