package store

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDB wraps the metadata database shared by the topic admin and
// the offset store.
type SQLiteDB struct {
	db *sql.DB
}

// OpenSQLite opens or creates the metadata database under dataDir.
func OpenSQLite(dataDir string) (*SQLiteDB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, "kafgate.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteDB{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS topics (
		name TEXT PRIMARY KEY,
		partitions INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS topic_configs (
		topic TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (topic, key),
		FOREIGN KEY (topic) REFERENCES topics(name) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS pending_deletes (
		topic TEXT PRIMARY KEY,
		requested_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS offsets (
		group_id TEXT NOT NULL,
		topic TEXT NOT NULL,
		partition INTEGER NOT NULL,
		committed_offset INTEGER NOT NULL,
		leader_epoch INTEGER NOT NULL DEFAULT -1,
		metadata TEXT NOT NULL DEFAULT '',
		commit_ts INTEGER NOT NULL,
		expire_ts INTEGER NOT NULL,
		PRIMARY KEY (group_id, topic, partition)
	);
	CREATE INDEX IF NOT EXISTS idx_offsets_expire ON offsets(expire_ts);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) DB() *sql.DB {
	return s.db
}
