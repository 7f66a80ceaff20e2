package cache

import (
	"database/sql"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

func newSqliteStore(path string) (Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite cache")
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS blobs (
		key TEXT PRIMARY KEY,
		val BLOB NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (unixepoch())
	)`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initializing sqlite cache")
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Get(key string) ([]byte, bool) {
	var val []byte
	err := s.db.QueryRow(`SELECT val FROM blobs WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		logger("sqlite").WithError(err).Debug("cache get failed")
		return nil, false
	}
	return val, true
}

func (s *sqliteStore) Put(key string, val []byte) {
	_, err := s.db.Exec(
		`INSERT INTO blobs (key, val) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET val = excluded.val`,
		key, val,
	)
	if err != nil {
		logger("sqlite").WithError(err).Debug("cache put failed")
	}
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
