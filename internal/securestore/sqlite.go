package securestore

import (
	"database/sql"
	"errors"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/akodra/mooring/internal/fileutil"
	moorerr "github.com/akodra/mooring/pkg/errors"
)

// storeDBName is the sqlite database file name inside the store directory.
const storeDBName = "store.db"

// SQLiteStore persists values in a single-table sqlite database. Values are
// sealed with XChaCha20-Poly1305 when a store key is present.
type SQLiteStore struct {
	db  *sql.DB
	key *StoreKey
	log zerolog.Logger
}

// NewSQLiteStore opens or creates the store database under dir. A nil key
// selects plaintext mode.
func NewSQLiteStore(dir string, key *StoreKey, log zerolog.Logger) (*SQLiteStore, error) {
	if dir == "" {
		return nil, moorerr.Wrap(moorerr.ErrInvalidInput, "store directory is empty")
	}
	if err := fileutil.EnsureDir(dir); err != nil {
		return nil, moorerr.Wrap(moorerr.ErrStorageFailed, "preparing store directory")
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, storeDBName))
	if err != nil {
		return nil, moorerr.Wrap(moorerr.ErrStorageFailed, "opening store database")
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, moorerr.Wrap(moorerr.ErrStorageFailed, "setting pragma %q", pragma)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS store_state (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, moorerr.Wrap(moorerr.ErrStorageFailed, "initializing store schema")
	}

	return &SQLiteStore{
		db:  db,
		key: key,
		log: log.With().Str("component", "sqlite_store").Logger(),
	}, nil
}

// Load returns the value stored under key. Rows that cannot be decrypted
// are dropped and reported as absent so callers rebuild from empty.
func (s *SQLiteStore) Load(key string) ([]byte, error) {
	if err := validateStoreKey(key); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.QueryRow(`SELECT value FROM store_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, moorerr.ErrStoreKeyNotFound
	}
	if err != nil {
		return nil, moorerr.Wrap(moorerr.ErrStorageFailed, "reading store row for %s", key)
	}

	if s.key == nil {
		return value, nil
	}

	plaintext, err := openAEAD(s.key.Bytes(), value)
	if err != nil {
		_, _ = s.db.Exec(`DELETE FROM store_state WHERE key = ?`, key)
		s.log.Warn().Err(err).Str("key", key).Msg("store row could not be decrypted, dropped")
		return nil, moorerr.ErrStoreKeyNotFound
	}

	return plaintext, nil
}

// Save persists data under key, sealing it when encryption is active.
func (s *SQLiteStore) Save(key string, data []byte) error {
	if err := validateStoreKey(key); err != nil {
		return err
	}

	payload := data
	if s.key != nil {
		sealed, err := sealAEAD(s.key.Bytes(), data)
		if err != nil {
			return moorerr.Wrap(moorerr.ErrStorageFailed, "sealing store value for %s", key)
		}
		payload = sealed
	}

	_, err := s.db.Exec(`
		INSERT INTO store_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, payload, time.Now().Unix())
	if err != nil {
		return moorerr.Wrap(moorerr.ErrStorageFailed, "writing store row for %s", key)
	}

	return nil
}

// Delete removes the value stored under key.
func (s *SQLiteStore) Delete(key string) error {
	if err := validateStoreKey(key); err != nil {
		return err
	}

	if _, err := s.db.Exec(`DELETE FROM store_state WHERE key = ?`, key); err != nil {
		return moorerr.Wrap(moorerr.ErrStorageFailed, "removing store row for %s", key)
	}

	return nil
}

// Close closes the database and zeroes the store key.
func (s *SQLiteStore) Close() error {
	if s.key != nil {
		s.key.Zero()
		s.key = nil
	}

	if err := s.db.Close(); err != nil {
		return moorerr.Wrap(moorerr.ErrStorageFailed, "closing store database")
	}

	return nil
}
