package securestore

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/akodra/mooring/internal/fileutil"
	moorerr "github.com/akodra/mooring/pkg/errors"
)

const (
	// storeFileExtension is the extension for store value files.
	storeFileExtension = ".bin"

	// storeFilePermissions is the permission mode for store files.
	storeFilePermissions = 0o600
)

// FileStore persists each key as its own file under a data directory.
// Values are sealed with age when a store key is present; writes are atomic
// so a crash never leaves a torn file behind.
type FileStore struct {
	dir    string
	key    *StoreKey
	log    zerolog.Logger
	mu     sync.Mutex
	closed bool
}

// NewFileStore creates a file-backed store rooted at dir. A nil key selects
// plaintext mode.
func NewFileStore(dir string, key *StoreKey, log zerolog.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, moorerr.Wrap(moorerr.ErrInvalidInput, "store directory is empty")
	}
	if err := fileutil.EnsureDir(dir); err != nil {
		return nil, moorerr.Wrap(moorerr.ErrStorageFailed, "preparing store directory")
	}

	return &FileStore{
		dir: dir,
		key: key,
		log: log.With().Str("component", "file_store").Logger(),
	}, nil
}

// Load returns the value stored under key. Files that cannot be decrypted
// are quarantined and reported as absent so callers rebuild from empty.
func (s *FileStore) Load(key string) ([]byte, error) {
	if err := validateStoreKey(key); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errStoreClosed()
	}

	path := s.path(key)

	//nolint:gosec // G304: path is built from a validated store key
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, moorerr.ErrStoreKeyNotFound
		}
		return nil, moorerr.Wrap(moorerr.ErrStorageFailed, "reading store file for %s", key)
	}

	if s.key == nil {
		return data, nil
	}

	plaintext, err := openAge(data, s.key.Passphrase())
	if err != nil {
		s.quarantine(key, path, err)
		return nil, moorerr.ErrStoreKeyNotFound
	}

	return plaintext, nil
}

// Save persists data under key, sealing it when encryption is active.
func (s *FileStore) Save(key string, data []byte) error {
	if err := validateStoreKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errStoreClosed()
	}

	payload := data
	if s.key != nil {
		sealed, err := sealAge(data, s.key.Passphrase())
		if err != nil {
			return moorerr.Wrap(moorerr.ErrStorageFailed, "sealing store value for %s", key)
		}
		payload = sealed
	}

	if err := fileutil.WriteAtomic(s.path(key), payload, storeFilePermissions); err != nil {
		return moorerr.Wrap(moorerr.ErrStorageFailed, "writing store file for %s", key)
	}

	return nil
}

// Delete removes the value stored under key.
func (s *FileStore) Delete(key string) error {
	if err := validateStoreKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errStoreClosed()
	}

	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return moorerr.Wrap(moorerr.ErrStorageFailed, "removing store file for %s", key)
	}

	return nil
}

// Close zeroes the store key and marks the store unusable.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != nil {
		s.key.Zero()
		s.key = nil
	}
	s.closed = true

	return nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+storeFileExtension)
}

// quarantine moves an unreadable store file aside, preserving the evidence
// while letting the caller start fresh.
func (s *FileStore) quarantine(key, path string, cause error) {
	aside, err := fileutil.Quarantine(path)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("quarantining undecryptable store file failed")
		return
	}
	s.log.Warn().
		Err(cause).
		Str("key", key).
		Str("quarantined", aside).
		Msg("store file could not be decrypted, moved aside")
}
