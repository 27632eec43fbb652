// Package securestore persists small state blobs at rest, optionally sealed
// with a key held in the OS keyring. It backs the session snapshot store and
// any other component that needs durable key/value persistence.
//
// Three backends implement the same Store contract: a file backend (one
// age-encrypted file per key, atomic writes, corrupt files quarantined), a
// sqlite backend (single table, ChaCha20-Poly1305 sealed values), and an
// in-memory backend for tests and degraded operation.
package securestore

import (
	"regexp"

	"github.com/rs/zerolog"

	moorerr "github.com/akodra/mooring/pkg/errors"
)

// Backend names accepted by New.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Store is a key/value persistence backend for state blobs.
//
// Load returns moorerr.ErrStoreKeyNotFound for absent keys so callers can
// distinguish a fresh start from a storage failure. Implementations must be
// safe for concurrent use.
type Store interface {
	// Load returns the value stored under key.
	Load(key string) ([]byte, error)

	// Save persists data under key, replacing any existing value.
	Save(key string, data []byte) error

	// Delete removes the value stored under key. Deleting an absent key is
	// not an error.
	Delete(key string) error

	// Close releases backend resources and zeroes key material.
	Close() error
}

// Options selects and configures a storage backend.
type Options struct {
	// Backend is one of BackendFile, BackendSQLite, or BackendMemory.
	// Empty selects the file backend.
	Backend string

	// Dir is the data directory for the file and sqlite backends.
	Dir string

	// Encrypt seals values at rest using a store key from the OS keyring.
	Encrypt bool

	// Keyring overrides the OS keyring. Nil selects the real one.
	Keyring Keyring

	// Passphrase supplies an interactive passphrase when the keyring is
	// unavailable. Nil disables the fallback.
	Passphrase PassphraseFunc
}

// storeKeyRegex constrains store keys to names that are safe as file names
// on every platform.
var storeKeyRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,128}$`)

// validateStoreKey rejects keys that cannot be represented by all backends.
func validateStoreKey(key string) error {
	if !storeKeyRegex.MatchString(key) {
		return moorerr.Wrap(moorerr.ErrInvalidInput, "invalid store key %q", key)
	}
	return nil
}

func errStoreClosed() error {
	return moorerr.Wrap(moorerr.ErrStorageFailed, "store is closed")
}

// New creates a Store for the configured backend.
//
// When opts.Encrypt is set, the store key is resolved before the backend
// opens: from the keyring when available, from the interactive passphrase
// fallback otherwise. If neither source can produce a key the store degrades
// to plaintext mode with a warning rather than failing startup.
func New(opts Options, log zerolog.Logger) (Store, error) {
	backend := opts.Backend
	if backend == "" {
		backend = BackendFile
	}

	if backend == BackendMemory {
		return NewMemoryStore(), nil
	}

	var key *StoreKey
	if opts.Encrypt {
		var err error
		key, err = ResolveKey(opts.Dir, opts.Keyring, opts.Passphrase, log)
		if err != nil {
			if !moorerr.Is(err, moorerr.ErrKeyringUnavailable) {
				return nil, err
			}
			log.Warn().Msg("keyring unavailable and no passphrase source, storing state unencrypted")
			key = nil
		}
	}

	switch backend {
	case BackendFile:
		return NewFileStore(opts.Dir, key, log)
	case BackendSQLite:
		return NewSQLiteStore(opts.Dir, key, log)
	default:
		return nil, moorerr.WithSuggestion(
			moorerr.Wrap(moorerr.ErrConfigInvalid, "unknown storage backend %q", backend),
			"set storage.backend to file, sqlite, or memory",
		)
	}
}

// Interface checks.
var (
	_ Store = (*FileStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
