package securestore

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/argon2"

	"github.com/akodra/mooring/internal/fileutil"
	moorerr "github.com/akodra/mooring/pkg/errors"
)

const (
	// storeKeyUser is the keyring account name for the store key.
	storeKeyUser = "store-key"

	// storeKeyLength is the length of the store key in bytes.
	storeKeyLength = 32

	// saltFileName holds the derivation salt for passphrase-derived keys.
	// The salt is not secret and lives next to the data it protects.
	saltFileName = "store.salt"

	// saltLength is the length of the derivation salt in bytes.
	saltLength = 16

	// Argon2id parameters for passphrase-derived keys.
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// PassphraseFunc supplies a passphrase for key derivation when the OS
// keyring cannot hold the store key. The returned bytes are zeroed by the
// caller after use.
type PassphraseFunc func() ([]byte, error)

// StoreKey holds the 32-byte secret that seals store values at rest. The
// backing bytes are locked into memory where the platform allows it.
type StoreKey struct {
	bytes  []byte
	locked bool
}

func newStoreKey(raw []byte) *StoreKey {
	k := &StoreKey{bytes: raw}
	k.locked = mlock(raw)
	return k
}

// Bytes returns the raw key material. The slice is owned by the StoreKey
// and must not be retained past Zero.
func (k *StoreKey) Bytes() []byte {
	return k.bytes
}

// Passphrase returns the key encoded for use as an age password.
func (k *StoreKey) Passphrase() string {
	return hex.EncodeToString(k.bytes)
}

// Zero unlocks and wipes the key material.
func (k *StoreKey) Zero() {
	if k.bytes == nil {
		return
	}
	if k.locked {
		munlock(k.bytes)
		k.locked = false
	}
	zeroBytes(k.bytes)
	k.bytes = nil
}

// zeroBytes securely zeros a byte slice.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// randomBytes generates cryptographically secure random bytes.
func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ResolveKey obtains the store key used to seal values at rest.
//
// The keyring path is preferred: an existing key is fetched from the OS
// keyring, or a fresh random key is minted and stored on first use. When the
// keyring is unavailable and a passphrase source is configured, the key is
// derived from the passphrase with Argon2id using a salt persisted under
// dir. With neither source the call reports ErrKeyringUnavailable so the
// caller can decide whether to degrade to plaintext.
func ResolveKey(dir string, kr Keyring, prompt PassphraseFunc, log zerolog.Logger) (*StoreKey, error) {
	if kr == nil {
		kr = NewOSKeyring()
	}

	if ProbeKeyring(kr) {
		return keyFromKeyring(kr, log)
	}

	if prompt != nil {
		return keyFromPassphrase(dir, prompt)
	}

	return nil, moorerr.ErrKeyringUnavailable
}

// keyFromKeyring loads the store key from the keyring, minting and storing
// a fresh one when absent.
func keyFromKeyring(kr Keyring, log zerolog.Logger) (*StoreKey, error) {
	encoded, err := kr.Get(ServiceName, storeKeyUser)
	switch {
	case err == nil:
		raw, decErr := base64.StdEncoding.DecodeString(encoded)
		if decErr == nil && len(raw) == storeKeyLength {
			return newStoreKey(raw), nil
		}
		// The stored entry is unreadable. Sealed data is lost either way,
		// so replace the key and let callers rebuild from empty.
		log.Warn().Msg("keyring store key is corrupt, minting a replacement")
	case errors.Is(err, keyring.ErrNotFound):
		// First use, mint below.
	default:
		return nil, moorerr.Wrap(moorerr.ErrKeyringUnavailable, "reading store key")
	}

	raw, err := randomBytes(storeKeyLength)
	if err != nil {
		return nil, moorerr.Wrap(moorerr.ErrCryptoFailed, "generating store key")
	}

	if setErr := kr.Set(ServiceName, storeKeyUser, base64.StdEncoding.EncodeToString(raw)); setErr != nil {
		zeroBytes(raw)
		return nil, moorerr.Wrap(moorerr.ErrKeyringUnavailable, "storing store key")
	}

	return newStoreKey(raw), nil
}

// keyFromPassphrase derives the store key from an interactive passphrase
// with Argon2id. The salt persists under dir so the same passphrase yields
// the same key across runs.
func keyFromPassphrase(dir string, prompt PassphraseFunc) (*StoreKey, error) {
	passphrase, err := prompt()
	if err != nil {
		return nil, err
	}
	defer zeroBytes(passphrase)

	if len(passphrase) == 0 {
		return nil, moorerr.Wrap(moorerr.ErrInvalidInput, "empty passphrase")
	}

	salt, err := loadOrCreateSalt(dir)
	if err != nil {
		return nil, err
	}

	raw := argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, storeKeyLength)
	return newStoreKey(raw), nil
}

// loadOrCreateSalt reads the derivation salt from dir, creating it on first
// use.
func loadOrCreateSalt(dir string) ([]byte, error) {
	if err := fileutil.EnsureDir(dir); err != nil {
		return nil, moorerr.Wrap(moorerr.ErrStorageFailed, "preparing store directory")
	}

	path := filepath.Join(dir, saltFileName)

	//nolint:gosec // G304: path is built from the configured store directory
	salt, err := os.ReadFile(path)
	if err == nil && len(salt) == saltLength {
		return salt, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, moorerr.Wrap(moorerr.ErrStorageFailed, "reading store salt")
	}

	salt, err = randomBytes(saltLength)
	if err != nil {
		return nil, moorerr.Wrap(moorerr.ErrCryptoFailed, "generating store salt")
	}

	if err := fileutil.WriteAtomic(path, salt, storeFilePermissions); err != nil {
		return nil, moorerr.Wrap(moorerr.ErrStorageFailed, "writing store salt")
	}

	return salt, nil
}
