package session

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/akodra/mooring/internal/securestore"
	moorerr "github.com/akodra/mooring/pkg/errors"
)

// SnapshotKey is the secure-store key the snapshot lives under.
const SnapshotKey = "multi_session_state"

// SnapshotStore persists MultiSessionState through a securestore backend.
// Storage failures never propagate as crashes: a failed save flips the
// store into a degraded in-memory mode that keeps the latest snapshot
// bytes so loads stay coherent, and every later save retries the backend.
type SnapshotStore struct {
	backend securestore.Store
	log     zerolog.Logger

	mu       sync.Mutex
	degraded bool
	cached   []byte // last good encode while degraded
}

// NewSnapshotStore binds the snapshot model to a secure store.
func NewSnapshotStore(backend securestore.Store, log zerolog.Logger) *SnapshotStore {
	return &SnapshotStore{
		backend: backend,
		log:     log.With().Str("component", "snapshot_store").Logger(),
	}
}

// Load reads and decodes the persisted snapshot. A missing key yields an
// empty state with no error; unreadable storage or an unreadable envelope
// yields an empty state and the error, so callers can log and proceed.
// While degraded, the in-memory copy wins over the backend.
func (p *SnapshotStore) Load() (MultiSessionState, error) {
	p.mu.Lock()
	degraded, cached := p.degraded, p.cached
	p.mu.Unlock()

	var data []byte
	if degraded && cached != nil {
		data = cached
	} else {
		var err error
		data, err = p.backend.Load(SnapshotKey)
		if err != nil {
			if moorerr.Is(err, moorerr.ErrStoreKeyNotFound) {
				return NewMultiSessionState(), nil
			}
			p.log.Error().Err(err).Msg("loading session snapshot")
			return NewMultiSessionState(), err
		}
	}

	st, skipped, err := DecodeSnapshot(data, p.log)
	if err != nil {
		p.log.Error().Err(err).Msg("decoding session snapshot")
		return NewMultiSessionState(), err
	}
	if skipped > 0 {
		p.log.Warn().Int("skipped", skipped).Msg("snapshot entries skipped during load")
	}
	return st, nil
}

// Save encodes and persists the snapshot. A backend failure is logged and
// absorbed: the snapshot is kept in memory, Degraded starts reporting
// true, and the next save attempts the backend again. Only an encode
// failure, which means the snapshot itself is malformed, returns an error.
func (p *SnapshotStore) Save(st MultiSessionState) error {
	data, err := EncodeSnapshot(st)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if saveErr := p.backend.Save(SnapshotKey, data); saveErr != nil {
		p.cached = data
		if !p.degraded {
			p.degraded = true
			p.log.Error().Err(saveErr).Msg("snapshot save failed, degrading to in-memory state")
		}
		return nil
	}

	if p.degraded {
		p.log.Info().Msg("snapshot storage recovered")
	}
	p.degraded = false
	p.cached = nil
	return nil
}

// SaveRegistry snapshots the registry and persists it.
func (p *SnapshotStore) SaveRegistry(reg *Registry) error {
	return p.Save(FromRegistry(reg))
}

// Delete removes the persisted snapshot and any in-memory copy. A missing
// key is not an error.
func (p *SnapshotStore) Delete() error {
	p.mu.Lock()
	p.degraded = false
	p.cached = nil
	p.mu.Unlock()

	if err := p.backend.Delete(SnapshotKey); err != nil && !moorerr.Is(err, moorerr.ErrStoreKeyNotFound) {
		return err
	}
	return nil
}

// Degraded reports whether the store is running on its in-memory copy
// after a backend failure.
func (p *SnapshotStore) Degraded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.degraded
}
