package session

import (
	"encoding/json"
	"strconv"

	"github.com/rs/zerolog"

	moorerr "github.com/akodra/mooring/pkg/errors"
)

// SnapshotVersion is the current schema version of MultiSessionState.
// Version 1 predates direct-key support and stored a bare relay payload
// per entry with no discriminator; version 2 introduced the tagged union.
const SnapshotVersion = 2

// MultiSessionState is the persisted snapshot of all sessions, keyed by
// wallet id. ActiveWalletID, when set, must be a key of Sessions.
type MultiSessionState struct {
	Sessions       map[string]MultiSessionEntry `json:"sessions"`
	ActiveWalletID *string                      `json:"activeWalletId"`
	Version        int                          `json:"version"`
}

// NewMultiSessionState returns an empty current-version snapshot.
func NewMultiSessionState() MultiSessionState {
	return MultiSessionState{
		Sessions: make(map[string]MultiSessionEntry),
		Version:  SnapshotVersion,
	}
}

// IsEmpty reports whether the snapshot holds no sessions.
func (st MultiSessionState) IsEmpty() bool {
	return len(st.Sessions) == 0
}

// SetActive points the snapshot at a wallet already present in Sessions.
func (st *MultiSessionState) SetActive(walletID string) bool {
	if _, ok := st.Sessions[walletID]; !ok {
		return false
	}
	st.ActiveWalletID = &walletID
	return true
}

// Remove drops a wallet's entry, clearing the active pointer when it
// referenced that wallet.
func (st *MultiSessionState) Remove(walletID string) bool {
	if _, ok := st.Sessions[walletID]; !ok {
		return false
	}
	delete(st.Sessions, walletID)
	if st.ActiveWalletID != nil && *st.ActiveWalletID == walletID {
		st.ActiveWalletID = nil
	}
	return true
}

// EncodeSnapshot serializes a snapshot at the current version. It refuses
// to produce output that violates the model invariants; a snapshot that
// cannot round-trip must never reach storage.
func EncodeSnapshot(st MultiSessionState) ([]byte, error) {
	for walletID, entry := range st.Sessions {
		if err := entry.Validate(); err != nil {
			return nil, moorerr.Wrap(err, "entry %q", walletID)
		}
	}
	if st.ActiveWalletID != nil {
		if _, ok := st.Sessions[*st.ActiveWalletID]; !ok {
			return nil, moorerr.WithDetails(moorerr.ErrSnapshotInvalid, map[string]string{
				"active_wallet_id": *st.ActiveWalletID,
				"problem":          "active wallet is not a session key",
			})
		}
	}

	st.Version = SnapshotVersion
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, moorerr.Wrap(moorerr.ErrSnapshotInvalid, "encoding snapshot")
	}
	return data, nil
}

// snapshotEnvelope defers entry decoding so one bad record cannot sink
// the rest of the load.
type snapshotEnvelope struct {
	Sessions       map[string]json.RawMessage `json:"sessions"`
	ActiveWalletID *string                    `json:"activeWalletId"`
	Version        int                        `json:"version"`
}

// DecodeSnapshot parses stored snapshot bytes, migrating older schema
// versions forward. Entries that fail to decode, validate, or agree with
// their wallet-id key are skipped individually and counted in the second
// return value; only an unreadable envelope or an unknown future version
// fails the whole load. An active pointer whose entry did not survive is
// cleared.
func DecodeSnapshot(data []byte, log zerolog.Logger) (MultiSessionState, int, error) {
	var env snapshotEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return MultiSessionState{}, 0, moorerr.Wrap(moorerr.ErrSnapshotInvalid, "decoding snapshot envelope")
	}
	if env.Version > SnapshotVersion {
		return MultiSessionState{}, 0, moorerr.WithDetails(moorerr.ErrSnapshotInvalid, map[string]string{
			"version": strconv.Itoa(env.Version),
			"problem": "snapshot version is newer than this build understands",
		})
	}

	st := NewMultiSessionState()
	skipped := 0
	for walletID, raw := range env.Sessions {
		entry, err := decodeEntry(env.Version, raw)
		if err == nil {
			_, err = entry.Session(walletID)
		}
		if err != nil {
			skipped++
			log.Warn().Err(err).Str("wallet_id", walletID).Msg("skipping unreadable session entry")
			continue
		}
		st.Sessions[walletID] = entry
	}

	if env.ActiveWalletID != nil {
		if _, ok := st.Sessions[*env.ActiveWalletID]; ok {
			st.ActiveWalletID = env.ActiveWalletID
		} else {
			log.Warn().Str("wallet_id", *env.ActiveWalletID).Msg("active wallet has no surviving entry, clearing")
		}
	}
	return st, skipped, nil
}

// decodeEntry parses one raw entry at the given schema version.
func decodeEntry(version int, raw json.RawMessage) (MultiSessionEntry, error) {
	if version <= 1 {
		// Version 1 wrote the relay payload inline with no discriminator.
		var relay RelaySessionData
		if err := json.Unmarshal(raw, &relay); err != nil {
			return MultiSessionEntry{}, moorerr.Wrap(moorerr.ErrSnapshotInvalid, "decoding v1 entry")
		}
		entry := NewRelayEntry(relay)
		return entry, entry.Validate()
	}

	var entry MultiSessionEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return MultiSessionEntry{}, err
	}
	return entry, nil
}

// FromRegistry snapshots the registry's full contents, expired sessions
// included, so persisting and reloading reproduces the same wallet set.
func FromRegistry(reg *Registry) MultiSessionState {
	st := NewMultiSessionState()
	for _, s := range reg.List() {
		entry, err := EntryFromSession(s)
		if err != nil {
			continue
		}
		st.Sessions[s.WalletID] = entry
	}
	if walletID, ok := reg.ActiveWalletID(); ok {
		st.SetActive(walletID)
	}
	return st
}

// Seed loads a snapshot's sessions into the registry. Entries enter
// StateInactive, except the active wallet's, which enters StateActive,
// and entries already past their horizon, which enter StateExpired.
// Unreadable entries are skipped. Returns the number seeded.
func (r *Registry) Seed(st MultiSessionState) int {
	seeded := 0
	for walletID, entry := range st.Sessions {
		s, err := entry.Session(walletID)
		if err != nil {
			r.log.Warn().Err(err).Str("wallet_id", walletID).Msg("skipping snapshot entry")
			continue
		}

		switch {
		case s.IsExpired(r.now()):
			s.State = StateExpired
		case st.ActiveWalletID != nil && *st.ActiveWalletID == walletID:
			s.State = StateActive
		default:
			s.State = StateInactive
		}

		r.Register(s)
		seeded++
	}
	return seeded
}
