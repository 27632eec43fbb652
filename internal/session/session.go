// Package session tracks wallet-connection sessions: the ManagedSession
// entity, the Registry state machine that decides whether each session is
// usable right now, and the versioned MultiSessionState snapshot that
// carries sessions across process restarts.
package session

import (
	"time"

	"github.com/akodra/mooring/internal/wallet"
)

// State classifies how usable a session is.
type State string

// Session states.
const (
	// StateActive marks the one session selected for current operations.
	StateActive State = "active"

	// StateInactive marks a valid session that is not currently selected.
	StateInactive State = "inactive"

	// StateStale marks a session the registry still believes in but the
	// transport's live set does not currently contain. Stale sessions are
	// reconnected automatically, never deleted.
	StateStale State = "stale"

	// StateExpired marks a session past its validity horizon. Expired
	// sessions are never reconnected, only removed.
	StateExpired State = "expired"
)

func (s State) String() string {
	return string(s)
}

// IsValid returns true for one of the four defined states.
func (s State) IsValid() bool {
	switch s {
	case StateActive, StateInactive, StateStale, StateExpired:
		return true
	default:
		return false
	}
}

// Usable reports whether a session in this state can serve requests
// without a reconnect.
func (s State) Usable() bool {
	return s == StateActive || s == StateInactive
}

// ParseState converts user or stored input into a State.
func ParseState(input string) (State, bool) {
	s := State(input)
	return s, s.IsValid()
}

// ManagedSession holds the durable facts of one protocol session.
// The registry hands out copies only; mutating a returned value has no
// effect on registry state.
type ManagedSession struct {
	// Topic is the opaque transport identifier, unique across sessions.
	Topic string `json:"topic"`

	// WalletID is the derived identity key, kind + "_" + lowercased
	// address. Unique: reconnecting a wallet replaces its entry.
	WalletID string `json:"walletId"`

	Kind    wallet.Kind     `json:"kind"`
	Address string          `json:"address"`
	State   State           `json:"state"`
	Chain   wallet.ChainRef `json:"chain"`

	ConnectedAt     time.Time `json:"connectedAt"`
	LastValidatedAt time.Time `json:"lastValidatedAt"`

	// ExpiresAt is the application-level validity horizon. Nil means the
	// session does not expire.
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`

	// SessionBlob is the opaque payload the transport needs to re-inject
	// the session after a restart.
	SessionBlob []byte `json:"sessionBlob,omitempty"`

	// PairingTopic is the relay pairing identifier, when the kind uses one.
	PairingTopic string `json:"pairingTopic,omitempty"`

	// PeerPublicKey is the peer's encryption public key (base58), used by
	// direct-key kinds to open callback payloads.
	PeerPublicKey string `json:"peerPublicKey,omitempty"`

	PeerName string `json:"peerName,omitempty"`
	PeerIcon string `json:"peerIcon,omitempty"`
}

// IsExpired reports whether the validity horizon has passed at now.
// Sessions without a horizon never expire.
func (s *ManagedSession) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// Remaining returns the time left until expiry, zero when expired or when
// the session has no horizon.
func (s *ManagedSession) Remaining(now time.Time) time.Duration {
	if s.ExpiresAt == nil {
		return 0
	}
	remaining := s.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Clone returns a deep copy.
func (s *ManagedSession) Clone() ManagedSession {
	out := *s
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		out.ExpiresAt = &t
	}
	if s.SessionBlob != nil {
		out.SessionBlob = make([]byte, len(s.SessionBlob))
		copy(out.SessionBlob, s.SessionBlob)
	}
	return out
}

// DisplayAddress returns the address in its display form for the kind.
func (s *ManagedSession) DisplayAddress() string {
	return wallet.DisplayAddress(s.Kind, s.Address)
}
