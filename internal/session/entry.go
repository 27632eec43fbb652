package session

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/akodra/mooring/internal/wallet"
	moorerr "github.com/akodra/mooring/pkg/errors"
)

// SessionType discriminates which connection family's payload an entry
// carries.
type SessionType string

// Entry discriminator values. These are wire constants; renaming them
// breaks stored snapshots.
const (
	SessionTypeRelay     SessionType = "relay"
	SessionTypeDirectKey SessionType = "directKey"
)

// IsValid returns true for a known discriminator.
func (t SessionType) IsValid() bool {
	return t == SessionTypeRelay || t == SessionTypeDirectKey
}

// Family maps the discriminator to the connection family it persists.
func (t SessionType) Family() wallet.Family {
	if t == SessionTypeDirectKey {
		return wallet.FamilyDirectKey
	}
	return wallet.FamilyRelay
}

// TypeForFamily returns the discriminator for a connection family.
func TypeForFamily(f wallet.Family) SessionType {
	if f == wallet.FamilyDirectKey {
		return SessionTypeDirectKey
	}
	return SessionTypeRelay
}

// RelaySessionData is the persisted payload of a relay-family session.
type RelaySessionData struct {
	Topic        string     `json:"topic"`
	PairingTopic string     `json:"pairingTopic,omitempty"`
	Address      string     `json:"address"`
	ChainID      int64      `json:"chainId"`
	PeerName     string     `json:"peerName,omitempty"`
	PeerIcon     string     `json:"peerIcon,omitempty"`
	ConnectedAt  time.Time  `json:"connectedAt"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	SessionBlob  []byte     `json:"sessionBlob,omitempty"`
}

// DirectKeySessionData is the persisted payload of a direct-key-exchange
// session. Topic doubles as the shared-secret session token.
type DirectKeySessionData struct {
	Topic         string     `json:"topic"`
	Address       string     `json:"address"`
	Cluster       string     `json:"cluster"`
	PeerPublicKey string     `json:"peerPublicKey,omitempty"`
	ConnectedAt   time.Time  `json:"connectedAt"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	SessionBlob   []byte     `json:"sessionBlob,omitempty"`
}

// MultiSessionEntry is one persisted session, a tagged union: the
// discriminator names exactly one populated payload. The zero value is
// invalid; construct entries with NewRelayEntry, NewDirectKeyEntry, or
// EntryFromSession.
type MultiSessionEntry struct {
	sessionType SessionType
	relay       *RelaySessionData
	directKey   *DirectKeySessionData
}

// NewRelayEntry builds a relay-family entry.
func NewRelayEntry(data RelaySessionData) MultiSessionEntry {
	return MultiSessionEntry{sessionType: SessionTypeRelay, relay: &data}
}

// NewDirectKeyEntry builds a direct-key-family entry.
func NewDirectKeyEntry(data DirectKeySessionData) MultiSessionEntry {
	return MultiSessionEntry{sessionType: SessionTypeDirectKey, directKey: &data}
}

// Type returns the discriminator.
func (e MultiSessionEntry) Type() SessionType {
	return e.sessionType
}

// Relay returns the relay payload when this is a relay entry.
func (e MultiSessionEntry) Relay() (RelaySessionData, bool) {
	if e.sessionType != SessionTypeRelay || e.relay == nil {
		return RelaySessionData{}, false
	}
	return *e.relay, true
}

// DirectKey returns the direct-key payload when this is a direct-key entry.
func (e MultiSessionEntry) DirectKey() (DirectKeySessionData, bool) {
	if e.sessionType != SessionTypeDirectKey || e.directKey == nil {
		return DirectKeySessionData{}, false
	}
	return *e.directKey, true
}

// Topic returns the payload's topic whichever variant is populated.
func (e MultiSessionEntry) Topic() string {
	switch e.sessionType {
	case SessionTypeRelay:
		if e.relay != nil {
			return e.relay.Topic
		}
	case SessionTypeDirectKey:
		if e.directKey != nil {
			return e.directKey.Topic
		}
	}
	return ""
}

// Validate checks that the discriminator names exactly one populated
// payload and the payload carries its identity fields.
func (e MultiSessionEntry) Validate() error {
	switch e.sessionType {
	case SessionTypeRelay:
		if e.relay == nil || e.directKey != nil {
			return moorerr.WithDetails(moorerr.ErrSnapshotInvalid, map[string]string{
				"session_type": string(e.sessionType),
				"problem":      "payload does not match discriminator",
			})
		}
		if e.relay.Topic == "" || e.relay.Address == "" {
			return moorerr.WithDetails(moorerr.ErrSnapshotInvalid, map[string]string{
				"session_type": string(e.sessionType),
				"problem":      "missing topic or address",
			})
		}
	case SessionTypeDirectKey:
		if e.directKey == nil || e.relay != nil {
			return moorerr.WithDetails(moorerr.ErrSnapshotInvalid, map[string]string{
				"session_type": string(e.sessionType),
				"problem":      "payload does not match discriminator",
			})
		}
		if e.directKey.Topic == "" || e.directKey.Address == "" {
			return moorerr.WithDetails(moorerr.ErrSnapshotInvalid, map[string]string{
				"session_type": string(e.sessionType),
				"problem":      "missing topic or address",
			})
		}
	default:
		return moorerr.WithDetails(moorerr.ErrSnapshotInvalid, map[string]string{
			"session_type": string(e.sessionType),
			"problem":      "unknown session type",
		})
	}
	return nil
}

// entryWire is the serialized shape of MultiSessionEntry.
type entryWire struct {
	SessionType SessionType           `json:"sessionType"`
	Relay       *RelaySessionData     `json:"relay,omitempty"`
	DirectKey   *DirectKeySessionData `json:"directKey,omitempty"`
}

// MarshalJSON refuses entries that violate the union invariant rather
// than persisting a snapshot no loader could trust.
func (e MultiSessionEntry) MarshalJSON() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(entryWire{
		SessionType: e.sessionType,
		Relay:       e.relay,
		DirectKey:   e.directKey,
	})
}

// UnmarshalJSON decodes and enforces the union invariant. Callers decoding
// whole snapshots treat a per-entry error as "skip this entry".
func (e *MultiSessionEntry) UnmarshalJSON(data []byte) error {
	var wire entryWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return moorerr.Wrap(moorerr.ErrSnapshotInvalid, "decoding session entry")
	}

	decoded := MultiSessionEntry{
		sessionType: wire.SessionType,
		relay:       wire.Relay,
		directKey:   wire.DirectKey,
	}
	if err := decoded.Validate(); err != nil {
		return err
	}

	*e = decoded
	return nil
}

// EntryFromSession converts a live session into its persisted form.
func EntryFromSession(s ManagedSession) (MultiSessionEntry, error) {
	if s.Topic == "" || s.Address == "" {
		return MultiSessionEntry{}, moorerr.WithDetails(moorerr.ErrSnapshotInvalid, map[string]string{
			"wallet_id": s.WalletID,
			"problem":   "missing topic or address",
		})
	}

	switch s.Kind.Family() {
	case wallet.FamilyDirectKey:
		return NewDirectKeyEntry(DirectKeySessionData{
			Topic:         s.Topic,
			Address:       s.Address,
			Cluster:       s.Chain.Cluster,
			PeerPublicKey: s.PeerPublicKey,
			ConnectedAt:   s.ConnectedAt,
			ExpiresAt:     s.ExpiresAt,
			SessionBlob:   s.SessionBlob,
		}), nil
	default:
		return NewRelayEntry(RelaySessionData{
			Topic:        s.Topic,
			PairingTopic: s.PairingTopic,
			Address:      s.Address,
			ChainID:      s.Chain.ChainID,
			PeerName:     s.PeerName,
			PeerIcon:     s.PeerIcon,
			ConnectedAt:  s.ConnectedAt,
			ExpiresAt:    s.ExpiresAt,
			SessionBlob:  s.SessionBlob,
		}), nil
	}
}

// Session rebuilds a ManagedSession from a persisted entry. The wallet id
// supplies kind and address; the entry must agree with both. State is not
// persisted, so the caller assigns it when seeding a registry.
func (e MultiSessionEntry) Session(walletID string) (ManagedSession, error) {
	kind, addr, ok := wallet.SplitID(walletID)
	if !ok {
		return ManagedSession{}, moorerr.WithDetails(moorerr.ErrSnapshotInvalid, map[string]string{
			"wallet_id": walletID,
			"problem":   "wallet id does not parse",
		})
	}
	if err := e.Validate(); err != nil {
		return ManagedSession{}, err
	}
	if TypeForFamily(kind.Family()) != e.sessionType {
		return ManagedSession{}, moorerr.WithDetails(moorerr.ErrSnapshotInvalid, map[string]string{
			"wallet_id":    walletID,
			"session_type": string(e.sessionType),
			"problem":      "session type does not match wallet kind",
		})
	}

	s := ManagedSession{WalletID: walletID, Kind: kind}
	switch e.sessionType {
	case SessionTypeDirectKey:
		d := e.directKey
		s.Topic = d.Topic
		s.Address = d.Address
		s.Chain = wallet.SolanaCluster(d.Cluster)
		s.PeerPublicKey = d.PeerPublicKey
		s.ConnectedAt = d.ConnectedAt
		s.ExpiresAt = d.ExpiresAt
		s.SessionBlob = d.SessionBlob
	default:
		d := e.relay
		s.Topic = d.Topic
		s.PairingTopic = d.PairingTopic
		s.Address = d.Address
		s.Chain = wallet.EVMChain(d.ChainID)
		s.PeerName = d.PeerName
		s.PeerIcon = d.PeerIcon
		s.ConnectedAt = d.ConnectedAt
		s.ExpiresAt = d.ExpiresAt
		s.SessionBlob = d.SessionBlob
	}

	if !strings.EqualFold(s.Address, addr) {
		return ManagedSession{}, moorerr.WithDetails(moorerr.ErrSnapshotInvalid, map[string]string{
			"wallet_id": walletID,
			"address":   s.Address,
			"problem":   "payload address does not match wallet id",
		})
	}
	return s, nil
}
