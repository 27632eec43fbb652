package session_test

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/akodra/mooring/internal/session"
	"github.com/akodra/mooring/internal/wallet"
)

const (
	evmAddress    = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	evmWalletID   = "reown_" + evmAddress
	solAddress    = "So11111111111111111111111111111111111111112"
	solWalletID   = "phantom_so11111111111111111111111111111111111111112"
	solPeerPubKey = "11111111111111111111111111111111"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// testTime produces timestamps that survive a JSON round trip exactly:
// UTC location and no monotonic reading or sub-second residue.
func testTime(offset time.Duration) time.Time {
	return time.Now().Add(offset).UTC().Truncate(time.Second)
}

// relaySession builds a usable relay-family session under the given topic.
func relaySession(topic string) session.ManagedSession {
	return session.ManagedSession{
		Topic:        topic,
		WalletID:     evmWalletID,
		Kind:         wallet.KindReown,
		Address:      evmAddress,
		State:        session.StateInactive,
		Chain:        wallet.EVMChain(1),
		ConnectedAt:  testTime(-time.Hour),
		PairingTopic: "pairing-" + topic,
		PeerName:     "Test Wallet",
	}
}

// directKeySession builds a usable direct-key session under the given topic.
func directKeySession(topic string) session.ManagedSession {
	return session.ManagedSession{
		Topic:         topic,
		WalletID:      solWalletID,
		Kind:          wallet.KindPhantom,
		Address:       solAddress,
		State:         session.StateInactive,
		Chain:         wallet.SolanaCluster(wallet.ClusterMainnetBeta),
		ConnectedAt:   testTime(-time.Hour),
		PeerPublicKey: solPeerPubKey,
	}
}

// withExpiry returns the session with its validity horizon set relative
// to now. Negative offsets produce an already-expired session.
func withExpiry(s session.ManagedSession, offset time.Duration) session.ManagedSession {
	t := testTime(offset)
	s.ExpiresAt = &t
	return s
}

func newRegistry() *session.Registry {
	return session.NewRegistry(testLogger())
}
