package session_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akodra/mooring/internal/session"
	"github.com/akodra/mooring/internal/wallet"
	moorerr "github.com/akodra/mooring/pkg/errors"
)

func TestMultiSessionEntryValidate(t *testing.T) {
	t.Parallel()

	t.Run("relay entry", func(t *testing.T) {
		t.Parallel()

		entry := session.NewRelayEntry(session.RelaySessionData{
			Topic:   "t1",
			Address: evmAddress,
			ChainID: 1,
		})
		require.NoError(t, entry.Validate())
		assert.Equal(t, session.SessionTypeRelay, entry.Type())
		assert.Equal(t, "t1", entry.Topic())

		relay, ok := entry.Relay()
		require.True(t, ok)
		assert.Equal(t, int64(1), relay.ChainID)
		_, ok = entry.DirectKey()
		assert.False(t, ok)
	})

	t.Run("direct key entry", func(t *testing.T) {
		t.Parallel()

		entry := session.NewDirectKeyEntry(session.DirectKeySessionData{
			Topic:   "t2",
			Address: solAddress,
			Cluster: wallet.ClusterMainnetBeta,
		})
		require.NoError(t, entry.Validate())
		assert.Equal(t, session.SessionTypeDirectKey, entry.Type())

		dk, ok := entry.DirectKey()
		require.True(t, ok)
		assert.Equal(t, wallet.ClusterMainnetBeta, dk.Cluster)
	})

	t.Run("zero value rejected", func(t *testing.T) {
		t.Parallel()

		var entry session.MultiSessionEntry
		require.ErrorIs(t, entry.Validate(), moorerr.ErrSnapshotInvalid)
	})

	t.Run("missing identity fields rejected", func(t *testing.T) {
		t.Parallel()

		entry := session.NewRelayEntry(session.RelaySessionData{Topic: "t1"})
		require.ErrorIs(t, entry.Validate(), moorerr.ErrSnapshotInvalid)
	})
}

func TestMultiSessionEntryJSON(t *testing.T) {
	t.Parallel()

	t.Run("relay round trip", func(t *testing.T) {
		t.Parallel()

		expiry := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
		entry := session.NewRelayEntry(session.RelaySessionData{
			Topic:        "t1",
			PairingTopic: "p1",
			Address:      evmAddress,
			ChainID:      137,
			PeerName:     "Test Wallet",
			ConnectedAt:  time.Now().UTC().Truncate(time.Second),
			ExpiresAt:    &expiry,
			SessionBlob:  []byte("blob"),
		})

		data, err := json.Marshal(entry)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"sessionType":"relay"`)
		assert.NotContains(t, string(data), "directKey")

		var decoded session.MultiSessionEntry
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, entry, decoded)
	})

	t.Run("direct key round trip", func(t *testing.T) {
		t.Parallel()

		entry := session.NewDirectKeyEntry(session.DirectKeySessionData{
			Topic:         "t2",
			Address:       solAddress,
			Cluster:       wallet.ClusterDevnet,
			PeerPublicKey: solPeerPubKey,
			ConnectedAt:   time.Now().UTC().Truncate(time.Second),
		})

		data, err := json.Marshal(entry)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"sessionType":"directKey"`)

		var decoded session.MultiSessionEntry
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, entry, decoded)
	})

	t.Run("marshal refuses invalid entry", func(t *testing.T) {
		t.Parallel()

		var entry session.MultiSessionEntry
		_, err := json.Marshal(entry)
		require.Error(t, err)
	})

	t.Run("unmarshal rejects tag payload mismatch", func(t *testing.T) {
		t.Parallel()

		raw := `{"sessionType":"relay","directKey":{"topic":"t1","address":"` + solAddress + `","cluster":"devnet"}}`
		var entry session.MultiSessionEntry
		require.ErrorIs(t, json.Unmarshal([]byte(raw), &entry), moorerr.ErrSnapshotInvalid)
	})

	t.Run("unmarshal rejects unknown tag", func(t *testing.T) {
		t.Parallel()

		raw := `{"sessionType":"carrier-pigeon","relay":{"topic":"t1","address":"0xabc"}}`
		var entry session.MultiSessionEntry
		require.ErrorIs(t, json.Unmarshal([]byte(raw), &entry), moorerr.ErrSnapshotInvalid)
	})

	t.Run("unmarshal rejects both payloads", func(t *testing.T) {
		t.Parallel()

		raw := `{"sessionType":"relay",` +
			`"relay":{"topic":"t1","address":"` + evmAddress + `","chainId":1},` +
			`"directKey":{"topic":"t2","address":"` + solAddress + `","cluster":"devnet"}}`
		var entry session.MultiSessionEntry
		require.ErrorIs(t, json.Unmarshal([]byte(raw), &entry), moorerr.ErrSnapshotInvalid)
	})
}

func TestEntryFromSession(t *testing.T) {
	t.Parallel()

	t.Run("relay session converts and rebuilds", func(t *testing.T) {
		t.Parallel()

		s := withExpiry(relaySession("t1"), time.Hour)
		s.SessionBlob = []byte("wc-session")

		entry, err := session.EntryFromSession(s)
		require.NoError(t, err)
		assert.Equal(t, session.SessionTypeRelay, entry.Type())

		rebuilt, err := entry.Session(s.WalletID)
		require.NoError(t, err)
		assert.Equal(t, s.Topic, rebuilt.Topic)
		assert.Equal(t, s.Address, rebuilt.Address)
		assert.Equal(t, wallet.KindReown, rebuilt.Kind)
		assert.Equal(t, s.Chain, rebuilt.Chain)
		assert.Equal(t, s.PairingTopic, rebuilt.PairingTopic)
		assert.Equal(t, s.SessionBlob, rebuilt.SessionBlob)
	})

	t.Run("direct key session converts and rebuilds", func(t *testing.T) {
		t.Parallel()

		s := directKeySession("t2")
		entry, err := session.EntryFromSession(s)
		require.NoError(t, err)
		assert.Equal(t, session.SessionTypeDirectKey, entry.Type())

		rebuilt, err := entry.Session(s.WalletID)
		require.NoError(t, err)
		assert.Equal(t, wallet.KindPhantom, rebuilt.Kind)
		assert.Equal(t, s.PeerPublicKey, rebuilt.PeerPublicKey)
		assert.Equal(t, s.Chain, rebuilt.Chain)
	})

	t.Run("missing topic rejected", func(t *testing.T) {
		t.Parallel()

		s := relaySession("")
		_, err := session.EntryFromSession(s)
		require.ErrorIs(t, err, moorerr.ErrSnapshotInvalid)
	})
}

func TestEntrySessionRejectsMismatches(t *testing.T) {
	t.Parallel()

	relay := session.NewRelayEntry(session.RelaySessionData{
		Topic:   "t1",
		Address: evmAddress,
		ChainID: 1,
	})

	t.Run("unparseable wallet id", func(t *testing.T) {
		t.Parallel()

		_, err := relay.Session("not-a-wallet-id")
		require.ErrorIs(t, err, moorerr.ErrSnapshotInvalid)
	})

	t.Run("wallet kind family mismatch", func(t *testing.T) {
		t.Parallel()

		_, err := relay.Session(solWalletID)
		require.ErrorIs(t, err, moorerr.ErrSnapshotInvalid)
	})

	t.Run("address mismatch", func(t *testing.T) {
		t.Parallel()

		_, err := relay.Session("reown_0x0000000000000000000000000000000000000001")
		require.ErrorIs(t, err, moorerr.ErrSnapshotInvalid)
	})
}
