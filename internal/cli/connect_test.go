package cli

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akodra/mooring/internal/connect"
	"github.com/akodra/mooring/internal/output"
	"github.com/akodra/mooring/internal/session"
	"github.com/akodra/mooring/internal/wallet"
	moorerr "github.com/akodra/mooring/pkg/errors"
)

// setConnectFlags sets the connect flag globals and restores them on cleanup.
func setConnectFlags(t *testing.T, chainID int64, cluster string) {
	t.Helper()
	origID, origCluster := connectChainID, connectCluster
	origTimeout, origTransport, origQR := connectTimeout, connectTransport, connectQR
	t.Cleanup(func() {
		connectChainID, connectCluster = origID, origCluster
		connectTimeout, connectTransport, connectQR = origTimeout, origTransport, origQR
	})
	connectChainID, connectCluster = chainID, cluster
	connectTimeout, connectTransport, connectQR = 0, "", false
}

func TestChainFromFlags(t *testing.T) {
	tests := []struct {
		name        string
		kind        wallet.Kind
		chainID     int64
		cluster     string
		want        wallet.ChainRef
		wantErr     bool
		suggestHint string
	}{
		{
			name:    "chain id selects EVM network",
			kind:    wallet.KindReown,
			chainID: 1,
			want:    wallet.EVMChain(1),
		},
		{
			name:    "cluster selects Solana network",
			kind:    wallet.KindPhantom,
			cluster: "mainnet-beta",
			want:    wallet.SolanaCluster("mainnet-beta"),
		},
		{
			name:        "nothing selected suggests chain id for relay kinds",
			kind:        wallet.KindReown,
			wantErr:     true,
			suggestHint: "--chain-id",
		},
		{
			name:        "nothing selected suggests cluster for direct-key kinds",
			kind:        wallet.KindPhantom,
			wantErr:     true,
			suggestHint: "--cluster",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setConnectFlags(t, tc.chainID, tc.cluster)

			got, err := chainFromFlags(tc.kind)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, moorerr.Is(err, moorerr.ErrInvalidInput))

				var me *moorerr.MooringError
				require.ErrorAs(t, err, &me)
				assert.Contains(t, me.Suggestion, tc.suggestHint)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRunConnect_Success_Text(t *testing.T) {
	svc := newMockSessionService()
	svc.connectResult = testSession("topic-9", "0xAAA1", session.StateActive)
	cmd, stdout, _ := newCLITestCmd(svc, output.FormatText)
	setConnectFlags(t, 1, "")

	err := runConnect(cmd, []string{"reown"})
	require.NoError(t, err)
	assert.Equal(t, 1, svc.connectCalls)

	got := stdout.String()
	assert.Contains(t, got, "Wallet connected.")
	assert.Contains(t, got, "reown_0xaaa1")
	assert.Contains(t, got, "eip155:1")
}

func TestRunConnect_Success_JSON(t *testing.T) {
	svc := newMockSessionService()
	svc.connectResult = testSession("topic-9", "0xAAA1", session.StateActive)
	cmd, stdout, _ := newCLITestCmd(svc, output.FormatJSON)
	setConnectFlags(t, 1, "")

	err := runConnect(cmd, []string{"reown"})
	require.NoError(t, err)

	got := stdout.String()
	assert.Contains(t, got, `"walletId": "reown_0xaaa1"`)
	assert.Contains(t, got, `"topic": "topic-9"`)
	assert.NotContains(t, got, "sessionBlob")
}

func TestRunConnect_UnknownKind(t *testing.T) {
	svc := newMockSessionService()
	cmd, _, _ := newCLITestCmd(svc, output.FormatText)
	setConnectFlags(t, 1, "")

	err := runConnect(cmd, []string{"raown"})
	require.Error(t, err)
	assert.True(t, moorerr.Is(err, moorerr.ErrUnknownKind))
	assert.Zero(t, svc.connectCalls)
}

func TestRunConnect_NoNetworkSelected(t *testing.T) {
	svc := newMockSessionService()
	cmd, _, _ := newCLITestCmd(svc, output.FormatText)
	setConnectFlags(t, 0, "")

	err := runConnect(cmd, []string{"reown"})
	require.Error(t, err)
	assert.True(t, moorerr.Is(err, moorerr.ErrInvalidInput))
	assert.Zero(t, svc.connectCalls)
}

func TestRunConnect_Declined(t *testing.T) {
	svc := newMockSessionService()
	svc.connectErr = moorerr.ErrConnectionDeclined
	cmd, _, _ := newCLITestCmd(svc, output.FormatText)
	setConnectFlags(t, 1, "")

	err := runConnect(cmd, []string{"reown"})
	require.Error(t, err)
	assert.True(t, moorerr.Is(err, moorerr.ErrConnectionDeclined))
}

func TestWatchConnectProgress_Narration(t *testing.T) {
	events := make(chan connect.StatusEvent, 3)
	events <- connect.StatusEvent{Type: connect.StatusConnecting, Kind: wallet.KindReown, PairingURI: "wc:pairing-uri@2"}
	events <- connect.StatusEvent{Type: connect.StatusRetrying, Attempt: 1, MaxRetries: 3}
	events <- connect.StatusEvent{Type: connect.StatusConnected}
	close(events)

	cmd := &cobra.Command{}
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)

	done := make(chan struct{})
	watchConnectProgress(cmd, events, done)

	got := stderr.String()
	assert.Contains(t, got, "Approve the connection in your wallet app:")
	assert.Contains(t, got, "wc:pairing-uri@2")
	assert.Contains(t, got, "retrying (1/3)")
}

func TestWatchConnectProgress_SkipsBareConnecting(t *testing.T) {
	events := make(chan connect.StatusEvent, 1)
	events <- connect.StatusEvent{Type: connect.StatusConnecting}
	close(events)

	cmd := &cobra.Command{}
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)

	done := make(chan struct{})
	watchConnectProgress(cmd, events, done)

	assert.Empty(t, stderr.String())
}
