package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/akodra/mooring/internal/config"
	"github.com/akodra/mooring/internal/connect"
	"github.com/akodra/mooring/internal/logging"
	"github.com/akodra/mooring/internal/output"
	"github.com/akodra/mooring/internal/session"
	"github.com/akodra/mooring/internal/wallet"
	moorerr "github.com/akodra/mooring/pkg/errors"
)

// mockFormatProvider returns a fixed output format.
type mockFormatProvider struct {
	format output.Format
}

func (m *mockFormatProvider) Format() output.Format { return m.format }

// Compile-time check.
var _ FormatProvider = (*mockFormatProvider)(nil)

// mockSessionService is a scriptable SessionService for command tests.
type mockSessionService struct {
	sessions []session.ManagedSession
	active   *session.ManagedSession
	events   chan connect.StatusEvent

	connectResult session.ManagedSession
	connectErr    error
	connectFn     func(ctx context.Context)

	disconnectErr  error
	callbackResult connect.CallbackResult
	callbackErr    error
	activateErr    error
	removeErr      error
	cleanupCount   int
	liveTopics     map[string]struct{}
	liveErr        error
	reconnectErr   error

	connectCalls    int
	disconnectCalls int
	activated       []string
	removed         []string
	reconnected     []string
	closed          bool
}

// Compile-time check.
var _ SessionService = (*mockSessionService)(nil)

func newMockSessionService() *mockSessionService {
	return &mockSessionService{events: make(chan connect.StatusEvent, 8)}
}

func (m *mockSessionService) Connect(ctx context.Context, _ wallet.Kind, _ wallet.ChainRef) (session.ManagedSession, error) {
	m.connectCalls++
	if m.connectFn != nil {
		m.connectFn(ctx)
	}
	return m.connectResult, m.connectErr
}

func (m *mockSessionService) Disconnect(context.Context) error {
	m.disconnectCalls++
	return m.disconnectErr
}

func (m *mockSessionService) RouteCallback(context.Context, string) (connect.CallbackResult, error) {
	return m.callbackResult, m.callbackErr
}

func (m *mockSessionService) LiveTopics(context.Context) (map[string]struct{}, error) {
	if m.liveTopics == nil {
		return map[string]struct{}{}, m.liveErr
	}
	return m.liveTopics, m.liveErr
}

func (m *mockSessionService) Reconnect(_ context.Context, _ wallet.Kind, topic string) error {
	m.reconnected = append(m.reconnected, topic)
	return m.reconnectErr
}

func (m *mockSessionService) Activate(topic string) (session.ManagedSession, error) {
	m.activated = append(m.activated, topic)
	if m.activateErr != nil {
		return session.ManagedSession{}, m.activateErr
	}
	for _, ms := range m.sessions {
		if ms.Topic == topic {
			ms.State = session.StateActive
			return ms, nil
		}
	}
	return session.ManagedSession{}, moorerr.ErrSessionNotFound
}

func (m *mockSessionService) Remove(topic string) error {
	m.removed = append(m.removed, topic)
	return m.removeErr
}

func (m *mockSessionService) Cleanup() int {
	return m.cleanupCount
}

func (m *mockSessionService) Sessions() []session.ManagedSession {
	return m.sessions
}

func (m *mockSessionService) Active() (session.ManagedSession, bool) {
	if m.active == nil {
		return session.ManagedSession{}, false
	}
	return *m.active, true
}

func (m *mockSessionService) Session(topic string) (session.ManagedSession, bool) {
	for _, ms := range m.sessions {
		if ms.Topic == topic {
			return ms, true
		}
	}
	return session.ManagedSession{}, false
}

func (m *mockSessionService) Events() <-chan connect.StatusEvent {
	return m.events
}

func (m *mockSessionService) Close() error {
	m.closed = true
	return nil
}

// newCLITestCmd creates a command wired with the mock service and a fixed
// format, returning the command plus its stdout and stderr buffers.
func newCLITestCmd(svc SessionService, format output.Format) (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	SetCmdContext(cmd, &CommandContext{
		Cfg: config.Defaults(),
		Log: logging.Nop(),
		Fmt: &mockFormatProvider{format: format},
		Svc: svc,
	})
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	return cmd, &stdout, &stderr
}

// testSession builds a plausible relay session for fixtures.
func testSession(topic, address string, state session.State) session.ManagedSession {
	expires := time.Now().Add(time.Hour)
	return session.ManagedSession{
		Topic:       topic,
		WalletID:    "reown_" + strings.ToLower(address),
		Kind:        wallet.KindReown,
		Address:     address,
		State:       state,
		Chain:       wallet.EVMChain(1),
		ConnectedAt: time.Now().Add(-time.Minute),
		ExpiresAt:   &expires,
		PeerName:    "Test Wallet",
	}
}

// withMockPrompts replaces prompt functions for testing and restores on cleanup.
func withMockPrompts(t *testing.T, passphrase []byte, confirm bool) {
	t.Helper()
	origPassphrase := promptPassphraseFn
	origConfirm := promptConfirmFn
	origStore := storePassphraseFn
	t.Cleanup(func() {
		promptPassphraseFn = origPassphrase
		promptConfirmFn = origConfirm
		storePassphraseFn = origStore
	})
	promptPassphraseFn = func() ([]byte, error) {
		cp := make([]byte, len(passphrase))
		copy(cp, passphrase)
		return cp, nil
	}
	promptConfirmFn = func(string) bool { return confirm }
	storePassphraseFn = func() ([]byte, error) {
		cp := make([]byte, len(passphrase))
		copy(cp, passphrase)
		return cp, nil
	}
}
