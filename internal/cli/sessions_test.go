package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akodra/mooring/internal/output"
	"github.com/akodra/mooring/internal/session"
	moorerr "github.com/akodra/mooring/pkg/errors"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		// Seconds only (less than 1 minute)
		{
			name:     "0 seconds",
			duration: 0,
			want:     "0s",
		},
		{
			name:     "1 second",
			duration: time.Second,
			want:     "1s",
		},
		{
			name:     "59 seconds",
			duration: 59 * time.Second,
			want:     "59s",
		},

		// Minutes
		{
			name:     "1 minute exactly",
			duration: time.Minute,
			want:     "1m",
		},
		{
			name:     "1 minute 30 seconds",
			duration: time.Minute + 30*time.Second,
			want:     "1m30s",
		},
		{
			name:     "59 minutes 59 seconds",
			duration: 59*time.Minute + 59*time.Second,
			want:     "59m59s",
		},

		// Hours
		{
			name:     "1 hour exactly",
			duration: time.Hour,
			want:     "1h",
		},
		{
			name:     "1 hour 30 minutes",
			duration: time.Hour + 30*time.Minute,
			want:     "1h30m",
		},
		{
			name:     "23 hours 59 minutes",
			duration: 23*time.Hour + 59*time.Minute,
			want:     "23h59m",
		},

		// Days
		{
			name:     "24 hours exactly",
			duration: 24 * time.Hour,
			want:     "1d",
		},
		{
			name:     "36 hours",
			duration: 36 * time.Hour,
			want:     "1d12h",
		},
		{
			name:     "7 days exactly",
			duration: 7 * 24 * time.Hour,
			want:     "7d",
		},

		// Sub-second remainders truncate
		{
			name:     "30.5 seconds shows 30s",
			duration: 30*time.Second + 500*time.Millisecond,
			want:     "30s",
		},
		{
			name:     "1 minute 30.999 seconds shows 1m30s",
			duration: time.Minute + 30*time.Second + 999*time.Millisecond,
			want:     "1m30s",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := formatDuration(tc.duration)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormatWhen(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "never", formatWhen(time.Time{}))

	stamp := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	assert.Contains(t, formatWhen(stamp), "2026-03-14")
}

func TestFormatExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	noHorizon := session.ManagedSession{}
	assert.Equal(t, "never", formatExpiry(&noHorizon, now))

	past := now.Add(-time.Minute)
	expired := session.ManagedSession{ExpiresAt: &past}
	assert.Equal(t, "expired", formatExpiry(&expired, now))

	future := now.Add(30 * time.Minute)
	pending := session.ManagedSession{ExpiresAt: &future}
	assert.Equal(t, "in 30m", formatExpiry(&pending, now))
}

func TestSessionPayload(t *testing.T) {
	t.Parallel()

	ms := testSession("topic-1", "0xABc1", session.StateActive)
	view := sessionPayload(ms)

	assert.Equal(t, ms.Topic, view.Topic)
	assert.Equal(t, ms.WalletID, view.WalletID)
	assert.Equal(t, ms.Kind, view.Kind)
	assert.Equal(t, ms.State, view.State)
	assert.Nil(t, view.LastValidatedAt)

	ms.LastValidatedAt = time.Now()
	view = sessionPayload(ms)
	require.NotNil(t, view.LastValidatedAt)
	assert.Equal(t, ms.LastValidatedAt, *view.LastValidatedAt)
}

func TestDisplaySessionText(t *testing.T) {
	t.Parallel()

	ms := testSession("topic-1", "0x8ba1f109551bd432803012645ac136ddd64dba72", session.StateActive)

	var buf bytes.Buffer
	displaySessionText(&buf, ms)

	got := buf.String()
	assert.Contains(t, got, "Wallet:")
	assert.Contains(t, got, ms.WalletID)
	assert.Contains(t, got, "Chain:")
	assert.Contains(t, got, "eip155:1")
	assert.Contains(t, got, "active")
	assert.Contains(t, got, "Peer:")
	assert.Contains(t, got, "Topic:")
	assert.Contains(t, got, "topic-1")
}

func TestResolveSession(t *testing.T) {
	t.Parallel()

	svc := newMockSessionService()
	svc.sessions = []session.ManagedSession{
		testSession("topic-1", "0xAAA1", session.StateActive),
		testSession("topic-2", "0xBBB2", session.StateInactive),
	}

	byID, err := resolveSession(svc, "reown_0xbbb2")
	require.NoError(t, err)
	assert.Equal(t, "topic-2", byID.Topic)

	byTopic, err := resolveSession(svc, "topic-1")
	require.NoError(t, err)
	assert.Equal(t, "reown_0xaaa1", byTopic.WalletID)

	_, err = resolveSession(svc, "nope")
	require.Error(t, err)
	assert.True(t, moorerr.Is(err, moorerr.ErrSessionNotFound))
}

func TestRunSessionsList_Empty_Text(t *testing.T) {
	svc := newMockSessionService()
	cmd, stdout, _ := newCLITestCmd(svc, output.FormatText)

	err := runSessionsList(cmd, nil)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "No sessions.")
	assert.Contains(t, stdout.String(), "mooring connect")
}

func TestRunSessionsList_Empty_JSON(t *testing.T) {
	svc := newMockSessionService()
	cmd, stdout, _ := newCLITestCmd(svc, output.FormatJSON)

	err := runSessionsList(cmd, nil)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "[]")
}

func TestRunSessionsList_WithSessions_Text(t *testing.T) {
	svc := newMockSessionService()
	svc.sessions = []session.ManagedSession{
		testSession("topic-1", "0xAAA1", session.StateActive),
		testSession("topic-2", "0xBBB2", session.StateStale),
	}
	cmd, stdout, _ := newCLITestCmd(svc, output.FormatText)

	err := runSessionsList(cmd, nil)
	require.NoError(t, err)

	got := stdout.String()
	assert.Contains(t, got, "WALLET ID")
	assert.Contains(t, got, "reown_0xaaa1")
	assert.Contains(t, got, "reown_0xbbb2")
	assert.Contains(t, got, "stale")
}

func TestRunSessionsList_WithSessions_JSON(t *testing.T) {
	svc := newMockSessionService()
	svc.sessions = []session.ManagedSession{
		testSession("topic-1", "0xAAA1", session.StateActive),
	}
	cmd, stdout, _ := newCLITestCmd(svc, output.FormatJSON)

	err := runSessionsList(cmd, nil)
	require.NoError(t, err)

	got := stdout.String()
	assert.Contains(t, got, `"walletId": "reown_0xaaa1"`)
	assert.Contains(t, got, `"topic": "topic-1"`)
	assert.Contains(t, got, `"state": "active"`)
}

func TestRunSessionsShow_ByWalletID(t *testing.T) {
	svc := newMockSessionService()
	svc.sessions = []session.ManagedSession{
		testSession("topic-1", "0xAAA1", session.StateInactive),
	}
	cmd, stdout, _ := newCLITestCmd(svc, output.FormatText)

	err := runSessionsShow(cmd, []string{"reown_0xaaa1"})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "reown_0xaaa1")
	assert.Contains(t, stdout.String(), "inactive")
}

func TestRunSessionsShow_ByTopic_JSON(t *testing.T) {
	svc := newMockSessionService()
	svc.sessions = []session.ManagedSession{
		testSession("topic-1", "0xAAA1", session.StateInactive),
	}
	cmd, stdout, _ := newCLITestCmd(svc, output.FormatJSON)

	err := runSessionsShow(cmd, []string{"topic-1"})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), `"topic": "topic-1"`)
}

func TestRunSessionsShow_NotFound(t *testing.T) {
	svc := newMockSessionService()
	cmd, _, _ := newCLITestCmd(svc, output.FormatText)

	err := runSessionsShow(cmd, []string{"missing"})
	require.Error(t, err)
	assert.True(t, moorerr.Is(err, moorerr.ErrSessionNotFound))
}

func TestRunSessionsActivate_Success(t *testing.T) {
	svc := newMockSessionService()
	svc.sessions = []session.ManagedSession{
		testSession("topic-1", "0xAAA1", session.StateInactive),
	}
	cmd, stdout, _ := newCLITestCmd(svc, output.FormatText)

	err := runSessionsActivate(cmd, []string{"reown_0xaaa1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"topic-1"}, svc.activated)
	assert.Contains(t, stdout.String(), "Activated reown_0xaaa1.")
}

func TestRunSessionsActivate_ServiceError(t *testing.T) {
	svc := newMockSessionService()
	svc.sessions = []session.ManagedSession{
		testSession("topic-1", "0xAAA1", session.StateStale),
	}
	svc.activateErr = moorerr.ErrSessionStale
	cmd, _, _ := newCLITestCmd(svc, output.FormatText)

	err := runSessionsActivate(cmd, []string{"topic-1"})
	require.Error(t, err)
	assert.True(t, moorerr.Is(err, moorerr.ErrSessionStale))
}

func TestRunSessionsRemove_Text(t *testing.T) {
	svc := newMockSessionService()
	svc.sessions = []session.ManagedSession{
		testSession("topic-1", "0xAAA1", session.StateExpired),
	}
	cmd, stdout, _ := newCLITestCmd(svc, output.FormatText)

	err := runSessionsRemove(cmd, []string{"reown_0xaaa1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"topic-1"}, svc.removed)
	assert.Contains(t, stdout.String(), "Removed reown_0xaaa1.")
}

func TestRunSessionsRemove_JSON(t *testing.T) {
	svc := newMockSessionService()
	svc.sessions = []session.ManagedSession{
		testSession("topic-1", "0xAAA1", session.StateExpired),
	}
	cmd, stdout, _ := newCLITestCmd(svc, output.FormatJSON)

	err := runSessionsRemove(cmd, []string{"topic-1"})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), `"status": "removed"`)
	assert.Contains(t, stdout.String(), `"walletId": "reown_0xaaa1"`)
}

func TestRunSessionsCleanup_Text(t *testing.T) {
	svc := newMockSessionService()
	svc.cleanupCount = 3
	cmd, stdout, _ := newCLITestCmd(svc, output.FormatText)

	err := runSessionsCleanup(cmd, nil)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Removed 3 expired session(s).")
}

func TestRunSessionsCleanup_JSON(t *testing.T) {
	svc := newMockSessionService()
	svc.cleanupCount = 1
	cmd, stdout, _ := newCLITestCmd(svc, output.FormatJSON)

	err := runSessionsCleanup(cmd, nil)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), `"removed": 1`)
}
