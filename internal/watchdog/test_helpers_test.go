package watchdog_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/akodra/mooring/internal/connect"
	"github.com/akodra/mooring/internal/cryptobox"
	"github.com/akodra/mooring/internal/resilience"
	"github.com/akodra/mooring/internal/securestore"
	"github.com/akodra/mooring/internal/session"
	"github.com/akodra/mooring/internal/wallet"
	"github.com/akodra/mooring/internal/watchdog"
)

const sweepTimeout = 5 * time.Second

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// fastBackoff keeps retry suspensions down in the millisecond range.
func fastBackoff() resilience.BackoffConfig {
	return resilience.BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		JitterFactor: 0,
		MaxRetries:   3,
	}
}

// fastWatchdog schedules aggressively so loop tests finish quickly.
// SweepOnStart is off; tests opt in where the start sweep matters.
func fastWatchdog() watchdog.Config {
	return watchdog.Config{
		Interval:         10 * time.Millisecond,
		ReconnectTimeout: time.Second,
		SweepOnStart:     false,
	}
}

// harness wires a watchdog over a real connect service with a single
// loopback adapter, so sweeps exercise the full reconnect path.
type harness struct {
	registry  *session.Registry
	snapshots *session.SnapshotStore
	svc       *connect.Service
	loop      *connect.Loopback
	wd        *watchdog.Watchdog
}

func newHarness(t *testing.T, cfg connect.LoopbackConfig, wcfg watchdog.Config) *harness {
	t.Helper()

	log := testLogger()
	oracle := cryptobox.NewPool(0, log)
	t.Cleanup(func() { _ = oracle.Close() })

	if cfg.Backoff == (resilience.BackoffConfig{}) {
		cfg.Backoff = fastBackoff()
	}
	loop, err := connect.NewLoopback(wallet.KindReown, cfg, oracle, log)
	require.NoError(t, err)

	factory := connect.NewConfigurableFactory()
	factory.Register(wallet.KindReown, func(wallet.Kind) (connect.Adapter, error) {
		return loop, nil
	})

	svcCfg := connect.DefaultServiceConfig()
	svcCfg.Backoff = fastBackoff()
	svcCfg.AttemptsPerMinute = 6000
	svcCfg.AttemptBurst = 100

	registry := session.NewRegistry(log)
	snapshots := session.NewSnapshotStore(securestore.NewMemoryStore(), log)
	svc := connect.NewService(svcCfg, factory, registry, snapshots, nil, log)
	t.Cleanup(func() { _ = svc.Close() })

	wd, err := watchdog.New(wcfg, svc, registry, snapshots, nil, log)
	require.NoError(t, err)

	return &harness{
		registry:  registry,
		snapshots: snapshots,
		svc:       svc,
		loop:      loop,
		wd:        wd,
	}
}

// connect establishes one loopback session and returns it.
func (h *harness) connect(t *testing.T) session.ManagedSession {
	t.Helper()

	ms, err := h.svc.Connect(context.Background(), wallet.KindReown, wallet.EVMChain(1))
	require.NoError(t, err)
	return ms
}

// stubOrchestrator scripts the service surface so sweeps can be observed
// call by call. A real registry backs Cleanup when one is attached.
type stubOrchestrator struct {
	mu             sync.Mutex
	live           map[string]struct{}
	liveErr        error
	liveCalls      int
	liveDelay      time.Duration
	inFlight       int
	overlapped     bool
	reconnectErr   error
	reconnectCalls []string
	cleanupCalls   int
	registry       *session.Registry

	// sweeps receives one token per sweep that reached the live query.
	sweeps chan struct{}
}

func newStubOrchestrator(registry *session.Registry) *stubOrchestrator {
	return &stubOrchestrator{
		live:     make(map[string]struct{}),
		registry: registry,
		sweeps:   make(chan struct{}, 64),
	}
}

func (s *stubOrchestrator) LiveTopics(_ context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	s.liveCalls++
	s.inFlight++
	if s.inFlight > 1 {
		s.overlapped = true
	}
	delay := s.liveDelay
	failure := s.liveErr
	live := make(map[string]struct{}, len(s.live))
	for topic := range s.live {
		live[topic] = struct{}{}
	}
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()

	select {
	case s.sweeps <- struct{}{}:
	default:
	}

	if failure != nil {
		return nil, failure
	}
	return live, nil
}

func (s *stubOrchestrator) Reconnect(_ context.Context, _ wallet.Kind, topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reconnectCalls = append(s.reconnectCalls, topic)
	if s.reconnectErr != nil {
		return s.reconnectErr
	}
	s.live[topic] = struct{}{}
	return nil
}

func (s *stubOrchestrator) Cleanup() int {
	s.mu.Lock()
	s.cleanupCalls++
	reg := s.registry
	s.mu.Unlock()

	if reg == nil {
		return 0
	}
	reg.ExpireOverdue()
	return reg.CleanupExpired()
}

func (s *stubOrchestrator) reconnects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.reconnectCalls...)
}

func (s *stubOrchestrator) cleanups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanupCalls
}

func (s *stubOrchestrator) sawOverlap() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlapped
}

// waitSweep blocks until the stub observes another sweep.
func waitSweep(t *testing.T, stub *stubOrchestrator) {
	t.Helper()

	select {
	case <-stub.sweeps:
	case <-time.After(sweepTimeout):
		t.Fatal("timed out waiting for a sweep")
	}
}

// seedSession registers a session directly, bypassing the connect flow.
func seedSession(t *testing.T, reg *session.Registry, topic, address string, state session.State, expiresAt *time.Time) session.ManagedSession {
	t.Helper()

	id, err := wallet.DeriveID(wallet.KindReown, address)
	require.NoError(t, err)

	ms := session.ManagedSession{
		Topic:       topic,
		WalletID:    id,
		Kind:        wallet.KindReown,
		Address:     address,
		State:       state,
		Chain:       wallet.EVMChain(1),
		ConnectedAt: time.Now(),
		ExpiresAt:   expiresAt,
	}
	reg.Register(ms)
	return ms
}
