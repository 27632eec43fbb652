package connect_test

import (
	"context"
	"net/url"
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
	moorerr "github.com/akodra/mooring/pkg/errors"
)

const eventTimeout = 5 * time.Second

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

// harness wires a service over loopback adapters with a memory-backed
// snapshot store.
type harness struct {
	registry  *session.Registry
	snapshots *session.SnapshotStore
	svc       *connect.Service
	loops     map[wallet.Kind]*connect.Loopback
}

// newHarness builds the harness with one loopback per configured kind.
// Mutators adjust the service configuration before construction.
func newHarness(t *testing.T, cfgs map[wallet.Kind]connect.LoopbackConfig, mutators ...func(*connect.ServiceConfig)) *harness {
	t.Helper()

	log := testLogger()
	oracle := cryptobox.NewPool(0, log)
	t.Cleanup(func() { _ = oracle.Close() })

	factory := connect.NewConfigurableFactory()
	loops := make(map[wallet.Kind]*connect.Loopback, len(cfgs))
	for kind, cfg := range cfgs {
		if cfg.Backoff == (resilience.BackoffConfig{}) {
			cfg.Backoff = fastBackoff()
		}
		loop, err := connect.NewLoopback(kind, cfg, oracle, log)
		require.NoError(t, err)
		loops[kind] = loop
		factory.Register(kind, func(wallet.Kind) (connect.Adapter, error) {
			return loop, nil
		})
	}

	svcCfg := connect.DefaultServiceConfig()
	svcCfg.Backoff = fastBackoff()
	svcCfg.AttemptsPerMinute = 6000
	svcCfg.AttemptBurst = 100
	for _, mutate := range mutators {
		mutate(&svcCfg)
	}

	registry := session.NewRegistry(log)
	snapshots := session.NewSnapshotStore(securestore.NewMemoryStore(), log)
	svc := connect.NewService(svcCfg, factory, registry, snapshots, nil, log)
	t.Cleanup(func() { _ = svc.Close() })

	return &harness{
		registry:  registry,
		snapshots: snapshots,
		svc:       svc,
		loops:     loops,
	}
}

// collectUntil drains events until one of the wanted type arrives,
// returning everything seen up to and including it.
func collectUntil(t *testing.T, events <-chan connect.StatusEvent, want connect.StatusType) []connect.StatusEvent {
	t.Helper()

	var seen []connect.StatusEvent
	deadline := time.After(eventTimeout)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				t.Fatalf("event stream closed while waiting for %q (saw %v)", want, types(seen))
			}
			seen = append(seen, event)
			if event.Type == want {
				return seen
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q (saw %v)", want, types(seen))
		}
	}
}

func types(events []connect.StatusEvent) []connect.StatusType {
	out := make([]connect.StatusType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

// stubAdapter is a minimal Adapter without reconnect support.
type stubAdapter struct {
	kind   wallet.Kind
	events chan connect.StatusEvent
}

func newStubAdapter(kind wallet.Kind) *stubAdapter {
	return &stubAdapter{kind: kind, events: make(chan connect.StatusEvent)}
}

func (a *stubAdapter) Kind() wallet.Kind { return a.kind }

func (a *stubAdapter) Connect(context.Context, connect.ConnectParams) error {
	return moorerr.Wrap(moorerr.ErrConnectionFailed, "stub adapter cannot connect")
}

func (a *stubAdapter) Disconnect(context.Context) error { return nil }

func (a *stubAdapter) LiveTopics(context.Context) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (a *stubAdapter) Events() <-chan connect.StatusEvent { return a.events }

func (a *stubAdapter) HandleCallback(context.Context, url.Values) (connect.CallbackResult, error) {
	return connect.CallbackResult{}, moorerr.Wrap(moorerr.ErrInvalidInput, "stub adapter has no callbacks")
}

func (a *stubAdapter) Close() error {
	close(a.events)
	return nil
}
