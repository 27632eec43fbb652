package cli

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/akodra/mooring/internal/config"
	"github.com/akodra/mooring/internal/connect"
	"github.com/akodra/mooring/internal/cryptobox"
	"github.com/akodra/mooring/internal/resilience"
	"github.com/akodra/mooring/internal/securestore"
	"github.com/akodra/mooring/internal/session"
	"github.com/akodra/mooring/internal/telemetry"
	"github.com/akodra/mooring/internal/wallet"
	moorerr "github.com/akodra/mooring/pkg/errors"
)

// sessionEnv is the wired session stack for one command run: secure store,
// snapshot store, registry seeded from the last snapshot, and the connect
// service on top. Close tears the stack down in reverse order.
type sessionEnv struct {
	Svc       SessionService
	Registry  *session.Registry
	Snapshots *session.SnapshotStore
	Store     securestore.Store

	// Rec is the metrics recorder shared by the service and the watchdog.
	// Nil when telemetry is disabled; every Recorder method is nil-safe.
	Rec *telemetry.Recorder

	oracle *cryptobox.Pool
	owned  bool
}

// Close releases everything the env opened. A no-op for injected envs.
func (e *sessionEnv) Close() {
	if !e.owned {
		return
	}
	if e.Svc != nil {
		_ = e.Svc.Close()
	}
	if e.oracle != nil {
		_ = e.oracle.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// openSessionEnv returns the session stack for the command. When the command
// context already carries a service the injected pieces are used as they are;
// otherwise the stack is built from configuration and owned by the returned
// env, which the caller must Close.
func openSessionEnv(cc *CommandContext) (*sessionEnv, error) {
	if cc.Svc != nil {
		return &sessionEnv{
			Svc:       cc.Svc,
			Registry:  cc.Registry,
			Snapshots: cc.Snapshots,
			Store:     cc.Store,
		}, nil
	}

	cfg, log := cc.Cfg, cc.Log

	store, err := securestore.New(securestore.Options{
		Backend:    cfg.Storage.Backend,
		Dir:        cfg.StorePath(),
		Encrypt:    cfg.Storage.Encrypt,
		Passphrase: storePassphraseFn,
	}, log)
	if err != nil {
		return nil, err
	}

	snapshots := session.NewSnapshotStore(store, log)
	registry := session.NewRegistry(log)

	st, err := snapshots.Load()
	if err != nil {
		// Load already produced an empty state; starting without history
		// beats refusing to start.
		log.Warn().Err(err).Msg("starting with an empty session registry")
	}
	if n := registry.Seed(st); n > 0 {
		log.Debug().Int("sessions", n).Msg("registry seeded from snapshot")
	}

	workers := 0
	if cfg.Crypto.Offload {
		workers = cfg.Crypto.Workers
	}
	oracle := cryptobox.NewPool(workers, log)

	factory, err := buildFactory(cfg, oracle, log)
	if err != nil {
		_ = oracle.Close()
		_ = store.Close()
		return nil, err
	}

	var rec *telemetry.Recorder
	if cfg.Telemetry.Enabled {
		rec = telemetry.NewRecorder()
	}

	svc := connect.NewService(serviceConfig(cfg), factory, registry, snapshots, rec, log)

	cc.Svc = svc
	cc.Registry = registry
	cc.Snapshots = snapshots
	cc.Store = store

	return &sessionEnv{
		Svc:       svc,
		Registry:  registry,
		Snapshots: snapshots,
		Store:     store,
		Rec:       rec,
		oracle:    oracle,
		owned:     true,
	}, nil
}

// buildFactory wires the configured transport into an adapter factory
// covering every wallet kind.
func buildFactory(cfg *config.Config, oracle *cryptobox.Pool, log zerolog.Logger) (connect.Factory, error) {
	switch cfg.Connect.Transport {
	case "", "loopback":
		lcfg := connect.LoopbackConfig{
			FailFirst:  cfg.Connect.LoopbackFailures,
			SessionTTL: time.Duration(cfg.Connect.LoopbackTTLMinutes) * time.Minute,
			Backoff:    backoffConfig(cfg),
		}
		factory := connect.NewConfigurableFactory()
		for _, kind := range wallet.Kinds() {
			factory.Register(kind, func(k wallet.Kind) (connect.Adapter, error) {
				return connect.NewLoopback(k, lcfg, oracle, log)
			})
		}
		return factory, nil
	default:
		return nil, moorerr.WithSuggestion(
			moorerr.Wrap(moorerr.ErrConfigInvalid, "unknown transport %q", cfg.Connect.Transport),
			"set connect.transport to loopback",
		)
	}
}

// serviceConfig maps the file configuration onto the orchestrator's knobs.
func serviceConfig(cfg *config.Config) connect.ServiceConfig {
	return connect.ServiceConfig{
		Backoff: backoffConfig(cfg),
		Circuit: resilience.CircuitConfig{
			FailureThreshold:         cfg.Resilience.Circuit.FailureThreshold,
			ResetTimeout:             cfg.CircuitResetTimeout(),
			HalfOpenSuccessThreshold: cfg.Resilience.Circuit.HalfOpenSuccesses,
		},
		AttemptsPerMinute: float64(cfg.Connect.AttemptsPerMinute),
		AttemptBurst:      cfg.Connect.AttemptBurst,
	}
}

func backoffConfig(cfg *config.Config) resilience.BackoffConfig {
	return resilience.BackoffConfig{
		InitialDelay: cfg.BackoffInitialDelay(),
		MaxDelay:     cfg.BackoffMaxDelay(),
		Multiplier:   cfg.Resilience.Backoff.Multiplier,
		JitterFactor: cfg.Resilience.Backoff.JitterFactor,
		MaxRetries:   cfg.Resilience.Backoff.MaxRetries,
	}
}
