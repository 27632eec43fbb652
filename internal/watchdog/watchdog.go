// Package watchdog runs the supervisory loop that keeps the session
// registry honest: it periodically reconciles registered sessions
// against the transport's live topic set, gives every stale session one
// automatic reconnect attempt, and removes expired sessions. Sessions
// that stay stale after their attempt are surfaced for manual
// reconnection, never deleted.
package watchdog

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/akodra/mooring/internal/session"
	"github.com/akodra/mooring/internal/telemetry"
	"github.com/akodra/mooring/internal/wallet"
	moorerr "github.com/akodra/mooring/pkg/errors"
)

// Trigger identifies what caused a sweep.
type Trigger string

// Sweep triggers, in rough order of urgency. Tick is the periodic
// schedule; the rest arrive out of band through Notify or a direct
// Sweep call.
const (
	TriggerStart        Trigger = "start"
	TriggerTick         Trigger = "tick"
	TriggerForeground   Trigger = "foreground"
	TriggerConnectivity Trigger = "connectivity"
	TriggerManual       Trigger = "manual"
)

// Orchestrator is the connect-service surface the watchdog drives.
// Reconnect carries the breaker-gated retry schedule, so the watchdog
// issues exactly one call per stale session and lets the orchestrator
// decide how hard to push.
type Orchestrator interface {
	LiveTopics(ctx context.Context) (map[string]struct{}, error)
	Reconnect(ctx context.Context, kind wallet.Kind, topic string) error
	Cleanup() int
}

// Config controls sweep scheduling.
type Config struct {
	// Interval is the periodic sweep cadence.
	Interval time.Duration

	// ReconnectTimeout bounds each per-session reconnect attempt.
	// Zero disables the per-attempt bound and leaves only the sweep
	// context's deadline.
	ReconnectTimeout time.Duration

	// SweepOnStart runs one sweep before the ticker starts, so a
	// process that was suspended catches up immediately.
	SweepOnStart bool
}

// DefaultConfig returns the standard watchdog schedule.
func DefaultConfig() Config {
	return Config{
		Interval:         30 * time.Second,
		ReconnectTimeout: 30 * time.Second,
		SweepOnStart:     true,
	}
}

// Validate checks the configuration for usability.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return moorerr.Wrap(moorerr.ErrInvalidInput, "watchdog interval must be positive")
	}
	if c.ReconnectTimeout < 0 {
		return moorerr.Wrap(moorerr.ErrInvalidInput, "reconnect timeout cannot be negative")
	}
	return nil
}

// SweepReport summarizes one reconciliation pass.
type SweepReport struct {
	Trigger     Trigger       `json:"trigger"`
	StartedAt   time.Time     `json:"startedAt"`
	Duration    time.Duration `json:"duration"`
	Live        int           `json:"live"`
	Checked     int           `json:"checked"`
	MarkedStale int           `json:"markedStale"`

	// Reconnected lists topics whose automatic attempt restored them.
	Reconnected []string `json:"reconnected,omitempty"`

	// NeedsManualReconnect lists topics still stale after their
	// attempt. They stay in the registry until the user reconnects or
	// removes them.
	NeedsManualReconnect []string `json:"needsManualReconnect,omitempty"`

	// Removed counts expired sessions deleted at the end of the pass.
	Removed int `json:"removed"`
}

// Watchdog owns the sweep loop. Sweeps serialize: the loop runs them one
// at a time, and triggers arriving mid-sweep coalesce into a single
// follow-up.
type Watchdog struct {
	cfg       Config
	orch      Orchestrator
	registry  *session.Registry
	snapshots *session.SnapshotStore
	rec       *telemetry.Recorder
	log       zerolog.Logger
	now       func() time.Time

	sweepMu  sync.Mutex
	triggers chan Trigger
}

// New builds a watchdog over the given orchestrator and registry. The
// snapshot store and recorder may be nil.
func New(cfg Config, orch Orchestrator, registry *session.Registry, snapshots *session.SnapshotStore, rec *telemetry.Recorder, log zerolog.Logger) (*Watchdog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if orch == nil {
		return nil, moorerr.Wrap(moorerr.ErrInvalidInput, "watchdog requires an orchestrator")
	}
	if registry == nil {
		return nil, moorerr.Wrap(moorerr.ErrInvalidInput, "watchdog requires a session registry")
	}

	return &Watchdog{
		cfg:       cfg,
		orch:      orch,
		registry:  registry,
		snapshots: snapshots,
		rec:       rec,
		log:       log.With().Str("component", "watchdog").Logger(),
		now:       time.Now,
		triggers:  make(chan Trigger, 1),
	}, nil
}

// Notify requests an out-of-band sweep, typically on an app-foreground
// or connectivity-change signal. Never blocks: when a sweep is already
// pending the trigger coalesces into it.
func (w *Watchdog) Notify(trigger Trigger) {
	select {
	case w.triggers <- trigger:
	default:
		w.log.Debug().Str("trigger", string(trigger)).Msg("sweep already pending, trigger coalesced")
	}
}

// Run sweeps on the configured interval until ctx is canceled, returning
// the context's error. Out-of-band triggers interleave with the ticker.
func (w *Watchdog) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.cfg.Interval).Msg("watchdog started")

	if w.cfg.SweepOnStart {
		_, _ = w.Sweep(ctx, TriggerStart)
	}

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("watchdog stopped")
			return ctx.Err()
		case <-ticker.C:
			_, _ = w.Sweep(ctx, TriggerTick)
		case trigger := <-w.triggers:
			_, _ = w.Sweep(ctx, trigger)
		}
	}
}

// Sweep runs one reconciliation pass: gather the live topic set, mark
// missing sessions stale, validate every non-expired session, give each
// stale session exactly one reconnect attempt, then remove expired
// sessions. Still-stale sessions land in the report's
// NeedsManualReconnect list. Safe to call concurrently with Run; passes
// serialize on an internal lock.
func (w *Watchdog) Sweep(ctx context.Context, trigger Trigger) (SweepReport, error) {
	w.sweepMu.Lock()
	defer w.sweepMu.Unlock()

	started := w.now()
	report := SweepReport{Trigger: trigger, StartedAt: started}
	log := w.log.With().Str("trigger", string(trigger)).Logger()
	w.rec.WatchdogSweep()

	live, err := w.orch.LiveTopics(ctx)
	if err != nil {
		// An unavailable live set reads as "every topic offline".
		// Marking against it would stale healthy sessions, so the
		// pass is skipped instead.
		report.Duration = w.now().Sub(started)
		log.Error().Err(err).Msg("live topic query failed, skipping sweep")
		return report, err
	}
	report.Live = len(live)

	report.MarkedStale = w.registry.MarkStaleFromLiveSet(live)

	for _, ms := range w.registry.List() {
		if ms.State == session.StateExpired {
			continue
		}
		w.registry.Validate(ms.Topic, live)
		report.Checked++
	}

	for _, ms := range w.registry.ListByState(session.StateStale) {
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Msg("sweep interrupted")
			break
		}
		if w.reconnect(ctx, ms, live) {
			report.Reconnected = append(report.Reconnected, ms.Topic)
		}
	}

	for _, ms := range w.registry.ListByState(session.StateStale) {
		report.NeedsManualReconnect = append(report.NeedsManualReconnect, ms.Topic)
	}

	report.Removed = w.orch.Cleanup()
	w.persist()
	report.Duration = w.now().Sub(started)

	log.Info().
		Int("live", report.Live).
		Int("checked", report.Checked).
		Int("marked_stale", report.MarkedStale).
		Int("reconnected", len(report.Reconnected)).
		Int("needs_manual", len(report.NeedsManualReconnect)).
		Int("removed", report.Removed).
		Dur("duration", report.Duration).
		Msg("sweep complete")
	return report, nil
}

// reconnect gives one stale session its single automatic recovery
// attempt and revalidates on success. Returns true when the session came
// back valid.
func (w *Watchdog) reconnect(ctx context.Context, ms session.ManagedSession, live map[string]struct{}) bool {
	rctx := ctx
	if w.cfg.ReconnectTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, w.cfg.ReconnectTimeout)
		defer cancel()
	}

	err := w.orch.Reconnect(rctx, ms.Kind, ms.Topic)
	w.rec.WatchdogReconnect(outcomeForError(err))
	if err != nil {
		w.log.Warn().
			Str("kind", ms.Kind.String()).
			Str("topic", ms.Topic).
			Err(err).
			Msg("automatic reconnect failed, session needs manual reconnect")
		return false
	}

	// Transport presence is restored for this topic; fold it into the
	// live set so revalidation sees it.
	live[ms.Topic] = struct{}{}
	outcome := w.registry.Validate(ms.Topic, live)
	if outcome.Result != session.ValidationValid {
		w.log.Warn().
			Str("topic", ms.Topic).
			Str("result", string(outcome.Result)).
			Msg("session still invalid after reconnect")
		return false
	}

	w.log.Info().Str("kind", ms.Kind.String()).Str("topic", ms.Topic).Msg("stale session reconnected")
	return true
}

func (w *Watchdog) persist() {
	if w.snapshots == nil {
		return
	}
	if err := w.snapshots.SaveRegistry(w.registry); err != nil {
		w.log.Error().Err(err).Msg("saving session snapshot")
	}
}

func outcomeForError(err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeSuccess
	case moorerr.Is(err, moorerr.ErrCircuitOpen):
		return telemetry.OutcomeCircuitOpen
	case moorerr.Is(err, context.Canceled), moorerr.Is(err, context.DeadlineExceeded):
		return telemetry.OutcomeCanceled
	default:
		return telemetry.OutcomeFailure
	}
}
