package connect

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/akodra/mooring/internal/resilience"
	"github.com/akodra/mooring/internal/session"
	"github.com/akodra/mooring/internal/telemetry"
	"github.com/akodra/mooring/internal/wallet"
	moorerr "github.com/akodra/mooring/pkg/errors"
)

// Service errors.
var (
	// ErrServiceClosed indicates the service has been shut down.
	ErrServiceClosed = &moorerr.MooringError{
		Code:     "SERVICE_CLOSED",
		Message:  "connection service is closed",
		ExitCode: moorerr.ExitGeneral,
	}
)

// observerBuffer is the per-subscriber event queue depth. A subscriber
// that falls further behind loses events rather than stalling the
// connection path.
const observerBuffer = 16

// ServiceConfig holds the orchestration knobs.
type ServiceConfig struct {
	Backoff           resilience.BackoffConfig
	Circuit           resilience.CircuitConfig
	AttemptsPerMinute float64
	AttemptBurst      int
}

// DefaultServiceConfig returns the production defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Backoff:           resilience.DefaultBackoffConfig(),
		Circuit:           resilience.DefaultCircuitConfig(),
		AttemptsPerMinute: 12,
		AttemptBurst:      3,
	}
}

// Reconnector is implemented by adapters that can re-establish a known
// topic without a fresh pairing. The watchdog reconnect path requires it.
type Reconnector interface {
	Reconnect(ctx context.Context, topic string) error
}

// adapterEntry pairs an adapter with the bridge of its in-flight attempt.
type adapterEntry struct {
	adapter Adapter

	mu     sync.Mutex
	bridge *bridge
}

// arm installs the bridge for a starting attempt. Returns false when
// another attempt is already in flight.
func (e *adapterEntry) arm(br *bridge) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bridge != nil {
		return false
	}
	e.bridge = br
	return true
}

func (e *adapterEntry) disarm() {
	e.mu.Lock()
	e.bridge = nil
	e.mu.Unlock()
}

func (e *adapterEntry) armed() *bridge {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bridge
}

// Service drives wallet connections over the registry. It owns one
// adapter per kind, created lazily, and keeps per-kind circuit breakers
// and rate limits so one misbehaving wallet kind cannot poison the rest.
type Service struct {
	cfg       ServiceConfig
	factory   Factory
	registry  *session.Registry
	snapshots *session.SnapshotStore
	rec       *telemetry.Recorder
	limiter   *RateLimiter
	log       zerolog.Logger
	now       func() time.Time

	mu          sync.Mutex
	adapters    map[wallet.Kind]*adapterEntry
	breakers    map[wallet.Kind]*resilience.CircuitBreaker
	lastBreaker map[wallet.Kind]resilience.CircuitState
	closed      bool

	obsMu     sync.Mutex
	observers []chan StatusEvent
	obsClosed bool

	pumps sync.WaitGroup
}

// NewService wires the orchestrator. The snapshot store may be nil, in
// which case nothing persists; the recorder may be nil to disable
// telemetry.
func NewService(
	cfg ServiceConfig,
	factory Factory,
	registry *session.Registry,
	snapshots *session.SnapshotStore,
	rec *telemetry.Recorder,
	log zerolog.Logger,
) *Service {
	s := &Service{
		cfg:         cfg,
		factory:     factory,
		registry:    registry,
		snapshots:   snapshots,
		rec:         rec,
		limiter:     NewRateLimiter(cfg.AttemptsPerMinute, cfg.AttemptBurst),
		log:         log.With().Str("component", "connect").Logger(),
		now:         time.Now,
		adapters:    make(map[wallet.Kind]*adapterEntry),
		breakers:    make(map[wallet.Kind]*resilience.CircuitBreaker),
		lastBreaker: make(map[wallet.Kind]resilience.CircuitState),
	}
	registry.SetTransitionObserver(func(from, to session.State) {
		rec.SessionTransition(from.String(), to.String())
	})
	return s
}

// Connect establishes a session for kind on chain. The attempt runs with
// no internal deadline; callers bound it with ctx or cancel it through
// Disconnect. An established session for another wallet is disconnected
// first.
func (s *Service) Connect(ctx context.Context, kind wallet.Kind, chain wallet.ChainRef) (session.ManagedSession, error) {
	var zero session.ManagedSession

	if !kind.IsValid() {
		return zero, moorerr.WithDetails(moorerr.ErrUnknownKind, map[string]string{"kind": kind.String()})
	}
	if err := chain.Validate(kind); err != nil {
		return zero, err
	}
	if s.isClosed() {
		return zero, ErrServiceClosed
	}

	if err := s.limiter.Wait(ctx, kind); err != nil {
		return zero, moorerr.Wrap(err, "waiting for connect rate limit")
	}

	if _, ok := s.registry.ActiveSession(); ok {
		if err := s.disconnect(ctx, "superseded by new connect"); err != nil {
			s.log.Warn().Err(err).Msg("disconnecting previous session before connect")
		}
	}

	entry, err := s.entryFor(kind)
	if err != nil {
		return zero, err
	}
	breaker, err := s.breakerFor(kind)
	if err != nil {
		return zero, err
	}

	attemptID := uuid.NewString()
	log := s.log.With().Str("kind", kind.String()).Str("attempt_id", attemptID).Logger()
	log.Info().Str("chain", chain.String()).Msg("starting connect attempt")

	start := s.now()
	result, err := resilience.Execute(ctx, breaker, func(ctx context.Context) (session.ManagedSession, error) {
		return s.attempt(ctx, entry, kind, chain, attemptID)
	})
	s.noteBreakerState(kind, breaker)
	s.rec.ConnectAttempt(kind.String(), outcomeForError(err), s.now().Sub(start))

	if err != nil {
		log.Warn().Err(err).Msg("connect attempt failed")
		return zero, err
	}
	log.Info().Str("topic", result.Topic).Str("wallet_id", result.WalletID).Msg("wallet connected")
	return result, nil
}

// attempt runs one adapter-level connect under an armed bridge.
func (s *Service) attempt(ctx context.Context, entry *adapterEntry, kind wallet.Kind, chain wallet.ChainRef, attemptID string) (session.ManagedSession, error) {
	var zero session.ManagedSession

	br := newBridge(attemptID)
	// Arming before the adapter is invoked means a terminal event that
	// fires synchronously cannot be lost.
	if !entry.arm(br) {
		return zero, moorerr.Wrap(moorerr.ErrConnectionFailed, "another connect attempt is already in flight for %s", kind)
	}
	defer entry.disarm()

	if err := entry.adapter.Connect(ctx, ConnectParams{Chain: chain, AttemptID: attemptID}); err != nil {
		return zero, err
	}

	event, err := br.wait(ctx)
	if err != nil {
		return zero, err
	}
	return s.establish(event, kind, chain)
}

// establish turns the resolving terminal event into a registered session
// or the taxonomy error for the failure.
func (s *Service) establish(event StatusEvent, kind wallet.Kind, chain wallet.ChainRef) (session.ManagedSession, error) {
	var zero session.ManagedSession

	switch event.Type {
	case StatusConnected:
		if event.Session == nil {
			return zero, moorerr.Wrap(moorerr.ErrConnectionFailed, "adapter delivered no session")
		}
		ms := event.Session.Clone()
		walletID, err := wallet.DeriveID(kind, ms.Address)
		if err != nil {
			return zero, err
		}
		ms.WalletID = walletID
		ms.Kind = kind
		ms.Chain = chain
		ms.State = session.StateActive
		if ms.ConnectedAt.IsZero() {
			ms.ConnectedAt = s.now()
		}

		s.registry.Register(ms)
		s.registry.SetActive(ms.Topic)
		s.saveSnapshot()

		registered, ok := s.registry.GetByTopic(ms.Topic)
		if !ok {
			return zero, moorerr.Wrap(moorerr.ErrConnectionFailed, "session vanished during registration")
		}
		return registered, nil

	case StatusDisconnected:
		return zero, moorerr.Wrap(moorerr.ErrConnectionFailed, "attempt ended before a session was established: %s", event.Reason)

	case StatusError:
		if event.Err == nil {
			return zero, moorerr.Wrap(moorerr.ErrConnectionFailed, "adapter reported an error without a cause")
		}
		if moorerr.Is(event.Err, moorerr.ErrConnectionDeclined) ||
			moorerr.Is(event.Err, moorerr.ErrConnectionFailed) ||
			moorerr.Is(event.Err, moorerr.ErrUnsupportedChain) {
			return zero, event.Err
		}
		return zero, moorerr.WithDetails(moorerr.ErrConnectionFailed, map[string]string{
			"cause": event.Err.Error(),
		})

	default:
		return zero, moorerr.Wrap(moorerr.ErrConnectionFailed, "unexpected terminal event %q", event.Type)
	}
}

// Disconnect ends the established session, or cancels an in-flight
// connect when nothing is established yet. Local state is cleared even
// when the adapter call fails; the error then reports the degraded
// teardown.
func (s *Service) Disconnect(ctx context.Context) error {
	return s.disconnect(ctx, "disconnect requested")
}

func (s *Service) disconnect(ctx context.Context, reason string) error {
	active, hasActive := s.registry.ActiveSession()
	if !hasActive {
		if entry := s.armedEntry(); entry != nil {
			if err := entry.adapter.Disconnect(ctx); err != nil {
				return moorerr.Wrap(err, "canceling in-flight connect")
			}
			return nil
		}
		return moorerr.WithSuggestion(moorerr.ErrNotConnected, `run "mooring connect <kind>" first`)
	}

	entry := s.lookupEntry(active.Kind)
	var adapterErr error
	if entry != nil {
		adapterErr = entry.adapter.Disconnect(ctx)
	}

	s.registry.Deactivate(active.Topic)
	s.saveSnapshot()

	if entry == nil || adapterErr != nil {
		// The transport never got to emit its own event; observers still
		// learn the session ended.
		s.broadcast(StatusEvent{Type: StatusDisconnected, Kind: active.Kind, Reason: reason})
	}

	if adapterErr != nil {
		s.log.Warn().Err(adapterErr).Str("topic", active.Topic).Msg("adapter disconnect failed, local state cleared")
		return moorerr.Wrap(adapterErr, "adapter disconnect failed, local state cleared")
	}
	s.log.Info().Str("topic", active.Topic).Str("wallet_id", active.WalletID).Msg("wallet disconnected")
	return nil
}

// RouteCallback parses a wallet app callback URI, matches it to a kind by
// scheme, and hands the query to that kind's adapter. Callbacks matching
// no kind are logged and dropped.
func (s *Service) RouteCallback(ctx context.Context, rawURI string) (CallbackResult, error) {
	u, err := url.Parse(strings.TrimSpace(rawURI))
	if err != nil {
		s.log.Warn().Str("uri", rawURI).Err(err).Msg("dropping unparseable callback")
		return CallbackResult{}, moorerr.WithDetails(moorerr.ErrCallbackUnroutable, map[string]string{
			"reason": "uri does not parse",
		})
	}

	kind, ok := kindByScheme(u.Scheme)
	if !ok {
		s.log.Warn().Str("scheme", u.Scheme).Msg("dropping callback matching no connection kind")
		return CallbackResult{}, moorerr.WithDetails(moorerr.ErrCallbackUnroutable, map[string]string{
			"scheme": u.Scheme,
		})
	}

	entry, err := s.entryFor(kind)
	if err != nil {
		return CallbackResult{}, err
	}

	result, err := entry.adapter.HandleCallback(ctx, u.Query())
	if err != nil {
		return CallbackResult{}, moorerr.Wrap(err, "handling %s callback", kind)
	}
	result.Kind = kind

	s.log.Info().
		Str("kind", kind.String()).
		Str("action", result.Action).
		Str("topic", result.Topic).
		Msg("callback routed")
	return result, nil
}

// Validate checks one session against the clock and the merged live set.
func (s *Service) Validate(ctx context.Context, topic string) (session.Outcome, error) {
	live, err := s.LiveTopics(ctx)
	if err != nil {
		return session.Outcome{}, err
	}
	outcome := s.registry.Validate(topic, live)
	s.saveSnapshot()
	return outcome, nil
}

// LiveTopics merges the live topic sets of every adapter created so far.
// Kinds without an adapter contribute nothing, so their sessions read as
// stale until a reconnect brings an adapter up.
func (s *Service) LiveTopics(ctx context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	entries := make([]*adapterEntry, 0, len(s.adapters))
	for _, entry := range s.adapters {
		entries = append(entries, entry)
	}
	s.mu.Unlock()

	merged := make(map[string]struct{})
	for _, entry := range entries {
		topics, err := entry.adapter.LiveTopics(ctx)
		if err != nil {
			return nil, moorerr.Wrap(err, "listing live topics")
		}
		for topic := range topics {
			merged[topic] = struct{}{}
		}
	}
	return merged, nil
}

// Reconnect re-establishes transport presence for one topic: a single
// breaker-gated call wrapping the retry schedule, so repeated transport
// failure opens the kind's breaker instead of hammering it.
func (s *Service) Reconnect(ctx context.Context, kind wallet.Kind, topic string) error {
	entry, err := s.entryFor(kind)
	if err != nil {
		return err
	}
	rc, ok := entry.adapter.(Reconnector)
	if !ok {
		return moorerr.Wrap(moorerr.ErrConnectionFailed, "%s adapter cannot reconnect an existing topic", kind)
	}
	breaker, err := s.breakerFor(kind)
	if err != nil {
		return err
	}
	backoff, err := resilience.NewBackoff(s.cfg.Backoff)
	if err != nil {
		return err
	}

	log := s.log.With().Str("kind", kind.String()).Str("topic", topic).Logger()
	policy := resilience.RetryPolicy{
		OnRetry: func(attempt int, delay time.Duration, retryErr error) {
			log.Debug().Int("attempt", attempt).Dur("delay", delay).Err(retryErr).Msg("retrying reconnect")
		},
	}

	_, err = resilience.Execute(ctx, breaker, func(ctx context.Context) (struct{}, error) {
		return resilience.Retry(ctx, backoff, policy, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, rc.Reconnect(ctx, topic)
		})
	})
	s.noteBreakerState(kind, breaker)
	return err
}

// Activate selects a usable session for current operations.
func (s *Service) Activate(topic string) (session.ManagedSession, error) {
	var zero session.ManagedSession

	ms, ok := s.registry.GetByTopic(topic)
	if !ok {
		return zero, moorerr.WithDetails(moorerr.ErrSessionNotFound, map[string]string{"topic": topic})
	}
	switch ms.State {
	case session.StateExpired:
		return zero, moorerr.WithSuggestion(
			moorerr.WithDetails(moorerr.ErrSessionExpired, map[string]string{"topic": topic}),
			`run "mooring sessions cleanup" to remove expired sessions`,
		)
	case session.StateStale:
		return zero, moorerr.WithSuggestion(
			moorerr.WithDetails(moorerr.ErrSessionStale, map[string]string{"topic": topic}),
			`run "mooring watch --once" to reconnect stale sessions`,
		)
	case session.StateActive, session.StateInactive:
	}

	s.registry.SetActive(topic)
	s.saveSnapshot()

	activated, _ := s.registry.GetByTopic(topic)
	return activated, nil
}

// Remove deletes one session from the registry, any state. Explicit user
// surgery; the automatic lifecycle never removes non-expired sessions.
func (s *Service) Remove(topic string) error {
	if !s.registry.Remove(topic) {
		return moorerr.WithDetails(moorerr.ErrSessionNotFound, map[string]string{"topic": topic})
	}
	s.saveSnapshot()
	return nil
}

// Cleanup expires overdue sessions and removes everything expired,
// returning the removed count.
func (s *Service) Cleanup() int {
	s.registry.ExpireOverdue()
	removed := s.registry.CleanupExpired()
	if removed > 0 {
		s.saveSnapshot()
	}
	return removed
}

// Sessions returns all registered sessions.
func (s *Service) Sessions() []session.ManagedSession {
	return s.registry.List()
}

// Active returns the currently active session.
func (s *Service) Active() (session.ManagedSession, bool) {
	return s.registry.ActiveSession()
}

// Session returns one session by topic.
func (s *Service) Session(topic string) (session.ManagedSession, bool) {
	return s.registry.GetByTopic(topic)
}

// Events returns an independent subscription to the status event stream.
// Subscribers that stop consuming lose events once their buffer fills.
// The channel closes when the service closes.
func (s *Service) Events() <-chan StatusEvent {
	ch := make(chan StatusEvent, observerBuffer)
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	if s.obsClosed {
		close(ch)
		return ch
	}
	s.observers = append(s.observers, ch)
	return ch
}

// Close shuts down every adapter, waits for their streams to drain, and
// closes all subscriptions. Safe to call more than once.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	entries := make([]*adapterEntry, 0, len(s.adapters))
	for _, entry := range s.adapters {
		entries = append(entries, entry)
	}
	s.mu.Unlock()

	var firstErr error
	for _, entry := range entries {
		if err := entry.adapter.Close(); err != nil {
			s.log.Error().Err(err).Str("kind", entry.adapter.Kind().String()).Msg("closing adapter")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	s.pumps.Wait()

	s.obsMu.Lock()
	s.obsClosed = true
	for _, ch := range s.observers {
		close(ch)
	}
	s.observers = nil
	s.obsMu.Unlock()

	return firstErr
}

// pump drains one adapter's stream for the life of the adapter, feeding
// the armed bridge and every subscriber.
func (s *Service) pump(entry *adapterEntry) {
	defer s.pumps.Done()
	for event := range entry.adapter.Events() {
		if br := entry.armed(); br != nil {
			br.observe(event)
		}
		s.broadcast(event)
	}
}

func (s *Service) broadcast(event StatusEvent) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	for _, ch := range s.observers {
		select {
		case ch <- event:
		default:
			s.log.Debug().Str("type", event.Type.String()).Msg("dropping status event for slow subscriber")
		}
	}
}

// entryFor returns the kind's adapter entry, creating adapter and pump on
// first use.
func (s *Service) entryFor(kind wallet.Kind) (*adapterEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrServiceClosed
	}
	if entry, ok := s.adapters[kind]; ok {
		return entry, nil
	}

	adapter, err := s.factory.New(kind)
	if err != nil {
		return nil, err
	}
	entry := &adapterEntry{adapter: adapter}
	s.adapters[kind] = entry
	s.pumps.Add(1)
	go s.pump(entry)
	s.log.Debug().Str("kind", kind.String()).Msg("adapter created")
	return entry, nil
}

func (s *Service) lookupEntry(kind wallet.Kind) *adapterEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adapters[kind]
}

// armedEntry returns the entry with an in-flight attempt, if any.
func (s *Service) armedEntry() *adapterEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.adapters {
		if entry.armed() != nil {
			return entry
		}
	}
	return nil
}

func (s *Service) breakerFor(kind wallet.Kind) (*resilience.CircuitBreaker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb, ok := s.breakers[kind]; ok {
		return cb, nil
	}
	cb, err := resilience.NewCircuitBreaker(s.cfg.Circuit)
	if err != nil {
		return nil, err
	}
	s.breakers[kind] = cb
	s.lastBreaker[kind] = cb.State()
	return cb, nil
}

// noteBreakerState records breaker movement after a gated call settles.
func (s *Service) noteBreakerState(kind wallet.Kind, cb *resilience.CircuitBreaker) {
	state := cb.State()
	s.mu.Lock()
	changed := s.lastBreaker[kind] != state
	if changed {
		s.lastBreaker[kind] = state
	}
	s.mu.Unlock()

	if !changed {
		return
	}
	s.rec.CircuitTransition(kind.String(), state.String())
	if state == resilience.CircuitOpen {
		s.log.Warn().Str("kind", kind.String()).Msg("circuit opened, connect attempts suspended")
	} else {
		s.log.Info().Str("kind", kind.String()).Str("state", state.String()).Msg("circuit state changed")
	}
}

func (s *Service) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// saveSnapshot persists registry state and refreshes the session gauges.
// Persistence failures degrade to logging; session state stays usable in
// memory.
func (s *Service) saveSnapshot() {
	if s.snapshots != nil {
		if err := s.snapshots.SaveRegistry(s.registry); err != nil {
			s.log.Error().Err(err).Msg("saving session snapshot")
		}
	}
	counts := s.registry.CountByState()
	for _, st := range []session.State{session.StateActive, session.StateInactive, session.StateStale, session.StateExpired} {
		s.rec.SetSessionCount(st.String(), counts[st])
	}
}

func kindByScheme(scheme string) (wallet.Kind, bool) {
	for _, k := range wallet.Kinds() {
		if strings.EqualFold(scheme, k.CallbackScheme()) {
			return k, true
		}
	}
	return "", false
}

func outcomeForError(err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeSuccess
	case moorerr.Is(err, moorerr.ErrConnectionDeclined):
		return telemetry.OutcomeDeclined
	case moorerr.Is(err, moorerr.ErrCircuitOpen):
		return telemetry.OutcomeCircuitOpen
	case moorerr.Is(err, context.Canceled), moorerr.Is(err, context.DeadlineExceeded):
		return telemetry.OutcomeCanceled
	default:
		return telemetry.OutcomeFailure
	}
}
