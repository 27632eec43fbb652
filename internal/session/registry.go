package session

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ValidationResult classifies the outcome of validating one session.
type ValidationResult string

// Validation results.
const (
	ValidationValid   ValidationResult = "valid"
	ValidationStale   ValidationResult = "stale"
	ValidationExpired ValidationResult = "expired"
)

// Validation reasons attached to non-valid outcomes.
const (
	ReasonNotInRegistry = "not found in registry"
	ReasonNotInLiveSet  = "not found in live set"
	ReasonElapsed       = "validity window elapsed"
)

// Outcome is the result of Registry.Validate.
type Outcome struct {
	Result ValidationResult
	Reason string
}

// LiveSet builds the set shape Validate and MarkStaleFromLiveSet take
// from a transport's topic listing.
func LiveSet(topics ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}
	return set
}

// TransitionObserver receives every state change the registry applies.
// Called with the registry lock held, so observers must not call back in.
type TransitionObserver func(from, to State)

// Registry is the single source of truth for which sessions exist and
// whether they are usable. All mutation goes through its methods; lookups
// return copies, so callers never hold a reference into registry state.
//
// The active pointer tracks the most recently activated topic even while
// that session is stale, so a session that reappears in the live set
// resumes its prior active-ness. Expiry and removal clear the pointer.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*ManagedSession // by topic
	byWallet map[string]string          // wallet id -> topic
	active   string                     // topic of the activated session, "" when none

	onTransition TransitionObserver

	now func() time.Time
	log zerolog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*ManagedSession),
		byWallet: make(map[string]string),
		now:      time.Now,
		log:      log.With().Str("component", "registry").Logger(),
	}
}

// Register inserts or overwrites the session keyed by topic. A session
// carrying the same wallet id under a different topic is replaced, so a
// reconnect updates rather than duplicates the wallet's entry. Never fails.
//
// The single-active invariant is enforced structurally: registering a
// session in StateActive demotes the current active session to
// StateInactive; overwriting the active topic with any other state
// releases the pointer.
func (r *Registry) Register(s ManagedSession) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if oldTopic, ok := r.byWallet[s.WalletID]; ok && oldTopic != s.Topic {
		delete(r.sessions, oldTopic)
		if r.active == oldTopic {
			r.active = ""
		}
		r.log.Debug().
			Str("wallet_id", s.WalletID).
			Str("old_topic", oldTopic).
			Str("new_topic", s.Topic).
			Msg("replacing session for reconnected wallet")
	}

	if s.State == StateActive {
		if prev := r.activeSessionLocked(); prev != nil && prev.Topic != s.Topic {
			r.transitionLocked(prev, StateInactive)
		}
		r.active = s.Topic
	} else if r.active == s.Topic {
		r.active = ""
	}

	stored := s.Clone()
	r.sessions[s.Topic] = &stored
	r.byWallet[s.WalletID] = s.Topic
}

// SetActive selects the session for current operations. Returns false and
// changes nothing when the topic is unknown. On success the previously
// active session becomes StateInactive and the target becomes StateActive.
func (r *Registry) SetActive(topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.sessions[topic]
	if !ok {
		return false
	}

	if prev := r.activeSessionLocked(); prev != nil && prev.Topic != topic {
		r.transitionLocked(prev, StateInactive)
	}
	r.transitionLocked(target, StateActive)
	r.active = topic
	return true
}

// Deactivate releases the active selection for topic. Active and stale
// sessions move to StateInactive, taking them out of automatic reconnect;
// the session is kept for later reactivation. Returns false when the
// topic is unknown.
func (r *Registry) Deactivate(topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[topic]
	if !ok {
		return false
	}
	if s.State == StateActive || s.State == StateStale {
		r.transitionLocked(s, StateInactive)
	}
	if r.active == topic {
		r.active = ""
	}
	return true
}

// Validate checks one session against the clock and the transport's live
// topic set. The order is load-bearing: expiry beats live-set presence,
// because a transport can keep reporting a topic whose application-level
// validity window has already elapsed.
func (r *Registry) Validate(topic string, live map[string]struct{}) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[topic]
	if !ok {
		return Outcome{Result: ValidationStale, Reason: ReasonNotInRegistry}
	}

	now := r.now()
	s.LastValidatedAt = now

	if s.IsExpired(now) {
		r.transitionLocked(s, StateExpired)
		if r.active == topic {
			r.active = ""
		}
		return Outcome{Result: ValidationExpired, Reason: ReasonElapsed}
	}

	if _, isLive := live[topic]; isLive {
		if r.active == topic {
			r.transitionLocked(s, StateActive)
		} else {
			r.transitionLocked(s, StateInactive)
		}
		return Outcome{Result: ValidationValid}
	}

	r.transitionLocked(s, StateStale)
	return Outcome{Result: ValidationStale, Reason: ReasonNotInLiveSet}
}

// MarkStaleFromLiveSet sweeps every non-expired session missing from the
// live set into StateStale and returns how many changed state. Run after
// an app resume so observers immediately see "might be broken" before
// per-session validation completes.
func (r *Registry) MarkStaleFromLiveSet(live map[string]struct{}) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	marked := 0
	for topic, s := range r.sessions {
		if s.State == StateExpired || s.State == StateStale {
			continue
		}
		if _, isLive := live[topic]; isLive {
			continue
		}
		r.transitionLocked(s, StateStale)
		marked++
	}
	return marked
}

// ExpireOverdue moves every session past its validity horizon into
// StateExpired, regardless of live-set knowledge, and returns how many
// changed state. Lets cleanup run without a transport round trip.
func (r *Registry) ExpireOverdue() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	expired := 0
	for topic, s := range r.sessions {
		if s.State == StateExpired || !s.IsExpired(now) {
			continue
		}
		r.transitionLocked(s, StateExpired)
		if r.active == topic {
			r.active = ""
		}
		expired++
	}
	return expired
}

// CleanupExpired removes every session in StateExpired and returns the
// count. Removing the session the active pointer references clears the
// pointer. Removal is reserved for expired sessions; stale ones stay.
func (r *Registry) CleanupExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for topic, s := range r.sessions {
		if s.State != StateExpired {
			continue
		}
		delete(r.sessions, topic)
		delete(r.byWallet, s.WalletID)
		if r.active == topic {
			r.active = ""
		}
		removed++
	}
	if removed > 0 {
		r.log.Info().Int("removed", removed).Msg("cleaned up expired sessions")
	}
	return removed
}

// Remove deletes one session by topic, any state. Returns false when the
// topic is unknown. Used for explicit user disconnects.
func (r *Registry) Remove(topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[topic]
	if !ok {
		return false
	}
	delete(r.sessions, topic)
	delete(r.byWallet, s.WalletID)
	if r.active == topic {
		r.active = ""
	}
	return true
}

// GetByTopic returns a copy of the session for topic.
func (r *Registry) GetByTopic(topic string) (ManagedSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[topic]
	if !ok {
		return ManagedSession{}, false
	}
	return s.Clone(), true
}

// GetByWalletID returns a copy of the session for a wallet id.
func (r *Registry) GetByWalletID(walletID string) (ManagedSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topic, ok := r.byWallet[walletID]
	if !ok {
		return ManagedSession{}, false
	}
	return r.sessions[topic].Clone(), true
}

// ListByState returns copies of all sessions in the given state, ordered
// by topic.
func (r *Registry) ListByState(state State) []ManagedSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ManagedSession
	for _, s := range r.sessions {
		if s.State == state {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out
}

// List returns copies of all sessions, ordered by topic.
func (r *Registry) List() []ManagedSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ManagedSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out
}

// ActiveSession returns a copy of the session currently in StateActive.
// A stale session keeps the internal pointer but is not reported here.
func (r *Registry) ActiveSession() (ManagedSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.activeSessionLocked()
	if s == nil {
		return ManagedSession{}, false
	}
	return s.Clone(), true
}

// ActiveWalletID returns the wallet id the active pointer references,
// whatever state that session is in. This is what persists across
// restarts so a stale-but-selected session resumes its claim.
func (r *Registry) ActiveWalletID() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.active == "" {
		return "", false
	}
	s, ok := r.sessions[r.active]
	if !ok {
		return "", false
	}
	return s.WalletID, true
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// activeSessionLocked resolves the pointer to a session actually in
// StateActive. Callers must hold the lock.
func (r *Registry) activeSessionLocked() *ManagedSession {
	if r.active == "" {
		return nil
	}
	s, ok := r.sessions[r.active]
	if !ok || s.State != StateActive {
		return nil
	}
	return s
}

// SetTransitionObserver installs fn as the transition observer. Pass nil
// to remove it.
func (r *Registry) SetTransitionObserver(fn TransitionObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onTransition = fn
}

// CountByState tallies registered sessions per state.
func (r *Registry) CountByState() map[State]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[State]int)
	for _, s := range r.sessions {
		counts[s.State]++
	}
	return counts
}

// transitionLocked applies a state change and logs it when the state
// actually moves. Callers must hold the lock.
func (r *Registry) transitionLocked(s *ManagedSession, to State) {
	if s.State == to {
		return
	}
	r.log.Debug().
		Str("topic", s.Topic).
		Str("wallet_id", s.WalletID).
		Str("from", s.State.String()).
		Str("to", to.String()).
		Msg("session state transition")
	if r.onTransition != nil {
		r.onTransition(s.State, to)
	}
	s.State = to
}
