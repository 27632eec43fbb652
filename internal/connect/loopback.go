package connect

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/nacl/box"

	"github.com/akodra/mooring/internal/cryptobox"
	"github.com/akodra/mooring/internal/resilience"
	"github.com/akodra/mooring/internal/session"
	"github.com/akodra/mooring/internal/wallet"
	moorerr "github.com/akodra/mooring/pkg/errors"
)

// Default identities the simulated wallet presents.
const (
	defaultRelayAddress     = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"
	defaultDirectKeyAddress = "So11111111111111111111111111111111111111112"
	defaultPeerName         = "Loopback Wallet"
)

// loopbackEventBuffer absorbs the burst an attempt can emit before the
// consumer catches up.
const loopbackEventBuffer = 32

// LoopbackConfig scripts the in-process transport.
type LoopbackConfig struct {
	// FailFirst makes the first n connect attempts fail retryably.
	FailFirst int

	// FailReconnects makes the first n topic reconnects fail.
	FailReconnects int

	// Decline simulates the wallet rejecting the connection request.
	Decline bool

	// Latency delays each simulated round trip.
	Latency time.Duration

	// SessionTTL sets the validity horizon on minted sessions. Zero
	// mints sessions that never expire.
	SessionTTL time.Duration

	// Backoff overrides the retry schedule. Zero value uses the default.
	Backoff resilience.BackoffConfig

	// Address overrides the wallet address returned on success.
	Address string

	// PeerName overrides the wallet display name.
	PeerName string
}

// loopbackBlob is the opaque payload a real transport would need to
// re-inject the session after a restart.
type loopbackBlob struct {
	Topic     string `json:"topic"`
	Transport string `json:"transport"`
}

// callbackPayload is the sealed body of a direct-key callback.
type callbackPayload struct {
	Topic  string `json:"topic"`
	Action string `json:"action"`
}

// Loopback is an in-process Adapter that plays both sides of a
// connection: the transport and the wallet app. Failures, latency, the
// live-topic set, and session TTLs are all scriptable, which makes it the
// test double for the orchestration layer and the default transport for
// trying the CLI without a wallet.
type Loopback struct {
	kind   wallet.Kind
	cfg    LoopbackConfig
	oracle *cryptobox.Pool
	log    zerolog.Logger
	now    func() time.Time

	events chan StatusEvent

	// App-side box keypair; callbacks are sealed to appPub.
	appPriv [cryptobox.KeySize]byte
	appPub  [cryptobox.KeySize]byte

	// Wallet-side box keypair for playing the wallet in callbacks.
	walletPriv [cryptobox.KeySize]byte
	walletPub  [cryptobox.KeySize]byte

	mu             sync.Mutex
	topics         map[string]struct{}
	connected      string
	connectFails   int
	reconnectFails int
	cancelConnect  context.CancelFunc
	closed         bool

	wg sync.WaitGroup
}

// NewLoopback creates a loopback adapter for the kind. The oracle opens
// sealed callbacks; pass a sync pool when offloading is not wanted.
func NewLoopback(kind wallet.Kind, cfg LoopbackConfig, oracle *cryptobox.Pool, log zerolog.Logger) (*Loopback, error) {
	if !kind.IsValid() {
		return nil, moorerr.WithDetails(moorerr.ErrUnknownKind, map[string]string{"kind": kind.String()})
	}
	if cfg.Backoff == (resilience.BackoffConfig{}) {
		cfg.Backoff = resilience.DefaultBackoffConfig()
	}
	if err := cfg.Backoff.Validate(); err != nil {
		return nil, err
	}
	if cfg.Address == "" {
		if kind.Family() == wallet.FamilyDirectKey {
			cfg.Address = defaultDirectKeyAddress
		} else {
			cfg.Address = defaultRelayAddress
		}
	}
	if cfg.PeerName == "" {
		cfg.PeerName = defaultPeerName
	}

	l := &Loopback{
		kind:   kind,
		cfg:    cfg,
		oracle: oracle,
		log:    log.With().Str("component", "loopback").Str("kind", kind.String()).Logger(),
		now:    time.Now,
		events: make(chan StatusEvent, loopbackEventBuffer),
		topics: make(map[string]struct{}),
	}

	appPub, appPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, moorerr.Wrap(err, "generating app keypair")
	}
	walletPub, walletPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, moorerr.Wrap(err, "generating wallet keypair")
	}
	l.appPub, l.appPriv = *appPub, *appPriv
	l.walletPub, l.walletPriv = *walletPub, *walletPriv

	return l, nil
}

// Kind identifies the wallet kind this adapter serves.
func (l *Loopback) Kind() wallet.Kind {
	return l.kind
}

// EncryptionPublicKey returns the app-side public key (base58) a wallet
// would seal callbacks to. Real pairings publish it in the connect URI.
func (l *Loopback) EncryptionPublicKey() string {
	return cryptobox.Base58Encode(l.appPub[:])
}

// Events returns the adapter's event stream.
func (l *Loopback) Events() <-chan StatusEvent {
	return l.events
}

// Connect starts an asynchronous attempt. Chain validation fails fast;
// everything else resolves through the event stream.
func (l *Loopback) Connect(ctx context.Context, params ConnectParams) error {
	if err := params.Chain.Validate(l.kind); err != nil {
		return err
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return moorerr.Wrap(moorerr.ErrConnectionFailed, "adapter is closed")
	}
	if l.cancelConnect != nil {
		l.mu.Unlock()
		return moorerr.Wrap(moorerr.ErrConnectionFailed, "connect already in flight")
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancelConnect = cancel
	l.mu.Unlock()

	attemptID := params.AttemptID
	if attemptID == "" {
		attemptID = uuid.NewString()
	}

	l.wg.Add(1)
	go l.runConnect(runCtx, params, attemptID)
	return nil
}

// runConnect plays out one attempt: pairing, scripted failures with the
// retry schedule, then a terminal event.
func (l *Loopback) runConnect(ctx context.Context, params ConnectParams, attemptID string) {
	defer l.wg.Done()
	defer func() {
		l.mu.Lock()
		if l.cancelConnect != nil {
			l.cancelConnect()
			l.cancelConnect = nil
		}
		l.mu.Unlock()
	}()

	topic := "loopback-" + uuid.NewString()
	l.emit(StatusEvent{
		Type:       StatusConnecting,
		Kind:       l.kind,
		AttemptID:  attemptID,
		PairingURI: l.pairingURI(topic, params),
	})

	backoff, err := resilience.NewBackoff(l.cfg.Backoff)
	if err != nil {
		l.emit(StatusEvent{Type: StatusError, Kind: l.kind, AttemptID: attemptID, Err: err})
		return
	}

	policy := resilience.RetryPolicy{
		ShouldRetry: func(err error) bool {
			if moorerr.Is(err, context.Canceled) || moorerr.Is(err, context.DeadlineExceeded) {
				return false
			}
			return !moorerr.Is(err, moorerr.ErrConnectionDeclined)
		},
		OnRetry: func(attempt int, delay time.Duration, retryErr error) {
			l.log.Debug().Int("attempt", attempt).Dur("delay", delay).Err(retryErr).Msg("handshake retry")
			l.emit(StatusEvent{
				Type:       StatusRetrying,
				Kind:       l.kind,
				AttemptID:  attemptID,
				Attempt:    attempt,
				MaxRetries: l.cfg.Backoff.MaxRetries,
			})
		},
	}

	ms, err := resilience.Retry(ctx, backoff, policy, func(ctx context.Context) (session.ManagedSession, error) {
		return l.attemptOnce(ctx, topic, params)
	})

	switch {
	case err == nil:
		l.mu.Lock()
		l.topics[topic] = struct{}{}
		l.connected = topic
		l.mu.Unlock()
		l.emit(StatusEvent{Type: StatusConnected, Kind: l.kind, AttemptID: attemptID, Session: &ms})
	case moorerr.Is(err, context.Canceled), moorerr.Is(err, context.DeadlineExceeded):
		l.emit(StatusEvent{Type: StatusDisconnected, Kind: l.kind, AttemptID: attemptID, Reason: "connect canceled"})
	default:
		l.emit(StatusEvent{Type: StatusError, Kind: l.kind, AttemptID: attemptID, Err: err})
	}
}

// attemptOnce simulates one handshake round trip.
func (l *Loopback) attemptOnce(ctx context.Context, topic string, params ConnectParams) (session.ManagedSession, error) {
	var zero session.ManagedSession

	if err := l.sleep(ctx); err != nil {
		return zero, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return zero, moorerr.Wrap(moorerr.ErrConnectionFailed, "adapter is closed")
	}
	if l.cfg.Decline {
		return zero, moorerr.WithDetails(moorerr.ErrConnectionDeclined, map[string]string{
			"kind": l.kind.String(),
		})
	}
	if l.connectFails < l.cfg.FailFirst {
		l.connectFails++
		return zero, moorerr.Wrap(moorerr.ErrConnectionFailed, "simulated handshake failure %d", l.connectFails)
	}
	return l.mintSession(topic, params), nil
}

// mintSession builds the session the simulated wallet approves.
// Callers hold l.mu.
func (l *Loopback) mintSession(topic string, params ConnectParams) session.ManagedSession {
	now := l.now()
	blob, _ := json.Marshal(loopbackBlob{Topic: topic, Transport: "loopback"})

	ms := session.ManagedSession{
		Topic:       topic,
		Kind:        l.kind,
		Address:     l.cfg.Address,
		Chain:       params.Chain,
		ConnectedAt: now,
		PeerName:    l.cfg.PeerName,
		SessionBlob: blob,
	}
	if l.cfg.SessionTTL > 0 {
		exp := now.Add(l.cfg.SessionTTL)
		ms.ExpiresAt = &exp
	}
	switch l.kind.Family() {
	case wallet.FamilyDirectKey:
		ms.PeerPublicKey = cryptobox.Base58Encode(l.walletPub[:])
	case wallet.FamilyRelay:
		ms.PairingTopic = "pairing-" + topic
	}
	return ms
}

// Disconnect ends the session or cancels an in-flight attempt. Either
// path produces a terminal event on the stream.
func (l *Loopback) Disconnect(_ context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return moorerr.Wrap(moorerr.ErrConnectionFailed, "adapter is closed")
	}
	cancel := l.cancelConnect
	topic := l.connected
	l.connected = ""
	if topic != "" {
		delete(l.topics, topic)
	}
	l.mu.Unlock()

	if topic != "" {
		l.emit(StatusEvent{Type: StatusDisconnected, Kind: l.kind, Reason: "disconnect requested"})
		return nil
	}
	if cancel != nil {
		// The in-flight attempt emits the terminal disconnect itself.
		cancel()
	}
	return nil
}

// LiveTopics reports the topics the simulated transport holds open.
func (l *Loopback) LiveTopics(ctx context.Context) (map[string]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]struct{}, len(l.topics))
	for topic := range l.topics {
		out[topic] = struct{}{}
	}
	return out, nil
}

// DropTopic removes a topic from the live set without any event,
// simulating a transport silently losing the session.
func (l *Loopback) DropTopic(topic string) {
	l.mu.Lock()
	delete(l.topics, topic)
	if l.connected == topic {
		l.connected = ""
	}
	l.mu.Unlock()
}

// Reconnect re-establishes a known topic, honoring the scripted
// reconnect failures.
func (l *Loopback) Reconnect(ctx context.Context, topic string) error {
	if err := l.sleep(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return moorerr.Wrap(moorerr.ErrConnectionFailed, "adapter is closed")
	}
	if l.reconnectFails < l.cfg.FailReconnects {
		l.reconnectFails++
		return moorerr.Wrap(moorerr.ErrConnectionFailed, "simulated resubscribe failure %d", l.reconnectFails)
	}
	l.topics[topic] = struct{}{}
	return nil
}

// HandleCallback decodes a wallet app callback. Direct-key callbacks
// arrive sealed and are opened with the app key; relay callbacks carry
// their fields in the clear.
func (l *Loopback) HandleCallback(ctx context.Context, values url.Values) (CallbackResult, error) {
	if l.kind.Family() == wallet.FamilyDirectKey {
		return l.openSealedCallback(ctx, values)
	}

	topic := values.Get("topic")
	if topic == "" {
		return CallbackResult{}, moorerr.Wrap(moorerr.ErrInvalidInput, "callback is missing topic")
	}
	action := values.Get("action")
	if action == "" {
		action = ActionConnect
	}
	return CallbackResult{Kind: l.kind, Topic: topic, Action: action}, nil
}

func (l *Loopback) openSealedCallback(ctx context.Context, values url.Values) (CallbackResult, error) {
	var zero CallbackResult

	for _, key := range []string{"phantom_encryption_public_key", "nonce", "data"} {
		if values.Get(key) == "" {
			return zero, moorerr.Wrap(moorerr.ErrInvalidInput, "callback is missing %s", key)
		}
	}

	peer, err := cryptobox.ParsePeerKey(values.Get("phantom_encryption_public_key"))
	if err != nil {
		return zero, err
	}
	nonce, err := cryptobox.Base58Decode(values.Get("nonce"))
	if err != nil {
		return zero, err
	}
	data, err := cryptobox.Base58Decode(values.Get("data"))
	if err != nil {
		return zero, err
	}

	plaintext, err := l.oracle.Decrypt(ctx, data, nonce, l.appPriv[:], peer[:])
	if err != nil {
		return zero, err
	}

	var payload callbackPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return zero, moorerr.Wrap(moorerr.ErrInvalidInput, "decoding callback payload")
	}
	if payload.Action == "" {
		payload.Action = ActionConnect
	}
	return CallbackResult{
		Kind:    l.kind,
		Topic:   payload.Topic,
		Action:  payload.Action,
		Payload: plaintext,
	}, nil
}

// SealCallback plays the wallet side of an app-to-app callback: the
// payload is boxed to the app key under a fresh nonce and wrapped in the
// query parameters a wallet app would send. Relay kinds return the
// fields in the clear.
func (l *Loopback) SealCallback(topic, action string) (url.Values, error) {
	values := url.Values{}

	if l.kind.Family() != wallet.FamilyDirectKey {
		values.Set("topic", topic)
		values.Set("action", action)
		return values, nil
	}

	payload, err := json.Marshal(callbackPayload{Topic: topic, Action: action})
	if err != nil {
		return nil, moorerr.Wrap(err, "encoding callback payload")
	}

	var nonce [cryptobox.NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, moorerr.Wrap(err, "generating callback nonce")
	}
	sealed := box.Seal(nil, payload, &nonce, &l.appPub, &l.walletPriv)

	values.Set("phantom_encryption_public_key", cryptobox.Base58Encode(l.walletPub[:]))
	values.Set("nonce", cryptobox.Base58Encode(nonce[:]))
	values.Set("data", cryptobox.Base58Encode(sealed))
	return values, nil
}

// CallbackURI renders a full callback deep link for the kind.
func (l *Loopback) CallbackURI(topic, action string) (string, error) {
	values, err := l.SealCallback(topic, action)
	if err != nil {
		return "", err
	}
	return l.kind.CallbackScheme() + "://callback?" + values.Encode(), nil
}

// Close cancels any in-flight attempt and closes the event stream.
func (l *Loopback) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	cancel := l.cancelConnect
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	l.wg.Wait()
	close(l.events)
	return nil
}

// pairingURI builds the URI the wallet app must open to approve the
// connection.
func (l *Loopback) pairingURI(topic string, params ConnectParams) string {
	values := url.Values{}
	if l.kind.Family() == wallet.FamilyDirectKey {
		values.Set("dapp_encryption_public_key", l.EncryptionPublicKey())
		values.Set("cluster", params.Chain.Cluster)
		values.Set("redirect_link", l.kind.CallbackScheme()+"://callback")
		return "mooring://pair/v1/connect?" + values.Encode()
	}

	var symKey [32]byte
	_, _ = io.ReadFull(rand.Reader, symKey[:])
	values.Set("topic", "pairing-"+topic)
	values.Set("relay", "loopback")
	values.Set("symKey", hex.EncodeToString(symKey[:]))
	return "mooring://pair?" + values.Encode()
}

// sleep waits out the scripted latency, cut short by ctx.
func (l *Loopback) sleep(ctx context.Context) error {
	if l.cfg.Latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(l.cfg.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (l *Loopback) emit(event StatusEvent) {
	l.events <- event
}

// Compile-time interface checks
var (
	_ Adapter     = (*Loopback)(nil)
	_ Reconnector = (*Loopback)(nil)
)
