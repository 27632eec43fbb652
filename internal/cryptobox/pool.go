package cryptobox

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	moorerr "github.com/akodra/mooring/pkg/errors"
)

// DefaultWorkers is the default number of crypto workers.
const DefaultWorkers = 2

type opKind string

const (
	opDecrypt opKind = "decrypt"
	opVerify  opKind = "verify"
)

// request carries one unit of crypto work to a worker. The id correlates
// batch members in logs; index addresses the result slot.
type request struct {
	id    string
	kind  opKind
	index int

	ciphertext []byte
	nonce      []byte
	privKey    []byte
	peerPubKey []byte

	sig    []byte
	msg    []byte
	pubKey []byte

	out chan<- response
}

type response struct {
	index int
	data  []byte
	ok    bool
	err   error
}

// Pool dispatches crypto work to background workers so CPU-bound decryption
// and verification never block the caller's event path. With zero workers
// the pool computes in place; the caller-visible behavior is identical.
type Pool struct {
	requests chan request
	log      zerolog.Logger
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewPool creates a crypto pool with the given worker count. A count of
// zero or less selects the synchronous in-place path.
func NewPool(workers int, log zerolog.Logger) *Pool {
	p := &Pool{
		log: log.With().Str("component", "cryptobox").Logger(),
	}

	if workers <= 0 {
		return p
	}

	p.requests = make(chan request, workers*2)
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

// Offloaded reports whether work is dispatched to background workers.
func (p *Pool) Offloaded() bool {
	return p.requests != nil
}

// Decrypt opens an authenticated box, offloading to a worker when the pool
// has any.
func (p *Pool) Decrypt(ctx context.Context, ciphertext, nonce, privKey, peerPubKey []byte) ([]byte, error) {
	if p.requests == nil {
		if err := p.inlineCheck(ctx); err != nil {
			return nil, err
		}
		return Decrypt(ciphertext, nonce, privKey, peerPubKey)
	}

	out := make(chan response, 1)
	req := request{
		id:         uuid.NewString(),
		kind:       opDecrypt,
		ciphertext: ciphertext,
		nonce:      nonce,
		privKey:    privKey,
		peerPubKey: peerPubKey,
		out:        out,
	}

	if err := p.submit(ctx, req); err != nil {
		return nil, err
	}

	select {
	case resp := <-out:
		return resp.data, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Verify checks an Ed25519 signature, offloading to a worker when the pool
// has any.
func (p *Pool) Verify(ctx context.Context, sig, msg, pubKey []byte) (bool, error) {
	if p.requests == nil {
		if err := p.inlineCheck(ctx); err != nil {
			return false, err
		}
		return Verify(sig, msg, pubKey), nil
	}

	out := make(chan response, 1)
	req := request{
		id:     uuid.NewString(),
		kind:   opVerify,
		sig:    sig,
		msg:    msg,
		pubKey: pubKey,
		out:    out,
	}

	if err := p.submit(ctx, req); err != nil {
		return false, err
	}

	select {
	case resp := <-out:
		return resp.ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// DecryptJob is one item of a batched decryption request.
type DecryptJob struct {
	Ciphertext []byte
	Nonce      []byte
	PrivKey    []byte
	PeerPubKey []byte
}

// DecryptResult carries the outcome for the job at the same index.
type DecryptResult struct {
	Data []byte
	Err  error
}

// DecryptBatch decrypts all jobs, spreading them across workers. Results
// align with jobs by index; per-item failures land in the result, while the
// returned error reports only pool-level conditions.
func (p *Pool) DecryptBatch(ctx context.Context, jobs []DecryptJob) ([]DecryptResult, error) {
	results := make([]DecryptResult, len(jobs))

	if p.requests == nil {
		for i, job := range jobs {
			if err := p.inlineCheck(ctx); err != nil {
				return nil, err
			}
			data, err := Decrypt(job.Ciphertext, job.Nonce, job.PrivKey, job.PeerPubKey)
			results[i] = DecryptResult{Data: data, Err: err}
		}
		return results, nil
	}

	out := make(chan response, len(jobs))
	batchID := uuid.NewString()
	for i, job := range jobs {
		req := request{
			id:         batchID,
			kind:       opDecrypt,
			index:      i,
			ciphertext: job.Ciphertext,
			nonce:      job.Nonce,
			privKey:    job.PrivKey,
			peerPubKey: job.PeerPubKey,
			out:        out,
		}
		if err := p.submit(ctx, req); err != nil {
			return nil, err
		}
	}

	for range jobs {
		select {
		case resp := <-out:
			results[resp.index] = DecryptResult{Data: resp.data, Err: resp.err}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return results, nil
}

// VerifyJob is one item of a batched verification request.
type VerifyJob struct {
	Sig    []byte
	Msg    []byte
	PubKey []byte
}

// VerifyBatch verifies all jobs, spreading them across workers. Results
// align with jobs by index.
func (p *Pool) VerifyBatch(ctx context.Context, jobs []VerifyJob) ([]bool, error) {
	results := make([]bool, len(jobs))

	if p.requests == nil {
		for i, job := range jobs {
			if err := p.inlineCheck(ctx); err != nil {
				return nil, err
			}
			results[i] = Verify(job.Sig, job.Msg, job.PubKey)
		}
		return results, nil
	}

	out := make(chan response, len(jobs))
	batchID := uuid.NewString()
	for i, job := range jobs {
		req := request{
			id:     batchID,
			kind:   opVerify,
			index:  i,
			sig:    job.Sig,
			msg:    job.Msg,
			pubKey: job.PubKey,
			out:    out,
		}
		if err := p.submit(ctx, req); err != nil {
			return nil, err
		}
	}

	for range jobs {
		select {
		case resp := <-out:
			results[resp.index] = resp.ok
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return results, nil
}

// Close drains the workers. Submissions after Close report ErrPoolClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.requests != nil {
		close(p.requests)
	}
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

// inlineCheck guards the synchronous path with the same closed and
// cancellation semantics as the offloaded one.
func (p *Pool) inlineCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return moorerr.ErrPoolClosed
	}

	return nil
}

// submit enqueues a request. The read lock is held across the send so Close
// cannot close the channel under an in-flight submission.
func (p *Pool) submit(ctx context.Context, req request) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return moorerr.ErrPoolClosed
	}

	select {
	case p.requests <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for req := range p.requests {
		resp := execute(req)
		p.log.Trace().
			Str("request_id", req.id).
			Str("op", string(req.kind)).
			Int("index", req.index).
			Msg("crypto job done")
		req.out <- resp
	}
}

func execute(req request) response {
	switch req.kind {
	case opDecrypt:
		data, err := Decrypt(req.ciphertext, req.nonce, req.privKey, req.peerPubKey)
		return response{index: req.index, data: data, err: err}
	case opVerify:
		return response{index: req.index, ok: Verify(req.sig, req.msg, req.pubKey)}
	default:
		return response{index: req.index, err: moorerr.Wrap(moorerr.ErrCryptoFailed, "unknown op %q", req.kind)}
	}
}
