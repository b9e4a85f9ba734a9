// Package spike drives generation of one content artifact ("spike") per
// prompt kind for a job, persisting every lifecycle transition through the
// job ledger so interrupted work can be resumed.
package spike

import (
	"context"
	"fmt"
	"time"

	"github.com/castnote/castnote/engine/core"
	"github.com/castnote/castnote/engine/ledger"
	"github.com/castnote/castnote/engine/stream"
	"github.com/castnote/castnote/pkg/logger"
	"github.com/castnote/castnote/pkg/poll"
)

// CreateResult is the response of the idempotent create-or-fetch endpoint.
// Exactly one of Content and SpikeID is meaningful: cached final content,
// or a handle that must be streamed.
type CreateResult struct {
	Content string
	SpikeID core.ID
}

// API is the remote surface the orchestrator needs. Creation is idempotent
// on (jobID, kind, language): repeating a call is always safe.
type API interface {
	CreateSpike(ctx context.Context, jobID core.ID, kind, language string) (*CreateResult, error)
	OpenSpikeStream(ctx context.Context, spikeID core.ID, lastEventID string) (*stream.Handle, error)
}

// Outcome is the per-kind result of an orchestration run. Err is set when
// the spike failed; Content holds whatever was produced either way.
type Outcome struct {
	Kind    string
	Content string
	Err     error
}

// Orchestrator runs the per-spike state machine.
type Orchestrator struct {
	api           API
	store         *ledger.Store
	idleTimeout   time.Duration
	streaming     bool
	pollPolicy    poll.Policy
	onChunk       func(kind, text string)
	onStreamError func(kind, msg string)
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithIdleTimeout sets the stream idle window.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.idleTimeout = d }
}

// WithStreaming toggles live streaming. When disabled, spikes are polled
// through the idempotent creation endpoint until content is ready.
func WithStreaming(enabled bool) Option {
	return func(o *Orchestrator) { o.streaming = enabled }
}

// WithPollPolicy sets the policy used in non-streaming mode.
func WithPollPolicy(p poll.Policy) Option {
	return func(o *Orchestrator) { o.pollPolicy = p }
}

// WithChunkHandler registers a callback for live content fragments.
func WithChunkHandler(fn func(kind, text string)) Option {
	return func(o *Orchestrator) { o.onChunk = fn }
}

// WithStreamErrorHandler registers a callback for inline stream error
// notices.
func WithStreamErrorHandler(fn func(kind, msg string)) Option {
	return func(o *Orchestrator) { o.onStreamError = fn }
}

// New creates an orchestrator.
func New(api API, store *ledger.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:         api,
		store:       store,
		idleTimeout: stream.DefaultIdleTimeout,
		streaming:   true,
		pollPolicy:  poll.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GenerateAll drives every kind sequentially, persisting through the
// ledger between spikes. One spike's failure never aborts its siblings.
func (o *Orchestrator) GenerateAll(ctx context.Context, rec *ledger.JobRecord, kinds []string) []Outcome {
	outcomes := make([]Outcome, 0, len(kinds))
	for _, kind := range kinds {
		content, err := o.Generate(ctx, rec, kind)
		outcomes = append(outcomes, Outcome{Kind: kind, Content: content, Err: err})
		if ctx.Err() != nil {
			break
		}
	}
	return outcomes
}

// Generate drives one spike to completion, choosing the fresh or resume
// path based on the ledger record. Partial content produced before a
// failure is returned alongside the error.
func (o *Orchestrator) Generate(ctx context.Context, rec *ledger.JobRecord, kind string) (string, error) {
	log := logger.FromContext(ctx)

	sp := rec.Spike(kind)
	if sp == nil {
		log.Debug("spike has no prior state, taking fresh path", "job_id", rec.JobID, "kind", kind)
		return o.freshPath(ctx, rec, kind)
	}

	switch sp.Status {
	case ledger.SpikeComplete:
		// The remote caches finished spikes, so a refetch through the
		// idempotent endpoint is cheap and avoids re-streaming.
		log.Debug("spike already complete, refetching", "job_id", rec.JobID, "kind", kind)
		return o.refetch(ctx, rec, kind)
	case ledger.SpikeStreaming:
		log.Info("reattaching to interrupted spike stream",
			"job_id", rec.JobID, "kind", kind, "cursor", sp.LastEventID)
		return o.consume(ctx, rec, sp, sp.LastEventID)
	case ledger.SpikePending, ledger.SpikeError:
		// Re-issuing creation is safe: the endpoint is idempotent on
		// (jobID, kind, language).
		log.Debug("re-issuing creation for spike", "job_id", rec.JobID, "kind", kind, "status", sp.Status)
		return o.freshPath(ctx, rec, kind)
	default:
		return "", o.spikeErr(rec.JobID, kind, fmt.Errorf("unknown spike status %q", sp.Status))
	}
}

// freshPath issues the idempotent creation call and either returns cached
// content or sets up streaming for the returned handle.
func (o *Orchestrator) freshPath(ctx context.Context, rec *ledger.JobRecord, kind string) (string, error) {
	res, err := o.api.CreateSpike(ctx, rec.JobID, kind, rec.Language)
	if err != nil {
		return "", o.spikeErr(rec.JobID, kind, err)
	}

	sp := rec.Spike(kind)

	if res.Content != "" {
		// The remote already had the final content; no streaming needed.
		if sp == nil {
			sp = rec.AppendSpike(res.SpikeID, kind)
		} else {
			sp.Reset(res.SpikeID)
		}
		if err := sp.Advance(ledger.SpikeComplete); err != nil {
			return "", o.spikeErr(rec.JobID, kind, err)
		}
		if err := o.store.Save(ctx, rec); err != nil {
			return res.Content, err
		}
		return res.Content, nil
	}

	if res.SpikeID == "" {
		return "", o.spikeErr(rec.JobID, kind, fmt.Errorf("creation returned neither content nor a handle"))
	}

	if sp == nil {
		sp = rec.AppendSpike(res.SpikeID, kind)
	} else {
		sp.Reset(res.SpikeID)
	}
	if err := o.store.Save(ctx, rec); err != nil {
		return "", err
	}

	return o.consume(ctx, rec, sp, "")
}

// refetch serves a complete spike from the remote cache.
func (o *Orchestrator) refetch(ctx context.Context, rec *ledger.JobRecord, kind string) (string, error) {
	res, err := o.api.CreateSpike(ctx, rec.JobID, kind, rec.Language)
	if err != nil {
		return "", o.spikeErr(rec.JobID, kind, err)
	}
	if res.Content != "" {
		return res.Content, nil
	}
	if res.SpikeID == "" {
		return "", o.spikeErr(rec.JobID, kind, fmt.Errorf("creation returned neither content nor a handle"))
	}

	// The remote no longer has cached content for a spike the ledger
	// believes is complete. Resume its stream rather than failing.
	sp := rec.Spike(kind)
	logger.FromContext(ctx).Warn("remote lost cached content for complete spike, re-streaming",
		"job_id", rec.JobID, "kind", kind)
	sp.Reset(res.SpikeID)
	if err := o.store.Save(ctx, rec); err != nil {
		return "", err
	}
	return o.consume(ctx, rec, sp, "")
}

// consume marks the spike streaming, persists, then consumes its stream or
// polls for its content depending on mode. Every transition is persisted
// before the network call that follows it.
func (o *Orchestrator) consume(ctx context.Context, rec *ledger.JobRecord, sp *ledger.SpikeRecord, cursor string) (string, error) {
	if err := sp.Advance(ledger.SpikeStreaming); err != nil {
		return "", o.spikeErr(rec.JobID, sp.Kind, err)
	}
	if err := o.store.Save(ctx, rec); err != nil {
		return "", err
	}

	var content string
	var runErr error
	if o.streaming {
		content, runErr = o.runSession(ctx, rec, sp, cursor)
	} else {
		content, runErr = o.pollContent(ctx, rec, sp.Kind)
	}

	if runErr != nil {
		// Whatever was accumulated is a partial outcome, never silently
		// promoted to complete.
		if err := sp.Advance(ledger.SpikeError); err != nil {
			return content, o.spikeErr(rec.JobID, sp.Kind, err)
		}
		if err := o.store.Save(ctx, rec); err != nil {
			return content, err
		}
		return content, o.spikeErr(rec.JobID, sp.Kind, runErr)
	}

	if err := sp.Advance(ledger.SpikeComplete); err != nil {
		return content, o.spikeErr(rec.JobID, sp.Kind, err)
	}
	if err := o.store.Save(ctx, rec); err != nil {
		return content, err
	}
	return content, nil
}

func (o *Orchestrator) runSession(ctx context.Context, rec *ledger.JobRecord, sp *ledger.SpikeRecord, cursor string) (string, error) {
	sess := &stream.Session{
		IdleTimeout: o.idleTimeout,
	}
	if o.onChunk != nil {
		kind := sp.Kind
		sess.OnChunk = func(text string) { o.onChunk(kind, text) }
	}
	if o.onStreamError != nil {
		kind := sp.Kind
		sess.OnStreamError = func(msg string) { o.onStreamError(kind, msg) }
	}

	spikeID := sp.SpikeID
	open := func(ctx context.Context, lastEventID string) (*stream.Handle, error) {
		return o.api.OpenSpikeStream(ctx, spikeID, lastEventID)
	}

	res, err := sess.Run(ctx, open, cursor)
	sp.SetCursor(res.LastEventID)
	return res.Content, err
}

// pollContent re-issues the idempotent creation call until the remote
// reports finished content.
func (o *Orchestrator) pollContent(ctx context.Context, rec *ledger.JobRecord, kind string) (string, error) {
	var content string
	err := poll.Until(ctx, o.pollPolicy, func(ctx context.Context) error {
		res, err := o.api.CreateSpike(ctx, rec.JobID, kind, rec.Language)
		if err != nil {
			return err
		}
		if res.Content == "" {
			return poll.ErrNotReady
		}
		content = res.Content
		return nil
	})
	return content, err
}

func (o *Orchestrator) spikeErr(jobID core.ID, kind string, err error) error {
	return &core.SpikeError{JobID: jobID, Kind: kind, Err: err}
}
