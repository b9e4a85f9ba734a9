package stream

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/castnote/castnote/engine/core"
	"github.com/castnote/castnote/pkg/logger"
)

// DefaultIdleTimeout is how long a session waits for the next event before
// declaring the producer silent.
const DefaultIdleTimeout = 30 * time.Second

// doneSentinel is the payload producers send on done/end events that carry
// no content.
const doneSentinel = "[DONE]"

// contentFieldPriority is the ordered list of candidate keys checked when
// extracting text from an event payload.
var contentFieldPriority = []string{"content", "markdown"}

// Handle is an open response stream handed to a session. ContentType
// distinguishes framed event streams from one-shot JSON payloads.
type Handle struct {
	Body        io.ReadCloser
	ContentType string
}

// OpenFunc opens (or reopens) the underlying stream. lastEventID is empty
// on first attach and carries the resume cursor on reconnects.
type OpenFunc func(ctx context.Context, lastEventID string) (*Handle, error)

// Result is the outcome of one session run. LastEventID is the resume
// cursor for a future reconnect; Content is the accumulated text. A
// Result is returned even when the run fails, so partial content is never
// discarded.
type Result struct {
	LastEventID string
	Content     string
}

// Session consumes one event stream to completion.
type Session struct {
	IdleTimeout time.Duration
	// OnStreamError is invoked for inline "error" events. They do not
	// abort the session; more events may follow.
	OnStreamError func(msg string)
	// OnChunk is invoked with each appended text fragment, for live
	// terminal echo. Optional.
	OnChunk func(text string)
}

// Run opens the stream via open, passing cursor as the resume hint, and
// consumes events until the producer finishes, goes silent past the idle
// window, or ctx is canceled. The reader resource is released on every
// exit path.
func (s *Session) Run(ctx context.Context, open OpenFunc, cursor string) (*Result, error) {
	log := logger.FromContext(ctx)

	idle := s.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}

	handle, err := open(ctx, cursor)
	if err != nil {
		return &Result{LastEventID: cursor}, core.NewTransportError("stream open", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Closing the body is what actually unblocks an in-flight read, both
	// for caller cancellation and for the idle watchdog.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		<-ctx.Done()
		handle.Body.Close()
	}()
	defer func() {
		cancel()
		<-closed
	}()

	acc := &accumulator{cursor: cursor, session: s}

	if !isEventStream(handle.ContentType) {
		// The producer answered with a finished payload instead of a
		// stream. Treat it as a degenerate one-shot "complete" event.
		payload, readErr := io.ReadAll(handle.Body)
		if readErr != nil {
			return acc.result(), core.NewTransportError("stream read", readErr)
		}
		acc.dispatch(Event{Type: EventComplete, Data: string(payload)})
		return acc.result(), nil
	}

	events := make(chan Event)
	readErrs := make(chan error, 1)
	go func() {
		reader := NewReader(handle.Body)
		for {
			ev, err := reader.Next()
			if err != nil {
				readErrs <- err
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	watchdog := time.NewTimer(idle)
	defer watchdog.Stop()

	for {
		select {
		case ev := <-events:
			// Only producer silence counts toward the idle window, so the
			// deadline resets before the event is processed.
			watchdog.Reset(idle)

			if done := acc.dispatch(ev); done {
				return acc.result(), nil
			}

		case err := <-readErrs:
			if err == io.EOF {
				return acc.result(), nil
			}
			if ctx.Err() != nil {
				return acc.result(), ctx.Err()
			}
			return acc.result(), core.NewTransportError("stream read", err)

		case <-watchdog.C:
			log.Warn("stream producer went silent", "idle", idle)
			cancel()
			return acc.result(), &core.IdleTimeoutError{Idle: idle}

		case <-ctx.Done():
			return acc.result(), ctx.Err()
		}
	}
}

// accumulator applies the per-event-type dispatch policy.
type accumulator struct {
	session *Session
	content strings.Builder
	cursor  string
}

// dispatch processes one event and reports whether the stream is done.
func (a *accumulator) dispatch(ev Event) bool {
	if ev.ID != "" {
		a.cursor = ev.ID
	}

	switch ev.Type {
	case EventComplete:
		// The whole answer arrived at once; it replaces anything
		// accumulated so far.
		a.content.Reset()
		a.append(core.FirstTextField(ev.Data, contentFieldPriority...))
	case "chunk", "delta", "":
		a.append(core.FirstTextField(ev.Data, contentFieldPriority...))
	case "done", "end":
		if ev.Data != "" && ev.Data != doneSentinel && a.content.Len() == 0 {
			a.append(core.FirstTextField(ev.Data, contentFieldPriority...))
		}
		return true
	case "error":
		if a.session.OnStreamError != nil {
			a.session.OnStreamError(core.FirstTextField(ev.Data, "message", "error"))
		}
	default:
		// Unknown event types are skipped; the producer may add types this
		// client does not know about.
	}
	return false
}

func (a *accumulator) append(text string) {
	if text == "" {
		return
	}
	a.content.WriteString(text)
	if a.session.OnChunk != nil {
		a.session.OnChunk(text)
	}
}

func (a *accumulator) result() *Result {
	content := a.content.String()
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return &Result{LastEventID: a.cursor, Content: content}
}

func isEventStream(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/event-stream")
}
