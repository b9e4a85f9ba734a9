package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/castnote/castnote/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openString(raw, contentType string) OpenFunc {
	return func(context.Context, string) (*Handle, error) {
		return &Handle{
			Body:        io.NopCloser(strings.NewReader(raw)),
			ContentType: contentType,
		}, nil
	}
}

func TestSession_Run(t *testing.T) {
	t.Run("Should append chunk events in order", func(t *testing.T) {
		raw := "event: chunk\ndata: ab\n\nevent: chunk\ndata: cd\n\nevent: done\ndata: [DONE]\n\n"
		s := &Session{}

		res, err := s.Run(t.Context(), openString(raw, "text/event-stream"), "")

		require.NoError(t, err)
		assert.Equal(t, "abcd\n", res.Content)
	})

	t.Run("Should extract text fields from JSON chunk payloads", func(t *testing.T) {
		raw := "event: chunk\ndata: {\"content\":\"ab\"}\n\nevent: delta\ndata: {\"content\":\"cd\"}\n\n"
		s := &Session{}

		res, err := s.Run(t.Context(), openString(raw, "text/event-stream"), "")

		require.NoError(t, err)
		assert.Equal(t, "abcd\n", res.Content)
	})

	t.Run("Should replace accumulated content when a complete event arrives", func(t *testing.T) {
		raw := "event: chunk\ndata: partial\n\nevent: complete\ndata: {\"content\":\"whole answer\"}\n\nevent: done\ndata: [DONE]\n\n"
		s := &Session{}

		res, err := s.Run(t.Context(), openString(raw, "text/event-stream"), "")

		require.NoError(t, err)
		assert.Equal(t, "whole answer\n", res.Content)
	})

	t.Run("Should use a done payload as content when nothing was accumulated", func(t *testing.T) {
		raw := "event: done\ndata: {\"content\":\"final summary\"}\n\n"
		s := &Session{}

		res, err := s.Run(t.Context(), openString(raw, "text/event-stream"), "")

		require.NoError(t, err)
		assert.Equal(t, "final summary\n", res.Content)
	})

	t.Run("Should ignore the done sentinel payload", func(t *testing.T) {
		raw := "event: done\ndata: [DONE]\n\n"
		s := &Session{}

		res, err := s.Run(t.Context(), openString(raw, "text/event-stream"), "")

		require.NoError(t, err)
		assert.Empty(t, res.Content)
	})

	t.Run("Should track the most recent non-empty event id", func(t *testing.T) {
		raw := "id: 41\ndata: a\n\nid: 42\ndata: b\n\ndata: c\n\n"
		s := &Session{}

		res, err := s.Run(t.Context(), openString(raw, "text/event-stream"), "")

		require.NoError(t, err)
		assert.Equal(t, "42", res.LastEventID)
	})

	t.Run("Should keep the resume cursor when the reconnect repeats it", func(t *testing.T) {
		raw := "id: 42\ndata: resumed\n\n"
		var gotCursor string
		open := func(_ context.Context, lastEventID string) (*Handle, error) {
			gotCursor = lastEventID
			return &Handle{Body: io.NopCloser(strings.NewReader(raw)), ContentType: "text/event-stream"}, nil
		}
		s := &Session{}

		res, err := s.Run(t.Context(), open, "42")

		require.NoError(t, err)
		assert.Equal(t, "42", gotCursor)
		assert.Equal(t, "42", res.LastEventID)
		assert.Equal(t, "resumed\n", res.Content)
	})

	t.Run("Should surface inline error events without aborting", func(t *testing.T) {
		raw := "event: error\ndata: {\"message\":\"upstream hiccup\"}\n\nevent: chunk\ndata: after\n\n"
		var notices []string
		s := &Session{OnStreamError: func(msg string) { notices = append(notices, msg) }}

		res, err := s.Run(t.Context(), openString(raw, "text/event-stream"), "")

		require.NoError(t, err)
		assert.Equal(t, []string{"upstream hiccup"}, notices)
		assert.Equal(t, "after\n", res.Content)
	})

	t.Run("Should wrap a one-shot JSON response as a complete event", func(t *testing.T) {
		raw := `{"content":"cached result"}`
		s := &Session{}

		res, err := s.Run(t.Context(), openString(raw, "application/json"), "")

		require.NoError(t, err)
		assert.Equal(t, "cached result\n", res.Content)
	})

	t.Run("Should time out when the producer goes silent", func(t *testing.T) {
		pr, pw := io.Pipe()
		open := func(context.Context, string) (*Handle, error) {
			return &Handle{Body: pr, ContentType: "text/event-stream"}, nil
		}
		go func() {
			pw.Write([]byte("event: chunk\ndata: before silence\n\n"))
			// Never write again; the watchdog must fire.
		}()
		s := &Session{IdleTimeout: 50 * time.Millisecond}

		res, err := s.Run(t.Context(), open, "")

		require.Error(t, err)
		assert.True(t, core.IsIdleTimeout(err))
		assert.Equal(t, "before silence\n", res.Content)
	})

	t.Run("Should stop promptly on caller cancellation and keep partial content", func(t *testing.T) {
		pr, pw := io.Pipe()
		var bodyClosed atomic.Bool
		body := &closeTracker{ReadCloser: pr, closed: &bodyClosed}
		open := func(context.Context, string) (*Handle, error) {
			return &Handle{Body: body, ContentType: "text/event-stream"}, nil
		}

		ctx, cancel := context.WithCancel(t.Context())
		go func() {
			pw.Write([]byte("data: partial\n\n"))
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		s := &Session{IdleTimeout: time.Minute}

		res, err := s.Run(ctx, open, "")

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, "partial\n", res.Content)
		assert.True(t, bodyClosed.Load())
	})

	t.Run("Should wrap open failures as transport errors", func(t *testing.T) {
		open := func(context.Context, string) (*Handle, error) {
			return nil, errors.New("connection refused")
		}
		s := &Session{}

		res, err := s.Run(t.Context(), open, "cur-1")

		require.Error(t, err)
		assert.True(t, core.IsTransport(err))
		// The cursor survives a failed reconnect.
		assert.Equal(t, "cur-1", res.LastEventID)
	})

	t.Run("Should pass malformed payloads through as raw text", func(t *testing.T) {
		raw := "event: chunk\ndata: {not json at all\n\n"
		s := &Session{}

		res, err := s.Run(t.Context(), openString(raw, "text/event-stream"), "")

		require.NoError(t, err)
		assert.Equal(t, "{not json at all\n", res.Content)
	})

	t.Run("Should echo chunks through OnChunk", func(t *testing.T) {
		raw := "data: a\n\ndata: b\n\n"
		var seen []string
		s := &Session{OnChunk: func(text string) { seen = append(seen, text) }}

		_, err := s.Run(t.Context(), openString(raw, "text/event-stream"), "")

		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, seen)
	})
}

type closeTracker struct {
	io.ReadCloser
	closed *atomic.Bool
}

func (c *closeTracker) Close() error {
	c.closed.Store(true)
	return c.ReadCloser.Close()
}
