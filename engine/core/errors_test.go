package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus(t *testing.T) {
	t.Run("Should report ready only once transcribed", func(t *testing.T) {
		assert.False(t, JobStatusQueued.Ready())
		assert.False(t, JobStatusProcessing.Ready())
		assert.True(t, JobStatusTranscribed.Ready())
		assert.False(t, JobStatusFailed.Ready())
	})

	t.Run("Should treat transcribed and failed as terminal", func(t *testing.T) {
		assert.True(t, JobStatusTranscribed.Terminal())
		assert.True(t, JobStatusFailed.Terminal())
		assert.False(t, JobStatusQueued.Terminal())
		assert.False(t, JobStatusProcessing.Terminal())
	})
}

func TestErrorClassification(t *testing.T) {
	t.Run("Should detect a transport failure through wrapping", func(t *testing.T) {
		base := NewTransportError("GET /jobs/j1", errors.New("connection refused"))
		wrapped := fmt.Errorf("failed to get job: %w", base)

		assert.True(t, IsTransport(wrapped))
		assert.False(t, IsIdleTimeout(wrapped))
		assert.Contains(t, wrapped.Error(), "GET /jobs/j1")
	})

	t.Run("Should detect an idle timeout inside a spike error", func(t *testing.T) {
		err := &SpikeError{
			JobID: "j1",
			Kind:  "summary",
			Err:   &IdleTimeoutError{Idle: 30 * time.Second},
		}

		assert.True(t, IsIdleTimeout(err))
		assert.False(t, IsTransport(err))
	})

	t.Run("Should unwrap the ledger IO cause", func(t *testing.T) {
		cause := errors.New("disk full")
		err := &LedgerIOError{JobID: "j1", Op: "save", Err: cause}

		require.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "save")
		assert.Contains(t, err.Error(), "j1")
	})
}
