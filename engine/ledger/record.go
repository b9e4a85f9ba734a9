// Package ledger persists one durable record per job so interrupted runs
// can be resumed after a crash or user abort.
package ledger

import (
	"fmt"
	"time"

	"github.com/castnote/castnote/engine/core"
)

// SpikeStatus is the local lifecycle state of one spike.
type SpikeStatus string

const (
	SpikePending   SpikeStatus = "pending"
	SpikeStreaming SpikeStatus = "streaming"
	SpikeComplete  SpikeStatus = "complete"
	SpikeError     SpikeStatus = "error"
)

// canAdvanceTo enforces the one-way lifecycle: pending -> streaming ->
// complete, with error reachable from anywhere. A status never regresses.
func (s SpikeStatus) canAdvanceTo(next SpikeStatus) bool {
	if next == SpikeError {
		return true
	}
	switch s {
	case SpikePending:
		return next == SpikeStreaming || next == SpikeComplete
	case SpikeStreaming:
		return next == SpikeComplete
	case SpikeError:
		// Error is re-attempted through a fresh creation, which resets the
		// record through Reset, not through Advance.
		return false
	case SpikeComplete:
		return false
	}
	return false
}

// SpikeRecord tracks one content artifact of a job.
type SpikeRecord struct {
	SpikeID     core.ID     `json:"spike_id,omitempty"`
	Kind        string      `json:"kind"`
	Status      SpikeStatus `json:"status"`
	LastEventID string      `json:"last_event_id,omitempty"`
}

// Advance moves the spike to next, rejecting regressions.
func (sp *SpikeRecord) Advance(next SpikeStatus) error {
	if sp.Status == next {
		return nil
	}
	if !sp.Status.canAdvanceTo(next) {
		return fmt.Errorf("spike %q cannot move from %s to %s", sp.Kind, sp.Status, next)
	}
	sp.Status = next
	return nil
}

// Reset returns an errored or stale spike to pending for a fresh creation
// attempt. The resume cursor is cleared because the new stream has a new
// identity.
func (sp *SpikeRecord) Reset(spikeID core.ID) {
	sp.SpikeID = spikeID
	sp.Status = SpikePending
	sp.LastEventID = ""
}

// SetCursor records the most recent event id delivered by this spike's own
// stream. A non-empty cursor is replaced, never cleared.
func (sp *SpikeRecord) SetCursor(cursor string) {
	if cursor != "" {
		sp.LastEventID = cursor
	}
}

// JobRecord is the durable state of one top-level submission. Spikes are
// appended in orchestration order and never reordered or removed.
type JobRecord struct {
	JobID     core.ID       `json:"job_id"`
	SourceRef string        `json:"source_ref"`
	Language  string        `json:"language"`
	Spikes    []SpikeRecord `json:"spikes"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewJobRecord creates the initial record for a freshly submitted job.
func NewJobRecord(jobID core.ID, sourceRef, language string) *JobRecord {
	now := time.Now().UTC()
	return &JobRecord{
		JobID:     jobID,
		SourceRef: sourceRef,
		Language:  language,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Spike returns a pointer to the record for kind, or nil when the job has
// no such spike yet.
func (r *JobRecord) Spike(kind string) *SpikeRecord {
	for i := range r.Spikes {
		if r.Spikes[i].Kind == kind {
			return &r.Spikes[i]
		}
	}
	return nil
}

// AppendSpike adds a new spike record and returns a pointer to it.
func (r *JobRecord) AppendSpike(spikeID core.ID, kind string) *SpikeRecord {
	r.Spikes = append(r.Spikes, SpikeRecord{
		SpikeID: spikeID,
		Kind:    kind,
		Status:  SpikePending,
	})
	return &r.Spikes[len(r.Spikes)-1]
}
