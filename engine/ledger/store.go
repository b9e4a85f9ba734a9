package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"

	"github.com/castnote/castnote/engine/core"
	"github.com/castnote/castnote/pkg/logger"
)

// Store keeps one JSON file per job under a single directory. Records are
// written whole; there are no partial updates. Concurrent writers to the
// same job are excluded via an advisory file lock, not merged: the
// orchestrator is the only sequencer of read-modify-write cycles, and two
// resume attempts on the same job at once are not supported.
type Store struct {
	fs  afero.Fs
	dir string
	now func() time.Time
}

// NewStore creates a ledger store rooted at dir.
func NewStore(fs afero.Fs, dir string) *Store {
	return &Store{fs: fs, dir: dir, now: time.Now}
}

// Save persists the whole record atomically, refreshing UpdatedAt.
func (s *Store) Save(ctx context.Context, rec *JobRecord) error {
	log := logger.FromContext(ctx)

	if rec == nil || rec.JobID == "" {
		return &core.LedgerIOError{Op: "save", Err: fmt.Errorf("record has no job id")}
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return &core.LedgerIOError{JobID: rec.JobID, Op: "save", Err: err}
	}

	unlock, err := s.lock(rec.JobID)
	if err != nil {
		return &core.LedgerIOError{JobID: rec.JobID, Op: "save", Err: err}
	}
	defer unlock()

	rec.UpdatedAt = s.now().UTC()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return &core.LedgerIOError{JobID: rec.JobID, Op: "save", Err: err}
	}

	// Write to a sibling temp file and rename so readers never observe a
	// half-written record.
	path := s.recordPath(rec.JobID)
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return &core.LedgerIOError{JobID: rec.JobID, Op: "save", Err: err}
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		return &core.LedgerIOError{JobID: rec.JobID, Op: "save", Err: err}
	}

	log.Debug("ledger record saved", "job_id", rec.JobID, "spikes", len(rec.Spikes))
	return nil
}

// Load reads the record for jobID. A missing record returns (nil, nil);
// only actual read or decode failures produce an error.
func (s *Store) Load(ctx context.Context, jobID core.ID) (*JobRecord, error) {
	data, err := afero.ReadFile(s.fs, s.recordPath(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &core.LedgerIOError{JobID: jobID, Op: "load", Err: err}
	}

	var rec JobRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &core.LedgerIOError{JobID: jobID, Op: "load", Err: err}
	}

	logger.FromContext(ctx).Debug("ledger record loaded", "job_id", jobID, "spikes", len(rec.Spikes))
	return &rec, nil
}

func (s *Store) recordPath(jobID core.ID) string {
	return filepath.Join(s.dir, jobID.String()+".json")
}

// lock takes a per-job advisory lock when the store is backed by the real
// filesystem. In-memory filesystems (tests) have no lockable paths, so the
// orchestrator's own sequencing is the only guard there.
func (s *Store) lock(jobID core.ID) (func(), error) {
	if _, ok := s.fs.(*afero.OsFs); !ok {
		return func() {}, nil
	}
	fl := flock.New(s.recordPath(jobID) + ".lock")
	if err := fl.Lock(); err != nil {
		return nil, err
	}
	return func() {
		_ = fl.Unlock()
	}, nil
}
