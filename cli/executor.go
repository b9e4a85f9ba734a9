package cli

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/castnote/castnote/engine/core"
	"github.com/castnote/castnote/engine/ledger"
	"github.com/castnote/castnote/engine/spike"
	"github.com/castnote/castnote/pkg/config"
	"github.com/castnote/castnote/pkg/logger"
	"github.com/castnote/castnote/pkg/poll"
)

// runtime bundles the collaborators every command needs.
type runtime struct {
	cfg    *config.Config
	client *APIClient
	store  *ledger.Store
}

func buildRuntime(ctx context.Context) (*runtime, error) {
	cfg := config.FromContext(ctx)

	client, err := NewAPIClient(cfg)
	if err != nil {
		return nil, err
	}

	return &runtime{
		cfg:    cfg,
		client: client,
		store:  ledger.NewStore(afero.NewOsFs(), cfg.Ledger.Dir),
	}, nil
}

// newOrchestrator builds a spike orchestrator wired to this runtime.
// echoChunks enables live terminal echo of streamed fragments; batch
// workers keep it off so interleaved output stays readable.
func (r *runtime) newOrchestrator(ctx context.Context, streaming, echoChunks bool) *spike.Orchestrator {
	log := logger.FromContext(ctx)

	opts := []spike.Option{
		spike.WithIdleTimeout(r.cfg.Stream.IdleTimeout),
		spike.WithStreaming(streaming),
		spike.WithPollPolicy(poll.Policy{
			Interval:    r.cfg.Poll.Interval,
			MaxAttempts: r.cfg.Poll.MaxAttempts,
		}),
		spike.WithStreamErrorHandler(func(kind, msg string) {
			log.Warn("producer reported an inline error", "kind", kind, "message", msg)
		}),
	}
	if echoChunks {
		opts = append(opts, spike.WithChunkHandler(func(_, text string) {
			fmt.Print(text)
		}))
	}
	return spike.New(r.client, r.store, opts...)
}

// waitForTranscript polls the job until its transcript is ready.
func (r *runtime) waitForTranscript(ctx context.Context, jobID core.ID) error {
	log := logger.FromContext(ctx)

	policy := poll.Policy{
		Interval:    r.cfg.Poll.Interval,
		MaxAttempts: r.cfg.Poll.MaxAttempts,
	}
	return poll.Until(ctx, policy, func(ctx context.Context) error {
		job, err := r.client.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Status == core.JobStatusFailed {
			return fmt.Errorf("remote transcription failed for job %s", jobID)
		}
		if !job.Status.Ready() {
			log.Debug("transcript not ready yet", "job_id", jobID, "status", job.Status)
			return poll.ErrNotReady
		}
		return nil
	})
}

// loadOrCreateRecord reads the ledger record for a job, falling back to a
// fresh record when the read fails. Losing resume state degrades to
// re-creation, which is safe because the creation endpoint is idempotent.
func (r *runtime) loadOrCreateRecord(ctx context.Context, jobID core.ID, sourceRef, language string) *ledger.JobRecord {
	rec, err := r.store.Load(ctx, jobID)
	if err != nil {
		logger.FromContext(ctx).Warn("ledger read failed, starting from a fresh record",
			"job_id", jobID, "error", err)
	}
	if rec == nil {
		rec = ledger.NewJobRecord(jobID, sourceRef, language)
	}
	return rec
}

// resolveKinds reads the --spikes flag, falling back to the configured
// kinds. Each resolver below only touches the flag it is named after, so
// commands register exactly the flags they support.
func resolveKinds(cmd *cobra.Command, rt *runtime) ([]string, error) {
	kinds, err := cmd.Flags().GetStringSlice("spikes")
	if err != nil {
		return nil, err
	}
	if len(kinds) == 0 {
		kinds = rt.cfg.Spikes.Kinds
	}
	return kinds, nil
}

// resolveLanguage reads the --language flag, falling back to the
// configured language.
func resolveLanguage(cmd *cobra.Command, rt *runtime) (string, error) {
	language, err := cmd.Flags().GetString("language")
	if err != nil {
		return "", err
	}
	if language == "" {
		language = rt.cfg.Spikes.Language
	}
	return language, nil
}

// resolveStreaming combines the --no-stream flag with the configured
// streaming switch.
func resolveStreaming(cmd *cobra.Command, rt *runtime) (bool, error) {
	noStream, err := cmd.Flags().GetBool("no-stream")
	if err != nil {
		return false, err
	}
	return rt.cfg.Stream.Enabled && !noStream, nil
}

// spikeReport is the per-spike slice of a command's output.
type spikeReport struct {
	Kind    string `json:"kind"`
	Status  string `json:"status"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// jobReport is the output of submit/resume for one job.
type jobReport struct {
	JobID     core.ID       `json:"job_id"`
	SourceRef string        `json:"source_ref"`
	Spikes    []spikeReport `json:"spikes"`
}

func buildJobReport(rec *ledger.JobRecord, outcomes []spike.Outcome) *jobReport {
	report := &jobReport{
		JobID:     rec.JobID,
		SourceRef: rec.SourceRef,
		Spikes:    make([]spikeReport, 0, len(outcomes)),
	}
	for _, out := range outcomes {
		sr := spikeReport{Kind: out.Kind, Content: out.Content}
		if sp := rec.Spike(out.Kind); sp != nil {
			sr.Status = string(sp.Status)
		}
		if out.Err != nil {
			sr.Error = out.Err.Error()
		}
		report.Spikes = append(report.Spikes, sr)
	}
	return report
}

func failedSpikes(outcomes []spike.Outcome) int {
	failed := 0
	for _, out := range outcomes {
		if out.Err != nil {
			failed++
		}
	}
	return failed
}

// printJobReport renders a job report in the selected format. In text
// mode, streamed content was already echoed live, so only non-echoed
// content and statuses are shown.
func printJobReport(format string, report *jobReport, echoed bool) error {
	if format == OutputFormatJSON {
		return printJSON(report)
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("Job %s", report.JobID)))
	for _, sr := range report.Spikes {
		switch {
		case sr.Error != "":
			fmt.Printf("%s %s: %s\n", errorStyle.Render("✗"), sr.Kind, sr.Error)
			if sr.Content != "" {
				fmt.Println(dimStyle.Render("partial content:"))
				fmt.Print(sr.Content)
			}
		default:
			fmt.Printf("%s %s\n", successStyle.Render("✓"), sr.Kind)
			if !echoed && sr.Content != "" {
				fmt.Print(sr.Content)
			}
		}
	}
	return nil
}
