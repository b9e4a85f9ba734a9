package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/castnote/castnote/pkg/logger"
)

// SubmitCmd submits one episode and generates its spikes.
func SubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <source-url>",
		Short: "Submit an episode and generate content for it",
		Long: "Submit registers a media source for transcription, waits for the " +
			"transcript, then generates each configured spike, streaming content " +
			"to the terminal as it is produced.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, args[0])
		},
	}

	cmd.Flags().StringSlice("spikes", nil, "Spike kinds to generate (defaults to configuration)")
	cmd.Flags().String("language", "", "Content language (defaults to configuration)")
	cmd.Flags().Bool("no-stream", false, "Poll for finished content instead of streaming")

	return cmd
}

func runSubmit(cmd *cobra.Command, sourceURL string) error {
	ctx := cmd.Context()
	log := logger.FromContext(ctx)

	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}

	kinds, err := resolveKinds(cmd, rt)
	if err != nil {
		return err
	}
	language, err := resolveLanguage(cmd, rt)
	if err != nil {
		return err
	}
	streaming, err := resolveStreaming(cmd, rt)
	if err != nil {
		return err
	}
	format := resolveOutputFormat(cmd)

	log.Info("submitting episode", "source_url", sourceURL)
	job, err := rt.client.SubmitJob(ctx, sourceURL, language)
	if err != nil {
		return err
	}

	// Submission is idempotent remotely, so a resubmitted episode may map
	// to a job with prior spike state worth resuming.
	rec := rt.loadOrCreateRecord(ctx, job.JobID, sourceURL, language)
	if err := rt.store.Save(ctx, rec); err != nil {
		return err
	}
	log.Info("job accepted", "job_id", job.JobID, "status", job.Status)

	if !job.Status.Ready() {
		log.Info("waiting for transcript", "job_id", job.JobID)
		if err := rt.waitForTranscript(ctx, job.JobID); err != nil {
			return fmt.Errorf("transcript never became ready: %w", err)
		}
	}

	echo := streaming && format == OutputFormatText
	orch := rt.newOrchestrator(ctx, streaming, echo)
	outcomes := orch.GenerateAll(ctx, rec, kinds)

	report := buildJobReport(rec, outcomes)
	if err := printJobReport(format, report, echo); err != nil {
		return err
	}
	if failed := failedSpikes(outcomes); failed > 0 {
		return fmt.Errorf("%d of %d spikes failed", failed, len(outcomes))
	}
	return nil
}
