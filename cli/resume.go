package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/castnote/castnote/engine/core"
	"github.com/castnote/castnote/pkg/logger"
)

// ResumeCmd re-drives an interrupted job from its ledger record.
func ResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <job-id>",
		Short: "Resume spike generation for a previously submitted job",
		Long: "Resume reloads a job's local record and drives each spike forward " +
			"from where it stopped: interrupted streams reattach at their last " +
			"event, errored spikes are recreated, and complete spikes are " +
			"refetched from the remote cache.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResume(cmd, core.ID(args[0]))
		},
	}

	cmd.Flags().StringSlice("spikes", nil, "Spike kinds to generate (defaults to configuration)")
	cmd.Flags().Bool("no-stream", false, "Poll for finished content instead of streaming")

	return cmd
}

func runResume(cmd *cobra.Command, jobID core.ID) error {
	ctx := cmd.Context()
	log := logger.FromContext(ctx)

	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}

	rec, err := rt.store.Load(ctx, jobID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no local record for job %s; use submit first", jobID)
	}

	kinds, err := resolveKinds(cmd, rt)
	if err != nil {
		return err
	}
	streaming, err := resolveStreaming(cmd, rt)
	if err != nil {
		return err
	}
	format := resolveOutputFormat(cmd)

	// Make sure the transcript is still available before touching spikes;
	// a job can expire or fail remotely between sessions.
	job, err := rt.client.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == core.JobStatusFailed {
		return fmt.Errorf("job %s failed remotely and cannot be resumed", jobID)
	}
	if !job.Status.Ready() {
		log.Info("waiting for transcript", "job_id", jobID, "status", job.Status)
		if err := rt.waitForTranscript(ctx, jobID); err != nil {
			return fmt.Errorf("transcript never became ready: %w", err)
		}
	}

	log.Info("resuming job", "job_id", jobID, "kinds", kinds)
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
