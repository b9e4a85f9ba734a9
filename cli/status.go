package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/castnote/castnote/engine/core"
	"github.com/castnote/castnote/engine/ledger"
	"github.com/castnote/castnote/pkg/logger"
)

// StatusCmd shows the merged local and remote view of a job.
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job's progress",
		Long: "Status merges the local ledger record with the remote job state: " +
			"transcription progress from the API, per-spike lifecycle and resume " +
			"cursors from disk.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, core.ID(args[0]))
		},
	}
}

type statusReport struct {
	JobID     core.ID     `json:"job_id"`
	SourceRef string      `json:"source_ref,omitempty"`
	Remote    *Job        `json:"remote,omitempty"`
	Spikes    []spikeView `json:"spikes"`
	Warning   string      `json:"warning,omitempty"`
}

type spikeView struct {
	Kind        string `json:"kind"`
	Status      string `json:"status"`
	LastEventID string `json:"last_event_id,omitempty"`
}

func runStatus(cmd *cobra.Command, jobID core.ID) error {
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

	report := statusReport{JobID: jobID}
	if rec != nil {
		report.SourceRef = rec.SourceRef
		for i := range rec.Spikes {
			sp := &rec.Spikes[i]
			report.Spikes = append(report.Spikes, spikeView{
				Kind:        sp.Kind,
				Status:      string(sp.Status),
				LastEventID: sp.LastEventID,
			})
		}
	}

	// The remote view is best-effort: a purely local answer is still
	// useful when the API is unreachable.
	job, err := rt.client.GetJob(ctx, jobID)
	if err != nil {
		log.Warn("could not fetch remote job state", "job_id", jobID, "error", err)
		report.Warning = fmt.Sprintf("remote state unavailable: %v", err)
	} else {
		report.Remote = job
	}

	if rec == nil && report.Remote == nil {
		return fmt.Errorf("job %s is unknown locally and unreachable remotely", jobID)
	}

	format := resolveOutputFormat(cmd)
	if format == OutputFormatJSON {
		return printJSON(report)
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("Job %s", jobID)))
	if report.SourceRef != "" {
		fmt.Printf("%s %s\n", dimStyle.Render("source:"), report.SourceRef)
	}
	if report.Remote != nil {
		fmt.Printf("%s %s\n", dimStyle.Render("remote:"), renderJobStatus(report.Remote.Status))
		if report.Remote.Title != "" {
			fmt.Printf("%s %s\n", dimStyle.Render("title:"), report.Remote.Title)
		}
	}
	if report.Warning != "" {
		fmt.Printf("%s %s\n", errorStyle.Render("!"), report.Warning)
	}
	if len(report.Spikes) == 0 {
		fmt.Println(dimStyle.Render("no spikes recorded yet"))
		return nil
	}
	for _, sv := range report.Spikes {
		line := fmt.Sprintf("%s %s", sv.Kind, renderSpikeStatus(ledger.SpikeStatus(sv.Status)))
		if sv.LastEventID != "" {
			line += dimStyle.Render(fmt.Sprintf(" (cursor %s)", sv.LastEventID))
		}
		fmt.Println(line)
	}
	return nil
}

func renderJobStatus(status core.JobStatus) string {
	switch {
	case status.Ready():
		return successStyle.Render(string(status))
	case status == core.JobStatusFailed:
		return errorStyle.Render(string(status))
	default:
		return infoStyle.Render(string(status))
	}
}
