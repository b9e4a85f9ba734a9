package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/castnote/castnote/engine/batch"
	"github.com/castnote/castnote/pkg/logger"
)

// BatchCmd submits many episodes from a file with bounded concurrency.
func BatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Submit a list of episodes concurrently",
		Long: "Batch reads source URLs from a file (one per line, blank lines and " +
			"# comments skipped) and drives each through submission, transcription " +
			"and spike generation with a bounded worker pool. One episode's " +
			"failure never aborts the others.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args[0])
		},
	}

	cmd.Flags().IntP("concurrency", "c", 0, "Worker pool size (defaults to configuration)")
	cmd.Flags().StringSlice("spikes", nil, "Spike kinds to generate (defaults to configuration)")
	cmd.Flags().String("language", "", "Content language (defaults to configuration)")
	cmd.Flags().Bool("no-stream", false, "Poll for finished content instead of streaming")

	return cmd
}

func runBatch(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()
	log := logger.FromContext(ctx)

	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}

	sources, err := readSourceList(path)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no source URLs found in %s", path)
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
	concurrency, err := cmd.Flags().GetInt("concurrency")
	if err != nil {
		return err
	}
	if concurrency <= 0 {
		concurrency = rt.cfg.Batch.Concurrency
	}
	format := resolveOutputFormat(cmd)

	log.Info("starting batch", "items", len(sources), "concurrency", concurrency)

	// Chunk echo stays off: interleaved streams from parallel workers
	// would be unreadable.
	results := batch.Run(ctx, sources, concurrency, func(ctx context.Context, sourceURL string) (*jobReport, error) {
		return rt.processOne(ctx, sourceURL, kinds, language, streaming)
	})

	return printBatchResults(format, sources, results)
}

// processOne drives a single episode end to end: submit, wait for the
// transcript, generate every spike. Used by batch workers.
func (r *runtime) processOne(ctx context.Context, sourceURL string, kinds []string, language string, streaming bool) (*jobReport, error) {
	log := logger.FromContext(ctx)

	job, err := r.client.SubmitJob(ctx, sourceURL, language)
	if err != nil {
		return nil, err
	}

	// A resubmitted URL maps to the same job, so prior spike state is
	// picked up rather than regenerated from scratch.
	rec := r.loadOrCreateRecord(ctx, job.JobID, sourceURL, language)
	if err := r.store.Save(ctx, rec); err != nil {
		return nil, err
	}

	if !job.Status.Ready() {
		if err := r.waitForTranscript(ctx, job.JobID); err != nil {
			return nil, fmt.Errorf("transcript never became ready: %w", err)
		}
	}

	orch := r.newOrchestrator(ctx, streaming, false)
	outcomes := orch.GenerateAll(ctx, rec, kinds)
	report := buildJobReport(rec, outcomes)

	if failed := failedSpikes(outcomes); failed > 0 {
		log.Warn("episode finished with failures",
			"source_url", sourceURL, "job_id", job.JobID, "failed", failed)
		return report, fmt.Errorf("%d of %d spikes failed", failed, len(outcomes))
	}
	return report, nil
}

// readSourceList loads source URLs from a file, one per line.
func readSourceList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source list: %w", err)
	}
	defer f.Close()

	var sources []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sources = append(sources, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read source list: %w", err)
	}
	return sources, nil
}

func printBatchResults(format string, sources []string, results []batch.Result[*jobReport]) error {
	if format == OutputFormatJSON {
		type itemReport struct {
			SourceRef string     `json:"source_ref"`
			Report    *jobReport `json:"report,omitempty"`
			Error     string     `json:"error,omitempty"`
		}
		items := make([]itemReport, 0, len(results))
		for _, res := range results {
			item := itemReport{SourceRef: res.Input, Report: res.Value}
			if res.Err != nil {
				item.Error = res.Err.Error()
			}
			items = append(items, item)
		}
		if err := printJSON(items); err != nil {
			return err
		}
	} else {
		fmt.Println(headerStyle.Render(fmt.Sprintf("Batch: %d episodes", len(sources))))
		for _, res := range results {
			if res.Err != nil {
				fmt.Printf("%s %s: %s\n", errorStyle.Render("✗"), res.Input, res.Err)
				continue
			}
			fmt.Printf("%s %s (job %s)\n", successStyle.Render("✓"), res.Input, res.Value.JobID)
		}
	}

	if failed := batch.Failed(results); failed > 0 {
		return fmt.Errorf("%d of %d episodes failed", failed, len(results))
	}
	return nil
}
