package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/castnote/castnote/engine/ledger"
)

// Output format constants
const (
	OutputFormatText = "text"
	OutputFormatJSON = "json"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

// resolveOutputFormat picks the output format from the --output flag,
// falling back to terminal detection: JSON when stdout is not a terminal
// or the process runs in CI, text otherwise.
func resolveOutputFormat(cmd *cobra.Command) string {
	if flag, err := cmd.Flags().GetString("output"); err == nil {
		switch flag {
		case OutputFormatText, OutputFormatJSON:
			return flag
		}
	}
	if isRunningInCI() {
		return OutputFormatJSON
	}
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return OutputFormatJSON
	}
	return OutputFormatText
}

// isRunningInCI checks common CI environment variables.
func isRunningInCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "BUILDKITE", "CIRCLECI"} {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}

func renderSpikeStatus(status ledger.SpikeStatus) string {
	switch status {
	case ledger.SpikeComplete:
		return successStyle.Render(string(status))
	case ledger.SpikeError:
		return errorStyle.Render(string(status))
	case ledger.SpikeStreaming:
		return infoStyle.Render(string(status))
	default:
		return dimStyle.Render(string(status))
	}
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
