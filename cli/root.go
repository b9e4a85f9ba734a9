package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/castnote/castnote/pkg/config"
	"github.com/castnote/castnote/pkg/logger"
)

// configCacheTTL bounds how long a resolved configuration is reused across
// commands in one process.
const configCacheTTL = 30 * time.Second

// RootCmd builds the castnote command tree.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "castnote",
		Short:         "Generate summaries, show notes and chapters from podcast episodes",
		Long:          "castnote submits episodes to the castnote API, tracks their progress durably, and streams generated content back to the terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupContext(cmd)
		},
	}

	bindRootFlags(root.PersistentFlags())

	root.AddCommand(
		SubmitCmd(),
		ResumeCmd(),
		BatchCmd(),
		StatusCmd(),
	)

	return root
}

func bindRootFlags(flags *pflag.FlagSet) {
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Emit logs as JSON")
	flags.Bool("log-source", false, "Include source locations in logs")
	flags.StringP("output", "o", "", "Output format (text, json); defaults to terminal detection")
	flags.String("config", "", "Path to an env file with CASTNOTE_* settings (defaults to ./.env)")
}

// setupContext resolves logging and configuration and attaches both to the
// command context so every subcommand reads them the same way.
func setupContext(cmd *cobra.Command) error {
	logLevel, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.SetupLogger(logLevel, logJSON, logSource)

	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	manager := config.NewManager(configCacheTTL, config.WithLoadFunc(func() (*config.Config, error) {
		return config.LoadFrom(configFile)
	}))
	cfg, err := manager.Get()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel == "info" && cfg.Runtime.LogLevel != "" && cfg.Runtime.LogLevel != "info" {
		log = logger.SetupLogger(cfg.Runtime.LogLevel, logJSON, logSource)
	}

	ctx := logger.ContextWithLogger(cmd.Context(), log)
	ctx = config.ContextWithConfig(ctx, cfg)
	cmd.SetContext(ctx)
	return nil
}
