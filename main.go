package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/castnote/castnote/cli"
	"github.com/castnote/castnote/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.RootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		logger.SetupLogger("error", false, false).Error("command failed", "error", cli.FormatError(err))
		os.Exit(1)
	}
}
