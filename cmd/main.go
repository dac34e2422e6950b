package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/spotremote/internal/shared"
	"github.com/urfave/cli/v3"
)

func rootCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:     "spotremote",
		Usage:    "Control Spotify playback from a browser through a server-side OAuth client",
		Version:  "0.1.0",
		Commands: r.register(),
	}
}

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{Logger: logger})

	app := rootCommand(runner)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
