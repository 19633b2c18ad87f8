package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/secmon-lab/syllabus/pkg/cli"
)

var version = "dev"

func main() {
	// Interrupt cancels long ingestion and ask runs. serve also handles the
	// signal itself to shut down gracefully.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.Run(ctx, os.Args, version); err != nil {
		stop()
		os.Exit(1)
	}
}
