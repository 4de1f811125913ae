package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/lancet/cmd"
)

// main is the entry point for the lancet CLI.
func main() {
	// Listen for interrupt signals so a running scan can shut down gracefully.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Execute(ctx)
}
