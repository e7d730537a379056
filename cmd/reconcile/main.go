package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/eshaffer321/expense-reconciler/internal/cli"
)

func main() {
	// An interrupted auto run keeps its commits and reports the rest as skipped
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
