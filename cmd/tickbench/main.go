package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/arloliu/tickstream/internal/cmd/tickbench"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := tickbench.NewRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
