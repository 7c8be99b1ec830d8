package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go-fintrack/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, cli.Build, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", cli.Describe(err))
		stop()
		os.Exit(1)
	}
}
