package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ecomeda/internal/cli/commands"
	apperrors "ecomeda/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.NewRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(apperrors.ExitCode(err))
	}
}
