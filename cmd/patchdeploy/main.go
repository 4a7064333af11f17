package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"patchdeploy/internal/cli"
)

// main maps every outcome of the root command to a semantic exit code.
// An interrupt cancels the run and kills any running build.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(cli.ExitCode(err))
}
