// Command docs-crawler crawls static documentation sites and writes
// clean, semantically faithful Markdown suitable for LLM retrieval
// workflows.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cmd "github.com/rohmanhakim/docs-crawler/internal/cli"
)

// signalExitCode maps the conventional 128+signal shell exit codes so a
// caller scripting around docs-crawler can tell SIGINT from SIGTERM.
func signalExitCode(sig os.Signal) int {
	switch sig {
	case syscall.SIGTERM:
		return 143
	default: // os.Interrupt (SIGINT)
		return 130
	}
}

func main() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- cmd.Execute(ctx)
	}()

	select {
	case err := <-done:
		signal.Stop(sigCh)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		fmt.Fprintf(os.Stderr, "docs-crawler: received %v, shutting down\n", sig)
		cancel()
		<-done
		os.Exit(signalExitCode(sig))
	}
}
