// Command sessiondiff drives isolated browser sessions with distinct
// identities, records the network traffic each session generates, and
// diffs captured request sets.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := Execute(ctx); err != nil {
		os.Exit(1)
	}
}
