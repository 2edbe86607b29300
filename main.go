// ./main.go
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/jlindermeir/ami0/cmd"
)

// main is the entry point for the ami0 application.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Execute(ctx)
}
