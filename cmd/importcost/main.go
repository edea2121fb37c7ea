// Package main provides the entry point for the importcost CLI tool.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sumatoshi-tech/importcost/cmd/importcost/commands"
	"github.com/Sumatoshi-tech/importcost/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := commands.Execute(ctx, os.Args[1:], commands.Streams{
		In:  os.Stdin,
		Out: os.Stdout,
		Err: os.Stderr,
	})

	stop()
	os.Exit(code)
}
