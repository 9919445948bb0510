// Package main provides a CLI for seeding the local development directory
// database with a demo project, members, and tasks.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/taskdeck/taskdeck/internal/platform/config"

	seedcmd "github.com/taskdeck/taskdeck/internal/cmd/seed"
)

func main() {
	if err := run(); err != nil {
		config.Exitf("Error: %v", err)
	}
}

func run() error {
	cfg, err := seedcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return seedcmd.Run(ctx, cfg, os.Stdout)
}
