// Package main boots the taskdeck chat service.
//
// The process is a transport adapter around project room lifecycle and
// message fan-out; project and task state remains owned by the directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	chatcmd "github.com/taskdeck/taskdeck/internal/cmd/chat"
)

func main() {
	log.SetPrefix("[CHAT] ")
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := chatcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := chatcmd.Run(ctx, cfg); err != nil {
		return fmt.Errorf("serve chat: %w", err)
	}
	return nil
}
