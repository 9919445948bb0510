// Package cmd carries the pieces shared by the taskdeck binaries: config
// loading layered as env-then-flags, and the telemetry-wrapped run loop for
// long-running services.
package cmd

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/taskdeck/taskdeck/internal/platform/config"
	"github.com/taskdeck/taskdeck/internal/platform/otel"
)

// otelFlushTimeout bounds the trace flush after a service run loop returns.
const otelFlushTimeout = 5 * time.Second

// Binary names, reused as trace service names so spans group per process.
const (
	ServiceChat = "chat"
	ServiceSeed = "seed"
)

// LoadConfig layers command configuration: cfg is filled from the
// environment first, then bindFlags registers flag overrides against those
// values, and finally args are parsed. Flags therefore always win over env.
func LoadConfig[T any](fs *flag.FlagSet, args []string, cfg *T, bindFlags func()) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if cfg == nil {
		return errors.New("config target is required")
	}
	if err := config.FromEnv(cfg); err != nil {
		return err
	}
	if bindFlags != nil {
		bindFlags()
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// RunService installs the OTel trace pipeline for the named service and
// invokes run. The pipeline flushes for up to otelFlushTimeout once run
// returns.
func RunService(ctx context.Context, service string, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return errors.New("service name is required")
	}
	if run == nil {
		return errors.New("run function is required")
	}

	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), otelFlushTimeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Printf("%s otel shutdown: %v", service, err)
		}
	}()

	return run(ctx)
}
