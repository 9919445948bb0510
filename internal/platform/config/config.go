// Package config loads service settings from the process environment and
// carries the fatal-exit helper shared by the taskdeck binaries.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// exit is swapped in tests; binaries always terminate through os.Exit.
var exit = os.Exit

// FromEnv fills cfg from environment variables named by the env struct tags
// on cfg's type. envDefault values apply when a variable is unset.
func FromEnv(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("load config from env: %w", err)
	}
	return nil
}

// Exitf reports a fatal startup error on stderr and stops the process with
// a non-zero code.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	exit(1)
}
