// Package hostenv reads the MODKIT_* process environment variables that
// override configuration before flags are applied.
package hostenv

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Vars holds the process-environment overrides. Empty fields mean the
// variable was not set.
type Vars struct {
	// Env overrides the app file's environment mode.
	Env string `env:"MODKIT_ENV"`

	LogLevel  string `env:"MODKIT_LOG_LEVEL"`
	LogFormat string `env:"MODKIT_LOG_FORMAT"`
}

// Parse loads the overrides from the process environment.
func Parse() (Vars, error) {
	var vars Vars
	if err := env.Parse(&vars); err != nil {
		return Vars{}, fmt.Errorf("parse env: %w", err)
	}
	return vars, nil
}
