package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	AppPath     string // application .hcl file or directory
	ModulesPath string // optional conventional module directory

	LogFormat       string
	LogLevel        string
	HealthcheckPort int

	// EnvOverride replaces the app file's env value when set, coming from
	// the MODKIT_ENV process variable.
	EnvOverride string

	// Once makes Run return right after app:ready instead of waiting for
	// cancellation; teardown still fires.
	Once bool
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.AppPath == "" {
		return nil, errors.New("AppPath is a required configuration field and cannot be empty")
	}

	// Future validations for other fields can be added here.
	// For example: checking if LogLevel is a valid value.

	return &cfg, nil
}
