package kit

import (
	"fmt"
	"strings"
)

// Environment is the runtime mode an application was booted in.
type Environment string

const (
	// EnvDevelopment enables development behavior in modules that check it.
	EnvDevelopment Environment = "development"
	// EnvProduction is the default mode for deployed applications.
	EnvProduction Environment = "production"
)

// ParseEnvironment validates a user-supplied environment string. The empty
// string resolves to production so that an app file without an `env`
// attribute behaves safely when deployed.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(strings.ToLower(s)) {
	case EnvDevelopment:
		return EnvDevelopment, nil
	case EnvProduction, "":
		return EnvProduction, nil
	default:
		return "", fmt.Errorf("invalid environment %q: must be 'development' or 'production'", s)
	}
}
