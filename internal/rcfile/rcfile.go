// Package rcfile reads the optional modkit.toml run-control file that
// supplies defaults for the CLI flags.
package rcfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// DefaultName is the file name looked up in the working directory when no
// explicit rc path is given.
const DefaultName = "modkit.toml"

// RC mirrors the flag surface of the CLI. Zero values mean "not set"; the
// CLI keeps its built-in default then.
type RC struct {
	App             string `toml:"app"`
	ModulesPath     string `toml:"modules_path"`
	LogFormat       string `toml:"log_format"`
	LogLevel        string `toml:"log_level"`
	HealthcheckPort int    `toml:"healthcheck_port"`
}

// Load reads and validates an rc file.
func Load(path string) (RC, error) {
	var rc RC
	data, err := os.ReadFile(path)
	if err != nil {
		return RC{}, fmt.Errorf("rc file load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &rc); err != nil {
		return RC{}, fmt.Errorf("rc file parse failed (%s): %w", path, err)
	}
	if err := Validate(rc); err != nil {
		return RC{}, fmt.Errorf("rc file invalid (%s): %w", path, err)
	}
	return rc, nil
}

// LoadDefault looks for modkit.toml in dir and loads it when present. The
// second result reports whether a file was found at all.
func LoadDefault(dir string) (RC, bool, error) {
	path := filepath.Join(dir, DefaultName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return RC{}, false, nil
		}
		return RC{}, false, fmt.Errorf("rc file stat failed (%s): %w", path, err)
	}
	rc, err := Load(path)
	if err != nil {
		return RC{}, true, err
	}
	return rc, true, nil
}

// Validate rejects values the CLI would reject too, so a bad rc file fails
// loudly instead of silently misconfiguring every run.
func Validate(rc RC) error {
	switch rc.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format must be 'text' or 'json', got %q", rc.LogFormat)
	}
	switch rc.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be 'debug', 'info', 'warn', or 'error', got %q", rc.LogLevel)
	}
	if rc.HealthcheckPort < 0 || rc.HealthcheckPort > 65535 {
		return fmt.Errorf("healthcheck_port out of range: %d", rc.HealthcheckPort)
	}
	return nil
}
