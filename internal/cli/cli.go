package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/modkit/internal/app"
	"github.com/vk/modkit/internal/hostenv"
	"github.com/vk/modkit/internal/rcfile"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Options is the parsed command surface: the app configuration plus the
// introspection modes that skip a full run.
type Options struct {
	App         *app.Config
	Check       bool
	ListModules bool
}

// Parse processes command-line arguments and merges them with the rc file
// and MODKIT_* environment overrides: flags beat environment, environment
// beats rc file, rc file beats built-in defaults. It returns the parsed
// options, a boolean indicating if the program should exit cleanly, or an
// ExitError.
func Parse(args []string, output io.Writer) (*Options, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("modkit", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
Modkit - A declarative module runtime for composable applications.

Usage:
  modkit [options] [APP_PATH]

Arguments:
  APP_PATH
    Path to an application .hcl file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	appFlag := flagSet.String("app", "", "Path to the app file or directory.")
	aFlag := flagSet.String("a", "", "Path to the app file or directory (shorthand).")
	modulesPathFlag := flagSet.String("modules-path", "", "Path to a directory of conventional module definitions.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	onceFlag := flagSet.Bool("once", false, "Install modules, fire app:ready, then shut down immediately.")
	checkFlag := flagSet.Bool("check", false, "Validate the app configuration without installing anything.")
	listFlag := flagSet.Bool("list-modules", false, "Resolve and print the module set without installing anything.")
	rcFlag := flagSet.String("rc", "", "Path to a modkit.toml rc file. Defaults to ./modkit.toml when present.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	rc, err := loadRC(*rcFlag)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	vars, err := hostenv.Parse()
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	setFlags := map[string]bool{}
	flagSet.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	path := ""
	switch {
	case *appFlag != "":
		path = *appFlag
	case *aFlag != "":
		path = *aFlag
	case flagSet.NArg() > 0:
		path = flagSet.Arg(0)
	default:
		path = rc.App
	}
	slog.Debug("App path determined.", "path", path)

	if path == "" {
		slog.Debug("No app path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if !setFlags["log-format"] {
		if vars.LogFormat != "" {
			logFormat = strings.ToLower(vars.LogFormat)
		} else if rc.LogFormat != "" {
			logFormat = rc.LogFormat
		}
	}
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	if !setFlags["log-level"] {
		if vars.LogLevel != "" {
			logLevel = strings.ToLower(vars.LogLevel)
		} else if rc.LogLevel != "" {
			logLevel = rc.LogLevel
		}
	}
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	modulesPath := *modulesPathFlag
	if modulesPath == "" {
		modulesPath = rc.ModulesPath
	}

	healthPort := *healthPortFlag
	if !setFlags["healthcheck-port"] && rc.HealthcheckPort != 0 {
		healthPort = rc.HealthcheckPort
	}
	slog.Debug("CLI parameter validation complete.")

	appConfig, err := app.NewConfig(app.Config{
		AppPath:         path,
		ModulesPath:     modulesPath,
		HealthcheckPort: healthPort,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		EnvOverride:     vars.Env,
		Once:            *onceFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", appConfig)
	return &Options{App: appConfig, Check: *checkFlag, ListModules: *listFlag}, false, nil
}

// loadRC reads an explicit rc path, or falls back to modkit.toml in the
// working directory when one exists.
func loadRC(path string) (rcfile.RC, error) {
	if path != "" {
		return rcfile.Load(path)
	}
	rc, _, err := rcfile.LoadDefault(".")
	return rc, err
}

// ListModules resolves the configured module set and prints one line per
// unique module: identity, version, source and description.
func ListModules(output io.Writer, a *app.App) error {
	defs, err := a.Resolved()
	if err != nil {
		return err
	}

	seen := map[string]bool{}
	for _, def := range defs {
		identity := def.Identity()
		if seen[identity] {
			continue
		}
		seen[identity] = true

		line := identity
		if def.Version != "" {
			line += " " + def.Version
		}
		line += "\t" + def.Source
		if def.Description != "" {
			line += "\t" + def.Description
		}
		fmt.Fprintln(output, line)
	}
	return nil
}

// Check validates the configured module set and reports the verdict on
// output.
func Check(output io.Writer, a *app.App) error {
	if err := a.Check(); err != nil {
		return &ExitError{Code: 1, Message: err.Error()}
	}
	fmt.Fprintln(output, "configuration OK")
	return nil
}
