// Package cli parses the command-line surface of modkit and merges it with
// the rc file and process-environment overrides into an app configuration.
package cli
