// Package registry provides the central "glue" for the module system.
//
// The Registry stores mappings between the string identifiers used in
// manifests (e.g., "SetupDocs") and the actual compiled Go functions that
// implement the module's logic. It also holds the parsed, format-agnostic
// manifest definitions and the modules defined directly in Go.
//
// During application startup, the registry is populated and then validated
// to ensure that the Go code and the public-facing manifests are perfectly
// in sync, preventing a wide class of runtime errors.
package registry
