package config

import (
	"context"

	"github.com/zclconf/go-cty/cty"
)

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads application config from the given paths (files or
	// directories), translates it into the format-agnostic model, and
	// returns a matching Converter.
	Load(ctx context.Context, paths ...string) (*Model, Converter, error)
}

// Converter is the interface for a format-specific data binding and type
// conversion implementation. It bridges the evaluated configuration values
// and the Go structs module handlers consume.
type Converter interface {
	// DecodeOptions decodes a finalized options value into a target Go
	// struct, mapping fields by their `modkit` tag.
	DecodeOptions(ctx context.Context, target any, opts cty.Value) error

	// ToCtyValue converts a native Go value (like a map[string]any from a
	// script module) into its equivalent cty.Value.
	ToCtyValue(v any) (cty.Value, error)
}
