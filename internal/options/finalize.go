package options

import (
	"errors"
	"fmt"
	"sort"

	"github.com/vk/modkit/internal/kit"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

var (
	// ErrUnknownOption indicates an option name no spec declares.
	ErrUnknownOption = errors.New("unknown option")

	// ErrMissingOption indicates a required option that no layer supplied.
	ErrMissingOption = errors.New("missing required option")
)

// Defaults builds the weakest merge layer from the defaults recorded in the
// option specs. Options without a default are simply absent from the result.
func Defaults(specs []kit.OptionSpec) cty.Value {
	out := make(map[string]cty.Value)
	for _, spec := range specs {
		if spec.Default != nil {
			out[spec.Name] = *spec.Default
		}
	}
	if len(out) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(out)
}

// Finalize merges the module's declared defaults with the settings-section
// and inline layers, then validates the result against the option specs:
// unknown names are rejected, required options must be present and non-null,
// and each value is converted to its declared type. A module that declares
// no options accepts any shape unchecked.
func Finalize(def *kit.Definition, settings, inline cty.Value) (cty.Value, error) {
	merged := Merge(Defaults(def.Options), settings, inline)

	if len(def.Options) == 0 {
		return merged, nil
	}
	if !isMapping(merged) {
		return cty.NilVal, fmt.Errorf("module %q: options must be an object, got %s", def.Identity(), describeType(merged))
	}

	given := merged.AsValueMap()
	out := make(map[string]cty.Value, len(def.Options))

	var unknown []string
	for name := range given {
		if _, ok := def.Option(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return cty.NilVal, fmt.Errorf("module %q: %w %q", def.Identity(), ErrUnknownOption, unknown)
	}

	for _, spec := range def.Options {
		value, ok := given[spec.Name]
		if !ok || value.IsNull() {
			if spec.Required {
				return cty.NilVal, fmt.Errorf("module %q: %w %q", def.Identity(), ErrMissingOption, spec.Name)
			}
			out[spec.Name] = cty.NullVal(spec.Type)
			continue
		}

		converted, err := convert.Convert(value, spec.Type)
		if err != nil {
			return cty.NilVal, fmt.Errorf("module %q: option %q: cannot convert %s to %s: %w",
				def.Identity(), spec.Name, describeType(value), spec.Type.FriendlyName(), err)
		}
		out[spec.Name] = converted
	}

	return cty.ObjectVal(out), nil
}

func describeType(v cty.Value) string {
	if v == cty.NilVal {
		return "nothing"
	}
	return v.Type().FriendlyName()
}
