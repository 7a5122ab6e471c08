package hcl

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/vk/modkit/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Converter is the HCL-specific implementation of the config.Converter
// interface.
type Converter struct{}

// NewConverter creates a new HCL converter.
func NewConverter() *Converter {
	return &Converter{}
}

// DecodeOptions populates target, a pointer to a struct, from a finalized
// options object. Fields map to option names through their `modkit` tag and
// fall back to the field name. Options the struct does not declare a field
// for are ignored; absent or null options leave the field at its zero value.
func (c *Converter) DecodeOptions(ctx context.Context, target any, opts cty.Value) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting options decoding.")

	structVal := reflect.ValueOf(target)
	if structVal.Kind() != reflect.Ptr || structVal.IsNil() {
		return fmt.Errorf("decode target must be a non-nil pointer, got %T", target)
	}
	structVal = structVal.Elem()
	if structVal.Kind() != reflect.Struct {
		return fmt.Errorf("decode target must point at a struct, got %T", target)
	}

	if opts == cty.NilVal || opts.IsNull() {
		return nil
	}
	if !opts.Type().IsObjectType() && !opts.Type().IsMapType() {
		return fmt.Errorf("options value must be an object, got %s", opts.Type().FriendlyName())
	}
	given := opts.AsValueMap()

	structType := structVal.Type()
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		fieldVal := structVal.Field(i)
		if !fieldVal.CanSet() {
			continue
		}

		lookupName := field.Name
		if tag := field.Tag.Get("modkit"); tag != "" {
			lookupName = strings.Split(tag, ",")[0]
		}

		value, ok := given[lookupName]
		if !ok || value.IsNull() {
			continue
		}
		if err := c.decode(ctx, value, fieldVal.Addr().Interface()); err != nil {
			return fmt.Errorf("failed to decode option '%s': %w", lookupName, err)
		}
	}

	logger.Debug("Finished options decoding successfully.")
	return nil
}

// decode handles the conversion and decoding of a cty.Value into a Go
// pointer.
func (c *Converter) decode(ctx context.Context, val cty.Value, goVal any) error {
	logger := ctxlog.FromContext(ctx)

	valPtr := reflect.ValueOf(goVal)
	if valPtr.Kind() != reflect.Ptr {
		return fmt.Errorf("target for decoding must be a pointer, got %T", goVal)
	}

	impliedType, err := gocty.ImpliedType(valPtr.Elem().Interface())
	if err != nil {
		logger.Debug("Could not imply cty.Type from Go type, attempting direct decoding.",
			"go_type", valPtr.Elem().Type().String(), "error", err)
		return gocty.FromCtyValue(val, goVal)
	}

	convertedVal, err := convert.Convert(val, impliedType)
	if err != nil {
		return fmt.Errorf("cannot convert %s to required type %s: %w",
			val.Type().FriendlyName(), impliedType.FriendlyName(), err)
	}
	return gocty.FromCtyValue(convertedVal, goVal)
}

// ToCtyValue converts a native Go value into its corresponding cty.Value.
func (c *Converter) ToCtyValue(v any) (cty.Value, error) {
	if v == nil {
		return cty.NilVal, nil
	}
	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unable to infer cty.Type: %w", err)
	}
	return gocty.ToCtyValue(v, ty)
}
