package registry

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/vk/modkit/internal/compat"
	"github.com/vk/modkit/internal/config"
	"github.com/vk/modkit/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Validate performs a strict parity check between manifests and Go code:
// every named handler must exist, declared compatibility constraints must
// parse, and manifest options must line up with the fields of the handler's
// options struct, both in presence and in type.
func (r *Registry) Validate(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	names := make([]string, 0, len(r.DefinitionRegistry))
	for name := range r.DefinitionRegistry {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := r.DefinitionRegistry[name]

		if def.Compatibility != "" {
			if _, err := compat.ParseConstraint(def.Compatibility); err != nil {
				errs = append(errs, fmt.Sprintf("module '%s': %v", name, err))
			}
		}

		for _, h := range def.Hooks {
			if _, ok := r.HookHandlerRegistry[h.Handler]; !ok {
				errs = append(errs, fmt.Sprintf("module '%s': hook '%s' names unregistered handler '%s'", name, h.Event, h.Handler))
			}
		}

		if def.Setup == "" {
			continue
		}
		handler, ok := r.SetupHandlerRegistry[def.Setup]
		if !ok {
			errs = append(errs, fmt.Sprintf("module '%s': setup names unregistered handler '%s'", name, def.Setup))
			continue
		}
		errs = append(errs, r.checkOptionParity(ctx, name, def, handler)...)
	}

	for _, def := range r.DefinedModules() {
		if def.Compatibility != "" {
			if _, err := compat.ParseConstraint(def.Compatibility); err != nil {
				errs = append(errs, fmt.Sprintf("module '%s': %v", def.Identity(), err))
			}
		}
		if def.SetupHandler != "" {
			if _, ok := r.SetupHandlerRegistry[def.SetupHandler]; !ok {
				errs = append(errs, fmt.Sprintf("module '%s': setup names unregistered handler '%s'", def.Identity(), def.SetupHandler))
			}
		}
		for _, b := range def.Hooks {
			if b.Handler == "" {
				continue
			}
			if _, ok := r.HookHandlerRegistry[b.Handler]; !ok {
				errs = append(errs, fmt.Sprintf("module '%s': hook '%s' names unregistered handler '%s'", def.Identity(), b.Event, b.Handler))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	logger.Debug("Registry validation passed.",
		"manifests", len(r.DefinitionRegistry),
		"defined_modules", len(r.modules),
	)
	return nil
}

// checkOptionParity compares a manifest's declared options against the
// fields of the Go options struct behind its setup handler.
func (r *Registry) checkOptionParity(ctx context.Context, name string, def *config.ModuleDefinition, handler *RegisteredSetup) []string {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	if handler.NewOptions == nil {
		if len(def.Options) > 0 {
			errs = append(errs, fmt.Sprintf("module '%s': manifest declares options, but Go handler takes no options struct", name))
		}
		return errs
	}

	goFields := make(map[string]reflect.StructField)
	structType := reflect.TypeOf(handler.NewOptions())
	if structType.Kind() == reflect.Ptr {
		structType = structType.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return []string{fmt.Sprintf("module '%s': NewOptions must produce a struct pointer, got %s", name, structType.Kind())}
	}
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if !field.IsExported() {
			continue
		}
		tagName := strings.Split(field.Tag.Get("modkit"), ",")[0]
		if tagName != "" && tagName != "-" {
			goFields[tagName] = field
		}
	}

	for fieldName := range goFields {
		if _, ok := def.Options[fieldName]; !ok {
			errs = append(errs, fmt.Sprintf("module '%s': Go struct has field for option '%s' which is not declared in manifest", name, fieldName))
		}
	}
	for optName := range def.Options {
		if _, ok := goFields[optName]; !ok {
			errs = append(errs, fmt.Sprintf("module '%s': manifest declares option '%s' which is not found in Go struct", name, optName))
		}
	}

	for optName, optDef := range def.Options {
		goField, ok := goFields[optName]
		if !ok {
			continue
		}

		if optDef.Type.Equals(cty.DynamicPseudoType) {
			logger.Warn("Manifest option with 'type = any' disables static type checking. Consider a specific type like 'string', 'number', or 'bool'.",
				"module", name, "option", optName)
			continue
		}

		goFieldType, err := gocty.ImpliedType(reflect.Zero(goField.Type).Interface())
		if err != nil {
			errs = append(errs, fmt.Sprintf("module '%s', option '%s': could not imply cty type from Go field type %s: %v", name, optName, goField.Type, err))
			continue
		}
		if !optDef.Type.Equals(goFieldType) {
			errs = append(errs, fmt.Sprintf("module '%s', option '%s': type mismatch. Manifest requires '%s' but Go struct field '%s' provides '%s'",
				name, optName, optDef.Type.FriendlyName(), goField.Name, goFieldType.FriendlyName()))
		}
	}

	sort.Strings(errs)
	return errs
}
