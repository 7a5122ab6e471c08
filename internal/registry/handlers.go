package registry

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/vk/modkit/internal/config"
	"github.com/vk/modkit/internal/kit"
	"github.com/zclconf/go-cty/cty"
)

// RegisteredSetup holds the compiled Go parts of a module's setup routine.
// Fn is either func(ctx, host) error or, when NewOptions is set,
// func(ctx, host, opts *T) error with *T produced by NewOptions.
type RegisteredSetup struct {
	NewOptions func() any
	Fn         any
}

// RegisterSetupHandler registers a Go function for a module's setup routine.
func (r *Registry) RegisterSetupHandler(name string, handler *RegisteredSetup) {
	if _, exists := r.SetupHandlerRegistry[name]; exists {
		panic(fmt.Sprintf("setup handler with name '%s' already registered", name))
	}
	slog.Debug("Registering setup handler.", "name", name)
	r.SetupHandlerRegistry[name] = handler
}

// RegisterHookHandler registers a Go function for a lifecycle hook.
func (r *Registry) RegisterHookHandler(name string, fn kit.HookFunc) {
	if _, exists := r.HookHandlerRegistry[name]; exists {
		panic(fmt.Sprintf("hook handler with name '%s' already registered", name))
	}
	if fn == nil {
		panic(fmt.Sprintf("hook handler '%s' registered with nil function", name))
	}
	slog.Debug("Registering hook handler.", "name", name)
	r.HookHandlerRegistry[name] = fn
}

// Invoke runs a registered setup handler: the finalized options are decoded
// into a fresh options struct and the handler function is called through
// reflection.
func (h *RegisteredSetup) Invoke(ctx context.Context, host kit.Host, opts cty.Value, conv config.Converter) error {
	handlerFunc := reflect.ValueOf(h.Fn)
	if handlerFunc.Kind() != reflect.Func {
		return fmt.Errorf("setup handler is not a function, got %T", h.Fn)
	}

	callArgs := []reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(host)}

	if h.NewOptions != nil {
		optionsStruct := h.NewOptions()
		if err := conv.DecodeOptions(ctx, optionsStruct, opts); err != nil {
			return fmt.Errorf("failed to decode setup options: %w", err)
		}
		callArgs = append(callArgs, reflect.ValueOf(optionsStruct))
	}

	if handlerFunc.Type().NumIn() != len(callArgs) {
		return fmt.Errorf("setup handler takes %d arguments, expected %d", handlerFunc.Type().NumIn(), len(callArgs))
	}
	if handlerFunc.Type().NumOut() != 1 {
		return fmt.Errorf("setup handler must return exactly one value (error), returns %d", handlerFunc.Type().NumOut())
	}

	results := handlerFunc.Call(callArgs)
	if errResult := results[0].Interface(); errResult != nil {
		return errResult.(error)
	}
	return nil
}
