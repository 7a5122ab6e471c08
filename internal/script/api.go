package script

import (
	"fmt"

	"github.com/Shopify/go-lua"
	"github.com/vk/modkit/internal/ctxlog"
	"github.com/vk/modkit/internal/kit"
	"github.com/zclconf/go-cty/cty"
)

// registerModuleType installs the Module constructor and its method table.
func (l *Loader) registerModuleType() {
	state := l.state

	lua.NewMetaTable(state, moduleTypeName)
	state.NewTable()
	lua.SetFunctions(state, l.moduleMethods(), 0)
	state.SetField(-2, "__index")
	state.Pop(1)

	state.NewTable()
	lua.SetFunctions(state, []lua.RegistryFunction{
		{Name: "new", Function: moduleNew},
	}, 0)
	state.SetGlobal("Module")
}

// registerLogAPI installs the log table backed by the application logger.
func (l *Loader) registerLogAPI() {
	state := l.state
	state.NewTable()
	lua.SetFunctions(state, []lua.RegistryFunction{
		{Name: "debug", Function: l.logFunc(func(logger logSink, msg string) { logger.Debug(msg) })},
		{Name: "info", Function: l.logFunc(func(logger logSink, msg string) { logger.Info(msg) })},
		{Name: "warn", Function: l.logFunc(func(logger logSink, msg string) { logger.Warn(msg) })},
		{Name: "error", Function: l.logFunc(func(logger logSink, msg string) { logger.Error(msg) })},
	}, 0)
	state.SetGlobal("log")
}

type logSink interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

func (l *Loader) logFunc(emit func(logger logSink, msg string)) lua.Function {
	return func(state *lua.State) int {
		msg := lua.CheckString(state, 1)
		ctx := l.currentCtx
		if ctx == nil {
			return 0
		}
		emit(ctxlog.FromContext(ctx), msg)
		return 0
	}
}

func moduleNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	mod := &scriptModule{name: name}
	state.PushUserData(mod)
	lua.SetMetaTableNamed(state, moduleTypeName)
	return 1
}

func (l *Loader) moduleMethods() []lua.RegistryFunction {
	return []lua.RegistryFunction{
		{Name: "version", Function: setterFor(func(m *scriptModule, v string) { m.version = v })},
		{Name: "config_key", Function: setterFor(func(m *scriptModule, v string) { m.configKey = v })},
		{Name: "compatibility", Function: setterFor(func(m *scriptModule, v string) { m.compatibility = v })},
		{Name: "description", Function: setterFor(func(m *scriptModule, v string) { m.description = v })},
		{Name: "option", Function: moduleOption},
		{Name: "on_setup", Function: l.moduleOnSetup},
		{Name: "on_hook", Function: l.moduleOnHook},
	}
}

func checkModule(state *lua.State) *scriptModule {
	ud := lua.CheckUserData(state, 1, moduleTypeName)
	if mod, ok := ud.(*scriptModule); ok && mod != nil {
		return mod
	}
	lua.ArgumentError(state, 1, "module expected")
	return nil
}

func setterFor(set func(m *scriptModule, v string)) lua.Function {
	return func(state *lua.State) int {
		mod := checkModule(state)
		set(mod, lua.CheckString(state, 2))
		return 0
	}
}

// moduleOption declares an option: m:option("name", { type = "string",
// default = ..., required = true, description = "..." }).
func moduleOption(state *lua.State) int {
	mod := checkModule(state)
	name := lua.CheckString(state, 2)
	lua.CheckType(state, 3, lua.TypeTable)

	for _, existing := range mod.options {
		if existing.Name == name {
			lua.Errorf(state, "option %q declared twice", name)
			return 0
		}
	}

	spec := kit.OptionSpec{Name: name, Type: cty.DynamicPseudoType}

	state.Field(3, "type")
	if typeName, ok := state.ToString(-1); ok && typeName != "" {
		optType, err := scriptOptionType(typeName)
		if err != nil {
			state.Pop(1)
			lua.Errorf(state, "option %q: %s", name, err.Error())
			return 0
		}
		spec.Type = optType
	}
	state.Pop(1)

	state.Field(3, "description")
	if desc, ok := state.ToString(-1); ok {
		spec.Description = desc
	}
	state.Pop(1)

	state.Field(3, "required")
	spec.Required = state.ToBoolean(-1)
	state.Pop(1)

	state.Field(3, "default")
	if !state.IsNoneOrNil(-1) {
		defaultVal, err := goToCty(luaToGo(state, -1))
		if err != nil {
			state.Pop(1)
			lua.Errorf(state, "option %q: unsupported default: %s", name, err.Error())
			return 0
		}
		spec.Default = &defaultVal
		spec.Required = false
	}
	state.Pop(1)

	mod.options = append(mod.options, spec)
	return 0
}

func (l *Loader) moduleOnSetup(state *lua.State) int {
	mod := checkModule(state)
	lua.CheckType(state, 2, lua.TypeFunction)
	if mod.hasSetup {
		lua.Errorf(state, "module %q declares on_setup twice", mod.name)
		return 0
	}
	mod.hasSetup = true

	l.pushCallbacks(mod.callbackKey())
	state.PushValue(2)
	state.SetField(-2, "setup")
	state.Pop(1)
	return 0
}

func (l *Loader) moduleOnHook(state *lua.State) int {
	mod := checkModule(state)
	event := lua.CheckString(state, 2)
	lua.CheckType(state, 3, lua.TypeFunction)

	mod.hookEvents = append(mod.hookEvents, event)
	idx := len(mod.hookEvents)

	l.pushCallbacks(mod.callbackKey())
	state.PushValue(3)
	state.RawSetInt(-2, idx)
	state.Pop(1)
	return 0
}

// callbackKey is the key the module's callbacks are filed under. It is
// derived from the module value itself, not its name: a module may be
// renamed after its script ran (anonymous modules take the file name), and
// two scripts are free to fight over a name without clobbering each other's
// callbacks.
func (m *scriptModule) callbackKey() string {
	return fmt.Sprintf("module@%p", m)
}

func scriptOptionType(name string) (cty.Type, error) {
	switch name {
	case "string":
		return cty.String, nil
	case "number":
		return cty.Number, nil
	case "bool":
		return cty.Bool, nil
	case "any":
		return cty.DynamicPseudoType, nil
	default:
		return cty.DynamicPseudoType, fmt.Errorf("unknown type %q, script options support string, number, bool and any", name)
	}
}
