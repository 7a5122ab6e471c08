package script

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/modkit/internal/kit"
	"github.com/zclconf/go-cty/cty"
)

// stubHost satisfies kit.Host with fixed answers for the snapshot fields.
type stubHost struct {
	kit.Host
}

func (stubHost) Name() string                 { return "demo" }
func (stubHost) Version() string              { return "1.4.0" }
func (stubHost) Environment() kit.Environment { return kit.EnvDevelopment }
func (stubHost) Dev() bool                    { return true }

func writeScript(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScriptFullModule(t *testing.T) {
	path := writeScript(t, "greeter.lua", `
		local m = Module.new("greeter")
		m:version("0.3.0")
		m:config_key("greetings")
		m:compatibility(">= 1.0.0")
		m:description("Greets on startup")

		m:option("text", { type = "string", default = "hello" })
		m:option("repeat", { type = "number", required = true })

		m:on_setup(function(options, app) end)
		m:on_hook("app:ready", function(app) end)
		m:on_hook("app:close", function(app) end)

		return m
	`)

	def, err := NewLoader().LoadScript(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "greeter", def.Name)
	assert.Equal(t, "0.3.0", def.Version)
	assert.Equal(t, "greetings", def.ConfigKey)
	assert.Equal(t, ">= 1.0.0", def.Compatibility)
	assert.Equal(t, "Greets on startup", def.Description)
	assert.Equal(t, "script:"+path, def.Source)

	require.Len(t, def.Options, 2)
	assert.Equal(t, "text", def.Options[0].Name)
	assert.Equal(t, cty.String, def.Options[0].Type)
	require.NotNil(t, def.Options[0].Default)
	assert.Equal(t, cty.StringVal("hello"), *def.Options[0].Default)
	assert.Equal(t, "repeat", def.Options[1].Name)
	assert.True(t, def.Options[1].Required)

	require.NotNil(t, def.Setup)
	require.Len(t, def.Hooks, 2)
	assert.Equal(t, "app:ready", def.Hooks[0].Event)
	assert.Equal(t, "app:close", def.Hooks[1].Event)

	require.NoError(t, def.Validate())
}

func TestLoadScriptAnonymousModuleTakesFileName(t *testing.T) {
	path := writeScript(t, "quiet_helper.lua", `
		local m = Module.new()
		m:on_setup(function(options, app) end)
		return m
	`)

	def, err := NewLoader().LoadScript(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "quiet_helper", def.Name)

	// The callback registered before the rename must still be reachable.
	require.NotNil(t, def.Setup)
	require.NoError(t, def.Setup(context.Background(), stubHost{}, cty.EmptyObjectVal))
}

func TestAnonymousNameForConventionalScriptUsesDirectory(t *testing.T) {
	assert.Equal(t, "quiet_helper", AnonymousName("/mods/quiet_helper.lua"))
	assert.Equal(t, "greeter", AnonymousName("/mods/greeter/module.lua"))
}

func TestScriptSetupReceivesOptionsAndApp(t *testing.T) {
	// The script asserts on its own arguments; a Lua-side failure surfaces
	// as a setup error.
	path := writeScript(t, "checker.lua", `
		local m = Module.new("checker")
		m:on_setup(function(options, app)
			if options.text ~= "hello" then error("bad text: " .. tostring(options.text)) end
			if options.repeats ~= 3 then error("bad repeats") end
			if options.flags.loud ~= true then error("bad nested flag") end
			if options.targets[2] ~= "b" then error("bad list element") end
			if app.name ~= "demo" then error("bad app name") end
			if app.env ~= "development" then error("bad app env") end
			if app.dev ~= true then error("bad dev flag") end
		end)
		return m
	`)

	loader := NewLoader()
	def, err := loader.LoadScript(context.Background(), path)
	require.NoError(t, err)

	opts := cty.ObjectVal(map[string]cty.Value{
		"text":    cty.StringVal("hello"),
		"repeats": cty.NumberIntVal(3),
		"flags":   cty.ObjectVal(map[string]cty.Value{"loud": cty.True}),
		"targets": cty.ListVal([]cty.Value{cty.StringVal("a"), cty.StringVal("b")}),
	})
	require.NoError(t, def.Setup(context.Background(), stubHost{}, opts))
}

func TestScriptHooksShareStateWithSetup(t *testing.T) {
	path := writeScript(t, "stateful.lua", `
		local m = Module.new("stateful")
		local seen = false
		m:on_setup(function(options, app)
			seen = true
		end)
		m:on_hook("app:ready", function(app)
			if not seen then error("hook ran before setup") end
		end)
		return m
	`)

	loader := NewLoader()
	def, err := loader.LoadScript(context.Background(), path)
	require.NoError(t, err)

	require.NoError(t, def.Setup(context.Background(), stubHost{}, cty.EmptyObjectVal))
	require.NoError(t, def.Hooks[0].Fn(context.Background(), stubHost{}))
}

func TestScriptCallbackErrorsPropagate(t *testing.T) {
	path := writeScript(t, "angry.lua", `
		local m = Module.new("angry")
		m:on_setup(function(options, app)
			error("setup says no")
		end)
		m:on_hook("app:close", function(app)
			error("close says no")
		end)
		return m
	`)

	loader := NewLoader()
	def, err := loader.LoadScript(context.Background(), path)
	require.NoError(t, err)

	err = def.Setup(context.Background(), stubHost{}, cty.EmptyObjectVal)
	require.Error(t, err)
	assert.ErrorContains(t, err, `script module "angry" setup failed`)

	err = def.Hooks[0].Fn(context.Background(), stubHost{})
	require.Error(t, err)
	assert.ErrorContains(t, err, `hook "app:close" failed`)
}

func TestLoadScriptErrors(t *testing.T) {
	testCases := []struct {
		name        string
		content     string
		expectError string
	}{
		{
			name:        "no return value",
			content:     `local x = 1`,
			expectError: "must return a module",
		},
		{
			name:        "wrong return type",
			content:     `return 42`,
			expectError: "must return a module",
		},
		{
			name:        "syntax error",
			content:     `this is not lua`,
			expectError: "failed to parse script",
		},
		{
			name: "unknown option type",
			content: `
				local m = Module.new("bad")
				m:option("x", { type = "tuple" })
				return m
			`,
			expectError: "failed to run script",
		},
		{
			name: "duplicate option",
			content: `
				local m = Module.new("bad")
				m:option("x", { type = "string" })
				m:option("x", { type = "string" })
				return m
			`,
			expectError: "failed to run script",
		},
		{
			name: "double on_setup",
			content: `
				local m = Module.new("bad")
				m:on_setup(function() end)
				m:on_setup(function() end)
				return m
			`,
			expectError: "failed to run script",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeScript(t, "mod.lua", tc.content)

			_, err := NewLoader().LoadScript(context.Background(), path)
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.expectError)
		})
	}
}

func TestGoToCtyRoundTrip(t *testing.T) {
	val, err := goToCty(map[string]any{
		"text":  "hello",
		"count": 3,
		"ratio": 0.5,
		"loud":  true,
		"tags":  []any{"a", "b"},
	})
	require.NoError(t, err)

	back, err := ctyToGo(val)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"text":  "hello",
		"count": 3,
		"ratio": 0.5,
		"loud":  true,
		"tags":  []any{"a", "b"},
	}, back)
}

func TestGoToCtyRejectsForeignValues(t *testing.T) {
	_, err := goToCty(struct{}{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "no script representation")
}

func TestCtyToGoNullAndNil(t *testing.T) {
	v, err := ctyToGo(cty.NilVal)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = ctyToGo(cty.NullVal(cty.String))
	require.NoError(t, err)
	assert.Nil(t, v)
}
