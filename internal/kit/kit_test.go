package kit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func nopSetup(_ context.Context, _ Host, _ cty.Value) error { return nil }

func TestDefinitionIdentity(t *testing.T) {
	testCases := []struct {
		name     string
		def      Definition
		expected string
	}{
		{
			name:     "name wins over config key",
			def:      Definition{Name: "webhook", ConfigKey: "hooks"},
			expected: "webhook",
		},
		{
			name:     "falls back to config key",
			def:      Definition{ConfigKey: "hooks"},
			expected: "hooks",
		},
		{
			name:     "empty definition has empty identity",
			def:      Definition{},
			expected: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.def.Identity())
		})
	}
}

func TestDefinitionEffectiveConfigKey(t *testing.T) {
	def := Definition{Name: "webhook"}
	assert.Equal(t, "webhook", def.EffectiveConfigKey())

	def.ConfigKey = "hooks"
	assert.Equal(t, "hooks", def.EffectiveConfigKey())
}

func TestDefinitionOption(t *testing.T) {
	def := Definition{
		Name: "banner",
		Options: []OptionSpec{
			{Name: "text", Type: cty.String},
			{Name: "repeat", Type: cty.Number},
		},
	}

	spec, ok := def.Option("repeat")
	require.True(t, ok)
	assert.Equal(t, cty.Number, spec.Type)

	_, ok = def.Option("missing")
	assert.False(t, ok)
}

func TestDefinitionValidate(t *testing.T) {
	testCases := []struct {
		name        string
		def         Definition
		expectError string
	}{
		{
			name: "valid handler-based definition",
			def: Definition{
				Name:         "webhook",
				SetupHandler: "SetupWebhook",
				Hooks:        []HookBinding{{Event: "app:ready", Handler: "OnReady"}},
			},
		},
		{
			name: "valid inline definition",
			def:  Definition{Name: "inline", Setup: nopSetup},
		},
		{
			name: "config key alone is a valid identity",
			def:  Definition{ConfigKey: "hooks", Setup: nopSetup},
		},
		{
			name:        "missing identity",
			def:         Definition{Version: "1.0.0"},
			expectError: "neither a name nor a config key",
		},
		{
			name: "ambiguous setup",
			def: Definition{
				Name:         "twice",
				SetupHandler: "SetupTwice",
				Setup:        nopSetup,
			},
			expectError: "both a setup handler and a setup function",
		},
		{
			name: "hook without event",
			def: Definition{
				Name:  "broken",
				Hooks: []HookBinding{{Handler: "OnReady"}},
			},
			expectError: "empty event name",
		},
		{
			name: "hook without callback",
			def: Definition{
				Name:  "broken",
				Hooks: []HookBinding{{Event: "app:ready"}},
			},
			expectError: "neither a handler name nor a function",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.def.Validate()
			if tc.expectError == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.expectError)
		})
	}
}

func TestParseEnvironment(t *testing.T) {
	testCases := []struct {
		name        string
		input       string
		expected    Environment
		expectError bool
	}{
		{name: "development", input: "development", expected: EnvDevelopment},
		{name: "production", input: "production", expected: EnvProduction},
		{name: "empty defaults to production", input: "", expected: EnvProduction},
		{name: "case insensitive", input: "Development", expected: EnvDevelopment},
		{name: "unknown value", input: "staging", expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env, err := ParseEnvironment(tc.input)
			if tc.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, env)
		})
	}
}
