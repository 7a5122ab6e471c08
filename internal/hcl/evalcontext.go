package hcl

import (
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/modkit/internal/config"
	"github.com/zclconf/go-cty/cty"
)

// buildEvalContext creates the evaluation context app files are evaluated
// in. Two variables are exposed: `app`, the profile of the application
// itself, and `env`, the process environment as a string map.
func buildEvalContext(app *config.AppProfile) *hcl.EvalContext {
	vars := map[string]cty.Value{
		"app": cty.ObjectVal(map[string]cty.Value{
			"name":    cty.StringVal(app.Name),
			"version": cty.StringVal(app.Version),
			"env":     cty.StringVal(app.Env),
		}),
		"env": environVal(),
	}
	return &hcl.EvalContext{Variables: vars}
}

func environVal() cty.Value {
	values := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		values[name] = cty.StringVal(value)
	}
	if len(values) == 0 {
		return cty.MapValEmpty(cty.String)
	}
	return cty.MapVal(values)
}
