package options

import (
	"github.com/zclconf/go-cty/cty"
)

// Merge layers option objects left to right, later layers winning. Object and
// map values merge recursively key by key; every other type, lists included,
// is replaced wholesale by the stronger layer. cty.NilVal layers are skipped,
// so absent settings sections need no special casing by callers.
func Merge(layers ...cty.Value) cty.Value {
	merged := cty.EmptyObjectVal
	for _, layer := range layers {
		merged = mergeValue(merged, layer)
	}
	return merged
}

func mergeValue(base, override cty.Value) cty.Value {
	if override == cty.NilVal {
		return base
	}
	if base == cty.NilVal {
		return override
	}
	if !isMapping(base) || !isMapping(override) {
		return override
	}

	out := make(map[string]cty.Value)
	for name, value := range base.AsValueMap() {
		out[name] = value
	}
	for name, value := range override.AsValueMap() {
		if existing, ok := out[name]; ok {
			out[name] = mergeValue(existing, value)
			continue
		}
		out[name] = value
	}
	if len(out) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(out)
}

// isMapping reports whether v is a known, non-null value that merges key by
// key rather than being replaced.
func isMapping(v cty.Value) bool {
	if v == cty.NilVal || v.IsNull() || !v.IsKnown() {
		return false
	}
	ty := v.Type()
	return ty.IsObjectType() || ty.IsMapType()
}
