package hcl

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/modkit/internal/config"
	"github.com/vk/modkit/internal/ctxlog"
	"github.com/vk/modkit/internal/schema"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// translateRef converts an HCL module reference into the agnostic model,
// evaluating its inline options and resolving a relative source against the
// app file's directory.
func (l *Loader) translateRef(ctx context.Context, ref *schema.ModuleRef, file, baseDir string, evalCtx *hcl.EvalContext) (*config.ModuleRef, error) {
	out := &config.ModuleRef{
		Name:       ref.Name,
		Options:    cty.NilVal,
		SourceFile: file,
	}

	if ref.Source != "" {
		source := ref.Source
		if !filepath.IsAbs(source) {
			source = filepath.Join(baseDir, source)
		}
		out.Source = filepath.Clean(source)
	}

	if ref.Options != nil {
		value, err := evaluateBody(ref.Options.Body, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("module %q options: %w", ref.Name, err)
		}
		out.Options = value
	}
	return out, nil
}

// translateManifest converts the HCL-specific manifest schema into the
// agnostic model, resolving option types and validating their defaults.
func (l *Loader) translateManifest(ctx context.Context, m *schema.ModuleManifest) (*config.ModuleDefinition, error) {
	logger := ctxlog.FromContext(ctx)

	def := &config.ModuleDefinition{
		Name:          m.Name,
		Version:       m.Version,
		ConfigKey:     m.ConfigKey,
		Compatibility: m.Compatibility,
		Description:   m.Description,
		Options:       make(map[string]*config.OptionDefinition),
	}
	if m.Lifecycle != nil {
		def.Setup = m.Lifecycle.Setup
		for _, h := range m.Lifecycle.Hooks {
			def.Hooks = append(def.Hooks, &config.HookDefinition{Event: h.Event, Handler: h.Handler})
		}
	}

	for _, opt := range m.Options {
		if _, exists := def.Options[opt.Name]; exists {
			return nil, fmt.Errorf("option %q declared twice", opt.Name)
		}

		optType, err := typeExprToCtyType(ctx, opt.Type)
		if err != nil {
			return nil, fmt.Errorf("option %q: %w", opt.Name, err)
		}

		var defaultVal *cty.Value
		if opt.Default != nil && !opt.Default.IsNull() {
			converted, err := convert.Convert(*opt.Default, optType)
			if err != nil {
				return nil, fmt.Errorf("option %q: default does not match declared type %s: %w",
					opt.Name, optType.FriendlyName(), err)
			}
			defaultVal = &converted
		}

		logger.Debug("Translated option definition.",
			"module", m.Name,
			"option", opt.Name,
			"type", optType.FriendlyName(),
			"has_default", defaultVal != nil,
		)
		def.Options[opt.Name] = &config.OptionDefinition{
			Name:        opt.Name,
			Type:        optType,
			Description: opt.Description,
			Default:     defaultVal,
			Required:    opt.Required && defaultVal == nil,
		}
	}
	return def, nil
}
