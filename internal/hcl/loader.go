package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/modkit/internal/config"
	"github.com/vk/modkit/internal/ctxlog"
	"github.com/vk/modkit/internal/fsutil"
	"github.com/vk/modkit/internal/schema"
	"github.com/zclconf/go-cty/cty"
)

// ManifestFileName is the fixed manifest name looked up inside a module
// directory referenced by `source`. A directory without one may carry a
// ScriptFileName script instead.
const (
	ManifestFileName = "module.hcl"
	ScriptFileName   = "module.lua"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// Load parses application files from the given paths, evaluates their
// settings sections and inline options against the app evaluation context,
// and resolves every module manifest it can find: manifests referenced by
// `source` plus module.hcl files discovered under directory paths. Script
// sources are recorded on their refs but left for the script loader.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, config.Converter, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "paths", paths)

	appFiles, manifestDirs, err := collectPaths(paths)
	if err != nil {
		return nil, nil, err
	}
	if len(appFiles) == 0 {
		return nil, nil, fmt.Errorf("no application .hcl files found in %v", paths)
	}

	// First pass: parse every app file and locate the single app block.
	type parsedFile struct {
		path string
		root *schema.AppConfig
	}
	model := config.NewModel()
	parsed := make([]parsedFile, 0, len(appFiles))
	appFile := ""
	for _, path := range appFiles {
		hclFile, diags := l.parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to parse app file %s: %w", path, diags)
		}

		root := &schema.AppConfig{}
		if diags := gohcl.DecodeBody(hclFile.Body, nil, root); diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to decode app file %s: %w", path, diags)
		}
		if root.App != nil {
			if appFile != "" {
				return nil, nil, fmt.Errorf("app block in %s was already declared in %s", path, appFile)
			}
			appFile = path
			model.App = &config.AppProfile{
				Name:    root.App.Name,
				Version: root.App.Version,
				Env:     root.App.Env,
			}
		}
		parsed = append(parsed, parsedFile{path: path, root: root})
	}
	if appFile == "" {
		return nil, nil, fmt.Errorf("no app block found in %v", paths)
	}

	// Second pass: with the profile known, evaluate settings and module
	// references in file order.
	evalCtx := buildEvalContext(model.App)
	for _, pf := range parsed {
		baseDir := filepath.Dir(pf.path)

		for _, block := range pf.root.Settings {
			if _, exists := model.Settings[block.Key]; exists {
				return nil, nil, fmt.Errorf("duplicate settings block %q in %s", block.Key, pf.path)
			}
			value, err := evaluateBody(block.Body, evalCtx)
			if err != nil {
				return nil, nil, fmt.Errorf("settings %q: %w", block.Key, err)
			}
			model.Settings[block.Key] = &config.SettingsBlock{Key: block.Key, Value: value}
		}

		for _, ref := range pf.root.Modules {
			translated, err := l.translateRef(ctx, ref, pf.path, baseDir, evalCtx)
			if err != nil {
				return nil, nil, err
			}
			model.Modules = append(model.Modules, translated)

			if translated.Source == "" || translated.IsScript() {
				continue
			}
			// A sourced directory without a manifest may carry a script.
			if scriptPath, ok := scriptSource(translated.Source); ok {
				translated.Source = scriptPath
				continue
			}
			def, err := l.LoadManifest(ctx, translated.Source)
			if err != nil {
				return nil, nil, fmt.Errorf("module %q: %w", ref.Name, err)
			}
			if def.Name != ref.Name {
				return nil, nil, fmt.Errorf("module %q: manifest at %s declares name %q", ref.Name, translated.Source, def.Name)
			}
			model.Definitions[def.Name] = def
		}
	}

	// Conventional module directories join the definition set last, so a
	// discovered manifest never shadows an explicitly sourced one.
	for _, dir := range manifestDirs {
		def, err := l.LoadManifest(ctx, dir)
		if err != nil {
			return nil, nil, err
		}
		if existing, ok := model.Definitions[def.Name]; ok {
			if existing.Dir == def.Dir {
				continue
			}
			return nil, nil, fmt.Errorf("module %q defined by both %s and %s", def.Name, existing.Dir, def.Dir)
		}
		model.Definitions[def.Name] = def
	}

	logger.Debug("HCL loading complete.",
		"modules", len(model.Modules),
		"settings", len(model.Settings),
		"manifests", len(model.Definitions),
	)
	return model, NewConverter(), nil
}

// collectPaths expands files and directories into app files and manifest
// directories. Inside a directory, module.hcl files mark module directories
// and every other .hcl file counts as application config.
func collectPaths(paths []string) (appFiles, manifestDirs []string, err error) {
	seenDirs := make(map[string]bool)
	addManifestDir := func(dir string) {
		dir = filepath.Clean(dir)
		if !seenDirs[dir] {
			seenDirs[dir] = true
			manifestDirs = append(manifestDirs, dir)
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, nil, fmt.Errorf("config path %s: %w", path, err)
		}

		if !info.IsDir() {
			if filepath.Base(path) == ManifestFileName {
				addManifestDir(filepath.Dir(path))
			} else {
				appFiles = append(appFiles, path)
			}
			continue
		}

		found, err := fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, nil, fmt.Errorf("config path %s: %w", path, err)
		}
		for _, file := range found {
			if filepath.Base(file) == ManifestFileName {
				addManifestDir(filepath.Dir(file))
			} else {
				appFiles = append(appFiles, file)
			}
		}
	}
	return appFiles, manifestDirs, nil
}

// LoadManifest parses the module.hcl manifest inside dir and translates it
// into the format-agnostic definition.
func (l *Loader) LoadManifest(ctx context.Context, dir string) (*config.ModuleDefinition, error) {
	logger := ctxlog.FromContext(ctx)
	manifestPath := filepath.Join(dir, ManifestFileName)
	logger.Debug("Loading module manifest.", "path", manifestPath)

	if _, err := os.Stat(manifestPath); err != nil {
		return nil, fmt.Errorf("no %s found in %s: %w", ManifestFileName, dir, err)
	}

	hclFile, diags := l.parser.ParseHCLFile(manifestPath)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", manifestPath, diags)
	}

	var root schema.ManifestConfig
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", manifestPath, diags)
	}
	if root.Module == nil {
		return nil, fmt.Errorf("manifest %s is missing the module block", manifestPath)
	}

	def, err := l.translateManifest(ctx, root.Module)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", manifestPath, err)
	}
	def.Dir = dir
	return def, nil
}

// scriptSource reports whether dir is a script module directory: one that
// holds a module.lua but no module.hcl. The manifest wins when both exist.
func scriptSource(dir string) (string, bool) {
	if _, err := os.Stat(filepath.Join(dir, ManifestFileName)); err == nil {
		return "", false
	}
	scriptPath := filepath.Join(dir, ScriptFileName)
	if _, err := os.Stat(scriptPath); err != nil {
		return "", false
	}
	return scriptPath, true
}

// evaluateBody evaluates every attribute of a raw body against evalCtx and
// packs the results into a single object value.
func evaluateBody(body hcl.Body, evalCtx *hcl.EvalContext) (cty.Value, error) {
	if body == nil {
		return cty.NilVal, nil
	}
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("only attributes are allowed here: %w", diags)
	}
	if len(attrs) == 0 {
		return cty.EmptyObjectVal, nil
	}

	values := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		value, diags := attr.Expr.Value(evalCtx)
		if diags.HasErrors() {
			return cty.NilVal, fmt.Errorf("attribute %q: %w", name, diags)
		}
		values[name] = value
	}
	return cty.ObjectVal(values), nil
}
