// Package options resolves the effective option set a module is installed
// with. Three layers contribute, weakest first: defaults declared by the
// module, the settings section matching the module's config key, and inline
// options attached to the module reference itself.
package options
