// Package hcl provides the concrete HCL implementation for the configuration
// loading and data conversion interfaces defined in the `config` package.
// It is responsible for parsing app files and module manifests, translating
// them into the format-agnostic model, and CTY-to-Go data binding.
package hcl
