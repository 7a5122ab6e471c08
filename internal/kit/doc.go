// Package kit defines the contract between the modkit runtime and the
// modules it installs: the module descriptor, the shared application host
// surface, and the callback signatures dispatched over the hook bus.
//
// The package sits at the bottom of the dependency graph so that module
// packages, the registry, and the installer can all agree on these types
// without importing each other.
package kit
