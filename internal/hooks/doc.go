// Package hooks implements the lifecycle hook bus: an ordered mapping from
// event names to callback chains. Callbacks are invoked strictly in
// registration order and each one is awaited before the next starts, so a
// slow or asynchronous callback holds up lifecycle progression by design.
//
// The bus itself stays dumb on purpose: it knows nothing about modules or
// the application host. Callbacks close over whatever state they need.
package hooks
