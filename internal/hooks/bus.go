package hooks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vk/modkit/internal/ctxlog"
)

// Reserved lifecycle event names fired by the runtime itself. Modules may
// hook these and may define their own events under any other name.
const (
	// EventModulesBefore fires before the first module setup runs.
	EventModulesBefore = "modules:before"
	// EventModulesDone fires after the last module setup has completed.
	EventModulesDone = "modules:done"
	// EventAppReady fires once the application is fully assembled.
	EventAppReady = "app:ready"
	// EventAppClose is the terminal teardown event.
	EventAppClose = "app:close"
)

// ErrClosed is returned when a hook is registered or an event is called
// after the bus has been torn down by CallClose.
var ErrClosed = errors.New("hook bus is closed")

// Func is a single hook callback. Long-running work blocks the chain until
// it returns; the context carries cancellation and the application logger.
type Func func(ctx context.Context) error

type entry struct {
	seq int
	fn  Func
}

// Bus is an ordered event-name-to-callback-chain registry. Registration is
// safe for concurrent use; Call dispatches sequentially on the caller's
// goroutine.
type Bus struct {
	mu     sync.Mutex
	chains map[string][]entry
	nextID int
	closed bool
}

// NewBus creates an empty hook bus.
func NewBus() *Bus {
	return &Bus{chains: make(map[string][]entry)}
}

// Hook appends fn to the chain for event and returns a function that removes
// it again. Registering a nil callback is a programmer error and panics.
// After CallClose the bus rejects new registrations with ErrClosed.
func (b *Bus) Hook(event string, fn Func) (func(), error) {
	if event == "" {
		panic("hooks: event name must not be empty")
	}
	if fn == nil {
		panic(fmt.Sprintf("hooks: nil callback registered for event '%s'", event))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("cannot hook '%s': %w", event, ErrClosed)
	}

	b.nextID++
	id := b.nextID
	b.chains[event] = append(b.chains[event], entry{seq: id, fn: fn})

	remove := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		chain := b.chains[event]
		for i, e := range chain {
			if e.seq == id {
				b.chains[event] = append(chain[:i:i], chain[i+1:]...)
				return
			}
		}
	}
	return remove, nil
}

// Call invokes every callback registered for event, in registration order.
// Each callback runs to completion before the next starts; the first error
// aborts the rest of the chain and is returned. Callbacks registered while
// the chain is running are not picked up by the in-flight call.
func (b *Bus) Call(ctx context.Context, event string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("cannot call '%s': %w", event, ErrClosed)
	}
	chain := b.snapshot(event)
	b.mu.Unlock()

	return runChain(ctx, event, chain)
}

// CallClose runs the terminal app:close chain exactly once and marks the bus
// closed. Later invocations are no-ops returning nil, so every shutdown path
// may call it defensively.
func (b *Bus) CallClose(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	chain := b.snapshot(EventAppClose)
	b.mu.Unlock()

	return runChain(ctx, EventAppClose, chain)
}

// Closed reports whether CallClose has run.
func (b *Bus) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Registered returns the number of callbacks currently attached to event.
func (b *Bus) Registered(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chains[event])
}

// Events returns the names of all events with at least one callback, sorted
// for stable output.
func (b *Bus) Events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.chains))
	for name, chain := range b.chains {
		if len(chain) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// snapshot copies an event's chain. Callers must hold b.mu.
func (b *Bus) snapshot(event string) []entry {
	chain := make([]entry, len(b.chains[event]))
	copy(chain, b.chains[event])
	return chain
}

// runChain dispatches a snapshotted chain outside the bus lock so that
// callbacks are free to register or remove hooks while running.
func runChain(ctx context.Context, event string, chain []entry) error {
	logger := ctxlog.FromContext(ctx).With("event", event)
	logger.Debug("Calling hook chain.", "callbacks", len(chain))

	for i, e := range chain {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("hook chain '%s' canceled before callback %d: %w", event, i, err)
		}
		if err := e.fn(ctx); err != nil {
			return fmt.Errorf("hook '%s' callback %d failed: %w", event, i, err)
		}
	}
	return nil
}
