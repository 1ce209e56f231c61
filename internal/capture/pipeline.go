package capture

import (
	"context"
	"fmt"
	"sync"
)

// Source fills a context with pixels. Returning false means there was
// nothing to import; the flow stops without an error.
type Source interface {
	Import(ctx context.Context, c *Context) (bool, error)
}

// Processor transforms a context in place.
type Processor interface {
	Process(ctx context.Context, c *Context) (bool, error)
}

// Destination turns a context into an external artifact. Returning true
// means an export was made.
type Destination interface {
	Export(ctx context.Context, c *Context) (bool, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, c *Context) (bool, error)

// Import calls f.
func (f SourceFunc) Import(ctx context.Context, c *Context) (bool, error) { return f(ctx, c) }

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, c *Context) (bool, error)

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, c *Context) (bool, error) { return f(ctx, c) }

// DestinationFunc adapts a function to Destination.
type DestinationFunc func(ctx context.Context, c *Context) (bool, error)

// Export calls f.
func (f DestinationFunc) Export(ctx context.Context, c *Context) (bool, error) { return f(ctx, c) }

// StackSource runs several sources in order. Every source runs even when an
// earlier one returns false; the result is true only if all returned true.
// An error or cancellation stops the stack.
type StackSource []Source

// Import implements Source.
func (s StackSource) Import(ctx context.Context, c *Context) (bool, error) {
	result := true
	for i, src := range s {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		ok, err := src.Import(ctx, c)
		if err != nil {
			return false, fmt.Errorf("source %d: %w", i, err)
		}
		result = result && ok
	}
	return result, nil
}

// StackProcessor runs several processors in order with the same semantics
// as StackSource.
type StackProcessor []Processor

// Process implements Processor.
func (s StackProcessor) Process(ctx context.Context, c *Context) (bool, error) {
	result := true
	for i, p := range s {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		ok, err := p.Process(ctx, c)
		if err != nil {
			return false, fmt.Errorf("processor %d: %w", i, err)
		}
		result = result && ok
	}
	return result, nil
}

// DynamicDestination is a family of destinations materialized from external
// state, for example one per open work item.
type DynamicDestination interface {
	Destination
	// Destinations returns the family, fetching it on first use. It is
	// empty when the external state is.
	Destinations(ctx context.Context) ([]Destination, error)
	// Invalidate drops the cached family so the next call fetches again.
	Invalidate()
}

// Family caches the members of a dynamic destination until invalidated.
type Family struct {
	fetch func(ctx context.Context) ([]Destination, error)

	mu      sync.Mutex
	members []Destination
	loaded  bool
}

// NewFamily creates a cache around fetch.
func NewFamily(fetch func(ctx context.Context) ([]Destination, error)) *Family {
	return &Family{fetch: fetch}
}

// Destinations returns the cached members, fetching them if needed.
func (f *Family) Destinations(ctx context.Context) ([]Destination, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loaded {
		return append([]Destination(nil), f.members...), nil
	}
	members, err := f.fetch(ctx)
	if err != nil {
		return nil, err
	}
	f.members = members
	f.loaded = true
	return append([]Destination(nil), members...), nil
}

// Invalidate drops the cache.
func (f *Family) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members = nil
	f.loaded = false
}

// Refresh drops the cache and fetches again.
func (f *Family) Refresh(ctx context.Context) error {
	f.Invalidate()
	_, err := f.Destinations(ctx)
	return err
}
