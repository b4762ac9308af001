package state

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Composite presents named child stores as one store whose value maps each
// name to the child's value. It does not own the children; it listens to
// them.
type Composite[V any] struct {
	hub hub[map[string]V]

	children map[string]Store[V]
	keys     []string

	mu      sync.RWMutex
	value   map[string]V
	version uint64

	cancels   []func()
	closeOnce sync.Once
}

// Compose builds a composite over children. Children that already hold a
// value seed the aggregate; each later child update writes its field and
// notifies the composite once.
func Compose[V any](children map[string]Store[V], opts ...Option[map[string]V]) *Composite[V] {
	c := applyOptions(opts)
	comp := &Composite[V]{
		hub:      hub[map[string]V]{name: c.name, logger: c.logger},
		children: maps.Clone(children),
		keys:     slices.Sorted(maps.Keys(children)),
		value:    make(map[string]V, len(children)),
	}

	for _, key := range comp.keys {
		child := comp.children[key]
		if v, ok := child.Value(); ok {
			comp.value[key] = v
		}
	}
	for _, key := range comp.keys {
		child := comp.children[key]
		comp.cancels = append(comp.cancels, child.Listen(func(v V) {
			comp.assign(key, v)
		}))
	}
	return comp
}

func (c *Composite[V]) assign(key string, v V) {
	c.mu.Lock()
	c.value[key] = v
	c.version++
	c.mu.Unlock()

	c.Update()
}

// Value returns the aggregate. The map is shared with the composite:
// callers may mutate it and then call Set or Update.
func (c *Composite[V]) Value() (map[string]V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, true
}

// Version counts child updates seen by the composite.
func (c *Composite[V]) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Set merges value into the aggregate and then writes every child with its
// field, including children whose field did not change. Fields absent from
// value keep their current contents.
func (c *Composite[V]) Set(ctx context.Context, value map[string]V) error {
	for key := range value {
		if _, ok := c.children[key]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownKey, key)
		}
	}

	c.mu.Lock()
	for key, v := range value {
		c.value[key] = v
	}
	fields := make(map[string]V, len(c.value))
	for key, v := range c.value {
		fields[key] = v
	}
	c.mu.Unlock()

	var errs []error
	for _, key := range c.keys {
		v, ok := fields[key]
		if !ok {
			continue
		}
		if err := c.children[key].Set(ctx, v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	c.Update()
	return errors.Join(errs...)
}

// SetPending awaits pending and then behaves as Set.
func (c *Composite[V]) SetPending(ctx context.Context, pending Pending[map[string]V]) error {
	value, err := pending.Await(ctx)
	if err != nil {
		return err
	}
	return c.Set(ctx, value)
}

// Update delivers the aggregate to subscribers and listeners.
func (c *Composite[V]) Update() {
	c.mu.RLock()
	value, version := c.value, c.version
	c.mu.RUnlock()

	c.hub.notify(value, true, version)
}

// Reset resets every child and waits for all of them. Children without an
// initializer are left alone.
func (c *Composite[V]) Reset(ctx context.Context) error {
	var errs []error
	for _, key := range c.keys {
		if err := c.children[key].Reset(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Listen registers observer for aggregate updates.
func (c *Composite[V]) Listen(observer Observer[map[string]V]) func() {
	return c.hub.listen(observer)
}

// Subscribe attaches render and renders the current aggregate.
func (c *Composite[V]) Subscribe(render RenderFunc[map[string]V], opts ...SubscribeOption) *Subscription {
	entry := c.hub.attach(render, opts)

	c.mu.RLock()
	value, version := c.value, c.version
	c.mu.RUnlock()

	c.hub.deliver(entry, value, true, version)
	return entry.sub
}

// Explode returns the child stores. No new stores are created.
func (c *Composite[V]) Explode() map[string]Store[V] {
	return maps.Clone(c.children)
}

// Keys returns the child names in sorted order.
func (c *Composite[V]) Keys() []string {
	return slices.Clone(c.keys)
}

// Close stops listening to the children. The composite keeps its last
// aggregate and can still Set the children.
func (c *Composite[V]) Close() {
	c.closeOnce.Do(func() {
		for _, cancel := range c.cancels {
			cancel()
		}
	})
}
