package state

import (
	"context"
	"fmt"
	"sync"
)

// Leaf is a store that owns its value.
type Leaf[T any] struct {
	hub hub[T]

	mu          sync.RWMutex
	value       T
	initialized bool
	version     uint64

	persist PersistFunc[T]
	init    InitFunc[T]

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a leaf store and writes initial before returning.
// If a persistence hook rejects the initial write the store stays empty and
// the failure is logged.
func New[T any](initial T, opts ...Option[T]) *Leaf[T] {
	l := newLeaf(applyOptions(opts))
	if err := l.Set(context.Background(), initial); err != nil {
		l.hub.log().Warn("state: initial write failed", "store", l.hub.name, "error", err)
	}
	return l
}

// Define creates a leaf store seeded by init. The initial write runs on its
// own goroutine; Ready is closed once a write has completed. init is also
// used by Reset.
func Define[T any](init InitFunc[T], opts ...Option[T]) *Leaf[T] {
	c := applyOptions(opts)
	if init != nil {
		c.init = init
	}
	l := newLeaf(c)
	go func() {
		if err := l.Reset(context.Background()); err != nil {
			l.hub.log().Warn("state: initial write failed", "store", l.hub.name, "error", err)
		}
	}()
	return l
}

// Load creates a leaf store and runs init before returning, reporting its
// error. The store stays empty when init or the persistence hook fails.
func Load[T any](ctx context.Context, init InitFunc[T], opts ...Option[T]) (*Leaf[T], error) {
	c := applyOptions(opts)
	c.init = init
	l := newLeaf(c)
	if err := l.Reset(ctx); err != nil {
		return l, err
	}
	return l, nil
}

func newLeaf[T any](c config[T]) *Leaf[T] {
	return &Leaf[T]{
		hub:     hub[T]{name: c.name, logger: c.logger},
		persist: c.persist,
		init:    c.init,
		ready:   make(chan struct{}),
	}
}

// Value returns the current value, or false before the first write.
func (l *Leaf[T]) Value() (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value, l.initialized
}

// Version returns the number of completed writes.
func (l *Leaf[T]) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// Initialized reports whether a write has completed.
func (l *Leaf[T]) Initialized() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.initialized
}

// Ready is closed after the first completed write.
func (l *Leaf[T]) Ready() <-chan struct{} {
	return l.ready
}

// Name returns the name given with WithName.
func (l *Leaf[T]) Name() string {
	return l.hub.name
}

// Set writes value. With a persistence hook the hook's result is stored.
// On error nothing changes and nobody is notified.
func (l *Leaf[T]) Set(ctx context.Context, value T) error {
	if l.persist != nil {
		persisted, err := l.persist(ctx, value)
		if err != nil {
			return fmt.Errorf("state: persist: %w", err)
		}
		value = persisted
	}
	l.commit(value)
	return nil
}

// SetPending awaits pending, then writes it as Set does. The store is not
// locked while waiting; concurrent writes race.
func (l *Leaf[T]) SetPending(ctx context.Context, pending Pending[T]) error {
	value, err := pending.Await(ctx)
	if err != nil {
		return err
	}
	return l.Set(ctx, value)
}

func (l *Leaf[T]) commit(value T) {
	l.mu.Lock()
	l.value = value
	l.initialized = true
	l.version++
	l.mu.Unlock()

	l.Update()
	l.readyOnce.Do(func() { close(l.ready) })
}

// Update delivers the current value and version to every subscriber and
// listener. Use it after mutating a value obtained from Value in place.
func (l *Leaf[T]) Update() {
	l.mu.RLock()
	value, ok, version := l.value, l.initialized, l.version
	l.mu.RUnlock()

	l.hub.notify(value, ok, version)
}

// Reset writes the initializer's result. Without an initializer it does
// nothing.
func (l *Leaf[T]) Reset(ctx context.Context) error {
	if l.init == nil {
		return nil
	}
	value, err := l.init(ctx)
	if err != nil {
		return fmt.Errorf("state: initialize: %w", err)
	}
	return l.Set(ctx, value)
}

// Listen registers observer for the lifetime of the store. The returned
// function removes it.
func (l *Leaf[T]) Listen(observer Observer[T]) func() {
	return l.hub.listen(observer)
}

// Subscribe attaches render. A store that already holds a value renders it
// immediately.
func (l *Leaf[T]) Subscribe(render RenderFunc[T], opts ...SubscribeOption) *Subscription {
	entry := l.hub.attach(render, opts)

	l.mu.RLock()
	value, ok, version := l.value, l.initialized, l.version
	l.mu.RUnlock()

	l.hub.deliver(entry, value, ok, version)
	return entry.sub
}

// Subscribers returns the number of attached subscriptions.
func (l *Leaf[T]) Subscribers() int {
	return l.hub.subscriberCount()
}
