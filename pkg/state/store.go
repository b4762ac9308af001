package state

import "context"

// Store is a reactive value container.
//
// Value reports false until the first write has completed. Implementations
// are Leaf, Composite and Focused.
type Store[T any] interface {
	// Value returns the current value, or false if nothing has been written.
	Value() (T, bool)

	// Version returns the write counter. It only grows.
	Version() uint64

	// Set writes value and notifies subscribers and listeners.
	Set(ctx context.Context, value T) error

	// SetPending awaits pending and writes the result.
	SetPending(ctx context.Context, pending Pending[T]) error

	// Update notifies subscribers and listeners with the current value
	// without writing.
	Update()

	// Reset recomputes the initial value, if the store has an initializer.
	Reset(ctx context.Context) error

	// Listen registers a passive observer called after every update.
	Listen(observer Observer[T]) (cancel func())

	// Subscribe attaches a render callback. If the store already holds a
	// value, render runs before Subscribe returns.
	Subscribe(render RenderFunc[T], opts ...SubscribeOption) *Subscription
}

// Observer receives the current value after an update.
type Observer[T any] func(value T)

// RenderFunc renders the latest value for a subscriber. A returned error
// sends the subscription down its fallback path.
type RenderFunc[T any] func(value T) error

// PersistFunc passes a resolved value through storage. The returned value
// becomes the stored one.
type PersistFunc[T any] func(ctx context.Context, value T) (T, error)

// InitFunc computes an initial value. Reset uses it to reseed a store.
type InitFunc[T any] func(ctx context.Context) (T, error)
