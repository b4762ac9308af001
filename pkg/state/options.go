package state

import "log/slog"

// Option configures a store at construction.
type Option[T any] func(*config[T])

type config[T any] struct {
	name    string
	logger  *slog.Logger
	persist PersistFunc[T]
	init    InitFunc[T]
}

// WithPersist routes every write through fn before it is stored.
//
// Example:
//
//	todos := state.New(seed, state.WithPersist(persist.Writer[[]Record](backend, "todos")))
func WithPersist[T any](fn PersistFunc[T]) Option[T] {
	return func(c *config[T]) {
		c.persist = fn
	}
}

// WithInitializer sets the function Reset uses to reseed the store.
func WithInitializer[T any](fn InitFunc[T]) Option[T] {
	return func(c *config[T]) {
		c.init = fn
	}
}

// WithLogger sets the logger. If unset, slog.Default() is used.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(c *config[T]) {
		c.logger = logger
	}
}

// WithName names the store in log lines and metrics.
func WithName[T any](name string) Option[T] {
	return func(c *config[T]) {
		c.name = name
	}
}

func applyOptions[T any](opts []Option[T]) config[T] {
	var c config[T]
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	return c
}
