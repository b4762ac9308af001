package state

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// Lens reads and writes one key of a parent value.
type Lens[P, C any] struct {
	// Key names the focused part, for logs and explode memos.
	Key string

	// Get returns the focused part, or false if the parent lacks it.
	Get func(parent P) (C, bool)

	// Put returns a parent holding child at Key. It must not modify the
	// parent it was given.
	Put func(parent P, child C) (P, error)
}

// Key focuses on one entry of a map.
func Key[V any](key string) Lens[map[string]V, V] {
	return Lens[map[string]V, V]{
		Key: key,
		Get: func(m map[string]V) (V, bool) {
			v, ok := m[key]
			return v, ok
		},
		Put: func(m map[string]V, v V) (map[string]V, error) {
			next := maps.Clone(m)
			if next == nil {
				next = make(map[string]V, 1)
			}
			next[key] = v
			return next, nil
		},
	}
}

// Index focuses on one element of a slice.
func Index[V any](i int) Lens[[]V, V] {
	return Lens[[]V, V]{
		Key: strconv.Itoa(i),
		Get: func(s []V) (V, bool) {
			if i < 0 || i >= len(s) {
				var zero V
				return zero, false
			}
			return s[i], true
		},
		Put: func(s []V, v V) ([]V, error) {
			if i < 0 || i >= len(s) {
				return s, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(s))
			}
			next := slices.Clone(s)
			next[i] = v
			return next, nil
		},
	}
}

// Field focuses on a struct field through a getter and a copy-on-write
// setter.
//
// Example:
//
//	checked := state.Field("checked",
//	    func(r Record) bool { return r.Checked },
//	    func(r Record, c bool) Record { r.Checked = c; return r })
func Field[P, C any](name string, get func(P) C, put func(P, C) P) Lens[P, C] {
	return Lens[P, C]{
		Key: name,
		Get: func(p P) (C, bool) {
			return get(p), true
		},
		Put: func(p P, c C) (P, error) {
			return put(p, c), nil
		},
	}
}

// Focused is a store view on one key of a parent store. It holds no value
// or version of its own.
type Focused[P, C any] struct {
	parent Store[P]
	lens   Lens[P, C]
}

// Focus returns a store focused on lens within parent.
func Focus[P, C any](parent Store[P], lens Lens[P, C]) *Focused[P, C] {
	return &Focused[P, C]{parent: parent, lens: lens}
}

// Key returns the focused key.
func (f *Focused[P, C]) Key() string {
	return f.lens.Key
}

// Parent returns the store this view reads from.
func (f *Focused[P, C]) Parent() Store[P] {
	return f.parent
}

// Value returns the focused part of the parent's value. It reports false if
// the parent is empty or lacks the key.
func (f *Focused[P, C]) Value() (C, bool) {
	p, ok := f.parent.Value()
	if !ok {
		var zero C
		return zero, false
	}
	return f.lens.Get(p)
}

// Version returns the parent's version.
func (f *Focused[P, C]) Version() uint64 {
	return f.parent.Version()
}

// Set writes value into the parent's current value, read at call time, and
// writes the result to the parent. Sibling keys are kept.
func (f *Focused[P, C]) Set(ctx context.Context, value C) error {
	current, _ := f.parent.Value()
	next, err := f.lens.Put(current, value)
	if err != nil {
		return err
	}
	return f.parent.Set(ctx, next)
}

// SetPending awaits pending and then behaves as Set.
func (f *Focused[P, C]) SetPending(ctx context.Context, pending Pending[C]) error {
	value, err := pending.Await(ctx)
	if err != nil {
		return err
	}
	return f.Set(ctx, value)
}

// Update forwards to the parent.
func (f *Focused[P, C]) Update() {
	f.parent.Update()
}

// Reset forwards to the parent.
func (f *Focused[P, C]) Reset(ctx context.Context) error {
	return f.parent.Reset(ctx)
}

// Listen observes the parent and passes on the focused part. Updates in
// which the parent lacks the key are skipped.
func (f *Focused[P, C]) Listen(observer Observer[C]) func() {
	if observer == nil {
		return func() {}
	}
	return f.parent.Listen(func(p P) {
		if c, ok := f.lens.Get(p); ok {
			observer(c)
		}
	})
}

// Subscribe attaches render to the parent, narrowed to the focused part.
// While the parent lacks the key the subscription renders nothing.
func (f *Focused[P, C]) Subscribe(render RenderFunc[C], opts ...SubscribeOption) *Subscription {
	var empty func()
	probe := &Subscription{}
	for _, opt := range opts {
		opt(probe)
	}
	empty = probe.empty

	return f.parent.Subscribe(func(p P) error {
		c, ok := f.lens.Get(p)
		if !ok {
			if empty != nil {
				empty()
			}
			return nil
		}
		return render(c)
	}, opts...)
}

// Erase adapts a typed store to Store[any], so stores of different types
// can sit in one Composite.
func Erase[T any](s Store[T]) Store[any] {
	return Focus[T, any](s, Lens[T, any]{
		Get: func(t T) (any, bool) {
			return t, true
		},
		Put: func(_ T, v any) (T, error) {
			t, ok := v.(T)
			if !ok {
				var zero T
				return zero, fmt.Errorf("%w: got %T, want %T", ErrTypeMismatch, v, zero)
			}
			return t, nil
		},
	})
}
