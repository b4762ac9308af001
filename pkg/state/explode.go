package state

import (
	"maps"
	"slices"
	"sync"
)

// Exploded maps each key of a store's value to a focused store. Focused
// stores are built on first access and memoized per key.
type Exploded[P any, K comparable, V any] struct {
	parent Store[P]
	lens   func(K) Lens[P, V]
	keys   func(P) []K

	mu   sync.Mutex
	memo map[K]*Focused[P, V]
}

// Explode builds an Exploded over parent. lens returns the lens for a key;
// keys lists the keys of a parent value.
func Explode[P any, K comparable, V any](parent Store[P], lens func(K) Lens[P, V], keys func(P) []K) *Exploded[P, K, V] {
	return &Exploded[P, K, V]{
		parent: parent,
		lens:   lens,
		keys:   keys,
		memo:   make(map[K]*Focused[P, V]),
	}
}

// ExplodeMap explodes a map store by key.
func ExplodeMap[V any](parent Store[map[string]V]) *Exploded[map[string]V, string, V] {
	return Explode(parent, Key[V], func(m map[string]V) []string {
		return slices.Sorted(maps.Keys(m))
	})
}

// ExplodeSlice explodes a slice store by index.
func ExplodeSlice[V any](parent Store[[]V]) *Exploded[[]V, int, V] {
	return Explode(parent, Index[V], func(s []V) []int {
		keys := make([]int, len(s))
		for i := range s {
			keys[i] = i
		}
		return keys
	})
}

// Get returns the store focused on key, creating it on first access.
func (e *Exploded[P, K, V]) Get(key K) *Focused[P, V] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if f, ok := e.memo[key]; ok {
		return f
	}
	f := Focus(e.parent, e.lens(key))
	e.memo[key] = f
	return f
}

// Keys lists the keys of the parent's current value. It is empty while the
// parent holds no value.
func (e *Exploded[P, K, V]) Keys() []K {
	p, ok := e.parent.Value()
	if !ok {
		return nil
	}
	return e.keys(p)
}

// Len returns the number of keys in the parent's current value.
func (e *Exploded[P, K, V]) Len() int {
	return len(e.Keys())
}

// All returns a focused store for every current key.
func (e *Exploded[P, K, V]) All() map[K]Store[V] {
	keys := e.Keys()
	all := make(map[K]Store[V], len(keys))
	for _, key := range keys {
		all[key] = e.Get(key)
	}
	return all
}

// Built returns how many focused stores have been created so far.
func (e *Exploded[P, K, V]) Built() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.memo)
}
