package state

import (
	"fmt"
	"log/slog"
	"sync"
)

// hub tracks the subscribers and listeners of one store.
// It is embedded by Leaf and Composite.
type hub[T any] struct {
	mu        sync.Mutex
	nextID    uint64
	subs      []subscriber[T]
	listeners []listener[T]

	name   string
	logger *slog.Logger
}

type subscriber[T any] struct {
	sub    *Subscription
	render RenderFunc[T]
}

type listener[T any] struct {
	id uint64
	fn Observer[T]
}

// attach registers render and returns the entry so the caller can deliver
// the current value right away.
func (h *hub[T]) attach(render RenderFunc[T], opts []SubscribeOption) subscriber[T] {
	h.mu.Lock()
	h.nextID++
	sub := &Subscription{id: h.nextID}
	for _, opt := range opts {
		opt(sub)
	}
	id := sub.id
	sub.release = func() { h.detach(id) }
	entry := subscriber[T]{sub: sub, render: render}
	h.subs = append(h.subs, entry)
	h.mu.Unlock()
	return entry
}

// detach removes a subscriber, keeping the order of the others.
func (h *hub[T]) detach(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, existing := range h.subs {
		if existing.sub.id == id {
			h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
			return
		}
	}
}

func (h *hub[T]) listen(fn Observer[T]) func() {
	if fn == nil {
		return func() {}
	}
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.listeners = append(h.listeners, listener[T]{id: id, fn: fn})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			for i, l := range h.listeners {
				if l.id == id {
					h.listeners = append(h.listeners[:i:i], h.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// subscriberCount returns the number of attached subscribers.
func (h *hub[T]) subscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// notify delivers value to every subscriber, then to every listener in
// registration order. The store must have committed its state before
// calling notify; a failing callback only affects itself.
func (h *hub[T]) notify(value T, ok bool, version uint64) {
	h.mu.Lock()
	subs := make([]subscriber[T], len(h.subs))
	copy(subs, h.subs)
	listeners := make([]listener[T], len(h.listeners))
	copy(listeners, h.listeners)
	h.mu.Unlock()

	for _, entry := range subs {
		h.deliver(entry, value, ok, version)
	}
	if !ok {
		return
	}
	for _, l := range listeners {
		h.observe(l, value)
	}
}

// deliver hands value to one subscriber. A snapshot older than one the
// subscriber already has is dropped, so racing writes cannot leave it on a
// stale value.
func (h *hub[T]) deliver(entry subscriber[T], value T, ok bool, version uint64) {
	entry.sub.schedule(version, func() {
		h.render(entry, value, ok, version)
	})
}

func (h *hub[T]) render(entry subscriber[T], value T, ok bool, version uint64) {
	sub := entry.sub
	if !sub.Attached() {
		return
	}
	if !ok {
		sub.version.Store(version)
		if sub.empty != nil {
			sub.empty()
		}
		return
	}
	if err := safeRender(entry.render, value); err != nil {
		h.log().Debug("state: subscriber fell back",
			"store", h.name,
			"subscription", sub.id,
			"error", err)
		sub.reset(err)
		return
	}
	sub.rendered(version)
}

func (h *hub[T]) observe(l listener[T], value T) {
	defer func() {
		if r := recover(); r != nil {
			h.log().Error("state: listener panicked",
				"store", h.name,
				"listener", l.id,
				"panic", r)
		}
	}()
	l.fn(value)
}

func (h *hub[T]) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

func safeRender[T any](render RenderFunc[T], value T) (err error) {
	if render == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrRenderPanic, r)
		}
	}()
	return render(value)
}
