package state

import (
	"sync"
	"sync/atomic"
)

// Subscription is a render attachment to a store. It receives every update
// until Detach is called.
type Subscription struct {
	id uint64

	detached atomic.Bool

	// version is the store version last delivered, or 0 after a fallback.
	version atomic.Uint64

	mu  sync.Mutex
	err error

	// Deliveries run one at a time in version order. seen is the highest
	// version queued or rendered; it survives a fallback reset.
	deliverMu sync.Mutex
	seen      uint64
	next      func()
	draining  bool

	fallback func(error)
	empty    func()
	release  func()
	once     sync.Once
}

// SubscribeOption configures a Subscription.
type SubscribeOption func(*Subscription)

// WithFallback sets the hook run when a render fails. The subscription has
// already reset itself when fn runs.
func WithFallback(fn func(err error)) SubscribeOption {
	return func(s *Subscription) {
		s.fallback = fn
	}
}

// WithEmpty sets the hook run in place of render while the store holds no
// value.
func WithEmpty(fn func()) SubscribeOption {
	return func(s *Subscription) {
		s.empty = fn
	}
}

// Detach stops all future deliveries, including those of writes already in
// flight. It is safe to call more than once.
func (s *Subscription) Detach() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.detached.Store(true)
		if s.release != nil {
			s.release()
		}
	})
}

// Attached reports whether the subscription still receives updates.
func (s *Subscription) Attached() bool {
	return s != nil && !s.detached.Load()
}

// Version returns the store version last delivered.
func (s *Subscription) Version() uint64 {
	return s.version.Load()
}

// Err returns the error of the last failed render, or nil once a later
// render succeeds.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// reset puts the subscription back into its unrendered state after a
// failed render.
func (s *Subscription) reset(err error) {
	s.version.Store(0)
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	if s.fallback != nil {
		s.fallback(err)
	}
}

func (s *Subscription) rendered(version uint64) {
	s.version.Store(version)
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
}

// schedule runs deliver for version unless a newer version was already
// queued or rendered. Deliveries that arrive while another goroutine is
// rendering replace each other, and that goroutine renders the newest
// before it returns.
func (s *Subscription) schedule(version uint64, deliver func()) {
	s.deliverMu.Lock()
	if version < s.seen {
		s.deliverMu.Unlock()
		return
	}
	s.seen = version
	s.next = deliver
	if s.draining {
		s.deliverMu.Unlock()
		return
	}
	s.draining = true
	s.deliverMu.Unlock()

	s.drain()
}

func (s *Subscription) drain() {
	done := false
	defer func() {
		if !done {
			s.deliverMu.Lock()
			s.draining = false
			s.next = nil
			s.deliverMu.Unlock()
		}
	}()

	for {
		s.deliverMu.Lock()
		deliver := s.next
		s.next = nil
		if deliver == nil {
			s.draining = false
			s.deliverMu.Unlock()
			done = true
			return
		}
		s.deliverMu.Unlock()
		deliver()
	}
}
