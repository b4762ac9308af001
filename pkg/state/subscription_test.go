package state

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestSubscribeLateSeesCurrentValue(t *testing.T) {
	store := New("ready")

	var got []string
	sub := store.Subscribe(func(v string) error {
		got = append(got, v)
		return nil
	})

	if len(got) != 1 || got[0] != "ready" {
		t.Fatalf("expected immediate render of current value, got %v", got)
	}
	if sub.Version() != store.Version() {
		t.Errorf("expected subscription version %d, got %d", store.Version(), sub.Version())
	}
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	store := New(0)

	var got []int
	store.Subscribe(func(v int) error {
		got = append(got, v)
		return nil
	})
	store.Set(ctx, 1)
	store.Set(ctx, 2)

	want := []int{0, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("render %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestDetachStopsDelivery(t *testing.T) {
	ctx := context.Background()
	store := New(0)

	calls := 0
	sub := store.Subscribe(func(int) error {
		calls++
		return nil
	})
	sub.Detach()
	sub.Detach()

	store.Set(ctx, 1)
	store.Update()

	if calls != 1 {
		t.Errorf("expected only the attach render, got %d", calls)
	}
	if sub.Attached() {
		t.Error("expected subscription to be detached")
	}
	if store.Subscribers() != 0 {
		t.Errorf("expected no subscribers, got %d", store.Subscribers())
	}
}

func TestDetachDuringInFlightWrite(t *testing.T) {
	ctx := context.Background()
	store := New("a")

	calls := 0
	sub := store.Subscribe(func(string) error {
		calls++
		return nil
	})

	future := NewFuture[string]()
	done := make(chan error, 1)
	go func() { done <- store.SetPending(ctx, future) }()

	sub.Detach()
	future.Resolve("b")
	if err := <-done; err != nil {
		t.Fatalf("SetPending failed: %v", err)
	}

	if calls != 1 {
		t.Errorf("detached subscriber was notified: %d calls", calls)
	}
}

func TestDetachFromInsideOtherRender(t *testing.T) {
	store := New(0)

	var second *Subscription
	secondCalls := 0
	store.Subscribe(func(v int) error {
		if v == 1 {
			second.Detach()
		}
		return nil
	})
	second = store.Subscribe(func(int) error {
		secondCalls++
		return nil
	})

	store.Set(context.Background(), 1)

	if secondCalls != 1 {
		t.Errorf("expected the detached sibling to skip the update, got %d calls", secondCalls)
	}
}

func TestRenderFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	store := New(0)

	renderErr := errors.New("bad render")
	var fallbacks []error
	failing := store.Subscribe(func(v int) error {
		if v == 1 {
			return renderErr
		}
		return nil
	}, WithFallback(func(err error) { fallbacks = append(fallbacks, err) }))

	healthy := 0
	store.Subscribe(func(int) error {
		healthy++
		return nil
	})
	listened := 0
	store.Listen(func(int) { listened++ })

	if err := store.Set(ctx, 1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if len(fallbacks) != 1 || !errors.Is(fallbacks[0], renderErr) {
		t.Errorf("expected one fallback with render error, got %v", fallbacks)
	}
	if !errors.Is(failing.Err(), renderErr) {
		t.Errorf("expected Err to report render error, got %v", failing.Err())
	}
	if failing.Version() != 0 {
		t.Errorf("expected failed subscription to reset its version, got %d", failing.Version())
	}
	if healthy != 2 {
		t.Errorf("expected sibling subscriber to render twice, got %d", healthy)
	}
	if listened != 1 {
		t.Errorf("expected listener to run, got %d", listened)
	}
	if store.Version() != 2 {
		t.Errorf("expected store version 2, got %d", store.Version())
	}

	// The next successful render clears the failure.
	store.Set(ctx, 2)
	if failing.Err() != nil {
		t.Errorf("expected Err cleared, got %v", failing.Err())
	}
	if failing.Version() != 3 {
		t.Errorf("expected subscription at version 3, got %d", failing.Version())
	}
}

func TestRenderPanicIsRecovered(t *testing.T) {
	store := New(0)

	var fallback error
	store.Subscribe(func(v int) error {
		if v > 0 {
			panic("render exploded")
		}
		return nil
	}, WithFallback(func(err error) { fallback = err }))

	reached := false
	store.Subscribe(func(int) error {
		reached = true
		return nil
	})

	if err := store.Set(context.Background(), 1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !errors.Is(fallback, ErrRenderPanic) {
		t.Errorf("expected ErrRenderPanic, got %v", fallback)
	}
	if !reached {
		t.Error("expected sibling subscriber to render")
	}
	if store.Subscribers() != 2 {
		t.Errorf("expected both subscriptions kept, got %d", store.Subscribers())
	}
}

func TestRacingWritesSettleOnLatestValue(t *testing.T) {
	ctx := context.Background()

	for trial := 0; trial < 300; trial++ {
		store := New(0)

		var mu sync.Mutex
		early, late := -1, -1
		store.Subscribe(func(v int) error {
			mu.Lock()
			early = v
			mu.Unlock()
			return nil
		})

		var wg sync.WaitGroup
		for i := 1; i <= 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				store.Set(ctx, i)
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Subscribe(func(v int) error {
				mu.Lock()
				late = v
				mu.Unlock()
				return nil
			})
		}()
		wg.Wait()

		want, _ := store.Value()
		mu.Lock()
		if early != want || late != want {
			t.Fatalf("trial %d: renders settled on %d and %d, store holds %d", trial, early, late, want)
		}
		mu.Unlock()
	}
}

func TestOlderSnapshotIsDropped(t *testing.T) {
	store := New(0)

	var got []int
	sub := store.Subscribe(func(v int) error {
		got = append(got, v)
		return nil
	})
	store.Set(context.Background(), 5)

	// A notification carrying an older version arrives late.
	store.hub.deliver(store.hub.subs[0], 99, true, 1)

	if len(got) != 2 || got[1] != 5 {
		t.Errorf("renders = %v, want [0 5]", got)
	}
	if sub.Version() != 2 {
		t.Errorf("Version() = %d, want 2", sub.Version())
	}
}

func TestRenderWritingItsStoreSeesTheWrite(t *testing.T) {
	ctx := context.Background()
	store := New(0)

	var got []int
	store.Subscribe(func(v int) error {
		got = append(got, v)
		if v == 1 {
			store.Set(ctx, 2)
		}
		return nil
	})
	store.Set(ctx, 1)

	if len(got) != 3 || got[2] != 2 {
		t.Errorf("renders = %v, want [0 1 2]", got)
	}
}
