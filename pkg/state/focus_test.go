package state

import (
	"context"
	"errors"
	"testing"
)

type record struct {
	Text    string
	Checked bool
}

func checkedField() Lens[record, bool] {
	return Field("checked",
		func(r record) bool { return r.Checked },
		func(r record, c bool) record { r.Checked = c; return r })
}

func seedRecords() []record {
	return []record{
		{Text: "buy milk"},
		{Text: "pay rent", Checked: true},
		{Text: "get mail"},
	}
}

func TestFocusKeyRoundTrip(t *testing.T) {
	ctx := context.Background()
	parent := New(map[string]int{"a": 1, "b": 2, "c": 3})

	for _, key := range []string{"a", "b", "c"} {
		t.Run(key, func(t *testing.T) {
			f := Focus(parent, Key[int](key))
			if err := f.Set(ctx, 100); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			if v, ok := f.Value(); !ok || v != 100 {
				t.Errorf("expected 100, got %d (ok=%v)", v, ok)
			}
		})
	}

	v, _ := parent.Value()
	if len(v) != 3 {
		t.Errorf("expected siblings kept, got %v", v)
	}
}

func TestFocusKeepsSiblings(t *testing.T) {
	ctx := context.Background()
	parent := New(map[string]string{"say": "hello", "name": "world"})
	name := Focus(parent, Key[string]("name"))

	name.Set(ctx, "moon")

	v, _ := parent.Value()
	if v["say"] != "hello" || v["name"] != "moon" {
		t.Errorf("expected {say:hello name:moon}, got %v", v)
	}
}

func TestFocusReadsParentAtCallTime(t *testing.T) {
	ctx := context.Background()
	parent := New(map[string]int{"a": 1})
	a := Focus(parent, Key[int]("a"))

	future := NewFuture[int]()
	done := make(chan error, 1)
	go func() { done <- a.SetPending(ctx, future) }()

	// A sibling written while the focused write is pending must survive.
	parent.Set(ctx, map[string]int{"a": 1, "b": 2})
	future.Resolve(10)
	if err := <-done; err != nil {
		t.Fatalf("SetPending failed: %v", err)
	}

	v, _ := parent.Value()
	if v["a"] != 10 || v["b"] != 2 {
		t.Errorf("expected {a:10 b:2}, got %v", v)
	}
}

func TestFocusValueOnEmptyParent(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	parent := Define(func(context.Context) (map[string]int, error) {
		<-release
		return nil, nil
	})

	f := Focus(parent, Key[int]("missing"))
	if v, ok := f.Value(); ok || v != 0 {
		t.Errorf("expected absent, got %d (ok=%v)", v, ok)
	}
	if f.Version() != 0 {
		t.Errorf("expected version 0, got %d", f.Version())
	}
}

func TestFocusSetOnEmptyParent(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	defer close(release)
	parent := Define(func(context.Context) (map[string]int, error) {
		<-release
		return nil, nil
	})

	f := Focus(parent, Key[int]("a"))
	if err := f.Set(ctx, 1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if v, _ := parent.Value(); v["a"] != 1 {
		t.Errorf("expected {a:1}, got %v", v)
	}
}

func TestFocusNestedTodoToggle(t *testing.T) {
	ctx := context.Background()
	records := New(seedRecords())

	item := Focus(records, Index[record](1))
	checked := Focus(item, checkedField())

	if v, _ := checked.Value(); !v {
		t.Fatal("expected record 1 to start checked")
	}
	if err := checked.Set(ctx, false); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := checked.Set(ctx, true); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, _ := records.Value()
	want := seedRecords()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
	if records.Version() != 3 {
		t.Errorf("expected version 3, got %d", records.Version())
	}
}

func TestFocusIndexOutOfRange(t *testing.T) {
	ctx := context.Background()
	records := New(seedRecords())
	f := Focus(records, Index[record](7))

	if _, ok := f.Value(); ok {
		t.Error("expected absent value past the end")
	}
	err := f.Set(ctx, record{Text: "x"})
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
	if records.Version() != 1 {
		t.Errorf("expected no write, version %d", records.Version())
	}
}

func TestFocusFailedParentWriteLeavesParent(t *testing.T) {
	ctx := context.Background()
	fail := false
	parent := New(map[string]int{"a": 1}, WithPersist(func(_ context.Context, v map[string]int) (map[string]int, error) {
		if fail {
			return nil, errors.New("nope")
		}
		return v, nil
	}))

	fail = true
	if err := Focus(parent, Key[int]("a")).Set(ctx, 2); err == nil {
		t.Fatal("expected error")
	}
	if v, _ := parent.Value(); v["a"] != 1 {
		t.Errorf("expected parent untouched, got %v", v)
	}
}

func TestFocusListenNarrows(t *testing.T) {
	ctx := context.Background()
	parent := New(map[string]int{"a": 1})
	var seen []int
	Focus(parent, Key[int]("b")).Listen(func(v int) { seen = append(seen, v) })

	parent.Set(ctx, map[string]int{"a": 2})
	parent.Set(ctx, map[string]int{"a": 2, "b": 5})

	if len(seen) != 1 || seen[0] != 5 {
		t.Errorf("expected only the update carrying b, got %v", seen)
	}
}

func TestFocusSubscribe(t *testing.T) {
	ctx := context.Background()
	parent := New(map[string]string{"a": "x"})
	f := Focus(parent, Key[string]("b"))

	var rendered []string
	empties := 0
	sub := f.Subscribe(func(v string) error {
		rendered = append(rendered, v)
		return nil
	}, WithEmpty(func() { empties++ }))

	if empties != 1 || len(rendered) != 0 {
		t.Fatalf("expected empty render on attach, got empties=%d rendered=%v", empties, rendered)
	}

	f.Set(ctx, "y")
	if len(rendered) != 1 || rendered[0] != "y" {
		t.Errorf("expected render of y, got %v", rendered)
	}
	if sub.Version() != parent.Version() {
		t.Errorf("expected subscription at parent version %d, got %d", parent.Version(), sub.Version())
	}

	sub.Detach()
	f.Set(ctx, "z")
	if len(rendered) != 1 {
		t.Errorf("expected no render after detach, got %v", rendered)
	}
}

func TestFocusUpdateAndResetForward(t *testing.T) {
	ctx := context.Background()
	parent := New(map[string]int{"a": 1}, WithInitializer(func(context.Context) (map[string]int, error) {
		return map[string]int{"a": 0}, nil
	}))
	f := Focus(parent, Key[int]("a"))

	calls := 0
	parent.Listen(func(map[string]int) { calls++ })
	f.Update()
	if calls != 1 {
		t.Errorf("expected Update to reach the parent, got %d", calls)
	}

	f.Set(ctx, 9)
	if err := f.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if v, _ := f.Value(); v != 0 {
		t.Errorf("expected reset to 0, got %d", v)
	}
}
