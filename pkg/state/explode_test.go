package state

import (
	"context"
	"testing"
)

func TestExplodeSliceIsLazy(t *testing.T) {
	records := New(seedRecords())
	items := ExplodeSlice[record](records)

	if items.Built() != 0 {
		t.Fatalf("expected nothing built yet, got %d", items.Built())
	}

	first := items.Get(0)
	again := items.Get(0)
	if first != again {
		t.Error("expected the same store for the same key")
	}
	if items.Built() != 1 {
		t.Errorf("expected 1 built store, got %d", items.Built())
	}

	if v, _ := first.Value(); v.Text != "buy milk" {
		t.Errorf("expected buy milk, got %+v", v)
	}
}

func TestExplodeSliceKeys(t *testing.T) {
	items := ExplodeSlice[record](New(seedRecords()))
	keys := items.Keys()
	if len(keys) != 3 || keys[0] != 0 || keys[2] != 2 {
		t.Errorf("expected [0 1 2], got %v", keys)
	}
	if len(items.All()) != 3 {
		t.Errorf("expected 3 stores, got %d", len(items.All()))
	}
	if items.Len() != 3 {
		t.Errorf("Len() = %d, want 3", items.Len())
	}
}

func TestExplodeMapRecursive(t *testing.T) {
	ctx := context.Background()
	tree := New(map[string]map[string]int{
		"left":  {"x": 1, "y": 2},
		"right": {"x": 3},
	})

	top := ExplodeMap[map[string]int](tree)
	if keys := top.Keys(); len(keys) != 2 || keys[0] != "left" || keys[1] != "right" {
		t.Fatalf("expected [left right], got %v", keys)
	}

	left := ExplodeMap[int](top.Get("left"))
	if err := left.Get("y").Set(ctx, 20); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	v, _ := tree.Value()
	if v["left"]["y"] != 20 || v["left"]["x"] != 1 || v["right"]["x"] != 3 {
		t.Errorf("unexpected tree after nested write: %v", v)
	}
	if tree.Version() != 2 {
		t.Errorf("expected one write at the root, version %d", tree.Version())
	}
}

func TestExplodeEmptyParent(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	parent := Define(func(context.Context) (map[string]int, error) {
		<-release
		return nil, nil
	})

	items := ExplodeMap[int](parent)
	if keys := items.Keys(); keys != nil {
		t.Errorf("expected no keys, got %v", keys)
	}
	if _, ok := items.Get("a").Value(); ok {
		t.Error("expected absent value")
	}
}
