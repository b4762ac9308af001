// Package state provides small reactive stores that compose, decompose and
// persist pieces of application state.
//
// # Core Types
//
// A Leaf holds one value:
//
//	say := state.New("hello")
//	say.Set(ctx, "goodbye")
//	v, ok := say.Value() // "goodbye", true
//
// A Composite presents named child stores as one keyed value:
//
//	greeting := state.Compose(map[string]state.Store[string]{
//	    "say":  state.New("hello"),
//	    "name": state.New("world"),
//	})
//	greeting.Set(ctx, map[string]string{"name": "moon"})
//
// A Focused store is a view on one key of a parent store. Reads and writes go
// through the parent:
//
//	checked := state.Focus(records, state.Index[Record](1))
//
// Explode builds focused stores lazily, one per key:
//
//	items := state.ExplodeSlice(records)
//	items.Get(0).Set(ctx, Record{Text: "buy bread"})
//
// # Notifications
//
// Every completed write bumps the store version and synchronously notifies
// subscribers (render attachments with a Detach) and listeners (passive
// observers living as long as the store). Update notifies without writing,
// for callers that mutated a value in place.
//
// # Writes
//
// Set blocks until the value is applied. SetPending first awaits a pending
// value. When a persistence hook is configured the value it returns is the
// one stored. Concurrent writes are not serialized: the write that resolves
// last wins and every write notifies on its own.
package state
