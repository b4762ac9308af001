// Package todo is the todo list served and edited by statectl.
//
// The list is a leaf store of records. Each record is reached through a
// focused store, and each record's checked flag through a focused store of
// that, so toggling an item writes through both lenses into the list.
package todo

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/vango-dev/state/pkg/persist"
	"github.com/vango-dev/state/pkg/state"
)

// StoreKey is the persistence key of the list.
const StoreKey = "todos"

var (
	// ErrNotFound is returned for an index with no record.
	ErrNotFound = errors.New("todo: no such item")

	// ErrEmptyText is returned when adding or editing with blank text.
	ErrEmptyText = errors.New("todo: text is empty")

	// ErrNotEditing is returned by Editor.Complete without a Begin.
	ErrNotEditing = errors.New("todo: no edit in progress")
)

// Record is one todo item.
type Record struct {
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
}

// Seed returns the list a fresh store starts with.
func Seed() []Record {
	return []Record{
		{Text: "buy milk"},
		{Text: "pay rent", Checked: true},
		{Text: "get mail"},
	}
}

// Checked focuses a record's checked flag.
func Checked() state.Lens[Record, bool] {
	return state.Field("checked",
		func(r Record) bool { return r.Checked },
		func(r Record, v bool) Record { r.Checked = v; return r },
	)
}

// Text focuses a record's text.
func Text() state.Lens[Record, string] {
	return state.Field("text",
		func(r Record) string { return r.Text },
		func(r Record, v string) Record { r.Text = v; return r },
	)
}

// Loader returns the initializer Open uses: the list saved in backend, or
// the seed list when nothing is saved.
func Loader(backend persist.Backend) state.InitFunc[[]Record] {
	return persist.Reader(backend, StoreKey, Seed())
}

// Open loads the list with Loader and persists every later write back to
// backend. Options given here are applied after the defaults, so a
// WithPersist replaces the backend writer.
func Open(ctx context.Context, backend persist.Backend, opts ...state.Option[[]Record]) (*state.Leaf[[]Record], error) {
	return OpenWith(ctx, backend, Loader(backend), opts...)
}

// OpenWith is Open with init in place of Loader, for callers that wrap the
// initializer.
func OpenWith(ctx context.Context, backend persist.Backend, init state.InitFunc[[]Record], opts ...state.Option[[]Record]) (*state.Leaf[[]Record], error) {
	base := []state.Option[[]Record]{
		state.WithName[[]Record](StoreKey),
		state.WithPersist(persist.Writer[[]Record](backend, StoreKey)),
	}
	return state.Load(ctx, init, append(base, opts...)...)
}

// List operates on a store of records.
type List struct {
	store state.Store[[]Record]
	items *state.Exploded[[]Record, int, Record]
}

// NewList wraps store.
func NewList(store state.Store[[]Record]) *List {
	return &List{
		store: store,
		items: state.ExplodeSlice[Record](store),
	}
}

// Store returns the underlying store.
func (l *List) Store() state.Store[[]Record] {
	return l.store
}

// Records returns a copy of the current records.
func (l *List) Records() []Record {
	records, _ := l.store.Value()
	return slices.Clone(records)
}

// Len returns the number of records.
func (l *List) Len() int {
	return l.items.Len()
}

// Item returns the focused store of record i.
func (l *List) Item(i int) *state.Focused[[]Record, Record] {
	return l.items.Get(i)
}

// Add appends a record with text.
func (l *List) Add(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	records := append(l.Records(), Record{Text: text})
	return l.store.Set(ctx, records)
}

// Toggle flips the checked flag of record i.
func (l *List) Toggle(ctx context.Context, i int) error {
	checked := state.Focus(state.Store[Record](l.Item(i)), Checked())
	v, ok := checked.Value()
	if !ok {
		return ErrNotFound
	}
	return checked.Set(ctx, !v)
}

// Edit replaces the text of record i through an Editor.
func (l *List) Edit(ctx context.Context, i int, text string) error {
	item := l.Item(i)
	record, ok := item.Value()
	if !ok {
		return ErrNotFound
	}
	editor := NewEditor(item)
	defer editor.Close()
	if err := editor.Begin(ctx); err != nil {
		return err
	}
	record.Text = text
	return editor.Complete(ctx, record)
}

// Remove deletes record i.
func (l *List) Remove(ctx context.Context, i int) error {
	records := l.Records()
	if i < 0 || i >= len(records) {
		return ErrNotFound
	}
	return l.store.Set(ctx, slices.Delete(records, i, i+1))
}

// Reset re-runs the store initializer.
func (l *List) Reset(ctx context.Context) error {
	return l.store.Reset(ctx)
}
