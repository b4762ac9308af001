package todo

import (
	"context"
	"strings"

	"github.com/vango-dev/state/pkg/state"
)

// Editor pairs a record with an editing flag in one composite view, so
// finishing an edit writes the record and clears the flag in a single Set.
type Editor struct {
	editing *state.Leaf[bool]
	record  state.Store[Record]
	view    *state.Composite[any]
}

// NewEditor creates an editor for record, not yet editing.
func NewEditor(record state.Store[Record]) *Editor {
	editing := state.New(false)
	return &Editor{
		editing: editing,
		record:  record,
		view: state.Compose(map[string]state.Store[any]{
			"edit":   state.Erase[bool](editing),
			"record": state.Erase(record),
		}),
	}
}

// View returns the composite {edit, record} store.
func (e *Editor) View() state.Store[map[string]any] {
	return e.view
}

// Editing reports whether an edit is in progress.
func (e *Editor) Editing() bool {
	v, _ := e.editing.Value()
	return v
}

// Begin starts editing.
func (e *Editor) Begin(ctx context.Context) error {
	return e.editing.Set(ctx, true)
}

// Cancel stops editing without writing the record.
func (e *Editor) Cancel(ctx context.Context) error {
	return e.editing.Set(ctx, false)
}

// Close detaches the editor from the record store.
func (e *Editor) Close() {
	e.view.Close()
}

// Complete writes record and stops editing.
func (e *Editor) Complete(ctx context.Context, record Record) error {
	if !e.Editing() {
		return ErrNotEditing
	}
	record.Text = strings.TrimSpace(record.Text)
	if record.Text == "" {
		return ErrEmptyText
	}
	return e.view.Set(ctx, map[string]any{
		"record": record,
		"edit":   false,
	})
}
