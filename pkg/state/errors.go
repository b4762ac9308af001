package state

import "errors"

// ErrUnknownKey is returned when a composite write names a key that has no
// child store.
var ErrUnknownKey = errors.New("state: unknown key")

// ErrIndexOutOfRange is returned when an index lens writes past the end of
// its parent slice.
var ErrIndexOutOfRange = errors.New("state: index out of range")

// ErrTypeMismatch is returned when an erased store is written with a value
// of the wrong dynamic type.
var ErrTypeMismatch = errors.New("state: type mismatch")

// ErrRenderPanic wraps a panic recovered from a subscriber render callback.
var ErrRenderPanic = errors.New("state: render panicked")
