package live

import (
	"encoding/json"
)

// Frame is the wire form of a store snapshot.
type Frame struct {
	Store       string          `json:"store,omitempty"`
	Version     uint64          `json:"version"`
	Initialized bool            `json:"initialized"`
	Value       json.RawMessage `json:"value"`
	Error       string          `json:"error,omitempty"`
}

var null = json.RawMessage("null")

func snapshot[T any](name string, value T, ok bool, version uint64) (Frame, error) {
	frame := Frame{
		Store:       name,
		Version:     version,
		Initialized: ok,
		Value:       null,
	}
	if !ok {
		return frame, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return Frame{}, err
	}
	frame.Value = data
	return frame, nil
}

// Decode unmarshals the frame value into a T. It reports false for frames
// of an uninitialized store.
func Decode[T any](f Frame) (T, bool, error) {
	var value T
	if !f.Initialized {
		return value, false, nil
	}
	if err := json.Unmarshal(f.Value, &value); err != nil {
		return value, false, err
	}
	return value, true, nil
}
