package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vango-dev/state/pkg/state"
)

// Codec converts values to and from bytes.
type Codec[T any] interface {
	Marshal(value T) ([]byte, error)
	Unmarshal(data []byte) (T, error)
}

// JSON is the default codec.
type JSON[T any] struct {
	// Indent pretty-prints output when set.
	Indent string
}

// Marshal encodes value as JSON.
func (c JSON[T]) Marshal(value T) ([]byte, error) {
	if c.Indent != "" {
		return json.MarshalIndent(value, "", c.Indent)
	}
	return json.Marshal(value)
}

// Unmarshal decodes JSON data.
func (c JSON[T]) Unmarshal(data []byte) (T, error) {
	var value T
	err := json.Unmarshal(data, &value)
	return value, err
}

// HookOption configures Writer and Reader.
type HookOption[T any] func(*hookConfig[T])

type hookConfig[T any] struct {
	codec Codec[T]
}

// WithCodec replaces the JSON codec.
func WithCodec[T any](codec Codec[T]) HookOption[T] {
	return func(c *hookConfig[T]) {
		c.codec = codec
	}
}

func applyHookOptions[T any](opts []HookOption[T]) hookConfig[T] {
	cfg := hookConfig[T]{codec: JSON[T]{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Writer returns a persistence hook that saves each value under key and
// returns what was saved, decoded. Fields the codec drops are therefore
// dropped from the store too.
func Writer[T any](backend Backend, key string, opts ...HookOption[T]) state.PersistFunc[T] {
	cfg := applyHookOptions(opts)
	return func(ctx context.Context, value T) (T, error) {
		var zero T
		data, err := cfg.codec.Marshal(value)
		if err != nil {
			return zero, fmt.Errorf("persist: encode %s: %w", key, err)
		}
		if err := backend.Write(ctx, key, data); err != nil {
			return zero, fmt.Errorf("persist: write %s: %w", key, err)
		}
		saved, err := backend.Read(ctx, key)
		if err != nil {
			return zero, fmt.Errorf("persist: read back %s: %w", key, err)
		}
		decoded, err := cfg.codec.Unmarshal(saved)
		if err != nil {
			return zero, fmt.Errorf("persist: decode %s: %w", key, err)
		}
		return decoded, nil
	}
}

// Reader returns an initializer that loads the value saved under key, or
// seed when nothing is saved.
func Reader[T any](backend Backend, key string, seed T, opts ...HookOption[T]) state.InitFunc[T] {
	cfg := applyHookOptions(opts)
	return func(ctx context.Context) (T, error) {
		data, err := backend.Read(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return seed, nil
		}
		if err != nil {
			var zero T
			return zero, fmt.Errorf("persist: read %s: %w", key, err)
		}
		value, err := cfg.codec.Unmarshal(data)
		if err != nil {
			var zero T
			return zero, fmt.Errorf("persist: decode %s: %w", key, err)
		}
		return value, nil
	}
}
