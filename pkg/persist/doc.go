// Package persist connects stores to storage backends.
//
// A Backend is a byte-oriented key/value target. Writer turns a backend into
// a state.PersistFunc: each store write is encoded, saved, read back and
// decoded, and the decoded value becomes the store's value. Reader turns a
// backend into a state.InitFunc that loads the saved value or falls back to
// a seed.
//
// Usage:
//
//	backend := persist.NewFileBackend(".state")
//	todos := state.Define(
//	    persist.Reader(backend, "todos", seed),
//	    state.WithPersist(persist.Writer[[]Record](backend, "todos")),
//	)
//
// Backends:
//   - MemoryBackend: in-process map, the default
//   - FileBackend: one file per key in a directory
//   - SQLBackend: any database/sql driver (PostgreSQL, MySQL, SQLite)
//   - S3Backend: an S3 bucket through aws-sdk-go-v2
package persist
