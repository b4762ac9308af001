// Package instrument adds Prometheus metrics and OpenTelemetry tracing to
// stores.
//
// Both work by wrapping the hooks a store is built with, so instrumented
// stores behave exactly like plain ones:
//
//	m := instrument.NewMetrics(instrument.WithRegistry(reg))
//	hook := persist.Writer[[]todo.Record](backend, "todos")
//	hook = instrument.TracePersist("todos", hook)
//	hook = instrument.Persist(m, "todos", hook)
//	todos := state.New(seed, state.WithPersist(hook))
//	defer instrument.Watch(m, "todos", todos)()
//
// Tracing uses the global OpenTelemetry tracer provider unless
// WithTracerProvider is given.
package instrument
