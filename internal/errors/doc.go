// Package errors provides the coded, actionable errors statectl prints.
//
// Each code maps to a category, a short message and, where one helps, a
// detail and a suggestion:
//
//	E1xx  configuration (state.json and STATE_ environment overrides)
//	E2xx  storage backends
//	E3xx  todo commands
//	E4xx  other CLI failures
//
// Usage:
//
//	return errors.New("E104").
//	    WithDetailf("storage.driver is %q", cfg.Storage.Driver)
//
// Library packages under pkg/ return plain sentinel errors; this package is
// only for the command line.
package errors
