// Package notifications delivers run lifecycle events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Synthesis runs regularly outlast anyone watching the terminal, so
// the run command reports completion and failure through this package without
// carrying HTTP glue itself.
//
// Extend this package if you need alternative transports; callers depend only
// on the simple Service interface.
package notifications
