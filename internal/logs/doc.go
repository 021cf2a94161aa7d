// Package logs provides file tailing for run log diagnostics.
//
// It reads log files with bounded memory usage, supports "last N lines"
// reads through a ring buffer, and powers follow-mode updates for
// `revoice logs --follow`. Callers supply a context so background polling
// shuts down cleanly when the CLI exits.
package logs
