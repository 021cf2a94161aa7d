// Package wire defines the line protocol spoken between the coordinator and
// synthesis worker processes.
//
// The coordinator writes one Task as a single JSON line to a worker's stdin
// and terminates the stream with the end-of-work sentinel line. The worker's
// stdout carries only Result JSON lines, one per completed segment; anything
// else on stdout is a protocol violation the coordinator discards. Free-form
// diagnostics belong on stderr.
//
// Both sides must treat unknown JSON fields as forward-compatible padding so
// the worker runtime can evolve independently of the coordinator.
package wire
