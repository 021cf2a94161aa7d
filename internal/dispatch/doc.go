// Package dispatch schedules per-speaker jobs across the worker pool.
//
// The coordinator owns a fixed pool of worker processes and a FIFO job
// queue. Each pool slot runs its own goroutine that pulls the next queued
// job whenever its worker is idle, so dispatch never stalls on a busy
// sibling and no two workers ever hold the same speaker. Worker output is
// streamed as it appears; crashes and watchdog timeouts fail only the
// affected job's remaining segments and are followed by a replacement
// worker. Every submitted segment ends in exactly one terminal manifest
// record no matter how the run goes.
package dispatch
