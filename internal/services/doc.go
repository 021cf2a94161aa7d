// Package services defines shared utilities consumed by the synthesis
// coordinator and its collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp run, job, speaker, and worker identifiers
//     for logging and tracing.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification consistent across components (validation vs synthesis vs
//     worker-fatal conditions).
//
// Use these helpers when wiring new components so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
