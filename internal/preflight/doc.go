// Package preflight provides readiness checks for the filesystem paths and
// worker tooling that revoice depends on.
//
// These checks run in two contexts:
//   - The "revoice run" command calls RunAll before opening the run store.
//     If any check fails, the run aborts before a single worker spawns.
//   - The CLI "revoice status" command uses the same checks plus
//     CheckSystemDeps to display environment health.
package preflight
