// Package worker launches and supervises synthesis worker subprocesses.
//
// A worker is a long-lived process hosting the speech synthesis runtime in
// its own version-isolated environment. The coordinator talks to it
// exclusively over stdin and stdout using the line protocol in
// internal/wire; stderr is captured separately for diagnostics. Each
// Process owns one subprocess and streams its results as they appear, so a
// slow or wedged worker never delays output from its siblings.
package worker
