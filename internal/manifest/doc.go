// Package manifest owns the terminal accounting for a synthesis run: one
// Record per input segment, collected from workers and from the coordinator
// itself, then projected into an ordinal-ordered Manifest.
//
// The assembler enforces the run's core guarantee: the finalized manifest
// contains exactly one record for every submitted segment, with duplicates
// dropped and stragglers filled in as unresolved failures rather than
// omitted.
package manifest
