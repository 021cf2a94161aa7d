// Package segment defines the input data model for a synthesis run: ordered
// speech segments plus the speaker profiles their voices are cloned from.
//
// The loader is strict about structure (unique identifiers, well-formed
// speaker profiles) and permissive about per-segment content; missing target
// text or unknown speakers surface later as validation failures in the
// manifest instead of aborting the run.
package segment
