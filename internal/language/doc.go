// Package language provides unified language code normalization and mapping.
//
// All language-related conversions (ISO 639-1, BCP-47 tags, display names)
// are consolidated here so config validation and worker environment wiring
// agree on one canonical form.
package language
