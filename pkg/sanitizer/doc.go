// Package sanitizer normalizes free-text input before validation and storage.
//
// All functions are idempotent: applying them twice yields the same result as
// applying them once. Invalid input is normalized away rather than rejected;
// rejection is the validator's job.
//
// Normalization includes:
//   - Strings: trim, collapse internal whitespace to single spaces
//   - Control characters: removed
//   - Occupant references: the above, case preserved
package sanitizer
