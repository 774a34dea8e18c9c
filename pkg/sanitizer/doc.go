// Package sanitizer normalizes user input before validation and storage.
//
// All functions are idempotent: applying them twice yields the same result.
// Invalid input degrades to an empty string instead of an error, leaving the
// validators to report it.
//
// Normalization includes:
//   - Free text: collapse whitespace, trim
//   - Emails: trim, lowercase
//   - Registration numbers: uppercase, single spaces, no surrounding punctuation
//   - URLs: lowercase scheme and host, drop tracking query parameters
//   - Slices: drop duplicates and empty values after normalization
package sanitizer
