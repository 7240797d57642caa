// Package credentials persists named secrets (OAuth tokens and similar)
// as one file per key under <data-root>/credentials.
//
// Save replaces a file by writing a sibling temp file and renaming it over
// the target, so Load observes either the previous value or the new one.
// Values that must change together are stored under a single key.
package credentials
