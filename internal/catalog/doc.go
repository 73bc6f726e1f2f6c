// Package catalog keeps compiled statements in a SQLite database, keyed by
// their fingerprint.
//
// Fingerprints ignore the build ID, so compiling the same query twice
// lands on one entry whose hit count grows. Parameters are stored as
// canonical JSON and read back with json.Number values; re-fingerprinting
// a stored statement yields its key.
package catalog
