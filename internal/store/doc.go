// Package store persists channels, video jobs, quota resources, and the
// operator log feed in SQLite.
//
// The compare-and-swap Transition method is the sole way a video job changes
// state; together with the insert guard in CreateJob it enforces the
// one-non-terminal-job-per-channel invariant under concurrent access.
package store
