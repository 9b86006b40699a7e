// Package preflight provides readiness checks for the external services,
// binaries, and filesystem paths the pipeline depends on.
//
// These checks run in three contexts:
//   - The supervisor gates daemon (re)starts on RunAll so a broken
//     environment produces a clear report instead of a restart loop.
//   - The orchestrator validates a job before generation starts.
//   - The CLI "shortline status" command displays individual check results.
package preflight
