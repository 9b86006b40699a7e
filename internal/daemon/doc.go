// Package daemon owns the lifecycle of the long-running shortlined process.
//
// It wires configuration, the job store, the quota ledger, and the
// orchestrator into a single start/stop sequence with flock-based locking to
// prevent multiple instances. Startup logs a dependency snapshot and prunes
// old log files; shutdown stops the orchestrator, drains the quota
// maintenance loop, and removes the liveness marker so the supervisor does
// not mistake a clean exit for a crash.
//
// Keep orchestration logic out of this package: the tick loop lives in
// internal/orchestrator while the daemon focuses on process hygiene.
package daemon
