// Package supervisor keeps the shortlined process alive.
//
// It polls the liveness marker the daemon writes every tick, treats a stale
// timestamp or a dead PID as a crash, and restarts the child after a
// preflight validation gate passes. Consecutive failures past a threshold
// switch restarts to capped exponential backoff. The supervisor only exits
// on an operator shutdown signal.
package supervisor
