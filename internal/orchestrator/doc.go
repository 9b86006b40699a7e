// Package orchestrator drives the job state machine. A single loop ticks on
// a fixed interval: it reclaims jobs whose worker stopped heartbeating,
// schedules fresh jobs for channels that are due, moves scheduled jobs
// through validation and generation, and uploads jobs whose staging window
// has elapsed. The process liveness marker is stamped at the end of every
// tick regardless of what the tick accomplished, so the supervisor can tell
// a healthy idle daemon from a wedged one.
//
// Failures never propagate out of a tick. Every stage error goes through the
// recovery manager, which decides between failing the job, pausing the
// channel, or aborting the remainder of the tick.
package orchestrator
