// Package notifications delivers operator-facing events via ntfy.
//
// The default implementation publishes to the topic configured in config.toml
// and gracefully degrades to a no-op when no topic is set. Each event kind
// has its own config toggle, and repeated identical alerts inside the dedup
// window are dropped so a flapping channel cannot flood the operator.
//
// All pipeline code depends only on the Service interface, so alternative
// transports slot in without touching callers.
package notifications
