// Package quota implements the ledger tracking daily usage budgets for the
// shared external APIs, including scheduled reset at local midnight and
// auto-resume of channels that were paused for quota exhaustion.
//
// The local counters are estimates; the external services remain the ground
// truth. MarkExhausted exists for the case where the provider reports
// exhaustion while the local counter still shows budget.
package quota
