// Package store provides SQLite-backed history for policy graph evaluation.
//
// The store is append-only:
//   - Snapshots: graphs keyed by their content hash
//   - Passes: one row per evaluation pass (completed or aborted)
//   - Pass outputs: every value a pass produced, in evaluation order
//
// Passes are ordered by their logical seq, never by timestamps, so a
// recorded history reads back identically on every run. Values are stored
// as canonical JSON.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Retry on lock contention
//   - foreign_keys=ON: Enforce references between tables
package store
