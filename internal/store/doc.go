// Package store provides a SQLite journal of what a client session received
// and applied.
//
// The journal is append-only and holds three record kinds:
//   - Envelopes: every raw push message, accepted or rejected
//   - Snapshots: every wholesale load (initial, resync, switch)
//   - Batches: every patch batch applied to the synchronizer, with the
//     digest of the resulting document
//
// # Ordering
//
// Every record is stamped with a seq from a single logical Clock shared by
// the three tables. All queries order by seq ASC; wall time is never used
// for ordering, so a replay sees records in exactly the order they were
// journaled.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Documents and operation lists are stored as canonical JSON
// (wire.MarshalCanonical) so digests recomputed on replay are comparable.
package store
