// Package store provides SQLite-backed durable storage for resolution
// traces.
//
// The store is an append-only log with two tables:
//   - resolutions: one row per resolve call (predicate, kind, arguments,
//     result, solution list, the CID of the predicate set it ran against)
//   - trace_events: the engine's trace events of that call, keyed by
//     (resolution_id, seq)
//
// Clauses themselves are never persisted. A trace records what happened;
// the predicate set is identified only by its content id.
//
// # Critical Patterns
//
// Logical time:
//   - All ordering uses seq INTEGER from the engine's logical clock,
//     NEVER timestamps
//   - GetLastSeq lets a new engine continue numbering after a stored log
//
// Deterministic reads:
//   - All queries order by seq with a COLLATE BINARY tiebreaker
//   - Ad-hoc searches go through internal/queryir and internal/querysql,
//     which enforce the same ordering
//
// Idempotent writes:
//   - ON CONFLICT DO NOTHING on resolution id, content key and
//     (resolution_id, seq)
//   - WriteTrace stores a resolution and its events in one transaction
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Values (arguments, solutions, event values) are stored as JSON with
// sorted object keys; see internal/ir.
package store
