// Package engine implements the clause-resolution runtime.
//
// A predicate name owns an ordered list of clauses. Each clause carries an
// optional guard and a body. At call time a resolver walks the list in
// registration order and aggregates the outcome under one of three
// disciplines:
//
//   - FirstSuccess: OR with an implicit cut. The first clause whose guard
//     passes and whose body completes wins; later clauses never run.
//   - AllRequired: strict AND. Any skipped guard or failed body aborts the
//     whole resolution; later clauses produce no effects at all.
//   - Backtracking: multi-solution search. Every applicable clause is a
//     lazy Producer of items; solutions are collected in order, and a Cut
//     item stops further clauses once the current producer is drained.
//
// ARCHITECTURE:
//
// Registry:
// The Registry is an explicit, owned object (no package-level state). It is
// populated with Register at startup and may be frozen afterwards. Clause
// lists are append-only; their order is the resolution order.
//
// Outcomes:
// Guards and bodies report through Go error values. The resolvers never
// branch on raw errors; they first reduce them to tagged outcomes
// (GuardPass/GuardSkip, OutcomeOK/OutcomeFail/OutcomeError) and then switch
// over the tag.
//
// Failure handling:
//   - Failure (via Check/Fail) is an expected, local clause failure.
//   - Any other error or panic from a body is an UnexpectedBodyError. It is
//     logged and then treated exactly like a Failure: FirstSuccess and
//     Backtracking move on, AllRequired aborts.
//   - UnknownPredicate and KindConflict are configuration errors and are the
//     only errors a resolve call ever returns.
//
// Execution model:
// Resolution is synchronous and single-threaded. Exactly one producer is
// active at a time and it is driven to exhaustion (or to its first error)
// before the next clause is considered. There is no cancellation.
//
// Tracing:
// Every resolution gets a resolution id and logical-clock sequence numbers.
// When a Tracer is configured the engine reports each step (guard skipped,
// clause entered, solution, cut, ...). Tracing never influences results.
package engine
