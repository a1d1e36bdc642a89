// Package program turns compiled predicate declarations into engine
// clauses.
//
// A declaration is data: conditions and steps from internal/ir. Install
// interprets that data on every call, so a clause declared in CUE behaves
// exactly like one written in Go against the engine API:
//
//   - guard conditions become an engine.Guard (all must hold)
//   - first_success and all_required bodies become an engine.Body
//   - backtracking bodies become an engine.Search over engine.Generate,
//     so yields are lazy and a cut is just another item
//
// Failure handling follows the engine. A failed check or a fail step
// returns a Failure; any other runtime problem (wrong argument type,
// missing argument, solve without a solver) is an ordinary error that the
// engine classifies as unexpected and logs. A solve nested deeper than
// Options.MaxSolveDepth is one of those, so a predicate that recurses
// without a base case fails instead of running away.
//
// Say steps write one line per execution to Options.Out. Output is part of
// the observable behaviour of a clause and is never buffered by the
// engine: a clause that prints and then fails has still printed.
package program
