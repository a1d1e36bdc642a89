// Package harness provides scenario-based conformance testing for
// predicate sets.
//
// A scenario loads CUE predicate files, resolves a list of calls against
// a fresh engine, and checks each call's result, say output and the
// collected trace.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: describe_number
//	description: "Positive numbers are classified by parity"
//	specs:
//	  - testdata/specs/describe_number.cue
//	calls:
//	  - predicate: describe_number
//	    args: [7]
//	    expect: { result: true }
//	    output: ["7 is positive and odd"]
//	  - predicate: find_path
//	    args: [{a: {b: 1}}, 1]
//	    expect: { solutions: [["a", "b"]] }
//	assertions:
//	  - type: clause_ran
//	    predicate: describe_number
//	    label: positive odd
//	  - type: solution_count
//	    predicate: find_path
//	    count: 1
//
// A call's kind defaults to the kind its predicate was declared with.
// An expected error is a registry error code such as UNKNOWN_PREDICATE.
//
// # Assertion Types
//
//   - clause_ran: a clause body of the predicate was entered
//   - clause_not_ran: no clause body matching predicate/label was entered
//   - clause_order: labelled clauses were entered in the given order
//   - output_contains: some say output line contains the text
//   - solution_count: solution events of the predicate number exactly count
//   - replay_matches: every recorded resolution replays to the same result
//
// # Deterministic Testing
//
// Every scenario runs with a fresh logical clock, sequential resolution
// ids ("<name>-1", "<name>-2", ...) and an in-memory SQLite trace store,
// so the same scenario always produces a byte-identical trace. Traces can
// be snapshotted with RunWithGolden.
package harness
