package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/predicate/internal/engine"
	"github.com/roach88/predicate/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	// Entered clauses give enough context without flooding the output
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nEntered clauses:\n")
		for _, ev := range e.Trace {
			if ev.Type == string(engine.TraceClauseEnter) {
				fmt.Fprintf(&buf, "  [%d] %s#%d %s\n", ev.Seq, ev.Predicate, ev.Clause, ev.Label)
			}
		}
	}

	return buf.String()
}

// describeClause renders the clause selector of an assertion.
func describeClause(a Assertion) string {
	switch {
	case a.Label != "":
		return fmt.Sprintf("%s clause %q", a.Predicate, a.Label)
	case a.Clause != nil:
		return fmt.Sprintf("%s clause %d", a.Predicate, *a.Clause)
	default:
		return fmt.Sprintf("a clause of %s", a.Predicate)
	}
}

// enteredClause reports whether ev is a clause entry selected by a.
func enteredClause(ev TraceEvent, a Assertion) bool {
	if ev.Type != string(engine.TraceClauseEnter) || ev.Predicate != a.Predicate {
		return false
	}
	if a.Label != "" && ev.Label != a.Label {
		return false
	}
	if a.Clause != nil && ev.Clause != *a.Clause {
		return false
	}
	return true
}

// assertClauseRan checks that a selected clause body was entered at
// least once (ran=true) or never (ran=false).
func assertClauseRan(trace []TraceEvent, assertion Assertion, ran bool) error {
	count := 0
	for _, ev := range trace {
		if enteredClause(ev, assertion) {
			count++
		}
	}

	switch {
	case ran && count == 0:
		return &AssertionError{
			Type:     AssertClauseRan,
			Expected: describeClause(assertion) + " to run",
			Actual:   "never entered",
			Trace:    trace,
		}
	case !ran && count > 0:
		return &AssertionError{
			Type:     AssertClauseNotRan,
			Expected: describeClause(assertion) + " not to run",
			Actual:   fmt.Sprintf("entered %d time(s)", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertClauseOrder checks that the labelled clauses of a predicate were
// entered in the given order. Other entries may come in between.
func assertClauseOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, ev := range trace {
		if next == len(assertion.Labels) {
			break
		}
		if ev.Type == string(engine.TraceClauseEnter) &&
			ev.Predicate == assertion.Predicate &&
			ev.Label == assertion.Labels[next] {
			next++
		}
	}

	if next < len(assertion.Labels) {
		return &AssertionError{
			Type:     AssertClauseOrder,
			Expected: fmt.Sprintf("%s clauses entered in order %q", assertion.Predicate, assertion.Labels),
			Actual:   fmt.Sprintf("%q not entered after %q", assertion.Labels[next], assertion.Labels[:next]),
			Trace:    trace,
		}
	}
	return nil
}

// assertOutputContains checks that some output line contains the text.
func assertOutputContains(output []OutputLine, assertion Assertion) error {
	for _, line := range output {
		if strings.Contains(line.Text, assertion.Text) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertOutputContains,
		Expected: fmt.Sprintf("output containing %q", assertion.Text),
		Actual:   fmt.Sprintf("%d line(s), none matching", len(output)),
	}
}

// assertSolutionCount checks the number of solution events of a
// predicate across all its resolutions, nested ones included.
func assertSolutionCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Type == string(engine.TraceSolution) && ev.Predicate == assertion.Predicate {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertSolutionCount,
			Expected: fmt.Sprintf("%d solution(s) of %s", assertion.Count, assertion.Predicate),
			Actual:   fmt.Sprintf("%d solution(s)", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertReplayMatches re-resolves every recorded resolution and checks
// that each result is unchanged.
func assertReplayMatches(actx *AssertionContext) error {
	results, err := actx.Store.Replay(actx.Ctx, actx.Engine, "")
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	bad := store.Mismatches(results)
	if len(bad) == 0 {
		return nil
	}

	var parts []string
	for _, r := range bad {
		if r.Err != nil {
			parts = append(parts, fmt.Sprintf("%s: %v", r.Recorded.ID, r.Err))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s) ok=%t, recorded ok=%t", r.Recorded.ID, r.Recorded.Predicate, r.OK, r.Recorded.OK))
	}
	return &AssertionError{
		Type:     AssertReplayMatches,
		Expected: fmt.Sprintf("%d resolution(s) to replay identically", len(results)),
		Actual:   strings.Join(parts, "; "),
	}
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx    context.Context
	Store  *store.Store
	Engine store.Resolver
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides the trace store and engine for
// replay_matches assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertClauseRan:
			err = assertClauseRan(result.Trace, assertion, true)
		case AssertClauseNotRan:
			err = assertClauseRan(result.Trace, assertion, false)
		case AssertClauseOrder:
			err = assertClauseOrder(result.Trace, assertion)
		case AssertOutputContains:
			err = assertOutputContains(result.Output, assertion)
		case AssertSolutionCount:
			err = assertSolutionCount(result.Trace, assertion)
		case AssertReplayMatches:
			if actx == nil || actx.Store == nil || actx.Engine == nil {
				err = fmt.Errorf("assertion[%d]: replay_matches requires a store and an engine", i)
			} else {
				err = assertReplayMatches(actx)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
