package engine

import "fmt"

// searchState is the state of one Backtracking resolution.
type searchState int

const (
	// stateSearching: no cut yet, clauses are processed in order.
	stateSearching searchState = iota
	// stateCutting: the current producer yielded a cut; it is still
	// drained, but no further clause will be tried.
	stateCutting
	// stateDone: the clause loop is over.
	stateDone
)

func (s searchState) String() string {
	switch s {
	case stateSearching:
		return "searching"
	case stateCutting:
		return "cutting"
	case stateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// backtrack implements multi-solution search with an explicit cut.
//
// Each applicable clause's producer is driven to exhaustion or to its first
// error before the next clause is considered. Items are collected in the
// order they were produced; cut markers are never collected. A cut from
// clause k stops clauses k+1..n but never truncates clause k itself.
// Guard skips and producer errors only end the clause, never the search.
func (e *Engine) backtrack(r *resolution, clauses []Clause) []any {
	solutions := make([]any, 0)
	state := stateSearching

	for i, c := range clauses {
		if state != stateSearching {
			break
		}

		guard, reason := evaluateGuard(c.Guard, r.args)
		if guard == GuardSkip {
			r.guardSkipped(i, c, reason)
			continue
		}

		r.emit(r.clauseEvent(TraceClauseEnter, i, c))

		producer, out := startProducer(c.Search, r.args)
		if out.Kind != OutcomeOK {
			r.failed(i, c, out)
			continue
		}

		var cut bool
		solutions, cut = r.drain(i, c, producer, solutions)
		if cut {
			state = stateCutting
		}

		// The producer is fully drained here; a pending cut ends the loop.
		if state == stateCutting {
			r.logger.Debug("cut ends search", "clause", i, "label", c.Label, "skipped", len(clauses)-i-1)
			state = stateDone
		}
	}

	return solutions
}

// drain drives producer until it is exhausted or fails, appending
// solutions to acc. It reports whether a cut marker was seen.
func (r *resolution) drain(idx int, c Clause, producer Producer, acc []any) ([]any, bool) {
	defer producer.Stop()

	cut := false
	for {
		item, ok, err := producer.Next()
		if err != nil {
			// Items already yielded stay; the clause simply ends here.
			r.failed(idx, c, classify(err))
			return acc, cut
		}
		if !ok {
			r.emit(r.clauseEvent(TraceClauseOK, idx, c))
			return acc, cut
		}

		switch it := item.(type) {
		case CutMarker:
			if !cut {
				r.logger.Debug("cut requested", "clause", idx, "label", c.Label)
			}
			cut = true
			r.emit(r.clauseEvent(TraceCut, idx, c))
		case Solution:
			acc = append(acc, it.Value)
			ev := r.clauseEvent(TraceSolution, idx, c)
			ev.Value = it.Value
			r.emit(ev)
		case nil:
			// A nil Item carries neither a value nor a cut.
			r.logger.Debug("nil item ignored", "clause", idx, "label", c.Label)
		}
	}
}

// startProducer calls a Search body, recovering a panic raised before the
// producer is even returned.
func startProducer(search Search, args Args) (p Producer, out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			p = nil
			out = Outcome{Kind: OutcomeError, Message: fmt.Sprint(rec), Err: fmt.Errorf("search panicked: %v", rec)}
		}
	}()

	p = search(args)
	if p == nil {
		// No producer means no solutions, like an empty generator.
		return Solutions(), Outcome{Kind: OutcomeOK}
	}
	return p, Outcome{Kind: OutcomeOK}
}
