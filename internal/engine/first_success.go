package engine

// firstSuccess implements OR with an implicit cut.
//
// Clauses are tried in registration order. A skipped guard or a failed body
// moves on to the next clause. The first body that completes ends the
// resolution with true; no later clause is examined.
func (e *Engine) firstSuccess(r *resolution, clauses []Clause) bool {
	for i, c := range clauses {
		guard, reason := evaluateGuard(c.Guard, r.args)
		if guard == GuardSkip {
			r.guardSkipped(i, c, reason)
			continue
		}

		r.emit(r.clauseEvent(TraceClauseEnter, i, c))
		out := runBody(c.Body, r.args)

		switch out.Kind {
		case OutcomeOK:
			r.emit(r.clauseEvent(TraceClauseOK, i, c))
			return true
		case OutcomeFail, OutcomeError:
			r.failed(i, c, out)
		}
	}
	return false
}
