package engine

// allRequired implements strict, fail-fast conjunction.
//
// A skipped guard (false, error or panic) or a failed body at clause k
// aborts the resolution with false. Clauses k+1..n are never touched, not
// even their guards.
func (e *Engine) allRequired(r *resolution, clauses []Clause) bool {
	for i, c := range clauses {
		guard, reason := evaluateGuard(c.Guard, r.args)
		if guard == GuardSkip {
			r.guardSkipped(i, c, reason)
			return false
		}

		r.emit(r.clauseEvent(TraceClauseEnter, i, c))
		out := runBody(c.Body, r.args)

		switch out.Kind {
		case OutcomeOK:
			r.emit(r.clauseEvent(TraceClauseOK, i, c))
		case OutcomeFail, OutcomeError:
			r.failed(i, c, out)
			return false
		}
	}
	return true
}
