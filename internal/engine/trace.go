package engine

// TraceEventType names one step of a resolution.
type TraceEventType string

const (
	TraceResolveStart TraceEventType = "resolve_start"
	TraceGuardSkip    TraceEventType = "guard_skip"
	TraceClauseEnter  TraceEventType = "clause_enter"
	TraceClauseOK     TraceEventType = "clause_ok"
	TraceClauseFail   TraceEventType = "clause_fail"
	TraceClauseError  TraceEventType = "clause_error"
	TraceSolution     TraceEventType = "solution"
	TraceCut          TraceEventType = "cut"
	TraceResolveEnd   TraceEventType = "resolve_end"
)

// TraceEvent describes one step of a resolution.
//
// Events of one resolution share ResolutionID and carry strictly increasing
// Seq values from the engine's logical clock.
type TraceEvent struct {
	ResolutionID string
	Seq          int64
	Type         TraceEventType
	Kind         Kind
	Predicate    string

	// Clause is the 0-based clause index, or -1 for resolution-level events.
	Clause int
	Label  string

	// Args is set on resolve_start only.
	Args Args

	// Value is the solution (solution events), the boolean result or the
	// solution list (resolve_end).
	Value any

	// Detail is a failure message or error text.
	Detail string
}

// Tracer receives trace events. Errors returned by Trace are logged and
// otherwise ignored; they never change a resolution's result.
type Tracer interface {
	Trace(ev TraceEvent) error
}

// TracerFunc adapts a function into a Tracer.
type TracerFunc func(ev TraceEvent) error

// Trace implements Tracer.
func (f TracerFunc) Trace(ev TraceEvent) error {
	return f(ev)
}

// MultiTracer fans events out to several tracers. All tracers see every
// event; the first error is returned.
type MultiTracer []Tracer

// Trace implements Tracer.
func (m MultiTracer) Trace(ev TraceEvent) error {
	var first error
	for _, t := range m {
		if t == nil {
			continue
		}
		if err := t.Trace(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// TraceLog collects events in memory. Useful for tests and the harness.
type TraceLog struct {
	Events []TraceEvent
}

// Trace implements Tracer.
func (l *TraceLog) Trace(ev TraceEvent) error {
	l.Events = append(l.Events, ev)
	return nil
}

// Filter returns the events of the given type, in order.
func (l *TraceLog) Filter(typ TraceEventType) []TraceEvent {
	var out []TraceEvent
	for _, ev := range l.Events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// Entered returns the indexes of clauses whose bodies ran, in order.
func (l *TraceLog) Entered() []int {
	var out []int
	for _, ev := range l.Events {
		if ev.Type == TraceClauseEnter {
			out = append(out, ev.Clause)
		}
	}
	return out
}

// Reset discards all collected events.
func (l *TraceLog) Reset() {
	l.Events = nil
}
