package engine

import (
	"fmt"
	"log/slog"
)

// Engine resolves predicate names against a Registry.
//
// The engine holds no per-call state; every resolve call runs to completion
// on the calling goroutine before returning. Concurrent resolve calls are
// safe as long as clause bodies themselves are.
type Engine struct {
	registry *Registry
	logger   *slog.Logger
	tracer   Tracer
	clock    *Clock
	idGen    IDGenerator
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTracer sets the tracer that receives every resolution step.
// Default: no tracing.
func WithTracer(t Tracer) EngineOption {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithClock sets the logical clock used to stamp trace events.
// Use NewClockAt to continue numbering from a persisted trace log.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets the resolution id generator.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.idGen = g
	}
}

// New creates an Engine over reg.
func New(reg *Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: reg,
		clock:    NewClock(),
		idGen:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Registry returns the registry the engine resolves against.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Result is the aggregate outcome of one resolution.
type Result struct {
	ResolutionID string
	Kind         Kind
	Name         string

	// OK is the boolean result. For Backtracking it is true iff at least
	// one solution was found.
	OK bool

	// Solutions is set for Backtracking only; never nil there.
	Solutions []any
}

// Resolve dispatches to the resolver for kind.
// The only errors returned are configuration errors (UNKNOWN_PREDICATE).
func (e *Engine) Resolve(kind Kind, name string, args ...any) (Result, error) {
	clauses, err := e.registry.Clauses(kind, name)
	if err != nil {
		return Result{Kind: kind, Name: name}, err
	}

	r := e.begin(kind, name, Args(args))
	res := Result{ResolutionID: r.id, Kind: kind, Name: name}

	switch kind {
	case FirstSuccess:
		res.OK = e.firstSuccess(r, clauses)
		r.end(res.OK)
	case AllRequired:
		res.OK = e.allRequired(r, clauses)
		r.end(res.OK)
	case Backtracking:
		res.Solutions = e.backtrack(r, clauses)
		res.OK = len(res.Solutions) > 0
		r.end(res.Solutions)
	default:
		// Clauses already rejected unknown kinds; unreachable.
		return res, fmt.Errorf("unknown resolution kind %s", kind)
	}

	return res, nil
}

// ResolveFirstSuccess runs the FirstSuccess discipline for name.
func (e *Engine) ResolveFirstSuccess(name string, args ...any) (bool, error) {
	res, err := e.Resolve(FirstSuccess, name, args...)
	return res.OK, err
}

// ResolveAllRequired runs the AllRequired discipline for name.
func (e *Engine) ResolveAllRequired(name string, args ...any) (bool, error) {
	res, err := e.Resolve(AllRequired, name, args...)
	return res.OK, err
}

// ResolveBacktracking runs the Backtracking discipline for name and
// returns the collected solutions. An empty, non-nil slice is a valid
// result.
func (e *Engine) ResolveBacktracking(name string, args ...any) ([]any, error) {
	res, err := e.Resolve(Backtracking, name, args...)
	if err != nil {
		return nil, err
	}
	return res.Solutions, nil
}

// Predicate returns a callable bound to the FirstSuccess predicate name.
// The name is looked up at call time, so clauses registered later are seen.
func (e *Engine) Predicate(name string) func(args ...any) (bool, error) {
	return func(args ...any) (bool, error) {
		return e.ResolveFirstSuccess(name, args...)
	}
}

// Principles returns a callable bound to the AllRequired predicate name.
func (e *Engine) Principles(name string) func(args ...any) (bool, error) {
	return func(args ...any) (bool, error) {
		return e.ResolveAllRequired(name, args...)
	}
}

// Rule returns a callable bound to the Backtracking predicate name.
func (e *Engine) Rule(name string) func(args ...any) ([]any, error) {
	return func(args ...any) ([]any, error) {
		return e.ResolveBacktracking(name, args...)
	}
}

// resolution carries the bookkeeping of one resolve call.
type resolution struct {
	engine *Engine
	id     string
	kind   Kind
	name   string
	args   Args
	logger *slog.Logger
}

func (e *Engine) begin(kind Kind, name string, args Args) *resolution {
	id := e.idGen.Generate()
	r := &resolution{
		engine: e,
		id:     id,
		kind:   kind,
		name:   name,
		args:   args,
		logger: e.logger.With("resolution", id, "predicate", name, "kind", kind.String()),
	}
	r.logger.Debug("resolution starting", "args", len(args))
	r.emit(TraceEvent{Type: TraceResolveStart, Clause: -1, Args: args})
	return r
}

func (r *resolution) end(value any) {
	r.logger.Debug("resolution finished", "result", value)
	r.emit(TraceEvent{Type: TraceResolveEnd, Clause: -1, Value: value})
}

// emit stamps and forwards ev to the tracer, if any.
func (r *resolution) emit(ev TraceEvent) {
	t := r.engine.tracer
	if t == nil {
		return
	}
	ev.ResolutionID = r.id
	ev.Seq = r.engine.clock.Next()
	ev.Kind = r.kind
	ev.Predicate = r.name
	if err := t.Trace(ev); err != nil {
		// Log and continue: tracing never changes a result.
		r.logger.Error("trace event dropped", "type", ev.Type, "seq", ev.Seq, "error", err)
	}
}

func (r *resolution) clauseEvent(typ TraceEventType, idx int, c Clause) TraceEvent {
	return TraceEvent{Type: typ, Clause: idx, Label: c.Label}
}

// guardSkipped records a skipped guard. A guard error or panic is logged,
// since the caller would otherwise never see it.
func (r *resolution) guardSkipped(idx int, c Clause, reason error) {
	ev := r.clauseEvent(TraceGuardSkip, idx, c)
	if reason != nil {
		ev.Detail = reason.Error()
		r.logger.Warn("guard error treated as skip", "clause", idx, "label", c.Label, "error", reason)
	} else {
		r.logger.Debug("guard skipped", "clause", idx, "label", c.Label)
	}
	r.emit(ev)
}

// failed records a body outcome other than OK.
func (r *resolution) failed(idx int, c Clause, out Outcome) {
	switch out.Kind {
	case OutcomeFail:
		ev := r.clauseEvent(TraceClauseFail, idx, c)
		ev.Detail = out.Message
		r.logger.Debug("clause failed", "clause", idx, "label", c.Label, "message", out.Message)
		r.emit(ev)
	case OutcomeError:
		uerr := &UnexpectedBodyError{Predicate: r.name, Clause: idx, Err: out.Err}
		ev := r.clauseEvent(TraceClauseError, idx, c)
		ev.Detail = out.Message
		r.logger.Warn("unexpected error in clause body", "clause", idx, "label", c.Label, "error", uerr)
		r.emit(ev)
	}
}
