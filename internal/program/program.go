package program

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/roach88/predicate/internal/compiler"
	"github.com/roach88/predicate/internal/engine"
	"github.com/roach88/predicate/internal/ir"
)

// Solver resolves a backtracking predicate by name. *engine.Engine
// implements it; solve steps call it to recurse.
type Solver interface {
	ResolveBacktracking(name string, args ...any) ([]any, error)
}

// Options configures Install.
type Options struct {
	// Out receives say output, one line per say step. Default: io.Discard.
	Out io.Writer

	// Solver resolves solve steps. Required if any predicate uses solve.
	Solver Solver

	// MaxSolveDepth bounds how many solve calls may be in progress at once.
	// A solve step past the limit fails its clause with ErrSolveDepth.
	// Default: DefaultMaxSolveDepth.
	MaxSolveDepth int
}

// DefaultMaxSolveDepth is the solve nesting limit when Options leaves it
// unset.
const DefaultMaxSolveDepth = 256

// ErrSolveDepth is returned by a solve step nested deeper than
// Options.MaxSolveDepth.
var ErrSolveDepth = errors.New("solve depth limit exceeded")

// Install validates specs as a set and registers one engine clause per
// declared clause, in declaration order. It returns the handles of the
// registered clauses.
//
// Specs are validated before anything is registered: an invalid set
// leaves the registry untouched.
func Install(reg *engine.Registry, specs []*ir.PredicateSpec, opts Options) ([]engine.ClauseHandle, error) {
	if errs := compiler.ValidateSet(specs); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return nil, fmt.Errorf("invalid predicate set: %w", errors.Join(joined...))
	}

	if opts.Solver == nil {
		for _, spec := range specs {
			if usesSolve(spec) {
				return nil, fmt.Errorf("predicate %q uses solve but no solver is configured", spec.Name)
			}
		}
	}

	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	maxDepth := opts.MaxSolveDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxSolveDepth
	}
	x := &interpreter{out: out, solver: opts.Solver, maxDepth: maxDepth}

	var handles []engine.ClauseHandle
	for _, spec := range specs {
		kind, err := engine.ParseKind(spec.Kind)
		if err != nil {
			return handles, fmt.Errorf("predicate %q: %w", spec.Name, err)
		}
		for _, cs := range spec.Clauses {
			h, err := reg.Register(kind, spec.Name, x.clause(kind, cs))
			if err != nil {
				return handles, err
			}
			handles = append(handles, h)
		}
	}
	return handles, nil
}

// Build creates a registry and an engine for specs, installs them with the
// engine as solver, and freezes the registry.
func Build(specs []*ir.PredicateSpec, out io.Writer, opts ...engine.EngineOption) (*engine.Engine, error) {
	reg := engine.NewRegistry()
	eng := engine.New(reg, opts...)
	if _, err := Install(reg, specs, Options{Out: out, Solver: eng}); err != nil {
		return nil, err
	}
	reg.Freeze()
	return eng, nil
}

func usesSolve(spec *ir.PredicateSpec) bool {
	var walk func([]ir.Step) bool
	walk = func(steps []ir.Step) bool {
		for _, s := range steps {
			switch st := s.(type) {
			case ir.SolveStep:
				return true
			case ir.EachStep:
				if walk(st.Body) {
					return true
				}
			case ir.WhenStep:
				if walk(st.Then) || walk(st.Else) {
					return true
				}
			}
		}
		return false
	}
	for _, c := range spec.Clauses {
		if walk(c.Body) {
			return true
		}
	}
	return false
}

// interpreter executes clause declarations. One interpreter is shared by
// every clause of an Install call.
type interpreter struct {
	mu     sync.Mutex // serializes writes to out
	out    io.Writer
	solver Solver

	maxDepth int
	depth    atomic.Int32 // solve calls in progress
}

func (x *interpreter) clause(kind engine.Kind, cs ir.ClauseSpec) engine.Clause {
	c := engine.Clause{Label: cs.Label}

	if len(cs.Guard) > 0 {
		guard := cs.Guard
		c.Guard = func(args engine.Args) (bool, error) {
			en, err := newEnv(args)
			if err != nil {
				return false, err
			}
			return en.holds(guard)
		}
	}

	body := cs.Body
	if kind == engine.Backtracking {
		c.Search = func(args engine.Args) engine.Producer {
			en, err := newEnv(args)
			if err != nil {
				return engine.FailWith(err)
			}
			return engine.Generate(func(yield func(engine.Item) bool) error {
				return x.run(body, en, yield)
			})
		}
	} else {
		c.Body = func(args engine.Args) error {
			en, err := newEnv(args)
			if err != nil {
				return err
			}
			return x.run(body, en, nil)
		}
	}
	return c
}

// errHalted unwinds a generator whose consumer stopped pulling.
var errHalted = errors.New("generator halted")

// run executes steps in order. yield is nil outside backtracking clauses.
func (x *interpreter) run(steps []ir.Step, en *env, yield func(engine.Item) bool) error {
	for _, s := range steps {
		if err := x.step(s, en, yield); err != nil {
			return err
		}
	}
	return nil
}

func (x *interpreter) step(s ir.Step, en *env, yield func(engine.Item) bool) error {
	switch st := s.(type) {
	case ir.CheckStep:
		ok, err := en.condition(st.Cond)
		if err != nil {
			return err
		}
		msg := st.Message
		if msg == "" {
			msg = "check " + st.Cond.Op + " failed"
		}
		return engine.Check(ok, msg)

	case ir.FailStep:
		if st.Message == "" {
			return engine.Fail()
		}
		return engine.Fail(st.Message)

	case ir.SayStep:
		line, err := en.render(st.Text)
		if err != nil {
			return err
		}
		x.say(line)
		return nil

	case ir.YieldStep:
		v, err := en.operand(st.Value)
		if err != nil {
			return err
		}
		return x.emit(yield, engine.Solution{Value: ir.ToAny(v)})

	case ir.CutStep:
		return x.emit(yield, engine.Cut())

	case ir.EachStep:
		over, err := en.operand(st.Over)
		if err != nil {
			return err
		}
		arr, ok := over.(ir.IRArray)
		if !ok {
			return fmt.Errorf("each: need an array, got %s", ir.TypeName(over))
		}
		for i, elem := range arr {
			if err := x.run(st.Body, en.push(elem, i), yield); err != nil {
				return err
			}
		}
		return nil

	case ir.WhenStep:
		ok, err := en.holds(st.Cond)
		if err != nil {
			return err
		}
		if ok {
			return x.run(st.Then, en, yield)
		}
		return x.run(st.Else, en, yield)

	case ir.SolveStep:
		if yield == nil {
			return fmt.Errorf("solve is only allowed in backtracking predicates")
		}
		if x.solver == nil {
			return fmt.Errorf("solve %q: no solver configured", st.Predicate)
		}
		args := make([]any, len(st.Args))
		for i, a := range st.Args {
			v, err := en.operand(a)
			if err != nil {
				return fmt.Errorf("solve %q: arg %d: %w", st.Predicate, i, err)
			}
			args[i] = ir.ToAny(v)
		}
		solutions, err := x.solve(st.Predicate, args)
		if err != nil {
			return fmt.Errorf("solve %q: %w", st.Predicate, err)
		}
		for _, sol := range solutions {
			if err := x.emit(yield, engine.Solution{Value: sol}); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown step type %T", s)
	}
}

// solve runs one nested resolution. The depth is released before the
// caller yields, so it counts only resolutions still collecting solutions.
func (x *interpreter) solve(name string, args []any) ([]any, error) {
	if int(x.depth.Add(1)) > x.maxDepth {
		x.depth.Add(-1)
		return nil, fmt.Errorf("%w (%d)", ErrSolveDepth, x.maxDepth)
	}
	defer x.depth.Add(-1)
	return x.solver.ResolveBacktracking(name, args...)
}

func (x *interpreter) emit(yield func(engine.Item) bool, it engine.Item) error {
	if yield == nil {
		return fmt.Errorf("yield and cut are only allowed in backtracking predicates")
	}
	if !yield(it) {
		return errHalted
	}
	return nil
}

func (x *interpreter) say(line string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	fmt.Fprintln(x.out, line)
}
