package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/predicate/internal/compiler"
	"github.com/roach88/predicate/internal/engine"
	"github.com/roach88/predicate/internal/ir"
	"github.com/roach88/predicate/internal/program"
	"github.com/roach88/predicate/internal/store"
	"github.com/roach88/predicate/internal/testutil"
)

// Harness holds the state of one scenario run.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	log    *engine.TraceLog
	out    *testutil.OutputBuffer
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Compile the scenario's CUE files and install them in a new engine
// 3. Resolve each call, checking its expectation and output
// 4. Evaluate assertions over the collected trace
//
// An error is returned only if the scenario cannot be executed at all
// (bad specs, bad arguments); failed expectations are reported in the
// Result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	specs, err := compiler.CompileFiles(scenario.Specs...)
	if err != nil {
		return nil, fmt.Errorf("failed to load specs: %w", err)
	}
	specCID, err := ir.SpecCID(specs)
	if err != nil {
		return nil, fmt.Errorf("failed to hash specs: %w", err)
	}

	h := &Harness{
		store:  st,
		log:    &engine.TraceLog{},
		out:    &testutil.OutputBuffer{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	h.engine, err = program.Build(specs, h.out,
		engine.WithLogger(h.logger),
		engine.WithTracer(engine.MultiTracer{h.log, store.NewRecorder(st, specCID.String())}),
		engine.WithClock(engine.NewClock()),
		engine.WithIDGenerator(testutil.NewSequentialGenerator(scenario.Name)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to install specs: %w", err)
	}

	result := NewResult()
	for i, call := range scenario.Calls {
		if err := h.executeCall(i, call, result); err != nil {
			return nil, fmt.Errorf("call %d (%s): %w", i, call.Predicate, err)
		}
	}

	actx := &AssertionContext{
		Ctx:    context.Background(),
		Store:  st,
		Engine: h.engine,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeCall resolves one call and checks it against its expectation.
func (h *Harness) executeCall(index int, call Call, result *Result) error {
	args, err := convertArgs(call.Args)
	if err != nil {
		return err
	}
	kind, err := h.callKind(call)
	if err != nil {
		return err
	}

	h.out.Reset()
	start := len(h.log.Events)

	res, resolveErr := h.engine.Resolve(kind, call.Predicate, args...)

	for _, ev := range h.log.Events[start:] {
		result.Trace = append(result.Trace, traceEvent(index, ev))
	}
	lines := h.out.Lines()
	for _, line := range lines {
		result.Output = append(result.Output, OutputLine{Call: index, Text: line})
	}

	prefix := fmt.Sprintf("calls[%d] %s", index, call.Predicate)
	for _, msg := range checkExpect(call.Expect, kind, res, resolveErr) {
		result.AddError(prefix + ": " + msg)
	}
	if call.Output != nil && !slices.Equal(lines, call.Output) {
		result.AddError(fmt.Sprintf("%s: output %q, expected %q", prefix, lines, call.Output))
	}

	h.logger.Info("call completed",
		"call", index,
		"predicate", call.Predicate,
		"kind", kind.String(),
		"ok", res.OK,
		"events", len(h.log.Events)-start,
	)
	return nil
}

// callKind returns the call's explicit kind, or the declared kind of its
// predicate. An undeclared predicate resolves as FirstSuccess so that the
// engine reports UNKNOWN_PREDICATE.
func (h *Harness) callKind(call Call) (engine.Kind, error) {
	if call.Kind != "" {
		return engine.ParseKind(call.Kind)
	}
	if kind, ok := h.engine.Registry().KindOf(call.Predicate); ok {
		return kind, nil
	}
	return engine.FirstSuccess, nil
}

// checkExpect compares a resolution with its expectation.
func checkExpect(expect *Expect, kind engine.Kind, res engine.Result, err error) []string {
	var errs []string
	if err != nil {
		code := engine.ErrorCode(err)
		switch {
		case expect == nil || expect.Error == "":
			errs = append(errs, fmt.Sprintf("unexpected error: %v", err))
		case code != expect.Error:
			errs = append(errs, fmt.Sprintf("error %s, expected %s", code, expect.Error))
		}
		return errs
	}
	if expect == nil {
		return nil
	}

	if expect.Error != "" {
		errs = append(errs, fmt.Sprintf("expected error %s, got none", expect.Error))
	}
	if expect.Result != nil && *expect.Result != res.OK {
		errs = append(errs, fmt.Sprintf("result %t, expected %t", res.OK, *expect.Result))
	}
	if expect.Solutions != nil {
		if kind != engine.Backtracking {
			errs = append(errs, fmt.Sprintf("solutions expected from a %s resolution", kind))
		} else if want, got := toIR(expect.Solutions), toIR(res.Solutions); !ir.Equal(want, got) {
			errs = append(errs, fmt.Sprintf("solutions %s, expected %s", ir.Render(got), ir.Render(want)))
		}
	}
	return errs
}

// traceEvent converts an engine event, rendering values as IR so that
// snapshots do not depend on Go types.
func traceEvent(call int, ev engine.TraceEvent) TraceEvent {
	te := TraceEvent{
		Call:       call,
		Resolution: ev.ResolutionID,
		Seq:        ev.Seq,
		Type:       string(ev.Type),
		Predicate:  ev.Predicate,
		Clause:     ev.Clause,
		Label:      ev.Label,
		Detail:     ev.Detail,
	}
	if ev.Args != nil {
		te.Args = toIR([]any(ev.Args))
	}
	if ev.Value != nil {
		te.Value = toIR(ev.Value)
	}
	return te
}

// convertArgs converts YAML-decoded arguments to engine arguments.
// Integers become int64 and nested maps map[string]any, exactly as the
// CLI passes JSON arguments.
func convertArgs(raw []any) ([]any, error) {
	vals, err := ir.FromAnySlice(raw)
	if err != nil {
		return nil, err
	}
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = ir.ToAny(v)
	}
	return args, nil
}

// toIR converts a Go value for comparison and snapshots. Values outside
// the IR are kept as their printed form.
func toIR(v any) ir.IRValue {
	if xs, ok := v.([]any); ok {
		arr := make(ir.IRArray, len(xs))
		for i, x := range xs {
			arr[i] = toIR(x)
		}
		return arr
	}
	if irv, err := ir.FromAny(v); err == nil {
		return irv
	}
	return ir.IRString(fmt.Sprint(v))
}
