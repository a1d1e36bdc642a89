package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/predicate/internal/engine"
	"github.com/roach88/predicate/internal/ir"
)

// Recorder is an engine.Tracer that persists every resolution it sees.
//
// Events are buffered per resolution id and written with WriteTrace when
// the resolution ends, so a stored trace is always complete. Nested
// resolutions (a solve step calling another predicate) have their own ids
// and are stored as separate resolutions.
//
// Recorder is safe for concurrent use.
type Recorder struct {
	store   *Store
	specCID string

	mu      sync.Mutex
	pending map[string]*pendingTrace
}

type pendingTrace struct {
	res    Resolution
	events []Event
}

// NewRecorder creates a Recorder writing to s. specCID identifies the
// predicate set the engine runs; it is stored with every resolution.
func NewRecorder(s *Store, specCID string) *Recorder {
	return &Recorder{
		store:   s,
		specCID: specCID,
		pending: make(map[string]*pendingTrace),
	}
}

// Trace implements engine.Tracer.
func (r *Recorder) Trace(ev engine.TraceEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ev.Type == engine.TraceResolveStart {
		r.pending[ev.ResolutionID] = &pendingTrace{res: r.start(ev)}
	}

	p, ok := r.pending[ev.ResolutionID]
	if !ok {
		return fmt.Errorf("record %s event: unknown resolution %s", ev.Type, ev.ResolutionID)
	}
	p.events = append(p.events, Event{
		ResolutionID: ev.ResolutionID,
		Seq:          ev.Seq,
		Type:         string(ev.Type),
		Clause:       ev.Clause,
		Label:        ev.Label,
		Value:        toIR(ev.Value),
		Detail:       ev.Detail,
	})

	if ev.Type != engine.TraceResolveEnd {
		return nil
	}

	delete(r.pending, ev.ResolutionID)
	p.res.EndSeq = ev.Seq
	switch v := ev.Value.(type) {
	case bool:
		p.res.OK = v
	case []any:
		p.res.OK = len(v) > 0
		p.res.Solutions = toIRArray(v)
	}
	return r.store.WriteTrace(context.Background(), p.res, p.events)
}

// Pending returns how many resolutions have started but not ended.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Recorder) start(ev engine.TraceEvent) Resolution {
	args := toIRArray(ev.Args)
	res := Resolution{
		ID:            ev.ResolutionID,
		Kind:          ev.Kind.String(),
		Predicate:     ev.Predicate,
		Args:          args,
		Seq:           ev.Seq,
		SpecCID:       r.specCID,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
	// Arguments containing null cannot be canonically hashed; such
	// resolutions are stored without a content key.
	if key, err := ir.ResolutionKey(ev.ResolutionID, res.Kind, res.Predicate, args, ev.Seq); err == nil {
		res.ContentKey = key
	}
	return res
}

// toIR converts a recorded Go value. Values outside the IR (floats,
// structs) are stored as their printed form rather than dropped.
func toIR(v any) ir.IRValue {
	if v == nil {
		return nil
	}
	if xs, ok := v.([]any); ok {
		return toIRArray(xs)
	}
	if irv, err := ir.FromAny(v); err == nil {
		return irv
	}
	return ir.IRString(fmt.Sprint(v))
}

func toIRArray[S ~[]any](xs S) ir.IRArray {
	arr := make(ir.IRArray, len(xs))
	for i, x := range xs {
		if x == nil {
			arr[i] = ir.IRNull{}
			continue
		}
		arr[i] = toIR(x)
	}
	return arr
}
