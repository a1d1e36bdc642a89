package store

import (
	"context"
	"fmt"

	"github.com/roach88/predicate/internal/engine"
	"github.com/roach88/predicate/internal/ir"
)

// Resolver re-runs a recorded call. *engine.Engine implements it.
type Resolver interface {
	Resolve(kind engine.Kind, name string, args ...any) (engine.Result, error)
}

// ReplayResult compares one stored resolution with a fresh run.
type ReplayResult struct {
	Recorded Resolution

	OK        bool
	Solutions ir.IRArray

	// Match is true if the fresh run produced the recorded result.
	Match bool

	// Err is set if the fresh run failed with a configuration error
	// (for example the predicate no longer exists).
	Err error
}

// Replay re-resolves every stored resolution of predicate (all predicates
// if empty) in seq order and reports whether each result still matches.
//
// Replay checks determinism of a predicate set: the same predicate,
// arguments and clauses must give the same result. Nested resolutions are
// replayed like any other; they are stored as resolutions of their own.
func (s *Store) Replay(ctx context.Context, r Resolver, predicate string) ([]ReplayResult, error) {
	recorded, err := s.ListResolutions(ctx, predicate)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	results := make([]ReplayResult, 0, len(recorded))
	for _, rec := range recorded {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, replayOne(r, rec))
	}
	return results, nil
}

func replayOne(r Resolver, rec Resolution) ReplayResult {
	result := ReplayResult{Recorded: rec}

	kind, err := engine.ParseKind(rec.Kind)
	if err != nil {
		result.Err = err
		return result
	}

	args := make([]any, len(rec.Args))
	for i, a := range rec.Args {
		args[i] = ir.ToAny(a)
	}

	res, err := r.Resolve(kind, rec.Predicate, args...)
	if err != nil {
		result.Err = err
		return result
	}

	result.OK = res.OK
	if kind == engine.Backtracking {
		result.Solutions = toIRArray(res.Solutions)
	}
	result.Match = result.OK == rec.OK && ir.Equal(result.Solutions, rec.Solutions)
	return result
}

// Mismatches returns the results that did not match their recording.
func Mismatches(results []ReplayResult) []ReplayResult {
	var out []ReplayResult
	for _, r := range results {
		if !r.Match {
			out = append(out, r)
		}
	}
	return out
}
