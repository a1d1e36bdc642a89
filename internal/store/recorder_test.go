package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/predicate/internal/engine"
	"github.com/roach88/predicate/internal/ir"
)

// newRecordedEngine builds an engine with a parity predicate and a
// backtracking pair predicate that solves member twice per call.
func newRecordedEngine(t *testing.T, s *Store) (*engine.Engine, *Recorder) {
	t.Helper()

	reg := engine.NewRegistry()
	reg.MustRegister(engine.FirstSuccess, "parity", engine.Clause{
		Label: "even",
		Guard: engine.When(func(a engine.Args) bool {
			n, ok := a.Int(0)
			return ok && n%2 == 0
		}),
		Body: func(engine.Args) error { return nil },
	})
	reg.MustRegister(engine.FirstSuccess, "parity", engine.Clause{
		Label: "odd",
		Body:  func(engine.Args) error { return engine.Fail("odd") },
	})

	reg.MustRegister(engine.Backtracking, "member", engine.Clause{
		Search: func(a engine.Args) engine.Producer {
			xs, _ := a.At(0).([]any)
			return engine.Solutions(xs...)
		},
	})

	rec := NewRecorder(s, "bafy-spec")
	var eng *engine.Engine
	reg.MustRegister(engine.Backtracking, "pair", engine.Clause{
		Search: func(a engine.Args) engine.Producer {
			return engine.Generate(func(yield func(engine.Item) bool) error {
				firsts, err := eng.ResolveBacktracking("member", a.At(0))
				if err != nil {
					return err
				}
				for _, x := range firsts {
					if !yield(engine.Solution{Value: []any{x, x}}) {
						return nil
					}
				}
				return nil
			})
		},
	})

	eng = engine.New(reg,
		engine.WithTracer(rec),
		engine.WithIDGenerator(engine.NewFixedGenerator("res-1", "res-2", "res-3")),
	)
	return eng, rec
}

func TestRecorder_FirstSuccess(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	eng, rec := newRecordedEngine(t, s)

	ok, err := eng.ResolveFirstSuccess("parity", 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, rec.Pending())

	res, err := s.ReadResolution(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, "first_success", res.Kind)
	assert.Equal(t, "parity", res.Predicate)
	assert.Equal(t, ir.IRArray{ir.IRInt(3)}, res.Args)
	assert.False(t, res.OK)
	assert.Nil(t, res.Solutions)
	assert.Equal(t, "bafy-spec", res.SpecCID)
	assert.Equal(t, int64(1), res.Seq)
	assert.NotEmpty(t, res.ContentKey)

	events, err := s.ReadEvents(ctx, "res-1")
	require.NoError(t, err)
	var types []string
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{"resolve_start", "guard_skip", "clause_enter", "clause_fail", "resolve_end"}, types)
	assert.Equal(t, "odd", events[3].Detail)
	assert.Equal(t, res.EndSeq, events[4].Seq)
}

func TestRecorder_NestedResolutions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	eng, rec := newRecordedEngine(t, s)

	sols, err := eng.ResolveBacktracking("pair", []any{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{"a", "a"}, []any{"b", "b"}}, sols)
	assert.Zero(t, rec.Pending())

	all, err := s.ListResolutions(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "pair", all[0].Predicate)
	assert.Equal(t, "member", all[1].Predicate)

	outer := all[0]
	assert.True(t, outer.OK)
	assert.Equal(t, ir.IRArray{
		ir.IRArray{ir.IRString("a"), ir.IRString("a")},
		ir.IRArray{ir.IRString("b"), ir.IRString("b")},
	}, outer.Solutions)
	assert.Greater(t, outer.EndSeq, all[1].EndSeq, "outer resolution ends after the nested one")

	solutions, err := s.SearchEvents(ctx, nil)
	require.NoError(t, err)
	var count int
	for _, ev := range solutions {
		if ev.Type == "solution" {
			count++
		}
	}
	assert.Equal(t, 4, count)
}

func TestRecorder_UnknownResolution(t *testing.T) {
	rec := NewRecorder(createTestStore(t), "")

	err := rec.Trace(engine.TraceEvent{ResolutionID: "ghost", Seq: 5, Type: engine.TraceClauseEnter})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown resolution ghost")
}

func TestRecorder_NullArgumentHasNoContentKey(t *testing.T) {
	s := createTestStore(t)
	eng, _ := newRecordedEngine(t, s)

	_, err := eng.ResolveFirstSuccess("parity", nil)
	require.NoError(t, err)

	res, err := s.ReadResolution(context.Background(), "res-1")
	require.NoError(t, err)
	assert.Empty(t, res.ContentKey)
	assert.Equal(t, ir.IRArray{ir.IRNull{}}, res.Args)
}

func TestToIR_FallsBackToText(t *testing.T) {
	assert.Nil(t, toIR(nil))
	assert.Equal(t, ir.IRInt(4), toIR(4))
	assert.Equal(t, ir.IRString("1.5"), toIR(1.5))
	assert.Equal(t, ir.IRArray{ir.IRNull{}, ir.IRBool(true)}, toIR([]any{nil, true}))
}
