package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/predicate/internal/engine"
)

func TestReplay_Matches(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	eng, _ := newRecordedEngine(t, s)

	_, err := eng.ResolveFirstSuccess("parity", 4)
	require.NoError(t, err)
	_, err = eng.ResolveBacktracking("pair", []any{"x"})
	require.NoError(t, err)

	replayer, _ := newRecordedEngine(t, createTestStore(t))
	results, err := s.Replay(ctx, replayer, "")
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.True(t, r.Match, "%s %v", r.Recorded.Predicate, r.Recorded.Args)
	}
	assert.Empty(t, Mismatches(results))
}

func TestReplay_DetectsChangedClauses(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	eng, _ := newRecordedEngine(t, s)

	_, err := eng.ResolveFirstSuccess("parity", 4)
	require.NoError(t, err)

	reg := engine.NewRegistry()
	reg.MustRegister(engine.FirstSuccess, "parity", engine.Clause{
		Body: func(engine.Args) error { return engine.Fail() },
	})
	results, err := s.Replay(ctx, engine.New(reg), "parity")
	require.NoError(t, err)

	bad := Mismatches(results)
	require.Len(t, bad, 1)
	assert.True(t, bad[0].Recorded.OK)
	assert.False(t, bad[0].OK)
}

func TestReplay_UnknownPredicate(t *testing.T) {
	s := createTestStore(t)
	eng, _ := newRecordedEngine(t, s)

	_, err := eng.ResolveFirstSuccess("parity", 1)
	require.NoError(t, err)

	results, err := s.Replay(context.Background(), engine.New(engine.NewRegistry()), "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, engine.IsUnknownPredicate(results[0].Err))
	assert.Len(t, Mismatches(results), 1)
}

func TestReplay_Cancelled(t *testing.T) {
	s := createTestStore(t)
	eng, _ := newRecordedEngine(t, s)
	_, err := eng.ResolveFirstSuccess("parity", 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Replay(ctx, eng, "")
	assert.ErrorIs(t, err, context.Canceled)
}
