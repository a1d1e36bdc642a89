package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/predicate/internal/ir"
	"github.com/roach88/predicate/internal/queryir"
)

func TestWriteTrace_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	res := testResolution("res-1", 1)
	require.NoError(t, s.WriteTrace(ctx, res, testEvents("res-1", 1)))

	got, err := s.ReadResolution(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, res, got)

	events, err := s.ReadEvents(ctx, "res-1")
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "resolve_start", events[0].Type)
	assert.Equal(t, -1, events[0].Clause)
	assert.Nil(t, events[0].Value)
	assert.Equal(t, "odd", events[1].Label)
	assert.Equal(t, ir.IRBool(true), events[3].Value)
}

func TestWriteTrace_BacktrackingSolutions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	res := testResolution("res-1", 1)
	res.Kind = "backtracking"
	res.Predicate = "find_path"
	res.Args = ir.IRArray{ir.IRObject{"a": ir.IRInt(1)}, ir.IRNull{}}
	res.ContentKey = ""
	res.Solutions = ir.IRArray{
		ir.IRArray{ir.IRString("a")},
		ir.IRString("big ∑ value"),
	}
	require.NoError(t, s.WriteResolution(ctx, res))

	got, err := s.ReadResolution(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, res.Args, got.Args)
	assert.Equal(t, res.Solutions, got.Solutions)
	assert.Empty(t, got.ContentKey)
}

func TestWriteResolution_EmptySolutionsKeptDistinctFromNone(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	empty := testResolution("res-empty", 1)
	empty.Kind = "backtracking"
	empty.OK = false
	empty.Solutions = ir.IRArray{}
	require.NoError(t, s.WriteResolution(ctx, empty))

	none := testResolution("res-none", 10)
	none.Args = nil
	require.NoError(t, s.WriteResolution(ctx, none))

	got, err := s.ReadResolution(ctx, "res-empty")
	require.NoError(t, err)
	assert.NotNil(t, got.Solutions)
	assert.Empty(t, got.Solutions)

	got, err = s.ReadResolution(ctx, "res-none")
	require.NoError(t, err)
	assert.Nil(t, got.Solutions)
	assert.Equal(t, ir.IRArray{}, got.Args)
}

func TestWriteTrace_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	res := testResolution("res-1", 1)
	events := testEvents("res-1", 1)
	require.NoError(t, s.WriteTrace(ctx, res, events))

	res.OK = false
	require.NoError(t, s.WriteTrace(ctx, res, events))

	got, err := s.ReadResolution(ctx, "res-1")
	require.NoError(t, err)
	assert.True(t, got.OK, "first write wins")

	all, err := s.ReadEvents(ctx, "res-1")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestWriteEvent_RequiresResolution(t *testing.T) {
	s := createTestStore(t)

	err := s.WriteEvent(context.Background(), Event{ResolutionID: "missing", Seq: 1, Type: "cut"})
	assert.Error(t, err)
}

func TestWriteTrace_RollsBackOnFailure(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	events := testEvents("res-1", 1)
	events[2].ResolutionID = "other"
	require.Error(t, s.WriteTrace(ctx, testResolution("res-1", 1), events))

	_, err := s.ReadResolution(ctx, "res-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestReadResolution_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadResolution(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestReadEvents_Empty(t *testing.T) {
	s := createTestStore(t)

	events, err := s.ReadEvents(context.Background(), "nope")
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestListResolutions_Order(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteResolution(ctx, testResolution("res-c", 20)))
	require.NoError(t, s.WriteResolution(ctx, testResolution("res-a", 10)))
	other := testResolution("res-b", 15)
	other.Predicate = "verif"
	other.ContentKey = "key-other"
	require.NoError(t, s.WriteResolution(ctx, other))

	all, err := s.ListResolutions(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"res-a", "res-b", "res-c"}, resolutionIDs(all))

	some, err := s.ListResolutions(ctx, "describe_number")
	require.NoError(t, err)
	assert.Equal(t, []string{"res-a", "res-c"}, resolutionIDs(some))

	none, err := s.ListResolutions(ctx, "unknown")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSearchEvents_Filter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteTrace(ctx, testResolution("res-1", 1), testEvents("res-1", 1)))
	require.NoError(t, s.WriteTrace(ctx, testResolution("res-2", 5), testEvents("res-2", 5)))

	events, err := s.SearchEvents(ctx, queryir.And{Predicates: []queryir.Predicate{
		queryir.Equals{Field: "type", Value: ir.IRString("clause_ok")},
		queryir.Compare{Field: "seq", Op: queryir.OpGt, Value: ir.IRInt(4)},
	}})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "res-2", events[0].ResolutionID)
	assert.Equal(t, int64(7), events[0].Seq)
}

func TestSearchResolutions_InvalidFilter(t *testing.T) {
	s := createTestStore(t)

	_, err := s.SearchResolutions(context.Background(), queryir.Equals{Field: "args", Value: ir.IRString("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown column")
}

func TestSearchResolutions_BoolColumn(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	failed := testResolution("res-fail", 10)
	failed.OK = false
	failed.ContentKey = "key-fail"
	require.NoError(t, s.WriteResolution(ctx, testResolution("res-ok", 1)))
	require.NoError(t, s.WriteResolution(ctx, failed))

	got, err := s.SearchResolutions(ctx, queryir.Equals{Field: "ok", Value: ir.IRBool(false)})
	require.NoError(t, err)
	assert.Equal(t, []string{"res-fail"}, resolutionIDs(got))
}

func TestGetLastSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, err := s.GetLastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	require.NoError(t, s.WriteTrace(ctx, testResolution("res-1", 1), testEvents("res-1", 1)))
	seq, err = s.GetLastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), seq)
}

func resolutionIDs(rs []Resolution) []string {
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
	}
	return ids
}
