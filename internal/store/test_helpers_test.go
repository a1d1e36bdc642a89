package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/predicate/internal/ir"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// testResolution returns a completed first_success resolution.
func testResolution(id string, seq int64) Resolution {
	return Resolution{
		ID:            id,
		ContentKey:    "key-" + id,
		Kind:          "first_success",
		Predicate:     "describe_number",
		Args:          ir.IRArray{ir.IRInt(7)},
		Seq:           seq,
		EndSeq:        seq + 3,
		OK:            true,
		SpecCID:       "bafy-test",
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
}

// testEvents returns the events of a resolution where clause 0 succeeded.
func testEvents(id string, seq int64) []Event {
	return []Event{
		{ResolutionID: id, Seq: seq, Type: "resolve_start", Clause: -1},
		{ResolutionID: id, Seq: seq + 1, Type: "clause_enter", Clause: 0, Label: "odd"},
		{ResolutionID: id, Seq: seq + 2, Type: "clause_ok", Clause: 0, Label: "odd"},
		{ResolutionID: id, Seq: seq + 3, Type: "resolve_end", Clause: -1, Value: ir.IRBool(true)},
	}
}
