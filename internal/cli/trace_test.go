package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/predicate/internal/engine"
	"github.com/roach88/predicate/internal/ir"
	"github.com/roach88/predicate/internal/queryir"
	"github.com/roach88/predicate/internal/store"
)

// traceJSON mirrors TraceResult without the IR-valued fields, which do
// not decode back into interfaces.
type traceJSON struct {
	Resolutions []struct {
		ID        string `json:"id"`
		Predicate string `json:"predicate"`
		Kind      string `json:"kind"`
		OK        bool   `json:"ok"`
		Seq       int64  `json:"seq"`
		EndSeq    int64  `json:"end_seq"`
		SpecCID   string `json:"spec_cid"`
		Events    []struct {
			Seq    int64  `json:"seq"`
			Type   string `json:"type"`
			Clause int    `json:"clause"`
			Label  string `json:"label"`
			Detail string `json:"detail"`
		} `json:"events"`
	} `json:"resolutions"`
	Stats TraceStats `json:"stats"`
}

func runTraceJSON(t *testing.T, dbPath string, args ...string) traceJSON {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs(append([]string{"--db", dbPath}, args...))
	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string    `json:"status"`
		Data   traceJSON `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

// seedTraceDB records three resolutions: describe_number(7) as res-a,
// fizzbuzz(9) as res-b and verif(1, 2), which fails, as res-c. Each
// produces six events.
func seedTraceDB(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	calls := []struct {
		id, name, args string
	}{
		{"res-a", "describe_number", "[7]"},
		{"res-b", "fizzbuzz", "[9]"},
		{"res-c", "verif", "[1, 2]"},
	}
	for _, c := range calls {
		_, err := resolveWith(t, &ResolveOptions{
			Args:        c.args,
			Database:    dbPath,
			IDGenerator: engine.NewFixedGenerator(c.id),
		}, testSpecsDir, c.name)
		if c.id == "res-c" {
			require.Error(t, err)
			continue
		}
		require.NoError(t, err)
	}
	return dbPath
}

func TestTraceMissingDatabaseFlag(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--predicate", "fizzbuzz"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestTraceNonExistentDatabase(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", "/nonexistent/path/test.db"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTraceEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No resolutions found.")
}

func TestTraceAllResolutions(t *testing.T) {
	dbPath := seedTraceDB(t)

	result := runTraceJSON(t, dbPath)
	require.Len(t, result.Resolutions, 3)
	assert.Equal(t, "res-a", result.Resolutions[0].ID)
	assert.Equal(t, "res-b", result.Resolutions[1].ID)
	assert.Equal(t, "res-c", result.Resolutions[2].ID)

	assert.Equal(t, TraceStats{Resolutions: 3, Held: 2, Events: 18}, result.Stats)

	verif := result.Resolutions[2]
	assert.Equal(t, "all_required", verif.Kind)
	assert.False(t, verif.OK)
	assert.Equal(t, int64(13), verif.Seq)
	assert.Equal(t, int64(18), verif.EndSeq)
	assert.NotEmpty(t, verif.SpecCID)
}

func TestTraceText(t *testing.T) {
	dbPath := seedTraceDB(t)

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--resolution", "res-a"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "Resolution res-a: describe_number(7) [first_success]")
	assert.Contains(t, output, "[2] clause_enter #0 positive even")
	assert.Contains(t, output, "[3] clause_fail #0 positive even: not even")
	assert.Contains(t, output, "[5] clause_ok #1 positive odd")
	assert.Contains(t, output, "Result: true")
	assert.Contains(t, output, "Resolutions: 1 (1 held)")
	assert.NotContains(t, output, "fizzbuzz")
}

func TestTraceFilters(t *testing.T) {
	dbPath := seedTraceDB(t)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"predicate", []string{"--predicate", "fizzbuzz"}, []string{"res-b"}},
		{"failed", []string{"--where", "ok=false"}, []string{"res-c"}},
		{"seq range", []string{"--where", "seq>=7", "--where", "ok=true"}, []string{"res-b"}},
		{"not equal", []string{"--where", "kind!=first_success"}, []string{"res-c"}},
		{"no match", []string{"--predicate", "find_path"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := runTraceJSON(t, dbPath, tt.args...)
			var ids []string
			for _, r := range result.Resolutions {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestTraceEventTypeFilter(t *testing.T) {
	dbPath := seedTraceDB(t)

	result := runTraceJSON(t, dbPath, "--type", "clause_fail")
	require.Len(t, result.Resolutions, 3)
	assert.Equal(t, 3, result.Stats.Events)
	for _, r := range result.Resolutions {
		require.Len(t, r.Events, 1)
		assert.Equal(t, "clause_fail", r.Events[0].Type)
	}
}

func TestTraceInvalidWhere(t *testing.T) {
	dbPath := seedTraceDB(t)

	for _, where := range []string{"nocolumn=1", "ok", "=5"} {
		t.Run(where, func(t *testing.T) {
			cmd := NewTraceCommand(&RootOptions{Format: "text"})
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetArgs([]string{"--db", dbPath, "--where", where})

			err := cmd.Execute()
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), "invalid filter")
		})
	}
}

func TestParseWhere(t *testing.T) {
	tests := []struct {
		expr string
		want queryir.Predicate
	}{
		{"ok=false", queryir.Equals{Field: "ok", Value: ir.IRBool(false)}},
		{"seq>=10", queryir.Compare{Field: "seq", Op: ">=", Value: ir.IRInt(10)}},
		{"seq < 3", queryir.Compare{Field: "seq", Op: "<", Value: ir.IRInt(3)}},
		{"predicate!=fizzbuzz", queryir.Compare{Field: "predicate", Op: "!=", Value: ir.IRString("fizzbuzz")}},
		{"kind=TRUE", queryir.Equals{Field: "kind", Value: ir.IRString("TRUE")}},
		{"predicate=a<=b", queryir.Equals{Field: "predicate", Value: ir.IRString("a<=b")}},
		{"seq<=4>=", queryir.Compare{Field: "seq", Op: "<=", Value: ir.IRString("4>=")}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := parseWhere(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildTraceFilter(t *testing.T) {
	filter, err := buildTraceFilter(&TraceOptions{})
	require.NoError(t, err)
	assert.Nil(t, filter)

	filter, err = buildTraceFilter(&TraceOptions{Predicate: "p"})
	require.NoError(t, err)
	assert.Equal(t, queryir.Equals{Field: "predicate", Value: ir.IRString("p")}, filter)

	filter, err = buildTraceFilter(&TraceOptions{Resolution: "r", Where: []string{"ok=true"}})
	require.NoError(t, err)
	assert.Equal(t, queryir.And{Predicates: []queryir.Predicate{
		queryir.Equals{Field: "id", Value: ir.IRString("r")},
		queryir.Equals{Field: "ok", Value: ir.IRBool(true)},
	}}, filter)
}

func TestFormatTraceEvent(t *testing.T) {
	assert.Equal(t, "[1] resolve_start", formatTraceEvent(TraceEvent{Seq: 1, Type: "resolve_start", Clause: -1}))
	assert.Equal(t, "[3] clause_fail #0 positive even: not even",
		formatTraceEvent(TraceEvent{Seq: 3, Type: "clause_fail", Clause: 0, Label: "positive even", Detail: "not even"}))
	assert.Equal(t, "[4] solution #1 [5,2]",
		formatTraceEvent(TraceEvent{Seq: 4, Type: "solution", Clause: 1, Value: ir.IRArray{ir.IRInt(5), ir.IRInt(2)}}))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "short-id", truncateID("short-id"))
	assert.Equal(t, "0190a7c2...9f8e7d6c", truncateID("0190a7c2-1234-7abc-8def-00009f8e7d6c"))
}
