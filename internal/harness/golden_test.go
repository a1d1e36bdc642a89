package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func describeNumberScenario() *Scenario {
	return &Scenario{
		Name:        "describe_number",
		Description: "first_success over positive and non-positive numbers",
		Specs:       []string{specPath("describe_number.cue")},
		Calls: []Call{
			{Predicate: "describe_number", Args: []any{7}},
			{Predicate: "describe_number", Args: []any{-3}},
		},
	}
}

// To regenerate: go test ./internal/harness -run TestRunWithGolden -update
func TestRunWithGolden(t *testing.T) {
	result, err := RunWithGolden(t, describeNumberScenario())
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestSnapshot_Format(t *testing.T) {
	result := NewResult()
	result.Trace = []TraceEvent{
		{Call: 0, Resolution: "r-1", Seq: 1, Type: "resolve_start", Predicate: "p", Clause: -1, Args: []any{1, "a"}},
		{Call: 0, Resolution: "r-1", Seq: 2, Type: "guard_skip", Predicate: "p", Clause: 0, Label: "first", Detail: "type mismatch"},
		{Call: 0, Resolution: "r-1", Seq: 3, Type: "resolve_end", Predicate: "p", Clause: -1, Value: []any{[]any{1, 2}}},
	}
	result.Output = []OutputLine{{Call: 0, Text: "said"}}

	snapshot, err := Snapshot("fmt", result)
	require.NoError(t, err)

	assert.Equal(t, strings.Join([]string{
		`{"scenario":"fmt"}`,
		`{"args":[1,"a"],"call":0,"clause":-1,"predicate":"p","resolution":"r-1","seq":1,"type":"resolve_start"}`,
		`{"call":0,"clause":0,"detail":"type mismatch","label":"first","predicate":"p","resolution":"r-1","seq":2,"type":"guard_skip"}`,
		`{"call":0,"clause":-1,"predicate":"p","resolution":"r-1","seq":3,"type":"resolve_end","value":[[1,2]]}`,
		`{"call":0,"output":"said"}`,
	}, "\n")+"\n", string(snapshot))
}

func TestGoldenPath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("testdata", "scenarios", "golden", "voter.golden"),
		GoldenPath(filepath.Join("testdata", "scenarios", "voter.yaml")))
}

func TestUpdateAndCompareGolden(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "describe.yaml")
	scenario := describeNumberScenario()

	result, err := Run(scenario)
	require.NoError(t, err)

	_, err = CompareGolden(file, scenario, result)
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, UpdateGolden(file, scenario, result))

	match, err := CompareGolden(file, scenario, result)
	require.NoError(t, err)
	assert.True(t, match)

	// A different call sequence no longer matches.
	scenario.Calls = scenario.Calls[:1]
	shorter, err := Run(scenario)
	require.NoError(t, err)
	match, err = CompareGolden(file, scenario, shorter)
	require.NoError(t, err)
	assert.False(t, match)
}
