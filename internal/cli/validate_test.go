package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/predicate/internal/compiler"
)

const pingPongCUE = `
package test

predicate: ping: {
	kind: "backtracking"
	clauses: [{body: [{solve: {predicate: "pong", args: [{arg: 0}]}}]}]
}

predicate: pong: {
	kind: "backtracking"
	clauses: [
		{body: [{yield: {arg: 0}}, {cut: true}]},
		{body: [{solve: {predicate: "ping", args: [{arg: 0}]}}]},
	]
}
`

func TestValidateValidSpecs(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{testSpecsDir})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ All specs valid")
	assert.Contains(t, output, "! info: Recursive predicate: find_path solves itself")
}

func TestValidateValidSpecsJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{testSpecsDir})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Empty(t, resp.Data.Errors)
	require.Len(t, resp.Data.Warnings, 1)
	assert.Equal(t, []string{"find_path", "find_path"}, resp.Data.Warnings[0].Path)
}

func TestValidateNonExistentDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/directory/path"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E005")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateEmptyDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{t.TempDir()})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E003")
}

func TestValidateInvalidSpec(t *testing.T) {
	dir := writeSpec(t, "bad.cue", `
package test

predicate: lonely: {
	kind: "first_success"
	clauses: [{body: [{solve: {predicate: "nobody"}}]}]
}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "✗ Validation failed")
	assert.Contains(t, output, compiler.ErrStepNotAllowed)
	assert.Contains(t, output, compiler.ErrUnknownSolveTarget)
}

func TestValidateInvalidSpecJSON(t *testing.T) {
	dir := writeSpec(t, "bad.cue", `
package test

predicate: bad: {
	kind: "sometimes"
	clauses: [{body: [{say: "hi"}]}]
}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrUnknownKind, resp.Error.Code)
}

func TestValidateCompileErrorHasLine(t *testing.T) {
	dir := writeSpec(t, "bad.cue", `package test

predicate: bad: {
	clauses: [{body: [{say: "hi"}]}]
}
`)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, buf.String(), "line ")
	assert.Contains(t, buf.String(), "E101: load: predicate.bad.kind: kind is required")
}

func TestValidateMutualRecursionWarning(t *testing.T) {
	dir := writeSpec(t, "pingpong.cue", pingPongCUE)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "! warning: Mutual recursion detected: ping → pong → ping")
	assert.Contains(t, buf.String(), "✓ All specs valid")
}

func TestValidateVerboseOutput(t *testing.T) {
	dir := writeSpec(t, "parity.cue", parityCUE)

	stdoutBuf := &bytes.Buffer{}
	stderrBuf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text", Verbose: true})
	cmd.SetOut(stdoutBuf)
	cmd.SetErr(stderrBuf)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, stderrBuf.String(), "Validating predicate: parity")
	assert.Contains(t, stdoutBuf.String(), "✓ All specs valid")
}

func TestValidateSpecsDir(t *testing.T) {
	errs, err := ValidateSpecsDir(testSpecsDir)
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestValidateSpecsDirInvalid(t *testing.T) {
	dir := writeSpec(t, "bad.cue", `
package test

predicate: bad: {
	kind: "sometimes"
	clauses: [{body: [{say: "hi"}]}]
}
`)

	errs, err := ValidateSpecsDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, errs)
	assert.Equal(t, compiler.ErrUnknownKind, errs[0].Code)
}

func TestValidateSpecsDirNonExistent(t *testing.T) {
	_, err := ValidateSpecsDir("/nonexistent/directory/path")
	require.Error(t, err)
}
