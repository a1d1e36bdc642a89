package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/predicate/internal/ir"
)

// Snapshot renders a scenario result as golden file content: a header
// line, one line per trace event, then one line per output line. Every
// line is a JSON object with sorted keys, so snapshots diff line by line.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	var buf bytes.Buffer

	write := func(obj ir.IRObject) error {
		line, err := ir.MarshalIRValue(obj)
		if err != nil {
			return err
		}
		buf.Write(line)
		buf.WriteByte('\n')
		return nil
	}

	if err := write(ir.IRObject{"scenario": ir.IRString(scenarioName)}); err != nil {
		return nil, err
	}
	for _, ev := range result.Trace {
		if err := write(eventObject(ev)); err != nil {
			return nil, fmt.Errorf("snapshot seq %d: %w", ev.Seq, err)
		}
	}
	for _, line := range result.Output {
		if err := write(ir.IRObject{"call": ir.IRInt(line.Call), "output": ir.IRString(line.Text)}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func eventObject(ev TraceEvent) ir.IRObject {
	obj := ir.IRObject{
		"call":       ir.IRInt(ev.Call),
		"resolution": ir.IRString(ev.Resolution),
		"seq":        ir.IRInt(ev.Seq),
		"type":       ir.IRString(ev.Type),
		"predicate":  ir.IRString(ev.Predicate),
		"clause":     ir.IRInt(ev.Clause),
	}
	if ev.Label != "" {
		obj["label"] = ir.IRString(ev.Label)
	}
	if ev.Detail != "" {
		obj["detail"] = ir.IRString(ev.Detail)
	}
	if ev.Args != nil {
		obj["args"] = toIR(ev.Args)
	}
	if ev.Value != nil {
		obj["value"] = toIR(ev.Value)
	}
	return obj
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can check expectations too. Test failure
// (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already computed result against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshot)
	return nil
}

// GoldenPath returns the golden file of a scenario file:
// <dir>/golden/<basename>.golden.
func GoldenPath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// UpdateGolden writes the snapshot of result as the golden file of
// scenarioFile.
func UpdateGolden(scenarioFile string, scenario *Scenario, result *Result) error {
	snapshot, err := Snapshot(scenario.Name, result)
	if err != nil {
		return fmt.Errorf("failed to snapshot trace: %w", err)
	}

	goldenPath := GoldenPath(scenarioFile)
	if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(goldenPath, snapshot, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// CompareGolden reports whether result matches the golden file of
// scenarioFile. A missing golden file is reported as os.ErrNotExist.
func CompareGolden(scenarioFile string, scenario *Scenario, result *Result) (bool, error) {
	golden, err := os.ReadFile(GoldenPath(scenarioFile))
	if err != nil {
		return false, err
	}

	snapshot, err := Snapshot(scenario.Name, result)
	if err != nil {
		return false, fmt.Errorf("failed to snapshot trace: %w", err)
	}
	return bytes.Equal(golden, snapshot), nil
}
