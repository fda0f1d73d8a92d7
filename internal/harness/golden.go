package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// MarshalTrace serializes a trace for golden comparison: indented JSON with
// no trailing newline.
func MarshalTrace(tr Trace) ([]byte, error) {
	data, err := json.MarshalIndent(tr, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal trace: %w", err)
	}
	return data, nil
}

// GoldenPath returns the golden file for a scenario file:
// <dir>/golden/<base>.golden.
func GoldenPath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// WriteGolden writes the result's trace to path, creating the directory.
func WriteGolden(path string, r *Result) error {
	data, err := MarshalTrace(r.Trace)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// CompareGolden reports whether the result's trace matches the golden file
// at path byte for byte.
func CompareGolden(path string, r *Result) (bool, error) {
	want, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	got, err := MarshalTrace(r.Trace)
	if err != nil {
		return false, err
	}
	return bytes.Equal(want, got), nil
}

// AssertGolden compares the result's trace against fixtureDir/name.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, fixtureDir, name string, r *Result) {
	t.Helper()

	data, err := MarshalTrace(r.Trace)
	if err != nil {
		t.Fatal(err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(fixtureDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}

// RunWithGolden loads and runs the scenario file, then compares its trace
// against the golden file next to it.
func RunWithGolden(t *testing.T, scenarioFile string) *Result {
	t.Helper()

	scenario, err := LoadScenario(scenarioFile)
	if err != nil {
		t.Fatal(err)
	}
	result, err := Run(scenario)
	if err != nil {
		t.Fatal(err)
	}

	golden := GoldenPath(scenarioFile)
	name := strings.TrimSuffix(filepath.Base(golden), ".golden")
	AssertGolden(t, filepath.Dir(golden), name, result)
	return result
}
