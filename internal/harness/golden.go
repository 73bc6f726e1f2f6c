package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cypherq/internal/value"
)

// Snapshot captures the compiled statement of a scenario.
// All fields use canonical JSON serialization for deterministic comparison.
type Snapshot struct {
	ScenarioName string         `json:"name"`
	BuildID      string         `json:"build_id"`
	Strategy     string         `json:"strategy"`
	Text         string         `json:"text"`
	Params       map[string]any `json:"params"`
	Code         string         `json:"error,omitempty"`
}

// NewSnapshot builds the snapshot of a result.
func NewSnapshot(scenario *Scenario, result *Result) Snapshot {
	strategy := scenario.Strategy
	if strategy == "" {
		strategy = "with-params"
	}
	params := result.Statement.Params
	if params == nil {
		params = map[string]any{}
	}
	return Snapshot{
		ScenarioName: scenario.Name,
		BuildID:      result.Statement.BuildID,
		Strategy:     strategy,
		Text:         result.Statement.Text,
		Params:       params,
		Code:         result.Code,
	}
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON serialization.
func (s Snapshot) toCanonicalMap() map[string]any {
	m := map[string]any{
		"name":     s.ScenarioName,
		"build_id": s.BuildID,
		"strategy": s.Strategy,
		"text":     s.Text,
		"params":   s.Params,
	}
	if s.Code != "" {
		m["error"] = s.Code
	}
	return m
}

// MarshalCanonical returns the canonical JSON form of the snapshot.
func (s Snapshot) MarshalCanonical() ([]byte, error) {
	return value.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the statement against a
// golden file. The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the statement doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's statement against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(scenario, result).MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return nil
}
