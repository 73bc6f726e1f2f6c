package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cypherq/internal/compiler"
)

// Scenario defines a compile scenario: a schema, a list of clause steps and
// the statement they are expected to produce.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the directory of CUE schema files to load.
	// Relative paths are resolved against the scenario file location.
	Schema string `yaml:"schema"`

	// Strategy is the build strategy: no-params, with-params or
	// with-params-for-values. Empty means with-params.
	Strategy string `yaml:"strategy,omitempty"`

	// BuildID is the fixed build ID stamped on the statement.
	// If empty, defaults to "build-default" for golden file comparison.
	BuildID string `yaml:"build_id,omitempty"`

	// Separator joins flattened member names. Empty means "_".
	Separator string `yaml:"separator,omitempty"`

	// ParamPrefix names generated parameters. Empty means "p".
	ParamPrefix string `yaml:"param_prefix,omitempty"`

	// RelationshipStyle styles inferred relationship types: declared or
	// upper-snake.
	RelationshipStyle string `yaml:"relationship_style,omitempty"`

	// Vars declares query variables and their registered types.
	Vars map[string]string `yaml:"vars,omitempty"`

	// Steps are the clauses of the statement, joined with single spaces.
	// Each step is a single-key mapping; see the package documentation.
	Steps []yaml.Node `yaml:"steps"`

	// Expect is checked against the compiled statement.
	Expect *Expectation `yaml:"expect,omitempty"`
}

// Expectation specifies the expected statement or failure.
type Expectation struct {
	// Text is the expected statement text.
	Text string `yaml:"text,omitempty"`

	// Params are the expected parameter values. Compared as canonical JSON.
	Params map[string]any `yaml:"params,omitempty"`

	// Error is the expected build error code, e.g. NULL_ARB_VARIABLES.
	Error string `yaml:"error,omitempty"`
}

// Relationship styles.
const (
	StyleDeclared   = "declared"
	StyleUpperSnake = "upper-snake"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// The schema path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the schema path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "step:" vs "steps:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) && basePath != "" {
		scenario.Schema = filepath.Join(basePath, scenario.Schema)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Schema == "" {
		return fmt.Errorf("schema directory is required")
	}
	if info, err := os.Stat(s.Schema); err != nil || !info.IsDir() {
		return fmt.Errorf("schema directory not found: %s", s.Schema)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if s.Strategy != "" {
		if _, err := compiler.ParseStrategy(s.Strategy); err != nil {
			return fmt.Errorf("strategy: %w", err)
		}
	}

	switch s.RelationshipStyle {
	case "", StyleDeclared, StyleUpperSnake:
	default:
		return fmt.Errorf("relationship_style: unknown style %q", s.RelationshipStyle)
	}

	for name, typ := range s.Vars {
		if name == "" || typ == "" {
			return fmt.Errorf("vars: name and type are required (got %q: %q)", name, typ)
		}
	}

	for i := range s.Steps {
		step := &s.Steps[i]
		if step.Kind != yaml.MappingNode || len(step.Content) != 2 {
			return fmt.Errorf("steps[%d]: must be a mapping with exactly one key (line %d)", i, step.Line)
		}
		if _, ok := stepKinds[step.Content[0].Value]; !ok {
			return fmt.Errorf("steps[%d]: unknown step %q (line %d)", i, step.Content[0].Value, step.Line)
		}
	}

	if s.Expect != nil && s.Expect.Error != "" && s.Expect.Text != "" {
		return fmt.Errorf("expect: text and error are mutually exclusive")
	}

	return nil
}
