package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/predicate/internal/engine"
)

// Scenario defines a conformance test scenario: a predicate set, calls
// against it, and assertions over the resulting trace and output.
type Scenario struct {
	// Name uniquely identifies this scenario. It also prefixes the
	// resolution ids of the run.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists the CUE files declaring the predicates under test.
	// Relative paths are resolved by LoadScenarioWithBasePath.
	Specs []string `yaml:"specs"`

	// Calls are resolved in order against one engine.
	Calls []Call `yaml:"calls"`

	// Assertions validate the whole run after all calls.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Call is one resolution of a predicate.
type Call struct {
	// Predicate is the predicate name.
	Predicate string `yaml:"predicate"`

	// Kind overrides the discipline: first_success, all_required or
	// backtracking (or predicate, principles, prolog). Empty means the
	// kind the predicate was declared with.
	Kind string `yaml:"kind,omitempty"`

	// Args are the call arguments. Integers, strings, booleans, lists and
	// maps are passed through as IR values.
	Args []any `yaml:"args"`

	// Expect specifies the expected result. If nil, only a configuration
	// error fails the call.
	Expect *Expect `yaml:"expect,omitempty"`

	// Output lists the expected say output of this call, line by line.
	// If nil, output is not checked; an empty list expects no output.
	Output []string `yaml:"output,omitempty"`
}

// Expect specifies the expected outcome of a call.
type Expect struct {
	// Result is the expected boolean result.
	Result *bool `yaml:"result,omitempty"`

	// Solutions are the expected backtracking solutions, in order.
	// An empty list expects no solutions.
	Solutions []any `yaml:"solutions,omitempty"`

	// Error is the expected registry error code, e.g. UNKNOWN_PREDICATE.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or output of a whole run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Predicate names the predicate (clause_*, solution_count).
	Predicate string `yaml:"predicate,omitempty"`

	// Label selects clauses by label (clause_ran, clause_not_ran).
	Label string `yaml:"label,omitempty"`

	// Clause selects a clause by 0-based index (clause_ran, clause_not_ran).
	Clause *int `yaml:"clause,omitempty"`

	// Labels is the expected entry order (clause_order).
	Labels []string `yaml:"labels,omitempty"`

	// Text is the expected output substring (output_contains).
	Text string `yaml:"text,omitempty"`

	// Count is the expected number of solutions (solution_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertClauseRan      = "clause_ran"
	AssertClauseNotRan   = "clause_not_ran"
	AssertClauseOrder    = "clause_order"
	AssertOutputContains = "output_contains"
	AssertSolutionCount  = "solution_count"
	AssertReplayMatches  = "replay_matches"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, "")
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving relative spec paths against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve spec paths relative to base path BEFORE validation
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	for _, specPath := range scenario.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: spec file not found: %s", specPath)
		}
	}

	return scenario, nil
}

// ParseScenario decodes scenario YAML with strict field checking. Spec
// paths are neither resolved nor checked.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
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

	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}

	if len(s.Calls) == 0 {
		return fmt.Errorf("calls list is required and must be non-empty")
	}

	for i, call := range s.Calls {
		if err := validateCall(i, &call); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateCall(index int, c *Call) error {
	if c.Predicate == "" {
		return fmt.Errorf("calls[%d]: predicate is required", index)
	}
	if c.Kind != "" {
		if _, err := engine.ParseKind(c.Kind); err != nil {
			return fmt.Errorf("calls[%d]: %w", index, err)
		}
	}
	if e := c.Expect; e != nil && e.Error != "" && (e.Result != nil || e.Solutions != nil) {
		return fmt.Errorf("calls[%d].expect: error excludes result and solutions", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertClauseRan, AssertClauseNotRan:
		if a.Predicate == "" {
			return fmt.Errorf("assertions[%d]: predicate is required for %s", index, a.Type)
		}
		if a.Label != "" && a.Clause != nil {
			return fmt.Errorf("assertions[%d]: label and clause are mutually exclusive", index)
		}
	case AssertClauseOrder:
		if a.Predicate == "" {
			return fmt.Errorf("assertions[%d]: predicate is required for clause_order", index)
		}
		if len(a.Labels) < 2 {
			return fmt.Errorf("assertions[%d]: clause_order needs at least two labels", index)
		}
	case AssertOutputContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for output_contains", index)
		}
	case AssertSolutionCount:
		if a.Predicate == "" {
			return fmt.Errorf("assertions[%d]: predicate is required for solution_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for solution_count", index)
		}
	case AssertReplayMatches:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
