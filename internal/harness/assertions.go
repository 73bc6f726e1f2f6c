package harness

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/roach88/cypherq/internal/value"
)

// AssertionError is returned when an expectation fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Field    string      // text, params or error
	Expected string      // Human-readable expected outcome
	Actual   string      // Human-readable actual outcome
	Steps    []StepTrace // Step texts for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Expectation failed: %s\n", e.Field)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Steps) > 0 {
		fmt.Fprintf(&buf, "\nSteps:\n")
		for i, step := range e.Steps {
			fmt.Fprintf(&buf, "  [%d] %s: %s\n", i+1, step.Kind, step.Text)
		}
	}

	return buf.String()
}

// assertText compares the statement text exactly.
func assertText(result *Result, want string) error {
	if result.Statement.Text == want {
		return nil
	}
	return &AssertionError{Field: "text", Expected: want, Actual: result.Statement.Text, Steps: result.Steps}
}

// assertParams compares parameters as canonical JSON, so YAML ints match
// the int64 values the compiler registers.
func assertParams(result *Result, want map[string]any) error {
	if want == nil {
		want = map[string]any{}
	}
	expected, err := value.MarshalCanonical(want)
	if err != nil {
		return fmt.Errorf("expected params: %w", err)
	}
	actual, err := value.MarshalCanonical(result.Statement.Params)
	if err != nil {
		return fmt.Errorf("actual params: %w", err)
	}
	if bytes.Equal(expected, actual) {
		return nil
	}
	return &AssertionError{Field: "params", Expected: string(expected), Actual: string(actual), Steps: result.Steps}
}

// assertCode compares the build error code of the failing step.
func assertCode(result *Result, want string) error {
	if result.Code == want {
		return nil
	}
	actual := result.Code
	if actual == "" {
		actual = "no error"
	}
	return &AssertionError{Field: "error", Expected: want, Actual: actual, Steps: result.Steps}
}

// EvaluateExpectation checks the result against expect.
// Returns a slice of error messages for failed checks.
func EvaluateExpectation(result *Result, expect *Expectation) []string {
	var errors []string
	add := func(err error) {
		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	if expect == nil {
		if result.Failure != "" {
			errors = append(errors, "unexpected failure: "+result.Failure)
		}
		return errors
	}

	if expect.Error != "" {
		add(assertCode(result, expect.Error))
		return errors
	}
	if result.Failure != "" {
		errors = append(errors, "unexpected failure: "+result.Failure)
		return errors
	}
	if expect.Text != "" {
		add(assertText(result, expect.Text))
	}
	if expect.Params != nil {
		add(assertParams(result, expect.Params))
	}
	return errors
}
