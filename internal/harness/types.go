package harness

import "github.com/roach88/cypherq/internal/compiler"

// StepTrace is the text one step contributed to the statement.
type StepTrace struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// Result is the outcome of a compile scenario.
type Result struct {
	// Pass indicates overall test success.
	// True if the expect clause matches (or is absent).
	Pass bool `json:"pass"`

	// Statement is the compiled statement. Empty when a step failed.
	Statement compiler.Statement `json:"statement"`

	// Steps contains the text of every step that compiled, in order.
	Steps []StepTrace `json:"steps"`

	// Code is the build error code of the failing step, if any.
	Code string `json:"code,omitempty"`

	// Failure is the full message of the failing step, if any.
	Failure string `json:"failure,omitempty"`

	// Errors contains expectation mismatches.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepTrace{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep records the text of a compiled step.
func (r *Result) AddStep(kind, text string) {
	r.Steps = append(r.Steps, StepTrace{Kind: kind, Text: text})
}
