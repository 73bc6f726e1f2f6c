package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cypherq/internal/compiler"
)

func compiled(text string, params map[string]any) *Result {
	r := NewResult()
	r.Statement = compiler.Statement{BuildID: "b", Text: text, Params: params}
	r.AddStep("expression", text)
	return r
}

func TestEvaluateExpectation(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		expect *Expectation
		errs   int
	}{
		{
			name:   "no expectation",
			result: compiled("RETURN 1", map[string]any{}),
		},
		{
			name:   "text matches",
			result: compiled("RETURN $p0", map[string]any{"p0": int64(1)}),
			expect: &Expectation{Text: "RETURN $p0", Params: map[string]any{"p0": 1}},
		},
		{
			name:   "ints compare across widths",
			result: compiled("RETURN $p0", map[string]any{"p0": []any{int64(1), int64(2)}}),
			expect: &Expectation{Params: map[string]any{"p0": []any{1, 2}}},
		},
		{
			name:   "text differs",
			result: compiled("RETURN 1", map[string]any{}),
			expect: &Expectation{Text: "RETURN 2"},
			errs:   1,
		},
		{
			name:   "text and params differ",
			result: compiled("RETURN $p0", map[string]any{"p0": "a"}),
			expect: &Expectation{Text: "RETURN 2", Params: map[string]any{"p0": "b"}},
			errs:   2,
		},
		{
			name:   "missing params compare as empty",
			result: compiled("RETURN 1", nil),
			expect: &Expectation{Params: map[string]any{}},
		},
		{
			name:   "unexpected failure without expectation",
			result: &Result{Pass: true, Code: "UNKNOWN_TYPE", Failure: "UNKNOWN_TYPE: Nope: not registered"},
			errs:   1,
		},
		{
			name:   "unexpected failure with text expectation",
			result: &Result{Pass: true, Code: "UNKNOWN_TYPE", Failure: "UNKNOWN_TYPE: Nope: not registered"},
			expect: &Expectation{Text: "RETURN 1"},
			errs:   1,
		},
		{
			name:   "expected error",
			result: &Result{Pass: true, Code: "UNKNOWN_TYPE", Failure: "boom"},
			expect: &Expectation{Error: "UNKNOWN_TYPE"},
		},
		{
			name:   "different error",
			result: &Result{Pass: true, Code: "INVALID_CONSTRAINT", Failure: "boom"},
			expect: &Expectation{Error: "UNKNOWN_TYPE"},
			errs:   1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateExpectation(tt.result, tt.expect)
			assert.Len(t, errs, tt.errs, "errors: %v", errs)
		})
	}
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Field:    "text",
		Expected: "RETURN 2",
		Actual:   "RETURN 1",
		Steps:    []StepTrace{{Kind: "text", Text: "RETURN 1"}},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Expectation failed: text")
	assert.Contains(t, msg, "Expected: RETURN 2")
	assert.Contains(t, msg, "Actual: RETURN 1")
	assert.Contains(t, msg, "[1] text: RETURN 1")
}

func TestAssertParams_ReportsCanonicalJSON(t *testing.T) {
	err := assertParams(compiled("x", map[string]any{"b": 1, "a": "x"}), map[string]any{"a": "y"})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, `{"a":"y"}`, ae.Expected)
	assert.Equal(t, `{"a":"x","b":1}`, ae.Actual)
}
