// Package builderr defines the build-time failures raised while compiling
// expressions and graph patterns.
//
// Every failure is a deterministic function of the input AST and the current
// schema/resolver state. Nothing here is retried: an error aborts the single
// build call in progress and is surfaced to the caller unchanged.
package builderr

import (
	"errors"
	"fmt"
)

// Code categorizes build errors.
type Code string

const (
	// CodeInvalidProjection indicates a projection body is not a member access,
	// member-init or anonymous object construction.
	CodeInvalidProjection Code = "INVALID_PROJECTION"

	// CodeAmbiguousExpression indicates a member path has no resolvable root.
	CodeAmbiguousExpression Code = "AMBIGUOUS_EXPRESSION"

	// CodeNullComplexTypeProperty indicates flattening reached a nil complex
	// property on a live instance.
	CodeNullComplexTypeProperty Code = "NULL_COMPLEX_TYPE_PROPERTY"

	// CodePropsAndConstraintsClash indicates a pattern role was given both a
	// property map and a constraint predicate.
	CodePropsAndConstraintsClash Code = "PROPS_AND_CONSTRAINTS_CLASH"

	// CodeNullARBVariables indicates all three pattern roles are empty.
	CodeNullARBVariables Code = "NULL_ARB_VARIABLES"

	// CodeUnassignableType indicates an endpoint was narrowed to a type that
	// does not derive from its declared type.
	CodeUnassignableType Code = "UNASSIGNABLE_TYPE"

	// CodeUnsupportedExpression indicates no handler can translate a node.
	CodeUnsupportedExpression Code = "UNSUPPORTED_EXPRESSION"

	// CodeInvalidConstraint indicates a pattern constraint is not a
	// conjunction of member equalities.
	CodeInvalidConstraint Code = "INVALID_CONSTRAINT"

	// CodeCyclicComplexType indicates complex types reference each other.
	CodeCyclicComplexType Code = "CYCLIC_COMPLEX_TYPE"

	// CodeUnknownType indicates a type name is not registered.
	CodeUnknownType Code = "UNKNOWN_TYPE"
)

// Error is a build-time failure.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Type names the declaring type involved, if any.
	Type string

	// Member names the member or property involved, if any.
	Member string
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Type != "" && e.Member != "":
		return fmt.Sprintf("%s: %s (type=%s, member=%s)", e.Code, e.Message, e.Type, e.Member)
	case e.Type != "":
		return fmt.Sprintf("%s: %s (type=%s)", e.Code, e.Message, e.Type)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithType returns a copy of e naming the declaring type.
func (e *Error) WithType(typeName string) *Error {
	c := *e
	c.Type = typeName
	return &c
}

// WithMember returns a copy of e naming the member.
func (e *Error) WithMember(member string) *Error {
	c := *e
	c.Member = member
	return &c
}

// Is returns true if err (or any error it wraps) is a build error with code.
func Is(err error, code Code) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}

// CodeOf returns the code of the first build error in err's chain, or "".
func CodeOf(err error) Code {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// NullComplexTypeProperty reports a nil complex property met while flattening.
func NullComplexTypeProperty(typeName, member string) *Error {
	return &Error{
		Code:    CodeNullComplexTypeProperty,
		Message: "complex type property is nil and cannot be flattened",
		Type:    typeName,
		Member:  member,
	}
}
