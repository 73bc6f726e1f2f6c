// Package expr is the neutral expression tree compiled into query text.
//
// Nodes cover member access, calls, unary and binary operators, constants,
// query-time variables, lambda parameters and object/list construction.
// Evaluate folds a subtree to a host value, or reports through *Deferred
// that the subtree depends on query-time state and must be translated
// symbolically instead.
package expr
