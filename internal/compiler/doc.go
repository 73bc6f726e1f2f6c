// Package compiler translates expression trees into Cypher text.
//
// A build walks the tree once per entry point. Every node is first folded
// with expr.Evaluate; nodes with a build-time value are written as a
// literal or a query parameter, depending on the Context's Strategy. The
// rest are handed to handlers: call handlers keyed by owner, method and
// arity, then kind handlers, then class handlers. A member path no handler
// claims is resolved to its flattened wire name.
//
// Translations are cached in the Context by node identity, so a node
// shared between two places in a tree renders to the same text and binds
// the same parameter.
package compiler
