// Package pattern builds graph-pattern text for MATCH, MERGE and CREATE
// clauses.
//
// A Pattern is one node-relationship-node segment. Endpoints and
// relationships carry either a property map or a constraint, and their
// labels and relationship types are inferred from the schema registry:
// navigating a member reads its rel=, fk= and inverse= hints in that
// order. A Path chains segments through shared endpoints and may be
// bound to a variable or wrapped in shortestPath.
//
// Property maps are rendered by the compiler under the build context's
// strategy, which a Pattern may override for its own maps.
package pattern
