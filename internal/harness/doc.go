// Package harness runs compile scenarios: YAML files that describe a
// schema, a sequence of clause steps and the statement they must produce.
//
// # Scenario Format
//
//	name: where_params
//	description: "Equality predicates register their constants as parameters"
//	schema: ../schema            # directory of CUE schema files
//	strategy: with-params        # no-params | with-params | with-params-for-values
//	build_id: build-1
//	vars:
//	  movie: Movie
//	steps:
//	  - text: "MATCH (movie:Movie)"
//	  - where:
//	      and:
//	        - eq: [{path: movie.Title}, X]
//	        - eq: [{path: movie.Year}, 2017]
//	  - return: {path: movie.Title}
//	expect:
//	  text: "MATCH (movie:Movie) WHERE ((movie.Title = $p0) AND (movie.Year = $p1)) RETURN movie.Title AS Title"
//	  params: {p0: X, p1: 2017}
//
// Step texts are joined with single spaces into one statement.
//
// # Steps
//
//   - text: literal query text
//   - expression, where, return, with, property_list: one expression
//   - set: list of {target, value}
//   - remove: list of member paths
//   - order_by: list of {expr, desc}
//   - pattern: {a, r, b, strategy}
//   - navigate: {from, member, rel, to}
//   - path: {pattern | navigate, then: [navigate | extend], assign | shortest | all_shortest}
//
// Nodes are {var, type, as, labels, only_labels, props, where}.
// Relationships are {var, type, types, only_types, dir, hops, props, where}.
//
// # Expressions
//
// Scalars are constants. Every other expression is a single-key mapping:
// const, typed, var, param, path ("movie.Address.City"), esc, not, neg,
// len, cast, call {owner, method, object, args}, cypher {fn, args},
// lambda {params: ["m:Movie"], body}, if, coalesce, index, object, init
// {type, bind}, array, dict, and the binary operators by name (eq, and,
// add, ...) or spelling ("<=", "&&", ...).
//
// # Golden Files
//
// RunWithGolden compares the canonical JSON snapshot of a result against
// testdata/golden/{name}.golden. Regenerate with -update.
package harness
