// Package schema is the registry of entity, relationship and complex types.
//
// Types enter the registry in two ways:
//   - Register reads Go structs. A schema.Node or schema.Relationship embed
//     marks an entity (its neo4j tag holds labels or the relationship type);
//     embedding another entity struct inherits its labels and members; any
//     other struct reached through a field is a complex type.
//   - LoadCUE reads `entity:`, `complex:` and `relationship:` blocks from CUE
//     schema files.
//
// Records are keyed by type name, created once and only ever extended. The
// registry is safe for concurrent use.
package schema
