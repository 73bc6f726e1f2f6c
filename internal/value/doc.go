// Package value renders host values as Cypher literals and encodes parameter
// tables canonically.
//
// This package imports nothing internal. Two encodings live here:
//   - Literal: Cypher literal text used when values are inlined into a query
//     (strings double-quoted, floats always carry a fractional part, maps
//     rendered as `{ key: value }`).
//   - MarshalCanonical: RFC 8785 style JSON (UTF-16 key order, NFC strings, no
//     HTML escaping) used for statement fingerprints and catalog storage.
//
// Ordered objects produced by serializers are carried as Object so that the
// serializer's field order survives into the literal text.
package value
