// Package resolve maps member chains over registered types to the
// flattened property names they are stored under.
//
// A chain such as actor.Address.City is interned step by step in an Arena;
// each step's wire name comes from, in order, a configured Namer, a wire
// hint declared in the schema, or the names a Serializer produces for a
// sentinel-filled instance of the type. Step names are joined with the
// separator, so the chain above renders as NewAddressName_City when the
// serializer renames Address.
//
// Explode and Flatten expand complex (value object) members into their
// scalar leaves, for projections and pattern property maps respectively.
package resolve
