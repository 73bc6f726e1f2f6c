package schema

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Kind classifies a registered type.
type Kind uint8

const (
	// KindScalar is a leaf value type. Scalars are never registered; the
	// constant exists so member classification has a name for them.
	KindScalar Kind = iota

	// KindComplex is a value object flattened into its owner's properties.
	KindComplex

	// KindNode is an entity mapped to a graph node.
	KindNode

	// KindRelationship is an entity mapped to a graph relationship.
	KindRelationship
)

func (k Kind) String() string {
	switch k {
	case KindComplex:
		return "complex"
	case KindNode:
		return "node"
	case KindRelationship:
		return "relationship"
	}
	return "scalar"
}

// IsEntity reports whether k is a node or relationship kind.
func (k Kind) IsEntity() bool {
	return k == KindNode || k == KindRelationship
}

// Direction is the orientation of a relationship relative to its owner.
type Direction uint8

const (
	// Outgoing renders as (a)-[r]->(b).
	Outgoing Direction = iota
	// Incoming renders as (a)<-[r]-(b).
	Incoming
	// Both renders as (a)-[r]-(b).
	Both
)

func (d Direction) String() string {
	switch d {
	case Incoming:
		return "in"
	case Both:
		return "both"
	}
	return "out"
}

// ParseDirection parses "out", "in" or "both". Empty means Outgoing.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "out", "->":
		return Outgoing, nil
	case "in", "<-":
		return Incoming, nil
	case "both", "-":
		return Both, nil
	}
	return Outgoing, fmt.Errorf("unknown direction %q", s)
}

// Scalar type names used in member declarations.
const (
	TypeString   = "string"
	TypeInt      = "int"
	TypeFloat    = "float"
	TypeBool     = "bool"
	TypeTime     = "time"
	TypeDuration = "duration"
	TypeMap      = "map"
	TypeAny      = "any"
)

var scalarNames = map[string]bool{
	TypeString: true, TypeInt: true, TypeFloat: true, TypeBool: true,
	TypeTime: true, TypeDuration: true, TypeMap: true, TypeAny: true,
}

// IsScalarName reports whether name is a built-in scalar type name.
func IsScalarName(name string) bool {
	return scalarNames[name]
}

// ListOf returns the list type name for elem.
func ListOf(elem string) string {
	return "[]" + elem
}

// ElemOf returns the element name of a list type name, or name itself.
func ElemOf(name string) string {
	return strings.TrimPrefix(name, "[]")
}

// MemberDecl is one declared member of a registered type.
type MemberDecl struct {
	// Name is the member name used in expressions.
	Name string

	// Type is the declared type name: a scalar name, a registered type name,
	// or a list "[]Elem".
	Type string

	// List is true when Type is a list.
	List bool

	// Pointer is true when the Go field is a pointer (nil allowed).
	Pointer bool

	// Complex is true when the element type is a registered complex type.
	Complex bool

	// Navigation is true when the element type is a node or relationship.
	Navigation bool

	// Wire is a declared wire-name hint. Empty when none was declared.
	Wire string

	// Rel is the explicit relationship type for a navigation member.
	Rel string

	// Key is the foreign-key name a relationship type can be inferred from.
	Key string

	// Inverse is the inverse collection name on the target type.
	Inverse string

	// Direction of the navigation relative to the owner.
	Direction Direction

	// Index is the reflect field index path. Nil for CUE declarations.
	Index []int

	// Tag is the raw struct tag. Empty for CUE declarations.
	Tag reflect.StructTag
}

// Elem returns the element type name (Type without the list prefix).
func (m *MemberDecl) Elem() string {
	return ElemOf(m.Type)
}

// EntityTypeInfo is the registry record for one type.
//
// Records are created on first registration and only ever extended. Member
// slices are never mutated in place once published; extension copies.
type EntityTypeInfo struct {
	Name    string
	Kind    Kind
	GoType  reflect.Type
	Labels  []string
	Base    string
	Members []*MemberDecl

	// own holds the labels declared on this type, before inheritance.
	own []string

	wireMu sync.Mutex
	wire   map[string]map[string]string
}

// Member returns the declared member with the given name.
func (e *EntityTypeInfo) Member(name string) (*MemberDecl, bool) {
	for _, m := range e.Members {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// IsComplex reports whether the type is a complex value object.
func (e *EntityTypeInfo) IsComplex() bool {
	return e.Kind == KindComplex
}

// CachedWireNames returns the wire names a serializer produced for this
// type's top-level members, keyed by member name.
func (e *EntityTypeInfo) CachedWireNames(serializer string) (map[string]string, bool) {
	e.wireMu.Lock()
	defer e.wireMu.Unlock()
	names, ok := e.wire[serializer]
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(names))
	for k, v := range names {
		out[k] = v
	}
	return out, true
}

// StoreWireNames merges discovered wire names into the cache. Existing
// entries are kept.
func (e *EntityTypeInfo) StoreWireNames(serializer string, names map[string]string) {
	e.wireMu.Lock()
	defer e.wireMu.Unlock()
	if e.wire == nil {
		e.wire = make(map[string]map[string]string)
	}
	cache := e.wire[serializer]
	if cache == nil {
		cache = make(map[string]string, len(names))
		e.wire[serializer] = cache
	}
	for k, v := range names {
		if _, ok := cache[k]; !ok {
			cache[k] = v
		}
	}
}
