package pattern

import (
	"github.com/roach88/cypherq/internal/compiler"
	"github.com/roach88/cypherq/internal/expr"
	"github.com/roach88/cypherq/internal/schema"
)

// NodeSpec is one endpoint of a pattern.
type NodeSpec struct {
	// Var is the query variable. Empty renders an anonymous node.
	Var string

	// Type is the concrete registered type. Its labels are the inferred
	// labels of the node.
	Type string

	// Declared is the type the endpoint was reached through. Type must be
	// assignable to it.
	Declared string

	// Labels are appended to the inferred labels, or replace them when
	// ReplaceLabels is set.
	Labels        []string
	ReplaceLabels bool

	// Props and Constraint are mutually exclusive.
	Props      expr.Node
	Constraint expr.Node
}

// Node returns a node endpoint of the given type. typeName may be empty.
func Node(v, typeName string) *NodeSpec {
	return &NodeSpec{Var: v, Type: typeName, Declared: typeName}
}

// As narrows the endpoint to typeName.
func (n *NodeSpec) As(typeName string) *NodeSpec {
	n.Type = typeName
	return n
}

// WithLabels appends labels to the inferred ones.
func (n *NodeSpec) WithLabels(labels ...string) *NodeSpec {
	n.Labels = append(n.Labels, labels...)
	return n
}

// OnlyLabels replaces the inferred labels.
func (n *NodeSpec) OnlyLabels(labels ...string) *NodeSpec {
	n.Labels = append(n.Labels, labels...)
	n.ReplaceLabels = true
	return n
}

// WithProps attaches a property map source: an object construction or a
// value known at build time.
func (n *NodeSpec) WithProps(props expr.Node) *NodeSpec {
	n.Props = props
	return n
}

// Where attaches a constraint: a conjunction of member == value terms
// over the endpoint's variable.
func (n *NodeSpec) Where(constraint expr.Node) *NodeSpec {
	n.Constraint = constraint
	return n
}

// RelSpec is the relationship of a pattern.
type RelSpec struct {
	// Var is the query variable. Empty renders an anonymous relationship.
	Var string

	// Type is an optional registered relationship type. Its labels become
	// the inferred relationship types when navigation inferred none.
	Type string

	// Types are appended to the inferred types, or replace them when
	// ReplaceTypes is set.
	Types        []string
	ReplaceTypes bool

	Direction schema.Direction

	// Hops is the variable-length range. Nil matches a single hop.
	Hops *Hops

	Props      expr.Node
	Constraint expr.Node

	inferred []string
}

// Rel returns an outgoing relationship. typeName may be empty.
func Rel(v, typeName string) *RelSpec {
	return &RelSpec{Var: v, Type: typeName}
}

// Dir sets the direction.
func (r *RelSpec) Dir(d schema.Direction) *RelSpec {
	r.Direction = d
	return r
}

// WithTypes appends relationship types to the inferred ones.
func (r *RelSpec) WithTypes(types ...string) *RelSpec {
	r.Types = append(r.Types, types...)
	return r
}

// OnlyTypes replaces the inferred relationship types.
func (r *RelSpec) OnlyTypes(types ...string) *RelSpec {
	r.Types = append(r.Types, types...)
	r.ReplaceTypes = true
	return r
}

// Length makes the relationship variable-length.
func (r *RelSpec) Length(h Hops) *RelSpec {
	r.Hops = &h
	return r
}

func (r *RelSpec) WithProps(props expr.Node) *RelSpec {
	r.Props = props
	return r
}

func (r *RelSpec) Where(constraint expr.Node) *RelSpec {
	r.Constraint = constraint
	return r
}

// Inferred returns the relationship types inferred from navigation.
func (r *RelSpec) Inferred() []string {
	return r.inferred
}

// Pattern is one node-relationship-node segment. A nil R renders as an
// anonymous outgoing relationship; a nil R and B render the lone node A.
type Pattern struct {
	A *NodeSpec
	R *RelSpec
	B *NodeSpec

	// Strategy overrides the context's build strategy for this pattern's
	// property maps.
	Strategy *compiler.Strategy
}

// New returns a pattern over the given roles. Any of them may be nil.
func New(a *NodeSpec, r *RelSpec, b *NodeSpec) *Pattern {
	return &Pattern{A: a, R: r, B: b}
}

// WithStrategy overrides the build strategy for this pattern.
func (p *Pattern) WithStrategy(s compiler.Strategy) *Pattern {
	p.Strategy = &s
	return p
}

// trailing is the endpoint a following segment starts from.
func (p *Pattern) trailing() *NodeSpec {
	if p.B != nil {
		return p.B
	}
	return p.A
}
