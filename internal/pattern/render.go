package pattern

import (
	"log/slog"
	"strings"

	"github.com/roach88/cypherq/internal/builderr"
	"github.com/roach88/cypherq/internal/compiler"
	"github.com/roach88/cypherq/internal/expr"
	"github.com/roach88/cypherq/internal/resolve"
	"github.com/roach88/cypherq/internal/schema"
	"github.com/roach88/cypherq/internal/value"
)

// Render renders one pattern:
//
//	(a:Actor:Person { Born: $p0.Born })-[r:ACTED_IN*1..3]->(m:Movie)
func (b *Builder) Render(ctx *compiler.Context, p *Pattern) (string, error) {
	var sb strings.Builder
	if err := b.render(ctx, &sb, p, true); err != nil {
		return "", err
	}
	slog.Debug("rendered pattern", "build", ctx.ID, "bytes", sb.Len())
	return sb.String(), nil
}

// render writes p. head is false for chained segments, whose leading
// endpoint was already written by the previous segment.
func (b *Builder) render(ctx *compiler.Context, sb *strings.Builder, p *Pattern, head bool) error {
	if varOf(p.A) == "" && varOf(p.B) == "" && (p.R == nil || p.R.Var == "") {
		return builderr.New(builderr.CodeNullARBVariables, "pattern has no variable on A, R or B")
	}
	if p.Strategy != nil {
		prev := ctx.Strategy
		ctx.Strategy = *p.Strategy
		defer func() { ctx.Strategy = prev }()
	}

	a := p.A
	if a == nil {
		a = &NodeSpec{}
	}
	if head {
		if err := b.node(ctx, sb, a); err != nil {
			return err
		}
	}
	if p.R == nil && p.B == nil {
		return nil
	}

	r := p.R
	if r == nil {
		r = &RelSpec{}
	}
	if err := b.rel(ctx, sb, r); err != nil {
		return err
	}

	bn := p.B
	if bn == nil {
		bn = &NodeSpec{}
	}
	return b.node(ctx, sb, bn)
}

func varOf(n *NodeSpec) string {
	if n == nil {
		return ""
	}
	return n.Var
}

func (b *Builder) node(ctx *compiler.Context, sb *strings.Builder, n *NodeSpec) error {
	labels, err := b.labels(n)
	if err != nil {
		return err
	}
	props, err := b.properties(ctx, n.Type, n.Var, n.Props, n.Constraint)
	if err != nil {
		return err
	}

	sb.WriteByte('(')
	sb.WriteString(n.Var)
	for _, l := range labels {
		sb.WriteString(":" + value.QuoteIdent(l))
	}
	if props != "" {
		if n.Var != "" || len(labels) > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(props)
	}
	sb.WriteByte(')')
	return nil
}

func (b *Builder) rel(ctx *compiler.Context, sb *strings.Builder, r *RelSpec) error {
	types, err := b.relTypes(r)
	if err != nil {
		return err
	}
	props, err := b.properties(ctx, r.Type, r.Var, r.Props, r.Constraint)
	if err != nil {
		return err
	}

	var inner strings.Builder
	inner.WriteString(r.Var)
	for i, t := range types {
		if i == 0 {
			inner.WriteByte(':')
		} else {
			inner.WriteByte('|')
		}
		inner.WriteString(value.QuoteIdent(t))
	}
	if r.Hops != nil {
		if err := r.Hops.Validate(); err != nil {
			return err
		}
		inner.WriteString(r.Hops.String())
	}
	if props != "" {
		if inner.Len() > 0 {
			inner.WriteByte(' ')
		}
		inner.WriteString(props)
	}

	if r.Direction == schema.Incoming {
		sb.WriteByte('<')
	}
	sb.WriteByte('-')
	if inner.Len() > 0 {
		sb.WriteString("[" + inner.String() + "]-")
	} else {
		sb.WriteByte('-')
	}
	if r.Direction == schema.Outgoing {
		sb.WriteByte('>')
	}
	return nil
}

// properties renders the property map of one role from either its props
// or its constraint.
func (b *Builder) properties(ctx *compiler.Context, typeName, v string, props, constraint expr.Node) (string, error) {
	if props != nil && constraint != nil {
		err := builderr.New(builderr.CodePropsAndConstraintsClash,
			"%s has both a property map and a constraint", roleName(v))
		return "", err.WithType(typeName)
	}

	var (
		list []compiler.Property
		err  error
	)
	switch {
	case props != nil:
		list, err = b.c.Properties(ctx, typeName, props)
	case constraint != nil:
		list, err = b.constraint(ctx, typeName, v, constraint)
	default:
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return b.c.RenderProperties(ctx, list)
}

func roleName(v string) string {
	if v == "" {
		return "anonymous role"
	}
	return v
}

// constraint turns a conjunction of member == value terms over v into
// property entries, in source order.
func (b *Builder) constraint(ctx *compiler.Context, typeName, v string, n expr.Node) ([]compiler.Property, error) {
	var out []compiler.Property
	var walk func(n expr.Node) error
	walk = func(n expr.Node) error {
		bin, ok := n.(*expr.Binary)
		if !ok {
			return invalidConstraint(n, "expected a conjunction of equalities")
		}
		switch bin.Op {
		case expr.OpAnd:
			if err := walk(bin.Left); err != nil {
				return err
			}
			return walk(bin.Right)
		case expr.OpEqual:
			name, rhs, err := b.constrained(typeName, v, bin)
			if err != nil {
				return err
			}
			p, err := b.c.PropertyValue(ctx, name, rhs)
			if err != nil {
				return err
			}
			out = append(out, p)
			return nil
		}
		return invalidConstraint(n, "operator "+bin.Op.String()+" is not allowed")
	}
	if err := walk(n); err != nil {
		return nil, err
	}
	return out, nil
}

// constrained picks the side of an equality that is a scalar member of v
// and returns its wire name and the other side.
func (b *Builder) constrained(typeName, v string, eq *expr.Binary) (string, expr.Node, error) {
	if v == "" {
		return "", nil, invalidConstraint(eq, "an anonymous role cannot be constrained")
	}
	for _, side := range [][2]expr.Node{{eq.Left, eq.Right}, {eq.Right, eq.Left}} {
		name, ok, err := b.memberOf(typeName, v, side[0])
		if err != nil {
			return "", nil, err
		}
		if ok {
			return name, side[1], nil
		}
	}
	return "", nil, invalidConstraint(eq, "neither side is a member of "+v)
}

func (b *Builder) memberOf(typeName, v string, n expr.Node) (string, bool, error) {
	root, steps, ok := resolve.SplitPath(n)
	if !ok || len(steps) == 0 || resolve.RootName(root) != v {
		return "", false, nil
	}
	res := b.c.Resolver()
	t, err := res.Traverse(typeName, steps)
	if err != nil {
		return "", false, err
	}
	if t.Consumed != len(steps) || t.Leaf == resolve.NoMember {
		return "", false, nil
	}
	if res.Schema().IsComplex(t.Type) {
		return "", false, invalidConstraint(n, "complex member must be constrained through its scalar members")
	}
	return res.WireName(t.Leaf, t.Escaped), true, nil
}

func invalidConstraint(n expr.Node, why string) error {
	return builderr.New(builderr.CodeInvalidConstraint, "constraint %s: %s", expr.Format(n), why)
}
