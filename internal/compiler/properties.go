package compiler

import (
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/cypherq/internal/builderr"
	"github.com/roach88/cypherq/internal/expr"
	"github.com/roach88/cypherq/internal/resolve"
	"github.com/roach88/cypherq/internal/value"
)

// Property is one flattened entry of a property map.
type Property struct {
	// Name is the flattened wire name.
	Name string

	// Folded is set when the value was known at build time. Value then
	// holds it; otherwise Text holds the symbolic translation.
	Folded bool
	Value  any
	Text   string
}

// Properties flattens a property source into wire-named entries, in
// declaration order. n may construct an object (New, MemberInit,
// ListInit) or fold to a value of a registered type or an object.
// typeName is the declared type of the map's owner; empty means untyped.
func (c *Compiler) Properties(ctx *Context, typeName string, n expr.Node) ([]Property, error) {
	var out []Property
	err := c.properties(ctx, typeName, resolve.NoMember, n, &out)
	return out, err
}

func (c *Compiler) properties(ctx *Context, typeName string, parent resolve.MemberID, n expr.Node, out *[]Property) error {
	switch t := n.(type) {
	case *expr.New:
		return c.bindings(ctx, typeName, parent, t.Bindings, out)
	case *expr.MemberInit:
		if t.Type != "" {
			typeName = t.Type
		}
		return c.bindings(ctx, typeName, parent, t.Bindings, out)
	case *expr.ListInit:
		return c.bindings(ctx, typeName, parent, t.Entries, out)
	}

	val, err := expr.Evaluate(n)
	if err != nil {
		return builderr.New(builderr.CodeUnsupportedExpression,
			"property map %s is neither an object construction nor a build-time value", expr.Format(n))
	}
	if tn := c.res.TypeOf(n); tn != "" {
		typeName = tn
	}
	return c.folded(typeName, parent, val, out)
}

// folded flattens a host value known at build time.
func (c *Compiler) folded(typeName string, parent resolve.MemberID, val any, out *[]Property) error {
	prefix := ""
	if parent != resolve.NoMember {
		prefix = c.res.WireName(parent, false) + c.res.Separator()
	}
	if _, ok := c.res.Schema().EntityInfo(typeName); !ok {
		if name, ok := c.res.Schema().TypeNameOf(reflect.TypeOf(val)); ok {
			typeName = name
		}
	}
	if _, ok := c.res.Schema().EntityInfo(typeName); ok {
		props, err := c.res.Flatten(typeName, val)
		if err != nil {
			return err
		}
		for _, p := range props {
			*out = append(*out, Property{Name: prefix + p.Name, Folded: true, Value: p.Value})
		}
		return nil
	}

	var entries value.Object
	switch v := val.(type) {
	case value.Object:
		entries = v
	case map[string]any:
		entries = sortedEntries(v)
	default:
		return builderr.New(builderr.CodeUnsupportedExpression, "value of type %T is not a property map", val)
	}
	for _, e := range entries {
		*out = append(*out, Property{Name: prefix + e.Key, Folded: true, Value: e.Value})
	}
	return nil
}

func (c *Compiler) bindings(ctx *Context, typeName string, parent resolve.MemberID, bs []expr.Binding, out *[]Property) error {
	for _, b := range bs {
		id, err := c.res.Member(parent, typeName, b.Name)
		if err != nil {
			return err
		}
		info, _ := c.res.Arena().Get(id)

		if c.res.Schema().IsComplex(info.Type) {
			if err := c.complexBinding(ctx, typeName, id, info, b, out); err != nil {
				return err
			}
			continue
		}

		p, err := c.PropertyValue(ctx, c.res.WireName(id, false), b.Value)
		if err != nil {
			return err
		}
		*out = append(*out, p)
	}
	return nil
}

func (c *Compiler) complexBinding(ctx *Context, owner string, id resolve.MemberID, info resolve.MemberInfo, b expr.Binding, out *[]Property) error {
	switch v := b.Value.(type) {
	case *expr.New, *expr.MemberInit, *expr.ListInit:
		return c.properties(ctx, info.Type, id, v, out)
	}

	if val, err := expr.Evaluate(b.Value); err == nil {
		if val == nil {
			return builderr.NullComplexTypeProperty(owner, b.Name)
		}
		return c.folded(info.Type, id, val, out)
	}

	leaves, paths, err := c.res.Explode(b.Value, info.Type)
	if err != nil {
		return err
	}
	for i, leaf := range leaves {
		pid, typ := id, info.Type
		for _, step := range paths[i] {
			if pid, err = c.res.Member(pid, typ, step); err != nil {
				return err
			}
			m, _ := c.res.Arena().Get(pid)
			typ = m.Type
		}
		p, err := c.PropertyValue(ctx, c.res.WireName(pid, false), leaf)
		if err != nil {
			return err
		}
		*out = append(*out, p)
	}
	return nil
}

// PropertyValue builds the entry name of a property map from n: folded
// when n evaluates to a scalar, translated symbolically otherwise.
func (c *Compiler) PropertyValue(ctx *Context, name string, n expr.Node) (Property, error) {
	v := newVisitor(c, ctx)
	if v.foldable(n) {
		if val, err := expr.Evaluate(n); err == nil && value.IsScalar(val) {
			return Property{Name: name, Folded: true, Value: val}, nil
		}
	}
	if _, err := v.visit(n, Suppressed{}, true); err != nil {
		return Property{}, err
	}
	return Property{Name: name, Text: v.String()}, nil
}

// RenderProperties writes a property map under the context's strategy:
//
//	NoParams             { Title: "X", Year: 2017 }
//	WithParams           $p0
//	WithParamsForValues  { Title: $p0.Title, Year: $p0.Year }
//
// Under WithParams a map holding any symbolic value falls back to the
// per-value form. An empty map renders as "".
func (c *Compiler) RenderProperties(ctx *Context, props []Property) (string, error) {
	if len(props) == 0 {
		return "", nil
	}

	var folded value.Object
	for _, p := range props {
		if p.Folded {
			folded = append(folded, value.Entry{Key: p.Name, Value: p.Value})
		}
	}

	strategy := ctx.Strategy
	if strategy == WithParams {
		if len(folded) == len(props) {
			return "$" + ctx.Params.CreateParameter(folded), nil
		}
		strategy = WithParamsForValues
	}

	param := ""
	if strategy == WithParamsForValues && len(folded) > 0 {
		param = ctx.Params.CreateParameter(folded)
	}

	var sb strings.Builder
	sb.WriteString("{ ")
	for i, p := range props {
		if i > 0 {
			sb.WriteString(", ")
		}
		key := value.QuoteIdent(p.Name)
		sb.WriteString(key)
		sb.WriteString(": ")
		switch {
		case !p.Folded:
			sb.WriteString(p.Text)
		case strategy == NoParams:
			lit, err := value.Literal(p.Value)
			if err != nil {
				return "", builderr.New(builderr.CodeUnsupportedExpression,
					"property %s: %v", p.Name, err)
			}
			sb.WriteString(lit)
		default:
			sb.WriteString("$" + param + "." + key)
		}
	}
	sb.WriteString(" }")
	return sb.String(), nil
}

func sortedEntries(m map[string]any) value.Object {
	out := make(value.Object, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out = append(out, value.Entry{Key: k, Value: m[k]})
	}
	return out
}

func registerConstruction(c *Compiler) {
	c.HandleClass(construction)
	c.HandleClass(array)
}

// construction renders object constructions as property maps.
func construction(x *Visit) Continuation {
	typeName := ""
	switch t := x.Node.(type) {
	case *expr.MemberInit:
		typeName = t.Type
	case *expr.New, *expr.ListInit:
	default:
		return nil
	}
	return func() (expr.Node, error) {
		c, ctx := x.Compiler(), x.Context()
		props, err := c.Properties(ctx, typeName, x.Node)
		if err != nil {
			return nil, err
		}
		text, err := c.RenderProperties(ctx, props)
		if err != nil {
			return nil, err
		}
		if text == "" {
			text = "{}"
		}
		x.Emit(text)
		return x.Node, nil
	}
}

func array(x *Visit) Continuation {
	if _, ok := x.Node.(*expr.NewArray); !ok {
		return nil
	}
	return func() (expr.Node, error) {
		x.Emit("[")
		if _, err := x.VisitChildren(", "); err != nil {
			return nil, err
		}
		x.Emit("]")
		return x.Node, nil
	}
}
