package compiler

import (
	"log/slog"
	"strings"

	"github.com/roach88/cypherq/internal/builderr"
	"github.com/roach88/cypherq/internal/expr"
	"github.com/roach88/cypherq/internal/resolve"
	"github.com/roach88/cypherq/internal/value"
)

// Expression translates n into query text.
func (c *Compiler) Expression(ctx *Context, n expr.Node) (string, error) {
	return c.run(ctx, "expression", n)
}

// Predicate translates a boolean expression. It is Expression under a
// name that reads better at call sites building WHERE clauses by hand.
func (c *Compiler) Predicate(ctx *Context, n expr.Node) (string, error) {
	return c.run(ctx, "predicate", n)
}

// Where translates n into a WHERE clause.
func (c *Compiler) Where(ctx *Context, n expr.Node) (string, error) {
	text, err := c.Predicate(ctx, n)
	if err != nil {
		return "", err
	}
	return "WHERE " + text, nil
}

func (c *Compiler) run(ctx *Context, entry string, n expr.Node) (string, error) {
	v := newVisitor(c, ctx)
	if _, err := v.visit(n, Suppressed{}, false); err != nil {
		slog.Debug("compile failed",
			"build", ctx.ID,
			"entry", entry,
			"error", err,
		)
		return "", err
	}
	slog.Debug("compiled",
		"build", ctx.ID,
		"entry", entry,
		"bytes", v.sb.Len(),
	)
	return v.String(), nil
}

// Item is one projected column.
type Item struct {
	Text  string
	Alias string
}

func (i Item) String() string {
	if i.Alias == "" || i.Alias == i.Text {
		return i.Text
	}
	return i.Text + " AS " + value.QuoteIdent(i.Alias)
}

// Projection is an ordered list of projected columns.
type Projection []Item

func (p Projection) String() string {
	parts := make([]string, len(p))
	for i, item := range p {
		parts[i] = item.String()
	}
	return strings.Join(parts, ", ")
}

// Projection translates a projection: a variable, a member path, or an
// object construction whose bindings are such expressions. Complex-typed
// members are exploded into one column per scalar leaf, aliased with the
// flattened leaf name. Any other shape is an INVALID_PROJECTION error.
func (c *Compiler) Projection(ctx *Context, n expr.Node) (Projection, error) {
	var out Projection
	switch t := n.(type) {
	case *expr.New:
		for _, b := range t.Bindings {
			if err := c.projectBinding(ctx, b, &out); err != nil {
				return nil, err
			}
		}
	case *expr.MemberInit:
		for _, b := range t.Bindings {
			if err := c.projectBinding(ctx, b, &out); err != nil {
				return nil, err
			}
		}
	default:
		if !isPath(n) {
			return nil, builderr.New(builderr.CodeInvalidProjection,
				"cannot project %s: expected a variable, a member path or an object", expr.Format(n))
		}
		if err := c.project(ctx, n, "", &out); err != nil {
			return nil, err
		}
	}
	slog.Debug("compiled projection", "build", ctx.ID, "items", len(out))
	return out, nil
}

// isPath reports whether n is a bare variable or a member path rooted at
// one.
func isPath(n expr.Node) bool {
	root, _, ok := resolve.SplitPath(n)
	return ok && resolve.RootName(root) != ""
}

func (c *Compiler) projectBinding(ctx *Context, b expr.Binding, out *Projection) error {
	if isPath(b.Value) {
		return c.project(ctx, b.Value, b.Name, out)
	}
	text, err := c.Expression(ctx, b.Value)
	if err != nil {
		return err
	}
	*out = append(*out, Item{Text: text, Alias: b.Name})
	return nil
}

// project adds the columns of a path. alias names the column; complex
// paths use it as the prefix of every leaf alias. An empty alias means
// the path's own flattened name.
func (c *Compiler) project(ctx *Context, n expr.Node, alias string, out *Projection) error {
	leaves, paths, err := c.res.Explode(n, "")
	if err != nil {
		return err
	}
	sep := c.res.Separator()
	for i, leaf := range leaves {
		text, err := c.Expression(ctx, leaf)
		if err != nil {
			return err
		}
		itemAlias := alias
		if alias == "" {
			if _, steps, _ := resolve.SplitPath(leaf); len(steps) > 0 {
				itemAlias = afterRoot(text)
			}
		} else if len(paths[i]) > 0 {
			itemAlias = alias + sep + strings.Join(paths[i], sep)
		}
		*out = append(*out, Item{Text: text, Alias: itemAlias})
	}
	return nil
}

// afterRoot strips "root." from a rendered path.
func afterRoot(text string) string {
	_, rest, ok := strings.Cut(text, ".")
	if !ok {
		return text
	}
	return rest
}

// Return translates a projection into a RETURN clause.
func (c *Compiler) Return(ctx *Context, n expr.Node) (string, error) {
	p, err := c.Projection(ctx, n)
	if err != nil {
		return "", err
	}
	return "RETURN " + p.String(), nil
}

// With translates a projection into a WITH clause.
func (c *Compiler) With(ctx *Context, n expr.Node) (string, error) {
	p, err := c.Projection(ctx, n)
	if err != nil {
		return "", err
	}
	return "WITH " + p.String(), nil
}

// Assignment is one SET target and its value.
type Assignment struct {
	Target expr.Node
	Value  expr.Node
}

// Set translates assignments into a SET clause. Assigning an object to a
// variable sets each of its flattened properties; assigning to a
// complex-typed member sets the member's flattened leaves.
func (c *Compiler) Set(ctx *Context, assignments ...Assignment) (string, error) {
	var parts []string
	for _, a := range assignments {
		if !isPath(a.Target) {
			return "", builderr.New(builderr.CodeAmbiguousExpression,
				"SET target %s is not a variable or member path", expr.Format(a.Target))
		}
		target, err := c.Expression(ctx, a.Target)
		if err != nil {
			return "", err
		}

		typeName := c.res.TypeOf(a.Target)
		_, isVar := a.Target.(*expr.Var)
		if !isVar && !c.res.Schema().IsComplex(typeName) {
			rhs, err := c.Expression(ctx, a.Value)
			if err != nil {
				return "", err
			}
			parts = append(parts, target+" = "+rhs)
			continue
		}

		props, err := c.Properties(ctx, typeName, a.Value)
		if err != nil {
			return "", err
		}
		joiner := "."
		if !isVar {
			joiner = c.res.Separator()
		}
		for _, p := range props {
			text, err := c.propertyText(ctx, p)
			if err != nil {
				return "", err
			}
			parts = append(parts, target+joiner+p.Name+" = "+text)
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "SET " + strings.Join(parts, ", "), nil
}

// propertyText renders a single property value under the strategy.
func (c *Compiler) propertyText(ctx *Context, p Property) (string, error) {
	if !p.Folded {
		return p.Text, nil
	}
	v := newVisitor(c, ctx)
	x := &Visit{v: v}
	if err := x.EmitValue(p.Value); err != nil {
		return "", err
	}
	return v.String(), nil
}

// Remove translates targets into a REMOVE clause. Complex-typed members
// remove every flattened leaf.
func (c *Compiler) Remove(ctx *Context, targets ...expr.Node) (string, error) {
	list, err := c.paths(ctx, targets)
	if err != nil {
		return "", err
	}
	if list == "" {
		return "", nil
	}
	return "REMOVE " + list, nil
}

// PropertyList renders the comma-separated property list of an index or
// constraint definition: a single member path, or an object whose
// bindings are member paths. Complex members contribute their leaves.
func (c *Compiler) PropertyList(ctx *Context, n expr.Node) (string, error) {
	targets := []expr.Node{n}
	switch t := n.(type) {
	case *expr.New:
		targets = bindingValues(t.Bindings)
	case *expr.MemberInit:
		targets = bindingValues(t.Bindings)
	}
	return c.paths(ctx, targets)
}

func bindingValues(bs []expr.Binding) []expr.Node {
	out := make([]expr.Node, len(bs))
	for i, b := range bs {
		out[i] = b.Value
	}
	return out
}

func (c *Compiler) paths(ctx *Context, targets []expr.Node) (string, error) {
	var parts []string
	for _, t := range targets {
		if !isPath(t) {
			return "", builderr.New(builderr.CodeAmbiguousExpression,
				"%s is not a member path", expr.Format(t))
		}
		leaves, _, err := c.res.Explode(t, "")
		if err != nil {
			return "", err
		}
		for _, leaf := range leaves {
			text, err := c.Expression(ctx, leaf)
			if err != nil {
				return "", err
			}
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, ", "), nil
}

// Order is one ORDER BY key.
type Order struct {
	Expr expr.Node
	Desc bool
}

// OrderBy translates sort keys into an ORDER BY clause.
func (c *Compiler) OrderBy(ctx *Context, keys ...Order) (string, error) {
	if len(keys) == 0 {
		return "", nil
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		text, err := c.Expression(ctx, k.Expr)
		if err != nil {
			return "", err
		}
		if k.Desc {
			text += " DESC"
		}
		parts[i] = text
	}
	return "ORDER BY " + strings.Join(parts, ", "), nil
}
