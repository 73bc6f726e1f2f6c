package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cypherq/internal/builderr"
	"github.com/roach88/cypherq/internal/compiler"
	"github.com/roach88/cypherq/internal/expr"
	"github.com/roach88/cypherq/internal/resolve"
	"github.com/roach88/cypherq/internal/schema"
	"github.com/roach88/cypherq/internal/testutil"
)

func newBuilder(t *testing.T, opts ...Option) *Builder {
	t.Helper()
	reg := testutil.NewRegistry(t)
	return NewBuilder(compiler.New(resolve.New(reg)), reg, opts...)
}

func newContext(s compiler.Strategy) *compiler.Context {
	return compiler.NewContext(
		compiler.WithStrategy(s),
		compiler.WithIDGenerator(testutil.NewFixedIDGenerator("build-1")),
	)
}

var (
	actorVar = expr.Variable("a", "Actor")
	movieVar = expr.Variable("m", "Movie")
	otherVar = expr.Variable("o", "Movie")
)

func titleAndYear() expr.Node {
	return expr.Obj(expr.Bind("Title", expr.Const("X")), expr.Bind("Year", expr.Const(2017)))
}

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		strategy compiler.Strategy
		pattern  func() *Pattern
		want     string
		params   map[string]any
	}{
		{
			name:     "inline properties",
			strategy: compiler.NoParams,
			pattern: func() *Pattern {
				return New(Node("m", "Movie").WithProps(titleAndYear()), nil, nil)
			},
			want:   `(m:Movie { Title: "X", Year: 2017 })`,
			params: map[string]any{},
		},
		{
			name:     "constraint renders like properties",
			strategy: compiler.NoParams,
			pattern: func() *Pattern {
				return New(Node("m", "Movie").Where(expr.And(
					expr.Eq(expr.Path(movieVar, "Title"), expr.Const("X")),
					expr.Eq(expr.Const(2017), expr.Path(movieVar, "Year")),
				)), nil, nil)
			},
			want:   `(m:Movie { Title: "X", Year: 2017 })`,
			params: map[string]any{},
		},
		{
			name:     "whole map parameter",
			strategy: compiler.WithParams,
			pattern: func() *Pattern {
				return New(Node("m", "Movie").WithProps(titleAndYear()), nil, nil)
			},
			want:   `(m:Movie $p0)`,
			params: map[string]any{"p0": map[string]any{"Title": "X", "Year": int64(2017)}},
		},
		{
			name:     "per value parameters",
			strategy: compiler.WithParamsForValues,
			pattern: func() *Pattern {
				return New(Node("m", "Movie").WithProps(titleAndYear()), nil, nil)
			},
			want:   `(m:Movie { Title: $p0.Title, Year: $p0.Year })`,
			params: map[string]any{"p0": map[string]any{"Title": "X", "Year": int64(2017)}},
		},
		{
			name:     "constraint on a nested complex member",
			strategy: compiler.NoParams,
			pattern: func() *Pattern {
				return New(Node("a", "Actor").Where(
					expr.Eq(expr.Path(actorVar, "Address", "City"), expr.Const("Oslo")),
				), nil, nil)
			},
			want:   `(a:Actor:Person { Address_City: "Oslo" })`,
			params: map[string]any{},
		},
		{
			name:     "relationship entity with hops and properties",
			strategy: compiler.NoParams,
			pattern: func() *Pattern {
				return New(
					Node("a", "Actor"),
					Rel("r", "ActedIn").Length(Between(1, 3)).WithProps(expr.Obj(expr.Bind("Year", expr.Const(1999)))),
					Node("m", "Movie"),
				)
			},
			want:   `(a:Actor:Person)-[r:ACTED_IN*1..3 { Year: 1999 }]->(m:Movie)`,
			params: map[string]any{},
		},
		{
			name:     "anonymous relationship",
			strategy: compiler.NoParams,
			pattern: func() *Pattern {
				return New(Node("a", ""), nil, Node("b", ""))
			},
			want:   `(a)-->(b)`,
			params: map[string]any{},
		},
		{
			name:     "incoming anonymous relationship with anonymous endpoint",
			strategy: compiler.NoParams,
			pattern: func() *Pattern {
				return New(nil, Rel("", "").Dir(schema.Incoming), Node("b", "Movie"))
			},
			want:   `()<--(b:Movie)`,
			params: map[string]any{},
		},
		{
			name:     "undirected typed relationship",
			strategy: compiler.NoParams,
			pattern: func() *Pattern {
				return New(Node("a", ""), Rel("r", "").WithTypes("KNOWS", "LIKES").Dir(schema.Both), nil)
			},
			want:   `(a)-[r:KNOWS|LIKES]-()`,
			params: map[string]any{},
		},
		{
			name:     "appended and replaced labels",
			strategy: compiler.NoParams,
			pattern: func() *Pattern {
				return New(Node("a", "Actor").WithLabels("Star", "Person"), nil, Node("b", "Actor").OnlyLabels("Star"))
			},
			want:   `(a:Actor:Person:Star)-->(b:Star)`,
			params: map[string]any{},
		},
		{
			name:     "narrowed to a derived type",
			strategy: compiler.NoParams,
			pattern: func() *Pattern {
				return New(Node("p", "Person").As("Actor"), nil, nil)
			},
			want:   `(p:Actor:Person)`,
			params: map[string]any{},
		},
		{
			name:     "labels needing quotes",
			strategy: compiler.NoParams,
			pattern: func() *Pattern {
				return New(Node("n", "").WithLabels("Big Screen"), nil, nil)
			},
			want:   "(n:`Big Screen`)",
			params: map[string]any{},
		},
		{
			name:     "anonymous node with properties",
			strategy: compiler.NoParams,
			pattern: func() *Pattern {
				return New(Node("a", ""), nil, Node("", "").WithProps(expr.Const(map[string]any{"k": 1})))
			},
			want:   `(a)-->({ k: 1 })`,
			params: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder(t)
			ctx := newContext(tt.strategy)
			got, err := b.Render(ctx, tt.pattern())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.params, ctx.Statement(got).Params)
		})
	}
}

func TestRender_DowngradeMatchesPerValue(t *testing.T) {
	props := func() expr.Node {
		return expr.Obj(expr.Bind("Title", expr.Const("X")), expr.Bind("Year", expr.Path(otherVar, "Year")))
	}
	b := newBuilder(t)

	withParams, err := b.Render(newContext(compiler.WithParams), New(Node("m", "Movie").WithProps(props()), nil, nil))
	require.NoError(t, err)
	perValue, err := b.Render(newContext(compiler.WithParamsForValues), New(Node("m", "Movie").WithProps(props()), nil, nil))
	require.NoError(t, err)

	assert.Equal(t, `(m:Movie { Title: $p0.Title, Year: o.Year })`, withParams)
	assert.Equal(t, perValue, withParams)
}

func TestRender_StrategyOverride(t *testing.T) {
	b := newBuilder(t)
	ctx := newContext(compiler.WithParams)

	p := New(Node("m", "Movie").WithProps(titleAndYear()), nil, nil).WithStrategy(compiler.NoParams)
	got, err := b.Render(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, `(m:Movie { Title: "X", Year: 2017 })`, got)
	assert.Equal(t, compiler.WithParams, ctx.Strategy, "override must not leak into the context")
	assert.Empty(t, ctx.Statement(got).Params)
}

func TestNavigate(t *testing.T) {
	tests := []struct {
		name   string
		opts   []Option
		from   *NodeSpec
		member string
		relVar string
		toVar  string
		want   string
	}{
		{
			name:   "explicit relationship name",
			from:   Node("a", "Actor"),
			member: "Movies",
			relVar: "r",
			toVar:  "m",
			want:   `(a:Actor:Person)-[r:ACTED_IN]->(m:Movie)`,
		},
		{
			name:   "incoming direction",
			from:   Node("m", "Movie"),
			member: "Actors",
			relVar: "r",
			toVar:  "a",
			want:   `(m:Movie)<-[r:ACTED_IN]-(a:Actor:Person)`,
		},
		{
			name:   "foreign key name",
			from:   Node("a", "Actor"),
			member: "Agent",
			toVar:  "g",
			want:   `(a:Actor:Person)-[:REPRESENTED_BY]->(g:Agent)`,
		},
		{
			name:   "inverse name as declared",
			from:   Node("d", "Director"),
			member: "Movies",
			toVar:  "m",
			want:   `(d:Director:Person)-[:DirectedBy]->(m:Movie)`,
		},
		{
			name:   "inverse name in upper snake case",
			opts:   []Option{WithTypeNamer(UpperSnake)},
			from:   Node("d", "Director"),
			member: "Movies",
			toVar:  "m",
			want:   `(d:Director:Person)-[:DIRECTED_BY]->(m:Movie)`,
		},
		{
			name:   "no hints",
			from:   Node("m", "Movie"),
			member: "DirectedBy",
			toVar:  "d",
			want:   `(m:Movie)-->(d:Director:Person)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder(t, tt.opts...)
			p, err := b.Navigate(tt.from, tt.member, tt.relVar, tt.toVar)
			require.NoError(t, err)
			got, err := b.Render(newContext(compiler.NoParams), p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNavigate_ReplacedTypes(t *testing.T) {
	b := newBuilder(t)
	p, err := b.Navigate(Node("a", "Actor"), "Movies", "r", "m")
	require.NoError(t, err)
	assert.Equal(t, []string{"ACTED_IN"}, p.R.Inferred())

	p.R.OnlyTypes("PRODUCED")
	got, err := b.Render(newContext(compiler.NoParams), p)
	require.NoError(t, err)
	assert.Equal(t, `(a:Actor:Person)-[r:PRODUCED]->(m:Movie)`, got)

	p.R.ReplaceTypes = false
	got, err = b.Render(newContext(compiler.NoParams), p)
	require.NoError(t, err)
	assert.Equal(t, `(a:Actor:Person)-[r:ACTED_IN|PRODUCED]->(m:Movie)`, got)
}

func TestUpperSnake(t *testing.T) {
	assert.Equal(t, "DIRECTED_BY", UpperSnake("DirectedBy"))
	assert.Equal(t, "ACTED_IN", UpperSnake("actedIn"))
	assert.Equal(t, "REPRESENTED_BY", UpperSnake("REPRESENTED_BY"))
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name    string
		pattern func(b *Builder) (*Pattern, error)
		code    builderr.Code
	}{
		{
			name: "props and constraint",
			pattern: func(*Builder) (*Pattern, error) {
				n := Node("m", "Movie").WithProps(titleAndYear()).
					Where(expr.Eq(expr.Path(movieVar, "Title"), expr.Const("X")))
				return New(n, nil, nil), nil
			},
			code: builderr.CodePropsAndConstraintsClash,
		},
		{
			name: "props and constraint on the relationship",
			pattern: func(*Builder) (*Pattern, error) {
				r := Rel("r", "ActedIn").WithProps(expr.Obj()).Where(expr.Const(true))
				return New(Node("a", "Actor"), r, nil), nil
			},
			code: builderr.CodePropsAndConstraintsClash,
		},
		{
			name: "no variables",
			pattern: func(*Builder) (*Pattern, error) {
				return New(Node("", "Movie"), Rel("", "ActedIn"), Node("", "Actor")), nil
			},
			code: builderr.CodeNullARBVariables,
		},
		{
			name: "nothing at all",
			pattern: func(*Builder) (*Pattern, error) {
				return New(nil, nil, nil), nil
			},
			code: builderr.CodeNullARBVariables,
		},
		{
			name: "narrowing to an unrelated type",
			pattern: func(b *Builder) (*Pattern, error) {
				p, err := b.Navigate(Node("m", "Movie"), "DirectedBy", "", "d")
				if err != nil {
					return nil, err
				}
				p.B.As("Actor")
				return p, nil
			},
			code: builderr.CodeUnassignableType,
		},
		{
			name: "narrowing to a base type",
			pattern: func(*Builder) (*Pattern, error) {
				return New(Node("a", "Actor").As("Person"), nil, nil), nil
			},
			code: builderr.CodeUnassignableType,
		},
		{
			name: "comparison other than equality",
			pattern: func(*Builder) (*Pattern, error) {
				return New(Node("m", "Movie").Where(expr.Gt(expr.Path(movieVar, "Year"), expr.Const(2000))), nil, nil), nil
			},
			code: builderr.CodeInvalidConstraint,
		},
		{
			name: "disjunction",
			pattern: func(*Builder) (*Pattern, error) {
				return New(Node("m", "Movie").Where(expr.Or(
					expr.Eq(expr.Path(movieVar, "Year"), expr.Const(1999)),
					expr.Eq(expr.Path(movieVar, "Year"), expr.Const(2003)),
				)), nil, nil), nil
			},
			code: builderr.CodeInvalidConstraint,
		},
		{
			name: "equality on another variable",
			pattern: func(*Builder) (*Pattern, error) {
				return New(Node("m", "Movie").Where(expr.Eq(expr.Path(otherVar, "Year"), expr.Const(1999))), nil, nil), nil
			},
			code: builderr.CodeInvalidConstraint,
		},
		{
			name: "complex member",
			pattern: func(*Builder) (*Pattern, error) {
				return New(Node("a", "Actor").Where(expr.Eq(expr.Path(actorVar, "Address"), expr.Const(nil))), nil, nil), nil
			},
			code: builderr.CodeInvalidConstraint,
		},
		{
			name: "inverted hop range",
			pattern: func(*Builder) (*Pattern, error) {
				return New(Node("a", ""), Rel("r", "").Length(Between(3, 1)), nil), nil
			},
			code: builderr.CodeInvalidConstraint,
		},
		{
			name: "unregistered label type",
			pattern: func(*Builder) (*Pattern, error) {
				return New(Node("g", "Ghost"), nil, nil), nil
			},
			code: builderr.CodeUnknownType,
		},
		{
			name: "unknown member",
			pattern: func(*Builder) (*Pattern, error) {
				return New(Node("m", "Movie").WithProps(expr.Obj(expr.Bind("Budget", expr.Const(1)))), nil, nil), nil
			},
			code: builderr.CodeAmbiguousExpression,
		},
		{
			name: "navigating a scalar member",
			pattern: func(b *Builder) (*Pattern, error) {
				return b.Navigate(Node("m", "Movie"), "Title", "", "t")
			},
			code: builderr.CodeAmbiguousExpression,
		},
		{
			name: "navigating from an untyped node",
			pattern: func(b *Builder) (*Pattern, error) {
				return b.Navigate(Node("n", ""), "Movies", "", "m")
			},
			code: builderr.CodeAmbiguousExpression,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder(t)
			p, err := tt.pattern(b)
			if err == nil {
				_, err = b.Render(newContext(compiler.NoParams), p)
			}
			require.Error(t, err)
			assert.True(t, builderr.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestHops(t *testing.T) {
	tests := []struct {
		hops Hops
		want string
	}{
		{AnyLength(), "*"},
		{Exactly(2), "*2"},
		{Between(1, 3), "*1..3"},
		{AtMost(4), "*..4"},
		{AtLeast(2), "*2.."},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.hops.String())
			assert.NoError(t, tt.hops.Validate())
		})
	}
	assert.Error(t, Hops{Min: -2, Max: 1}.Validate())
}

func TestParseHops(t *testing.T) {
	tests := []struct {
		in   string
		want Hops
	}{
		{"*", AnyLength()},
		{"", AnyLength()},
		{"2", Exactly(2)},
		{"*1..3", Between(1, 3)},
		{"..4", AtMost(4)},
		{"2..", AtLeast(2)},
		{"..", AnyLength()},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHops(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"x", "3..1", "1..y", "-1"} {
		_, err := ParseHops(bad)
		assert.True(t, builderr.Is(err, builderr.CodeInvalidConstraint), bad)
	}
}
