package compiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cypherq/internal/builderr"
	"github.com/roach88/cypherq/internal/expr"
	"github.com/roach88/cypherq/internal/resolve"
	"github.com/roach88/cypherq/internal/testutil"
)

func newCompiler(t *testing.T, opts ...resolve.Option) *Compiler {
	t.Helper()
	return New(resolve.New(testutil.NewRegistry(t), opts...))
}

func newContext(s Strategy) *Context {
	return NewContext(WithStrategy(s), WithIDGenerator(testutil.NewFixedIDGenerator("build-1")))
}

var (
	actor = expr.Variable("actor", "Actor")
	movie = expr.Variable("movie", "Movie")
)

func TestExpression(t *testing.T) {
	r := expr.Param("r", "string")
	m := expr.Param("m", "Movie")
	roles := expr.Path(actor, "Roles")

	tests := []struct {
		name     string
		strategy Strategy
		node     expr.Node
		want     string
	}{
		{
			name: "comprehension body renders without parentheses",
			node: expr.Fn(expr.OwnerSeq, "Where", roles, expr.Fun(expr.Eq(r, expr.Const("role")), r)),
			want: `filter(r IN actor.Roles WHERE r = "role")`,
		},
		{
			name: "select",
			node: expr.Fn(expr.OwnerSeq, "Select", expr.Path(actor, "Movies"), expr.Fun(expr.Path(m, "Year"), m)),
			want: `extract(m IN actor.Movies | m.Year)`,
		},
		{
			name: "list membership",
			node: expr.Fn(expr.OwnerSeq, "Contains", roles, expr.Const("Neo")),
			want: `("Neo" IN actor.Roles)`,
		},
		{
			name: "any with predicate",
			node: expr.Fn(expr.OwnerSeq, "Any", roles, expr.Fun(expr.Eq(r, expr.Const("Neo")), r)),
			want: `any(r IN actor.Roles WHERE r = "Neo")`,
		},
		{
			name: "any without predicate",
			node: expr.Fn(expr.OwnerSeq, "Any", roles),
			want: `(size(actor.Roles) > 0)`,
		},
		{
			name: "count with predicate",
			node: expr.Fn(expr.OwnerSeq, "Count", roles,
				expr.Fun(expr.Method(r, expr.OwnerStrings, "HasPrefix", expr.Const("N")), r)),
			want: `size(filter(r IN actor.Roles WHERE r STARTS WITH "N"))`,
		},
		{
			name: "sum",
			node: expr.Fn(expr.OwnerSeq, "Sum", expr.Path(actor, "Roles")),
			want: `reduce(_sum = 0, _x IN actor.Roles | _sum + _x)`,
		},
		{
			name: "equality with null",
			node: expr.Eq(expr.Path(movie, "Title"), expr.Const(nil)),
			want: `movie.Title IS NULL`,
		},
		{
			name: "null on the left",
			node: expr.Ne(expr.Const(nil), expr.Path(movie, "Title")),
			want: `movie.Title IS NOT NULL`,
		},
		{
			name: "not",
			node: expr.Not(expr.Gt(expr.Path(movie, "Year"), expr.Const(2000))),
			want: `NOT (movie.Year > 2000)`,
		},
		{
			name: "negate",
			node: expr.Neg(expr.Path(movie, "Rating")),
			want: `-movie.Rating`,
		},
		{
			name: "every binary operator",
			node: expr.Or(
				expr.Xor(expr.Le(expr.Path(movie, "Year"), expr.Const(1)), expr.Ge(expr.Path(movie, "Year"), expr.Const(2))),
				expr.Lt(expr.Mod(expr.Mul(expr.Path(movie, "Year"), expr.Const(3)), expr.Const(4)), expr.Div(expr.Path(movie, "Rating"), expr.Const(2.5))),
			),
			want: `(((movie.Year <= 1) XOR (movie.Year >= 2)) OR (((movie.Year * 3) % 4) < (movie.Rating / 2.5)))`,
		},
		{
			name: "string method",
			node: expr.Method(expr.Path(movie, "Title"), expr.OwnerStrings, "ToUpper"),
			want: `toUpper(movie.Title)`,
		},
		{
			name: "string predicate",
			node: expr.Method(expr.Path(movie, "Title"), expr.OwnerStrings, "HasPrefix", expr.Const("The")),
			want: `(movie.Title STARTS WITH "The")`,
		},
		{
			name: "substring",
			node: expr.Method(expr.Path(movie, "Title"), expr.OwnerStrings, "Substring", expr.Const(0), expr.Const(3)),
			want: `substring(movie.Title, 0, 3)`,
		},
		{
			name: "power writes integer literals as floats",
			node: expr.Fn(expr.OwnerMath, "Pow", expr.Path(movie, "Rating"), expr.Const(2)),
			want: `movie.Rating ^ 2.0`,
		},
		{
			name: "nested power is grouped",
			node: expr.Fn(expr.OwnerMath, "Pow", expr.Path(movie, "Rating"), expr.Fn(expr.OwnerMath, "Pow", expr.Path(movie, "Year"), expr.Const(2))),
			want: `movie.Rating ^ (movie.Year ^ 2.0)`,
		},
		{
			name: "power as left operand is grouped",
			node: expr.Fn(expr.OwnerMath, "Pow", expr.Fn(expr.OwnerMath, "Pow", expr.Path(movie, "Rating"), expr.Const(2)), expr.Path(movie, "Year")),
			want: `(movie.Rating ^ 2.0) ^ movie.Year`,
		},
		{
			name: "negated power is grouped",
			node: expr.Neg(expr.Fn(expr.OwnerMath, "Pow", expr.Path(movie, "Rating"), expr.Const(2))),
			want: `-(movie.Rating ^ 2.0)`,
		},
		{
			name: "negated power operand is grouped",
			node: expr.Fn(expr.OwnerMath, "Pow", expr.Neg(expr.Path(movie, "Rating")), expr.Const(2)),
			want: `(-movie.Rating) ^ 2.0`,
		},
		{
			name: "power operator groups a power call operand",
			node: expr.Bin(expr.OpPower, expr.Path(movie, "Rating"), expr.Fn(expr.OwnerMath, "Pow", expr.Path(movie, "Year"), expr.Const(2))),
			want: `(movie.Rating ^ (movie.Year ^ 2.0))`,
		},
		{
			name: "max",
			node: expr.Fn(expr.OwnerMath, "Max", expr.Path(movie, "Year"), expr.Const(2000)),
			want: `CASE WHEN movie.Year > 2000 THEN movie.Year ELSE 2000 END`,
		},
		{
			name: "math function",
			node: expr.Fn(expr.OwnerMath, "Abs", expr.Path(movie, "Rating")),
			want: `abs(movie.Rating)`,
		},
		{
			name: "conversion",
			node: expr.Fn(expr.OwnerConv, "ToString", expr.Path(movie, "Year")),
			want: `toString(movie.Year)`,
		},
		{
			name: "count star",
			node: expr.Cypher("count"),
			want: `count(*)`,
		},
		{
			name: "distinct aggregate",
			node: expr.Cypher("collectDistinct", expr.Path(movie, "Title")),
			want: `collect(DISTINCT movie.Title)`,
		},
		{
			name: "query function",
			node: expr.Cypher("labels", actor),
			want: `labels(actor)`,
		},
		{
			name: "coalesce chain flattens",
			node: expr.OrElse(expr.Path(actor, "Name"), expr.OrElse(expr.Path(actor, "Address", "City"), expr.Const("unknown"))),
			want: `coalesce(actor.Name, actor.Address_City, "unknown")`,
		},
		{
			name: "conditional",
			node: expr.If(expr.Gt(expr.Path(movie, "Year"), expr.Const(2000)), expr.Const("new"), expr.Const("old")),
			want: `CASE WHEN movie.Year > 2000 THEN "new" ELSE "old" END`,
		},
		{
			name: "index",
			node: expr.At(roles, expr.Const(0)),
			want: `actor.Roles[0]`,
		},
		{
			name: "length",
			node: expr.Len(roles),
			want: `size(actor.Roles)`,
		},
		{
			name: "list",
			node: expr.Array(expr.Path(movie, "Year"), expr.Const(1)),
			want: `[movie.Year, 1]`,
		},
		{
			name: "escape keeps source names",
			node: expr.Esc(expr.Path(actor, "Address", "City")),
			want: `actor.Address.City`,
		},
		{
			name: "folded subtree",
			node: expr.Add(expr.Const(1), expr.Const(2)),
			want: `3`,
		},
		{
			name: "time literal",
			node: expr.Eq(expr.Path(movie, "Released"), expr.Const(time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC))),
			want: `(movie.Released = datetime("2020-01-02T00:00:00Z"))`,
		},
		{
			name: "struct constant flattens",
			node: expr.Eq(expr.Path(actor, "Address"), expr.Const(&testutil.Address{City: "Oslo", Geo: &testutil.Geo{}})),
			want: `(actor.Address = { City: "Oslo", Street: "", Geo_Lat: 0.0, Geo_Lon: 0.0 })`,
		},
		{
			name: "typed construction",
			node: expr.Init("Address",
				expr.Bind("City", expr.Const("Oslo")),
				expr.Bind("Geo", expr.Init("Geo",
					expr.Bind("Lat", expr.Const(1.5)),
					expr.Bind("Lon", expr.Path(movie, "Rating")),
				)),
			),
			want: `{ City: "Oslo", Geo_Lat: 1.5, Geo_Lon: movie.Rating }`,
		},
		{
			name:     "typed construction downgrades with a symbolic value",
			strategy: WithParams,
			node: expr.Init("Address",
				expr.Bind("City", expr.Const("Oslo")),
				expr.Bind("Geo", expr.Init("Geo",
					expr.Bind("Lat", expr.Const(1.5)),
					expr.Bind("Lon", expr.Path(movie, "Rating")),
				)),
			),
			want: `{ City: $p0.City, Geo_Lat: $p0.Geo_Lat, Geo_Lon: movie.Rating }`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCompiler(t)
			got, err := c.Expression(newContext(tt.strategy), tt.node)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWhere_WithParams(t *testing.T) {
	c := newCompiler(t)
	ctx := newContext(WithParams)

	got, err := c.Where(ctx, expr.And(
		expr.Eq(expr.Path(movie, "Title"), expr.Const("X")),
		expr.Eq(expr.Path(movie, "Year"), expr.Const(2017)),
	))
	require.NoError(t, err)
	assert.Equal(t, `WHERE ((movie.Title = $p0) AND (movie.Year = $p1))`, got)

	params := ctx.Params.(*Params)
	assert.Equal(t, []string{"p0", "p1"}, params.Names())
	assert.Equal(t, map[string]any{"p0": "X", "p1": int64(2017)}, params.Values())
}

func TestWhere_FoldedPredicateIsOneParameter(t *testing.T) {
	c := newCompiler(t)
	ctx := newContext(WithParams)

	got, err := c.Where(ctx, expr.Gt(expr.Const(3), expr.Const(2)))
	require.NoError(t, err)
	assert.Equal(t, `WHERE $p0`, got)
	v, ok := ctx.Params.(*Params).Get("p0")
	require.True(t, ok)
	assert.Equal(t, true, v)
}

func TestExpression_Aggregate(t *testing.T) {
	c := newCompiler(t)
	m := expr.Param("m", "Movie")
	m2 := expr.Param("m", "Movie")
	total := expr.Param("total", "int")
	year := expr.Param("year", "int")

	recent := expr.Fn(expr.OwnerSeq, "Where", expr.Path(actor, "Movies"),
		expr.Fun(expr.Gt(expr.Path(m, "Year"), expr.Const(2000)), m))
	years := expr.Fn(expr.OwnerSeq, "Select", recent, expr.Fun(expr.Path(m2, "Year"), m2))
	node := expr.Fn(expr.OwnerSeq, "Aggregate", years, expr.Const(150),
		expr.Fun(expr.Fn(expr.OwnerMath, "Pow", expr.Add(total, expr.Sub(expr.Const(2017), year)), expr.Const(2)), total, year))

	got, err := c.Expression(newContext(NoParams), node)
	require.NoError(t, err)
	assert.Equal(t,
		`reduce(total = 150, year IN extract(m IN filter(m IN actor.Movies WHERE m.Year > 2000) | m.Year) | (total + (2017 - year)) ^ 2.0)`,
		got)
}

func TestExpression_WireNames(t *testing.T) {
	c := newCompiler(t, resolve.WithSerializer(resolve.JSONSerializer{}))

	got, err := c.Expression(newContext(NoParams), expr.Path(actor, "Address", "City"))
	require.NoError(t, err)
	assert.Equal(t, `actor.NewAddressName_City`, got)
}

func TestExpression_Errors(t *testing.T) {
	tests := []struct {
		name string
		node expr.Node
		code builderr.Code
	}{
		{"unknown method", expr.Method(expr.Path(movie, "Title"), expr.OwnerStrings, "Frobnicate"), builderr.CodeUnsupportedExpression},
		{"unknown query function", expr.Cypher("nosuch", actor), builderr.CodeUnsupportedExpression},
		{"comprehension without lambda", expr.Fn(expr.OwnerSeq, "Where", expr.Path(actor, "Roles"), expr.Path(actor, "Name")), builderr.CodeUnsupportedExpression},
		{"bare lambda", expr.Fun(expr.Const(1)), builderr.CodeUnsupportedExpression},
		{"unknown member", expr.Path(movie, "Tagline"), builderr.CodeAmbiguousExpression},
		{"member of a query function", expr.Get(expr.Cypher("head", expr.Path(actor, "Movies")), "Title"), builderr.CodeAmbiguousExpression},
		{"null complex member in constant", expr.Eq(expr.Path(actor, "Address"), expr.Const(testutil.Address{City: "x"})), builderr.CodeNullComplexTypeProperty},
		{"constant without query form", expr.Eq(expr.Path(movie, "Title"), expr.Const(func() {})), builderr.CodeUnsupportedExpression},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCompiler(t)
			_, err := c.Expression(newContext(NoParams), tt.node)
			require.Error(t, err)
			assert.True(t, builderr.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestMemo_SharedNodes(t *testing.T) {
	c := newCompiler(t)
	ctx := newContext(WithParams)

	name := expr.Const("A")
	tree := expr.Or(
		expr.Eq(expr.Path(movie, "Title"), name),
		expr.Eq(expr.Path(actor, "Name"), name),
	)

	first, err := c.Expression(ctx, tree)
	require.NoError(t, err)
	assert.Equal(t, `((movie.Title = $p0) OR (actor.Name = $p0))`, first)
	assert.Equal(t, 1, ctx.Params.(*Params).Len())

	again, err := c.Expression(ctx, tree)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, ctx.Params.(*Params).Len())
	assert.Positive(t, ctx.Cached())
}

func TestMemo_MatchesFreshContext(t *testing.T) {
	c := newCompiler(t)
	title := expr.Path(movie, "Title")
	tree := expr.And(
		expr.Method(title, expr.OwnerStrings, "Contains", expr.Const("Matrix")),
		expr.Ne(title, expr.Const(nil)),
	)

	warm := newContext(NoParams)
	_, err := c.Expression(warm, title)
	require.NoError(t, err)
	cached, err := c.Expression(warm, tree)
	require.NoError(t, err)

	fresh, err := c.Expression(newContext(NoParams), tree)
	require.NoError(t, err)
	assert.Equal(t, fresh, cached)
	assert.Equal(t, `((movie.Title CONTAINS "Matrix") AND movie.Title IS NOT NULL)`, fresh)
}

func TestErrorKeepsContextUsable(t *testing.T) {
	c := newCompiler(t)
	ctx := newContext(NoParams)

	_, err := c.Expression(ctx, expr.Path(movie, "Tagline"))
	require.Error(t, err)

	got, err := c.Expression(ctx, expr.Path(movie, "Title"))
	require.NoError(t, err)
	assert.Equal(t, "movie.Title", got)
}

func TestHandlers_Override(t *testing.T) {
	c := newCompiler(t)
	c.HandleCall(expr.OwnerStrings, "ToUpper", 1, function("upper"))

	var seen []string
	c.HandleKind(KindVar, func(x *Visit) Continuation {
		seen = append(seen, resolve.RootName(x.Node))
		return nil
	})

	got, err := c.Expression(newContext(NoParams),
		expr.Array(expr.Method(expr.Path(movie, "Title"), expr.OwnerStrings, "ToUpper"), actor))
	require.NoError(t, err)
	assert.Equal(t, `[upper(movie.Title), actor]`, got)
	assert.Equal(t, []string{"actor"}, seen)
}

func TestHandlers_ClassHandler(t *testing.T) {
	c := newCompiler(t)
	c.HandleClass(func(x *Visit) Continuation {
		m, ok := x.Node.(*expr.Member)
		if !ok || m.Name != "Tagline" {
			return nil
		}
		return func() (expr.Node, error) {
			if _, err := x.Visit(m.Target); err != nil {
				return nil, err
			}
			x.Emit(".tagline")
			return m, nil
		}
	})

	got, err := c.Expression(newContext(NoParams), expr.Path(movie, "Tagline"))
	require.NoError(t, err)
	assert.Equal(t, "movie.tagline", got)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConstant, KindOf(expr.Const(1)))
	assert.Equal(t, KindVar, KindOf(actor))
	assert.Equal(t, KindMember, KindOf(expr.Get(actor, "Name")))
	assert.Equal(t, KindCall, KindOf(expr.Cypher("count")))
	assert.Equal(t, KindLambda, KindOf(expr.Fun(expr.Const(1))))
	assert.Equal(t, KindListInit, KindOf(expr.Dict()))
}
