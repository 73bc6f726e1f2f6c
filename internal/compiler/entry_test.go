package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cypherq/internal/builderr"
	"github.com/roach88/cypherq/internal/expr"
	"github.com/roach88/cypherq/internal/resolve"
	"github.com/roach88/cypherq/internal/testutil"
	"github.com/roach88/cypherq/internal/value"
)

func TestProjection(t *testing.T) {
	tests := []struct {
		name string
		opts []resolve.Option
		node expr.Node
		want string
	}{
		{
			name: "variable",
			node: actor,
			want: "actor",
		},
		{
			name: "scalar member",
			node: expr.Path(movie, "Title"),
			want: "movie.Title AS Title",
		},
		{
			name: "nested complex member",
			node: expr.Path(actor, "Address", "City"),
			want: "actor.Address_City AS Address_City",
		},
		{
			name: "complex member explodes",
			opts: []resolve.Option{resolve.WithSerializer(resolve.JSONSerializer{})},
			node: expr.Path(actor, "Address"),
			want: "actor.NewAddressName_City AS NewAddressName_City, " +
				"actor.NewAddressName_street_name AS NewAddressName_street_name, " +
				"actor.NewAddressName_Geo_Lat AS NewAddressName_Geo_Lat, " +
				"actor.NewAddressName_Geo_Lon AS NewAddressName_Geo_Lon",
		},
		{
			name: "object with aliases",
			node: expr.Obj(
				expr.Bind("title", expr.Path(movie, "Title")),
				expr.Bind("n", expr.Cypher("count")),
			),
			want: "movie.Title AS title, count(*) AS n",
		},
		{
			name: "aliased complex member",
			node: expr.Obj(expr.Bind("home", expr.Path(actor, "Address", "Geo"))),
			want: "actor.Address_Geo_Lat AS home_Lat, actor.Address_Geo_Lon AS home_Lon",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCompiler(t, tt.opts...)
			got, err := c.Projection(newContext(NoParams), tt.node)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestProjection_Invalid(t *testing.T) {
	c := newCompiler(t)

	for _, n := range []expr.Node{
		expr.Add(expr.Const(1), expr.Path(movie, "Year")),
		expr.Const(1),
		expr.Cypher("count"),
	} {
		_, err := c.Projection(newContext(NoParams), n)
		require.Error(t, err)
		assert.True(t, builderr.Is(err, builderr.CodeInvalidProjection), "got %v", err)
	}
}

func TestReturnAndWith(t *testing.T) {
	c := newCompiler(t)
	ctx := newContext(NoParams)

	ret, err := c.Return(ctx, expr.Path(movie, "Title"))
	require.NoError(t, err)
	assert.Equal(t, "RETURN movie.Title AS Title", ret)

	with, err := c.With(ctx, expr.Obj(expr.Bind("m", movie)))
	require.NoError(t, err)
	assert.Equal(t, "WITH movie AS m", with)
}

func TestSet(t *testing.T) {
	tests := []struct {
		name        string
		strategy    Strategy
		assignments []Assignment
		want        string
	}{
		{
			name: "object onto a variable",
			assignments: []Assignment{{
				Target: movie,
				Value:  expr.Obj(expr.Bind("Title", expr.Const("X")), expr.Bind("Year", expr.Const(1999))),
			}},
			want: `SET movie.Title = "X", movie.Year = 1999`,
		},
		{
			name:     "object onto a variable with parameters",
			strategy: WithParams,
			assignments: []Assignment{{
				Target: movie,
				Value:  expr.Obj(expr.Bind("Title", expr.Const("X")), expr.Bind("Year", expr.Path(movie, "Year"))),
			}},
			want: `SET movie.Title = $p0, movie.Year = movie.Year`,
		},
		{
			name: "complex member",
			assignments: []Assignment{{
				Target: expr.Path(actor, "Address"),
				Value: expr.Init("Address",
					expr.Bind("City", expr.Const("Oslo")),
					expr.Bind("Street", expr.Const("Main")),
					expr.Bind("Geo", expr.Const(testutil.Geo{Lat: 1, Lon: 2})),
				),
			}},
			want: `SET actor.Address_City = "Oslo", actor.Address_Street = "Main", actor.Address_Geo_Lat = 1.0, actor.Address_Geo_Lon = 2.0`,
		},
		{
			name: "scalar member",
			assignments: []Assignment{
				{Target: expr.Path(movie, "Year"), Value: expr.Add(expr.Path(movie, "Year"), expr.Const(1))},
				{Target: expr.Path(movie, "Rating"), Value: expr.Const(9.5)},
			},
			want: `SET movie.Year = (movie.Year + 1), movie.Rating = 9.5`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCompiler(t)
			got, err := c.Set(newContext(tt.strategy), tt.assignments...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSet_Errors(t *testing.T) {
	c := newCompiler(t)

	_, err := c.Set(newContext(NoParams), Assignment{Target: expr.Const(1), Value: expr.Const(2)})
	assert.True(t, builderr.Is(err, builderr.CodeAmbiguousExpression), "got %v", err)

	_, err = c.Set(newContext(NoParams), Assignment{
		Target: expr.Path(actor, "Address"),
		Value:  expr.Init("Address", expr.Bind("Geo", expr.Const(nil))),
	})
	assert.True(t, builderr.Is(err, builderr.CodeNullComplexTypeProperty), "got %v", err)
}

func TestRemove(t *testing.T) {
	c := newCompiler(t)
	got, err := c.Remove(newContext(NoParams), expr.Path(actor, "Address", "Geo"), expr.Path(movie, "Rating"))
	require.NoError(t, err)
	assert.Equal(t, "REMOVE actor.Address_Geo_Lat, actor.Address_Geo_Lon, movie.Rating", got)

	got, err = c.Remove(newContext(NoParams))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPropertyList(t *testing.T) {
	c := newCompiler(t)
	ctx := newContext(NoParams)

	got, err := c.PropertyList(ctx, expr.Obj(
		expr.Bind("a", expr.Path(movie, "Title")),
		expr.Bind("b", expr.Path(movie, "Year")),
	))
	require.NoError(t, err)
	assert.Equal(t, "movie.Title, movie.Year", got)

	got, err = c.PropertyList(ctx, expr.Path(actor, "Address", "Geo"))
	require.NoError(t, err)
	assert.Equal(t, "actor.Address_Geo_Lat, actor.Address_Geo_Lon", got)

	_, err = c.PropertyList(ctx, expr.Cypher("count"))
	assert.True(t, builderr.Is(err, builderr.CodeAmbiguousExpression), "got %v", err)
}

func TestOrderBy(t *testing.T) {
	c := newCompiler(t)
	got, err := c.OrderBy(newContext(NoParams),
		Order{Expr: expr.Path(movie, "Year"), Desc: true},
		Order{Expr: expr.Path(movie, "Title")},
	)
	require.NoError(t, err)
	assert.Equal(t, "ORDER BY movie.Year DESC, movie.Title", got)
}

func TestRenderProperties(t *testing.T) {
	m := expr.Param("m", "Movie")

	tests := []struct {
		name     string
		strategy Strategy
		source   expr.Node
		want     string
		params   map[string]any
	}{
		{
			name:     "inline literals",
			strategy: NoParams,
			source:   expr.Obj(expr.Bind("Title", expr.Const("X")), expr.Bind("Year", expr.Const(2017))),
			want:     `{ Title: "X", Year: 2017 }`,
			params:   map[string]any{},
		},
		{
			name:     "one parameter for the whole map",
			strategy: WithParams,
			source:   expr.Obj(expr.Bind("Title", expr.Const("X")), expr.Bind("Year", expr.Const(2017))),
			want:     `$p0`,
			params:   map[string]any{"p0": map[string]any{"Title": "X", "Year": int64(2017)}},
		},
		{
			name:     "parameter per value",
			strategy: WithParamsForValues,
			source:   expr.Obj(expr.Bind("Title", expr.Const("X")), expr.Bind("Year", expr.Const(2017))),
			want:     `{ Title: $p0.Title, Year: $p0.Year }`,
			params:   map[string]any{"p0": map[string]any{"Title": "X", "Year": int64(2017)}},
		},
		{
			name:     "symbolic value downgrades",
			strategy: WithParams,
			source:   expr.Obj(expr.Bind("Title", expr.Const("X")), expr.Bind("Year", expr.Path(m, "Year"))),
			want:     `{ Title: $p0.Title, Year: m.Year }`,
			params:   map[string]any{"p0": map[string]any{"Title": "X"}},
		},
		{
			name:     "folded struct",
			strategy: NoParams,
			source:   expr.Const(testutil.Movie{Title: "X", Year: 2017, Rating: 8}),
			want:     `{ Title: "X", Year: 2017, Rating: 8.0, Released: datetime("0001-01-01T00:00:00Z") }`,
			params:   map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCompiler(t)
			ctx := newContext(tt.strategy)

			props, err := c.Properties(ctx, "Movie", tt.source)
			require.NoError(t, err)
			got, err := c.RenderProperties(ctx, props)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.params, ctx.Statement(got).Params)
		})
	}
}

func TestProperties_Sources(t *testing.T) {
	c := newCompiler(t, resolve.WithSerializer(resolve.JSONSerializer{}))
	ctx := newContext(NoParams)

	props, err := c.Properties(ctx, "Actor", expr.Obj(
		expr.Bind("Address", expr.Path(expr.Variable("other", "Actor"), "Address")),
	))
	require.NoError(t, err)

	names := make([]string, len(props))
	for i, p := range props {
		names[i] = p.Name
		assert.False(t, p.Folded)
	}
	assert.Equal(t, []string{
		"NewAddressName_City",
		"NewAddressName_street_name",
		"NewAddressName_Geo_Lat",
		"NewAddressName_Geo_Lon",
	}, names)
	assert.Equal(t, "other.NewAddressName_City", props[0].Text)

	props, err = c.Properties(ctx, "", expr.Const(map[string]any{"b": 2, "a": 1}))
	require.NoError(t, err)
	require.Len(t, props, 2)
	assert.Equal(t, "a", props[0].Name)

	_, err = c.Properties(ctx, "Movie", movie)
	assert.True(t, builderr.Is(err, builderr.CodeUnsupportedExpression), "got %v", err)

	empty, err := c.RenderProperties(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	assert.Equal(t, value.Object{{Key: "a", Value: 1}, {Key: "b", Value: 2}},
		sortedEntries(map[string]any{"b": 2, "a": 1}))
}
