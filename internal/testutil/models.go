// Package testutil holds a small movie-graph schema and deterministic
// helpers shared by package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cypherq/internal/schema"
)

// Geo is a complex type nested inside Address.
type Geo struct {
	schema.Complex
	Lat float64
	Lon float64
}

// Address is a complex type whose JSON name differs from its member name.
type Address struct {
	schema.Complex
	City   string
	Street string `json:"street_name"`
	Geo    *Geo
}

// Person is the base node of Actor and Director.
type Person struct {
	schema.Node `neo4j:"Person"`
	Name        string `neo4j:"full_name"`
	Born        int
}

// Actor inherits Person's labels and members.
type Actor struct {
	schema.Node `neo4j:"Actor"`
	Person
	Address *Address `json:"NewAddressName"`
	Roles   []string
	Movies  []*Movie `neo4j:",rel=ACTED_IN"`
	Agent   *Agent   `neo4j:",fk=REPRESENTED_BY"`
}

// Director directs movies.
type Director struct {
	schema.Node `neo4j:"Director"`
	Person
	Movies []*Movie `neo4j:",inverse=DirectedBy"`
}

// Agent represents actors.
type Agent struct {
	schema.Node `neo4j:"Agent"`
	Name        string
	Clients     []*Actor `neo4j:",dir=in"`
}

// Movie is the central node of the schema.
type Movie struct {
	schema.Node `neo4j:"Movie"`
	Title       string
	Year        int
	Rating      float64
	Released    time.Time
	Actors      []*Actor `neo4j:",rel=ACTED_IN,dir=in"`
	DirectedBy  *Director
}

// ActedIn is the relationship between actors and movies.
type ActedIn struct {
	schema.Relationship `neo4j:"ACTED_IN"`
	Roles               []string
	Year                int
}

// NewRegistry returns a registry holding the movie schema.
func NewRegistry(t testing.TB) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	require.NoError(t, reg.Register(Actor{}, Movie{}, Director{}, Agent{}, ActedIn{}))
	return reg
}
