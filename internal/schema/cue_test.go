package schema

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cypherq/internal/builderr"
)

const movieSchema = `
complex: Address: members: {
	City:   "string"
	Street: {type: "string", wire: "street_name"}
}

entity: Person: members: Name: "string"

entity: Actor: {
	labels: ["Actor"]
	base:   "Person"
	members: {
		Address: {type: "Address", wire: "NewAddressName", pointer: true}
		Roles:   "[]string"
		Movies:  {type: "[]Movie", rel: "ACTED_IN"}
	}
}

entity: Movie: members: {
	Title:  "string"
	Year:   "int"
	Actors: {type: "[]Actor", inverse: "Movies", dir: "in"}
}

relationship: ActedIn: {
	type: "ACTED_IN"
	members: Roles: "[]string"
}
`

func TestDeclareCUE(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(movieSchema)

	reg := NewRegistry()
	names, err := DeclareCUE(reg, v)
	require.NoError(t, err)
	assert.Equal(t, []string{"Address", "Person", "Actor", "Movie", "ActedIn"}, names)

	actor, ok := reg.EntityInfo("Actor")
	require.True(t, ok)
	assert.Equal(t, []string{"Actor", "Person"}, actor.Labels)
	require.Len(t, actor.Members, 4)
	assert.Equal(t, "Name", actor.Members[0].Name, "base members are inherited first")

	addr, _ := actor.Member("Address")
	assert.True(t, addr.Complex)
	assert.True(t, addr.Pointer)
	assert.Equal(t, "NewAddressName", addr.Wire)
	assert.Nil(t, addr.Index)

	movies, _ := actor.Member("Movies")
	assert.True(t, movies.Navigation)
	assert.Equal(t, "ACTED_IN", movies.Rel)

	movie, _ := reg.EntityInfo("Movie")
	actors, _ := movie.Member("Actors")
	assert.Equal(t, Incoming, actors.Direction)
	assert.Equal(t, "Movies", actors.Inverse)

	rel, _ := reg.EntityInfo("ActedIn")
	assert.Equal(t, KindRelationship, rel.Kind)
	assert.Equal(t, []string{"ACTED_IN"}, rel.Labels)

	person, _ := reg.EntityInfo("Person")
	assert.Equal(t, []string{"Person"}, person.Labels)
	assert.True(t, reg.IsAssignable("Person", "Actor"))
}

func TestDeclareCUE_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code builderr.Code
	}{
		{
			name: "unknown type",
			src:  `entity: Movie: members: Studio: "Studio"`,
			code: builderr.CodeUnknownType,
		},
		{
			name: "cyclic complex",
			src: `complex: A: members: B: "B"
complex: B: members: A: "A"`,
			code: builderr.CodeCyclicComplexType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := cuecontext.New().CompileString(tt.src)
			_, err := DeclareCUE(NewRegistry(), v)
			require.Error(t, err)
			assert.True(t, builderr.Is(err, tt.code), err.Error())
		})
	}
}

func TestDeclareCUE_BadMember(t *testing.T) {
	v := cuecontext.New().CompileString(`entity: Movie: members: Year: 2017`)
	_, err := DeclareCUE(NewRegistry(), v)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "members.Year", loadErr.Field)
}

func TestDeclareCUE_Empty(t *testing.T) {
	v := cuecontext.New().CompileString(`other: 1`)
	_, err := DeclareCUE(NewRegistry(), v)
	assert.Error(t, err)
}

func TestLoadCUE(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "movies.cue"), []byte(movieSchema), 0644)
	require.NoError(t, err)

	reg := NewRegistry()
	names, err := LoadCUE(reg, tmpDir)
	require.NoError(t, err)
	assert.Len(t, names, 5)
	assert.True(t, reg.IsComplex("Address"))
}

func TestLoadCUE_MissingDir(t *testing.T) {
	_, err := LoadCUE(NewRegistry(), filepath.Join(t.TempDir(), "nope"))

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "dir", loadErr.Field)
}
