package pattern

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/roach88/cypherq/internal/builderr"
	"github.com/roach88/cypherq/internal/compiler"
	"github.com/roach88/cypherq/internal/schema"
)

// Schema is the registry capability the builder needs.
type Schema interface {
	EntityInfo(name string) (*schema.EntityTypeInfo, bool)
	IsAssignable(declared, concrete string) bool
}

// TypeNamer styles a relationship type inferred from a key or inverse
// member name. Explicit rel= names are never styled.
type TypeNamer func(name string) string

// AsDeclared keeps inferred names unchanged.
func AsDeclared(name string) string { return name }

// UpperSnake styles names the way Cypher relationship types are usually
// written: DirectedBy becomes DIRECTED_BY. Names already in upper case
// are kept.
func UpperSnake(name string) string {
	if name == strings.ToUpper(name) {
		return name
	}
	return strings.ToUpper(inflect.Underscore(name))
}

// Builder assembles pattern text. Property maps and constraints render
// through the compiler, so a Builder shares the compiler's resolver and
// wire names.
type Builder struct {
	c      *compiler.Compiler
	schema Schema
	namer  TypeNamer
}

// Option configures a Builder.
type Option func(*Builder)

// WithTypeNamer sets the style of inferred relationship types. The
// default is AsDeclared.
func WithTypeNamer(n TypeNamer) Option {
	return func(b *Builder) { b.namer = n }
}

// NewBuilder creates a builder.
func NewBuilder(c *compiler.Compiler, s Schema, opts ...Option) *Builder {
	b := &Builder{c: c, schema: s, namer: AsDeclared}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Navigate builds the pattern for following member from the endpoint.
// The relationship type and direction come from the member declaration
// and the far endpoint is typed with the member's element type.
func (b *Builder) Navigate(from *NodeSpec, member, relVar, toVar string) (*Pattern, error) {
	if from == nil || from.Type == "" {
		return nil, builderr.New(builderr.CodeAmbiguousExpression,
			"cannot navigate %s from an untyped endpoint", member)
	}
	owner, ok := b.schema.EntityInfo(from.Type)
	if !ok {
		return nil, builderr.New(builderr.CodeUnknownType, "not registered").WithType(from.Type)
	}
	m, ok := owner.Member(member)
	if !ok || !m.Navigation {
		return nil, builderr.New(builderr.CodeAmbiguousExpression, "not a navigation member").
			WithType(owner.Name).WithMember(member)
	}

	r := &RelSpec{Var: relVar, Direction: m.Direction, inferred: b.inferTypes(m)}
	to := Node(toVar, m.Elem())
	slog.Debug("navigated",
		"type", owner.Name,
		"member", member,
		"rel", r.inferred,
		"dir", r.Direction,
	)
	return &Pattern{A: from, R: r, B: to}, nil
}

// inferTypes returns the relationship type of a navigation member. An
// explicit name wins over a key name, which wins over an inverse name.
func (b *Builder) inferTypes(m *schema.MemberDecl) []string {
	switch {
	case m.Rel != "":
		return []string{m.Rel}
	case m.Key != "":
		return []string{b.namer(m.Key)}
	case m.Inverse != "":
		return []string{b.namer(m.Inverse)}
	}
	if info, ok := b.schema.EntityInfo(m.Elem()); ok && info.Kind == schema.KindRelationship {
		return info.Labels
	}
	return nil
}

// labels finalizes the labels of an endpoint.
func (b *Builder) labels(n *NodeSpec) ([]string, error) {
	if n.Declared != "" && n.Type != n.Declared && !b.schema.IsAssignable(n.Declared, n.Type) {
		return nil, builderr.New(builderr.CodeUnassignableType,
			"cannot narrow %s to %s", n.Declared, n.Type).WithType(n.Type)
	}
	var inferred []string
	if n.Type != "" {
		info, ok := b.schema.EntityInfo(n.Type)
		if !ok {
			return nil, builderr.New(builderr.CodeUnknownType, "not registered").WithType(n.Type)
		}
		inferred = info.Labels
	}
	return merge(inferred, n.Labels, n.ReplaceLabels), nil
}

// relTypes finalizes the types of a relationship.
func (b *Builder) relTypes(r *RelSpec) ([]string, error) {
	inferred := r.inferred
	if len(inferred) == 0 && r.Type != "" {
		info, ok := b.schema.EntityInfo(r.Type)
		if !ok {
			return nil, builderr.New(builderr.CodeUnknownType, "not registered").WithType(r.Type)
		}
		inferred = info.Labels
	}
	return merge(inferred, r.Types, r.ReplaceTypes), nil
}

func merge(inferred, user []string, replace bool) []string {
	var out []string
	if !replace {
		out = append(out, inferred...)
	}
	for _, s := range user {
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
