package resolve

import (
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/roach88/cypherq/internal/builderr"
	"github.com/roach88/cypherq/internal/expr"
	"github.com/roach88/cypherq/internal/schema"
)

// DefaultSeparator joins the wire names of a flattened member chain.
const DefaultSeparator = "_"

// Schema is the registry capability the resolver needs.
type Schema interface {
	EntityInfo(name string) (*schema.EntityTypeInfo, bool)
	IsComplex(name string) bool
	TypeNameOf(t reflect.Type) (string, bool)

	// Version changes whenever a declaration is published.
	Version() uint64
}

// Namer maps one member of a registered type to its wire name. ok=false
// defers to the next naming source.
type Namer interface {
	WireName(owner *schema.EntityTypeInfo, member *schema.MemberDecl) (name string, ok bool)
}

// NamerFunc adapts a function to Namer.
type NamerFunc func(owner *schema.EntityTypeInfo, member *schema.MemberDecl) (string, bool)

func (f NamerFunc) WireName(owner *schema.EntityTypeInfo, member *schema.MemberDecl) (string, bool) {
	return f(owner, member)
}

// TagNamer names members after the first element of a struct tag. Key
// defaults to schema.TagKey.
type TagNamer struct {
	Key string
}

func (n TagNamer) WireName(_ *schema.EntityTypeInfo, member *schema.MemberDecl) (string, bool) {
	key := n.Key
	if key == "" {
		key = schema.TagKey
	}
	raw, ok := member.Tag.Lookup(key)
	if !ok {
		return "", false
	}
	name, _, _ := strings.Cut(raw, ",")
	name = strings.TrimSpace(name)
	if name == "" || name == "-" {
		return "", false
	}
	return name, true
}

// Resolver maps member chains over registered types to flattened wire
// names. It is safe for concurrent use. Resolved names are cached until the
// schema publishes a new declaration.
type Resolver struct {
	schema     Schema
	arena      *Arena
	namer      Namer
	serializer Serializer
	sep        string

	wireMu      sync.RWMutex
	wire        map[MemberID]string
	wireVersion uint64

	discoverMu sync.Mutex
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithNamer installs a static naming policy consulted before declared wire
// hints and serializer discovery.
func WithNamer(n Namer) Option {
	return func(r *Resolver) { r.namer = n }
}

// WithSerializer enables wire-name discovery through s.
func WithSerializer(s Serializer) Option {
	return func(r *Resolver) { r.serializer = s }
}

// WithSeparator replaces DefaultSeparator.
func WithSeparator(sep string) Option {
	return func(r *Resolver) { r.sep = sep }
}

// WithArena shares an arena between resolvers. Wire names stay per
// resolver.
func WithArena(a *Arena) Option {
	return func(r *Resolver) { r.arena = a }
}

// New creates a resolver over s.
func New(s Schema, opts ...Option) *Resolver {
	r := &Resolver{schema: s, sep: DefaultSeparator, wire: make(map[MemberID]string)}
	for _, opt := range opts {
		opt(r)
	}
	if r.arena == nil {
		r.arena = NewArena()
	}
	return r
}

// Arena returns the member arena.
func (r *Resolver) Arena() *Arena { return r.arena }

// Separator returns the wire-name separator.
func (r *Resolver) Separator() string { return r.sep }

// Schema returns the registry the resolver reads.
func (r *Resolver) Schema() Schema { return r.schema }

// Member interns one step of a chain: member name looked up on the
// declaring type. Unregistered declaring types accept any member name with
// an unknown type. A registered type without the member is an
// AMBIGUOUS_EXPRESSION error.
func (r *Resolver) Member(parent MemberID, declaring, name string) (MemberID, error) {
	typ := ""
	if info, ok := r.schema.EntityInfo(schema.ElemOf(declaring)); ok && !strings.HasPrefix(declaring, "[]") {
		m, ok := info.Member(name)
		if !ok {
			return NoMember, builderr.New(builderr.CodeAmbiguousExpression, "no such member").
				WithType(info.Name).WithMember(name)
		}
		typ = m.Type
	}
	return r.arena.Intern(parent, declaring, name, typ), nil
}

// Traversal is the result of walking a member chain.
type Traversal struct {
	// Leaf is the last member step, NoMember when no step was consumed.
	Leaf MemberID

	// Type is the tracked type after the last consumed step.
	Type string

	// Consumed counts the steps taken from the input.
	Consumed int

	// Escaped is set when an escape marker was among the consumed steps.
	Escaped bool
}

// Traverse walks steps from rootType. Member steps extend the chain, cast
// steps update the tracked type and escape steps mark the chain as
// literal. Traversal stops at the first other node.
func (r *Resolver) Traverse(rootType string, steps []expr.Node) (Traversal, error) {
	t := Traversal{Leaf: NoMember, Type: rootType}
	for _, step := range steps {
		switch s := step.(type) {
		case *expr.Member:
			id, err := r.Member(t.Leaf, t.Type, s.Name)
			if err != nil {
				return t, err
			}
			info, _ := r.arena.Get(id)
			t.Leaf, t.Type = id, info.Type
		case *expr.Unary:
			if s.Op != expr.OpConvert {
				return t, nil
			}
			if s.Type != "" {
				t.Type = s.Type
			}
		case *expr.Escape:
			t.Escaped = true
		default:
			return t, nil
		}
		t.Consumed++
	}
	return t, nil
}

// SplitPath matches the trailing run of member, cast and escape nodes of n
// backwards to a chain root: a variable, a lambda parameter or a constant.
// steps are returned root to leaf. ok is false when the run ends anywhere
// else.
func SplitPath(n expr.Node) (root expr.Node, steps []expr.Node, ok bool) {
	for {
		switch t := n.(type) {
		case *expr.Var, *expr.Parameter, *expr.Constant:
			for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
				steps[i], steps[j] = steps[j], steps[i]
			}
			return n, steps, true
		case *expr.Member:
			steps = append(steps, t)
			n = t.Target
		case *expr.Unary:
			if t.Op != expr.OpConvert {
				return nil, nil, false
			}
			steps = append(steps, t)
			n = t.Operand
		case *expr.Escape:
			steps = append(steps, t)
			n = t.Operand
		default:
			return nil, nil, false
		}
	}
}

// RootName is the query-text identifier of a chain root.
func RootName(root expr.Node) string {
	switch t := root.(type) {
	case *expr.Var:
		return t.Name
	case *expr.Parameter:
		return t.Name
	}
	return ""
}

// TypeOf returns the registered type name of n when it can be told
// statically, or "".
func (r *Resolver) TypeOf(n expr.Node) string {
	switch t := n.(type) {
	case *expr.Var:
		return t.Type
	case *expr.Parameter:
		return t.Type
	case *expr.Constant:
		if t.Type != "" {
			return t.Type
		}
		if t.Value == nil {
			return ""
		}
		name, _ := r.schema.TypeNameOf(reflect.TypeOf(t.Value))
		return name
	case *expr.Escape:
		return r.TypeOf(t.Operand)
	case *expr.Unary:
		if t.Op == expr.OpConvert && t.Type != "" {
			return t.Type
		}
		return r.TypeOf(t.Operand)
	case *expr.Member:
		owner := r.TypeOf(t.Target)
		info, ok := r.schema.EntityInfo(owner)
		if !ok {
			return ""
		}
		if m, ok := info.Member(t.Name); ok {
			return m.Type
		}
	case *expr.MemberInit:
		return t.Type
	}
	return ""
}

// WireName returns the flattened wire name of the chain ending at id:
// every step's wire name joined with the separator. Escaped chains keep
// the source names joined with ".".
func (r *Resolver) WireName(id MemberID, escaped bool) string {
	chain := r.arena.Chain(id)
	if escaped {
		return sourcePath(chain, ".")
	}
	version := r.schema.Version()
	if wire, ok := r.cachedWire(id, version); ok {
		return wire
	}
	parts := make([]string, len(chain))
	for i, m := range chain {
		parts[i] = r.stepName(m)
	}
	wire := strings.Join(parts, r.sep)

	r.wireMu.Lock()
	defer r.wireMu.Unlock()
	switch {
	case version < r.wireVersion:
		return wire
	case version > r.wireVersion:
		clear(r.wire)
		r.wireVersion = version
	}
	r.wire[id] = wire
	return wire
}

// cachedWire returns the wire name of id computed under schema version.
func (r *Resolver) cachedWire(id MemberID, version uint64) (string, bool) {
	r.wireMu.RLock()
	defer r.wireMu.RUnlock()
	if r.wireVersion != version {
		return "", false
	}
	wire, ok := r.wire[id]
	return wire, ok
}

// stepName resolves the wire name of a single member. Precedence: the
// configured Namer, a declared wire hint, serializer discovery, the
// member name.
func (r *Resolver) stepName(m MemberInfo) string {
	info, ok := r.schema.EntityInfo(m.Declaring)
	if !ok {
		return m.Name
	}
	decl, ok := info.Member(m.Name)
	if !ok {
		return m.Name
	}
	if r.namer != nil {
		if name, ok := r.namer.WireName(info, decl); ok {
			return name
		}
	}
	if decl.Wire != "" {
		return decl.Wire
	}
	if r.serializer != nil {
		if name, ok := r.discovered(info, decl.Name); ok {
			return name
		}
	}
	return m.Name
}

// discovered returns the serializer-produced name of member, running
// discovery for the type at most once per serializer.
func (r *Resolver) discovered(info *schema.EntityTypeInfo, member string) (string, bool) {
	key := r.serializer.Name()
	names, ok := info.CachedWireNames(key)
	if !ok {
		r.discoverMu.Lock()
		names, ok = info.CachedWireNames(key)
		if !ok {
			found, err := discover(r.serializer, info)
			if err != nil {
				slog.Warn("wire-name discovery failed",
					"type", info.Name,
					"serializer", key,
					"error", err,
				)
				found = map[string]string{}
			}
			info.StoreWireNames(key, found)
			names = found
			slog.Debug("discovered wire names",
				"type", info.Name,
				"serializer", key,
				"names", len(found),
			)
		}
		r.discoverMu.Unlock()
	}
	name, ok := names[member]
	return name, ok
}

// Path resolves a member-access chain rooted at a variable, parameter or
// constant to its rendered form "root.Wire_Path". Nodes that do not form
// such a chain are an AMBIGUOUS_EXPRESSION error.
func (r *Resolver) Path(n expr.Node) (string, error) {
	root, steps, ok := SplitPath(n)
	if !ok || len(steps) == 0 {
		return "", builderr.New(builderr.CodeAmbiguousExpression,
			"cannot match member path %s to a variable", expr.Format(n))
	}
	name := RootName(root)
	if name == "" {
		return "", builderr.New(builderr.CodeAmbiguousExpression,
			"member path %s has no query-time root", expr.Format(n))
	}
	t, err := r.Traverse(r.TypeOf(root), steps)
	if err != nil {
		return "", err
	}
	if t.Leaf == NoMember {
		return name, nil
	}
	return name + "." + r.WireName(t.Leaf, t.Escaped), nil
}
