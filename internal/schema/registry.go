package schema

import (
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/cypherq/internal/builderr"
)

// Registry holds the type records of one application.
//
// Reads are lock-free for callers holding a record: records are immutable
// once published and extension publishes a new record under the same name.
// Concurrent first-time registration of the same Go type is collapsed by a
// singleflight group.
type Registry struct {
	mu    sync.RWMutex
	group singleflight.Group
	types map[string]*EntityTypeInfo
	byGo  map[reflect.Type]string

	version atomic.Uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]*EntityTypeInfo),
		byGo:  make(map[reflect.Type]string),
	}
}

// EntityInfo returns the record registered under name.
func (r *Registry) EntityInfo(name string) (*EntityTypeInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.types[name]
	return info, ok
}

// Lookup is EntityInfo returning an UNKNOWN_TYPE error for missing names.
func (r *Registry) Lookup(name string) (*EntityTypeInfo, error) {
	info, ok := r.EntityInfo(name)
	if !ok {
		return nil, builderr.New(builderr.CodeUnknownType, "type is not registered").WithType(name)
	}
	return info, nil
}

// IsComplex reports whether name is a registered complex type. List type
// names are classified by their element.
func (r *Registry) IsComplex(name string) bool {
	info, ok := r.EntityInfo(ElemOf(name))
	return ok && info.Kind == KindComplex
}

// TypeNameOf returns the registered name for a Go type, dereferencing
// pointers.
func (r *Registry) TypeNameOf(t reflect.Type) (string, bool) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byGo[t]
	return name, ok
}

// IsAssignable reports whether a value of type concrete may stand where
// declared is expected: the names are equal or declared is an ancestor of
// concrete. An empty declared type accepts anything.
func (r *Registry) IsAssignable(declared, concrete string) bool {
	if declared == "" || declared == concrete {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	for name := concrete; name != "" && !seen[name]; {
		seen[name] = true
		info, ok := r.types[name]
		if !ok {
			return false
		}
		if info.Base == declared {
			return true
		}
		name = info.Base
	}
	return false
}

// Version counts the declarations published so far. Caches derived from
// records compare it to detect extension.
func (r *Registry) Version() uint64 {
	return r.version.Load()
}

// Names returns every registered type name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Declare registers or extends records.
//
// Members are matched by name; new members are appended, existing ones are
// kept and only pick up a wire hint they lacked. Types deriving from an
// extended type are re-published with its new labels and members.
//
// Member types are linked against the registry plus the batch: a
// non-scalar type that resolves nowhere fails with UNKNOWN_TYPE, and complex
// types that reach themselves fail with CYCLIC_COMPLEX_TYPE. Nothing is
// published when an error is returned.
func (r *Registry) Declare(infos ...*EntityTypeInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	staged := make(map[string]*EntityTypeInfo, len(r.types)+len(infos))
	for name, info := range r.types {
		staged[name] = info
	}

	changed := make([]string, 0, len(infos))
	for _, in := range infos {
		if in == nil || in.Name == "" {
			return fmt.Errorf("declare: type name is required")
		}
		merged, err := mergeInfo(staged[in.Name], in)
		if err != nil {
			return err
		}
		staged[in.Name] = merged
		if !slices.Contains(changed, in.Name) {
			changed = append(changed, in.Name)
		}
	}

	for _, name := range derivedFrom(staged, changed) {
		staged[name], _ = mergeInfo(staged[name], &EntityTypeInfo{Name: name, Kind: staged[name].Kind})
		changed = append(changed, name)
	}

	for _, name := range changed {
		if err := linkMembers(staged, staged[name]); err != nil {
			return err
		}
	}
	labels := make(map[string][]string)
	for _, name := range changed {
		resolved, err := resolveLabels(staged, name, labels, nil)
		if err != nil {
			return err
		}
		staged[name].Labels = resolved
	}
	// Bases first, so a derived type sees members its base just inherited.
	slices.SortStableFunc(changed, func(a, b string) int {
		return depth(staged, a) - depth(staged, b)
	})
	for _, name := range changed {
		inheritMembers(staged, staged[name])
	}

	if err := checkComplexCycles(staged); err != nil {
		return err
	}

	for _, name := range changed {
		info := staged[name]
		r.types[name] = info
		if info.GoType != nil {
			r.byGo[info.GoType] = name
		}
		slog.Info("registered type",
			"type", name,
			"kind", info.Kind.String(),
			"members", len(info.Members),
			"labels", strings.Join(info.Labels, ":"),
		)
	}
	r.version.Add(1)
	return nil
}

// mergeInfo builds the record published for in, extending prev if present.
// Member declarations are copied so link flags never touch caller data.
func mergeInfo(prev, in *EntityTypeInfo) (*EntityTypeInfo, error) {
	out := &EntityTypeInfo{
		Name:   in.Name,
		Kind:   in.Kind,
		GoType: in.GoType,
		Base:   in.Base,
		own:    slices.Clone(in.Labels),
	}
	if prev != nil {
		if prev.Kind != in.Kind {
			return nil, fmt.Errorf("declare %s: kind %s conflicts with registered kind %s", in.Name, in.Kind, prev.Kind)
		}
		if out.GoType == nil {
			out.GoType = prev.GoType
		}
		if out.Base == "" {
			out.Base = prev.Base
		}
		for _, l := range prev.own {
			if !slices.Contains(out.own, l) {
				out.own = append(out.own, l)
			}
		}
		for _, m := range prev.Members {
			c := *m
			out.Members = append(out.Members, &c)
		}
	}
	added := false
	for _, m := range in.Members {
		if existing, ok := out.Member(m.Name); ok {
			if existing.Wire == "" && m.Wire != "" {
				existing.Wire = m.Wire
			}
			continue
		}
		c := *m
		c.List = strings.HasPrefix(c.Type, "[]")
		out.Members = append(out.Members, &c)
		added = true
	}
	if prev != nil && !added && out.Base == prev.Base {
		prev.wireMu.Lock()
		for serializer, names := range prev.wire {
			if out.wire == nil {
				out.wire = make(map[string]map[string]string, len(prev.wire))
			}
			out.wire[serializer] = maps.Clone(names)
		}
		prev.wireMu.Unlock()
	}
	if len(out.own) == 0 && out.Kind.IsEntity() {
		out.own = []string{out.Name}
	}
	out.Labels = slices.Clone(out.own)
	return out, nil
}

// derivedFrom returns the staged types outside changed whose base chain
// reaches a changed type, sorted by name.
func derivedFrom(staged map[string]*EntityTypeInfo, changed []string) []string {
	var out []string
	for name, info := range staged {
		if slices.Contains(changed, name) {
			continue
		}
		seen := map[string]bool{name: true}
		for base := info.Base; base != "" && !seen[base]; {
			if slices.Contains(changed, base) {
				out = append(out, name)
				break
			}
			seen[base] = true
			b, ok := staged[base]
			if !ok {
				break
			}
			base = b.Base
		}
	}
	sort.Strings(out)
	return out
}

// depth counts the bases above name.
func depth(staged map[string]*EntityTypeInfo, name string) int {
	n := 0
	seen := map[string]bool{}
	for info, ok := staged[name]; ok && info.Base != "" && !seen[info.Base]; info, ok = staged[info.Base] {
		seen[info.Base] = true
		n++
	}
	return n
}

func linkMembers(staged map[string]*EntityTypeInfo, info *EntityTypeInfo) error {
	for _, m := range info.Members {
		elem := m.Elem()
		if m.Type == "" {
			return builderr.New(builderr.CodeUnknownType, "member has no type").WithType(info.Name).WithMember(m.Name)
		}
		if IsScalarName(elem) {
			m.Complex, m.Navigation = false, false
			continue
		}
		target, ok := staged[elem]
		if !ok {
			return builderr.New(builderr.CodeUnknownType, "member type %q is not registered", elem).
				WithType(info.Name).WithMember(m.Name)
		}
		m.Complex = target.Kind == KindComplex
		m.Navigation = target.Kind.IsEntity()
	}
	if info.Base != "" {
		base, ok := staged[info.Base]
		if !ok {
			return builderr.New(builderr.CodeUnknownType, "base type %q is not registered", info.Base).WithType(info.Name)
		}
		if base.Kind != info.Kind {
			return fmt.Errorf("declare %s: base %s is a %s, not a %s", info.Name, base.Name, base.Kind, info.Kind)
		}
	}
	return nil
}

// resolveLabels returns own labels followed by inherited ones.
func resolveLabels(staged map[string]*EntityTypeInfo, name string, memo map[string][]string, stack []string) ([]string, error) {
	if got, ok := memo[name]; ok {
		return got, nil
	}
	if slices.Contains(stack, name) {
		return nil, fmt.Errorf("declare %s: inheritance cycle %s", name, strings.Join(append(stack, name), " -> "))
	}
	info := staged[name]
	labels := slices.Clone(info.own)
	if info.Base != "" {
		inherited, err := resolveLabels(staged, info.Base, memo, append(stack, name))
		if err != nil {
			return nil, err
		}
		for _, l := range inherited {
			if !slices.Contains(labels, l) {
				labels = append(labels, l)
			}
		}
	}
	memo[name] = labels
	return labels, nil
}

// inheritMembers prepends base members the type does not declare itself.
// Struct-tag registration already promotes embedded fields, so this only
// adds members for declarations that name a base without repeating it.
func inheritMembers(staged map[string]*EntityTypeInfo, info *EntityTypeInfo) {
	var inherited []*MemberDecl
	seen := make(map[string]bool)
	for base := info.Base; base != "" && !seen[base]; {
		seen[base] = true
		b, ok := staged[base]
		if !ok {
			break
		}
		for _, m := range b.Members {
			if _, own := info.Member(m.Name); own {
				continue
			}
			if slices.ContainsFunc(inherited, func(x *MemberDecl) bool { return x.Name == m.Name }) {
				continue
			}
			c := *m
			c.Index = nil
			inherited = append(inherited, &c)
		}
		base = b.Base
	}
	if len(inherited) > 0 {
		info.Members = append(inherited, info.Members...)
		info.wire = nil
	}
}
