package resolve

import (
	"fmt"
	"reflect"
	"time"

	"github.com/roach88/cypherq/internal/builderr"
	"github.com/roach88/cypherq/internal/expr"
	"github.com/roach88/cypherq/internal/schema"
	"github.com/roach88/cypherq/internal/value"
)

// Explode expands a complex-typed node into member-access nodes for each
// scalar leaf, in declaration order. paths[i] lists the member names from
// n to leaves[i]. Nodes of any other type explode to themselves with an
// empty path. typeName may be empty, in which case TypeOf(n) is used.
func (r *Resolver) Explode(n expr.Node, typeName string) (leaves []expr.Node, paths [][]string, err error) {
	if typeName == "" {
		typeName = r.TypeOf(n)
	}
	if !r.schema.IsComplex(typeName) || schema.ElemOf(typeName) != typeName {
		return []expr.Node{n}, [][]string{nil}, nil
	}
	err = r.explode(n, typeName, nil, map[string]bool{}, &leaves, &paths)
	return leaves, paths, err
}

func (r *Resolver) explode(n expr.Node, typeName string, prefix []string, visiting map[string]bool, leaves *[]expr.Node, paths *[][]string) error {
	if visiting[typeName] {
		return builderr.New(builderr.CodeCyclicComplexType, "complex type reaches itself while exploding").WithType(typeName)
	}
	info, ok := r.schema.EntityInfo(typeName)
	if !ok {
		return builderr.New(builderr.CodeUnknownType, "type is not registered").WithType(typeName)
	}
	visiting[typeName] = true
	defer delete(visiting, typeName)

	for _, m := range info.Members {
		if m.Navigation {
			continue
		}
		path := append(append([]string(nil), prefix...), m.Name)
		leaf := expr.Get(n, m.Name)
		if m.Complex && !m.List {
			if err := r.explode(leaf, m.Type, path, visiting, leaves, paths); err != nil {
				return err
			}
			continue
		}
		*leaves = append(*leaves, leaf)
		*paths = append(*paths, path)
	}
	return nil
}

// Property is one flattened scalar of a live value.
type Property struct {
	// Name is the flattened wire name relative to the value's owner.
	Name string

	// Member is the leaf of the member chain.
	Member MemberID

	// Value is the scalar read from the instance.
	Value any
}

// Flatten reads every scalar reachable from v through its non-navigation
// members, descending into complex members, and returns them in
// declaration order. v may be a struct (or pointer to one) of a
// registered Go type, a value.Object or a map[string]any. A nil complex
// member fails with NULL_COMPLEX_TYPE_PROPERTY.
func (r *Resolver) Flatten(typeName string, v any) ([]Property, error) {
	if typeName == "" && v != nil {
		typeName, _ = r.schema.TypeNameOf(reflect.TypeOf(v))
	}
	if isNilValue(v) {
		return nil, fmt.Errorf("flatten %s: nil value", typeName)
	}
	var out []Property
	err := r.flatten(typeName, NoMember, v, map[string]bool{}, &out)
	return out, err
}

func (r *Resolver) flatten(typeName string, parent MemberID, v any, visiting map[string]bool, out *[]Property) error {
	info, ok := r.schema.EntityInfo(typeName)
	if !ok {
		return builderr.New(builderr.CodeUnknownType, "type is not registered").WithType(typeName)
	}
	if visiting[typeName] {
		return builderr.New(builderr.CodeCyclicComplexType, "complex type reaches itself while flattening").WithType(typeName)
	}
	visiting[typeName] = true
	defer delete(visiting, typeName)

	for _, m := range info.Members {
		if m.Navigation {
			continue
		}
		id := r.arena.Intern(parent, typeName, m.Name, m.Type)
		field, present := memberValue(v, m)
		if m.Complex && !m.List {
			if !present || isNilValue(field) {
				return builderr.NullComplexTypeProperty(typeName, m.Name)
			}
			if err := r.flatten(m.Type, id, field, visiting, out); err != nil {
				return err
			}
			continue
		}
		if !present {
			continue
		}
		*out = append(*out, Property{
			Name:   r.WireName(id, false),
			Member: id,
			Value:  field,
		})
	}
	return nil
}

// memberValue reads member m from v. present is false when v has no slot
// for the member at all.
func memberValue(v any, m *schema.MemberDecl) (any, bool) {
	switch t := v.(type) {
	case value.Object:
		return t.Get(m.Name)
	case map[string]any:
		got, ok := t[m.Name]
		return got, ok
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct || m.Index == nil {
		return nil, false
	}
	f, ok := fieldByIndex(rv, m.Index, false)
	if !ok {
		return nil, true
	}
	if f.Kind() == reflect.Pointer {
		if f.IsNil() {
			return nil, true
		}
		if f.Elem().Kind() != reflect.Struct || f.Elem().Type() == timeType {
			f = f.Elem()
		}
	}
	return f.Interface(), true
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	if _, ok := v.(time.Time); ok {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
