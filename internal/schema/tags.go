package schema

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// TagKey is the struct tag read during registration.
const TagKey = "neo4j"

// Node marks a struct as a graph node. The tag on the embedded field lists
// the node's own labels separated by ':'.
//
//	type Actor struct {
//		schema.Node `neo4j:"Actor"`
//		Person
//	}
type Node struct{}

// Relationship marks a struct as a graph relationship. The tag on the
// embedded field is the relationship type.
type Relationship struct{}

// Complex marks a struct as a complex value object. Plain structs without a
// marker are complex too; the marker only documents intent.
type Complex struct{}

var (
	nodeMarker         = reflect.TypeOf(Node{})
	relationshipMarker = reflect.TypeOf(Relationship{})
	complexMarker      = reflect.TypeOf(Complex{})
	timeType           = reflect.TypeOf(time.Time{})
	durationType       = reflect.TypeOf(time.Duration(0))
)

// Tag is a parsed field tag:
//
//	neo4j:"wireName,rel=ACTED_IN,fk=MovieID,inverse=Actors,dir=in"
type Tag struct {
	Name    string
	Rel     string
	Key     string
	Inverse string
	Dir     string
	Skip    bool
}

// ParseTag parses the value of a neo4j struct tag.
func ParseTag(raw string) (Tag, error) {
	var tag Tag
	if raw == "-" {
		tag.Skip = true
		return tag, nil
	}
	for i, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, found := strings.Cut(part, "=")
		if !found {
			if i != 0 {
				return tag, fmt.Errorf("tag %q: option %q needs a value", raw, part)
			}
			tag.Name = part
			continue
		}
		switch key {
		case "rel":
			tag.Rel = val
		case "fk":
			tag.Key = val
		case "inverse":
			tag.Inverse = val
		case "dir":
			tag.Dir = val
		default:
			return tag, fmt.Errorf("tag %q: unknown option %q", raw, key)
		}
	}
	return tag, nil
}

// Register records the struct types of the given samples and every struct
// type they reach through fields. Samples may be values or pointers.
func (r *Registry) Register(samples ...any) error {
	for _, sample := range samples {
		t := reflect.TypeOf(sample)
		for t != nil && t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t == nil || t.Kind() != reflect.Struct {
			return fmt.Errorf("register %T: not a struct type", sample)
		}
		if _, ok := r.TypeNameOf(t); ok {
			continue
		}
		_, err, _ := r.group.Do(t.PkgPath()+"."+t.Name(), func() (any, error) {
			if _, ok := r.TypeNameOf(t); ok {
				return nil, nil
			}
			infos, err := r.collect(t)
			if err != nil {
				return nil, err
			}
			return nil, r.Declare(infos...)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// collect builds records for t and every unregistered struct type it
// reaches.
func (r *Registry) collect(root reflect.Type) ([]*EntityTypeInfo, error) {
	var infos []*EntityTypeInfo
	seen := map[reflect.Type]bool{}
	queue := []reflect.Type{root}
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		if seen[t] {
			continue
		}
		seen[t] = true
		if _, ok := r.TypeNameOf(t); ok {
			continue
		}
		info, refs, err := buildInfo(t)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
		queue = append(queue, refs...)
	}
	return infos, nil
}

// buildInfo reads one struct type. refs lists struct types referenced by
// its members or embedded as a base.
func buildInfo(t reflect.Type) (*EntityTypeInfo, []reflect.Type, error) {
	if t.Name() == "" {
		return nil, nil, fmt.Errorf("register: anonymous struct types cannot be registered")
	}
	info := &EntityTypeInfo{Name: t.Name(), Kind: KindComplex, GoType: t}
	var refs []reflect.Type
	marked := false

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		switch f.Type {
		case nodeMarker:
			info.Kind, marked = KindNode, true
			info.Labels = splitLabels(f.Tag.Get(TagKey))
		case relationshipMarker:
			info.Kind, marked = KindRelationship, true
			if rel := f.Tag.Get(TagKey); rel != "" {
				info.Labels = []string{rel}
			}
		case complexMarker:
			info.Kind, marked = KindComplex, true
		}
	}

	if err := walkFields(t, nil, info, &refs, marked); err != nil {
		return nil, nil, err
	}
	return info, refs, nil
}

func splitLabels(tag string) []string {
	var labels []string
	for _, l := range strings.Split(tag, ":") {
		if l = strings.TrimSpace(l); l != "" {
			labels = append(labels, l)
		}
	}
	return labels
}

// walkFields appends t's exported fields to info, promoting embedded
// structs with their index path. The first embedded entity becomes the base.
func walkFields(t reflect.Type, prefix []int, info *EntityTypeInfo, refs *[]reflect.Type, marked bool) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		index := append(append([]int(nil), prefix...), i)

		if f.Anonymous {
			if f.Type == nodeMarker || f.Type == relationshipMarker || f.Type == complexMarker {
				continue
			}
			et := f.Type
			if et.Kind() == reflect.Pointer {
				et = et.Elem()
			}
			if et.Kind() == reflect.Struct && et != timeType {
				if kind := markerKind(et); kind.IsEntity() {
					if info.Base == "" {
						info.Base = et.Name()
						*refs = append(*refs, et)
						if !marked {
							info.Kind = kind
						}
					}
				}
				if err := walkFields(et, index, info, refs, true); err != nil {
					return err
				}
				continue
			}
		}
		if !f.IsExported() {
			continue
		}

		tag, err := ParseTag(f.Tag.Get(TagKey))
		if err != nil {
			return fmt.Errorf("register %s.%s: %w", t.Name(), f.Name, err)
		}
		if tag.Skip {
			continue
		}
		if _, dup := info.Member(f.Name); dup {
			continue
		}

		typeName, pointer, ref, err := goTypeName(f.Type)
		if err != nil {
			return fmt.Errorf("register %s.%s: %w", t.Name(), f.Name, err)
		}
		dir, err := ParseDirection(tag.Dir)
		if err != nil {
			return fmt.Errorf("register %s.%s: %w", t.Name(), f.Name, err)
		}
		info.Members = append(info.Members, &MemberDecl{
			Name:      f.Name,
			Type:      typeName,
			List:      strings.HasPrefix(typeName, "[]"),
			Pointer:   pointer,
			Rel:       tag.Rel,
			Key:       tag.Key,
			Inverse:   tag.Inverse,
			Direction: dir,
			Index:     index,
			Tag:       f.Tag,
		})
		if ref != nil {
			*refs = append(*refs, ref)
		}
	}
	return nil
}

// markerKind returns the kind declared by a marker embed of t, following
// embedded bases.
func markerKind(t reflect.Type) Kind {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		switch f.Type {
		case nodeMarker:
			return KindNode
		case relationshipMarker:
			return KindRelationship
		case complexMarker:
			return KindComplex
		}
		et := f.Type
		if et.Kind() == reflect.Pointer {
			et = et.Elem()
		}
		if et.Kind() == reflect.Struct && et != timeType {
			if k := markerKind(et); k.IsEntity() {
				return k
			}
		}
	}
	return KindComplex
}

// goTypeName maps a Go field type to a member type name. ref is the struct
// type the member refers to, if any.
func goTypeName(t reflect.Type) (name string, pointer bool, ref reflect.Type, err error) {
	if t.Kind() == reflect.Pointer {
		pointer = true
		t = t.Elem()
	}
	switch t {
	case timeType:
		return TypeTime, pointer, nil, nil
	case durationType:
		return TypeDuration, pointer, nil, nil
	}
	switch t.Kind() {
	case reflect.String:
		return TypeString, pointer, nil, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInt, pointer, nil, nil
	case reflect.Float32, reflect.Float64:
		return TypeFloat, pointer, nil, nil
	case reflect.Bool:
		return TypeBool, pointer, nil, nil
	case reflect.Map:
		return TypeMap, pointer, nil, nil
	case reflect.Interface:
		return TypeAny, pointer, nil, nil
	case reflect.Slice, reflect.Array:
		elem, _, ref, err := goTypeName(t.Elem())
		if err != nil {
			return "", false, nil, err
		}
		return ListOf(elem), pointer, ref, nil
	case reflect.Struct:
		if t.Name() == "" {
			return "", false, nil, fmt.Errorf("anonymous struct field types are not supported")
		}
		return t.Name(), pointer, t, nil
	}
	return "", false, nil, fmt.Errorf("unsupported field type %s", t)
}
