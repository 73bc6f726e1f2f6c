package schema

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// LoadError is a schema file error with source position.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadCUE loads every CUE file in dir and declares the types it describes.
// It returns the declared type names in file order.
//
// Schema files use three top-level blocks:
//
//	complex: Address: members: {
//		City:   "string"
//		Street: {type: "string", wire: "street_name"}
//	}
//	entity: Actor: {
//		labels: ["Actor"]
//		base:   "Person"
//		members: {
//			Address: "Address"
//			Movies:  {type: "[]Movie", rel: "ACTED_IN"}
//		}
//	}
//	relationship: ActedIn: {type: "ACTED_IN", members: Roles: "[]string"}
func LoadCUE(r *Registry, dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &LoadError{Field: "dir", Message: fmt.Sprintf("schema directory not accessible: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Field: "dir", Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Field: "load", Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}
	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return DeclareCUE(r, v)
}

// DeclareCUE declares the types described by a built CUE value.
func DeclareCUE(r *Registry, v cue.Value) ([]string, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	var infos []*EntityTypeInfo
	blocks := []struct {
		path string
		kind Kind
	}{
		{"complex", KindComplex},
		{"entity", KindNode},
		{"relationship", KindRelationship},
	}
	for _, b := range blocks {
		block := v.LookupPath(cue.ParsePath(b.path))
		if !block.Exists() {
			continue
		}
		iter, err := block.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			info, err := parseType(iter.Label(), b.kind, iter.Value())
			if err != nil {
				return nil, err
			}
			infos = append(infos, info)
		}
	}
	if len(infos) == 0 {
		return nil, &LoadError{Field: "schema", Message: "no entity, complex or relationship declarations found", Pos: v.Pos()}
	}
	if err := r.Declare(infos...); err != nil {
		return nil, err
	}

	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names, nil
}

func parseType(name string, kind Kind, v cue.Value) (*EntityTypeInfo, error) {
	info := &EntityTypeInfo{Name: name, Kind: kind}

	if kind == KindNode {
		if labels := v.LookupPath(cue.ParsePath("labels")); labels.Exists() {
			iter, err := labels.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for iter.Next() {
				l, err := iter.Value().String()
				if err != nil {
					return nil, formatCUEError(err)
				}
				info.Labels = append(info.Labels, l)
			}
		}
	}
	if kind == KindRelationship {
		rel, err := optionalString(v, "type")
		if err != nil {
			return nil, err
		}
		if rel != "" {
			info.Labels = []string{rel}
		}
	}
	base, err := optionalString(v, "base")
	if err != nil {
		return nil, err
	}
	info.Base = base

	members := v.LookupPath(cue.ParsePath("members"))
	if !members.Exists() {
		return info, nil
	}
	iter, err := members.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		m, err := parseMember(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		info.Members = append(info.Members, m)
	}
	return info, nil
}

// parseMember accepts either a bare type string or a struct with a type
// and optional naming hints.
func parseMember(name string, v cue.Value) (*MemberDecl, error) {
	m := &MemberDecl{Name: name}
	if v.IncompleteKind() == cue.StringKind {
		t, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		m.Type = t
		return m, nil
	}
	if v.IncompleteKind() != cue.StructKind {
		return nil, &LoadError{
			Field:   "members." + name,
			Message: fmt.Sprintf("member must be a type string or struct, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}

	var err error
	if m.Type, err = optionalString(v, "type"); err != nil {
		return nil, err
	}
	if m.Type == "" {
		return nil, &LoadError{Field: "members." + name + ".type", Message: "type is required", Pos: v.Pos()}
	}
	if m.Wire, err = optionalString(v, "wire"); err != nil {
		return nil, err
	}
	if m.Rel, err = optionalString(v, "rel"); err != nil {
		return nil, err
	}
	if m.Key, err = optionalString(v, "fk"); err != nil {
		return nil, err
	}
	if m.Inverse, err = optionalString(v, "inverse"); err != nil {
		return nil, err
	}
	dir, err := optionalString(v, "dir")
	if err != nil {
		return nil, err
	}
	if m.Direction, err = ParseDirection(dir); err != nil {
		return nil, &LoadError{Field: "members." + name + ".dir", Message: err.Error(), Pos: v.Pos()}
	}
	if p := v.LookupPath(cue.ParsePath("pointer")); p.Exists() {
		if m.Pointer, err = p.Bool(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	return m, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &LoadError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
