package harness

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cypherq/internal/compiler"
	"github.com/roach88/cypherq/internal/expr"
	"github.com/roach88/cypherq/internal/pattern"
	"github.com/roach88/cypherq/internal/schema"
)

// decoder turns scenario YAML into expression trees and pattern specs.
// Variables are interned so every mention of a name is the same node.
type decoder struct {
	types map[string]string
	vars  map[string]*expr.Var
	scope []map[string]*expr.Parameter
}

func newDecoder(types map[string]string) *decoder {
	d := &decoder{types: map[string]string{}, vars: map[string]*expr.Var{}}
	for name, typ := range types {
		d.types[name] = typ
	}
	return d
}

func nodeError(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("line %d: %s", n.Line, fmt.Sprintf(format, args...))
}

// single splits a one-key mapping into its key and value.
func single(n *yaml.Node) (string, *yaml.Node, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return "", nil, nodeError(n, "expected a mapping with exactly one key")
	}
	return n.Content[0].Value, n.Content[1], nil
}

// fields indexes a mapping by key and rejects keys outside allowed.
func fields(n *yaml.Node, allowed ...string) (map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, nodeError(n, "expected a mapping")
	}
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i < len(n.Content); i += 2 {
		key := n.Content[i].Value
		ok := false
		for _, a := range allowed {
			if a == key {
				ok = true
				break
			}
		}
		if !ok {
			return nil, nodeError(n.Content[i], "unknown field %q", key)
		}
		out[key] = n.Content[i+1]
	}
	return out, nil
}

func seq(n *yaml.Node, want int) ([]*yaml.Node, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, nodeError(n, "expected a list")
	}
	if want >= 0 && len(n.Content) != want {
		return nil, nodeError(n, "expected %d items, got %d", want, len(n.Content))
	}
	return n.Content, nil
}

func str(n *yaml.Node) (string, error) {
	if n == nil {
		return "", nil
	}
	if n.Kind != yaml.ScalarNode {
		return "", nodeError(n, "expected a string")
	}
	return n.Value, nil
}

func strs(n *yaml.Node) ([]string, error) {
	if n == nil {
		return nil, nil
	}
	var out []string
	if err := n.Decode(&out); err != nil {
		return nil, nodeError(n, "expected a list of strings: %v", err)
	}
	return out, nil
}

func flag(n *yaml.Node) (bool, error) {
	if n == nil {
		return false, nil
	}
	var b bool
	if err := n.Decode(&b); err != nil {
		return false, nodeError(n, "expected a boolean")
	}
	return b, nil
}

func (d *decoder) variable(name string) (*expr.Var, error) {
	if v, ok := d.vars[name]; ok {
		return v, nil
	}
	typ, ok := d.types[name]
	if !ok {
		return nil, fmt.Errorf("undeclared variable %q", name)
	}
	v := expr.Variable(name, typ)
	d.vars[name] = v
	return v, nil
}

// declare makes a pattern variable usable in later expressions.
func (d *decoder) declare(name, typ string) {
	if name == "" || typ == "" {
		return
	}
	if _, ok := d.types[name]; !ok {
		d.types[name] = typ
	}
}

func (d *decoder) param(name string) (*expr.Parameter, bool) {
	for i := len(d.scope) - 1; i >= 0; i-- {
		if p, ok := d.scope[i][name]; ok {
			return p, true
		}
	}
	return nil, false
}

func (d *decoder) root(name string) (expr.Node, error) {
	if p, ok := d.param(name); ok {
		return p, nil
	}
	return d.variable(name)
}

// Expr decodes an expression. Scalars are constants; everything else is a
// single-key mapping naming the node.
func (d *decoder) Expr(n *yaml.Node) (expr.Node, error) {
	if n.Kind == yaml.ScalarNode {
		return d.constant(n)
	}
	key, v, err := single(n)
	if err != nil {
		return nil, err
	}

	if op, ok := expr.ParseBinaryOp(key); ok {
		operands, err := d.list(v, 2)
		if err != nil {
			return nil, err
		}
		return expr.Bin(op, operands[0], operands[1]), nil
	}

	switch key {
	case "const":
		return d.constant(v)
	case "typed":
		f, err := fields(v, "value", "type")
		if err != nil {
			return nil, err
		}
		typ, err := str(f["type"])
		if err != nil {
			return nil, err
		}
		var val any
		if f["value"] != nil {
			if err := f["value"].Decode(&val); err != nil {
				return nil, nodeError(v, "%v", err)
			}
		}
		return expr.TypedConst(val, typ), nil
	case "var":
		return d.variable(v.Value)
	case "param":
		p, ok := d.param(v.Value)
		if !ok {
			return nil, nodeError(v, "parameter %q is not in scope", v.Value)
		}
		return p, nil
	case "path":
		parts := strings.Split(v.Value, ".")
		root, err := d.root(parts[0])
		if err != nil {
			return nil, nodeError(v, "%v", err)
		}
		return expr.Path(root, parts[1:]...), nil
	case "esc":
		sub, err := d.Expr(v)
		if err != nil {
			return nil, err
		}
		return expr.Esc(sub), nil
	case "not", "neg", "len":
		sub, err := d.Expr(v)
		if err != nil {
			return nil, err
		}
		switch key {
		case "not":
			return expr.Not(sub), nil
		case "neg":
			return expr.Neg(sub), nil
		}
		return expr.Len(sub), nil
	case "cast":
		f, err := fields(v, "value", "type")
		if err != nil {
			return nil, err
		}
		sub, err := d.Expr(f["value"])
		if err != nil {
			return nil, err
		}
		return expr.Cast(sub, f["type"].Value), nil
	case "call":
		return d.call(v)
	case "cypher":
		f, err := fields(v, "fn", "args")
		if err != nil {
			return nil, err
		}
		args, err := d.optionalList(f["args"])
		if err != nil {
			return nil, err
		}
		return expr.Cypher(f["fn"].Value, args...), nil
	case "lambda":
		return d.lambda(v)
	case "if":
		parts, err := d.list(v, 3)
		if err != nil {
			return nil, err
		}
		return expr.If(parts[0], parts[1], parts[2]), nil
	case "coalesce":
		parts, err := d.list(v, 2)
		if err != nil {
			return nil, err
		}
		return expr.OrElse(parts[0], parts[1]), nil
	case "index":
		parts, err := d.list(v, 2)
		if err != nil {
			return nil, err
		}
		return expr.At(parts[0], parts[1]), nil
	case "object":
		bs, err := d.bindings(v)
		if err != nil {
			return nil, err
		}
		return expr.Obj(bs...), nil
	case "init":
		f, err := fields(v, "type", "bind")
		if err != nil {
			return nil, err
		}
		bs, err := d.bindings(f["bind"])
		if err != nil {
			return nil, err
		}
		return expr.Init(f["type"].Value, bs...), nil
	case "array":
		elems, err := d.list(v, -1)
		if err != nil {
			return nil, err
		}
		return expr.Array(elems...), nil
	case "dict":
		bs, err := d.bindings(v)
		if err != nil {
			return nil, err
		}
		return expr.Dict(bs...), nil
	}
	return nil, nodeError(n, "unknown expression %q", key)
}

func (d *decoder) constant(n *yaml.Node) (expr.Node, error) {
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, nodeError(n, "%v", err)
	}
	return expr.Const(v), nil
}

func (d *decoder) list(n *yaml.Node, want int) ([]expr.Node, error) {
	items, err := seq(n, want)
	if err != nil {
		return nil, err
	}
	out := make([]expr.Node, len(items))
	for i, item := range items {
		if out[i], err = d.Expr(item); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *decoder) optionalList(n *yaml.Node) ([]expr.Node, error) {
	if n == nil {
		return nil, nil
	}
	return d.list(n, -1)
}

// bindings decodes a list of single-key mappings, keeping their order.
func (d *decoder) bindings(n *yaml.Node) ([]expr.Binding, error) {
	if n == nil {
		return nil, nil
	}
	items, err := seq(n, -1)
	if err != nil {
		return nil, err
	}
	out := make([]expr.Binding, len(items))
	for i, item := range items {
		name, v, err := single(item)
		if err != nil {
			return nil, err
		}
		val, err := d.Expr(v)
		if err != nil {
			return nil, err
		}
		out[i] = expr.Bind(name, val)
	}
	return out, nil
}

func (d *decoder) call(n *yaml.Node) (expr.Node, error) {
	f, err := fields(n, "owner", "method", "object", "args")
	if err != nil {
		return nil, err
	}
	owner, _ := str(f["owner"])
	method, _ := str(f["method"])
	if method == "" {
		return nil, nodeError(n, "call: method is required")
	}
	args, err := d.optionalList(f["args"])
	if err != nil {
		return nil, err
	}
	if f["object"] != nil {
		obj, err := d.Expr(f["object"])
		if err != nil {
			return nil, err
		}
		return expr.Method(obj, owner, method, args...), nil
	}
	return expr.Fn(owner, method, args...), nil
}

// lambda decodes {params: ["m:Movie"], body: ...}. Parameters are in
// scope only inside the body.
func (d *decoder) lambda(n *yaml.Node) (expr.Node, error) {
	f, err := fields(n, "params", "body")
	if err != nil {
		return nil, err
	}
	specs, err := strs(f["params"])
	if err != nil {
		return nil, err
	}
	frame := make(map[string]*expr.Parameter, len(specs))
	params := make([]*expr.Parameter, len(specs))
	for i, spec := range specs {
		name, typ, _ := strings.Cut(spec, ":")
		params[i] = expr.Param(name, typ)
		frame[name] = params[i]
	}
	if f["body"] == nil {
		return nil, nodeError(n, "lambda: body is required")
	}
	d.scope = append(d.scope, frame)
	body, err := d.Expr(f["body"])
	d.scope = d.scope[:len(d.scope)-1]
	if err != nil {
		return nil, err
	}
	return expr.Fun(body, params...), nil
}

func (d *decoder) optionalExpr(n *yaml.Node) (expr.Node, error) {
	if n == nil {
		return nil, nil
	}
	return d.Expr(n)
}

// Node decodes {var, type, as, labels, only_labels, props, where}.
func (d *decoder) Node(n *yaml.Node) (*pattern.NodeSpec, error) {
	if n == nil {
		return nil, nil
	}
	f, err := fields(n, "var", "type", "as", "labels", "only_labels", "props", "where")
	if err != nil {
		return nil, err
	}
	name, _ := str(f["var"])
	typ, _ := str(f["type"])
	if typ == "" {
		typ = d.types[name]
	}
	spec := pattern.Node(name, typ)
	if as, _ := str(f["as"]); as != "" {
		spec.As(as)
	}
	d.declare(name, spec.Type)

	labels, err := strs(f["labels"])
	if err != nil {
		return nil, err
	}
	only, err := flag(f["only_labels"])
	if err != nil {
		return nil, err
	}
	if only {
		spec.OnlyLabels(labels...)
	} else if len(labels) > 0 {
		spec.WithLabels(labels...)
	}

	if spec.Props, err = d.optionalExpr(f["props"]); err != nil {
		return nil, err
	}
	if spec.Constraint, err = d.optionalExpr(f["where"]); err != nil {
		return nil, err
	}
	return spec, nil
}

// Rel decodes {var, type, types, only_types, dir, hops, props, where}.
func (d *decoder) Rel(n *yaml.Node) (*pattern.RelSpec, error) {
	if n == nil {
		return nil, nil
	}
	f, err := fields(n, "var", "type", "types", "only_types", "dir", "hops", "props", "where")
	if err != nil {
		return nil, err
	}
	name, _ := str(f["var"])
	typ, _ := str(f["type"])
	spec := pattern.Rel(name, typ)
	d.declare(name, typ)

	types, err := strs(f["types"])
	if err != nil {
		return nil, err
	}
	only, err := flag(f["only_types"])
	if err != nil {
		return nil, err
	}
	if only {
		spec.OnlyTypes(types...)
	} else if len(types) > 0 {
		spec.WithTypes(types...)
	}

	if dir, _ := str(f["dir"]); dir != "" {
		parsed, err := schema.ParseDirection(dir)
		if err != nil {
			return nil, nodeError(f["dir"], "%v", err)
		}
		spec.Dir(parsed)
	}
	if f["hops"] != nil {
		h, err := pattern.ParseHops(f["hops"].Value)
		if err != nil {
			return nil, err
		}
		spec.Length(h)
	}

	if spec.Props, err = d.optionalExpr(f["props"]); err != nil {
		return nil, err
	}
	if spec.Constraint, err = d.optionalExpr(f["where"]); err != nil {
		return nil, err
	}
	return spec, nil
}

// Pattern decodes {a, r, b, strategy}.
func (d *decoder) Pattern(n *yaml.Node) (*pattern.Pattern, error) {
	f, err := fields(n, "a", "r", "b", "strategy")
	if err != nil {
		return nil, err
	}
	a, err := d.Node(f["a"])
	if err != nil {
		return nil, err
	}
	r, err := d.Rel(f["r"])
	if err != nil {
		return nil, err
	}
	b, err := d.Node(f["b"])
	if err != nil {
		return nil, err
	}
	p := pattern.New(a, r, b)
	if f["strategy"] != nil {
		s, err := compiler.ParseStrategy(f["strategy"].Value)
		if err != nil {
			return nil, nodeError(f["strategy"], "%v", err)
		}
		p.WithStrategy(s)
	}
	return p, nil
}

// navigation is a decoded {from, member, rel, to}.
type navigation struct {
	from   *pattern.NodeSpec
	member string
	rel    string
	to     string
}

func (d *decoder) navigation(n *yaml.Node, withFrom bool) (navigation, error) {
	allowed := []string{"member", "rel", "to"}
	if withFrom {
		allowed = append(allowed, "from")
	}
	f, err := fields(n, allowed...)
	if err != nil {
		return navigation{}, err
	}
	var nav navigation
	if withFrom {
		if f["from"] == nil {
			return navigation{}, nodeError(n, "navigate: from is required")
		}
		if nav.from, err = d.Node(f["from"]); err != nil {
			return navigation{}, err
		}
	}
	nav.member, _ = str(f["member"])
	nav.rel, _ = str(f["rel"])
	nav.to, _ = str(f["to"])
	return nav, nil
}
