package compiler

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/cypherq/internal/builderr"
	"github.com/roach88/cypherq/internal/expr"
	"github.com/roach88/cypherq/internal/resolve"
	"github.com/roach88/cypherq/internal/value"
)

// Continuation performs the emission a handler claimed. The returned node
// is stored with the translation in the context cache.
type Continuation func() (expr.Node, error)

// Handler inspects the node being visited and returns nil when it does not
// apply, or a continuation that emits its translation.
type Handler func(x *Visit) Continuation

// AnyArity registers a call handler for every arity of a method.
const AnyArity = -1

// Kind classifies AST nodes for kind-level handlers.
type Kind uint8

const (
	KindConstant Kind = iota
	KindVar
	KindParameter
	KindEscape
	KindMember
	KindCall
	KindBinary
	KindUnary
	KindConditional
	KindCoalesce
	KindIndex
	KindLength
	KindLambda
	KindNew
	KindMemberInit
	KindNewArray
	KindListInit
)

// KindOf returns the Kind of n.
func KindOf(n expr.Node) Kind {
	switch n.(type) {
	case *expr.Var:
		return KindVar
	case *expr.Parameter:
		return KindParameter
	case *expr.Escape:
		return KindEscape
	case *expr.Member:
		return KindMember
	case *expr.Call:
		return KindCall
	case *expr.Binary:
		return KindBinary
	case *expr.Unary:
		return KindUnary
	case *expr.Conditional:
		return KindConditional
	case *expr.Coalesce:
		return KindCoalesce
	case *expr.Index:
		return KindIndex
	case *expr.Length:
		return KindLength
	case *expr.Lambda:
		return KindLambda
	case *expr.New:
		return KindNew
	case *expr.MemberInit:
		return KindMemberInit
	case *expr.NewArray:
		return KindNewArray
	case *expr.ListInit:
		return KindListInit
	}
	return KindConstant
}

type callKey struct {
	owner  string
	method string
	arity  int
}

// Compiler translates expression trees into Cypher text.
//
// Handlers are consulted from most to least specific: call handlers keyed
// by (owner, method, arity), then kind handlers, then class handlers.
// Within a tier the most recently registered handler is asked first.
// Register handlers before the first build; after that a Compiler is
// read-only and safe for concurrent use with distinct Contexts.
type Compiler struct {
	res     *resolve.Resolver
	calls   map[callKey][]Handler
	kinds   map[Kind][]Handler
	classes []Handler
}

// New creates a Compiler with the built-in operator, function and
// construction handlers.
func New(res *resolve.Resolver) *Compiler {
	c := &Compiler{
		res:   res,
		calls: make(map[callKey][]Handler),
		kinds: make(map[Kind][]Handler),
	}
	registerOperators(c)
	registerFunctions(c)
	registerConstruction(c)
	return c
}

// Resolver returns the member resolver used for paths and properties.
func (c *Compiler) Resolver() *resolve.Resolver { return c.res }

// HandleCall registers h for calls of owner.method with the given arity,
// or every arity with AnyArity.
func (c *Compiler) HandleCall(owner, method string, arity int, h Handler) {
	k := callKey{owner: owner, method: method, arity: arity}
	c.calls[k] = append([]Handler{h}, c.calls[k]...)
}

// HandleKind registers h for nodes of kind k.
func (c *Compiler) HandleKind(k Kind, h Handler) {
	c.kinds[k] = append([]Handler{h}, c.kinds[k]...)
}

// HandleClass registers a class-level handler, asked for every node no
// call or kind handler claimed.
func (c *Compiler) HandleClass(h Handler) {
	c.classes = append([]Handler{h}, c.classes...)
}

func (c *Compiler) dispatch(x *Visit) Continuation {
	if call, ok := x.Node.(*expr.Call); ok {
		keys := [2]callKey{
			{owner: call.Owner, method: call.Method, arity: call.Arity()},
			{owner: call.Owner, method: call.Method, arity: AnyArity},
		}
		for _, k := range keys {
			for _, h := range c.calls[k] {
				if cont := h(x); cont != nil {
					return cont
				}
			}
		}
	}
	for _, h := range c.kinds[KindOf(x.Node)] {
		if cont := h(x); cont != nil {
			return cont
		}
	}
	for _, h := range c.classes {
		if cont := h(x); cont != nil {
			return cont
		}
	}
	return nil
}

// visitor owns the output buffer of one entry-point call.
type visitor struct {
	c   *Compiler
	ctx *Context
	sb  strings.Builder
}

func newVisitor(c *Compiler, ctx *Context) *visitor {
	return &visitor{c: c, ctx: ctx}
}

func (v *visitor) String() string { return v.sb.String() }

func (v *visitor) visit(n expr.Node, sup Suppressed, bare bool) (expr.Node, error) {
	if n == nil {
		return nil, builderr.New(builderr.CodeUnsupportedExpression, "missing expression")
	}
	if sup.Has(n) {
		return n, nil
	}

	key := memoKey{node: n, bare: bare, strategy: v.ctx.Strategy}
	cacheable := !sup.Within(n)
	if cacheable {
		if e, ok := v.ctx.lookup(key); ok {
			v.sb.WriteString(e.text)
			return e.node, nil
		}
	}

	start := v.sb.Len()
	out, err := v.translate(n, sup, bare)
	if err != nil {
		return nil, err
	}
	if cacheable {
		v.ctx.remember(key, memoEntry{text: v.sb.String()[start:], node: out})
	}
	return out, nil
}

func (v *visitor) translate(n expr.Node, sup Suppressed, bare bool) (expr.Node, error) {
	x := &Visit{v: v, Node: n, sup: sup, bare: bare}

	if v.foldable(n) {
		// A failed evaluation only means the subtree is symbolic.
		if val, err := expr.Evaluate(n); err == nil {
			ok, err := x.emitValue(val, v.c.res.TypeOf(n))
			if err != nil {
				return nil, err
			}
			if ok {
				return n, nil
			}
		}
	}

	if cont := v.c.dispatch(x); cont != nil {
		return cont()
	}

	if call, ok := n.(*expr.Call); ok {
		return nil, builderr.New(builderr.CodeUnsupportedExpression,
			"no translation for %s.%s with %d operands", call.Owner, call.Method, call.Arity())
	}

	text, err := v.c.res.Path(n)
	if err != nil {
		return nil, err
	}
	v.sb.WriteString(text)
	return n, nil
}

// foldable excludes nodes whose host value is not their query value:
// lambdas, and constructions of registered types, which render through
// their flattened properties.
func (v *visitor) foldable(n expr.Node) bool {
	switch t := n.(type) {
	case *expr.Lambda:
		return false
	case *expr.MemberInit:
		_, registered := v.c.res.Schema().EntityInfo(t.Type)
		return !registered
	}
	return true
}

// Visit is the handler's view of the node being translated.
type Visit struct {
	v    *visitor
	Node expr.Node
	sup  Suppressed
	bare bool
}

// Emit appends text to the output.
func (x *Visit) Emit(parts ...string) {
	for _, p := range parts {
		x.v.sb.WriteString(p)
	}
}

// Write emits strings and translates nodes, in order.
func (x *Visit) Write(parts ...any) error {
	for _, p := range parts {
		switch t := p.(type) {
		case string:
			x.Emit(t)
		case expr.Node:
			if _, err := x.Visit(t); err != nil {
				return err
			}
		default:
			return fmt.Errorf("compiler: cannot write %T", p)
		}
	}
	return nil
}

// Visit translates n in place, wrapping binary operators in parentheses.
func (x *Visit) Visit(n expr.Node) (expr.Node, error) {
	return x.v.visit(n, x.sup, false)
}

// VisitBare translates n without parentheses around a top-level binary
// operator.
func (x *Visit) VisitBare(n expr.Node) (expr.Node, error) {
	return x.v.visit(n, x.sup, true)
}

// Suppress makes later visits from this handler skip nodes.
func (x *Visit) Suppress(nodes ...expr.Node) {
	x.sup = x.sup.With(nodes...)
}

// Reinstate removes n from the suppressed set and translates it now.
func (x *Visit) Reinstate(n expr.Node) (expr.Node, error) {
	x.sup = x.sup.Without(n)
	return x.Visit(n)
}

// Suppressed returns the set the handler's visits run with.
func (x *Visit) Suppressed() Suppressed { return x.sup }

// VisitChildren translates the node's children that are not suppressed,
// in order, separated by sep.
func (x *Visit) VisitChildren(sep string) ([]expr.Node, error) {
	var out []expr.Node
	for _, child := range expr.Children(x.Node) {
		if x.sup.Has(child) {
			continue
		}
		if len(out) > 0 {
			x.Emit(sep)
		}
		n, err := x.Visit(child)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Bare reports whether the node renders without outer parentheses.
func (x *Visit) Bare() bool { return x.bare }

// Context returns the build context.
func (x *Visit) Context() *Context { return x.v.ctx }

// Compiler returns the compiler running the visit.
func (x *Visit) Compiler() *Compiler { return x.v.c }

// Fold evaluates n, reporting false when it is symbolic.
func (x *Visit) Fold(n expr.Node) (any, bool) {
	if !x.v.foldable(n) {
		return nil, false
	}
	val, err := expr.Evaluate(n)
	return val, err == nil
}

// EmitValue renders a host value under the context's strategy.
func (x *Visit) EmitValue(val any) error {
	ok, err := x.emitValue(val, "")
	if err != nil {
		return err
	}
	if !ok {
		return builderr.New(builderr.CodeUnsupportedExpression, "value of type %T has no query form", val)
	}
	return nil
}

// emitValue writes val as a literal or a parameter reference. false means
// the value has no query form and the caller should translate the node
// symbolically instead.
func (x *Visit) emitValue(val any, typeName string) (bool, error) {
	if val == nil {
		x.Emit("null")
		return true, nil
	}
	if !value.IsScalar(val) {
		obj, ok, err := x.v.c.objectOf(typeName, val)
		if err != nil || !ok {
			return false, err
		}
		val = obj
	}
	if x.v.ctx.Strategy == NoParams {
		lit, err := value.Literal(val)
		if err != nil {
			return false, nil
		}
		x.Emit(lit)
		return true, nil
	}
	x.Emit("$", x.v.ctx.Params.CreateParameter(val))
	return true, nil
}

// objectOf flattens a struct of a registered type into its wire-named
// properties.
func (c *Compiler) objectOf(typeName string, val any) (value.Object, bool, error) {
	if typeName == "" {
		typeName, _ = c.res.Schema().TypeNameOf(reflect.TypeOf(val))
	}
	if _, ok := c.res.Schema().EntityInfo(typeName); !ok {
		return nil, false, nil
	}
	props, err := c.res.Flatten(typeName, val)
	if err != nil {
		return nil, false, err
	}
	obj := make(value.Object, len(props))
	for i, p := range props {
		obj[i] = value.Entry{Key: p.Name, Value: p.Value}
	}
	return obj, true, nil
}
