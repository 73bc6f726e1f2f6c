package expr

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/roach88/cypherq/internal/value"
)

// DeferReason says why a subtree cannot be evaluated at build time.
type DeferReason uint8

const (
	// DeferVariable: the subtree reads a query-time variable.
	DeferVariable DeferReason = iota + 1
	// DeferQueryFunction: the subtree calls a query function.
	DeferQueryFunction
	// DeferEscape: the subtree is marked for verbatim emission.
	DeferEscape
)

func (r DeferReason) String() string {
	switch r {
	case DeferVariable:
		return "variable reference"
	case DeferQueryFunction:
		return "query function"
	case DeferEscape:
		return "escape"
	}
	return "unknown"
}

// Deferred is returned by Evaluate when a marker node was reached. Node is
// the marker that stopped evaluation.
type Deferred struct {
	Reason DeferReason
	Node   Node
}

func (d *Deferred) Error() string {
	return fmt.Sprintf("expr: deferred to query time (%s)", d.Reason)
}

// ErrNotEvaluable is returned (wrapped) when a subtree has no host value for
// a reason other than a marker: unknown functions, nil dereference, type
// mismatches.
var ErrNotEvaluable = errors.New("expr: not evaluable")

func notEvaluable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotEvaluable, fmt.Sprintf(format, args...))
}

// AsDeferred returns the Deferred in err's chain, if any.
func AsDeferred(err error) (*Deferred, bool) {
	var d *Deferred
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// Env binds lambda parameters to host values.
type Env map[*Parameter]any

// with returns a copy of env with extra bindings.
func (e Env) with(params []*Parameter, args []any) Env {
	out := make(Env, len(e)+len(params))
	for k, v := range e {
		out[k] = v
	}
	for i, p := range params {
		if i < len(args) {
			out[p] = args[i]
		}
	}
	return out
}

// Closure is the host value of a Lambda node.
type Closure struct {
	Lambda *Lambda
	env    Env
}

// Invoke evaluates the lambda body with its parameters bound to args.
func (c *Closure) Invoke(args ...any) (any, error) {
	if len(args) != len(c.Lambda.Params) {
		return nil, notEvaluable("lambda takes %d arguments, got %d", len(c.Lambda.Params), len(args))
	}
	return EvaluateIn(c.Lambda.Body, c.env.with(c.Lambda.Params, args))
}

// Evaluate folds n to a host value.
//
// A *Deferred error means n depends on a query-time variable, a query
// function or an escape marker. Any other error wraps ErrNotEvaluable.
// Integers evaluate to int64 and floats to float64.
func Evaluate(n Node) (any, error) {
	return EvaluateIn(n, nil)
}

// EvaluateIn is Evaluate with lambda parameters bound by env.
func EvaluateIn(n Node, env Env) (any, error) {
	switch n := n.(type) {
	case nil:
		return nil, notEvaluable("nil node")
	case *Constant:
		return normalize(n.Value), nil
	case *Var:
		return nil, &Deferred{Reason: DeferVariable, Node: n}
	case *Parameter:
		if v, ok := env[n]; ok {
			return v, nil
		}
		return nil, &Deferred{Reason: DeferVariable, Node: n}
	case *Escape:
		return nil, &Deferred{Reason: DeferEscape, Node: n}
	case *Member:
		target, err := EvaluateIn(n.Target, env)
		if err != nil {
			return nil, err
		}
		return memberOf(target, n.Name)
	case *Call:
		return evalCall(n, env)
	case *Binary:
		return evalBinary(n, env)
	case *Unary:
		operand, err := EvaluateIn(n.Operand, env)
		if err != nil {
			return nil, err
		}
		return evalUnary(n.Op, operand, n.Type)
	case *Conditional:
		test, err := EvaluateIn(n.Test, env)
		if err != nil {
			return nil, err
		}
		b, ok := test.(bool)
		if !ok {
			return nil, notEvaluable("conditional test is %T, not bool", test)
		}
		if b {
			return EvaluateIn(n.Then, env)
		}
		return EvaluateIn(n.Else, env)
	case *Coalesce:
		left, err := EvaluateIn(n.Left, env)
		if err != nil {
			return nil, err
		}
		if left != nil {
			return left, nil
		}
		return EvaluateIn(n.Right, env)
	case *Index:
		target, err := EvaluateIn(n.Target, env)
		if err != nil {
			return nil, err
		}
		idx, err := EvaluateIn(n.Index, env)
		if err != nil {
			return nil, err
		}
		return indexOf(target, idx)
	case *Length:
		target, err := EvaluateIn(n.Target, env)
		if err != nil {
			return nil, err
		}
		return lengthOf(target)
	case *Lambda:
		return &Closure{Lambda: n, env: env}, nil
	case *New:
		return evalBindings(n.Bindings, env)
	case *MemberInit:
		return evalBindings(n.Bindings, env)
	case *ListInit:
		return evalBindings(n.Entries, env)
	case *NewArray:
		out := make([]any, len(n.Elems))
		for i, e := range n.Elems {
			v, err := EvaluateIn(e, env)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return nil, notEvaluable("unknown node %T", n)
}

func evalBindings(bs []Binding, env Env) (value.Object, error) {
	obj := make(value.Object, 0, len(bs))
	for _, b := range bs {
		v, err := EvaluateIn(b.Value, env)
		if err != nil {
			return nil, err
		}
		obj = append(obj, value.Entry{Key: b.Name, Value: v})
	}
	return obj, nil
}

func evalCall(c *Call, env Env) (any, error) {
	if c.Owner == OwnerCypher {
		return nil, &Deferred{Reason: DeferQueryFunction, Node: c}
	}
	operands := c.Operands()
	args := make([]any, len(operands))
	for i, op := range operands {
		v, err := EvaluateIn(op, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	if fn, ok := lookupHostFunc(c.Owner, c.Method, len(args)); ok {
		return fn(args)
	}
	if c.Fn != nil {
		return callReflect(c.Fn, args)
	}
	return nil, notEvaluable("no host function %s.%s/%d", c.Owner, c.Method, len(args))
}

func callReflect(fn any, args []any) (any, error) {
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func || ft.IsVariadic() || ft.NumIn() != len(args) {
		return nil, notEvaluable("host func %s cannot take %d arguments", ft, len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		want := ft.In(i)
		if a == nil {
			in[i] = reflect.Zero(want)
			continue
		}
		av := reflect.ValueOf(a)
		switch {
		case av.Type().AssignableTo(want):
			in[i] = av
		case av.Type().ConvertibleTo(want):
			in[i] = av.Convert(want)
		default:
			return nil, notEvaluable("argument %d: %T is not %s", i, a, want)
		}
	}
	out := fv.Call(in)
	switch len(out) {
	case 1:
		return normalize(out[0].Interface()), nil
	case 2:
		if err, _ := out[1].Interface().(error); err != nil {
			return nil, notEvaluable("host func failed: %v", err)
		}
		return normalize(out[0].Interface()), nil
	}
	return nil, notEvaluable("host func %s must return one value", ft)
}

func evalBinary(b *Binary, env Env) (any, error) {
	left, err := EvaluateIn(b.Left, env)
	if err != nil {
		return nil, err
	}
	switch b.Op {
	case OpAnd, OpOr:
		lb, ok := left.(bool)
		if !ok {
			return nil, notEvaluable("%s needs bool operands, got %T", b.Op, left)
		}
		if b.Op == OpAnd && !lb {
			return false, nil
		}
		if b.Op == OpOr && lb {
			return true, nil
		}
		right, err := EvaluateIn(b.Right, env)
		if err != nil {
			return nil, err
		}
		rb, ok := right.(bool)
		if !ok {
			return nil, notEvaluable("%s needs bool operands, got %T", b.Op, right)
		}
		return rb, nil
	}
	right, err := EvaluateIn(b.Right, env)
	if err != nil {
		return nil, err
	}
	return Apply(b.Op, left, right)
}

// Apply evaluates a binary operator on host values.
func Apply(op BinaryOp, left, right any) (any, error) {
	left, right = normalize(left), normalize(right)
	switch op {
	case OpAnd, OpOr, OpXor:
		lb, lok := left.(bool)
		rb, rok := right.(bool)
		if !lok || !rok {
			return nil, notEvaluable("%s needs bool operands", op)
		}
		switch op {
		case OpAnd:
			return lb && rb, nil
		case OpOr:
			return lb || rb, nil
		}
		return lb != rb, nil
	case OpEqual:
		return equal(left, right), nil
	case OpNotEqual:
		return !equal(left, right), nil
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual:
		c, err := compare(left, right)
		if err != nil {
			return nil, err
		}
		switch op {
		case OpGreater:
			return c > 0, nil
		case OpGreaterEqual:
			return c >= 0, nil
		case OpLess:
			return c < 0, nil
		}
		return c <= 0, nil
	case OpAdd:
		if ls, ok := left.(string); ok {
			return ls + stringOf(right), nil
		}
		if rs, ok := right.(string); ok {
			return stringOf(left) + rs, nil
		}
		if ll, ok := left.([]any); ok {
			if rl, ok := right.([]any); ok {
				return append(append([]any{}, ll...), rl...), nil
			}
		}
	}
	return arith(op, left, right)
}

func arith(op BinaryOp, left, right any) (any, error) {
	if op == OpPower {
		lf, lok := toFloat(left)
		rf, rok := toFloat(right)
		if !lok || !rok {
			return nil, notEvaluable("%s needs numeric operands", op)
		}
		return math.Pow(lf, rf), nil
	}
	li, lInt := left.(int64)
	ri, rInt := right.(int64)
	if lInt && rInt {
		switch op {
		case OpAdd:
			return li + ri, nil
		case OpSubtract:
			return li - ri, nil
		case OpMultiply:
			return li * ri, nil
		case OpDivide, OpModulo:
			if ri == 0 {
				return nil, notEvaluable("integer division by zero")
			}
			if op == OpDivide {
				return li / ri, nil
			}
			return li % ri, nil
		}
	}
	lf, lok := toFloat(left)
	rf, rok := toFloat(right)
	if !lok || !rok {
		return nil, notEvaluable("%s needs numeric operands, got %T and %T", op, left, right)
	}
	switch op {
	case OpAdd:
		return lf + rf, nil
	case OpSubtract:
		return lf - rf, nil
	case OpMultiply:
		return lf * rf, nil
	case OpDivide:
		return lf / rf, nil
	case OpModulo:
		return math.Mod(lf, rf), nil
	}
	return nil, notEvaluable("operator %s is not arithmetic", op)
}

func evalUnary(op UnaryOp, v any, typeName string) (any, error) {
	v = normalize(v)
	switch op {
	case OpNot:
		b, ok := v.(bool)
		if !ok {
			return nil, notEvaluable("! needs a bool, got %T", v)
		}
		return !b, nil
	case OpNegate:
		switch n := v.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		}
		return nil, notEvaluable("- needs a number, got %T", v)
	}
	return Convert(v, typeName)
}

// Convert converts a host value to a scalar type name ("int", "float",
// "string", "bool"). Other type names return v unchanged.
func Convert(v any, typeName string) (any, error) {
	v = normalize(v)
	switch typeName {
	case "int":
		switch n := v.(type) {
		case int64:
			return n, nil
		case float64:
			return int64(n), nil
		case string:
			i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
			if err != nil {
				return nil, notEvaluable("convert %q to int: %v", n, err)
			}
			return i, nil
		case bool:
			if n {
				return int64(1), nil
			}
			return int64(0), nil
		}
	case "float":
		if f, ok := toFloat(v); ok {
			return f, nil
		}
		if s, ok := v.(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, notEvaluable("convert %q to float: %v", s, err)
			}
			return f, nil
		}
	case "string":
		return stringOf(v), nil
	case "bool":
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			pb, err := strconv.ParseBool(strings.TrimSpace(b))
			if err != nil {
				return nil, notEvaluable("convert %q to bool: %v", b, err)
			}
			return pb, nil
		}
	default:
		return v, nil
	}
	return nil, notEvaluable("cannot convert %T to %s", v, typeName)
}

// normalize maps integer kinds to int64 and float kinds to float64.
func normalize(v any) any {
	switch n := v.(type) {
	case nil, int64, float64, string, bool:
		return v
	case int:
		return int64(n)
	case float32:
		return float64(n)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rv.Type() == reflect.TypeOf(time.Duration(0)) {
			return v
		}
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch n := normalize(v).(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func stringOf(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func equal(a, b any) bool {
	a, b = normalize(a), normalize(b)
	if a == nil || b == nil {
		return isNil(a) && isNil(b)
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
		return false
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Equal(bt)
		}
	}
	return reflect.DeepEqual(a, b)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func compare(a, b any) (int, error) {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1, nil
			case af > bf:
				return 1, nil
			}
			return 0, nil
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs), nil
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt), nil
		}
	}
	return 0, notEvaluable("cannot compare %T and %T", a, b)
}

func memberOf(v any, name string) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, notEvaluable("member %s of nil", name)
	case value.Object:
		got, _ := t.Get(name)
		return got, nil
	case map[string]any:
		return normalize(t[name]), nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, notEvaluable("member %s of nil %s", name, rv.Type())
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		f := rv.FieldByName(name)
		if !f.IsValid() {
			return nil, notEvaluable("%s has no member %s", rv.Type(), name)
		}
		if !f.CanInterface() {
			return nil, notEvaluable("member %s of %s is unexported", name, rv.Type())
		}
		return normalize(f.Interface()), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		got := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !got.IsValid() {
			return nil, nil
		}
		return normalize(got.Interface()), nil
	}
	return nil, notEvaluable("%T has no members", v)
}

func indexOf(target, idx any) (any, error) {
	if target == nil {
		return nil, notEvaluable("index of nil")
	}
	if s, ok := target.(string); ok {
		i, ok := normalize(idx).(int64)
		if !ok {
			return nil, notEvaluable("string index must be an int")
		}
		runes := []rune(s)
		if i < 0 || int(i) >= len(runes) {
			return nil, notEvaluable("index %d out of range", i)
		}
		return string(runes[i]), nil
	}
	rv := reflect.ValueOf(target)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		i, ok := normalize(idx).(int64)
		if !ok {
			return nil, notEvaluable("list index must be an int, got %T", idx)
		}
		if i < 0 {
			i += int64(rv.Len())
		}
		if i < 0 || int(i) >= rv.Len() {
			return nil, notEvaluable("index %d out of range", i)
		}
		return normalize(rv.Index(int(i)).Interface()), nil
	case reflect.Map:
		key := reflect.ValueOf(idx)
		if !key.IsValid() || !key.Type().ConvertibleTo(rv.Type().Key()) {
			return nil, notEvaluable("bad map key %T", idx)
		}
		got := rv.MapIndex(key.Convert(rv.Type().Key()))
		if !got.IsValid() {
			return nil, nil
		}
		return normalize(got.Interface()), nil
	}
	if obj, ok := target.(value.Object); ok {
		if k, ok := idx.(string); ok {
			got, _ := obj.Get(k)
			return got, nil
		}
	}
	return nil, notEvaluable("%T cannot be indexed", target)
}

func lengthOf(v any) (any, error) {
	switch t := v.(type) {
	case string:
		return int64(utf8.RuneCountInString(t)), nil
	case value.Object:
		return int64(len(t)), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return int64(rv.Len()), nil
	}
	return nil, notEvaluable("%T has no length", v)
}

// listOf views a host value as a list of normalized elements.
func listOf(v any) ([]any, error) {
	if l, ok := v.([]any); ok {
		return l, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out, nil
	}
	return nil, notEvaluable("%T is not a list", v)
}
