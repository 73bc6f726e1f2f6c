package expr

// Const returns a constant node.
func Const(v any) *Constant { return &Constant{Value: v} }

// TypedConst returns a constant node carrying a registered type name.
func TypedConst(v any, typeName string) *Constant { return &Constant{Value: v, Type: typeName} }

// Variable returns a query-time variable of the given registered type.
func Variable(name, typeName string) *Var { return &Var{Name: name, Type: typeName} }

// Param returns a lambda parameter.
func Param(name, typeName string) *Parameter { return &Parameter{Name: name, Type: typeName} }

// Path chains member accesses: Path(v, "Address", "City") is v.Address.City.
func Path(root Node, names ...string) Node {
	n := root
	for _, name := range names {
		n = &Member{Target: n, Name: name}
	}
	return n
}

// Get is a single member access.
func Get(target Node, name string) *Member { return &Member{Target: target, Name: name} }

// Esc marks n for verbatim emission.
func Esc(n Node) *Escape { return &Escape{Operand: n} }

func bin(op BinaryOp, l, r Node) *Binary { return &Binary{Op: op, Left: l, Right: r} }

func And(l, r Node) *Binary { return bin(OpAnd, l, r) }
func Or(l, r Node) *Binary  { return bin(OpOr, l, r) }
func Xor(l, r Node) *Binary { return bin(OpXor, l, r) }
func Eq(l, r Node) *Binary  { return bin(OpEqual, l, r) }
func Ne(l, r Node) *Binary  { return bin(OpNotEqual, l, r) }
func Gt(l, r Node) *Binary  { return bin(OpGreater, l, r) }
func Ge(l, r Node) *Binary  { return bin(OpGreaterEqual, l, r) }
func Lt(l, r Node) *Binary  { return bin(OpLess, l, r) }
func Le(l, r Node) *Binary  { return bin(OpLessEqual, l, r) }
func Add(l, r Node) *Binary { return bin(OpAdd, l, r) }
func Sub(l, r Node) *Binary { return bin(OpSubtract, l, r) }
func Mul(l, r Node) *Binary { return bin(OpMultiply, l, r) }
func Div(l, r Node) *Binary { return bin(OpDivide, l, r) }
func Mod(l, r Node) *Binary { return bin(OpModulo, l, r) }

// Bin builds a binary node for an arbitrary operator.
func Bin(op BinaryOp, l, r Node) *Binary { return bin(op, l, r) }

// Not negates a boolean.
func Not(n Node) *Unary { return &Unary{Op: OpNot, Operand: n} }

// Neg negates a number.
func Neg(n Node) *Unary { return &Unary{Op: OpNegate, Operand: n} }

// Cast converts n to typeName.
func Cast(n Node, typeName string) *Unary { return &Unary{Op: OpConvert, Operand: n, Type: typeName} }

// Fn is a static call.
func Fn(owner, method string, args ...Node) *Call {
	return &Call{Owner: owner, Method: method, Args: args}
}

// Method is a method-style call on obj.
func Method(obj Node, owner, method string, args ...Node) *Call {
	return &Call{Owner: owner, Method: method, Object: obj, Args: args}
}

// Cypher is a query-function call such as Cypher("count", x).
func Cypher(method string, args ...Node) *Call {
	return &Call{Owner: OwnerCypher, Method: method, Args: args}
}

// Host wraps a host func in a call node. The call folds by invoking fn.
func Host(name string, fn any, args ...Node) *Call {
	return &Call{Method: name, Args: args, Fn: fn}
}

// Fun is a lambda over params.
func Fun(body Node, params ...*Parameter) *Lambda { return &Lambda{Params: params, Body: body} }

// If is a conditional.
func If(test, then, els Node) *Conditional { return &Conditional{Test: test, Then: then, Else: els} }

// OrElse is a coalesce.
func OrElse(l, r Node) *Coalesce { return &Coalesce{Left: l, Right: r} }

// At indexes target.
func At(target, index Node) *Index { return &Index{Target: target, Index: index} }

// Len is the length of target.
func Len(target Node) *Length { return &Length{Target: target} }

// Bind is a named binding.
func Bind(name string, v Node) Binding { return Binding{Name: name, Value: v} }

// Obj constructs an anonymous object.
func Obj(bindings ...Binding) *New { return &New{Bindings: bindings} }

// Init constructs a value of typeName.
func Init(typeName string, bindings ...Binding) *MemberInit {
	return &MemberInit{Type: typeName, Bindings: bindings}
}

// Array constructs a list.
func Array(elems ...Node) *NewArray { return &NewArray{Elems: elems} }

// Dict constructs a dictionary.
func Dict(entries ...Binding) *ListInit { return &ListInit{Entries: entries} }
