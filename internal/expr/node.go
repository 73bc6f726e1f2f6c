package expr

// Node is an expression tree node.
//
// This is a sealed interface: only types in this package implement it, so
// type switches in the compiler can be exhaustive. Nodes are used by pointer
// and compared by identity; sharing one *Member between two parents is what
// lets a build reuse its rendered text.
type Node interface {
	exprNode()
}

// Constant is a host value known at build time.
// Type optionally names a registered type for struct-valued constants.
type Constant struct {
	Value any
	Type  string
}

// Var is a query-time variable such as the `movie` in `movie.Title`.
// It never evaluates: its value lives in the query, not in the host.
type Var struct {
	Name string
	Type string
}

// Parameter is a lambda parameter. It evaluates only while bound by an
// enclosing lambda invocation.
type Parameter struct {
	Name string
	Type string
}

// Escape marks its operand for verbatim emission: member names are written
// as declared, without wire-name mapping or flattening.
type Escape struct {
	Operand Node
}

// Member accesses Name on Target.
type Member struct {
	Target Node
	Name   string
}

// Call invokes Owner.Method. Object is the receiver for method-style calls
// and nil for static calls; Operands returns both forms uniformly.
// Fn optionally holds a host func used when folding calls the built-in
// function table does not know.
type Call struct {
	Owner  string
	Method string
	Object Node
	Args   []Node
	Fn     any
}

// Operands returns the receiver (if any) followed by the arguments.
func (c *Call) Operands() []Node {
	if c.Object == nil {
		return c.Args
	}
	return append([]Node{c.Object}, c.Args...)
}

// Arity is len(Operands()).
func (c *Call) Arity() int {
	if c.Object == nil {
		return len(c.Args)
	}
	return len(c.Args) + 1
}

// Binary applies Op to Left and Right.
type Binary struct {
	Op    BinaryOp
	Left  Node
	Right Node
}

// Unary applies Op to Operand. Type is the target of OpConvert.
type Unary struct {
	Op      UnaryOp
	Operand Node
	Type    string
}

// Conditional is Test ? Then : Else.
type Conditional struct {
	Test Node
	Then Node
	Else Node
}

// Coalesce is Left ?? Right.
type Coalesce struct {
	Left  Node
	Right Node
}

// Index is Target[Index].
type Index struct {
	Target Node
	Index  Node
}

// Length is the length of a list, string or map.
type Length struct {
	Target Node
}

// Lambda is an anonymous function used by list comprehensions.
type Lambda struct {
	Params []*Parameter
	Body   Node
}

// Binding assigns Value to the member Name in an object construction.
type Binding struct {
	Name  string
	Value Node
}

// New constructs an anonymous object.
type New struct {
	Bindings []Binding
}

// MemberInit constructs a value of the named type.
type MemberInit struct {
	Type     string
	Bindings []Binding
}

// NewArray constructs a list.
type NewArray struct {
	Elems []Node
}

// ListInit constructs a dictionary from key/value entries.
type ListInit struct {
	Entries []Binding
}

func (*Constant) exprNode()    {}
func (*Var) exprNode()         {}
func (*Parameter) exprNode()   {}
func (*Escape) exprNode()      {}
func (*Member) exprNode()      {}
func (*Call) exprNode()        {}
func (*Binary) exprNode()      {}
func (*Unary) exprNode()       {}
func (*Conditional) exprNode() {}
func (*Coalesce) exprNode()    {}
func (*Index) exprNode()       {}
func (*Length) exprNode()      {}
func (*Lambda) exprNode()      {}
func (*New) exprNode()         {}
func (*MemberInit) exprNode()  {}
func (*NewArray) exprNode()    {}
func (*ListInit) exprNode()    {}

// BinaryOp is a binary operator.
type BinaryOp uint8

const (
	OpAnd BinaryOp = iota
	OpOr
	OpXor
	OpEqual
	OpNotEqual
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpPower
)

var binaryOpNames = [...]string{
	OpAnd:          "&&",
	OpOr:           "||",
	OpXor:          "^^",
	OpEqual:        "==",
	OpNotEqual:     "!=",
	OpGreater:      ">",
	OpGreaterEqual: ">=",
	OpLess:         "<",
	OpLessEqual:    "<=",
	OpAdd:          "+",
	OpSubtract:     "-",
	OpMultiply:     "*",
	OpDivide:       "/",
	OpModulo:       "%",
	OpPower:        "**",
}

// String returns the host-side spelling of the operator.
func (op BinaryOp) String() string {
	if int(op) < len(binaryOpNames) {
		return binaryOpNames[op]
	}
	return "?"
}

// ParseBinaryOp parses a host-side operator spelling or its name
// ("eq", "and", ...).
func ParseBinaryOp(s string) (BinaryOp, bool) {
	for op, name := range binaryOpNames {
		if name == s {
			return BinaryOp(op), true
		}
	}
	op, ok := binaryOpWords[s]
	return op, ok
}

var binaryOpWords = map[string]BinaryOp{
	"and": OpAnd, "or": OpOr, "xor": OpXor,
	"eq": OpEqual, "ne": OpNotEqual,
	"gt": OpGreater, "ge": OpGreaterEqual, "lt": OpLess, "le": OpLessEqual,
	"add": OpAdd, "sub": OpSubtract, "mul": OpMultiply, "div": OpDivide,
	"mod": OpModulo, "pow": OpPower,
}

// UnaryOp is a unary operator.
type UnaryOp uint8

const (
	OpNot UnaryOp = iota
	OpNegate
	OpConvert
)

func (op UnaryOp) String() string {
	switch op {
	case OpNot:
		return "!"
	case OpNegate:
		return "-"
	}
	return "convert"
}

// Well-known call owners.
const (
	// OwnerStrings holds string functions (ToUpper, Replace, Contains, ...).
	OwnerStrings = "strings"
	// OwnerMath holds numeric functions (Pow, Abs, Sqrt, ...).
	OwnerMath = "math"
	// OwnerSeq holds list functions and comprehensions (Where, Select, ...).
	OwnerSeq = "seq"
	// OwnerConv holds conversions (ToString, ToInteger, ...).
	OwnerConv = "conv"
	// OwnerCypher marks query functions. Calls on this owner never fold.
	OwnerCypher = "cypher"
)
