package compiler

import (
	"strings"

	"github.com/roach88/cypherq/internal/expr"
)

func registerFunctions(c *Compiler) {
	registerStrings(c)
	registerMath(c)
	registerConv(c)
	registerSeq(c)
	registerCypher(c)
}

func registerStrings(c *Compiler) {
	for method, fn := range map[string]string{
		"ToUpper":   "toUpper",
		"ToLower":   "toLower",
		"TrimSpace": "trim",
		"Trim":      "trim",
		"TrimStart": "ltrim",
		"TrimEnd":   "rtrim",
		"Reverse":   "reverse",
		"Len":       "size",
	} {
		c.HandleCall(expr.OwnerStrings, method, 1, function(fn))
	}
	c.HandleCall(expr.OwnerStrings, "Contains", 2, infix("CONTAINS"))
	c.HandleCall(expr.OwnerStrings, "HasPrefix", 2, infix("STARTS WITH"))
	c.HandleCall(expr.OwnerStrings, "HasSuffix", 2, infix("ENDS WITH"))
	c.HandleCall(expr.OwnerStrings, "Replace", 3, function("replace"))
	c.HandleCall(expr.OwnerStrings, "Split", 2, function("split"))
	c.HandleCall(expr.OwnerStrings, "Substring", 2, function("substring"))
	c.HandleCall(expr.OwnerStrings, "Substring", 3, function("substring"))
	c.HandleCall(expr.OwnerStrings, "Left", 2, function("left"))
	c.HandleCall(expr.OwnerStrings, "Right", 2, function("right"))
}

func registerMath(c *Compiler) {
	for _, method := range []string{
		"Abs", "Sqrt", "Floor", "Ceil", "Round", "Exp", "Log", "Log10",
		"Sin", "Cos", "Tan", "Asin", "Acos", "Atan", "Sign",
	} {
		c.HandleCall(expr.OwnerMath, method, 1, function(strings.ToLower(method)))
	}
	c.HandleCall(expr.OwnerMath, "Pow", 2, power)
	c.HandleCall(expr.OwnerMath, "Min", 2, pick(expr.OpLess))
	c.HandleCall(expr.OwnerMath, "Max", 2, pick(expr.OpGreater))
}

func registerConv(c *Compiler) {
	for method, fn := range map[string]string{
		"ToString":  "toString",
		"ToInteger": "toInteger",
		"ToFloat":   "toFloat",
		"ToBoolean": "toBoolean",
	} {
		c.HandleCall(expr.OwnerConv, method, 1, function(fn))
	}
}

func registerSeq(c *Compiler) {
	c.HandleCall(expr.OwnerSeq, "Where", 2, comprehension("filter", " WHERE "))
	c.HandleCall(expr.OwnerSeq, "Select", 2, comprehension("extract", " | "))
	c.HandleCall(expr.OwnerSeq, "Aggregate", 3, aggregate)
	for _, method := range []string{"Any", "All", "None", "Single"} {
		c.HandleCall(expr.OwnerSeq, method, 2, comprehension(strings.ToLower(method), " WHERE "))
	}
	c.HandleCall(expr.OwnerSeq, "Any", 1, nonEmpty)
	c.HandleCall(expr.OwnerSeq, "Contains", 2, membership)
	c.HandleCall(expr.OwnerSeq, "Count", 1, function("size"))
	c.HandleCall(expr.OwnerSeq, "Len", 1, function("size"))
	c.HandleCall(expr.OwnerSeq, "Count", 2, wrap("size", comprehension("filter", " WHERE ")))
	c.HandleCall(expr.OwnerSeq, "Sum", 1, sum)
	c.HandleCall(expr.OwnerSeq, "First", 1, function("head"))
	c.HandleCall(expr.OwnerSeq, "Last", 1, function("last"))
	c.HandleCall(expr.OwnerSeq, "Reverse", 1, function("reverse"))
	c.HandleCall(expr.OwnerSeq, "Range", 2, function("range"))
}

// Query functions available on the cypher owner. Aggregates also accept a
// "Distinct" suffix: countDistinct(x) renders count(DISTINCT x).
var (
	cypherFunctions = []string{
		"id", "elementId", "type", "labels", "keys", "properties",
		"nodes", "relationships", "length", "size", "head", "last", "tail",
		"startNode", "endNode", "exists", "coalesce", "timestamp",
		"date", "datetime", "toLower", "toUpper",
	}
	cypherAggregates = []string{
		"collect", "count", "sum", "avg", "min", "max",
		"stDev", "stDevP", "percentileCont", "percentileDisc",
	}
)

func registerCypher(c *Compiler) {
	for _, fn := range cypherFunctions {
		c.HandleCall(expr.OwnerCypher, fn, AnyArity, function(fn))
	}
	for _, fn := range cypherAggregates {
		c.HandleCall(expr.OwnerCypher, fn, AnyArity, function(fn))
		c.HandleCall(expr.OwnerCypher, fn+"Distinct", AnyArity, distinct(fn))
	}
	c.HandleCall(expr.OwnerCypher, "count", 0, func(x *Visit) Continuation {
		return func() (expr.Node, error) {
			x.Emit("count(*)")
			return x.Node, nil
		}
	})
}

// function renders fn(operand, ...).
func function(fn string) Handler {
	return func(x *Visit) Continuation {
		return func() (expr.Node, error) {
			x.Emit(fn, "(")
			if _, err := x.VisitChildren(", "); err != nil {
				return nil, err
			}
			x.Emit(")")
			return x.Node, nil
		}
	}
}

func distinct(fn string) Handler {
	return func(x *Visit) Continuation {
		return func() (expr.Node, error) {
			x.Emit(fn, "(DISTINCT ")
			if _, err := x.VisitChildren(", "); err != nil {
				return nil, err
			}
			x.Emit(")")
			return x.Node, nil
		}
	}
}

// infix renders (left OP right).
func infix(op string) Handler {
	return func(x *Visit) Continuation {
		return func() (expr.Node, error) {
			if !x.Bare() {
				x.Emit("(")
			}
			if _, err := x.VisitChildren(" " + op + " "); err != nil {
				return nil, err
			}
			if !x.Bare() {
				x.Emit(")")
			}
			return x.Node, nil
		}
	}
}

// wrap renders fn(...) around whatever h emits.
func wrap(fn string, h Handler) Handler {
	return func(x *Visit) Continuation {
		inner := h(x)
		if inner == nil {
			return nil
		}
		return func() (expr.Node, error) {
			x.Emit(fn, "(")
			n, err := inner()
			if err != nil {
				return nil, err
			}
			x.Emit(")")
			return n, nil
		}
	}
}

// power renders a ^ b. Integer literal operands are written as floats,
// since Cypher's ^ always yields a float. ^ is left-associative and binds
// looser than unary minus, so nested powers and signed operands are grouped.
func power(x *Visit) Continuation {
	ops := x.Node.(*expr.Call).Operands()
	return func() (expr.Node, error) {
		if err := visitFloat(x, ops[0]); err != nil {
			return nil, err
		}
		x.Emit(" ^ ")
		if err := visitFloat(x, ops[1]); err != nil {
			return nil, err
		}
		return x.Node, nil
	}
}

func visitFloat(x *Visit, n expr.Node) error {
	if v, ok := x.Fold(n); ok {
		switch i := v.(type) {
		case int64:
			return x.EmitValue(float64(i))
		case int:
			return x.EmitValue(float64(i))
		}
	}
	_, err := visitGrouped(x, n, ungroupedPower(x, n) || signed(n))
	return err
}

// visitGrouped visits n, in parentheses when group is set.
func visitGrouped(x *Visit, n expr.Node, group bool) (expr.Node, error) {
	if !group {
		return x.Visit(n)
	}
	x.Emit("(")
	out, err := x.Visit(n)
	if err != nil {
		return nil, err
	}
	x.Emit(")")
	return out, nil
}

// ungroupedPower reports whether n renders as a bare a ^ b.
func ungroupedPower(x *Visit, n expr.Node) bool {
	c, ok := n.(*expr.Call)
	if !ok || c.Owner != expr.OwnerMath || c.Method != "Pow" {
		return false
	}
	_, constant := x.Fold(n)
	return !constant
}

func signed(n expr.Node) bool {
	u, ok := n.(*expr.Unary)
	return ok && (u.Op == expr.OpNegate || u.Op == expr.OpNot)
}

// pick renders min/max as CASE WHEN a OP b THEN a ELSE b END.
func pick(op expr.BinaryOp) Handler {
	return func(x *Visit) Continuation {
		ops := x.Node.(*expr.Call).Operands()
		a, b := ops[0], ops[1]
		return func() (expr.Node, error) {
			err := x.Write("CASE WHEN ", a, " "+binarySymbols[op]+" ", b, " THEN ", a, " ELSE ", b, " END")
			if err != nil {
				return nil, err
			}
			return x.Node, nil
		}
	}
}

func lambdaOf(n expr.Node, params int) (*expr.Lambda, bool) {
	l, ok := n.(*expr.Lambda)
	if !ok || len(l.Params) != params {
		return nil, false
	}
	return l, true
}

// comprehension renders fn(p IN source<sep>body) for seq calls taking a
// source list and a one-parameter lambda.
func comprehension(fn, sep string) Handler {
	return func(x *Visit) Continuation {
		ops := x.Node.(*expr.Call).Operands()
		lam, ok := lambdaOf(ops[1], 1)
		if !ok {
			return nil
		}
		return func() (expr.Node, error) {
			x.Emit(fn, "(", lam.Params[0].Name, " IN ")
			x.Suppress(lam)
			if _, err := x.VisitChildren(""); err != nil {
				return nil, err
			}
			x.Emit(sep)
			if _, err := x.VisitBare(lam.Body); err != nil {
				return nil, err
			}
			x.Emit(")")
			return x.Node, nil
		}
	}
}

// aggregate renders reduce(acc = seed, v IN source | body). The source is
// held back while the seed is written and reinstated after it.
func aggregate(x *Visit) Continuation {
	ops := x.Node.(*expr.Call).Operands()
	src := ops[0]
	lam, ok := lambdaOf(ops[2], 2)
	if !ok {
		return nil
	}
	return func() (expr.Node, error) {
		x.Emit("reduce(", lam.Params[0].Name, " = ")
		x.Suppress(src, lam)
		if _, err := x.VisitChildren(""); err != nil {
			return nil, err
		}
		x.Emit(", ", lam.Params[1].Name, " IN ")
		if _, err := x.Reinstate(src); err != nil {
			return nil, err
		}
		x.Emit(" | ")
		if _, err := x.VisitBare(lam.Body); err != nil {
			return nil, err
		}
		x.Emit(")")
		return x.Node, nil
	}
}

func nonEmpty(x *Visit) Continuation {
	return func() (expr.Node, error) {
		if !x.Bare() {
			x.Emit("(")
		}
		x.Emit("size(")
		if _, err := x.VisitChildren(", "); err != nil {
			return nil, err
		}
		x.Emit(") > 0")
		if !x.Bare() {
			x.Emit(")")
		}
		return x.Node, nil
	}
}

// membership renders seq.Contains(list, v) as v IN list.
func membership(x *Visit) Continuation {
	list := x.Node.(*expr.Call).Operands()[0]
	return func() (expr.Node, error) {
		if !x.Bare() {
			x.Emit("(")
		}
		x.Suppress(list)
		if _, err := x.VisitChildren(""); err != nil {
			return nil, err
		}
		x.Emit(" IN ")
		if _, err := x.Reinstate(list); err != nil {
			return nil, err
		}
		if !x.Bare() {
			x.Emit(")")
		}
		return x.Node, nil
	}
}

func sum(x *Visit) Continuation {
	return func() (expr.Node, error) {
		x.Emit("reduce(_sum = 0, _x IN ")
		if _, err := x.VisitChildren(""); err != nil {
			return nil, err
		}
		x.Emit(" | _sum + _x)")
		return x.Node, nil
	}
}
