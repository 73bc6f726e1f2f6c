package compiler

import (
	"github.com/roach88/cypherq/internal/builderr"
	"github.com/roach88/cypherq/internal/expr"
	"github.com/roach88/cypherq/internal/resolve"
)

var binarySymbols = map[expr.BinaryOp]string{
	expr.OpAnd:          "AND",
	expr.OpOr:           "OR",
	expr.OpXor:          "XOR",
	expr.OpEqual:        "=",
	expr.OpNotEqual:     "<>",
	expr.OpGreater:      ">",
	expr.OpGreaterEqual: ">=",
	expr.OpLess:         "<",
	expr.OpLessEqual:    "<=",
	expr.OpAdd:          "+",
	expr.OpSubtract:     "-",
	expr.OpMultiply:     "*",
	expr.OpDivide:       "/",
	expr.OpModulo:       "%",
	expr.OpPower:        "^",
}

func registerOperators(c *Compiler) {
	c.HandleKind(KindBinary, binaryHandler)
	c.HandleKind(KindUnary, unaryHandler)
	c.HandleKind(KindVar, identHandler)
	c.HandleKind(KindParameter, identHandler)
	c.HandleKind(KindConstant, constantHandler)
	c.HandleKind(KindEscape, escapeHandler)
	c.HandleKind(KindCoalesce, coalesceHandler)
	c.HandleKind(KindIndex, indexHandler)
	c.HandleKind(KindLength, lengthHandler)
	c.HandleKind(KindConditional, conditionalHandler)
	c.HandleKind(KindLambda, lambdaHandler)
}

func binaryHandler(x *Visit) Continuation {
	b := x.Node.(*expr.Binary)
	sym, ok := binarySymbols[b.Op]
	if !ok {
		return nil
	}
	if b.Op == expr.OpEqual || b.Op == expr.OpNotEqual {
		if cont := nullCheck(x, b); cont != nil {
			return cont
		}
	}
	return func() (expr.Node, error) {
		if !x.Bare() {
			x.Emit("(")
		}
		pow := b.Op == expr.OpPower
		if _, err := visitGrouped(x, b.Left, pow && (ungroupedPower(x, b.Left) || signed(b.Left))); err != nil {
			return nil, err
		}
		x.Emit(" ", sym, " ")
		if _, err := visitGrouped(x, b.Right, pow && (ungroupedPower(x, b.Right) || signed(b.Right))); err != nil {
			return nil, err
		}
		if !x.Bare() {
			x.Emit(")")
		}
		return b, nil
	}
}

// nullCheck rewrites a comparison against a null operand to IS [NOT] NULL.
func nullCheck(x *Visit, b *expr.Binary) Continuation {
	operand := b.Left
	if v, ok := x.Fold(b.Right); !ok || v != nil {
		v, ok := x.Fold(b.Left)
		if !ok || v != nil {
			return nil
		}
		operand = b.Right
	}
	test := " IS NULL"
	if b.Op == expr.OpNotEqual {
		test = " IS NOT NULL"
	}
	return func() (expr.Node, error) {
		if _, err := x.Visit(operand); err != nil {
			return nil, err
		}
		x.Emit(test)
		return b, nil
	}
}

func unaryHandler(x *Visit) Continuation {
	u := x.Node.(*expr.Unary)
	return func() (expr.Node, error) {
		switch u.Op {
		case expr.OpNot:
			x.Emit("NOT ")
		case expr.OpNegate:
			x.Emit("-")
		}
		return visitGrouped(x, u.Operand, ungroupedPower(x, u.Operand))
	}
}

func identHandler(x *Visit) Continuation {
	return func() (expr.Node, error) {
		x.Emit(resolve.RootName(x.Node))
		return x.Node, nil
	}
}

// constantHandler is reached only when a constant could not be rendered as a
// value.
func constantHandler(x *Visit) Continuation {
	return func() (expr.Node, error) {
		c := x.Node.(*expr.Constant)
		return nil, builderr.New(builderr.CodeUnsupportedExpression,
			"constant of type %T has no query form", c.Value)
	}
}

// escapeHandler defers escaped member paths to path resolution and translates
// any other escaped operand as is.
func escapeHandler(x *Visit) Continuation {
	e := x.Node.(*expr.Escape)
	if _, _, ok := resolve.SplitPath(e); ok {
		return nil
	}
	return func() (expr.Node, error) {
		return x.Visit(e.Operand)
	}
}

func coalesceHandler(x *Visit) Continuation {
	var operands []expr.Node
	var collect func(n expr.Node)
	collect = func(n expr.Node) {
		if c, ok := n.(*expr.Coalesce); ok && !x.Suppressed().Has(c) {
			collect(c.Left)
			collect(c.Right)
			return
		}
		operands = append(operands, n)
	}
	collect(x.Node)

	return func() (expr.Node, error) {
		x.Emit("coalesce(")
		for i, op := range operands {
			if i > 0 {
				x.Emit(", ")
			}
			if _, err := x.VisitBare(op); err != nil {
				return nil, err
			}
		}
		x.Emit(")")
		return x.Node, nil
	}
}

func indexHandler(x *Visit) Continuation {
	ix := x.Node.(*expr.Index)
	return func() (expr.Node, error) {
		if _, err := x.Visit(ix.Target); err != nil {
			return nil, err
		}
		x.Emit("[")
		if _, err := x.VisitBare(ix.Index); err != nil {
			return nil, err
		}
		x.Emit("]")
		return ix, nil
	}
}

func lengthHandler(x *Visit) Continuation {
	return func() (expr.Node, error) {
		x.Emit("size(")
		if _, err := x.VisitChildren(", "); err != nil {
			return nil, err
		}
		x.Emit(")")
		return x.Node, nil
	}
}

func conditionalHandler(x *Visit) Continuation {
	c := x.Node.(*expr.Conditional)
	return func() (expr.Node, error) {
		x.Emit("CASE WHEN ")
		if _, err := x.VisitBare(c.Test); err != nil {
			return nil, err
		}
		x.Emit(" THEN ")
		if _, err := x.VisitBare(c.Then); err != nil {
			return nil, err
		}
		x.Emit(" ELSE ")
		if _, err := x.VisitBare(c.Else); err != nil {
			return nil, err
		}
		x.Emit(" END")
		return c, nil
	}
}

// lambdaHandler claims lambdas outside a comprehension, which have no query form.
func lambdaHandler(x *Visit) Continuation {
	return func() (expr.Node, error) {
		return nil, builderr.New(builderr.CodeUnsupportedExpression,
			"lambda %s outside a list comprehension", expr.Format(x.Node))
	}
}
