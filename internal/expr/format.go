package expr

import (
	"fmt"
	"strings"
)

// Format renders n in a host-like notation for logs and error messages.
// It is not query text.
func Format(n Node) string {
	var sb strings.Builder
	format(&sb, n)
	return sb.String()
}

func format(sb *strings.Builder, n Node) {
	switch n := n.(type) {
	case nil:
		sb.WriteString("<nil>")
	case *Constant:
		if s, ok := n.Value.(string); ok {
			fmt.Fprintf(sb, "%q", s)
			return
		}
		fmt.Fprintf(sb, "%v", n.Value)
	case *Var:
		sb.WriteString(n.Name)
	case *Parameter:
		sb.WriteString(n.Name)
	case *Escape:
		sb.WriteString("escape(")
		format(sb, n.Operand)
		sb.WriteString(")")
	case *Member:
		format(sb, n.Target)
		sb.WriteString(".")
		sb.WriteString(n.Name)
	case *Call:
		if n.Owner != "" {
			sb.WriteString(n.Owner)
			sb.WriteString(".")
		}
		sb.WriteString(n.Method)
		formatList(sb, n.Operands())
	case *Binary:
		sb.WriteString("(")
		format(sb, n.Left)
		fmt.Fprintf(sb, " %s ", n.Op)
		format(sb, n.Right)
		sb.WriteString(")")
	case *Unary:
		if n.Op == OpConvert {
			fmt.Fprintf(sb, "%s(", n.Type)
			format(sb, n.Operand)
			sb.WriteString(")")
			return
		}
		sb.WriteString(n.Op.String())
		format(sb, n.Operand)
	case *Conditional:
		sb.WriteString("(")
		format(sb, n.Test)
		sb.WriteString(" ? ")
		format(sb, n.Then)
		sb.WriteString(" : ")
		format(sb, n.Else)
		sb.WriteString(")")
	case *Coalesce:
		sb.WriteString("(")
		format(sb, n.Left)
		sb.WriteString(" ?? ")
		format(sb, n.Right)
		sb.WriteString(")")
	case *Index:
		format(sb, n.Target)
		sb.WriteString("[")
		format(sb, n.Index)
		sb.WriteString("]")
	case *Length:
		sb.WriteString("len(")
		format(sb, n.Target)
		sb.WriteString(")")
	case *Lambda:
		sb.WriteString("(")
		for i, p := range n.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.Name)
		}
		sb.WriteString(") => ")
		format(sb, n.Body)
	case *New:
		formatBindings(sb, "new", n.Bindings)
	case *MemberInit:
		formatBindings(sb, n.Type, n.Bindings)
	case *ListInit:
		formatBindings(sb, "map", n.Entries)
	case *NewArray:
		sb.WriteString("[")
		for i, e := range n.Elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			format(sb, e)
		}
		sb.WriteString("]")
	default:
		fmt.Fprintf(sb, "<%T>", n)
	}
}

func formatList(sb *strings.Builder, nodes []Node) {
	sb.WriteString("(")
	for i, a := range nodes {
		if i > 0 {
			sb.WriteString(", ")
		}
		format(sb, a)
	}
	sb.WriteString(")")
}

func formatBindings(sb *strings.Builder, head string, bs []Binding) {
	sb.WriteString(head)
	sb.WriteString("{")
	for i, b := range bs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(b.Name)
		sb.WriteString(": ")
		format(sb, b.Value)
	}
	sb.WriteString("}")
}
