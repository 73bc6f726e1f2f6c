package expr

// Children returns the direct children of n in source order.
// Lambda parameters are not children; the lambda body is.
func Children(n Node) []Node {
	switch n := n.(type) {
	case *Escape:
		return []Node{n.Operand}
	case *Member:
		return []Node{n.Target}
	case *Call:
		return n.Operands()
	case *Binary:
		return []Node{n.Left, n.Right}
	case *Unary:
		return []Node{n.Operand}
	case *Conditional:
		return []Node{n.Test, n.Then, n.Else}
	case *Coalesce:
		return []Node{n.Left, n.Right}
	case *Index:
		return []Node{n.Target, n.Index}
	case *Length:
		return []Node{n.Target}
	case *Lambda:
		return []Node{n.Body}
	case *New:
		return bindingValues(n.Bindings)
	case *MemberInit:
		return bindingValues(n.Bindings)
	case *ListInit:
		return bindingValues(n.Entries)
	case *NewArray:
		return n.Elems
	}
	return nil
}

func bindingValues(bs []Binding) []Node {
	out := make([]Node, len(bs))
	for i, b := range bs {
		out[i] = b.Value
	}
	return out
}

// Walk calls fn for n and its descendants in depth-first pre-order until fn
// returns false for a node, which skips that node's children.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}

// Contains reports whether target occurs in the tree rooted at n.
func Contains(n, target Node) bool {
	found := false
	Walk(n, func(c Node) bool {
		if c == target {
			found = true
		}
		return !found
	})
	return found
}
