package compiler

import "github.com/roach88/cypherq/internal/expr"

// Suppressed is an immutable set of nodes the visitor skips. With and
// Without return new sets; the receiver is never modified, so a set can be
// handed down a recursive call without the callee's changes leaking back.
type Suppressed struct {
	nodes map[expr.Node]struct{}
}

// Has reports whether n is suppressed.
func (s Suppressed) Has(n expr.Node) bool {
	_, ok := s.nodes[n]
	return ok
}

// Empty reports whether no node is suppressed.
func (s Suppressed) Empty() bool { return len(s.nodes) == 0 }

// Len returns the number of suppressed nodes.
func (s Suppressed) Len() int { return len(s.nodes) }

// With returns s plus nodes.
func (s Suppressed) With(nodes ...expr.Node) Suppressed {
	out := make(map[expr.Node]struct{}, len(s.nodes)+len(nodes))
	for n := range s.nodes {
		out[n] = struct{}{}
	}
	for _, n := range nodes {
		if n != nil {
			out[n] = struct{}{}
		}
	}
	return Suppressed{nodes: out}
}

// Without returns s minus n.
func (s Suppressed) Without(n expr.Node) Suppressed {
	if !s.Has(n) {
		return s
	}
	out := make(map[expr.Node]struct{}, len(s.nodes)-1)
	for k := range s.nodes {
		if k != n {
			out[k] = struct{}{}
		}
	}
	return Suppressed{nodes: out}
}

// Within reports whether any suppressed node is n or one of its
// descendants. Translations of such nodes depend on the set and are not
// cached.
func (s Suppressed) Within(n expr.Node) bool {
	if s.Empty() {
		return false
	}
	found := false
	expr.Walk(n, func(c expr.Node) bool {
		if s.Has(c) {
			found = true
		}
		return !found
	})
	return found
}
