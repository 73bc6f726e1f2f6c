package pattern

import (
	"strings"

	"github.com/roach88/cypherq/internal/compiler"
)

// DefaultPathName names a shortest path wrapped without a name.
const DefaultPathName = "p"

// Path is a chain of patterns sharing endpoints. Every method returns a
// new Path; the receiver is never changed.
type Path struct {
	b        *Builder
	segments []*Pattern
	name     string
	wrap     string
}

// Path starts a path at first.
func (b *Builder) Path(first *Pattern) *Path {
	return &Path{b: b, segments: []*Pattern{first}}
}

func (p *Path) with(f func(*Path)) *Path {
	next := *p
	next.segments = append([]*Pattern(nil), p.segments...)
	f(&next)
	return &next
}

// Patterns returns the segments in order.
func (p *Path) Patterns() []*Pattern {
	return append([]*Pattern(nil), p.segments...)
}

// Extend appends a segment starting at the current trailing endpoint.
func (p *Path) Extend(r *RelSpec, next *NodeSpec) *Path {
	from := p.segments[len(p.segments)-1].trailing()
	return p.with(func(n *Path) {
		n.segments = append(n.segments, &Pattern{A: from, R: r, B: next})
	})
}

// Navigate appends the segment for following member from the trailing
// endpoint.
func (p *Path) Navigate(member, relVar, toVar string) (*Path, error) {
	from := p.segments[len(p.segments)-1].trailing()
	seg, err := p.b.Navigate(from, member, relVar, toVar)
	if err != nil {
		return nil, err
	}
	return p.with(func(n *Path) {
		n.segments = append(n.segments, seg)
	}), nil
}

// Assign binds the path to a variable: name=(a)-->(b).
func (p *Path) Assign(name string) *Path {
	return p.with(func(n *Path) { n.name = name })
}

// Shortest wraps the path in shortestPath(...) and binds it to name.
func (p *Path) Shortest(name string) *Path {
	return p.wrapped("shortestPath", name)
}

// AllShortest wraps the path in allShortestPaths(...) and binds it to
// name.
func (p *Path) AllShortest(name string) *Path {
	return p.wrapped("allShortestPaths", name)
}

func (p *Path) wrapped(fn, name string) *Path {
	if name == "" {
		name = DefaultPathName
	}
	return p.with(func(n *Path) {
		n.name = name
		n.wrap = fn
	})
}

// Render renders every segment. Each segment after the first writes only
// its relationship and far endpoint.
func (p *Path) Render(ctx *compiler.Context) (string, error) {
	var sb strings.Builder
	for i, seg := range p.segments {
		if err := p.b.render(ctx, &sb, seg, i == 0); err != nil {
			return "", err
		}
	}
	text := sb.String()
	if p.wrap != "" {
		text = p.wrap + "(" + text + ")"
	}
	if p.name != "" {
		text = p.name + "=" + text
	}
	return text, nil
}
