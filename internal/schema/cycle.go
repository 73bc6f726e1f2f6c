package schema

import (
	"sort"
	"strings"

	"github.com/roach88/cypherq/internal/builderr"
)

// complexGraph maps a complex type name to the complex types its members
// hold.
type complexGraph map[string][]string

func buildComplexGraph(types map[string]*EntityTypeInfo) complexGraph {
	graph := make(complexGraph)
	for name, info := range types {
		if info.Kind != KindComplex {
			continue
		}
		if graph[name] == nil {
			graph[name] = []string{}
		}
		for _, m := range info.Members {
			if m.Complex {
				graph[name] = append(graph[name], m.Elem())
			}
		}
	}
	return graph
}

// checkComplexCycles rejects complex types that contain themselves, directly
// or through other complex types. Flattening such a type never reaches a
// scalar leaf.
func checkComplexCycles(types map[string]*EntityTypeInfo) error {
	graph := buildComplexGraph(types)
	for _, scc := range tarjanSCC(graph) {
		if len(scc) == 1 && !hasSelfLoop(scc[0], graph) {
			continue
		}
		path := reconstructCyclePath(scc, graph)
		return builderr.New(builderr.CodeCyclicComplexType,
			"complex types form a cycle: %s", strings.Join(path, " -> ")).WithType(path[0])
	}
	return nil
}

func hasSelfLoop(node string, graph complexGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so the reported cycle is stable.
func tarjanSCC(graph complexGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Strings(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// reconstructCyclePath walks edges inside an SCC from its first member back
// to itself.
func reconstructCyclePath(scc []string, graph complexGraph) []string {
	inSCC := make(map[string]bool, len(scc))
	for _, node := range scc {
		inSCC[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)
	for {
		visited[current] = true
		var next string
		for _, neighbor := range graph[current] {
			if inSCC[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
