// Package graph validates task dependency graphs.
//
// A Graph is an immutable snapshot of dependency edges, directed from a task
// to each of its prerequisites. Proposed changes are expressed by deriving a
// new Graph with With or Without; the receiver is never modified, so a Graph
// can be shared freely between the store and any number of readers.
package graph

import (
	"fmt"
	"sort"
	"strings"
)

// CircularDependencyError reports a dependency cycle.
// Cycle starts and ends with the same id, e.g. [A B A] or [A A].
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency: %s", strings.Join(e.Cycle, " -> "))
}

// Graph is an immutable adjacency snapshot.
type Graph struct {
	order []string
	edges map[string][]string
}

// New builds a graph from a node -> prerequisites map. Node order is sorted
// by id so traversal results are deterministic.
func New(adj map[string][]string) *Graph {
	ids := make([]string, 0, len(adj))
	for id := range adj {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return build(ids, adj)
}

// FromOrdered builds a graph preserving the given node order. Nodes present in
// adj but missing from order are appended in sorted order.
func FromOrdered(order []string, adj map[string][]string) *Graph {
	seen := make(map[string]bool, len(order))
	ids := make([]string, 0, len(adj))
	for _, id := range order {
		if _, ok := adj[id]; ok && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	var rest []string
	for id := range adj {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return build(append(ids, rest...), adj)
}

func build(ids []string, adj map[string][]string) *Graph {
	g := &Graph{
		order: ids,
		edges: make(map[string][]string, len(ids)),
	}
	for _, id := range ids {
		g.edges[id] = append([]string(nil), adj[id]...)
	}
	return g
}

// With returns a graph where id has exactly deps as prerequisites. If id is
// not yet a node it is added.
func (g *Graph) With(id string, deps []string) *Graph {
	next := &Graph{
		order: g.order,
		edges: make(map[string][]string, len(g.edges)+1),
	}
	for k, v := range g.edges {
		next.edges[k] = v
	}
	if _, ok := g.edges[id]; !ok {
		next.order = append(append([]string(nil), g.order...), id)
	}
	next.edges[id] = append([]string(nil), deps...)
	return next
}

// Without returns a graph with id removed as a node and as a prerequisite.
func (g *Graph) Without(id string) *Graph {
	next := &Graph{edges: make(map[string][]string, len(g.edges))}
	for _, k := range g.order {
		if k == id {
			continue
		}
		next.order = append(next.order, k)
		deps := g.edges[k]
		var kept []string
		for _, d := range deps {
			if d != id {
				kept = append(kept, d)
			}
		}
		next.edges[k] = kept
	}
	return next
}

// Has reports whether id is a node.
func (g *Graph) Has(id string) bool {
	_, ok := g.edges[id]
	return ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// Nodes returns node ids in graph order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.order...)
}

// Prerequisites returns the prerequisites of id.
func (g *Graph) Prerequisites(id string) []string {
	return append([]string(nil), g.edges[id]...)
}

// Dependents returns the nodes that list id as a prerequisite, in graph order.
func (g *Graph) Dependents(id string) []string {
	var out []string
	for _, k := range g.order {
		for _, d := range g.edges[k] {
			if d == id {
				out = append(out, k)
				break
			}
		}
	}
	return out
}

// Dangling returns, for each node with references to ids that are not nodes,
// the list of those ids.
func (g *Graph) Dangling() map[string][]string {
	out := make(map[string][]string)
	for _, k := range g.order {
		for _, d := range g.edges[k] {
			if !g.Has(d) {
				out[k] = append(out[k], d)
			}
		}
	}
	return out
}

type mark uint8

const (
	unvisited mark = iota
	onPath
	closed
)

// walker holds traversal marks for one validation run. Marks live only for
// the duration of a check, so a Graph stays safe for concurrent readers.
type walker struct {
	g     *Graph
	marks map[string]mark
	path  []string
}

func newWalker(g *Graph) *walker {
	return &walker{g: g, marks: make(map[string]mark, len(g.edges))}
}

// visit walks prerequisite edges depth-first from id. Meeting an on-path node
// is a cycle; meeting a closed node prunes the branch.
func (w *walker) visit(id string) *CircularDependencyError {
	switch w.marks[id] {
	case onPath:
		return w.cycleTo(id)
	case closed:
		return nil
	}
	deps, ok := w.g.edges[id]
	if !ok {
		// Dangling reference: no outgoing edges to follow.
		w.marks[id] = closed
		return nil
	}

	w.marks[id] = onPath
	w.path = append(w.path, id)
	for _, dep := range deps {
		if err := w.visit(dep); err != nil {
			return err
		}
	}
	w.path = w.path[:len(w.path)-1]
	w.marks[id] = closed
	return nil
}

func (w *walker) cycleTo(id string) *CircularDependencyError {
	start := 0
	for i, p := range w.path {
		if p == id {
			start = i
			break
		}
	}
	cycle := append([]string(nil), w.path[start:]...)
	cycle = append(cycle, id)
	return &CircularDependencyError{Cycle: cycle}
}

// CheckFrom reports a cycle reachable from id, visiting only the part of the
// graph reachable through id's prerequisites.
func (g *Graph) CheckFrom(id string) error {
	if err := newWalker(g).visit(id); err != nil {
		return err
	}
	return nil
}

// CheckAll reports the first cycle found anywhere in the graph.
func (g *Graph) CheckAll() error {
	w := newWalker(g)
	for _, id := range g.order {
		if err := w.visit(id); err != nil {
			return err
		}
	}
	return nil
}

// Order returns the nodes prerequisite-first. Among nodes whose
// prerequisites are satisfied, graph order is kept.
func (g *Graph) Order() ([]string, error) {
	if err := g.CheckAll(); err != nil {
		return nil, err
	}
	placed := make(map[string]bool, len(g.order))
	out := make([]string, 0, len(g.order))
	for len(out) < len(g.order) {
		progressed := false
		for _, id := range g.order {
			if placed[id] {
				continue
			}
			ready := true
			for _, d := range g.edges[id] {
				if g.Has(d) && !placed[d] {
					ready = false
					break
				}
			}
			if ready {
				placed[id] = true
				out = append(out, id)
				progressed = true
			}
		}
		if !progressed {
			// Unreachable after CheckAll succeeded.
			return nil, fmt.Errorf("dependency order did not converge")
		}
	}
	return out, nil
}

// Startable returns, in graph order, the nodes that are not done and whose
// prerequisites are all done. Dangling prerequisites count as unresolved.
func (g *Graph) Startable(done func(id string) bool) []string {
	var out []string
	for _, id := range g.order {
		if done(id) {
			continue
		}
		ready := true
		for _, d := range g.edges[id] {
			if !g.Has(d) || !done(d) {
				ready = false
				break
			}
		}
		if ready {
			out = append(out, id)
		}
	}
	return out
}

// BlockCounts returns, for each node, how many nodes depend on it directly.
func (g *Graph) BlockCounts() map[string]int {
	counts := make(map[string]int, len(g.order))
	for _, k := range g.order {
		for _, d := range g.edges[k] {
			counts[d]++
		}
	}
	return counts
}
