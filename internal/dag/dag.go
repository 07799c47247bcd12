// Package dag orders models by their ref() dependencies.
// It reports every model caught in a dependency cycle and produces a
// deterministic topological order for lineage resolution.
package dag

import (
	"fmt"
	"sort"
	"strings"
)

// Node is a model in the graph.
type Node struct {
	// ID is the model name.
	ID string
	// Data holds caller data, typically the file the model came from.
	Data any
}

// Graph is a directed graph of models. An edge parent -> child means the
// child selects from the parent.
type Graph struct {
	nodes   map[string]*Node
	edges   map[string][]string // parent -> children
	parents map[string][]string // child -> parents
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// AddNode adds a node, replacing the data of an existing one.
func (g *Graph) AddNode(id string, data any) {
	if n, ok := g.nodes[id]; ok {
		n.Data = data
		return
	}
	g.nodes[id] = &Node{ID: id, Data: data}
}

// AddEdge records that child depends on parent. Both nodes must exist.
// A self-edge is accepted and reported as a cycle.
func (g *Graph) AddEdge(parentID, childID string) error {
	if _, ok := g.nodes[parentID]; !ok {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, ok := g.nodes[childID]; !ok {
		return fmt.Errorf("child node %q does not exist", childID)
	}
	if !contains(g.edges[parentID], childID) {
		g.edges[parentID] = append(g.edges[parentID], childID)
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// Node returns a node by ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Parents returns the direct dependencies of id.
func (g *Graph) Parents(id string) []string {
	return g.parents[id]
}

// Children returns the direct dependents of id.
func (g *Graph) Children(id string) []string {
	return g.edges[id]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, children := range g.edges {
		n += len(children)
	}
	return n
}

// IDs returns every node ID in sorted order.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Subgraph returns a graph holding only ids and the edges between them.
// Unknown ids are ignored.
func (g *Graph) Subgraph(ids []string) *Graph {
	keep := make(map[string]bool, len(ids))
	sub := NewGraph()
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok {
			keep[id] = true
			sub.AddNode(id, n.Data)
		}
	}
	for _, parent := range sub.IDs() {
		for _, child := range g.edges[parent] {
			if keep[child] {
				_ = sub.AddEdge(parent, child)
			}
		}
	}
	return sub
}

// CycleError lists the members of one dependency cycle.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	path := append(append([]string(nil), e.Members...), e.Members[0])
	return "dependency cycle: " + strings.Join(path, " -> ")
}

// Cycles returns every strongly connected component that forms a cycle:
// components of two or more nodes, and single nodes with a self-edge.
// Members of each cycle and the cycles themselves are sorted.
func (g *Graph) Cycles() []*CycleError {
	t := &tarjan{
		g:       g,
		index:   make(map[string]int),
		low:     make(map[string]int),
		onStack: make(map[string]bool),
	}
	for _, id := range g.IDs() {
		if _, seen := t.index[id]; !seen {
			t.connect(id)
		}
	}

	sort.Slice(t.cycles, func(i, j int) bool {
		return t.cycles[i].Members[0] < t.cycles[j].Members[0]
	})
	return t.cycles
}

type tarjan struct {
	g       *Graph
	next    int
	index   map[string]int
	low     map[string]int
	stack   []string
	onStack map[string]bool
	cycles  []*CycleError
}

func (t *tarjan) connect(id string) {
	t.index[id] = t.next
	t.low[id] = t.next
	t.next++
	t.stack = append(t.stack, id)
	t.onStack[id] = true

	for _, child := range t.g.edges[id] {
		if _, seen := t.index[child]; !seen {
			t.connect(child)
			t.low[id] = min(t.low[id], t.low[child])
		} else if t.onStack[child] {
			t.low[id] = min(t.low[id], t.index[child])
		}
	}

	if t.low[id] != t.index[id] {
		return
	}

	var members []string
	for {
		top := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[top] = false
		members = append(members, top)
		if top == id {
			break
		}
	}
	if len(members) > 1 || contains(t.g.edges[id], id) {
		sort.Strings(members)
		t.cycles = append(t.cycles, &CycleError{Members: members})
	}
}

// TopologicalSort returns node IDs with every dependency before its
// dependents. Ties are broken by name. It fails with the first *CycleError
// when the graph has a cycle.
func (g *Graph) TopologicalSort() ([]string, error) {
	if cycles := g.Cycles(); len(cycles) > 0 {
		return nil, cycles[0]
	}

	indegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = len(g.parents[id])
	}

	var ready []string
	for _, id := range g.IDs() {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		var released []string
		for _, child := range g.edges[id] {
			indegree[child]--
			if indegree[child] == 0 {
				released = append(released, child)
			}
		}
		sort.Strings(released)
		ready = mergeSorted(ready, released)
	}
	return order, nil
}

// Upstream returns every transitive dependency of id, sorted.
func (g *Graph) Upstream(id string) []string {
	return g.reach(id, g.parents)
}

// Downstream returns every transitive dependent of id, sorted.
func (g *Graph) Downstream(id string) []string {
	return g.reach(id, g.edges)
}

func (g *Graph) reach(id string, next map[string][]string) []string {
	seen := make(map[string]bool)
	var visit func(string)
	visit = func(n string) {
		for _, m := range next[n] {
			if !seen[m] {
				seen[m] = true
				visit(m)
			}
		}
	}
	visit(id)
	delete(seen, id)

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func mergeSorted(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
