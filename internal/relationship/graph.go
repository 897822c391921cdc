package relationship

import (
	"fmt"
	"sort"
	"strings"

	"github.com/memexlabs/memex/internal/errs"
)

// Graph is an in-memory adjacency map built from stored relationships,
// restricted (via Filtered) to a single relationship Type for the
// cycle-safety checks the engine runs before persisting an edge.
type Graph struct {
	// adj maps an episode id to the ids of its direct successors.
	adj map[string][]string
	// rev is the reverse adjacency, successor -> predecessors.
	rev map[string][]string
	// nodes tracks every episode id that appears in any edge.
	nodes map[string]struct{}
}

// NewGraph builds a Graph from a set of relationships.
func NewGraph(rels []Relationship) *Graph {
	g := &Graph{adj: map[string][]string{}, rev: map[string][]string{}, nodes: map[string]struct{}{}}
	for _, r := range rels {
		g.AddEdge(r.From, r.To)
	}
	return g
}

// AddEdge inserts a directed edge from -> to.
func (g *Graph) AddEdge(from, to string) {
	g.adj[from] = append(g.adj[from], to)
	g.rev[to] = append(g.rev[to], from)
	g.nodes[from] = struct{}{}
	g.nodes[to] = struct{}{}
}

// Filtered builds a Graph containing only relationships of the given type,
// used to check the acyclic invariant before inserting a new edge of that
// type.
func Filtered(rels []Relationship, t Type) *Graph {
	var filtered []Relationship
	for _, r := range rels {
		if r.Type == t {
			filtered = append(filtered, r)
		}
	}
	return NewGraph(filtered)
}

// HasPath reports whether b is reachable from a via DFS. By convention
// a->a is true (an episode trivially has a path to itself).
func (g *Graph) HasPath(a, b string) bool {
	if a == b {
		return true
	}
	visited := map[string]struct{}{}
	return g.dfsReach(a, b, visited)
}

func (g *Graph) dfsReach(cur, target string, visited map[string]struct{}) bool {
	if cur == target {
		return true
	}
	if _, ok := visited[cur]; ok {
		return false
	}
	visited[cur] = struct{}{}
	for _, next := range g.adj[cur] {
		if g.dfsReach(next, target, visited) {
			return true
		}
	}
	return false
}

// FindPath returns the discovered path from a to b (inclusive), or
// TraversalError if none exists.
func (g *Graph) FindPath(a, b string) ([]string, error) {
	if a == b {
		return []string{a}, nil
	}
	visited := map[string]struct{}{}
	path, ok := g.dfsPath(a, b, visited)
	if !ok {
		return nil, errs.Wrap("graph.find_path", errs.KindTraversalError, errs.ErrNoPath)
	}
	return path, nil
}

func (g *Graph) dfsPath(cur, target string, visited map[string]struct{}) ([]string, bool) {
	if cur == target {
		return []string{cur}, true
	}
	if _, ok := visited[cur]; ok {
		return nil, false
	}
	visited[cur] = struct{}{}
	for _, next := range g.adj[cur] {
		if rest, ok := g.dfsPath(next, target, visited); ok {
			return append([]string{cur}, rest...), true
		}
	}
	return nil, false
}

type colorState int

const (
	white colorState = iota // unvisited
	gray                    // in recursion stack
	black                   // finished
)

// HasCycle runs a three-color DFS over every node; a back-edge to a gray
// node (including a self-edge) is a cycle.
func (g *Graph) HasCycle() bool {
	colors := map[string]colorState{}
	for n := range g.nodes {
		if colors[n] == white {
			if g.hasCycleDFS(n, colors) {
				return true
			}
		}
	}
	return false
}

func (g *Graph) hasCycleDFS(n string, colors map[string]colorState) bool {
	colors[n] = gray
	for _, next := range g.adj[n] {
		switch colors[next] {
		case gray:
			return true
		case white:
			if g.hasCycleDFS(next, colors) {
				return true
			}
		}
	}
	colors[n] = black
	return false
}

// HasCycleFrom reports whether a cycle reachable from start exists and,
// if so, returns the cycle's nodes in order, starting at the node the
// back-edge returns to; that node is not repeated at the end.
func (g *Graph) HasCycleFrom(start string) (bool, []string) {
	colors := map[string]colorState{}
	var stack []string
	found, cycle := g.hasCycleFromDFS(start, colors, &stack)
	return found, cycle
}

func (g *Graph) hasCycleFromDFS(n string, colors map[string]colorState, stack *[]string) (bool, []string) {
	colors[n] = gray
	*stack = append(*stack, n)
	for _, next := range g.adj[n] {
		if colors[next] == gray {
			// Back-edge: extract the cycle from stack.
			idx := -1
			for i, s := range *stack {
				if s == next {
					idx = i
					break
				}
			}
			if idx >= 0 {
				cycle := append([]string{}, (*stack)[idx:]...)
				return true, cycle
			}
			return true, []string{next}
		}
		if colors[next] == white {
			if found, cycle := g.hasCycleFromDFS(next, colors, stack); found {
				return true, cycle
			}
		}
	}
	*stack = (*stack)[:len(*stack)-1]
	colors[n] = black
	return false, nil
}

// TopologicalSort produces a linear order respecting every edge; it
// errors iff the graph has a cycle.
func (g *Graph) TopologicalSort() ([]string, error) {
	if g.HasCycle() {
		return nil, errs.Wrap("graph.topological_sort", errs.KindTraversalError, errs.ErrWouldCycle)
	}
	visited := map[string]struct{}{}
	var order []string

	// Deterministic iteration order over nodes for reproducible output.
	names := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		names = append(names, n)
	}
	sort.Strings(names)

	var visit func(string)
	visit = func(n string) {
		if _, ok := visited[n]; ok {
			return
		}
		visited[n] = struct{}{}
		next := append([]string{}, g.adj[n]...)
		sort.Strings(next)
		for _, m := range next {
			visit(m)
		}
		order = append(order, n)
	}
	for _, n := range names {
		visit(n)
	}
	// visit appends post-order; reverse for a topological order.
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}

// GetTransitiveClosure runs BFS from start and returns every reachable
// node, excluding start.
func (g *Graph) GetTransitiveClosure(start string) []string {
	visited := map[string]struct{}{start: {}}
	queue := []string{start}
	var result []string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, next := range g.adj[n] {
			if _, ok := visited[next]; !ok {
				visited[next] = struct{}{}
				result = append(result, next)
				queue = append(queue, next)
			}
		}
	}
	return result
}

// GetAncestors runs BFS on the reversed adjacency from target and
// returns every node that can reach target, excluding target.
func (g *Graph) GetAncestors(target string) []string {
	visited := map[string]struct{}{target: {}}
	queue := []string{target}
	var result []string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, prev := range g.rev[n] {
			if _, ok := visited[prev]; !ok {
				visited[prev] = struct{}{}
				result = append(result, prev)
				queue = append(queue, prev)
			}
		}
	}
	return result
}

// FindAllCyclesFromNode enumerates simple cycles containing start.
func (g *Graph) FindAllCyclesFromNode(start string) [][]string {
	var cycles [][]string
	var path []string
	onPath := map[string]struct{}{}

	var dfs func(n string)
	dfs = func(n string) {
		path = append(path, n)
		onPath[n] = struct{}{}
		for _, next := range g.adj[n] {
			if next == start && len(path) > 0 {
				cycles = append(cycles, append([]string{}, path...))
				continue
			}
			if _, seen := onPath[next]; !seen {
				dfs(next)
			}
		}
		path = path[:len(path)-1]
		delete(onPath, n)
	}
	dfs(start)
	return cycles
}

// WouldCreateCycle reports whether adding edge from->to to this graph
// would introduce a cycle, without mutating the receiver.
func (g *Graph) WouldCreateCycle(from, to string) bool {
	if from == to {
		return true
	}
	// A new edge from->to creates a cycle iff to can already reach from.
	return g.HasPath(to, from)
}

// Render produces an ASCII tree of the graph rooted at root, depth-bounded.
func (g *Graph) Render(root string, maxDepth int) string {
	var b strings.Builder
	visited := map[string]struct{}{}
	g.renderNode(&b, root, "", maxDepth, visited)
	return b.String()
}

func (g *Graph) renderNode(b *strings.Builder, n, prefix string, depth int, visited map[string]struct{}) {
	fmt.Fprintf(b, "%s%s\n", prefix, n)
	if depth <= 0 {
		return
	}
	if _, ok := visited[n]; ok {
		return
	}
	visited[n] = struct{}{}
	children := append([]string{}, g.adj[n]...)
	sort.Strings(children)
	for _, c := range children {
		g.renderNode(b, c, prefix+"  ", depth-1, visited)
	}
}
