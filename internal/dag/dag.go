package dag

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrNodeNotFound is returned when an edge or query names a missing node.
	ErrNodeNotFound = errors.New("node not found")
	// ErrSelfEdge is returned for an edge from a node to itself.
	ErrSelfEdge = errors.New("self-referential edge not allowed")
	// ErrCycle is wrapped by every *CycleError.
	ErrCycle = errors.New("cycle detected")
)

// CycleError lists the nodes of one cycle in edge order; the first node is
// repeated at the end.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCycle, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// Graph is a set of nodes and their ordering constraints. All methods are
// safe for concurrent use.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*vertex
}

type vertex struct {
	id    string
	after map[string]*vertex // predecessors
	next  map[string]*vertex // successors
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*vertex)}
}

// AddNode adds id. Adding an existing node does nothing.
func (g *Graph) AddNode(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = &vertex{id: id, after: make(map[string]*vertex), next: make(map[string]*vertex)}
}

// AddEdge orders to after from.
func (g *Graph) AddEdge(from, to string) error {
	if from == to {
		return fmt.Errorf("%w: %s -> %s", ErrSelfEdge, from, to)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	src, ok := g.nodes[from]
	if !ok {
		return fmt.Errorf("source %w: %s", ErrNodeNotFound, from)
	}
	dst, ok := g.nodes[to]
	if !ok {
		return fmt.Errorf("destination %w: %s", ErrNodeNotFound, to)
	}
	dst.after[from] = src
	src.next[to] = dst
	return nil
}

// Dependencies returns the sorted IDs id runs after.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return sortedIDs(v.after), nil
}

// Dependents returns the sorted IDs that run after id.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return sortedIDs(v.next), nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// DetectCycles returns a *CycleError for the first cycle found, visiting
// nodes in ID order.
func (g *Graph) DetectCycles() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	const (
		white = iota // unvisited
		grey         // on the current path
		black        // done, not part of a cycle
	)
	colour := make(map[string]int, len(g.nodes))
	var path []string

	var visit func(v *vertex) error
	visit = func(v *vertex) error {
		switch colour[v.id] {
		case black:
			return nil
		case grey:
			start := 0
			for i, id := range path {
				if id == v.id {
					start = i
				}
			}
			cycle := append(append([]string{}, path[start:]...), v.id)
			return &CycleError{Path: cycle}
		}
		colour[v.id] = grey
		path = append(path, v.id)
		for _, id := range sortedIDs(v.next) {
			if err := visit(v.next[id]); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		colour[v.id] = black
		return nil
	}

	for _, id := range sortedIDs(g.nodes) {
		if err := visit(g.nodes[id]); err != nil {
			return err
		}
	}
	return nil
}

// TopologicalOrder returns every node after all of its dependencies. Nodes
// that become ready together are ordered by ID.
func (g *Graph) TopologicalOrder() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	waiting := make(map[string]int, len(g.nodes))
	var ready []string
	for id, v := range g.nodes {
		waiting[id] = len(v.after)
		if len(v.after) == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		sort.Strings(ready)
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for next := range g.nodes[id].next {
			waiting[next]--
			if waiting[next] == 0 {
				ready = append(ready, next)
			}
		}
	}
	if len(order) != len(g.nodes) {
		return nil, fmt.Errorf("%w among %d node(s)", ErrCycle, len(g.nodes)-len(order))
	}
	return order, nil
}

func sortedIDs(m map[string]*vertex) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
