package graph

import (
	"maps"
	"slices"

	"github.com/pipeweave/core/internal/models"
)

// State is an immutable view of the graph. A mutation never touches a
// published State; it builds a new one and swaps it in.
type State struct {
	Nodes    []models.Node
	Edges    []models.Edge
	Counters map[string]int
}

func newState(g models.Graph) *State {
	g = g.Clone()
	if g.NodeIDs == nil {
		g.NodeIDs = map[string]int{}
	}
	return &State{Nodes: g.Nodes, Edges: g.Edges, Counters: g.NodeIDs}
}

func (s *State) index(id string) int {
	return slices.IndexFunc(s.Nodes, func(n models.Node) bool { return n.ID == id })
}

// Node returns the node with id.
func (s *State) Node(id string) (models.Node, bool) {
	i := s.index(id)
	if i < 0 {
		return models.Node{}, false
	}
	return s.Nodes[i], true
}

// HasEdge reports whether a connection with the same quadruple exists.
func (s *State) HasEdge(key models.EdgeKey) bool {
	return slices.ContainsFunc(s.Edges, func(e models.Edge) bool { return e.Key() == key })
}

// Graph copies the state into a snapshot.
func (s *State) Graph() models.Graph {
	return models.Graph{
		Nodes:   s.Nodes,
		Edges:   s.Edges,
		NodeIDs: s.Counters,
	}.Clone()
}

// tx accumulates one mutation. Slices are private copies; node data maps are
// shared with the previous state until written through setField.
type tx struct {
	nodes    []models.Node
	edges    []models.Edge
	counters map[string]int
}

func (s *State) begin() *tx {
	return &tx{
		nodes:    slices.Clone(s.Nodes),
		edges:    slices.Clone(s.Edges),
		counters: maps.Clone(s.Counters),
	}
}

func (t *tx) state() *State {
	return &State{Nodes: t.nodes, Edges: t.edges, Counters: t.counters}
}

func (t *tx) index(id string) int {
	return slices.IndexFunc(t.nodes, func(n models.Node) bool { return n.ID == id })
}

func (t *tx) setField(i int, field string, value any) {
	n := t.nodes[i].Clone()
	n.Data[field] = value
	t.nodes[i] = n
}

func (t *tx) hasEdge(key models.EdgeKey) bool {
	return slices.ContainsFunc(t.edges, func(e models.Edge) bool { return e.Key() == key })
}

func (t *tx) addEdge(e models.Edge) bool {
	if t.hasEdge(e.Key()) {
		return false
	}
	if e.Style == "" {
		e.Style = models.StyleNormal
	}
	t.edges = append(t.edges, e)
	return true
}

func (t *tx) removeEdge(key models.EdgeKey) bool {
	before := len(t.edges)
	t.edges = slices.DeleteFunc(t.edges, func(e models.Edge) bool { return e.Key() == key })
	return len(t.edges) != before
}
