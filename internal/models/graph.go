// Package models defines the pipeline graph snapshot exchanged with the
// editor, the persistence layer and the validation service.
package models

import "maps"

// EdgeStyle is a rendering hint carried by a connection.
type EdgeStyle string

const (
	StyleNormal    EdgeStyle = "normal"
	StyleAutoWired EdgeStyle = "auto-wired"
)

type Graph struct {
	Nodes   []Node         `json:"nodes"`
	Edges   []Edge         `json:"edges"`
	NodeIDs map[string]int `json:"nodeIDs,omitempty"`
}

type Node struct {
	ID   string         `json:"id" validate:"required"`
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

type Edge struct {
	Source       string    `json:"source" validate:"required"`
	SourceHandle string    `json:"sourceHandle,omitempty"`
	Target       string    `json:"target" validate:"required"`
	TargetHandle string    `json:"targetHandle,omitempty"`
	Style        EdgeStyle `json:"style,omitempty"`
}

// EdgeKey is the identity of a connection. Two edges with the same key are
// the same connection regardless of style.
type EdgeKey struct {
	Source       string
	SourceHandle string
	Target       string
	TargetHandle string
}

func (e Edge) Key() EdgeKey {
	return EdgeKey{
		Source:       e.Source,
		SourceHandle: e.SourceHandle,
		Target:       e.Target,
		TargetHandle: e.TargetHandle,
	}
}

// Touches reports whether either endpoint of the edge is nodeID.
func (e Edge) Touches(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}

// Handle builds the namespaced handle id of a node port.
func Handle(nodeID, port string) string {
	return nodeID + "-" + port
}

// String returns a string field value, or "" when the field is missing or not
// a string.
func (n Node) String(field string) string {
	s, _ := n.Data[field].(string)
	return s
}

// Clone copies the node so that its data map can be written without
// affecting the original.
func (n Node) Clone() Node {
	n.Data = maps.Clone(n.Data)
	if n.Data == nil {
		n.Data = map[string]any{}
	}
	return n
}

// Clone returns a deep enough copy of the graph for callers to mutate.
func (g Graph) Clone() Graph {
	out := Graph{
		Nodes:   make([]Node, len(g.Nodes)),
		Edges:   append([]Edge{}, g.Edges...),
		NodeIDs: maps.Clone(g.NodeIDs),
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = n.Clone()
	}
	return out
}
