// Package models defines the pipeline graph snapshot exchanged with the
// editor, the persistence layer and the validation service.
package models

import "encoding/json"

// Summary is the validation service response.
type Summary struct {
	NumNodes int  `json:"num_nodes"`
	NumEdges int  `json:"num_edges"`
	IsDAG    bool `json:"is_dag"`
}

// SnapshotVersion is the current persisted snapshot layout.
const SnapshotVersion = 1

// Snapshot is the persisted envelope around a graph.
type Snapshot struct {
	Version int   `json:"version"`
	State   Graph `json:"state"`
}

// Pipeline is a validation request. Entries stay undecoded so that malformed
// ones are still counted.
type Pipeline struct {
	Nodes []json.RawMessage `json:"nodes"`
	Edges []json.RawMessage `json:"edges"`
}
