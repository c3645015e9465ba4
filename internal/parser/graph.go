// Package parser provides utilities for parsing and transforming input data.
// It handles data normalization, validation, and conversion between formats.
package parser

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/pipeweave/core/internal/models"
)

var validate = validator.New()

// Summarize counts every entry of the pipeline and checks acyclicity over
// the entries that decode into valid nodes and edges.
func Summarize(p *models.Pipeline) models.Summary {
	nodes := make([]models.Node, 0, len(p.Nodes))
	for _, raw := range p.Nodes {
		var node models.Node
		if json.Unmarshal(raw, &node) != nil || validate.Struct(node) != nil {
			continue
		}
		nodes = append(nodes, node)
	}

	edges := make([]models.Edge, 0, len(p.Edges))
	for _, raw := range p.Edges {
		var edge models.Edge
		if json.Unmarshal(raw, &edge) != nil || validate.Struct(edge) != nil {
			continue
		}
		edges = append(edges, edge)
	}

	return models.Summary{
		NumNodes: len(p.Nodes),
		NumEdges: len(p.Edges),
		IsDAG:    IsDAG(nodes, edges),
	}
}

func SummarizeGraph(g models.Graph) models.Summary {
	return models.Summary{
		NumNodes: len(g.Nodes),
		NumEdges: len(g.Edges),
		IsDAG:    IsDAG(g.Nodes, g.Edges),
	}
}

// IsDAG runs Kahn's algorithm over the edges whose endpoints are both known
// node ids. A self loop is a cycle.
func IsDAG(nodes []models.Node, edges []models.Edge) bool {
	ids := make([]string, 0, len(nodes))
	indegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		if _, seen := indegree[n.ID]; seen {
			continue
		}
		indegree[n.ID] = 0
		ids = append(ids, n.ID)
	}

	adjacency := make(map[string][]string, len(ids))
	for _, e := range edges {
		_, knownSource := indegree[e.Source]
		_, knownTarget := indegree[e.Target]
		if !knownSource || !knownTarget {
			continue
		}
		if e.Source == e.Target {
			return false
		}
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		indegree[e.Target]++
	}

	queue := make([]string, 0, len(ids))
	for _, id := range ids {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++

		for _, next := range adjacency[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	return visited == len(ids)
}
