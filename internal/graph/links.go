package graph

import (
	"cmp"
	"maps"
	"slices"

	"github.com/pipeweave/core/internal/models"
	"github.com/pipeweave/core/internal/token"
)

// providerIndex resolves reference names to provider nodes. When several
// providers share a name the first one in node order wins.
type providerIndex map[string]models.Node

func (r *Registry) providers(nodes []models.Node) providerIndex {
	idx := providerIndex{}
	for _, n := range nodes {
		name, ok := r.referenceName(n)
		if !ok {
			continue
		}
		if _, taken := idx[name]; !taken {
			idx[name] = n
		}
	}
	return idx
}

// nameOf returns the name a provider node claims, valid identifier or not.
func (r *Registry) nameOf(n models.Node) (string, bool) {
	p, ok := r.Provider(n.Type)
	if !ok {
		return "", false
	}
	switch p.Addressing {
	case ByName:
		return n.String(p.NameField), true
	case ByNodeID:
		return p.NodeName(n.ID), true
	}
	return "", false
}

// referenceName returns the name a provider node is referenced by, if any.
func (r *Registry) referenceName(n models.Node) (string, bool) {
	name, ok := r.nameOf(n)
	return name, ok && token.IsIdentifier(name)
}

// targetHandle is the handle a reference to name in field f of node lands on.
func targetHandle(nodeID string, f FieldSpec, name string) string {
	if f.Dynamic() {
		return models.Handle(nodeID, name)
	}
	return models.Handle(nodeID, f.Port)
}

// connection builds the edge that wires provider into field f of consumer.
func (r *Registry) connection(provider models.Node, consumerID string, f FieldSpec, name string) models.Edge {
	p, _ := r.Provider(provider.Type)
	return models.Edge{
		Source:       provider.ID,
		SourceHandle: models.Handle(provider.ID, p.Output),
		Target:       consumerID,
		TargetHandle: targetHandle(consumerID, f, name),
		Style:        models.StyleAutoWired,
	}
}

// links computes the connections the token text of nodes implies: one per
// resolved (provider, consumer handle) pair.
func (r *Registry) links(nodes []models.Node) map[models.EdgeKey]models.Edge {
	idx := r.providers(nodes)
	out := map[models.EdgeKey]models.Edge{}

	for _, consumer := range nodes {
		for _, f := range r.Templated(consumer.Type) {
			for _, name := range token.Names(token.ExtractRefs(consumer.String(f.Name))) {
				provider, ok := idx[name]
				if !ok || provider.ID == consumer.ID {
					continue
				}
				e := r.connection(provider, consumer.ID, f, name)
				out[e.Key()] = e
			}
		}
	}

	return out
}

// relink brings the edges of next in line with the token text change from
// prev: connections for references that disappeared are removed, those for
// references that became resolvable are added.
func (r *Registry) relink(prev []models.Node, t *tx) (added, removed int) {
	before := r.links(prev)
	after := r.links(t.nodes)

	for key := range before {
		if _, kept := after[key]; !kept && t.removeEdge(key) {
			removed++
		}
	}
	keys := slices.SortedFunc(maps.Keys(after), compareKeys)
	for _, key := range keys {
		if _, had := before[key]; !had && t.addEdge(after[key]) {
			added++
		}
	}

	return added, removed
}

func compareKeys(a, b models.EdgeKey) int {
	return cmp.Or(
		cmp.Compare(a.Target, b.Target),
		cmp.Compare(a.TargetHandle, b.TargetHandle),
		cmp.Compare(a.Source, b.Source),
		cmp.Compare(a.SourceHandle, b.SourceHandle),
	)
}
