package graph

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/pipeweave/core/internal/models"
	"github.com/pipeweave/core/internal/token"
)

// NameCheck flags a provider name the editor should mark. Neither flag
// blocks editing or propagation.
type NameCheck struct {
	Invalid   bool `json:"invalid"`
	Duplicate bool `json:"duplicate"`
}

func (c NameCheck) OK() bool {
	return !c.Invalid && !c.Duplicate
}

// NameConflict lists providers sharing one reference name.
type NameConflict struct {
	Name    string   `json:"name"`
	NodeIDs []string `json:"node_ids"`
}

// Port is an input port synthesized from a reference name in a templated
// field. It exists only while a token naming it does.
type Port struct {
	ID     string `json:"id"`
	Handle string `json:"handle"`
	Field  string `json:"field"`
}

// Reference is a token of a field together with the provider it resolves to.
type Reference struct {
	token.Token
	Provider string `json:"provider,omitempty"`
}

func (r Reference) Resolved() bool {
	return r.Provider != ""
}

// Candidate is a provider the picker may offer for a field. Edge is the
// connection completing the pick.
type Candidate struct {
	NodeID     string      `json:"node_id"`
	Type       string      `json:"type"`
	Name       string      `json:"name,omitempty"`
	Addressing Addressing  `json:"addressing"`
	Kinds      []string    `json:"kinds,omitempty"`
	Edge       models.Edge `json:"edge"`
}

// UniqueProviderName returns the first prefix_N, N >= 1, that no provider
// currently uses. Freed numbers are reused.
func (m *Manager) UniqueProviderName(prefix string) string {
	return uniqueName(m.reg, m.State().Nodes, prefix)
}

func uniqueName(reg *Registry, nodes []models.Node, prefix string) string {
	if prefix == "" {
		prefix = "var"
	}
	used := map[string]bool{}
	for _, n := range nodes {
		if name, ok := reg.nameOf(n); ok {
			used[name] = true
		}
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s_%d", prefix, i)
		if !used[name] {
			return name
		}
	}
}

// CheckName validates the reference name of a provider node.
func (m *Manager) CheckName(id string) NameCheck {
	s := m.State()
	node, ok := s.Node(id)
	if !ok {
		return NameCheck{}
	}
	p, ok := m.reg.Provider(node.Type)
	if !ok || p.Addressing != ByName {
		return NameCheck{}
	}

	name := node.String(p.NameField)
	check := NameCheck{Invalid: !token.IsIdentifier(name)}
	for _, n := range s.Nodes {
		if n.ID == id {
			continue
		}
		if other, ok := m.reg.nameOf(n); ok && other == name {
			check.Duplicate = true
			break
		}
	}
	return check
}

// NameConflicts lists every reference name used by more than one provider,
// sorted by name.
func (m *Manager) NameConflicts() []NameConflict {
	return m.reg.nameConflicts(m.State().Nodes)
}

func (r *Registry) nameConflicts(nodes []models.Node) []NameConflict {
	owners := map[string][]string{}
	for _, n := range nodes {
		if name, ok := r.nameOf(n); ok {
			owners[name] = append(owners[name], n.ID)
		}
	}

	var out []NameConflict
	for name, ids := range owners {
		if len(ids) > 1 {
			out = append(out, NameConflict{Name: name, NodeIDs: ids})
		}
	}
	slices.SortFunc(out, func(a, b NameConflict) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// DynamicPorts derives the input ports of a node from the reference names
// in its dynamic templated fields, in first-seen order.
func (m *Manager) DynamicPorts(id string) []Port {
	node, ok := m.State().Node(id)
	if !ok {
		return nil
	}
	return m.reg.dynamicPorts(node)
}

func (r *Registry) dynamicPorts(node models.Node) []Port {
	var ports []Port
	seen := map[string]bool{}
	for _, f := range r.Templated(node.Type) {
		if !f.Dynamic() {
			continue
		}
		for _, name := range token.Names(token.ExtractRefs(node.String(f.Name))) {
			if seen[name] {
				continue
			}
			seen[name] = true
			ports = append(ports, Port{ID: name, Handle: models.Handle(node.ID, name), Field: f.Name})
		}
	}
	return ports
}

// Resolve returns the {{name.kind}} tokens of a field with the provider each
// one names, if that provider exists.
func (m *Manager) Resolve(id, field string) []Reference {
	s := m.State()
	node, ok := s.Node(id)
	if !ok {
		return nil
	}

	idx := m.reg.providers(s.Nodes)
	tokens := token.Extract(node.String(field))
	refs := make([]Reference, 0, len(tokens))
	for _, tok := range tokens {
		ref := Reference{Token: tok}
		if provider, ok := idx[tok.Name]; ok && provider.ID != id {
			ref.Provider = provider.ID
		}
		refs = append(refs, ref)
	}
	return refs
}

// Candidates lists the providers the picker may offer for field of node id,
// in node order. The consuming node itself and providers already wired into
// the field's handle are left out. Id-addressed providers are only offered
// for fields feeding a fixed port; node-addressed ones are offered by id for
// a fixed port and by their derived name for a dynamic field. Addressing on
// the candidate says which of the two a pick inserts.
func (m *Manager) Candidates(id, field string) []Candidate {
	s := m.State()
	consumer, ok := s.Node(id)
	if !ok {
		return nil
	}
	f, ok := m.reg.Field(consumer.Type, field)
	if !ok {
		return nil
	}

	idx := m.reg.providers(s.Nodes)
	wired := func(source, handle string) bool {
		return slices.ContainsFunc(s.Edges, func(e models.Edge) bool {
			return e.Source == source && e.Target == id && e.TargetHandle == handle
		})
	}

	var out []Candidate
	for _, n := range s.Nodes {
		if n.ID == id {
			continue
		}
		p, ok := m.reg.Provider(n.Type)
		if !ok {
			continue
		}

		if p.Addressing == ByID || (p.Addressing == ByNodeID && !f.Dynamic()) {
			if f.Dynamic() {
				continue
			}
			e := models.Edge{
				Source:       n.ID,
				SourceHandle: models.Handle(n.ID, p.Output),
				Target:       id,
				TargetHandle: models.Handle(id, f.Port),
				Style:        models.StyleAutoWired,
			}
			if wired(n.ID, e.TargetHandle) {
				continue
			}
			out = append(out, Candidate{
				NodeID:     n.ID,
				Type:       n.Type,
				Addressing: ByID,
				Edge:       e,
			})
			continue
		}

		name, ok := m.reg.referenceName(n)
		if !ok || idx[name].ID != n.ID {
			continue
		}
		e := m.reg.connection(n, id, f, name)
		if wired(n.ID, e.TargetHandle) {
			continue
		}
		kind := ""
		if p.KindField != "" {
			kind = n.String(p.KindField)
		}
		out = append(out, Candidate{
			NodeID:     n.ID,
			Type:       n.Type,
			Name:       name,
			Addressing: ByName,
			Kinds:      []string{p.KindSuffix(kind)},
			Edge:       e,
		})
	}
	return out
}

// Unresolved is a reference naming no provider.
type Unresolved struct {
	NodeID string `json:"node_id"`
	Field  string `json:"field"`
	Name   string `json:"name"`
}

// Report is the result of an integrity audit of the whole graph.
type Report struct {
	Unresolved []Unresolved   `json:"unresolved,omitempty"`
	Missing    []models.Edge  `json:"missing,omitempty"`
	Dangling   []models.Edge  `json:"dangling,omitempty"`
	Conflicts  []NameConflict `json:"conflicts,omitempty"`
}

// OK reports whether every resolved reference has its connection and every
// connection has both endpoints. Unresolved references are not failures.
func (r Report) OK() bool {
	return len(r.Missing) == 0 && len(r.Dangling) == 0
}

// Audit checks the referential integrity of the current state.
func (m *Manager) Audit() Report {
	s := m.State()
	idx := m.reg.providers(s.Nodes)
	var report Report

	for _, n := range s.Nodes {
		for _, f := range m.reg.Templated(n.Type) {
			for _, name := range token.Names(token.ExtractRefs(n.String(f.Name))) {
				if _, ok := idx[name]; !ok {
					report.Unresolved = append(report.Unresolved, Unresolved{NodeID: n.ID, Field: f.Name, Name: name})
				}
			}
		}
	}

	links := m.reg.links(s.Nodes)
	for _, key := range slices.SortedFunc(maps.Keys(links), compareKeys) {
		if !s.HasEdge(key) {
			report.Missing = append(report.Missing, links[key])
		}
	}

	for _, e := range s.Edges {
		if s.index(e.Source) < 0 || s.index(e.Target) < 0 {
			report.Dangling = append(report.Dangling, e)
		}
	}

	report.Conflicts = m.reg.nameConflicts(s.Nodes)
	return report
}
