// Package graph owns the pipeline nodes and connections and keeps the
// references embedded in templated fields consistent with the connections:
// dynamic ports, auto-wiring, and cascading rename, kind change and delete.
package graph

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/pipeweave/core/internal/models"
	"github.com/pipeweave/core/internal/token"
)

var (
	ErrDuplicateID = errors.New("node id already in use")
	ErrMissingKind = errors.New("node kind is required")
)

// Manager is the single writer of the graph state. Every operation runs to
// completion, text rewrite and edge rewrite included, before the new state
// becomes visible.
type Manager struct {
	mu          sync.RWMutex
	reg         *Registry
	state       *State
	log         *zap.Logger
	subscribers map[int]func(*State)
	nextSub     int
}

type Option func(*Manager)

func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// WithGraph seeds the manager with a loaded snapshot.
func WithGraph(g models.Graph) Option {
	return func(m *Manager) {
		m.state = newState(g)
	}
}

func NewManager(reg *Registry, opts ...Option) *Manager {
	if reg == nil {
		reg = DefaultRegistry()
	}
	m := &Manager{
		reg:         reg,
		state:       newState(models.Graph{}),
		log:         zap.NewNop(),
		subscribers: map[int]func(*State){},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Registry() *Registry {
	return m.reg
}

// State returns the current immutable state.
func (m *Manager) State() *State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Snapshot returns a copy of the current graph for persistence.
func (m *Manager) Snapshot() models.Graph {
	return m.State().Graph()
}

// Load replaces the whole state with a snapshot.
func (m *Manager) Load(g models.Graph) {
	m.mu.Lock()
	m.state = newState(g)
	next := m.state
	m.mu.Unlock()

	m.log.Debug("graph loaded", zap.Int("nodes", len(next.Nodes)), zap.Int("edges", len(next.Edges)))
	m.notify(next)
}

// Subscribe registers fn to be called with every new state. The returned
// func removes the subscription.
func (m *Manager) Subscribe(fn func(*State)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	m.subscribers[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

func (m *Manager) notify(s *State) {
	m.mu.RLock()
	subs := make([]func(*State), 0, len(m.subscribers))
	for i := 0; i < m.nextSub; i++ {
		if fn, ok := m.subscribers[i]; ok {
			subs = append(subs, fn)
		}
	}
	m.mu.RUnlock()

	for _, fn := range subs {
		fn(s)
	}
}

// update runs fn against a transaction on the current state. fn returns
// false to abandon the mutation. Token links are reconciled before the new
// state is published.
func (m *Manager) update(op string, fn func(t *tx) bool) bool {
	m.mu.Lock()
	prev := m.state
	t := prev.begin()
	if !fn(t) {
		m.mu.Unlock()
		return false
	}
	added, removed := m.reg.relink(prev.Nodes, t)
	next := t.state()
	m.state = next
	m.mu.Unlock()

	m.log.Debug("graph updated",
		zap.String("op", op),
		zap.Int("links_added", added),
		zap.Int("links_removed", removed),
		zap.Int("nodes", len(next.Nodes)),
		zap.Int("edges", len(next.Edges)),
	)
	m.notify(next)
	return true
}

// AddNode places a node. An empty id is generated from the per-kind counter;
// a name-addressed provider without a name gets the first free default name.
func (m *Manager) AddNode(node models.Node) (models.Node, error) {
	if node.Type == "" {
		return models.Node{}, ErrMissingKind
	}
	node = node.Clone()

	var err error
	m.update("add_node", func(t *tx) bool {
		if node.ID == "" {
			node.ID = t.nextID(node.Type)
		} else if t.index(node.ID) >= 0 {
			err = fmt.Errorf("%w: %s", ErrDuplicateID, node.ID)
			return false
		}

		if p, ok := m.reg.Provider(node.Type); ok {
			if p.Addressing == ByName && node.String(p.NameField) == "" {
				node.Data[p.NameField] = uniqueName(m.reg, t.nodes, p.NamePrefix)
			}
			if p.KindField != "" && node.String(p.KindField) == "" {
				if option := p.DefaultOption(); option != "" {
					node.Data[p.KindField] = option
				}
			}
		}

		t.nodes = append(t.nodes, node)
		return true
	})
	if err != nil {
		return models.Node{}, err
	}

	return node, nil
}

func (t *tx) nextID(kind string) string {
	n := t.counters[kind]
	for {
		n++
		id := fmt.Sprintf("%s-%d", kind, n)
		if t.index(id) < 0 {
			t.counters[kind] = n
			return id
		}
	}
}

// RemoveNode removes a node and every edge touching it. When the node is a
// name-addressed provider, every reference to its name is stripped from the
// templated fields of the other nodes.
func (m *Manager) RemoveNode(id string) bool {
	return m.update("remove_node", func(t *tx) bool {
		i := t.index(id)
		if i < 0 {
			return false
		}
		removed := t.nodes[i]
		t.nodes = append(t.nodes[:i:i], t.nodes[i+1:]...)

		before := len(t.edges)
		kept := t.edges[:0:0]
		for _, e := range t.edges {
			if !e.Touches(id) {
				kept = append(kept, e)
			}
		}
		t.edges = kept

		stripped := 0
		if name, ok := m.reg.referenceName(removed); ok {
			stripped = m.rewriteRefs(t, "", func(text string) (string, int) {
				return token.StripRefs(text, name)
			})
		}

		m.log.Debug("node removed",
			zap.String("node", id),
			zap.Int("edges_removed", before-len(t.edges)),
			zap.Int("tokens_stripped", stripped),
		)
		return true
	})
}

// rewriteRefs applies fn to every templated field of every node except skip.
func (m *Manager) rewriteRefs(t *tx, skip string, fn func(string) (string, int)) int {
	total := 0
	for i, n := range t.nodes {
		if n.ID == skip {
			continue
		}
		for _, f := range m.reg.Templated(n.Type) {
			text := t.nodes[i].String(f.Name)
			out, changed := fn(text)
			if changed == 0 {
				continue
			}
			t.setField(i, f.Name, out)
			total += changed
		}
	}
	return total
}

// RenameProvider changes the reference name of a provider and rewrites every
// reference to the old name, keeping kind suffixes, plus the dynamic target
// handles of the provider's connections. Renaming to an invalid identifier
// updates the field only; references keep the last valid name.
func (m *Manager) RenameProvider(id, newName string) NameCheck {
	m.update("rename_provider", func(t *tx) bool {
		i := t.index(id)
		if i < 0 {
			return false
		}
		node := t.nodes[i]
		p, ok := m.reg.Provider(node.Type)
		if !ok || p.Addressing != ByName {
			return false
		}

		oldName := node.String(p.NameField)
		if oldName == newName {
			return false
		}
		t.setField(i, p.NameField, newName)

		if !token.IsIdentifier(oldName) || !token.IsIdentifier(newName) {
			m.log.Debug("provider renamed without propagation",
				zap.String("node", id), zap.String("from", oldName), zap.String("to", newName))
			return true
		}

		rewritten := m.rewriteRefs(t, id, func(text string) (string, int) {
			return token.RenameRefs(text, oldName, newName)
		})

		handles := 0
		for j, e := range t.edges {
			if e.Source == id && e.TargetHandle == models.Handle(e.Target, oldName) {
				t.edges[j].TargetHandle = models.Handle(e.Target, newName)
				handles++
			}
		}
		t.dedupEdges()

		m.log.Debug("provider renamed",
			zap.String("node", id),
			zap.String("from", oldName),
			zap.String("to", newName),
			zap.Int("tokens", rewritten),
			zap.Int("handles", handles),
		)
		return true
	})

	return m.CheckName(id)
}

// dedupEdges drops later edges whose quadruple repeats an earlier one.
func (t *tx) dedupEdges() {
	seen := make(map[models.EdgeKey]bool, len(t.edges))
	kept := t.edges[:0]
	for _, e := range t.edges {
		if seen[e.Key()] {
			continue
		}
		seen[e.Key()] = true
		kept = append(kept, e)
	}
	t.edges = kept
}

// ChangeProviderKind stores a new kind option on a provider and rewrites the
// suffix of every reference to it. Only suffixes the provider could have
// emitted are rewritten; hand-typed suffixes are left alone. An option the
// provider does not list is stored without touching any reference.
func (m *Manager) ChangeProviderKind(id, option string) bool {
	return m.update("change_provider_kind", func(t *tx) bool {
		i := t.index(id)
		if i < 0 {
			return false
		}
		node := t.nodes[i]
		p, ok := m.reg.Provider(node.Type)
		if !ok || p.KindField == "" {
			return false
		}
		if node.String(p.KindField) == option {
			return false
		}
		t.setField(i, p.KindField, option)

		name, ok := m.reg.referenceName(node)
		if !ok {
			return true
		}
		if _, known := p.Kinds[option]; !known && len(p.Kinds) > 0 {
			m.log.Debug("provider kind set to unknown option",
				zap.String("node", id), zap.String("kind", option))
			return true
		}
		to := p.KindSuffix(option)
		rewritten := m.rewriteRefs(t, id, func(text string) (string, int) {
			return token.RewriteKinds(text, name, p.Suffixes(), to)
		})

		m.log.Debug("provider kind changed",
			zap.String("node", id),
			zap.String("kind", option),
			zap.String("suffix", to),
			zap.Int("tokens", rewritten),
		)
		return true
	})
}

// SetField updates a field. Name and kind fields of providers cascade like
// RenameProvider and ChangeProviderKind; templated fields relink.
func (m *Manager) SetField(id, field string, value any) bool {
	node, ok := m.State().Node(id)
	if !ok {
		return false
	}

	if p, ok := m.reg.Provider(node.Type); ok {
		s, isString := value.(string)
		switch {
		case isString && p.Addressing == ByName && field == p.NameField:
			m.RenameProvider(id, s)
			return true
		case isString && p.KindField != "" && field == p.KindField:
			m.ChangeProviderKind(id, s)
			return true
		}
	}

	return m.update("set_field", func(t *tx) bool {
		i := t.index(id)
		if i < 0 {
			return false
		}
		t.setField(i, field, value)
		return true
	})
}

// SetFieldText stores the raw text of a templated field and adds the given
// connections in the same step. Duplicate connections are absorbed.
func (m *Manager) SetFieldText(id, field, raw string, connect ...models.Edge) bool {
	return m.update("set_field_text", func(t *tx) bool {
		i := t.index(id)
		if i < 0 {
			return false
		}
		t.setField(i, field, raw)
		for _, e := range connect {
			t.addEdge(e)
		}
		return true
	})
}

// FieldText returns the raw text of a field.
func (m *Manager) FieldText(id, field string) (string, bool) {
	node, ok := m.State().Node(id)
	if !ok {
		return "", false
	}
	return node.String(field), true
}

// RemoveToken deletes the index-th {{name.kind}} token of a field, and with
// it the connection the token implied.
func (m *Manager) RemoveToken(id, field string, index int) bool {
	return m.update("remove_token", func(t *tx) bool {
		i := t.index(id)
		if i < 0 {
			return false
		}
		text := t.nodes[i].String(field)
		tokens := token.Extract(text)
		if index < 0 || index >= len(tokens) {
			return false
		}
		tok := tokens[index]
		t.setField(i, field, text[:tok.Start]+text[tok.End:])
		return true
	})
}

// AddConnection inserts an edge unless the same quadruple already exists.
func (m *Manager) AddConnection(e models.Edge) bool {
	added := false
	m.update("add_connection", func(t *tx) bool {
		added = t.addEdge(e)
		return added
	})
	return added
}

// RemoveConnection removes the edge with the same quadruple, if any.
func (m *Manager) RemoveConnection(e models.Edge) bool {
	return m.update("remove_connection", func(t *tx) bool {
		return t.removeEdge(e.Key())
	})
}

// Repair brings a loaded graph back to referential integrity: connections
// with a missing endpoint are dropped and the connections of resolved
// references are added.
func (m *Manager) Repair() (added, dropped int) {
	m.update("repair", func(t *tx) bool {
		kept := t.edges[:0:0]
		for _, e := range t.edges {
			if t.index(e.Source) >= 0 && t.index(e.Target) >= 0 {
				kept = append(kept, e)
			}
		}
		dropped = len(t.edges) - len(kept)
		t.edges = kept

		links := m.reg.links(t.nodes)
		for _, key := range slices.SortedFunc(maps.Keys(links), compareKeys) {
			if t.addEdge(links[key]) {
				added++
			}
		}
		return added+dropped > 0
	})
	return added, dropped
}
