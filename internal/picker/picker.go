// Package picker implements the reference picker opened by typing {{ in a
// templated field: choose a provider, then a value kind, and the token and
// its connection are written in one step.
package picker

import (
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/pipeweave/core/internal/graph"
	"github.com/pipeweave/core/internal/models"
	"github.com/pipeweave/core/internal/token"
)

type State int

const (
	Idle State = iota
	ChoosingProvider
	ChoosingKind
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ChoosingProvider:
		return "choosing_provider"
	case ChoosingKind:
		return "choosing_kind"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadyOpen         = errors.New("picker is already open")
	ErrNotChoosingProvider = errors.New("picker is not choosing a provider")
	ErrNotChoosingKind     = errors.New("picker is not choosing a kind")
	ErrUnknownCandidate    = errors.New("provider is not a candidate for this field")
	ErrUnknownKind         = errors.New("kind is not offered by the selected provider")
	ErrTriggerMoved        = errors.New("trigger delimiter is no longer in place")
)

// Graph is the part of the graph manager the picker works against.
type Graph interface {
	Candidates(id, field string) []graph.Candidate
	FieldText(id, field string) (string, bool)
	SetFieldText(id, field, raw string, connect ...models.Edge) bool
}

// Picker is bound to one templated field and reused for every {{ typed in
// it.
type Picker struct {
	graph  Graph
	nodeID string
	field  string
	log    *zap.Logger

	state        State
	triggerStart int
	candidates   []graph.Candidate
	selected     graph.Candidate
}

type Option func(*Picker)

func WithLogger(log *zap.Logger) Option {
	return func(p *Picker) {
		p.log = log
	}
}

func New(g Graph, nodeID, field string, opts ...Option) *Picker {
	p := &Picker{
		graph:  g,
		nodeID: nodeID,
		field:  field,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Picker) State() State {
	return p.state
}

func (p *Picker) Active() bool {
	return p.state != Idle
}

// TriggerStart is the raw offset of the {{ that opened the picker.
func (p *Picker) TriggerStart() int {
	return p.triggerStart
}

func (p *Picker) Candidates() []graph.Candidate {
	return p.candidates
}

// Selected returns the provider chosen while choosing a kind.
func (p *Picker) Selected() (graph.Candidate, bool) {
	return p.selected, p.state == ChoosingKind
}

// Kinds lists the value kinds offered for the selected provider.
func (p *Picker) Kinds() []string {
	if p.state != ChoosingKind {
		return nil
	}
	return p.selected.Kinds
}

// Open starts choosing a provider for the {{ at raw offset triggerStart.
func (p *Picker) Open(triggerStart int) error {
	if p.state != Idle {
		return ErrAlreadyOpen
	}
	raw, ok := p.graph.FieldText(p.nodeID, p.field)
	if !ok || !hasAt(raw, triggerStart, token.Open) {
		return ErrTriggerMoved
	}

	p.state = ChoosingProvider
	p.triggerStart = triggerStart
	p.candidates = p.graph.Candidates(p.nodeID, p.field)

	p.log.Debug("picker opened",
		zap.String("node", p.nodeID),
		zap.String("field", p.field),
		zap.Int("trigger", triggerStart),
		zap.Int("candidates", len(p.candidates)),
	)
	return nil
}

// SelectProvider picks a candidate and returns the new raw caret. A
// name-addressed provider turns the {{ into {{name and waits for a kind.
// An id-addressed provider drops the {{ and is wired directly.
func (p *Picker) SelectProvider(nodeID string) (int, error) {
	if p.state != ChoosingProvider {
		return 0, ErrNotChoosingProvider
	}
	i := slices.IndexFunc(p.candidates, func(c graph.Candidate) bool { return c.NodeID == nodeID })
	if i < 0 {
		return 0, ErrUnknownCandidate
	}
	c := p.candidates[i]

	raw, ok := p.graph.FieldText(p.nodeID, p.field)
	if !ok || !hasAt(raw, p.triggerStart, token.Open) {
		p.reset()
		return 0, ErrTriggerMoved
	}
	ts := p.triggerStart
	rest := raw[ts+len(token.Open):]

	if c.Addressing == graph.ByID {
		p.graph.SetFieldText(p.nodeID, p.field, raw[:ts]+rest, c.Edge)
		p.log.Debug("provider wired directly", zap.String("node", p.nodeID), zap.String("provider", c.NodeID))
		p.reset()
		return ts, nil
	}

	partial := token.Open + c.Name
	p.graph.SetFieldText(p.nodeID, p.field, raw[:ts]+partial+rest)
	p.selected = c
	p.state = ChoosingKind

	p.log.Debug("provider selected", zap.String("node", p.nodeID), zap.String("provider", c.NodeID), zap.String("name", c.Name))
	return ts + len(partial), nil
}

// SelectKind closes the token with .kind}} right after the provider name,
// creates the connection and returns the new raw caret.
func (p *Picker) SelectKind(kind string) (int, error) {
	if p.state != ChoosingKind {
		return 0, ErrNotChoosingKind
	}
	if !slices.Contains(p.selected.Kinds, kind) {
		return 0, ErrUnknownKind
	}

	raw, ok := p.graph.FieldText(p.nodeID, p.field)
	if !ok || !p.partialIntact(raw) {
		p.reset()
		return 0, ErrTriggerMoved
	}

	at := p.partialEnd()
	closing := "." + kind + token.Close
	p.graph.SetFieldText(p.nodeID, p.field, raw[:at]+closing+raw[at:], p.selected.Edge)

	p.log.Debug("reference inserted",
		zap.String("node", p.nodeID),
		zap.String("field", p.field),
		zap.String("token", token.Format(p.selected.Name, kind)),
	)
	p.reset()
	return at + len(closing), nil
}

// Cancel closes the picker. A {{name partial written by SelectProvider is
// turned back into {{ when it is still intact; the graph is never touched
// otherwise. It reports whether the field text was reverted.
func (p *Picker) Cancel() bool {
	defer p.reset()

	if p.state != ChoosingKind {
		return false
	}
	raw, ok := p.graph.FieldText(p.nodeID, p.field)
	if !ok || !p.partialIntact(raw) {
		return false
	}

	ts := p.triggerStart
	p.graph.SetFieldText(p.nodeID, p.field, raw[:ts]+token.Open+raw[p.partialEnd():])
	p.log.Debug("picker cancelled", zap.String("node", p.nodeID), zap.String("field", p.field))
	return true
}

// Shift moves the recorded trigger after an edit that replaced raw bytes up
// to end and changed the text length by delta. Edits reaching past the
// trigger are ignored.
func (p *Picker) Shift(end, delta int) {
	if p.state == Idle || end > p.triggerStart {
		return
	}
	p.triggerStart += delta
}

func (p *Picker) partialEnd() int {
	return p.triggerStart + len(token.Open) + len(p.selected.Name)
}

func (p *Picker) partialIntact(raw string) bool {
	return hasAt(raw, p.triggerStart, token.Open+p.selected.Name)
}

func (p *Picker) reset() {
	p.state = Idle
	p.triggerStart = 0
	p.candidates = nil
	p.selected = graph.Candidate{}
}

func hasAt(s string, at int, sub string) bool {
	return at >= 0 && at+len(sub) <= len(s) && s[at:at+len(sub)] == sub
}
