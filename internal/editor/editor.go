// Package editor binds one templated node field to the graph: keystrokes on
// the masked display text are reconciled into the raw value, {{ opens the
// reference picker, and chips are derived from the current tokens.
package editor

import (
	"go.uber.org/zap"

	"github.com/pipeweave/core/internal/display"
	"github.com/pipeweave/core/internal/graph"
	"github.com/pipeweave/core/internal/picker"
	"github.com/pipeweave/core/internal/reconcile"
	"github.com/pipeweave/core/internal/token"
)

// Graph is what a field editor needs from the graph manager.
type Graph interface {
	picker.Graph
	Resolve(id, field string) []graph.Reference
	RemoveToken(id, field string, index int) bool
}

// Chip is a token rendered out of the editable text.
type Chip struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Label    string `json:"label"`
	Offset   int    `json:"offset"`
	Provider string `json:"provider,omitempty"`
	Resolved bool   `json:"resolved"`
}

// View is everything needed to render the field. Caret and chip offsets are
// display offsets.
type View struct {
	Raw        string            `json:"raw"`
	Display    string            `json:"display"`
	Caret      int               `json:"caret"`
	Chips      []Chip            `json:"chips"`
	Picker     picker.State      `json:"picker"`
	Candidates []graph.Candidate `json:"candidates,omitempty"`
	Kinds      []string          `json:"kinds,omitempty"`
}

type FieldEditor struct {
	graph  Graph
	nodeID string
	field  string
	picker *picker.Picker
	log    *zap.Logger

	// raw offset
	caret int
}

type Option func(*FieldEditor)

func WithLogger(log *zap.Logger) Option {
	return func(e *FieldEditor) {
		e.log = log
	}
}

// New opens an editor on field of node nodeID with the caret at the end.
func New(g Graph, nodeID, field string, opts ...Option) *FieldEditor {
	e := &FieldEditor{
		graph:  g,
		nodeID: nodeID,
		field:  field,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.picker = picker.New(g, nodeID, field, picker.WithLogger(e.log))
	e.caret = len(e.raw())
	return e
}

func (e *FieldEditor) raw() string {
	raw, _ := e.graph.FieldText(e.nodeID, e.field)
	return raw
}

// View renders the current field state.
func (e *FieldEditor) View() View {
	raw := e.raw()
	proj := display.ProjectText(raw)
	e.caret = min(max(e.caret, 0), len(raw))

	refs := e.graph.Resolve(e.nodeID, e.field)
	chips := make([]Chip, 0, len(refs))
	for i, ref := range refs {
		chips = append(chips, Chip{
			Index:    i,
			Name:     ref.Name,
			Kind:     ref.Kind,
			Label:    ref.Label(),
			Offset:   proj.RawToDisplay(ref.Start),
			Provider: ref.Provider,
			Resolved: ref.Resolved(),
		})
	}

	return View{
		Raw:        raw,
		Display:    proj.Display,
		Caret:      proj.RawToDisplay(e.caret),
		Chips:      chips,
		Picker:     e.picker.State(),
		Candidates: e.picker.Candidates(),
		Kinds:      e.picker.Kinds(),
	}
}

// Input applies the display text the user produced, with the display caret
// after the edit.
func (e *FieldEditor) Input(next string, caret int) View {
	raw := e.raw()
	proj := display.ProjectText(raw)
	if next == proj.Display {
		return e.MoveCaret(caret)
	}

	res := reconcile.ReconcileAt(proj.Display, next, caret, proj.Segments, raw)
	e.graph.SetFieldText(e.nodeID, e.field, res.Raw)
	e.caret = res.Caret

	e.log.Debug("field edited",
		zap.String("node", e.nodeID),
		zap.String("field", e.field),
		zap.Int("raw_start", res.RawStart),
		zap.Int("raw_end", res.RawEnd),
		zap.Int("inserted", len(res.Patch.Inserted)),
	)

	triggered := reconcile.TriggerAt(next, caret) && reconcile.TriggerAt(res.Raw, res.Caret)
	trigger := res.Caret - len(token.Open)

	switch e.picker.State() {
	case picker.Idle:
		if triggered {
			e.open(trigger)
		}
	case picker.ChoosingProvider:
		if reconcile.TriggerGone(next, caret) || !triggered {
			e.picker.Cancel()
		} else if e.picker.TriggerStart() != trigger {
			e.picker.Cancel()
			e.open(trigger)
		}
	case picker.ChoosingKind:
		e.picker.Shift(res.RawEnd, len(res.Raw)-len(raw))
		e.dismiss()
	}

	return e.View()
}

func (e *FieldEditor) open(trigger int) {
	if err := e.picker.Open(trigger); err != nil {
		e.log.Debug("picker not opened", zap.Error(err))
	}
}

// MoveCaret places the caret at a display offset. Moving away from an open
// picker dismisses it.
func (e *FieldEditor) MoveCaret(caret int) View {
	proj := display.ProjectText(e.raw())
	e.caret = proj.DisplayToRaw(min(max(caret, 0), len(proj.Display)))

	if e.picker.Active() && e.caret != e.pickerCaret() {
		e.dismiss()
	}
	return e.View()
}

// PickProvider selects a provider from the open picker.
func (e *FieldEditor) PickProvider(nodeID string) (View, error) {
	caret, err := e.picker.SelectProvider(nodeID)
	if err != nil {
		return e.View(), err
	}
	e.caret = caret
	return e.View(), nil
}

// PickKind selects the value kind and completes the reference.
func (e *FieldEditor) PickKind(kind string) (View, error) {
	caret, err := e.picker.SelectKind(kind)
	if err != nil {
		return e.View(), err
	}
	e.caret = caret
	return e.View(), nil
}

// Dismiss closes the picker without inserting anything.
func (e *FieldEditor) Dismiss() View {
	e.dismiss()
	return e.View()
}

// RemoveChip deletes the index-th chip and the connection it implied.
func (e *FieldEditor) RemoveChip(index int) View {
	e.dismiss()

	tokens := token.Extract(e.raw())
	if index < 0 || index >= len(tokens) {
		return e.View()
	}
	tok := tokens[index]
	if !e.graph.RemoveToken(e.nodeID, e.field, index) {
		return e.View()
	}

	switch {
	case e.caret >= tok.End:
		e.caret -= tok.Len()
	case e.caret > tok.Start:
		e.caret = tok.Start
	}
	return e.View()
}

// pickerCaret is where the caret sits while the picker waits for input.
func (e *FieldEditor) pickerCaret() int {
	at := e.picker.TriggerStart() + len(token.Open)
	if c, ok := e.picker.Selected(); ok {
		at += len(c.Name)
	}
	return at
}

func (e *FieldEditor) dismiss() {
	if !e.picker.Active() {
		return
	}
	ts := e.picker.TriggerStart()
	c, _ := e.picker.Selected()
	if !e.picker.Cancel() {
		return
	}

	after := ts + len(token.Open)
	switch {
	case e.caret >= after+len(c.Name):
		e.caret -= len(c.Name)
	case e.caret > after:
		e.caret = after
	}
}
