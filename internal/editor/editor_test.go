package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipeweave/core/internal/graph"
	"github.com/pipeweave/core/internal/models"
	"github.com/pipeweave/core/internal/picker"
)

func newGraph(t *testing.T, prompt string) *graph.Manager {
	t.Helper()

	m := graph.NewManager(nil)
	m.Load(models.Graph{
		Nodes: []models.Node{
			{ID: "input_1", Type: "customInput", Data: map[string]any{"inputName": "input_1", "inputType": "Text"}},
			{ID: "text", Type: "text", Data: map[string]any{"text": "plain"}},
			{ID: "llm", Type: "llm"},
		},
		Edges: []models.Edge{},
	})
	require.True(t, m.SetFieldText("llm", "prompt", prompt))
	return m
}

func TestReferenceFlow(t *testing.T) {
	m := newGraph(t, "Hello !")
	e := New(m, "llm", "prompt")
	require.Equal(t, 6, e.MoveCaret(6).Caret)

	view := e.Input("Hello {!", 7)
	assert.Equal(t, "Hello {!", view.Raw)
	assert.Equal(t, picker.Idle, view.Picker)

	view = e.Input("Hello {{!", 8)
	assert.Equal(t, "Hello {{!", view.Raw)
	assert.Equal(t, picker.ChoosingProvider, view.Picker)
	require.Len(t, view.Candidates, 2)
	assert.Equal(t, "input_1", view.Candidates[0].NodeID)

	view, err := e.PickProvider("input_1")
	require.NoError(t, err)
	assert.Equal(t, "Hello {{input_1!", view.Raw)
	assert.Equal(t, picker.ChoosingKind, view.Picker)
	assert.Equal(t, []string{"text"}, view.Kinds)
	assert.Equal(t, 15, view.Caret)

	view, err = e.PickKind("text")
	require.NoError(t, err)
	assert.Equal(t, View{
		Raw:     "Hello {{input_1.text}}!",
		Display: "Hello !",
		Caret:   6,
		Chips: []Chip{{
			Index:    0,
			Name:     "input_1",
			Kind:     "text",
			Label:    "input_1.text",
			Offset:   6,
			Provider: "input_1",
			Resolved: true,
		}},
		Picker: picker.Idle,
	}, view)
	assert.Equal(t, []models.Edge{{
		Source:       "input_1",
		SourceHandle: "input_1-value",
		Target:       "llm",
		TargetHandle: "llm-prompt",
		Style:        models.StyleAutoWired,
	}}, m.State().Edges)
}

func TestDirectWiring(t *testing.T) {
	m := newGraph(t, "Hello {{!")
	e := New(m, "llm", "prompt")
	e.MoveCaret(6)

	view := e.Input("Hello {{{!", 9)
	require.Equal(t, picker.ChoosingProvider, view.Picker)

	view, err := e.PickProvider("text")
	require.NoError(t, err)

	assert.Equal(t, "Hello {!", view.Raw)
	assert.Equal(t, picker.Idle, view.Picker)
	assert.True(t, m.State().HasEdge(models.EdgeKey{
		Source:       "text",
		SourceHandle: "text-output",
		Target:       "llm",
		TargetHandle: "llm-prompt",
	}))
}

func TestEditingAroundChips(t *testing.T) {
	t.Run("insert before a chip", func(t *testing.T) {
		m := newGraph(t, "A{{input_1.text}}B")
		e := New(m, "llm", "prompt")

		view := e.Input("AzB", 2)

		assert.Equal(t, "Az{{input_1.text}}B", view.Raw)
		assert.Equal(t, 2, view.Caret)
		require.Len(t, view.Chips, 1)
		assert.Equal(t, 2, view.Chips[0].Offset)
	})

	t.Run("delete after a chip keeps it", func(t *testing.T) {
		m := newGraph(t, "A{{input_1.text}}B")
		e := New(m, "llm", "prompt")

		view := e.Input("A", 1)

		assert.Equal(t, "A{{input_1.text}}", view.Raw)
		assert.Len(t, m.State().Edges, 1)
	})

	t.Run("replacing all display text drops enclosed chips", func(t *testing.T) {
		m := newGraph(t, "Q: {{input_1.text}} end")
		e := New(m, "llm", "prompt")

		view := e.Input("x", 1)

		assert.Equal(t, "x", view.Raw)
		assert.Empty(t, view.Chips)
		assert.Empty(t, m.State().Edges)
	})

	t.Run("unresolved chips render without a provider", func(t *testing.T) {
		m := newGraph(t, "{{ghost.text}}")
		view := New(m, "llm", "prompt").View()

		require.Len(t, view.Chips, 1)
		assert.False(t, view.Chips[0].Resolved)
		assert.Empty(t, view.Chips[0].Provider)
		assert.Empty(t, m.State().Edges)
	})
}

func TestPickerDismissal(t *testing.T) {
	t.Run("typing through the delimiter cancels", func(t *testing.T) {
		m := newGraph(t, "")
		e := New(m, "llm", "prompt")
		e.Input("{", 1)
		require.Equal(t, picker.ChoosingProvider, e.Input("{{", 2).Picker)

		view := e.Input("{{a", 3)

		assert.Equal(t, picker.Idle, view.Picker)
		assert.Equal(t, "{{a", view.Raw)
		assert.Empty(t, m.State().Edges)
	})

	t.Run("typing while choosing a kind reverts the partial", func(t *testing.T) {
		m := newGraph(t, "Hello !")
		e := New(m, "llm", "prompt")
		e.MoveCaret(6)
		e.Input("Hello {!", 7)
		view := e.Input("Hello {{!", 8)
		require.Equal(t, picker.ChoosingProvider, view.Picker)
		_, err := e.PickProvider("input_1")
		require.NoError(t, err)

		view = e.Input("Hello {{input_1x!", 16)

		assert.Equal(t, picker.Idle, view.Picker)
		assert.Equal(t, "Hello {{x!", view.Raw)
		assert.Equal(t, 9, view.Caret)
		assert.Empty(t, m.State().Edges)
	})

	t.Run("moving the caret away dismisses", func(t *testing.T) {
		m := newGraph(t, "Hello {{!")
		e := New(m, "llm", "prompt")
		e.MoveCaret(7)
		require.Equal(t, picker.ChoosingProvider, e.Input("Hello {{{!", 8).Picker)
		_, err := e.PickProvider("input_1")
		require.NoError(t, err)

		view := e.MoveCaret(0)

		assert.Equal(t, picker.Idle, view.Picker)
		assert.Equal(t, "Hello {{{!", view.Raw)
		assert.Equal(t, 0, view.Caret)
	})

	t.Run("dismiss", func(t *testing.T) {
		m := newGraph(t, "")
		e := New(m, "llm", "prompt")
		e.Input("{", 1)
		e.Input("{{", 2)
		_, err := e.PickProvider("input_1")
		require.NoError(t, err)

		view := e.Dismiss()

		assert.Equal(t, "{{", view.Raw)
		assert.Equal(t, 2, view.Caret)
		assert.Equal(t, picker.Idle, view.Picker)
	})

	t.Run("picking in the wrong state", func(t *testing.T) {
		e := New(newGraph(t, ""), "llm", "prompt")

		_, err := e.PickProvider("input_1")
		assert.ErrorIs(t, err, picker.ErrNotChoosingProvider)
		_, err = e.PickKind("text")
		assert.ErrorIs(t, err, picker.ErrNotChoosingKind)
	})
}

func TestRemoveChip(t *testing.T) {
	m := newGraph(t, "Q: {{input_1.text}} end")
	require.Len(t, m.State().Edges, 1)
	e := New(m, "llm", "prompt")

	view := e.RemoveChip(0)

	assert.Equal(t, "Q:  end", view.Raw)
	assert.Equal(t, 7, view.Caret)
	assert.Empty(t, view.Chips)
	assert.Empty(t, m.State().Edges)

	assert.Equal(t, "Q:  end", e.RemoveChip(3).Raw)
}

func TestOutputReferencesLLM(t *testing.T) {
	m := graph.NewManager(nil)
	m.Load(models.Graph{
		Nodes: []models.Node{
			{ID: "input_1", Type: "customInput", Data: map[string]any{"inputName": "input_1", "inputType": "Text"}},
			{ID: "text-1", Type: "text", Data: map[string]any{"text": "plain"}},
			{ID: "llm-1", Type: "llm", Data: map[string]any{"prompt": ""}},
			{ID: "customOutput-1", Type: "customOutput", Data: map[string]any{"output": "Result: "}},
		},
		Edges: []models.Edge{},
	})
	e := New(m, "customOutput-1", "output")
	e.MoveCaret(8)

	e.Input("Result: {", 9)
	view := e.Input("Result: {{", 10)
	require.Equal(t, picker.ChoosingProvider, view.Picker)
	require.Len(t, view.Candidates, 3)
	assert.Equal(t, "n_text_1", view.Candidates[1].Name)
	assert.Equal(t, "n_llm_1", view.Candidates[2].Name)

	view, err := e.PickProvider("llm-1")
	require.NoError(t, err)
	assert.Equal(t, "Result: {{n_llm_1", view.Raw)
	assert.Equal(t, []string{"text"}, view.Kinds)

	view, err = e.PickKind("text")
	require.NoError(t, err)
	assert.Equal(t, "Result: {{n_llm_1.text}}", view.Raw)
	require.Len(t, view.Chips, 1)
	assert.Equal(t, "llm-1", view.Chips[0].Provider)
	assert.Equal(t, []models.Edge{{
		Source:       "llm-1",
		SourceHandle: "llm-1-response",
		Target:       "customOutput-1",
		TargetHandle: "customOutput-1-n_llm_1",
		Style:        models.StyleAutoWired,
	}}, m.State().Edges)

	view = e.RemoveChip(0)

	assert.Equal(t, "Result: ", view.Raw)
	assert.Empty(t, m.State().Edges)
}
