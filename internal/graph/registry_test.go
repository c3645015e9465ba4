package graph

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipeweave/core/internal/models"
)

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()

	t.Run("lists kinds sorted", func(t *testing.T) {
		assert.Equal(t, []string{
			"concat", "customInput", "customOutput", "delay", "httpGet",
			"llm", "text", "uppercase", "variable",
		}, reg.Kinds())
	})

	t.Run("input provider kinds", func(t *testing.T) {
		p, ok := reg.Provider("customInput")
		require.True(t, ok)

		assert.Equal(t, "text", p.KindSuffix("Text"))
		assert.Equal(t, "file", p.KindSuffix("File"))
		assert.Equal(t, "text", p.KindSuffix("unknown"))
		assert.Equal(t, map[string]bool{"text": true, "file": true}, p.Suffixes())
		assert.Equal(t, "Text", p.DefaultOption())
	})

	t.Run("node addressed providers derive names from ids", func(t *testing.T) {
		p, ok := reg.Provider("llm")
		require.True(t, ok)

		assert.Equal(t, ByNodeID, p.Addressing)
		assert.Equal(t, "n_llm_1", p.NodeName("llm-1"))
		assert.Equal(t, "n_a_b$c", p.NodeName("a.b$c"))
		assert.Equal(t, "text", p.KindSuffix(""))
	})

	t.Run("templated fields", func(t *testing.T) {
		f, ok := reg.Field("llm", "prompt")
		require.True(t, ok)
		assert.False(t, f.Dynamic())

		f, ok = reg.Field("text", "text")
		require.True(t, ok)
		assert.True(t, f.Dynamic())

		_, ok = reg.Field("delay", "ms")
		assert.False(t, ok)
	})

	t.Run("plain kinds provide nothing", func(t *testing.T) {
		_, ok := reg.Provider("uppercase")
		assert.False(t, ok)
		assert.Empty(t, reg.Templated("uppercase"))
		assert.Empty(t, reg.Templated("not-registered"))
	})
}

func TestLoadRegistry(t *testing.T) {
	t.Run("valid catalogue", func(t *testing.T) {
		doc := `
prompt:
  templated:
    - name: body
    - name: system
      port: system
source:
  provider:
    addressing: name
    output: out
    name_field: label
    name_prefix: src
    kind_field: format
    kinds:
      Plain: text
      Json: json
    default_kind: text
`
		reg, err := LoadRegistry(strings.NewReader(doc))
		require.NoError(t, err)

		assert.Equal(t, []FieldSpec{{Name: "body"}, {Name: "system", Port: "system"}}, reg.Templated("prompt"))
		p, ok := reg.Provider("source")
		require.True(t, ok)
		assert.Equal(t, ByName, p.Addressing)
		assert.Equal(t, "json", p.KindSuffix("Json"))
		assert.Equal(t, "Plain", p.DefaultOption())
	})

	t.Run("drives the manager", func(t *testing.T) {
		doc := `
sink:
  templated:
    - name: body
source:
  provider:
    addressing: name
    output: out
    name_field: label
    name_prefix: src
`
		reg, err := LoadRegistry(strings.NewReader(doc))
		require.NoError(t, err)

		m := NewManager(reg)
		src, err := m.AddNode(models.Node{Type: "source"})
		require.NoError(t, err)
		assert.Equal(t, "src_1", src.String("label"))

		_, err = m.AddNode(models.Node{Type: "sink", Data: map[string]any{"body": "{{src_1}}"}})
		require.NoError(t, err)
		require.Len(t, m.State().Edges, 1)
		assert.Equal(t, "source-1-out", m.State().Edges[0].SourceHandle)
		assert.Equal(t, "sink-1-src_1", m.State().Edges[0].TargetHandle)
	})

	t.Run("rejects invalid kinds", func(t *testing.T) {
		cases := map[string]string{
			"unnamed field":   "a:\n  templated:\n    - port: x\n",
			"duplicate field": "a:\n  templated:\n    - name: x\n    - name: x\n",
			"missing output":  "a:\n  provider:\n    addressing: id\n",
			"missing name":    "a:\n  provider:\n    addressing: name\n    output: o\n",
			"bad addressing":  "a:\n  provider:\n    addressing: magic\n    output: o\n",
			"malformed yaml":  "a: [\n",
		}
		for name, doc := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := LoadRegistry(strings.NewReader(doc))
				assert.Error(t, err)
			})
		}
	})

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "kinds.yaml")
		require.NoError(t, os.WriteFile(path, []byte("a:\n  templated:\n    - name: x\n"), 0o644))

		reg, err := LoadRegistryFile(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, reg.Kinds())

		_, err = LoadRegistryFile(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}
