// Package handlers provides HTTP request handlers for the API endpoints.
// It defines the routing logic, response formatting, and error handling mechanisms.
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipeweave/core/internal/models"
)

const chain = `{
	"nodes": [{"id": "customInput-1"}, {"id": "llm-1"}, {"id": "customOutput-1"}],
	"edges": [
		{"source": "customInput-1", "target": "llm-1"},
		{"source": "llm-1", "target": "customOutput-1"}
	]
}`

func decodeSummary(t *testing.T, w *httptest.ResponseRecorder) models.Summary {
	t.Helper()

	var summary models.Summary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&summary))
	return summary
}

func TestParseHandler(t *testing.T) {
	handler := ParseHandler(nil)

	t.Run("summarizes a JSON pipeline body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/pipelines/parse", strings.NewReader(chain))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		handler(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Equal(t, models.Summary{NumNodes: 3, NumEdges: 2, IsDAG: true}, decodeSummary(t, w))
	})

	t.Run("accepts a pipeline wrapped as a JSON string", func(t *testing.T) {
		body, err := json.Marshal(map[string]string{"pipeline": chain})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/pipelines/parse", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		w := httptest.NewRecorder()

		handler(w, req)

		assert.Equal(t, models.Summary{NumNodes: 3, NumEdges: 2, IsDAG: true}, decodeSummary(t, w))
	})

	t.Run("accepts a url encoded form field", func(t *testing.T) {
		form := url.Values{"pipeline": {`{"nodes":[{"id":"a"},{"id":"b"}],"edges":[{"source":"a","target":"b"},{"source":"b","target":"a"}]}`}}
		req := httptest.NewRequest(http.MethodPost, "/pipelines/parse", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()

		handler(w, req)

		assert.Equal(t, models.Summary{NumNodes: 2, NumEdges: 2, IsDAG: false}, decodeSummary(t, w))
	})

	t.Run("accepts a multipart form field", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("pipeline", chain))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/pipelines/parse", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()

		handler(w, req)

		assert.Equal(t, models.Summary{NumNodes: 3, NumEdges: 2, IsDAG: true}, decodeSummary(t, w))
	})

	t.Run("reads the query parameter on GET", func(t *testing.T) {
		target := "/pipelines/parse?pipeline=" + url.QueryEscape(`{"nodes":[{"id":"a"}],"edges":[{"source":"a","target":"a"}]}`)
		req := httptest.NewRequest(http.MethodGet, target, nil)
		w := httptest.NewRecorder()

		handler(w, req)

		assert.Equal(t, models.Summary{NumNodes: 1, NumEdges: 1, IsDAG: false}, decodeSummary(t, w))
	})

	t.Run("falls back to the query parameter when the body has no pipeline", func(t *testing.T) {
		target := "/pipelines/parse?pipeline=" + url.QueryEscape(`{"nodes":[{"id":"a"}],"edges":[]}`)
		req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(`{"pipeline": null}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		handler(w, req)

		assert.Equal(t, models.Summary{NumNodes: 1, NumEdges: 0, IsDAG: true}, decodeSummary(t, w))
	})

	t.Run("invalid payloads summarize as empty", func(t *testing.T) {
		cases := map[string]*http.Request{
			"no payload":      httptest.NewRequest(http.MethodGet, "/pipelines/parse", nil),
			"malformed query": httptest.NewRequest(http.MethodGet, "/pipelines/parse?pipeline=not-json", nil),
			"malformed body":  httptest.NewRequest(http.MethodPost, "/pipelines/parse", strings.NewReader(`{invalid`)),
			"unknown media":   httptest.NewRequest(http.MethodPost, "/pipelines/parse", strings.NewReader(chain)),
		}
		cases["malformed body"].Header.Set("Content-Type", "application/json")
		cases["unknown media"].Header.Set("Content-Type", "text/plain")

		for name, req := range cases {
			w := httptest.NewRecorder()

			handler(w, req)

			assert.Equal(t, http.StatusOK, w.Code, name)
			assert.Equal(t, models.Summary{IsDAG: true}, decodeSummary(t, w), name)
		}
	})

	t.Run("counts malformed entries without walking them", func(t *testing.T) {
		body := `{"nodes": [{"id": "a"}, {"id": 1}, "x"], "edges": [{"source": "a"}, {"source": "a", "target": "a"}]}`
		req := httptest.NewRequest(http.MethodPost, "/pipelines/parse", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		handler(w, req)

		assert.Equal(t, models.Summary{NumNodes: 3, NumEdges: 2, IsDAG: false}, decodeSummary(t, w))
	})

	t.Run("pretty prints when requested", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/pipelines/parse?pretty=true", strings.NewReader(chain))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		handler(w, req)

		assert.Contains(t, w.Body.String(), "\n  \"num_nodes\": 3")
	})

	t.Run("returns 405 for other methods", func(t *testing.T) {
		for _, method := range []string{http.MethodPut, http.MethodDelete, http.MethodPatch} {
			req := httptest.NewRequest(method, "/pipelines/parse", nil)
			w := httptest.NewRecorder()

			handler(w, req)

			assert.Equal(t, http.StatusMethodNotAllowed, w.Code, method)
			assert.Contains(t, w.Body.String(), "Method not allowed")
		}
	})

	t.Run("handles large pipelines", func(t *testing.T) {
		var nodes, edges []string
		for i := range 500 {
			nodes = append(nodes, fmt.Sprintf(`{"id": "n%d"}`, i))
			if i > 0 {
				edges = append(edges, fmt.Sprintf(`{"source": "n%d", "target": "n%d"}`, i-1, i))
			}
		}
		body := fmt.Sprintf(`{"nodes": [%s], "edges": [%s]}`, strings.Join(nodes, ","), strings.Join(edges, ","))

		req := httptest.NewRequest(http.MethodPost, "/pipelines/parse", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		handler(w, req)

		assert.Equal(t, models.Summary{NumNodes: 500, NumEdges: 499, IsDAG: true}, decodeSummary(t, w))
	})
}
