// Package handlers provides HTTP request handlers for the API endpoints.
// It defines the routing logic, response formatting, and error handling mechanisms.
package handlers

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"github.com/pipeweave/core/internal/models"
	"github.com/pipeweave/core/internal/parser"
)

const maxFormMemory = 1 << 20

// ParseHandler summarizes a pipeline sent as a JSON body, a "pipeline" form
// field, or a "pipeline" query parameter. Payloads that cannot be read
// summarize as an empty pipeline.
func ParseHandler(logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		pipeline := readPipeline(r, logger)
		if pipeline == nil {
			pipeline = &models.Pipeline{}
		}
		summary := parser.Summarize(pipeline)

		logger.Debug("pipeline parsed",
			zap.Int("num_nodes", summary.NumNodes),
			zap.Int("num_edges", summary.NumEdges),
			zap.Bool("is_dag", summary.IsDAG),
		)

		w.Header().Set("Content-Type", "application/json")

		encoder := json.NewEncoder(w)
		if r.URL.Query().Get("pretty") == "true" {
			encoder.SetIndent("", "  ")
		}

		if err := encoder.Encode(summary); err != nil {
			logger.Error("Error encoding response", zap.Error(err))
		}
	}
}

func readPipeline(r *http.Request, logger *zap.Logger) *models.Pipeline {
	if r.Method == http.MethodPost {
		if p := readBody(r, logger); p != nil {
			return p
		}
	}

	raw := r.URL.Query().Get("pipeline")
	if raw == "" {
		return nil
	}
	p, err := parser.ParsePipelineString(raw)
	if err != nil {
		logger.Debug("ignoring pipeline query parameter", zap.Error(err))
		return nil
	}
	return p
}

func readBody(r *http.Request, logger *zap.Logger) *models.Pipeline {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/json":
		body, err := io.ReadAll(r.Body)
		if err != nil {
			logger.Warn("Failed to read body", zap.Error(err))
			return nil
		}
		defer r.Body.Close()

		p, err := parser.ParsePipeline(body)
		if err != nil {
			logger.Debug("ignoring pipeline body", zap.Error(err))
			return nil
		}
		return p

	case "application/x-www-form-urlencoded", "multipart/form-data":
		if mediaType == "multipart/form-data" {
			if err := r.ParseMultipartForm(maxFormMemory); err != nil {
				logger.Debug("ignoring multipart form", zap.Error(err))
				return nil
			}
		}
		raw := r.PostFormValue("pipeline")
		if raw == "" {
			return nil
		}
		p, err := parser.ParsePipelineString(raw)
		if err != nil {
			logger.Debug("ignoring pipeline form field", zap.Error(err))
			return nil
		}
		return p
	}

	return nil
}
