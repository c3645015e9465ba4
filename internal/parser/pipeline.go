// Package parser provides utilities for parsing and transforming input data.
// It handles data normalization, validation, and conversion between formats.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pipeweave/core/internal/models"
)

var ErrEmptyPayload = errors.New("empty pipeline payload")

// ParsePipeline decodes a JSON request body. The body is either the pipeline
// itself or an object carrying it under "pipeline", as an encoded string or
// as an object.
func ParsePipeline(data []byte) (*models.Pipeline, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyPayload
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pipeline: %w", err)
	}

	wrapped, ok := body["pipeline"]
	if !ok {
		return fromFields(body), nil
	}

	var encoded string
	if err := json.Unmarshal(wrapped, &encoded); err == nil {
		return ParsePipelineString(encoded)
	}

	var inner map[string]json.RawMessage
	if err := json.Unmarshal(wrapped, &inner); err != nil || inner == nil {
		return nil, ErrEmptyPayload
	}
	return fromFields(inner), nil
}

// ParsePipelineString decodes a pipeline sent as a form field or query
// parameter.
func ParsePipelineString(s string) (*models.Pipeline, error) {
	if strings.TrimSpace(s) == "" {
		return nil, ErrEmptyPayload
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &body); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pipeline: %w", err)
	}

	return fromFields(body), nil
}

func fromFields(body map[string]json.RawMessage) *models.Pipeline {
	return &models.Pipeline{
		Nodes: entries(body["nodes"]),
		Edges: entries(body["edges"]),
	}
}

// entries returns the elements of a JSON array. Anything that is not an
// array counts as empty.
func entries(raw json.RawMessage) []json.RawMessage {
	var out []json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return []json.RawMessage{}
	}
	return out
}
