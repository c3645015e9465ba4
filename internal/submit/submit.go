// Package submit sends a pipeline to the validation service and reads back
// its summary.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/pipeweave/core/internal/models"
)

var ErrUnavailable = errors.New("validation service unavailable")

type payload struct {
	Nodes []models.Node `json:"nodes"`
	Edges []models.Edge `json:"edges"`
}

type attempt struct {
	name  string
	build func(ctx context.Context, body []byte) (*http.Request, error)
}

// Client posts pipelines to a /pipelines/parse endpoint. Each submission
// tries a JSON body, then a form field, then a query parameter.
type Client struct {
	url     string
	http    *http.Client
	log     *zap.Logger
	breaker *gobreaker.CircuitBreaker
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// BreakerSettings returns the circuit breaker settings a client uses unless
// WithBreaker overrides them.
func BreakerSettings(log *zap.Logger) gobreaker.Settings {
	if log == nil {
		log = zap.NewNop()
	}
	return gobreaker.Settings{
		Name:        "validator",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
}

func WithBreaker(st gobreaker.Settings) Option {
	return func(c *Client) {
		c.breaker = gobreaker.NewCircuitBreaker(st)
	}
}

func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		url:  endpoint,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = gobreaker.NewCircuitBreaker(BreakerSettings(c.log))
	}
	return c
}

// Submit sends the nodes and edges of g. A response that is not a summary
// object reads as the zero summary.
func (c *Client) Submit(ctx context.Context, g models.Graph) (models.Summary, error) {
	p := payload{Nodes: g.Nodes, Edges: g.Edges}
	if p.Nodes == nil {
		p.Nodes = []models.Node{}
	}
	if p.Edges == nil {
		p.Edges = []models.Edge{}
	}

	body, err := json.Marshal(p)
	if err != nil {
		return models.Summary{}, fmt.Errorf("failed to marshal pipeline: %w", err)
	}

	result, err := c.breaker.Execute(func() (any, error) {
		return c.send(ctx, body)
	})
	if err != nil {
		return models.Summary{}, err
	}
	return result.(models.Summary), nil
}

func (c *Client) send(ctx context.Context, body []byte) (models.Summary, error) {
	attempts := []attempt{
		{name: "json", build: c.jsonRequest},
		{name: "form", build: c.formRequest},
		{name: "query", build: c.queryRequest},
	}

	var errs []error
	for _, a := range attempts {
		if err := ctx.Err(); err != nil {
			return models.Summary{}, err
		}

		req, err := a.build(ctx, body)
		if err != nil {
			return models.Summary{}, fmt.Errorf("failed to build request: %w", err)
		}

		summary, err := c.do(req)
		if err == nil {
			c.log.Debug("pipeline submitted",
				zap.String("via", a.name),
				zap.Int("num_nodes", summary.NumNodes),
				zap.Int("num_edges", summary.NumEdges),
				zap.Bool("is_dag", summary.IsDAG),
			)
			return summary, nil
		}

		c.log.Debug("submit attempt failed", zap.String("via", a.name), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", a.name, err))
	}

	return models.Summary{}, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
}

func (c *Client) jsonRequest(ctx context.Context, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) formRequest(ctx context.Context, body []byte) (*http.Request, error) {
	form := url.Values{"pipeline": {string(body)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

func (c *Client) queryRequest(ctx context.Context, body []byte) (*http.Request, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("pipeline", string(body))
	u.RawQuery = q.Encode()

	return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
}

func (c *Client) do(req *http.Request) (models.Summary, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return models.Summary{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Summary{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Summary{}, err
	}

	var summary models.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		c.log.Debug("unreadable summary", zap.Error(err))
		return models.Summary{}, nil
	}
	return summary, nil
}
