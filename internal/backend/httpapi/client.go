// Package httpapi talks to the todo REST API server.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/time/rate"

	"github.com/Makepad-fr/tada/internal/model"
)

// maxBody caps how much of a response body is read.
const maxBody = 1 << 20

// StatusError is returned for non-2xx responses that have no more specific mapping.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Client calls the todo API. It is safe for concurrent use.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	token   string
	logger  *log.Logger
	schemas *schemas
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithRateLimit throttles outgoing requests to rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithToken sends token as a Bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the logger for request tracing.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url %q: scheme must be http or https", baseURL)
	}
	s, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	c := &Client{
		base:    u,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Inf, 0),
		logger:  log.Default(),
		schemas: s,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Create posts a new todo. The server assigns its ID.
func (c *Client) Create(ctx context.Context, payload model.NewTodo) (model.Todo, error) {
	if payload.Labels == nil {
		payload.Labels = []int{}
	}
	var out model.Todo
	err := c.do(ctx, http.MethodPost, "/todos", payload, c.schemas.todo, &out)
	return out, err
}

// Find fetches one todo.
func (c *Client) Find(ctx context.Context, id int) (model.Todo, error) {
	var out model.Todo
	err := c.do(ctx, http.MethodGet, "/todos/"+strconv.Itoa(id), nil, c.schemas.todo, &out)
	return out, err
}

// All fetches every todo, newest first as the server orders them.
func (c *Client) All(ctx context.Context) ([]model.Todo, error) {
	var out []model.Todo
	if err := c.do(ctx, http.MethodGet, "/todos", nil, c.schemas.todos, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update patches the todo with id and returns the stored result.
func (c *Client) Update(ctx context.Context, id int, u model.UpdateTodo) (model.Todo, error) {
	var out model.Todo
	err := c.do(ctx, http.MethodPatch, "/todos/"+strconv.Itoa(id), u, c.schemas.todo, &out)
	return out, err
}

// Delete removes the todo with id.
func (c *Client) Delete(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, "/todos/"+strconv.Itoa(id), nil, nil, nil)
}

// CreateLabel posts a new label.
func (c *Client) CreateLabel(ctx context.Context, name string) (model.Label, error) {
	var out model.Label
	err := c.do(ctx, http.MethodPost, "/labels", map[string]string{"name": name}, c.schemas.label, &out)
	return out, err
}

// Labels fetches every label.
func (c *Client) Labels(ctx context.Context) ([]model.Label, error) {
	var out []model.Label
	if err := c.do(ctx, http.MethodGet, "/labels", nil, c.schemas.labels, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteLabel removes the label with id.
func (c *Client) DeleteLabel(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, "/labels/"+strconv.Itoa(id), nil, nil, nil)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, schema *jsonschema.Schema, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s %s: rate limit: %w", method, path, err)
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	c.logger.Debug("api request", "method", method, "path", path, "status", resp.StatusCode, "took", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(method, path, resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}

	if schema != nil {
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
		if err := schema.Validate(doc); err != nil {
			return fmt.Errorf("%s %s: unexpected response: %s", method, path, firstCause(err))
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func statusError(method, path string, code int, raw []byte) error {
	se := &StatusError{Method: method, Path: path, Code: code, Body: strings.TrimSpace(string(raw))}
	switch code {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", model.ErrNotFound, se)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %w", model.ErrInvalidText, se)
	}
	return se
}

// IsStatus reports whether err carries an API response with the given status code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
