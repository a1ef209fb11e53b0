// Package api is the HTTP client for the ScheduleAI REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 15 * time.Second

// Recorder observes every request made by the client.
type Recorder interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// Options configure a Client.
type Options struct {
	// Timeout bounds a single request. Zero means 15s.
	Timeout time.Duration
	// Location is used to read and write the backend's naive timestamps.
	// Nil means time.Local.
	Location *time.Location
	Logger   *zap.Logger
	Recorder Recorder
	// HTTPClient overrides the underlying client (tests).
	HTTPClient *http.Client
}

// Client talks to the backend. A Client is bound to at most one bearer
// token; use WithToken to derive a client for a given session.
type Client struct {
	baseURL  string
	http     *http.Client
	loc      *time.Location
	logger   *zap.Logger
	recorder Recorder
	token    string
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:  strings.TrimRight(u.String(), "/"),
		http:     httpClient,
		loc:      loc,
		logger:   logger,
		recorder: opts.Recorder,
	}, nil
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

// Location returns the zone used for naive timestamps.
func (c *Client) Location() *time.Location {
	return c.loc
}

// route is the path template used for logging and metrics, so ids do not
// explode label cardinality.
type route struct {
	method   string
	template string
	path     string
}

func newRoute(method, template string, args ...any) route {
	path := template
	if len(args) > 0 {
		path = fmt.Sprintf(strings.ReplaceAll(template, "{id}", "%v"), args...)
	}
	return route{method: method, template: template, path: path}
}

func (c *Client) doJSON(ctx context.Context, r route, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", r.template, err)
		}
		body = bytes.NewReader(data)
	}
	return c.do(ctx, r, body, "application/json", out)
}

func (c *Client) doForm(ctx context.Context, r route, form url.Values, out any) error {
	return c.do(ctx, r, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", out)
}

func (c *Client) do(ctx context.Context, r route, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return fmt.Errorf("build request %s %s: %w", r.method, r.template, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(r, 0, started)
		c.logger.Warn("api request failed", zap.String("method", r.method), zap.String("route", r.template), zap.Error(err))
		return fmt.Errorf("%s %s: %w", r.method, r.template, err)
	}
	defer resp.Body.Close()
	c.observe(r, resp.StatusCode, started)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", r.method, r.template, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("api non-2xx", zap.String("method", r.method), zap.String("route", r.template), zap.Int("status", resp.StatusCode))
		return parseError(r.template, resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", r.method, r.template, err)
	}
	return nil
}

func (c *Client) observe(r route, status int, started time.Time) {
	if c.recorder == nil {
		return
	}
	c.recorder.ObserveRequest(r.method, r.template, status, time.Since(started))
}
