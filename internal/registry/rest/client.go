// Package rest implements registry access over a JSON HTTP API.
//
// Every call goes through a circuit breaker and is retried with backoff while
// the failure is transient. 404 answers map to errors.NotFound.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
	"github.com/Aman-CERP/casesearch/internal/projection"
	"github.com/Aman-CERP/casesearch/internal/registry"
)

// DefaultTimeout bounds a single request attempt.
const DefaultTimeout = 10 * time.Second

// Config configures the client.
type Config struct {
	BaseURL string
	// Timeout per attempt. Zero uses DefaultTimeout.
	Timeout time.Duration
	Retry   cserrors.RetryConfig
	// Token is sent as a bearer token when set.
	Token string
}

// Client reads registry state from a JSON HTTP API.
type Client struct {
	base    *url.URL
	cfg     Config
	http    *http.Client
	breaker *cserrors.CircuitBreaker
	logger  *slog.Logger
}

// NewClient creates a client for cfg.BaseURL.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, cserrors.ConfigError(fmt.Sprintf("invalid registry base URL %q", cfg.BaseURL), err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = cserrors.DefaultRetryConfig()
	}

	// No http.Client.Timeout: it would override the per-attempt context deadline.
	transport := &http.Transport{
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     30 * time.Second,
	}

	return &Client{
		base:    base,
		cfg:     cfg,
		http:    &http.Client{Transport: transport},
		breaker: cserrors.NewCircuitBreaker("registry", cserrors.WithMaxFailures(5), cserrors.WithResetTimeout(30*time.Second)),
		logger:  slog.Default(),
	}, nil
}

// get fetches path into out, with retry and circuit breaking.
func (c *Client) get(ctx context.Context, kind, id, path string, query url.Values, out any) error {
	return cserrors.Retry(ctx, c.cfg.Retry, func() error {
		err := c.breaker.Execute(func() error {
			return c.do(ctx, kind, id, path, query, out)
		})
		if err == cserrors.ErrCircuitOpen {
			return cserrors.SourceUnavailable("registry circuit open", err)
		}
		return err
	})
}

func (c *Client) do(ctx context.Context, kind, id, path string, query url.Values, out any) error {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return cserrors.InternalError("failed to create registry request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return cserrors.SourceUnavailable(fmt.Sprintf("registry request %s failed", path), err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return cserrors.NotFound(kind, id)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return cserrors.SourceUnavailable(
			fmt.Sprintf("registry returned %d for %s", resp.StatusCode, path),
			fmt.Errorf("%s", strings.TrimSpace(string(body))))
	case resp.StatusCode != http.StatusOK:
		return cserrors.InternalError(fmt.Sprintf("registry returned %d for %s", resp.StatusCode, path), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return cserrors.InternalError(fmt.Sprintf("failed to decode registry response for %s", path), err)
	}
	return nil
}

// Case implements registry.CaseRegistry.
func (c *Client) Case(ctx context.Context, id string) (*registry.Case, error) {
	var out registry.Case
	if err := c.get(ctx, string(projection.KindCase), id, "/cases/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Roles implements registry.CaseRegistry.
func (c *Client) Roles(ctx context.Context, caseID string) ([]registry.Role, error) {
	var out []registry.Role
	if err := c.get(ctx, string(projection.KindCase), caseID, "/cases/"+url.PathEscape(caseID)+"/roles", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Task implements registry.TaskRegistry.
func (c *Client) Task(ctx context.Context, id string) (*registry.Task, error) {
	var out registry.Task
	if err := c.get(ctx, string(projection.KindTask), id, "/tasks/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OpenTaskIDs implements registry.TaskRegistry.
func (c *Client) OpenTaskIDs(ctx context.Context, caseID string) ([]string, error) {
	var out idList
	if err := c.get(ctx, string(projection.KindCase), caseID, "/cases/"+url.PathEscape(caseID)+"/open-tasks", nil, &out); err != nil {
		return nil, err
	}
	return out.IDs, nil
}

// Document implements registry.DocumentRegistry.
func (c *Client) Document(ctx context.Context, id string) (*registry.Document, error) {
	var out registry.Document
	if err := c.get(ctx, string(projection.KindDocument), id, "/documents/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CaseType implements registry.Catalog.
func (c *Client) CaseType(ctx context.Context, id string) (*registry.CaseType, error) {
	var out registry.CaseType
	if err := c.get(ctx, "CASETYPE", id, "/case-types/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status implements registry.Catalog.
func (c *Client) Status(ctx context.Context, id string) (*registry.Status, error) {
	var out registry.Status
	if err := c.get(ctx, "STATUS", id, "/statuses/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type idList struct {
	IDs []string `json:"ids"`
}

var listPaths = map[projection.Kind]string{
	projection.KindCase:     "/cases",
	projection.KindTask:     "/tasks",
	projection.KindDocument: "/documents",
}

// ListIDs implements registry.Lister.
func (c *Client) ListIDs(ctx context.Context, kind projection.Kind, offset, limit int) ([]string, error) {
	path, ok := listPaths[kind]
	if !ok {
		return nil, cserrors.InvalidParameters(fmt.Sprintf("registry cannot list kind %q", kind))
	}

	query := url.Values{}
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))

	var out idList
	if err := c.get(ctx, string(kind), "", path, query, &out); err != nil {
		return nil, err
	}
	return out.IDs, nil
}

// BreakerState returns the circuit breaker state for status reporting.
func (c *Client) BreakerState() cserrors.State {
	return c.breaker.State()
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

var _ registry.Registry = (*Client)(nil)
