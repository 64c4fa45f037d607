// Package api is the REST client for the telemetry source.
package api

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
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/roadrunner-sim/viewer/internal/geo"
	"github.com/roadrunner-sim/viewer/pkg/core"
)

// Client talks to the telemetry source's vehicle API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	validate   *validator.Validate

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets a per-request timeout. Zero means none.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a new API client. token is sent as a bearer credential when non-empty.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
		validate:   newValidator(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer credential used for subsequent requests.
// Requests already in flight keep the old one.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// FetchPage returns one page of the entity listing.
func (c *Client) FetchPage(ctx context.Context, page, size int) (core.Page, error) {
	const op = "fetch page"
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	var dto pageDTO
	if err := c.do(ctx, op, http.MethodGet, "/api/vehicle/get-vehicle-states?"+q.Encode(), nil, &dto); err != nil {
		return core.Page{}, err
	}
	if err := c.validate.Struct(dto); err != nil {
		return core.Page{}, &DecodeError{Op: op, Err: err}
	}
	return dto.toCore(), nil
}

// FetchEntity returns the latest snapshot of one entity.
func (c *Client) FetchEntity(ctx context.Context, id string) (core.EntityState, error) {
	const op = "fetch entity"
	var dto entityDTO
	if err := c.do(ctx, op, http.MethodGet, "/api/vehicle/get-vehicle-state/"+url.PathEscape(id), nil, &dto); err != nil {
		return core.EntityState{}, err
	}
	if err := c.validate.Struct(dto); err != nil {
		return core.EntityState{}, &DecodeError{Op: op, Err: err}
	}
	return dto.toCore(), nil
}

// FetchRoute returns the pre-computed directions for one entity.
func (c *Client) FetchRoute(ctx context.Context, id string) (core.Route, error) {
	const op = "fetch route"
	var dto directionsDTO
	if err := c.do(ctx, op, http.MethodGet, "/api/vehicle/get-vehicle-directions/"+url.PathEscape(id), nil, &dto); err != nil {
		return core.Route{}, err
	}
	route, err := geo.RouteFromSteps(id, dto.steps())
	if err != nil {
		return core.Route{}, &DecodeError{Op: op, Err: err}
	}
	return route, nil
}

// CreateCrissCross asks the source to spawn a batch of entities.
func (c *Client) CreateCrissCross(ctx context.Context, req CrissCrossRequest) error {
	const op = "create crisscross"
	if err := c.validate.Struct(req); err != nil {
		return fmt.Errorf("%s: invalid request: %w", op, err)
	}
	return c.do(ctx, op, http.MethodPost, "/api/vehicle/create-crisscross", req, nil)
}

// CreateEntity asks the source to spawn one entity driving from origin to destination.
// It returns the new entity's ID.
func (c *Client) CreateEntity(ctx context.Context, origin, destination core.Address) (string, error) {
	const op = "create entity"
	var resp createResponse
	body := createRequest{ListStops: []core.Address{origin, destination}}
	if err := c.do(ctx, op, http.MethodPost, "/api/vehicle/create-new", body, &resp); err != nil {
		return "", err
	}
	if err := c.validate.Struct(resp); err != nil {
		return "", &DecodeError{Op: op, Err: err}
	}
	return resp.ID, nil
}

// ResetServer asks the source to drop all entities.
func (c *Client) ResetServer(ctx context.Context) error {
	return c.do(ctx, "reset server", http.MethodGet, "/api/vehicle/reset-server", nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	target := c.baseURL + path

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return &TransportError{Op: op, URL: target, Err: fmt.Errorf("failed to encode body: %w", err)}
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return &TransportError{Op: op, URL: target, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &TransportError{Op: op, URL: target, StatusCode: resp.StatusCode, Err: ErrNotFound}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{Op: op, URL: target, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}
