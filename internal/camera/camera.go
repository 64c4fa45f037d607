// Package camera drives the single-entity ride-along view: a chase camera
// that follows one entity, and a press-and-hold bearing offset.
package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roadrunner-sim/viewer/internal/schedule"
	"github.com/roadrunner-sim/viewer/pkg/core"
)

// EntityFetcher fetches the latest snapshot of one entity.
type EntityFetcher interface {
	FetchEntity(ctx context.Context, id string) (core.EntityState, error)
}

// RouteFetcher fetches the pre-computed route of one entity.
type RouteFetcher interface {
	FetchRoute(ctx context.Context, id string) (core.Route, error)
}

// Renderer receives the camera framing.
type Renderer interface {
	SetBearing(ctx context.Context, deg float64) error
	SetCenter(ctx context.Context, p core.GeoPoint) error
}

// OffsetSource supplies the current manual bearing offset in degrees.
type OffsetSource interface {
	Offset() float64
}

// Config holds chase camera parameters.
type Config struct {
	Interval        time.Duration
	BaseRange       float64 // meters
	ReferenceHeight float64 // pixels
	ViewportHeight  float64 // pixels
}

// Dependencies holds all dependencies for a Controller.
type Dependencies struct {
	Client   EntityFetcher
	Routes   RouteFetcher // optional
	Renderer Renderer
	Offset   OffsetSource // optional, zero offset when nil
	Logger   *slog.Logger
	// OnTerminate is called once when the session ends because the entity could not be fetched.
	// It runs on the refresh goroutine and must not call Stop.
	OnTerminate func(err error)
}

// ErrTerminated is returned by Tick after the session has ended.
var ErrTerminated = errors.New("camera session terminated")

// Controller follows one entity. It has a single state: Following. A failed
// fetch ends the session instead of retrying.
type Controller struct {
	id   string
	deps Dependencies
	cfg  Config

	mu         sync.RWMutex
	viewportH  float64
	latest     core.EntityState
	haveLatest bool
	route      core.Route
	haveRoute  bool
	terminated bool
	task       *schedule.Task
	termOnce   sync.Once
}

// NewController creates a controller following entity id.
func NewController(id string, deps Dependencies, cfg Config) (*Controller, error) {
	if id == "" {
		return nil, fmt.Errorf("camera: entity id is required")
	}
	if deps.Client == nil || deps.Renderer == nil {
		return nil, fmt.Errorf("camera: client and renderer are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Controller{
		id:        id,
		deps:      deps,
		cfg:       cfg,
		viewportH: cfg.ViewportHeight,
	}, nil
}

// EntityID returns the followed entity.
func (c *Controller) EntityID() string { return c.id }

// SetViewportHeight updates the display height used to scale the look-ahead range.
func (c *Controller) SetViewportHeight(h float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewportH = h
}

// Range returns the current look-ahead range in meters.
func (c *Controller) Range() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return LookaheadRange(c.cfg.BaseRange, c.viewportH, c.cfg.ReferenceHeight)
}

// Tick re-fetches the entity and reframes the camera.
func (c *Controller) Tick(ctx context.Context) error {
	if c.Terminated() {
		return ErrTerminated
	}

	e, err := c.deps.Client.FetchEntity(ctx, c.id)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.terminate(err)
		return err
	}

	offset := 0.0
	if c.deps.Offset != nil {
		offset = c.deps.Offset.Offset()
	}
	view := ChaseView(e, offset, c.Range())

	c.mu.Lock()
	c.latest = e
	c.haveLatest = true
	c.mu.Unlock()

	if err := c.deps.Renderer.SetBearing(ctx, view.Bearing); err != nil {
		c.deps.Logger.Warn("set bearing failed", "entity", c.id, "error", err)
	}
	if err := c.deps.Renderer.SetCenter(ctx, view.Center); err != nil {
		c.deps.Logger.Warn("set center failed", "entity", c.id, "error", err)
	}

	c.loadRoute(ctx)
	return nil
}

func (c *Controller) loadRoute(ctx context.Context) {
	if c.deps.Routes == nil {
		return
	}
	c.mu.RLock()
	done := c.haveRoute
	c.mu.RUnlock()
	if done {
		return
	}

	route, err := c.deps.Routes.FetchRoute(ctx, c.id)
	if err != nil {
		c.deps.Logger.Warn("route fetch failed", "entity", c.id, "error", err)
		return
	}
	c.mu.Lock()
	c.route = route
	c.haveRoute = true
	c.mu.Unlock()
}

func (c *Controller) terminate(err error) {
	c.termOnce.Do(func() {
		c.mu.Lock()
		c.terminated = true
		task := c.task
		c.mu.Unlock()

		c.deps.Logger.Warn("ride-along session terminated", "entity", c.id, "error", err)
		if task != nil {
			task.Stop()
		}
		if c.deps.OnTerminate != nil {
			c.deps.OnTerminate(err)
		}
	})
}

// Start begins the refresh loop. The first tick runs immediately.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminated || (c.task != nil && c.task.Running()) {
		return
	}
	c.task = schedule.Every(ctx, c.cfg.Interval, func(ctx context.Context) {
		_ = c.Tick(ctx)
	}, schedule.Immediate())
}

// Stop cancels the refresh loop and waits for it to exit.
func (c *Controller) Stop() {
	c.mu.RLock()
	task := c.task
	c.mu.RUnlock()
	if task == nil {
		return
	}
	task.Stop()
	<-task.Done()
}

// Done is closed when the refresh loop exits. It is nil before Start.
func (c *Controller) Done() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.task == nil {
		return nil
	}
	return c.task.Done()
}

// Terminated reports whether the session ended on a failed fetch.
func (c *Controller) Terminated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.terminated
}

// Latest returns the most recent snapshot of the followed entity.
func (c *Controller) Latest() (core.EntityState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest, c.haveLatest
}

// Route returns the followed entity's route once it has been fetched.
func (c *Controller) Route() (core.Route, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.route, c.haveRoute
}
