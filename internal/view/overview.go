// Package view is the surface the map UI talks to: the overview of every
// live entity and the ride-along view of a single one.
package view

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roadrunner-sim/viewer/internal/dispatcher"
	"github.com/roadrunner-sim/viewer/internal/geo"
	"github.com/roadrunner-sim/viewer/internal/render"
	"github.com/roadrunner-sim/viewer/internal/schedule"
	"github.com/roadrunner-sim/viewer/internal/store"
	"github.com/roadrunner-sim/viewer/pkg/core"
	"github.com/roadrunner-sim/viewer/pkg/streaming"
)

// RouteFetcher fetches the pre-computed route of one entity.
type RouteFetcher interface {
	FetchRoute(ctx context.Context, id string) (core.Route, error)
}

// LoadState reports whether the last poll succeeded.
type LoadState interface {
	Loaded() bool
}

// OverviewConfig holds display parameters.
type OverviewConfig struct {
	Sizes         geo.SizeRange
	InitialZoom   float64
	HitDistance   float64
	FrameInterval time.Duration
}

// OverviewDependencies holds all dependencies for the overview.
type OverviewDependencies struct {
	Live     *store.LiveEntityStore
	Display  *store.DisplayStateStore
	Renderer render.Renderer
	Routes   RouteFetcher // optional
	Poll     LoadState    // optional
	Logger   *slog.Logger
}

// Overview shows every live entity.
type Overview struct {
	deps OverviewDependencies
	cfg  OverviewConfig

	mu     sync.Mutex
	zoom   float64
	routes map[string]bool // route layers already sent
	task   *schedule.Task
}

func NewOverview(deps OverviewDependencies, cfg OverviewConfig) (*Overview, error) {
	if deps.Live == nil || deps.Display == nil || deps.Renderer == nil {
		return nil, fmt.Errorf("view: live store, display store and renderer are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.HitDistance <= 0 {
		cfg.HitDistance = geo.DefaultHitDistance
	}
	return &Overview{
		deps:   deps,
		cfg:    cfg,
		zoom:   cfg.InitialZoom,
		routes: make(map[string]bool),
	}, nil
}

// Zoom returns the last zoom level reported by the map.
func (o *Overview) Zoom() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.zoom
}

// DefaultSize is the icon size for the current zoom, used for newly seen entities.
func (o *Overview) DefaultSize() float64 {
	return o.cfg.Sizes.For(o.Zoom())
}

// Counts returns how many live entities are active, and how many there are.
func (o *Overview) Counts() (active, total int) {
	return o.deps.Live.Counts()
}

// OnMapClick toggles the popup and route of the entity nearest to p.
// It returns the toggled entity, or false when nothing is close enough.
func (o *Overview) OnMapClick(ctx context.Context, p core.ScreenPoint) (string, bool) {
	e, ok := geo.NearestEntity(p, o.deps.Live.All(), o.deps.Renderer, o.cfg.HitDistance)
	if !ok {
		return "", false
	}
	d, ok := o.deps.Display.Toggle(e.ID)
	if !ok {
		o.deps.Display.GetOrCreate(e.ID, o.DefaultSize())
		d, _ = o.deps.Display.Toggle(e.ID)
	}
	if d.RouteVisible {
		o.ensureRoute(ctx, e)
	}
	return e.ID, true
}

// OnZoom resizes every icon for the new zoom level.
func (o *Overview) OnZoom(zoom float64) float64 {
	o.mu.Lock()
	o.zoom = zoom
	o.mu.Unlock()

	size := o.cfg.Sizes.For(zoom)
	o.deps.Display.SetAllSizes(size)
	return size
}

// SetAllRoutesVisible shows or hides every route.
func (o *Overview) SetAllRoutesVisible(ctx context.Context, visible bool) {
	o.deps.Display.SetAllVisible(visible)
	if !visible {
		return
	}
	for _, e := range o.deps.Live.All() {
		o.ensureRoute(ctx, e)
	}
}

// FitAll frames every live entity. It does nothing when the store is empty.
func (o *Overview) FitAll(ctx context.Context) error {
	all := o.deps.Live.All()
	points := make([]core.GeoPoint, len(all))
	for i, e := range all {
		points[i] = e.Position
	}
	b, ok := core.BoundsOf(points)
	if !ok {
		return nil
	}
	return o.deps.Renderer.FitBounds(ctx, b)
}

func (o *Overview) ensureRoute(ctx context.Context, e core.EntityState) {
	if o.deps.Routes == nil {
		return
	}
	o.mu.Lock()
	sent := o.routes[e.ID]
	o.mu.Unlock()
	if sent {
		return
	}

	r, err := o.deps.Routes.FetchRoute(ctx, e.ID)
	if err != nil {
		o.deps.Logger.Warn("route fetch failed", "entity", e.ID, "error", err)
		return
	}
	payload, err := RoutePayloadOf(r, e.ColorCode)
	if err != nil {
		o.deps.Logger.Warn("route encode failed", "entity", e.ID, "error", err)
		return
	}
	if err := o.deps.Renderer.DrawRoute(ctx, payload); err != nil {
		o.deps.Logger.Warn("route draw failed", "entity", e.ID, "error", err)
		return
	}

	o.mu.Lock()
	o.routes[e.ID] = true
	o.mu.Unlock()
}

// Frame builds the current redraw: every live entity with its display state.
func (o *Overview) Frame() streaming.FramePayload {
	all := o.deps.Live.All()
	f := streaming.FramePayload{Entities: make([]streaming.FrameEntity, 0, len(all))}
	size := o.DefaultSize()
	for _, e := range all {
		d, ok := o.deps.Display.Get(e.ID)
		if !ok {
			d = o.deps.Display.GetOrCreate(e.ID, size)
		}
		f.Entities = append(f.Entities, FrameEntityOf(e, d))
	}
	f.Active, f.Total = o.Counts()
	if o.deps.Poll != nil {
		f.Loaded = o.deps.Poll.Loaded()
	}
	return f
}

// Draw sends the current frame to the renderer.
func (o *Overview) Draw(ctx context.Context) error {
	return o.deps.Renderer.DrawFrame(ctx, o.Frame())
}

// Start redraws on the frame interval until Stop.
func (o *Overview) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.task != nil && o.task.Running() {
		return
	}
	o.task = schedule.Every(ctx, o.cfg.FrameInterval, func(ctx context.Context) {
		if err := o.Draw(ctx); err != nil {
			o.deps.Logger.Debug("frame draw failed", "error", err)
		}
	})
}

func (o *Overview) Stop() {
	o.mu.Lock()
	task := o.task
	o.mu.Unlock()
	if task == nil {
		return
	}
	task.Stop()
	<-task.Done()
}

// Register routes the overview's UI events through d.
func (o *Overview) Register(ctx context.Context, d *dispatcher.Dispatcher) {
	d.Register(streaming.TypeMapClick, func(e dispatcher.Event) (any, error) {
		p, err := decode[streaming.MapClickPayload](e)
		if err != nil {
			return nil, err
		}
		id, ok := o.OnMapClick(ctx, core.ScreenPoint{X: p.X, Y: p.Y})
		if !ok {
			return nil, nil
		}
		return id, nil
	}, dispatcher.Logged())

	d.Register(streaming.TypeZoom, func(e dispatcher.Event) (any, error) {
		p, err := decode[streaming.ZoomPayload](e)
		if err != nil {
			return nil, err
		}
		return o.OnZoom(p.Zoom), nil
	})

	d.Register(streaming.TypeView, func(e dispatcher.Event) (any, error) {
		p, err := decode[streaming.ViewPayload](e)
		if err != nil {
			return nil, err
		}
		return o.OnZoom(p.Zoom), nil
	})

	d.Register(streaming.TypeShowAllRoutes, func(dispatcher.Event) (any, error) {
		o.SetAllRoutesVisible(ctx, true)
		return nil, nil
	}, dispatcher.Buffered(4), dispatcher.Logged())

	d.Register(streaming.TypeHideAllRoutes, func(dispatcher.Event) (any, error) {
		o.SetAllRoutesVisible(ctx, false)
		return nil, nil
	}, dispatcher.Logged())

	d.Register(streaming.TypeFitAll, func(dispatcher.Event) (any, error) {
		return nil, o.FitAll(ctx)
	}, dispatcher.Logged())
}
