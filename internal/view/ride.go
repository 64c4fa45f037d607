package view

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roadrunner-sim/viewer/internal/camera"
	"github.com/roadrunner-sim/viewer/internal/dispatcher"
	"github.com/roadrunner-sim/viewer/internal/render"
	"github.com/roadrunner-sim/viewer/internal/schedule"
	"github.com/roadrunner-sim/viewer/pkg/core"
	"github.com/roadrunner-sim/viewer/pkg/streaming"
)

// Panel is the ride-along readout of the followed entity.
type Panel struct {
	EntityID string
	Speed    string
	Bearing  string
	Offset   float64
}

// RideDependencies holds all dependencies for the ride-along view.
type RideDependencies struct {
	Camera   *camera.Controller
	Offset   *camera.OffsetController
	Renderer render.Renderer
	Logger   *slog.Logger
}

// Ride follows one entity with the chase camera.
type Ride struct {
	deps     RideDependencies
	size     float64
	interval time.Duration

	mu        sync.Mutex
	routeSent bool
	task      *schedule.Task
}

// NewRide creates the view. size is the icon size of the followed entity;
// frameInterval paces redraws.
func NewRide(deps RideDependencies, size float64, frameInterval time.Duration) (*Ride, error) {
	if deps.Camera == nil || deps.Offset == nil || deps.Renderer == nil {
		return nil, fmt.Errorf("view: camera, offset controller and renderer are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Ride{deps: deps, size: size, interval: frameInterval}, nil
}

// OnHoldDirection starts stepping the bearing offset.
func (r *Ride) OnHoldDirection(d camera.Direction) {
	r.deps.Offset.Hold(d)
}

// OnRelease stops stepping.
func (r *Ride) OnRelease() {
	r.deps.Offset.Release()
}

// OnRecenter resets the offset to zero.
func (r *Ride) OnRecenter() {
	r.deps.Offset.Recenter()
}

// OnResize rescales the camera look-ahead to the new viewport height.
func (r *Ride) OnResize(height float64) {
	r.deps.Camera.SetViewportHeight(height)
}

// Panel returns the readout, or false before the first snapshot arrives.
func (r *Ride) Panel() (Panel, bool) {
	e, ok := r.deps.Camera.Latest()
	if !ok {
		return Panel{}, false
	}
	return Panel{
		EntityID: e.ID,
		Speed:    SpeedMPH(e.MetersPerSecond),
		Bearing:  Bearing(e.DegBearing),
		Offset:   r.deps.Offset.Offset(),
	}, true
}

// Frame is the followed entity alone with its popup open.
func (r *Ride) Frame() (streaming.FramePayload, bool) {
	e, ok := r.deps.Camera.Latest()
	if !ok {
		return streaming.FramePayload{}, false
	}
	d := core.DisplayState{Size: r.size, PopupVisible: true, RouteVisible: true}
	active := 0
	if e.Active() {
		active = 1
	}
	return streaming.FramePayload{
		Entities: []streaming.FrameEntity{FrameEntityOf(e, d)},
		Active:   active,
		Total:    1,
		Loaded:   !r.deps.Camera.Terminated(),
	}, true
}

// Draw sends the frame, and the route once it is known.
func (r *Ride) Draw(ctx context.Context) error {
	f, ok := r.Frame()
	if !ok {
		return nil
	}
	if err := r.deps.Renderer.DrawFrame(ctx, f); err != nil {
		return err
	}

	r.mu.Lock()
	sent := r.routeSent
	r.mu.Unlock()
	if sent {
		return nil
	}
	route, ok := r.deps.Camera.Route()
	if !ok {
		return nil
	}
	payload, err := RoutePayloadOf(route, f.Entities[0].Color)
	if err != nil {
		return err
	}
	if err := r.deps.Renderer.DrawRoute(ctx, payload); err != nil {
		return err
	}
	r.mu.Lock()
	r.routeSent = true
	r.mu.Unlock()
	return nil
}

// Start runs the camera and the redraw loop.
func (r *Ride) Start(ctx context.Context) {
	r.deps.Camera.Start(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.task != nil && r.task.Running() {
		return
	}
	r.task = schedule.Every(ctx, r.interval, func(ctx context.Context) {
		if err := r.Draw(ctx); err != nil {
			r.deps.Logger.Debug("ride frame draw failed", "error", err)
		}
	})
}

// Stop tears the view down: offset timer, camera and redraw loop.
func (r *Ride) Stop() {
	r.deps.Offset.Close()
	r.deps.Camera.Stop()

	r.mu.Lock()
	task := r.task
	r.mu.Unlock()
	if task != nil {
		task.Stop()
		<-task.Done()
	}
}

// Register routes the ride-along UI events through d.
func (r *Ride) Register(d *dispatcher.Dispatcher) {
	d.Register(streaming.TypeHold, func(e dispatcher.Event) (any, error) {
		p, err := decode[streaming.HoldPayload](e)
		if err != nil {
			return nil, err
		}
		dir, err := camera.ParseDirection(p.Direction)
		if err != nil {
			return nil, err
		}
		r.OnHoldDirection(dir)
		return dir.String(), nil
	})

	d.Register(streaming.TypeRelease, func(dispatcher.Event) (any, error) {
		r.OnRelease()
		return nil, nil
	})

	d.Register(streaming.TypeRecenter, func(dispatcher.Event) (any, error) {
		r.OnRecenter()
		return nil, nil
	}, dispatcher.Logged())

	d.Register(streaming.TypeResize, func(e dispatcher.Event) (any, error) {
		p, err := decode[streaming.ResizePayload](e)
		if err != nil {
			return nil, err
		}
		r.OnResize(p.Height)
		return nil, nil
	}, dispatcher.Latest())
}
