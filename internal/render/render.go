// Package render defines the map rendering collaborator and a headless
// implementation used when no browser map is attached.
package render

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roadrunner-sim/viewer/internal/geo"
	"github.com/roadrunner-sim/viewer/pkg/core"
	"github.com/roadrunner-sim/viewer/pkg/streaming"
)

// Renderer is the map surface the viewer drives.
type Renderer interface {
	geo.Projector
	SetBearing(ctx context.Context, deg float64) error
	SetCenter(ctx context.Context, p core.GeoPoint) error
	FitBounds(ctx context.Context, b core.Bounds) error
	DrawFrame(ctx context.Context, f streaming.FramePayload) error
	DrawRoute(ctx context.Context, r streaming.RoutePayload) error
	Viewport() geo.Viewport
}

// Headless keeps a local viewport and discards drawing commands.
type Headless struct {
	mu     sync.RWMutex
	vp     geo.Viewport
	frames int
	logger *slog.Logger
}

// NewHeadless creates a headless renderer starting at vp.
func NewHeadless(vp geo.Viewport, logger *slog.Logger) *Headless {
	if logger == nil {
		logger = slog.Default()
	}
	return &Headless{vp: vp, logger: logger}
}

func (h *Headless) ProjectGeoToScreen(p core.GeoPoint) core.ScreenPoint {
	return h.Viewport().ProjectGeoToScreen(p)
}

func (h *Headless) SetBearing(_ context.Context, deg float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.vp.Bearing = deg
	return nil
}

func (h *Headless) SetCenter(_ context.Context, p core.GeoPoint) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.vp.Center = p
	return nil
}

func (h *Headless) FitBounds(_ context.Context, b core.Bounds) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.vp = h.vp.Fit(b, 0)
	return nil
}

func (h *Headless) DrawFrame(_ context.Context, f streaming.FramePayload) error {
	h.mu.Lock()
	h.frames++
	h.mu.Unlock()
	h.logger.Debug("frame", "entities", len(f.Entities), "active", f.Active, "loaded", f.Loaded)
	return nil
}

func (h *Headless) DrawRoute(_ context.Context, r streaming.RoutePayload) error {
	h.logger.Debug("route", "layer", r.LayerID)
	return nil
}

// Viewport returns the current local viewport.
func (h *Headless) Viewport() geo.Viewport {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.vp
}

// SetZoom updates the local zoom level.
func (h *Headless) SetZoom(zoom float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.vp.Zoom = zoom
}

// SetView replaces the camera part of the local viewport, keeping its size.
func (h *Headless) SetView(center core.GeoPoint, zoom, bearing float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.vp.Center, h.vp.Zoom, h.vp.Bearing = center, zoom, bearing
}

// Resize updates the local viewport size.
func (h *Headless) Resize(width, height float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.vp.Width, h.vp.Height = width, height
}

// Frames returns how many frames have been drawn.
func (h *Headless) Frames() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.frames
}
