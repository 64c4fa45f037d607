// Package websocket implements render.Renderer by streaming map commands to a
// browser map over a WebSocket and receiving its UI events on the same socket.
package websocket

import (
	"context"
	"log/slog"

	"github.com/roadrunner-sim/viewer/internal/geo"
	"github.com/roadrunner-sim/viewer/internal/render"
	"github.com/roadrunner-sim/viewer/pkg/core"
	"github.com/roadrunner-sim/viewer/pkg/streaming"
)

// Config holds WebSocket renderer configuration.
type Config struct {
	URL      string
	Secret   string
	Viewport geo.Viewport // initial local viewport mirror
}

// Renderer streams commands to the map. Projection uses a local viewport
// mirror kept current from outgoing commands and inbound view, zoom and
// resize events. The map must send a view event when the user moves it.
type Renderer struct {
	link   *mapLink
	cfg    Config
	local  *render.Headless
	events func(streaming.Envelope)
	logger *slog.Logger
}

// New creates a renderer. events receives every non-ack message from the map,
// after zoom and resize have been applied to the local viewport.
func New(cfg Config, logger *slog.Logger, events func(streaming.Envelope)) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Renderer{
		cfg:    cfg,
		local:  render.NewHeadless(cfg.Viewport, logger),
		events: events,
		logger: logger,
	}
	r.link = newMapLink(logger, r.handleEvent)
	return r
}

// Init connects to the map.
func (r *Renderer) Init() error {
	return r.link.open(r.cfg.URL, r.cfg.Secret)
}

// Close disconnects from the map.
func (r *Renderer) Close() error {
	return r.link.close()
}

func (r *Renderer) handleEvent(env streaming.Envelope) {
	switch env.Type {
	case streaming.TypeZoom:
		if z, err := streaming.Decode[streaming.ZoomPayload](env); err == nil {
			r.local.SetZoom(z.Zoom)
		}
	case streaming.TypeView:
		if v, err := streaming.Decode[streaming.ViewPayload](env); err == nil {
			r.local.SetView(v.Center(), v.Zoom, v.Bearing)
		}
	case streaming.TypeResize:
		if s, err := streaming.Decode[streaming.ResizePayload](env); err == nil {
			r.local.Resize(s.Width, s.Height)
		}
	}
	if r.events != nil {
		r.events(env)
	}
}

func (r *Renderer) sendEnvelope(msgType string, payload any) error {
	data, err := streaming.Marshal(msgType, payload)
	if err != nil {
		return err
	}
	r.link.send(data)
	return nil
}

// StartSession announces the session and waits for the map's ack.
func (r *Renderer) StartSession(p streaming.SessionStartPayload) error {
	data, err := streaming.Marshal(streaming.TypeSessionStart, p)
	if err != nil {
		return err
	}

	r.link.setReplay(data)
	return r.link.request(data, streaming.TypeSessionStart, ackTimeout)
}

// EndSession tells the map the session is over.
func (r *Renderer) EndSession() error {
	r.link.setReplay(nil)
	return r.sendEnvelope(streaming.TypeSessionEnd, nil)
}

func (r *Renderer) ProjectGeoToScreen(p core.GeoPoint) core.ScreenPoint {
	return r.local.ProjectGeoToScreen(p)
}

func (r *Renderer) Viewport() geo.Viewport {
	return r.local.Viewport()
}

func (r *Renderer) SetBearing(ctx context.Context, deg float64) error {
	_ = r.local.SetBearing(ctx, deg)
	return r.sendEnvelope(streaming.TypeSetBearing, streaming.BearingPayload{Deg: deg})
}

func (r *Renderer) SetCenter(ctx context.Context, p core.GeoPoint) error {
	_ = r.local.SetCenter(ctx, p)
	return r.sendEnvelope(streaming.TypeSetCenter, streaming.CenterPayload(p))
}

func (r *Renderer) FitBounds(ctx context.Context, b core.Bounds) error {
	_ = r.local.FitBounds(ctx, b)
	return r.sendEnvelope(streaming.TypeFitBounds, streaming.BoundsPayload(b))
}

func (r *Renderer) DrawFrame(_ context.Context, f streaming.FramePayload) error {
	return r.sendEnvelope(streaming.TypeFrame, f)
}

func (r *Renderer) DrawRoute(_ context.Context, p streaming.RoutePayload) error {
	return r.sendEnvelope(streaming.TypeRoute, p)
}
