package view

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roadrunner-sim/viewer/internal/dispatcher"
	"github.com/roadrunner-sim/viewer/internal/geo"
	"github.com/roadrunner-sim/viewer/pkg/core"
	"github.com/roadrunner-sim/viewer/pkg/streaming"
)

// fakeRenderer projects lat/lon straight to pixels: x = lon*1000, y = lat*1000.
type fakeRenderer struct {
	mu       sync.Mutex
	bearings []float64
	centers  []core.GeoPoint
	fits     []core.Bounds
	frames   []streaming.FramePayload
	routes   []streaming.RoutePayload
}

func (f *fakeRenderer) ProjectGeoToScreen(p core.GeoPoint) core.ScreenPoint {
	return core.ScreenPoint{X: p.Lon * 1000, Y: p.Lat * 1000}
}

func (f *fakeRenderer) SetBearing(_ context.Context, deg float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bearings = append(f.bearings, deg)
	return nil
}

func (f *fakeRenderer) SetCenter(_ context.Context, p core.GeoPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.centers = append(f.centers, p)
	return nil
}

func (f *fakeRenderer) FitBounds(_ context.Context, b core.Bounds) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fits = append(f.fits, b)
	return nil
}

func (f *fakeRenderer) DrawFrame(_ context.Context, fr streaming.FramePayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeRenderer) DrawRoute(_ context.Context, r streaming.RoutePayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes = append(f.routes, r)
	return nil
}

func (f *fakeRenderer) Viewport() geo.Viewport {
	return geo.Viewport{}
}

func (f *fakeRenderer) routeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.routes)
}

type fakeRoutes struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (f *fakeRoutes) FetchRoute(_ context.Context, id string) (core.Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[id]++
	if f.err != nil {
		return core.Route{}, f.err
	}
	return core.Route{EntityID: id, Steps: [][]core.GeoPoint{{{Lat: 1, Lon: 2}, {Lat: 1.5, Lon: 2.5}}}}, nil
}

func (f *fakeRoutes) count(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

var errRoute = errors.New("directions unavailable")

func newDispatcher(t *testing.T) *dispatcher.Dispatcher {
	t.Helper()
	d, err := dispatcher.New(slog.Default())
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d
}

func event(t *testing.T, command string, payload any) dispatcher.Event {
	t.Helper()
	e := dispatcher.Event{Command: command}
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		e.Payload = raw
	}
	return e
}
