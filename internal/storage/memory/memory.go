// Package memory records session trails and routes in process memory.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/roadrunner-sim/viewer/pkg/core"
)

// Backend keeps the last trailLength positions of every live entity.
type Backend struct {
	trailLength int

	mu     sync.RWMutex
	trails map[string][]core.TrailPoint
	routes map[string]core.Route
}

// New creates a memory backend. trailLength <= 0 keeps a single point per entity.
func New(trailLength int) *Backend {
	if trailLength <= 0 {
		trailLength = 1
	}
	return &Backend{
		trailLength: trailLength,
		trails:      make(map[string][]core.TrailPoint),
		routes:      make(map[string]core.Route),
	}
}

func (b *Backend) Init() error {
	return nil
}

// Close drops everything recorded.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trails = make(map[string][]core.TrailPoint)
	b.routes = make(map[string]core.Route)
	return nil
}

// RecordPage appends one point per item. A snapshot whose timestamp matches
// the newest recorded point is skipped, so re-fetching an idle entity adds nothing.
func (b *Backend) RecordPage(_ context.Context, page core.Page, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, item := range page.Items {
		p := core.TrailPointOf(item)
		trail := b.trails[item.ID]
		if n := len(trail); n > 0 && !p.Time.After(trail[n-1].Time) {
			continue
		}
		trail = append(trail, p)
		if over := len(trail) - b.trailLength; over > 0 {
			trail = append(trail[:0:0], trail[over:]...)
		}
		b.trails[item.ID] = trail
	}
	return nil
}

func (b *Backend) Forget(_ context.Context, ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		delete(b.trails, id)
	}
	return nil
}

// Trail returns a copy of the recorded positions of id, oldest first.
func (b *Backend) Trail(_ context.Context, id string) ([]core.TrailPoint, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	trail := b.trails[id]
	if len(trail) == 0 {
		return nil, nil
	}
	out := make([]core.TrailPoint, len(trail))
	copy(out, trail)
	return out, nil
}

func (b *Backend) RecordRoute(_ context.Context, route core.Route) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[route.EntityID] = route
	return nil
}

func (b *Backend) Route(_ context.Context, id string) (core.Route, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.routes[id]
	return r, ok, nil
}

// Entities returns how many entities currently have a trail.
func (b *Backend) Entities() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.trails)
}
