// Package storage records what one viewer session has seen: a short trail of
// positions per entity and the routes fetched so far. Nothing outlives the session.
package storage

import (
	"context"
	"time"

	"github.com/roadrunner-sim/viewer/pkg/core"
)

// Backend is the interface all session recorders must satisfy.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// RecordPage appends the page's snapshots to their entities' trails.
	RecordPage(ctx context.Context, page core.Page, took time.Duration) error
	// Forget drops the trails of entities evicted from the live store.
	Forget(ctx context.Context, ids []string) error
	// Trail returns the recorded positions of id, oldest first.
	Trail(ctx context.Context, id string) ([]core.TrailPoint, error)

	RecordRoute(ctx context.Context, route core.Route) error
	Route(ctx context.Context, id string) (core.Route, bool, error)
}

type nopBackend struct{}

func (nopBackend) Init() error  { return nil }
func (nopBackend) Close() error { return nil }

func (nopBackend) RecordPage(context.Context, core.Page, time.Duration) error { return nil }
func (nopBackend) Forget(context.Context, []string) error                     { return nil }
func (nopBackend) Trail(context.Context, string) ([]core.TrailPoint, error)   { return nil, nil }
func (nopBackend) RecordRoute(context.Context, core.Route) error               { return nil }

func (nopBackend) Route(context.Context, string) (core.Route, bool, error) {
	return core.Route{}, false, nil
}
