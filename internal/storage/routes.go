package storage

import (
	"context"
	"log/slog"

	"github.com/roadrunner-sim/viewer/pkg/core"
)

// RouteFetcher fetches the pre-computed route of one entity.
type RouteFetcher interface {
	FetchRoute(ctx context.Context, id string) (core.Route, error)
}

// CachedRoutes serves routes from the session backend, fetching and
// recording them on first use.
type CachedRoutes struct {
	fetcher RouteFetcher
	backend Backend
	logger  *slog.Logger
}

func NewCachedRoutes(fetcher RouteFetcher, backend Backend, logger *slog.Logger) *CachedRoutes {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedRoutes{fetcher: fetcher, backend: backend, logger: logger}
}

// FetchRoute returns the cached route for id, or fetches it. Cache failures
// are logged and never hide a successful fetch.
func (c *CachedRoutes) FetchRoute(ctx context.Context, id string) (core.Route, error) {
	route, ok, err := c.backend.Route(ctx, id)
	if err != nil {
		c.logger.Warn("route cache read failed", "entity", id, "error", err)
	}
	if ok {
		return route, nil
	}

	route, err = c.fetcher.FetchRoute(ctx, id)
	if err != nil {
		return core.Route{}, err
	}
	if err := c.backend.RecordRoute(ctx, route); err != nil {
		c.logger.Warn("route cache write failed", "entity", id, "error", err)
	}
	return route, nil
}
