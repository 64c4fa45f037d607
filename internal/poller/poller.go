// Package poller keeps the live entity store fresh by fetching one page of
// the entity listing per tick.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/roadrunner-sim/viewer/internal/schedule"
	"github.com/roadrunner-sim/viewer/internal/store"
	"github.com/roadrunner-sim/viewer/pkg/core"
)

// PageFetcher fetches one page of the entity listing.
type PageFetcher interface {
	FetchPage(ctx context.Context, page, size int) (core.Page, error)
}

// PageSink receives every successfully merged page.
type PageSink interface {
	RecordPage(ctx context.Context, page core.Page, took time.Duration) error
}

// EvictionSink is notified of entities dropped from the live store.
type EvictionSink interface {
	Forget(ctx context.Context, ids []string) error
}

// Config holds poll timing and sizing.
type Config struct {
	Interval        time.Duration
	PageSize        int
	EvictionTimeout time.Duration
	Eviction        store.EvictionPolicy
}

// Dependencies holds all dependencies for the poller.
type Dependencies struct {
	Client  PageFetcher
	Live    *store.LiveEntityStore
	Display *store.DisplayStateStore
	Sinks   []PageSink
	Logger  *slog.Logger
	// DefaultSize is the display size for newly seen entities, usually derived from the current zoom.
	DefaultSize func() float64
	Now         func() time.Time
}

// Service runs the evict → fetch → merge → ensure display → advance cycle.
type Service struct {
	deps Dependencies
	cfg  Config

	mu     sync.RWMutex
	cursor core.PageCursor
	loaded bool
	task   *schedule.Task

	polls     metric.Int64Counter
	failures  metric.Int64Counter
	evictions metric.Int64Counter
	storeSize metric.Int64ObservableGauge
}

// NewService creates a poller. Uses the global OTel meter for metrics.
func NewService(deps Dependencies, cfg Config) (*Service, error) {
	if deps.Client == nil || deps.Live == nil || deps.Display == nil {
		return nil, fmt.Errorf("poller: client, live store and display store are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.DefaultSize == nil {
		deps.DefaultSize = func() float64 { return 0 }
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}

	s := &Service{deps: deps, cfg: cfg}

	m := meter()
	var err error

	s.polls, err = m.Int64Counter("poller.polls",
		metric.WithDescription("Total successful page fetches"))
	if err != nil {
		return nil, fmt.Errorf("creating polls counter: %w", err)
	}
	s.failures, err = m.Int64Counter("poller.failures",
		metric.WithDescription("Total failed page fetches"))
	if err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}
	s.evictions, err = m.Int64Counter("poller.evictions",
		metric.WithDescription("Total entities evicted for staleness"))
	if err != nil {
		return nil, fmt.Errorf("creating evictions counter: %w", err)
	}
	s.storeSize, err = m.Int64ObservableGauge("poller.store.size",
		metric.WithDescription("Current number of live entities"))
	if err != nil {
		return nil, fmt.Errorf("creating store size gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(s.storeSize, int64(s.deps.Live.Len()))
		return nil
	}, s.storeSize)
	if err != nil {
		return nil, fmt.Errorf("registering store size callback: %w", err)
	}

	return s, nil
}

// Tick runs one poll cycle. Eviction always happens before the fetch, so an
// entity refreshed by the incoming page is never judged by its old timestamp.
// A failed fetch leaves the store and cursor untouched and clears Loaded.
func (s *Service) Tick(ctx context.Context) error {
	logger := s.deps.Logger

	cutoff := s.deps.Now().Add(-s.cfg.EvictionTimeout).UnixMilli()
	if evicted := s.deps.Live.EvictOlderThan(cutoff); len(evicted) > 0 {
		s.evictions.Add(ctx, int64(len(evicted)))
		logger.Debug("evicted stale entities", "count", len(evicted), "ids", evicted)
		if s.cfg.Eviction == store.FollowLive {
			s.deps.Display.Delete(evicted...)
		}
		s.forget(ctx, evicted)
	}

	s.mu.RLock()
	index := s.cursor.Index
	s.mu.RUnlock()

	start := s.deps.Now()
	page, err := s.deps.Client.FetchPage(ctx, index, s.cfg.PageSize)
	took := s.deps.Now().Sub(start)
	if err != nil {
		s.mu.Lock()
		s.loaded = false
		s.mu.Unlock()
		s.failures.Add(ctx, 1)
		logger.Warn("page fetch failed", "page", index, "error", err)
		return err
	}

	added := s.deps.Live.Merge(page.Items)
	size := s.deps.DefaultSize()
	for _, item := range page.Items {
		s.deps.Display.GetOrCreate(item.ID, size)
	}
	if len(added) > 0 {
		logger.Debug("new entities", "count", len(added), "ids", added)
	}

	s.mu.Lock()
	s.cursor.Advance(page.TotalPages)
	s.loaded = true
	s.mu.Unlock()
	s.polls.Add(ctx, 1)

	for _, sink := range s.deps.Sinks {
		if err := sink.RecordPage(ctx, page, took); err != nil {
			logger.Warn("page sink failed", "sink", fmt.Sprintf("%T", sink), "error", err)
		}
	}
	return nil
}

func (s *Service) forget(ctx context.Context, ids []string) {
	for _, sink := range s.deps.Sinks {
		f, ok := sink.(EvictionSink)
		if !ok {
			continue
		}
		if err := f.Forget(ctx, ids); err != nil {
			s.deps.Logger.Warn("eviction sink failed", "sink", fmt.Sprintf("%T", sink), "error", err)
		}
	}
}

// Start begins polling on the configured interval. The first tick runs immediately.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.task != nil && s.task.Running() {
		return
	}
	s.deps.Logger.Info("starting poller", "interval", s.cfg.Interval, "pageSize", s.cfg.PageSize)
	s.task = schedule.Every(ctx, s.cfg.Interval, func(ctx context.Context) {
		_ = s.Tick(ctx)
	}, schedule.Immediate())
}

// Stop halts polling. Safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	task := s.task
	s.mu.Unlock()
	if task == nil {
		return
	}
	task.Stop()
	<-task.Done()
}

// IsRunning returns whether the poll loop is running.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.task != nil && s.task.Running()
}

// Cursor returns the current page cursor.
func (s *Service) Cursor() core.PageCursor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

// Loaded reports whether the most recent fetch succeeded.
func (s *Service) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}
