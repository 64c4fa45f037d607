// Package monitor periodically samples the viewer's state, logs it and hands
// it to status sinks.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roadrunner-sim/viewer/internal/model"
	"github.com/roadrunner-sim/viewer/internal/schedule"
	"github.com/roadrunner-sim/viewer/internal/session"
	"github.com/roadrunner-sim/viewer/internal/store"
	"github.com/roadrunner-sim/viewer/pkg/core"
)

// PollState exposes the poller's progress.
type PollState interface {
	Cursor() core.PageCursor
	Loaded() bool
}

// StatusSink receives every status sample.
type StatusSink interface {
	RecordStatus(ctx context.Context, rec model.StatusRecord) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Live    *store.LiveEntityStore
	Display *store.DisplayStateStore
	Poll    PollState // optional
	Session *session.Context
	Sinks   []StatusSink
	Logger  *slog.Logger
	Now     func() time.Time
}

// Service manages status monitoring
type Service struct {
	deps     Dependencies
	interval time.Duration

	mu   sync.Mutex
	task *schedule.Task
}

// NewService creates a new monitor service
func NewService(deps Dependencies, interval time.Duration) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{deps: deps, interval: interval}
}

// Status returns the current viewer status.
func (s *Service) Status() model.StatusRecord {
	rec := model.StatusRecord{Time: s.deps.Now()}
	if s.deps.Session != nil {
		rec.SessionID = s.deps.Session.ID()
		rec.Mode = string(s.deps.Session.Mode())
	}
	if s.deps.Live != nil {
		rec.Active, rec.Entities = s.deps.Live.Counts()
	}
	if s.deps.Display != nil {
		rec.DisplayEntries = s.deps.Display.Len()
	}
	if s.deps.Poll != nil {
		c := s.deps.Poll.Cursor()
		rec.PageIndex = c.Index
		rec.TotalPages = c.TotalPages
		rec.Loaded = s.deps.Poll.Loaded()
	}
	return rec
}

// Sample takes one status sample, logs it and writes it to every sink.
func (s *Service) Sample(ctx context.Context) model.StatusRecord {
	rec := s.Status()
	s.deps.Logger.Debug("viewer status",
		"entities", rec.Entities,
		"active", rec.Active,
		"displayEntries", rec.DisplayEntries,
		"page", rec.PageIndex,
		"totalPages", rec.TotalPages,
		"loaded", rec.Loaded,
	)
	for _, sink := range s.deps.Sinks {
		if err := sink.RecordStatus(ctx, rec); err != nil {
			s.deps.Logger.Error("Error writing status", "sink", fmt.Sprintf("%T", sink), "error", err)
		}
	}
	return rec
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task != nil && s.task.Running()
}

// Start starts the status monitor goroutine
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.task != nil && s.task.Running() {
		return
	}
	s.deps.Logger.Debug("Starting status monitor", "interval", s.interval)
	s.task = schedule.Every(ctx, s.interval, func(ctx context.Context) {
		s.Sample(ctx)
	})
}

// Stop stops the status monitor and waits for an in-flight sample to finish.
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
