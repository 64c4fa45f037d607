// Package sqlitestorage records session trails and routes in an in-memory
// SQLite database. Trail points are queued and written in batches on a timer.
package sqlitestorage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/roadrunner-sim/viewer/internal/database"
	"github.com/roadrunner-sim/viewer/internal/model"
	"github.com/roadrunner-sim/viewer/internal/queue"
	"github.com/roadrunner-sim/viewer/internal/schedule"
	"github.com/roadrunner-sim/viewer/pkg/core"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	TrailLength   int
	FlushInterval time.Duration
	SessionID     func() string
}

// Backend writes to a private in-memory database opened by Init.
type Backend struct {
	cfg    Config
	logger *slog.Logger

	db      *gorm.DB
	pending *queue.Queue[model.TrailPoint]
	task    *schedule.Task

	// flushMu serialises flushes so trimming sees every batch.
	flushMu sync.Mutex
	mu      sync.Mutex
	newest  map[string]time.Time
}

// New creates a backend. Call Init before use.
func New(cfg Config, logger *slog.Logger) *Backend {
	if cfg.TrailLength <= 0 {
		cfg.TrailLength = 1
	}
	if cfg.SessionID == nil {
		cfg.SessionID = func() string { return "" }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		cfg:     cfg,
		logger:  logger,
		pending: queue.New[model.TrailPoint](),
		newest:  make(map[string]time.Time),
	}
}

// Init opens the database and starts the flush loop.
func (b *Backend) Init() error {
	db, err := database.OpenSession()
	if err != nil {
		return fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	b.db = db

	if b.cfg.FlushInterval > 0 {
		b.task = schedule.Every(context.Background(), b.cfg.FlushInterval, func(ctx context.Context) {
			start := time.Now()
			n, err := b.Flush(ctx)
			if err != nil {
				b.logger.Error("flushing trail points", "error", err)
				return
			}
			if n > 0 {
				b.logger.Debug("flushed trail points", "count", n, "took", time.Since(start))
			}
		})
	}
	return nil
}

// Close stops the flush loop, writes what is still queued and drops the database.
func (b *Backend) Close() error {
	if b.task != nil {
		b.task.Stop()
		<-b.task.Done()
	}
	if b.db == nil {
		return nil
	}
	if _, err := b.Flush(context.Background()); err != nil {
		b.logger.Warn("final flush failed", "error", err)
	}
	return database.Close(b.db)
}

// RecordPage queues one row per item newer than the last one queued for its entity.
func (b *Backend) RecordPage(_ context.Context, page core.Page, _ time.Duration) error {
	sessionID := b.cfg.SessionID()

	var errs []error
	b.mu.Lock()
	rows := make([]model.TrailPoint, 0, len(page.Items))
	for _, item := range page.Items {
		t := item.LastUpdate()
		if last, ok := b.newest[item.ID]; ok && !t.After(last) {
			continue
		}
		row, err := model.NewTrailPoint(sessionID, item)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		b.newest[item.ID] = t
		rows = append(rows, row)
	}
	b.mu.Unlock()

	b.pending.Push(rows...)
	return errors.Join(errs...)
}

// Flush writes queued rows and trims each touched trail to TrailLength.
// It returns how many rows were written.
func (b *Backend) Flush(ctx context.Context) (int, error) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	rows := b.pending.Drain()
	if len(rows) == 0 {
		return 0, nil
	}

	db := b.db.WithContext(ctx)
	if err := db.CreateInBatches(rows, 500).Error; err != nil {
		b.pending.Requeue(rows...)
		return 0, fmt.Errorf("writing trail points: %w", err)
	}

	touched := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		touched[r.EntityID] = struct{}{}
	}
	for id := range touched {
		keep := db.Model(&model.TrailPoint{}).
			Select("id").
			Where("entity_id = ?", id).
			Order("time DESC, id DESC").
			Limit(b.cfg.TrailLength)
		err := db.Where("entity_id = ? AND id NOT IN (?)", id, keep).Delete(&model.TrailPoint{}).Error
		if err != nil {
			return len(rows), fmt.Errorf("trimming trail of %s: %w", id, err)
		}
	}
	return len(rows), nil
}

// Forget deletes the trails of ids, including rows not yet flushed.
func (b *Backend) Forget(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := b.Flush(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	for _, id := range ids {
		delete(b.newest, id)
	}
	b.mu.Unlock()

	return b.db.WithContext(ctx).Where("entity_id IN ?", ids).Delete(&model.TrailPoint{}).Error
}

// Trail flushes pending rows, then returns the recorded positions of id, oldest first.
func (b *Backend) Trail(ctx context.Context, id string) ([]core.TrailPoint, error) {
	if _, err := b.Flush(ctx); err != nil {
		return nil, err
	}

	var rows []model.TrailPoint
	err := b.db.WithContext(ctx).
		Where("entity_id = ?", id).
		Order("time ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("reading trail of %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	out := make([]core.TrailPoint, len(rows))
	for i, r := range rows {
		out[i] = r.ToCore()
	}
	return out, nil
}

// RecordRoute inserts or replaces the route of route.EntityID.
func (b *Backend) RecordRoute(ctx context.Context, route core.Route) error {
	row, err := model.NewRouteRecord(b.cfg.SessionID(), route, time.Now())
	if err != nil {
		return err
	}
	return b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (b *Backend) Route(ctx context.Context, id string) (core.Route, bool, error) {
	var row model.RouteRecord
	err := b.db.WithContext(ctx).Where("entity_id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.Route{}, false, nil
	}
	if err != nil {
		return core.Route{}, false, fmt.Errorf("reading route of %s: %w", id, err)
	}
	r, err := row.ToCore()
	if err != nil {
		return core.Route{}, false, err
	}
	return r, true, nil
}

// RecordStatus stores one status sample.
func (b *Backend) RecordStatus(ctx context.Context, rec model.StatusRecord) error {
	return b.db.WithContext(ctx).Create(&rec).Error
}

// Pending returns how many trail rows wait for the next flush.
func (b *Backend) Pending() int {
	return b.pending.Len()
}
