package sqlitestorage

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadrunner-sim/viewer/internal/model"
	"github.com/roadrunner-sim/viewer/pkg/core"
)

func newBackend(t *testing.T, cfg Config) *Backend {
	t.Helper()
	if cfg.SessionID == nil {
		cfg.SessionID = func() string { return "sess-1" }
	}
	b := New(cfg, nil)
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func page(items ...core.EntityState) core.Page {
	return core.Page{Items: items}
}

func snap(id string, ms int64, lat float64) core.EntityState {
	return core.EntityState{
		ID:             id,
		MsEpochLastRun: ms,
		Position:       core.GeoPoint{Lat: lat, Lon: -97.3195},
		DegBearing:     90,
	}
}

func TestRecordPage_QueuesUntilFlush(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, Config{TrailLength: 10})

	require.NoError(t, b.RecordPage(ctx, page(snap("a", 1000, 1), snap("b", 1000, 2)), 0))
	assert.Equal(t, 2, b.Pending())

	n, err := b.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, b.Pending())
}

func TestRecordPage_SkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, Config{TrailLength: 10})

	require.NoError(t, b.RecordPage(ctx, page(snap("a", 1000, 1)), 0))
	require.NoError(t, b.RecordPage(ctx, page(snap("a", 1000, 1)), 0))
	require.NoError(t, b.RecordPage(ctx, page(snap("a", 900, 1)), 0))

	assert.Equal(t, 1, b.Pending())
}

func TestTrail_TrimmedOldestFirst(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, Config{TrailLength: 3})

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, b.RecordPage(ctx, page(snap("a", i*1000, float64(i))), 0))
		_, err := b.Flush(ctx)
		require.NoError(t, err)
	}

	trail, err := b.Trail(ctx, "a")
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, 3.0, trail[0].Position.Lat)
	assert.Equal(t, 5.0, trail[2].Position.Lat)
	assert.Equal(t, -97.3195, trail[0].Position.Lon)
	assert.Equal(t, time.UnixMilli(5000).UTC(), trail[2].Time.UTC())
}

func TestTrail_ReadsPendingRows(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, Config{TrailLength: 10})

	require.NoError(t, b.RecordPage(ctx, page(snap("a", 1000, 1)), 0))

	trail, err := b.Trail(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, trail, 1)
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, Config{TrailLength: 10})

	require.NoError(t, b.RecordPage(ctx, page(snap("a", 1000, 1), snap("b", 1000, 2)), 0))
	require.NoError(t, b.Forget(ctx, []string{"a"}))
	require.NoError(t, b.Forget(ctx, nil))

	trail, err := b.Trail(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, trail)

	trail, err = b.Trail(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, trail, 1)

	// a forgotten entity that reappears starts a new trail
	require.NoError(t, b.RecordPage(ctx, page(snap("a", 1000, 1)), 0))
	assert.Equal(t, 1, b.Pending())
}

func TestRoutes_Upsert(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, Config{})

	_, ok, err := b.Route(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	first := core.Route{EntityID: "a", Steps: [][]core.GeoPoint{{{Lat: 1, Lon: 2}, {Lat: 1, Lon: 3}}}}
	second := core.Route{EntityID: "a", Steps: [][]core.GeoPoint{{{Lat: 5, Lon: 6}, {Lat: 5, Lon: 7}}}}
	require.NoError(t, b.RecordRoute(ctx, first))
	require.NoError(t, b.RecordRoute(ctx, second))

	got, ok, err := b.Route(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, second, got)
}

func TestRecordStatus(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, Config{})

	require.NoError(t, b.RecordStatus(ctx, model.StatusRecord{SessionID: "sess-1", Entities: 4, Loaded: true}))

	var count int64
	require.NoError(t, b.db.Model(&model.StatusRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestFlushLoop(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, Config{TrailLength: 10, FlushInterval: 10 * time.Millisecond})

	require.NoError(t, b.RecordPage(ctx, page(snap("a", 1000, 1)), 0))

	assert.Eventually(t, func() bool { return b.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRecordPage_InvalidPositionKeepsOthers(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, Config{TrailLength: 10})

	err := b.RecordPage(ctx, page(snap("bad", 1000, math.NaN()), snap("ok", 1000, 2)), 0)

	assert.ErrorContains(t, err, "bad")
	assert.Equal(t, 1, b.Pending())
}
