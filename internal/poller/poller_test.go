package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadrunner-sim/viewer/internal/store"
	"github.com/roadrunner-sim/viewer/pkg/core"
)

type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[int]core.Page
	err      error
	requests []int
}

func (f *fakeFetcher) FetchPage(_ context.Context, page, _ int) (core.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, page)
	if f.err != nil {
		return core.Page{}, f.err
	}
	return f.pages[page], nil
}

func (f *fakeFetcher) Requests() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.requests...)
}

type recordingSink struct {
	pages     []core.Page
	forgotten []string
	err       error
}

func (r *recordingSink) RecordPage(_ context.Context, page core.Page, _ time.Duration) error {
	r.pages = append(r.pages, page)
	return r.err
}

func (r *recordingSink) Forget(_ context.Context, ids []string) error {
	r.forgotten = append(r.forgotten, ids...)
	return nil
}

func entity(id string, ms int64) core.EntityState {
	return core.EntityState{ID: id, MsEpochLastRun: ms}
}

type harness struct {
	svc     *Service
	fetcher *fakeFetcher
	live    *store.LiveEntityStore
	display *store.DisplayStateStore
	sink    *recordingSink
	now     time.Time
}

func newHarness(t *testing.T, policy store.EvictionPolicy) *harness {
	t.Helper()
	h := &harness{
		fetcher: &fakeFetcher{pages: map[int]core.Page{}},
		live:    store.NewLiveEntityStore(),
		display: store.NewDisplayStateStore(),
		sink:    &recordingSink{},
		now:     time.UnixMilli(40000),
	}
	svc, err := NewService(Dependencies{
		Client:      h.fetcher,
		Live:        h.live,
		Display:     h.display,
		Sinks:       []PageSink{h.sink},
		DefaultSize: func() float64 { return 7 },
		Now:         func() time.Time { return h.now },
	}, Config{
		Interval:        time.Millisecond,
		PageSize:        10,
		EvictionTimeout: 30 * time.Second,
		Eviction:        policy,
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	_, err := NewService(Dependencies{}, Config{})
	assert.Error(t, err)
}

func TestTick_EvictsBeforeMerging(t *testing.T) {
	h := newHarness(t, store.RetainDisplay)
	h.live.Merge([]core.EntityState{entity("A", 9000), entity("B", 15000)})
	h.display.GetOrCreate("A", 5)
	h.display.GetOrCreate("B", 5)
	h.fetcher.pages[0] = core.Page{Items: []core.EntityState{entity("C", 39000)}, TotalPages: 1}

	require.NoError(t, h.svc.Tick(context.Background()))

	_, okA := h.live.Get("A")
	_, okB := h.live.Get("B")
	_, okC := h.live.Get("C")
	assert.False(t, okA)
	assert.True(t, okB)
	assert.True(t, okC)

	// Display entries outlive their live entity under the retain policy.
	_, okA = h.display.Get("A")
	assert.True(t, okA)
	d, okC := h.display.Get("C")
	require.True(t, okC)
	assert.Equal(t, 7.0, d.Size)

	assert.Equal(t, []string{"A"}, h.sink.forgotten)
}

func TestTick_RefreshedEntityIsNotEvicted(t *testing.T) {
	h := newHarness(t, store.RetainDisplay)
	h.live.Merge([]core.EntityState{entity("A", 10000)})
	h.now = time.UnixMilli(40001)
	h.fetcher.pages[0] = core.Page{Items: []core.EntityState{entity("A", 40000)}, TotalPages: 1}

	require.NoError(t, h.svc.Tick(context.Background()))

	got, ok := h.live.Get("A")
	require.True(t, ok)
	assert.Equal(t, int64(40000), got.MsEpochLastRun)
}

func TestTick_FollowPolicyDropsDisplay(t *testing.T) {
	h := newHarness(t, store.FollowLive)
	h.live.Merge([]core.EntityState{entity("A", 9000)})
	h.display.GetOrCreate("A", 5)
	h.fetcher.pages[0] = core.Page{TotalPages: 1}

	require.NoError(t, h.svc.Tick(context.Background()))

	_, ok := h.display.Get("A")
	assert.False(t, ok)
}

func TestTick_CursorAdvancesAndWraps(t *testing.T) {
	h := newHarness(t, store.RetainDisplay)
	for i := 0; i < 3; i++ {
		h.fetcher.pages[i] = core.Page{TotalPages: 3}
	}

	for i := 0; i < 4; i++ {
		require.NoError(t, h.svc.Tick(context.Background()))
	}

	assert.Equal(t, []int{0, 1, 2, 0}, h.fetcher.Requests())
	assert.Equal(t, core.PageCursor{Index: 1, TotalPages: 3}, h.svc.Cursor())
}

func TestTick_CursorWrapsWhenTotalShrinks(t *testing.T) {
	h := newHarness(t, store.RetainDisplay)
	h.fetcher.pages[0] = core.Page{TotalPages: 5}
	h.fetcher.pages[1] = core.Page{TotalPages: 5}
	h.fetcher.pages[2] = core.Page{TotalPages: 5}
	h.fetcher.pages[3] = core.Page{TotalPages: 2}

	for i := 0; i < 5; i++ {
		require.NoError(t, h.svc.Tick(context.Background()))
	}

	assert.Equal(t, []int{0, 1, 2, 3, 0}, h.fetcher.Requests())
}

func TestTick_EmptySourceStaysOnPageZero(t *testing.T) {
	h := newHarness(t, store.RetainDisplay)
	h.fetcher.pages[0] = core.Page{TotalPages: 0}

	require.NoError(t, h.svc.Tick(context.Background()))
	require.NoError(t, h.svc.Tick(context.Background()))

	assert.Equal(t, []int{0, 0}, h.fetcher.Requests())
	assert.True(t, h.svc.Loaded())
}

func TestTick_FailureLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t, store.RetainDisplay)
	h.fetcher.pages[0] = core.Page{Items: []core.EntityState{entity("A", 39000)}, TotalPages: 2}
	require.NoError(t, h.svc.Tick(context.Background()))
	require.True(t, h.svc.Loaded())

	h.fetcher.err = errors.New("connection refused")
	err := h.svc.Tick(context.Background())

	assert.Error(t, err)
	assert.False(t, h.svc.Loaded())
	assert.Equal(t, core.PageCursor{Index: 1, TotalPages: 2}, h.svc.Cursor())
	assert.Equal(t, 1, h.live.Len())
	assert.Len(t, h.sink.pages, 1)
}

func TestTick_SinkErrorDoesNotFailTick(t *testing.T) {
	h := newHarness(t, store.RetainDisplay)
	h.sink.err = errors.New("disk full")
	h.fetcher.pages[0] = core.Page{Items: []core.EntityState{entity("A", 39000)}, TotalPages: 1}

	assert.NoError(t, h.svc.Tick(context.Background()))
	assert.True(t, h.svc.Loaded())
}

func TestTick_EveryLiveIDHasDisplay(t *testing.T) {
	h := newHarness(t, store.RetainDisplay)
	h.fetcher.pages[0] = core.Page{
		Items:      []core.EntityState{entity("A", 39000), entity("B", 39000), entity("C", 39000)},
		TotalPages: 1,
	}

	require.NoError(t, h.svc.Tick(context.Background()))

	for _, e := range h.live.All() {
		_, ok := h.display.Get(e.ID)
		assert.True(t, ok, e.ID)
	}
}

func TestStartStop(t *testing.T) {
	h := newHarness(t, store.RetainDisplay)
	h.fetcher.pages[0] = core.Page{Items: []core.EntityState{entity("A", 39000)}, TotalPages: 1}

	h.svc.Start(context.Background())
	require.Eventually(t, func() bool { return len(h.fetcher.Requests()) >= 3 }, time.Second, time.Millisecond)
	assert.True(t, h.svc.IsRunning())

	h.svc.Stop()
	assert.False(t, h.svc.IsRunning())
	n := len(h.fetcher.Requests())
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, n, len(h.fetcher.Requests()))

	h.svc.Stop()
}
