package store

import (
	"fmt"
	"sync"

	"github.com/roadrunner-sim/viewer/pkg/core"
)

// EvictionPolicy decides what happens to a display entry when its live entity is evicted.
type EvictionPolicy string

const (
	// RetainDisplay keeps display entries for the whole session, so a
	// reappearing entity keeps its popup/route flags.
	RetainDisplay EvictionPolicy = "retain"
	// FollowLive drops the display entry together with its live entity.
	FollowLive EvictionPolicy = "follow"
)

// ParseEvictionPolicy parses a configuration value. Empty means RetainDisplay.
func ParseEvictionPolicy(s string) (EvictionPolicy, error) {
	switch EvictionPolicy(s) {
	case "", RetainDisplay:
		return RetainDisplay, nil
	case FollowLive:
		return FollowLive, nil
	default:
		return "", fmt.Errorf("unknown display eviction policy: %q", s)
	}
}

// DisplayStateStore keeps the ephemeral UI state per entity ID.
// Entries are created lazily and mutated in place through the setters.
type DisplayStateStore struct {
	mu      sync.RWMutex
	entries map[string]*core.DisplayState
}

// NewDisplayStateStore creates an empty store.
func NewDisplayStateStore() *DisplayStateStore {
	return &DisplayStateStore{
		entries: make(map[string]*core.DisplayState),
	}
}

// GetOrCreate returns the entry for id, creating a hidden one of defaultSize if needed.
func (s *DisplayStateStore) GetOrCreate(id string, defaultSize float64) core.DisplayState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.entries[id]; ok {
		return *d
	}
	d := &core.DisplayState{Size: defaultSize}
	s.entries[id] = d
	return *d
}

// Get returns the entry for id.
func (s *DisplayStateStore) Get(id string) (core.DisplayState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.entries[id]; ok {
		return *d, true
	}
	return core.DisplayState{}, false
}

func (s *DisplayStateStore) update(id string, fn func(d *core.DisplayState)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.entries[id]
	if !ok {
		return false
	}
	fn(d)
	return true
}

// SetPopupVisible sets the popup flag. Returns false if id has no entry.
func (s *DisplayStateStore) SetPopupVisible(id string, visible bool) bool {
	return s.update(id, func(d *core.DisplayState) { d.PopupVisible = visible })
}

// SetRouteVisible sets the route flag. Returns false if id has no entry.
func (s *DisplayStateStore) SetRouteVisible(id string, visible bool) bool {
	return s.update(id, func(d *core.DisplayState) { d.RouteVisible = visible })
}

// SetSize sets the rendered size. Returns false if id has no entry.
func (s *DisplayStateStore) SetSize(id string, size float64) bool {
	return s.update(id, func(d *core.DisplayState) { d.Size = size })
}

// Toggle flips the popup flag and makes the route flag follow it.
// It returns the updated entry.
func (s *DisplayStateStore) Toggle(id string) (core.DisplayState, bool) {
	var out core.DisplayState
	ok := s.update(id, func(d *core.DisplayState) {
		d.PopupVisible = !d.PopupVisible
		d.RouteVisible = d.PopupVisible
		out = *d
	})
	return out, ok
}

// SetAllVisible sets the route flag of every entry (show/hide all routes).
func (s *DisplayStateStore) SetAllVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.entries {
		d.RouteVisible = visible
	}
}

// SetAllSizes sets the rendered size of every entry.
func (s *DisplayStateStore) SetAllSizes(size float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.entries {
		d.Size = size
	}
}

// Delete removes the entries for ids.
func (s *DisplayStateStore) Delete(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.entries, id)
	}
}

// Len returns the number of entries.
func (s *DisplayStateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns a copy of every entry keyed by ID.
func (s *DisplayStateStore) Snapshot() map[string]core.DisplayState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]core.DisplayState, len(s.entries))
	for id, d := range s.entries {
		out[id] = *d
	}
	return out
}
