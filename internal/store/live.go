// Package store holds the viewer's two keyed containers: the latest
// telemetry snapshot per entity, and the UI-local display state per entity.
// The two have independent lifecycles.
package store

import (
	"sync"

	"github.com/roadrunner-sim/viewer/pkg/core"
)

// LiveEntityStore keeps the latest snapshot per entity ID.
// Enumeration follows first-seen order, which is also the tie-break order for hit testing.
type LiveEntityStore struct {
	mu       sync.RWMutex
	entities map[string]core.EntityState
	order    []string
}

// NewLiveEntityStore creates an empty store.
func NewLiveEntityStore() *LiveEntityStore {
	return &LiveEntityStore{
		entities: make(map[string]core.EntityState),
	}
}

// Upsert replaces or inserts the snapshot for state.ID.
func (s *LiveEntityStore) Upsert(state core.EntityState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(state)
}

func (s *LiveEntityStore) upsertLocked(state core.EntityState) bool {
	_, exists := s.entities[state.ID]
	if !exists {
		s.order = append(s.order, state.ID)
	}
	s.entities[state.ID] = state
	return !exists
}

// Merge applies one page of snapshots. Only the IDs in states are touched,
// and a snapshot older than the one already stored for its ID is ignored.
// It returns the IDs seen for the first time.
func (s *LiveEntityStore) Merge(states []core.EntityState) (added []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range states {
		if cur, ok := s.entities[st.ID]; ok && st.MsEpochLastRun < cur.MsEpochLastRun {
			continue
		}
		if s.upsertLocked(st) {
			added = append(added, st.ID)
		}
	}
	return added
}

// EvictOlderThan removes every entity whose last update is strictly before
// cutoffEpochMs and returns the removed IDs.
func (s *LiveEntityStore) EvictOlderThan(cutoffEpochMs int64) (evicted []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	for _, id := range s.order {
		if s.entities[id].MsEpochLastRun < cutoffEpochMs {
			delete(s.entities, id)
			evicted = append(evicted, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return evicted
}

// Get returns the snapshot for id.
func (s *LiveEntityStore) Get(id string) (core.EntityState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.entities[id]
	return st, ok
}

// All returns every snapshot in first-seen order.
func (s *LiveEntityStore) All() []core.EntityState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.EntityState, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entities[id])
	}
	return out
}

// Len returns the number of live entities.
func (s *LiveEntityStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// Counts returns how many entities are active (not position-limited) and the total.
func (s *LiveEntityStore) Counts() (active, total int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.entities {
		if st.Active() {
			active++
		}
	}
	return active, len(s.entities)
}
