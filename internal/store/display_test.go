package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadrunner-sim/viewer/pkg/core"
)

func TestParseEvictionPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    EvictionPolicy
		wantErr bool
	}{
		{"", RetainDisplay, false},
		{"retain", RetainDisplay, false},
		{"follow", FollowLive, false},
		{"forget", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEvictionPolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDisplayStateStore_GetOrCreate(t *testing.T) {
	s := NewDisplayStateStore()

	d := s.GetOrCreate("A", 12)
	assert.Equal(t, core.DisplayState{Size: 12}, d)

	s.SetPopupVisible("A", true)
	d = s.GetOrCreate("A", 99)
	assert.Equal(t, 12.0, d.Size, "existing entry keeps its size")
	assert.True(t, d.PopupVisible)
	assert.Equal(t, 1, s.Len())
}

func TestDisplayStateStore_SettersOnUnknownID(t *testing.T) {
	s := NewDisplayStateStore()

	assert.False(t, s.SetPopupVisible("nope", true))
	assert.False(t, s.SetRouteVisible("nope", true))
	assert.False(t, s.SetSize("nope", 3))
	_, ok := s.Toggle("nope")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestDisplayStateStore_Setters(t *testing.T) {
	s := NewDisplayStateStore()
	s.GetOrCreate("A", 5)

	require.True(t, s.SetRouteVisible("A", true))
	require.True(t, s.SetSize("A", 17))

	got, ok := s.Get("A")
	require.True(t, ok)
	assert.Equal(t, core.DisplayState{Size: 17, RouteVisible: true}, got)
}

func TestDisplayStateStore_ToggleRouteFollowsPopup(t *testing.T) {
	s := NewDisplayStateStore()
	s.GetOrCreate("A", 5)

	d, ok := s.Toggle("A")
	require.True(t, ok)
	assert.True(t, d.PopupVisible)
	assert.True(t, d.RouteVisible)

	d, _ = s.Toggle("A")
	assert.False(t, d.PopupVisible)
	assert.False(t, d.RouteVisible)
}

func TestDisplayStateStore_SetAllVisible(t *testing.T) {
	s := NewDisplayStateStore()
	for _, id := range []string{"A", "B", "C"} {
		s.GetOrCreate(id, 5)
	}

	s.SetAllVisible(true)
	for id, d := range s.Snapshot() {
		assert.True(t, d.RouteVisible, id)
		assert.False(t, d.PopupVisible, id)
	}

	s.SetAllVisible(false)
	for id, d := range s.Snapshot() {
		assert.False(t, d.RouteVisible, id)
	}
}

func TestDisplayStateStore_SetAllSizes(t *testing.T) {
	s := NewDisplayStateStore()
	s.GetOrCreate("A", 5)
	s.GetOrCreate("B", 9)

	s.SetAllSizes(21)

	for id, d := range s.Snapshot() {
		assert.Equal(t, 21.0, d.Size, id)
	}
}

func TestDisplayStateStore_Delete(t *testing.T) {
	s := NewDisplayStateStore()
	s.GetOrCreate("A", 5)
	s.GetOrCreate("B", 5)

	s.Delete("A", "missing")

	_, ok := s.Get("A")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestDisplayStateStore_GetReturnsCopy(t *testing.T) {
	s := NewDisplayStateStore()
	s.GetOrCreate("A", 5)

	d, _ := s.Get("A")
	d.Size = 100

	again, _ := s.Get("A")
	assert.Equal(t, 5.0, again.Size)
}
