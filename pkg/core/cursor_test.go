package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageCursor_WrapsAfterTotalPages(t *testing.T) {
	c := PageCursor{}
	for i := 0; i < 4; i++ {
		c.Advance(4)
	}
	assert.Equal(t, 0, c.Index)
	assert.Equal(t, 4, c.TotalPages)
}

func TestPageCursor_Sequence(t *testing.T) {
	c := PageCursor{}
	var got []int
	for i := 0; i < 7; i++ {
		c.Advance(3)
		got = append(got, c.Index)
	}
	assert.Equal(t, []int{1, 2, 0, 1, 2, 0, 1}, got)
}

func TestPageCursor_ZeroPages(t *testing.T) {
	c := PageCursor{}
	c.Advance(0)
	assert.Equal(t, 0, c.Index)
	c.Advance(-3)
	assert.Equal(t, 0, c.Index)
	assert.Equal(t, 0, c.TotalPages)
}

func TestPageCursor_TotalShrinks(t *testing.T) {
	c := PageCursor{Index: 5, TotalPages: 8}
	c.Advance(3)
	assert.Equal(t, 0, c.Index)

	c = PageCursor{Index: 1, TotalPages: 8}
	c.Advance(3)
	assert.Equal(t, 2, c.Index)
}

func TestBoundsOf(t *testing.T) {
	_, ok := BoundsOf(nil)
	assert.False(t, ok)

	b, ok := BoundsOf([]GeoPoint{
		{Lat: 32.7, Lon: -97.3},
		{Lat: 32.9, Lon: -97.5},
		{Lat: 32.8, Lon: -97.1},
	})
	assert.True(t, ok)
	assert.Equal(t, Bounds{MinLat: 32.7, MinLon: -97.5, MaxLat: 32.9, MaxLon: -97.1}, b)
}

func TestEntityState_Active(t *testing.T) {
	assert.True(t, EntityState{}.Active())
	assert.False(t, EntityState{PositionLimited: true}.Active())
}

func TestRoute_Empty(t *testing.T) {
	assert.True(t, Route{}.Empty())
	assert.True(t, Route{Steps: [][]GeoPoint{{}, {}}}.Empty())
	assert.False(t, Route{Steps: [][]GeoPoint{{}, {{Lat: 1, Lon: 2}}}}.Empty())
}
