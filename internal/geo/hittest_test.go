package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roadrunner-sim/viewer/pkg/core"
)

// identity treats lon/lat directly as x/y pixels.
var identity = ProjectorFunc(func(p core.GeoPoint) core.ScreenPoint {
	return core.ScreenPoint{X: p.Lon, Y: p.Lat}
})

func entityAt(id string, x, y float64) core.EntityState {
	return core.EntityState{ID: id, Position: core.GeoPoint{Lat: y, Lon: x}}
}

func TestNearestEntity_ExactHit(t *testing.T) {
	entities := []core.EntityState{
		entityAt("a", 10, 10),
		entityAt("b", 200, 200),
	}

	got, ok := NearestEntity(core.ScreenPoint{X: 200, Y: 200}, entities, identity, DefaultHitDistance)
	assert.True(t, ok)
	assert.Equal(t, "b", got.ID)
}

func TestNearestEntity_PicksClosest(t *testing.T) {
	entities := []core.EntityState{
		entityAt("far", 60, 0),
		entityAt("near", 5, 5),
		entityAt("mid", 30, 0),
	}

	got, ok := NearestEntity(core.ScreenPoint{}, entities, identity, DefaultHitDistance)
	assert.True(t, ok)
	assert.Equal(t, "near", got.ID)
}

func TestNearestEntity_NoneInRange(t *testing.T) {
	entities := []core.EntityState{
		entityAt("a", 500, 500),
		entityAt("b", 100, 0), // exactly at the limit is not a hit
	}

	_, ok := NearestEntity(core.ScreenPoint{}, entities, identity, DefaultHitDistance)
	assert.False(t, ok)
}

func TestNearestEntity_Empty(t *testing.T) {
	_, ok := NearestEntity(core.ScreenPoint{}, nil, identity, DefaultHitDistance)
	assert.False(t, ok)
}

func TestNearestEntity_TieGoesToFirst(t *testing.T) {
	entities := []core.EntityState{
		entityAt("first", 3, 4),
		entityAt("second", -3, -4),
	}

	got, ok := NearestEntity(core.ScreenPoint{}, entities, identity, DefaultHitDistance)
	assert.True(t, ok)
	assert.Equal(t, "first", got.ID)
}

func TestNearestEntity_WithViewport(t *testing.T) {
	vp := Viewport{Center: core.GeoPoint{Lat: 32.75, Lon: -97.5}, Zoom: 14, Width: 800, Height: 600}
	entities := []core.EntityState{
		{ID: "off", Position: core.GeoPoint{Lat: 32.80, Lon: -97.40}},
		{ID: "center", Position: vp.Center},
	}

	got, ok := NearestEntity(core.ScreenPoint{X: 400, Y: 300}, entities, vp, DefaultHitDistance)
	assert.True(t, ok)
	assert.Equal(t, "center", got.ID)
}
