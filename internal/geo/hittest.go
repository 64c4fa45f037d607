package geo

import (
	"math"

	"github.com/roadrunner-sim/viewer/pkg/core"
)

// DefaultHitDistance is the click radius in pixels used when none is configured.
const DefaultHitDistance = 100.0

// Projector maps a geographic position onto the rendering surface.
type Projector interface {
	ProjectGeoToScreen(p core.GeoPoint) core.ScreenPoint
}

// ProjectorFunc adapts a plain function to Projector.
type ProjectorFunc func(p core.GeoPoint) core.ScreenPoint

// ProjectGeoToScreen calls f(p).
func (f ProjectorFunc) ProjectGeoToScreen(p core.GeoPoint) core.ScreenPoint {
	return f(p)
}

// NearestEntity returns the entity whose projected position is closest to
// click, provided that distance is below maxPixelDistance. Ties go to the
// entity that appears first in entities.
func NearestEntity(
	click core.ScreenPoint,
	entities []core.EntityState,
	project Projector,
	maxPixelDistance float64,
) (core.EntityState, bool) {
	bestIdx := -1
	bestDist := math.Inf(1)

	for i, e := range entities {
		sp := project.ProjectGeoToScreen(e.Position)
		dist := math.Hypot(sp.X-click.X, sp.Y-click.Y)
		if dist < bestDist {
			bestDist = dist
			bestIdx = i
		}
	}

	if bestIdx < 0 || bestDist >= maxPixelDistance {
		return core.EntityState{}, false
	}
	return entities[bestIdx], true
}
