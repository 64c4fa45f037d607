package camera

import (
	"github.com/roadrunner-sim/viewer/internal/geo"
	"github.com/roadrunner-sim/viewer/pkg/core"
)

// View is the framing commanded to the renderer for one tick.
type View struct {
	Bearing float64
	Center  core.GeoPoint
}

// LookaheadRange scales the forward look-ahead distance with the viewport height.
func LookaheadRange(baseRange, viewportHeight, referenceHeight float64) float64 {
	if referenceHeight <= 0 {
		return baseRange
	}
	return baseRange * (viewportHeight / referenceHeight)
}

// ChaseView frames e from behind: the camera looks along the entity's bearing
// plus offset, centered rangeMeters ahead of it.
func ChaseView(e core.EntityState, offsetDeg, rangeMeters float64) View {
	bearing := e.DegBearing + offsetDeg
	lat, lon := geo.DestinationPoint(e.Position.Lat, e.Position.Lon, bearing, rangeMeters)
	return View{
		Bearing: geo.NormalizeBearing(bearing),
		Center:  core.GeoPoint{Lat: lat, Lon: lon},
	}
}
