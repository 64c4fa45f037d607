package geo

import (
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/roadrunner-sim/viewer/pkg/core"
)

// tileSize is the pixel width of the world at zoom 0 (vector-tile convention).
const tileSize = 512.0

// webMercatorCircumference is the EPSG:3857 world width in meters.
const webMercatorCircumference = 2 * math.Pi * 6378137.0

var (
	to3857 = wgs84.EPSG().Transform(4326, 3857)
	to4326 = wgs84.EPSG().Transform(3857, 4326)
)

// WebMercator converts a WGS84 position to EPSG:3857 meters.
func WebMercator(p core.GeoPoint) geom.XY {
	x, y, _ := to3857(p.Lon, p.Lat, 0)
	return geom.XY{X: x, Y: y}
}

// FromWebMercator converts EPSG:3857 meters back to a WGS84 position.
func FromWebMercator(xy geom.XY) core.GeoPoint {
	lon, lat, _ := to4326(xy.X, xy.Y, 0)
	return core.GeoPoint{Lat: lat, Lon: lon}
}

// Viewport mirrors the camera state of the rendering surface so positions can
// be projected to pixels without a round trip to the renderer.
type Viewport struct {
	Center  core.GeoPoint
	Zoom    float64
	Bearing float64 // degrees clockwise from north; this direction points up
	Width   float64
	Height  float64
}

// ProjectGeoToScreen implements Projector.
func (v Viewport) ProjectGeoToScreen(p core.GeoPoint) core.ScreenPoint {
	pt := WebMercator(p)
	c := WebMercator(v.Center)

	scale := tileSize * math.Exp2(v.Zoom) / webMercatorCircumference
	dx := (pt.X - c.X) * scale
	dy := -(pt.Y - c.Y) * scale

	if v.Bearing != 0 {
		sin, cos := math.Sincos(toRadians(v.Bearing))
		dx, dy = dx*cos+dy*sin, -dx*sin+dy*cos
	}

	return core.ScreenPoint{X: v.Width/2 + dx, Y: v.Height/2 + dy}
}

// Fit returns a north-up copy of v centered on b and zoomed so b fills the
// viewport minus padding pixels on each side. A degenerate box keeps the current zoom.
func (v Viewport) Fit(b core.Bounds, padding float64) Viewport {
	sw := WebMercator(core.GeoPoint{Lat: b.MinLat, Lon: b.MinLon})
	ne := WebMercator(core.GeoPoint{Lat: b.MaxLat, Lon: b.MaxLon})

	out := v
	out.Bearing = 0
	out.Center = FromWebMercator(geom.XY{X: (sw.X + ne.X) / 2, Y: (sw.Y + ne.Y) / 2})

	w := math.Max(v.Width-2*padding, 1)
	h := math.Max(v.Height-2*padding, 1)
	spanX := (ne.X - sw.X) * tileSize / webMercatorCircumference
	spanY := (ne.Y - sw.Y) * tileSize / webMercatorCircumference
	if spanX <= 0 && spanY <= 0 {
		return out
	}

	zoom := math.Inf(1)
	if spanX > 0 {
		zoom = math.Log2(w / spanX)
	}
	if spanY > 0 {
		zoom = math.Min(zoom, math.Log2(h/spanY))
	}
	out.Zoom = zoom
	return out
}
