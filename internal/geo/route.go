package geo

import (
	"fmt"

	geojson "github.com/paulmach/go.geojson"
	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/roadrunner-sim/viewer/pkg/core"
)

// RouteFromSteps builds a core.Route from directions step geometry.
// Each coordinate is a [lon, lat] pair, matching GeoJSON order. Steps that
// cannot form a valid line string, such as non-finite coordinates, are an error.
func RouteFromSteps(entityID string, steps [][][]float64) (core.Route, error) {
	route := core.Route{EntityID: entityID, Steps: make([][]core.GeoPoint, 0, len(steps))}
	for i, step := range steps {
		points := make([]core.GeoPoint, len(step))
		for j, coord := range step {
			if len(coord) < 2 {
				return core.Route{}, fmt.Errorf("step %d coordinate %d has insufficient values", i, j)
			}
			points[j] = core.GeoPoint{Lat: coord[1], Lon: coord[0]}
		}
		route.Steps = append(route.Steps, points)
	}
	if _, err := RouteGeometry(route); err != nil {
		return core.Route{}, err
	}
	return route, nil
}

// RouteGeometry returns the route as a MultiLineString in lon/lat order.
// Degenerate steps (fewer than two distinct points, like the arrival step of
// a directions response) are skipped.
func RouteGeometry(r core.Route) (geom.MultiLineString, error) {
	lines := make([]geom.LineString, 0, len(r.Steps))
	for i, step := range r.Steps {
		if degenerate(step) {
			continue
		}
		flat := make([]float64, 0, len(step)*2)
		for _, p := range step {
			flat = append(flat, p.Lon, p.Lat)
		}
		ls, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
		if err != nil {
			return geom.MultiLineString{}, fmt.Errorf("step %d: %w", i, err)
		}
		lines = append(lines, ls)
	}
	return geom.NewMultiLineString(lines), nil
}

func degenerate(step []core.GeoPoint) bool {
	for _, p := range step[min(1, len(step)):] {
		if p != step[0] {
			return false
		}
	}
	return true
}

// RouteLength returns the great-circle length of the route in meters.
func RouteLength(r core.Route) float64 {
	var total float64
	for _, step := range r.Steps {
		for i := 1; i < len(step); i++ {
			total += Distance(step[i-1].Lat, step[i-1].Lon, step[i].Lat, step[i].Lon)
		}
	}
	return total
}

// RouteLayerID is the map layer/feature title used for an entity's route.
func RouteLayerID(entityID string) string {
	return "line-" + entityID
}

// RouteFeature returns the route as a GeoJSON MultiLineString feature ready
// for a line layer.
func RouteFeature(r core.Route) *geojson.Feature {
	lines := make([][][]float64, 0, len(r.Steps))
	for _, step := range r.Steps {
		line := make([][]float64, len(step))
		for i, p := range step {
			line[i] = []float64{p.Lon, p.Lat}
		}
		lines = append(lines, line)
	}
	f := geojson.NewMultiLineStringFeature(lines...)
	f.SetProperty("title", RouteLayerID(r.EntityID))
	return f
}

// PointOf returns p as a 2D point in lon/lat order.
func PointOf(p core.GeoPoint) (geom.Point, error) {
	pt, err := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: p.Lon, Y: p.Lat}, Type: geom.DimXY})
	if err != nil {
		return geom.Point{}, fmt.Errorf("point %v: %w", p, err)
	}
	return pt, nil
}
