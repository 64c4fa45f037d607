package core

import "time"

// TrailPoint is one recorded position of an entity during the current session.
type TrailPoint struct {
	EntityID        string
	Time            time.Time
	Position        GeoPoint
	MetersPerSecond float64
	DegBearing      float64
}

// TrailPointOf returns the trail point recorded for a snapshot.
func TrailPointOf(s EntityState) TrailPoint {
	return TrailPoint{
		EntityID:        s.ID,
		Time:            s.LastUpdate(),
		Position:        s.Position,
		MetersPerSecond: s.MetersPerSecond,
		DegBearing:      s.DegBearing,
	}
}
