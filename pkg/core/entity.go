// pkg/core/entity.go
package core

import "time"

// EntityState is one snapshot of a tracked entity as reported by the telemetry source.
// Snapshots are immutable; a newer snapshot for the same ID replaces the old one wholesale.
type EntityState struct {
	ID                     string
	Position               GeoPoint
	MetersPerSecond        float64
	MetersPerSecondDesired float64
	MssAcceleration        float64
	DegBearing             float64
	ColorCode              string
	MsEpochLastRun         int64 // last update, epoch milliseconds
	HostName               string
	NsLastExec             int64 // last execution latency, nanoseconds
	MetersOffset           float64
	PositionLimited        bool
	PositionValid          bool
}

// LastUpdate returns the snapshot timestamp as a time.Time.
func (s EntityState) LastUpdate() time.Time {
	return time.UnixMilli(s.MsEpochLastRun)
}

// LastExec returns the last execution latency reported by the owning host.
func (s EntityState) LastExec() time.Duration {
	return time.Duration(s.NsLastExec)
}

// Active reports whether the entity is still moving freely (not parked at the end of its route).
func (s EntityState) Active() bool {
	return !s.PositionLimited
}

// Page is one decoded page of the paginated entity listing.
type Page struct {
	Items         []EntityState
	Number        int
	Size          int
	TotalElements int
	TotalPages    int
}
