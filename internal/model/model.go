// Package model defines the GORM rows of the in-memory session database.
package model

import (
	"encoding/json"
	"fmt"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"

	"github.com/roadrunner-sim/viewer/internal/geo"
	"github.com/roadrunner-sim/viewer/pkg/core"
)

// SessionModels lists every table migrated into the session database.
var SessionModels = []interface{}{
	&TrailPoint{},
	&RouteRecord{},
	&StatusRecord{},
}

// TrailPoint is one recorded position of an entity.
type TrailPoint struct {
	ID              uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time            time.Time  `json:"time" gorm:"index:idx_trail_entity_time,priority:2"`
	SessionID       string     `json:"sessionId" gorm:"size:36;index:idx_trail_session"`
	EntityID        string     `json:"entityId" gorm:"size:64;index:idx_trail_entity_time,priority:1"`
	Position        geom.Point `json:"position"`
	MetersPerSecond float64    `json:"metersPerSecond"`
	DegBearing      float64    `json:"degBearing"`
	HostName        string     `json:"hostName" gorm:"size:64"`
}

func (*TrailPoint) TableName() string {
	return "trail_points"
}

// NewTrailPoint converts a snapshot into a row for the given session.
func NewTrailPoint(sessionID string, s core.EntityState) (TrailPoint, error) {
	pos, err := geo.PointOf(s.Position)
	if err != nil {
		return TrailPoint{}, fmt.Errorf("trail point for %s: %w", s.ID, err)
	}
	return TrailPoint{
		Time:            s.LastUpdate(),
		SessionID:       sessionID,
		EntityID:        s.ID,
		Position:        pos,
		MetersPerSecond: s.MetersPerSecond,
		DegBearing:      s.DegBearing,
		HostName:        s.HostName,
	}, nil
}

// ToCore converts the row back to a domain trail point.
func (p TrailPoint) ToCore() core.TrailPoint {
	var pos core.GeoPoint
	if xy, ok := p.Position.XY(); ok {
		pos = core.GeoPoint{Lat: xy.Y, Lon: xy.X}
	}
	return core.TrailPoint{
		EntityID:        p.EntityID,
		Time:            p.Time,
		Position:        pos,
		MetersPerSecond: p.MetersPerSecond,
		DegBearing:      p.DegBearing,
	}
}

// RouteRecord caches the directions of one entity for the session.
// Steps holds the [lon, lat] coordinates; Geometry is the same route as WKT.
type RouteRecord struct {
	ID           uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID    string         `json:"sessionId" gorm:"size:36"`
	EntityID     string         `json:"entityId" gorm:"size:64;uniqueIndex"`
	Steps        datatypes.JSON `json:"steps"`
	Geometry     string         `json:"geometry"`
	LengthMeters float64        `json:"lengthMeters"`
	FetchedAt    time.Time      `json:"fetchedAt"`
}

func (*RouteRecord) TableName() string {
	return "route_records"
}

// NewRouteRecord converts a route into a row for the given session.
func NewRouteRecord(sessionID string, r core.Route, fetchedAt time.Time) (RouteRecord, error) {
	steps := make([][][2]float64, len(r.Steps))
	for i, step := range r.Steps {
		steps[i] = make([][2]float64, len(step))
		for j, p := range step {
			steps[i][j] = [2]float64{p.Lon, p.Lat}
		}
	}
	raw, err := json.Marshal(steps)
	if err != nil {
		return RouteRecord{}, fmt.Errorf("encoding route steps: %w", err)
	}
	geometry, err := geo.RouteGeometry(r)
	if err != nil {
		return RouteRecord{}, fmt.Errorf("route geometry for %s: %w", r.EntityID, err)
	}
	return RouteRecord{
		SessionID:    sessionID,
		EntityID:     r.EntityID,
		Steps:        datatypes.JSON(raw),
		Geometry:     geometry.AsText(),
		LengthMeters: geo.RouteLength(r),
		FetchedAt:    fetchedAt,
	}, nil
}

// ToCore decodes the stored steps.
func (r RouteRecord) ToCore() (core.Route, error) {
	var steps [][][]float64
	if err := json.Unmarshal(r.Steps, &steps); err != nil {
		return core.Route{}, fmt.Errorf("decoding route steps: %w", err)
	}
	return geo.RouteFromSteps(r.EntityID, steps)
}

// StatusRecord is one periodic viewer status sample.
type StatusRecord struct {
	ID             uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time           time.Time `json:"time" gorm:"index:idx_status_time"`
	SessionID      string    `json:"sessionId" gorm:"size:36"`
	Mode           string    `json:"mode" gorm:"size:16"`
	Entities       int       `json:"entities"`
	Active         int       `json:"active"`
	DisplayEntries int       `json:"displayEntries"`
	PageIndex      int       `json:"pageIndex"`
	TotalPages     int       `json:"totalPages"`
	Loaded         bool      `json:"loaded"`
}

func (*StatusRecord) TableName() string {
	return "status_records"
}
