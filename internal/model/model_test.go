package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadrunner-sim/viewer/pkg/core"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"TrailPoint", &TrailPoint{}, "trail_points"},
		{"RouteRecord", &RouteRecord{}, "route_records"},
		{"StatusRecord", &StatusRecord{}, "status_records"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestTrailPoint_RoundTrip(t *testing.T) {
	s := core.EntityState{
		ID:              "veh-1",
		Position:        core.GeoPoint{Lat: 32.7466, Lon: -97.3195},
		MetersPerSecond: 12.5,
		DegBearing:      90,
		MsEpochLastRun:  1700000000000,
		HostName:        "sim-1",
	}

	row, err := NewTrailPoint("sess", s)
	require.NoError(t, err)
	assert.Equal(t, "sess", row.SessionID)
	assert.Equal(t, "sim-1", row.HostName)
	assert.Equal(t, core.TrailPointOf(s), row.ToCore())
}

func TestRouteRecord_RoundTrip(t *testing.T) {
	r := core.Route{
		EntityID: "veh-1",
		Steps: [][]core.GeoPoint{
			{{Lat: 32.7466, Lon: -97.3195}, {Lat: 32.7466, Lon: -97.3190}},
			{{Lat: 32.7466, Lon: -97.3190}, {Lat: 32.7470, Lon: -97.3190}},
		},
	}
	fetched := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	row, err := NewRouteRecord("sess", r, fetched)
	require.NoError(t, err)

	assert.Equal(t, "veh-1", row.EntityID)
	assert.Equal(t, fetched, row.FetchedAt)
	assert.Contains(t, row.Geometry, "MULTILINESTRING")
	assert.Greater(t, row.LengthMeters, 0.0)

	back, err := row.ToCore()
	require.NoError(t, err)
	assert.Equal(t, r, back)
}

func TestRouteRecord_BadSteps(t *testing.T) {
	row := RouteRecord{EntityID: "veh-1", Steps: []byte(`{`)}
	_, err := row.ToCore()
	assert.Error(t, err)
}

func TestTrailPoint_RejectsNonFinitePosition(t *testing.T) {
	s := core.EntityState{ID: "veh-9", Position: core.GeoPoint{Lat: math.NaN(), Lon: -97.3}}

	_, err := NewTrailPoint("sess", s)
	assert.ErrorContains(t, err, "veh-9")
}

func TestRouteRecord_RejectsNonFiniteStep(t *testing.T) {
	r := core.Route{
		EntityID: "veh-9",
		Steps:    [][]core.GeoPoint{{{Lat: 32.7, Lon: -97.3}, {Lat: math.Inf(1), Lon: -97.2}}},
	}

	_, err := NewRouteRecord("sess", r, time.Now())
	assert.ErrorContains(t, err, "route geometry for veh-9")
}
