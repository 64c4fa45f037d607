package view

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/roadrunner-sim/viewer/internal/dispatcher"
	"github.com/roadrunner-sim/viewer/internal/geo"
	"github.com/roadrunner-sim/viewer/pkg/core"
	"github.com/roadrunner-sim/viewer/pkg/streaming"
)

// MPSToMPH converts meters per second to miles per hour.
const MPSToMPH = 2.236936

// SpeedMPH formats a speed in m/s as miles per hour with one decimal.
func SpeedMPH(metersPerSecond float64) string {
	return fmt.Sprintf("%.1f MPH", math.Round(metersPerSecond*MPSToMPH*10)/10)
}

// Bearing formats a bearing with one decimal and a degree sign.
func Bearing(deg float64) string {
	return fmt.Sprintf("%.1f°", math.Round(deg*10)/10)
}

// PopupText is the two-line popup shown for an entity.
func PopupText(e core.EntityState) string {
	return "Speed: " + SpeedMPH(e.MetersPerSecond) + "\nBearing: " + Bearing(e.DegBearing)
}

// MarkerRotation turns an entity bearing into the marker icon rotation.
func MarkerRotation(bearing float64) float64 {
	return math.Mod(bearing+180, 360)
}

// FrameEntityOf renders one entity with its display state.
func FrameEntityOf(e core.EntityState, d core.DisplayState) streaming.FrameEntity {
	fe := streaming.FrameEntity{
		ID:           e.ID,
		Lat:          e.Position.Lat,
		Lon:          e.Position.Lon,
		Rotation:     MarkerRotation(e.DegBearing),
		Color:        e.ColorCode,
		IconPx:       int(math.Round(2.5 * d.Size)),
		PopupVisible: d.PopupVisible,
		RouteVisible: d.RouteVisible,
		LineWidth:    d.Size / 2,
	}
	if d.PopupVisible {
		fe.PopupText = PopupText(e)
	}
	return fe
}

// RoutePayloadOf builds the line layer for a route, colored like its entity.
func RoutePayloadOf(r core.Route, color string) (streaming.RoutePayload, error) {
	feature, err := json.Marshal(geo.RouteFeature(r))
	if err != nil {
		return streaming.RoutePayload{}, fmt.Errorf("encoding route %s: %w", r.EntityID, err)
	}
	return streaming.RoutePayload{
		LayerID: geo.RouteLayerID(r.EntityID),
		Color:   color,
		Feature: feature,
	}, nil
}

func decode[T any](e dispatcher.Event) (T, error) {
	return streaming.Decode[T](streaming.Envelope{Type: e.Command, Payload: e.Payload})
}
