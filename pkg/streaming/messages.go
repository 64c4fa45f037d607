// Package streaming defines the WebSocket protocol between the viewer and the browser map.
package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/roadrunner-sim/viewer/pkg/core"
)

// Outbound message types (viewer → map).
const (
	TypeSessionStart = "session_start"
	TypeSessionEnd   = "session_end"
	TypeSetBearing   = "set_bearing"
	TypeSetCenter    = "set_center"
	TypeFitBounds    = "fit_bounds"
	TypeFrame        = "frame"
	TypeRoute        = "route"
)

// Inbound message types (map → viewer).
const (
	TypeAck           = "ack"
	TypeMapClick      = "map_click"
	TypeZoom          = "zoom"
	TypeResize        = "resize"
	TypeView          = "view"
	TypeHold          = "hold"
	TypeRelease       = "release"
	TypeRecenter      = "recenter"
	TypeShowAllRoutes = "show_all_routes"
	TypeHideAllRoutes = "hide_all_routes"
	TypeFitAll        = "fit_all"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage is the map's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// SessionStartPayload announces the view mode. EntityID is set in ride-along mode.
type SessionStartPayload struct {
	SessionID string `json:"sessionId"`
	Mode      string `json:"mode"`
	EntityID  string `json:"entityId,omitempty"`
}

// BearingPayload carries a camera bearing in degrees.
type BearingPayload struct {
	Deg float64 `json:"deg"`
}

// FrameEntity is one marker as the map should draw it.
type FrameEntity struct {
	ID           string  `json:"id"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	Rotation     float64 `json:"rotation"`
	Color        string  `json:"color"`
	IconPx       int     `json:"iconPx"`
	PopupVisible bool    `json:"popupVisible"`
	PopupText    string  `json:"popupText,omitempty"`
	RouteVisible bool    `json:"routeVisible"`
	LineWidth    float64 `json:"lineWidth"`
}

// FramePayload is one full redraw of the overview.
type FramePayload struct {
	Entities []FrameEntity `json:"entities"`
	Active   int           `json:"active"`
	Total    int           `json:"total"`
	Loaded   bool          `json:"loaded"`
}

// RoutePayload carries one route layer as a GeoJSON feature.
type RoutePayload struct {
	LayerID string          `json:"layerId"`
	Color   string          `json:"color"`
	Feature json.RawMessage `json:"feature"`
}

// MapClickPayload is a click in screen pixels.
type MapClickPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ZoomPayload reports the map's new zoom level.
type ZoomPayload struct {
	Zoom float64 `json:"zoom"`
}

// ViewPayload is the map's camera after the user moved it: a pan, a zoom
// around the cursor or a rotation. It is sent when the movement ends.
type ViewPayload struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Zoom    float64 `json:"zoom"`
	Bearing float64 `json:"bearing"`
}

// Center returns the map center carried by the payload.
func (p ViewPayload) Center() core.GeoPoint {
	return core.GeoPoint{Lat: p.Lat, Lon: p.Lon}
}

// ResizePayload reports the map's new size in pixels.
type ResizePayload struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// HoldPayload starts a press-and-hold on the bearing offset.
type HoldPayload struct {
	Direction string `json:"direction"`
}

// Marshal builds a JSON-encoded Envelope from a message type and payload.
// A nil payload is omitted.
func Marshal(msgType string, payload any) ([]byte, error) {
	env := Envelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// Decode unmarshals an envelope payload into v.
func Decode[T any](env Envelope) (T, error) {
	var v T
	if len(env.Payload) == 0 {
		return v, fmt.Errorf("%s: empty payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return v, fmt.Errorf("%s: decode payload: %w", env.Type, err)
	}
	return v, nil
}

// CenterPayload is the payload of set_center.
type CenterPayload = core.GeoPoint

// BoundsPayload is the payload of fit_bounds.
type BoundsPayload = core.Bounds
