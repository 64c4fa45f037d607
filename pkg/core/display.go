// pkg/core/display.go
package core

// DisplayState is the UI-local state kept for each entity ID.
// It is never sent to the telemetry source.
type DisplayState struct {
	Size         float64
	PopupVisible bool
	RouteVisible bool
}
