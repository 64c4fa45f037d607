// pkg/core/route.go
package core

// Route is the pre-computed directions geometry for one entity: one
// coordinate sequence per step, in travel order.
type Route struct {
	EntityID string
	Steps    [][]GeoPoint
}

// Empty reports whether the route has no coordinates at all.
func (r Route) Empty() bool {
	for _, s := range r.Steps {
		if len(s) > 0 {
			return false
		}
	}
	return true
}

// Address is one stop used when requesting a new entity from the telemetry source.
type Address struct {
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	State    string `json:"state"`
	ZipCode  int    `json:"zipCode"`
}
