package api

import (
	"github.com/go-playground/validator/v10"

	"github.com/roadrunner-sim/viewer/pkg/core"
)

// Pointer fields distinguish "missing" from zero so required can reject absent values.
type entityDTO struct {
	ID                     string   `json:"id" validate:"required"`
	DegLatitude            *float64 `json:"degLatitude" validate:"required,gte=-90,lte=90"`
	DegLongitude           *float64 `json:"degLongitude" validate:"required,gte=-180,lte=180"`
	MetersPerSecond        float64  `json:"metersPerSecond"`
	MetersPerSecondDesired float64  `json:"metersPerSecondDesired"`
	MssAcceleration        float64  `json:"mssAcceleration"`
	DegBearing             *float64 `json:"degBearing" validate:"required,gte=0,lte=360"`
	ColorCode              string   `json:"colorCode"`
	MsEpochLastRun         *int64   `json:"msEpochLastRun" validate:"required"`
	HostName               string   `json:"hostName"`
	NsLastExec             int64    `json:"nsLastExec"`
	MetersOffset           float64  `json:"metersOffset"`
	PositionLimited        bool     `json:"positionLimited"`
	PositionValid          bool     `json:"positionValid"`
}

type pageInfoDTO struct {
	Size          int  `json:"size"`
	Number        int  `json:"number"`
	TotalElements int  `json:"totalElements"`
	TotalPages    *int `json:"totalPages" validate:"required,gte=0"`
}

type pageDTO struct {
	Items []entityDTO   `json:"items" validate:"required,dive"`
	Page  *pageInfoDTO `json:"page" validate:"required"`
}

type directionsDTO struct {
	Routes []struct {
		Legs []struct {
			Steps []struct {
				Geometry struct {
					Coordinates [][]float64 `json:"coordinates"`
				} `json:"geometry"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

// CrissCrossRequest asks the telemetry source to spawn entities driving
// across a circle around a center point.
type CrissCrossRequest struct {
	DegLatitude  float64 `json:"degLatitude" validate:"gte=-90,lte=90"`
	DegLongitude float64 `json:"degLongitude" validate:"gte=-180,lte=180"`
	KmRadius     float64 `json:"kmRadius" validate:"gt=0"`
	VehicleCount int     `json:"vehicleCount" validate:"gt=0"`
}

// DefaultCrissCross is the request used when no overrides are given.
func DefaultCrissCross() CrissCrossRequest {
	return CrissCrossRequest{
		DegLatitude:  32.74666,
		DegLongitude: -97.319507,
		KmRadius:     10,
		VehicleCount: 15,
	}
}

type createRequest struct {
	ListStops []core.Address `json:"listStops"`
}

type createResponse struct {
	ID string `json:"id" validate:"required"`
}

func newValidator() *validator.Validate {
	return validator.New()
}

func (d entityDTO) toCore() core.EntityState {
	return core.EntityState{
		ID:                     d.ID,
		Position:               core.GeoPoint{Lat: *d.DegLatitude, Lon: *d.DegLongitude},
		MetersPerSecond:        d.MetersPerSecond,
		MetersPerSecondDesired: d.MetersPerSecondDesired,
		MssAcceleration:        d.MssAcceleration,
		DegBearing:             *d.DegBearing,
		ColorCode:              d.ColorCode,
		MsEpochLastRun:         *d.MsEpochLastRun,
		HostName:               d.HostName,
		NsLastExec:             d.NsLastExec,
		MetersOffset:           d.MetersOffset,
		PositionLimited:        d.PositionLimited,
		PositionValid:          d.PositionValid,
	}
}

func (d pageDTO) toCore() core.Page {
	items := make([]core.EntityState, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, it.toCore())
	}
	return core.Page{
		Items:         items,
		Number:        d.Page.Number,
		Size:          d.Page.Size,
		TotalElements: d.Page.TotalElements,
		TotalPages:    *d.Page.TotalPages,
	}
}

func (d directionsDTO) steps() [][][]float64 {
	if len(d.Routes) == 0 || len(d.Routes[0].Legs) == 0 {
		return nil
	}
	leg := d.Routes[0].Legs[0]
	out := make([][][]float64, 0, len(leg.Steps))
	for _, s := range leg.Steps {
		out = append(out, s.Geometry.Coordinates)
	}
	return out
}
