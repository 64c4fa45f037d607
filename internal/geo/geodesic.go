// Package geo holds the stateless geometry used by the viewer: the direct
// geodetic problem on a sphere, zoom-to-size interpolation, screen-space hit
// testing, Web-Mercator viewport projection, and route geometry.
package geo

import "math"

// EarthRadiusKm is the sphere radius used by DestinationPoint.
const EarthRadiusKm = 6378.14

func toRadians(deg float64) float64 { return deg / 180.0 * math.Pi }

func toDegrees(rad float64) float64 { return rad / math.Pi * 180.0 }

// DestinationPoint returns the point reached by travelling rangeMeters from
// (lat, lon) along the great circle with initial bearing bearingDeg
// (clockwise from north). All angles are in degrees.
func DestinationPoint(lat, lon, bearingDeg, rangeMeters float64) (destLat, destLon float64) {
	if rangeMeters == 0 {
		return lat, lon
	}

	radLat := toRadians(lat)
	radLon := toRadians(lon)
	radBearing := toRadians(bearingDeg)
	d := rangeMeters / 1000.0 / EarthRadiusKm

	radDestLat := math.Asin(math.Sin(radLat)*math.Cos(d) + math.Cos(radLat)*math.Sin(d)*math.Cos(radBearing))
	radDestLon := radLon + math.Atan2(
		math.Sin(radBearing)*math.Sin(d)*math.Cos(radLat),
		math.Cos(d)-math.Sin(radLat)*math.Sin(radDestLat),
	)

	return toDegrees(radDestLat), toDegrees(radDestLon)
}

// Distance returns the great-circle distance in meters between two points
// on the same sphere as DestinationPoint.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1, phi2 := toRadians(lat1), toRadians(lat2)
	dPhi := phi2 - phi1
	dLambda := toRadians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a)) * EarthRadiusKm * 1000.0
}

// NormalizeBearing maps any angle in degrees into [0, 360).
func NormalizeBearing(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
