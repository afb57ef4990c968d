// Package geo provides the great-circle distance calculation and the circular
// geofence used to authorise location-dependent actions.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// GeofenceTarget is a circular region: a centre plus an allowed radius.
type GeofenceTarget struct {
	Center       Coordinate
	RadiusMeters float64
}

// DistanceMeters returns the great-circle distance between a and b in metres,
// using the haversine formula over a spherical Earth. The result is always >= 0,
// symmetric in its arguments, and 0 iff a == b exactly. Inputs are taken as-is:
// out-of-range degree values produce a mathematically defined but physically
// meaningless result.
func DistanceMeters(a, b Coordinate) float64 {
	if a == b {
		return 0
	}
	dLat := deg2rad(b.Lat - a.Lat)
	dLng := deg2rad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(a.Lat))*math.Cos(deg2rad(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// Contains reports whether c falls within the fence, along with the measured
// distance from the fence centre so callers can surface it either way.
func (t GeofenceTarget) Contains(c Coordinate) (bool, float64) {
	d := DistanceMeters(c, t.Center)
	return d <= t.RadiusMeters, d
}

func deg2rad(deg float64) float64 {
	return deg * (math.Pi / 180)
}
