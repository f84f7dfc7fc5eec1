// Package geo holds the geodesic helpers used to place results relative to the user.
package geo

import "math"

// EarthRadiusMeters is the mean radius of Earth used for Haversine distance.
const EarthRadiusMeters = 6_371_000.0

// Point is a WGS-84 position in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point lies within latitude/longitude bounds.
func (p Point) Valid() bool {
	return ValidateCoordinates(p.Lat, p.Lon)
}

// IsNull reports whether the point is the (0, 0) sentinel some geocoders return for misses.
func (p Point) IsNull() bool {
	return p.Lat == 0 && p.Lon == 0
}

// Distance returns the ellipsoidal distance in meters between two points.
// Vincenty's inverse formula is used; nearly antipodal pairs where it does not
// converge fall back to Haversine.
func Distance(from, to Point) float64 {
	if d, ok := Vincenty(from, to); ok {
		return d
	}
	return Haversine(from.Lat, from.Lon, to.Lat, to.Lon)
}

// DistanceMeters returns Distance rounded to the nearest whole meter.
func DistanceMeters(from, to Point) int {
	return int(math.Round(Distance(from, to)))
}

// Haversine returns the great-circle distance in meters between two points
// specified by latitude and longitude in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// ValidateCoordinates checks that latitude is in [-90,90] and longitude in [-180,180].
func ValidateCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
