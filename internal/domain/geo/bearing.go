package geo

import "math"

// Direction is one of the eight compass sectors.
type Direction string

const (
	North     Direction = "N"
	NorthEast Direction = "NE"
	East      Direction = "E"
	SouthEast Direction = "SE"
	South     Direction = "S"
	SouthWest Direction = "SW"
	West      Direction = "W"
	NorthWest Direction = "NW"
)

var compass = [8]Direction{North, NorthEast, East, SouthEast, South, SouthWest, West, NorthWest}

var arrows = map[Direction]string{
	North: "↑", NorthEast: "↗", East: "→", SouthEast: "↘",
	South: "↓", SouthWest: "↙", West: "←", NorthWest: "↖",
}

// Arrow returns the glyph shown next to the direction label.
func (d Direction) Arrow() string { return arrows[d] }

// Cardinal maps a bearing in degrees to its 45° sector. Any real value is
// accepted and wrapped, so Cardinal(b) == Cardinal(b+360).
func Cardinal(bearing float64) Direction {
	b := normalize(bearing)
	ix := int(math.Floor((b + 22.5) / 45))
	return compass[ix%8]
}

// Bearing returns the direction from one point to another in degrees within
// [0, 360), rounded to one decimal.
//
// The trigonometric terms take the coordinate values as given, without the
// degree-to-radian conversion. Published result fixtures depend on this
// formula; TrueBearing is the geodesic initial bearing.
func Bearing(from, to Point) float64 {
	dLon := to.Lon - from.Lon
	y := math.Sin(dLon) * math.Cos(to.Lat)
	x := math.Cos(from.Lat)*math.Sin(to.Lat) - math.Sin(from.Lat)*math.Cos(to.Lat)*math.Cos(dLon)
	return round1(normalize(degrees(math.Atan2(y, x))))
}

// TrueBearing returns the initial great-circle bearing from one point to
// another in degrees within [0, 360), rounded to one decimal.
func TrueBearing(from, to Point) float64 {
	lat1, lat2 := radians(from.Lat), radians(to.Lat)
	dLon := radians(to.Lon - from.Lon)
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return round1(normalize(degrees(math.Atan2(y, x))))
}

func normalize(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	return d
}

func round1(deg float64) float64 {
	r := math.Round(deg*10) / 10
	if r >= 360 {
		r -= 360
	}
	return r
}
