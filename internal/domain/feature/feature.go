// Package feature models raw geographic objects returned by the feature service.
package feature

import (
	"fmt"

	"github.com/goose-osm/goose/internal/domain/geo"
)

// GeometryType is the GeoJSON geometry kind of a feature.
type GeometryType string

const (
	// Point geometries come from OSM nodes.
	Point GeometryType = "Point"
	// LineString geometries come from OSM ways.
	LineString GeometryType = "LineString"
)

// LinePosition selects which position of a LineString stands for the whole feature.
type LinePosition int

const (
	// LinePositionFirstVertex uses the first vertex of the line. It is the only
	// supported policy; centroid or nearest-point variants are not implemented.
	LinePositionFirstVertex LinePosition = iota
)

// Properties is the string key/value bag attached to a feature.
// Lookups never distinguish a missing key from an empty value.
type Properties map[string]string

// Get returns the value for key or "" when absent.
func (p Properties) Get(key string) string {
	if p == nil {
		return ""
	}
	return p[key]
}

// Has reports whether key carries a non-empty value.
func (p Properties) Has(key string) bool {
	return p.Get(key) != ""
}

// Clone returns an independent copy.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Feature is one raw object from the geo data source. Coordinates are
// GeoJSON ordered [lon, lat]; a Point carries exactly one vertex.
type Feature struct {
	ID          int64
	Geometry    GeometryType
	Coordinates [][2]float64
	Properties  Properties
}

// OSMType returns "node" for points and "way" for lines.
func (f Feature) OSMType() string {
	if f.Geometry == LineString {
		return "way"
	}
	return "node"
}

// Position returns the coordinate that represents the feature.
func (f Feature) Position() (geo.Point, error) {
	return f.PositionWith(LinePositionFirstVertex)
}

// PositionWith returns the representative coordinate under the given line policy.
func (f Feature) PositionWith(policy LinePosition) (geo.Point, error) {
	if len(f.Coordinates) == 0 {
		return geo.Point{}, fmt.Errorf("feature %d has no coordinates", f.ID)
	}
	switch f.Geometry {
	case Point:
		c := f.Coordinates[0]
		return geo.Point{Lat: c[1], Lon: c[0]}, nil
	case LineString:
		if policy != LinePositionFirstVertex {
			return geo.Point{}, fmt.Errorf("unsupported line position policy %d", policy)
		}
		c := f.Coordinates[0]
		return geo.Point{Lat: c[1], Lon: c[0]}, nil
	default:
		return geo.Point{}, fmt.Errorf("feature %d has unsupported geometry %q", f.ID, f.Geometry)
	}
}
