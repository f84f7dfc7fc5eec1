// Package place holds geocoder answers shared by the address providers.
package place

import "github.com/goose-osm/goose/internal/domain/geo"

// Place is a geocoded position with its address. Structured providers fill
// the address parts; free-form providers only fill Label.
type Place struct {
	Position    geo.Point
	Label       string
	HouseNumber string
	Street      string
	Postcode    string
	City        string
}

// IsNull reports the null location some geocoders answer for misses:
// both coordinates exactly zero and no address.
func (p Place) IsNull() bool {
	return p.Position.IsNull() && p.Label == ""
}

// Lookup is one row of a batch reverse geocoding request, correlated by ID.
type Lookup struct {
	ID       string
	Position geo.Point
}
