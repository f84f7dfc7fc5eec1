package result

import (
	"strings"

	"github.com/goose-osm/goose/internal/domain/feature"
)

// AddressKind tells how a display address was obtained.
type AddressKind string

const (
	// AddressExact is built from the feature's own addr:* tags.
	AddressExact AddressKind = "exact"
	// AddressEstimated comes from reverse geocoding the feature position.
	AddressEstimated AddressKind = "estimated"
	// AddressPending marks a result waiting for the batch address fill.
	AddressPending AddressKind = "pending"
	// AddressUnknown is the degraded outcome when no lookup succeeded.
	AddressUnknown AddressKind = "unknown"
)

// Address is the display address of a result.
type Address struct {
	Kind AddressKind `json:"kind"`
	Text string      `json:"text,omitempty"`
}

// Display returns the user-facing address line. Unresolved addresses read
// as an explicit placeholder.
func (a Address) Display() string {
	switch a.Kind {
	case AddressExact:
		return "Exact address: " + a.Text
	case AddressEstimated:
		return "Estimated address: " + a.Text
	default:
		return "Address unknown"
	}
}

// ExactAddress builds an address from addr:* tags. With all four parts it
// reads "12 Rue Foo, 44000 Nantes"; with only housenumber and street it
// reads "12, Rue Foo". ok is false otherwise.
func ExactAddress(props feature.Properties) (Address, bool) {
	hn := props.Get("addr:housenumber")
	street := props.Get("addr:street")
	postcode := props.Get("addr:postcode")
	city := props.Get("addr:city")

	switch {
	case hn != "" && street != "" && postcode != "" && city != "":
		return Address{Kind: AddressExact, Text: hn + " " + street + ", " + postcode + " " + city}, true
	case hn != "" && street != "":
		return Address{Kind: AddressExact, Text: hn + ", " + street}, true
	default:
		return Address{}, false
	}
}

// Estimated builds an estimated address from reverse geocoding parts, with
// the same layout as ExactAddress. ok is false when housenumber or street
// is missing, or when the housenumber carries the "90xx" upstream defect.
func Estimated(housenumber, street, postcode, city string) (Address, bool) {
	if housenumber == "" || street == "" || IsBogusHousenumber(housenumber) {
		return Address{}, false
	}
	if postcode != "" && city != "" {
		return Address{Kind: AddressEstimated, Text: housenumber + " " + street + ", " + postcode + " " + city}, true
	}
	return Address{Kind: AddressEstimated, Text: housenumber + ", " + street}, true
}

// EstimatedLabel wraps a free-form geocoder label. An empty label is unknown.
func EstimatedLabel(label string) Address {
	if label == "" {
		return Address{Kind: AddressUnknown}
	}
	return Address{Kind: AddressEstimated, Text: label}
}

// IsBogusHousenumber reports the structured address API defect where a
// four-digit housenumber starting with "90" is returned for unrelated places.
func IsBogusHousenumber(hn string) bool {
	return len(hn) == 4 && strings.HasPrefix(hn, "90")
}
