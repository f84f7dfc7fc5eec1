package overpass

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goose-osm/goose/internal/domain/geo"
)

// Selector is one tag filter, rendered like ["shop"="bakery"].
type Selector interface {
	Selector() string
}

// BuildQuery returns one query fetching nodes and ways matching any selector
// within radius meters of center. Ways come back with their full geometry.
func BuildQuery[S Selector](selectors []S, center geo.Point, radius, timeoutSec int) string {
	around := fmt.Sprintf("(around:%d,%s,%s)", radius,
		strconv.FormatFloat(center.Lat, 'f', -1, 64),
		strconv.FormatFloat(center.Lon, 'f', -1, 64))

	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];(", timeoutSec)
	for _, s := range selectors {
		sel := s.Selector()
		b.WriteString("node" + sel + around + ";")
		b.WriteString("way" + sel + around + ";")
	}
	b.WriteString(");out geom;")
	return b.String()
}
