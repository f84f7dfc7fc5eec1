package chi

import (
	"fmt"

	"github.com/goose-osm/goose/internal/domain"
	"github.com/goose-osm/goose/internal/domain/facet"
	"github.com/goose-osm/goose/internal/domain/geo"
	dompreset "github.com/goose-osm/goose/internal/domain/preset"
	"github.com/goose-osm/goose/internal/domain/result"
	healthuc "github.com/goose-osm/goose/internal/usecase/health"
	searchuc "github.com/goose-osm/goose/internal/usecase/search"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status string                          `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
}

type presetDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type presetListResponse struct {
	Presets []presetDTO `json:"presets"`
	Count   int         `json:"count"`
}

type searchRequest struct {
	PresetID  string   `json:"preset_id"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Address   string   `json:"address,omitempty"`
	Radius    int      `json:"radius,omitempty"`
	NoPrivate bool     `json:"no_private"`
	Timezone  string   `json:"timezone,omitempty"`
}

// toRequest checks the coordinate pair; the rest is validated by the search service.
func (b searchRequest) toRequest() (searchuc.Request, error) {
	req := searchuc.Request{
		PresetID:  b.PresetID,
		Address:   b.Address,
		Radius:    b.Radius,
		NoPrivate: b.NoPrivate,
		Timezone:  b.Timezone,
	}
	switch {
	case b.Latitude != nil && b.Longitude != nil:
		req.Coordinates = &geo.Point{Lat: *b.Latitude, Lon: *b.Longitude}
	case b.Latitude != nil || b.Longitude != nil:
		return searchuc.Request{}, fmt.Errorf("%w: latitude and longitude go together", domain.ErrInvalidInput)
	}
	return req, nil
}

type originDTO struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Label     string  `json:"label,omitempty"`
}

type addressDTO struct {
	Kind    result.AddressKind `json:"kind"`
	Text    string             `json:"text,omitempty"`
	Display string             `json:"display"`
}

type resultDTO struct {
	ID           string            `json:"id"`
	OSMType      string            `json:"osm_type"`
	OSMID        int64             `json:"osm_id"`
	Latitude     float64           `json:"latitude"`
	Longitude    float64           `json:"longitude"`
	Name         string            `json:"name,omitempty"`
	Phone        string            `json:"phone,omitempty"`
	Distance     int               `json:"distance_m"`
	Bearing      float64           `json:"bearing"`
	Direction    geo.Direction     `json:"direction"`
	Arrow        string            `json:"arrow"`
	Address      addressDTO        `json:"address"`
	Open         bool              `json:"open"`
	OpeningHours string            `json:"opening_hours,omitempty"`
	WeekSummary  []string          `json:"week_summary,omitempty"`
	Tags         []result.Tag      `json:"tags"`
	Lines        []string          `json:"property_lines,omitempty"`
	Properties   map[string]string `json:"properties"`
	OSMURL       string            `json:"osm_url"`
	ItineraryURL string            `json:"itinerary_url"`
}

type searchResponse struct {
	Preset   presetDTO   `json:"preset"`
	Origin   originDTO   `json:"origin"`
	Radius   int         `json:"radius"`
	Timezone string      `json:"timezone"`
	Results  []resultDTO `json:"results"`
	Facets   facet.Facet `json:"facets"`
	Count    int         `json:"count"`
}

func presetToDTO(p *dompreset.CategoryPreset) presetDTO {
	return presetDTO{ID: p.ID, Name: p.Name}
}

func resultToDTO(r *result.Result) resultDTO {
	dto := resultDTO{
		ID:        r.ID,
		OSMType:   r.OSMType,
		OSMID:     r.OSMID,
		Latitude:  r.Position.Lat,
		Longitude: r.Position.Lon,
		Name:      r.Name,
		Phone:     r.Phone,
		Distance:  r.DistanceMeters,
		Bearing:   r.Bearing,
		Direction: r.Direction,
		Arrow:     r.Direction.Arrow(),
		Address: addressDTO{
			Kind:    r.Address.Kind,
			Text:    r.Address.Text,
			Display: r.Address.Display(),
		},
		Open:         r.Open,
		WeekSummary:  r.WeekSummary(),
		Tags:         r.Tags,
		Lines:        r.PropertyLines,
		Properties:   r.Properties,
		OSMURL:       r.OSMURL,
		ItineraryURL: r.ItineraryURL,
	}
	if r.Schedule != nil {
		dto.OpeningHours = r.Schedule.String()
	}
	if dto.Tags == nil {
		dto.Tags = []result.Tag{}
	}
	return dto
}

func searchResponseToDTO(resp *searchuc.Response) searchResponse {
	results := make([]resultDTO, len(resp.Results))
	for i := range resp.Results {
		results[i] = resultToDTO(&resp.Results[i])
	}
	facets := resp.Facet
	if facets == nil {
		facets = facet.Facet{}
	}

	out := searchResponse{
		Origin: originDTO{
			Latitude:  resp.Origin.Position.Lat,
			Longitude: resp.Origin.Position.Lon,
			Label:     resp.Origin.Label,
		},
		Radius:  resp.Radius,
		Results: results,
		Facets:  facets,
		Count:   len(results),
	}
	if resp.Preset != nil {
		out.Preset = presetToDTO(resp.Preset)
	}
	if resp.Timezone != nil {
		out.Timezone = resp.Timezone.String()
	}
	return out
}
