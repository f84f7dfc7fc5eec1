// Package overpass is a client of the Overpass API serving OpenStreetMap features.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goose-osm/goose/internal/domain"
	"github.com/goose-osm/goose/internal/domain/feature"
	"github.com/goose-osm/goose/internal/transport/upstream"
)

// DefaultURL is the main public Overpass instance.
const DefaultURL = "https://overpass-api.de/api"

const service = "overpass"

// Config holds the Overpass client settings.
type Config struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client runs Overpass QL queries.
type Client struct {
	baseURL string
	http    *upstream.Client
}

// New creates an Overpass client. The HTTP timeout defaults to 35s so
// queries using [timeout:25] finish before the client gives up.
func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 35 * time.Second
	}
	return &Client{
		baseURL: base,
		http: upstream.New(upstream.Config{
			Service:    service,
			UserAgent:  cfg.UserAgent,
			Timeout:    cfg.Timeout,
			HTTPClient: cfg.HTTPClient,
		}),
	}
}

type latLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type element struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Lat      float64           `json:"lat"`
	Lon      float64           `json:"lon"`
	Geometry []latLon          `json:"geometry"`
	Tags     map[string]string `json:"tags"`
}

type response struct {
	Remark   string    `json:"remark"`
	Elements []element `json:"elements"`
}

// Query runs an Overpass QL query and returns its nodes and ways as features.
// A server-side runtime error reported in the remark is transient.
func (c *Client) Query(ctx context.Context, query string) ([]feature.Feature, error) {
	form := url.Values{"data": {query}}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/interpreter", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("overpass query: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.http.Do(ctx, "query", req)
	if err != nil {
		return nil, err
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("overpass query: decode response: %v: %w", err, domain.ErrProviderUnavailable)
	}
	if strings.Contains(strings.ToLower(resp.Remark), "error") {
		return nil, fmt.Errorf("overpass query: %s: %w", resp.Remark, domain.ErrProviderUnavailable)
	}
	return toFeatures(resp.Elements), nil
}

// Status checks that the instance answers.
func (c *Client) Status(ctx context.Context) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/status", http.NoBody)
	if err != nil {
		return fmt.Errorf("overpass status: build request: %w", err)
	}
	_, err = c.http.Do(ctx, "status", req)
	return err
}

func toFeatures(elements []element) []feature.Feature {
	out := make([]feature.Feature, 0, len(elements))
	for _, e := range elements {
		f := feature.Feature{ID: e.ID, Properties: feature.Properties(e.Tags)}
		if f.Properties == nil {
			f.Properties = feature.Properties{}
		}
		switch e.Type {
		case "node":
			f.Geometry = feature.Point
			f.Coordinates = [][2]float64{{e.Lon, e.Lat}}
		case "way":
			if len(e.Geometry) == 0 {
				continue
			}
			f.Geometry = feature.LineString
			f.Coordinates = make([][2]float64, len(e.Geometry))
			for i, v := range e.Geometry {
				f.Coordinates[i] = [2]float64{v.Lon, v.Lat}
			}
		default:
			continue
		}
		out = append(out, f)
	}
	return out
}
