// Package nominatim is a client of the OpenStreetMap Nominatim geocoder.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goose-osm/goose/internal/domain/geo"
	"github.com/goose-osm/goose/internal/domain/place"
	"github.com/goose-osm/goose/internal/transport/upstream"
)

// DefaultURL is the public Nominatim instance. Its usage policy asks for
// one request per second and an identifying User-Agent.
const DefaultURL = "https://nominatim.openstreetmap.org"

const service = "nominatim"

// Config holds the Nominatim client settings.
type Config struct {
	BaseURL        string
	UserAgent      string
	RequestsPerSec float64
	Timeout        time.Duration
	HTTPClient     *http.Client
}

// Client queries a Nominatim instance.
type Client struct {
	baseURL string
	http    *upstream.Client
}

// New creates a Nominatim client. RequestsPerSec defaults to 1.
func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultURL
	}
	if cfg.RequestsPerSec == 0 {
		cfg.RequestsPerSec = 1
	}
	return &Client{
		baseURL: base,
		http: upstream.New(upstream.Config{
			Service:        service,
			UserAgent:      cfg.UserAgent,
			Timeout:        cfg.Timeout,
			RequestsPerSec: cfg.RequestsPerSec,
			HTTPClient:     cfg.HTTPClient,
		}),
	}
}

type rawPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

func (p rawPlace) toPlace() (place.Place, error) {
	if p.Error != "" || (p.Lat == "" && p.Lon == "") {
		return place.Place{}, nil
	}
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return place.Place{}, fmt.Errorf("nominatim: invalid latitude %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return place.Place{}, fmt.Errorf("nominatim: invalid longitude %q: %w", p.Lon, err)
	}
	return place.Place{Position: geo.Point{Lat: lat, Lon: lon}, Label: p.DisplayName}, nil
}

// Reverse returns the place at a position in the given language. A miss is
// the null location.
func (c *Client) Reverse(ctx context.Context, p geo.Point, lang string) (place.Place, error) {
	q := url.Values{
		"format": {"jsonv2"},
		"lat":    {strconv.FormatFloat(p.Lat, 'f', -1, 64)},
		"lon":    {strconv.FormatFloat(p.Lon, 'f', -1, 64)},
	}
	if lang != "" {
		q.Set("accept-language", lang)
	}
	body, err := c.get(ctx, "reverse", "/reverse?"+q.Encode())
	if err != nil {
		return place.Place{}, err
	}

	var raw rawPlace
	if err := json.Unmarshal(body, &raw); err != nil {
		return place.Place{}, fmt.Errorf("nominatim reverse: decode response: %w", err)
	}
	return raw.toPlace()
}

// Geocode returns the best match for free text in the given language. A
// miss is the null location.
func (c *Client) Geocode(ctx context.Context, text, lang string) (place.Place, error) {
	q := url.Values{"format": {"jsonv2"}, "q": {text}, "limit": {"1"}}
	if lang != "" {
		q.Set("accept-language", lang)
	}
	body, err := c.get(ctx, "geocode", "/search?"+q.Encode())
	if err != nil {
		return place.Place{}, err
	}

	var raw []rawPlace
	if err := json.Unmarshal(body, &raw); err != nil {
		return place.Place{}, fmt.Errorf("nominatim geocode: decode response: %w", err)
	}
	if len(raw) == 0 {
		return place.Place{}, nil
	}
	return raw[0].toPlace()
}

// Status checks that the instance answers.
func (c *Client) Status(ctx context.Context) error {
	_, err := c.get(ctx, "status", "/status?format=json")
	return err
}

func (c *Client) get(ctx context.Context, op, path string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("nominatim %s: build request: %w", op, err)
	}
	return c.http.Do(ctx, op, req)
}
