// Package addok is a client of the structured address API
// (api-adresse.data.gouv.fr and other addok deployments).
package addok

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goose-osm/goose/internal/domain/geo"
	"github.com/goose-osm/goose/internal/domain/place"
	"github.com/goose-osm/goose/internal/transport/upstream"
)

// DefaultURL is the public French address API.
const DefaultURL = "https://api-adresse.data.gouv.fr"

const service = "addok"

// Client queries an addok instance.
type Client struct {
	baseURL string
	http    *upstream.Client
}

// Config holds the addok client settings.
type Config struct {
	BaseURL        string
	UserAgent      string
	RequestsPerSec float64
	Timeout        time.Duration
	HTTPClient     *http.Client
}

// New creates an addok client.
func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultURL
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

type featureCollection struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Label       string `json:"label"`
			HouseNumber string `json:"housenumber"`
			Street      string `json:"street"`
			Name        string `json:"name"`
			Postcode    string `json:"postcode"`
			City        string `json:"city"`
		} `json:"properties"`
	} `json:"features"`
}

// Search geocodes free text. An empty slice means no match.
func (c *Client) Search(ctx context.Context, text string) ([]place.Place, error) {
	q := url.Values{"q": {text}, "limit": {"1"}}
	return c.get(ctx, "search", "/search/?"+q.Encode())
}

// Reverse returns the addresses nearest to a point. An empty slice means no match.
func (c *Client) Reverse(ctx context.Context, p geo.Point) ([]place.Place, error) {
	q := url.Values{
		"lat": {strconv.FormatFloat(p.Lat, 'f', -1, 64)},
		"lon": {strconv.FormatFloat(p.Lon, 'f', -1, 64)},
	}
	return c.get(ctx, "reverse", "/reverse/?"+q.Encode())
}

// Status probes the service with a one-result search.
func (c *Client) Status(ctx context.Context) error {
	q := url.Values{"q": {"mairie"}, "limit": {"1"}}
	_, err := c.get(ctx, "status", "/search/?"+q.Encode())
	return err
}

func (c *Client) get(ctx context.Context, op, path string) ([]place.Place, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("addok %s: build request: %w", op, err)
	}
	body, err := c.http.Do(ctx, op, req)
	if err != nil {
		return nil, err
	}

	var fc featureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, fmt.Errorf("addok %s: decode response: %w", op, err)
	}

	out := make([]place.Place, 0, len(fc.Features))
	for _, f := range fc.Features {
		if len(f.Geometry.Coordinates) < 2 {
			continue
		}
		street := f.Properties.Street
		if street == "" {
			street = f.Properties.Name
		}
		out = append(out, place.Place{
			Position:    geo.Point{Lat: f.Geometry.Coordinates[1], Lon: f.Geometry.Coordinates[0]},
			Label:       f.Properties.Label,
			HouseNumber: f.Properties.HouseNumber,
			Street:      street,
			Postcode:    f.Properties.Postcode,
			City:        f.Properties.City,
		})
	}
	return out, nil
}

// ReverseCSV reverse geocodes many points in one request. The result is
// keyed by Lookup.ID; points the service could not place are absent or
// carry empty fields.
func (c *Client) ReverseCSV(ctx context.Context, points []place.Lookup) (map[string]place.Place, error) {
	if len(points) == 0 {
		return map[string]place.Place{}, nil
	}

	var payload bytes.Buffer
	w := csv.NewWriter(&payload)
	_ = w.Write([]string{"latitude", "longitude", "uuid"})
	for _, p := range points {
		_ = w.Write([]string{
			strconv.FormatFloat(p.Position.Lat, 'f', -1, 64),
			strconv.FormatFloat(p.Position.Lon, 'f', -1, 64),
			p.ID,
		})
	}
	w.Flush()

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("data", "points.csv")
	if err != nil {
		return nil, fmt.Errorf("addok reverse csv: build form: %w", err)
	}
	if _, err := part.Write(payload.Bytes()); err != nil {
		return nil, fmt.Errorf("addok reverse csv: build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("addok reverse csv: build form: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/reverse/csv/", &form)
	if err != nil {
		return nil, fmt.Errorf("addok reverse csv: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	body, err := c.http.Do(ctx, "reverse_csv", req)
	if err != nil {
		return nil, err
	}
	return parseReverseCSV(bytes.NewReader(body))
}

func parseReverseCSV(r io.Reader) (map[string]place.Place, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("addok reverse csv: read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	if _, ok := col["uuid"]; !ok {
		return nil, fmt.Errorf("addok reverse csv: response has no uuid column")
	}

	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	float := func(rec []string, name string) float64 {
		v, _ := strconv.ParseFloat(field(rec, name), 64)
		return v
	}

	out := make(map[string]place.Place)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("addok reverse csv: read row: %w", err)
		}
		street := field(rec, "result_street")
		if street == "" {
			street = field(rec, "result_name")
		}
		out[field(rec, "uuid")] = place.Place{
			Position:    geo.Point{Lat: float(rec, "result_latitude"), Lon: float(rec, "result_longitude")},
			Label:       field(rec, "result_label"),
			HouseNumber: field(rec, "result_housenumber"),
			Street:      street,
			Postcode:    field(rec, "result_postcode"),
			City:        field(rec, "result_city"),
		}
	}
	return out, nil
}
