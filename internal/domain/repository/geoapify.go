package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"gap_service/internal/domain/model"
)

const (
	DefaultGeoapifyPlacesURL  = "https://api.geoapify.com/v2/places"
	DefaultGeoapifyGeocodeURL = "https://api.geoapify.com/v1/geocode/search"

	geoapifyProvider = "geoapify"
)

type GeoapifyConfig struct {
	APIKey     string
	PlacesURL  string
	GeocodeURL string
	Timeout    time.Duration
}

// GeoapifyClient talks to the Geoapify Places and Geocoding APIs.
type GeoapifyClient struct {
	cfg    GeoapifyConfig
	client *http.Client
}

func NewGeoapifyClient(cfg GeoapifyConfig) *GeoapifyClient {
	if cfg.PlacesURL == "" {
		cfg.PlacesURL = DefaultGeoapifyPlacesURL
	}
	if cfg.GeocodeURL == "" {
		cfg.GeocodeURL = DefaultGeoapifyGeocodeURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &GeoapifyClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *GeoapifyClient) Name() string { return geoapifyProvider }

type geoapifyFeature struct {
	Geometry *struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type geoapifyCollection struct {
	Features []geoapifyFeature `json:"features"`
}

// coordinate reads a GeoJSON [lon, lat] pair.
func (f geoapifyFeature) coordinate() (model.Coordinate, bool) {
	if f.Geometry == nil || len(f.Geometry.Coordinates) < 2 {
		return model.Coordinate{}, false
	}
	return model.Coordinate{Lat: f.Geometry.Coordinates[1], Lon: f.Geometry.Coordinates[0]}, true
}

// Geocode resolves location to the first Geoapify candidate.
func (c *GeoapifyClient) Geocode(ctx context.Context, location string) (model.Coordinate, error) {
	params := url.Values{}
	params.Set("text", location)
	params.Set("limit", "1")
	params.Set("apiKey", c.cfg.APIKey)

	resp, err := c.get(ctx, c.cfg.GeocodeURL, params)
	if err != nil {
		return model.Coordinate{}, &model.TransportError{Provider: geoapifyProvider, Op: "geocode", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.Coordinate{}, fmt.Errorf("geoapify geocode returned status: %d", resp.StatusCode)
	}

	var body geoapifyCollection
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.Coordinate{}, fmt.Errorf("failed to decode geocode response: %w", err)
	}
	for _, f := range body.Features {
		if coord, ok := f.coordinate(); ok {
			return coord, nil
		}
	}
	return model.Coordinate{}, model.ErrLocationNotFound
}

// SearchPOIs fetches one page of places inside the query circle.
func (c *GeoapifyClient) SearchPOIs(ctx context.Context, q model.SearchQuery) ([]model.RawPOI, error) {
	params := url.Values{}
	params.Set("categories", q.Category)
	params.Set("filter", fmt.Sprintf("circle:%s,%s,%s",
		formatFloat(q.Center.Lon), formatFloat(q.Center.Lat), formatFloat(q.RadiusMeters)))
	params.Set("type", "poi")
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))
	params.Set("apiKey", c.cfg.APIKey)

	resp, err := c.get(ctx, c.cfg.PlacesURL, params)
	if err != nil {
		return nil, &model.TransportError{Provider: geoapifyProvider, Op: "places", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &model.ProviderPageError{
			Provider:   geoapifyProvider,
			Category:   q.Category,
			Offset:     q.Offset,
			StatusCode: resp.StatusCode,
		}
	}

	var body geoapifyCollection
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &model.ProviderPageError{
			Provider: geoapifyProvider,
			Category: q.Category,
			Offset:   q.Offset,
			Err:      fmt.Errorf("failed to decode places response: %w", err),
		}
	}

	pois := make([]model.RawPOI, 0, len(body.Features))
	for _, f := range body.Features {
		coord, ok := f.coordinate()
		pois = append(pois, model.RawPOI{
			PlaceID:    stringProp(f.Properties, "place_id"),
			Name:       stringProp(f.Properties, "name"),
			Coordinate: coord,
			Properties: stringProps(f.Properties),
			NoGeometry: !ok,
		})
	}
	return pois, nil
}

func (c *GeoapifyClient) get(ctx context.Context, endpoint string, params url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.client.Do(req)
}

func stringProp(props map[string]any, key string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return ""
}

// stringProps keeps the scalar string properties of a feature.
func stringProps(props map[string]any) map[string]string {
	out := make(map[string]string, len(props))
	for k, v := range props {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
