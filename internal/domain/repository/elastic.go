package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"

	"gap_service/internal/domain/model"
)

const (
	DefaultElasticIndex = "places"

	elasticProvider = "elasticsearch"
)

type ElasticConfig struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
	CACert    []byte
}

func NewElasticClient(cfg ElasticConfig) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		CACert:    cfg.CACert,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return client, nil
}

// ElasticRepository serves POIs from an index whose documents carry
// place_id, name, category and a geo_point location.
type ElasticRepository struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticRepository(client *elasticsearch.Client, index string) *ElasticRepository {
	if index == "" {
		index = DefaultElasticIndex
	}
	return &ElasticRepository{client: client, index: index}
}

func (r *ElasticRepository) Name() string { return elasticProvider }

type elasticPlace struct {
	PlaceID  string `json:"place_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Location struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"location"`
}

type elasticSearchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string       `json:"_id"`
			Source elasticPlace `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func buildGeoQuery(q model.SearchQuery) map[string]any {
	return map[string]any{
		"from": q.Offset,
		"size": q.Limit,
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"term": map[string]any{"category": q.Category}},
					map[string]any{"geo_distance": map[string]any{
						"distance": formatFloat(q.RadiusMeters) + "m",
						"location": map[string]float64{"lat": q.Center.Lat, "lon": q.Center.Lon},
					}},
				},
			},
		},
		"sort": []any{
			map[string]any{"place_id": "asc"},
		},
	}
}

func (r *ElasticRepository) SearchPOIs(ctx context.Context, q model.SearchQuery) ([]model.RawPOI, error) {
	body, err := json.Marshal(buildGeoQuery(q))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search body: %w", err)
	}

	response, err := r.client.Search(
		r.client.Search.WithContext(ctx),
		r.client.Search.WithIndex(r.index),
		r.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, &model.TransportError{Provider: elasticProvider, Op: "search", Err: err}
	}
	defer response.Body.Close()

	if response.IsError() {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil, &model.ProviderPageError{
			Provider:   elasticProvider,
			Category:   q.Category,
			Offset:     q.Offset,
			StatusCode: response.StatusCode,
		}
	}

	var result elasticSearchResponse
	if err := json.NewDecoder(response.Body).Decode(&result); err != nil {
		return nil, &model.ProviderPageError{
			Provider: elasticProvider,
			Category: q.Category,
			Offset:   q.Offset,
			Err:      fmt.Errorf("failed to decode search response: %w", err),
		}
	}

	pois := make([]model.RawPOI, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		place := hit.Source
		id := place.PlaceID
		if id == "" {
			id = hit.ID
		}
		pois = append(pois, model.RawPOI{
			PlaceID:    id,
			Name:       place.Name,
			Coordinate: model.Coordinate{Lat: place.Location.Lat, Lon: place.Location.Lon},
		})
	}
	return pois, nil
}
