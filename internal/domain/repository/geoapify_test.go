package repository

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gap_service/internal/core"
	"gap_service/internal/domain/model"
)

func newGeoapifyTestClient(t *testing.T, handler http.HandlerFunc) *GeoapifyClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGeoapifyClient(GeoapifyConfig{
		APIKey:     "test-key",
		PlacesURL:  srv.URL + "/v2/places",
		GeocodeURL: srv.URL + "/v1/geocode/search",
	})
}

func TestGeoapifyClient_Geocode(t *testing.T) {
	client := newGeoapifyTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/geocode/search", r.URL.Path)
		assert.Equal(t, "Connaught Place, Delhi", r.URL.Query().Get("text"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"features":[{"geometry":{"type":"Point","coordinates":[77.209,28.6139]},"properties":{}}]}`))
	})

	coord, err := client.Geocode(context.Background(), "Connaught Place, Delhi")
	require.NoError(t, err)
	assert.Equal(t, model.Coordinate{Lat: 28.6139, Lon: 77.209}, coord)
}

func TestGeoapifyClient_GeocodeNotFound(t *testing.T) {
	client := newGeoapifyTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"features":[]}`))
	})

	_, err := client.Geocode(context.Background(), "nowhere")
	assert.ErrorIs(t, err, model.ErrLocationNotFound)
}

func TestGeoapifyClient_GeocodeHTTPError(t *testing.T) {
	client := newGeoapifyTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Geocode(context.Background(), "Delhi")
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrLocationNotFound)
	assert.Contains(t, err.Error(), "401")
}

func TestGeoapifyClient_SearchPOIs(t *testing.T) {
	client := newGeoapifyTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/v2/places", r.URL.Path)
		assert.Equal(t, "catering.cafe", q.Get("categories"))
		assert.Equal(t, "circle:77.209,28.6139,2000", q.Get("filter"))
		assert.Equal(t, "poi", q.Get("type"))
		assert.Equal(t, "100", q.Get("limit"))
		assert.Equal(t, "200", q.Get("offset"))
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[
			{"geometry":{"coordinates":[77.21,28.614]},"properties":{"place_id":"abc","name":"Blue Tokai","city":"Delhi","rank":{"importance":0.3}}},
			{"geometry":null,"properties":{"place_id":"nogeo"}},
			{"geometry":{"coordinates":[77.2095,28.6141]},"properties":{"name":"Chai Point"}}
		]}`))
	})

	pois, err := client.SearchPOIs(context.Background(), model.SearchQuery{
		Category:     "catering.cafe",
		Center:       model.Coordinate{Lat: 28.6139, Lon: 77.209},
		RadiusMeters: 2000,
		Offset:       200,
		Limit:        100,
	})
	require.NoError(t, err)
	require.Len(t, pois, 3)

	assert.Equal(t, "abc", pois[0].PlaceID)
	assert.Equal(t, "Blue Tokai", pois[0].Name)
	assert.Equal(t, model.Coordinate{Lat: 28.614, Lon: 77.21}, pois[0].Coordinate)
	assert.Equal(t, "Delhi", pois[0].Properties["city"])
	assert.NotContains(t, pois[0].Properties, "rank")
	assert.False(t, pois[0].NoGeometry)

	assert.Equal(t, "nogeo", pois[1].PlaceID)
	assert.True(t, pois[1].NoGeometry)

	assert.Empty(t, pois[2].PlaceID)
	assert.Equal(t, "Chai Point", pois[2].Name)
}

func TestGeoapifyClient_PaginatesPastGeometrylessFeatures(t *testing.T) {
	pages := map[string]string{
		"0": `[{"geometry":null,"properties":{"place_id":"nogeo"}},
			{"geometry":{"coordinates":[77.2091,28.6140]},"properties":{"place_id":"a"}}]`,
		"2": `[{"geometry":{"coordinates":[77.2092,28.6141]},"properties":{"place_id":"b"}},
			{"geometry":{"coordinates":[77.2093,28.6142]},"properties":{"place_id":"c"}}]`,
		"4": `[{"geometry":{"coordinates":[77.2094,28.6143]},"properties":{"place_id":"d"}}]`,
	}
	client := newGeoapifyTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		features, ok := pages[r.URL.Query().Get("offset")]
		if !ok {
			features = "[]"
		}
		_, _ = w.Write([]byte(`{"features":` + features + `}`))
	})

	f := core.NewFetcher(client, core.FetcherOptions{PageSize: 2})
	res, err := f.Fetch(context.Background(), "catering.cafe", model.Coordinate{Lat: 28.6139, Lon: 77.209}, 2000)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Places.Len())
	assert.Equal(t, 3, res.Pages)
	assert.False(t, res.Partial)
}

func TestGeoapifyClient_SearchPOIsErrorPage(t *testing.T) {
	client := newGeoapifyTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.SearchPOIs(context.Background(), model.SearchQuery{Category: "catering.cafe", Offset: 100, Limit: 100})
	var pageErr *model.ProviderPageError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, http.StatusTooManyRequests, pageErr.StatusCode)
	assert.Equal(t, 100, pageErr.Offset)
	assert.Equal(t, "geoapify", pageErr.Provider)
}

func TestGeoapifyClient_SearchPOIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewGeoapifyClient(GeoapifyConfig{PlacesURL: srv.URL})

	_, err := client.SearchPOIs(context.Background(), model.SearchQuery{Category: "catering.cafe", Limit: 100})
	var te *model.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "places", te.Op)
	assert.False(t, model.IsProviderPageError(err))
}
