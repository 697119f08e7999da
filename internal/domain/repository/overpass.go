package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/serjvanilla/go-overpass"

	"gap_service/internal/domain/model"
)

const (
	DefaultOverpassEndpoint = "https://overpass-api.de/api/interpreter"

	overpassProvider = "overpass"
)

// Tag is a single OSM key=value constraint.
type Tag struct {
	Key   string `mapstructure:"key" yaml:"key"`
	Value string `mapstructure:"value" yaml:"value"`
}

// defaultOSMTags covers the top-level categories whose OSM tagging differs
// from the generic root rules in osmTagsFor.
var defaultOSMTags = map[string][]Tag{
	"commercial.clothing":          {{Key: "shop", Value: "clothes"}},
	"commercial.shopping_mall":     {{Key: "shop", Value: "mall"}},
	"commercial.elektronics":       {{Key: "shop", Value: "electronics"}},
	"commercial.health_and_beauty": {{Key: "shop", Value: "chemist"}},
	"commercial.jewelry.watch":     {{Key: "shop", Value: "watches"}},
	"commercial.clothing.clothes":  {{Key: "shop", Value: "clothes"}},

	"commercial.elektronics.mobile_phones": {{Key: "shop", Value: "mobile_phone"}},
	"commercial.elektronics.computers":     {{Key: "shop", Value: "computer"}},

	"office.coworking":        {{Key: "amenity", Value: "coworking_space"}},
	"service.bank":            {{Key: "amenity", Value: "bank"}},
	"service.vehicle":         {{Key: "shop", Value: "car_repair"}},
	"service.estate_agent":    {{Key: "office", Value: "estate_agent"}},
	"service.social_facility": {{Key: "amenity", Value: "social_facility"}},
}

// rootTagKeys maps a category root to the OSM key its leaf names live under.
var rootTagKeys = map[string]string{
	"catering":      "amenity",
	"healthcare":    "amenity",
	"education":     "amenity",
	"commercial":    "shop",
	"service":       "shop",
	"office":        "office",
	"accommodation": "tourism",
}

// OverpassRepository serves POI pages from an Overpass API instance. Overpass
// has no paging, so every page re-runs the query and slices a stable ordering.
type OverpassRepository struct {
	client  *overpass.Client
	timeout time.Duration
	tags    map[string][]Tag
}

func NewOverpassRepository(endpoint string, timeout time.Duration, overrides map[string][]Tag) *OverpassRepository {
	if endpoint == "" {
		endpoint = DefaultOverpassEndpoint
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{
		Timeout: timeout,
	}
	client := overpass.NewWithSettings(endpoint, 2, httpClient)

	tags := make(map[string][]Tag, len(defaultOSMTags)+len(overrides))
	for k, v := range defaultOSMTags {
		tags[k] = v
	}
	for k, v := range overrides {
		tags[k] = v
	}
	return &OverpassRepository{
		client:  &client,
		timeout: timeout,
		tags:    tags,
	}
}

func (r *OverpassRepository) Name() string { return overpassProvider }

func (r *OverpassRepository) SearchPOIs(ctx context.Context, q model.SearchQuery) ([]model.RawPOI, error) {
	tags, ok := r.osmTagsFor(q.Category)
	if !ok {
		return nil, &model.ProviderPageError{
			Provider: overpassProvider,
			Category: q.Category,
			Offset:   q.Offset,
			Err:      fmt.Errorf("no OSM tag mapping for %q", q.Category),
		}
	}

	result, err := r.executeQuery(ctx, buildAroundQuery(tags, q.Center, q.RadiusMeters, r.timeout))
	if err != nil {
		var serverErr *overpass.ServerError
		if errors.As(err, &serverErr) {
			return nil, &model.ProviderPageError{
				Provider:   overpassProvider,
				Category:   q.Category,
				Offset:     q.Offset,
				StatusCode: serverErr.StatusCode,
				Err:        err,
			}
		}
		return nil, &model.TransportError{Provider: overpassProvider, Op: "query", Err: err}
	}

	pois := convertToPOIs(result, tags)
	if q.Offset >= len(pois) {
		return nil, nil
	}
	end := len(pois)
	if q.Limit > 0 && q.Offset+q.Limit < end {
		end = q.Offset + q.Limit
	}
	return pois[q.Offset:end], nil
}

// osmTagsFor resolves a category id to OSM tags. Explicit entries win; a
// sub-category inherits its parent's tags and narrows by cuisine for catering
// or by leaf value otherwise.
func (r *OverpassRepository) osmTagsFor(category string) ([]Tag, bool) {
	if tags, ok := r.tags[category]; ok {
		return tags, true
	}
	parts := strings.Split(category, ".")
	if len(parts) < 2 {
		return nil, false
	}
	key, ok := rootTagKeys[parts[0]]
	if !ok {
		return nil, false
	}
	leaf := parts[len(parts)-1]
	if len(parts) == 2 {
		return []Tag{{Key: key, Value: leaf}}, true
	}

	parent, ok := r.osmTagsFor(strings.Join(parts[:len(parts)-1], "."))
	if !ok {
		return nil, false
	}
	if parts[0] == "catering" {
		return append(append([]Tag(nil), parent...), Tag{Key: "cuisine", Value: leaf}), true
	}
	return []Tag{{Key: parent[0].Key, Value: leaf}}, true
}

func buildAroundQuery(tags []Tag, center model.Coordinate, radiusM float64, timeout time.Duration) string {
	var filter strings.Builder
	for _, t := range tags {
		fmt.Fprintf(&filter, "[%q=%q]", t.Key, t.Value)
	}
	around := fmt.Sprintf("(around:%s,%s,%s)", formatFloat(radiusM), formatFloat(center.Lat), formatFloat(center.Lon))

	return fmt.Sprintf(`
		[out:json][timeout:%d];
		(
			node%s%s;
			way%s%s;
		);
		out body;
		>;
		out skel qt;
	`,
		int(timeout.Seconds()),
		filter.String(), around,
		filter.String(), around)
}

// executeQuery runs the blocking client call under the repository timeout and
// returns early when ctx ends first.
func (r *OverpassRepository) executeQuery(ctx context.Context, query string) (*overpass.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		result overpass.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := r.client.Query(query)
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("overpass query aborted: %w", ctx.Err())
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("overpass query failed: %w", out.err)
		}
		return &out.result, nil
	}
}

func matchesTags(elementTags map[string]string, tags []Tag) bool {
	for _, t := range tags {
		if elementTags[t.Key] != t.Value {
			return false
		}
	}
	return true
}

// convertToPOIs keeps tagged nodes and ways matching tags, ordered by element
// type and id. Ways are placed at the centroid of their member nodes; a way
// with neither nodes nor bounds is kept and flagged NoGeometry.
func convertToPOIs(result *overpass.Result, tags []Tag) []model.RawPOI {
	type element struct {
		kind string
		id   int64
		poi  model.RawPOI
	}
	var elements []element

	for _, node := range result.Nodes {
		if !matchesTags(node.Tags, tags) {
			continue
		}
		elements = append(elements, element{
			kind: string(overpass.ElementTypeNode),
			id:   node.ID,
			poi: model.RawPOI{
				Coordinate: model.Coordinate{Lat: node.Lat, Lon: node.Lon},
				Properties: node.Tags,
			},
		})
	}

	for _, way := range result.Ways {
		if !matchesTags(way.Tags, tags) {
			continue
		}
		center, ok := wayCentroid(way)
		elements = append(elements, element{
			kind: string(overpass.ElementTypeWay),
			id:   way.ID,
			poi: model.RawPOI{
				Coordinate: center,
				Properties: way.Tags,
				NoGeometry: !ok,
			},
		})
	}

	sort.Slice(elements, func(i, j int) bool {
		if elements[i].kind != elements[j].kind {
			return elements[i].kind < elements[j].kind
		}
		return elements[i].id < elements[j].id
	})

	pois := make([]model.RawPOI, len(elements))
	for i, e := range elements {
		e.poi.PlaceID = fmt.Sprintf("%s/%d", e.kind, e.id)
		e.poi.Name = e.poi.Properties["name"]
		pois[i] = e.poi
	}
	return pois
}

func wayCentroid(way *overpass.Way) (model.Coordinate, bool) {
	var lat, lon float64
	count := 0
	for _, node := range way.Nodes {
		lat += node.Lat
		lon += node.Lon
		count++
	}
	if count > 0 {
		return model.Coordinate{Lat: lat / float64(count), Lon: lon / float64(count)}, true
	}
	if way.Bounds != nil {
		return model.Coordinate{
			Lat: (way.Bounds.Min.Lat + way.Bounds.Max.Lat) / 2,
			Lon: (way.Bounds.Min.Lon + way.Bounds.Max.Lon) / 2,
		}, true
	}
	return model.Coordinate{}, false
}
