package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"gap_service/internal/domain/model"
)

const postgisProvider = "postgis"

// OpenPostgres connects and pings the database behind dsn.
func OpenPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

// PostGISRepository serves POIs from a local table of imported places:
//
//	poi_places(place_id text, name text, category text, geom geometry(Point, 4326))
type PostGISRepository struct {
	db *sqlx.DB
}

func NewPostGISRepository(db *sqlx.DB) *PostGISRepository {
	return &PostGISRepository{db: db}
}

func (r *PostGISRepository) Name() string { return postgisProvider }

type poiRow struct {
	PlaceID string  `db:"place_id"`
	Name    string  `db:"name"`
	Lat     float64 `db:"lat"`
	Lon     float64 `db:"lon"`
}

func (r *PostGISRepository) SearchPOIs(ctx context.Context, q model.SearchQuery) ([]model.RawPOI, error) {
	const query = `
		SELECT
			COALESCE(place_id, '') AS place_id,
			COALESCE(name, '') AS name,
			ST_Y(geom) AS lat,
			ST_X(geom) AS lon
		FROM poi_places
		WHERE category = $1
		AND ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography, $4)
		ORDER BY place_id, name, lat, lon
		LIMIT $5 OFFSET $6`

	var rows []poiRow
	err := r.db.SelectContext(ctx, &rows, query,
		q.Category,
		q.Center.Lon, q.Center.Lat,
		q.RadiusMeters,
		q.Limit, q.Offset,
	)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) {
			return nil, &model.ProviderPageError{
				Provider: postgisProvider,
				Category: q.Category,
				Offset:   q.Offset,
				Err:      fmt.Errorf("failed to query places: %w", err),
			}
		}
		return nil, &model.TransportError{Provider: postgisProvider, Op: "select", Err: err}
	}

	pois := make([]model.RawPOI, len(rows))
	for i, row := range rows {
		pois[i] = model.RawPOI{
			PlaceID:    row.PlaceID,
			Name:       row.Name,
			Coordinate: model.Coordinate{Lat: row.Lat, Lon: row.Lon},
		}
	}
	return pois, nil
}

// PostgresCatalogLoader reads the domain catalog from
//
//	business_domains(key, code, label, position)
//	domain_categories(domain_key, category, position)
//	subcategories(category, subcategory, position)
type PostgresCatalogLoader struct {
	db *sqlx.DB
}

func NewPostgresCatalogLoader(db *sqlx.DB) *PostgresCatalogLoader {
	return &PostgresCatalogLoader{db: db}
}

type domainRow struct {
	Key   string `db:"key"`
	Code  string `db:"code"`
	Label string `db:"label"`
}

type pairRow struct {
	Parent string `db:"parent"`
	Child  string `db:"child"`
}

func (l *PostgresCatalogLoader) LoadCatalog(ctx context.Context) (model.Catalog, error) {
	var domains []domainRow
	err := l.db.SelectContext(ctx, &domains, `
		SELECT key, code, label
		FROM business_domains
		ORDER BY position, key`)
	if err != nil {
		return model.Catalog{}, fmt.Errorf("failed to query business domains: %w", err)
	}

	var categories []pairRow
	err = l.db.SelectContext(ctx, &categories, `
		SELECT domain_key AS parent, category AS child
		FROM domain_categories
		ORDER BY domain_key, position`)
	if err != nil {
		return model.Catalog{}, fmt.Errorf("failed to query domain categories: %w", err)
	}

	var subs []pairRow
	err = l.db.SelectContext(ctx, &subs, `
		SELECT category AS parent, subcategory AS child
		FROM subcategories
		ORDER BY category, position`)
	if err != nil {
		return model.Catalog{}, fmt.Errorf("failed to query subcategories: %w", err)
	}

	byDomain := make(map[string][]string, len(domains))
	for _, c := range categories {
		byDomain[c.Parent] = append(byDomain[c.Parent], c.Child)
	}
	out := make([]model.Domain, 0, len(domains))
	for _, d := range domains {
		out = append(out, model.Domain{Key: d.Key, Code: d.Code, Label: d.Label, Categories: byDomain[d.Key]})
	}

	subcategories := make(map[string][]string)
	for _, s := range subs {
		subcategories[s.Parent] = append(subcategories[s.Parent], s.Child)
	}
	return model.NewCatalog(out, subcategories), nil
}
