package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"gap_service/internal/domain/model"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

type catalogFile struct {
	Domains       []model.Domain      `yaml:"domains"`
	Subcategories map[string][]string `yaml:"subcategories"`
}

// DefaultCatalog returns the built-in seven domain catalog.
func DefaultCatalog() model.Catalog {
	catalog, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("config: built-in catalog is invalid: %v", err))
	}
	return catalog
}

func LoadCatalogFile(path string) (model.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Catalog{}, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (model.Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return model.Catalog{}, fmt.Errorf("failed to parse catalog: %w", err)
	}

	seen := make(map[string]bool, len(file.Domains))
	for i, d := range file.Domains {
		if d.Key == "" {
			return model.Catalog{}, fmt.Errorf("catalog domain #%d has no key", i+1)
		}
		if seen[d.Key] {
			return model.Catalog{}, fmt.Errorf("catalog domain %q is defined twice", d.Key)
		}
		seen[d.Key] = true
		if len(d.Categories) == 0 {
			return model.Catalog{}, fmt.Errorf("catalog domain %q has no categories", d.Key)
		}
	}
	return model.NewCatalog(file.Domains, file.Subcategories), nil
}

// CatalogLoader reads a catalog from an external store.
type CatalogLoader interface {
	LoadCatalog(ctx context.Context) (model.Catalog, error)
}

// ResolveCatalog picks the catalog configured in cfg. loader is only consulted
// for the postgres source.
func ResolveCatalog(ctx context.Context, cfg CatalogConfig, loader CatalogLoader) (model.Catalog, error) {
	switch cfg.Source {
	case CatalogFile:
		return LoadCatalogFile(cfg.Path)
	case CatalogPostgres:
		if loader == nil {
			return model.Catalog{}, fmt.Errorf("no loader for catalog source %q", cfg.Source)
		}
		return loader.LoadCatalog(ctx)
	default:
		return DefaultCatalog(), nil
	}
}
