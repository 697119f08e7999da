package model

import "sort"

type Domain struct {
	Key        string   `yaml:"key" json:"key"`
	Code       string   `yaml:"code" json:"code"`
	Label      string   `yaml:"label" json:"label"`
	Categories []string `yaml:"categories" json:"categories"`
}

// Catalog is the immutable domain -> category -> sub-category configuration.
// Build it with NewCatalog; the zero value is an empty catalog.
type Catalog struct {
	domains       map[string]Domain
	subcategories map[string][]string
}

func NewCatalog(domains []Domain, subcategories map[string][]string) Catalog {
	c := Catalog{
		domains:       make(map[string]Domain, len(domains)),
		subcategories: make(map[string][]string, len(subcategories)),
	}
	for _, d := range domains {
		d.Categories = append([]string(nil), d.Categories...)
		c.domains[d.Key] = d
	}
	for cat, subs := range subcategories {
		c.subcategories[cat] = append([]string(nil), subs...)
	}
	return c
}

// Domain returns a copy of the configured domain.
func (c Catalog) Domain(key string) (Domain, bool) {
	d, ok := c.domains[key]
	if !ok {
		return Domain{}, false
	}
	d.Categories = append([]string(nil), d.Categories...)
	return d, true
}

func (c Catalog) Subcategories(category string) []string {
	subs := c.subcategories[category]
	if len(subs) == 0 {
		return nil
	}
	return append([]string(nil), subs...)
}

// Domains lists every domain sorted by key.
func (c Catalog) Domains() []Domain {
	out := make([]Domain, 0, len(c.domains))
	for key := range c.domains {
		d, _ := c.Domain(key)
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (c Catalog) Len() int { return len(c.domains) }
