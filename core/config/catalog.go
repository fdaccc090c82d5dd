package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed sources.yaml
var defaultCatalog []byte

// Catalog describes every upstream source the agents read from, keyed by area code (PS, IU, LZ).
type Catalog struct {
	Datasets map[string]DatasetGroup `yaml:"datasets"`
	News     NewsCatalog             `yaml:"news"`
	Gov      map[string]GovCatalog   `yaml:"gov"`
}

// DatasetGroup is the set of SODA datasets fetched for one area under a single cache key.
type DatasetGroup struct {
	CacheKey string        `yaml:"cacheKey"`
	Datasets []DatasetSpec `yaml:"datasets"`
}

type DatasetSpec struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Key        string `yaml:"key"`
	DateField  string `yaml:"dateField"`  // empty = no time window
	WindowDays int    `yaml:"windowDays"` // ignored without dateField
	OrderField string `yaml:"orderField"` // defaults to dateField
	Limit      int    `yaml:"limit"`
}

type NewsCatalog struct {
	MaxArticles int                 `yaml:"maxArticles"`
	Keywords    map[string][]string `yaml:"keywords"`
	Pages       []PageSpec          `yaml:"pages"`
}

type GovCatalog struct {
	PassA []PageSpec `yaml:"passA"`
	PassB []PageSpec `yaml:"passB"`
}

// PageSpec is an HTML listing page and the CSS selectors used to extract its entries.
type PageSpec struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Item     string `yaml:"item"`
	Title    string `yaml:"title"`
	Summary  string `yaml:"summary"`
	Date     string `yaml:"date"`
	Link     string `yaml:"link"`
	MaxItems int    `yaml:"maxItems"`
}

// LoadCatalog reads the source catalog from path, or the embedded default when path is empty.
func LoadCatalog(path string) (Catalog, error) {
	data := defaultCatalog
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Catalog{}, fmt.Errorf("reading source catalog: %w", err)
		}
		data = raw
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog and fills defaults.
func ParseCatalog(data []byte) (Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("parsing source catalog: %w", err)
	}

	if catalog.News.MaxArticles <= 0 {
		catalog.News.MaxArticles = 5
	}
	for area, group := range catalog.Datasets {
		if group.CacheKey == "" {
			group.CacheKey = area + "_DATA"
		}
		for i := range group.Datasets {
			ds := &group.Datasets[i]
			if ds.ID == "" {
				return Catalog{}, fmt.Errorf("dataset %d in area %s has no id", i, area)
			}
			if ds.Limit <= 0 {
				ds.Limit = 50
			}
			if ds.OrderField == "" {
				ds.OrderField = ds.DateField
			}
			if ds.Key == "" {
				ds.Key = ds.ID
			}
		}
		catalog.Datasets[area] = group
	}

	return catalog, nil
}
