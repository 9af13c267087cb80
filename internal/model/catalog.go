package model

import (
	"encoding/json"
	"fmt"
)

// CatalogItem is one priced product inside a package description.
type CatalogItem struct {
	ProductID string `json:"id" yaml:"id"`
	Cost      string `json:"cost" yaml:"cost"` // display price, e.g. "¥1,200"
	Minute    int    `json:"minute" yaml:"minute"`
	Name      string `json:"name" yaml:"name"`
}

// CatalogPackage is a decoded active package.
type CatalogPackage struct {
	ID      uint          `json:"id"`
	Package PackageType   `json:"package"`
	Status  int           `json:"status"`
	Items   []CatalogItem `json:"items"`
}

func (p *Package) Catalog() (*CatalogPackage, error) {
	var items []CatalogItem
	if len(p.Description) > 0 {
		if err := json.Unmarshal(p.Description, &items); err != nil {
			return nil, fmt.Errorf("decode package %s description: %w", p.Package, err)
		}
	}

	return &CatalogPackage{
		ID:      p.ID,
		Package: p.Package,
		Status:  p.Status,
		Items:   items,
	}, nil
}
