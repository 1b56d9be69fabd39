package terminology

import (
	"encoding/json"
	"fmt"
	"os"
)

// catalogFile is the on-disk shape of a concept catalog export.
type catalogFile struct {
	Concepts []Concept `json:"concepts"`
}

// LoadCatalogFile reads a JSON concept export into a MemoryCatalog. Used for
// deployments that run without a catalog database.
func LoadCatalogFile(path string) (*MemoryCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("terminology: read catalog: %w", err)
	}

	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("terminology: parse catalog %s: %w", path, err)
	}

	catalog := NewMemoryCatalog()
	for _, concept := range file.Concepts {
		if concept.Code == "" || concept.Display == "" {
			continue
		}
		catalog.Add(concept)
	}
	return catalog, nil
}
