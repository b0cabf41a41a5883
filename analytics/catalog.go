package analytics

import "sort"

// Catalog is the read-only reflection of the registry used to drive the
// report-builder UI. It reveals schema metadata only, never data.
type Catalog struct {
	Sources        []CatalogSource        `json:"sources"`
	Aggregations   map[FieldType][]string `json:"aggregations"`
	DateTransforms []string               `json:"dateTransforms"`
	Operators      []string               `json:"operators"`
}

// CatalogSource is one source with its fields grouped by display category.
type CatalogSource struct {
	Key         string            `json:"key"`
	Label       string            `json:"label"`
	Description string            `json:"description,omitempty"`
	Categories  []CatalogCategory `json:"categories"`
}

type CatalogCategory struct {
	Name   string         `json:"name"`
	Fields []CatalogField `json:"fields"`
}

type CatalogField struct {
	Name  string    `json:"name"`
	Label string    `json:"label"`
	Type  FieldType `json:"type"`
}

// Catalog enumerates the registry with deterministic ordering (sources by
// key, categories and fields by name).
func (r *Registry) Catalog() Catalog {
	sources := r.Sources()
	out := Catalog{
		Sources:        make([]CatalogSource, 0, len(sources)),
		Aggregations:   aggregationsByType,
		DateTransforms: sortedKeys(dateTransforms),
		Operators:      operatorTokens(),
	}

	for _, src := range sources {
		byCategory := map[string][]CatalogField{}
		for name, fd := range src.Fields {
			byCategory[fd.Category] = append(byCategory[fd.Category], CatalogField{
				Name:  name,
				Label: fd.Label,
				Type:  fd.Type,
			})
		}

		cs := CatalogSource{
			Key:         src.Key,
			Label:       src.Label,
			Description: src.Description,
		}
		for _, name := range sortedKeys(byCategory) {
			fields := byCategory[name]
			sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
			cs.Categories = append(cs.Categories, CatalogCategory{Name: name, Fields: fields})
		}
		out.Sources = append(out.Sources, cs)
	}

	return out
}

// operatorTokens returns the canonical operator set, deduplicated (aliases
// like <> fold into !=) and sorted.
func operatorTokens() []string {
	seen := map[string]bool{}
	for _, def := range operators {
		seen[def.Token] = true
	}
	return sortedKeys(seen)
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
