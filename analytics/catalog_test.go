package analytics

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalog(t *testing.T) {
	cat := testRegistry(t).Catalog()

	if len(cat.Sources) != 3 {
		t.Fatalf("catalog has %d sources, want 3", len(cat.Sources))
	}
	assert.Equal(t, "deal_events", cat.Sources[0].Key)
	assert.Equal(t, "deals", cat.Sources[1].Key)
	assert.Equal(t, "facilities", cat.Sources[2].Key)

	assert.Equal(t, []string{"day", "month", "quarter", "week", "year"}, cat.DateTransforms)

	// Aliases fold into their canonical token; <> must not appear beside !=.
	assert.Contains(t, cat.Operators, "!=")
	assert.NotContains(t, cat.Operators, "<>")
	assert.Contains(t, cat.Operators, "BETWEEN")
	assert.Contains(t, cat.Operators, "IS NOT NULL")
	if !sort.StringsAreSorted(cat.Operators) {
		t.Errorf("operators not sorted: %v", cat.Operators)
	}

	assert.ElementsMatch(t, []string{"COUNT", "COUNT_DISTINCT", "SUM", "AVG", "MIN", "MAX"}, cat.Aggregations[FieldNumber])
	assert.ElementsMatch(t, []string{"COUNT", "COUNT_DISTINCT", "MIN", "MAX"}, cat.Aggregations[FieldString])
	assert.ElementsMatch(t, []string{"COUNT", "COUNT_DISTINCT"}, cat.Aggregations[FieldBoolean])
}

func TestCatalogGroupsFieldsByCategory(t *testing.T) {
	cat := testRegistry(t).Catalog()

	var facilities CatalogSource
	for _, src := range cat.Sources {
		if src.Key == "facilities" {
			facilities = src
		}
	}
	if facilities.Key == "" {
		t.Fatal("facilities missing from catalog")
	}

	names := make([]string, 0, len(facilities.Categories))
	total := 0
	for _, cat := range facilities.Categories {
		names = append(names, cat.Name)
		total += len(cat.Fields)
		if !sort.SliceIsSorted(cat.Fields, func(i, j int) bool { return cat.Fields[i].Name < cat.Fields[j].Name }) {
			t.Errorf("category %q fields not sorted", cat.Name)
		}
		for _, f := range cat.Fields {
			if f.Label == "" {
				t.Errorf("field %q has no label", f.Name)
			}
		}
	}
	assert.Equal(t, []string{"Capacity", "Dates", "General", "Location", "Quality"}, names)
	if total != 10 {
		t.Errorf("facilities catalog exposes %d fields, want 10", total)
	}
}
