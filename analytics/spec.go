package analytics

// QuerySpec is a declarative report definition submitted by a caller: which
// columns to group by, which metrics to aggregate, which filters to apply.
// Specs are validated against the source registry before any SQL is built.
type QuerySpec struct {
	Source     string       `json:"source"`
	Dimensions []Dimension  `json:"dimensions,omitempty"`
	Metrics    []Metric     `json:"metrics,omitempty"`
	Filters    *FilterGroup `json:"filters,omitempty"`
	OrderBy    []OrderBy    `json:"orderBy,omitempty"`
	Limit      int          `json:"limit,omitempty"`
}

// Dimension is a grouping column, optionally bucketed by a date transform.
type Dimension struct {
	Field     string `json:"field"`
	Transform string `json:"transform,omitempty"`
	Alias     string `json:"alias,omitempty"`
}

// Metric is an aggregated column.
type Metric struct {
	Field       string `json:"field"`
	Aggregation string `json:"aggregation"`
	Alias       string `json:"alias,omitempty"`
}

// FilterGroup is a flat list of conditions joined by one logical operator.
// Nested groups are not supported.
type FilterGroup struct {
	Operator   string      `json:"operator"`
	Conditions []Condition `json:"conditions"`
}

// Condition filters rows by a single field. The shape of Value depends on the
// operator: scalar for comparisons, a two-element array for BETWEEN, an array
// for IN/NOT IN, and absent for the nullity operators.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

// OrderBy sorts the result set by a field or a projected alias.
type OrderBy struct {
	Field     string `json:"field"`
	Direction string `json:"direction,omitempty"`
}
