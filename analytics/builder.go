package analytics

import (
	"fmt"
	"strconv"
	"strings"
)

// paramCursor threads one monotonically increasing placeholder index through
// every clause builder, so all clauses share a single parameter space. A
// fresh cursor is created per compilation; nothing is shared between calls.
type paramCursor struct {
	values []any
}

// bind appends a value to the parameter list and returns its placeholder.
func (c *paramCursor) bind(v any) string {
	c.values = append(c.values, v)
	return "$" + strconv.Itoa(len(c.values))
}

// dimensionExpr builds the SQL expression for a dimension, without an alias.
// The projection and group-by builders both call this so the grouping
// expressions are textually identical to the projected ones by construction.
func dimensionExpr(src SourceDefinition, dialect Dialect, d Dimension) (string, error) {
	fd, err := src.ValidateField(d.Field)
	if err != nil {
		return "", err
	}
	if d.Transform == "" {
		return d.Field, nil
	}
	tmpl, err := ValidateDateTransform(d.Transform, d.Field, fd, dialect)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(tmpl, "{field}", d.Field), nil
}

// dimensionAlias returns the caller's alias or the deterministic default
// (field, or field_transform when bucketed).
func dimensionAlias(d Dimension) string {
	if d.Alias != "" {
		return d.Alias
	}
	if d.Transform != "" {
		return d.Field + "_" + strings.ToLower(strings.TrimSpace(d.Transform))
	}
	return d.Field
}

// metricAlias returns the caller's alias or the deterministic default
// (aggregation_field, lower-cased).
func metricAlias(m Metric) string {
	if m.Alias != "" {
		return m.Alias
	}
	return strings.ToLower(canonicalToken(m.Aggregation)) + "_" + m.Field
}

// buildProjection turns the spec's dimensions and metrics into a list of
// "<expr> AS <alias>" fragments, in spec order, dimensions first.
func buildProjection(src SourceDefinition, dialect Dialect, spec QuerySpec) ([]string, error) {
	cols := make([]string, 0, len(spec.Dimensions)+len(spec.Metrics))

	for _, d := range spec.Dimensions {
		expr, err := dimensionExpr(src, dialect, d)
		if err != nil {
			return nil, err
		}
		alias := dimensionAlias(d)
		if err := validateIdentifier(alias); err != nil {
			return nil, err
		}
		cols = append(cols, expr+" AS "+alias)
	}

	for _, m := range spec.Metrics {
		if _, err := src.ValidateField(m.Field); err != nil {
			return nil, err
		}
		agg, err := ValidateAggregation(m.Aggregation)
		if err != nil {
			return nil, err
		}
		var expr string
		switch agg.Kind {
		case aggTemplate:
			expr = strings.ReplaceAll(agg.Template, "{field}", m.Field)
		default:
			expr = agg.Name + "(" + m.Field + ")"
		}
		alias := metricAlias(m)
		if err := validateIdentifier(alias); err != nil {
			return nil, err
		}
		cols = append(cols, expr+" AS "+alias)
	}

	return cols, nil
}

// buildPredicate turns the filter group into a WHERE clause body, binding
// every user value through the cursor. Returns "" when there is nothing to
// filter on.
func buildPredicate(src SourceDefinition, group *FilterGroup, cur *paramCursor) (string, error) {
	if group == nil || len(group.Conditions) == 0 {
		return "", nil
	}

	joiner, err := filterJoiner(group.Operator)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(group.Conditions))
	for _, cond := range group.Conditions {
		frag, err := buildCondition(src, cond, cur)
		if err != nil {
			return "", err
		}
		parts = append(parts, frag)
	}

	return strings.Join(parts, " "+joiner+" "), nil
}

func filterJoiner(op string) (string, error) {
	switch canonicalToken(op) {
	case "AND", "":
		return "AND", nil
	case "OR":
		return "OR", nil
	default:
		return "", fmt.Errorf("%w: filter group operator %q", ErrMalformedValue, op)
	}
}

func buildCondition(src SourceDefinition, cond Condition, cur *paramCursor) (string, error) {
	if _, err := src.ValidateField(cond.Field); err != nil {
		return "", err
	}
	op, err := ValidateOperator(cond.Operator)
	if err != nil {
		return "", err
	}

	switch op.Arity {
	case arityNone:
		return cond.Field + " " + op.Token, nil

	case arityList:
		items, ok := cond.Value.([]any)
		if !ok {
			return "", fmt.Errorf("%w: %s requires an array value on field %q", ErrMalformedValue, op.Token, cond.Field)
		}
		if len(items) == 0 {
			return "", fmt.Errorf("%w: %s requires a non-empty array on field %q", ErrMalformedValue, op.Token, cond.Field)
		}
		placeholders := make([]string, len(items))
		for i, v := range items {
			placeholders[i] = cur.bind(v)
		}
		return cond.Field + " " + op.Token + " (" + strings.Join(placeholders, ", ") + ")", nil

	case arityPair:
		items, ok := cond.Value.([]any)
		if !ok || len(items) != 2 {
			return "", fmt.Errorf("%w: BETWEEN requires exactly two values on field %q", ErrMalformedValue, cond.Field)
		}
		return cond.Field + " BETWEEN " + cur.bind(items[0]) + " AND " + cur.bind(items[1]), nil

	case arityPattern:
		// The wildcard wrapping happens value-side: the caller's input is
		// bound as one opaque parameter and never parsed as a pattern here.
		return cond.Field + " " + op.Token + " " + cur.bind(fmt.Sprintf("%%%v%%", cond.Value)), nil

	default:
		return cond.Field + " " + op.Token + " " + cur.bind(cond.Value), nil
	}
}

// buildGroupBy re-derives the grouping expressions from the dimensions. Only
// meaningful when the spec also aggregates; the compiler skips it otherwise.
// Expressions are emitted without aliases but are textually identical to the
// projected ones.
func buildGroupBy(src SourceDefinition, dialect Dialect, dims []Dimension) (string, error) {
	exprs := make([]string, 0, len(dims))
	for _, d := range dims {
		expr, err := dimensionExpr(src, dialect, d)
		if err != nil {
			return "", err
		}
		exprs = append(exprs, expr)
	}
	return strings.Join(exprs, ", "), nil
}

// buildOrderBy accepts field-or-alias tokens. It deliberately does not check
// the field whitelist, since callers legitimately order by a projected alias
// that has no FieldDefinition; the token charset is constrained instead so
// this relaxed path still cannot carry SQL text.
func buildOrderBy(items []OrderBy) (string, error) {
	parts := make([]string, 0, len(items))
	for _, o := range items {
		if err := validateIdentifier(o.Field); err != nil {
			return "", err
		}
		dir := "ASC"
		if strings.EqualFold(strings.TrimSpace(o.Direction), "DESC") {
			dir = "DESC"
		}
		parts = append(parts, o.Field+" "+dir)
	}
	return strings.Join(parts, ", "), nil
}
