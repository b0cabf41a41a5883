package analytics

import (
	"strconv"
	"strings"
)

// DefaultMaxLimit is the hard row-count ceiling applied to every compiled
// query. The caller's requested limit is clamped to it.
const DefaultMaxLimit = 1000

// CompiledQuery is a parameterized statement ready for execution. The SQL
// text contains no user-supplied literal values; everything that originated
// in the spec appears only in Params, in placeholder order.
type CompiledQuery struct {
	SQL    string
	Params []any
	Source string
	Store  string
}

// Compile validates a spec against the registry and builds the final
// statement. It is pure: a fresh parameter cursor per call, no shared state,
// safe to call concurrently.
func Compile(reg *Registry, spec QuerySpec, maxLimit int) (CompiledQuery, error) {
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}

	src, err := reg.Source(spec.Source)
	if err != nil {
		return CompiledQuery{}, err
	}
	if len(spec.Dimensions) == 0 && len(spec.Metrics) == 0 {
		return CompiledQuery{}, ErrEmptyProjection
	}
	store, err := reg.Store(src.Store)
	if err != nil {
		return CompiledQuery{}, err
	}

	cols, err := buildProjection(src, store.Dialect, spec)
	if err != nil {
		return CompiledQuery{}, err
	}

	cur := &paramCursor{}
	where, err := buildPredicate(src, spec.Filters, cur)
	if err != nil {
		return CompiledQuery{}, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(src.Table)

	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	// Grouping is meaningless for a pure projection query.
	if len(spec.Metrics) > 0 && len(spec.Dimensions) > 0 {
		groupBy, err := buildGroupBy(src, store.Dialect, spec.Dimensions)
		if err != nil {
			return CompiledQuery{}, err
		}
		sb.WriteString(" GROUP BY ")
		sb.WriteString(groupBy)
	}

	if len(spec.OrderBy) > 0 {
		orderBy, err := buildOrderBy(spec.OrderBy)
		if err != nil {
			return CompiledQuery{}, err
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(orderBy)
	}

	sb.WriteString(" LIMIT ")
	sb.WriteString(strconv.Itoa(clampLimit(spec.Limit, maxLimit)))

	return CompiledQuery{
		SQL:    sb.String(),
		Params: cur.values,
		Source: src.Key,
		Store:  src.Store,
	}, nil
}

// clampLimit returns min(requested, max), or max when no limit was requested.
func clampLimit(requested, maxLimit int) int {
	if requested <= 0 || requested > maxLimit {
		return maxLimit
	}
	return requested
}
