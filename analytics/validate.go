package analytics

import (
	"errors"
	"fmt"
	"strings"
)

// Validation failures. All are detected before any pool is touched and are
// fatal to the request; nothing here is retried or silently coerced.
var (
	ErrUnknownSource          = errors.New("unknown source")
	ErrUnknownStore           = errors.New("unknown store")
	ErrUnknownField           = errors.New("unknown field")
	ErrUnsupportedOperator    = errors.New("unsupported operator")
	ErrUnsupportedAggregation = errors.New("unsupported aggregation")
	ErrUnsupportedTransform   = errors.New("unsupported date transform")
	ErrMalformedValue         = errors.New("malformed condition value")
	ErrInvalidIdentifier      = errors.New("invalid identifier")
	ErrEmptyProjection        = errors.New("report must include at least one dimension or metric")
)

// operatorArity determines how a condition's value is bound.
type operatorArity int

const (
	arityScalar operatorArity = iota // one placeholder
	arityPair                        // exactly two placeholders (BETWEEN)
	arityList                        // one placeholder per element (IN / NOT IN)
	arityNone                        // no placeholder (nullity)
	arityPattern                     // one placeholder, value wrapped in %...% (LIKE / ILIKE)
)

type operatorDef struct {
	Token string // canonical SQL token
	Arity operatorArity
}

// operators is the exhaustive whitelist of condition operators, keyed by
// canonicalized token. <> is folded into !=.
var operators = map[string]operatorDef{
	"=":           {Token: "=", Arity: arityScalar},
	"!=":          {Token: "!=", Arity: arityScalar},
	"<>":          {Token: "!=", Arity: arityScalar},
	">":           {Token: ">", Arity: arityScalar},
	">=":          {Token: ">=", Arity: arityScalar},
	"<":           {Token: "<", Arity: arityScalar},
	"<=":          {Token: "<=", Arity: arityScalar},
	"LIKE":        {Token: "LIKE", Arity: arityPattern},
	"ILIKE":       {Token: "ILIKE", Arity: arityPattern},
	"IN":          {Token: "IN", Arity: arityList},
	"NOT IN":      {Token: "NOT IN", Arity: arityList},
	"IS NULL":     {Token: "IS NULL", Arity: arityNone},
	"IS NOT NULL": {Token: "IS NOT NULL", Arity: arityNone},
	"BETWEEN":     {Token: "BETWEEN", Arity: arityPair},
}

type aggregationKind int

const (
	// aggSimple wraps the field in a plain function call, e.g. SUM(beds).
	aggSimple aggregationKind = iota
	// aggTemplate embeds the field inside a fixed pattern, e.g.
	// COUNT(DISTINCT beds). The pattern carries a {field} token.
	aggTemplate
)

type aggregationDef struct {
	Name     string
	Kind     aggregationKind
	Template string
}

// aggregations is the exhaustive whitelist of aggregation functions.
var aggregations = map[string]aggregationDef{
	"COUNT":          {Name: "COUNT", Kind: aggSimple},
	"SUM":            {Name: "SUM", Kind: aggSimple},
	"AVG":            {Name: "AVG", Kind: aggSimple},
	"MIN":            {Name: "MIN", Kind: aggSimple},
	"MAX":            {Name: "MAX", Kind: aggSimple},
	"COUNT_DISTINCT": {Name: "COUNT_DISTINCT", Kind: aggTemplate, Template: "COUNT(DISTINCT {field})"},
}

// aggregationsByType drives the catalog's per-type aggregation hints. The
// builder itself only enforces membership in the whitelist.
var aggregationsByType = map[FieldType][]string{
	FieldNumber:  {"COUNT", "SUM", "AVG", "MIN", "MAX", "COUNT_DISTINCT"},
	FieldString:  {"COUNT", "COUNT_DISTINCT", "MIN", "MAX"},
	FieldDate:    {"COUNT", "COUNT_DISTINCT", "MIN", "MAX"},
	FieldBoolean: {"COUNT", "COUNT_DISTINCT"},
}

// dateTransforms maps each granularity to a locale-stable formatting template
// per store dialect. Templates substitute {field}, which may appear more than
// once.
var dateTransforms = map[string]map[Dialect]string{
	"year": {
		DialectPostgres:   "TO_CHAR({field}, 'YYYY')",
		DialectClickHouse: "formatDateTime({field}, '%Y')",
	},
	"quarter": {
		DialectPostgres:   `TO_CHAR({field}, 'YYYY-"Q"Q')`,
		DialectClickHouse: "concat(toString(toYear({field})), '-Q', toString(toQuarter({field})))",
	},
	"month": {
		DialectPostgres:   "TO_CHAR({field}, 'YYYY-MM')",
		DialectClickHouse: "formatDateTime({field}, '%Y-%m')",
	},
	"week": {
		DialectPostgres:   "TO_CHAR({field}, 'IYYY-IW')",
		DialectClickHouse: "formatDateTime({field}, '%G-%V')",
	},
	"day": {
		DialectPostgres:   "TO_CHAR({field}, 'YYYY-MM-DD')",
		DialectClickHouse: "formatDateTime({field}, '%Y-%m-%d')",
	},
}

// ValidateField resolves a field against a source's declared field set.
func (r *Registry) ValidateField(sourceKey, field string) (FieldDefinition, error) {
	src, err := r.Source(sourceKey)
	if err != nil {
		return FieldDefinition{}, err
	}
	return src.ValidateField(field)
}

// ValidateField resolves a field against this source's declared field set.
func (s SourceDefinition) ValidateField(field string) (FieldDefinition, error) {
	fd, ok := s.Fields[field]
	if !ok {
		return FieldDefinition{}, fmt.Errorf("%w: %q is not declared on source %q", ErrUnknownField, field, s.Key)
	}
	return fd, nil
}

// canonicalToken upper-cases and collapses interior whitespace so that
// "not  in" and "NOT IN" resolve to the same entry.
func canonicalToken(tok string) string {
	return strings.Join(strings.Fields(strings.ToUpper(tok)), " ")
}

// ValidateOperator resolves an operator token case-insensitively against the
// fixed operator set.
func ValidateOperator(tok string) (operatorDef, error) {
	def, ok := operators[canonicalToken(tok)]
	if !ok {
		return operatorDef{}, fmt.Errorf("%w: %q", ErrUnsupportedOperator, tok)
	}
	return def, nil
}

// ValidateAggregation resolves an aggregation token case-insensitively
// against the fixed aggregation set.
func ValidateAggregation(tok string) (aggregationDef, error) {
	def, ok := aggregations[canonicalToken(tok)]
	if !ok {
		return aggregationDef{}, fmt.Errorf("%w: %q", ErrUnsupportedAggregation, tok)
	}
	return def, nil
}

// ValidateDateTransform resolves a granularity token to the formatting
// template for the given dialect. Transforms are only legal on date fields;
// applying one to any other type is a validation failure, not a no-op.
func ValidateDateTransform(tok string, field string, fd FieldDefinition, dialect Dialect) (string, error) {
	templates, ok := dateTransforms[strings.ToLower(strings.TrimSpace(tok))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedTransform, tok)
	}
	if fd.Type != FieldDate {
		return "", fmt.Errorf("%w: %q cannot be applied to non-date field %q", ErrUnsupportedTransform, tok, field)
	}
	tmpl, ok := templates[dialect]
	if !ok {
		return "", fmt.Errorf("%w: %q has no template for dialect %q", ErrUnsupportedTransform, tok, dialect)
	}
	return tmpl, nil
}

// validateIdentifier guards tokens that reach SQL text without a placeholder,
// such as caller-supplied aliases and order-by targets.
func validateIdentifier(tok string) error {
	if !identifierRE.MatchString(tok) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, tok)
	}
	return nil
}
