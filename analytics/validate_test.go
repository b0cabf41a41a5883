package analytics

import (
	"errors"
	"testing"
)

func TestValidateOperator(t *testing.T) {
	tests := []struct {
		input string
		token string
	}{
		{"=", "="},
		{"!=", "!="},
		{"<>", "!="},
		{">", ">"},
		{">=", ">="},
		{"<", "<"},
		{"<=", "<="},
		{"like", "LIKE"},
		{"ILIKE", "ILIKE"},
		{"in", "IN"},
		{"not in", "NOT IN"},
		{"NOT  IN", "NOT IN"},
		{"is null", "IS NULL"},
		{"Is Not Null", "IS NOT NULL"},
		{"between", "BETWEEN"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			def, err := ValidateOperator(tt.input)
			if err != nil {
				t.Fatalf("ValidateOperator(%q) error: %v", tt.input, err)
			}
			if def.Token != tt.token {
				t.Errorf("ValidateOperator(%q).Token = %q, want %q", tt.input, def.Token, tt.token)
			}
		})
	}
}

func TestValidateOperatorRejectsUnknown(t *testing.T) {
	for _, tok := range []string{"", "==", "LIKE%", "UNION", "OR 1=1", "regexp"} {
		if _, err := ValidateOperator(tok); !errors.Is(err, ErrUnsupportedOperator) {
			t.Errorf("ValidateOperator(%q) error = %v, want ErrUnsupportedOperator", tok, err)
		}
	}
}

func TestValidateAggregation(t *testing.T) {
	for _, tok := range []string{"COUNT", "sum", "Avg", "MIN", "max", "count_distinct"} {
		if _, err := ValidateAggregation(tok); err != nil {
			t.Errorf("ValidateAggregation(%q) error: %v", tok, err)
		}
	}

	def, err := ValidateAggregation("COUNT_DISTINCT")
	if err != nil {
		t.Fatalf("ValidateAggregation(COUNT_DISTINCT) error: %v", err)
	}
	if def.Kind != aggTemplate {
		t.Error("COUNT_DISTINCT should be a field-embedded template, not a plain function")
	}

	for _, tok := range []string{"", "MEDIAN", "STDDEV", "SUM(x)"} {
		if _, err := ValidateAggregation(tok); !errors.Is(err, ErrUnsupportedAggregation) {
			t.Errorf("ValidateAggregation(%q) error = %v, want ErrUnsupportedAggregation", tok, err)
		}
	}
}

func TestValidateDateTransform(t *testing.T) {
	dateField := FieldDefinition{Type: FieldDate}

	tests := []struct {
		transform string
		dialect   Dialect
		want      string
	}{
		{"year", DialectPostgres, "TO_CHAR({field}, 'YYYY')"},
		{"month", DialectPostgres, "TO_CHAR({field}, 'YYYY-MM')"},
		{"quarter", DialectPostgres, `TO_CHAR({field}, 'YYYY-"Q"Q')`},
		{"week", DialectPostgres, "TO_CHAR({field}, 'IYYY-IW')"},
		{"day", DialectPostgres, "TO_CHAR({field}, 'YYYY-MM-DD')"},
		{"year", DialectClickHouse, "formatDateTime({field}, '%Y')"},
		{"day", DialectClickHouse, "formatDateTime({field}, '%Y-%m-%d')"},
	}
	for _, tt := range tests {
		t.Run(tt.transform+"/"+string(tt.dialect), func(t *testing.T) {
			got, err := ValidateDateTransform(tt.transform, "close_date", dateField, tt.dialect)
			if err != nil {
				t.Fatalf("ValidateDateTransform(%q) error: %v", tt.transform, err)
			}
			if got != tt.want {
				t.Errorf("ValidateDateTransform(%q) = %q, want %q", tt.transform, got, tt.want)
			}
		})
	}
}

func TestValidateDateTransformRejectsUnknown(t *testing.T) {
	dateField := FieldDefinition{Type: FieldDate}
	for _, tok := range []string{"", "hour", "minute", "decade", "YYYY"} {
		if _, err := ValidateDateTransform(tok, "f", dateField, DialectPostgres); !errors.Is(err, ErrUnsupportedTransform) {
			t.Errorf("ValidateDateTransform(%q) error = %v, want ErrUnsupportedTransform", tok, err)
		}
	}
}

func TestValidateDateTransformRejectsNonDateField(t *testing.T) {
	// Applying a transform to a non-date field is a validation failure, not
	// a silent no-op.
	for _, ft := range []FieldType{FieldString, FieldNumber, FieldBoolean} {
		_, err := ValidateDateTransform("month", "f", FieldDefinition{Type: ft}, DialectPostgres)
		if !errors.Is(err, ErrUnsupportedTransform) {
			t.Errorf("ValidateDateTransform on %s field: error = %v, want ErrUnsupportedTransform", ft, err)
		}
	}
}
