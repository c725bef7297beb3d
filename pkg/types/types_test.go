package types

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParseOperator(t *testing.T) {
	tests := []struct {
		input   string
		want    Operator
		wantErr bool
	}{
		{"=", OpEquals, false},
		{"==", OpEquals, false},
		{"!=", OpNotEquals, false},
		{"<>", OpNotEquals, false},
		{"<", OpLessThan, false},
		{"<=", OpLessThanOrEqual, false},
		{">", OpGreaterThan, false},
		{">=", OpGreaterThanOrEqual, false},
		{"IN", OpIn, false},
		{"in", OpIn, false},
		{" = ", OpEquals, false},
		{"LIKE", OpUnspecified, true},
		{"", OpUnspecified, true},
	}

	for _, tt := range tests {
		got, err := ParseOperator(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseOperator(%q) expected error, got %v", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseOperator(%q) failed: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOperator(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestOperatorReversed(t *testing.T) {
	tests := []struct {
		op   Operator
		want Operator
	}{
		{OpLessThan, OpGreaterThan},
		{OpLessThanOrEqual, OpGreaterThanOrEqual},
		{OpGreaterThan, OpLessThan},
		{OpGreaterThanOrEqual, OpLessThanOrEqual},
		{OpEquals, OpEquals},
		{OpNotEquals, OpNotEquals},
		{OpIn, OpIn},
	}

	for _, tt := range tests {
		if got := tt.op.Reversed(); got != tt.want {
			t.Errorf("%v.Reversed() = %v, want %v", tt.op, got, tt.want)
		}
	}
}

func TestValueEqual_Strict(t *testing.T) {
	// No coercion across kinds, even when spellings coincide.
	zero := IntValue(0)
	if zero.Equal(BoolValue(false)) {
		t.Error("0 must not equal FALSE")
	}
	if zero.Equal(StringValue("0")) {
		t.Error("0 must not equal '0'")
	}
	if zero.Equal(FloatValue(0)) {
		t.Error("integer 0 must not equal float 0.0")
	}
	if zero.Equal(NullValue()) {
		t.Error("0 must not equal NULL")
	}

	if !zero.Equal(IntValue(0)) {
		t.Error("0 must equal 0")
	}
	if !StringValue("acme").Equal(StringValue("acme")) {
		t.Error("'acme' must equal 'acme'")
	}
	if !NullValue().Equal(NullValue()) {
		t.Error("NULL must equal NULL")
	}
	if StringValue("a").Equal(StringValue("b")) {
		t.Error("'a' must not equal 'b'")
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		value Value
		want  string
	}{
		{IntValue(42), "42"},
		{IntValue(-1), "-1"},
		{FloatValue(1.5), "1.5"},
		{StringValue("acme"), "'acme'"},
		{StringValue("o'brien"), "'o''brien'"},
		{BoolValue(true), "TRUE"},
		{BoolValue(false), "FALSE"},
		{NullValue(), "NULL"},
	}

	for _, tt := range tests {
		if got := tt.value.String(); got != tt.want {
			t.Errorf("Value.String() = %q, want %q", got, tt.want)
		}
	}
}

func TestFilterRule(t *testing.T) {
	rule := FilterRule{
		Table:    "users",
		Column:   "deleted",
		Operator: OpEquals,
		Value:    IntValue(0),
	}

	if got := rule.Key(); got != "users.deleted" {
		t.Errorf("Key() = %q, want %q", got, "users.deleted")
	}
	if got := rule.String(); got != "users.deleted = 0" {
		t.Errorf("String() = %q, want %q", got, "users.deleted = 0")
	}
}

func TestFilterRule_UnmarshalYAML(t *testing.T) {
	data := `
table: orders
column: tenant_id
operator: "="
value: acme
`
	var rule FilterRule
	if err := yaml.Unmarshal([]byte(data), &rule); err != nil {
		t.Fatalf("yaml.Unmarshal failed: %v", err)
	}
	if rule.Table != "orders" || rule.Column != "tenant_id" {
		t.Errorf("unexpected rule target: %s.%s", rule.Table, rule.Column)
	}
	if rule.Operator != OpEquals {
		t.Errorf("Operator = %v, want OpEquals", rule.Operator)
	}
	if !rule.Value.Equal(StringValue("acme")) {
		t.Errorf("Value = %v, want 'acme'", rule.Value)
	}
}

func TestFilterRule_UnmarshalJSON_IntegralNumber(t *testing.T) {
	// JSON numbers decode as float64; integral ones must come back as
	// integers so JSON and YAML configs match the same predicates.
	data := `{"table":"users","column":"deleted","operator":"=","value":0}`

	var rule FilterRule
	if err := json.Unmarshal([]byte(data), &rule); err != nil {
		t.Fatalf("json.Unmarshal failed: %v", err)
	}
	if !rule.Value.Equal(IntValue(0)) {
		t.Errorf("Value = %v, want integer 0", rule.Value)
	}
}

func TestValue_MarshalRoundTrip(t *testing.T) {
	rule := FilterRule{
		Table:    "events",
		Column:   "status",
		Operator: OpIn,
		Value:    StringValue("active"),
	}

	data, err := json.Marshal(rule)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}

	var decoded FilterRule
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal failed: %v", err)
	}
	if decoded != rule {
		t.Errorf("round trip changed rule: %+v != %+v", decoded, rule)
	}
}
