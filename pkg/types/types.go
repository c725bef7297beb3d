// Package types contains the core data structures shared across the
// validator: filter rules, scalar values, and validation results.
package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Operator identifies a comparison operator in a filter rule or predicate.
type Operator int

const (
	OpUnspecified Operator = iota
	OpEquals
	OpNotEquals
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpIn
)

// String returns the SQL spelling of the operator.
func (op Operator) String() string {
	switch op {
	case OpEquals:
		return "="
	case OpNotEquals:
		return "!="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpIn:
		return "IN"
	default:
		return "UNSPECIFIED"
	}
}

// ParseOperator converts a SQL operator spelling into an Operator.
// Both "!=" and "<>" are accepted for inequality.
func ParseOperator(s string) (Operator, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "=", "==":
		return OpEquals, nil
	case "!=", "<>":
		return OpNotEquals, nil
	case "<":
		return OpLessThan, nil
	case "<=":
		return OpLessThanOrEqual, nil
	case ">":
		return OpGreaterThan, nil
	case ">=":
		return OpGreaterThanOrEqual, nil
	case "IN":
		return OpIn, nil
	default:
		return OpUnspecified, errors.Errorf("unsupported operator: %q", s)
	}
}

// Reversed returns the operator with swapped operand order, so that
// "0 < amount" can be recorded as "amount > 0".
func (op Operator) Reversed() Operator {
	switch op {
	case OpLessThan:
		return OpGreaterThan
	case OpLessThanOrEqual:
		return OpGreaterThanOrEqual
	case OpGreaterThan:
		return OpLessThan
	case OpGreaterThanOrEqual:
		return OpLessThanOrEqual
	default:
		return op
	}
}

// MarshalYAML implements yaml.Marshaler.
func (op Operator) MarshalYAML() (interface{}, error) {
	return op.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (op *Operator) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseOperator(s)
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (op Operator) MarshalJSON() ([]byte, error) {
	return json.Marshal(op.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (op *Operator) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseOperator(s)
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}

// ValueKind discriminates the scalar variants of Value.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueInt
	ValueFloat
	ValueString
	ValueBool
)

// Value is a SQL scalar: integer, float, string, boolean, or NULL.
//
// Equality between values is strict: an integer never equals a float,
// a string, or a boolean, even when the spellings coincide (0 vs false
// vs '0'). Filter matching relies on this to avoid implicit coercion.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Str   string
	Bool  bool
}

// NullValue returns the SQL NULL value.
func NullValue() Value { return Value{Kind: ValueNull} }

// IntValue returns an integer value.
func IntValue(v int64) Value { return Value{Kind: ValueInt, Int: v} }

// FloatValue returns a float value.
func FloatValue(v float64) Value { return Value{Kind: ValueFloat, Float: v} }

// StringValue returns a string value.
func StringValue(v string) Value { return Value{Kind: ValueString, Str: v} }

// BoolValue returns a boolean value.
func BoolValue(v bool) Value { return Value{Kind: ValueBool, Bool: v} }

// Equal reports whether two values are identical in kind and content.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ValueNull:
		return true
	case ValueInt:
		return v.Int == o.Int
	case ValueFloat:
		return v.Float == o.Float
	case ValueString:
		return v.Str == o.Str
	case ValueBool:
		return v.Bool == o.Bool
	default:
		return false
	}
}

// String renders the value the way it would appear in SQL.
func (v Value) String() string {
	switch v.Kind {
	case ValueNull:
		return "NULL"
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case ValueString:
		return "'" + strings.ReplaceAll(v.Str, "'", "''") + "'"
	case ValueBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	default:
		return ""
	}
}

// fromInterface converts a decoded YAML/JSON scalar into a Value.
func fromInterface(raw interface{}) (Value, error) {
	switch val := raw.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(val), nil
	case int:
		return IntValue(int64(val)), nil
	case int64:
		return IntValue(val), nil
	case uint64:
		return IntValue(int64(val)), nil
	case float64:
		// JSON has a single number type; keep integral numbers as integers
		// so JSON configs behave like YAML configs.
		if val == float64(int64(val)) {
			return IntValue(int64(val)), nil
		}
		return FloatValue(val), nil
	case string:
		return StringValue(val), nil
	default:
		return Value{}, errors.Errorf("unsupported value type: %T", raw)
	}
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (interface{}, error) {
	return v.native(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Value) UnmarshalYAML(value *yaml.Node) error {
	var raw interface{}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := fromInterface(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.native())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := fromInterface(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) native() interface{} {
	switch v.Kind {
	case ValueInt:
		return v.Int
	case ValueFloat:
		return v.Float
	case ValueString:
		return v.Str
	case ValueBool:
		return v.Bool
	default:
		return nil
	}
}

// FilterRule defines a mandatory filter condition for a table column.
// A query referencing Table must contain a predicate `Column Operator Value`
// somewhere in the table occurrence's scope chain.
//
// Rules are immutable once constructed.
type FilterRule struct {
	Table    string   `yaml:"table" json:"table"`
	Column   string   `yaml:"column" json:"column"`
	Operator Operator `yaml:"operator" json:"operator"`
	Value    Value    `yaml:"value" json:"value"`
}

// Key returns the "table.column" identity of the rule.
func (r FilterRule) Key() string {
	return r.Table + "." + r.Column
}

// String renders the rule as a SQL condition, e.g. "users.deleted = 0".
func (r FilterRule) String() string {
	return fmt.Sprintf("%s.%s %s %s", r.Table, r.Column, r.Operator, r.Value)
}
