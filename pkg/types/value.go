package types

import "strconv"

// ValueType discriminates the primitive held by a Value.
type ValueType string

const (
	ValueTypeBoolean ValueType = "BOOLEAN"
	ValueTypeInteger ValueType = "INTEGER"
	ValueTypeFloat   ValueType = "FLOAT"
	ValueTypeString  ValueType = "STRING"
)

// Value is a primitive-typed attribute value. Exactly one of the typed fields
// is meaningful, selected by Type. The store never interprets values; they are
// written and read back as-is.
type Value struct {
	Type         ValueType
	BooleanValue bool
	IntegerValue int64
	FloatValue   float64
	StringValue  string
}

func BoolValue(v bool) Value {
	return Value{Type: ValueTypeBoolean, BooleanValue: v}
}

func IntValue(v int64) Value {
	return Value{Type: ValueTypeInteger, IntegerValue: v}
}

func FloatValue(v float64) Value {
	return Value{Type: ValueTypeFloat, FloatValue: v}
}

func StringValue(v string) Value {
	return Value{Type: ValueTypeString, StringValue: v}
}

func (v Value) Equal(other Value) bool {
	return v == other
}

func (v Value) String() string {
	switch v.Type {
	case ValueTypeBoolean:
		return strconv.FormatBool(v.BooleanValue)
	case ValueTypeInteger:
		return strconv.FormatInt(v.IntegerValue, 10)
	case ValueTypeFloat:
		return strconv.FormatFloat(v.FloatValue, 'g', -1, 64)
	case ValueTypeString:
		return v.StringValue
	}
	return ""
}
