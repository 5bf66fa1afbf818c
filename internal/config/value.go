package config

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Kind is the closed set of value types a setting can hold.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindDouble
	KindString
	KindDoubleList
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindDoubleList:
		return "list"
	default:
		return "invalid"
	}
}

// ParseKind resolves a kind name as printed by Kind.String.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bool", "boolean":
		return KindBool, nil
	case "int", "integer":
		return KindInt, nil
	case "double", "float":
		return KindDouble, nil
	case "string", "str":
		return KindString, nil
	case "list", "double-list":
		return KindDoubleList, nil
	}
	return KindInvalid, fmt.Errorf("unknown value kind %q", name)
}

// Value is a tagged union over the supported setting types.
// The zero Value is invalid and never stored.
type Value struct {
	kind Kind
	b    bool
	i    int
	d    float64
	s    string
	list []float64
}

// Setting is the type set accepted by Get and Set.
type Setting interface {
	bool | int | float64 | string | []float64
}

func BoolValue(v bool) Value       { return Value{kind: KindBool, b: v} }
func IntValue(v int) Value         { return Value{kind: KindInt, i: v} }
func DoubleValue(v float64) Value  { return Value{kind: KindDouble, d: v} }
func StringValue(v string) Value   { return Value{kind: KindString, s: v} }
func DoubleListValue(v []float64) Value {
	return Value{kind: KindDoubleList, list: slices.Clone(v)}
}

// ValueOf wraps any member of the Setting type set.
func ValueOf[T Setting](v T) Value {
	switch x := any(v).(type) {
	case bool:
		return BoolValue(x)
	case int:
		return IntValue(x)
	case float64:
		return DoubleValue(x)
	case string:
		return StringValue(x)
	case []float64:
		return DoubleListValue(x)
	}
	return Value{}
}

// As extracts v as T. Int values widen to float64; every other kind mismatch
// reports false.
func As[T Setting](v Value) (T, bool) {
	var out T
	switch p := any(&out).(type) {
	case *bool:
		if v.kind != KindBool {
			return out, false
		}
		*p = v.b
	case *int:
		if v.kind != KindInt {
			return out, false
		}
		*p = v.i
	case *float64:
		switch v.kind {
		case KindDouble:
			*p = v.d
		case KindInt:
			*p = float64(v.i)
		default:
			return out, false
		}
	case *string:
		if v.kind != KindString {
			return out, false
		}
		*p = v.s
	case *[]float64:
		if v.kind != KindDoubleList {
			return out, false
		}
		*p = slices.Clone(v.list)
	default:
		return out, false
	}
	return out, true
}

// Kind reports the stored type.
func (v Value) Kind() Kind { return v.kind }

// Valid reports whether v carries a value.
func (v Value) Valid() bool { return v.kind != KindInvalid }

// Equal compares two values. Int and double compare numerically so a value
// that round-tripped through the file as an integer still matches.
func (v Value) Equal(o Value) bool {
	if isNumeric(v.kind) && isNumeric(o.kind) {
		return v.number() == o.number()
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.s == o.s
	case KindDoubleList:
		return slices.Equal(v.list, o.list)
	default:
		return true
	}
}

func isNumeric(k Kind) bool { return k == KindInt || k == KindDouble }

func (v Value) number() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.d
}

// String renders v the way the CLI prints and parses it.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.Itoa(v.i)
	case KindDouble:
		return strconv.FormatFloat(v.d, 'g', -1, 64)
	case KindString:
		return v.s
	case KindDoubleList:
		parts := make([]string, len(v.list))
		for i, f := range v.list {
			parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return strings.Join(parts, ";")
	default:
		return ""
	}
}

// ParseValue converts text into a Value of the given kind. Lists are
// separated by ';' or ','.
func ParseValue(kind Kind, text string) (Value, error) {
	raw := strings.TrimSpace(text)
	switch kind {
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Value{}, fmt.Errorf("parse bool %q: %w", text, err)
		}
		return BoolValue(b), nil
	case KindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Value{}, fmt.Errorf("parse int %q: %w", text, err)
		}
		return IntValue(n), nil
	case KindDouble:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse double %q: %w", text, err)
		}
		return DoubleValue(f), nil
	case KindString:
		return StringValue(text), nil
	case KindDoubleList:
		fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == ',' })
		list := make([]float64, 0, len(fields))
		for _, field := range fields {
			f, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return Value{}, fmt.Errorf("parse list item %q: %w", field, err)
			}
			list = append(list, f)
		}
		return DoubleListValue(list), nil
	}
	return Value{}, fmt.Errorf("unsupported value kind %v", kind)
}

func clamp01(f float64) float64 {
	return math.Min(1, math.Max(0, f))
}
