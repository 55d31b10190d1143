package scenario

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ValueKind is the primitive type held by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString

	// kindUnsupported marks a decoded value of a type variables may not hold.
	// It only survives until validation rejects the document.
	kindUnsupported
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return "unsupported"
	}
}

// Value is a narrative variable value: boolean, number, string or null.
// Values are compared and assigned opaquely; no coercion is performed.
type Value struct {
	kind ValueKind
	b    bool
	n    float64
	s    string
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// ValueOf converts a decoded Go primitive into a Value.
func ValueOf(v interface{}) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", x.String(), err)
		}
		return Number(f), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// Kind returns the primitive kind of v.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload and whether v is a bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsNumber returns the numeric payload and whether v is a number.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsString returns the string payload and whether v is a string.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// Truthy applies the single truthiness rule used by conditions:
// false, 0, "" and null are falsy, everything else is truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0
	case KindString:
		return v.s != ""
	default:
		return false
	}
}

// Equal reports whether two values have the same kind and payload.
// Number 0 and false are distinct.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindString, kindUnsupported:
		return v.s == o.s
	default:
		return true
	}
}

// Interface returns the Go primitive held by v (nil, bool, float64 or string).
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case kindUnsupported:
		return "<" + v.s + ">"
	default:
		return "null"
	}
}

func (v Value) supported() bool {
	return v.kind != kindUnsupported
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.supported() {
		return nil, fmt.Errorf("cannot marshal unsupported value %s", v.s)
	}
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler. Arrays and objects decode into an
// unsupported marker so that validation can report them with context.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.(type) {
	case []interface{}:
		*v = Value{kind: kindUnsupported, s: "array"}
		return nil
	case map[string]interface{}:
		*v = Value{kind: kindUnsupported, s: "object"}
		return nil
	}
	val, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (interface{}, error) {
	if !v.supported() {
		return nil, fmt.Errorf("cannot marshal unsupported value %s", v.s)
	}
	return v.Interface(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		*v = Value{kind: kindUnsupported, s: "array"}
		return nil
	case yaml.MappingNode:
		*v = Value{kind: kindUnsupported, s: "object"}
		return nil
	case yaml.AliasNode:
		return v.UnmarshalYAML(node.Alias)
	}

	switch node.ShortTag() {
	case "!!null":
		*v = Null()
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		*v = Bool(b)
	case "!!int", "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return err
		}
		*v = Number(f)
	default:
		*v = String(node.Value)
	}
	return nil
}
