package fieldmap

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind tags the variant held by a Value
type Kind uint8

const (
	KindNull Kind = iota
	KindText
	KindFlag
	KindNum
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindFlag:
		return "flag"
	case KindNum:
		return "number"
	default:
		return "null"
	}
}

// Value is a single answer: text, a boolean flag, a number, or null.
// The zero Value is null.
type Value struct {
	kind Kind
	text string
	flag bool
	num  float64
}

// Text returns a text value
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Flag returns a boolean value
func Flag(b bool) Value { return Value{kind: KindFlag, flag: b} }

// Num returns a numeric value
func Num(f float64) Value { return Value{kind: KindNum, num: f} }

// Null returns the null value
func Null() Value { return Value{} }

// Kind returns the variant tag
func (v Value) Kind() Kind { return v.kind }

// IsBlank reports whether the value is null or the empty string. Blank
// values are never drawn.
func (v Value) IsBlank() bool {
	return v.kind == KindNull || (v.kind == KindText && v.text == "")
}

// IsMissing reports whether a required field holding this value counts as
// unanswered. A false flag is missing: an unchecked required checkbox cannot
// be told apart from one never shown.
func (v Value) IsMissing() bool {
	return v.IsBlank() || (v.kind == KindFlag && !v.flag)
}

// Checked reports whether a checkbox holding this value is drawn. Only a true
// flag or the strings "true" and "yes" (any case) count as checked; numbers
// never do.
func (v Value) Checked() bool {
	switch v.kind {
	case KindFlag:
		return v.flag
	case KindText:
		return strings.EqualFold(v.text, "true") || strings.EqualFold(v.text, "yes")
	default:
		return false
	}
}

// String returns the text drawn for the value
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindFlag:
		return strconv.FormatBool(v.flag)
	case KindNum:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

// MarshalJSON encodes the value as its natural JSON scalar
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindText:
		return json.Marshal(v.text)
	case KindFlag:
		return json.Marshal(v.flag)
	case KindNum:
		return json.Marshal(v.num)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a string, boolean, number or null
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case nil:
		*v = Null()
	case string:
		*v = Text(x)
	case bool:
		*v = Flag(x)
	case float64:
		*v = Num(x)
	default:
		return fmt.Errorf("unsupported answer value %s: want string, boolean, number or null", string(data))
	}
	return nil
}

// UnmarshalYAML accepts a scalar; untagged plain scalars follow YAML 1.2 core
// schema resolution, so `yes` stays text while `true` becomes a flag
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: unsupported answer value: want a scalar", node.Line)
	}
	switch node.ShortTag() {
	case "!!null":
		*v = Null()
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		*v = Flag(b)
	case "!!int", "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return err
		}
		*v = Num(f)
	default:
		*v = Text(node.Value)
	}
	return nil
}

// FormData maps field ids to answers. Keys without a matching field are
// ignored; fields without a key are treated as not provided.
type FormData map[string]Value

// Get returns the value for id, or null when absent
func (d FormData) Get(id string) Value {
	return d[id]
}

// FromAny converts loosely typed answers, such as decoded JSON arguments,
// into FormData
func FromAny(raw map[string]any) (FormData, error) {
	data := make(FormData, len(raw))
	for key, val := range raw {
		switch x := val.(type) {
		case nil:
			data[key] = Null()
		case string:
			data[key] = Text(x)
		case bool:
			data[key] = Flag(x)
		case float64:
			data[key] = Num(x)
		case float32:
			data[key] = Num(float64(x))
		case int:
			data[key] = Num(float64(x))
		case int64:
			data[key] = Num(float64(x))
		case json.Number:
			f, err := x.Float64()
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", key, err)
			}
			data[key] = Num(f)
		default:
			return nil, fmt.Errorf("field %q: unsupported answer type %T", key, val)
		}
	}
	return data, nil
}
