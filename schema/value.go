package schema

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind discriminates the variants a cell value can hold.
type ValueKind int

const (
	// KindAbsent marks a value that was never set (distinct from zero).
	KindAbsent ValueKind = iota

	// KindInt holds a signed integer.
	KindInt

	// KindText holds a text string.
	KindText

	// KindBytes holds a raw byte sequence.
	KindBytes
)

// Value is the tagged variant stored in table cells, column defaults and
// scalar overrides. The zero Value is absent.
type Value struct {
	kind ValueKind
	num  int64
	text string
	data []byte
}

// IntValue returns an integer Value.
func IntValue(v int64) Value {
	return Value{kind: KindInt, num: v}
}

// TextValue returns a text Value.
func TextValue(s string) Value {
	return Value{kind: KindText, text: s}
}

// BytesValue returns a byte-sequence Value. The slice is not copied.
func BytesValue(b []byte) Value {
	return Value{kind: KindBytes, data: b}
}

// ValueOf converts a dynamically-decoded document value (as produced by
// yaml.v3 or encoding/json) into a Value. Lists collapse to their dotted
// string form, which is how legacy state files serialized OID-like values.
// Hex-encoded byte payloads use the {"value": ..., "encoding": "hex"} shape.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Value{}
	case Value:
		return x
	case bool:
		if x {
			return IntValue(1)
		}
		return IntValue(0)
	case int:
		return IntValue(int64(x))
	case int64:
		return IntValue(x)
	case uint64:
		return IntValue(int64(x))
	case float64:
		if x == float64(int64(x)) {
			return IntValue(int64(x))
		}
		return TextValue(strconv.FormatFloat(x, 'g', -1, 64))
	case string:
		return TextValue(x)
	case []byte:
		return BytesValue(x)
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, ValueOf(item).String())
		}
		return TextValue(strings.Join(parts, "."))
	case map[string]any:
		if enc, ok := x["encoding"].(string); ok {
			if raw, ok := x["value"]; ok {
				return decodeEncoded(enc, raw)
			}
		}
		return TextValue(fmt.Sprintf("%v", x))
	default:
		return TextValue(fmt.Sprintf("%v", x))
	}
}

func decodeEncoded(encoding string, raw any) Value {
	s, _ := raw.(string)
	if encoding == "hex" {
		if b, err := hex.DecodeString(s); err == nil {
			return BytesValue(b)
		}
	}
	// Unknown or undecodable encoding: keep the raw payload as text.
	return TextValue(s)
}

// Kind reports which variant the value holds.
func (v Value) Kind() ValueKind { return v.kind }

// IsAbsent reports whether the value was never set.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Int returns the integer payload. The second result is false when the
// value does not hold an integer.
func (v Value) Int() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.num, true
}

// Text returns the text payload. The second result is false when the value
// does not hold text.
func (v Value) Text() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.text, true
}

// Bytes returns the byte payload. The second result is false when the value
// does not hold bytes.
func (v Value) Bytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return v.data, true
}

// CoerceInt attempts a numeric reading of the value: integers pass through,
// text is parsed as a decimal integer.
func (v Value) CoerceInt() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.num, true
	case KindText:
		n, err := strconv.ParseInt(strings.TrimSpace(v.text), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// String renders the value for display and index-string construction:
// integers in decimal, text as-is, bytes as their raw string form and
// absent as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindText:
		return v.text
	case KindBytes:
		return string(v.data)
	default:
		return ""
	}
}

// Equal reports whether two values hold the same variant and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.num == o.num
	case KindText:
		return v.text == o.text
	case KindBytes:
		return bytes.Equal(v.data, o.data)
	default:
		return true
	}
}

// MarshalJSON serializes the variant: integers as numbers, text as strings,
// bytes as {"value": "<hex>", "encoding": "hex"} and absent as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return json.Marshal(v.num)
	case KindText:
		return json.Marshal(v.text)
	case KindBytes:
		return json.Marshal(map[string]string{
			"value":    hex.EncodeToString(v.data),
			"encoding": "hex",
		})
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts every shape a legacy state or schema document may
// contain: numbers, strings, null, booleans, lists (collapsed to dotted
// text) and hex-encoded byte objects.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*v = Value{}
		return nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = TextValue(s)
		return nil
	case '{', '[':
		var raw any
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		*v = ValueOf(raw)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return err
		}
		*v = ValueOf(b)
		return nil
	default:
		if n, err := strconv.ParseInt(string(trimmed), 10, 64); err == nil {
			*v = IntValue(n)
			return nil
		}
		f, err := strconv.ParseFloat(string(trimmed), 64)
		if err != nil {
			return fmt.Errorf("schema: cannot decode value %s", trimmed)
		}
		*v = ValueOf(f)
		return nil
	}
}
