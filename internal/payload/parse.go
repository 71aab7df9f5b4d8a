package payload

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"sort"
	"strconv"

	"github.com/tidwall/gjson"
)

// maxParseNesting bounds how deeply nested a JSON text may be before it is
// refused outright.
const maxParseNesting = 512

var (
	// ErrInvalidJSON is returned by Parse for text that is not JSON.
	ErrInvalidJSON = errors.New("payload: invalid JSON")

	// ErrTooDeep is returned by Parse for text nested past maxParseNesting.
	ErrTooDeep = errors.New("payload: JSON nested too deeply")
)

// Parse decodes a JSON text into a Value, keeping member order and number
// literals.
func Parse(text string) (Value, error) {
	if nestingDepth(text, maxParseNesting) > maxParseNesting {
		return Value{}, ErrTooDeep
	}
	if !gjson.Valid(text) {
		return Value{}, ErrInvalidJSON
	}
	return fromResult(gjson.Parse(text)), nil
}

func fromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.True:
		return BoolValue(true)
	case gjson.False:
		return BoolValue(false)
	case gjson.Number:
		return NumberValue(r.Raw)
	case gjson.String:
		return StringValue(r.Str)
	case gjson.JSON:
		if r.IsArray() {
			items := []Value{}
			r.ForEach(func(_, item gjson.Result) bool {
				items = append(items, fromResult(item))
				return true
			})
			return ArrayValue(items...)
		}
		if r.IsObject() {
			var members []Member
			r.ForEach(func(key, val gjson.Result) bool {
				members = append(members, Member{Key: key.Str, Value: fromResult(val)})
				return true
			})
			return ObjectValue(members...)
		}
	}
	return NullValue()
}

// nestingDepth returns the maximum bracket depth of text outside string
// literals, stopping early once limit is exceeded.
func nestingDepth(text string, limit int) int {
	depth, deepest := 0, 0
	inString, escaped := false, false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
			if depth > deepest {
				deepest = depth
				if deepest > limit {
					return deepest
				}
			}
		case '}', ']':
			depth--
		}
	}
	return deepest
}

// FromAny converts decoded Go data into a Value without normalizing it.
// Raw JSON bytes are parsed when valid and kept as text otherwise; maps are
// ordered by key; anything else goes through its JSON encoding.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return NullValue()
	case Value:
		return t
	case *Value:
		if t == nil {
			return NullValue()
		}
		return *t
	case bool:
		return BoolValue(t)
	case string:
		return StringValue(t)
	case json.Number:
		return NumberValue(t.String())
	case float64:
		return floatValue(t)
	case float32:
		return floatValue(float64(t))
	case int:
		return NumberValue(strconv.FormatInt(int64(t), 10))
	case int8:
		return NumberValue(strconv.FormatInt(int64(t), 10))
	case int16:
		return NumberValue(strconv.FormatInt(int64(t), 10))
	case int32:
		return NumberValue(strconv.FormatInt(int64(t), 10))
	case int64:
		return NumberValue(strconv.FormatInt(t, 10))
	case uint:
		return NumberValue(strconv.FormatUint(uint64(t), 10))
	case uint8:
		return NumberValue(strconv.FormatUint(uint64(t), 10))
	case uint16:
		return NumberValue(strconv.FormatUint(uint64(t), 10))
	case uint32:
		return NumberValue(strconv.FormatUint(uint64(t), 10))
	case uint64:
		return NumberValue(strconv.FormatUint(t, 10))
	case json.RawMessage:
		return fromBytes(t)
	case []byte:
		return fromBytes(t)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return ArrayValue(items...)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		members := make([]Member, len(keys))
		for i, k := range keys {
			members[i] = Member{Key: k, Value: FromAny(t[k])}
		}
		return ObjectValue(members...)
	}

	if rv := reflect.ValueOf(v); (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) && rv.IsNil() {
		return NullValue()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return StringValue(err.Error())
	}
	return fromBytes(data)
}

func fromBytes(data []byte) Value {
	parsed, err := Parse(string(data))
	if err != nil {
		return StringValue(string(data))
	}
	return parsed
}

func floatValue(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return NullValue()
	}
	data, err := json.Marshal(f)
	if err != nil {
		return NullValue()
	}
	return NumberValue(string(data))
}

func isNumberLiteral(s string) bool {
	if s == "" {
		return false
	}
	if c := s[0]; c != '-' && (c < '0' || c > '9') {
		return false
	}
	return json.Valid([]byte(s))
}
