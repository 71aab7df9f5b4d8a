package payload

import "strings"

// MaxDepth is the deepest tree level Normalize rewrites. The root is level
// 0; anything below MaxDepth is returned exactly as it was found.
const MaxDepth = 6

// Normalize converts v to a Value and cleans every string within MaxDepth:
// strings holding JSON objects or arrays are replaced by the parsed value,
// HTML character references are decoded and whitespace is tidied.
// Normalize never fails and Normalize(Normalize(v)) equals Normalize(v).
func Normalize(v any) Value {
	return normalizeValue(FromAny(v), 0)
}

// Pretty normalizes v and returns its canonical text.
func Pretty(v any) string {
	return Canonical(Normalize(v))
}

func normalizeValue(v Value, depth int) Value {
	if depth > MaxDepth {
		return v
	}
	switch v.kind {
	case String:
		return normalizeString(v.s, depth)
	case Array:
		items := make([]Value, len(v.items))
		for i, item := range v.items {
			items[i] = normalizeValue(item, depth+1)
		}
		return ArrayValue(items...)
	case Object:
		members := make([]Member, len(v.members))
		for i, m := range v.members {
			members[i] = Member{Key: m.Key, Value: normalizeValue(m.Value, depth+1)}
		}
		return Value{kind: Object, members: members}
	default:
		return v
	}
}

// normalizeString decodes references until the text stops changing, trying
// to parse it as embedded JSON after every round. The parsed container
// takes the string's place in the tree.
func normalizeString(s string, depth int) Value {
	for {
		if parsed, ok := reparse(s); ok {
			return normalizeValue(parsed, depth)
		}
		decoded := DecodeEntities(s)
		if decoded == s {
			break
		}
		s = decoded
	}

	s = NormalizeWhitespace(s)
	if parsed, ok := reparse(s); ok {
		return normalizeValue(parsed, depth)
	}
	return StringValue(s)
}

// reparse parses s when, trimmed, it is bracketed like a JSON object or
// array.
func reparse(s string) (Value, bool) {
	t := strings.TrimSpace(s)
	if !looksLikeJSON(t) {
		return Value{}, false
	}
	v, err := Parse(t)
	if err != nil {
		return Value{}, false
	}
	return v, true
}

func looksLikeJSON(t string) bool {
	if len(t) < 2 {
		return false
	}
	first, last := t[0], t[len(t)-1]
	return first == '{' && last == '}' || first == '[' && last == ']'
}
