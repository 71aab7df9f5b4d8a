// Package payload turns arbitrary tool input and output into a canonical,
// safely renderable JSON value.
//
// Tool results arrive as opaque nested data in which any string may itself
// be encoded JSON, HTML-escaped, or carry stray whitespace. Normalize peels
// those layers off with depth-bounded recursion and Canonical prints the
// result the way the chat view displays it.
package payload

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// Member is one key/value pair of an object, in source order.
type Member struct {
	Key   string
	Value Value
}

// Value is a JSON value. The zero Value is null.
//
// Objects keep member order and numbers keep their literal text, so a
// value prints back exactly as it was read apart from whitespace.
type Value struct {
	kind    Kind
	b       bool
	s       string // string content or number literal
	items   []Value
	members []Member
}

// NullValue returns the JSON null.
func NullValue() Value { return Value{} }

// BoolValue wraps b.
func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }

// StringValue wraps s.
func StringValue(s string) Value { return Value{kind: String, s: s} }

// NumberValue wraps a JSON number literal. A literal that is not a valid
// JSON number is kept as a string instead.
func NumberValue(literal string) Value {
	if !isNumberLiteral(literal) {
		return StringValue(literal)
	}
	return Value{kind: Number, s: literal}
}

// ArrayValue builds an array from items.
func ArrayValue(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: Array, items: items}
}

// ObjectValue builds an object from members. A repeated key keeps its
// first position and its last value.
func ObjectValue(members ...Member) Value {
	out := make([]Member, 0, len(members))
	index := make(map[string]int, len(members))
	for _, m := range members {
		if i, ok := index[m.Key]; ok {
			out[i].Value = m.Value
			continue
		}
		index[m.Key] = len(out)
		out = append(out, m)
	}
	return Value{kind: Object, members: out}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == Null }

// Bool returns the boolean content; false for other kinds.
func (v Value) Bool() bool { return v.kind == Bool && v.b }

// Str returns the string content; empty for other kinds.
func (v Value) Str() string {
	if v.kind != String {
		return ""
	}
	return v.s
}

// Literal returns the number literal; empty for other kinds.
func (v Value) Literal() string {
	if v.kind != Number {
		return ""
	}
	return v.s
}

// Items returns the elements of an array.
func (v Value) Items() []Value {
	if v.kind != Array {
		return nil
	}
	return v.items
}

// Members returns the members of an object in order.
func (v Value) Members() []Member {
	if v.kind != Object {
		return nil
	}
	return v.members
}

// Len returns the number of array items or object members.
func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.items)
	case Object:
		return len(v.members)
	default:
		return 0
	}
}

// Get looks up key in an object.
func (v Value) Get(key string) (Value, bool) {
	for _, m := range v.Members() {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Index returns the i-th array element.
func (v Value) Index(i int) (Value, bool) {
	items := v.Items()
	if i < 0 || i >= len(items) {
		return Value{}, false
	}
	return items[i], true
}

// Equal reports deep equality, including object member order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case Null:
		return true
	case Bool:
		return v.b == o.b
	case Number, String:
		return v.s == o.s
	case Array:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case Object:
		if len(v.members) != len(o.members) {
			return false
		}
		for i := range v.members {
			if v.members[i].Key != o.members[i].Key ||
				!v.members[i].Value.Equal(o.members[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// String returns the canonical two-space indented form.
func (v Value) String() string {
	return Canonical(v)
}
