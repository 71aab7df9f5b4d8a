package payload

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// maxEntityLen bounds how far past '&' the decoder looks for ';'.
const maxEntityLen = 32

var namedEntities = map[string]string{
	"amp":  "&",
	"lt":   "<",
	"gt":   ">",
	"quot": `"`,
	"apos": "'",
	"#039": "'",
}

var entityEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeEntities replaces the five HTML-significant characters with named
// references. DecodeEntities reverses it exactly.
func EscapeEntities(s string) string {
	return entityEscaper.Replace(s)
}

// DecodeEntities makes a single pass over s replacing the named references
// amp, lt, gt, quot, apos and #039 plus decimal (&#NNN;) and hex (&#xHH;)
// character references. Unknown or malformed references stay as written,
// and replaced text is never rescanned, so "&amp;lt;" becomes "&lt;".
func DecodeEntities(s string) string {
	i := strings.IndexByte(s, '&')
	if i < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i >= 0 {
		b.WriteString(s[:i])
		s = s[i:]

		end := strings.IndexByte(s, ';')
		if end > 1 && end <= maxEntityLen {
			if decoded, ok := decodeEntity(s[1:end]); ok {
				b.WriteString(decoded)
				s = s[end+1:]
				i = strings.IndexByte(s, '&')
				continue
			}
		}

		b.WriteByte('&')
		s = s[1:]
		i = strings.IndexByte(s, '&')
	}
	b.WriteString(s)
	return b.String()
}

func decodeEntity(name string) (string, bool) {
	if v, ok := namedEntities[name]; ok {
		return v, true
	}
	if len(name) < 2 || name[0] != '#' {
		return "", false
	}

	digits, base := name[1:], 10
	if digits[0] == 'x' || digits[0] == 'X' {
		digits, base = digits[1:], 16
	}
	if digits == "" || !allDigits(digits, base) {
		return "", false
	}
	n, err := strconv.ParseUint(digits, base, 32)
	if err != nil {
		return "", false
	}
	r := rune(n)
	if !utf8.ValidRune(r) {
		return "", false
	}
	return string(r), true
}

func allDigits(s string, base int) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case base == 16 && (c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'):
		default:
			return false
		}
	}
	return true
}
