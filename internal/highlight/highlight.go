// Package highlight splits canonical JSON text into styled spans for the
// terminal and for HTML.
package highlight

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/toolchat/internal/payload"
	"github.com/nhle/toolchat/internal/theme"
)

// Kind categorizes a span of highlighted text.
type Kind uint8

const (
	Plain Kind = iota
	Key
	String
	Literal
	Number
)

func (k Kind) class() string {
	switch k {
	case Key:
		return "json-key"
	case String:
		return "json-string"
	case Literal:
		return "json-literal"
	case Number:
		return "json-number"
	default:
		return ""
	}
}

// Span is a run of text with a single category. Text is raw display text;
// renderers escape it.
type Span struct {
	Kind Kind
	Text string
}

// Annotated is highlighted text in source order.
type Annotated []Span

// Styles maps span kinds to terminal styles.
type Styles struct {
	Key     lipgloss.Style
	String  lipgloss.Style
	Literal lipgloss.Style
	Number  lipgloss.Style
}

// DefaultStyles uses the application theme.
func DefaultStyles() Styles {
	return Styles{
		Key:     theme.JSONKeyStyle,
		String:  theme.JSONStringStyle,
		Literal: theme.JSONLiteralStyle,
		Number:  theme.JSONNumberStyle,
	}
}

// Highlight scans jsonText once from left to right. A string followed by a
// colon is a key; other strings are values and have their \n, \r\n and \t
// escapes turned into real line breaks and indentation for display.
// Malformed input never fails; unrecognized text is simply Plain.
func Highlight(jsonText string) Annotated {
	var out Annotated
	plainStart := 0
	flush := func(end int) {
		if end > plainStart {
			out = append(out, Span{Kind: Plain, Text: jsonText[plainStart:end]})
		}
	}

	for i := 0; i < len(jsonText); {
		c := jsonText[i]
		switch {
		case c == '"':
			end, ok := scanString(jsonText, i)
			if !ok {
				i = len(jsonText)
				continue
			}
			flush(i)
			tok := jsonText[i:end]
			if followedByColon(jsonText, end) {
				out = append(out, Span{Kind: Key, Text: tok})
			} else {
				out = append(out, Span{Kind: String, Text: displayString(tok)})
			}
			i, plainStart = end, end

		case (c == '-' || isDigit(c)) && boundaryBefore(jsonText, i):
			end := scanNumber(jsonText, i)
			if end > i && boundaryAfter(jsonText, end) {
				flush(i)
				out = append(out, Span{Kind: Number, Text: jsonText[i:end]})
				i, plainStart = end, end
				continue
			}
			i++

		case c == 't' || c == 'f' || c == 'n':
			if lit := matchLiteral(jsonText, i); lit != "" {
				flush(i)
				out = append(out, Span{Kind: Literal, Text: lit})
				i += len(lit)
				plainStart = i
				continue
			}
			i++

		default:
			i++
		}
	}
	flush(len(jsonText))
	return out
}

// scanString returns the index just past the closing quote of the string
// starting at text[start]. A backslash always consumes the next byte.
func scanString(text string, start int) (int, bool) {
	for i := start + 1; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case '"':
			return i + 1, true
		}
	}
	return 0, false
}

func followedByColon(text string, i int) bool {
	for ; i < len(text); i++ {
		switch text[i] {
		case ' ', '\t', '\n', '\r':
		case ':':
			return true
		default:
			return false
		}
	}
	return false
}

// displayString expands \n, \r\n and \t escapes of a quoted string token.
// Other escapes, including an escaped backslash, are left as written.
func displayString(tok string) string {
	if !strings.Contains(tok, `\`) {
		return tok
	}
	var b strings.Builder
	b.Grow(len(tok))
	for i := 0; i < len(tok); i++ {
		if tok[i] != '\\' || i+1 >= len(tok) {
			b.WriteByte(tok[i])
			continue
		}
		switch next := tok[i+1]; {
		case next == 'n':
			b.WriteByte('\n')
			i++
		case next == 't':
			b.WriteString("  ")
			i++
		case next == 'r' && strings.HasPrefix(tok[i+2:], `\n`):
			b.WriteByte('\n')
			i += 3
		default:
			b.WriteByte('\\')
			b.WriteByte(next)
			i++
		}
	}
	return b.String()
}

func scanNumber(text string, i int) int {
	start := i
	if i < len(text) && text[i] == '-' {
		i++
	}
	digits := i
	for i < len(text) && isDigit(text[i]) {
		i++
	}
	if i == digits {
		return start
	}
	if i+1 < len(text) && text[i] == '.' && isDigit(text[i+1]) {
		i++
		for i < len(text) && isDigit(text[i]) {
			i++
		}
	}
	if i < len(text) && (text[i] == 'e' || text[i] == 'E') {
		j := i + 1
		if j < len(text) && (text[j] == '+' || text[j] == '-') {
			j++
		}
		if j < len(text) && isDigit(text[j]) {
			for j < len(text) && isDigit(text[j]) {
				j++
			}
			i = j
		}
	}
	return i
}

var literals = [...]string{"true", "false", "null"}

func matchLiteral(text string, i int) string {
	if !boundaryBefore(text, i) {
		return ""
	}
	for _, lit := range literals {
		if strings.HasPrefix(text[i:], lit) && boundaryAfter(text, i+len(lit)) {
			return lit
		}
	}
	return ""
}

func boundaryBefore(text string, i int) bool {
	return i == 0 || !isWordByte(text[i-1])
}

func boundaryAfter(text string, i int) bool {
	return i >= len(text) || !isWordByte(text[i])
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordByte(c byte) bool {
	return isDigit(c) || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c == '.'
}

// Text returns the display text with no markup.
func (a Annotated) Text() string {
	var b strings.Builder
	for _, s := range a {
		b.WriteString(s.Text)
	}
	return b.String()
}

// HTML escapes every span and wraps the categorized ones in
// <span class="json-…"> elements.
func (a Annotated) HTML() string {
	var b strings.Builder
	for _, s := range a {
		text := payload.EscapeEntities(s.Text)
		if s.Kind == Plain {
			b.WriteString(text)
			continue
		}
		b.WriteString(`<span class="`)
		b.WriteString(s.Kind.class())
		b.WriteString(`">`)
		b.WriteString(text)
		b.WriteString("</span>")
	}
	return b.String()
}

// Terminal renders the spans with lipgloss styles.
func (a Annotated) Terminal(st Styles) string {
	var b strings.Builder
	for _, s := range a {
		switch s.Kind {
		case Key:
			b.WriteString(st.Key.Render(s.Text))
		case String:
			b.WriteString(renderLines(st.String, s.Text))
		case Literal:
			b.WriteString(st.Literal.Render(s.Text))
		case Number:
			b.WriteString(st.Number.Render(s.Text))
		default:
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

// renderLines styles each line separately so that a multi-line value does
// not get padded into a block.
func renderLines(st lipgloss.Style, text string) string {
	if !strings.Contains(text, "\n") {
		return st.Render(text)
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = st.Render(line)
	}
	return strings.Join(lines, "\n")
}

// Payload normalizes v, prints it canonically and highlights the result.
func Payload(v any) Annotated {
	return Highlight(payload.Pretty(v))
}
