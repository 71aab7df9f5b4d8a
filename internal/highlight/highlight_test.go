package highlight

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestHighlightCategories(t *testing.T) {
	got := Highlight(`{"a": "x", "n": -1.5e3, "t": true, "z": null}`)
	want := Annotated{
		{Plain, "{"},
		{Key, `"a"`},
		{Plain, ": "},
		{String, `"x"`},
		{Plain, ", "},
		{Key, `"n"`},
		{Plain, ": "},
		{Number, "-1.5e3"},
		{Plain, ", "},
		{Key, `"t"`},
		{Plain, ": "},
		{Literal, "true"},
		{Plain, ", "},
		{Key, `"z"`},
		{Plain, ": "},
		{Literal, "null"},
		{Plain, "}"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Highlight mismatch (-want +got):\n%s", diff)
	}
}

func TestHighlightEscapedQuoteDoesNotEndString(t *testing.T) {
	got := Highlight(`{"k": "say \"hi\": true"}`)
	var kinds []Kind
	for _, s := range got {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, []Kind{Plain, Key, Plain, String, Plain}, kinds)
	assert.Equal(t, `"say \"hi\": true"`, got[3].Text)
}

func TestHighlightKeyBeforeWhitespaceColon(t *testing.T) {
	got := Highlight("{\"k\"  \n : 1}")
	assert.Equal(t, Key, got[1].Kind)
}

func TestHighlightWordBoundaries(t *testing.T) {
	got := Highlight(`["truex", nullable, 12ab, 7]`)
	var literalOrNumber []string
	for _, s := range got {
		if s.Kind == Literal || s.Kind == Number {
			literalOrNumber = append(literalOrNumber, s.Text)
		}
	}
	assert.Equal(t, []string{"7"}, literalOrNumber)
}

func TestHighlightDisplaySubstitution(t *testing.T) {
	got := Highlight(`{"key\nname": "a\nb\r\nc\td\\n"}`)
	assert.Equal(t, `"key\nname"`, got[1].Text, "keys are not substituted")
	assert.Equal(t, "\"a\nb\nc  d\\\\n\"", got[3].Text)
}

func TestHighlightUnterminatedString(t *testing.T) {
	got := Highlight(`{"open: 1`)
	assert.Equal(t, Annotated{{Plain, `{"open: 1`}}, got)
}

func TestHTMLNeutralizesMarkup(t *testing.T) {
	html := Highlight(`{"<k>": "<script>alert('x')</script>&amp;"}`).HTML()
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, `<span class="json-key">&quot;&lt;k&gt;&quot;</span>`)
	assert.Contains(t, html, "&lt;script&gt;alert(&apos;x&apos;)&lt;/script&gt;&amp;amp;")
	assert.Equal(t, 2, strings.Count(html, "<span"))
}

func TestTextRoundTrip(t *testing.T) {
	text := "{\n  \"a\": [\n    1,\n    false\n  ]\n}"
	assert.Equal(t, text, Highlight(text).Text())
}

func TestPayloadHighlightsNormalizedValue(t *testing.T) {
	got := Payload(map[string]any{"data": `{"ok":true}`})
	assert.Equal(t, "{\n  \"data\": {\n    \"ok\": true\n  }\n}", got.Text())
}
