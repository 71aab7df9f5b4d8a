package connectlink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/toolchat/internal/model"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want model.ConnectLinkParams
		ok   bool
	}{
		{
			name: "plain link",
			text: "Please connect: https://host/connect.html?token=abc&app=app_123 then retry",
			want: model.ConnectLinkParams{Token: "abc", AppIdentifier: "app_123"},
			ok:   true,
		},
		{
			name: "missing app",
			text: "Please connect: https://host/connect.html?token=abc then retry",
		},
		{
			name: "empty token",
			text: "https://host/connect.html?token=&app=slack",
		},
		{
			name: "extra fields ignored",
			text: "https://pipedream.com/_static/connect.html?token=ctok_1&connectLink=true&app=slack&x=y",
			want: model.ConnectLinkParams{Token: "ctok_1", AppIdentifier: "slack"},
			ok:   true,
		},
		{
			name: "entity-encoded ampersand and trailing period",
			text: "Visit https://host/_static/connect.html?token=t1&amp;app=gmail.",
			want: model.ConnectLinkParams{Token: "t1", AppIdentifier: "gmail"},
			ok:   true,
		},
		{
			name: "wrapped in parentheses",
			text: "(https://host/connect.html?app=github&token=z9)",
			want: model.ConnectLinkParams{Token: "z9", AppIdentifier: "github"},
			ok:   true,
		},
		{
			name: "not https",
			text: "http://host/connect.html?token=abc&app=app_123",
		},
		{
			name: "no link",
			text: "All done.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractorWithBaseURL(t *testing.T) {
	e := NewExtractor("https://pipedream.com/_static/connect.html")

	_, ok := e.Extract("https://evil.example/connect.html?token=abc&app=x")
	assert.False(t, ok)

	got, ok := e.Extract("go to https://pipedream.com/_static/connect.html?token=abc&app=x now")
	require.True(t, ok)
	assert.Equal(t, model.ConnectLinkParams{Token: "abc", AppIdentifier: "x"}, got)
}

func TestFromResult(t *testing.T) {
	raw := []byte(`{"content":[{"type":"text","hashid":"app_1N","text":"Connect at https://h/connect.html?token=T&app=A"}]}`)

	got, ok := NewExtractor("").FromResult(raw)
	require.True(t, ok)
	assert.Equal(t, model.ConnectLinkParams{Token: "T", AppIdentifier: "A"}, got)
	assert.Equal(t, "app_1N", AppHashID(raw))
	assert.Equal(t, "https://pipedream.com/s.v0/app_1N/logo/48", IconURL(AppHashID(raw)))
}

func TestFirstTextToleratesOddShapes(t *testing.T) {
	assert.Empty(t, FirstText(nil))
	assert.Empty(t, FirstText([]byte(`"just a string"`)))
	assert.Empty(t, FirstText([]byte(`{"content":[]}`)))
	assert.Empty(t, IconURL(""))
}
