// Package connectlink finds the account-linking URL a tool embeds in its
// text output and pulls the connect token and app out of it.
package connectlink

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/nhle/toolchat/internal/model"
	"github.com/nhle/toolchat/internal/payload"
)

// defaultPattern matches any https URL whose path mentions connect.html.
var defaultPattern = regexp.MustCompile(`https://[^\s/"'<>]+/[^\s"'<>]*connect\.html[^\s"'<>]*`)

// trailingPunct is stripped from the end of a matched URL; prose often
// ends a sentence right after a link.
const trailingPunct = `).,;:'"!?>]`

// Extractor finds connect links in tool output.
type Extractor struct {
	pattern *regexp.Regexp
}

// NewExtractor returns an Extractor that only accepts links starting with
// baseURL. An empty baseURL accepts any https connect.html link.
func NewExtractor(baseURL string) *Extractor {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return &Extractor{pattern: defaultPattern}
	}
	return &Extractor{pattern: regexp.MustCompile(regexp.QuoteMeta(baseURL) + `[^\s"'<>]*`)}
}

var defaultExtractor = &Extractor{pattern: defaultPattern}

// Extract is shorthand for the default extractor.
func Extract(rawText string) (model.ConnectLinkParams, bool) {
	return defaultExtractor.Extract(rawText)
}

// Extract returns the token and app of the first connect link in rawText.
// It reports false unless both query parameters are present and non-empty.
func (e *Extractor) Extract(rawText string) (model.ConnectLinkParams, bool) {
	if rawText == "" {
		return model.ConnectLinkParams{}, false
	}
	match := e.pattern.FindString(rawText)
	if match == "" {
		return model.ConnectLinkParams{}, false
	}
	match = strings.TrimRight(payload.DecodeEntities(match), trailingPunct)

	u, err := url.Parse(match)
	if err != nil {
		return model.ConnectLinkParams{}, false
	}
	q := u.Query()
	params := model.ConnectLinkParams{
		Token:         q.Get("token"),
		AppIdentifier: q.Get("app"),
	}
	if !params.Valid() {
		return model.ConnectLinkParams{}, false
	}
	return params, true
}

// FromResult extracts a connect link from the first text segment of a raw
// tool result.
func (e *Extractor) FromResult(raw []byte) (model.ConnectLinkParams, bool) {
	return e.Extract(FirstText(raw))
}

// FirstText returns content[0].text of a tool result, or "".
func FirstText(raw []byte) string {
	return gjson.GetBytes(raw, "content.0.text").String()
}

// AppHashID returns content[0].hashid of a tool result, or "".
func AppHashID(raw []byte) string {
	return gjson.GetBytes(raw, "content.0.hashid").String()
}

// IconURL returns the 48px logo URL for an app hash id, or "" when the id
// is unknown.
func IconURL(hashID string) string {
	if hashID == "" {
		return ""
	}
	return "https://pipedream.com/s.v0/" + url.PathEscape(hashID) + "/logo/48"
}
