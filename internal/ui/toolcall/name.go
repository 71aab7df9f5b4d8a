package toolcall

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// WebSearchTool is the built-in search tool; it has no app and is shown
// with a globe marker.
const WebSearchTool = "Web_Search"

// PrettifyName turns a tool identifier into a display label. Remote tools
// are named "<app>-<action>", e.g. "google_sheets-add_row" becomes
// "Google Sheets: Add Row".
func PrettifyName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Tool"
	}

	app, action, found := strings.Cut(name, "-")
	if found && app != "" && action != "" {
		return words(app) + ": " + words(action)
	}
	return words(name)
}

func words(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	// Casers carry state, so each call gets its own.
	return cases.Title(language.English).String(strings.Join(parts, " "))
}
