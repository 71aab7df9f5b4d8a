package payload

import "strings"

// maxBlankRun is the longest run of blank lines NormalizeWhitespace keeps.
const maxBlankRun = 2

// NormalizeWhitespace tidies free text: line endings become "\n", trailing
// spaces and tabs are cut from every line, whitespace-only lines become
// empty, leading and trailing blank lines are dropped and runs of blank
// lines are capped at two.
func NormalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	start, end := 0, len(lines)
	for start < end && isBlank(lines[start]) {
		start++
	}
	for end > start && isBlank(lines[end-1]) {
		end--
	}

	out := make([]string, 0, end-start)
	run := 0
	for _, line := range lines[start:end] {
		if isBlank(line) {
			run++
			if run <= maxBlankRun {
				out = append(out, "")
			}
			continue
		}
		run = 0
		out = append(out, strings.TrimRight(line, " \t"))
	}
	return strings.Join(out, "\n")
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}
