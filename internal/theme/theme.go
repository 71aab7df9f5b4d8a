package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// BorderStyle provides a standard rounded border for panels.
var BorderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// Chat transcript styles.
var (
	UserLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(ColorBlue)
	AssistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorGreen)
	ErrorStyle          = lipgloss.NewStyle().Foreground(ColorRed)
	DimStyle            = lipgloss.NewStyle().Foreground(ColorGray)
)

// ToolCallStyle frames one tool invocation in the transcript.
var ToolCallStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder).
	Padding(0, 1)

// SelectedToolCallStyle frames the tool invocation that has focus.
var SelectedToolCallStyle = ToolCallStyle.
	BorderForeground(ColorBlue)

// SectionLabelStyle labels the Request and Response blocks.
var SectionLabelStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorGray)

// ButtonStyle renders the connect affordance.
var ButtonStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// JSON token styles used by the payload highlighter.
var (
	JSONKeyStyle     = lipgloss.NewStyle().Foreground(ColorBlue)
	JSONStringStyle  = lipgloss.NewStyle().Foreground(ColorGreen)
	JSONLiteralStyle = lipgloss.NewStyle().Foreground(ColorMagenta)
	JSONNumberStyle  = lipgloss.NewStyle().Foreground(ColorYellow)
)

// ConnectStateStyle returns a color-coded style for an account connection
// state name as produced by connect.State.String.
func ConnectStateStyle(state string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch state {
	case "awaiting_user_action":
		return base.Foreground(ColorBlue)
	case "connecting":
		return base.Foreground(ColorYellow)
	case "connected":
		return base.Foreground(ColorGreen)
	case "failed":
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGray)
	}
}
