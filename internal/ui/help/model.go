package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/toolchat/internal/connect"
	"github.com/nhle/toolchat/internal/keys"
	"github.com/nhle/toolchat/internal/theme"
)

// Model is the help overlay: key bindings plus a legend of the tool call
// badges and connection states.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	h.ShowAll = true
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	m.help.Width = max(m.width-4, 10)

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
		"",
		titleStyle.Render("Tool Calls"),
		legend(),
	)

	return theme.BorderStyle.
		Width(max(m.width-2, 10)).
		Height(max(m.height-2, 4)).
		Render(content)
}

func legend() string {
	rows := [][2]string{
		{"◌", "running"},
		{"✓", "finished"},
		{"◆", "app tool"},
		{"🌐", "web search"},
	}
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(theme.ToolCallStyle.Render(r[0]) + "  " + theme.DimStyle.Render(r[1]) + "\n")
	}
	b.WriteString("\n")
	for _, s := range []connect.State{connect.AwaitingUserAction, connect.Connecting, connect.Connected, connect.Failed} {
		b.WriteString(theme.ConnectStateStyle(s.String()).Render(s.String()) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
