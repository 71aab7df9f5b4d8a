package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/toolchat/internal/session"
	"github.com/nhle/toolchat/internal/theme"
)

// Layout splits the terminal into a header line, the active view and a
// status line.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with one-line header and status bar.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentHeight is what is left for the active view.
func (l Layout) ContentHeight() int {
	return max(l.Height-l.HeaderHeight-l.StatusBarHeight, 0)
}

// IdentityLabel describes who the session belongs to.
func IdentityLabel(id session.Identity) string {
	switch id.Kind {
	case session.Authenticated:
		return "● " + id.UserID
	case session.Guest:
		return "◐ guest"
	default:
		return "○ signed out"
	}
}

// RenderHeader renders title on the left and status on the right, padded
// to the full width.
func (l Layout) RenderHeader(title, status string) string {
	return l.spread(theme.HeaderStyle, title, status)
}

// RenderStatusBar renders key hints on the left and info on the right.
func (l Layout) RenderStatusBar(hints, info string) string {
	return l.spread(theme.StatusBarStyle, hints, info)
}

func (l Layout) spread(style lipgloss.Style, left, right string) string {
	leftRendered := style.Render(left)
	var rightRendered string
	if right != "" {
		rightRendered = style.Render(right)
	}

	gap := max(l.Width-lipgloss.Width(leftRendered)-lipgloss.Width(rightRendered), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, leftRendered, filler, rightRendered)
}

// RenderWithFrame stacks header, content and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}
