// Package toolcall renders one tool invocation in the chat transcript and
// owns the account-connection state machine for it.
package toolcall

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/toolchat/internal/connect"
	"github.com/nhle/toolchat/internal/connectlink"
	"github.com/nhle/toolchat/internal/highlight"
	"github.com/nhle/toolchat/internal/model"
	"github.com/nhle/toolchat/internal/session"
	"github.com/nhle/toolchat/internal/theme"
)

const (
	securityNote = "Credentials are encrypted. Revoke anytime."

	markerRunning   = "◌"
	markerDone      = "✓"
	markerGlobe     = "🌐"
	markerApp       = "◆"
	chevronClosed   = "▸"
	chevronExpanded = "▾"
)

// Deps carries what a completed tool call needs to offer the connect
// affordance. Connect is a template; ToolCallID is filled in per call,
// and so is Resumer when ResumerFor is set.
type Deps struct {
	Extractor  *connectlink.Extractor
	Connect    connect.Config
	ResumerFor func(toolCallID string) connect.Resumer
	Identity   session.Identity
}

// Model is one tool invocation. It starts out running and is completed
// once with the tool's result.
type Model struct {
	name       string
	toolCallID string
	args       any
	result     any
	running    bool

	appHashID string
	link      *model.ConnectLinkParams
	orch      *connect.Orchestrator
	snap      connect.Snapshot

	expanded bool
	selected bool
	width    int

	// Highlighting is done once per payload.
	request  string
	response string
}

// NewRunning returns a tool call that has started but not finished.
func NewRunning(toolCallID, name string, args any) *Model {
	return &Model{
		name:       name,
		toolCallID: toolCallID,
		args:       args,
		running:    true,
		width:      80,
	}
}

// Complete records the tool result. When the result carries a connect
// link an orchestrator is created for it; its OnChange from deps is kept.
func (m *Model) Complete(inv *model.ToolInvocationResult, deps Deps) {
	m.running = false
	if inv.Name != "" {
		m.name = inv.Name
	}
	if inv.Arguments != nil {
		m.args = inv.Arguments
	}
	m.result = inv.RawResult
	m.request = ""
	m.response = ""

	raw := rawBytes(inv.RawResult)
	m.appHashID = connectlink.AppHashID(raw)

	extractor := deps.Extractor
	if extractor == nil {
		extractor = connectlink.NewExtractor("")
	}
	link, ok := extractor.FromResult(raw)
	if m.orch != nil {
		// A later result supersedes the earlier one. Detaching the link
		// stops its armed resumption and in-flight attempt; the same
		// orchestrator is kept so snapshot versions stay monotonic.
		m.orch.Reset(nil, deps.Identity)
		if !ok {
			m.orch.Close()
			m.orch = nil
			m.link = nil
			m.snap = connect.Snapshot{}
			return
		}
		m.link = &link
		m.orch.Reset(m.link, deps.Identity)
		m.snap = m.orch.Snapshot()
		return
	}
	if !ok {
		return
	}
	m.link = &link

	cfg := deps.Connect
	cfg.ToolCallID = m.toolCallID
	if deps.ResumerFor != nil {
		cfg.Resumer = deps.ResumerFor(m.toolCallID)
	}
	m.orch = connect.New(cfg, m.link, deps.Identity)
	m.snap = m.orch.Snapshot()
}

// rawBytes returns the JSON text of a tool result in whatever shape it
// arrived.
func rawBytes(v any) []byte {
	switch t := v.(type) {
	case nil:
		return nil
	case json.RawMessage:
		return t
	case []byte:
		return t
	case string:
		return []byte(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		return data
	}
}

// ToolCallID returns the id the model gave this call.
func (m *Model) ToolCallID() string { return m.toolCallID }

// Name returns the raw tool name.
func (m *Model) Name() string { return m.name }

// Running reports whether the tool has not returned yet.
func (m *Model) Running() bool { return m.running }

// Expanded reports whether the Request/Response blocks are shown.
func (m *Model) Expanded() bool { return m.expanded }

// Toggle expands or collapses the payload blocks.
func (m *Model) Toggle() {
	if m.running {
		return
	}
	m.expanded = !m.expanded
}

// SetSelected marks the call as the keyboard focus.
func (m *Model) SetSelected(selected bool) { m.selected = selected }

// SetWidth sets the rendering width.
func (m *Model) SetWidth(width int) { m.width = width }

// HasConnect reports whether the result asked the user to link an account.
func (m *Model) HasConnect() bool { return m.orch != nil }

// ConnectState returns the last applied state.
func (m *Model) ConnectState() connect.State { return m.snap.State }

// Connect triggers the linking flow. It reports whether a flow started.
func (m *Model) Connect() bool {
	if m.orch == nil {
		return false
	}
	return m.orch.Trigger()
}

// Apply takes a snapshot delivered by the orchestrator. Older snapshots
// than the one held are ignored and reported as not applied.
func (m *Model) Apply(s connect.Snapshot) bool {
	if m.orch == nil || s.ToolCallID != m.toolCallID || s.Version < m.snap.Version {
		return false
	}
	m.snap = s
	return true
}

// SetIdentity re-gates the affordance for a new effective identity.
func (m *Model) SetIdentity(id session.Identity) {
	if m.orch == nil {
		return
	}
	m.orch.Reset(m.link, id)
	m.Apply(m.orch.Snapshot())
}

// Close releases the orchestrator. Pending resumptions never fire.
func (m *Model) Close() {
	if m.orch != nil {
		m.orch.Close()
	}
}

// View renders the call.
func (m *Model) View() string {
	var sections []string
	sections = append(sections, m.statusLine())

	if m.expanded && !m.running {
		sections = append(sections, m.payloadBlocks()...)
	}
	if m.orch != nil {
		sections = append(sections, m.connectSection()...)
	}

	style := theme.ToolCallStyle
	if m.selected {
		style = theme.SelectedToolCallStyle
	}
	if m.width > 4 {
		style = style.Width(m.width - 2)
	}
	return style.Render(strings.Join(sections, "\n"))
}

func (m *Model) statusLine() string {
	label := theme.DimStyle.Render(PrettifyName(m.name))

	if m.running {
		return theme.DimStyle.Render(markerRunning) + " " + label
	}

	parts := []string{lipgloss.NewStyle().Foreground(theme.ColorGreen).Render(markerDone)}
	switch {
	case m.name == WebSearchTool:
		parts = append(parts, markerGlobe)
	case m.appHashID != "":
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.ColorBlue).Render(markerApp))
	}
	chevron := chevronClosed
	if m.expanded {
		chevron = chevronExpanded
	}
	parts = append(parts, label, theme.DimStyle.Render(chevron))
	return strings.Join(parts, " ")
}

func (m *Model) payloadBlocks() []string {
	if m.request == "" && m.args != nil {
		m.request = highlight.Payload(m.args).Terminal(highlight.DefaultStyles())
	}
	if m.response == "" && m.result != nil {
		m.response = highlight.Payload(m.result).Terminal(highlight.DefaultStyles())
	}

	var out []string
	if icon := connectlink.IconURL(m.appHashID); icon != "" && m.name != WebSearchTool {
		out = append(out, theme.DimStyle.Render("app: "+icon))
	}
	if m.request != "" {
		out = append(out, "", theme.SectionLabelStyle.Render("Request"), m.request)
	}
	if m.response != "" {
		out = append(out, "", theme.SectionLabelStyle.Render("Response"), m.response)
	}
	return out
}

func (m *Model) connectSection() []string {
	stateStyle := theme.ConnectStateStyle(m.snap.State.String())
	note := theme.DimStyle.Render("🔒 " + securityNote)

	switch m.snap.State {
	case connect.AwaitingUserAction:
		return []string{"", theme.ButtonStyle.Render(m.buttonLabel()) + " " + theme.HelpStyle.Render("ctrl+k"), note}

	case connect.Connecting:
		return []string{"", stateStyle.Render("Connecting…") + " " + theme.DimStyle.Render("finish in your browser"), note}

	case connect.Connected:
		return []string{"", stateStyle.Render(markerDone+" Connected") + m.accountSuffix()}

	case connect.Failed:
		msg := "Connection failed"
		if m.snap.Err != nil {
			msg = fmt.Sprintf("Connection failed: %v", m.snap.Err)
		}
		return []string{"", stateStyle.Render(msg), theme.ButtonStyle.Render("Try again") + " " + theme.HelpStyle.Render("ctrl+k"), note}

	default:
		if m.snap.Identity.NeedsSignIn() {
			return []string{"", theme.DimStyle.Render("Sign in to connect accounts: toolchat login")}
		}
		return nil
	}
}

func (m *Model) buttonLabel() string {
	if m.appHashID != "" {
		return markerApp + " Connect account"
	}
	return "Connect account"
}

// accountSuffix describes the linked account once known.
func (m *Model) accountSuffix() string {
	if m.snap.LoadingAccount {
		return " " + theme.DimStyle.Render("(loading…)")
	}
	a := m.snap.Account
	if a == nil {
		return ""
	}
	var parts []string
	if a.AppName != "" {
		parts = append(parts, a.AppName)
	}
	if a.DisplayName != "" {
		parts = append(parts, "("+a.DisplayName+")")
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}
