// Package chat is the conversation panel: transcript, input box, streaming
// replies and the tool calls they contain.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/nhle/toolchat/internal/ai"
	"github.com/nhle/toolchat/internal/connect"
	"github.com/nhle/toolchat/internal/connectlink"
	"github.com/nhle/toolchat/internal/keys"
	"github.com/nhle/toolchat/internal/session"
	"github.com/nhle/toolchat/internal/theme"
	"github.com/nhle/toolchat/internal/ui/toolcall"
)

type role int

const (
	roleUser role = iota
	roleAssistant
	roleTool
	roleError
)

// entry is one block of the transcript.
type entry struct {
	role    role
	content string
	tool    *toolcall.Model
}

// Config wires the panel to the rest of the application.
type Config struct {
	// Assistant is nil when no API key is configured.
	Assistant *ai.Assistant

	// Connect is the orchestrator template for tool calls. Resumer and
	// OnChange are supplied by the panel from Dispatcher.
	Connect    connect.Config
	Extractor  *connectlink.Extractor
	Identity   session.Identity
	Dispatcher *Dispatcher
	Keys       *keys.KeyMap
	WordWrap   int
	// Style is a glamour style name; empty or "default" follows the
	// terminal background.
	Style  string
	Logger *zap.Logger
}

// Model is the chat panel Bubble Tea model.
type Model struct {
	assistant *ai.Assistant
	deps      toolcall.Deps
	logger    *zap.Logger

	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	keys     *keys.KeyMap

	entries []entry
	// selected indexes entries; -1 means no tool call has focus.
	selected int

	streaming bool
	cancel    context.CancelFunc
	// turn numbers submissions so chunks of an abandoned reply are ignored.
	turn int
	// pending holds resume turns that arrived while a reply was streaming.
	pending []string

	width    int
	height   int
	wordWrap int
	style    string
	noAPIKey bool
}

// New creates a chat panel.
func New(cfg Config, width, height int) Model {
	if cfg.Keys == nil {
		cfg.Keys = keys.DefaultKeyMap()
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = NewDispatcher()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.WordWrap <= 0 {
		cfg.WordWrap = 80
	}

	cc := cfg.Connect
	cc.OnChange = cfg.Dispatcher.OnChange
	if cc.Logger == nil {
		cc.Logger = cfg.Logger
	}

	ta := textarea.New()
	ta.Placeholder = "Ask anything. Tools for your connected apps are available."
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.SetWidth(max(width-4, 10))
	ta.SetHeight(3)
	ta.CharLimit = 4000
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	vp := viewport.New(max(width-4, 10), viewportHeight(height))
	vp.Style = lipgloss.NewStyle()
	// Paging is bound explicitly; letters belong to the input box.
	vp.KeyMap = viewport.KeyMap{}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.DimStyle

	m := Model{
		assistant: cfg.Assistant,
		deps: toolcall.Deps{
			Extractor: cfg.Extractor,
			Connect:    cc,
			ResumerFor: cfg.Dispatcher.ResumerFor,
			Identity:   cfg.Identity,
		},
		logger:   cfg.Logger,
		input:    ta,
		viewport: vp,
		spinner:  sp,
		keys:     cfg.Keys,
		selected: -1,
		width:    width,
		height:   height,
		wordWrap: cfg.WordWrap,
		style:    cfg.Style,
		noAPIKey: cfg.Assistant == nil,
	}
	m.renderer = newRenderer(cfg.Style, min(cfg.WordWrap, max(width-8, 20)))
	m.refreshViewport()
	return m
}

func newRenderer(style string, wrap int) *glamour.TermRenderer {
	styleOpt := glamour.WithAutoStyle()
	if style != "" && style != "default" {
		styleOpt = glamour.WithStandardStyle(style)
	}
	r, err := glamour.NewTermRenderer(
		styleOpt,
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return nil
	}
	return r
}

func viewportHeight(height int) int {
	h := height - 8 // input area + borders
	if h < 4 {
		h = 4
	}
	return h
}

// Init returns the initial command for the chat panel.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

// Update handles messages for the chat panel.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case streamStartedMsg:
		if msg.turn != m.turn {
			return m, nil
		}
		return m, waitForNextChunk(msg.turn, msg.ch)

	case chunkMsg:
		if msg.turn != m.turn || !m.streaming {
			return m, nil
		}
		return m.handleChunk(msg)

	case ConnectStateMsg:
		if t := m.findTool(msg.Snapshot.ToolCallID); t != nil && t.Apply(msg.Snapshot) {
			m.refreshViewport()
		}
		return m, nil

	case ResumeMsg:
		return m.handleResume(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.streaming {
			m.refreshViewport()
		}
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	var cmds []tea.Cmd

	var taCmd tea.Cmd
	m.input, taCmd = m.input.Update(msg)
	if taCmd != nil {
		cmds = append(cmds, taCmd)
	}

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	if vpCmd != nil {
		cmds = append(cmds, vpCmd)
	}

	return m, tea.Batch(cmds...)
}

// handleKeyMsg processes keyboard input for the chat panel.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Send):
		if m.noAPIKey || m.streaming {
			return m, nil
		}
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		return m.submit(text)

	case key.Matches(msg, m.keys.NextTool):
		m.moveSelection(1)
		return m, nil

	case key.Matches(msg, m.keys.PrevTool):
		m.moveSelection(-1)
		return m, nil

	case key.Matches(msg, m.keys.ToggleTool):
		if t := m.focusedTool(false); t != nil {
			t.Toggle()
			m.refreshViewport()
		}
		return m, nil

	case key.Matches(msg, m.keys.Connect):
		if t := m.focusedTool(true); t != nil && t.Connect() {
			m.logger.Info("connect triggered", zap.String("tool_call_id", t.ToolCallID()))
		}
		return m, nil

	case key.Matches(msg, m.keys.Back):
		m.setSelection(-1)
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.HalfPageUp()
		return m, nil

	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.HalfPageDown()
		return m, nil

	case key.Matches(msg, m.keys.Reset):
		m.Reset()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit appends a user turn and starts streaming the reply.
func (m Model) submit(text string) (Model, tea.Cmd) {
	m.entries = append(m.entries, entry{role: roleUser, content: text})
	m.streaming = true
	m.turn++

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.refreshViewport()

	return m, sendMessage(ctx, m.turn, m.assistant, text)
}

// handleResume submits a resume turn, or queues it behind the reply that
// is streaming. A resume whose tool call is no longer in the transcript,
// such as one that fired across a reset, is dropped.
func (m Model) handleResume(msg ResumeMsg) (Model, tea.Cmd) {
	if m.noAPIKey || strings.TrimSpace(msg.Content) == "" {
		return m, nil
	}
	if m.findTool(msg.ToolCallID) == nil {
		m.logger.Debug("dropping resume for unknown tool call", zap.String("tool_call_id", msg.ToolCallID))
		return m, nil
	}
	if m.streaming {
		m.pending = append(m.pending, msg.Content)
		return m, nil
	}
	return m.submit(msg.Content)
}

// handleChunk folds one reply chunk into the transcript.
func (m Model) handleChunk(msg chunkMsg) (Model, tea.Cmd) {
	c := msg.chunk

	switch {
	case c.Running != nil:
		t := toolcall.NewRunning(c.Running.ToolCallID, c.Running.Name, c.Running.Arguments)
		t.SetWidth(m.viewport.Width)
		m.entries = append(m.entries, entry{role: roleTool, tool: t})

	case c.Tool != nil:
		t := m.findTool(c.Tool.ToolCallID)
		if t == nil {
			t = toolcall.NewRunning(c.Tool.ToolCallID, c.Tool.Name, c.Tool.Arguments)
			t.SetWidth(m.viewport.Width)
			m.entries = append(m.entries, entry{role: roleTool, tool: t})
		}
		t.Complete(c.Tool, m.deps)

	case c.Err != nil:
		m.entries = append(m.entries, entry{role: roleError, content: c.Err.Error()})

	case c.Text != "":
		if n := len(m.entries); n > 0 && m.entries[n-1].role == roleAssistant {
			m.entries[n-1].content += c.Text
		} else {
			m.entries = append(m.entries, entry{role: roleAssistant, content: c.Text})
		}
	}

	if c.Done || msg.closed {
		m.streaming = false
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.refreshViewport()
		if len(m.pending) > 0 {
			next := m.pending[0]
			m.pending = m.pending[1:]
			return m.submit(next)
		}
		return m, nil
	}

	m.refreshViewport()
	return m, waitForNextChunk(msg.turn, msg.ch)
}

// sendMessage returns a command that starts a turn on the assistant.
func sendMessage(ctx context.Context, turn int, assistant *ai.Assistant, text string) tea.Cmd {
	return func() tea.Msg {
		ch, err := assistant.SendMessage(ctx, text)
		if err != nil {
			return chunkMsg{turn: turn, chunk: ai.StreamChunk{Err: err, Done: true}}
		}
		return streamStartedMsg{turn: turn, ch: ch}
	}
}

// waitForNextChunk returns a command that waits for the next chunk from
// the streaming channel.
func waitForNextChunk(turn int, ch <-chan ai.StreamChunk) tea.Cmd {
	return func() tea.Msg {
		chunk, ok := <-ch
		if !ok {
			return chunkMsg{turn: turn, closed: true}
		}
		return chunkMsg{turn: turn, chunk: chunk, ch: ch}
	}
}

func (m *Model) findTool(toolCallID string) *toolcall.Model {
	if toolCallID == "" {
		return nil
	}
	for i := len(m.entries) - 1; i >= 0; i-- {
		if t := m.entries[i].tool; t != nil && t.ToolCallID() == toolCallID {
			return t
		}
	}
	return nil
}

// toolIndexes lists the entries that are tool calls, oldest first.
func (m *Model) toolIndexes() []int {
	var idx []int
	for i, e := range m.entries {
		if e.tool != nil {
			idx = append(idx, i)
		}
	}
	return idx
}

func (m *Model) moveSelection(delta int) {
	idx := m.toolIndexes()
	if len(idx) == 0 {
		return
	}
	pos := -1
	for i, e := range idx {
		if e == m.selected {
			pos = i
		}
	}
	switch {
	case pos == -1 && delta > 0:
		pos = 0
	case pos == -1:
		pos = len(idx) - 1
	default:
		pos = (pos + delta + len(idx)) % len(idx)
	}
	m.setSelection(idx[pos])
}

func (m *Model) setSelection(i int) {
	if m.selected >= 0 && m.selected < len(m.entries) && m.entries[m.selected].tool != nil {
		m.entries[m.selected].tool.SetSelected(false)
	}
	m.selected = i
	if i >= 0 && i < len(m.entries) && m.entries[i].tool != nil {
		m.entries[i].tool.SetSelected(true)
	}
	m.refreshViewport()
}

// focusedTool returns the selected tool call, or without a selection the
// newest one (the newest offering a connect when wantConnect is set).
func (m *Model) focusedTool(wantConnect bool) *toolcall.Model {
	if m.selected >= 0 && m.selected < len(m.entries) && m.entries[m.selected].tool != nil {
		return m.entries[m.selected].tool
	}
	for i := len(m.entries) - 1; i >= 0; i-- {
		t := m.entries[i].tool
		if t == nil || t.Running() {
			continue
		}
		if !wantConnect || t.HasConnect() {
			return t
		}
	}
	return nil
}

// SetIdentity re-gates every connect affordance for a new identity.
func (m *Model) SetIdentity(id session.Identity) {
	m.deps.Identity = id
	for _, e := range m.entries {
		if e.tool != nil {
			e.tool.SetIdentity(id)
		}
	}
	m.refreshViewport()
}

// Streaming reports whether a reply is in flight.
func (m Model) Streaming() bool { return m.streaming }

// refreshViewport re-renders the conversation content and scrolls to bottom.
func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderConversation())
	m.viewport.GotoBottom()
}

// renderConversation builds the conversation display string.
func (m Model) renderConversation() string {
	if len(m.entries) == 0 && !m.noAPIKey {
		return lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("Ask me to do something in one of your apps. " +
				"If an app is not connected yet, I will offer a link.")
	}

	var sections []string
	for _, e := range m.entries {
		switch e.role {
		case roleUser:
			sections = append(sections, theme.UserLabelStyle.Render("You:"), e.content, "")
		case roleAssistant:
			sections = append(sections, theme.AssistantLabelStyle.Render("Assistant:"), m.renderMarkdown(e.content))
		case roleTool:
			e.tool.SetWidth(m.viewport.Width)
			sections = append(sections, e.tool.View(), "")
		case roleError:
			sections = append(sections, theme.ErrorStyle.Render("Error: "+e.content), "")
		}
	}

	if m.streaming {
		sections = append(sections, m.spinner.View()+theme.DimStyle.Render(" thinking"))
	}

	return strings.Join(sections, "\n")
}

func (m Model) renderMarkdown(md string) string {
	if m.renderer == nil {
		return md + "\n"
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return md + "\n"
	}
	return out
}

// View renders the chat panel.
func (m Model) View() string {
	if m.noAPIKey {
		return m.renderNoAPIKey()
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-6, 80), 1)))

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewport.View(),
		separator,
		m.input.View(),
	)

	return theme.BorderStyle.
		Width(max(m.width-2, 10)).
		Render(content)
}

// renderNoAPIKey shows a message when the API key is not configured.
func (m Model) renderNoAPIKey() string {
	style := lipgloss.NewStyle().
		Width(max(m.width-4, 10)).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	msg := "The assistant requires an Anthropic API key.\n\n" +
		"Run `toolchat login` to store it in the system keyring\n" +
		"  (key name: anthropic-api-key),\n\n" +
		"or set the ANTHROPIC_API_KEY environment variable.\n\n" +
		"Press ctrl+c to quit."

	return theme.BorderStyle.
		Width(max(m.width-2, 10)).
		Height(max(m.height-2, 4)).
		Render(style.Render(msg))
}

// SetSize updates the chat panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.SetWidth(max(width-4, 10))
	m.viewport.Width = max(width-4, 10)
	m.viewport.Height = viewportHeight(height)
	m.renderer = newRenderer(m.style, min(m.wordWrap, max(width-8, 20)))
	m.refreshViewport()
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}

// Reset clears the conversation, abandons every connect flow and resets
// the assistant context.
func (m *Model) Reset() {
	m.closeAll()
	m.entries = nil
	m.pending = nil
	m.selected = -1
	m.streaming = false
	m.input.Reset()
	if m.assistant != nil {
		m.assistant.Reset()
	}
	m.refreshViewport()
}

// Close tears the panel down: the in-flight reply is cancelled and no
// pending resumption fires.
func (m *Model) Close() {
	m.closeAll()
	m.pending = nil
}

func (m *Model) closeAll() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	for _, e := range m.entries {
		if e.tool != nil {
			e.tool.Close()
		}
	}
}

// Summary describes the transcript for the status bar.
func (m Model) Summary() string {
	tools := len(m.toolIndexes())
	if tools == 0 {
		return ""
	}
	return fmt.Sprintf("%d tool call(s)", tools)
}
