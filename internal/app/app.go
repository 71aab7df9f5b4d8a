package app

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/toolchat/internal/keys"
	"github.com/nhle/toolchat/internal/session"
	appsync "github.com/nhle/toolchat/internal/sync"
	"github.com/nhle/toolchat/internal/ui"
	accountsview "github.com/nhle/toolchat/internal/ui/accounts"
	"github.com/nhle/toolchat/internal/ui/chat"
	helpview "github.com/nhle/toolchat/internal/ui/help"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewChat ViewState = iota
	ViewAccounts
	ViewHelp
)

// IdentityMsg reports that the signed-in user changed while running.
type IdentityMsg struct {
	Identity session.Identity
}

// Config holds the pieces the root model routes between.
type Config struct {
	Chat chat.Config
	// Accounts backs the accounts manager; nil when the connect platform
	// is not configured.
	Accounts accountsview.Service
	// Poller refreshes the account count shown in the header; optional.
	Poller   *appsync.Poller
	Identity session.Identity
	Keys     *keys.KeyMap
	Logger   *zap.Logger
}

// Model is the root Bubble Tea model that manages view routing and the
// frame around the active view.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	logger       *zap.Logger
	poller       *appsync.Poller

	chat     chat.Model
	accounts accountsview.Model
	help     helpview.Model

	identity     session.Identity
	accountCount int
	accountsErr  error
	ready        bool
}

// New creates the root application model.
func New(cfg Config) Model {
	if cfg.Keys == nil {
		cfg.Keys = keys.DefaultKeyMap()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	cfg.Chat.Keys = cfg.Keys
	cfg.Chat.Identity = cfg.Identity
	if cfg.Chat.Logger == nil {
		cfg.Chat.Logger = cfg.Logger
	}

	return Model{
		currentView: ViewChat,
		keys:        cfg.Keys,
		logger:      cfg.Logger,
		poller:      cfg.Poller,
		chat:        chat.New(cfg.Chat, 80, 24),
		accounts:    accountsview.New(cfg.Accounts, 80, 24),
		help:        helpview.New(cfg.Keys, 80, 24),
		identity:    cfg.Identity,
	}
}

func (m Model) Init() tea.Cmd {
	if m.poller == nil {
		return m.chat.Init()
	}
	return tea.Batch(m.chat.Init(), m.poller.Start())
}

// Update handles messages and dispatches to the active view. Messages
// that are not key presses always reach the chat, since replies and
// connection updates keep arriving while another view is open.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		h := m.layout.ContentHeight()
		m.chat.SetSize(msg.Width, h)
		m.accounts.SetSize(msg.Width, h)
		m.help.SetSize(msg.Width, h)
		if m.currentView == ViewAccounts {
			var cmd tea.Cmd
			m.accounts, cmd = m.accounts.Update(msg)
			return m, cmd
		}
		return m, nil

	case IdentityMsg:
		m.identity = msg.Identity
		m.chat.SetIdentity(msg.Identity)
		m.logger.Info("identity changed", zap.Stringer("kind", msg.Identity.Kind))
		return m, nil

	case appsync.RefreshMsg:
		m.accountsErr = msg.Err
		if msg.Err == nil {
			m.accountCount = len(msg.Accounts)
		}
		return m, m.poller.WaitForNextResult()

	case accountsview.CloseMsg:
		if m.poller != nil {
			m.poller.Refresh()
		}
		m.currentView = ViewChat
		cmd := m.chat.Focus()
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.chat.Close()
			if m.poller != nil {
				m.poller.Stop()
			}
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case key.Matches(msg, m.keys.Accounts):
			if m.currentView == ViewAccounts {
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewAccounts
			cmd := m.accounts.Init()
			return m, cmd

		case m.currentView == ViewHelp && key.Matches(msg, m.keys.Back):
			m.currentView = m.previousView
			return m, nil
		}
		return m.updateActiveView(msg)
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.chat, cmd = m.chat.Update(msg)
	cmds = append(cmds, cmd)
	if m.currentView == ViewAccounts {
		m.accounts, cmd = m.accounts.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// updateActiveView dispatches a key press to the active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case ViewChat:
		m.chat, cmd = m.chat.Update(msg)
	case ViewAccounts:
		m.accounts, cmd = m.accounts.Update(msg)
	case ViewHelp:
		m.help, cmd = m.help.Update(msg)
	}
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("toolchat", m.headerStatus())
	status := m.layout.RenderStatusBar(m.keyHints(), m.statusInfo())
	return m.layout.RenderWithFrame(header, m.renderContent(), status)
}

func (m Model) renderContent() string {
	switch m.currentView {
	case ViewAccounts:
		return m.accounts.View()
	case ViewHelp:
		return m.help.View()
	default:
		return m.chat.View()
	}
}

func (m Model) headerStatus() string {
	label := ui.IdentityLabel(m.identity)
	switch {
	case m.poller == nil:
		return label
	case m.accountsErr != nil:
		return label + " · accounts unavailable"
	default:
		return fmt.Sprintf("%s · %d account(s)", label, m.accountCount)
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "ctrl+g close help | esc back"
	case ViewAccounts:
		return "j/k move | d revoke | r reload | esc back"
	default:
		if m.identity.NeedsSignIn() {
			return "sign in with `toolchat login` to connect accounts | ctrl+g help | ctrl+c quit"
		}
		return "enter send | tab tool | ctrl+k connect | ctrl+o accounts | ctrl+g help | ctrl+c quit"
	}
}

func (m Model) statusInfo() string {
	if m.currentView != ViewChat {
		return ""
	}
	if m.chat.Streaming() {
		return "thinking…"
	}
	return m.chat.Summary()
}

// CurrentView reports the active view.
func (m Model) CurrentView() ViewState {
	return m.currentView
}
