// Package accounts is the connected-accounts manager: list the current
// user's linked accounts and revoke them.
package accounts

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/toolchat/internal/model"
	"github.com/nhle/toolchat/internal/theme"
)

// Mode is the current state of the accounts view.
type Mode int

const (
	ModeList          Mode = iota // List connected accounts
	ModeLoading                   // Fetching from the platform
	ModeConfirmDelete             // Confirm revocation
)

// Service is what the view needs from the accounts service.
type Service interface {
	List(ctx context.Context) ([]model.Account, error)
	Delete(ctx context.Context, id string) error
}

// CloseMsg signals the view should close and return to the chat.
type CloseMsg struct{}

// accountsLoadedMsg is sent when accounts have been fetched.
type accountsLoadedMsg struct {
	accounts []model.Account
	err      error
}

// accountDeletedMsg is sent after an account is revoked.
type accountDeletedMsg struct {
	id  string
	err error
}

var (
	upKey     = key.NewBinding(key.WithKeys("k", "up"))
	downKey   = key.NewBinding(key.WithKeys("j", "down"))
	deleteKey = key.NewBinding(key.WithKeys("d"))
	reloadKey = key.NewBinding(key.WithKeys("r"))
	backKey   = key.NewBinding(key.WithKeys("esc", "q"))
)

// Model is the Bubble Tea model for the accounts manager.
type Model struct {
	mode     Mode
	service  Service
	accounts []model.Account
	selected int

	confirmDelete *huh.Form
	deleteConfirm *bool

	spinner   spinner.Model
	statusMsg string

	width, height int
}

// New creates the accounts view. service may be nil when the platform is
// not configured; the view then only shows a hint.
func New(s Service, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		mode:    ModeList,
		service: s,
		spinner: sp,
		width:   width,
		height:  height,
	}
}

// Init loads the accounts.
func (m *Model) Init() tea.Cmd {
	if m.service == nil {
		return nil
	}
	m.mode = ModeLoading
	m.statusMsg = ""
	return tea.Batch(m.spinner.Tick, m.loadAccounts())
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case accountsLoadedMsg:
		m.mode = ModeList
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error loading accounts: %v", msg.err)
			return m, nil
		}
		m.accounts = msg.accounts
		if m.selected >= len(m.accounts) {
			m.selected = max(len(m.accounts)-1, 0)
		}
		return m, nil

	case accountDeletedMsg:
		if msg.err != nil {
			m.mode = ModeList
			m.statusMsg = fmt.Sprintf("Error revoking account: %v", msg.err)
			return m, nil
		}
		m.statusMsg = "Account revoked"
		m.mode = ModeLoading
		return m, tea.Batch(m.spinner.Tick, m.loadAccounts())

	case spinner.TickMsg:
		if m.mode == ModeLoading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode == ModeConfirmDelete {
			return m.updateConfirmDelete(msg)
		}
		return m.handleListKeys(msg)
	}

	if m.mode == ModeConfirmDelete {
		return m.updateConfirmDelete(msg)
	}
	return m, nil
}

// handleListKeys processes key events in list mode.
func (m Model) handleListKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, backKey):
		return m, func() tea.Msg { return CloseMsg{} }

	case m.mode == ModeLoading:
		return m, nil

	case key.Matches(msg, reloadKey):
		cmd := m.Init()
		return m, cmd

	case key.Matches(msg, deleteKey):
		if len(m.accounts) == 0 {
			return m, nil
		}
		m.deleteConfirm = new(bool)
		m.confirmDelete = m.buildDeleteConfirmForm()
		m.mode = ModeConfirmDelete
		return m, m.confirmDelete.Init()

	case key.Matches(msg, downKey):
		if len(m.accounts) > 0 {
			m.selected = (m.selected + 1) % len(m.accounts)
		}
		return m, nil

	case key.Matches(msg, upKey):
		if len(m.accounts) > 0 {
			m.selected--
			if m.selected < 0 {
				m.selected = len(m.accounts) - 1
			}
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) buildDeleteConfirmForm() *huh.Form {
	name := ""
	if m.selected < len(m.accounts) {
		a := m.accounts[m.selected]
		name = a.AppName + " (" + a.Name + ")"
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Revoke %s?", name)).
				Description("The assistant will no longer be able to use this account.").
				Affirmative("Yes, revoke").
				Negative("Cancel").
				Value(m.deleteConfirm),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateConfirmDelete(msg tea.Msg) (Model, tea.Cmd) {
	if m.confirmDelete == nil {
		m.mode = ModeList
		return m, nil
	}

	mdl, cmd := m.confirmDelete.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirmDelete = f
	}

	switch m.confirmDelete.State {
	case huh.StateCompleted:
		if m.deleteConfirm != nil && *m.deleteConfirm && m.selected < len(m.accounts) {
			m.mode = ModeLoading
			return m, tea.Batch(m.spinner.Tick, m.deleteAccount(m.accounts[m.selected].ID))
		}
		m.mode = ModeList
		return m, nil
	case huh.StateAborted:
		m.mode = ModeList
		return m, nil
	}
	return m, cmd
}

func (m Model) loadAccounts() tea.Cmd {
	s := m.service
	return func() tea.Msg {
		accounts, err := s.List(context.Background())
		return accountsLoadedMsg{accounts: accounts, err: err}
	}
}

func (m Model) deleteAccount(id string) tea.Cmd {
	s := m.service
	return func() tea.Msg {
		return accountDeletedMsg{id: id, err: s.Delete(context.Background(), id)}
	}
}

func (m Model) formWidth() int {
	return max(min(m.width-8, 72), 20)
}

// View renders the accounts manager.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	var body string
	switch {
	case m.service == nil:
		body = theme.DimStyle.Render("Connect platform credentials are not configured.\nRun `toolchat login` to set them up.")
	case m.mode == ModeConfirmDelete && m.confirmDelete != nil:
		body = m.confirmDelete.View()
	case m.mode == ModeLoading:
		body = m.spinner.View() + " Loading accounts…"
	default:
		body = m.renderList()
	}

	parts := []string{titleStyle.Render("Connected Accounts"), body}
	if m.statusMsg != "" {
		parts = append(parts, "", theme.HelpStyle.Render(m.statusMsg))
	}
	parts = append(parts, "", theme.HelpStyle.Render("j/k move | d revoke | r reload | esc back"))

	return theme.BorderStyle.
		Width(max(m.width-2, 10)).
		Height(max(m.height-2, 4)).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) renderList() string {
	if len(m.accounts) == 0 {
		return theme.DimStyle.Render("No connected accounts yet. Ask the assistant to use an app to connect one.")
	}

	var lines []string
	for i, a := range m.accounts {
		cursor := "  "
		style := lipgloss.NewStyle()
		if i == m.selected {
			cursor = "> "
			style = style.Bold(true).Foreground(theme.ColorBlue)
		}
		health := lipgloss.NewStyle().Foreground(theme.ColorGreen).Render("●")
		if !a.Healthy {
			health = theme.ErrorStyle.Render("●")
		}
		line := fmt.Sprintf("%s%s %s", cursor, health, style.Render(a.AppName))
		if a.Name != "" {
			line += " " + theme.DimStyle.Render(a.Name)
		}
		if !a.CreatedAt.IsZero() {
			line += " " + theme.DimStyle.Render("since "+a.CreatedAt.Format("2006-01-02"))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
