package app

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/toolchat/internal/model"
	"github.com/nhle/toolchat/internal/session"
	appsync "github.com/nhle/toolchat/internal/sync"
	accountsview "github.com/nhle/toolchat/internal/ui/accounts"
	"github.com/nhle/toolchat/internal/ui/chat"
)

type noAccounts struct{}

func (noAccounts) List(context.Context) ([]model.Account, error) { return nil, nil }
func (noAccounts) Delete(context.Context, string) error         { return nil }

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func newApp(id session.Identity) Model {
	return New(Config{Accounts: noAccounts{}, Identity: id})
}

func TestLoadingUntilSized(t *testing.T) {
	m := newApp(session.Identity{})
	assert.Equal(t, "Loading...", m.View())

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	out := m.View()
	assert.Contains(t, out, "toolchat")
	assert.Contains(t, out, "signed out")
	assert.Contains(t, out, "toolchat login")
}

func TestHeaderShowsIdentity(t *testing.T) {
	m := newApp(session.Identity{UserID: "user-42", Kind: session.Authenticated})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})
	assert.Contains(t, m.View(), "user-42")

	m, _ = update(t, m, IdentityMsg{Identity: session.Identity{UserID: "guest-1", Kind: session.Guest}})
	assert.Contains(t, m.View(), "guest")
}

func TestHelpToggle(t *testing.T) {
	m := newApp(session.Identity{})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlG})
	assert.Equal(t, ViewHelp, m.CurrentView())
	assert.Contains(t, m.View(), "Keyboard Shortcuts")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewChat, m.CurrentView())
}

func TestAccountsViewOpensAndCloses(t *testing.T) {
	m := newApp(session.Identity{UserID: "u", Kind: session.Authenticated})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})
	assert.Equal(t, ViewAccounts, m.CurrentView())
	assert.NotNil(t, cmd)

	m, _ = update(t, m, accountsview.CloseMsg{})
	assert.Equal(t, ViewChat, m.CurrentView())
}

func TestResumeReachesChatFromOtherViews(t *testing.T) {
	m := newApp(session.Identity{})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlG})

	// Without an assistant the chat refuses to submit, so nothing streams.
	m, _ = update(t, m, chat.ResumeMsg{Content: "Done"})
	assert.False(t, m.chat.Streaming())
	assert.Equal(t, ViewHelp, m.CurrentView())
}

func TestQuitClosesChat(t *testing.T) {
	m := newApp(session.Identity{})
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestHeaderShowsAccountCount(t *testing.T) {
	p := appsync.New(noAccounts{}, time.Hour, nil)
	defer p.Stop()
	m := New(Config{Accounts: noAccounts{}, Poller: p, Identity: session.Identity{UserID: "u", Kind: session.Authenticated}})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})

	m, cmd := update(t, m, appsync.RefreshMsg{Accounts: []model.Account{{ID: "apn_1"}, {ID: "apn_2"}}})
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "2 account(s)")

	m, _ = update(t, m, appsync.RefreshMsg{Err: errors.New("boom")})
	assert.Contains(t, m.View(), "accounts unavailable")
}
