package accounts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/toolchat/internal/model"
)

type fakeService struct {
	mu       sync.Mutex
	accounts []model.Account
	listErr  error
	deleted  []string
}

func (f *fakeService) List(context.Context) ([]model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.Account(nil), f.accounts...), nil
}

func (f *fakeService) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	kept := f.accounts[:0]
	for _, a := range f.accounts {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	f.accounts = kept
	return nil
}

// run executes cmd, expanding batches, and returns every produced message.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, run(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func feed(m Model, msgs []tea.Msg) Model {
	for _, msg := range msgs {
		m, _ = m.Update(msg)
	}
	return m
}

func sampleAccounts() []model.Account {
	return []model.Account{
		{ID: "apn_1", Name: "me@example.com", AppName: "Gmail", Healthy: true, CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
		{ID: "apn_2", Name: "acme", AppName: "Slack", Healthy: false},
	}
}

func TestLoadsAndListsAccounts(t *testing.T) {
	svc := &fakeService{accounts: sampleAccounts()}
	m := New(svc, 80, 24)

	cmd := m.Init()
	assert.Equal(t, ModeLoading, m.mode)
	assert.Contains(t, m.View(), "Loading accounts")

	m = feed(m, run(cmd))
	assert.Equal(t, ModeList, m.mode)
	require.Len(t, m.accounts, 2)

	out := m.View()
	assert.Contains(t, out, "Gmail")
	assert.Contains(t, out, "me@example.com")
	assert.Contains(t, out, "since 2026-01-02")
	assert.Contains(t, out, "Slack")
}

func TestNavigationWraps(t *testing.T) {
	m := New(&fakeService{}, 80, 24)
	m = feed(m, []tea.Msg{accountsLoadedMsg{accounts: sampleAccounts()}})

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	assert.Equal(t, 1, m.selected)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	assert.Equal(t, 0, m.selected)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 1, m.selected)
}

func TestLoadErrorShownAsStatus(t *testing.T) {
	m := New(&fakeService{listErr: errors.New("platform down")}, 80, 24)
	cmd := m.Init()
	m = feed(m, run(cmd))

	assert.Equal(t, ModeList, m.mode)
	assert.Contains(t, m.View(), "platform down")
}

func TestConfirmedDeleteRevokesAndReloads(t *testing.T) {
	svc := &fakeService{accounts: sampleAccounts()}
	m := New(svc, 80, 24)
	m = feed(m, []tea.Msg{accountsLoadedMsg{accounts: sampleAccounts()}})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	require.Equal(t, ModeConfirmDelete, m.mode)
	require.NotNil(t, m.confirmDelete)

	*m.deleteConfirm = true
	m.confirmDelete.State = huh.StateCompleted
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, ModeLoading, m.mode)

	msgs := run(cmd)
	m = feed(m, msgs)
	// The delete result triggers a reload.
	for m.mode == ModeLoading {
		var next tea.Cmd
		m, next = m.Update(m.loadAccounts()())
		require.Nil(t, next)
	}

	svc.mu.Lock()
	assert.Equal(t, []string{"apn_2"}, svc.deleted)
	svc.mu.Unlock()
	assert.Equal(t, "Account revoked", m.statusMsg)
	require.Len(t, m.accounts, 1)
	assert.Equal(t, "apn_1", m.accounts[0].ID)
}

func TestAbortedDeleteKeepsAccount(t *testing.T) {
	svc := &fakeService{accounts: sampleAccounts()}
	m := New(svc, 80, 24)
	m = feed(m, []tea.Msg{accountsLoadedMsg{accounts: sampleAccounts()}})

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	m.confirmDelete.State = huh.StateAborted
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})

	assert.Nil(t, cmd)
	assert.Equal(t, ModeList, m.mode)
	assert.Empty(t, svc.deleted)
}

func TestBackClosesView(t *testing.T) {
	m := New(nil, 80, 24)
	assert.Nil(t, m.Init())
	assert.Contains(t, m.View(), "toolchat login")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, CloseMsg{}, cmd())
}
