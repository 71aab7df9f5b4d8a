package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nhle/toolchat/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubLister struct {
	mu    gosync.Mutex
	calls int
	err   error
}

func (s *stubLister) List(context.Context) ([]model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []model.Account{{ID: "apn_1"}, {ID: "apn_2"}}, nil
}

func (s *stubLister) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestStartDeliversFirstRefresh(t *testing.T) {
	l := &stubLister{}
	p := New(l, time.Hour, nil)
	defer p.Stop()

	cmd := p.Start()
	require.NotNil(t, cmd)
	msg, ok := cmd().(RefreshMsg)
	require.True(t, ok)
	assert.NoError(t, msg.Err)
	assert.Len(t, msg.Accounts, 2)

	st := p.Status()
	assert.Equal(t, Idle, st.State)
	assert.Equal(t, 2, st.Count)
	assert.False(t, st.LastSync.IsZero())

	assert.Nil(t, p.Start())
}

func TestRefreshTriggersFetch(t *testing.T) {
	l := &stubLister{}
	p := New(l, time.Hour, nil)
	defer p.Stop()

	p.Start()()
	p.Refresh()
	msg := p.WaitForNextResult()()
	require.IsType(t, RefreshMsg{}, msg)
	assert.Equal(t, 2, l.Calls())
}

func TestErrorIsReported(t *testing.T) {
	l := &stubLister{err: errors.New("unauthorized")}
	p := New(l, time.Hour, nil)
	defer p.Stop()

	msg := p.Start()().(RefreshMsg)
	assert.EqualError(t, msg.Err, "unauthorized")
	assert.Equal(t, Error, p.Status().State)
}

func TestWaitReturnsNilAfterStop(t *testing.T) {
	p := New(&stubLister{}, time.Hour, nil)
	p.Start()()
	p.Stop()
	p.Stop()

	assert.Nil(t, p.WaitForNextResult()())
}
