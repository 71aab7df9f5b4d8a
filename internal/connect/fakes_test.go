package connect

import (
	"context"
	"sync"
	"time"

	"github.com/nhle/toolchat/internal/model"
)

// fakeConnector records launches and lets the test play the user.
type fakeConnector struct {
	mu       sync.Mutex
	requests []Request
	ctxs     []context.Context
	err      error
}

func (c *fakeConnector) ConnectAccount(ctx context.Context, req Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	c.ctxs = append(c.ctxs, ctx)
	return c.err
}

func (c *fakeConnector) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *fakeConnector) last() Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[len(c.requests)-1]
}

func (c *fakeConnector) lastCtx() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctxs[len(c.ctxs)-1]
}

// fakeScheduler holds callbacks until the test fires them.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	mu      sync.Mutex
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fire runs the callback unless the timer was stopped or already fired.
func (t *fakeTimer) fire() {
	t.mu.Lock()
	if t.stopped || t.fired {
		t.mu.Unlock()
		return
	}
	t.fired = true
	t.mu.Unlock()
	t.f()
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) pending() []*fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakeTimer(nil), s.timers...)
}

// fakeLookup answers account lookups, optionally waiting for release.
type fakeLookup struct {
	summary *model.ConnectedAccountSummary
	err     error
	release chan struct{}

	mu  sync.Mutex
	ids []string
}

func (l *fakeLookup) GetAccountByID(ctx context.Context, id string) (*model.ConnectedAccountSummary, error) {
	l.mu.Lock()
	l.ids = append(l.ids, id)
	l.mu.Unlock()
	if l.release != nil {
		select {
		case <-l.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return l.summary, l.err
}

// turnRecorder counts appended user turns.
type turnRecorder struct {
	mu    sync.Mutex
	turns []string
}

func (r *turnRecorder) AppendUserTurn(content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, content)
}

func (r *turnRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.turns...)
}
