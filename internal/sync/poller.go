// Package sync keeps the connected-accounts list fresh in the background
// and reports each refresh to the Bubble Tea runtime.
package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/toolchat/internal/model"
)

// State is the refresh state.
type State int

const (
	Idle State = iota
	Running
	Error
)

// Status is the outcome of the latest refresh.
type Status struct {
	State    State
	Count    int
	LastSync time.Time
	Err      error
}

// RefreshMsg is sent when a refresh completes.
type RefreshMsg struct {
	Accounts []model.Account
	Err      error
}

// Lister lists the current user's accounts; accounts.Service satisfies it.
type Lister interface {
	List(ctx context.Context) ([]model.Account, error)
}

const (
	fetchTimeout    = 30 * time.Second
	defaultInterval = 5 * time.Minute
)

// Poller refreshes the account list on an interval and on demand.
type Poller struct {
	lister   Lister
	interval time.Duration
	log      *zap.Logger

	resultCh  chan RefreshMsg
	triggerCh chan struct{}
	stopCh    chan struct{}

	mu      gosync.Mutex
	running bool
	stopped bool
	status  Status
	wg      gosync.WaitGroup
}

// New creates a Poller. A non-positive interval means five minutes.
func New(l Lister, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		lister:    l,
		interval:  interval,
		log:       logger,
		resultCh:  make(chan RefreshMsg, 4),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the polling goroutine and returns the command that
// delivers the first result. Calling Start again is a no-op.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running || p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.loop()
	return p.WaitForNextResult()
}

// Stop halts polling and waits for an in-flight refresh to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()
	p.wg.Wait()
}

// Refresh asks for an immediate refresh without blocking.
func (p *Poller) Refresh() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// Status returns the outcome of the latest refresh.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.fetch()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.fetch()
		case <-p.triggerCh:
			p.fetch()
		}
	}
}

func (p *Poller) fetch() {
	p.setStatus(func(s *Status) { s.State = Running })

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()
	go func() {
		select {
		case <-p.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	accounts, err := p.lister.List(ctx)
	if err != nil {
		p.log.Warn("account refresh failed", zap.Error(err))
		p.setStatus(func(s *Status) {
			s.State = Error
			s.Err = err
		})
		p.send(RefreshMsg{Err: err})
		return
	}

	p.setStatus(func(s *Status) {
		s.State = Idle
		s.Err = nil
		s.Count = len(accounts)
		s.LastSync = time.Now()
	})
	p.send(RefreshMsg{Accounts: accounts})
}

func (p *Poller) setStatus(f func(*Status)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f(&p.status)
}

// send never blocks; a full channel drops the result since Status holds it.
func (p *Poller) send(msg RefreshMsg) {
	select {
	case p.resultCh <- msg:
	default:
	}
}

// WaitForNextResult returns a command that waits for the next refresh.
// After Stop it returns nil.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return func() tea.Msg {
		select {
		case r := <-p.resultCh:
			return r
		case <-p.stopCh:
			return nil
		}
	}
}
