// Package connect drives the account-linking flow that a tool result can
// ask for: offer a connect affordance, launch the external flow once, mark
// the tool call connected and resume the conversation.
package connect

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/toolchat/internal/model"
	"github.com/nhle/toolchat/internal/session"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultResumeDelay   = time.Second
	DefaultResumeMessage = "Done"
	DefaultLookupTimeout = 15 * time.Second
)

// Config wires an Orchestrator to its collaborators.
type Config struct {
	Connector Connector
	Lookup    AccountLookup // optional
	Resumer   Resumer       // optional
	Scheduler Scheduler     // defaults to SystemScheduler
	Logger    *zap.Logger

	// ToolCallID identifies the tool call this orchestrator belongs to. It
	// is copied into every Snapshot.
	ToolCallID string

	ResumeDelay   time.Duration
	ResumeMessage string
	LookupTimeout time.Duration

	// OnChange receives a snapshot after every state change. It is called
	// without locks held, possibly from a background goroutine; use
	// Snapshot.Version to drop stale deliveries.
	OnChange func(Snapshot)
}

// Snapshot is a consistent copy of an orchestrator's state.
type Snapshot struct {
	ToolCallID string
	Version    uint64
	State      State
	Link       *model.ConnectLinkParams
	Identity   session.Identity

	// AccountID is set once Connected.
	AccountID string
	// Account holds looked-up details, nil until the lookup succeeds.
	Account *model.ConnectedAccountSummary
	// LoadingAccount is true while the lookup runs.
	LoadingAccount bool
	// Err is the *LaunchError of the last failed attempt.
	Err error
}

// Orchestrator is the connection state machine for one tool call. All
// methods are safe for concurrent use.
type Orchestrator struct {
	cfg Config
	log *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	state         State
	link          *model.ConnectLinkParams
	identity      session.Identity
	gen           uint64
	version       uint64
	attemptCancel context.CancelFunc
	accountID     string
	account       *model.ConnectedAccountSummary
	loading       bool
	err           error
	timer         Timer
	resumed       bool
	closed        bool
}

// New returns an orchestrator for a tool call whose result carried link
// (nil when none was found). It starts in AwaitingUserAction when link is
// valid and identity may connect, Idle otherwise.
func New(cfg Config, link *model.ConnectLinkParams, identity session.Identity) *Orchestrator {
	if cfg.Scheduler == nil {
		cfg.Scheduler = SystemScheduler{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.ResumeDelay <= 0 {
		cfg.ResumeDelay = DefaultResumeDelay
	}
	if cfg.ResumeMessage == "" {
		cfg.ResumeMessage = DefaultResumeMessage
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = DefaultLookupTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		cfg:      cfg,
		log:      cfg.Logger.With(zap.String("tool_call_id", cfg.ToolCallID)),
		ctx:      ctx,
		cancel:   cancel,
		link:     validLink(link),
		identity: identity,
	}
	o.state = o.gateLocked()
	return o
}

func validLink(link *model.ConnectLinkParams) *model.ConnectLinkParams {
	if link == nil || !link.Valid() {
		return nil
	}
	l := *link
	return &l
}

func sameLink(a, b *model.ConnectLinkParams) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// gateLocked is the resting state for the current link and identity.
func (o *Orchestrator) gateLocked() State {
	if o.link != nil && o.identity.CanConnect() {
		return AwaitingUserAction
	}
	return Idle
}

// Trigger starts the linking flow. It reports false and does nothing
// unless the machine is AwaitingUserAction or Failed with a link and an
// identity allowed to connect; in particular a second trigger while
// Connecting or Connected is a no-op.
func (o *Orchestrator) Trigger() bool {
	o.mu.Lock()
	if o.closed || o.link == nil || !o.identity.CanConnect() ||
		(o.state != AwaitingUserAction && o.state != Failed) {
		state := o.state
		o.mu.Unlock()
		o.log.Debug("connect trigger ignored", zap.Stringer("state", state))
		return false
	}

	o.gen++
	gen := o.gen
	link := *o.link
	userID := o.identity.UserID
	attemptCtx, cancel := context.WithCancel(o.ctx)
	o.attemptCancel = cancel
	o.err = nil
	o.state = Connecting
	snap := o.changedLocked()
	o.mu.Unlock()

	o.notify(snap)
	o.log.Info("starting account connection", zap.String("app", link.AppIdentifier))

	comp := NewCompletion()
	req := Request{
		App:            link.AppIdentifier,
		Token:          link.Token,
		ExternalUserID: userID,
		OnSuccess:      func(accountID string) { comp.Succeed(accountID) },
		OnError:        func(err error) { comp.Fail(err) },
	}
	if o.cfg.Connector == nil {
		comp.Fail(ErrNoConnector)
	} else if err := o.cfg.Connector.ConnectAccount(attemptCtx, req); err != nil {
		comp.Fail(err)
	}

	go o.await(attemptCtx, gen, comp)
	return true
}

// await waits for the connector's verdict or for the attempt to be
// abandoned.
func (o *Orchestrator) await(ctx context.Context, gen uint64, comp *Completion) {
	select {
	case <-comp.Done():
		accountID, err := comp.Result()
		o.settle(gen, accountID, err)
	case <-ctx.Done():
	}
}

func (o *Orchestrator) settle(gen uint64, accountID string, err error) {
	o.mu.Lock()
	if o.closed || gen != o.gen || o.state != Connecting {
		o.mu.Unlock()
		return
	}
	if o.attemptCancel != nil {
		o.attemptCancel()
		o.attemptCancel = nil
	}
	app := o.link.AppIdentifier

	if err != nil {
		o.state = Failed
		o.err = &LaunchError{App: app, Err: err}
		snap := o.changedLocked()
		o.mu.Unlock()

		o.log.Error("account connection failed", zap.String("app", app), zap.Error(err))
		o.notify(snap)
		return
	}

	// Connected is committed before anything is known about the account.
	o.state = Connected
	o.accountID = accountID
	o.account = nil
	o.resumed = false
	o.loading = accountID != "" && o.cfg.Lookup != nil
	var lookupCtx context.Context
	var lookupCancel context.CancelFunc
	if o.loading {
		lookupCtx, lookupCancel = context.WithTimeout(o.ctx, o.cfg.LookupTimeout)
	}
	snap := o.changedLocked()
	o.mu.Unlock()

	o.log.Info("account connected", zap.String("app", app), zap.String("account_id", accountID))
	o.notify(snap)

	timer := o.cfg.Scheduler.AfterFunc(o.cfg.ResumeDelay, func() { o.resume(gen) })
	o.mu.Lock()
	if o.closed || gen != o.gen {
		o.mu.Unlock()
		timer.Stop()
	} else {
		o.timer = timer
		o.mu.Unlock()
	}

	if lookupCtx != nil {
		go o.lookup(lookupCtx, lookupCancel, gen, accountID)
	}
}

// resume appends the continuation turn once per successful connection.
func (o *Orchestrator) resume(gen uint64) {
	o.mu.Lock()
	if o.closed || gen != o.gen || o.state != Connected || o.resumed {
		o.mu.Unlock()
		return
	}
	o.resumed = true
	o.timer = nil
	msg := o.cfg.ResumeMessage
	o.mu.Unlock()

	if o.cfg.Resumer == nil {
		return
	}
	o.log.Debug("resuming conversation")
	o.cfg.Resumer.AppendUserTurn(msg)
}

func (o *Orchestrator) lookup(ctx context.Context, cancel context.CancelFunc, gen uint64, accountID string) {
	defer cancel()
	summary, err := o.cfg.Lookup.GetAccountByID(ctx, accountID)

	o.mu.Lock()
	if o.closed || gen != o.gen || o.state != Connected {
		o.mu.Unlock()
		return
	}
	o.loading = false
	if err == nil && summary != nil {
		s := *summary
		if s.ID == "" {
			s.ID = accountID
		}
		o.account = &s
	}
	snap := o.changedLocked()
	o.mu.Unlock()

	if err != nil {
		o.log.Warn("account lookup failed", zap.String("account_id", accountID), zap.Error(err))
	}
	o.notify(snap)
}

// Reset feeds the machine a new extraction result and identity. A
// different link abandons the current attempt and starts over; the same
// link only re-evaluates whether the affordance may be offered, so a
// Connected machine stays Connected.
func (o *Orchestrator) Reset(link *model.ConnectLinkParams, identity session.Identity) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	link = validLink(link)
	before := o.state
	identityChanged := o.identity != identity
	o.identity = identity

	if sameLink(o.link, link) {
		switch o.state {
		case Idle, AwaitingUserAction:
			o.state = o.gateLocked()
		case Failed:
			if !identity.CanConnect() {
				o.state = Idle
			}
		}
		if o.state == before && !identityChanged {
			o.mu.Unlock()
			return
		}
		snap := o.changedLocked()
		o.mu.Unlock()
		o.notify(snap)
		return
	}

	o.abandonLocked()
	o.gen++
	o.link = link
	o.accountID = ""
	o.account = nil
	o.loading = false
	o.err = nil
	o.resumed = false
	o.state = o.gateLocked()
	snap := o.changedLocked()
	o.mu.Unlock()

	o.log.Debug("connect state reset", zap.Stringer("from", before), zap.Stringer("to", snap.State))
	o.notify(snap)
}

// abandonLocked stops the pending timer and the in-flight attempt.
func (o *Orchestrator) abandonLocked() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	if o.attemptCancel != nil {
		o.attemptCancel()
		o.attemptCancel = nil
	}
}

// Close tears the orchestrator down. A pending resumption never fires,
// in-flight connector and lookup results are dropped and no further
// snapshots are delivered. Close is idempotent.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.abandonLocked()
	o.cancel()
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// ToolCallID returns the tool call this orchestrator belongs to.
func (o *Orchestrator) ToolCallID() string { return o.cfg.ToolCallID }

// changedLocked records a state change and returns the new snapshot.
func (o *Orchestrator) changedLocked() Snapshot {
	o.version++
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	s := Snapshot{
		ToolCallID:     o.cfg.ToolCallID,
		Version:        o.version,
		State:          o.state,
		Identity:       o.identity,
		AccountID:      o.accountID,
		LoadingAccount: o.loading,
		Err:            o.err,
	}
	if o.link != nil {
		l := *o.link
		s.Link = &l
	}
	if o.account != nil {
		a := *o.account
		s.Account = &a
	}
	return s
}

func (o *Orchestrator) notify(s Snapshot) {
	if o.cfg.OnChange != nil {
		o.cfg.OnChange(s)
	}
}
