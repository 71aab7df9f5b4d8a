package connect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/toolchat/internal/model"
)

// Request starts one interactive linking flow. The connector calls exactly
// one of OnSuccess or OnError, at most once, from any goroutine.
type Request struct {
	App            string
	Token          string
	ExternalUserID string
	OnSuccess      func(accountID string)
	OnError        func(err error)
}

// Connector launches the external account-linking flow. ConnectAccount
// must not block on the user; a returned error means the flow never
// started. Cancelling ctx tells the connector its result is no longer
// wanted.
type Connector interface {
	ConnectAccount(ctx context.Context, req Request) error
}

// AccountLookup fetches display details for a connected account. A nil
// summary with a nil error means the account is unknown or not visible to
// the caller.
type AccountLookup interface {
	GetAccountByID(ctx context.Context, id string) (*model.ConnectedAccountSummary, error)
}

// Resumer appends a user-authored turn to the conversation.
type Resumer interface {
	AppendUserTurn(content string)
}

// ResumerFunc adapts a function to Resumer.
type ResumerFunc func(content string)

// AppendUserTurn calls f.
func (f ResumerFunc) AppendUserTurn(content string) { f(content) }

// Timer is a pending one-shot callback.
type Timer interface {
	// Stop prevents the callback from firing and reports whether it did.
	Stop() bool
}

// Scheduler arms one-shot callbacks.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemScheduler schedules on the runtime timer.
type SystemScheduler struct{}

// AfterFunc wraps time.AfterFunc.
func (SystemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

var (
	// ErrConnectFailed is reported when a connector signals failure
	// without an error value.
	ErrConnectFailed = errors.New("account connection failed")

	// ErrNoConnector is reported when no connector is configured.
	ErrNoConnector = errors.New("no account connector configured")
)

// LaunchError is the failure of one connection attempt.
type LaunchError struct {
	App string
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("connecting %s: %v", e.App, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }
