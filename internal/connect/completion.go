package connect

import "sync"

// Completion is a single-resolution future for a connector's callbacks.
// The first Succeed or Fail wins; later calls are ignored.
type Completion struct {
	once      sync.Once
	done      chan struct{}
	accountID string
	err       error
}

// NewCompletion returns an unresolved Completion.
func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Succeed resolves c with an account id. It reports whether this call
// resolved c.
func (c *Completion) Succeed(accountID string) bool {
	return c.resolve(accountID, nil)
}

// Fail resolves c with err, or ErrConnectFailed when err is nil.
func (c *Completion) Fail(err error) bool {
	if err == nil {
		err = ErrConnectFailed
	}
	return c.resolve("", err)
}

func (c *Completion) resolve(accountID string, err error) bool {
	resolved := false
	c.once.Do(func() {
		c.accountID, c.err = accountID, err
		resolved = true
		close(c.done)
	})
	return resolved
}

// Done is closed once c is resolved.
func (c *Completion) Done() <-chan struct{} { return c.done }

// Result returns the outcome. It is only meaningful after Done is closed.
func (c *Completion) Result() (accountID string, err error) {
	select {
	case <-c.done:
		return c.accountID, c.err
	default:
		return "", nil
	}
}
