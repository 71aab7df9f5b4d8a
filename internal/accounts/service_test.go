package accounts

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/toolchat/internal/model"
	"github.com/nhle/toolchat/internal/session"
	"github.com/nhle/toolchat/internal/testutil"
)

type fakeRemote struct {
	mu       sync.Mutex
	accounts map[string]model.Account
	gets     atomic.Int32
	deleted  []string
	getErr   error
	gate     chan struct{}
}

func newFakeRemote(accts ...model.Account) *fakeRemote {
	r := &fakeRemote{accounts: map[string]model.Account{}}
	for _, a := range accts {
		r.accounts[a.ID] = a
	}
	return r
}

func (r *fakeRemote) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	r.gets.Add(1)
	if r.gate != nil {
		<-r.gate
	}
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, errors.New("404")
	}
	return &a, nil
}

func (r *fakeRemote) ListAccounts(ctx context.Context, externalUserID, appSlug string) ([]model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Account
	for _, a := range r.accounts {
		if a.ExternalID == externalUserID && (appSlug == "" || a.AppSlug == appSlug) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeRemote) DeleteAccount(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, id)
	r.deleted = append(r.deleted, id)
	return nil
}

var (
	me       = session.Identity{UserID: "user_1", Kind: session.Authenticated}
	nobody   = session.Identity{Kind: session.Unauthenticated}
	mine     = model.Account{ID: "apn_mine", Name: "me@slack", ExternalID: "user_1", AppSlug: "slack", AppName: "Slack"}
	theirs   = model.Account{ID: "apn_theirs", Name: "them", ExternalID: "user_2", AppSlug: "slack"}
	identity = func(id session.Identity) func() session.Identity {
		return func() session.Identity { return id }
	}
)

func TestGetAccountByIDOwned(t *testing.T) {
	remote := newFakeRemote(mine)
	svc := NewService(remote, testutil.NewTestStore(t), identity(me), nil)

	got, err := svc.GetAccountByID(context.Background(), "apn_mine")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.ConnectedAccountSummary{ID: "apn_mine", DisplayName: "me@slack", AppName: "Slack"}, *got)

	_, err = svc.GetAccountByID(context.Background(), "apn_mine")
	require.NoError(t, err)
	assert.EqualValues(t, 1, remote.gets.Load(), "second lookup served from cache")
}

func TestGetAccountByIDNotOwned(t *testing.T) {
	svc := NewService(newFakeRemote(theirs), nil, identity(me), nil)

	got, err := svc.GetAccountByID(context.Background(), "apn_theirs")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetAccountByIDWithoutIdentity(t *testing.T) {
	remote := newFakeRemote(mine)
	svc := NewService(remote, nil, identity(nobody), nil)

	got, err := svc.GetAccountByID(context.Background(), "apn_mine")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, remote.gets.Load())
}

func TestGetAccountByIDError(t *testing.T) {
	remote := newFakeRemote()
	remote.getErr = errors.New("timeout")
	svc := NewService(remote, nil, identity(me), nil)

	_, err := svc.GetAccountByID(context.Background(), "apn_mine")
	assert.ErrorContains(t, err, "timeout")
}

func TestConcurrentLookupsShareRequest(t *testing.T) {
	remote := newFakeRemote(mine)
	remote.gate = make(chan struct{})
	svc := NewService(remote, nil, identity(me), nil)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.GetAccountByID(context.Background(), "apn_mine")
			assert.NoError(t, err)
			assert.NotNil(t, got)
		}()
	}
	require.Eventually(t, func() bool { return remote.gets.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(remote.gate)
	wg.Wait()

	assert.EqualValues(t, 1, remote.gets.Load())
}

func TestDeleteChecksOwnership(t *testing.T) {
	remote := newFakeRemote(mine, theirs)
	svc := NewService(remote, testutil.NewTestStore(t), identity(me), nil)

	err := svc.Delete(context.Background(), "apn_theirs")
	assert.ErrorIs(t, err, ErrNotOwned)
	assert.Empty(t, remote.deleted)

	require.NoError(t, svc.Delete(context.Background(), "apn_mine"))
	assert.Equal(t, []string{"apn_mine"}, remote.deleted)
}

func TestListRequiresIdentity(t *testing.T) {
	svc := NewService(newFakeRemote(mine), nil, identity(nobody), nil)

	_, err := svc.List(context.Background())
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestNewestAccountID(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	older := mine
	older.ID, older.CreatedAt = "apn_old", base
	newer := mine
	newer.ID, newer.CreatedAt = "apn_new", base.Add(time.Minute)
	svc := NewService(newFakeRemote(older, newer, theirs), nil, identity(me), nil)

	id, err := svc.NewestAccountID(context.Background(), "slack")
	require.NoError(t, err)
	assert.Equal(t, "apn_new", id)

	_, err = svc.NewestAccountID(context.Background(), "github")
	assert.ErrorIs(t, err, ErrNoAccount)
}
