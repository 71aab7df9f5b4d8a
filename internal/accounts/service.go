// Package accounts answers questions about the current user's connected
// accounts, checking ownership and caching details locally.
package accounts

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nhle/toolchat/internal/model"
	"github.com/nhle/toolchat/internal/session"
)

var (
	// ErrNotOwned is returned when acting on an account that belongs to
	// someone else.
	ErrNotOwned = errors.New("account not owned by current user")

	// ErrNoAccount is returned when the user has no account for an app.
	ErrNoAccount = errors.New("no connected account")

	// ErrNoIdentity is returned when there is no user to act for.
	ErrNoIdentity = errors.New("no signed-in or guest user")
)

// Remote is the platform API.
type Remote interface {
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	ListAccounts(ctx context.Context, externalUserID, appSlug string) ([]model.Account, error)
	DeleteAccount(ctx context.Context, id string) error
}

// Cache is the local account store.
type Cache interface {
	UpsertAccount(ctx context.Context, a model.Account) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	DeleteAccount(ctx context.Context, id string) error
	ReplaceAccounts(ctx context.Context, externalID string, accounts []model.Account) error
}

// Service implements account lookups on behalf of the effective identity.
type Service struct {
	remote   Remote
	cache    Cache
	identity func() session.Identity
	log      *zap.Logger
	group    singleflight.Group
}

// NewService returns a Service. cache may be nil. identity is consulted on
// every call so that signing in or out takes effect immediately.
func NewService(remote Remote, cache Cache, identity func() session.Identity, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		remote:   remote,
		cache:    cache,
		identity: identity,
		log:      logger,
	}
}

func (s *Service) userID() (string, error) {
	id := s.identity()
	if !id.CanConnect() {
		return "", ErrNoIdentity
	}
	return id.UserID, nil
}

// GetAccountByID returns display details for an account of the current
// user. An account owned by anyone else is reported as nil with no error.
// Concurrent lookups of the same id share one request.
func (s *Service) GetAccountByID(ctx context.Context, id string) (*model.ConnectedAccountSummary, error) {
	userID, err := s.userID()
	if err != nil {
		return nil, nil
	}

	v, err, _ := s.group.Do(id, func() (any, error) {
		return s.fetch(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	acct := v.(*model.Account)

	if acct.ExternalID != userID {
		s.log.Warn("account belongs to another user", zap.String("account_id", id))
		return nil, nil
	}
	summary := acct.Summary()
	return &summary, nil
}

func (s *Service) fetch(ctx context.Context, id string) (*model.Account, error) {
	if s.cache != nil {
		if acct, err := s.cache.GetAccount(ctx, id); err == nil {
			return acct, nil
		}
	}

	acct, err := s.remote.GetAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching account %s: %w", id, err)
	}
	if s.cache != nil {
		if err := s.cache.UpsertAccount(ctx, *acct); err != nil {
			s.log.Warn("caching account failed", zap.String("account_id", id), zap.Error(err))
		}
	}
	return acct, nil
}

// List returns the current user's accounts and refreshes the cache.
func (s *Service) List(ctx context.Context) ([]model.Account, error) {
	userID, err := s.userID()
	if err != nil {
		return nil, err
	}

	accounts, err := s.remote.ListAccounts(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.ReplaceAccounts(ctx, userID, accounts); err != nil {
			s.log.Warn("caching accounts failed", zap.Error(err))
		}
	}
	return accounts, nil
}

// Delete revokes an account after confirming it is in the current user's
// list.
func (s *Service) Delete(ctx context.Context, id string) error {
	accounts, err := s.List(ctx)
	if err != nil {
		return err
	}

	owned := false
	for _, a := range accounts {
		if a.ID == id {
			owned = true
			break
		}
	}
	if !owned {
		return fmt.Errorf("deleting account %s: %w", id, ErrNotOwned)
	}

	if err := s.remote.DeleteAccount(ctx, id); err != nil {
		return fmt.Errorf("deleting account %s: %w", id, err)
	}
	if s.cache != nil {
		if err := s.cache.DeleteAccount(ctx, id); err != nil {
			s.log.Warn("evicting account failed", zap.String("account_id", id), zap.Error(err))
		}
	}
	s.log.Info("account deleted", zap.String("account_id", id))
	return nil
}

// NewestAccountID returns the most recently created account the current
// user has for app.
func (s *Service) NewestAccountID(ctx context.Context, app string) (string, error) {
	userID, err := s.userID()
	if err != nil {
		return "", err
	}

	accounts, err := s.remote.ListAccounts(ctx, userID, app)
	if err != nil {
		return "", fmt.Errorf("listing %s accounts: %w", app, err)
	}

	var newest *model.Account
	for i := range accounts {
		a := &accounts[i]
		if a.ExternalID != "" && a.ExternalID != userID {
			continue
		}
		if newest == nil || a.CreatedAt.After(newest.CreatedAt) {
			newest = a
		}
	}
	if newest == nil {
		return "", fmt.Errorf("%s: %w", app, ErrNoAccount)
	}
	return newest.ID, nil
}
