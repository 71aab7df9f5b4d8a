package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/toolchat/internal/accounts"
	"github.com/nhle/toolchat/internal/ai"
	"github.com/nhle/toolchat/internal/credential"
	"github.com/nhle/toolchat/internal/model"
	"github.com/nhle/toolchat/internal/platform"
	"github.com/nhle/toolchat/internal/session"
	"github.com/nhle/toolchat/internal/store"
	"github.com/nhle/toolchat/internal/tools"
)

// services is everything the commands share, built once from config and
// stored credentials.
type services struct {
	identity session.Identity
	platform *platform.Client // nil without platform credentials
	store    *store.SQLiteStore
	accounts *accounts.Service // nil without platform credentials
	apiKey   string
}

func (s *services) Close() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
	}
}

// resolveIdentity combines guest mode with the stored sign-in.
func resolveIdentity(c *model.AppConfig) session.Identity {
	resolver := session.NewResolver(c.Session.GuestMode, c.Session.GuestSeed)
	return resolver.Resolve(session.Load(credential.Get, credential.KeySessionUserID, credential.KeySessionEmail))
}

func buildServices(c *model.AppConfig) (*services, error) {
	s := &services{identity: resolveIdentity(c)}

	if key, err := credential.Lookup(credential.KeyAnthropicAPIKey); err == nil {
		s.apiKey = key
	} else if !errors.Is(err, credential.ErrNotFound) {
		logger.Warn("reading api key", zap.Error(err))
	}

	st, err := store.NewSQLiteStore(c.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening account cache: %w", err)
	}
	s.store = st

	clientID, _ := credential.Lookup(credential.KeyConnectClientID)
	clientSecret, _ := credential.Lookup(credential.KeyConnectClientSecret)
	if clientID == "" || c.Connect.ProjectID == "" {
		logger.Info("connect platform not configured; account management disabled")
		return s, nil
	}

	s.platform = platform.NewClient(platform.Config{
		BaseURL:      c.Connect.APIBaseURL,
		ProjectID:    c.Connect.ProjectID,
		Environment:  c.Connect.Environment,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
	id := s.identity
	s.accounts = accounts.NewService(s.platform, s.store, func() session.Identity { return id }, logger)
	return s, nil
}

// dialTools opens the tool server session. Failures leave the assistant
// without tools rather than failing startup; the result is then nil.
func dialTools(ctx context.Context, c *model.AppConfig, s *services) *tools.Session {
	if c.MCP.Endpoint == "" || s.platform == nil || !s.identity.CanConnect() {
		return nil
	}
	userID := s.identity.UserID
	client := tools.NewHTTPClient(func() (http.Header, error) {
		return s.platform.ToolHeaders(userID, c.MCP.AppSlug)
	})

	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	sess, err := tools.Dial(ctx, c.MCP.Endpoint, client)
	if err != nil {
		logger.Warn("tool server unavailable", zap.String("endpoint", c.MCP.Endpoint), zap.Error(err))
		return nil
	}
	return sess
}

// warmUp loads the assistant's tool list and the account cache
// concurrently so the first turn does not pay for either.
func warmUp(ctx context.Context, assistant *ai.Assistant, s *services) {
	g, ctx := errgroup.WithContext(ctx)
	if assistant != nil {
		g.Go(func() error {
			_, err := assistant.WarmUp(ctx)
			return err
		})
	}
	if s.accounts != nil {
		g.Go(func() error {
			accts, err := s.accounts.List(ctx)
			if err != nil {
				return fmt.Errorf("listing accounts: %w", err)
			}
			logger.Info("connected accounts", zap.Int("count", len(accts)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Warn("warm-up incomplete", zap.Error(err))
	}
}
