package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/toolchat/internal/ai"
	"github.com/nhle/toolchat/internal/app"
	"github.com/nhle/toolchat/internal/connect"
	"github.com/nhle/toolchat/internal/connectlink"
	"github.com/nhle/toolchat/internal/connector"
	appsync "github.com/nhle/toolchat/internal/sync"
	"github.com/nhle/toolchat/internal/ui/chat"
)

func runChat(cmd *cobra.Command, args []string) error {
	s, err := buildServices(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var runner ai.ToolRunner
	if sess := dialTools(ctx, cfg, s); sess != nil {
		defer func() {
			if err := sess.Close(); err != nil {
				logger.Warn("closing tool session", zap.Error(err))
			}
		}()
		runner = sess
	}
	var assistant *ai.Assistant
	if s.apiKey != "" {
		assistant = ai.New(ai.NewMessagesClient(s.apiKey), runner, ai.Options{
			Model:             cfg.AI.Model,
			MaxTokens:         cfg.AI.MaxTokens,
			MaxToolIterations: cfg.AI.MaxToolIterations,
			Logger:            logger,
		})
	}
	warmUp(ctx, assistant, s)

	connectCfg := connect.Config{
		Logger:        logger,
		ResumeDelay:   cfg.Connect.ResumeDelay,
		ResumeMessage: cfg.Connect.ResumeMessage,
		LookupTimeout: cfg.Connect.LookupTimeout,
	}
	browserCfg := connector.Config{
		BaseURL:      cfg.Connect.BaseURL,
		CallbackAddr: cfg.Connect.CallbackAddr,
		Logger:       logger,
	}
	if s.accounts != nil {
		connectCfg.Lookup = s.accounts
		browserCfg.Resolver = s.accounts
	}
	connectCfg.Connector = connector.New(browserCfg)

	dispatcher := chat.NewDispatcher()
	appCfg := app.Config{
		Chat: chat.Config{
			Assistant:  assistant,
			Connect:    connectCfg,
			Extractor:  connectlink.NewExtractor(cfg.Connect.BaseURL),
			Dispatcher: dispatcher,
			WordWrap:   cfg.Display.WordWrap,
			Style:      cfg.Display.Theme,
		},
		Identity: s.identity,
		Logger:   logger,
	}
	if s.accounts != nil {
		poller := appsync.New(s.accounts, 0, logger)
		defer poller.Stop()
		appCfg.Accounts = s.accounts
		appCfg.Poller = poller
	}

	logger.Info("starting chat",
		zap.Stringer("identity", s.identity.Kind),
		zap.Bool("tools", runner != nil),
		zap.Bool("assistant", assistant != nil),
	)

	p := tea.NewProgram(app.New(appCfg), tea.WithAltScreen(), tea.WithContext(ctx))
	dispatcher.Bind(p.Send)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running chat: %w", err)
	}
	return nil
}
