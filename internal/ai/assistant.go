package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/nhle/toolchat/internal/model"
	"github.com/nhle/toolchat/internal/tools"
)

const (
	defaultModel             = "claude-sonnet-4-5-20250929"
	defaultMaxTokens         = 4096
	defaultMaxToolIterations = 5

	maxIterationsNotice = "(Reached maximum tool use iterations)"
)

// ErrNoClient is returned by SendMessage when no model client is configured.
var ErrNoClient = errors.New("ai: no model client configured")

// MessagesClient is the subset of the Messages API the assistant uses.
// *anthropic.MessageService satisfies it.
type MessagesClient interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// ToolRunner lists and invokes remote tools. *tools.Session satisfies it.
type ToolRunner interface {
	Definitions(ctx context.Context) ([]tools.Definition, error)
	Call(ctx context.Context, name string, args json.RawMessage) (tools.Result, error)
}

// ToolNotice announces a tool call that has started.
type ToolNotice struct {
	ToolCallID string
	Name       string
	Arguments  json.RawMessage
}

// StreamChunk is one piece of an assistant reply. Exactly one of Text,
// Running, Tool and Err is set, except on the final chunk where only Done
// may be.
type StreamChunk struct {
	Text    string
	Running *ToolNotice
	Tool    *model.ToolInvocationResult
	Err     error
	Done    bool
}

// Options configures an Assistant.
type Options struct {
	Model             string
	MaxTokens         int
	MaxToolIterations int
	MaxMessages       int
	SystemPrompt      string
	Logger            *zap.Logger
}

// Assistant runs the model/tool loop for one conversation.
type Assistant struct {
	client  MessagesClient
	runner  ToolRunner
	context *ConversationContext
	opts    Options
	logger  *zap.Logger

	// sendMu serialises turns; the chat never has two in flight but the
	// resume path may race a user submit.
	sendMu sync.Mutex

	defsMu     sync.Mutex
	defsLoaded bool
	defs       []anthropic.ToolUnionParam
}

// NewMessagesClient builds a Messages API client for the given key.
func NewMessagesClient(apiKey string) MessagesClient {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &c.Messages
}

// New creates an assistant. runner may be nil, in which case the model is
// offered no tools.
func New(client MessagesClient, runner ToolRunner, opts Options) *Assistant {
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.MaxToolIterations <= 0 {
		opts.MaxToolIterations = defaultMaxToolIterations
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = defaultSystemPrompt
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Assistant{
		client:  client,
		runner:  runner,
		context: NewConversationContext(opts.MaxMessages),
		opts:    opts,
		logger:  logger,
	}
}

// Reset clears the conversation history.
func (a *Assistant) Reset() {
	a.context.Reset()
}

// History exposes the conversation for inspection.
func (a *Assistant) History() *ConversationContext {
	return a.context
}

// SendMessage starts a new user turn and returns a channel that receives the
// reply. The channel is closed after the chunk with Done set.
func (a *Assistant) SendMessage(ctx context.Context, text string) (<-chan StreamChunk, error) {
	if a.client == nil {
		return nil, ErrNoClient
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("ai: empty message")
	}

	ch := make(chan StreamChunk, 16)

	go func() {
		defer close(ch)

		a.sendMu.Lock()
		defer a.sendMu.Unlock()

		a.context.AddUserTurn(text)
		a.processMessage(ctx, ch)
	}()

	return ch, nil
}

func (a *Assistant) processMessage(ctx context.Context, ch chan<- StreamChunk) {
	emit := func(c StreamChunk) bool {
		select {
		case ch <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	toolDefs := a.toolDefinitions(ctx)

	for i := 0; i < a.opts.MaxToolIterations; i++ {
		resp, err := a.client.New(ctx, a.params(toolDefs))
		if err != nil {
			a.logger.Warn("model call failed", zap.Error(err))
			emit(StreamChunk{Err: fmt.Errorf("calling model: %w", err), Done: true})
			return
		}

		var textParts []string
		var blocks []anthropic.ContentBlockParamUnion
		var uses []ToolNotice

		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				if block.Text == "" {
					continue
				}
				textParts = append(textParts, block.Text)
				blocks = append(blocks, anthropic.NewTextBlock(block.Text))
			case "tool_use":
				input := block.Input
				if len(input) == 0 {
					input = json.RawMessage(`{}`)
				}
				uses = append(uses, ToolNotice{
					ToolCallID: block.ID,
					Name:       block.Name,
					Arguments:  input,
				})
				blocks = append(blocks, anthropic.NewToolUseBlock(block.ID, input, block.Name))
			}
		}

		if len(blocks) > 0 {
			a.context.Append(anthropic.NewAssistantMessage(blocks...))
		}

		if len(textParts) > 0 {
			if !emit(StreamChunk{Text: strings.Join(textParts, "")}) {
				return
			}
		}

		if len(uses) == 0 {
			emit(StreamChunk{Done: true})
			return
		}

		// Every tool_use needs a tool_result in history, even when the
		// turn is abandoned half way.
		results := make([]anthropic.ContentBlockParamUnion, 0, len(uses))
		cancelled := false
		for _, use := range uses {
			notice := use
			if cancelled || !emit(StreamChunk{Running: &notice}) {
				cancelled = true
				results = append(results, anthropic.NewToolResultBlock(use.ToolCallID, "cancelled", true))
				continue
			}
			inv, content, isError := a.executeToolUse(ctx, use)
			results = append(results, anthropic.NewToolResultBlock(use.ToolCallID, content, isError))
			if !emit(StreamChunk{Tool: inv}) {
				cancelled = true
			}
		}
		a.context.Append(anthropic.NewUserMessage(results...))
		if cancelled {
			return
		}
	}

	emit(StreamChunk{Text: "\n\n" + maxIterationsNotice, Done: true})
}

// executeToolUse runs one tool. Failures become error results for the model
// rather than aborting the turn.
func (a *Assistant) executeToolUse(ctx context.Context, use ToolNotice) (*model.ToolInvocationResult, string, bool) {
	inv := &model.ToolInvocationResult{
		Name:       use.Name,
		ToolCallID: use.ToolCallID,
		Arguments:  use.Arguments,
	}

	if a.runner == nil {
		msg := fmt.Sprintf("unknown tool: %s", use.Name)
		inv.RawResult = errorResult(msg)
		return inv, msg, true
	}

	res, err := a.runner.Call(ctx, use.Name, use.Arguments)
	if err != nil {
		a.logger.Warn("tool call failed",
			zap.String("tool", use.Name),
			zap.String("tool_call_id", use.ToolCallID),
			zap.Error(err),
		)
		inv.RawResult = errorResult(err.Error())
		return inv, err.Error(), true
	}

	a.logger.Debug("tool call finished",
		zap.String("tool", use.Name),
		zap.Bool("is_error", res.IsError),
	)
	inv.RawResult = res.Raw
	content := res.Text
	if content == "" {
		content = string(res.Raw)
	}
	return inv, content, res.IsError
}

func errorResult(msg string) json.RawMessage {
	data, _ := json.Marshal(map[string]any{
		"isError": true,
		"content": []map[string]string{{"type": "text", "text": msg}},
	})
	return data
}

func (a *Assistant) params(toolDefs []anthropic.ToolUnionParam) anthropic.MessageNewParams {
	p := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.opts.Model),
		MaxTokens: int64(a.opts.MaxTokens),
		Messages:  a.context.Messages(),
		System:    []anthropic.TextBlockParam{{Text: a.opts.SystemPrompt}},
	}
	if len(toolDefs) > 0 {
		p.Tools = toolDefs
	}
	return p
}

// toolDefinitions lists the runner's tools on first success. A listing
// failure is logged, the turn continues without tools and the next turn
// tries again.
func (a *Assistant) toolDefinitions(ctx context.Context) []anthropic.ToolUnionParam {
	defs, err := a.loadDefinitions(ctx)
	if err != nil {
		a.logger.Warn("listing tools failed", zap.Error(err))
		return nil
	}
	return defs
}

// WarmUp lists the runner's tools ahead of the first turn and reports how
// many there are. After a failure the first turn lists them again.
func (a *Assistant) WarmUp(ctx context.Context) (int, error) {
	defs, err := a.loadDefinitions(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing tools: %w", err)
	}
	return len(defs), nil
}

func (a *Assistant) loadDefinitions(ctx context.Context) ([]anthropic.ToolUnionParam, error) {
	if a.runner == nil {
		return nil, nil
	}
	a.defsMu.Lock()
	defer a.defsMu.Unlock()

	if a.defsLoaded {
		return a.defs, nil
	}
	defs, err := a.runner.Definitions(ctx)
	if err != nil {
		return nil, err
	}
	a.defs = encodeTools(defs)
	a.defsLoaded = true
	a.logger.Info("tools available", zap.Int("count", len(a.defs)))
	return a.defs, nil
}

func encodeTools(defs []tools.Definition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		u := anthropic.ToolUnionParamOfTool(inputSchema(def.InputSchema), def.Name)
		if def.Description != "" {
			u.OfTool.Description = anthropic.String(def.Description)
		}
		out = append(out, u)
	}
	return out
}

func inputSchema(raw json.RawMessage) anthropic.ToolInputSchemaParam {
	var schema struct {
		Properties any      `json:"properties"`
		Required   []string `json:"required"`
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &schema)
	}
	return anthropic.ToolInputSchemaParam{
		Properties: schema.Properties,
		Required:   schema.Required,
	}
}

const defaultSystemPrompt = "You are a helpful assistant with access to tools " +
	"for third-party apps. When a tool reports that the user must connect an " +
	"account, tell them to use the Connect button on that tool call and wait. " +
	"When the user says they are done connecting, retry the original request. " +
	"Keep responses concise."
