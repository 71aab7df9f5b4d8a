package ai

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nhle/toolchat/internal/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubMessages struct {
	mu        sync.Mutex
	responses []*anthropic.Message
	err       error
	params    []anthropic.MessageNewParams
}

func (s *stubMessages) New(_ context.Context, body anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.params = append(s.params, body)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.responses) == 0 {
		return &anthropic.Message{}, nil
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

type stubRunner struct {
	defs     []tools.Definition
	defsErr  error
	defsSeen int
	result   tools.Result
	err      error
	calls    []string
}

func (r *stubRunner) Definitions(context.Context) ([]tools.Definition, error) {
	r.defsSeen++
	if r.defsErr != nil {
		return nil, r.defsErr
	}
	return r.defs, nil
}

func (r *stubRunner) Call(_ context.Context, name string, _ json.RawMessage) (tools.Result, error) {
	r.calls = append(r.calls, name)
	return r.result, r.err
}

func textMessage(text string) *anthropic.Message {
	return &anthropic.Message{
		Content:    []anthropic.ContentBlockUnion{{Type: "text", Text: text}},
		StopReason: anthropic.StopReasonEndTurn,
	}
}

func toolUseMessage(id, name, input string) *anthropic.Message {
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{{
			Type:  "tool_use",
			ID:    id,
			Name:  name,
			Input: json.RawMessage(input),
		}},
		StopReason: anthropic.StopReasonToolUse,
	}
}

func collect(t *testing.T, ch <-chan StreamChunk) []StreamChunk {
	t.Helper()
	var out []StreamChunk
	for c := range ch {
		out = append(out, c)
	}
	return out
}

func TestSendMessageTextOnly(t *testing.T) {
	client := &stubMessages{responses: []*anthropic.Message{textMessage("hello there")}}
	a := New(client, nil, Options{})

	ch, err := a.SendMessage(context.Background(), "hi")
	require.NoError(t, err)
	chunks := collect(t, ch)

	require.Len(t, chunks, 2)
	assert.Equal(t, "hello there", chunks[0].Text)
	assert.True(t, chunks[1].Done)
	assert.Equal(t, 2, a.History().Len())

	require.Len(t, client.params, 1)
	assert.Empty(t, client.params[0].Tools)
	assert.Equal(t, anthropic.Model(defaultModel), client.params[0].Model)
}

func TestSendMessageRunsTools(t *testing.T) {
	client := &stubMessages{responses: []*anthropic.Message{
		toolUseMessage("toolu_1", "slack-send_message", `{"channel":"#general"}`),
		textMessage("sent"),
	}}
	runner := &stubRunner{
		defs: []tools.Definition{{
			Name:        "slack-send_message",
			Description: "Send a message",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"channel":{"type":"string"}},"required":["channel"]}`),
		}},
		result: tools.Result{Raw: json.RawMessage(`{"content":[{"type":"text","text":"ok"}]}`), Text: "ok"},
	}
	a := New(client, runner, Options{})

	ch, err := a.SendMessage(context.Background(), "post hi")
	require.NoError(t, err)
	chunks := collect(t, ch)

	require.Len(t, chunks, 4)
	require.NotNil(t, chunks[0].Running)
	assert.Equal(t, "toolu_1", chunks[0].Running.ToolCallID)
	require.NotNil(t, chunks[1].Tool)
	assert.Equal(t, "slack-send_message", chunks[1].Tool.Name)
	assert.JSONEq(t, `{"channel":"#general"}`, string(chunks[1].Tool.Arguments.(json.RawMessage)))
	assert.JSONEq(t, `{"content":[{"type":"text","text":"ok"}]}`, string(chunks[1].Tool.RawResult.(json.RawMessage)))
	assert.Equal(t, "sent", chunks[2].Text)
	assert.True(t, chunks[3].Done)

	assert.Equal(t, []string{"slack-send_message"}, runner.calls)

	require.Len(t, client.params, 2)
	require.Len(t, client.params[0].Tools, 1)
	require.NotNil(t, client.params[0].Tools[0].OfTool)
	assert.Equal(t, "slack-send_message", client.params[0].Tools[0].OfTool.Name)
	assert.Equal(t, []string{"channel"}, client.params[0].Tools[0].OfTool.InputSchema.Required)

	msgs := client.params[1].Messages
	require.Len(t, msgs, 3)
	require.NotNil(t, msgs[2].Content[0].OfToolResult)
	assert.Equal(t, "toolu_1", msgs[2].Content[0].OfToolResult.ToolUseID)
}

func TestToolErrorIsReportedToModel(t *testing.T) {
	client := &stubMessages{responses: []*anthropic.Message{
		toolUseMessage("toolu_1", "broken", `{}`),
		textMessage("sorry"),
	}}
	runner := &stubRunner{err: errors.New("boom")}
	a := New(client, runner, Options{})

	ch, err := a.SendMessage(context.Background(), "go")
	require.NoError(t, err)
	chunks := collect(t, ch)

	require.NotNil(t, chunks[1].Tool)
	assert.Contains(t, string(chunks[1].Tool.RawResult.(json.RawMessage)), "boom")

	result := client.params[1].Messages[2].Content[0].OfToolResult
	require.NotNil(t, result)
	assert.True(t, result.IsError.Value)
}

func TestMaxToolIterations(t *testing.T) {
	client := &stubMessages{responses: []*anthropic.Message{
		toolUseMessage("t1", "loop", `{}`),
		toolUseMessage("t2", "loop", `{}`),
		toolUseMessage("t3", "loop", `{}`),
	}}
	a := New(client, &stubRunner{}, Options{MaxToolIterations: 2})

	ch, err := a.SendMessage(context.Background(), "spin")
	require.NoError(t, err)
	chunks := collect(t, ch)

	last := chunks[len(chunks)-1]
	assert.True(t, last.Done)
	assert.Contains(t, last.Text, maxIterationsNotice)
	assert.Len(t, client.params, 2)
}

func TestModelErrorEndsTurn(t *testing.T) {
	client := &stubMessages{err: errors.New("overloaded")}
	a := New(client, nil, Options{})

	ch, err := a.SendMessage(context.Background(), "hi")
	require.NoError(t, err)
	chunks := collect(t, ch)

	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].Done)
	assert.ErrorContains(t, chunks[0].Err, "overloaded")
}

func TestSendMessageRejectsEmpty(t *testing.T) {
	a := New(&stubMessages{}, nil, Options{})
	_, err := a.SendMessage(context.Background(), "   ")
	assert.Error(t, err)

	var none *Assistant = New(nil, nil, Options{})
	_, err = none.SendMessage(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNoClient)
}

func TestWarmUpLoadsToolsOnce(t *testing.T) {
	client := &stubMessages{responses: []*anthropic.Message{textMessage("hi")}}
	runner := &stubRunner{defs: []tools.Definition{
		{Name: "slack-send_message", InputSchema: json.RawMessage(`{"type":"object"}`)},
		{Name: "github-create_issue", InputSchema: json.RawMessage(`{"type":"object"}`)},
	}}
	a := New(client, runner, Options{})

	n, err := a.WarmUp(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ch, err := a.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	collect(t, ch)

	assert.Equal(t, 1, runner.defsSeen)
	require.Len(t, client.params, 1)
	assert.Len(t, client.params[0].Tools, 2)
}

func TestWarmUpFailureRetriesOnFirstTurn(t *testing.T) {
	client := &stubMessages{responses: []*anthropic.Message{textMessage("hi")}}
	runner := &stubRunner{
		defs:    []tools.Definition{{Name: "slack-send_message", InputSchema: json.RawMessage(`{"type":"object"}`)}},
		defsErr: errors.New("unreachable"),
	}
	a := New(client, runner, Options{})

	_, err := a.WarmUp(context.Background())
	assert.ErrorContains(t, err, "unreachable")

	runner.defsErr = nil
	ch, err := a.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	collect(t, ch)

	assert.Equal(t, 2, runner.defsSeen)
	require.Len(t, client.params, 1)
	assert.Len(t, client.params[0].Tools, 1)
}

func TestWarmUpWithoutRunner(t *testing.T) {
	n, err := New(&stubMessages{}, nil, Options{}).WarmUp(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
