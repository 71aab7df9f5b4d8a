package ai

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextTrimsWholeTurns(t *testing.T) {
	c := NewConversationContext(4)

	c.AddUserTurn("first")
	c.Append(anthropic.NewAssistantMessage(anthropic.NewToolUseBlock("t1", map[string]any{}, "x")))
	c.Append(anthropic.NewUserMessage(anthropic.NewToolResultBlock("t1", "ok", false)))
	c.Append(anthropic.NewAssistantMessage(anthropic.NewTextBlock("done")))
	assert.Equal(t, 4, c.Len())

	c.AddUserTurn("second")
	c.Append(anthropic.NewAssistantMessage(anthropic.NewTextBlock("reply")))

	assert.Equal(t, 1, c.Turns())
	msgs := c.Messages()
	require.Len(t, msgs, 2)
	require.NotNil(t, msgs[0].Content[0].OfText)
	assert.Equal(t, "second", msgs[0].Content[0].OfText.Text)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
}

func TestContextKeepsOversizedNewestTurn(t *testing.T) {
	c := NewConversationContext(2)

	c.AddUserTurn("only")
	for i := 0; i < 5; i++ {
		c.Append(anthropic.NewAssistantMessage(anthropic.NewTextBlock("more")))
	}
	assert.Equal(t, 6, c.Len())
	assert.Equal(t, 1, c.Turns())
}

func TestContextAppendWithoutTurnIsDropped(t *testing.T) {
	c := NewConversationContext(0)
	c.Append(anthropic.NewAssistantMessage(anthropic.NewTextBlock("orphan")))
	assert.Zero(t, c.Len())

	c.AddUserTurn("hi")
	c.Reset()
	assert.Zero(t, c.Len())
}
