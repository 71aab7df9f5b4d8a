package ai

import (
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
)

const defaultMaxMessages = 40

// turn is one user message plus everything the model and the tools
// appended in reply to it.
type turn []anthropic.MessageParam

// ConversationContext maintains the ordered message history sent to the
// model. Trimming drops whole turns from the front so a tool_use block is
// never separated from its tool_result.
type ConversationContext struct {
	mu          sync.Mutex
	turns       []turn
	maxMessages int
}

// NewConversationContext creates a context holding at most maxMessages
// messages. The newest turn is always kept, even when it alone exceeds the
// limit.
func NewConversationContext(maxMessages int) *ConversationContext {
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}
	return &ConversationContext{maxMessages: maxMessages}
}

// AddUserTurn starts a new turn with a plain-text user message.
func (c *ConversationContext) AddUserTurn(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = append(c.turns, turn{
		anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
	})
	c.trimLocked()
}

// Append adds a message to the current turn. Without a current turn the
// message is dropped; the API rejects histories that do not open with a
// user message.
func (c *ConversationContext) Append(msg anthropic.MessageParam) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.turns) == 0 {
		return
	}
	last := len(c.turns) - 1
	c.turns[last] = append(c.turns[last], msg)
	c.trimLocked()
}

func (c *ConversationContext) trimLocked() {
	total := 0
	for _, t := range c.turns {
		total += len(t)
	}
	for total > c.maxMessages && len(c.turns) > 1 {
		total -= len(c.turns[0])
		c.turns = c.turns[1:]
	}
}

// Messages returns a flattened copy of the history.
func (c *ConversationContext) Messages() []anthropic.MessageParam {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []anthropic.MessageParam
	for _, t := range c.turns {
		out = append(out, t...)
	}
	return out
}

// Reset clears the history.
func (c *ConversationContext) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = nil
}

// Len returns the number of messages held.
func (c *ConversationContext) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range c.turns {
		n += len(t)
	}
	return n
}

// Turns returns the number of user turns held.
func (c *ConversationContext) Turns() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.turns)
}
