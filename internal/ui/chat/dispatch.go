package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/toolchat/internal/ai"
	"github.com/nhle/toolchat/internal/connect"
)

// ConnectStateMsg carries an orchestrator snapshot into the update loop.
// Snapshots may arrive out of order; the tool call keeps the newest.
type ConnectStateMsg struct {
	Snapshot connect.Snapshot
}

// ResumeMsg asks the chat to submit a user turn on the user's behalf
// after an account was connected. ToolCallID names the tool call whose
// connection produced it; the chat drops it when that call is gone.
type ResumeMsg struct {
	ToolCallID string
	Content    string
}

// streamStartedMsg hands the reply channel of a new turn to the model.
type streamStartedMsg struct {
	turn int
	ch   <-chan ai.StreamChunk
}

// chunkMsg carries one reply chunk. closed is set when the channel ended
// without a Done chunk.
type chunkMsg struct {
	turn   int
	chunk  ai.StreamChunk
	ch     <-chan ai.StreamChunk
	closed bool
}

// Dispatcher posts messages into a running program from background
// goroutines. Messages sent before Bind are dropped.
type Dispatcher struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

// NewDispatcher returns an unbound dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Bind connects the dispatcher to a program, usually with p.Send.
func (d *Dispatcher) Bind(send func(tea.Msg)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.send = send
}

// Send delivers msg asynchronously. It never blocks, so it is safe to call
// from inside Update, where a synchronous program send would deadlock.
func (d *Dispatcher) Send(msg tea.Msg) {
	d.mu.RLock()
	send := d.send
	d.mu.RUnlock()
	if send == nil {
		return
	}
	go send(msg)
}

// OnChange adapts the dispatcher to connect.Config.OnChange.
func (d *Dispatcher) OnChange(s connect.Snapshot) {
	d.Send(ConnectStateMsg{Snapshot: s})
}

// ResumerFor returns the connect.Resumer for one tool call.
func (d *Dispatcher) ResumerFor(toolCallID string) connect.Resumer {
	return connect.ResumerFunc(func(content string) {
		d.Send(ResumeMsg{ToolCallID: toolCallID, Content: content})
	})
}
