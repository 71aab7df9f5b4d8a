// Package tools talks to the remote tool server over the Model Context
// Protocol: listing the tools the assistant may call and calling them.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	clientName    = "toolchat"
	clientVersion = "0.1.0"
)

// Definition describes a tool for the model.
type Definition struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Result is the outcome of one tool call.
type Result struct {
	// Raw is the full result as JSON, as shown in the Response block.
	Raw json.RawMessage
	// Text joins the text content items.
	Text    string
	IsError bool
}

// Session is a connected tool-server session.
type Session struct {
	cs *mcp.ClientSession
}

// Dial connects to a streamable HTTP endpoint. httpClient carries the
// credentials; see NewHTTPClient.
func Dial(ctx context.Context, endpoint string, httpClient *http.Client) (*Session, error) {
	return Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint:   endpoint,
		HTTPClient: httpClient,
	})
}

// Connect opens a session over any MCP transport.
func Connect(ctx context.Context, transport mcp.Transport) (*Session, error) {
	client := mcp.NewClient(&mcp.Implementation{Name: clientName, Version: clientVersion}, nil)
	cs, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to tool server: %w", err)
	}
	return &Session{cs: cs}, nil
}

// Close ends the session.
func (s *Session) Close() error {
	return s.cs.Close()
}

// Definitions lists the tools the server offers.
func (s *Session) Definitions(ctx context.Context) ([]Definition, error) {
	res, err := s.cs.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}

	defs := make([]Definition, 0, len(res.Tools))
	for _, t := range res.Tools {
		schema := json.RawMessage(`{"type":"object"}`)
		if t.InputSchema != nil {
			data, err := json.Marshal(t.InputSchema)
			if err != nil {
				return nil, fmt.Errorf("encoding schema of %s: %w", t.Name, err)
			}
			schema = data
		}
		defs = append(defs, Definition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	return defs, nil
}

// Call invokes a tool. A tool that reports failure is not a Go error; see
// Result.IsError.
func (s *Session) Call(ctx context.Context, name string, args json.RawMessage) (Result, error) {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	res, err := s.cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return Result{}, fmt.Errorf("calling tool %s: %w", name, err)
	}

	raw, err := json.Marshal(res)
	if err != nil {
		return Result{}, fmt.Errorf("encoding result of %s: %w", name, err)
	}

	var texts []string
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	return Result{
		Raw:     raw,
		Text:    strings.Join(texts, "\n"),
		IsError: res.IsError,
	}, nil
}
