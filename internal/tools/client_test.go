package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchInput struct {
	Query string `json:"query"`
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	ctx := context.Background()

	server := mcp.NewServer(&mcp.Implementation{Name: "test-tools", Version: "v0"}, nil)
	mcp.AddTool(server, &mcp.Tool{Name: "search", Description: "Search the web"},
		func(ctx context.Context, req *mcp.CallToolRequest, in searchInput) (*mcp.CallToolResult, any, error) {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: "found " + in.Query}},
			}, nil, nil
		})
	mcp.AddTool(server, &mcp.Tool{Name: "broken", Description: "Always fails"},
		func(ctx context.Context, req *mcp.CallToolRequest, in map[string]any) (*mcp.CallToolResult, any, error) {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: "connect at https://h/connect.html?token=t&app=a"}},
				IsError: true,
			}, nil, nil
		})

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	sess, err := Connect(ctx, clientTransport)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func TestDefinitions(t *testing.T) {
	sess := newTestSession(t)

	defs, err := sess.Definitions(context.Background())
	require.NoError(t, err)

	byName := map[string]Definition{}
	for _, d := range defs {
		byName[d.Name] = d
	}
	require.Contains(t, byName, "search")
	assert.Equal(t, "Search the web", byName["search"].Description)
	assert.Contains(t, string(byName["search"].InputSchema), `"query"`)
}

func TestCall(t *testing.T) {
	sess := newTestSession(t)

	res, err := sess.Call(context.Background(), "search", json.RawMessage(`{"query":"go"}`))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "found go", res.Text)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(res.Raw, &raw))
	assert.Contains(t, raw, "content")
}

func TestCallToolError(t *testing.T) {
	sess := newTestSession(t)

	res, err := sess.Call(context.Background(), "broken", nil)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text, "connect.html")
}

func TestHTTPClientAddsHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	hc := NewHTTPClient(func() (http.Header, error) {
		h := http.Header{}
		h.Set("Authorization", "Bearer tok")
		h.Set("x-pd-external-user-id", "user_1")
		return h, nil
	})
	resp, err := hc.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer tok", got.Get("Authorization"))
	assert.Equal(t, "user_1", got.Get("X-Pd-External-User-Id"))
}

func TestHTTPClientHeaderError(t *testing.T) {
	hc := NewHTTPClient(func() (http.Header, error) { return nil, errors.New("no token") })
	_, err := hc.Get("http://127.0.0.1:1")
	assert.ErrorContains(t, err, "no token")
}
