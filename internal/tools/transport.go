package tools

import (
	"fmt"
	"net/http"
	"time"
)

// HeaderSource returns the headers to attach to each request. It is called
// per request so that refreshed tokens and identity changes apply.
type HeaderSource func() (http.Header, error)

// headerTransport adds headers to every outgoing request.
type headerTransport struct {
	base    http.RoundTripper
	headers HeaderSource
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	h, err := t.headers()
	if err != nil {
		return nil, fmt.Errorf("building tool server headers: %w", err)
	}
	req = req.Clone(req.Context())
	for k, vs := range h {
		req.Header[k] = vs
	}
	return t.base.RoundTrip(req)
}

// NewHTTPClient returns a client that sends headers from src with every
// request. Streaming responses are long-lived, so there is no overall
// timeout; callers bound requests with contexts.
func NewHTTPClient(src HeaderSource) *http.Client {
	return &http.Client{
		Transport: &headerTransport{
			base:    &http.Transport{Proxy: http.ProxyFromEnvironment, IdleConnTimeout: 90 * time.Second},
			headers: src,
		},
	}
}
