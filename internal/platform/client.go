// Package platform is a thin client for the connect platform REST API:
// connected accounts and the credentials the tool server expects.
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/nhle/toolchat/internal/model"
)

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("not found")

// AuthError indicates that the platform rejected our credentials.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return "platform auth error: " + e.Message
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Config holds what the client needs to reach a project.
type Config struct {
	BaseURL      string
	ProjectID    string
	Environment  string
	ClientID     string
	ClientSecret string

	// HTTPClient is used for API and token requests. Defaults to a client
	// with a 30s timeout.
	HTTPClient *http.Client
}

// Client talks to the platform API using OAuth client credentials and
// retries with backoff on HTTP 429.
type Client struct {
	baseURL     string
	projectID   string
	environment string
	httpClient  *http.Client
	tokens      oauth2.TokenSource
	maxRetries  int
}

// NewClient returns a Client. Without a client id requests are sent
// unauthenticated, which the API rejects with an AuthError.
func NewClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		baseURL:     base,
		projectID:   cfg.ProjectID,
		environment: cfg.Environment,
		httpClient:  hc,
		maxRetries:  3,
	}
	if cfg.ClientID != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     base + "/oauth/token",
			AuthStyle:    oauth2.AuthStyleInParams,
		}
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, hc)
		c.tokens = cc.TokenSource(tokenCtx)
	}
	return c
}

// ProjectID returns the configured project.
func (c *Client) ProjectID() string { return c.projectID }

// Environment returns the configured project environment.
func (c *Client) Environment() string { return c.environment }

// Token returns a valid access token, fetching a new one when needed.
func (c *Client) Token() (string, error) {
	if c.tokens == nil {
		return "", &AuthError{Message: "no client credentials configured"}
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return "", &AuthError{Message: err.Error()}
	}
	return tok.AccessToken, nil
}

// apiAccount is the wire shape of a connected account.
type apiAccount struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ExternalID string    `json:"external_id"`
	Healthy    bool      `json:"healthy"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	App        struct {
		NameSlug string `json:"name_slug"`
		Name     string `json:"name"`
		ImgSrc   string `json:"img_src"`
	} `json:"app"`
}

func (a apiAccount) toModel() model.Account {
	return model.Account{
		ID:         a.ID,
		Name:       a.Name,
		ExternalID: a.ExternalID,
		AppSlug:    a.App.NameSlug,
		AppName:    a.App.Name,
		AppIconURL: a.App.ImgSrc,
		Healthy:    a.Healthy,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func (c *Client) accountsPath() string {
	return "/connect/" + url.PathEscape(c.projectID) + "/accounts"
}

// GetAccount fetches one connected account.
func (c *Client) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	body, err := c.do(ctx, http.MethodGet, c.accountsPath()+"/"+url.PathEscape(id)+"?include_credentials=false")
	if err != nil {
		return nil, err
	}
	var a apiAccount
	if err := json.Unmarshal([]byte(unwrapData(body)), &a); err != nil {
		return nil, fmt.Errorf("decoding account %s: %w", id, err)
	}
	acct := a.toModel()
	return &acct, nil
}

// ListAccounts lists the accounts of an external user, optionally for one
// app.
func (c *Client) ListAccounts(ctx context.Context, externalUserID, appSlug string) ([]model.Account, error) {
	q := url.Values{}
	q.Set("external_user_id", externalUserID)
	if appSlug != "" {
		q.Set("app", appSlug)
	}
	body, err := c.do(ctx, http.MethodGet, c.accountsPath()+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	var wire []apiAccount
	if err := json.Unmarshal([]byte(unwrapData(body)), &wire); err != nil {
		return nil, fmt.Errorf("decoding accounts: %w", err)
	}
	accounts := make([]model.Account, len(wire))
	for i, a := range wire {
		accounts[i] = a.toModel()
	}
	return accounts, nil
}

// DeleteAccount revokes a connected account.
func (c *Client) DeleteAccount(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, c.accountsPath()+"/"+url.PathEscape(id))
	return err
}

// unwrapData returns the "data" member of an envelope, or body itself.
func unwrapData(body []byte) string {
	if data := gjson.GetBytes(body, "data"); data.Exists() {
		return data.Raw
	}
	return string(body)
}

// do sends a request with auth headers, retrying on 429, and returns the
// response body of a 2xx reply.
func (c *Client) do(ctx context.Context, method, path string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.environment != "" {
			req.Header.Set("X-PD-Environment", c.environment)
		}
		if c.tokens != nil {
			token, err := c.Token()
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("reading response body: %w", readErr)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (429) on %s %s", method, path)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryAfterDuration(resp, attempt)):
				continue
			}
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, &AuthError{Message: fmt.Sprintf("%d on %s %s", resp.StatusCode, method, path)}
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			if msg := gjson.GetBytes(respBody, "error").String(); msg != "" {
				return nil, fmt.Errorf("platform API error (%d) on %s %s: %s", resp.StatusCode, method, path, msg)
			}
			return nil, fmt.Errorf("unexpected status %d on %s %s: %s", resp.StatusCode, method, path, string(respBody))
		}

		return respBody, nil
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
