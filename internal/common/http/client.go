// internal/common/http/client.go
package http

import (
	"context"
	"net/http"
	"time"

	"tender-workflow/internal/common/auth"
)

// Client wraps net/http with a timeout and optional bearer authentication.
type Client struct {
	httpClient *http.Client
	tokens     auth.TokenSource
}

func NewClient(timeout time.Duration, tokens auth.TokenSource) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tokens: tokens,
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext attaches ctx and, when a token source is configured, an
// Authorization header.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.httpClient.Do(req)
}
