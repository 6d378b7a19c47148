package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/imamik/harvester-e2e/internal/document"
)

// LoginPath is the local authentication provider shared by Harvester and
// Rancher.
const LoginPath = "v3-public/localProviders/local?action=login"

// Login authenticates with a username and password and returns a copy of
// the client that uses the issued token.
func (c *Client) Login(ctx context.Context, username, password string) (*Client, error) {
	code, doc, err := c.Do(ctx, http.MethodPost, LoginPath, document.Document{
		"username":     username,
		"password":     password,
		"responseType": "json",
	})
	if err != nil {
		return nil, fmt.Errorf("login as %q: %w", username, err)
	}
	if code != http.StatusCreated && code != http.StatusOK {
		return nil, fmt.Errorf("login as %q: unexpected status %d: %s", username, code, doc)
	}

	token := doc.GetString("token")
	if token == "" {
		return nil, fmt.Errorf("login as %q: response carries no token", username)
	}
	c.log.V(1).Info("Logged in", "endpoint", c.Endpoint(), "user", username)
	return c.WithCredentials(token), nil
}
