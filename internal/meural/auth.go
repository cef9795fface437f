package meural

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
)

const pathAuthenticate = "/authenticate"

// authResponse is the token exchange payload.
type authResponse struct {
	Token string `json:"token"`
}

// Authenticate exchanges the account credentials for an API token and
// stores it on the client for subsequent calls.
func (c *Client) Authenticate(ctx context.Context) error {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	body, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        pathAuthenticate,
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	})
	if err != nil {
		return fmt.Errorf("meural: authenticating: %w", err)
	}

	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("meural: parsing authentication response: %w", err)
	}

	if resp.Token == "" {
		return fmt.Errorf("meural: authentication response carried no token")
	}

	c.token = resp.Token

	c.logger.Info("authenticated with Meural API")

	return nil
}
