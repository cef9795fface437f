// Package icloud implements the shared-album webstream protocol: resolving
// a public album URL into the set of photos it currently contains, and
// fetching photo bytes. The protocol is undocumented; the request and
// response shapes here match what the icloud.com web client sends.
package icloud

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// DefaultBaseURL is the partition-23 shared-streams endpoint. The first
// webstream call may redirect to an album-specific partition host via the
// X-Apple-MMe-Host field in its response body.
const DefaultBaseURL = "https://p23-sharedstreams.icloud.com"

// Client is an HTTP client for the shared-album webstream API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a webstream client. baseURL is typically DefaultBaseURL;
// tests point it at a local server.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{baseURL: baseURL, httpClient: httpClient, logger: logger}
}

// AlbumToken extracts the album token from a shared-album URL
// (the fragment after '#').
func AlbumToken(albumRef string) (string, error) {
	_, token, ok := strings.Cut(albumRef, "#")
	if !ok || token == "" {
		return "", fmt.Errorf("icloud: album reference %q has no token after '#'", albumRef)
	}

	return token, nil
}

// postJSON sends a JSON POST and decodes the response into out.
// Any non-2xx status or undecodable body is a hard error.
func (c *Client) postJSON(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("icloud: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("icloud: creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("icloud: POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("icloud: POST %s: unexpected status %d", url, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("icloud: decoding response from %s: %w", url, err)
	}

	return nil
}

// Fetch downloads photo bytes from a pre-authorized asset URL.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("icloud: creating download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("icloud: downloading asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("icloud: downloading asset: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("icloud: reading asset body: %w", err)
	}

	return data, nil
}
