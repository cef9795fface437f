package meural

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
)

// pageSize matches the maximum the API accepts per page.
const pageSize = 500

// listEnvelope wraps paginated list responses.
type listEnvelope[T any] struct {
	Data []T `json:"data"`
}

// dataEnvelope wraps single-object responses.
type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

// listPages fetches every page of a list endpoint until a short page,
// so callers never see partial results.
func listPages[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var all []T

	for page := 1; ; page++ {
		body, err := c.do(ctx, request{
			method: http.MethodGet,
			path:   fmt.Sprintf("%s?count=%d&page=%d", path, pageSize, page),
		})
		if err != nil {
			return nil, err
		}

		var envelope listEnvelope[T]
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("meural: parsing %s page %d: %w", path, page, err)
		}

		all = append(all, envelope.Data...)

		if len(envelope.Data) < pageSize {
			return all, nil
		}
	}
}

// ListPlaylists returns every gallery on the account.
func (c *Client) ListPlaylists(ctx context.Context) ([]Playlist, error) {
	playlists, err := listPages[Playlist](ctx, c, "/user/galleries")
	if err != nil {
		return nil, fmt.Errorf("meural: listing playlists: %w", err)
	}

	return playlists, nil
}

// CreatePlaylist creates a gallery and returns it.
func (c *Client) CreatePlaylist(ctx context.Context, name, description, orientation string) (*Playlist, error) {
	form := url.Values{}
	form.Set("name", name)
	form.Set("description", description)
	form.Set("orientation", orientation)

	body, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/galleries",
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	})
	if err != nil {
		return nil, fmt.Errorf("meural: creating playlist %q: %w", name, err)
	}

	var envelope dataEnvelope[Playlist]
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("meural: parsing create playlist response: %w", err)
	}

	return &envelope.Data, nil
}

// AddToPlaylist links an item into a gallery and returns the confirmed
// member item ids the API reports afterwards. Callers must check the
// returned set actually contains the item; the API has been observed to
// accept the call without performing the link.
func (c *Client) AddToPlaylist(ctx context.Context, itemID, playlistID int) ([]int, error) {
	body, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("/galleries/%d/items/%d", playlistID, itemID),
	})
	if err != nil {
		return nil, fmt.Errorf("meural: adding item %d to playlist %d: %w", itemID, playlistID, err)
	}

	var envelope dataEnvelope[Playlist]
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("meural: parsing add-to-playlist response: %w", err)
	}

	return envelope.Data.ItemIDs, nil
}
