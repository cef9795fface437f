package meural

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// ListItems returns every uploaded item on the account.
func (c *Client) ListItems(ctx context.Context) ([]Item, error) {
	items, err := listPages[Item](ctx, c, "/user/items")
	if err != nil {
		return nil, fmt.Errorf("meural: listing items: %w", err)
	}

	return items, nil
}

// Upload sends the image file at path as a multipart form and returns the
// new item's id. Uses the upload client with its longer timeout.
func (c *Client) Upload(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("meural: reading upload file: %w", err)
	}

	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return 0, fmt.Errorf("meural: building upload form: %w", err)
	}

	if _, err := part.Write(data); err != nil {
		return 0, fmt.Errorf("meural: building upload form: %w", err)
	}

	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("meural: building upload form: %w", err)
	}

	body, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/items",
		body:        buf.Bytes(),
		contentType: writer.FormDataContentType(),
		upload:      true,
	})
	if err != nil {
		return 0, fmt.Errorf("meural: uploading %s: %w", filepath.Base(path), err)
	}

	var envelope dataEnvelope[Item]
	if err := json.Unmarshal(body, &envelope); err != nil {
		return 0, fmt.Errorf("meural: parsing upload response: %w", err)
	}

	if envelope.Data.ID == 0 {
		return 0, fmt.Errorf("meural: upload response carried no item id")
	}

	return envelope.Data.ID, nil
}

// SetMetadata replaces an item's description.
func (c *Client) SetMetadata(ctx context.Context, itemID int, description string) error {
	form := url.Values{}
	form.Set("description", description)

	_, err := c.do(ctx, request{
		method:      http.MethodPut,
		path:        fmt.Sprintf("/items/%d", itemID),
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	})
	if err != nil {
		return fmt.Errorf("meural: setting metadata on item %d: %w", itemID, err)
	}

	return nil
}

// Delete removes an uploaded item. Deleting an item also removes it from
// every playlist that contained it.
func (c *Client) Delete(ctx context.Context, itemID int) error {
	_, err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   fmt.Sprintf("/items/%d", itemID),
	})
	if err != nil {
		return fmt.Errorf("meural: deleting item %d: %w", itemID, err)
	}

	return nil
}
