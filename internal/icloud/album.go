package icloud

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Album is the resolved contents of a shared album at one point in time.
// Items are keyed by fingerprint downstream; duplicates (the same photo
// re-shared) have already been collapsed.
type Album struct {
	ID    string
	Name  string
	Items []Item
}

// Item is one photo at its highest available resolution.
type Item struct {
	Fingerprint string // content checksum of the chosen derivative
	URL         string // pre-authorized fetch URL, ephemeral
	Name        string // original filename from the asset URL path
}

// webstreamRequest is the body for both webstream calls.
type webstreamRequest struct {
	StreamCtag *string `json:"streamCtag"`
}

// webstreamResponse is the subset of the webstream payload we consume.
// X-Apple-MMe-Host arrives in the response body, not as a header.
type webstreamResponse struct {
	Host       string           `json:"X-Apple-MMe-Host"`
	StreamName string           `json:"streamName"`
	Photos     []webstreamPhoto `json:"photos"`
}

type webstreamPhoto struct {
	PhotoGUID   string                          `json:"photoGuid"`
	Derivatives map[string]webstreamDerivative `json:"derivatives"`
}

type webstreamDerivative struct {
	Checksum string `json:"checksum"`
}

type assetURLsRequest struct {
	PhotoGUIDs []string `json:"photoGuids"`
}

type assetURLsResponse struct {
	Items map[string]assetLocation `json:"items"`
}

type assetLocation struct {
	URLLocation string `json:"url_location"`
	URLPath     string `json:"url_path"`
}

// Resolve queries the webstream API for the album's current contents.
// It follows at most one partition-host redirect, selects the
// highest-resolution derivative per photo (maximum numeric resolution
// key), and joins asset URLs back to checksums.
func (c *Client) Resolve(ctx context.Context, albumRef string) (*Album, error) {
	token, err := AlbumToken(albumRef)
	if err != nil {
		return nil, err
	}

	base := fmt.Sprintf("%s/%s/sharedstreams", c.baseURL, token)
	reqBody := webstreamRequest{}

	var stream webstreamResponse
	if err := c.postJSON(ctx, base+"/webstream", reqBody, &stream); err != nil {
		return nil, err
	}

	// The first response may name the album's real partition host.
	if stream.Host != "" {
		host, _, _ := strings.Cut(stream.Host, ":")
		base = fmt.Sprintf("https://%s/%s/sharedstreams", host, token)

		c.logger.Debug("following partition host redirect", slog.String("host", host))

		if err := c.postJSON(ctx, base+"/webstream", reqBody, &stream); err != nil {
			return nil, err
		}
	}

	checksums, err := highestResolutionChecksums(stream.Photos)
	if err != nil {
		return nil, err
	}

	guids := make([]string, 0, len(stream.Photos))
	for _, photo := range stream.Photos {
		guids = append(guids, photo.PhotoGUID)
	}

	var assets assetURLsResponse
	if len(guids) > 0 {
		if err := c.postJSON(ctx, base+"/webasseturls", assetURLsRequest{PhotoGUIDs: guids}, &assets); err != nil {
			return nil, err
		}
	}

	album := &Album{ID: token, Name: stream.StreamName}
	seen := make(map[string]bool, len(checksums))

	for key, loc := range assets.Items {
		url := fmt.Sprintf("https://%s%s&%s", loc.URLLocation, loc.URLPath, key)

		for _, checksum := range checksums {
			if !strings.Contains(url, checksum) || seen[checksum] {
				continue
			}

			seen[checksum] = true

			album.Items = append(album.Items, Item{
				Fingerprint: checksum,
				URL:         url,
				Name:        assetName(url),
			})
		}
	}

	c.logger.Info("resolved album",
		slog.String("album", album.Name),
		slog.String("album_id", album.ID),
		slog.Int("items", len(album.Items)),
	)

	return album, nil
}

// highestResolutionChecksums picks, per photo, the checksum of the
// derivative with the largest numeric resolution key. A non-numeric key
// means the response shape changed and is treated as malformed.
func highestResolutionChecksums(photos []webstreamPhoto) ([]string, error) {
	checksums := make([]string, 0, len(photos))

	for _, photo := range photos {
		best := -1
		checksum := ""

		for key, deriv := range photo.Derivatives {
			res, err := strconv.Atoi(key)
			if err != nil {
				return nil, fmt.Errorf("icloud: photo %s: non-numeric derivative key %q", photo.PhotoGUID, key)
			}

			if res > best {
				best = res
				checksum = deriv.Checksum
			}
		}

		if checksum != "" {
			checksums = append(checksums, checksum)
		}
	}

	return checksums, nil
}

// assetName extracts the original filename: the last path segment before
// the query string.
func assetName(url string) string {
	name, _, _ := strings.Cut(url, "?")
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}

	return name
}
