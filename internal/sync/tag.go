package sync

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Tag is the structured metadata embedded in a destination item's
// description. It is the only durable link between a destination item and
// the source photo it came from, so orphan detection survives even a lost
// ledger. PlaylistName is empty for shared (non-unique) uploads; one
// item serves several playlists and the tag cannot disambiguate.
type Tag struct {
	AlbumID      string `json:"icloud_album_id"`
	Checksum     string `json:"checksum"`
	PlaylistName string `json:"playlist_name"`
}

// Encode renders the tag as the JSON description string stored on the
// destination item.
func (t Tag) Encode() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("sync: encoding tag: %w", err)
	}

	return string(data), nil
}

// ParseTag decodes a destination item description. Items uploaded by
// other clients carry arbitrary descriptions; those simply don't parse
// and are ignored rather than treated as errors.
func ParseTag(description string) (Tag, bool) {
	var t Tag
	if err := json.Unmarshal([]byte(description), &t); err != nil {
		return Tag{}, false
	}

	if t.AlbumID == "" || t.Checksum == "" {
		return Tag{}, false
	}

	return t, true
}
