package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeFez/MeuralCanvas-iCloudSync/internal/meural"
)

// TaggedItem is a destination item whose description parsed as a sync tag.
type TaggedItem struct {
	Item meural.Item
	Tag  Tag
}

// Inventory is a point-in-time snapshot of destination state: playlists
// by name, items by (truncation-aware) name, and the parsed tags linking
// items back to source albums. Ephemeral: refreshed at the start of each
// task and after any destination-mutating batch.
type Inventory struct {
	playlists map[string]meural.Playlist
	itemsByID map[int]meural.Item
	byName    map[string]meural.Item
	tagged    []TaggedItem
}

// LoadInventory fetches playlists and items from the destination.
func LoadInventory(ctx context.Context, dst Destination, logger *slog.Logger) (*Inventory, error) {
	playlists, err := dst.ListPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync: loading destination playlists: %w", err)
	}

	items, err := dst.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync: loading destination items: %w", err)
	}

	inv := &Inventory{
		playlists: make(map[string]meural.Playlist, len(playlists)),
		itemsByID: make(map[int]meural.Item, len(items)),
		byName:    make(map[string]meural.Item, len(items)),
	}

	for _, pl := range playlists {
		inv.playlists[pl.Name] = pl
	}

	for _, item := range items {
		inv.itemsByID[item.ID] = item
		inv.byName[destNameKey(item.Name)] = item

		if tag, ok := ParseTag(item.Description); ok {
			inv.tagged = append(inv.tagged, TaggedItem{Item: item, Tag: tag})
		}
	}

	if logger != nil {
		logger.Debug("destination inventory loaded",
			slog.Int("playlists", len(playlists)),
			slog.Int("items", len(items)),
			slog.Int("tagged", len(inv.tagged)),
		)
	}

	return inv, nil
}

// Playlist looks up a playlist by name.
func (inv *Inventory) Playlist(name string) (meural.Playlist, bool) {
	pl, ok := inv.playlists[name]
	return pl, ok
}

// Playlists returns the snapshot's playlists.
func (inv *Inventory) Playlists() []meural.Playlist {
	out := make([]meural.Playlist, 0, len(inv.playlists))
	for _, pl := range inv.playlists {
		out = append(out, pl)
	}

	return out
}

// HasName reports whether an item with the given derived name exists.
func (inv *Inventory) HasName(derivedName string) bool {
	_, ok := inv.byName[destNameKey(derivedName)]
	return ok
}

// ItemByName looks up an item by derived name.
func (inv *Inventory) ItemByName(derivedName string) (meural.Item, bool) {
	item, ok := inv.byName[destNameKey(derivedName)]
	return item, ok
}

// Empty reports whether the destination held no items at all. An empty
// item listing during a ledger cross-check is treated as a possible API
// fault rather than evidence of mass deletion.
func (inv *Inventory) Empty() bool {
	return len(inv.itemsByID) == 0
}

// TaggedForAlbum returns the tagged items belonging to one source album.
func (inv *Inventory) TaggedForAlbum(albumID string) []TaggedItem {
	var out []TaggedItem

	for _, ti := range inv.tagged {
		if ti.Tag.AlbumID == albumID {
			out = append(out, ti)
		}
	}

	return out
}

// ClaimsFingerprint reports whether any destination item claims the
// fingerprint, via its tag or via a fingerprint-derived name. Name
// matching covers items whose tag write failed partway.
func (inv *Inventory) ClaimsFingerprint(albumID, fingerprint string) bool {
	for _, ti := range inv.tagged {
		if ti.Tag.AlbumID == albumID && ti.Tag.Checksum == fingerprint {
			return true
		}
	}

	for name := range inv.byName {
		if name == destNameKey(fingerprint) || strings.HasPrefix(name, destNameKey(fingerprint)+nameSeparator) {
			return true
		}
	}

	return false
}
