package sync

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/MikeFez/MeuralCanvas-iCloudSync/internal/meural"
)

// DryRunDestination wraps a Destination, replacing every mutating call
// with a logged intention while maintaining a simulated overlay of "what
// would exist". Reads pass through and merge the overlay, so later steps
// in the same cycle (notably quarantine) make the same decisions they
// would have made against a really-mutated destination.
type DryRunDestination struct {
	real   Destination
	logger *slog.Logger

	nextID    int // synthetic ids, negative so they never collide
	items     []meural.Item
	playlists []meural.Playlist
	links     map[int][]int // playlist id -> simulated member item ids
	deleted   map[int]bool
}

// NewDryRunDestination wraps dst for a dry-run cycle. The overlay lives
// for the wrapper's lifetime, one wrapper per process run.
func NewDryRunDestination(dst Destination, logger *slog.Logger) *DryRunDestination {
	if logger == nil {
		logger = slog.Default()
	}

	return &DryRunDestination{
		real:    dst,
		logger:  logger.With(slog.Bool("dry_run", true)),
		nextID:  -1,
		links:   make(map[int][]int),
		deleted: make(map[int]bool),
	}
}

// ListPlaylists merges real playlists with simulated creations and links.
func (d *DryRunDestination) ListPlaylists(ctx context.Context) ([]meural.Playlist, error) {
	real, err := d.real.ListPlaylists(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]meural.Playlist, 0, len(real)+len(d.playlists))
	out = append(out, real...)
	out = append(out, d.playlists...)

	for i := range out {
		members := out[i].ItemIDs

		for _, id := range d.links[out[i].ID] {
			if !slices.Contains(members, id) {
				members = append(members, id)
			}
		}

		members = slices.DeleteFunc(slices.Clone(members), func(id int) bool {
			return d.deleted[id]
		})

		out[i].ItemIDs = members
	}

	return out, nil
}

// ListItems merges real items (minus simulated deletions) with simulated
// uploads.
func (d *DryRunDestination) ListItems(ctx context.Context) ([]meural.Item, error) {
	real, err := d.real.ListItems(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]meural.Item, 0, len(real)+len(d.items))

	for _, item := range real {
		if !d.deleted[item.ID] {
			out = append(out, item)
		}
	}

	out = append(out, d.items...)

	return out, nil
}

// Upload logs the intention and records a simulated item.
func (d *DryRunDestination) Upload(_ context.Context, path string) (int, error) {
	id := d.nextID
	d.nextID--

	name := destNameKey(filepath.Base(path))
	d.items = append(d.items, meural.Item{ID: id, Name: name})

	d.logger.Info("would upload item", slog.String("name", name), slog.Int("item_id", id))

	return id, nil
}

// SetMetadata logs the intention and records the description on the
// simulated item when there is one.
func (d *DryRunDestination) SetMetadata(_ context.Context, itemID int, description string) error {
	for i := range d.items {
		if d.items[i].ID == itemID {
			d.items[i].Description = description
			break
		}
	}

	d.logger.Info("would set item metadata", slog.Int("item_id", itemID))

	return nil
}

// Delete logs the intention and hides the item from subsequent listings.
func (d *DryRunDestination) Delete(_ context.Context, itemID int) error {
	d.deleted[itemID] = true

	d.logger.Info("would delete item", slog.Int("item_id", itemID))

	return nil
}

// CreatePlaylist logs the intention and records a simulated playlist.
func (d *DryRunDestination) CreatePlaylist(_ context.Context, name, description, orientation string) (*meural.Playlist, error) {
	pl := meural.Playlist{ID: d.nextID, Name: name}
	d.nextID--

	d.playlists = append(d.playlists, pl)

	d.logger.Info("would create playlist",
		slog.String("name", name),
		slog.String("orientation", orientation),
		slog.String("description", description),
	)

	return &pl, nil
}

// AddToPlaylist logs the intention and returns membership including the
// simulated link, so confirmation checks pass.
func (d *DryRunDestination) AddToPlaylist(ctx context.Context, itemID, playlistID int) ([]int, error) {
	d.links[playlistID] = append(d.links[playlistID], itemID)

	d.logger.Info("would add item to playlist",
		slog.Int("item_id", itemID),
		slog.Int("playlist_id", playlistID),
	)

	playlists, err := d.ListPlaylists(ctx)
	if err != nil {
		return []int{itemID}, nil //nolint:nilerr // confirmation falls back to the simulated link
	}

	for _, pl := range playlists {
		if pl.ID == playlistID {
			return pl.ItemIDs, nil
		}
	}

	return []int{itemID}, nil
}
