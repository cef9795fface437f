package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"testing"

	"github.com/MikeFez/MeuralCanvas-iCloudSync/internal/icloud"
	"github.com/MikeFez/MeuralCanvas-iCloudSync/internal/meural"
)

// testLogWriter adapts testing.T to io.Writer for slog.
type testLogWriter struct {
	t *testing.T
}

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))

	return len(p), nil
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(testLogWriter{t: t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()

	ledger, err := OpenLedger(filepath.Join(t.TempDir(), "records.json"), testLogger(t))
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}

	return ledger
}

// fakeSource serves a canned album and byte payloads keyed by URL.
type fakeSource struct {
	album      *icloud.Album
	resolveErr error
	fetchErr   error
	fetches    int
}

func (s *fakeSource) Resolve(_ context.Context, _ string) (*icloud.Album, error) {
	if s.resolveErr != nil {
		return nil, s.resolveErr
	}

	album := *s.album
	album.Items = slices.Clone(s.album.Items)

	return &album, nil
}

func (s *fakeSource) Fetch(_ context.Context, url string) ([]byte, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}

	s.fetches++

	return []byte("bytes-for-" + url), nil
}

// fakeDest is an in-memory Destination mimicking the real service's
// observable behavior: item names are stored extension-stripped and
// truncated, deletes cascade out of playlists, and AddToPlaylist returns
// post-call membership.
type fakeDest struct {
	playlists map[int]*meural.Playlist
	items     map[int]*meural.Item
	nextID    int

	uploadCalls int
	deleteCalls int
	linkCalls   int
	createCalls int

	uploadErr error
	listErr   error
	deleteErr error

	// dropLinks makes AddToPlaylist accept the call without actually
	// adding the item, simulating an unconfirmed linkage.
	dropLinks bool
}

func newFakeDest() *fakeDest {
	return &fakeDest{
		playlists: make(map[int]*meural.Playlist),
		items:     make(map[int]*meural.Item),
		nextID:    100,
	}
}

func (d *fakeDest) addPlaylist(name string) *meural.Playlist {
	d.nextID++
	pl := &meural.Playlist{ID: d.nextID, Name: name}
	d.playlists[pl.ID] = pl

	return pl
}

func (d *fakeDest) addItem(name, description string) *meural.Item {
	d.nextID++
	item := &meural.Item{ID: d.nextID, Name: destNameKey(name), Description: description}
	d.items[item.ID] = item

	return item
}

func (d *fakeDest) itemNames() []string {
	var names []string
	for _, item := range d.items {
		names = append(names, item.Name)
	}

	sort.Strings(names)

	return names
}

func (d *fakeDest) playlistByName(name string) *meural.Playlist {
	for _, pl := range d.playlists {
		if pl.Name == name {
			return pl
		}
	}

	return nil
}

func (d *fakeDest) ListPlaylists(_ context.Context) ([]meural.Playlist, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}

	out := make([]meural.Playlist, 0, len(d.playlists))
	for _, pl := range d.playlists {
		cp := *pl
		cp.ItemIDs = slices.Clone(pl.ItemIDs)
		out = append(out, cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (d *fakeDest) ListItems(_ context.Context) ([]meural.Item, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}

	out := make([]meural.Item, 0, len(d.items))
	for _, item := range d.items {
		out = append(out, *item)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (d *fakeDest) Upload(_ context.Context, path string) (int, error) {
	d.uploadCalls++

	if d.uploadErr != nil {
		return 0, d.uploadErr
	}

	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("fake upload: %w", err)
	}

	item := d.addItem(filepath.Base(path), "")

	return item.ID, nil
}

func (d *fakeDest) SetMetadata(_ context.Context, itemID int, description string) error {
	item, ok := d.items[itemID]
	if !ok {
		return fmt.Errorf("fake metadata: no item %d", itemID)
	}

	item.Description = description

	return nil
}

func (d *fakeDest) Delete(_ context.Context, itemID int) error {
	d.deleteCalls++

	if d.deleteErr != nil {
		return d.deleteErr
	}

	if _, ok := d.items[itemID]; !ok {
		return fmt.Errorf("fake delete: no item %d", itemID)
	}

	delete(d.items, itemID)

	for _, pl := range d.playlists {
		pl.ItemIDs = slices.DeleteFunc(pl.ItemIDs, func(id int) bool { return id == itemID })
	}

	return nil
}

func (d *fakeDest) CreatePlaylist(_ context.Context, name, _, _ string) (*meural.Playlist, error) {
	d.createCalls++

	pl := d.addPlaylist(name)
	cp := *pl

	return &cp, nil
}

func (d *fakeDest) AddToPlaylist(_ context.Context, itemID, playlistID int) ([]int, error) {
	d.linkCalls++

	pl, ok := d.playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("fake link: no playlist %d", playlistID)
	}

	if !d.dropLinks && !slices.Contains(pl.ItemIDs, itemID) {
		pl.ItemIDs = append(pl.ItemIDs, itemID)
	}

	return slices.Clone(pl.ItemIDs), nil
}
