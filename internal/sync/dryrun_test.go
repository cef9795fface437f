package sync

import (
	"context"
	"slices"
	"testing"
)

func TestDryRunDestination_NeverTouchesRealDestination(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dest := newFakeDest()
	realItem := dest.addItem("existing.jpg", "")
	dest.addPlaylist("Bedroom")

	dry := NewDryRunDestination(dest, testLogger(t))

	id, err := dry.Upload(ctx, "/staging/not_uploaded/fp1.jpg")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if id >= 0 {
		t.Errorf("simulated item id = %d, want negative", id)
	}

	if err := dry.SetMetadata(ctx, id, "desc"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}

	if err := dry.Delete(ctx, realItem.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := dry.CreatePlaylist(ctx, "Review", "", "vertical"); err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}

	if dest.uploadCalls != 0 || dest.deleteCalls != 0 || dest.linkCalls != 0 || dest.createCalls != 0 {
		t.Errorf("real destination mutated: uploads=%d deletes=%d links=%d creates=%d",
			dest.uploadCalls, dest.deleteCalls, dest.linkCalls, dest.createCalls)
	}

	if _, ok := dest.items[realItem.ID]; !ok {
		t.Error("simulated delete removed the real item")
	}
}

func TestDryRunDestination_OverlayVisibleInListings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dest := newFakeDest()
	realItem := dest.addItem("existing.jpg", "")
	bedroom := dest.addPlaylist("Bedroom")

	dry := NewDryRunDestination(dest, testLogger(t))

	uploadedID, err := dry.Upload(ctx, "/staging/not_uploaded/fp1.jpg")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if err := dry.Delete(ctx, realItem.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := dry.AddToPlaylist(ctx, uploadedID, bedroom.ID); err != nil {
		t.Fatalf("AddToPlaylist: %v", err)
	}

	items, err := dry.ListItems(ctx)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}

	var names []string
	for _, item := range items {
		names = append(names, item.Name)
	}

	if slices.Contains(names, "existing") {
		t.Error("simulated-deleted item still listed")
	}

	if !slices.Contains(names, "fp1") {
		t.Errorf("simulated upload missing from listing: %v", names)
	}

	playlists, err := dry.ListPlaylists(ctx)
	if err != nil {
		t.Fatalf("ListPlaylists: %v", err)
	}

	var members []int
	for _, pl := range playlists {
		if pl.ID == bedroom.ID {
			members = pl.ItemIDs
		}
	}

	if !slices.Contains(members, uploadedID) {
		t.Errorf("simulated link missing from playlist membership: %v", members)
	}
}

func TestDryRunDestination_AddToPlaylistConfirms(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dest := newFakeDest()
	bedroom := dest.addPlaylist("Bedroom")

	dry := NewDryRunDestination(dest, testLogger(t))

	id, err := dry.Upload(ctx, "/x/fp1.jpg")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	memberIDs, err := dry.AddToPlaylist(ctx, id, bedroom.ID)
	if err != nil {
		t.Fatalf("AddToPlaylist: %v", err)
	}

	if !slices.Contains(memberIDs, id) {
		t.Errorf("membership %v does not confirm the simulated link", memberIDs)
	}
}
