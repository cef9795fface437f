package sync

import (
	"context"
	"strings"
	"testing"
)

func taggedDescription(t *testing.T, albumID, checksum, playlist string) string {
	t.Helper()

	desc, err := Tag{AlbumID: albumID, Checksum: checksum, PlaylistName: playlist}.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	return desc
}

func TestLoadInventory(t *testing.T) {
	t.Parallel()

	dest := newFakeDest()
	bedroom := dest.addPlaylist("Bedroom")
	dest.addItem("fp1.jpg", taggedDescription(t, "album1", "fp1", ""))
	dest.addItem("sunset.jpg", "a lovely sunset") // alien item

	inv, err := LoadInventory(context.Background(), dest, testLogger(t))
	if err != nil {
		t.Fatalf("LoadInventory: %v", err)
	}

	if pl, ok := inv.Playlist("Bedroom"); !ok || pl.ID != bedroom.ID {
		t.Errorf("Playlist(Bedroom) = %+v, %v", pl, ok)
	}

	if _, ok := inv.Playlist("Kitchen"); ok {
		t.Error("Playlist returned a playlist that does not exist")
	}

	if !inv.HasName("fp1") || !inv.HasName("fp1.jpg") {
		t.Error("HasName missed the tagged item")
	}

	if !inv.HasName("sunset") {
		t.Error("HasName missed the alien item")
	}

	tagged := inv.TaggedForAlbum("album1")
	if len(tagged) != 1 || tagged[0].Tag.Checksum != "fp1" {
		t.Errorf("TaggedForAlbum = %+v, want one fp1 item", tagged)
	}

	if len(inv.TaggedForAlbum("other-album")) != 0 {
		t.Error("TaggedForAlbum leaked items across albums")
	}

	if inv.Empty() {
		t.Error("Empty() true with items present")
	}
}

func TestInventory_ClaimsFingerprint(t *testing.T) {
	t.Parallel()

	dest := newFakeDest()
	dest.addItem("fp1.jpg", taggedDescription(t, "album1", "fp1", ""))
	// Tag write failed partway for this one: name matches, no tag.
	dest.addItem("fp2_104.jpg", "")
	dest.addItem("sunset.jpg", "")

	inv, err := LoadInventory(context.Background(), dest, testLogger(t))
	if err != nil {
		t.Fatalf("LoadInventory: %v", err)
	}

	if !inv.ClaimsFingerprint("album1", "fp1") {
		t.Error("tagged item not claimed")
	}

	if !inv.ClaimsFingerprint("album1", "fp2") {
		t.Error("name-derived claim (unique suffix) missed")
	}

	if inv.ClaimsFingerprint("album1", "fp9") {
		t.Error("claimed a fingerprint with no destination presence")
	}

	// A fingerprint that happens to prefix an unrelated name must not
	// claim it without the separator.
	if inv.ClaimsFingerprint("album1", "sun") {
		t.Error("claimed via bare prefix without separator")
	}
}

func TestInventory_ClaimsTruncatedFingerprint(t *testing.T) {
	t.Parallel()

	fingerprint := strings.Repeat("a", 70)

	dest := newFakeDest()
	// The destination stores the name truncated; no tag.
	dest.addItem(fingerprint+".jpg", "")

	inv, err := LoadInventory(context.Background(), dest, testLogger(t))
	if err != nil {
		t.Fatalf("LoadInventory: %v", err)
	}

	if !inv.ClaimsFingerprint("album1", fingerprint) {
		t.Error("truncated destination name not matched to full fingerprint")
	}
}

func TestInventory_ItemByName(t *testing.T) {
	t.Parallel()

	dest := newFakeDest()
	item := dest.addItem("fp1.jpg", "")

	inv, err := LoadInventory(context.Background(), dest, testLogger(t))
	if err != nil {
		t.Fatalf("LoadInventory: %v", err)
	}

	got, ok := inv.ItemByName("fp1")
	if !ok || got.ID != item.ID {
		t.Errorf("ItemByName = %+v, %v; want item %d", got, ok, item.ID)
	}
}
