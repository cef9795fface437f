package sync

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLedger_Lifecycle(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)
	key := Key{AlbumID: "album1", Fingerprint: "fp1", Playlist: "Bedroom"}

	if err := ledger.Record(key, "fp1.jpg"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entry, ok := ledger.Get(key)
	if !ok {
		t.Fatal("entry missing after Record")
	}

	if entry.Uploaded() || entry.Linked || entry.Removed {
		t.Errorf("fresh entry = %+v, want unuploaded/unlinked/live", entry)
	}

	if err := ledger.MarkUploaded(key, 555); err != nil {
		t.Fatalf("MarkUploaded: %v", err)
	}

	if err := ledger.MarkLinked(key); err != nil {
		t.Fatalf("MarkLinked: %v", err)
	}

	entry, _ = ledger.Get(key)
	if !entry.Uploaded() || *entry.ItemID != 555 || !entry.Linked {
		t.Errorf("entry after upload+link = %+v", entry)
	}

	if err := ledger.MarkRemoved(key); err != nil {
		t.Fatalf("MarkRemoved: %v", err)
	}

	entry, _ = ledger.Get(key)
	if !entry.Removed {
		t.Error("entry not tombstoned after MarkRemoved")
	}
}

func TestLedger_RecordIsIdempotent(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)
	key := Key{AlbumID: "a", Fingerprint: "fp", Playlist: "p"}

	if err := ledger.Record(key, "fp.jpg"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if err := ledger.MarkUploaded(key, 9); err != nil {
		t.Fatalf("MarkUploaded: %v", err)
	}

	// A second Record must not reset the upload state.
	if err := ledger.Record(key, "other.jpg"); err != nil {
		t.Fatalf("second Record: %v", err)
	}

	entry, _ := ledger.Get(key)
	if !entry.Uploaded() || entry.Filename != "fp.jpg" {
		t.Errorf("entry after duplicate Record = %+v", entry)
	}
}

func TestLedger_ResetSupersedesTombstone(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)
	key := Key{AlbumID: "a", Fingerprint: "fp", Playlist: "p"}

	if err := ledger.Record(key, "fp.jpg"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if err := ledger.MarkUploaded(key, 9); err != nil {
		t.Fatalf("MarkUploaded: %v", err)
	}

	if err := ledger.MarkRemoved(key); err != nil {
		t.Fatalf("MarkRemoved: %v", err)
	}

	if err := ledger.Reset(key, "fp.jpg"); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	entry, _ := ledger.Get(key)
	if entry.Removed || entry.Uploaded() {
		t.Errorf("entry after Reset = %+v, want fresh", entry)
	}
}

func TestLedger_MutatorsRejectUnknownKeys(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)
	key := Key{AlbumID: "a", Fingerprint: "fp", Playlist: "p"}

	if err := ledger.MarkUploaded(key, 1); err == nil {
		t.Error("MarkUploaded on unknown key succeeded")
	}

	if err := ledger.MarkLinked(key); err == nil {
		t.Error("MarkLinked on unknown key succeeded")
	}

	if err := ledger.MarkRemoved(key); err == nil {
		t.Error("MarkRemoved on unknown key succeeded")
	}
}

func TestLedger_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "records.json")

	ledger, err := OpenLedger(path, testLogger(t))
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}

	live := Key{AlbumID: "album1", Fingerprint: "fp1", Playlist: "Bedroom"}
	dead := Key{AlbumID: "album1", Fingerprint: "fp2", Playlist: "Bedroom"}

	if err := ledger.Record(live, "fp1.jpg"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if err := ledger.MarkUploaded(live, 7); err != nil {
		t.Fatalf("MarkUploaded: %v", err)
	}

	if err := ledger.MarkLinked(live); err != nil {
		t.Fatalf("MarkLinked: %v", err)
	}

	if err := ledger.Record(dead, "fp2.jpg"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if err := ledger.MarkRemoved(dead); err != nil {
		t.Fatalf("MarkRemoved: %v", err)
	}

	reopened, err := OpenLedger(path, testLogger(t))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	entry, ok := reopened.Get(live)
	if !ok || !entry.Uploaded() || *entry.ItemID != 7 || !entry.Linked {
		t.Errorf("live entry after reopen = %+v, ok=%v", entry, ok)
	}

	entry, ok = reopened.Get(dead)
	if !ok || !entry.Removed {
		t.Errorf("tombstone after reopen = %+v, ok=%v", entry, ok)
	}
}

func TestLedger_DiskLayout(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "records.json")

	ledger, err := OpenLedger(path, testLogger(t))
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}

	key := Key{AlbumID: "album1", Fingerprint: "fp1", Playlist: "Bedroom"}
	if err := ledger.Record(key, "fp1.jpg"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if err := ledger.MarkUploaded(key, 42); err != nil {
		t.Fatalf("MarkUploaded: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read ledger file: %v", err)
	}

	// Nested album -> fingerprint -> playlist layout with the historical
	// field names.
	for _, want := range []string{
		`"album1"`, `"fp1"`, `"Bedroom"`,
		`"filename": "fp1.jpg"`,
		`"meural_id": 42`,
		`"added_to_playlist": false`,
		`"deleted_from_meural": false`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("ledger file missing %s:\n%s", want, data)
		}
	}
}

func TestLedger_CorruptFileFailsOpen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "records.json")
	if err := os.WriteFile(path, []byte("{truncated"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := OpenLedger(path, testLogger(t)); err == nil {
		t.Error("OpenLedger accepted a corrupt file")
	}
}

func TestLedger_Forget(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)
	k1 := Key{AlbumID: "a", Fingerprint: "fp1", Playlist: "p"}
	k2 := Key{AlbumID: "a", Fingerprint: "fp2", Playlist: "p"}

	for _, k := range []Key{k1, k2} {
		if err := ledger.Record(k, k.Fingerprint+".jpg"); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	if err := ledger.Forget(k1); err != nil {
		t.Fatalf("Forget: %v", err)
	}

	if _, ok := ledger.Get(k1); ok {
		t.Error("forgotten entry still present")
	}

	if _, ok := ledger.Get(k2); !ok {
		t.Error("unrelated entry lost by Forget")
	}
}

func TestLedger_Queries(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)

	seed := []struct {
		key      Key
		uploaded bool
		linked   bool
		removed  bool
	}{
		{Key{"a1", "fp1", "p1"}, true, true, false},
		{Key{"a1", "fp2", "p1"}, true, false, false}, // unlinked
		{Key{"a1", "fp3", "p1"}, true, true, true},   // tombstone
		{Key{"a2", "fp4", "p1"}, true, true, false},  // other album
	}

	for _, s := range seed {
		if err := ledger.Record(s.key, s.key.Fingerprint+".jpg"); err != nil {
			t.Fatalf("Record: %v", err)
		}

		if s.uploaded {
			if err := ledger.MarkUploaded(s.key, 1); err != nil {
				t.Fatalf("MarkUploaded: %v", err)
			}
		}

		if s.linked {
			if err := ledger.MarkLinked(s.key); err != nil {
				t.Fatalf("MarkLinked: %v", err)
			}
		}

		if s.removed {
			if err := ledger.MarkRemoved(s.key); err != nil {
				t.Fatalf("MarkRemoved: %v", err)
			}
		}
	}

	live := ledger.LiveFingerprints("a1")
	if len(live) != 2 || live[0] != "fp1" || live[1] != "fp2" {
		t.Errorf("LiveFingerprints = %v, want [fp1 fp2]", live)
	}

	unlinked := ledger.Unlinked("a1")
	if len(unlinked) != 1 || unlinked[0].Fingerprint != "fp2" {
		t.Errorf("Unlinked = %v, want [fp2]", unlinked)
	}

	if got := len(ledger.Entries("a1")); got != 3 {
		t.Errorf("Entries(a1) = %d entries, want 3", got)
	}

	if got := len(ledger.All()); got != 4 {
		t.Errorf("All = %d entries, want 4", got)
	}
}
