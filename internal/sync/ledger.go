package sync

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"
)

// Ledger is the durable record of every (album, fingerprint, playlist)
// materialization decision. An entry exists if and only if the engine
// has, at some point, decided the pair should exist on the destination.
// A removed entry is a tombstone: the triple is logically dead but the
// row is retained so the decision is not silently repeated.
//
// The in-memory mirror is a flat map on a composite key; on disk the
// ledger is one JSON document nested album -> fingerprint -> playlist ->
// record, byte-compatible with earlier deployments. Every mutator
// rewrites and flushes the whole file before returning, so a crash
// mid-cycle loses at most the single in-flight operation, an
// inconsistency the next cycle's destination cross-check resolves.
//
// Single writer, no concurrent readers during a cycle; no locking needed
// beyond the atomic whole-file replace.
type Ledger struct {
	path    string
	entries map[Key]*Entry
	logger  *slog.Logger
}

// Key identifies one materialization decision.
type Key struct {
	AlbumID     string
	Fingerprint string
	Playlist    string
}

// Entry is the persisted record for a key. Field names on disk match the
// original records.json layout.
type Entry struct {
	Filename string `json:"filename"`
	ItemID   *int   `json:"meural_id"`
	Linked   bool   `json:"added_to_playlist"`
	Removed  bool   `json:"deleted_from_meural"`
}

// Uploaded reports whether the destination holds (or held) this entry.
func (e *Entry) Uploaded() bool {
	return e.ItemID != nil
}

// ledgerDoc is the on-disk shape: album -> fingerprint -> playlist -> entry.
type ledgerDoc map[string]map[string]map[string]*Entry

// OpenLedger loads the ledger document at path, or starts empty when no
// file exists yet.
func OpenLedger(path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	l := &Ledger{path: path, entries: make(map[Key]*Entry), logger: logger}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}

	if err != nil {
		return nil, fmt.Errorf("sync: reading ledger %s: %w", path, err)
	}

	var doc ledgerDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("sync: parsing ledger %s: %w", path, err)
	}

	for albumID, fingerprints := range doc {
		for fingerprint, playlists := range fingerprints {
			for playlist, entry := range playlists {
				l.entries[Key{albumID, fingerprint, playlist}] = entry
			}
		}
	}

	logger.Debug("ledger loaded", slog.String("path", path), slog.Int("entries", len(l.entries)))

	return l, nil
}

// save rewrites the whole document atomically: temp file in the same
// directory, fsync, rename over the original.
func (l *Ledger) save() error {
	doc := make(ledgerDoc)

	for key, entry := range l.entries {
		album, ok := doc[key.AlbumID]
		if !ok {
			album = make(map[string]map[string]*Entry)
			doc[key.AlbumID] = album
		}

		fingerprint, ok := album[key.Fingerprint]
		if !ok {
			fingerprint = make(map[string]*Entry)
			album[key.Fingerprint] = fingerprint
		}

		fingerprint[key.Playlist] = entry
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("sync: encoding ledger: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".records-*.json")
	if err != nil {
		return fmt.Errorf("sync: creating ledger temp file: %w", err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("sync: writing ledger: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("sync: flushing ledger: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("sync: closing ledger temp file: %w", err)
	}

	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("sync: replacing ledger: %w", err)
	}

	return nil
}

// Record creates an entry for key if none exists. An existing entry,
// live or tombstoned, is left untouched.
func (l *Ledger) Record(key Key, filename string) error {
	if _, ok := l.entries[key]; ok {
		return nil
	}

	l.entries[key] = &Entry{Filename: filename}

	return l.save()
}

// Reset replaces any entry for key with a fresh unuploaded record,
// superseding a tombstone when reappearing content is treated as new.
func (l *Ledger) Reset(key Key, filename string) error {
	l.entries[key] = &Entry{Filename: filename}

	return l.save()
}

// MarkUploaded stores the destination item id for key.
func (l *Ledger) MarkUploaded(key Key, itemID int) error {
	entry, ok := l.entries[key]
	if !ok {
		return fmt.Errorf("sync: marking unknown ledger entry %v uploaded", key)
	}

	entry.ItemID = &itemID

	return l.save()
}

// MarkLinked records confirmed playlist membership for key.
func (l *Ledger) MarkLinked(key Key) error {
	entry, ok := l.entries[key]
	if !ok {
		return fmt.Errorf("sync: marking unknown ledger entry %v linked", key)
	}

	entry.Linked = true

	return l.save()
}

// MarkRemoved tombstones key. Terminal: the triple is excluded from all
// future not-yet-uploaded queries but the row is retained.
func (l *Ledger) MarkRemoved(key Key) error {
	entry, ok := l.entries[key]
	if !ok {
		return fmt.Errorf("sync: marking unknown ledger entry %v removed", key)
	}

	entry.Removed = true

	return l.save()
}

// Forget drops entries entirely. Used only by tombstone garbage
// collection once a fingerprint has left the source album and holds no
// destination presence, so reappearing content starts from a clean slate.
func (l *Ledger) Forget(keys ...Key) error {
	changed := false

	for _, key := range keys {
		if _, ok := l.entries[key]; ok {
			delete(l.entries, key)

			changed = true
		}
	}

	if !changed {
		return nil
	}

	return l.save()
}

// Get returns a copy of the entry for key.
func (l *Ledger) Get(key Key) (Entry, bool) {
	entry, ok := l.entries[key]
	if !ok {
		return Entry{}, false
	}

	return *entry, true
}

// Entries returns copies of all entries for an album, keyed by composite
// key, in no particular order.
func (l *Ledger) Entries(albumID string) map[Key]Entry {
	out := make(map[Key]Entry)

	for key, entry := range l.entries {
		if key.AlbumID == albumID {
			out[key] = *entry
		}
	}

	return out
}

// All returns copies of every entry in the ledger.
func (l *Ledger) All() map[Key]Entry {
	out := make(map[Key]Entry, len(l.entries))

	for key, entry := range l.entries {
		out[key] = *entry
	}

	return out
}

// LiveFingerprints returns the fingerprints with at least one
// non-tombstoned entry for an album, sorted for deterministic iteration.
func (l *Ledger) LiveFingerprints(albumID string) []string {
	seen := make(map[string]bool)

	for key, entry := range l.entries {
		if key.AlbumID == albumID && !entry.Removed {
			seen[key.Fingerprint] = true
		}
	}

	out := make([]string, 0, len(seen))
	for fingerprint := range seen {
		out = append(out, fingerprint)
	}

	sort.Strings(out)

	return out
}

// Unlinked returns keys for an album that were uploaded but never
// confirmed into their playlist; the crash window between upload and
// link. Sorted for deterministic processing.
func (l *Ledger) Unlinked(albumID string) []Key {
	var out []Key

	for key, entry := range l.entries {
		if key.AlbumID == albumID && entry.Uploaded() && !entry.Linked && !entry.Removed {
			out = append(out, key)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Fingerprint != out[j].Fingerprint {
			return out[i].Fingerprint < out[j].Fingerprint
		}

		return out[i].Playlist < out[j].Playlist
	})

	return out
}
