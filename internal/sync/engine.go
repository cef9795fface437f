package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/google/uuid"

	"github.com/MikeFez/MeuralCanvas-iCloudSync/internal/config"
	"github.com/MikeFez/MeuralCanvas-iCloudSync/internal/icloud"
	"github.com/MikeFez/MeuralCanvas-iCloudSync/internal/meural"
)

// defaultOrientation is used when creating the quarantine playlist.
const defaultOrientation = "vertical"

// quarantineDescription is stored on the quarantine playlist on creation.
const quarantineDescription = "Synced items with no destination presence, awaiting manual removal from the source album"

// EngineConfig holds the collaborators for creating an Engine.
type EngineConfig struct {
	Source             Source
	Destination        Destination
	Ledger             *Ledger
	Staging            *Staging
	Logger             *slog.Logger
	QuarantinePlaylist string
	Orientation        string
	DryRun             bool
}

// Engine is the reconciliation orchestrator. Per sync task it computes
// the three-way diff between source state, destination state, and the
// ledger, then drives deletions, uploads, links, and quarantine in order.
// Execution is strictly sequential: the destination has no
// compare-and-swap semantics, so concurrent mutation of the same playlist
// would race against itself.
type Engine struct {
	src            Source
	dst            Destination
	ledger         *Ledger
	staging        *Staging
	logger         *slog.Logger
	quarantineName string
	orientation    string
	dryRun         bool
}

// NewEngine creates an Engine. In dry-run mode the destination is wrapped
// so every mutating call becomes a logged intention against a simulated
// overlay, and the ledger and staging area are never written.
func NewEngine(cfg *EngineConfig) (*Engine, error) {
	switch {
	case cfg.Source == nil:
		return nil, errors.New("sync: engine requires a source")
	case cfg.Destination == nil:
		return nil, errors.New("sync: engine requires a destination")
	case cfg.Ledger == nil:
		return nil, errors.New("sync: engine requires a ledger")
	case cfg.Staging == nil:
		return nil, errors.New("sync: engine requires a staging area")
	case cfg.QuarantinePlaylist == "":
		return nil, errors.New("sync: engine requires a quarantine playlist name")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	orientation := cfg.Orientation
	if orientation == "" {
		orientation = defaultOrientation
	}

	dst := cfg.Destination
	if cfg.DryRun {
		dst = NewDryRunDestination(dst, logger)
	}

	return &Engine{
		src:            cfg.Source,
		dst:            dst,
		ledger:         cfg.Ledger,
		staging:        cfg.Staging,
		logger:         logger,
		quarantineName: cfg.QuarantinePlaylist,
		orientation:    orientation,
		dryRun:         cfg.DryRun,
	}, nil
}

// RunCycle reconciles every task once, sequentially. Per-item failures
// are logged and counted; only fatal conditions (configuration errors)
// propagate, and they abort the remaining tasks.
func (e *Engine) RunCycle(ctx context.Context, tasks []config.SyncTask) (*Report, error) {
	log := e.logger.With(slog.String("cycle_id", uuid.NewString()))
	report := &Report{}

	for _, task := range tasks {
		taskReport, err := e.runTask(ctx, log, task)
		if taskReport != nil {
			report.add(taskReport)
		}

		if err != nil {
			return report, err
		}
	}

	log.Info("cycle complete",
		slog.Int("uploads", report.Uploads),
		slog.Int("links", report.Links),
		slog.Int("deletes", report.Deletes),
		slog.Int("quarantined", report.Quarantined),
		slog.Int("skipped", report.Skipped),
		slog.Int("errors", report.Errors),
	)

	return report, nil
}

// runTask runs the full phase sequence for one task:
// validate -> fetch source -> delete orphans -> upload and link ->
// quarantine. Deletion runs before upload so a playlist slot freed by a
// deletion is available for re-linking within the same cycle.
func (e *Engine) runTask(ctx context.Context, log *slog.Logger, task config.SyncTask) (*Report, error) {
	log = log.With(slog.String("album", task.ICloudAlbum))
	report := &Report{}

	inv, err := LoadInventory(ctx, e.dst, log)
	if err != nil {
		log.Error("failed to load destination inventory, skipping task", slog.String("error", err.Error()))

		report.Errors++

		return report, nil
	}

	if err := validateTask(task, inv); err != nil {
		return report, err
	}

	album, err := e.src.Resolve(ctx, task.ICloudAlbum)
	if err != nil {
		log.Error("failed to resolve source album, skipping task", slog.String("error", err.Error()))

		report.Errors++

		return report, nil
	}

	log = log.With(slog.String("album_id", album.ID))

	items, fingerprints := collapseItems(album.Items)

	inv, err = e.deletePhase(ctx, log, album.ID, fingerprints, inv, report)
	if err != nil {
		return report, err
	}

	uploaded, inv, err := e.uploadPhase(ctx, log, task, album.ID, items, inv, report)
	if err != nil {
		return report, err
	}

	if err := e.quarantinePhase(ctx, log, album.ID, items, uploaded, inv, report); err != nil {
		return report, err
	}

	return report, nil
}

// validateTask checks the task against current destination state. A task
// naming a playlist the destination doesn't have is a configuration
// error, not a transient one: retrying cannot fix it, so the whole
// process halts for an operator.
func validateTask(task config.SyncTask, inv *Inventory) error {
	if len(task.MeuralPlaylists) == 0 {
		return &ConfigError{Reason: fmt.Sprintf("cannot sync %s: no destination playlists specified", task.ICloudAlbum)}
	}

	for _, pl := range task.MeuralPlaylists {
		if _, ok := inv.Playlist(pl.Name); !ok {
			return &ConfigError{Reason: fmt.Sprintf("cannot sync %s: destination playlist %q does not exist", task.ICloudAlbum, pl.Name)}
		}
	}

	return nil
}

// collapseItems dedups source items by fingerprint (the same photo
// re-shared collapses to one item) and returns them sorted for
// deterministic processing, plus the fingerprint membership set.
func collapseItems(items []icloud.Item) ([]icloud.Item, map[string]bool) {
	fingerprints := make(map[string]bool, len(items))
	out := make([]icloud.Item, 0, len(items))

	for _, item := range items {
		if fingerprints[item.Fingerprint] {
			continue
		}

		fingerprints[item.Fingerprint] = true

		out = append(out, item)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Fingerprint < out[j].Fingerprint })

	return out, fingerprints
}

// deletePhase removes destination items whose fingerprint left the
// source, cross-checks the ledger against destination inventory, and
// garbage-collects tombstones for fingerprints gone from both sides.
func (e *Engine) deletePhase(ctx context.Context, log *slog.Logger, albumID string, fingerprints map[string]bool, inv *Inventory, report *Report) (*Inventory, error) {
	deleted := 0

	for _, ti := range inv.TaggedForAlbum(albumID) {
		if fingerprints[ti.Tag.Checksum] {
			continue
		}

		if err := e.dst.Delete(ctx, ti.Item.ID); err != nil {
			log.Error("failed to delete orphaned item",
				slog.String("item", ti.Item.Name),
				slog.String("fingerprint", ti.Tag.Checksum),
				slog.String("error", err.Error()),
			)

			report.Errors++

			continue
		}

		log.Info("deleted orphaned destination item",
			slog.String("item", ti.Item.Name),
			slog.String("fingerprint", ti.Tag.Checksum),
		)

		report.Deletes++
		deleted++

		e.tombstoneItem(log, albumID, ti)
	}

	// One batched refresh after deletions, so the upload phase sees the
	// freed slots without paying a listing per item.
	if deleted > 0 {
		fresh, err := LoadInventory(ctx, e.dst, log)
		if err != nil {
			log.Error("failed to refresh inventory after deletions", slog.String("error", err.Error()))

			report.Errors++

			return inv, nil
		}

		inv = fresh
	}

	e.pruneAgainstInventory(log, albumID, inv, report)
	e.collectTombstones(log, albumID, fingerprints, inv)

	return inv, nil
}

// tombstoneItem marks the ledger entries matching a deleted destination
// item as removed and drops their staged files.
func (e *Engine) tombstoneItem(log *slog.Logger, albumID string, ti TaggedItem) {
	if e.dryRun {
		return
	}

	for key, entry := range e.ledger.Entries(albumID) {
		if key.Fingerprint != ti.Tag.Checksum || entry.Removed {
			continue
		}

		// Entries without a filename were adopted from the destination;
		// the fingerprint match above is the only handle they have.
		if entry.Filename != "" && destNameKey(entry.Filename) != destNameKey(ti.Item.Name) {
			continue
		}

		if err := e.ledger.MarkRemoved(key); err != nil {
			log.Error("failed to tombstone ledger entry",
				slog.String("playlist", key.Playlist),
				slog.String("error", err.Error()),
			)

			continue
		}

		e.staging.Remove(entry.Filename)
	}
}

// pruneAgainstInventory tombstones live ledger entries whose destination
// item vanished out-of-band. A deletion made directly on the destination
// is a deliberate act; re-uploading would bounce it back, so the entry is
// tombstoned and the item surfaces via quarantine instead. An empty item
// listing is treated as a possible API fault and skips the check.
func (e *Engine) pruneAgainstInventory(log *slog.Logger, albumID string, inv *Inventory, report *Report) {
	if inv.Empty() {
		log.Warn("destination reported no items; skipping ledger cross-check")
		return
	}

	if e.dryRun {
		return
	}

	for key, entry := range e.ledger.Entries(albumID) {
		if entry.Removed || entry.Filename == "" || !entry.Uploaded() {
			continue
		}

		if inv.HasName(entry.Filename) {
			continue
		}

		log.Info("destination item vanished out-of-band, tombstoning",
			slog.String("fingerprint", key.Fingerprint),
			slog.String("playlist", key.Playlist),
			slog.String("filename", entry.Filename),
		)

		if err := e.ledger.MarkRemoved(key); err != nil {
			log.Error("failed to tombstone pruned entry", slog.String("error", err.Error()))

			report.Errors++

			continue
		}

		e.staging.Remove(entry.Filename)
	}
}

// collectTombstones drops tombstones for fingerprints that are gone from
// both the source album and the destination. Deletion stays sticky while
// the fingerprint remains in the source; once it has left both sides,
// retaining the tombstone would only block a future re-share of the same
// content, which is treated as entirely new.
func (e *Engine) collectTombstones(log *slog.Logger, albumID string, fingerprints map[string]bool, inv *Inventory) {
	if e.dryRun {
		return
	}

	var gone []Key

	for key, entry := range e.ledger.Entries(albumID) {
		if !entry.Removed || fingerprints[key.Fingerprint] {
			continue
		}

		if inv.ClaimsFingerprint(albumID, key.Fingerprint) {
			continue
		}

		gone = append(gone, key)
	}

	if len(gone) == 0 {
		return
	}

	if err := e.ledger.Forget(gone...); err != nil {
		log.Error("failed to collect tombstones", slog.String("error", err.Error()))
		return
	}

	log.Debug("collected tombstones", slog.Int("count", len(gone)))
}

// uploadPhase materializes every (source item x playlist) pair that is
// not yet on the destination: one lazy download per item, one upload per
// distinct derived name, a link into each playlist that needs it.
// Returns the set of fingerprints uploaded this cycle and the refreshed
// inventory.
func (e *Engine) uploadPhase(ctx context.Context, log *slog.Logger, task config.SyncTask, albumID string, items []icloud.Item, inv *Inventory, report *Report) (map[string]bool, *Inventory, error) {
	uploaded := make(map[string]bool)
	madeChanges := false

	// Names materialized earlier in this same cycle. The inventory
	// snapshot predates them, so without this a shared name requested by
	// a second playlist would be uploaded again instead of linked.
	materialized := make(map[string]int)

	for _, item := range items {
		// Lazy per-item byte cache: fetched at most once, released when
		// the item has been handled for every playlist.
		var data []byte

		for _, pl := range task.MeuralPlaylists {
			playlist, ok := inv.Playlist(pl.Name)
			if !ok {
				// Validated at task start; vanished mid-cycle.
				log.Error("destination playlist disappeared mid-cycle", slog.String("playlist", pl.Name))

				report.Errors++

				continue
			}

			name := DeriveName(item.Fingerprint, pl.UniqueUpload, playlist.ID)
			key := Key{AlbumID: albumID, Fingerprint: item.Fingerprint, Playlist: pl.Name}

			changed, err := e.materializePair(ctx, log, key, name, item, &data, playlist, pl, inv, materialized, report)
			if changed {
				madeChanges = true
				uploaded[item.Fingerprint] = true
			}

			if err != nil {
				report.Errors++

				var confirmErr *ConfirmationError
				if errors.As(err, &confirmErr) {
					// Unconfirmed linkage is a hard stop for this item,
					// but sibling items continue.
					log.Error("linkage unconfirmed, abandoning item for this cycle",
						slog.String("item", name),
						slog.String("playlist", pl.Name),
					)

					break
				}

				log.Error("failed to materialize item",
					slog.String("item", name),
					slog.String("playlist", pl.Name),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if !madeChanges {
		return uploaded, inv, nil
	}

	// Uploads are the expensive, rate-limited operation; one catch-up
	// refresh after the batch amortizes the cost.
	fresh, err := LoadInventory(ctx, e.dst, log)
	if err != nil {
		log.Error("failed to refresh inventory after uploads", slog.String("error", err.Error()))

		report.Errors++

		return uploaded, inv, nil
	}

	return uploaded, fresh, nil
}

// materializePair brings one (item, playlist) pair into existence on the
// destination, reusing an existing upload when the derived name is
// already claimed and only the playlist link is missing. Returns whether
// a destination mutation happened.
func (e *Engine) materializePair(ctx context.Context, log *slog.Logger, key Key, name string, item icloud.Item, data *[]byte, playlist meural.Playlist, pl config.PlaylistRef, inv *Inventory, materialized map[string]int, report *Report) (bool, error) {
	existingID, exists := materialized[name]
	if !exists {
		if existing, ok := inv.ItemByName(name); ok {
			existingID, exists = existing.ID, true
		}
	}

	if exists {
		// Upload exists; link it into this playlist if needed.
		if slices.Contains(playlist.ItemIDs, existingID) {
			report.Skipped++
			return false, nil
		}

		if entry, found := e.ledger.Get(key); found && entry.Removed {
			report.Skipped++
			return false, nil
		}

		if err := e.linkConfirmed(ctx, key, name, item, existingID, playlist, report); err != nil {
			return false, err
		}

		return true, nil
	}

	entry, found := e.ledger.Get(key)
	if found && entry.Removed {
		// Sticky deletion: the triple was removed on purpose. The item
		// surfaces in quarantine instead of bouncing back.
		report.Skipped++
		return false, nil
	}

	if found && entry.Uploaded() {
		// Uploaded but absent from inventory: the listing is stale or
		// the item vanished after the last cross-check. Leave it for the
		// next cycle rather than risk a duplicate.
		report.Skipped++
		return false, nil
	}

	filename := StagedFilename(name, item.Name)

	if !e.dryRun {
		if *data == nil {
			fetched, err := e.src.Fetch(ctx, item.URL)
			if err != nil {
				return false, fmt.Errorf("downloading %s: %w", item.Name, err)
			}

			*data = fetched
		}

		if err := e.staging.Stage(filename, *data); err != nil {
			return false, err
		}

		if err := e.ledger.Record(key, filename); err != nil {
			return false, err
		}
	}

	itemID, err := e.dst.Upload(ctx, e.staging.NotUploadedPath(filename))
	if err != nil {
		return false, fmt.Errorf("uploading %s: %w", filename, err)
	}

	materialized[name] = itemID

	tagPlaylist := ""
	if pl.UniqueUpload {
		tagPlaylist = pl.Name
	}

	if err := e.tagItem(ctx, itemID, key, tagPlaylist); err != nil {
		return true, err
	}

	if !e.dryRun {
		if err := e.staging.MarkUploaded(filename); err != nil {
			return true, err
		}

		if err := e.ledger.MarkUploaded(key, itemID); err != nil {
			return true, err
		}
	}

	report.Uploads++

	log.Info("uploaded item",
		slog.String("item", name),
		slog.String("playlist", pl.Name),
	)

	if err := e.linkConfirmed(ctx, key, name, item, itemID, playlist, report); err != nil {
		return true, err
	}

	return true, nil
}

// tagItem writes the structured description tag onto a destination item.
func (e *Engine) tagItem(ctx context.Context, itemID int, key Key, playlistName string) error {
	description, err := Tag{
		AlbumID:      key.AlbumID,
		Checksum:     key.Fingerprint,
		PlaylistName: playlistName,
	}.Encode()
	if err != nil {
		return err
	}

	if err := e.dst.SetMetadata(ctx, itemID, description); err != nil {
		return fmt.Errorf("tagging item %d: %w", itemID, err)
	}

	return nil
}

// linkConfirmed links an item into a playlist and verifies the
// destination actually reports it as a member afterwards. An unconfirmed
// link is a ConfirmationError: logged for operator review, not retried
// within the cycle.
func (e *Engine) linkConfirmed(ctx context.Context, key Key, name string, item icloud.Item, itemID int, playlist meural.Playlist, report *Report) error {
	if !e.dryRun {
		if _, found := e.ledger.Get(key); !found {
			// A missing entry here means the destination item is being
			// adopted, e.g. after a ledger loss. Only record a filename
			// when a staged copy actually exists, so the startup
			// integrity pass never demands a file that was never written.
			filename := StagedFilename(name, item.Name)
			if !e.staging.Has(filename) {
				filename = ""
			}

			if err := e.ledger.Record(key, filename); err != nil {
				return err
			}
		}

		if entry, ok := e.ledger.Get(key); ok && !entry.Uploaded() {
			if err := e.ledger.MarkUploaded(key, itemID); err != nil {
				return err
			}
		}
	}

	memberIDs, err := e.dst.AddToPlaylist(ctx, itemID, playlist.ID)
	if err != nil {
		return fmt.Errorf("linking item %d into playlist %s: %w", itemID, playlist.Name, err)
	}

	if !slices.Contains(memberIDs, itemID) {
		return &ConfirmationError{Item: name, Playlist: playlist.Name}
	}

	if !e.dryRun {
		if err := e.ledger.MarkLinked(key); err != nil {
			return err
		}
	}

	report.Links++

	return nil
}

// quarantinePhase flags source items with no destination presence at all:
// never uploaded successfully, or every upload since deleted. Such items
// are uploaded into a dedicated review playlist (created on first need)
// so a human can delete them from the source album. Items uploaded this
// cycle (including simulated dry-run uploads) are never flagged.
func (e *Engine) quarantinePhase(ctx context.Context, log *slog.Logger, albumID string, items []icloud.Item, uploaded map[string]bool, inv *Inventory, report *Report) error {
	var pending []icloud.Item

	for _, item := range items {
		if uploaded[item.Fingerprint] || inv.ClaimsFingerprint(albumID, item.Fingerprint) {
			continue
		}

		pending = append(pending, item)
	}

	if len(pending) == 0 {
		return nil
	}

	playlist, ok := inv.Playlist(e.quarantineName)
	if !ok {
		created, err := e.dst.CreatePlaylist(ctx, e.quarantineName, quarantineDescription, e.orientation)
		if err != nil {
			log.Error("failed to create quarantine playlist", slog.String("error", err.Error()))

			report.Errors++

			return nil
		}

		playlist = *created

		log.Info("created quarantine playlist", slog.String("playlist", e.quarantineName))
	}

	for _, item := range pending {
		var data []byte

		key := Key{AlbumID: albumID, Fingerprint: item.Fingerprint, Playlist: e.quarantineName}
		name := DeriveName(item.Fingerprint, false, 0)

		if entry, found := e.ledger.Get(key); found && entry.Removed {
			// The quarantine copy itself was deleted on purpose.
			report.Skipped++
			continue
		}

		if err := e.quarantineItem(ctx, key, name, item, &data, playlist, report); err != nil {
			log.Error("failed to quarantine item",
				slog.String("item", name),
				slog.String("error", err.Error()),
			)

			report.Errors++

			continue
		}

		report.Quarantined++

		log.Warn("quarantined source item for manual removal",
			slog.String("item", item.Name),
			slog.String("fingerprint", item.Fingerprint),
		)
	}

	return nil
}

// quarantineItem uploads one flagged item into the quarantine playlist,
// tagged with the quarantine playlist's name, with full ledger tracking.
func (e *Engine) quarantineItem(ctx context.Context, key Key, name string, item icloud.Item, data *[]byte, playlist meural.Playlist, report *Report) error {
	filename := StagedFilename(name, item.Name)

	if !e.dryRun {
		if *data == nil {
			fetched, err := e.src.Fetch(ctx, item.URL)
			if err != nil {
				return fmt.Errorf("downloading %s: %w", item.Name, err)
			}

			*data = fetched
		}

		if err := e.staging.Stage(filename, *data); err != nil {
			return err
		}

		if err := e.ledger.Reset(key, filename); err != nil {
			return err
		}
	}

	itemID, err := e.dst.Upload(ctx, e.staging.NotUploadedPath(filename))
	if err != nil {
		return fmt.Errorf("uploading %s: %w", filename, err)
	}

	if err := e.tagItem(ctx, itemID, key, e.quarantineName); err != nil {
		return err
	}

	if !e.dryRun {
		if err := e.staging.MarkUploaded(filename); err != nil {
			return err
		}

		if err := e.ledger.MarkUploaded(key, itemID); err != nil {
			return err
		}
	}

	report.Uploads++

	return e.linkConfirmed(ctx, key, name, item, itemID, playlist, report)
}
