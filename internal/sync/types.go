// Package sync implements the reconciliation engine: the component that
// computes the difference between what exists in a shared source album
// and what has been materialized on the destination service, drives the
// side-effecting operations (download, upload, tag, link, delete) with
// per-item error isolation, and maintains a durable local ledger of every
// decision so restarts never re-upload or re-delete.
package sync

import (
	"context"

	"github.com/MikeFez/MeuralCanvas-iCloudSync/internal/icloud"
	"github.com/MikeFez/MeuralCanvas-iCloudSync/internal/meural"
)

// Source yields the current contents of a shared album and fetches photo
// bytes. Implemented by *icloud.Client; engine tests use fakes.
type Source interface {
	Resolve(ctx context.Context, albumRef string) (*icloud.Album, error)
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Destination is the image-gallery service the engine mutates.
// Implemented by *meural.Client and wrapped by DryRunDestination.
type Destination interface {
	ListPlaylists(ctx context.Context) ([]meural.Playlist, error)
	ListItems(ctx context.Context) ([]meural.Item, error)
	Upload(ctx context.Context, path string) (int, error)
	SetMetadata(ctx context.Context, itemID int, description string) error
	Delete(ctx context.Context, itemID int) error
	CreatePlaylist(ctx context.Context, name, description, orientation string) (*meural.Playlist, error)
	AddToPlaylist(ctx context.Context, itemID, playlistID int) ([]int, error)
}

// Report summarizes the side effects of one reconciliation cycle.
type Report struct {
	Uploads     int
	Links       int
	Deletes     int
	Quarantined int
	Skipped     int // pairs already materialized or tombstoned
	Errors      int // per-item failures logged and skipped
}

// add accumulates another report into this one.
func (r *Report) add(other *Report) {
	r.Uploads += other.Uploads
	r.Links += other.Links
	r.Deletes += other.Deletes
	r.Quarantined += other.Quarantined
	r.Skipped += other.Skipped
	r.Errors += other.Errors
}
