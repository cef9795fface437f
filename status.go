package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/MikeFez/MeuralCanvas-iCloudSync/internal/sync"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the ledger's view of synced items",
		Long: `Print every tracked (album, photo, playlist) record with its sync state.
Reads the local ledger only; nothing is fetched from iCloud or Meural.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runStatus()
		},
	}
}

// statusRow is one ledger record flattened for display.
type statusRow struct {
	Album       string `json:"album_id"`
	Fingerprint string `json:"fingerprint"`
	Playlist    string `json:"playlist"`
	Filename    string `json:"filename"`
	MeuralID    *int   `json:"meural_id"`
	State       string `json:"state"`
}

func entryState(entry sync.Entry) string {
	switch {
	case entry.Removed:
		return "removed"
	case entry.Linked:
		return "linked"
	case entry.Uploaded():
		return "uploaded"
	default:
		return "pending"
	}
}

// albumSummary is one footer line under the status table: the album's
// live photo count plus any crash-window uploads still awaiting links.
func albumSummary(ledger *sync.Ledger, albumID string) string {
	line := fmt.Sprintf("%s: %d live photos", albumID, len(ledger.LiveFingerprints(albumID)))

	if unlinked := ledger.Unlinked(albumID); len(unlinked) > 0 {
		line += fmt.Sprintf(", %d uploaded but not yet linked", len(unlinked))
	}

	return line
}

func runStatus() error {
	ledger, err := sync.OpenLedger(resolvedPaths.LedgerFile(), buildLogger())
	if err != nil {
		return err
	}

	rows := make([]statusRow, 0)

	for key, entry := range ledger.All() {
		rows = append(rows, statusRow{
			Album:       key.AlbumID,
			Fingerprint: key.Fingerprint,
			Playlist:    key.Playlist,
			Filename:    entry.Filename,
			MeuralID:    entry.ItemID,
			State:       entryState(entry),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Album != rows[j].Album {
			return rows[i].Album < rows[j].Album
		}

		if rows[i].Fingerprint != rows[j].Fingerprint {
			return rows[i].Fingerprint < rows[j].Fingerprint
		}

		return rows[i].Playlist < rows[j].Playlist
	})

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No synced items recorded yet.")
		return nil
	}

	tableRows := make([][]string, 0, len(rows))
	for _, row := range rows {
		meuralID := "-"
		if row.MeuralID != nil {
			meuralID = strconv.Itoa(*row.MeuralID)
		}

		tableRows = append(tableRows, []string{
			row.Album, row.Fingerprint, row.Playlist, meuralID, row.State,
		})
	}

	fmt.Println(renderTable(
		[]string{"Album", "Photo", "Playlist", "Meural ID", "State"},
		tableRows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))

	var albums []string
	for _, row := range rows {
		if len(albums) == 0 || albums[len(albums)-1] != row.Album {
			albums = append(albums, row.Album)
		}
	}

	for _, album := range albums {
		fmt.Println(albumSummary(ledger, album))
	}

	return nil
}
