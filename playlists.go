package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newPlaylistsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "playlists",
		Short: "List Meural playlists",
		Long: `Authenticate against Meural and list the account's playlists with their
item counts. Handy for checking names before writing sync tasks: task
playlists must already exist on the device.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlaylists(cmd.Context())
		},
	}
}

func runPlaylists(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := buildLogger()

	client, err := newMeuralClient(ctx, resolvedCfg, logger)
	if err != nil {
		return err
	}

	playlists, err := client.ListPlaylists(ctx)
	if err != nil {
		return fmt.Errorf("listing playlists: %w", err)
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(playlists)
	}

	if len(playlists) == 0 {
		fmt.Println("No playlists found.")
		return nil
	}

	rows := make([][]string, 0, len(playlists))
	for _, pl := range playlists {
		rows = append(rows, []string{
			strconv.Itoa(pl.ID), pl.Name, strconv.Itoa(len(pl.ItemIDs)),
		})
	}

	fmt.Println(renderTable(
		[]string{"ID", "Name", "Items"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight},
	))

	return nil
}
