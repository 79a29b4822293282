package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/prxssh/rabbitcore/internal/meta"
)

var magnetCmd = &cobra.Command{
	Use:   "magnet <torrent-file>",
	Short: "Print the magnet URI for a torrent file",
	Args:  cobra.ExactArgs(1),
	RunE:  runMagnet,
}

func runMagnet(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read torrent file: %w", err)
	}
	mi, err := meta.ParseMetainfo(data)
	if err != nil {
		return fmt.Errorf("parse torrent file: %w", err)
	}

	trackers := mi.AnnounceList
	var flatTrackers []string
	if mi.Announce != "" {
		flatTrackers = append(flatTrackers, mi.Announce)
	}
	for _, tier := range trackers {
		flatTrackers = append(flatTrackers, tier...)
	}

	identity := meta.MagnetIdentity{
		InfoHash: mi.InfoHash,
		Name:     mi.Info.Name,
		Trackers: flatTrackers,
		WebSeeds: mi.WebSeeds,
	}

	fmt.Println(meta.ToMagnet(identity))
	return nil
}
