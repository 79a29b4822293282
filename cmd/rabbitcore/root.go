package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rabbitcore",
	Short: "Piece I/O core for BitTorrent clients",
	Long:  "rabbitcore inspects and verifies torrent content against a .torrent or magnet-derived info dict.",
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(magnetCmd)
	rootCmd.AddCommand(acquireCmd)
}
