package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/prxssh/rabbitcore/internal/blockcache"
	"github.com/prxssh/rabbitcore/internal/config"
	"github.com/prxssh/rabbitcore/internal/filecache"
	"github.com/prxssh/rabbitcore/internal/ioengine"
	"github.com/prxssh/rabbitcore/internal/meta"
	"github.com/prxssh/rabbitcore/internal/verify"
)

var verifyListBad bool

var verifyCmd = &cobra.Command{
	Use:   "verify <torrent-file> <content-path>",
	Short: "Verify content on disk against a torrent's piece hashes",
	Args:  cobra.ExactArgs(2),
	RunE:  runVerify,
}

func init() {
	verifyCmd.Flags().BoolVarP(&verifyListBad, "list-bad", "l", false, "print every failing piece index")
}

func runVerify(cmd *cobra.Command, args []string) error {
	torrentPath, contentPath := args[0], args[1]

	data, err := os.ReadFile(torrentPath)
	if err != nil {
		return fmt.Errorf("read torrent file: %w", err)
	}
	mi, err := meta.ParseMetainfo(data)
	if err != nil {
		return fmt.Errorf("parse torrent file: %w", err)
	}

	if _, err := os.Stat(contentPath); err != nil {
		return fmt.Errorf("content path: %w", err)
	}

	cfg := config.DefaultConfig()

	blockSize := meta.DeriveBlockSize(cfg.BlockSize, mi.Info.PieceLength)
	if blockSize == 0 {
		return fmt.Errorf("unusable-metadata: piece length %d not a multiple of block size %d", mi.Info.PieceLength, cfg.BlockSize)
	}
	mi.Info.BlockSize = blockSize

	cache, err := filecache.NewLRUCache(cfg.FileCacheSize)
	if err != nil {
		return fmt.Errorf("build file handle cache: %w", err)
	}
	defer cache.CloseAll(filecache.TorrentID(mi.InfoHash))

	torrentID := filecache.TorrentID(mi.InfoHash)
	engine := ioengine.New(cache, cfg, contentPath, torrentID)
	bc := blockcache.NewWriteBackCache(engine)
	v := verify.New(torrentID, bc, engine)

	fmt.Printf("Verifying %s against %s (%s, %d pieces)...\n",
		mi.Info.Name, contentPath, humanize.Bytes(uint64(mi.Info.TotalSize)), mi.Info.PieceCount())

	start := time.Now()
	var bad []int
	for piece := 0; piece < mi.Info.PieceCount(); piece++ {
		ok, err := v.Verify(&mi.Info, piece)
		if err != nil {
			return fmt.Errorf("verify piece %d: %w", piece, err)
		}
		if !ok {
			bad = append(bad, piece)
		}
	}
	elapsed := time.Since(start)

	good := mi.Info.PieceCount() - len(bad)
	pct := 100 * float64(good) / float64(mi.Info.PieceCount())

	if len(bad) == 0 {
		color.Green("OK  %d/%d pieces verified (%.2f%%) in %s\n", good, mi.Info.PieceCount(), pct, elapsed.Round(time.Millisecond))
		return nil
	}

	color.Red("FAIL  %d/%d pieces verified (%.2f%%) in %s\n", good, mi.Info.PieceCount(), pct, elapsed.Round(time.Millisecond))
	if verifyListBad {
		fmt.Printf("bad pieces: %v\n", bad)
	}
	return fmt.Errorf("%d piece(s) failed verification", len(bad))
}
