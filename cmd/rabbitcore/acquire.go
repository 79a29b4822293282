package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/prxssh/rabbitcore/internal/bencode"
	"github.com/prxssh/rabbitcore/internal/config"
	"github.com/prxssh/rabbitcore/internal/meta"
	"github.com/prxssh/rabbitcore/internal/metadata"
	"github.com/prxssh/rabbitcore/internal/session"
)

var acquireStateDir string

var acquireCmd = &cobra.Command{
	Use:   "acquire <magnet-uri> <info-dict-file>",
	Short: "Install a known info dict for a magnet link into session state",
	Long: "acquire drives the metadata exchange state machine end to end for a " +
		"magnet link, feeding it an already-known bare info dict (as if every " +
		"piece had just arrived from a peer), then prints the canonical magnet " +
		"URI for the installed torrent.",
	Args: cobra.ExactArgs(2),
	RunE: runAcquire,
}

func init() {
	acquireCmd.Flags().StringVar(&acquireStateDir, "state-dir", "", "directory to persist the .torrent/.resume files in (defaults to the core's state dir)")
}

func runAcquire(cmd *cobra.Command, args []string) error {
	magnetURI, infoDictPath := args[0], args[1]

	mg, err := meta.ParseMagnet(magnetURI)
	if err != nil {
		return fmt.Errorf("parse magnet: %w", err)
	}
	if len(mg.Trackers) == 0 {
		return fmt.Errorf("acquire: magnet has no 'tr' trackers; DHT-only magnets are not supported by this command")
	}

	infoDict, err := os.ReadFile(infoDictPath)
	if err != nil {
		return fmt.Errorf("read info dict: %w", err)
	}

	cfg := config.DefaultConfig()
	if acquireStateDir != "" {
		cfg.StateDir = acquireStateDir
	}
	logger := slog.Default()

	sess := session.New(cfg, logger, nil, mg.InfoHash)
	if err := seedContainer(sess, mg.Trackers); err != nil {
		return fmt.Errorf("seed container: %w", err)
	}

	var installed *meta.Metainfo
	im := metadata.New(mg.InfoHash, cfg.BlockSize, sess, logger, func(mi *meta.Metainfo) {
		installed = mi
	})

	if !im.SetSizeHint(int64(len(infoDict))) {
		return fmt.Errorf("acquire: could not set size hint for %d-byte info dict", len(infoDict))
	}
	for offset, idx := 0, 0; offset < len(infoDict); offset, idx = offset+meta.MetadataPieceSize, idx+1 {
		end := offset + meta.MetadataPieceSize
		if end > len(infoDict) {
			end = len(infoDict)
		}
		im.Deliver(idx, infoDict[offset:end])
	}

	if im.State() != metadata.Installed {
		return fmt.Errorf("acquire: metadata did not install (state=%s)", im.State())
	}

	fmt.Printf("installed %q (%d pieces) at %s\n", installed.Info.Name, installed.Info.PieceCount(), sess.TorrentPath())

	identity := meta.MagnetIdentity{
		InfoHash: installed.InfoHash,
		Name:     installed.Info.Name,
		Trackers: mg.Trackers,
		WebSeeds: installed.WebSeeds,
	}
	fmt.Println(meta.ToMagnet(identity))
	return nil
}

// seedContainer writes a bare `.torrent` container carrying only the
// magnet's trackers, so install() has something to load its info dict
// into.
func seedContainer(sess *session.Session, trackers []string) error {
	root := bencode.NewOrderedDict()
	root.Set("announce", bencode.NewString(trackers[0]))
	if len(trackers) > 1 {
		tier := make([]*bencode.Value, len(trackers))
		for i, tr := range trackers {
			tier[i] = bencode.NewString(tr)
		}
		root.Set("announce-list", bencode.NewList(bencode.NewList(tier...)))
	}

	data, err := bencode.Marshal(bencode.NewDict(root))
	if err != nil {
		return err
	}
	return sess.SaveTorrentFileAtomic(data)
}
