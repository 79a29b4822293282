// Package session is the ambient collaborator spec.md §6 names but
// treats as an external contract: it owns a torrent's persisted state
// under the configured StateDir (the `.torrent` container and
// `.resume` progress file), the torrent-local-error flag from
// spec.md §7, and wires up a Range I/O Engine rooted at the torrent's
// content directory.
package session

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prxssh/rabbitcore/internal/config"
	"github.com/prxssh/rabbitcore/internal/filecache"
	"github.com/prxssh/rabbitcore/internal/ioengine"
	"github.com/prxssh/rabbitcore/internal/retry"
)

// Session owns one torrent's on-disk state: its `.torrent` container,
// its `.resume` file, and the local-error flag, which once set stays
// set until ClearLocalError. The flag itself gates no I/O: write
// refusal is done by each ioengine.Engine's own latch, which this
// Session's ClearLocalError does not reset.
type Session struct {
	cfg    *config.Config
	logger *slog.Logger
	cache  filecache.Cache

	torrentPath string
	resumePath  string

	mu       sync.Mutex
	localErr error
}

// New builds a Session for the torrent identified by infoHash,
// resolving its `.torrent`/`.resume` paths under cfg.StateDir.
func New(cfg *config.Config, logger *slog.Logger, cache filecache.Cache, infoHash [sha1.Size]byte) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	id := hex.EncodeToString(infoHash[:])
	return &Session{
		cfg:         cfg,
		logger:      logger,
		cache:       cache,
		torrentPath: filepath.Join(cfg.StateDir, id+".torrent"),
		resumePath:  filepath.Join(cfg.StateDir, id+".resume"),
	}
}

func (s *Session) TorrentPath() string { return s.torrentPath }
func (s *Session) ResumePath() string  { return s.resumePath }

// LoadTorrentFile reads the on-disk `.torrent` container.
func (s *Session) LoadTorrentFile() ([]byte, error) {
	data, err := os.ReadFile(s.torrentPath)
	if err != nil {
		return nil, fmt.Errorf("session: read %s: %w", s.torrentPath, err)
	}
	return data, nil
}

// SaveTorrentFileAtomic replaces the `.torrent` container with data,
// via a temp-file-plus-rename so a crash or concurrent reader never
// observes a partially-written container. Transient failures (a
// concurrent scanner holding the path, a momentary EBUSY) are retried.
func (s *Session) SaveTorrentFileAtomic(data []byte) error {
	return retry.Do(context.Background(), func(ctx context.Context) error {
		return atomicWriteFile(s.torrentPath, data)
	}, retry.WithMaxAttempts(3), retry.WithInitialDelay(20*time.Millisecond), retry.WithMaxDelay(200*time.Millisecond))
}

// RemoveResumeFile deletes the `.resume` file; a missing file is not
// an error (spec.md §4.E step 4 removes it unconditionally before
// installing new metadata).
func (s *Session) RemoveResumeFile() error {
	if err := os.Remove(s.resumePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: remove %s: %w", s.resumePath, err)
	}
	return nil
}

// MarkLocalError sets the torrent-local error once; subsequent calls
// are no-ops until ClearLocalError runs. Setting it does not by itself
// stop an Engine from writing.
func (s *Session) MarkLocalError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.localErr != nil {
		return
	}
	s.localErr = err
	s.logger.Error("torrent local error set", "error", err)
}

func (s *Session) LocalError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localErr
}

func (s *Session) ClearLocalError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localErr = nil
}

// NewEngine builds a Range I/O Engine rooted at contentRoot for this
// torrent, wiring write failures into the session's local-error flag.
func (s *Session) NewEngine(contentRoot string, torrentID filecache.TorrentID) *ioengine.Engine {
	engine := ioengine.New(s.cache, s.cfg, contentRoot, torrentID)
	engine.OnWriteError(func(path string, err error) {
		s.MarkLocalError(fmt.Errorf("io: %s: %w", path, err))
	})
	return engine
}

func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("session: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("session: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("session: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("session: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("session: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("session: rename into place: %w", err)
	}
	return nil
}
