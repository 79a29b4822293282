package metadata

// Session is the persistence collaborator the installation sequence
// (spec.md §4.E "Installation sequence") and the info-dict extraction
// path need: read/write of the on-disk `.torrent` container, removal
// of the `.resume` file, and the torrent-local-error sink described in
// spec.md §7.
//
// internal/session provides the concrete implementation; this package
// only depends on the interface so it stays testable without a real
// filesystem-backed session.
type Session interface {
	LoadTorrentFile() ([]byte, error)
	SaveTorrentFileAtomic(data []byte) error
	RemoveResumeFile() error
	MarkLocalError(err error)
}
