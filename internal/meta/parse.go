package meta

import (
	"crypto/sha1"
	"fmt"
	"time"

	"github.com/prxssh/rabbitcore/internal/bencode"
)

// ParseMetainfo parses a bencoded `.torrent` container into a
// Metainfo, computing the infohash over the info dict's own
// re-serialization (canonical: info dicts in valid torrents already
// carry keys in sorted order, and OrderedDict preserves whatever order
// was decoded).
func ParseMetainfo(data []byte) (*Metainfo, error) {
	raw, err := bencode.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	root, err := raw.AsDict()
	if err != nil {
		return nil, ErrTopLevelNotDict
	}

	announce, err := parseOptionalString(root, "announce")
	if err != nil {
		return nil, err
	}
	announceList, err := parseAnnounceList(root)
	if err != nil {
		return nil, err
	}
	if announce == "" && len(announceList) == 0 {
		return nil, ErrAnnounceMissing
	}

	var creationDate time.Time
	if v, ok := root.Get("creation date"); ok {
		secs, err := v.AsInt()
		if err != nil || secs < 0 {
			return nil, ErrCreationDateInvalid
		}
		creationDate = time.Unix(secs, 0).UTC()
	}

	createdBy, err := parseOptionalString(root, "created by")
	if err != nil {
		return nil, err
	}
	comment, err := parseOptionalString(root, "comment")
	if err != nil {
		return nil, err
	}
	encoding, err := parseOptionalString(root, "encoding")
	if err != nil {
		return nil, err
	}
	webSeeds, err := parseWebSeeds(root)
	if err != nil {
		return nil, err
	}

	infoVal, ok := root.Get("info")
	if !ok {
		return nil, ErrInfoMissing
	}
	infoDict, err := infoVal.AsDict()
	if err != nil {
		return nil, ErrInfoNotDict
	}

	info, err := parseInfo(infoDict)
	if err != nil {
		return nil, err
	}

	infoBytes, err := bencode.Marshal(bencode.NewDict(infoDict))
	if err != nil {
		return nil, fmt.Errorf("metainfo: re-encode info dict: %w", err)
	}

	return &Metainfo{
		Info:         *info,
		InfoHash:     sha1.Sum(infoBytes),
		InfoDictLen:  len(infoBytes),
		Announce:     announce,
		AnnounceList: announceList,
		WebSeeds:     webSeeds,
		CreationDate: creationDate,
		CreatedBy:    createdBy,
		Comment:      comment,
		Encoding:     encoding,
	}, nil
}

// ParseInfoDict parses data as a bare bencoded info dictionary (not a
// full .torrent container) and returns both the decoded Info and the
// underlying OrderedDict, so a caller that needs to splice it back
// into a container (internal/metadata's installer) can re-serialize
// the exact dict it parsed.
func ParseInfoDict(data []byte) (*Info, *bencode.OrderedDict, error) {
	raw, err := bencode.Unmarshal(data)
	if err != nil {
		return nil, nil, err
	}
	dict, err := raw.AsDict()
	if err != nil {
		return nil, nil, ErrInfoNotDict
	}
	info, err := parseInfo(dict)
	if err != nil {
		return nil, nil, err
	}
	return info, dict, nil
}

func parseInfo(dict *bencode.OrderedDict) (*Info, error) {
	var out Info

	nameVal, ok := dict.Get("name")
	if !ok {
		return nil, ErrNameMissing
	}
	name, err := nameVal.AsString()
	if err != nil || name == "" {
		return nil, fmt.Errorf("metainfo: invalid 'name': %w", err)
	}
	out.Name = name

	plVal, ok := dict.Get("piece length")
	if !ok {
		return nil, ErrPieceLenMissing
	}
	plen, err := plVal.AsInt()
	if err != nil || plen <= 0 {
		return nil, ErrPieceLenNonPositive
	}
	out.PieceLength = int32(plen)

	piecesVal, ok := dict.Get("pieces")
	if !ok {
		return nil, ErrPiecesMissing
	}
	out.Pieces, err = parsePieces(piecesVal)
	if err != nil {
		return nil, err
	}

	if v, ok := dict.Get("private"); ok {
		priv, err := v.AsBool()
		if err != nil {
			return nil, fmt.Errorf("metainfo: invalid 'private' flag: %w", err)
		}
		out.Private = priv
	}

	lengthVal, hasLength := dict.Get("length")
	filesVal, hasFiles := dict.Get("files")

	switch {
	case hasLength && !hasFiles:
		length, err := lengthVal.AsInt()
		if err != nil || length < 0 {
			return nil, fmt.Errorf("metainfo: invalid 'length'")
		}
		out.Files = []File{{Path: []string{name}, Length: length, Offset: 0}}
		out.TotalSize = length

	case hasFiles && !hasLength:
		out.Files, err = parseFiles(filesVal)
		if err != nil {
			return nil, err
		}
		var total int64
		for i := range out.Files {
			out.Files[i].Offset = total
			total += out.Files[i].Length
		}
		out.TotalSize = total

	default:
		return nil, ErrLayoutInvalid
	}

	return &out, nil
}

func parseFiles(v *bencode.Value) ([]File, error) {
	arr, err := v.AsList()
	if err != nil || len(arr) == 0 {
		return nil, fmt.Errorf("metainfo: invalid or empty 'files'")
	}

	files := make([]File, 0, len(arr))
	for i, it := range arr {
		m, err := it.AsDict()
		if err != nil {
			return nil, fmt.Errorf("metainfo: files[%d]: not a dict", i)
		}

		flVal, ok := m.Get("length")
		if !ok {
			return nil, fmt.Errorf("metainfo: files[%d]: length missing", i)
		}
		ln, err := flVal.AsInt()
		if err != nil || ln < 0 {
			return nil, fmt.Errorf("metainfo: files[%d]: invalid length", i)
		}

		pathVal, ok := m.Get("path")
		if !ok {
			return nil, fmt.Errorf("metainfo: files[%d]: path missing", i)
		}
		segments, err := toStringSlice(pathVal)
		if err != nil || len(segments) == 0 {
			return nil, fmt.Errorf("metainfo: files[%d]: invalid path", i)
		}

		files = append(files, File{Path: segments, Length: ln})
	}

	return files, nil
}

func parseAnnounceList(root *bencode.OrderedDict) ([][]string, error) {
	v, ok := root.Get("announce-list")
	if !ok {
		return nil, nil
	}
	tiers, err := v.AsList()
	if err != nil {
		return nil, fmt.Errorf("metainfo: invalid announce-list")
	}

	out := make([][]string, 0, len(tiers))
	for i, t := range tiers {
		ss, err := toStringSlice(t)
		if err != nil || len(ss) == 0 {
			return nil, fmt.Errorf("metainfo: announce-list tier %d: invalid", i)
		}
		out = append(out, ss)
	}
	return out, nil
}

func parseWebSeeds(root *bencode.OrderedDict) ([]string, error) {
	v, ok := root.Get("url-list")
	if !ok {
		return nil, nil
	}
	// url-list may legally be a single string or a list of strings.
	if v.Kind == bencode.KindString {
		s, err := v.AsString()
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
	return toStringSlice(v)
}

func parseOptionalString(root *bencode.OrderedDict, key string) (string, error) {
	v, ok := root.Get(key)
	if !ok {
		return "", nil
	}
	return v.AsString()
}

func parsePieces(v *bencode.Value) ([][sha1.Size]byte, error) {
	b, err := v.AsBytes()
	if err != nil {
		return nil, fmt.Errorf("metainfo: 'pieces': %w", err)
	}
	if len(b)%sha1.Size != 0 {
		return nil, ErrPiecesLenInvalid
	}

	n := len(b) / sha1.Size
	out := make([][sha1.Size]byte, n)
	for i := 0; i < n; i++ {
		copy(out[i][:], b[i*sha1.Size:(i+1)*sha1.Size])
	}
	return out, nil
}

func toStringSlice(v *bencode.Value) ([]string, error) {
	list, err := v.AsList()
	if err != nil {
		return nil, fmt.Errorf("metainfo: not a list")
	}

	out := make([]string, 0, len(list))
	for i, e := range list {
		s, err := e.AsString()
		if err != nil {
			return nil, fmt.Errorf("metainfo: elem %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}
