package meta

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

type Magnet struct {
	InfoHash [sha1.Size]byte
	Name     string
	Trackers []string
	WebSeeds []string
}

// MagnetIdentity is the input to ToMagnet: the subset of a torrent's
// identity a magnet URI can carry. It is the inverse shape of Magnet,
// kept as a distinct name since callers typically build it from a
// Metainfo rather than from a parsed magnet URL.
type MagnetIdentity struct {
	InfoHash [sha1.Size]byte
	Name     string
	Trackers []string
	WebSeeds []string
}

func ParseMagnet(magnetURL string) (*Magnet, error) {
	u, err := url.Parse(magnetURL)
	if err != nil {
		return nil, fmt.Errorf("magnet url parse failed: %w", err)
	}
	if u.Scheme != "magnet" {
		return nil, fmt.Errorf("invalid magnet scheme '%s'", u.Scheme)
	}

	params, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("magnet params parse failed: %w", err)
	}

	magnet := &Magnet{}

	xt, ok := params["xt"]
	if !ok || len(xt) == 0 {
		return nil, fmt.Errorf("magnet url missing 'xt'")
	}
	xtVal := xt[0]
	if !strings.HasPrefix(xtVal, "urn:btih:") {
		return nil, fmt.Errorf("invalid 'xt' value: must be in 'urn:btih:<hash>' format")
	}

	hashString := strings.TrimPrefix(xtVal, "urn:btih:")
	if len(hashString) != sha1.Size*2 { // 20 bytes = 40 hex chars
		return nil, fmt.Errorf("invalid infohash length")
	}
	hashBytes, err := hex.DecodeString(hashString)
	if err != nil {
		return nil, fmt.Errorf("failed to decode infohash: %w", err)
	}
	copy(magnet.InfoHash[:], hashBytes)

	if dn, ok := params["dn"]; ok && len(dn) > 0 {
		magnet.Name = dn[0]
	}

	if tr, ok := params["tr"]; ok {
		magnet.Trackers = tr
	}

	if ws, ok := params["ws"]; ok {
		magnet.WebSeeds = ws
	}

	return magnet, nil
}

// ToMagnet renders identity as a magnet: URI: xt=urn:btih:<hex>
// followed by dn, repeated tr, and repeated ws parameters, in that
// order, with no parameter emitted when its value is empty.
//
// Percent-encoding follows RFC 3986's unreserved-character rule
// (A-Z a-z 0-9 - _ . ~ left bare, everything else escaped), not
// net/url.QueryEscape, which escapes space as '+' rather than the
// literal %20 a magnet URI needs.
func ToMagnet(identity MagnetIdentity) string {
	var b strings.Builder
	b.WriteString("magnet:?xt=urn:btih:")
	b.WriteString(hex.EncodeToString(identity.InfoHash[:]))

	if identity.Name != "" {
		b.WriteString("&dn=")
		b.WriteString(magnetEscape(identity.Name))
	}
	for _, tr := range identity.Trackers {
		if tr == "" {
			continue
		}
		b.WriteString("&tr=")
		b.WriteString(magnetEscape(tr))
	}
	for _, ws := range identity.WebSeeds {
		if ws == "" {
			continue
		}
		b.WriteString("&ws=")
		b.WriteString(magnetEscape(ws))
	}

	return b.String()
}

func magnetEscape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-' || c == '_' || c == '.' || c == '~':
		return true
	default:
		return false
	}
}
